package delivery

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"
)

// Provider is the provider name used in every message
const Provider = "github"

// Messages exchanged with the opener window. These strings are read by the
// CMS and must not change.
const (
	MessagePrefix    = "authorization:" + Provider + ":"
	AckMessage       = MessagePrefix + "ack"
	HandshakeMessage = "authorizing:" + Provider
)

// Outcome is the middle part of a result message
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
)

const (
	wildcardOrigin        = "*"
	handshakePingInterval = 100 * time.Millisecond

	defaultAdminPath        = "/admin/"
	defaultAttempts         = 40
	defaultInterval         = 50 * time.Millisecond
	defaultHandshakeTimeout = 3 * time.Second
)

//go:embed templates/result.html
var resultPageTemplateHTML string

//go:embed templates/handshake.html
var handshakePageTemplateHTML string

var resultPageTemplate = template.Must(template.New("result").Parse(resultPageTemplateHTML))
var handshakePageTemplate = template.Must(template.New("handshake").Parse(handshakePageTemplateHTML))

// Options tunes the rendered pages. Zero values take defaults, except
// BroadcastWildcard.
type Options struct {
	AdminPath         string
	Attempts          int
	Interval          time.Duration
	HandshakeTimeout  time.Duration
	BroadcastWildcard bool
}

// Result is the outcome of a callback, bound to the origin recovered from the
// state token ("*" when unknown).
type Result struct {
	Origin string
	Token  string
	Reason string
}

// Success builds a successful Result
func Success(origin, token string) Result {
	return Result{Origin: origin, Token: token}
}

// Failure builds a failed Result carrying a user-facing reason
func Failure(origin, reason string) Result {
	return Result{Origin: origin, Reason: reason}
}

// OK reports whether the result carries a token
func (r Result) OK() bool {
	return r.Reason == "" && r.Token != ""
}

// Outcome returns the message outcome
func (r Result) Outcome() Outcome {
	if r.OK() {
		return OutcomeSuccess
	}
	return OutcomeError
}

type successPayload struct {
	Token    string `json:"token"`
	Provider string `json:"provider"`
}

// Message renders the opener message:
//
//	authorization:github:success:{"token":"...","provider":"github"}
//	authorization:github:error:<reason>
func (r Result) Message() string {
	if !r.OK() {
		return MessagePrefix + string(OutcomeError) + ":" + r.Reason
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Encoding a struct of strings cannot fail.
	_ = enc.Encode(successPayload{Token: r.Token, Provider: Provider})
	return MessagePrefix + string(OutcomeSuccess) + ":" + strings.TrimSuffix(buf.String(), "\n")
}

// Handshake describes an auth start page
type Handshake struct {
	Origin       string
	AuthorizeURL string
}

// Renderer renders result and handshake pages. It is safe for concurrent use
type Renderer struct {
	opts Options
}

// NewRenderer creates a Renderer
func NewRenderer(opts Options) *Renderer {
	if opts.AdminPath == "" {
		opts.AdminPath = defaultAdminPath
	}
	if opts.Attempts <= 0 {
		opts.Attempts = defaultAttempts
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = defaultHandshakeTimeout
	}
	return &Renderer{opts: opts}
}

// Options returns the effective options
func (r *Renderer) Options() Options {
	return r.opts
}

type resultPageData struct {
	OK     bool
	Reason string
	// Message is embedded verbatim apart from &, < and >
	Message     template.HTML
	Origin      string
	Broadcast   bool
	FallbackURL string
	Attempts    int
	IntervalMS  int64
}

// ResultPage renders the page that delivers res to the opener window
func (r *Renderer) ResultPage(res Result) ([]byte, error) {
	origin := res.Origin
	if origin == "" {
		origin = wildcardOrigin
	}

	data := resultPageData{
		OK:          res.OK(),
		Reason:      res.Reason,
		Message:     template.HTML(escapeText(res.Message())),
		Origin:      origin,
		Broadcast:   r.opts.BroadcastWildcard || origin == wildcardOrigin,
		FallbackURL: r.FallbackURL(res),
		Attempts:    r.opts.Attempts,
		IntervalMS:  max(r.opts.Interval.Milliseconds(), 1),
	}

	var buf bytes.Buffer
	if err := resultPageTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("rendering result page: %w", err)
	}
	return buf.Bytes(), nil
}

// FallbackURL is where the result page navigates when the opener cannot be
// reached. The token travels in the fragment so it never reaches a server
// log. Empty when the origin is not concrete.
func (r *Renderer) FallbackURL(res Result) string {
	if res.Origin == "" || res.Origin == wildcardOrigin {
		return ""
	}

	var fragment string
	if res.OK() {
		fragment = "access_token=" + url.QueryEscape(res.Token) + "&provider=" + Provider
	} else {
		fragment = "error=" + url.QueryEscape(res.Reason)
	}
	return res.Origin + r.opts.AdminPath + "#" + fragment
}

type handshakePageData struct {
	Origin         string
	AuthorizeURL   string
	PingIntervalMS int64
	TimeoutMS      int64
}

// HandshakePage renders the auth start page that syncs with the opener
// before navigating to the provider.
func (r *Renderer) HandshakePage(h Handshake) ([]byte, error) {
	origin := h.Origin
	if origin == "" {
		origin = wildcardOrigin
	}

	data := handshakePageData{
		Origin:         origin,
		AuthorizeURL:   h.AuthorizeURL,
		PingIntervalMS: handshakePingInterval.Milliseconds(),
		TimeoutMS:      max(r.opts.HandshakeTimeout.Milliseconds(), 1),
	}

	var buf bytes.Buffer
	if err := handshakePageTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("rendering handshake page: %w", err)
	}
	return buf.Bytes(), nil
}

var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeText(s string) string {
	return textEscaper.Replace(s)
}
