package broker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dgellow/github-oauth-broker/internal/config"
	"github.com/dgellow/github-oauth-broker/internal/crypto"
	"github.com/dgellow/github-oauth-broker/internal/delivery"
	"github.com/dgellow/github-oauth-broker/internal/idp"
	"github.com/dgellow/github-oauth-broker/internal/log"
	"github.com/dgellow/github-oauth-broker/internal/origin"
)

// Route names, also used as metric labels
const (
	RouteHealth   = "health"
	RouteAuth     = "auth"
	RouteCallback = "callback"
	RouteUnknown  = "unknown"
)

const (
	msgMethodNotAllowed    = "Method not allowed"
	msgNotFound            = "Not found"
	msgUnsupportedProvider = "Unsupported provider"
	msgOriginNotAllowed    = "Origin not allowed"
	msgStateFailed         = "Failed to create state"
	msgRenderFailed        = "Failed to render page"
	msgInvalidCallback     = "Invalid OAuth callback params"
	msgReplayCheckFailed   = "Replay check failed"
	msgExchangeFailed      = "Token exchange failed"
	providerErrorPrefix    = "GitHub OAuth error: "
)

// NonceLedger records consumed state nonces. Consume returns true the first
// time a nonce is seen before expiresAt.
type NonceLedger interface {
	Consume(ctx context.Context, nonce string, expiresAt time.Time) (bool, error)
}

// Option configures a Router
type Option func(*Router)

// WithProvider replaces the provider built from the config
func WithProvider(p idp.Provider) Option {
	return func(r *Router) {
		r.provider = p
	}
}

// WithClock sets the clock used to mint and verify state tokens
func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		r.now = now
	}
}

// WithReplayLedger enables single-use enforcement of state tokens
func WithReplayLedger(l NonceLedger) Option {
	return func(r *Router) {
		r.ledger = l
	}
}

// Router dispatches broker requests. It is immutable after construction and
// safe for concurrent use.
type Router struct {
	cfg        config.Config
	missing    error
	selfOrigin string
	signer     crypto.StateSigner
	policy     origin.Policy
	provider   idp.Provider
	renderer   *delivery.Renderer
	ledger     NonceLedger
	now        func() time.Time
}

// NewRouter builds a Router. A config with missing required settings still
// yields a Router; it answers every request with a configuration error.
func NewRouter(cfg config.Config, opts ...Option) (*Router, error) {
	r := &Router{
		cfg:        cfg,
		missing:    cfg.Missing(),
		selfOrigin: origin.Normalize(cfg.PublicBaseURL),
		policy:     origin.NewPolicy(cfg.AllowedOrigins, cfg.TrustedOrigins),
		renderer: delivery.NewRenderer(delivery.Options{
			AdminPath:         cfg.Delivery.AdminPath,
			Attempts:          cfg.Delivery.Attempts,
			Interval:          cfg.Delivery.Interval,
			HandshakeTimeout:  cfg.Delivery.HandshakeTimeout,
			BroadcastWildcard: cfg.Delivery.BroadcastWildcard,
		}),
		now: time.Now,
	}
	if r.cfg.ExchangeTimeout <= 0 {
		r.cfg.ExchangeTimeout = config.DefaultExchangeTimeout
	}
	if r.cfg.GitHub.Scope == "" {
		r.cfg.GitHub.Scope = config.DefaultScope
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.provider == nil {
		p, err := idp.NewProvider(cfg.Provider, cfg)
		if err != nil {
			return nil, fmt.Errorf("creating provider: %w", err)
		}
		r.provider = p
	}
	r.signer = crypto.NewStateSigner([]byte(cfg.StateSecret), crypto.DefaultStateWindow, crypto.WithClock(r.now))

	if r.policy.Open() {
		log.LogWarnWithFields("broker", "No origin allow-list configured, any origin may start a flow", nil)
	}
	deliveryOpts := r.renderer.Options()
	log.LogDebugWithFields("broker", "Result delivery configured", map[string]any{
		"admin_path":         deliveryOpts.AdminPath,
		"attempts":           deliveryOpts.Attempts,
		"interval":           deliveryOpts.Interval.String(),
		"handshake_timeout":  deliveryOpts.HandshakeTimeout.String(),
		"broadcast_wildcard": deliveryOpts.BroadcastWildcard,
		"auth_start":         string(r.cfg.AuthStart),
	})

	return r, nil
}

// RouteOf maps a request path to its route name
func RouteOf(path string) string {
	path = strings.ToLower(path)
	switch {
	case path == "" || path == "/" || strings.HasSuffix(path, "/health"):
		return RouteHealth
	case strings.HasSuffix(path, "/auth"):
		return RouteAuth
	case strings.HasSuffix(path, "/callback"):
		return RouteCallback
	default:
		return RouteUnknown
	}
}

type healthResponse struct {
	OK      bool   `json:"ok"`
	Service string `json:"service"`
}

// Handle answers one request. The configuration guard runs before anything
// else, then the method check, then path dispatch.
func (r *Router) Handle(ctx context.Context, req Request) Response {
	if r.missing != nil {
		log.LogErrorWithFields("broker", "Rejecting request, configuration incomplete", map[string]any{
			"error": r.missing.Error(),
		})
		return JSONError(http.StatusInternalServerError, r.missing.Error())
	}

	if req.Method != http.MethodGet {
		return JSONError(http.StatusMethodNotAllowed, msgMethodNotAllowed)
	}

	switch RouteOf(req.Path) {
	case RouteHealth:
		return JSON(http.StatusOK, healthResponse{OK: true, Service: r.cfg.ServiceName})
	case RouteAuth:
		return r.handleAuth(req)
	case RouteCallback:
		return r.handleCallback(ctx, req)
	default:
		return JSONError(http.StatusNotFound, msgNotFound)
	}
}

func (r *Router) handleAuth(req Request) Response {
	if !idp.SupportsProvider(req.Query.Get("provider")) {
		return JSONError(http.StatusBadRequest, msgUnsupportedProvider)
	}

	target := r.resolveOrigin(req)
	if target != origin.Wildcard && !r.policy.IsAllowed(target) {
		log.LogWarnWithFields("broker", "Origin not allowed", map[string]any{
			"origin": target,
		})
		return JSONError(http.StatusBadRequest, msgOriginNotAllowed)
	}

	state, err := r.signer.Mint(target)
	if err != nil {
		log.LogErrorWithFields("broker", "Failed to mint state", map[string]any{
			"error": err.Error(),
		})
		return JSONError(http.StatusInternalServerError, msgStateFailed)
	}

	scope := strings.TrimSpace(req.Query.Get("scope"))
	if scope == "" {
		scope = r.cfg.GitHub.Scope
	}
	authURL := r.provider.AuthURL(state, scope)

	log.LogInfoWithFields("broker", "Starting OAuth flow", map[string]any{
		"origin": target,
		"scope":  scope,
		"mode":   string(r.cfg.AuthStart),
	})

	if r.cfg.AuthStart != config.AuthStartHandshake {
		return Redirect(authURL)
	}

	page, err := r.renderer.HandshakePage(delivery.Handshake{Origin: target, AuthorizeURL: authURL})
	if err != nil {
		log.LogErrorWithFields("broker", "Failed to render handshake page", map[string]any{
			"error": err.Error(),
		})
		return JSONError(http.StatusInternalServerError, msgRenderFailed)
	}
	return HTML(http.StatusOK, page)
}

// resolveOrigin picks the first concrete origin from, in order: the Origin
// and Referer headers, the origin and site_url parameters, then the site_id
// and host parameters read as host names. Headers naming the broker itself
// are skipped.
func (r *Router) resolveOrigin(req Request) string {
	for _, name := range []string{"Origin", "Referer"} {
		if o := origin.Normalize(req.Header.Get(name)); o != origin.Wildcard && o != r.selfOrigin {
			return traceOrigin("header "+name, o)
		}
	}
	for _, name := range []string{"origin", "site_url"} {
		if o := origin.Normalize(req.Query.Get(name)); o != origin.Wildcard {
			return traceOrigin("param "+name, o)
		}
	}
	for _, name := range []string{"site_id", "host"} {
		if o := origin.FromHost(req.Query.Get(name)); o != origin.Wildcard {
			return traceOrigin("param "+name, o)
		}
	}
	return traceOrigin("none", origin.Wildcard)
}

func traceOrigin(source, o string) string {
	log.LogTraceWithFields("broker", "Resolved request origin", map[string]any{
		"source": source,
		"origin": o,
	})
	return o
}

func (r *Router) handleCallback(ctx context.Context, req Request) Response {
	payload, stateErr := r.signer.Verify(req.Query.Get("state"))
	target := origin.Wildcard
	if stateErr == nil {
		target = payload.Origin
	}

	if providerErr := req.Query.Get("error"); providerErr != "" {
		log.LogWarnWithFields("broker", "Provider returned an error", map[string]any{
			"error":  providerErr,
			"origin": target,
		})
		return r.resultPage(http.StatusBadRequest, delivery.Failure(target, providerErrorPrefix+providerErr))
	}

	code := req.Query.Get("code")
	if stateErr != nil || code == "" {
		log.LogWarnWithFields("broker", "Invalid callback", map[string]any{
			"validState": stateErr == nil,
			"hasCode":    code != "",
		})
		return r.resultPage(http.StatusBadRequest, delivery.Failure(target, msgInvalidCallback))
	}

	if r.ledger != nil {
		fresh, err := r.ledger.Consume(ctx, payload.Nonce, payload.IssuedTime().Add(r.signer.Window()))
		if err != nil {
			log.LogErrorWithFields("broker", "Replay check failed", map[string]any{
				"error": err.Error(),
			})
			return r.resultPage(http.StatusInternalServerError, delivery.Failure(target, msgReplayCheckFailed))
		}
		if !fresh {
			log.LogWarnWithFields("broker", "State token replayed", map[string]any{
				"origin": target,
			})
			return r.resultPage(http.StatusBadRequest, delivery.Failure(target, msgInvalidCallback))
		}
	}

	exchangeCtx, cancel := context.WithTimeout(ctx, r.cfg.ExchangeTimeout)
	defer cancel()

	token, err := r.provider.ExchangeCode(exchangeCtx, code)
	if err != nil {
		reason := msgExchangeFailed
		var exErr *idp.ExchangeError
		if errors.As(err, &exErr) && exErr.Reason != "" {
			reason = exErr.Reason
		}
		log.LogErrorWithFields("broker", "Token exchange failed", map[string]any{
			"error":  err.Error(),
			"origin": target,
		})
		return r.resultPage(http.StatusInternalServerError, delivery.Failure(target, reason))
	}

	log.LogInfoWithFields("broker", "OAuth flow completed", map[string]any{
		"origin": target,
	})
	return r.resultPage(http.StatusOK, delivery.Success(target, token))
}

func (r *Router) resultPage(status int, res delivery.Result) Response {
	page, err := r.renderer.ResultPage(res)
	if err != nil {
		log.LogErrorWithFields("broker", "Failed to render result page", map[string]any{
			"error": err.Error(),
		})
		return JSONError(http.StatusInternalServerError, msgRenderFailed)
	}
	return HTML(status, page)
}
