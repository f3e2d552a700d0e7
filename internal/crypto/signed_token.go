package crypto

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultStateWindow is how long a minted state stays acceptable at the callback
const DefaultStateWindow = 10 * time.Minute

// WildcardOrigin is carried by states that are not bound to a concrete origin
const WildcardOrigin = "*"

// ErrInvalidState is the only error Verify returns. Callers cannot tell which
// check failed.
var ErrInvalidState = errors.New("invalid state")

// StatePayload is the signed content of a state token. Field names match the
// tokens minted by the existing JavaScript brokers so a shared secret keeps
// both interchangeable.
type StatePayload struct {
	Nonce    string `json:"nonce"`
	Origin   string `json:"origin"`
	IssuedAt int64  `json:"ts"` // unix milliseconds
}

// IssuedTime returns IssuedAt as a time.Time
func (p StatePayload) IssuedTime() time.Time {
	return time.UnixMilli(p.IssuedAt)
}

// StateSigner mints and verifies self-contained OAuth state tokens:
// base64url(json payload) "." hex(hmac-sha256(payload)).
type StateSigner struct {
	signingKey []byte
	window     time.Duration
	now        func() time.Time
}

// StateOption customizes a StateSigner
type StateOption func(*StateSigner)

// WithClock overrides the signer's time source
func WithClock(now func() time.Time) StateOption {
	return func(s *StateSigner) {
		s.now = now
	}
}

// NewStateSigner creates a signer. A non-positive window means DefaultStateWindow
func NewStateSigner(signingKey []byte, window time.Duration, opts ...StateOption) StateSigner {
	if window <= 0 {
		window = DefaultStateWindow
	}
	s := StateSigner{
		signingKey: signingKey,
		window:     window,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Window returns the replay window of this signer
func (s StateSigner) Window() time.Duration {
	return s.window
}

// Mint builds a fresh state bound to origin
func (s StateSigner) Mint(origin string) (string, error) {
	nonce, err := GenerateNonce()
	if err != nil {
		return "", err
	}
	if origin == "" {
		origin = WildcardOrigin
	}

	payload := StatePayload{
		Nonce:    nonce,
		Origin:   origin,
		IssuedAt: s.now().UnixMilli(),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal state: %w", err)
	}

	encoded := base64.RawURLEncoding.EncodeToString(data)
	return encoded + "." + SignData(encoded, s.signingKey), nil
}

// Verify checks the signature and the replay window and returns the payload
func (s StateSigner) Verify(token string) (StatePayload, error) {
	encoded, signature, ok := strings.Cut(token, ".")
	if !ok || encoded == "" || signature == "" {
		return StatePayload{}, ErrInvalidState
	}

	if !ValidateSignedData(encoded, signature, s.signingKey) {
		return StatePayload{}, ErrInvalidState
	}

	data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(encoded, "="))
	if err != nil {
		return StatePayload{}, ErrInvalidState
	}

	var payload StatePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return StatePayload{}, ErrInvalidState
	}
	if payload.Nonce == "" || payload.IssuedAt == 0 {
		return StatePayload{}, ErrInvalidState
	}

	if s.now().UnixMilli()-payload.IssuedAt > s.window.Milliseconds() {
		return StatePayload{}, ErrInvalidState
	}

	if payload.Origin == "" {
		payload.Origin = WildcardOrigin
	}
	return payload, nil
}
