package idp

import (
	"context"
	"errors"
	"net/http"
)

// ErrUnsupportedProvider is returned for any provider other than GitHub
var ErrUnsupportedProvider = errors.New("unsupported provider")

// Provider abstracts the authorization code flow against one OAuth provider
type Provider interface {
	// Type returns the provider type identifier (e.g., "github")
	Type() string

	// AuthURL generates the authorization URL for the OAuth flow
	AuthURL(state, scope string) string

	// ExchangeCode exchanges an authorization code for an access token.
	// Failures are reported as *ExchangeError.
	ExchangeCode(ctx context.Context, code string) (string, error)
}

// ExchangeError is a failed code exchange. Reason is safe to show to the user
type ExchangeError struct {
	Reason string
	Err    error
}

func (e *ExchangeError) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

func (e *ExchangeError) Unwrap() error {
	return e.Err
}

// headerTransport sets fixed headers on every outbound request
type headerTransport struct {
	base    http.RoundTripper
	headers http.Header
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header[k] = v
	}
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}
