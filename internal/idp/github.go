package idp

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const (
	reasonExchangeFailed   = "Token exchange failed"
	reasonExchangeTimedOut = "Token exchange timed out"
)

// GitHubProvider implements the Provider interface for GitHub OAuth apps.
// GitHub uses OAuth 2.0 (not OIDC) and only the token endpoint is called.
type GitHubProvider struct {
	config oauth2.Config
	client *http.Client
}

// GitHubOptions configures a GitHubProvider. Empty URLs select github.com
type GitHubOptions struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	AuthorizeURL string
	TokenURL     string
	UserAgent    string
	// Transport overrides the outbound round tripper, for tests
	Transport http.RoundTripper
}

// NewGitHubProvider creates a new GitHub OAuth provider
func NewGitHubProvider(opts GitHubOptions) *GitHubProvider {
	endpoint := github.Endpoint
	if opts.AuthorizeURL != "" {
		endpoint.AuthURL = opts.AuthorizeURL
	}
	if opts.TokenURL != "" {
		endpoint.TokenURL = opts.TokenURL
	}
	// GitHub expects client_id and client_secret in the form body.
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	headers := http.Header{}
	headers.Set("Accept", "application/json")
	if opts.UserAgent != "" {
		headers.Set("User-Agent", opts.UserAgent)
	}

	return &GitHubProvider{
		config: oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  opts.RedirectURI,
			Endpoint:     endpoint,
		},
		client: &http.Client{
			Transport: &headerTransport{base: opts.Transport, headers: headers},
		},
	}
}

// Type returns the provider type
func (p *GitHubProvider) Type() string {
	return "github"
}

// AuthURL generates the authorization URL. GitHub takes a comma separated
// scope list, so scope is passed through untouched.
func (p *GitHubProvider) AuthURL(state, scope string) string {
	if scope == "" {
		return p.config.AuthCodeURL(state)
	}
	return p.config.AuthCodeURL(state, oauth2.SetAuthURLParam("scope", scope))
}

// ExchangeCode exchanges an authorization code for an access token. The
// caller bounds the call through ctx.
func (p *GitHubProvider) ExchangeCode(ctx context.Context, code string) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)

	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return "", exchangeError(ctx, err)
	}
	if token.AccessToken == "" {
		return "", &ExchangeError{Reason: reasonExchangeFailed}
	}
	return token.AccessToken, nil
}

func exchangeError(ctx context.Context, err error) *ExchangeError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &ExchangeError{Reason: reasonExchangeTimedOut, Err: err}
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		switch {
		case retrieveErr.ErrorDescription != "":
			return &ExchangeError{Reason: retrieveErr.ErrorDescription, Err: err}
		case retrieveErr.ErrorCode != "":
			return &ExchangeError{Reason: retrieveErr.ErrorCode, Err: err}
		}
	}
	return &ExchangeError{Reason: reasonExchangeFailed, Err: err}
}
