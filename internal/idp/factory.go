package idp

import (
	"strings"

	"github.com/dgellow/github-oauth-broker/internal/config"
)

// SupportsProvider reports whether name selects the GitHub provider. An empty
// name means the default.
func SupportsProvider(name string) bool {
	name = strings.TrimSpace(name)
	return name == "" || strings.EqualFold(name, config.DefaultProvider)
}

// NewProvider creates the Provider named by name from the broker config
func NewProvider(name string, cfg config.Config) (Provider, error) {
	if !SupportsProvider(name) {
		return nil, ErrUnsupportedProvider
	}
	return NewGitHubProvider(GitHubOptions{
		ClientID:     cfg.GitHub.ClientID,
		ClientSecret: string(cfg.GitHub.ClientSecret),
		RedirectURI:  cfg.CallbackURL(),
		AuthorizeURL: cfg.GitHub.AuthorizeURL,
		TokenURL:     cfg.GitHub.TokenURL,
		UserAgent:    cfg.GitHub.UserAgent,
	}), nil
}
