package idp

import (
	"net/url"
	"testing"

	"github.com/dgellow/github-oauth-broker/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider(t *testing.T) {
	cfg := config.Config{
		PublicBaseURL: "https://oauth.example.com",
		GitHub: config.GitHubConfig{
			ClientID:     "test-client-id",
			ClientSecret: config.Secret("test-client-secret"),
		},
	}

	tests := []struct {
		name     string
		provider string
		wantErr  bool
	}{
		{name: "empty_means_github", provider: ""},
		{name: "github", provider: "github"},
		{name: "case_insensitive", provider: "GitHub"},
		{name: "gitlab", provider: "gitlab", wantErr: true},
		{name: "bitbucket", provider: "bitbucket", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(tt.provider, cfg)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedProvider)
				assert.Nil(t, p)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "github", p.Type())
		})
	}
}

func TestNewProvider_UsesCallbackURL(t *testing.T) {
	cfg := config.Config{
		PublicBaseURL: "https://oauth.example.com/broker",
		GitHub:        config.GitHubConfig{ClientID: "id"},
	}
	p, err := NewProvider("github", cfg)
	require.NoError(t, err)

	u, err := url.Parse(p.AuthURL("state", "repo"))
	require.NoError(t, err)
	assert.Equal(t, "https://oauth.example.com/broker/callback", u.Query().Get("redirect_uri"))
}
