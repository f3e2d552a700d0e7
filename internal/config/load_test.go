package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_ResolvesEnvReferences(t *testing.T) {
	t.Setenv("BROKER_ENV", "")
	t.Setenv("TEST_GH_ID", "Iv1.abc")
	t.Setenv("TEST_GH_SECRET", "gh-secret")
	t.Setenv("TEST_STATE_SECRET", `"quoted-secret"`)
	t.Setenv("TEST_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Parse([]byte(`{
		"version": "v1",
		"publicBaseUrl": "https://oauth.example.com/",
		"github": {
			"clientId": {"$env": "TEST_GH_ID"},
			"clientSecret": {"$env": "TEST_GH_SECRET"}
		},
		"stateSecret": {"$env": "TEST_STATE_SECRET"},
		"allowedOrigins": {"$env": "TEST_ORIGINS"},
		"trustedOrigins": ["https://cms.example"]
	}`))
	require.NoError(t, err)

	assert.Equal(t, "Iv1.abc", cfg.GitHub.ClientID)
	assert.Equal(t, Secret("gh-secret"), cfg.GitHub.ClientSecret)
	assert.Equal(t, Secret("quoted-secret"), cfg.StateSecret)
	assert.Equal(t, "https://oauth.example.com", cfg.PublicBaseURL)
	assert.Equal(t, "https://oauth.example.com/callback", cfg.CallbackURL())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, []string{"https://cms.example"}, cfg.TrustedOrigins)
	assert.NoError(t, cfg.Missing())
}

func TestParse_Defaults(t *testing.T) {
	t.Setenv("BROKER_ENV", "")

	cfg, err := Parse([]byte(`{"version": "v1"}`))
	require.NoError(t, err)

	assert.Equal(t, DefaultServiceName, cfg.ServiceName)
	assert.Equal(t, DefaultAddr, cfg.Addr)
	assert.Equal(t, DefaultProvider, cfg.Provider)
	assert.Equal(t, DefaultScope, cfg.GitHub.Scope)
	assert.Equal(t, DefaultServiceName, cfg.GitHub.UserAgent)
	assert.Equal(t, AuthStartRedirect, cfg.AuthStart)
	assert.Equal(t, DefaultAdminPath, cfg.Delivery.AdminPath)
	assert.Equal(t, DefaultAttempts, cfg.Delivery.Attempts)
	assert.Equal(t, DefaultInterval, cfg.Delivery.Interval)
	assert.Equal(t, DefaultHandshakeTimeout, cfg.Delivery.HandshakeTimeout)
	assert.True(t, cfg.Delivery.BroadcastWildcard)
	assert.Equal(t, DefaultExchangeTimeout, cfg.ExchangeTimeout)
	assert.Equal(t, ReplayKindNone, cfg.Replay.Kind)
	assert.Empty(t, cfg.AllowedOrigins)
}

func TestParse_Overrides(t *testing.T) {
	t.Setenv("BROKER_ENV", "")

	cfg, err := Parse([]byte(`{
		"version": "v1",
		"github": {"scope": "public_repo", "userAgent": "my-cms"},
		"authStart": "handshake",
		"exchangeTimeout": "3s",
		"delivery": {"adminPath": "/cms/", "attempts": 5, "interval": "200ms", "handshakeTimeout": "1s", "broadcastWildcard": false},
		"replay": {"kind": "redis", "redisAddr": "localhost:6379", "redisDb": 2, "cleanupInterval": "30s"}
	}`))
	require.NoError(t, err)

	assert.Equal(t, "public_repo", cfg.GitHub.Scope)
	assert.Equal(t, "my-cms", cfg.GitHub.UserAgent)
	assert.Equal(t, AuthStartHandshake, cfg.AuthStart)
	assert.Equal(t, 3*time.Second, cfg.ExchangeTimeout)
	assert.Equal(t, "/cms/", cfg.Delivery.AdminPath)
	assert.Equal(t, 5, cfg.Delivery.Attempts)
	assert.Equal(t, 200*time.Millisecond, cfg.Delivery.Interval)
	assert.Equal(t, time.Second, cfg.Delivery.HandshakeTimeout)
	assert.False(t, cfg.Delivery.BroadcastWildcard)
	assert.Equal(t, ReplayKindRedis, cfg.Replay.Kind)
	assert.Equal(t, "localhost:6379", cfg.Replay.RedisAddr)
	assert.Equal(t, 2, cfg.Replay.RedisDB)
	assert.Equal(t, 30*time.Second, cfg.Replay.CleanupInterval)
}

func TestParse_Errors(t *testing.T) {
	t.Setenv("BROKER_ENV", "")

	tests := []struct {
		name string
		data string
		want string
	}{
		{"not_json", `{`, "parsing config JSON"},
		{"no_version", `{}`, "config version is required"},
		{"wrong_version", `{"version": "v0"}`, "unsupported config version"},
		{"bad_reference", `{"version": "v1", "stateSecret": {"$file": "/x"}}`, "unknown reference type"},
		{"bad_value_type", `{"version": "v1", "publicBaseUrl": 42}`, "must be string or reference object"},
		{"bad_duration", `{"version": "v1", "exchangeTimeout": "later"}`, "parsing exchangeTimeout"},
		{"bad_provider", `{"version": "v1", "provider": "gitlab"}`, "provider \"gitlab\" is not supported"},
		{"bad_auth_start", `{"version": "v1", "authStart": "popup"}`, "authStart must be"},
		{"relative_base_url", `{"version": "v1", "publicBaseUrl": "oauth.example.com"}`, "absolute http(s) URL"},
		{"redis_without_addr", `{"version": "v1", "replay": {"kind": "redis"}}`, "replay.redisAddr is required"},
		{"unknown_replay", `{"version": "v1", "replay": {"kind": "etcd"}}`, "unknown replay kind"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("BROKER_ENV", "")

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version": "v1", "addr": ":9999"}`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Addr)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestMissing(t *testing.T) {
	t.Run("lists_only_absent_settings_in_order", func(t *testing.T) {
		cfg := Config{GitHub: GitHubConfig{ClientID: "id"}, StateSecret: "s"}
		err := cfg.Missing()
		require.Error(t, err)

		var missing *MissingError
		require.True(t, errors.As(err, &missing))
		assert.Equal(t, []string{EnvClientSecret, EnvPublicBaseURL}, missing.Fields)
		assert.Equal(t, "Missing required env: GITHUB_CLIENT_SECRET, PUBLIC_BASE_URL", err.Error())
	})

	t.Run("all_absent", func(t *testing.T) {
		err := Config{}.Missing()
		require.Error(t, err)
		assert.Equal(t, "Missing required env: GITHUB_CLIENT_ID, GITHUB_CLIENT_SECRET, PUBLIC_BASE_URL, OAUTH_STATE_SECRET", err.Error())
	})

	t.Run("complete", func(t *testing.T) {
		cfg := Config{
			GitHub:        GitHubConfig{ClientID: "id", ClientSecret: "secret"},
			PublicBaseURL: "https://o.example",
			StateSecret:   "s",
		}
		assert.NoError(t, cfg.Missing())
	})
}

func TestDevStateSecretFallback(t *testing.T) {
	t.Run("development", func(t *testing.T) {
		t.Setenv("BROKER_ENV", "development")
		cfg, err := Parse([]byte(`{"version": "v1"}`))
		require.NoError(t, err)
		assert.Equal(t, Secret(DevStateSecret), cfg.StateSecret)
	})

	t.Run("production", func(t *testing.T) {
		t.Setenv("BROKER_ENV", "")
		cfg, err := Parse([]byte(`{"version": "v1"}`))
		require.NoError(t, err)
		assert.Empty(t, cfg.StateSecret)
	})

	t.Run("configured_secret_wins", func(t *testing.T) {
		t.Setenv("BROKER_ENV", "dev")
		cfg, err := Parse([]byte(`{"version": "v1", "stateSecret": "real"}`))
		require.NoError(t, err)
		assert.Equal(t, Secret("real"), cfg.StateSecret)
	})
}

func TestParseConfigValue(t *testing.T) {
	t.Setenv("TEST_VALUE", "'single'")

	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"plain", `"hello"`, "hello", false},
		{"null", `null`, "", false},
		{"env", `{"$env": "TEST_VALUE"}`, "single", false},
		{"unset_env", `{"$env": "TEST_VALUE_NOT_SET_ANYWHERE"}`, "", false},
		{"unknown_ref", `{"$vault": "x"}`, "", true},
		{"number", `12`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseConfigValue(json.RawMessage(tt.raw))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
