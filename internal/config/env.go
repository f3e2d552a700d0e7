package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// brokerEnv holds the raw environment values read at cold start
type brokerEnv struct {
	ServiceName string `env:"BROKER_SERVICE_NAME"`
	Addr        string `env:"BROKER_ADDR"`
	MetricsAddr string `env:"BROKER_METRICS_ADDR"`
	Provider    string `env:"BROKER_PROVIDER"`

	ClientID      string   `env:"GITHUB_CLIENT_ID"`
	ClientSecret  string   `env:"GITHUB_CLIENT_SECRET"`
	PublicBaseURL string   `env:"PUBLIC_BASE_URL"`
	StateSecret   string   `env:"OAUTH_STATE_SECRET"`
	AllowedOrigin []string `env:"ALLOWED_ORIGINS"          envSeparator:","`
	TrustedOrigin []string `env:"TRUSTED_ORIGINS"          envSeparator:","`
	Scope         string   `env:"OAUTH_SCOPE"`
	AuthorizeURL  string   `env:"GITHUB_AUTHORIZE_URL"`
	TokenURL      string   `env:"GITHUB_TOKEN_URL"`
	UserAgent     string   `env:"GITHUB_USER_AGENT"`

	AuthStart         string        `env:"BROKER_AUTH_START"`
	AdminPath         string        `env:"BROKER_ADMIN_PATH"`
	Attempts          int           `env:"BROKER_DELIVERY_ATTEMPTS"`
	Interval          time.Duration `env:"BROKER_DELIVERY_INTERVAL"`
	HandshakeTimeout  time.Duration `env:"BROKER_HANDSHAKE_TIMEOUT"`
	BroadcastWildcard bool          `env:"BROKER_BROADCAST_WILDCARD" envDefault:"true"`
	ExchangeTimeout   time.Duration `env:"BROKER_EXCHANGE_TIMEOUT"`

	ReplayKind               string        `env:"REPLAY_KIND"`
	RedisAddr                string        `env:"REPLAY_REDIS_ADDR"`
	RedisPassword            string        `env:"REPLAY_REDIS_PASSWORD"`
	RedisDB                  int           `env:"REPLAY_REDIS_DB"`
	KeyPrefix                string        `env:"REPLAY_KEY_PREFIX"`
	FirestoreProject         string        `env:"REPLAY_FIRESTORE_PROJECT"`
	FirestoreDatabase        string        `env:"REPLAY_FIRESTORE_DATABASE"`
	FirestoreCollection      string        `env:"REPLAY_FIRESTORE_COLLECTION"`
	FirestoreCredentialsFile string        `env:"REPLAY_FIRESTORE_CREDENTIALS_FILE"`
	CleanupInterval          time.Duration `env:"REPLAY_CLEANUP_INTERVAL"`
}

// FromEnv builds the configuration from process environment variables. This is
// the only source serverless runtimes have.
func FromEnv() (Config, error) {
	return FromEnvironment(nil)
}

// FromEnvironment is FromEnv over an explicit variable set. A nil map reads
// the process environment.
func FromEnvironment(environ map[string]string) (Config, error) {
	var raw brokerEnv
	if err := env.ParseWithOptions(&raw, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg := Config{
		ServiceName:   raw.ServiceName,
		Addr:          raw.Addr,
		MetricsAddr:   raw.MetricsAddr,
		PublicBaseURL: raw.PublicBaseURL,
		Provider:      raw.Provider,
		GitHub: GitHubConfig{
			ClientID:     raw.ClientID,
			ClientSecret: Secret(raw.ClientSecret),
			Scope:        raw.Scope,
			AuthorizeURL: raw.AuthorizeURL,
			TokenURL:     raw.TokenURL,
			UserAgent:    raw.UserAgent,
		},
		StateSecret:    Secret(raw.StateSecret),
		AllowedOrigins: raw.AllowedOrigin,
		TrustedOrigins: raw.TrustedOrigin,
		AuthStart:      AuthStartMode(raw.AuthStart),
		Delivery: DeliveryConfig{
			AdminPath:         raw.AdminPath,
			Attempts:          raw.Attempts,
			Interval:          raw.Interval,
			HandshakeTimeout:  raw.HandshakeTimeout,
			BroadcastWildcard: raw.BroadcastWildcard,
		},
		ExchangeTimeout: raw.ExchangeTimeout,
		Replay: ReplayConfig{
			Kind:                     ReplayKind(raw.ReplayKind),
			RedisAddr:                raw.RedisAddr,
			RedisPassword:            Secret(raw.RedisPassword),
			RedisDB:                  raw.RedisDB,
			KeyPrefix:                raw.KeyPrefix,
			FirestoreProject:         raw.FirestoreProject,
			FirestoreDatabase:        raw.FirestoreDatabase,
			FirestoreCollection:      raw.FirestoreCollection,
			FirestoreCredentialsFile: raw.FirestoreCredentialsFile,
			CleanupInterval:          raw.CleanupInterval,
		},
	}

	return finish(cfg)
}
