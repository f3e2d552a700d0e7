package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

// Secret is a string type that redacts itself when printed
type Secret string

// String implements fmt.Stringer to redact the secret
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***"
}

// MarshalJSON implements json.Marshaler to prevent secrets in JSON logs
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("***")
}

// AuthStartMode selects how /auth answers
type AuthStartMode string

const (
	// AuthStartRedirect answers /auth with a 302 to the provider
	AuthStartRedirect AuthStartMode = "redirect"
	// AuthStartHandshake answers /auth with a page that first syncs with the
	// opener window, then navigates to the provider.
	AuthStartHandshake AuthStartMode = "handshake"
)

// ReplayKind selects the consumed-nonce ledger backend
type ReplayKind string

const (
	ReplayKindNone      ReplayKind = "none"
	ReplayKindMemory    ReplayKind = "memory"
	ReplayKindRedis     ReplayKind = "redis"
	ReplayKindFirestore ReplayKind = "firestore"
)

// Names of the required settings as they appear in the environment. They are
// also what the configuration error reports, whatever the config source.
const (
	EnvClientID      = "GITHUB_CLIENT_ID"
	EnvClientSecret  = "GITHUB_CLIENT_SECRET"
	EnvPublicBaseURL = "PUBLIC_BASE_URL"
	EnvStateSecret   = "OAUTH_STATE_SECRET"
)

// DevStateSecret is used when no state secret is configured in development mode
const DevStateSecret = "change-me"

const (
	DefaultServiceName      = "github-oauth-broker"
	DefaultAddr             = ":8080"
	DefaultProvider         = "github"
	DefaultScope            = "repo,user"
	DefaultAdminPath        = "/admin/"
	DefaultAttempts         = 40
	DefaultInterval         = 50 * time.Millisecond
	DefaultHandshakeTimeout = 3 * time.Second
	DefaultExchangeTimeout  = 10 * time.Second
	DefaultCleanupInterval  = time.Minute
	DefaultKeyPrefix        = "oauth-broker:nonce:"
	DefaultCollection       = "oauth_broker_nonces"
)

// GitHubConfig holds the OAuth application settings
type GitHubConfig struct {
	ClientID     string
	ClientSecret Secret
	Scope        string
	// AuthorizeURL and TokenURL override the github.com endpoints (GitHub Enterprise)
	AuthorizeURL string
	TokenURL     string
	UserAgent    string
}

// DeliveryConfig tunes the result and handshake pages
type DeliveryConfig struct {
	AdminPath         string
	Attempts          int
	Interval          time.Duration
	HandshakeTimeout  time.Duration
	BroadcastWildcard bool
}

// ReplayConfig configures the optional consumed-nonce ledger
type ReplayConfig struct {
	Kind ReplayKind

	RedisAddr     string
	RedisPassword Secret
	RedisDB       int
	KeyPrefix     string

	FirestoreProject         string
	FirestoreDatabase        string
	FirestoreCollection      string
	FirestoreCredentialsFile string

	CleanupInterval time.Duration
}

// Config is the broker configuration. It is built once and never mutated
type Config struct {
	ServiceName   string
	Addr          string
	MetricsAddr   string
	PublicBaseURL string
	Provider      string

	GitHub GitHubConfig

	StateSecret    Secret
	AllowedOrigins []string
	TrustedOrigins []string

	AuthStart       AuthStartMode
	Delivery        DeliveryConfig
	ExchangeTimeout time.Duration

	Replay ReplayConfig
}

// Defaults returns a Config with every optional field set
func Defaults() Config {
	return Config{
		ServiceName: DefaultServiceName,
		Addr:        DefaultAddr,
		Provider:    DefaultProvider,
		GitHub: GitHubConfig{
			Scope:     DefaultScope,
			UserAgent: DefaultServiceName,
		},
		AuthStart: AuthStartRedirect,
		Delivery: DeliveryConfig{
			AdminPath:         DefaultAdminPath,
			Attempts:          DefaultAttempts,
			Interval:          DefaultInterval,
			HandshakeTimeout:  DefaultHandshakeTimeout,
			BroadcastWildcard: true,
		},
		ExchangeTimeout: DefaultExchangeTimeout,
		Replay: ReplayConfig{
			Kind:                ReplayKindNone,
			KeyPrefix:           DefaultKeyPrefix,
			FirestoreCollection: DefaultCollection,
			CleanupInterval:     DefaultCleanupInterval,
		},
	}
}

// normalize fills zero values with defaults and canonicalizes strings.
// BroadcastWildcard is left alone: false is a meaningful setting.
func (c *Config) normalize() {
	d := Defaults()

	c.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.PublicBaseURL), "/")
	c.GitHub.ClientID = strings.TrimSpace(c.GitHub.ClientID)
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	c.AllowedOrigins = splitList(c.AllowedOrigins)
	c.TrustedOrigins = splitList(c.TrustedOrigins)

	if c.ServiceName == "" {
		c.ServiceName = d.ServiceName
	}
	if c.Addr == "" {
		c.Addr = d.Addr
	}
	if c.Provider == "" {
		c.Provider = d.Provider
	}
	if c.GitHub.Scope == "" {
		c.GitHub.Scope = d.GitHub.Scope
	}
	if c.GitHub.UserAgent == "" {
		c.GitHub.UserAgent = c.ServiceName
	}
	if c.AuthStart == "" {
		c.AuthStart = d.AuthStart
	}
	if c.Delivery.AdminPath == "" {
		c.Delivery.AdminPath = d.Delivery.AdminPath
	}
	if c.Delivery.Attempts == 0 {
		c.Delivery.Attempts = d.Delivery.Attempts
	}
	if c.Delivery.Interval == 0 {
		c.Delivery.Interval = d.Delivery.Interval
	}
	if c.Delivery.HandshakeTimeout == 0 {
		c.Delivery.HandshakeTimeout = d.Delivery.HandshakeTimeout
	}
	if c.ExchangeTimeout == 0 {
		c.ExchangeTimeout = d.ExchangeTimeout
	}
	if c.Replay.Kind == "" {
		c.Replay.Kind = d.Replay.Kind
	}
	if c.Replay.KeyPrefix == "" {
		c.Replay.KeyPrefix = d.Replay.KeyPrefix
	}
	if c.Replay.FirestoreCollection == "" {
		c.Replay.FirestoreCollection = d.Replay.FirestoreCollection
	}
	if c.Replay.CleanupInterval == 0 {
		c.Replay.CleanupInterval = d.Replay.CleanupInterval
	}
}

// splitList flattens comma separated entries and drops blanks
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for part := range strings.SplitSeq(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// MissingError reports required settings that are absent. A broker holding
// such a config answers every request with it.
type MissingError struct {
	Fields []string
}

func (e *MissingError) Error() string {
	return "Missing required env: " + strings.Join(e.Fields, ", ")
}

// Missing returns a *MissingError naming the absent required settings, or nil
func (c Config) Missing() error {
	var fields []string
	if c.GitHub.ClientID == "" {
		fields = append(fields, EnvClientID)
	}
	if c.GitHub.ClientSecret == "" {
		fields = append(fields, EnvClientSecret)
	}
	if c.PublicBaseURL == "" {
		fields = append(fields, EnvPublicBaseURL)
	}
	if c.StateSecret == "" {
		fields = append(fields, EnvStateSecret)
	}
	if len(fields) == 0 {
		return nil
	}
	return &MissingError{Fields: fields}
}

// CallbackURL is the fixed redirect URI registered with the provider
func (c Config) CallbackURL() string {
	if c.PublicBaseURL == "" {
		return ""
	}
	callback, err := url.JoinPath(c.PublicBaseURL, "callback")
	if err != nil {
		return c.PublicBaseURL + "/callback"
	}
	return callback
}

// Validate reports settings that are present but unusable. Missing required
// settings are not reported here; see Missing.
func (c Config) Validate() error {
	if c.Provider != DefaultProvider {
		return fmt.Errorf("provider %q is not supported, only %q", c.Provider, DefaultProvider)
	}
	if c.PublicBaseURL != "" && !strings.HasPrefix(c.PublicBaseURL, "http://") && !strings.HasPrefix(c.PublicBaseURL, "https://") {
		return fmt.Errorf("publicBaseUrl must be an absolute http(s) URL")
	}
	switch c.AuthStart {
	case AuthStartRedirect, AuthStartHandshake:
	default:
		return fmt.Errorf("authStart must be %q or %q, got %q", AuthStartRedirect, AuthStartHandshake, c.AuthStart)
	}
	if !strings.HasPrefix(c.Delivery.AdminPath, "/") {
		return fmt.Errorf("delivery.adminPath must start with /")
	}
	if c.Delivery.Attempts < 1 {
		return fmt.Errorf("delivery.attempts must be at least 1")
	}
	if c.Delivery.Interval < 0 || c.Delivery.HandshakeTimeout < 0 {
		return fmt.Errorf("delivery durations cannot be negative")
	}
	if c.ExchangeTimeout < 0 {
		return fmt.Errorf("exchangeTimeout cannot be negative")
	}
	return c.Replay.validate()
}

func (r ReplayConfig) validate() error {
	switch r.Kind {
	case ReplayKindNone, ReplayKindMemory:
	case ReplayKindRedis:
		if r.RedisAddr == "" {
			return fmt.Errorf("replay.redisAddr is required when using redis")
		}
	case ReplayKindFirestore:
		if r.FirestoreProject == "" {
			return fmt.Errorf("replay.firestoreProject is required when using firestore")
		}
	default:
		return fmt.Errorf("unknown replay kind: %s", r.Kind)
	}
	if r.CleanupInterval < 0 {
		return fmt.Errorf("replay.cleanupInterval cannot be negative")
	}
	return nil
}

// applyDevFallbacks mirrors the deployed brokers, which default the state
// secret when running locally.
func (c *Config) applyDevFallbacks(dev bool) {
	if dev && c.StateSecret == "" {
		c.StateSecret = DevStateSecret
	}
}

// ParseConfigValue resolves a plain string or a {"$env": "VAR"} reference.
// An unset variable resolves to "" so that the broker starts and fails closed.
func ParseConfigValue(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}

	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str, nil
	}

	var ref map[string]string
	if err := json.Unmarshal(raw, &ref); err != nil {
		return "", fmt.Errorf("config value must be string or reference object")
	}

	if envVar, ok := ref["$env"]; ok {
		value := os.Getenv(envVar)
		// Strip surrounding quotes if present (only matching pairs)
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}
		return value, nil
	}

	return "", fmt.Errorf("unknown reference type in config value")
}
