package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dgellow/github-oauth-broker/internal/envutil"
	"github.com/dgellow/github-oauth-broker/internal/log"
)

// SupportedVersion is the config file format version
const SupportedVersion = "v1"

type rawGitHub struct {
	ClientID     json.RawMessage `json:"clientId"`
	ClientSecret json.RawMessage `json:"clientSecret"`
	Scope        string          `json:"scope"`
	AuthorizeURL string          `json:"authorizeUrl"`
	TokenURL     string          `json:"tokenUrl"`
	UserAgent    string          `json:"userAgent"`
}

type rawDelivery struct {
	AdminPath         string `json:"adminPath"`
	Attempts          int    `json:"attempts"`
	Interval          string `json:"interval"`
	HandshakeTimeout  string `json:"handshakeTimeout"`
	BroadcastWildcard *bool  `json:"broadcastWildcard"`
}

type rawReplay struct {
	Kind                     ReplayKind      `json:"kind"`
	RedisAddr                json.RawMessage `json:"redisAddr"`
	RedisPassword            json.RawMessage `json:"redisPassword"`
	RedisDB                  int             `json:"redisDb"`
	KeyPrefix                string          `json:"keyPrefix"`
	FirestoreProject         json.RawMessage `json:"firestoreProject"`
	FirestoreDatabase        string          `json:"firestoreDatabase"`
	FirestoreCollection      string          `json:"firestoreCollection"`
	FirestoreCredentialsFile string          `json:"firestoreCredentialsFile"`
	CleanupInterval          string          `json:"cleanupInterval"`
}

type rawConfig struct {
	Version         string          `json:"version"`
	ServiceName     string          `json:"serviceName"`
	Addr            string          `json:"addr"`
	MetricsAddr     string          `json:"metricsAddr"`
	PublicBaseURL   json.RawMessage `json:"publicBaseUrl"`
	Provider        string          `json:"provider"`
	GitHub          rawGitHub       `json:"github"`
	StateSecret     json.RawMessage `json:"stateSecret"`
	AllowedOrigins  json.RawMessage `json:"allowedOrigins"`
	TrustedOrigins  json.RawMessage `json:"trustedOrigins"`
	AuthStart       AuthStartMode   `json:"authStart"`
	Delivery        rawDelivery     `json:"delivery"`
	ExchangeTimeout string          `json:"exchangeTimeout"`
	Replay          rawReplay       `json:"replay"`
}

// Load reads a JSON config file, resolving {"$env": "VAR"} references.
// Required values that resolve to nothing are not an error: the broker starts
// and answers every request with a configuration error.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse builds a Config from JSON config file content
func Parse(data []byte) (Config, error) {
	var raw rawConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("parsing config JSON: %w", err)
	}

	if raw.Version == "" {
		return Config{}, fmt.Errorf("config version is required")
	}
	if raw.Version != SupportedVersion {
		return Config{}, fmt.Errorf("unsupported config version: %s", raw.Version)
	}

	cfg := Config{
		ServiceName: raw.ServiceName,
		Addr:        raw.Addr,
		MetricsAddr: raw.MetricsAddr,
		Provider:    raw.Provider,
		GitHub: GitHubConfig{
			Scope:        raw.GitHub.Scope,
			AuthorizeURL: raw.GitHub.AuthorizeURL,
			TokenURL:     raw.GitHub.TokenURL,
			UserAgent:    raw.GitHub.UserAgent,
		},
		AuthStart: raw.AuthStart,
		Delivery: DeliveryConfig{
			AdminPath:         raw.Delivery.AdminPath,
			Attempts:          raw.Delivery.Attempts,
			BroadcastWildcard: true,
		},
		Replay: ReplayConfig{
			Kind:                     raw.Replay.Kind,
			RedisDB:                  raw.Replay.RedisDB,
			KeyPrefix:                raw.Replay.KeyPrefix,
			FirestoreDatabase:        raw.Replay.FirestoreDatabase,
			FirestoreCollection:      raw.Replay.FirestoreCollection,
			FirestoreCredentialsFile: raw.Replay.FirestoreCredentialsFile,
		},
	}
	if raw.Delivery.BroadcastWildcard != nil {
		cfg.Delivery.BroadcastWildcard = *raw.Delivery.BroadcastWildcard
	}

	values := []struct {
		name string
		raw  json.RawMessage
		dst  *string
	}{
		{"publicBaseUrl", raw.PublicBaseURL, &cfg.PublicBaseURL},
		{"github.clientId", raw.GitHub.ClientID, &cfg.GitHub.ClientID},
		{"replay.redisAddr", raw.Replay.RedisAddr, &cfg.Replay.RedisAddr},
		{"replay.firestoreProject", raw.Replay.FirestoreProject, &cfg.Replay.FirestoreProject},
	}
	for _, v := range values {
		value, err := ParseConfigValue(v.raw)
		if err != nil {
			return Config{}, fmt.Errorf("parsing %s: %w", v.name, err)
		}
		*v.dst = value
	}

	secrets := []struct {
		name string
		raw  json.RawMessage
		dst  *Secret
	}{
		{"github.clientSecret", raw.GitHub.ClientSecret, &cfg.GitHub.ClientSecret},
		{"stateSecret", raw.StateSecret, &cfg.StateSecret},
		{"replay.redisPassword", raw.Replay.RedisPassword, &cfg.Replay.RedisPassword},
	}
	for _, s := range secrets {
		value, err := ParseConfigValue(s.raw)
		if err != nil {
			return Config{}, fmt.Errorf("parsing %s: %w", s.name, err)
		}
		*s.dst = Secret(value)
	}

	var err error
	if cfg.AllowedOrigins, err = parseOriginList(raw.AllowedOrigins); err != nil {
		return Config{}, fmt.Errorf("parsing allowedOrigins: %w", err)
	}
	if cfg.TrustedOrigins, err = parseOriginList(raw.TrustedOrigins); err != nil {
		return Config{}, fmt.Errorf("parsing trustedOrigins: %w", err)
	}

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"delivery.interval", raw.Delivery.Interval, &cfg.Delivery.Interval},
		{"delivery.handshakeTimeout", raw.Delivery.HandshakeTimeout, &cfg.Delivery.HandshakeTimeout},
		{"exchangeTimeout", raw.ExchangeTimeout, &cfg.ExchangeTimeout},
		{"replay.cleanupInterval", raw.Replay.CleanupInterval, &cfg.Replay.CleanupInterval},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return Config{}, fmt.Errorf("parsing %s: %w", d.name, err)
		}
		*d.dst = parsed
	}

	return finish(cfg)
}

// finish applies defaults and validation shared by every config source
func finish(cfg Config) (Config, error) {
	cfg.normalize()
	if envutil.IsDev() && cfg.StateSecret == "" {
		log.LogWarnWithFields("config", "No state secret configured, using the development default", map[string]any{
			"env": EnvStateSecret,
		})
	}
	cfg.applyDevFallbacks(envutil.IsDev())

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	if err := cfg.Missing(); err != nil {
		log.LogWarnWithFields("config", "Required configuration missing, every request will fail", map[string]any{
			"error": err.Error(),
		})
	}
	return cfg, nil
}

// parseOriginList accepts a JSON array of strings or a single value (plain or
// $env reference) holding a comma separated list.
func parseOriginList(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		out := make([]string, 0, len(list))
		for i, item := range list {
			value, err := ParseConfigValue(item)
			if err != nil {
				return nil, fmt.Errorf("parsing item %d: %w", i, err)
			}
			out = append(out, value)
		}
		return splitList(out), nil
	}

	value, err := ParseConfigValue(raw)
	if err != nil {
		return nil, err
	}
	return splitList(strings.Split(value, ",")), nil
}
