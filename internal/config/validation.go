package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"
)

// ValidationResult holds validation errors and warnings
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// ValidationError represents a validation issue
type ValidationError struct {
	Path    string
	Message string
}

// IsValid returns true if there are no errors
func (v *ValidationResult) IsValid() bool {
	return len(v.Errors) == 0
}

func (v *ValidationResult) addError(path, format string, args ...any) {
	v.Errors = append(v.Errors, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (v *ValidationResult) addWarning(path, format string, args ...any) {
	v.Warnings = append(v.Warnings, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
}

var bashStyleRegex = regexp.MustCompile(`\$\{?([A-Z_][A-Z0-9_]*)\}?`)

// ValidateFile validates a config file structure without requiring env vars
func ValidateFile(path string) (*ValidationResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return ValidateData(data), nil
}

// ValidateData validates config file content
func ValidateData(data []byte) *ValidationResult {
	result := &ValidationResult{}

	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		result.addError("", "invalid JSON: %v", err)
		return result
	}

	checkBashStyleSyntax(rawConfig, "", result)

	version, ok := rawConfig["version"].(string)
	if !ok {
		result.addError("version", "version field is required. Hint: Add \"version\": %q", SupportedVersion)
	} else if version != SupportedVersion {
		result.addError("version", "unsupported version '%s' - use '%s'", version, SupportedVersion)
	}

	validateRequiredValue(rawConfig["publicBaseUrl"], "publicBaseUrl", EnvPublicBaseURL, result)
	if base, ok := rawConfig["publicBaseUrl"].(string); ok && base != "" &&
		!strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		result.addError("publicBaseUrl", "publicBaseUrl must be an absolute http(s) URL. Example: \"https://oauth.example.com\"")
	}

	if provider, ok := rawConfig["provider"].(string); ok && provider != "" && strings.ToLower(provider) != DefaultProvider {
		result.addError("provider", "provider '%s' is not supported, only '%s'", provider, DefaultProvider)
	}

	validateGitHubStructure(rawConfig["github"], result)
	validateSecretReference(rawConfig["stateSecret"], "stateSecret", EnvStateSecret, result)
	validateOriginList(rawConfig["allowedOrigins"], "allowedOrigins", result)
	validateOriginList(rawConfig["trustedOrigins"], "trustedOrigins", result)

	if mode, ok := rawConfig["authStart"].(string); ok {
		switch AuthStartMode(mode) {
		case AuthStartRedirect, AuthStartHandshake:
		default:
			result.addError("authStart", "authStart must be '%s' or '%s', got '%s'", AuthStartRedirect, AuthStartHandshake, mode)
		}
	}

	validateDuration(rawConfig["exchangeTimeout"], "exchangeTimeout", result)
	validateDeliveryStructure(rawConfig["delivery"], result)
	validateReplayStructure(rawConfig["replay"], result)

	return result
}

func validateGitHubStructure(value any, result *ValidationResult) {
	if value == nil {
		result.addError("github", "github field is required and must be an object")
		return
	}
	github, ok := value.(map[string]any)
	if !ok {
		result.addError("github", "github must be an object")
		return
	}

	validateRequiredValue(github["clientId"], "github.clientId", EnvClientID, result)
	validateSecretReference(github["clientSecret"], "github.clientSecret", EnvClientSecret, result)

	if scope, ok := github["scope"].(string); ok && strings.TrimSpace(scope) == "" {
		result.addWarning("github.scope", "empty scope falls back to '%s'", DefaultScope)
	}
	for _, key := range []string{"authorizeUrl", "tokenUrl"} {
		if u, ok := github[key].(string); ok && u != "" && !strings.HasPrefix(u, "https://") {
			result.addWarning("github."+key, "%s should use https", key)
		}
	}
}

func validateDeliveryStructure(value any, result *ValidationResult) {
	if value == nil {
		return
	}
	delivery, ok := value.(map[string]any)
	if !ok {
		result.addError("delivery", "delivery must be an object")
		return
	}

	if adminPath, ok := delivery["adminPath"].(string); ok && !strings.HasPrefix(adminPath, "/") {
		result.addError("delivery.adminPath", "adminPath must start with '/'. Example: \"%s\"", DefaultAdminPath)
	}
	if attempts, ok := delivery["attempts"].(float64); ok && attempts < 1 {
		result.addError("delivery.attempts", "attempts must be at least 1")
	}
	validateDuration(delivery["interval"], "delivery.interval", result)
	validateDuration(delivery["handshakeTimeout"], "delivery.handshakeTimeout", result)
	if v, ok := delivery["broadcastWildcard"]; ok {
		if _, isBool := v.(bool); !isBool {
			result.addError("delivery.broadcastWildcard", "broadcastWildcard must be a boolean")
		}
	}
}

func validateReplayStructure(value any, result *ValidationResult) {
	if value == nil {
		return
	}
	replay, ok := value.(map[string]any)
	if !ok {
		result.addError("replay", "replay must be an object")
		return
	}

	kind, _ := replay["kind"].(string)
	switch ReplayKind(kind) {
	case "", ReplayKindNone, ReplayKindMemory:
	case ReplayKindRedis:
		if replay["redisAddr"] == nil {
			result.addError("replay.redisAddr", "redisAddr is required when kind is 'redis'. Example: \"localhost:6379\"")
		}
		if pw, ok := replay["redisPassword"]; ok {
			if err := validateEnvVarReference(pw, "redisPassword", "replay.redisPassword"); err != nil {
				result.Errors = append(result.Errors, *err)
			}
		}
	case ReplayKindFirestore:
		if replay["firestoreProject"] == nil {
			result.addError("replay.firestoreProject", "firestoreProject is required when kind is 'firestore'")
		}
	default:
		result.addError("replay.kind", "unknown replay kind '%s' - use one of none, memory, redis, firestore", kind)
	}
	validateDuration(replay["cleanupInterval"], "replay.cleanupInterval", result)

	if kind == string(ReplayKindMemory) {
		result.addWarning("replay.kind", "memory replay protection only covers a single instance")
	}
}

// validateRequiredValue checks a required setting is present as a string or
// an env reference.
func validateRequiredValue(value any, path, envName string, result *ValidationResult) {
	switch v := value.(type) {
	case nil:
		result.addError(path, "%s is required. Hint: use {\"$env\": \"%s\"}", path, envName)
	case string:
		if strings.TrimSpace(v) == "" {
			result.addError(path, "%s cannot be empty", path)
		}
	case map[string]any:
		if _, hasEnv := v["$env"]; !hasEnv {
			result.addError(path, "%s must be a string or {\"$env\": \"%s\"}", path, envName)
		}
	default:
		result.addError(path, "%s must be a string or {\"$env\": \"%s\"}, not %T", path, envName, value)
	}
}

func validateSecretReference(secret any, path, envName string, result *ValidationResult) {
	if secret == nil {
		result.addError(path, "%s is required. Hint: use {\"$env\": \"%s\"}", path, envName)
		return
	}
	if err := validateEnvVarReference(secret, path, path); err != nil {
		result.Errors = append(result.Errors, *err)
	}
}

// validateEnvVarReference validates that a field uses proper env var reference format
func validateEnvVarReference(value any, fieldName, path string) *ValidationError {
	switch v := value.(type) {
	case string:
		if matches := bashStyleRegex.FindStringSubmatch(v); len(matches) > 1 {
			return &ValidationError{
				Path:    path,
				Message: fmt.Sprintf("found bash-style syntax '%s' - use {\"$env\": \"%s\"} instead", v, matches[1]),
			}
		}
		return &ValidationError{
			Path:    path,
			Message: fmt.Sprintf("%s must use environment variable reference {\"$env\": \"YOUR_ENV_VAR\"} instead of plain text. Hint: This prevents secrets from being stored in config files", fieldName),
		}
	case map[string]any:
		if _, hasEnv := v["$env"]; !hasEnv {
			return &ValidationError{
				Path:    path,
				Message: fmt.Sprintf("%s must use {\"$env\": \"YOUR_ENV_VAR\"} format", fieldName),
			}
		}
		return nil
	default:
		return &ValidationError{
			Path:    path,
			Message: fmt.Sprintf("%s must be an environment variable reference {\"$env\": \"YOUR_ENV_VAR\"}, not %T", fieldName, value),
		}
	}
}

func validateOriginList(value any, path string, result *ValidationResult) {
	switch v := value.(type) {
	case nil:
	case string, map[string]any:
	case []any:
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				continue
			}
			s = strings.TrimSpace(s)
			if s == "*" {
				result.addError(fmt.Sprintf("%s[%d]", path, i), "'*' is not an origin. Hint: an empty list already allows every origin")
				continue
			}
			if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
				result.addWarning(fmt.Sprintf("%s[%d]", path, i), "'%s' is not an http(s) origin and will never match", s)
			}
		}
	default:
		result.addError(path, "%s must be an array of origins or a comma separated string", path)
	}
}

func validateDuration(value any, path string, result *ValidationResult) {
	if value == nil {
		return
	}
	s, ok := value.(string)
	if !ok {
		result.addError(path, "%s must be a duration string. Example: \"10s\"", path)
		return
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		result.addError(path, "invalid duration '%s': %v", s, err)
		return
	}
	if d < 0 {
		result.addError(path, "%s cannot be negative", path)
	}
}

// checkBashStyleSyntax recursively checks for bash-style env var syntax
func checkBashStyleSyntax(value any, path string, result *ValidationResult) {
	switch v := value.(type) {
	case string:
		for _, match := range bashStyleRegex.FindAllStringSubmatch(v, -1) {
			result.addWarning(path, "found bash-style syntax '%s' - use {\"$env\": \"%s\"} instead. Hint: JSON syntax prevents accidental shell expansion in scripts/CI", match[0], match[1])
		}
	case map[string]any:
		if _, hasEnv := v["$env"]; hasEnv {
			return
		}
		for key, val := range v {
			newPath := key
			if path != "" {
				newPath = path + "." + key
			}
			checkBashStyleSyntax(val, newPath, result)
		}
	case []any:
		for i, item := range v {
			checkBashStyleSyntax(item, fmt.Sprintf("%s[%d]", path, i), result)
		}
	}
}
