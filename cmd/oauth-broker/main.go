package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/dgellow/github-oauth-broker/internal"
	"github.com/dgellow/github-oauth-broker/internal/config"
	"github.com/dgellow/github-oauth-broker/internal/crypto"
	"github.com/dgellow/github-oauth-broker/internal/log"
)

var BuildVersion = "dev"

func generateDefaultConfig(path string) error {
	defaultConfig := map[string]any{
		"version":       config.SupportedVersion,
		"serviceName":   config.DefaultServiceName,
		"addr":          config.DefaultAddr,
		"publicBaseUrl": map[string]string{"$env": config.EnvPublicBaseURL},
		"github": map[string]any{
			"clientId":     map[string]string{"$env": config.EnvClientID},
			"clientSecret": map[string]string{"$env": config.EnvClientSecret},
			"scope":        config.DefaultScope,
		},
		"stateSecret":    map[string]string{"$env": config.EnvStateSecret},
		"allowedOrigins": []string{"https://cms.yourcompany.com"},
		"authStart":      string(config.AuthStartRedirect),
		"delivery": map[string]any{
			"adminPath":        config.DefaultAdminPath,
			"attempts":         config.DefaultAttempts,
			"interval":         config.DefaultInterval.String(),
			"handshakeTimeout": config.DefaultHandshakeTimeout.String(),
		},
		"exchangeTimeout": config.DefaultExchangeTimeout.String(),
		"replay": map[string]any{
			"kind": string(config.ReplayKindNone),
		},
	}

	data, err := json.MarshalIndent(defaultConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func validateConfig(path string) error {
	result, err := config.ValidateFile(path)
	if err != nil {
		return fmt.Errorf("error during validation: %w", err)
	}

	fmt.Printf("Validating: %s\n", path)

	if len(result.Errors) > 0 {
		fmt.Printf("\nErrors (%d):\n", len(result.Errors))
		for _, err := range result.Errors {
			if err.Path != "" {
				fmt.Printf("  - %s: %s\n", err.Path, err.Message)
			} else {
				fmt.Printf("  - %s\n", err.Message)
			}
		}
	}

	if len(result.Warnings) > 0 {
		fmt.Printf("\nWarnings (%d):\n", len(result.Warnings))
		for _, warn := range result.Warnings {
			if warn.Path != "" {
				fmt.Printf("  - %s: %s\n", warn.Path, warn.Message)
			} else {
				fmt.Printf("  - %s\n", warn.Message)
			}
		}
	}

	fmt.Println()
	switch {
	case len(result.Errors) == 0 && len(result.Warnings) == 0:
		fmt.Println("Result: PASS")
	case len(result.Errors) == 0:
		fmt.Println("Result: PASS (with warnings)")
	default:
		fmt.Println("Result: FAIL")
	}

	if !result.IsValid() {
		return fmt.Errorf("validation failed: %d error(s), %d warning(s)", len(result.Errors), len(result.Warnings))
	}
	return nil
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.FromEnv()
	}
	return config.Load(path)
}

func main() {
	conf := flag.String("config", "", "path to config file (reads the environment when empty)")
	version := flag.Bool("version", false, "print version and exit")
	help := flag.Bool("help", false, "print help and exit")
	configInit := flag.String("config-init", "", "generate default config file at specified path")
	validate := flag.Bool("validate", false, "validate config file and exit")
	flag.Parse()
	if *help {
		flag.Usage()
		return
	}
	if *version {
		fmt.Println(BuildVersion)
		return
	}
	if *configInit != "" {
		if err := generateDefaultConfig(*configInit); err != nil {
			log.LogError("Failed to generate config: %v", err)
			os.Exit(1)
		}
		fmt.Printf("Generated default config at: %s\n", *configInit)
		if secret, err := crypto.GenerateSecureToken(); err == nil {
			fmt.Printf("Suggested state secret: %s=%s\n", config.EnvStateSecret, secret)
		}
		return
	}

	if *validate {
		if *conf == "" {
			fmt.Fprintf(os.Stderr, "Error: -config flag is required for validation\n")
			os.Exit(1)
		}
		if err := validateConfig(*conf); err != nil {
			os.Exit(1)
		}
		return
	}

	cfg, err := loadConfig(*conf)
	if err != nil {
		log.LogError("Failed to load config: %v", err)
		os.Exit(1)
	}

	source := *conf
	if source == "" {
		source = "environment"
	}
	log.LogInfoWithFields("main", "Starting oauth-broker", map[string]any{
		"version": BuildVersion,
		"config":  source,
	})

	ctx := context.Background()
	broker, err := internal.NewOAuthBroker(ctx, cfg)
	if err != nil {
		log.LogError("Failed to create OAuth broker: %v", err)
		os.Exit(1)
	}

	if err := broker.Run(ctx); err != nil {
		log.LogError("Failed to start server: %v", err)
		os.Exit(1)
	}
}
