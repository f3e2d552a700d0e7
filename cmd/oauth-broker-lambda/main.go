package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/dgellow/github-oauth-broker/internal"
	"github.com/dgellow/github-oauth-broker/internal/broker"
	"github.com/dgellow/github-oauth-broker/internal/config"
	"github.com/dgellow/github-oauth-broker/internal/log"
	"github.com/dgellow/github-oauth-broker/internal/serverless"
)

var BuildVersion = "dev"

// newDispatcher builds the router from environ (nil reads the process
// environment). A config or backend that fails at cold start yields a
// dispatcher answering 500 instead of a crashing container.
func newDispatcher(ctx context.Context, environ map[string]string) serverless.Dispatcher {
	cfg, err := config.FromEnvironment(environ)
	if err != nil {
		log.LogErrorWithFields("main", "Failed to load config, every request will fail", map[string]any{
			"error": err.Error(),
		})
		return broker.Unavailable{Err: err}
	}

	if cfg.Replay.Kind == config.ReplayKindMemory {
		log.LogWarnWithFields("main", "Memory replay ledger only protects a single warm container", map[string]any{
			"kind": string(cfg.Replay.Kind),
		})
	}

	router, _, err := internal.NewRouter(ctx, cfg)
	if err != nil {
		log.LogErrorWithFields("main", "Failed to create router, every request will fail", map[string]any{
			"error": err.Error(),
		})
		return broker.Unavailable{Err: err}
	}
	return router
}

func main() {
	log.LogInfoWithFields("main", "Starting oauth-broker lambda", map[string]any{
		"version": BuildVersion,
	})
	lambda.Start(serverless.NewAdapter(newDispatcher(context.Background(), nil)).Handle)
}
