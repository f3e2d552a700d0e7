package internal

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgellow/github-oauth-broker/internal/broker"
	"github.com/dgellow/github-oauth-broker/internal/config"
	"github.com/dgellow/github-oauth-broker/internal/log"
	"github.com/dgellow/github-oauth-broker/internal/metrics"
	"github.com/dgellow/github-oauth-broker/internal/server"
	"github.com/dgellow/github-oauth-broker/internal/storage"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

// OAuthBroker is the standalone broker application
type OAuthBroker struct {
	config        config.Config
	router        *broker.Router
	httpServer    *server.HTTPServer
	metricsServer *server.HTTPServer
	ledger        storage.NonceLedger
	cleanup       *storage.CleanupManager
}

// NewRouter builds the broker router and, when replay protection is enabled,
// its ledger. The caller owns the returned ledger and must Close it.
func NewRouter(ctx context.Context, cfg config.Config) (*broker.Router, storage.NonceLedger, error) {
	ledger, err := storage.NewLedger(ctx, cfg.Replay)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to setup replay ledger: %w", err)
	}

	var opts []broker.Option
	if ledger != nil {
		opts = append(opts, broker.WithReplayLedger(ledger))
		log.LogInfoWithFields("oauthbroker", "Replay protection enabled", map[string]any{
			"kind": string(cfg.Replay.Kind),
		})
	}

	router, err := broker.NewRouter(cfg, opts...)
	if err != nil {
		if ledger != nil {
			_ = ledger.Close()
		}
		return nil, nil, err
	}
	return router, ledger, nil
}

// NewOAuthBroker creates the application with all dependencies built
func NewOAuthBroker(ctx context.Context, cfg config.Config) (*OAuthBroker, error) {
	log.LogInfoWithFields("oauthbroker", "Building OAuth broker", map[string]any{
		"publicBaseUrl": cfg.PublicBaseURL,
		"authStart":     string(cfg.AuthStart),
		"replay":        string(cfg.Replay.Kind),
	})

	router, ledger, err := NewRouter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	b := &OAuthBroker{
		config: cfg,
		router: router,
		ledger: ledger,
	}

	var m *metrics.Metrics
	if cfg.MetricsAddr != "" {
		m = metrics.New()
		b.metricsServer = server.NewHTTPServer("metrics", server.NewMetricsHandler(m), cfg.MetricsAddr)
	}
	b.httpServer = server.NewHTTPServer("broker", server.NewHandler(router, m), cfg.Addr)

	if sweeper, ok := ledger.(storage.Sweeper); ok {
		b.cleanup = storage.NewCleanupManager(sweeper, cfg.Replay.CleanupInterval)
	}

	return b, nil
}

// Run serves until ctx is cancelled, SIGINT or SIGTERM is received, or a
// listener fails, then shuts down gracefully.
func (b *OAuthBroker) Run(ctx context.Context) error {
	log.LogInfoWithFields("oauthbroker", "Starting OAuth broker", map[string]any{
		"addr":        b.config.Addr,
		"metricsAddr": b.config.MetricsAddr,
	})

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := b.httpServer.Start(); err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})
	if b.metricsServer != nil {
		g.Go(func() error {
			if err := b.metricsServer.Start(); err != nil {
				return fmt.Errorf("metrics server error: %w", err)
			}
			return nil
		})
	}
	if b.cleanup != nil {
		b.cleanup.Start(gctx)
	}

	g.Go(func() error {
		<-gctx.Done()
		return b.shutdown(context.Cause(gctx))
	})

	return g.Wait()
}

func (b *OAuthBroker) shutdown(reason error) error {
	log.LogInfoWithFields("oauthbroker", "Starting graceful shutdown", map[string]any{
		"reason":  reason.Error(),
		"timeout": shutdownTimeout.String(),
	})
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var firstErr error
	if err := b.httpServer.Stop(ctx); err != nil {
		log.LogErrorWithFields("oauthbroker", "HTTP server shutdown error", map[string]any{
			"error": err.Error(),
		})
		firstErr = err
	}
	if b.metricsServer != nil {
		if err := b.metricsServer.Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if b.cleanup != nil {
		b.cleanup.Stop()
	}
	if b.ledger != nil {
		if err := b.ledger.Close(); err != nil {
			log.LogErrorWithFields("oauthbroker", "Failed to close replay ledger", map[string]any{
				"error": err.Error(),
			})
		}
	}

	log.LogInfoWithFields("oauthbroker", "Application shutdown complete", nil)
	return firstErr
}
