package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgellow/github-oauth-broker/internal/config"
)

// ErrLedgerClosed is returned by Consume after Close
var ErrLedgerClosed = errors.New("nonce ledger closed")

// NonceLedger records consumed state nonces so a state token can complete
// the callback only once. Only nonces and their expiry are stored.
type NonceLedger interface {
	// Consume marks nonce as used. It returns true the first time a nonce
	// is seen before expiresAt and false for any later call.
	Consume(ctx context.Context, nonce string, expiresAt time.Time) (bool, error)

	// Close releases the backend
	Close() error
}

// Sweeper is implemented by ledgers that must delete expired entries
// themselves.
type Sweeper interface {
	CleanupExpired(ctx context.Context) (int, error)
}

// NewLedger creates the ledger selected by cfg. It returns nil, nil when
// replay protection is disabled.
func NewLedger(ctx context.Context, cfg config.ReplayConfig) (NonceLedger, error) {
	switch cfg.Kind {
	case "", config.ReplayKindNone:
		return nil, nil
	case config.ReplayKindMemory:
		return NewMemoryLedger(), nil
	case config.ReplayKindRedis:
		ledger, err := NewRedisLedger(ctx, RedisOptions{
			Addr:      cfg.RedisAddr,
			Password:  string(cfg.RedisPassword),
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.KeyPrefix,
		})
		if err != nil {
			return nil, err
		}
		return ledger, nil
	case config.ReplayKindFirestore:
		ledger, err := NewFirestoreLedger(ctx, FirestoreOptions{
			ProjectID:       cfg.FirestoreProject,
			Database:        cfg.FirestoreDatabase,
			Collection:      cfg.FirestoreCollection,
			CredentialsFile: cfg.FirestoreCredentialsFile,
		})
		if err != nil {
			return nil, err
		}
		return ledger, nil
	default:
		return nil, fmt.Errorf("unknown replay kind: %s", cfg.Kind)
	}
}

// expired reports whether a nonce valid until expiresAt can no longer be used
func expired(now, expiresAt time.Time) bool {
	return expiresAt.Before(now)
}
