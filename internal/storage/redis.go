package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultDialTimeout  = 5 * time.Second
	DefaultReadTimeout  = 3 * time.Second
	DefaultWriteTimeout = 3 * time.Second
)

// RedisOptions configures a RedisLedger
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisLedger stores consumed nonces as keys that expire with the state
// token, so instances sharing the server share the ledger.
type RedisLedger struct {
	client    redis.UniversalClient
	keyPrefix string
	now       func() time.Time
}

var _ NonceLedger = (*RedisLedger)(nil)

// NewRedisLedger connects to Redis and checks the connection
func NewRedisLedger(ctx context.Context, opts RedisOptions) (*RedisLedger, error) {
	if opts.Addr == "" {
		return nil, errors.New("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  DefaultDialTimeout,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisLedgerWithClient(client, opts.KeyPrefix), nil
}

// NewRedisLedgerWithClient creates a RedisLedger with a pre-configured client
func NewRedisLedgerWithClient(client redis.UniversalClient, keyPrefix string) *RedisLedger {
	return &RedisLedger{
		client:    client,
		keyPrefix: keyPrefix,
		now:       time.Now,
	}
}

// Consume implements NonceLedger with SET NX so concurrent callbacks for the
// same nonce see exactly one winner.
func (l *RedisLedger) Consume(ctx context.Context, nonce string, expiresAt time.Time) (bool, error) {
	now := l.now()
	if expired(now, expiresAt) {
		return false, nil
	}

	// Keep the key for at least a second; PX must be positive.
	ttl := max(expiresAt.Sub(now), time.Second)

	ok, err := l.client.SetNX(ctx, l.keyPrefix+nonce, strconv.FormatInt(expiresAt.UnixMilli(), 10), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to record nonce: %w", err)
	}
	return ok, nil
}

// Close implements NonceLedger
func (l *RedisLedger) Close() error {
	return l.client.Close()
}
