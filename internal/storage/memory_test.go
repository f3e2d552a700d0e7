package storage

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLedger_Consume(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	ledger := NewMemoryLedger()
	ledger.now = func() time.Time { return now }
	expiresAt := now.Add(10 * time.Minute)

	ok, err := ledger.Consume(ctx, "nonce-1", expiresAt)
	require.NoError(t, err)
	assert.True(t, ok, "first use")

	ok, err = ledger.Consume(ctx, "nonce-1", expiresAt)
	require.NoError(t, err)
	assert.False(t, ok, "replay")

	ok, err = ledger.Consume(ctx, "nonce-2", expiresAt)
	require.NoError(t, err)
	assert.True(t, ok, "different nonce")
}

func TestMemoryLedger_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	ledger := NewMemoryLedger()
	ledger.now = func() time.Time { return now }

	ok, err := ledger.Consume(ctx, "old", now.Add(-time.Millisecond))
	require.NoError(t, err)
	assert.False(t, ok, "already expired nonce is never fresh")

	ok, err = ledger.Consume(ctx, "edge", now)
	require.NoError(t, err)
	assert.True(t, ok, "expiry is inclusive")

	ok, err = ledger.Consume(ctx, "n", now.Add(time.Minute))
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(2 * time.Minute)
	count, err := ledger.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 0, ledger.Len())
}

func TestMemoryLedger_Concurrent(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()
	expiresAt := time.Now().Add(time.Minute)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := ledger.Consume(ctx, "shared", expiresAt)
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestMemoryLedger_Close(t *testing.T) {
	ledger := NewMemoryLedger()
	for i := range 3 {
		_, err := ledger.Consume(context.Background(), fmt.Sprintf("n%d", i), time.Now().Add(time.Minute))
		require.NoError(t, err)
	}

	require.NoError(t, ledger.Close())
	assert.Equal(t, 0, ledger.Len())

	_, err := ledger.Consume(context.Background(), "n", time.Now().Add(time.Minute))
	assert.ErrorIs(t, err, ErrLedgerClosed)
}

func TestMemoryLedger_ConsumeSweepsExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	ledger := NewMemoryLedger()
	ledger.now = func() time.Time { return now }

	for i := range 5 {
		ok, err := ledger.Consume(ctx, fmt.Sprintf("n%d", i), now.Add(time.Second))
		require.NoError(t, err)
		require.True(t, ok)
	}
	assert.Equal(t, 5, ledger.Len())

	now = now.Add(30 * time.Second)
	_, err := ledger.Consume(ctx, "early", now.Add(10*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 6, ledger.Len(), "no sweep before the interval elapses")

	now = now.Add(DefaultMemorySweepInterval)
	_, err = ledger.Consume(ctx, "late", now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, ledger.Len(), "expired entries are dropped without a CleanupManager")
}
