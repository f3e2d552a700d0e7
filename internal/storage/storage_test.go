package storage

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dgellow/github-oauth-broker/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLedger(t *testing.T) {
	ctx := context.Background()

	t.Run("none", func(t *testing.T) {
		for _, kind := range []config.ReplayKind{"", config.ReplayKindNone} {
			ledger, err := NewLedger(ctx, config.ReplayConfig{Kind: kind})
			require.NoError(t, err)
			assert.Nil(t, ledger)
		}
	})

	t.Run("memory", func(t *testing.T) {
		ledger, err := NewLedger(ctx, config.ReplayConfig{Kind: config.ReplayKindMemory})
		require.NoError(t, err)
		assert.IsType(t, &MemoryLedger{}, ledger)
		_, isSweeper := ledger.(Sweeper)
		assert.True(t, isSweeper)
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		ledger, err := NewLedger(ctx, config.ReplayConfig{
			Kind:      config.ReplayKindRedis,
			RedisAddr: mr.Addr(),
			KeyPrefix: config.DefaultKeyPrefix,
		})
		require.NoError(t, err)
		defer ledger.Close()

		ok, err := ledger.Consume(ctx, "n1", time.Now().Add(time.Minute))
		require.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, mr.Exists(config.DefaultKeyPrefix+"n1"))
	})

	t.Run("redis_unreachable_is_not_a_typed_nil", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()

		ledger, err := NewLedger(ctx, config.ReplayConfig{Kind: config.ReplayKindRedis, RedisAddr: addr})
		assert.Error(t, err)
		assert.Nil(t, ledger)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := NewLedger(ctx, config.ReplayConfig{Kind: "etcd"})
		assert.ErrorContains(t, err, "unknown replay kind")
	})
}

type countingSweeper struct {
	calls atomic.Int32
	err   error
}

func (s *countingSweeper) CleanupExpired(context.Context) (int, error) {
	s.calls.Add(1)
	return 1, s.err
}

func TestCleanupManager(t *testing.T) {
	sweeper := &countingSweeper{}
	cm := NewCleanupManager(sweeper, 10*time.Millisecond)
	cm.Start(context.Background())

	assert.Eventually(t, func() bool { return sweeper.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cm.Stop()

	calls := sweeper.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, sweeper.calls.Load(), "no sweeps after Stop")
}

func TestCleanupManager_ContextCancel(t *testing.T) {
	sweeper := &countingSweeper{err: errors.New("backend unavailable")}
	cm := NewCleanupManager(sweeper, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cm.Start(ctx)
	assert.Eventually(t, func() bool { return sweeper.calls.Load() >= 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-cm.doneChan:
	case <-time.After(time.Second):
		t.Fatal("cleanup loop did not exit on context cancel")
	}
}
