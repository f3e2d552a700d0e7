package storage

import (
	"context"
	"sync"
	"time"
)

// DefaultMemorySweepInterval is how often Consume drops expired entries
const DefaultMemorySweepInterval = time.Minute

// MemoryLedger keeps consumed nonces in process memory. It only protects a
// single instance. Consume sweeps expired entries itself, so runtimes that
// never start a CleanupManager stay bounded.
type MemoryLedger struct {
	mu            sync.Mutex
	entries       map[string]time.Time
	closed        bool
	now           func() time.Time
	sweepInterval time.Duration
	lastSweep     time.Time
}

var _ NonceLedger = (*MemoryLedger)(nil)
var _ Sweeper = (*MemoryLedger)(nil)

// NewMemoryLedger creates an empty in-memory ledger
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		entries:       make(map[string]time.Time),
		now:           time.Now,
		sweepInterval: DefaultMemorySweepInterval,
	}
}

// Consume implements NonceLedger
func (l *MemoryLedger) Consume(_ context.Context, nonce string, expiresAt time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return false, ErrLedgerClosed
	}

	now := l.now()
	if now.Sub(l.lastSweep) >= l.sweepInterval {
		l.sweepLocked(now)
	}
	if expired(now, expiresAt) {
		return false, nil
	}
	if until, ok := l.entries[nonce]; ok && !expired(now, until) {
		return false, nil
	}
	l.entries[nonce] = expiresAt
	return true, nil
}

// CleanupExpired removes entries past their expiry
func (l *MemoryLedger) CleanupExpired(_ context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sweepLocked(l.now()), nil
}

func (l *MemoryLedger) sweepLocked(now time.Time) int {
	l.lastSweep = now
	count := 0
	for nonce, until := range l.entries {
		if expired(now, until) {
			delete(l.entries, nonce)
			count++
		}
	}
	return count
}

// Len returns the number of tracked nonces
func (l *MemoryLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Close implements NonceLedger
func (l *MemoryLedger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	l.entries = make(map[string]time.Time)
	return nil
}
