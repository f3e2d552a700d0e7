package storage

import (
	"context"
	"time"

	"github.com/dgellow/github-oauth-broker/internal/log"
)

// CleanupManager handles periodic cleanup of expired nonces
type CleanupManager struct {
	sweeper  Sweeper
	interval time.Duration
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(sweeper Sweeper, interval time.Duration) *CleanupManager {
	return &CleanupManager{
		sweeper:  sweeper,
		interval: interval,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start begins the cleanup loop in a goroutine
func (cm *CleanupManager) Start(ctx context.Context) {
	log.LogInfoWithFields("cleanup", "Starting nonce cleanup manager", map[string]any{
		"interval": cm.interval.String(),
	})

	go cm.run(ctx)
}

// Stop gracefully stops the cleanup loop
func (cm *CleanupManager) Stop() {
	log.LogInfoWithFields("cleanup", "Stopping nonce cleanup manager", nil)
	close(cm.stopChan)
	<-cm.doneChan // Wait for cleanup loop to finish
	log.LogInfoWithFields("cleanup", "Nonce cleanup manager stopped", nil)
}

// run is the main cleanup loop
func (cm *CleanupManager) run(ctx context.Context) {
	defer close(cm.doneChan)

	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cm.cleanup(ctx)
		case <-cm.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// cleanup performs the actual cleanup operation
func (cm *CleanupManager) cleanup(ctx context.Context) {
	count, err := cm.sweeper.CleanupExpired(ctx)
	if err != nil {
		log.LogErrorWithFields("cleanup", "Failed to cleanup expired nonces", map[string]any{
			"error": err.Error(),
		})
		return
	}

	if count > 0 {
		log.LogDebugWithFields("cleanup", "Cleaned up expired nonces", map[string]any{
			"count": count,
		})
	}
}
