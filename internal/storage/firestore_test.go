package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFirestoreLedgerConfig(t *testing.T) {
	t.Run("missing GCP project ID", func(t *testing.T) {
		_, err := NewFirestoreLedger(context.Background(), FirestoreOptions{Collection: "nonces"})
		assert.Error(t, err, "Expected error when GCP project ID is missing")
		assert.Contains(t, err.Error(), "projectID is required")
	})

	t.Run("missing collection", func(t *testing.T) {
		_, err := NewFirestoreLedger(context.Background(), FirestoreOptions{ProjectID: "test-project"})
		assert.Error(t, err, "Expected error when collection is empty")
		assert.Contains(t, err.Error(), "collection is required")
	})

	t.Run("unreadable credentials file", func(t *testing.T) {
		_, err := NewFirestoreLedger(context.Background(), FirestoreOptions{
			ProjectID:       "test-project",
			Collection:      "nonces",
			CredentialsFile: "/nonexistent/credentials.json",
		})
		assert.Error(t, err)
	})
}
