package storage

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/dgellow/github-oauth-broker/internal/log"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreOptions configures a FirestoreLedger
type FirestoreOptions struct {
	ProjectID  string
	Database   string
	Collection string
	// CredentialsFile is a service account key file. Empty uses application
	// default credentials.
	CredentialsFile string
}

// FirestoreLedger stores one document per consumed nonce. Documents carry an
// expires_at field so a Firestore TTL policy can remove them; CleanupExpired
// does the same for projects without one.
type FirestoreLedger struct {
	client     *firestore.Client
	collection string
	now        func() time.Time
}

var _ NonceLedger = (*FirestoreLedger)(nil)
var _ Sweeper = (*FirestoreLedger)(nil)

// NonceDoc is the document stored for a consumed nonce
type NonceDoc struct {
	ExpiresAt  time.Time `firestore:"expires_at"`
	ConsumedAt time.Time `firestore:"consumed_at"`
}

// NewFirestoreLedger creates a Firestore backed ledger
func NewFirestoreLedger(ctx context.Context, opts FirestoreOptions) (*FirestoreLedger, error) {
	if opts.ProjectID == "" {
		return nil, fmt.Errorf("projectID is required")
	}
	if opts.Collection == "" {
		return nil, fmt.Errorf("collection is required")
	}

	var clientOpts []option.ClientOption
	if opts.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}

	var client *firestore.Client
	var err error

	// Firestore client with custom database
	if opts.Database != "" && opts.Database != "(default)" {
		client, err = firestore.NewClientWithDatabase(ctx, opts.ProjectID, opts.Database, clientOpts...)
	} else {
		client, err = firestore.NewClient(ctx, opts.ProjectID, clientOpts...)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	log.LogInfoWithFields("storage", "Using Firestore nonce ledger", map[string]any{
		"project":    opts.ProjectID,
		"collection": opts.Collection,
	})

	return &FirestoreLedger{
		client:     client,
		collection: opts.Collection,
		now:        time.Now,
	}, nil
}

// Consume implements NonceLedger. Create fails with AlreadyExists when the
// nonce was consumed before, which makes the check atomic.
func (l *FirestoreLedger) Consume(ctx context.Context, nonce string, expiresAt time.Time) (bool, error) {
	now := l.now()
	if expired(now, expiresAt) {
		return false, nil
	}

	_, err := l.client.Collection(l.collection).Doc(nonce).Create(ctx, NonceDoc{
		ExpiresAt:  expiresAt,
		ConsumedAt: now,
	})
	if err == nil {
		return true, nil
	}
	if status.Code(err) == codes.AlreadyExists {
		return false, nil
	}
	return false, fmt.Errorf("failed to record nonce: %w", err)
}

// CleanupExpired removes nonce documents past their expiry
func (l *FirestoreLedger) CleanupExpired(ctx context.Context) (int, error) {
	iter := l.client.Collection(l.collection).
		Where("expires_at", "<", l.now()).
		Documents(ctx)
	defer iter.Stop()

	count := 0
	batch := l.client.BulkWriter(ctx)
	defer batch.End()

	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return count, fmt.Errorf("failed to iterate expired nonces: %w", err)
		}
		if _, err := batch.Delete(doc.Ref); err != nil {
			return count, fmt.Errorf("failed to delete expired nonce: %w", err)
		}
		count++
	}

	return count, nil
}

// Close implements NonceLedger
func (l *FirestoreLedger) Close() error {
	return l.client.Close()
}
