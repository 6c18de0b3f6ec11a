package repository

import (
	"context"
	"errors"
	"time"

	"github.com/joseph-ayodele/housing-reconciler/internal/entity"
)

var (
	// ErrDocumentNotFound is returned when an update targets a missing document.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrDocumentExists is returned when a create reuses an existing id.
	ErrDocumentExists = errors.New("document already exists")
	// ErrLocked is returned when another run holds the collection lock.
	ErrLocked = errors.New("collection locked by another run")
)

// Store is a document store with atomic batch writes.
type Store interface {
	// List returns every document of a collection in stable store order
	// (creation time, then id).
	List(ctx context.Context, collection string) ([]entity.StoreDocument, error)
	// Commit applies all ops of batch or none. Deleting a missing document
	// is a no-op; updating one fails the batch.
	Commit(ctx context.Context, batch []entity.MutationOp) error
	Ping(ctx context.Context) error
	Close() error
}

// Locker is implemented by stores that can hold a run-level lock per collection.
type Locker interface {
	// Acquire takes the lock for holder. With ttl > 0, a lock acquired more
	// than ttl ago is stale and taken over.
	Acquire(ctx context.Context, collection, holder string, ttl time.Duration) error
	Release(ctx context.Context, collection, holder string) error
	// Unlock drops the lock whoever holds it.
	Unlock(ctx context.Context, collection string) error
}

func staleBefore(now time.Time, ttl time.Duration) (time.Time, bool) {
	if ttl <= 0 {
		return time.Time{}, false
	}
	return now.Add(-ttl), true
}

// Bookkeeping fields written by stores that keep them inside the document.
const (
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

func cloneFields(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func mergeFields(dst, delta map[string]any) {
	for k, v := range delta {
		dst[k] = v
	}
}
