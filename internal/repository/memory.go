package repository

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/joseph-ayodele/housing-reconciler/internal/entity"
)

// MemoryStore keeps collections in process. Insertion order is store order.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string][]entity.StoreDocument
	locks       map[string]memoryLock
	clock       clockwork.Clock
	logger      *slog.Logger
}

func NewMemoryStore(clock clockwork.Clock, logger *slog.Logger) *MemoryStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryStore{
		collections: map[string][]entity.StoreDocument{},
		locks:       map[string]memoryLock{},
		clock:       clock,
		logger:      logger,
	}
}

func (s *MemoryStore) List(_ context.Context, collection string) ([]entity.StoreDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs := s.collections[collection]
	out := make([]entity.StoreDocument, len(docs))
	for i, d := range docs {
		d.Fields = cloneFields(d.Fields)
		out[i] = d
	}
	return out, nil
}

// Commit applies the batch to a copy of the touched collections and swaps
// them in only when every op succeeded.
func (s *MemoryStore) Commit(_ context.Context, batch []entity.MutationOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := map[string][]entity.StoreDocument{}
	now := s.clock.Now().UTC()
	for _, op := range batch {
		docs, ok := staged[op.Collection]
		if !ok {
			docs = append([]entity.StoreDocument(nil), s.collections[op.Collection]...)
		}
		var err error
		docs, err = applyMemoryOp(docs, op, now)
		if err != nil {
			return err
		}
		staged[op.Collection] = docs
	}
	for name, docs := range staged {
		s.collections[name] = docs
	}
	return nil
}

func applyMemoryOp(docs []entity.StoreDocument, op entity.MutationOp, now time.Time) ([]entity.StoreDocument, error) {
	idx := -1
	for i, d := range docs {
		if d.ID == op.ID {
			idx = i
			break
		}
	}

	switch op.Kind {
	case entity.OpCreate:
		if idx >= 0 {
			return nil, fmt.Errorf("%w: %s/%s", ErrDocumentExists, op.Collection, op.ID)
		}
		return append(docs, entity.StoreDocument{
			ID:        op.ID,
			Fields:    cloneFields(op.Fields),
			CreatedAt: now,
			UpdatedAt: now,
		}), nil
	case entity.OpUpdate:
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s/%s", ErrDocumentNotFound, op.Collection, op.ID)
		}
		d := docs[idx]
		d.Fields = cloneFields(d.Fields)
		mergeFields(d.Fields, op.Fields)
		d.UpdatedAt = now
		docs[idx] = d
		return docs, nil
	case entity.OpDelete:
		if idx < 0 {
			return docs, nil
		}
		return append(docs[:idx:idx], docs[idx+1:]...), nil
	default:
		return nil, fmt.Errorf("unknown op kind %q", op.Kind)
	}
}

type memoryLock struct {
	holder     string
	acquiredAt time.Time
}

func (s *MemoryStore) Acquire(_ context.Context, collection, holder string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now().UTC()
	if current, ok := s.locks[collection]; ok {
		cutoff, expires := staleBefore(now, ttl)
		if !expires || !current.acquiredAt.Before(cutoff) {
			return fmt.Errorf("%w: %s held by %s", ErrLocked, collection, current.holder)
		}
		s.logger.Warn("repository.lock.stale", "collection", collection, "holder", current.holder, "acquired_at", current.acquiredAt)
	}
	s.locks[collection] = memoryLock{holder: holder, acquiredAt: now}
	return nil
}

func (s *MemoryStore) Release(_ context.Context, collection, holder string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locks[collection].holder == holder {
		delete(s.locks, collection)
	}
	return nil
}

func (s *MemoryStore) Unlock(_ context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, collection)
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
