package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jonboulle/clockwork"

	"github.com/joseph-ayodele/housing-reconciler/internal/entity"
)

const (
	documentsTable = "documents"
	locksTable     = "reconcile_locks"

	// fixed width so text ordering is time ordering
	timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id TEXT NOT NULL,
	data TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (collection, id)
)`,
	`CREATE TABLE IF NOT EXISTS reconcile_locks (
	collection TEXT PRIMARY KEY,
	holder TEXT NOT NULL,
	acquired_at TEXT NOT NULL
)`,
}

// SQLStore keeps every collection in one documents table, the document
// body as JSON text. It runs on Postgres and SQLite through ent's SQL layer.
type SQLStore struct {
	drv     *entsql.Driver
	clock   clockwork.Clock
	logger  *slog.Logger
	onClose func()
}

// NewSQLStore creates the tables if needed. onClose, if set, runs after the
// driver is closed (e.g. to close the pgx pool behind it).
func NewSQLStore(ctx context.Context, drv *entsql.Driver, clock clockwork.Clock, logger *slog.Logger, onClose func()) (*SQLStore, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &SQLStore{drv: drv, clock: clock, logger: logger, onClose: onClose}
	for _, ddl := range migrations {
		if err := drv.Exec(ctx, ddl, []any{}, nil); err != nil {
			logger.Error("failed to migrate store", "error", err)
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return s, nil
}

func (s *SQLStore) builder() *entsql.DialectBuilder {
	return entsql.Dialect(s.drv.Dialect())
}

func docPredicate(collection, id string) *entsql.Predicate {
	return entsql.And(entsql.EQ("collection", collection), entsql.EQ("id", id))
}

func (s *SQLStore) List(ctx context.Context, collection string) ([]entity.StoreDocument, error) {
	b := s.builder()
	query, args := b.Select("id", "data", "created_at", "updated_at").
		From(b.Table(documentsTable)).
		Where(entsql.EQ("collection", collection)).
		OrderBy("created_at", "id").
		Query()

	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, query, args, rows); err != nil {
		s.logger.Error("failed to list documents", "collection", collection, "error", err)
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []entity.StoreDocument
	for rows.Next() {
		var id, data, created, updated string
		if err := rows.Scan(&id, &data, &created, &updated); err != nil {
			return nil, err
		}
		doc := entity.StoreDocument{ID: id, Fields: map[string]any{}}
		if err := json.Unmarshal([]byte(data), &doc.Fields); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", collection, id, err)
		}
		doc.CreatedAt, _ = time.Parse(timestampLayout, created)
		doc.UpdatedAt, _ = time.Parse(timestampLayout, updated)
		out = append(out, doc)
	}
	return out, rows.Err()
}

// Commit runs the batch in one transaction.
func (s *SQLStore) Commit(ctx context.Context, batch []entity.MutationOp) error {
	tx, err := s.drv.Tx(ctx)
	if err != nil {
		return err
	}
	now := s.clock.Now().UTC().Format(timestampLayout)
	for _, op := range batch {
		if err := s.applyOp(ctx, tx, op, now); err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				s.logger.Error("failed to roll back batch", "error", rerr)
			}
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLStore) applyOp(ctx context.Context, tx dialect.Tx, op entity.MutationOp, now string) error {
	b := s.builder()
	switch op.Kind {
	case entity.OpCreate:
		data, err := json.Marshal(op.Fields)
		if err != nil {
			return err
		}
		query, args := b.Insert(documentsTable).
			Columns("collection", "id", "data", "created_at", "updated_at").
			Values(op.Collection, op.ID, string(data), now, now).
			Query()
		if err := tx.Exec(ctx, query, args, nil); err != nil {
			return fmt.Errorf("create %s/%s: %w", op.Collection, op.ID, err)
		}
		return nil
	case entity.OpUpdate:
		fields, err := s.load(ctx, tx, op.Collection, op.ID)
		if err != nil {
			return err
		}
		mergeFields(fields, op.Fields)
		data, err := json.Marshal(fields)
		if err != nil {
			return err
		}
		query, args := b.Update(documentsTable).
			Set("data", string(data)).
			Set("updated_at", now).
			Where(docPredicate(op.Collection, op.ID)).
			Query()
		if err := tx.Exec(ctx, query, args, nil); err != nil {
			return fmt.Errorf("update %s/%s: %w", op.Collection, op.ID, err)
		}
		return nil
	case entity.OpDelete:
		query, args := b.Delete(documentsTable).Where(docPredicate(op.Collection, op.ID)).Query()
		if err := tx.Exec(ctx, query, args, nil); err != nil {
			return fmt.Errorf("delete %s/%s: %w", op.Collection, op.ID, err)
		}
		return nil
	default:
		return fmt.Errorf("unknown op kind %q", op.Kind)
	}
}

func (s *SQLStore) load(ctx context.Context, tx dialect.Tx, collection, id string) (map[string]any, error) {
	b := s.builder()
	query, args := b.Select("data").
		From(b.Table(documentsTable)).
		Where(docPredicate(collection, id)).
		Query()
	rows := &entsql.Rows{}
	if err := tx.Query(ctx, query, args, rows); err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s/%s", ErrDocumentNotFound, collection, id)
	}
	var data string
	if err := rows.Scan(&data); err != nil {
		return nil, err
	}
	fields := map[string]any{}
	if err := json.Unmarshal([]byte(data), &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func (s *SQLStore) Acquire(ctx context.Context, collection, holder string, ttl time.Duration) error {
	now := s.clock.Now().UTC()
	if cutoff, ok := staleBefore(now, ttl); ok {
		query, args := s.builder().Delete(locksTable).
			Where(entsql.And(
				entsql.EQ("collection", collection),
				entsql.LT("acquired_at", cutoff.Format(timestampLayout)),
			)).
			Query()
		if err := s.drv.Exec(ctx, query, args, nil); err != nil {
			return fmt.Errorf("clear stale lock %s: %w", collection, err)
		}
	}
	query, args := s.builder().Insert(locksTable).
		Columns("collection", "holder", "acquired_at").
		Values(collection, holder, now.Format(timestampLayout)).
		Query()
	if err := s.drv.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrLocked, collection, err)
	}
	return nil
}

func (s *SQLStore) Release(ctx context.Context, collection, holder string) error {
	query, args := s.builder().Delete(locksTable).
		Where(entsql.And(entsql.EQ("collection", collection), entsql.EQ("holder", holder))).
		Query()
	return s.drv.Exec(ctx, query, args, nil)
}

func (s *SQLStore) Unlock(ctx context.Context, collection string) error {
	query, args := s.builder().Delete(locksTable).
		Where(entsql.EQ("collection", collection)).
		Query()
	return s.drv.Exec(ctx, query, args, nil)
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.drv.DB().PingContext(ctx)
}

func (s *SQLStore) Close() error {
	err := s.drv.Close()
	if s.onClose != nil {
		s.onClose()
	}
	return err
}
