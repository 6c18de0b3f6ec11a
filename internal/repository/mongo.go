package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/joseph-ayodele/housing-reconciler/internal/entity"
)

const mongoLocksCollection = "reconcile_locks"

type MongoConfig struct {
	URI         string
	Database    string
	MaxPoolSize uint64
	DialTimeout time.Duration
}

// MongoStore maps each collection to a MongoDB collection. Document ids are
// stored as _id strings; bookkeeping timestamps live inside the document.
// Batches need a replica set (multi-document transactions).
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	clock  clockwork.Clock
	logger *slog.Logger
}

func OpenMongo(ctx context.Context, cfg MongoConfig, clock clockwork.Clock, logger *slog.Logger) (*MongoStore, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("connecting to database", "driver", "mongo", "database", cfg.Database)

	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}
	if cfg.DialTimeout > 0 {
		opts.SetConnectTimeout(cfg.DialTimeout)
	}
	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	logger.Info("successfully connected to database", "driver", "mongo")
	return &MongoStore{client: client, db: client.Database(cfg.Database), clock: clock, logger: logger}, nil
}

func (s *MongoStore) List(ctx context.Context, collection string) ([]entity.StoreDocument, error) {
	opts := options.Find().SetSort(bson.D{{Key: FieldCreatedAt, Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.db.Collection(collection).Find(ctx, bson.M{}, opts)
	if err != nil {
		s.logger.Error("failed to list documents", "collection", collection, "error", err)
		return nil, err
	}
	defer func() { _ = cur.Close(ctx) }()

	var out []entity.StoreDocument
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, err
		}
		out = append(out, fromBSON(raw))
	}
	return out, cur.Err()
}

func fromBSON(raw bson.M) entity.StoreDocument {
	doc := entity.StoreDocument{Fields: map[string]any{}}
	for k, v := range raw {
		switch k {
		case "_id":
			doc.ID = idString(v)
		case FieldCreatedAt:
			if dt, ok := v.(bson.DateTime); ok {
				doc.CreatedAt = dt.Time().UTC()
			}
		case FieldUpdatedAt:
			if dt, ok := v.(bson.DateTime); ok {
				doc.UpdatedAt = dt.Time().UTC()
			}
		default:
			doc.Fields[k] = fromBSONValue(v)
		}
	}
	return doc
}

// idString renders an _id as the string the rest of the pipeline carries.
// ObjectIDs become their hex form; idFilter maps them back.
func idString(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case bson.ObjectID:
		return id.Hex()
	default:
		return fmt.Sprint(v)
	}
}

// idFilter matches a document by an id produced by idString. A 24-digit hex
// id may be stored either as an ObjectID or as that string.
func idFilter(id string) bson.M {
	if oid, err := bson.ObjectIDFromHex(id); err == nil {
		return bson.M{"_id": bson.M{"$in": bson.A{oid, id}}}
	}
	return bson.M{"_id": id}
}

func fromBSONValue(v any) any {
	switch t := v.(type) {
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case bson.DateTime:
		return t.Time().UTC()
	default:
		return v
	}
}

// Commit runs the batch inside one session transaction.
func (s *MongoStore) Commit(ctx context.Context, batch []entity.MutationOp) error {
	session, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	now := bson.NewDateTimeFromTime(s.clock.Now().UTC())
	_, err = session.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		for _, op := range batch {
			if err := s.applyOp(ctx, op, now); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

func (s *MongoStore) applyOp(ctx context.Context, op entity.MutationOp, now bson.DateTime) error {
	coll := s.db.Collection(op.Collection)
	switch op.Kind {
	case entity.OpCreate:
		doc := bson.M{"_id": op.ID, FieldCreatedAt: now, FieldUpdatedAt: now}
		for k, v := range op.Fields {
			doc[k] = v
		}
		if _, err := coll.InsertOne(ctx, doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return fmt.Errorf("%w: %s/%s", ErrDocumentExists, op.Collection, op.ID)
			}
			return fmt.Errorf("create %s/%s: %w", op.Collection, op.ID, err)
		}
		return nil
	case entity.OpUpdate:
		set := bson.M{FieldUpdatedAt: now}
		for k, v := range op.Fields {
			set[k] = v
		}
		res, err := coll.UpdateOne(ctx, idFilter(op.ID), bson.M{"$set": set})
		if err != nil {
			return fmt.Errorf("update %s/%s: %w", op.Collection, op.ID, err)
		}
		if res.MatchedCount == 0 {
			return fmt.Errorf("%w: %s/%s", ErrDocumentNotFound, op.Collection, op.ID)
		}
		return nil
	case entity.OpDelete:
		if _, err := coll.DeleteOne(ctx, idFilter(op.ID)); err != nil {
			return fmt.Errorf("delete %s/%s: %w", op.Collection, op.ID, err)
		}
		return nil
	default:
		return fmt.Errorf("unknown op kind %q", op.Kind)
	}
}

func (s *MongoStore) Acquire(ctx context.Context, collection, holder string, ttl time.Duration) error {
	locks := s.db.Collection(mongoLocksCollection)
	now := s.clock.Now().UTC()
	if cutoff, ok := staleBefore(now, ttl); ok {
		filter := bson.M{"_id": collection, "acquiredAt": bson.M{"$lt": bson.NewDateTimeFromTime(cutoff)}}
		if _, err := locks.DeleteOne(ctx, filter); err != nil {
			return fmt.Errorf("clear stale lock %s: %w", collection, err)
		}
	}
	_, err := locks.InsertOne(ctx, bson.M{
		"_id":        collection,
		"holder":     holder,
		"acquiredAt": bson.NewDateTimeFromTime(now),
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", ErrLocked, collection)
		}
		return err
	}
	return nil
}

func (s *MongoStore) Release(ctx context.Context, collection, holder string) error {
	_, err := s.db.Collection(mongoLocksCollection).DeleteOne(ctx, bson.M{"_id": collection, "holder": holder})
	return err
}

func (s *MongoStore) Unlock(ctx context.Context, collection string) error {
	_, err := s.db.Collection(mongoLocksCollection).DeleteOne(ctx, bson.M{"_id": collection})
	return err
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
