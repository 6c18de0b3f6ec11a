package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jonboulle/clockwork"
	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/housing-reconciler/internal/common"
)

type Config struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// OpenPostgres creates a pgx pool and wraps it as an ent SQL driver.
func OpenPostgres(ctx context.Context, cfg Config, logger *slog.Logger) (*entsql.Driver, *pgxpool.Pool, error) {
	logger.Info("connecting to database", "driver", "postgres")
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to parse database dsn", "error", err)
		return nil, nil, err
	}

	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.RuntimeParams["application_name"] = "housing-reconciler"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprintf("%d", cfg.StatementTimeout.Milliseconds())
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, nil, err
	}

	// Wrap pool as *sql.DB for ent
	db := stdlib.OpenDBFromPool(pool)
	logger.Info("successfully connected to database", "driver", "postgres")
	return entsql.OpenDB(dialect.Postgres, db), pool, nil
}

// OpenSQLite opens a SQLite database (pure Go driver) as an ent SQL driver.
func OpenSQLite(dsn string, logger *slog.Logger) (*entsql.Driver, error) {
	logger.Info("connecting to database", "driver", "sqlite", "dsn", dsn)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		logger.Error("failed to open sqlite database", "error", err)
		return nil, err
	}
	// one connection: keeps :memory: databases shared and serializes writers
	db.SetMaxOpenConns(1)
	return entsql.OpenDB(dialect.SQLite, db), nil
}

// OpenStore opens the store selected by cfg.Driver.
func OpenStore(ctx context.Context, cfg common.StoreConfig, clock clockwork.Clock, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Driver {
	case "memory":
		return NewMemoryStore(clock, logger), nil
	case "sqlite":
		drv, err := OpenSQLite(cfg.DSN, logger)
		if err != nil {
			return nil, err
		}
		return NewSQLStore(ctx, drv, clock, logger, nil)
	case "postgres":
		drv, pool, err := OpenPostgres(ctx, Config{
			DSN:              cfg.DSN,
			MaxConns:         cfg.MaxConns,
			MinConns:         cfg.MinConns,
			MaxConnLifetime:  cfg.MaxConnLifetime,
			MaxConnIdleTime:  cfg.MaxConnIdleTime,
			DialTimeout:      cfg.DialTimeout,
			StatementTimeout: cfg.StatementTimeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		return NewSQLStore(ctx, drv, clock, logger, pool.Close)
	case "mongo":
		return OpenMongo(ctx, MongoConfig{
			URI:         cfg.DSN,
			Database:    cfg.Database,
			MaxPoolSize: uint64(max(cfg.MaxConns, 0)),
			DialTimeout: cfg.DialTimeout,
		}, clock, logger)
	default:
		return nil, common.NewAppError(common.CodeConfig, fmt.Sprintf("unknown store driver %q", cfg.Driver), common.ErrInvalidInput)
	}
}

// HealthCheck pings the store within timeout.
func HealthCheck(ctx context.Context, store Store, timeout time.Duration, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("pinging store")
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := store.Ping(ctx); err != nil {
		return err
	}
	logger.Debug("store ping successful")
	return nil
}
