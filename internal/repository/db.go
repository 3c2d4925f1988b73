package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/pekarna-dev/invoice-engine/internal/common"
)

// Open connects to Postgres through a pgx pool and exposes it as a
// database/sql handle. The pool is returned for lifecycle control; closing
// the *sql.DB closes pooled conns it holds but the pool itself must be
// closed by the caller on shutdown.
func Open(ctx context.Context, dsn string) (*sql.DB, *pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, nil, common.NewAppError(common.CodeDatabase, "invalid database url", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, nil, common.NewAppError(common.CodeDatabase, "failed to create connection pool", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, common.NewAppError(common.CodeDatabase, "database unreachable", err)
	}

	return stdlib.OpenDBFromPool(pool), pool, nil
}
