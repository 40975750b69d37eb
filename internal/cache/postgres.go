package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresCache implements Cache on a single key/value table. It is an
// alternative shared L2 for deployments that already run Postgres but no
// Redis.
type PostgresCache struct {
	pool  *pgxpool.Pool
	table string
}

const defaultCacheTable = "storefront_cache"

// NewPostgresCache connects to dsn and ensures the cache table exists.
func NewPostgresCache(ctx context.Context, dsn string) (*PostgresCache, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	c := &PostgresCache{pool: pool, table: defaultCacheTable}

	if err := c.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if err := c.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return c, nil
}

func (c *PostgresCache) ensureSchema(ctx context.Context) error {
	stmt := `CREATE TABLE IF NOT EXISTS ` + c.table + ` (
		key TEXT PRIMARY KEY,
		value BYTEA NOT NULL,
		expires_at TIMESTAMPTZ
	)`
	if _, err := c.pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("ensure cache schema: %w", err)
	}
	return nil
}

func (c *PostgresCache) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := c.pool.QueryRow(ctx,
		`SELECT value FROM `+c.table+` WHERE key = $1 AND (expires_at IS NULL OR expires_at > NOW())`,
		key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cache key %s: %w", key, err)
	}
	return value, nil
}

func (c *PostgresCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt *time.Time
	if ttl > 0 {
		t := time.Now().Add(ttl)
		expiresAt = &t
	}
	_, err := c.pool.Exec(ctx,
		`INSERT INTO `+c.table+` (key, value, expires_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`,
		key, value, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("set cache key %s: %w", key, err)
	}
	return nil
}

func (c *PostgresCache) Delete(ctx context.Context, key string) error {
	if _, err := c.pool.Exec(ctx, `DELETE FROM `+c.table+` WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete cache key %s: %w", key, err)
	}
	return nil
}

// PurgeExpired removes every expired row and reports how many were deleted.
func (c *PostgresCache) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := c.pool.Exec(ctx, `DELETE FROM `+c.table+` WHERE expires_at IS NOT NULL AND expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("purge expired cache rows: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (c *PostgresCache) Ping(ctx context.Context) error {
	if c.pool == nil {
		return fmt.Errorf("postgres not initialized")
	}
	return c.pool.Ping(ctx)
}

func (c *PostgresCache) Close() error {
	if c.pool != nil {
		c.pool.Close()
	}
	return nil
}
