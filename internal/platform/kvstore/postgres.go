package kvstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/healthhub/healthhub/internal/platform/db"
)

// PostgresStore keeps blobs in the kv_blobs JSONB table created by the
// 002_kv_blobs migration.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) conn(ctx context.Context) db.Querier {
	return db.QuerierFrom(ctx, s.pool)
}

func (s *PostgresStore) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	var v []byte
	err := s.conn(ctx).QueryRow(ctx,
		`SELECT value FROM kv_blobs WHERE namespace = $1 AND key = $2`, namespace, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", namespace, key, err)
	}
	return v, nil
}

func (s *PostgresStore) Put(ctx context.Context, namespace, key string, value []byte) error {
	_, err := s.conn(ctx).Exec(ctx, `
		INSERT INTO kv_blobs (namespace, key, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		namespace, key, value)
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, namespace, key string) error {
	if _, err := s.conn(ctx).Exec(ctx,
		`DELETE FROM kv_blobs WHERE namespace = $1 AND key = $2`, namespace, key); err != nil {
		return fmt.Errorf("delete %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (s *PostgresStore) Keys(ctx context.Context, namespace string) ([]string, error) {
	return s.strings(ctx, `SELECT key FROM kv_blobs WHERE namespace = $1 ORDER BY key`, namespace)
}

func (s *PostgresStore) Namespaces(ctx context.Context) ([]string, error) {
	return s.strings(ctx, `SELECT DISTINCT namespace FROM kv_blobs ORDER BY namespace`)
}

func (s *PostgresStore) strings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close is a no-op; the pool is owned by the caller.
func (s *PostgresStore) Close() error { return nil }
