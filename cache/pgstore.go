package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS kv_store (
	key TEXT PRIMARY KEY,
	value BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore keeps the blob as one row of a key/value table
type PostgresStore struct {
	pool *pgxpool.Pool
	key  string
}

// OpenPostgres connects to databaseURL and makes sure the table exists
func OpenPostgres(ctx context.Context, databaseURL, namespace string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create kv_store: %w", err)
	}
	return &PostgresStore{pool: pool, key: NamespaceKey(namespace)}, nil
}

func (ps *PostgresStore) Load(ctx context.Context) ([]byte, error) {
	var data []byte
	err := ps.pool.QueryRow(ctx, `SELECT value FROM kv_store WHERE key = $1`, ps.key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", ps.key, err)
	}
	return data, nil
}

func (ps *PostgresStore) Save(ctx context.Context, data []byte) error {
	_, err := ps.pool.Exec(ctx,
		`INSERT INTO kv_store (key, value, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		ps.key, data,
	)
	if err != nil {
		return fmt.Errorf("save %s: %w", ps.key, err)
	}
	return nil
}

func (ps *PostgresStore) Close() error {
	ps.pool.Close()
	return nil
}
