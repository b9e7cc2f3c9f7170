package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"truckmitr/pkg/logger"
	"truckmitr/storage"
)

type kvRepo struct {
	db  *pgxpool.Pool
	log logger.ILogger
}

func NewKVRepo(db *pgxpool.Pool, log logger.ILogger) storage.IKeyValueStorage {
	return &kvRepo{db: db, log: log}
}

func (r *kvRepo) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRow(ctx, `SELECT value FROM kv_entries WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", storage.ErrNotFound
		}
		r.log.Error("failed to get kv entry", logger.String("key", key), logger.Error(err))
		return "", err
	}
	return value, nil
}

func (r *kvRepo) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO kv_entries (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = NOW()
	`
	if _, err := r.db.Exec(ctx, query, key, value); err != nil {
		r.log.Error("failed to set kv entry", logger.String("key", key), logger.Error(err))
		return err
	}
	return nil
}

func (r *kvRepo) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx, `DELETE FROM kv_entries WHERE key = ANY($1)`, keys)
	return err
}

func (r *kvRepo) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT key FROM kv_entries WHERE starts_with(key, $1) ORDER BY key`, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
