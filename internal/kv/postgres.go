package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	kindString = "string"
	kindList   = "list"
)

// PostgresStore keeps every key as one row of kv_entries. Lists are stored as
// a JSON array of strings, newest element first.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, strings.TrimSpace(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := initPostgresSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func initPostgresSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS kv_entries (
			key TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init kv schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) (string, bool, error) {
	var kind, value string
	err := s.pool.QueryRow(ctx, `SELECT kind, value FROM kv_entries WHERE key=$1`, key).Scan(&kind, &value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	if kind != kindString {
		return "", false, ErrWrongType
	}
	return value, true, nil
}

func (s *PostgresStore) Set(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO kv_entries (key, kind, value) VALUES ($1, 'string', $2)
		 ON CONFLICT (key) DO UPDATE SET kind='string', value=EXCLUDED.value, updated_at=now()`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) Incr(ctx context.Context, key string) (int64, error) {
	return s.IncrBy(ctx, key, 1)
}

func (s *PostgresStore) IncrBy(ctx context.Context, key string, n int64) (int64, error) {
	var out int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO kv_entries (key, kind, value) VALUES ($1, 'string', ($2::bigint)::text)
		 ON CONFLICT (key) DO UPDATE
		   SET value=(kv_entries.value::bigint + $2::bigint)::text, updated_at=now()
		   WHERE kv_entries.kind='string'
		 RETURNING value::bigint`,
		key, n,
	).Scan(&out)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrWrongType
	}
	if err != nil {
		return 0, fmt.Errorf("incrby %s: %w", key, err)
	}
	return out, nil
}

func (s *PostgresStore) LPush(ctx context.Context, key, value string) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO kv_entries (key, kind, value) VALUES ($1, 'list', jsonb_build_array($2::text)::text)
		 ON CONFLICT (key) DO UPDATE
		   SET value=(jsonb_build_array($2::text) || kv_entries.value::jsonb)::text, updated_at=now()
		   WHERE kv_entries.kind='list'`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("lpush %s: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrWrongType
	}
	return nil
}

func (s *PostgresStore) LTrim(ctx context.Context, key string, start, stop int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var kind, value string
	err = tx.QueryRow(ctx, `SELECT kind, value FROM kv_entries WHERE key=$1 FOR UPDATE`, key).Scan(&kind, &value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("ltrim %s: %w", key, err)
	}
	items, err := decodeList(kind, value)
	if err != nil {
		return err
	}

	kept := trimList(items, start, stop)
	if len(kept) == 0 {
		_, err = tx.Exec(ctx, `DELETE FROM kv_entries WHERE key=$1`, key)
	} else {
		var encoded []byte
		encoded, err = json.Marshal(kept)
		if err != nil {
			return fmt.Errorf("encode list %s: %w", key, err)
		}
		_, err = tx.Exec(ctx, `UPDATE kv_entries SET value=$2, updated_at=now() WHERE key=$1`, key, string(encoded))
	}
	if err != nil {
		return fmt.Errorf("ltrim %s: %w", key, err)
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	var kind, value string
	err := s.pool.QueryRow(ctx, `SELECT kind, value FROM kv_entries WHERE key=$1`, key).Scan(&kind, &value)
	if errors.Is(err, pgx.ErrNoRows) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lrange %s: %w", key, err)
	}
	items, err := decodeList(kind, value)
	if err != nil {
		return nil, err
	}
	return rangeList(items, start, stop), nil
}

func (s *PostgresStore) Del(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM kv_entries WHERE key=$1`, key); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func decodeList(kind, value string) ([]string, error) {
	if kind != kindList {
		return nil, ErrWrongType
	}
	var items []string
	if err := json.Unmarshal([]byte(value), &items); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	return items, nil
}
