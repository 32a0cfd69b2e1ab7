package kv

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteStore is a single-file backend for single-host deployments.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite is single-writer; one shared connection serializes callers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	stmts := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		`CREATE TABLE IF NOT EXISTS kv_entries (
			key TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			value TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init sqlite failed on %q: %w", stmt, err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	kind, value, ok, err := s.load(ctx, s.db, key)
	if err != nil || !ok {
		return "", false, err
	}
	if kind != kindString {
		return "", false, ErrWrongType
	}
	return value, true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv_entries (key, kind, value) VALUES (?, 'string', ?)
		 ON CONFLICT (key) DO UPDATE SET kind='string', value=excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Incr(ctx context.Context, key string) (int64, error) {
	return s.IncrBy(ctx, key, 1)
}

func (s *SQLiteStore) IncrBy(ctx context.Context, key string, n int64) (int64, error) {
	var out int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		kind, value, ok, err := s.load(ctx, tx, key)
		if err != nil {
			return err
		}
		var cur int64
		if ok {
			if kind != kindString {
				return ErrWrongType
			}
			cur, err = strconv.ParseInt(value, 10, 64)
			if err != nil {
				return ErrWrongType
			}
		}
		out = cur + n
		return s.store(ctx, tx, key, kindString, strconv.FormatInt(out, 10))
	})
	return out, err
}

func (s *SQLiteStore) LPush(ctx context.Context, key, value string) error {
	return s.mutateList(ctx, key, func(items []string) []string {
		return pushFront(items, value)
	})
}

func (s *SQLiteStore) LTrim(ctx context.Context, key string, start, stop int64) error {
	return s.mutateList(ctx, key, func(items []string) []string {
		return trimList(items, start, stop)
	})
}

func (s *SQLiteStore) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	kind, value, ok, err := s.load(ctx, s.db, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []string{}, nil
	}
	items, err := decodeList(kind, value)
	if err != nil {
		return nil, err
	}
	return rangeList(items, start, stop), nil
}

func (s *SQLiteStore) Del(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE key=?`, key); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) load(ctx context.Context, q queryer, key string) (kind, value string, ok bool, err error) {
	err = q.QueryRowContext(ctx, `SELECT kind, value FROM kv_entries WHERE key=?`, key).Scan(&kind, &value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, fmt.Errorf("load %s: %w", key, err)
	}
	return kind, value, true, nil
}

func (s *SQLiteStore) store(ctx context.Context, tx *sql.Tx, key, kind, value string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO kv_entries (key, kind, value) VALUES (?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET kind=excluded.kind, value=excluded.value`,
		key, kind, value,
	)
	if err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) mutateList(ctx context.Context, key string, fn func([]string) []string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		kind, value, ok, err := s.load(ctx, tx, key)
		if err != nil {
			return err
		}
		var items []string
		if ok {
			items, err = decodeList(kind, value)
			if err != nil {
				return err
			}
		}
		next := fn(items)
		if len(next) == 0 {
			_, err := tx.ExecContext(ctx, `DELETE FROM kv_entries WHERE key=?`, key)
			return err
		}
		encoded, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode list %s: %w", key, err)
		}
		return s.store(ctx, tx, key, kindList, string(encoded))
	})
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
