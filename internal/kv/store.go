// Package kv is the key-value store adapter every Cathedral component persists
// through. The contract mirrors a small subset of Redis: string values, atomic
// counters and lists addressed with Redis range semantics.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrWrongType is returned when a string operation targets a list key or the
// reverse.
var ErrWrongType = errors.New("kv: operation against a key holding the wrong kind of value")

// Store is implemented by every backend. Each call is an independent round
// trip; there are no multi-key transactions.
type Store interface {
	// Get returns the string stored at key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	// Incr and IncrBy are atomic at the store level and create the key at 0.
	Incr(ctx context.Context, key string) (int64, error)
	IncrBy(ctx context.Context, key string, n int64) (int64, error)
	// LPush prepends value to the list at key.
	LPush(ctx context.Context, key, value string) error
	// LTrim keeps only the elements in [start, stop] (inclusive, negative
	// indices count from the tail).
	LTrim(ctx context.Context, key string, start, stop int64) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	Del(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// GetJSON decodes the string value at key into out.
func GetJSON(ctx context.Context, s Store, key string, out any) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON stores v encoded as JSON at key, replacing the whole value.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, string(data))
}

// LRangeJSON decodes every element of the list range into T. Elements that do
// not decode are skipped.
func LRangeJSON[T any](ctx context.Context, s Store, key string, start, stop int64) ([]T, error) {
	raw, err := s.LRange(ctx, key, start, stop)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(raw))
	for _, item := range raw {
		var v T
		if err := json.Unmarshal([]byte(item), &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// LPushJSON encodes v and prepends it to the list at key.
func LPushJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.LPush(ctx, key, string(data))
}
