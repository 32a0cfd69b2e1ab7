package kv

import (
	"context"
	"sort"
	"strconv"
	"sync"
)

type memoryEntry struct {
	str    string
	list   []string
	isList bool
}

// MemoryStore is an in-process Store for local/dev use and tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return "", false, nil
	}
	if e.isList {
		return "", false, ErrWrongType
	}
	return e.str, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{str: value}
	return nil
}

func (s *MemoryStore) Incr(ctx context.Context, key string) (int64, error) {
	return s.IncrBy(ctx, key, 1)
}

func (s *MemoryStore) IncrBy(_ context.Context, key string, n int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if ok && e.isList {
		return 0, ErrWrongType
	}
	var cur int64
	if ok {
		v, err := strconv.ParseInt(e.str, 10, 64)
		if err != nil {
			return 0, ErrWrongType
		}
		cur = v
	}
	cur += n
	s.entries[key] = memoryEntry{str: strconv.FormatInt(cur, 10)}
	return cur, nil
}

func (s *MemoryStore) LPush(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if ok && !e.isList {
		return ErrWrongType
	}
	s.entries[key] = memoryEntry{list: pushFront(e.list, value), isList: true}
	return nil
}

func (s *MemoryStore) LTrim(_ context.Context, key string, start, stop int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil
	}
	if !e.isList {
		return ErrWrongType
	}
	kept := trimList(e.list, start, stop)
	if len(kept) == 0 {
		delete(s.entries, key)
		return nil
	}
	s.entries[key] = memoryEntry{list: kept, isList: true}
	return nil
}

func (s *MemoryStore) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return []string{}, nil
	}
	if !e.isList {
		return nil, ErrWrongType
	}
	return rangeList(e.list, start, stop), nil
}

func (s *MemoryStore) Del(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

// Keys returns the names of every key currently held, sorted.
func (s *MemoryStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for k := range s.entries {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
