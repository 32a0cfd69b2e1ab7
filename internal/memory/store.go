// Package memory keeps the long-term facts a persona remembers about the user.
package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cathedral/cathedral/internal/kv"
)

// Store is the memory list of one persona. Ids come from a store counter that
// is bumped before the list is rewritten, so ids are never reused even when
// the write that follows fails.
type Store struct {
	store     kv.Store
	namespace string
	// maxItems > 0 evicts the oldest memories past that count. Zero keeps the
	// list unbounded.
	maxItems int
	logger   zerolog.Logger
	now      func() time.Time
}

func NewStore(store kv.Store, namespace string, maxItems int, logger zerolog.Logger) *Store {
	return &Store{
		store:     store,
		namespace: namespace,
		maxItems:  maxItems,
		logger:    logger.With().Str("component", "memories").Str("persona", namespace).Logger(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// List returns memories oldest first. Store failures degrade to an empty list.
func (s *Store) List(ctx context.Context) []Memory {
	items, err := s.load(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("list memories failed")
		return []Memory{}
	}
	return items
}

// Add stores text as a new memory. Duplicates are allowed.
func (s *Store) Add(ctx context.Context, text string) (Memory, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Memory{}, fmt.Errorf("memory text is empty")
	}

	n, err := s.store.Incr(ctx, kv.MemoryCounterKey(s.namespace))
	if err != nil {
		return Memory{}, fmt.Errorf("next memory id: %w", err)
	}
	items, err := s.load(ctx)
	if err != nil {
		return Memory{}, err
	}

	m := Memory{ID: ID(n), Text: text, CreatedAt: s.now()}
	items = append(items, m)
	if s.maxItems > 0 && len(items) > s.maxItems {
		items = items[len(items)-s.maxItems:]
	}
	if err := s.save(ctx, items); err != nil {
		return Memory{}, err
	}
	return m, nil
}

// Delete removes the memory whose id matches raw, which may be "7" or "#7".
// It reports false without writing when nothing matches.
func (s *Store) Delete(ctx context.Context, raw string) (bool, error) {
	id, ok := ParseID(raw)
	if !ok {
		return false, nil
	}
	items, err := s.load(ctx)
	if err != nil {
		return false, err
	}
	for i, m := range items {
		if m.ID != id {
			continue
		}
		next := append(items[:i:i], items[i+1:]...)
		if err := s.save(ctx, next); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

func (s *Store) load(ctx context.Context) ([]Memory, error) {
	var items []Memory
	if _, err := kv.GetJSON(ctx, s.store, kv.MemoriesKey(s.namespace), &items); err != nil {
		return nil, fmt.Errorf("load memories: %w", err)
	}
	if items == nil {
		items = []Memory{}
	}
	return items, nil
}

func (s *Store) save(ctx context.Context, items []Memory) error {
	if err := kv.SetJSON(ctx, s.store, kv.MemoriesKey(s.namespace), items); err != nil {
		return fmt.Errorf("save memories: %w", err)
	}
	return nil
}
