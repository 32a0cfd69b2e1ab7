package library

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cathedral/cathedral/internal/history"
	"github.com/cathedral/cathedral/internal/idgen"
	"github.com/cathedral/cathedral/internal/kv"
	"github.com/cathedral/cathedral/internal/projectfile"
)

// Store holds every reading under one key, newest first. Deleting a reading
// drops the chat logs of the companions passed to NewStore. Each
// (reading, companion) chat log keeps at most historyLimit entries.
type Store struct {
	store        kv.Store
	maxChars     int
	historyLimit int
	companions   []string
	logger     zerolog.Logger
	now        func() time.Time
}

func NewStore(store kv.Store, maxChars, historyLimit int, companions []string, logger zerolog.Logger) *Store {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	if historyLimit <= 0 {
		historyLimit = history.DefaultLimit
	}
	return &Store{
		store:        store,
		maxChars:     maxChars,
		historyLimit: historyLimit,
		companions:   append([]string(nil), companions...),
		logger:       logger.With().Str("component", "library").Logger(),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// List degrades to an empty list on store failure.
func (s *Store) List(ctx context.Context) []Reading {
	readings, err := s.load(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("list readings failed")
		return []Reading{}
	}
	return readings
}

func (s *Store) Get(ctx context.Context, id string) (Reading, error) {
	readings, err := s.load(ctx)
	if err != nil {
		return Reading{}, err
	}
	for _, r := range readings {
		if r.ID == id {
			return r, nil
		}
	}
	return Reading{}, ErrNotFound
}

func (s *Store) Create(ctx context.Context, req CreateRequest) (Reading, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return Reading{}, fmt.Errorf("%w: text is required", ErrInvalidInput)
	}
	source, ok := NormalizeSource(req.Source)
	if !ok {
		return Reading{}, fmt.Errorf("%w: unknown source %q", ErrInvalidInput, req.Source)
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = DefaultTitle
	}

	readings, err := s.load(ctx)
	if err != nil {
		return Reading{}, err
	}
	now := s.now()
	text = projectfile.Truncate(text, s.maxChars)
	r := Reading{
		ID:        idgen.Sortable(),
		Title:     title,
		URL:       strings.TrimSpace(req.URL),
		Text:      text,
		Source:    source,
		WordCount: WordCount(text),
		CreatedAt: now,
		UpdatedAt: now,
	}
	readings = append([]Reading{r}, readings...)
	if err := s.save(ctx, readings); err != nil {
		return Reading{}, err
	}
	s.logger.Info().Str("reading_id", r.ID).Str("source", r.Source).Int("words", r.WordCount).Msg("reading captured")
	return r, nil
}

// Update applies a partial update. Text changes re-truncate and recount.
func (s *Store) Update(ctx context.Context, id string, req UpdateRequest) (Reading, error) {
	readings, err := s.load(ctx)
	if err != nil {
		return Reading{}, err
	}
	for i := range readings {
		r := &readings[i]
		if r.ID != id {
			continue
		}
		if req.Title != nil {
			if title := strings.TrimSpace(*req.Title); title != "" {
				r.Title = title
			}
		}
		if req.URL != nil {
			r.URL = strings.TrimSpace(*req.URL)
		}
		if req.Text != nil {
			r.Text = projectfile.Truncate(*req.Text, s.maxChars)
			r.WordCount = WordCount(r.Text)
		}
		if req.Progress != nil {
			p := *req.Progress
			r.Progress = &p
		}
		r.UpdatedAt = s.now()
		if err := s.save(ctx, readings); err != nil {
			return Reading{}, err
		}
		return *r, nil
	}
	return Reading{}, ErrNotFound
}

func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	readings, err := s.load(ctx)
	if err != nil {
		return false, err
	}
	for i, r := range readings {
		if r.ID != id {
			continue
		}
		next := append(readings[:i:i], readings[i+1:]...)
		if err := s.save(ctx, next); err != nil {
			return false, err
		}
		for _, companion := range s.companions {
			if err := s.store.Del(ctx, kv.ReadingChatKey(id, companion)); err != nil {
				s.logger.Warn().Err(err).Str("reading_id", id).Str("companion", companion).Msg("drop reading chat failed")
			}
		}
		return true, nil
	}
	return false, nil
}

func (s *Store) load(ctx context.Context) ([]Reading, error) {
	var readings []Reading
	if _, err := kv.GetJSON(ctx, s.store, kv.ReadingsKey, &readings); err != nil {
		return nil, fmt.Errorf("load readings: %w", err)
	}
	if readings == nil {
		readings = []Reading{}
	}
	return readings, nil
}

func (s *Store) save(ctx context.Context, readings []Reading) error {
	if err := kv.SetJSON(ctx, s.store, kv.ReadingsKey, readings); err != nil {
		return fmt.Errorf("save readings: %w", err)
	}
	return nil
}
