package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cathedral/cathedral/internal/idgen"
	"github.com/cathedral/cathedral/internal/kv"
)

var ErrNotFound = errors.New("session not found")

// HistoryClearer deletes a session's history log when the session goes away.
type HistoryClearer interface {
	Clear(ctx context.Context, sessionID string) error
}

// Manager is the session registry of one persona. The whole session list is
// one stored value: every mutation reads, modifies and rewrites it, so
// concurrent writers race and the last one wins.
type Manager struct {
	store     kv.Store
	namespace string
	history   HistoryClearer
	logger    zerolog.Logger
	now       func() time.Time
}

func NewManager(store kv.Store, namespace string, history HistoryClearer, logger zerolog.Logger) *Manager {
	return &Manager{
		store:     store,
		namespace: namespace,
		history:   history,
		logger:    logger.With().Str("component", "sessions").Str("persona", namespace).Logger(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// List returns the stored list as-is. Store failures degrade to an empty list.
func (m *Manager) List(ctx context.Context) []Session {
	sessions, err := m.load(ctx)
	if err != nil {
		m.logger.Error().Err(err).Msg("list sessions failed")
		return []Session{}
	}
	return sessions
}

func (m *Manager) Get(ctx context.Context, id string) (Session, error) {
	sessions, err := m.load(ctx)
	if err != nil {
		return Session{}, err
	}
	for _, s := range sessions {
		if s.ID == id {
			return s, nil
		}
	}
	return Session{}, ErrNotFound
}

// Create prepends a new session. The default name counts the sessions that
// exist right now, so deletions shift later defaults.
func (m *Manager) Create(ctx context.Context, name string) (Session, error) {
	sessions, err := m.load(ctx)
	if err != nil {
		return Session{}, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = fmt.Sprintf("Chat %d", len(sessions)+1)
	}
	now := m.now()
	s := Session{
		ID:        idgen.Short(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}

	next := make([]Session, 0, len(sessions)+1)
	next = append(next, s)
	next = append(next, sessions...)
	if err := m.save(ctx, next); err != nil {
		return Session{}, err
	}
	return s, nil
}

func (m *Manager) Rename(ctx context.Context, id, name string) (bool, error) {
	sessions, err := m.load(ctx)
	if err != nil {
		return false, err
	}
	idx := indexOf(sessions, id)
	if idx < 0 {
		return false, nil
	}
	sessions[idx].Name = strings.TrimSpace(name)
	sessions[idx].UpdatedAt = m.now()
	return true, m.save(ctx, sessions)
}

// Delete removes the session and its history log.
func (m *Manager) Delete(ctx context.Context, id string) (bool, error) {
	sessions, err := m.load(ctx)
	if err != nil {
		return false, err
	}
	idx := indexOf(sessions, id)
	if idx < 0 {
		return false, nil
	}
	next := append(sessions[:idx:idx], sessions[idx+1:]...)
	if err := m.save(ctx, next); err != nil {
		return false, err
	}
	if m.history != nil {
		if err := m.history.Clear(ctx, id); err != nil {
			return true, fmt.Errorf("clear history of %s: %w", id, err)
		}
	}
	return true, nil
}

// Touch bumps UpdatedAt in place. The list is deliberately not re-sorted.
func (m *Manager) Touch(ctx context.Context, id string) error {
	sessions, err := m.load(ctx)
	if err != nil {
		return err
	}
	idx := indexOf(sessions, id)
	if idx < 0 {
		return ErrNotFound
	}
	sessions[idx].UpdatedAt = m.now()
	return m.save(ctx, sessions)
}

func (m *Manager) load(ctx context.Context) ([]Session, error) {
	var sessions []Session
	if _, err := kv.GetJSON(ctx, m.store, kv.SessionsKey(m.namespace), &sessions); err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	if sessions == nil {
		sessions = []Session{}
	}
	return sessions, nil
}

func (m *Manager) save(ctx context.Context, sessions []Session) error {
	if err := kv.SetJSON(ctx, m.store, kv.SessionsKey(m.namespace), sessions); err != nil {
		return fmt.Errorf("save sessions: %w", err)
	}
	return nil
}

func indexOf(sessions []Session, id string) int {
	for i, s := range sessions {
		if s.ID == id {
			return i
		}
	}
	return -1
}
