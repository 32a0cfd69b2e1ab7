// Package history stores bounded chat logs. Entries are pushed to the front
// of a store list, so storage order is newest first; callers that need
// reading order ask for Chronological explicitly.
package history

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cathedral/cathedral/internal/kv"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	DefaultLimit       = 100
	LegacyLimit        = 50
	DefaultSearchLimit = 50
)

// Message is one chat entry.
type Message struct {
	Role      string  `json:"role"`
	Content   string  `json:"content"`
	Image     *string `json:"image"`
	Timestamp int64   `json:"timestamp"`
}

// NewMessage stamps a message with the current time in epoch milliseconds.
func NewMessage(role, content, image string) Message {
	m := Message{Role: role, Content: content, Timestamp: time.Now().UnixMilli()}
	if strings.TrimSpace(image) != "" {
		img := image
		m.Image = &img
	}
	return m
}

// Log is the per-session history of one persona.
type Log struct {
	store     kv.Store
	namespace string
	limit     int
	logger    zerolog.Logger
}

func NewLog(store kv.Store, namespace string, limit int, logger zerolog.Logger) *Log {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Log{
		store:     store,
		namespace: namespace,
		limit:     limit,
		logger:    logger.With().Str("component", "history").Str("persona", namespace).Logger(),
	}
}

func (l *Log) Limit() int { return l.limit }

func (l *Log) key(sessionID string) string {
	return kv.ChatKey(l.namespace, sessionID)
}

// Append pushes a message to the front and trims the log to the most recent
// entries.
func (l *Log) Append(ctx context.Context, sessionID, role, content, image string) (Message, error) {
	msg := NewMessage(role, content, image)
	if err := AppendAt(ctx, l.store, l.key(sessionID), msg, l.limit); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// Read returns the log newest first. Store failures degrade to an empty log.
func (l *Log) Read(ctx context.Context, sessionID string) []Message {
	msgs, err := ReadAt(ctx, l.store, l.key(sessionID))
	if err != nil {
		l.logger.Error().Err(err).Str("session_id", sessionID).Msg("read history failed")
		return []Message{}
	}
	return msgs
}

// Chronological returns the log oldest first.
func (l *Log) Chronological(ctx context.Context, sessionID string) []Message {
	return Reverse(l.Read(ctx, sessionID))
}

// TruncateRecent drops the count most recent messages, as if they had never
// been appended.
func (l *Log) TruncateRecent(ctx context.Context, sessionID string, count int) error {
	return TruncateRecentAt(ctx, l.store, l.key(sessionID), count)
}

func (l *Log) Clear(ctx context.Context, sessionID string) error {
	if err := l.store.Del(ctx, l.key(sessionID)); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

// SearchTarget names one session to scan.
type SearchTarget struct {
	SessionID   string
	SessionName string
}

// SearchHit is one matching message.
type SearchHit struct {
	SessionID   string `json:"sessionId"`
	SessionName string `json:"sessionName"`
	Role        string `json:"role"`
	Content     string `json:"content"`
	Timestamp   int64  `json:"timestamp"`
}

// Search scans every target's log for a case-insensitive substring match and
// returns hits newest first, capped at limit. limit never exceeds
// DefaultSearchLimit.
func (l *Log) Search(ctx context.Context, targets []SearchTarget, query string, limit int) []SearchHit {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return []SearchHit{}
	}
	if limit <= 0 || limit > DefaultSearchLimit {
		limit = DefaultSearchLimit
	}

	hits := make([]SearchHit, 0)
	for _, t := range targets {
		for _, m := range l.Read(ctx, t.SessionID) {
			if !strings.Contains(strings.ToLower(m.Content), needle) {
				continue
			}
			hits = append(hits, SearchHit{
				SessionID:   t.SessionID,
				SessionName: t.SessionName,
				Role:        m.Role,
				Content:     m.Content,
				Timestamp:   m.Timestamp,
			})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Timestamp > hits[j].Timestamp })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// AppendAt pushes msg onto the log stored at key and trims it to limit.
func AppendAt(ctx context.Context, store kv.Store, key string, msg Message, limit int) error {
	if err := kv.LPushJSON(ctx, store, key, msg); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	if limit > 0 {
		if err := store.LTrim(ctx, key, 0, int64(limit-1)); err != nil {
			return fmt.Errorf("trim history: %w", err)
		}
	}
	return nil
}

// ReadAt returns the log stored at key, newest first.
func ReadAt(ctx context.Context, store kv.Store, key string) ([]Message, error) {
	msgs, err := kv.LRangeJSON[Message](ctx, store, key, 0, -1)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return msgs, nil
}

// TruncateRecentAt removes the count front entries of the log at key.
func TruncateRecentAt(ctx context.Context, store kv.Store, key string, count int) error {
	if count <= 0 {
		return nil
	}
	if err := store.LTrim(ctx, key, int64(count), -1); err != nil {
		return fmt.Errorf("truncate history: %w", err)
	}
	return nil
}

// Reverse returns a reversed copy.
func Reverse(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[len(msgs)-1-i] = m
	}
	return out
}
