package library

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/cathedral/cathedral/internal/history"
	"github.com/cathedral/cathedral/internal/kv"
)

// ChatEntry is a history message tagged with the companion that owns it.
type ChatEntry struct {
	Role      string  `json:"role"`
	Content   string  `json:"content"`
	Image     *string `json:"image"`
	Timestamp int64   `json:"timestamp"`
	Companion string  `json:"companion"`
}

// AppendChat pushes an entry onto the (reading, companion) log.
func (s *Store) AppendChat(ctx context.Context, readingID, companion, role, content string) (ChatEntry, error) {
	e := ChatEntry{
		Role:      role,
		Content:   content,
		Timestamp: s.now().UnixMilli(),
		Companion: companion,
	}
	key := kv.ReadingChatKey(readingID, companion)
	if err := kv.LPushJSON(ctx, s.store, key, e); err != nil {
		return ChatEntry{}, fmt.Errorf("append reading chat: %w", err)
	}
	if err := s.store.LTrim(ctx, key, 0, int64(s.historyLimit-1)); err != nil {
		return ChatEntry{}, fmt.Errorf("trim reading chat: %w", err)
	}
	return e, nil
}

// Chat returns the (reading, companion) log oldest first. Read failures
// degrade to empty.
func (s *Store) Chat(ctx context.Context, readingID, companion string) []ChatEntry {
	entries, err := kv.LRangeJSON[ChatEntry](ctx, s.store, kv.ReadingChatKey(readingID, companion), 0, -1)
	if err != nil {
		s.logger.Error().Err(err).Str("reading_id", readingID).Msg("read reading chat failed")
		return []ChatEntry{}
	}
	out := make([]ChatEntry, len(entries))
	for i, e := range entries {
		out[len(entries)-1-i] = e
	}
	return out
}

// ChatAll merges every companion's log for a reading, oldest first.
func (s *Store) ChatAll(ctx context.Context, readingID string) []ChatEntry {
	all := make([]ChatEntry, 0)
	for _, c := range s.companions {
		all = append(all, s.Chat(ctx, readingID, c)...)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Timestamp < all[j].Timestamp })
	return all
}

// ClearChat drops one companion's log, or all of them when companion is "".
func (s *Store) ClearChat(ctx context.Context, readingID, companion string) error {
	targets := s.companions
	if companion != "" {
		targets = []string{companion}
	}
	for _, c := range targets {
		if err := s.store.Del(ctx, kv.ReadingChatKey(readingID, c)); err != nil {
			return fmt.Errorf("clear reading chat: %w", err)
		}
	}
	return nil
}

// AsMessages converts entries for the context assembler, newest first.
func AsMessages(chronological []ChatEntry) []history.Message {
	out := make([]history.Message, len(chronological))
	for i, e := range chronological {
		out[len(chronological)-1-i] = history.Message{
			Role:      e.Role,
			Content:   e.Content,
			Image:     e.Image,
			Timestamp: e.Timestamp,
		}
	}
	return out
}

// MentionAll is the mention that addresses every companion.
const MentionAll = "both"

// Mentions start the text or follow whitespace, so addresses like
// me@rhys.dev are left alone.
var mentionPattern = regexp.MustCompile(`(?i)(?:^|\s)@([a-z0-9_-]+)`)

// ParseMentions returns the companions addressed by @name tokens in text, in
// order of first appearance, and the text with those tokens removed. @both
// expands to every known companion. Unknown @tokens stay in the text.
func ParseMentions(text string, known []string) ([]string, string) {
	knownSet := make(map[string]bool, len(known))
	for _, k := range known {
		knownSet[strings.ToLower(k)] = true
	}

	seen := make(map[string]bool)
	var targets []string
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			targets = append(targets, name)
		}
	}

	cleaned := mentionPattern.ReplaceAllStringFunc(text, func(tok string) string {
		at := strings.IndexByte(tok, '@')
		name := strings.ToLower(tok[at+1:])
		switch {
		case name == MentionAll:
			for _, k := range known {
				add(strings.ToLower(k))
			}
		case knownSet[name]:
			add(name)
		default:
			return tok
		}
		return tok[:at]
	})
	return targets, strings.Join(strings.Fields(cleaned), " ")
}

// Route decides who replies to a reading-chat message and which log each
// reply lands in.
type Route struct {
	Target string
	LogKey string
}

// ResolveRoutes picks targets from mentions first, then the companion field,
// then the first known companion. With legacy keying every reply is stored
// under the single requested companion (defaulting to the first known one),
// which funnels @both into one log. Otherwise each target keeps its own log.
func ResolveRoutes(text, companion string, known []string, legacy bool) ([]Route, string) {
	if len(known) == 0 {
		return nil, strings.TrimSpace(text)
	}
	targets, cleaned := ParseMentions(text, known)

	requested := strings.ToLower(strings.TrimSpace(companion))
	if !contains(known, requested) {
		requested = ""
	}
	if len(targets) == 0 {
		if requested != "" {
			targets = []string{requested}
		} else {
			targets = []string{strings.ToLower(known[0])}
		}
	}
	if cleaned == "" {
		cleaned = strings.TrimSpace(text)
	}

	legacyKey := requested
	if legacyKey == "" {
		legacyKey = strings.ToLower(known[0])
	}
	routes := make([]Route, 0, len(targets))
	for _, t := range targets {
		key := t
		if legacy {
			key = legacyKey
		}
		routes = append(routes, Route{Target: t, LogKey: key})
	}
	return routes, cleaned
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

// ReadingContext renders the reading for a companion's instructions.
func ReadingContext(r Reading) string {
	var b strings.Builder
	b.WriteString("The user is reading \"")
	b.WriteString(r.Title)
	b.WriteString("\"")
	if r.URL != "" {
		b.WriteString(" (")
		b.WriteString(r.URL)
		b.WriteString(")")
	}
	if r.Progress != nil {
		fmt.Fprintf(&b, ", %.0f%% through", *r.Progress)
	}
	b.WriteString(".\n```\n")
	b.WriteString(r.Text)
	b.WriteString("\n```")
	return b.String()
}
