package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cathedral/cathedral/internal/history"
	"github.com/cathedral/cathedral/internal/library"
	"github.com/cathedral/cathedral/internal/llm"
	"github.com/cathedral/cathedral/internal/prompt"
)

var ErrEmptyMessage = errors.New("message text is required")

// ReadingRequest is a message about a reading. Mentions in Text take
// priority over Companion.
type ReadingRequest struct {
	Text      string `json:"text"`
	Companion string `json:"companion"`
}

// ReadingReply is one companion's answer.
type ReadingReply struct {
	Companion string            `json:"companion"`
	Text      string            `json:"text"`
	Usage     llm.Usage         `json:"usage"`
	Saved     []string          `json:"savedMemories,omitempty"`
	Entry     library.ChatEntry `json:"entry"`
}

// LibraryChat lets companions discuss a reading.
type LibraryChat struct {
	readings *library.Store
	personas map[string]*Orchestrator
	order    []string
	// legacyKeying stores every reply of a message under the single
	// requested companion.
	legacyKeying bool
	logger       zerolog.Logger
}

// NewLibraryChat takes the orchestrators in mention order; the first one is
// the default companion.
func NewLibraryChat(readings *library.Store, legacyKeying bool, logger zerolog.Logger, companions ...*Orchestrator) *LibraryChat {
	lc := &LibraryChat{
		readings:     readings,
		personas:     make(map[string]*Orchestrator, len(companions)),
		legacyKeying: legacyKeying,
		logger:       logger.With().Str("component", "library_chat").Logger(),
	}
	for _, o := range companions {
		name := strings.ToLower(o.persona.Namespace)
		lc.personas[name] = o
		lc.order = append(lc.order, name)
	}
	return lc
}

func (lc *LibraryChat) Companions() []string {
	return append([]string(nil), lc.order...)
}

// Send routes a message to the addressed companions. Each reply is generated
// against the log it will be stored in.
func (lc *LibraryChat) Send(ctx context.Context, readingID string, req ReadingRequest) ([]ReadingReply, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	reading, err := lc.readings.Get(ctx, readingID)
	if err != nil {
		return nil, err
	}

	routes, cleaned := library.ResolveRoutes(text, req.Companion, lc.order, lc.legacyKeying)
	replies := make([]ReadingReply, 0, len(routes))
	userLogged := make(map[string]bool, len(routes))
	for _, route := range routes {
		o, ok := lc.personas[route.Target]
		if !ok {
			continue
		}
		log := lc.logger.With().Str("reading_id", readingID).Str("companion", route.Target).Str("log_key", route.LogKey).Logger()

		chatLog := lc.readings.Chat(ctx, readingID, route.LogKey)
		contextText := strings.Join([]string{
			library.ReadingContext(reading),
			prompt.Build(library.AsMessages(chatLog), o.memories.List(ctx), nil),
		}, "\n\n")
		instructions := prompt.Instructions(o.persona.Instructions, contextText, "")

		out, err := o.generate(ctx, llm.Request{
			TurnID:       llm.NewTurnID(),
			Persona:      o.persona.Namespace,
			Model:        o.persona.Model,
			Instructions: instructions,
			Input:        cleaned,
		}, nil, time.Now())
		if err != nil {
			log.Error().Err(err).Msg("reading chat generation failed")
			return replies, fmt.Errorf("%s: %w", route.Target, err)
		}

		if !userLogged[route.LogKey] {
			userLogged[route.LogKey] = true
			if _, err := lc.readings.AppendChat(ctx, readingID, route.LogKey, history.RoleUser, text); err != nil {
				log.Error().Err(err).Msg("persist reading chat message failed")
			}
		}
		entry, err := lc.readings.AppendChat(ctx, readingID, route.LogKey, history.RoleAssistant, out.text)
		if err != nil {
			log.Error().Err(err).Msg("persist reading chat reply failed")
		}

		saved := make([]string, 0, len(out.saved))
		for _, m := range out.saved {
			saved = append(saved, m.Text)
		}
		replies = append(replies, ReadingReply{
			Companion: route.Target,
			Text:      out.text,
			Usage:     out.usage,
			Saved:     saved,
			Entry:     entry,
		})
	}
	return replies, nil
}
