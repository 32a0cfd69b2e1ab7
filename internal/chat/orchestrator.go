// Package chat runs a persona's conversation turns: slash commands, context
// assembly, generation and memory directive handling.
package chat

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cathedral/cathedral/internal/history"
	"github.com/cathedral/cathedral/internal/llm"
	"github.com/cathedral/cathedral/internal/memory"
	"github.com/cathedral/cathedral/internal/observability"
	"github.com/cathedral/cathedral/internal/persona"
	"github.com/cathedral/cathedral/internal/policy"
	"github.com/cathedral/cathedral/internal/projectfile"
	"github.com/cathedral/cathedral/internal/prompt"
	"github.com/cathedral/cathedral/internal/session"
)

var ErrSessionRequired = errors.New("session id is required")

// Deps wires one persona's orchestrator.
type Deps struct {
	Persona  persona.Persona
	Sessions *session.Manager
	History  *history.Log
	Memories *memory.Store
	Files    *projectfile.Store
	Adapter  llm.Adapter
	Tools    llm.Tools
	Metrics  *observability.Metrics
	Logger   zerolog.Logger
	// HistoryWindow limits how many recent messages go into the context.
	// Zero sends the whole stored log.
	HistoryWindow int
}

// Orchestrator handles chat turns for one persona.
type Orchestrator struct {
	persona       persona.Persona
	sessions      *session.Manager
	history       *history.Log
	memories      *memory.Store
	files         *projectfile.Store
	adapter       llm.Adapter
	tools         llm.Tools
	metrics       *observability.Metrics
	logger        zerolog.Logger
	historyWindow int
}

func New(d Deps) *Orchestrator {
	tools := d.Tools
	if tools == nil {
		tools = llm.MockTools{}
	}
	return &Orchestrator{
		persona:       d.Persona,
		sessions:      d.Sessions,
		history:       d.History,
		memories:      d.Memories,
		files:         d.Files,
		adapter:       d.Adapter,
		tools:         tools,
		metrics:       d.Metrics,
		logger:        d.Logger.With().Str("component", "chat").Str("persona", d.Persona.Namespace).Logger(),
		historyWindow: d.HistoryWindow,
	}
}

func (o *Orchestrator) Persona() persona.Persona { return o.persona }

// Request is one inbound chat message.
type Request struct {
	Text      string `json:"text"`
	SessionID string `json:"sessionId"`
	// Image is an optional image URL sent along with the text.
	Image string `json:"image,omitempty"`
}

// Result is what the caller shows the user.
type Result struct {
	Text    string     `json:"text"`
	Image   string     `json:"image,omitempty"`
	Command string     `json:"command,omitempty"`
	TurnID  string     `json:"turnId,omitempty"`
	Usage   *llm.Usage `json:"usage,omitempty"`
	// Saved lists memories created from directives in the reply.
	Saved []memory.Memory `json:"savedMemories,omitempty"`
}

// Send runs a turn and waits for the complete reply.
func (o *Orchestrator) Send(ctx context.Context, req Request) (Result, error) {
	return o.run(ctx, req, nil)
}

// Stream runs a turn and forwards reply fragments to onDelta as they
// arrive, with memory directives filtered out. Command replies arrive as a
// single fragment.
func (o *Orchestrator) Stream(ctx context.Context, req Request, onDelta llm.DeltaHandler) (Result, error) {
	return o.run(ctx, req, onDelta)
}

func (o *Orchestrator) run(ctx context.Context, req Request, onDelta llm.DeltaHandler) (Result, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return Result{}, nil
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		return Result{}, ErrSessionRequired
	}

	if cmd, arg, ok := parseCommand(text); ok {
		o.metrics.ObserveCommand(o.persona.Namespace, cmd)
		res, err := o.runCommand(ctx, sessionID, text, cmd, arg)
		if err != nil {
			o.metrics.ObserveTurn(o.persona.Namespace, "error")
			return Result{}, err
		}
		o.metrics.ObserveTurn(o.persona.Namespace, "command")
		if onDelta != nil && res.Text != "" {
			if err := onDelta(res.Text); err != nil {
				return Result{}, err
			}
		}
		return res, nil
	}

	return o.converse(ctx, sessionID, text, strings.TrimSpace(req.Image), onDelta)
}

func (o *Orchestrator) converse(ctx context.Context, sessionID, text, image string, onDelta llm.DeltaHandler) (Result, error) {
	started := time.Now()
	turnID := llm.NewTurnID()
	log := o.logger.With().Str("session_id", sessionID).Str("turn_id", turnID).Logger()
	log.Debug().Str("preview", policy.Preview(text, 80)).Msg("chat turn started")

	contextText := prompt.BuildWith(
		prompt.Options{HistoryWindow: o.historyWindow},
		o.history.Read(ctx, sessionID),
		o.memories.List(ctx),
		o.files.List(ctx),
	)
	instructions := prompt.Instructions(o.persona.Instructions, contextText, prompt.CommandHints)
	o.metrics.ObserveStage(observability.StageContextReady, time.Since(started))

	out, err := o.generate(ctx, llm.Request{
		TurnID:       turnID,
		Persona:      o.persona.Namespace,
		SessionID:    sessionID,
		Model:        o.persona.Model,
		Instructions: instructions,
		Input:        text,
		ImageURL:     image,
	}, onDelta, started)
	if err != nil {
		o.metrics.ObserveTurn(o.persona.Namespace, "error")
		log.Error().Err(err).Msg("generation failed")
		return Result{}, err
	}

	persistStart := time.Now()
	if _, err := o.history.Append(ctx, sessionID, history.RoleUser, text, image); err != nil {
		o.metrics.ObserveStoreError("history_append")
		log.Error().Err(err).Msg("persist user message failed")
	}
	if _, err := o.history.Append(ctx, sessionID, history.RoleAssistant, out.text, ""); err != nil {
		o.metrics.ObserveStoreError("history_append")
		log.Error().Err(err).Msg("persist reply failed")
	}
	o.touch(ctx, log, sessionID)
	o.metrics.ObserveStage(observability.StagePersist, time.Since(persistStart))
	o.metrics.ObserveStage(observability.StageTurnTotal, time.Since(started))
	o.metrics.ObserveTurn(o.persona.Namespace, "ok")

	log.Info().
		Int("input_tokens", out.usage.InputTokens).
		Int("output_tokens", out.usage.OutputTokens).
		Int("memories_saved", len(out.saved)).
		Dur("elapsed", time.Since(started)).
		Msg("chat turn completed")

	usage := out.usage
	return Result{Text: out.text, TurnID: turnID, Usage: &usage, Saved: out.saved}, nil
}

type generation struct {
	text  string
	usage llm.Usage
	saved []memory.Memory
}

// generate calls the backend, then saves and strips memory directives.
func (o *Orchestrator) generate(ctx context.Context, req llm.Request, onDelta llm.DeltaHandler, started time.Time) (generation, error) {
	var forward llm.DeltaHandler
	var filter *directiveFilter
	if onDelta != nil {
		first := true
		filter = newDirectiveFilter(func(delta string) error {
			if first {
				first = false
				o.metrics.ObserveStage(observability.StageFirstDelta, time.Since(started))
			}
			return onDelta(delta)
		})
		forward = filter.Write
	}

	genStart := time.Now()
	resp, err := o.adapter.StreamResponse(ctx, req, forward)
	o.metrics.ObserveGeneration(o.persona.Namespace, time.Since(genStart))
	o.metrics.ObserveStage(observability.StageGeneration, time.Since(genStart))
	if err != nil {
		o.metrics.ObserveProviderError(o.persona.Namespace, providerErrorCode(err))
		return generation{}, err
	}
	if filter != nil {
		if err := filter.Flush(); err != nil {
			return generation{}, err
		}
	}

	cleaned, facts := memory.ExtractDirectives(resp.Text)
	saved := make([]memory.Memory, 0, len(facts))
	for _, fact := range facts {
		m, err := o.memories.Add(ctx, fact)
		if err != nil {
			o.metrics.ObserveStoreError("memory_add")
			o.logger.Error().Err(err).Str("turn_id", req.TurnID).Msg("save memory directive failed")
			continue
		}
		o.metrics.ObserveMemorySaved(o.persona.Namespace, "directive")
		saved = append(saved, m)
	}
	return generation{text: cleaned, usage: resp.Usage, saved: saved}, nil
}

func (o *Orchestrator) touch(ctx context.Context, log zerolog.Logger, sessionID string) {
	if err := o.sessions.Touch(ctx, sessionID); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			log.Warn().Msg("chat on unknown session")
			return
		}
		o.metrics.ObserveStoreError("session_touch")
		log.Error().Err(err).Msg("touch session failed")
	}
}

func providerErrorCode(err error) string {
	var statusErr *llm.StatusError
	switch {
	case errors.As(err, &statusErr):
		return statusErr.Provider + "_" + strconv.Itoa(statusErr.Status)
	case errors.Is(err, llm.ErrMissingCredential):
		return "missing_credential"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "other"
	}
}
