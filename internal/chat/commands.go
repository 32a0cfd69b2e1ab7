package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/cathedral/cathedral/internal/history"
	"github.com/cathedral/cathedral/internal/memory"
)

const (
	CmdSave     = "/save"
	CmdForget   = "/forget"
	CmdMemories = "/memories"
	CmdImagine  = "/imagine"
	CmdSearch   = "/search"
)

// parseCommand recognizes a slash command as the first word of text.
// Unknown commands are not commands and go to generation.
func parseCommand(text string) (cmd, arg string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	head, rest, _ := strings.Cut(text, " ")
	head = strings.ToLower(head)
	switch head {
	case CmdSave, CmdForget, CmdMemories, CmdImagine, CmdSearch:
		return head, strings.TrimSpace(rest), true
	default:
		return "", "", false
	}
}

func (o *Orchestrator) runCommand(ctx context.Context, sessionID, text, cmd, arg string) (Result, error) {
	switch cmd {
	case CmdSave:
		return o.cmdSave(ctx, arg)
	case CmdForget:
		return o.cmdForget(ctx, arg)
	case CmdMemories:
		return Result{Text: memory.FormatForDisplay(o.memories.List(ctx)), Command: cmd}, nil
	case CmdImagine:
		return o.cmdImagine(ctx, sessionID, text, arg)
	case CmdSearch:
		return o.cmdSearch(ctx, sessionID, text, arg)
	default:
		return Result{}, fmt.Errorf("unhandled command %q", cmd)
	}
}

func (o *Orchestrator) cmdSave(ctx context.Context, arg string) (Result, error) {
	if arg == "" {
		return Result{Text: "Tell me what to remember, like: /save I take my coffee black", Command: CmdSave}, nil
	}
	m, err := o.memories.Add(ctx, arg)
	if err != nil {
		return Result{}, err
	}
	o.metrics.ObserveMemorySaved(o.persona.Namespace, "command")
	return Result{
		Text:    fmt.Sprintf("I'll remember that. [%s] %s", m.ID, m.Text),
		Command: CmdSave,
		Saved:   []memory.Memory{m},
	}, nil
}

func (o *Orchestrator) cmdForget(ctx context.Context, arg string) (Result, error) {
	if arg == "" {
		return Result{Text: "Which memory should I forget? Use /memories to see the ids, then /forget <id>.", Command: CmdForget}, nil
	}
	ok, err := o.memories.Delete(ctx, arg)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{Text: fmt.Sprintf("Memory %s not found.", arg), Command: CmdForget}, nil
	}
	return Result{Text: fmt.Sprintf("Forgot memory %s.", arg), Command: CmdForget}, nil
}

func (o *Orchestrator) cmdImagine(ctx context.Context, sessionID, text, arg string) (Result, error) {
	if arg == "" {
		return Result{Text: "Describe the image, like: /imagine a lighthouse at dusk", Command: CmdImagine}, nil
	}
	url, err := o.tools.GenerateImage(ctx, arg)
	if err != nil {
		o.metrics.ObserveProviderError(o.persona.Namespace, providerErrorCode(err))
		return Result{}, err
	}
	reply := "Here's what I imagined: " + arg
	o.persistExchange(ctx, sessionID, text, reply, url)
	return Result{Text: reply, Image: url, Command: CmdImagine}, nil
}

func (o *Orchestrator) cmdSearch(ctx context.Context, sessionID, text, arg string) (Result, error) {
	if arg == "" {
		return Result{Text: "What should I search for? Try: /search today's weather in Lisbon", Command: CmdSearch}, nil
	}
	found, err := o.tools.Search(ctx, arg)
	if err != nil {
		o.metrics.ObserveProviderError(o.persona.Namespace, providerErrorCode(err))
		return Result{}, err
	}
	o.persistExchange(ctx, sessionID, text, found, "")
	return Result{Text: found, Command: CmdSearch}, nil
}

// persistExchange writes a command exchange to history. Failures are logged
// and the reply is still returned.
func (o *Orchestrator) persistExchange(ctx context.Context, sessionID, userText, reply, image string) {
	log := o.logger.With().Str("session_id", sessionID).Logger()
	if _, err := o.history.Append(ctx, sessionID, history.RoleUser, userText, ""); err != nil {
		o.metrics.ObserveStoreError("history_append")
		log.Error().Err(err).Msg("persist command message failed")
	}
	if _, err := o.history.Append(ctx, sessionID, history.RoleAssistant, reply, image); err != nil {
		o.metrics.ObserveStoreError("history_append")
		log.Error().Err(err).Msg("persist command reply failed")
	}
	o.touch(ctx, log, sessionID)
}
