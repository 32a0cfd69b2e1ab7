package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cathedral/cathedral/internal/chat"
	"github.com/cathedral/cathedral/internal/history"
	"github.com/cathedral/cathedral/internal/llm"
	"github.com/cathedral/cathedral/internal/protocol"
)

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	p := personaFrom(r)
	var req chat.Request
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	res, err := p.Chat.Send(r.Context(), req)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// handleSearch scans every session log of the persona for q.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	p := personaFrom(r)
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		respondJSON(w, http.StatusOK, []history.SearchHit{})
		return
	}
	sessions := p.Sessions.List(r.Context())
	targets := make([]history.SearchTarget, 0, len(sessions))
	for _, sess := range sessions {
		targets = append(targets, history.SearchTarget{SessionID: sess.ID, SessionName: sess.Name})
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	respondJSON(w, http.StatusOK, p.History.Search(r.Context(), targets, q, limit))
}

func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	p := personaFrom(r)
	log := s.logger.With().Str("persona", p.Info.Namespace).Logger()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	inbound := make(chan any, 64)
	outbound := make(chan any, 256)

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		s.runChatConnection(ctx, p, inbound, outbound)
	}()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-outbound:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					log.Debug().Err(err).Msg("websocket write failed")
					cancel()
					return
				}
				if t, ok := messageTypeOf(msg); ok {
					s.metrics.ObserveWSMessage("outbound", string(t))
				}
			}
		}
	}()

	conn.SetReadLimit(s.wsReadLimit())
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

readLoop:
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			enqueue(outbound, protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				Code:      "invalid_client_message",
				Source:    "gateway",
				Retryable: false,
				Detail:    err.Error(),
			})
			continue
		}
		if t, ok := messageTypeOf(parsed); ok {
			s.metrics.ObserveWSMessage("inbound", string(t))
		}
		select {
		case <-ctx.Done():
			break readLoop
		case inbound <- parsed:
		}
	}

	cancel()
	close(inbound)
	<-runDone
	<-writerDone
}

func (s *Server) wsReadLimit() int64 {
	if s.cfg.MaxBodyBytes > 0 {
		return s.cfg.MaxBodyBytes
	}
	return 2 << 20
}

// runChatConnection handles one turn at a time; later requests wait in
// inbound until the current reply finishes. outbound is never closed here
// because the read loop may still queue error events; the writer stops on ctx.
func (s *Server) runChatConnection(ctx context.Context, p Persona, inbound <-chan any, outbound chan<- any) {
	for {
		var raw any
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-inbound:
			if !ok {
				return
			}
			raw = msg
		}

		switch msg := raw.(type) {
		case protocol.ClientControl:
			if msg.Action == protocol.ActionPing {
				send(ctx, outbound, protocol.SystemEvent{Type: protocol.TypeSystemEvent, Code: "pong"})
			}
		case protocol.ChatRequest:
			s.streamTurn(ctx, p, msg, outbound)
		}
	}
}

func (s *Server) streamTurn(ctx context.Context, p Persona, msg protocol.ChatRequest, outbound chan<- any) {
	turnID := llm.NewTurnID()
	res, err := p.Chat.Stream(ctx, chat.Request{
		Text:      msg.Text,
		SessionID: msg.SessionID,
		Image:     msg.Image,
	}, func(delta string) error {
		if !send(ctx, outbound, protocol.AssistantTextDelta{
			Type:      protocol.TypeAssistantTextDelta,
			SessionID: msg.SessionID,
			TurnID:    turnID,
			TextDelta: delta,
		}) {
			return ctx.Err()
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return
		}
		send(ctx, outbound, turnErrorEvent(msg.SessionID, err))
		return
	}

	end := protocol.AssistantTurnEnd{
		Type:      protocol.TypeAssistantTurnEnd,
		SessionID: msg.SessionID,
		TurnID:    turnID,
		Reason:    protocol.ReasonComplete,
		Text:      res.Text,
		Image:     res.Image,
		Command:   res.Command,
	}
	switch {
	case res.Command != "":
		end.Reason = protocol.ReasonCommand
	case res.Text == "":
		end.Reason = protocol.ReasonEmpty
	}
	if res.Usage != nil {
		end.Usage = &protocol.Usage{InputTokens: res.Usage.InputTokens, OutputTokens: res.Usage.OutputTokens}
	}
	for _, m := range res.Saved {
		end.SavedMemories = append(end.SavedMemories, m.Text)
	}
	send(ctx, outbound, end)
}

func turnErrorEvent(sessionID string, err error) protocol.ErrorEvent {
	ev := protocol.ErrorEvent{
		Type:      protocol.TypeErrorEvent,
		SessionID: sessionID,
		Code:      "turn_failed",
		Source:    "orchestrator",
		Detail:    err.Error(),
	}
	var statusErr *llm.StatusError
	switch {
	case errors.As(err, &statusErr):
		ev.Code = statusErr.Provider + "_error"
		ev.Source = "provider"
		ev.Status = statusErr.Status
		ev.Retryable = statusErr.Retryable()
		ev.Detail = statusErr.Body
	case errors.Is(err, llm.ErrMissingCredential):
		ev.Code = "missing_credential"
		ev.Source = "provider"
	case errors.Is(err, chat.ErrSessionRequired):
		ev.Code = "missing_session_id"
		ev.Source = "gateway"
	case errors.Is(err, context.DeadlineExceeded):
		ev.Code = "timeout"
		ev.Source = "provider"
		ev.Retryable = true
	}
	return ev
}

func send(ctx context.Context, outbound chan<- any, msg any) bool {
	select {
	case <-ctx.Done():
		return false
	case outbound <- msg:
		return true
	}
}

// enqueue never blocks the read loop; a saturated queue drops the message.
func enqueue(outbound chan<- any, msg any) {
	select {
	case outbound <- msg:
	default:
	}
}

func messageTypeOf(v any) (protocol.MessageType, bool) {
	switch m := v.(type) {
	case protocol.ChatRequest:
		return m.Type, true
	case protocol.ClientControl:
		return m.Type, true
	case protocol.AssistantTextDelta:
		return m.Type, true
	case protocol.AssistantTurnEnd:
		return m.Type, true
	case protocol.SystemEvent:
		return m.Type, true
	case protocol.ErrorEvent:
		return m.Type, true
	default:
		return "", false
	}
}
