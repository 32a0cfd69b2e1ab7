package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/cathedral/cathedral/internal/chat"
	"github.com/cathedral/cathedral/internal/config"
	"github.com/cathedral/cathedral/internal/history"
	"github.com/cathedral/cathedral/internal/kv"
	"github.com/cathedral/cathedral/internal/library"
	"github.com/cathedral/cathedral/internal/llm"
	"github.com/cathedral/cathedral/internal/memory"
	"github.com/cathedral/cathedral/internal/observability"
	"github.com/cathedral/cathedral/internal/persona"
	"github.com/cathedral/cathedral/internal/projectfile"
	"github.com/cathedral/cathedral/internal/protocol"
	"github.com/cathedral/cathedral/internal/session"
)

type testEnv struct {
	ts    *httptest.Server
	store *kv.MemoryStore
}

func newTestEnv(t *testing.T, cfg config.Config, adapter llm.Adapter) *testEnv {
	t.Helper()
	store := kv.NewMemoryStore()
	logger := zerolog.Nop()
	metrics := observability.NewMetricsWith("test_httpapi", prometheus.NewRegistry())
	if adapter == nil {
		adapter = llm.NewMockAdapter()
	}

	var bundles []Persona
	var orchestrators []*chat.Orchestrator
	for _, name := range []string{persona.Hollow, persona.Rhys} {
		info := persona.Persona{Namespace: name, DisplayName: strings.ToUpper(name[:1]) + name[1:], Backend: llm.BackendMock}
		hist := history.NewLog(store, name, 0, logger)
		sessions := session.NewManager(store, name, hist, logger)
		memories := memory.NewStore(store, name, 0, logger)
		files := projectfile.NewStore(store, name, 0, logger)
		orch := chat.New(chat.Deps{
			Persona:  info,
			Sessions: sessions,
			History:  hist,
			Memories: memories,
			Files:    files,
			Adapter:  adapter,
			Tools:    llm.MockTools{},
			Metrics:  metrics,
			Logger:   logger,
		})
		orchestrators = append(orchestrators, orch)
		bundles = append(bundles, Persona{
			Info:     info,
			Sessions: sessions,
			History:  hist,
			Memories: memories,
			Files:    files,
			Chat:     orch,
		})
	}
	readings := library.NewStore(store, 0, cfg.HistoryLimit, []string{persona.Hollow, persona.Rhys}, logger)

	srv := New(Deps{
		Config:       cfg,
		Personas:     bundles,
		Readings:     readings,
		LibraryChat:  chat.NewLibraryChat(readings, false, logger, orchestrators...),
		Store:        store,
		StoreBackend: "memory",
		Metrics:      metrics,
		Logger:       logger,
	})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &testEnv{ts: ts, store: store}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, rdr)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, path, err)
	}
	t.Cleanup(func() { res.Body.Close() })
	return res
}

func decodeBody[T any](t *testing.T, res *http.Response) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func wantStatus(t *testing.T, res *http.Response, want int) {
	t.Helper()
	if res.StatusCode != want {
		body, _ := io.ReadAll(res.Body)
		t.Fatalf("%s %s status = %d, want %d (body %s)", res.Request.Method, res.Request.URL.Path, res.StatusCode, want, body)
	}
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, config.Config{}, nil)

	res := env.do(t, http.MethodGet, "/healthz", nil)
	wantStatus(t, res, http.StatusOK)
	if got := res.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("X-Content-Type-Options = %q, want nosniff", got)
	}

	res = env.do(t, http.MethodGet, "/readyz", nil)
	wantStatus(t, res, http.StatusOK)
	body := decodeBody[map[string]any](t, res)
	if body["store"] != "memory" {
		t.Fatalf("readyz store = %v, want memory", body["store"])
	}
}

func TestUnknownPersona(t *testing.T) {
	env := newTestEnv(t, config.Config{}, nil)
	res := env.do(t, http.MethodGet, "/nobody/sessions", nil)
	wantStatus(t, res, http.StatusNotFound)
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t, config.Config{}, nil)

	res := env.do(t, http.MethodPost, "/hollow/sessions", nil)
	wantStatus(t, res, http.StatusCreated)
	first := decodeBody[session.Session](t, res)
	if first.Name != "Chat 1" {
		t.Fatalf("default name = %q, want Chat 1", first.Name)
	}

	res = env.do(t, http.MethodPost, "/hollow/sessions", map[string]string{"name": "Plans"})
	wantStatus(t, res, http.StatusCreated)
	second := decodeBody[session.Session](t, res)

	res = env.do(t, http.MethodGet, "/hollow/sessions", nil)
	wantStatus(t, res, http.StatusOK)
	list := decodeBody[[]session.Session](t, res)
	if len(list) != 2 || list[0].ID != second.ID {
		t.Fatalf("sessions = %+v, want newest first", list)
	}

	res = env.do(t, http.MethodGet, "/rhys/sessions", nil)
	if got := decodeBody[[]session.Session](t, res); len(got) != 0 {
		t.Fatalf("rhys sessions = %+v, want none", got)
	}

	res = env.do(t, http.MethodPatch, "/hollow/sessions/"+first.ID, map[string]string{"name": "Renamed"})
	wantStatus(t, res, http.StatusOK)
	if got := decodeBody[session.Session](t, res); got.Name != "Renamed" {
		t.Fatalf("renamed = %q", got.Name)
	}

	res = env.do(t, http.MethodPatch, "/hollow/sessions/missing", map[string]string{"name": "x"})
	wantStatus(t, res, http.StatusNotFound)

	res = env.do(t, http.MethodDelete, "/hollow/sessions/"+first.ID, nil)
	wantStatus(t, res, http.StatusOK)
	res = env.do(t, http.MethodDelete, "/hollow/sessions/"+first.ID, nil)
	wantStatus(t, res, http.StatusNotFound)
}

func TestChatPersistsHistory(t *testing.T) {
	env := newTestEnv(t, config.Config{}, nil)
	sess := decodeBody[session.Session](t, env.do(t, http.MethodPost, "/hollow/sessions", nil))

	res := env.do(t, http.MethodPost, "/hollow/chat", map[string]string{"text": "hello", "sessionId": sess.ID})
	wantStatus(t, res, http.StatusOK)
	out := decodeBody[chat.Result](t, res)
	if out.Text != "I heard you: hello" {
		t.Fatalf("reply = %q", out.Text)
	}

	res = env.do(t, http.MethodGet, "/hollow/sessions/"+sess.ID+"/history", nil)
	msgs := decodeBody[[]history.Message](t, res)
	if len(msgs) != 2 || msgs[0].Role != history.RoleAssistant {
		t.Fatalf("history = %+v, want newest first with assistant on top", msgs)
	}

	res = env.do(t, http.MethodGet, "/hollow/sessions/"+sess.ID+"/history?order=chronological", nil)
	msgs = decodeBody[[]history.Message](t, res)
	if len(msgs) != 2 || msgs[0].Role != history.RoleUser {
		t.Fatalf("chronological history = %+v", msgs)
	}

	res = env.do(t, http.MethodGet, "/hollow/search?q=HELLO", nil)
	hits := decodeBody[[]history.SearchHit](t, res)
	if len(hits) != 2 {
		t.Fatalf("search hits = %d, want 2", len(hits))
	}

	res = env.do(t, http.MethodPost, "/hollow/sessions/"+sess.ID+"/history/truncate", map[string]int{"count": 1})
	wantStatus(t, res, http.StatusOK)
	res = env.do(t, http.MethodGet, "/hollow/sessions/"+sess.ID+"/history", nil)
	if msgs := decodeBody[[]history.Message](t, res); len(msgs) != 1 || msgs[0].Role != history.RoleUser {
		t.Fatalf("history after truncate = %+v", msgs)
	}
}

func TestSearchLimitIsCapped(t *testing.T) {
	env := newTestEnv(t, config.Config{}, nil)
	sess := decodeBody[session.Session](t, env.do(t, http.MethodPost, "/hollow/sessions", nil))
	for i := 0; i < 30; i++ {
		res := env.do(t, http.MethodPost, "/hollow/chat", map[string]string{"text": fmt.Sprintf("needle %d", i), "sessionId": sess.ID})
		wantStatus(t, res, http.StatusOK)
	}

	res := env.do(t, http.MethodGet, "/hollow/search?q=needle&limit=1000", nil)
	if hits := decodeBody[[]history.SearchHit](t, res); len(hits) != history.DefaultSearchLimit {
		t.Fatalf("search hits = %d, want %d", len(hits), history.DefaultSearchLimit)
	}
	res = env.do(t, http.MethodGet, "/hollow/search?q=needle&limit=5", nil)
	if hits := decodeBody[[]history.SearchHit](t, res); len(hits) != 5 {
		t.Fatalf("search hits = %d, want 5", len(hits))
	}
}

func TestChatRequiresSession(t *testing.T) {
	env := newTestEnv(t, config.Config{}, nil)
	res := env.do(t, http.MethodPost, "/hollow/chat", map[string]string{"text": "hello"})
	wantStatus(t, res, http.StatusBadRequest)
}

type failingAdapter struct{ err error }

func (a failingAdapter) StreamResponse(_ context.Context, _ llm.Request, _ llm.DeltaHandler) (llm.Response, error) {
	return llm.Response{}, a.err
}

func TestChatForwardsProviderStatus(t *testing.T) {
	env := newTestEnv(t, config.Config{}, failingAdapter{err: &llm.StatusError{Provider: "openai", Status: 429, Body: "slow down"}})
	sess := decodeBody[session.Session](t, env.do(t, http.MethodPost, "/hollow/sessions", nil))

	res := env.do(t, http.MethodPost, "/hollow/chat", map[string]string{"text": "hi", "sessionId": sess.ID})
	wantStatus(t, res, http.StatusTooManyRequests)
	body := decodeBody[providerErrorResponse](t, res)
	if body.Error != "slow down" || !body.Retryable {
		t.Fatalf("provider error body = %+v", body)
	}
}

func TestChatMissingCredential(t *testing.T) {
	env := newTestEnv(t, config.Config{}, failingAdapter{err: fmt.Errorf("openai: %w", llm.ErrMissingCredential)})
	sess := decodeBody[session.Session](t, env.do(t, http.MethodPost, "/hollow/sessions", nil))

	res := env.do(t, http.MethodPost, "/hollow/chat", map[string]string{"text": "hi", "sessionId": sess.ID})
	wantStatus(t, res, http.StatusInternalServerError)
}

func TestMemoriesEndpoints(t *testing.T) {
	env := newTestEnv(t, config.Config{MemorySecret: "s3cret"}, nil)

	res := env.do(t, http.MethodPost, "/hollow/memories", map[string]string{"text": "likes tea"})
	wantStatus(t, res, http.StatusCreated)
	m := decodeBody[memory.Memory](t, res)

	res = env.do(t, http.MethodGet, "/hollow/memories", nil)
	if got := decodeBody[[]memory.Memory](t, res); len(got) != 1 || got[0].Text != "likes tea" {
		t.Fatalf("memories = %+v", got)
	}

	res = env.do(t, http.MethodDelete, "/hollow/memories/999", nil)
	wantStatus(t, res, http.StatusOK)
	if got := decodeBody[successResponse](t, res); got.Success {
		t.Fatalf("delete missing memory success = true")
	}

	res = env.do(t, http.MethodGet, "/memories?key=wrong", nil)
	wantStatus(t, res, http.StatusUnauthorized)

	res = env.do(t, http.MethodGet, "/memories?key=s3cret", nil)
	wantStatus(t, res, http.StatusOK)
	dump := decodeBody[map[string][]memory.Memory](t, res)
	if len(dump[persona.Hollow]) != 1 || len(dump[persona.Rhys]) != 0 {
		t.Fatalf("dump = %+v", dump)
	}

	res = env.do(t, http.MethodDelete, "/hollow/memories/"+m.ID.String(), nil)
	if got := decodeBody[successResponse](t, res); !got.Success {
		t.Fatalf("delete memory success = false")
	}
}

func TestExportClosedWithoutSecret(t *testing.T) {
	env := newTestEnv(t, config.Config{}, nil)
	res := env.do(t, http.MethodGet, "/hollow/history/export?key=", nil)
	wantStatus(t, res, http.StatusUnauthorized)
}

func TestHistoryExport(t *testing.T) {
	env := newTestEnv(t, config.Config{MemorySecret: "k"}, nil)
	sess := decodeBody[session.Session](t, env.do(t, http.MethodPost, "/rhys/sessions", nil))
	wantStatus(t, env.do(t, http.MethodPost, "/rhys/chat", map[string]string{"text": "hey", "sessionId": sess.ID}), http.StatusOK)

	res := env.do(t, http.MethodGet, "/rhys/history/export?key=k", nil)
	wantStatus(t, res, http.StatusOK)
	out := decodeBody[historyExport](t, res)
	if out.Persona != persona.Rhys || len(out.Sessions) != 1 || len(out.Sessions[0].Messages) != 2 {
		t.Fatalf("export = %+v", out)
	}
}

func TestFilesJSONAndMultipart(t *testing.T) {
	env := newTestEnv(t, config.Config{}, nil)

	res := env.do(t, http.MethodPost, "/hollow/files", map[string]string{"name": "notes.txt", "content": "alpha beta"})
	wantStatus(t, res, http.StatusCreated)
	created := decodeBody[projectfile.Summary](t, res)
	if created.Type != projectfile.TypeText {
		t.Fatalf("type = %q, want text", created.Type)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "todo.md")
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	_, _ = part.Write([]byte("- ship it"))
	_ = mw.Close()
	res, err = http.Post(env.ts.URL+"/hollow/files", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("multipart upload error = %v", err)
	}
	defer res.Body.Close()
	wantStatus(t, res, http.StatusCreated)

	res = env.do(t, http.MethodGet, "/hollow/files", nil)
	if got := decodeBody[[]projectfile.Summary](t, res); len(got) != 2 {
		t.Fatalf("files = %+v, want 2", got)
	}

	res = env.do(t, http.MethodGet, "/hollow/files/"+created.ID, nil)
	wantStatus(t, res, http.StatusOK)
	if got := decodeBody[projectfile.File](t, res); got.Content != "alpha beta" {
		t.Fatalf("content = %q", got.Content)
	}

	res = env.do(t, http.MethodPost, "/hollow/files", map[string]string{"name": "x.pdf", "type": "pdf", "content": "%%%"})
	wantStatus(t, res, http.StatusBadRequest)

	res = env.do(t, http.MethodDelete, "/hollow/files/"+created.ID, nil)
	wantStatus(t, res, http.StatusOK)
	res = env.do(t, http.MethodDelete, "/hollow/files/"+created.ID, nil)
	wantStatus(t, res, http.StatusNotFound)
}

func TestPDFUploadRejectsGarbage(t *testing.T) {
	env := newTestEnv(t, config.Config{}, nil)
	res := env.do(t, http.MethodPost, "/hollow/files", map[string]string{
		"name":    "paper.pdf",
		"type":    "pdf",
		"content": base64.StdEncoding.EncodeToString([]byte("not a pdf")),
	})
	if res.StatusCode == http.StatusCreated {
		t.Fatalf("garbage pdf accepted")
	}
}

func TestLibraryReadingsAndChat(t *testing.T) {
	env := newTestEnv(t, config.Config{}, nil)

	res := env.do(t, http.MethodPost, "/library/readings", map[string]string{
		"title":  "Essay",
		"url":    "https://example.com/essay",
		"text":   "one two three",
		"source": "browser-extension",
	})
	wantStatus(t, res, http.StatusCreated)
	created := decodeBody[createReadingResponse](t, res)
	if !created.Success || created.ID == "" || created.Title != "Essay" {
		t.Fatalf("create reading = %+v", created)
	}

	res = env.do(t, http.MethodPost, "/library/readings", map[string]string{
		"title":  "Faxed",
		"text":   "one two",
		"source": "fax",
	})
	wantStatus(t, res, http.StatusBadRequest)

	res = env.do(t, http.MethodGet, "/library/readings", nil)
	if got := decodeBody[[]library.Reading](t, res); len(got) != 1 || got[0].WordCount != 3 {
		t.Fatalf("readings = %+v", got)
	}

	res = env.do(t, http.MethodPost, "/library/readings/"+created.ID+"/chat", map[string]string{"text": "@both thoughts?"})
	wantStatus(t, res, http.StatusOK)
	replies := decodeBody[readingChatResponse](t, res)
	if len(replies.Replies) != 2 {
		t.Fatalf("replies = %+v, want one per companion", replies)
	}

	res = env.do(t, http.MethodGet, "/library/readings/"+created.ID+"/chat?companion=rhys", nil)
	if got := decodeBody[[]library.ChatEntry](t, res); len(got) != 2 {
		t.Fatalf("rhys log = %+v, want user + reply", got)
	}
	res = env.do(t, http.MethodGet, "/library/readings/"+created.ID+"/chat", nil)
	if got := decodeBody[[]library.ChatEntry](t, res); len(got) != 4 {
		t.Fatalf("merged log = %d entries, want 4", len(got))
	}

	res = env.do(t, http.MethodPost, "/library/readings/"+created.ID+"/chat", map[string]string{"text": "  "})
	wantStatus(t, res, http.StatusBadRequest)

	res = env.do(t, http.MethodDelete, "/library/readings/"+created.ID+"/chat?companion=hollow", nil)
	wantStatus(t, res, http.StatusOK)
	res = env.do(t, http.MethodGet, "/library/readings/"+created.ID+"/chat?companion=hollow", nil)
	if got := decodeBody[[]library.ChatEntry](t, res); len(got) != 0 {
		t.Fatalf("hollow log after clear = %+v", got)
	}

	res = env.do(t, http.MethodDelete, "/library/readings/"+created.ID, nil)
	wantStatus(t, res, http.StatusOK)
	res = env.do(t, http.MethodGet, "/library/readings/"+created.ID, nil)
	wantStatus(t, res, http.StatusNotFound)
	res = env.do(t, http.MethodPost, "/library/readings/"+created.ID+"/chat", map[string]string{"text": "hi"})
	wantStatus(t, res, http.StatusNotFound)
}

func TestLibraryCORS(t *testing.T) {
	env := newTestEnv(t, config.Config{}, nil)
	req, _ := http.NewRequest(http.MethodOptions, env.ts.URL+"/library/readings", nil)
	req.Header.Set("Origin", "https://news.example.org")
	req.Header.Set("Access-Control-Request-Method", "POST")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight error = %v", err)
	}
	defer res.Body.Close()
	if got := res.Header.Get("Access-Control-Allow-Origin"); got == "" {
		t.Fatalf("missing Access-Control-Allow-Origin")
	}
}

func TestStatusReportsMockBackend(t *testing.T) {
	env := newTestEnv(t, config.Config{}, nil)
	res := env.do(t, http.MethodGet, "/status", nil)
	wantStatus(t, res, http.StatusOK)
	body := decodeBody[statusResponse](t, res)
	if body.Personas[persona.Hollow] != llm.BackendMock {
		t.Fatalf("hollow backend = %q, want mock", body.Personas[persona.Hollow])
	}
}

func TestChatWebsocketStream(t *testing.T) {
	env := newTestEnv(t, config.Config{}, nil)
	sess := decodeBody[session.Session](t, env.do(t, http.MethodPost, "/hollow/sessions", nil))

	wsURL := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/hollow/chat/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(protocol.ChatRequest{Type: protocol.TypeChatRequest, SessionID: sess.ID, Text: "stream me"}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	var deltas strings.Builder
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage() error = %v", err)
		}
		var envelope protocol.Envelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			t.Fatalf("unmarshal envelope: %v", err)
		}
		switch envelope.Type {
		case protocol.TypeAssistantTextDelta:
			var d protocol.AssistantTextDelta
			_ = json.Unmarshal(raw, &d)
			deltas.WriteString(d.TextDelta)
		case protocol.TypeAssistantTurnEnd:
			var end protocol.AssistantTurnEnd
			_ = json.Unmarshal(raw, &end)
			if end.Text != "I heard you: stream me" || deltas.String() != end.Text {
				t.Fatalf("turn end text = %q, deltas = %q", end.Text, deltas.String())
			}
			if end.Reason != protocol.ReasonComplete {
				t.Fatalf("reason = %q", end.Reason)
			}
			return
		case protocol.TypeErrorEvent:
			t.Fatalf("unexpected error event: %s", raw)
		}
	}
}

func TestChatWebsocketRejectsForeignOrigin(t *testing.T) {
	env := newTestEnv(t, config.Config{}, nil)
	wsURL := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/hollow/chat/ws"
	header := http.Header{}
	header.Set("Origin", "https://evil.example")
	if _, _, err := websocket.DefaultDialer.Dial(wsURL, header); err == nil {
		t.Fatalf("Dial() with foreign origin succeeded")
	}
}

func dialChat(t *testing.T, env *testEnv) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/hollow/chat/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func TestChatWebsocketInvalidMessage(t *testing.T) {
	env := newTestEnv(t, config.Config{}, nil)
	conn := dialChat(t, env)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"bogus"}`)); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	var ev protocol.ErrorEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if ev.Type != protocol.TypeErrorEvent || ev.Code != "invalid_client_message" || ev.Source != "gateway" {
		t.Fatalf("event = %+v", ev)
	}
}

func TestChatWebsocketEmptyTextEndsTurn(t *testing.T) {
	env := newTestEnv(t, config.Config{}, nil)
	conn := dialChat(t, env)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"chat_request","text":"   "}`)); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	var end protocol.AssistantTurnEnd
	if err := conn.ReadJSON(&end); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if end.Type != protocol.TypeAssistantTurnEnd || end.Reason != protocol.ReasonEmpty || end.Text != "" {
		t.Fatalf("event = %+v, want empty turn end", end)
	}
}

func TestChatWebsocketMissingSession(t *testing.T) {
	env := newTestEnv(t, config.Config{}, nil)
	conn := dialChat(t, env)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"chat_request","text":"no session"}`)); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	var ev protocol.ErrorEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if ev.Type != protocol.TypeErrorEvent || ev.Code != "missing_session_id" || ev.Source != "gateway" {
		t.Fatalf("event = %+v", ev)
	}
}
