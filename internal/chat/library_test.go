package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/cathedral/cathedral/internal/kv"
	"github.com/cathedral/cathedral/internal/library"
)

func newLibraryHarness(t *testing.T, legacy bool) (*LibraryChat, *library.Store, *harness, *harness, string) {
	t.Helper()
	store := kv.NewMemoryStore()
	hollow := newHarness(t, store, "hollow")
	rhys := newHarness(t, store, "rhys")
	hollow.adapter.reply = "hollow says hi"
	rhys.adapter.reply = "rhys says hi"

	readings := library.NewStore(store, 0, 0, []string{"hollow", "rhys"}, zerolog.Nop())
	r, err := readings.Create(context.Background(), library.CreateRequest{Title: "Essay", Text: "a short essay"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	lc := NewLibraryChat(readings, legacy, zerolog.Nop(), hollow.o, rhys.o)
	return lc, readings, hollow, rhys, r.ID
}

func TestLibraryChatBothKeysEachPersona(t *testing.T) {
	ctx := context.Background()
	lc, readings, hollow, rhys, id := newLibraryHarness(t, false)

	replies, err := lc.Send(ctx, id, ReadingRequest{Text: "@both what did you think?"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if len(replies) != 2 || replies[0].Companion != "hollow" || replies[1].Companion != "rhys" {
		t.Fatalf("replies = %+v", replies)
	}
	if hollow.adapter.calls[0].Input != "what did you think?" || len(rhys.adapter.calls) != 1 {
		t.Fatalf("adapter calls: hollow=%+v rhys=%d", hollow.adapter.calls, len(rhys.adapter.calls))
	}

	h := readings.Chat(ctx, id, "hollow")
	r := readings.Chat(ctx, id, "rhys")
	if len(h) != 2 || h[1].Content != "hollow says hi" {
		t.Fatalf("hollow log = %+v", h)
	}
	if len(r) != 2 || r[1].Content != "rhys says hi" {
		t.Fatalf("rhys log = %+v", r)
	}
}

func TestLibraryChatLegacyKeyingFunnelsIntoOneLog(t *testing.T) {
	ctx := context.Background()
	lc, readings, _, _, id := newLibraryHarness(t, true)

	if _, err := lc.Send(ctx, id, ReadingRequest{Text: "@both thoughts?"}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	h := readings.Chat(ctx, id, "hollow")
	if len(h) != 3 {
		t.Fatalf("len(hollow log) = %d, want 3: %+v", len(h), h)
	}
	if got := readings.Chat(ctx, id, "rhys"); len(got) != 0 {
		t.Fatalf("rhys log = %+v, want empty", got)
	}
}

func TestLibraryChatMentionBeatsCompanion(t *testing.T) {
	ctx := context.Background()
	lc, _, hollow, rhys, id := newLibraryHarness(t, false)

	replies, err := lc.Send(ctx, id, ReadingRequest{Text: "@rhys your take?", Companion: "hollow"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if len(replies) != 1 || replies[0].Companion != "rhys" {
		t.Fatalf("replies = %+v", replies)
	}
	if len(hollow.adapter.calls) != 0 || len(rhys.adapter.calls) != 1 {
		t.Fatalf("calls: hollow=%d rhys=%d", len(hollow.adapter.calls), len(rhys.adapter.calls))
	}
}

func TestLibraryChatIncludesReadingInContext(t *testing.T) {
	ctx := context.Background()
	lc, _, hollow, _, id := newLibraryHarness(t, false)

	if _, err := lc.Send(ctx, id, ReadingRequest{Text: "summarize"}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	instr := hollow.adapter.calls[0].Instructions
	if !strings.Contains(instr, `"Essay"`) || !strings.Contains(instr, "a short essay") {
		t.Fatalf("instructions = %q", instr)
	}
}

func TestLibraryChatErrors(t *testing.T) {
	ctx := context.Background()
	lc, _, _, _, id := newLibraryHarness(t, false)

	if _, err := lc.Send(ctx, id, ReadingRequest{Text: " "}); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("Send(empty) error = %v", err)
	}
	if _, err := lc.Send(ctx, "nope", ReadingRequest{Text: "hi"}); !errors.Is(err, library.ErrNotFound) {
		t.Fatalf("Send(unknown) error = %v", err)
	}
}
