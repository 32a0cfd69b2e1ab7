package projectfile

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/cathedral/cathedral/internal/kv"
)

func TestAddTruncatesAndKeepsOriginalSize(t *testing.T) {
	ctx := context.Background()
	s := NewStore(kv.NewMemoryStore(), "hollow", 10, zerolog.Nop())

	body := strings.Repeat("é", 25)
	f, err := s.Add(ctx, Upload{Name: "notes.md", Data: []byte(body)})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if f.Type != TypeText {
		t.Fatalf("Type = %q, want text", f.Type)
	}
	if got := len([]rune(f.Content)); got != 10 {
		t.Fatalf("content runes = %d, want 10", got)
	}
	if f.Size != len(body) {
		t.Fatalf("Size = %d, want %d", f.Size, len(body))
	}

	got, err := s.Get(ctx, f.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Content != f.Content {
		t.Fatalf("stored content differs")
	}
}

func TestAddValidates(t *testing.T) {
	s := NewStore(kv.NewMemoryStore(), "hollow", 0, zerolog.Nop())
	if _, err := s.Add(context.Background(), Upload{Name: " ", Data: []byte("x")}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("Add(no name) error = %v, want ErrInvalidInput", err)
	}
	if _, err := s.Add(context.Background(), Upload{Name: "a.txt"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("Add(no data) error = %v, want ErrInvalidInput", err)
	}
}

func TestAddRejectsBrokenPDF(t *testing.T) {
	s := NewStore(kv.NewMemoryStore(), "hollow", 0, zerolog.Nop())
	_, err := s.Add(context.Background(), Upload{Name: "paper.pdf", Data: []byte("not really a pdf")})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("Add(bad pdf) error = %v, want ErrInvalidInput", err)
	}
}

func TestListOrderAndDelete(t *testing.T) {
	ctx := context.Background()
	s := NewStore(kv.NewMemoryStore(), "rhys", 0, zerolog.Nop())
	a, _ := s.Add(ctx, Upload{Name: "a.txt", Data: []byte("alpha")})
	b, _ := s.Add(ctx, Upload{Name: "b.txt", Data: []byte("beta")})

	files := s.List(ctx)
	if len(files) != 2 || files[0].ID != a.ID || files[1].ID != b.ID {
		t.Fatalf("List() = %+v", files)
	}

	if ok, err := s.Delete(ctx, a.ID); err != nil || !ok {
		t.Fatalf("Delete() = %v, %v", ok, err)
	}
	if ok, _ := s.Delete(ctx, a.ID); ok {
		t.Fatalf("second Delete() = true")
	}
	if _, err := s.Get(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(deleted) error = %v, want ErrNotFound", err)
	}
}

func TestDetectType(t *testing.T) {
	cases := map[string]struct{ name, ct, want string }{
		"mime":      {"upload", "application/pdf", TypePDF},
		"extension": {"Paper.PDF", "", TypePDF},
		"text":      {"notes.txt", "text/plain", TypeText},
	}
	for label, tc := range cases {
		if got := DetectType(tc.name, tc.ct); got != tc.want {
			t.Fatalf("%s: DetectType() = %q, want %q", label, got, tc.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("abcdef", 3); got != "abc" {
		t.Fatalf("Truncate() = %q", got)
	}
	if got := Truncate("abc", 0); got != "abc" {
		t.Fatalf("Truncate(max 0) = %q", got)
	}
}
