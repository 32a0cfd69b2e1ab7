package idgen

import "testing"

func TestShortFormat(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 64; i++ {
		id := Short()
		if len(id) != 8 {
			t.Fatalf("Short() = %q, want 8 hex chars", id)
		}
		if seen[id] {
			t.Fatalf("Short() repeated %q", id)
		}
		seen[id] = true
	}
}

func TestSortableIsOrdered(t *testing.T) {
	a := Sortable()
	b := Sortable()
	if len(a) != 26 {
		t.Fatalf("Sortable() = %q, want 26 chars", a)
	}
	if a >= b {
		t.Fatalf("Sortable() not increasing: %q then %q", a, b)
	}
}
