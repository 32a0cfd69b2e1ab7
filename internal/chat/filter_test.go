package chat

import (
	"strings"
	"testing"
)

func TestDirectiveFilter(t *testing.T) {
	cases := []struct {
		name   string
		deltas []string
		want   string
	}{
		{"plain", []string{"hello ", "world"}, "hello world"},
		{"other brackets", []string{"see [1] and [", "note]"}, "see [1] and [note]"},
		{"split tag", []string{"a [save_mem", "ory: x]b"}, "a b"},
		{"two tags", []string{"[SAVE_MEMORY: a][SAVE_MEMORY: b]ok"}, "ok"},
		{"unterminated", []string{"oops [SAVE_MEMORY: never"}, "oops [SAVE_MEMORY: never"},
		{"dangling prefix", []string{"end [SAVE"}, "end [SAVE"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var out strings.Builder
			f := newDirectiveFilter(func(s string) error {
				out.WriteString(s)
				return nil
			})
			for _, d := range tc.deltas {
				if err := f.Write(d); err != nil {
					t.Fatalf("Write() error = %v", err)
				}
			}
			if err := f.Flush(); err != nil {
				t.Fatalf("Flush() error = %v", err)
			}
			if out.String() != tc.want {
				t.Fatalf("output = %q, want %q", out.String(), tc.want)
			}
		})
	}
}

func TestParseCommand(t *testing.T) {
	cases := []struct {
		in      string
		cmd     string
		arg     string
		matched bool
	}{
		{"/save likes tea", CmdSave, "likes tea", true},
		{"/Forget  7 ", CmdForget, "7", true},
		{"/memories", CmdMemories, "", true},
		{"/saved it", "", "", false},
		{"hello /save", "", "", false},
	}
	for _, tc := range cases {
		cmd, arg, ok := parseCommand(strings.TrimSpace(tc.in))
		if cmd != tc.cmd || arg != tc.arg || ok != tc.matched {
			t.Fatalf("parseCommand(%q) = %q, %q, %v", tc.in, cmd, arg, ok)
		}
	}
}
