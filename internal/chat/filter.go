package chat

import (
	"strings"

	"github.com/cathedral/cathedral/internal/memory"
)

// directiveFilter drops [SAVE_MEMORY: ...] directives from a stream of
// deltas. Text starting at '[' is held back until it is known not to open a
// directive, or until the directive closes.
type directiveFilter struct {
	out func(string) error
	buf string
}

func newDirectiveFilter(out func(string) error) *directiveFilter {
	return &directiveFilter{out: out}
}

func (f *directiveFilter) Write(delta string) error {
	if delta == "" {
		return nil
	}
	f.buf += delta
	return f.drain(false)
}

// Flush emits whatever is still held back, such as an unterminated tag.
func (f *directiveFilter) Flush() error {
	return f.drain(true)
}

func (f *directiveFilter) drain(final bool) error {
	open := memory.DirectiveOpen
	for f.buf != "" {
		i := strings.IndexByte(f.buf, '[')
		if i < 0 {
			return f.emit(len(f.buf))
		}
		if i > 0 {
			if err := f.emit(i); err != nil {
				return err
			}
		}

		n := min(len(f.buf), len(open))
		if !strings.EqualFold(f.buf[:n], open[:n]) {
			if err := f.emit(1); err != nil {
				return err
			}
			continue
		}
		if len(f.buf) < len(open) {
			if final {
				return f.emit(len(f.buf))
			}
			return nil
		}
		end := strings.IndexByte(f.buf[len(open):], ']')
		if end < 0 {
			if final {
				return f.emit(len(f.buf))
			}
			return nil
		}
		f.buf = f.buf[len(open)+end+1:]
	}
	return nil
}

func (f *directiveFilter) emit(n int) error {
	chunk := f.buf[:n]
	f.buf = f.buf[n:]
	if chunk == "" {
		return nil
	}
	return f.out(chunk)
}
