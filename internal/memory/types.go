package memory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ID is a persona-scoped memory id. It decodes from both JSON numbers and
// numeric strings because ids typed into chat commands arrive as text.
type ID int64

func (id ID) String() string { return strconv.FormatInt(int64(id), 10) }

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, ok := ParseID(s)
		if !ok {
			return fmt.Errorf("invalid memory id %q", s)
		}
		*id = parsed
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid memory id: %w", err)
	}
	*id = ID(n)
	return nil
}

// ParseID accepts "7", " 7 " and "#7".
func ParseID(s string) (ID, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return ID(n), true
}

// Memory is one remembered fact.
type Memory struct {
	ID        ID        `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}
