// Package idgen generates the opaque identifiers stored alongside sessions,
// project files and readings.
package idgen

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Short returns 4 random bytes hex-encoded (8 characters).
func Short() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%08x", uint32(time.Now().UnixNano()))
	}
	return hex.EncodeToString(b)
}

// Sortable returns a lowercase ULID; lexical order follows creation time.
func Sortable() string {
	return strings.ToLower(ulid.Make().String())
}
