// Package profile defines the user profile record evaluated by the
// reaping engine and the normalization rules for its fields.
package profile

import (
	"fmt"
	"strings"
	"time"
)

// Profile is one user account's local profile directory with the
// attributes the inventory knows about it. Timestamp fields use the
// zero time.Time to mean "absent".
type Profile struct {
	AccountID    string    `json:"account_id"`
	LocalPath    string    `json:"local_path"`
	Roaming      bool      `json:"roaming"`
	Special      bool      `json:"special"`
	LastUse      time.Time `json:"last_use,omitzero"`
	LastDownload time.Time `json:"last_download,omitzero"`
	LastUpload   time.Time `json:"last_upload,omitzero"`
}

// AccountIDFromPath derives the account identifier from a profile
// path: the final path segment, lowercased. Derivation is
// case-insensitive so "/home/BOB" and "C:\Users\Bob" both map to
// "bob". Profile paths can arrive in Windows form even on a POSIX
// build, so both separators are honored.
func AccountIDFromPath(path string) string {
	cleaned := strings.TrimRight(path, "/\\")
	if i := strings.LastIndexAny(cleaned, "/\\"); i >= 0 {
		cleaned = cleaned[i+1:]
	}
	return strings.ToLower(cleaned)
}

// ParseDirectoryTime parses a directory-service timestamp. Sources
// emit absolute instants in RFC 3339; anything else is rejected rather
// than interpreted as local wall-clock fields. An empty string means
// the attribute is absent and parses to the zero time.
func ParseDirectoryTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// FormatDirectoryTime renders a timestamp for storage. The zero time
// renders as the empty string (absent).
func FormatDirectoryTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
