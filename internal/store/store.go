// Package store provides the durable blob store backing review sessions.
// Artifacts are addressed by slash-separated relative paths under a
// per-session root, and every write is atomic so a crash never leaves a
// half-written artifact behind.
package store

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"
	"unicode"
)

// Store is the session artifact store. The file-backed and memory-backed
// implementations satisfy identical semantics so callers never care which
// is active.
type Store interface {
	// Write persists content at the given relative path atomically,
	// creating intermediate directories as needed.
	Write(relPath string, content []byte) error

	// Read returns the content at relPath. Absence is reported via
	// ok=false, not an error; err is reserved for real storage failures.
	Read(relPath string) (content []byte, ok bool, err error)

	// Exists reports whether an artifact is present at relPath.
	Exists(relPath string) (bool, error)

	// List returns the immediate child names one level below relPath.
	// Order is unspecified; duplicates are suppressed.
	List(relPath string) ([]string, error)

	// Root identifies the store's backing location ("" for memory).
	Root() string
}

const maxSlugLen = 40

// slugify lowercases s and collapses non-alphanumeric runs to single
// hyphens, trimming leading/trailing hyphens and capping length.
func slugify(s string) string {
	var b strings.Builder
	pending := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pending && b.Len() > 0 {
				b.WriteByte('-')
			}
			pending = false
			b.WriteRune(r)
		} else {
			pending = true
		}
		if b.Len() >= maxSlugLen {
			break
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		out = "session"
	}
	return out
}

// NewSessionID builds a human-legible, collision-resistant session id from
// the input filename: slug + ISO date + time-of-day + short random suffix.
// Ids sort by creation time within a given filename.
func NewSessionID(inputFile string, now time.Time) string {
	base := inputFile
	if i := strings.LastIndexAny(base, "/\\"); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}

	var suffix [3]byte
	_, _ = rand.Read(suffix[:])

	return slugify(base) + "-" +
		now.UTC().Format("20060102") + "-" +
		now.UTC().Format("150405") + "-" +
		hex.EncodeToString(suffix[:])
}
