// Package contextfiles discovers supporting files referenced by a
// document and bundles their contents as grounding context for agent
// prompts. Pure enrichment: discovery failures yield an empty bundle,
// never an error that stops a session.
package contextfiles

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Size caps keep prompts bounded regardless of what the document cites.
const (
	MaxFileBytes  = 32 * 1024
	MaxTotalBytes = 128 * 1024
	MaxFiles      = 8
)

// pathPattern matches relative path-looking tokens with a plausible
// text-file extension.
var pathPattern = regexp.MustCompile(`[\w./-]+\.(?:md|txt|go|py|js|ts|json|yaml|yml|toml|rst|csv)`)

// Collect scans doc for file references, loads the ones that exist under
// baseDir, and returns a bundle ready to append to a prompt. Returns ""
// when nothing relevant is discoverable.
func Collect(doc, baseDir string) string {
	if baseDir == "" {
		return ""
	}
	base, err := filepath.Abs(baseDir)
	if err != nil {
		return ""
	}

	var b strings.Builder
	total := 0
	count := 0
	seen := make(map[string]bool)

	for _, ref := range pathPattern.FindAllString(doc, -1) {
		if count >= MaxFiles || total >= MaxTotalBytes {
			break
		}
		clean := filepath.Clean(ref)
		if filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
			continue
		}
		full := filepath.Join(base, clean)
		if seen[full] {
			continue
		}
		seen[full] = true

		info, err := os.Stat(full)
		if err != nil || info.IsDir() || info.Size() == 0 || info.Size() > MaxFileBytes {
			continue
		}
		content, err := os.ReadFile(full)
		if err != nil {
			continue
		}
		if total+len(content) > MaxTotalBytes {
			continue
		}

		fmt.Fprintf(&b, "--- %s ---\n%s\n", clean, strings.TrimRight(string(content), "\n"))
		total += len(content)
		count++
	}

	if count == 0 {
		return ""
	}
	return "Supporting files referenced by the document:\n\n" + b.String()
}
