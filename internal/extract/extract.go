// Package extract pulls structured JSON payloads out of free-form agent
// output. Agents are asked for JSON between sentinel markers, but in
// practice emit prose, code fences, or trailing commentary around it;
// extraction tries progressively looser strategies before giving up.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers agents are instructed to wrap their payload in.
const (
	StartSentinel = "<<<QUIBBLE_JSON>>>"
	EndSentinel   = "<<<END_QUIBBLE_JSON>>>"
)

// ErrNoPayload reports that no parseable JSON could be located in the
// agent output at all. Distinct from a schema mismatch, which means JSON
// was found but had the wrong shape.
var ErrNoPayload = errors.New("no valid payload extracted")

// NoPayloadError wraps ErrNoPayload with the raw text for diagnostics.
type NoPayloadError struct {
	Raw string
}

func (e *NoPayloadError) Error() string {
	return fmt.Sprintf("no valid payload extracted from %d bytes of output", len(e.Raw))
}

func (e *NoPayloadError) Unwrap() error { return ErrNoPayload }

// ErrSchemaMismatch reports that extracted JSON failed shape validation.
var ErrSchemaMismatch = errors.New("schema mismatch")

// SchemaError wraps ErrSchemaMismatch with the failing field and raw text.
type SchemaError struct {
	Detail string
	Raw    string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema mismatch: %s", e.Detail)
}

func (e *SchemaError) Unwrap() error { return ErrSchemaMismatch }

// Kind is the expected JSON type of a schema field.
type Kind int

const (
	String Kind = iota
	Bool
	Number
	Array
	ObjectKind
)

func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Bool:
		return "bool"
	case Number:
		return "number"
	case Array:
		return "array"
	case ObjectKind:
		return "object"
	}
	return "unknown"
}

// Schema maps required top-level field names to their expected kinds.
type Schema map[string]Kind

// Object extracts a JSON object from raw agent output and validates it
// against the schema. Returns *NoPayloadError when nothing parseable is
// found and *SchemaError when the payload has the wrong shape; the two
// are distinguishable via errors.Is on ErrNoPayload / ErrSchemaMismatch.
func Object(raw string, schema Schema) (map[string]any, error) {
	payload, ok := Payload(raw)
	if !ok {
		return nil, &NoPayloadError{Raw: raw}
	}
	var m map[string]any
	if err := json.Unmarshal(payload, &m); err != nil {
		// parseable JSON but not an object
		return nil, &SchemaError{Detail: "top-level value is not an object", Raw: raw}
	}
	if err := Validate(m, schema); err != nil {
		return nil, &SchemaError{Detail: err.Error(), Raw: raw}
	}
	return m, nil
}

// Validate checks that every schema field is present with the right kind.
func Validate(m map[string]any, schema Schema) error {
	for field, kind := range schema {
		v, ok := m[field]
		if !ok {
			return fmt.Errorf("missing field %q", field)
		}
		if !kindMatches(v, kind) {
			return fmt.Errorf("field %q is not a %s", field, kind)
		}
	}
	return nil
}

func kindMatches(v any, kind Kind) bool {
	switch kind {
	case String:
		_, ok := v.(string)
		return ok
	case Bool:
		_, ok := v.(bool)
		return ok
	case Number:
		_, ok := v.(float64)
		return ok
	case Array:
		_, ok := v.([]any)
		return ok
	case ObjectKind:
		_, ok := v.(map[string]any)
		return ok
	}
	return false
}

// Payload locates the JSON payload within raw text. Strategies, first
// success wins:
//
//  1. content strictly between the sentinel markers
//  2. the full trimmed text parsed directly
//  3. the body of the first fenced code block
//  4. first-open-brace to last-close-brace substring, walking close-brace
//     candidates backward until one parses
func Payload(raw string) (json.RawMessage, bool) {
	if p, ok := sentinelPayload(raw); ok {
		return p, true
	}
	trimmed := strings.TrimSpace(raw)
	if json.Valid([]byte(trimmed)) && trimmed != "" {
		return json.RawMessage(trimmed), true
	}
	if p, ok := fencePayload(raw); ok {
		return p, true
	}
	return bracePayload(raw)
}

func sentinelPayload(raw string) (json.RawMessage, bool) {
	start := strings.Index(raw, StartSentinel)
	if start < 0 {
		return nil, false
	}
	rest := raw[start+len(StartSentinel):]
	end := strings.Index(rest, EndSentinel)
	if end < 0 {
		return nil, false
	}
	body := strings.TrimSpace(rest[:end])
	if !json.Valid([]byte(body)) {
		return nil, false
	}
	return json.RawMessage(body), true
}

func fencePayload(raw string) (json.RawMessage, bool) {
	open := strings.Index(raw, "```")
	if open < 0 {
		return nil, false
	}
	rest := raw[open+3:]
	// Skip an optional language tag up to end of line.
	if nl := strings.Index(rest, "\n"); nl >= 0 {
		first := strings.TrimSpace(rest[:nl])
		if !strings.ContainsAny(first, "{[") {
			rest = rest[nl+1:]
		}
	}
	closeIdx := strings.Index(rest, "```")
	if closeIdx < 0 {
		return nil, false
	}
	body := strings.TrimSpace(rest[:closeIdx])
	if body == "" || !json.Valid([]byte(body)) {
		return nil, false
	}
	return json.RawMessage(body), true
}

func bracePayload(raw string) (json.RawMessage, bool) {
	open := strings.Index(raw, "{")
	if open < 0 {
		return nil, false
	}
	// Scan close-brace candidates from the end backward; trailing prose
	// after the payload is common.
	for end := strings.LastIndex(raw, "}"); end > open; end = strings.LastIndex(raw[:end], "}") {
		candidate := raw[open : end+1]
		if json.Valid([]byte(candidate)) {
			return json.RawMessage(candidate), true
		}
	}
	return nil, false
}
