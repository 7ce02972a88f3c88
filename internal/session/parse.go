package session

import (
	"encoding/json"
	"fmt"

	"github.com/mfelix/quibble/internal/extract"
)

// Expected top-level shapes for the three agent payload types.
var (
	reviewSchema = extract.Schema{
		"issues":             extract.Array,
		"opportunities":      extract.Array,
		"overall_assessment": extract.String,
	}
	responseSchema = extract.Schema{
		"responses":        extract.Array,
		"updated_document": extract.String,
		"consensus":        extract.ObjectKind,
	}
	consensusSchema = extract.Schema{
		"verdict":     extract.String,
		"resolutions": extract.Array,
		"new_issues":  extract.Array,
		"summary":     extract.String,
	}
)

func decodeInto(m map[string]any, v any) error {
	content, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(content, v)
}

// ParseReview extracts and validates a review payload. Reviews are
// read-only judgments: no repair is ever attempted.
func ParseReview(raw string) (*ReviewPayload, error) {
	m, err := extract.Object(raw, reviewSchema)
	if err != nil {
		return nil, err
	}
	var p ReviewPayload
	if err := decodeInto(m, &p); err != nil {
		return nil, &extract.SchemaError{Detail: err.Error(), Raw: raw}
	}
	return &p, nil
}

// ParseConsensus extracts and validates a consensus-check payload. Like
// reviews, consensus checks are never repaired.
func ParseConsensus(raw string) (*ConsensusPayload, error) {
	m, err := extract.Object(raw, consensusSchema)
	if err != nil {
		return nil, err
	}
	var p ConsensusPayload
	if err := decodeInto(m, &p); err != nil {
		return nil, &extract.SchemaError{Detail: err.Error(), Raw: raw}
	}
	if p.Verdict != ConsensusApprove && p.Verdict != ConsensusReject {
		return nil, &extract.SchemaError{Detail: fmt.Sprintf("unknown verdict %q", p.Verdict), Raw: raw}
	}
	return &p, nil
}

// ParseResponse extracts and validates a response payload. On schema
// failure a single field-level repair pass substitutes documented
// defaults (missing verdict becomes partial, missing document falls back
// to fallbackDoc so no text is silently lost) and re-validates exactly
// once. Repair is never recursive.
func ParseResponse(raw, fallbackDoc string) (p *ResponsePayload, repaired bool, err error) {
	m, err := extract.Object(raw, responseSchema)
	if err == nil {
		var direct ResponsePayload
		if derr := decodeInto(m, &direct); derr == nil {
			return &direct, false, nil
		}
		// Top-level shape was fine but an inner field is mistyped; fall
		// through to the repair pass.
	} else {
		payload, ok := extract.Payload(raw)
		if !ok {
			// Nothing extractable at all; no structure to repair.
			return nil, false, err
		}
		m = nil
		if uerr := json.Unmarshal(payload, &m); uerr != nil || m == nil {
			return nil, false, err
		}
	}

	fixed := repairResponse(m, fallbackDoc)
	if verr := extract.Validate(fixed, responseSchema); verr != nil {
		return nil, false, &extract.SchemaError{Detail: "unrecoverable after repair: " + verr.Error(), Raw: raw}
	}
	var out ResponsePayload
	if derr := decodeInto(fixed, &out); derr != nil {
		return nil, false, &extract.SchemaError{Detail: "unrecoverable after repair: " + derr.Error(), Raw: raw}
	}
	return &out, true, nil
}

// repairResponse substitutes defaults for missing or mistyped fields.
// The defaults bias toward "needs human attention": an absent verdict
// becomes partial, never agree. A responses field that is not a list is
// left broken so re-validation fails.
func repairResponse(m map[string]any, fallbackDoc string) map[string]any {
	fixed := make(map[string]any, len(m))
	for k, v := range m {
		fixed[k] = v
	}

	if items, ok := fixed["responses"].([]any); ok {
		cleaned := make([]any, 0, len(items))
		for _, item := range items {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			cleaned = append(cleaned, map[string]any{
				"feedback_id":  stringOr(obj["feedback_id"], ""),
				"verdict":      verdictOr(obj["verdict"]),
				"reasoning":    stringOr(obj["reasoning"], ""),
				"action_taken": stringOr(obj["action_taken"], ""),
			})
		}
		fixed["responses"] = cleaned
	}

	if _, ok := fixed["updated_document"].(string); !ok {
		fixed["updated_document"] = fallbackDoc
	}

	cons, ok := fixed["consensus"].(map[string]any)
	if !ok {
		cons = map[string]any{}
	}
	reached, _ := cons["reached"].(bool)
	fixed["consensus"] = map[string]any{
		"reached":                   reached,
		"outstanding_disagreements": stringSliceOr(cons["outstanding_disagreements"]),
		"confidence":                clampConfidence(cons["confidence"]),
		"summary":                   stringOr(cons["summary"], ""),
	}

	return fixed
}

func stringOr(v any, def string) string {
	if s, ok := v.(string); ok {
		return s
	}
	return def
}

func verdictOr(v any) string {
	switch stringOr(v, "") {
	case VerdictAgree:
		return VerdictAgree
	case VerdictDisagree:
		return VerdictDisagree
	default:
		return VerdictPartial
	}
}

func stringSliceOr(v any) []any {
	switch t := v.(type) {
	case []any:
		out := make([]any, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []any{t}
	default:
		return []any{}
	}
}

func clampConfidence(v any) float64 {
	f, ok := v.(float64)
	if !ok {
		return 0
	}
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
