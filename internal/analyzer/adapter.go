package analyzer

import (
	"encoding/json"

	"github.com/tidwall/gjson"

	"moderation-gateway/internal/config"
	"moderation-gateway/internal/verdict"
)

// Adapt translates name's raw JSON response body into the gateway's shared
// Verdict shape. Adapters never panic or return an error: anything
// malformed produces an error-outcome Verdict instead (spec.md §4.4 "Adapters
// never throw").
//
// Every analyzer's response is read with gjson rather than a per-analyzer
// struct: the gateway only ever needs a handful of fields out of an
// otherwise-opaque body, and gjson lets each adapter pull exactly those
// fields without committing to (and having to keep in sync with) that
// analyzer's full schema.
func Adapt(name config.AnalyzerName, raw []byte) verdict.Verdict {
	if !gjson.ValidBytes(raw) {
		return verdict.Verdict{
			Name:    string(name),
			Outcome: verdict.Error,
			Reasons: []string{"malformed_response"},
		}
	}

	var rawAny any
	_ = json.Unmarshal(raw, &rawAny) // already validated above; cannot fail

	parsed := gjson.ParseBytes(raw)
	flagged := extractFlagged(name, parsed)
	severity := int(parsed.Get("severity").Int())
	if !flagged {
		severity = 0
	}

	v := verdict.Verdict{
		Name:     string(name),
		Severity: severity,
		Spans:    extractSpans(parsed),
		Raw:      rawAny,
	}
	if flagged {
		v.Outcome = verdict.Flagged
	} else {
		v.Outcome = verdict.Pass
	}
	v.Reasons = extractReasons(parsed)
	v.Spans = verdict.MergeSpans(v.Spans)
	return v
}

// extractFlagged reads the analyzer-specific block/flag field. Every
// analyzer in the fleet exposes either a boolean ("violated", "flagged",
// "blocked") or a string status field ("status": "flagged"|"pass"); adapters
// try both shapes so a given analyzer's idiosyncratic schema doesn't need a
// bespoke case here.
func extractFlagged(name config.AnalyzerName, parsed gjson.Result) bool {
	for _, boolField := range []string{"violated", "flagged", "blocked", "is_violation"} {
		if r := parsed.Get(boolField); r.Exists() {
			return r.Bool()
		}
	}
	if r := parsed.Get("status"); r.Exists() {
		switch r.String() {
		case "flagged", "blocked", "violation":
			return true
		default:
			return false
		}
	}
	// score-based analyzers (toxicity/bias) flag above a fixed threshold.
	if r := parsed.Get("score"); r.Exists() {
		return r.Float() >= 0.5
	}
	return false
}

func extractSpans(parsed gjson.Result) []verdict.Span {
	arr := parsed.Get("spans")
	if !arr.IsArray() {
		return nil
	}
	spans := make([]verdict.Span, 0, len(arr.Array()))
	for _, s := range arr.Array() {
		spans = append(spans, verdict.Span{
			Start:       int(s.Get("start").Int()),
			End:         int(s.Get("end").Int()),
			Label:       s.Get("label").String(),
			Replacement: s.Get("replacement").String(),
		})
	}
	return spans
}

func extractReasons(parsed gjson.Result) []string {
	if arr := parsed.Get("reasons"); arr.IsArray() {
		reasons := make([]string, 0, len(arr.Array()))
		for _, r := range arr.Array() {
			reasons = append(reasons, r.String())
		}
		return reasons
	}
	if reason := parsed.Get("reason"); reason.Exists() && reason.String() != "" {
		return []string{reason.String()}
	}
	return nil
}
