// Package sanitizer implements Stage B of the Aggregator/Sanitizer (C5,
// spec.md §4.5): applying the chosen mitigation action to produce
// clean_text. Span application is done by UTF-8 code point index so a
// multibyte character is never split.
package sanitizer

import (
	"sort"
	"strings"
	"unicode"

	"moderation-gateway/internal/aggregator"
	"moderation-gateway/internal/config"
	"moderation-gateway/internal/normalizer"
	"moderation-gateway/internal/verdict"
)

const reaskPrompt = "Your input could not be processed; please rephrase."

// Sanitize produces clean_text for one request, per spec.md §4.5 Stage B's
// three-branch rule (blocked / pass / apply action_on_fail).
func Sanitize(status aggregator.Status, text string, action normalizer.ActionOnFail, verdicts map[config.AnalyzerName]verdict.Verdict, maskToken string) string {
	switch status {
	case aggregator.StatusBlocked:
		return ""
	case aggregator.StatusPass:
		return text
	}

	spans := flaggedSpans(verdicts)
	switch action {
	case normalizer.ActionPass:
		return text
	case normalizer.ActionRefrain:
		return ""
	case normalizer.ActionReask:
		return reaskPrompt
	case normalizer.ActionMask:
		return applySpans(text, spans, func(s verdict.Span) string { return maskToken })
	case normalizer.ActionFilter:
		return applySpansFilter(text, spans)
	default:
		return applySpans(text, spans, func(s verdict.Span) string { return s.Replacement })
	}
}

// flaggedSpans collects every span from every flagged verdict, in
// analyzer-priority order, ready for union/merge by applySpans.
func flaggedSpans(verdicts map[config.AnalyzerName]verdict.Verdict) []verdict.Span {
	var spans []verdict.Span
	for _, name := range config.AllAnalyzers {
		v, ok := verdicts[name]
		if !ok || v.Outcome != verdict.Flagged {
			continue
		}
		spans = append(spans, v.Spans...)
	}
	return spans
}

// applySpans sorts spans by start ascending, merges (unions) overlapping
// spans across all analyzers, then rebuilds text in a single pass over its
// UTF-8 code points, replacing each merged span with replacementFor(span).
func applySpans(text string, spans []verdict.Span, replacementFor func(verdict.Span) string) string {
	if len(spans) == 0 {
		return text
	}
	runes := []rune(text)
	merged := mergeSpans(spans)

	var b strings.Builder
	cursor := 0
	for _, s := range merged {
		start, end := clamp(s.Start, len(runes)), clamp(s.End, len(runes))
		if start > end {
			start, end = end, start
		}
		if start > cursor {
			b.WriteString(string(runes[cursor:start]))
		}
		b.WriteString(replacementFor(s))
		if end > cursor {
			cursor = end
		}
	}
	if cursor < len(runes) {
		b.WriteString(string(runes[cursor:]))
	}
	return b.String()
}

// mergeSpans unions overlapping spans from possibly-different analyzers.
// verdict.MergeSpans is applied to a single analyzer's own spans; this
// performs the same sort-and-coalesce pass but across all analyzers' spans
// combined, which is exactly what a cross-analyzer union needs.
func mergeSpans(spans []verdict.Span) []verdict.Span {
	sorted := make([]verdict.Span, len(spans))
	copy(sorted, spans)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End < sorted[j].End
	})

	merged := make([]verdict.Span, 0, len(sorted))
	cur := sorted[0]
	for _, s := range sorted[1:] {
		if s.Start < cur.End {
			if s.End > cur.End {
				cur.End = s.End
			}
			continue
		}
		merged = append(merged, cur)
		cur = s
	}
	merged = append(merged, cur)
	return merged
}

func clamp(v, max int) int {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}

// applySpansFilter is the filter action's variant of applySpans: each merged
// span is replaced with its own Replacement field, same as applySpans. Only
// where a span's Replacement is empty (content actually removed, not
// substituted) is the whitespace immediately adjacent to it squeezed down to
// a single space (spec.md §4.5) — whitespace elsewhere in the text,
// untouched by any span, is left exactly as the caller wrote it.
func applySpansFilter(text string, spans []verdict.Span) string {
	if len(spans) == 0 {
		return text
	}
	runes := []rune(text)
	merged := mergeSpans(spans)

	var b strings.Builder
	cursor := 0
	prevWasRemoval := false
	for _, s := range merged {
		start, end := clamp(s.Start, len(runes)), clamp(s.End, len(runes))
		if start > end {
			start, end = end, start
		}
		isRemoval := s.Replacement == ""
		if start > cursor {
			b.WriteString(collapseAdjacentWhitespace(runes[cursor:start], prevWasRemoval, isRemoval))
		}
		b.WriteString(s.Replacement)
		if end > cursor {
			cursor = end
		}
		prevWasRemoval = isRemoval
	}
	if cursor < len(runes) {
		b.WriteString(collapseAdjacentWhitespace(runes[cursor:], prevWasRemoval, false))
	}
	return b.String()
}

// collapseAdjacentWhitespace squeezes the leading and/or trailing whitespace
// of gap down to a single space, per the collapseLeft/collapseRight flags,
// leaving interior whitespace untouched.
func collapseAdjacentWhitespace(gap []rune, collapseLeft, collapseRight bool) string {
	start, end := 0, len(gap)
	if collapseLeft {
		for start < end && unicode.IsSpace(gap[start]) {
			start++
		}
	}
	if collapseRight {
		for end > start && unicode.IsSpace(gap[end-1]) {
			end--
		}
	}
	var b strings.Builder
	if collapseLeft && start > 0 {
		b.WriteByte(' ')
	}
	b.WriteString(string(gap[start:end]))
	if collapseRight && end < len(gap) {
		b.WriteByte(' ')
	}
	return b.String()
}
