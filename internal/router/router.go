// Package router implements the gateway's Router (C2, spec.md §4.2): given a
// normalized request, it chooses the ordered set of analyzers to invoke and
// the effective mitigation action.
package router

import (
	"context"
	"strings"
	"unicode"

	"moderation-gateway/internal/config"
	"moderation-gateway/internal/normalizer"
)

// Plan is the Router's output: an ordered set of analyzers plus the
// effective action_on_fail.
type Plan struct {
	Analyzers    []config.AnalyzerName
	ActionOnFail normalizer.ActionOnFail
}

// credentialKeywords are the recognized keywords that make text look like a
// credential (spec.md §4.2 rule 2).
var credentialKeywords = []string{"key", "token", "password", "secret", "sk-", "api"}

// sentinelSubstrings are jailbreak-attempt markers (spec.md §4.2 rule 2).
var sentinelSubstrings = []string{"ignore", "previous instructions", "system prompt", "dan", "developer mode"}

// Route builds the Plan for req per spec.md §4.2's three-rule policy:
// explicit checks always win; absent checks fall back to a heuristic
// default set; the result is emitted in the fixed analyzer-priority order.
func Route(req *normalizer.Request) Plan {
	included := make(map[config.AnalyzerName]bool, len(config.AllAnalyzers))

	if len(req.Checks) == 0 {
		for name, on := range heuristicDefaults(req.Text) {
			included[name] = on
		}
	}

	// Rule 1: explicit checks override whatever the heuristic chose (and are
	// the only source of truth when checks is non-empty).
	for name, on := range req.Checks {
		included[config.AnalyzerName(name)] = on
	}

	ordered := make([]config.AnalyzerName, 0, len(config.AllAnalyzers))
	for _, name := range config.AllAnalyzers {
		if included[name] {
			ordered = append(ordered, name)
		}
	}

	// Pathological-input fallback: never hand C4 an empty plan.
	if len(ordered) == 0 {
		ordered = []config.AnalyzerName{config.Policy}
	}

	return Plan{Analyzers: ordered, ActionOnFail: req.ActionOnFail}
}

// Router wraps Route with an optional advisory supplement step (design note
// §9): a way to let a cheap LLM-based classifier add analyzers to a plan
// without ever being trusted to remove a caller-explicit selection.
type Router struct {
	// Supplement, when set, is given req.Text and returns extra analyzer
	// names to include. It is called synchronously with the caller's ctx; a
	// nil Supplement is a no-op. The hook can only ADD to the plan C2 already
	// computed — it is never consulted for removals, and a name the caller
	// explicitly set to false is not re-added. Route does not enforce ctx's
	// deadline on the hook itself: a hook that ignores ctx delays the plan.
	Supplement func(ctx context.Context, text string) []string
}

// New constructs a Router with no supplement hook wired; set r.Supplement
// directly to enable the advisory extension point.
func New() *Router {
	return &Router{}
}

// Route runs the deterministic rules, then — if a Supplement hook is set —
// layers its suggestions on top before re-emitting in priority order.
func (r *Router) Route(ctx context.Context, req *normalizer.Request) Plan {
	plan := Route(req)
	if r.Supplement == nil {
		return plan
	}

	included := make(map[config.AnalyzerName]bool, len(plan.Analyzers))
	for _, name := range plan.Analyzers {
		included[name] = true
	}
	for _, extra := range r.Supplement(ctx, req.Text) {
		name := config.AnalyzerName(extra)
		if on, explicit := req.Checks[name]; explicit && !on {
			continue // rule 1: an explicit false is never overridden
		}
		included[name] = true
	}

	ordered := make([]config.AnalyzerName, 0, len(included))
	for _, name := range config.AllAnalyzers {
		if included[name] {
			ordered = append(ordered, name)
		}
	}
	return Plan{Analyzers: ordered, ActionOnFail: plan.ActionOnFail}
}

// heuristicDefaults implements spec.md §4.2 rule 2: the default analyzer set
// chosen by lightweight inspection of text when the caller supplied no
// explicit checks at all.
func heuristicDefaults(text string) map[config.AnalyzerName]bool {
	out := map[config.AnalyzerName]bool{config.Policy: true}

	if looksLikeCredentialOrContact(text) {
		out[config.PII] = true
		out[config.Secrets] = true
	}
	if hasAlphabeticWords(text) && tokenCount(text) >= 3 {
		out[config.Toxicity] = true
		out[config.Bias] = true
	}
	if containsSentinel(text) || len([]rune(text)) >= 80 {
		out[config.Jailbreak] = true
	}
	if len([]rune(text)) >= 8 && nonWhitespaceLen(text) < 200 {
		out[config.Gibberish] = true
	}
	// format and brand are explicit-request-only: never added by heuristics.
	return out
}

func looksLikeCredentialOrContact(text string) bool {
	if strings.Contains(text, "@") {
		return true
	}
	if hasConsecutiveDigits(text, 3) {
		return true
	}
	lower := strings.ToLower(text)
	for _, kw := range credentialKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return len([]rune(text)) > 40
}

func hasConsecutiveDigits(text string, n int) bool {
	run := 0
	for _, r := range text {
		if unicode.IsDigit(r) {
			run++
			if run >= n {
				return true
			}
		} else {
			run = 0
		}
	}
	return false
}

func containsSentinel(text string) bool {
	lower := strings.ToLower(text)
	for _, s := range sentinelSubstrings {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

func hasAlphabeticWords(text string) bool {
	for _, r := range text {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

func tokenCount(text string) int {
	return len(strings.Fields(text))
}

func nonWhitespaceLen(text string) int {
	n := 0
	for _, r := range text {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
