// Package aggregator implements Stage A of the Aggregator/Sanitizer (C5,
// spec.md §4.5): merging the fan-out executor's per-analyzer verdicts into
// one overall status, the set of blocked categories, and the deduplicated
// reasons list.
package aggregator

import (
	"moderation-gateway/internal/config"
	"moderation-gateway/internal/verdict"
)

// Status is the gateway's overall decision for one request.
type Status string

// The enumerated overall statuses (spec.md §3).
const (
	StatusPass    Status = "pass"
	StatusFixed   Status = "fixed"
	StatusBlocked Status = "blocked"
	StatusError   Status = "error"
)

// Result is Stage A's output.
type Result struct {
	Status            Status
	BlockedCategories []config.AnalyzerName
	Reasons           []string
}

// Aggregate implements spec.md §4.5 Stage A exactly: severity-4 verdicts
// block, any flagged verdict with spans or severity >= 2 triggers a fix, and
// everything else either passes or, if every verdict errored, surfaces as an
// overall error.
func Aggregate(verdicts map[config.AnalyzerName]verdict.Verdict) Result {
	blocked := false
	fixed := false
	allError := len(verdicts) > 0
	anyFlaggedPeer := false

	for _, v := range verdicts {
		if v.Outcome == verdict.Flagged {
			anyFlaggedPeer = true
		}
		if v.Outcome != verdict.Error {
			allError = false
		}
		if (v.Outcome == verdict.Flagged || v.Outcome == verdict.ShortCircuited) && v.Severity == 4 {
			blocked = true
		}
		if v.Outcome == verdict.Flagged && (len(v.Spans) > 0 || v.Severity >= 2) {
			fixed = true
		}
	}

	var status Status
	switch {
	case blocked:
		status = StatusBlocked
	case fixed:
		status = StatusFixed
	case allError && !anyFlaggedPeer:
		status = StatusError
	default:
		status = StatusPass
	}

	categories := blockedCategories(verdicts, status)
	reasons := dedupedReasons(verdicts, categories)

	return Result{Status: status, BlockedCategories: categories, Reasons: reasons}
}

// blockedCategories returns, in analyzer-priority order, the names of
// verdicts that contributed to a non-pass status.
func blockedCategories(verdicts map[config.AnalyzerName]verdict.Verdict, status Status) []config.AnalyzerName {
	if status == StatusPass {
		return nil
	}
	out := make([]config.AnalyzerName, 0, len(verdicts))
	for _, name := range config.AllAnalyzers {
		v, ok := verdicts[name]
		if !ok {
			continue
		}
		if contributes(v, status) {
			out = append(out, name)
		}
	}
	return out
}

func contributes(v verdict.Verdict, status Status) bool {
	switch status {
	case StatusBlocked:
		return (v.Outcome == verdict.Flagged || v.Outcome == verdict.ShortCircuited) && v.Severity == 4
	case StatusFixed:
		return v.Outcome == verdict.Flagged && (len(v.Spans) > 0 || v.Severity >= 2)
	case StatusError:
		return v.Outcome == verdict.Error
	default:
		return false
	}
}

// dedupedReasons concatenates each contributing verdict's reasons in
// analyzer-priority order, de-duplicating while preserving first occurrence.
func dedupedReasons(verdicts map[config.AnalyzerName]verdict.Verdict, categories []config.AnalyzerName) []string {
	seen := make(map[string]bool)
	var out []string
	for _, name := range categories {
		for _, r := range verdicts[name].Reasons {
			if seen[r] {
				continue
			}
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}
