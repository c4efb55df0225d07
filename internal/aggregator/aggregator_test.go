package aggregator

import (
	"testing"

	"moderation-gateway/internal/config"
	"moderation-gateway/internal/verdict"
)

func TestAggregate_AllPass(t *testing.T) {
	verdicts := map[config.AnalyzerName]verdict.Verdict{
		config.Policy: {Name: "policy", Outcome: verdict.Pass},
	}
	r := Aggregate(verdicts)
	if r.Status != StatusPass {
		t.Errorf("Status: got %v, want pass", r.Status)
	}
	if len(r.BlockedCategories) != 0 {
		t.Errorf("BlockedCategories: got %v, want empty", r.BlockedCategories)
	}
}

func TestAggregate_Severity4Blocks(t *testing.T) {
	verdicts := map[config.AnalyzerName]verdict.Verdict{
		config.Policy: {Name: "policy", Outcome: verdict.Flagged, Severity: 4},
	}
	r := Aggregate(verdicts)
	if r.Status != StatusBlocked {
		t.Errorf("Status: got %v, want blocked", r.Status)
	}
	if len(r.BlockedCategories) != 1 || r.BlockedCategories[0] != config.Policy {
		t.Errorf("BlockedCategories: got %v", r.BlockedCategories)
	}
}

func TestAggregate_ShortCircuitedSeverity4Blocks(t *testing.T) {
	verdicts := map[config.AnalyzerName]verdict.Verdict{
		config.Policy: {Name: "policy", Outcome: verdict.ShortCircuited, Severity: 4},
	}
	r := Aggregate(verdicts)
	if r.Status != StatusBlocked {
		t.Errorf("Status: got %v, want blocked", r.Status)
	}
}

func TestAggregate_FlaggedWithSpansIsFixed(t *testing.T) {
	verdicts := map[config.AnalyzerName]verdict.Verdict{
		config.PII: {Name: "pii", Outcome: verdict.Flagged, Severity: 1, Spans: []verdict.Span{{Start: 0, End: 5}}},
	}
	r := Aggregate(verdicts)
	if r.Status != StatusFixed {
		t.Errorf("Status: got %v, want fixed", r.Status)
	}
}

func TestAggregate_FlaggedHighSeverityNoSpansIsFixed(t *testing.T) {
	verdicts := map[config.AnalyzerName]verdict.Verdict{
		config.Toxicity: {Name: "toxicity", Outcome: verdict.Flagged, Severity: 2},
	}
	r := Aggregate(verdicts)
	if r.Status != StatusFixed {
		t.Errorf("Status: got %v, want fixed", r.Status)
	}
}

func TestAggregate_FlaggedLowSeverityNoSpansIsPass(t *testing.T) {
	verdicts := map[config.AnalyzerName]verdict.Verdict{
		config.Toxicity: {Name: "toxicity", Outcome: verdict.Flagged, Severity: 1},
	}
	r := Aggregate(verdicts)
	if r.Status != StatusPass {
		t.Errorf("Status: got %v, want pass (severity 1, no spans shouldn't fix or block)", r.Status)
	}
}

func TestAggregate_AllErrorIsError(t *testing.T) {
	verdicts := map[config.AnalyzerName]verdict.Verdict{
		config.Policy: {Name: "policy", Outcome: verdict.Error},
		config.PII:    {Name: "pii", Outcome: verdict.Error},
	}
	r := Aggregate(verdicts)
	if r.Status != StatusError {
		t.Errorf("Status: got %v, want error", r.Status)
	}
}

func TestAggregate_ErrorWithFlaggedPeerIsNotOverallError(t *testing.T) {
	verdicts := map[config.AnalyzerName]verdict.Verdict{
		config.Policy: {Name: "policy", Outcome: verdict.Error},
		config.PII:    {Name: "pii", Outcome: verdict.Flagged, Severity: 2},
	}
	r := Aggregate(verdicts)
	if r.Status != StatusFixed {
		t.Errorf("Status: got %v, want fixed (one analyzer errored, peer flagged)", r.Status)
	}
}

func TestAggregate_BenignShortCircuitIsPass(t *testing.T) {
	verdicts := map[config.AnalyzerName]verdict.Verdict{
		config.Toxicity: {Name: "toxicity", Outcome: verdict.ShortCircuited, Severity: 0},
	}
	r := Aggregate(verdicts)
	if r.Status != StatusPass {
		t.Errorf("Status: got %v, want pass", r.Status)
	}
}

func TestAggregate_BlockedCategoriesPriorityOrder(t *testing.T) {
	verdicts := map[config.AnalyzerName]verdict.Verdict{
		config.Secrets: {Name: "secrets", Outcome: verdict.Flagged, Severity: 4},
		config.Policy:  {Name: "policy", Outcome: verdict.Flagged, Severity: 4},
	}
	r := Aggregate(verdicts)
	if len(r.BlockedCategories) != 2 {
		t.Fatalf("expected 2 blocked categories, got %v", r.BlockedCategories)
	}
	if r.BlockedCategories[0] != config.Policy || r.BlockedCategories[1] != config.Secrets {
		t.Errorf("expected priority order [policy, secrets], got %v", r.BlockedCategories)
	}
}

func TestAggregate_ReasonsDeduplicatedPreservingFirstOccurrence(t *testing.T) {
	verdicts := map[config.AnalyzerName]verdict.Verdict{
		config.Policy:  {Name: "policy", Outcome: verdict.Flagged, Severity: 4, Reasons: []string{"blocked_topic"}},
		config.Secrets: {Name: "secrets", Outcome: verdict.Flagged, Severity: 4, Reasons: []string{"blocked_topic", "credential_leak"}},
	}
	r := Aggregate(verdicts)
	want := []string{"blocked_topic", "credential_leak"}
	if len(r.Reasons) != len(want) {
		t.Fatalf("Reasons: got %v, want %v", r.Reasons, want)
	}
	for i := range want {
		if r.Reasons[i] != want[i] {
			t.Errorf("Reasons[%d]: got %q, want %q", i, r.Reasons[i], want[i])
		}
	}
}

func TestAggregate_EmptyVerdictMapIsPass(t *testing.T) {
	r := Aggregate(map[config.AnalyzerName]verdict.Verdict{})
	if r.Status != StatusPass {
		t.Errorf("Status: got %v, want pass for an empty verdict map", r.Status)
	}
}
