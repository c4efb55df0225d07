// Package executor implements the Fan-out Executor (C4, spec.md §4.4): it
// issues the router's chosen analyzer calls concurrently under nested
// per-call/global timeouts, consults the Breaker Registry for admission,
// and assembles the per-analyzer verdict map. One analyzer's failure never
// cancels another's in-flight call (spec.md invariant 6) — golang.org/x/sync
// errgroup is deliberately NOT used here because errgroup's first-error
// cancels the group's shared context, which would violate that invariant;
// instead each call gets its own derived context and a plain sync.WaitGroup
// fans the goroutines back in.
package executor

import (
	"context"
	"sync"
	"time"

	"moderation-gateway/internal/analyzer"
	"moderation-gateway/internal/breaker"
	"moderation-gateway/internal/config"
	"moderation-gateway/internal/logger"
	"moderation-gateway/internal/metrics"
	"moderation-gateway/internal/normalizer"
	"moderation-gateway/internal/router"
	"moderation-gateway/internal/verdict"
)

// Executor runs a routing Plan's analyzer calls to completion.
type Executor struct {
	cfg      *config.Config
	breakers *breaker.Registry
	client   *analyzer.Client
	metrics  *metrics.Metrics
	log      *logger.Logger
}

// New constructs an Executor.
func New(cfg *config.Config, breakers *breaker.Registry, client *analyzer.Client, m *metrics.Metrics, log *logger.Logger) *Executor {
	return &Executor{cfg: cfg, breakers: breakers, client: client, metrics: m, log: log}
}

// Execute runs plan.Analyzers concurrently against req, bounded by the
// configured global deadline, and returns one Verdict per analyzer keyed by
// name (spec.md §4.4's `execute(Plan, text, return_spans, entities)` contract).
func (e *Executor) Execute(ctx context.Context, plan router.Plan, req *normalizer.Request) map[config.AnalyzerName]verdict.Verdict {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.GlobalDeadline)
	defer cancel()

	results := make(map[config.AnalyzerName]verdict.Verdict, len(plan.Analyzers))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, name := range plan.Analyzers {
		name := name
		wg.Add(1)
		go func() {
			defer wg.Done()
			v := e.callOne(ctx, name, req)
			mu.Lock()
			results[name] = v
			mu.Unlock()
		}()
	}
	wg.Wait()
	return results
}

// callOne admits, calls (with one bounded retry already handled inside
// analyzer.Client), adapts and records the outcome for a single analyzer.
func (e *Executor) callOne(ctx context.Context, name config.AnalyzerName, req *normalizer.Request) verdict.Verdict {
	b := e.breakers.For(name)
	ticket := b.Admit()
	if !ticket.Admitted {
		e.metrics.RecordAnalyzerCall(string(name), "short_circuited", 0)
		return e.shortCircuit(name, req)
	}

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.AnalyzerTimeout(name))
	defer cancel()

	start := time.Now()
	ac := e.cfg.Analyzers[name]
	status, body, err := e.client.Call(callCtx, ac.URL, ac.APIKey, analyzer.CallRequest{
		Text:         req.Text,
		ReturnSpans:  req.ReturnSpans,
		Entities:     entitiesFor(name, req.Entities),
		ActionOnFail: string(req.ActionOnFail),
	})
	elapsed := time.Since(start)

	if err != nil {
		if callCtx.Err() != nil {
			b.Record(ticket, breaker.Failure)
			e.metrics.RecordAnalyzerCall(string(name), "error", elapsed)
			return verdict.Verdict{Name: string(name), Outcome: verdict.Error, Reasons: []string{"timeout"}}
		}
		b.Record(ticket, breaker.Failure)
		e.metrics.RecordAnalyzerCall(string(name), "error", elapsed)
		return verdict.Verdict{Name: string(name), Outcome: verdict.Error, Reasons: []string{"transport_error"}}
	}

	if status < 200 || status >= 300 {
		b.Record(ticket, breaker.Failure)
		e.metrics.RecordAnalyzerCall(string(name), "error", elapsed)
		return verdict.Verdict{Name: string(name), Outcome: verdict.Error, Reasons: []string{"http_status"}}
	}

	v := analyzer.Adapt(name, body)
	if v.Outcome == verdict.Error {
		b.Record(ticket, breaker.Failure)
	} else {
		b.Record(ticket, breaker.Success)
	}
	e.metrics.RecordAnalyzerCall(string(name), string(v.Outcome), elapsed)
	return v
}

// shortCircuit synthesises a verdict locally when the breaker denies
// admission. Only the policy analyzer runs the synchronous fallback
// classifier; every other analyzer yields a benign short-circuit verdict
// that never contributes to blocking (spec.md §4.4).
func (e *Executor) shortCircuit(name config.AnalyzerName, req *normalizer.Request) verdict.Verdict {
	if name != config.Policy {
		return verdict.Verdict{Name: string(name), Outcome: verdict.ShortCircuited, Severity: 0}
	}

	if rule, fired := analyzer.PolicyFallback(req.Text); fired {
		return verdict.Verdict{
			Name:     string(name),
			Outcome:  verdict.Flagged,
			Severity: 4,
			Reasons:  []string{"policy_fallback:" + rule},
		}
	}
	return verdict.Verdict{Name: string(name), Outcome: verdict.ShortCircuited, Severity: 0}
}

// entitiesFor forwards the request's entities list verbatim to the PII
// analyzer only (spec.md §3).
func entitiesFor(name config.AnalyzerName, entities []string) []string {
	if name != config.PII {
		return nil
	}
	return entities
}
