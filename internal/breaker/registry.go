package breaker

import "moderation-gateway/internal/config"

// Registry holds one Breaker per analyzer. It is the gateway's only
// cross-request mutable state (spec.md §9); each analyzer's Breaker is
// independently locked, so the registry itself needs no lock of its own —
// its map is built once at startup and never mutated afterward.
type Registry struct {
	breakers map[config.AnalyzerName]*Breaker
}

// NewRegistry builds a Registry with one Breaker per analyzer in
// config.AllAnalyzers, all sharing the same tuning.
func NewRegistry(cfg Config) *Registry {
	breakers := make(map[config.AnalyzerName]*Breaker, len(config.AllAnalyzers))
	for _, name := range config.AllAnalyzers {
		breakers[name] = New(cfg)
	}
	return &Registry{breakers: breakers}
}

// For returns the Breaker for name, or nil if name is unknown.
func (r *Registry) For(name config.AnalyzerName) *Breaker {
	return r.breakers[name]
}

// Snapshot returns every analyzer's breaker snapshot, keyed by name, for the
// admin introspection API.
func (r *Registry) Snapshot() map[config.AnalyzerName]Snapshot {
	out := make(map[config.AnalyzerName]Snapshot, len(r.breakers))
	for name, b := range r.breakers {
		out[name] = b.Snapshot()
	}
	return out
}

// NumericState maps a State to the integer spec.md's /admin and the
// Prometheus gateway_breaker_state gauge use: 0=closed, 1=half_open, 2=open.
func NumericState(s State) int {
	switch s {
	case Closed:
		return 0
	case HalfOpen:
		return 1
	case Open:
		return 2
	default:
		return -1
	}
}
