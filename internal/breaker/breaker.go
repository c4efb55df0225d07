// Package breaker implements the gateway's per-analyzer circuit breakers
// (spec.md §4.3): the one piece of state shared across concurrent requests.
//
// Each analyzer gets its own *Breaker, internally synchronised with its own
// mutex, mirroring the teacher proxy's per-shard locking in its S3-FIFO
// cache (internal/anonymizer/s3fifo_cache.go) rather than funneling every
// request through one global lock.
package breaker

import (
	"sync"
	"time"
)

// State is one of the three states a breaker can be in.
type State int

// Breaker states, also used as the numeric value exported to Prometheus.
const (
	Closed State = iota
	HalfOpen
	Open
)

// String renders a State for logging and the admin snapshot API.
func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case HalfOpen:
		return "half_open"
	case Open:
		return "open"
	default:
		return "unknown"
	}
}

// Outcome is what record() is told about a completed (or rejected) call.
type Outcome int

// Outcomes a completed call can report.
const (
	Success Outcome = iota
	Failure
)

// Ticket is returned by Admit and must be passed back to Record exactly
// once. A zero Ticket (Admitted == false) must never be passed to Record.
type Ticket struct {
	Admitted bool
	isProbe  bool
}

// Config tunes one breaker's transition thresholds (spec.md §4.3 defaults).
type Config struct {
	FailureThreshold int
	Window           int
	RatioThreshold   float64
	MinimumSamples   int
	Cooldown         time.Duration
}

// Breaker is a single analyzer's three-state circuit breaker.
type Breaker struct {
	cfg Config

	mu           sync.Mutex
	state        State
	openedAt     time.Time
	probeInFlight bool

	// outcomes is a fixed-size ring buffer of the last cfg.Window results;
	// true means failure. head points at the next slot to overwrite.
	outcomes []bool
	filled   []bool
	head     int
	count    int // number of valid entries, saturates at len(outcomes)
}

// New constructs a Breaker in the CLOSED state.
func New(cfg Config) *Breaker {
	if cfg.Window <= 0 {
		cfg.Window = 20
	}
	return &Breaker{
		cfg:      cfg,
		state:    Closed,
		outcomes: make([]bool, cfg.Window),
		filled:   make([]bool, cfg.Window),
	}
}

// Admit requests permission to call the analyzer. It returns a Ticket whose
// Admitted field is false when the breaker is OPEN (and cooldown hasn't
// elapsed) or when the breaker is HALF_OPEN and a probe is already in
// flight — in both cases the caller must short-circuit instead of calling
// the analyzer.
func (b *Breaker) Admit() Ticket {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return Ticket{Admitted: true}
	case Open:
		if time.Since(b.openedAt) < b.cfg.Cooldown {
			return Ticket{Admitted: false}
		}
		// Cooldown elapsed: transition to HALF_OPEN and admit exactly this
		// call as the probe.
		b.state = HalfOpen
		b.probeInFlight = true
		return Ticket{Admitted: true, isProbe: true}
	case HalfOpen:
		if b.probeInFlight {
			return Ticket{Admitted: false}
		}
		b.probeInFlight = true
		return Ticket{Admitted: true, isProbe: true}
	default:
		return Ticket{Admitted: false}
	}
}

// Record reports the outcome of a call previously admitted by Admit. It must
// be called exactly once per admitted Ticket and never for a rejected one.
func (b *Breaker) Record(t Ticket, outcome Outcome) {
	if !t.Admitted {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if t.isProbe {
		b.probeInFlight = false
		if outcome == Success {
			b.state = Closed
			b.resetWindowLocked()
		} else {
			b.state = Open
			b.openedAt = time.Now()
		}
		return
	}

	b.pushLocked(outcome == Failure)

	if b.state == Closed && b.shouldTripLocked() {
		b.state = Open
		b.openedAt = time.Now()
	}
}

// Snapshot returns the breaker's current state for observability. It may be
// slightly stale relative to a concurrently in-flight Admit/Record, which
// spec.md §9 explicitly allows for /health and /admin views.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	failures, total := b.windowStatsLocked()
	var ratio float64
	if total > 0 {
		ratio = float64(failures) / float64(total)
	}
	return Snapshot{
		State:         b.state.String(),
		WindowFailures: failures,
		WindowTotal:   total,
		FailureRatio:  ratio,
	}
}

// Snapshot is a point-in-time, JSON-friendly view of one breaker.
type Snapshot struct {
	State          string  `json:"state"`
	WindowFailures int     `json:"windowFailures"`
	WindowTotal    int     `json:"windowTotal"`
	FailureRatio   float64 `json:"failureRatio"`
}

func (b *Breaker) pushLocked(failed bool) {
	b.outcomes[b.head] = failed
	b.filled[b.head] = true
	b.head = (b.head + 1) % len(b.outcomes)
	if b.count < len(b.outcomes) {
		b.count++
	}
}

func (b *Breaker) resetWindowLocked() {
	for i := range b.outcomes {
		b.filled[i] = false
	}
	b.head = 0
	b.count = 0
}

func (b *Breaker) windowStatsLocked() (failures, total int) {
	for i, f := range b.filled {
		if !f {
			continue
		}
		total++
		if b.outcomes[i] {
			failures++
		}
	}
	return failures, total
}

// shouldTripLocked implements the CLOSED -> OPEN transition rule: trip on
// either an absolute failure count or a minimum-sample failure ratio.
func (b *Breaker) shouldTripLocked() bool {
	failures, total := b.windowStatsLocked()
	if failures >= b.cfg.FailureThreshold {
		return true
	}
	if total >= b.cfg.MinimumSamples && b.cfg.RatioThreshold > 0 {
		ratio := float64(failures) / float64(total)
		if ratio > b.cfg.RatioThreshold {
			return true
		}
	}
	return false
}
