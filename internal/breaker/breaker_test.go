package breaker

import (
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		FailureThreshold: 5,
		Window:           20,
		RatioThreshold:   0.5,
		MinimumSamples:   10,
		Cooldown:         30 * time.Second,
	}
}

func TestNew_StartsClosed(t *testing.T) {
	b := New(testConfig())
	if got := b.Snapshot().State; got != "closed" {
		t.Errorf("initial state: got %s, want closed", got)
	}
}

func TestAdmit_ClosedAlwaysAdmits(t *testing.T) {
	b := New(testConfig())
	for i := 0; i < 5; i++ {
		ticket := b.Admit()
		if !ticket.Admitted {
			t.Fatalf("call %d: expected admission while closed", i)
		}
		b.Record(ticket, Success)
	}
}

func TestTrip_OnAbsoluteFailureThreshold(t *testing.T) {
	cfg := testConfig()
	cfg.FailureThreshold = 3
	cfg.RatioThreshold = 0 // disable ratio path for this test
	b := New(cfg)

	for i := 0; i < 3; i++ {
		ticket := b.Admit()
		b.Record(ticket, Failure)
	}
	if got := b.Snapshot().State; got != "open" {
		t.Errorf("state after %d failures: got %s, want open", cfg.FailureThreshold, got)
	}
}

func TestTrip_OnRatioThresholdWithMinimumSamples(t *testing.T) {
	cfg := Config{
		FailureThreshold: 100, // unreachable, isolate the ratio path
		Window:           20,
		RatioThreshold:   0.5,
		MinimumSamples:   10,
		Cooldown:         30 * time.Second,
	}
	b := New(cfg)

	// 6 failures / 10 completions = 0.6 > 0.5, with minimum samples met.
	for i := 0; i < 6; i++ {
		ticket := b.Admit()
		b.Record(ticket, Failure)
	}
	for i := 0; i < 4; i++ {
		ticket := b.Admit()
		b.Record(ticket, Success)
	}
	if got := b.Snapshot().State; got != "open" {
		t.Errorf("state after 6/10 failures: got %s, want open", got)
	}
}

func TestNoTrip_BelowMinimumSamples(t *testing.T) {
	cfg := Config{
		FailureThreshold: 100,
		Window:           20,
		RatioThreshold:   0.5,
		MinimumSamples:   10,
		Cooldown:         30 * time.Second,
	}
	b := New(cfg)

	// 4 failures / 5 completions = 0.8 ratio, but under minimum_samples.
	for i := 0; i < 4; i++ {
		ticket := b.Admit()
		b.Record(ticket, Failure)
	}
	ticket := b.Admit()
	b.Record(ticket, Success)

	if got := b.Snapshot().State; got != "closed" {
		t.Errorf("state below minimum samples: got %s, want closed", got)
	}
}

func TestOpen_RejectsUntilCooldownElapses(t *testing.T) {
	cfg := testConfig()
	cfg.FailureThreshold = 1
	cfg.Cooldown = 20 * time.Millisecond
	b := New(cfg)

	ticket := b.Admit()
	b.Record(ticket, Failure)
	if got := b.Snapshot().State; got != "open" {
		t.Fatalf("expected open after 1 failure, got %s", got)
	}

	rejected := b.Admit()
	if rejected.Admitted {
		t.Error("expected rejection immediately after opening")
	}

	time.Sleep(30 * time.Millisecond)
	probe := b.Admit()
	if !probe.Admitted {
		t.Error("expected the first admit after cooldown to be the probe")
	}
	if got := b.Snapshot().State; got != "half_open" {
		t.Errorf("state after cooldown: got %s, want half_open", got)
	}
}

func TestHalfOpen_OnlyOneConcurrentProbe(t *testing.T) {
	cfg := testConfig()
	cfg.FailureThreshold = 1
	cfg.Cooldown = 10 * time.Millisecond
	b := New(cfg)

	ticket := b.Admit()
	b.Record(ticket, Failure)
	time.Sleep(20 * time.Millisecond)

	probe := b.Admit()
	if !probe.Admitted {
		t.Fatal("expected first half-open admit to succeed as the probe")
	}
	second := b.Admit()
	if second.Admitted {
		t.Error("expected second concurrent half-open admit to be rejected")
	}
}

func TestHalfOpen_ProbeSuccessClosesBreaker(t *testing.T) {
	cfg := testConfig()
	cfg.FailureThreshold = 1
	cfg.Cooldown = 10 * time.Millisecond
	b := New(cfg)

	ticket := b.Admit()
	b.Record(ticket, Failure)
	time.Sleep(20 * time.Millisecond)

	probe := b.Admit()
	b.Record(probe, Success)

	if got := b.Snapshot().State; got != "closed" {
		t.Errorf("state after successful probe: got %s, want closed", got)
	}
}

func TestHalfOpen_ProbeFailureReopensAndRestartsCooldown(t *testing.T) {
	cfg := testConfig()
	cfg.FailureThreshold = 1
	cfg.Cooldown = 15 * time.Millisecond
	b := New(cfg)

	ticket := b.Admit()
	b.Record(ticket, Failure)
	time.Sleep(20 * time.Millisecond)

	probe := b.Admit()
	b.Record(probe, Failure)

	if got := b.Snapshot().State; got != "open" {
		t.Fatalf("state after failed probe: got %s, want open", got)
	}
	// Cooldown should have restarted: immediately after, still rejecting.
	if rejected := b.Admit(); rejected.Admitted {
		t.Error("expected rejection immediately after probe failure reopens breaker")
	}
}

func TestSnapshot_ReflectsWindowCounts(t *testing.T) {
	b := New(testConfig())
	ticket := b.Admit()
	b.Record(ticket, Failure)
	ticket = b.Admit()
	b.Record(ticket, Success)

	snap := b.Snapshot()
	if snap.WindowTotal != 2 {
		t.Errorf("WindowTotal: got %d, want 2", snap.WindowTotal)
	}
	if snap.WindowFailures != 1 {
		t.Errorf("WindowFailures: got %d, want 1", snap.WindowFailures)
	}
	if snap.FailureRatio != 0.5 {
		t.Errorf("FailureRatio: got %f, want 0.5", snap.FailureRatio)
	}
}

func TestWindow_SlidesPastConfiguredSize(t *testing.T) {
	cfg := testConfig()
	cfg.Window = 5
	cfg.FailureThreshold = 100
	cfg.RatioThreshold = 0
	b := New(cfg)

	for i := 0; i < 5; i++ {
		ticket := b.Admit()
		b.Record(ticket, Failure)
	}
	for i := 0; i < 5; i++ {
		ticket := b.Admit()
		b.Record(ticket, Success)
	}

	snap := b.Snapshot()
	if snap.WindowTotal != 5 {
		t.Errorf("WindowTotal should cap at window size: got %d, want 5", snap.WindowTotal)
	}
	if snap.WindowFailures != 0 {
		t.Errorf("old failures should have slid out of the window: got %d, want 0", snap.WindowFailures)
	}
}

func TestRecord_RejectedTicketIsNoOp(t *testing.T) {
	cfg := testConfig()
	cfg.FailureThreshold = 1
	b := New(cfg)

	ticket := b.Admit()
	b.Record(ticket, Failure) // opens the breaker

	rejected := b.Admit()
	before := b.Snapshot()
	b.Record(rejected, Failure) // must be a no-op; rejected.Admitted == false
	after := b.Snapshot()

	if before != after {
		t.Errorf("recording a rejected ticket mutated state: before=%+v after=%+v", before, after)
	}
}
