// ABOUTME: Unit tests for the tarpit delay policy and client ID normalization
// ABOUTME: Verifies exponential escalation, capping, and context cancellation

package guard

import (
	"context"
	"errors"
	"testing"
	"time"
)

// recordingSleep captures requested delays instead of actually waiting.
type recordingSleep struct {
	delays []time.Duration
}

func (r *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return ctx.Err()
}

func newTestProtector(cfg ProtectorConfig, ledgerCfg LedgerConfig) (*Protector, *recordingSleep) {
	p := NewProtector(NewLedger(ledgerCfg), cfg)
	rec := &recordingSleep{}
	p.sleep = rec.sleep
	return p, rec
}

func TestProtector_TarpitEscalates(t *testing.T) {
	p, rec := newTestProtector(
		ProtectorConfig{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second},
		LedgerConfig{Threshold: 100, Window: time.Hour},
	)

	ctx := context.Background()
	for i := 0; i < 6; i++ {
		if err := p.RecordFailure(ctx, "10.0.0.1"); err != nil {
			t.Fatalf("RecordFailure() error = %v", err)
		}
	}

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second, // capped
		time.Second,
	}
	if len(rec.delays) != len(want) {
		t.Fatalf("got %d delays, want %d", len(rec.delays), len(want))
	}
	for i, d := range want {
		if rec.delays[i] != d {
			t.Errorf("delay[%d] = %v, want %v", i, rec.delays[i], d)
		}
	}
}

func TestProtector_TarpitResetsAfterSuccess(t *testing.T) {
	p, rec := newTestProtector(
		ProtectorConfig{BaseDelay: 50 * time.Millisecond, MaxDelay: time.Second},
		LedgerConfig{Threshold: 100, Window: time.Hour},
	)

	ctx := context.Background()
	p.RecordFailure(ctx, "10.0.0.2")
	p.RecordFailure(ctx, "10.0.0.2")
	p.RecordSuccess("10.0.0.2")
	p.RecordFailure(ctx, "10.0.0.2")

	if got := rec.delays[2]; got != 50*time.Millisecond {
		t.Errorf("post-success delay = %v, want base delay", got)
	}
}

func TestProtector_RealDelayElapses(t *testing.T) {
	// Uses the real cancellable timer wait with a tiny base delay.
	p := NewProtector(NewLedger(LedgerConfig{Threshold: 100, Window: time.Hour}),
		ProtectorConfig{BaseDelay: 20 * time.Millisecond, MaxDelay: 100 * time.Millisecond})

	start := time.Now()
	if err := p.RecordFailure(context.Background(), "10.0.0.3"); err != nil {
		t.Fatalf("RecordFailure() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("RecordFailure returned after %v, want >= 20ms", elapsed)
	}
}

func TestProtector_CancelledContextCutsDelayShort(t *testing.T) {
	p := NewProtector(NewLedger(LedgerConfig{Threshold: 100, Window: time.Hour}),
		ProtectorConfig{BaseDelay: 10 * time.Second, MaxDelay: time.Minute})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := p.RecordFailure(ctx, "10.0.0.4")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("RecordFailure() error = %v, want deadline exceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("cancellation took %v, delay was not cut short", elapsed)
	}

	// The failure itself must still have been recorded.
	if p.IsBlocked("10.0.0.4") {
		t.Error("single failure should not block")
	}
}

func TestNormalizeClientID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"203.0.113.5", "203.0.113.5"},
		{"  203.0.113.5  ", "203.0.113.5"},
		{"", "unknown"},
		{"   ", "unknown"},
	}
	for _, tt := range tests {
		if got := NormalizeClientID(tt.in); got != tt.want {
			t.Errorf("NormalizeClientID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestProtector_EmptyClientStillDefended(t *testing.T) {
	p, _ := newTestProtector(
		ProtectorConfig{BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
		LedgerConfig{Threshold: 2, Window: time.Hour},
	)

	ctx := context.Background()
	p.RecordFailure(ctx, "")
	p.RecordFailure(ctx, "   ")

	if !p.IsBlocked("") {
		t.Error("anonymous callers should share the sentinel bucket and be blocked")
	}
}
