// ABOUTME: Brute-force defense policy wrapping the failure ledger
// ABOUTME: Adds an escalating tarpit delay and block/unblock event logging

package guard

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Tarpit defaults. The delay doubles with each consecutive failure for a
// client and is capped so a single connection never hangs unboundedly.
const (
	DefaultBaseDelay = 100 * time.Millisecond
	DefaultMaxDelay  = 10 * time.Second
)

// unknownClient is the sentinel key used for callers with no usable source
// identifier. Defense still applies to anonymized or proxied callers; they
// just share one bucket.
const unknownClient = "unknown"

// Protector applies the brute-force defense policy: hard blocks from the
// ledger plus a per-client tarpit delay that makes automated guessing
// increasingly expensive before the block threshold is reached.
type Protector struct {
	ledger    *Ledger
	baseDelay time.Duration
	maxDelay  time.Duration
	logger    *slog.Logger

	// sleep is swappable for tests; defaults to a cancellable timer wait.
	sleep func(ctx context.Context, d time.Duration) error
}

// ProtectorConfig holds the tarpit parameters.
type ProtectorConfig struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// NewProtector creates a protector over the given ledger.
func NewProtector(ledger *Ledger, cfg ProtectorConfig) *Protector {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultMaxDelay
	}
	return &Protector{
		ledger:    ledger,
		baseDelay: cfg.BaseDelay,
		maxDelay:  cfg.MaxDelay,
		logger:    slog.Default().With("component", "guard"),
		sleep:     sleepContext,
	}
}

// NormalizeClientID maps a raw source identifier to a ledger key. Unknown or
// empty identifiers collapse to a shared sentinel rather than being rejected.
func NormalizeClientID(clientID string) string {
	id := strings.TrimSpace(clientID)
	if id == "" {
		return unknownClient
	}
	return id
}

// IsBlocked reports whether the client is currently locked out.
func (p *Protector) IsBlocked(clientID string) bool {
	return p.ledger.IsBlocked(NormalizeClientID(clientID))
}

// RecordFailure registers a failed attempt and then holds the calling
// connection for the tarpit delay: min(maxDelay, baseDelay * 2^(failures-1)).
// Only the caller is suspended; other clients proceed unaffected. The wait
// is cut short if ctx is cancelled, and the cancellation error is returned.
func (p *Protector) RecordFailure(ctx context.Context, clientID string) error {
	id := NormalizeClientID(clientID)
	failures, blocked := p.ledger.RecordFailure(id)
	if blocked {
		p.logger.Warn("client blocked after repeated auth failures",
			"client", id,
			"failures", failures)
	}
	return p.sleep(ctx, p.delayFor(failures))
}

// RecordSuccess clears the client's failure state. A prior block being
// lifted by a legitimate login is worth an event.
func (p *Protector) RecordSuccess(clientID string) {
	id := NormalizeClientID(clientID)
	if p.ledger.IsBlocked(id) {
		p.logger.Info("client unblocked by successful auth", "client", id)
	}
	p.ledger.RecordSuccess(id)
}

// EvictExpired runs one garbage-collection pass over the ledger.
func (p *Protector) EvictExpired() int {
	return p.ledger.EvictExpired()
}

// delayFor computes the tarpit delay for the given consecutive failure count.
func (p *Protector) delayFor(failures int) time.Duration {
	if failures <= 0 {
		return 0
	}
	d := p.baseDelay
	for i := 1; i < failures; i++ {
		d *= 2
		if d >= p.maxDelay {
			return p.maxDelay
		}
	}
	if d > p.maxDelay {
		return p.maxDelay
	}
	return d
}

// sleepContext waits for d or until ctx is cancelled, whichever comes first.
// A stopped timer is drained so a teardown mid-delay leaves nothing behind.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
