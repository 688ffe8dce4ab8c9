// ABOUTME: Per-client failure bookkeeping with sliding window and escalating lockouts
// ABOUTME: Bounded by TTL retention and LRU capacity eviction

package guard

import (
	"container/list"
	"sync"
	"time"
)

// Defaults match the gateway's shipped auth-defense policy. All of them are
// overridable through LedgerConfig / config.SecurityConfig.
const (
	DefaultThreshold  = 30
	DefaultWindow     = 10 * time.Minute
	DefaultBaseBan    = 30 * time.Minute
	DefaultMaxBan     = 24 * time.Hour
	DefaultRetention  = 2 * time.Hour
	DefaultMaxClients = 4096
)

// LedgerConfig holds the lockout policy parameters.
type LedgerConfig struct {
	// Threshold is the number of failures within Window that triggers a block.
	Threshold int

	// Window is the sliding failure window. Failures older than this start a
	// fresh count rather than accumulating.
	Window time.Duration

	// BaseBan is the lockout duration for the first threshold crossing.
	// Each further crossing doubles it, capped at MaxBan.
	BaseBan time.Duration

	// MaxBan caps the escalating lockout duration.
	MaxBan time.Duration

	// Retention is how long an idle record is kept after its last failure.
	Retention time.Duration

	// MaxClients bounds the number of tracked clients. When exceeded, the
	// least-recently-failed client is evicted first.
	MaxClients int
}

// withDefaults fills zero-valued fields with the shipped policy.
func (c LedgerConfig) withDefaults() LedgerConfig {
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.BaseBan <= 0 {
		c.BaseBan = DefaultBaseBan
	}
	if c.MaxBan <= 0 {
		c.MaxBan = DefaultMaxBan
	}
	if c.Retention <= 0 {
		c.Retention = DefaultRetention
	}
	if c.MaxClients <= 0 {
		c.MaxClients = DefaultMaxClients
	}
	return c
}

// record tracks the failure history for a single client.
type record struct {
	clientID     string
	failureCount int
	firstFailure time.Time
	lastFailure  time.Time
	blockedUntil time.Time // zero when no block has been issued
	elem         *list.Element
}

// Ledger tracks authentication failures per client identifier and decides
// when a client is blocked. All methods are safe for concurrent use; the
// critical sections are O(1) so unrelated clients do not observably contend.
type Ledger struct {
	mu      sync.Mutex
	cfg     LedgerConfig
	records map[string]*record
	recency *list.List // front = least recently failed
	now     func() time.Time
}

// NewLedger creates a ledger with the given policy. Zero-valued config
// fields fall back to the shipped defaults.
func NewLedger(cfg LedgerConfig) *Ledger {
	return &Ledger{
		cfg:     cfg.withDefaults(),
		records: make(map[string]*record),
		recency: list.New(),
		now:     time.Now,
	}
}

// RecordFailure registers a failed attempt for the client and returns the
// updated consecutive failure count and whether this failure started a new
// block. Crossing the threshold within the window issues a lockout whose
// duration doubles with each repeat offense, capped at MaxBan.
func (l *Ledger) RecordFailure(clientID string) (failures int, blocked bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	r, ok := l.records[clientID]
	if !ok {
		l.evictOverCapacityLocked()
		r = &record{clientID: clientID, firstFailure: now}
		r.elem = l.recency.PushBack(r)
		l.records[clientID] = r
	}

	if now.Sub(r.firstFailure) > l.cfg.Window && now.After(r.blockedUntil) {
		// Window lapsed with no active block: start a fresh count.
		r.failureCount = 0
		r.firstFailure = now
		r.blockedUntil = time.Time{}
	}

	r.failureCount++
	r.lastFailure = now
	l.recency.MoveToBack(r.elem)

	if r.failureCount >= l.cfg.Threshold && !now.Before(r.blockedUntil) {
		offenses := r.failureCount / l.cfg.Threshold
		r.blockedUntil = now.Add(l.banDuration(offenses))
		return r.failureCount, true
	}
	return r.failureCount, false
}

// banDuration returns the lockout for the nth threshold crossing (1-based),
// doubling per offense and capped at MaxBan.
func (l *Ledger) banDuration(offenses int) time.Duration {
	d := l.cfg.BaseBan
	for i := 1; i < offenses; i++ {
		d *= 2
		if d >= l.cfg.MaxBan {
			return l.cfg.MaxBan
		}
	}
	if d > l.cfg.MaxBan {
		return l.cfg.MaxBan
	}
	return d
}

// RecordSuccess clears all failure state for the client. A legitimate login
// resets the slate, including any active block.
func (l *Ledger) RecordSuccess(clientID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if r, ok := l.records[clientID]; ok {
		l.recency.Remove(r.elem)
		delete(l.records, clientID)
	}
}

// IsBlocked reports whether the client currently has an active block.
func (l *Ledger) IsBlocked(clientID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, ok := l.records[clientID]
	if !ok {
		return false
	}
	return l.now().Before(r.blockedUntil)
}

// Failures returns the current failure count for the client (0 if untracked).
func (l *Ledger) Failures(clientID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if r, ok := l.records[clientID]; ok {
		return r.failureCount
	}
	return 0
}

// EvictExpired removes records whose failure window and block have both
// lapsed past the retention period. Returns the number of records removed.
func (l *Ledger) EvictExpired() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for e := l.recency.Front(); e != nil; {
		next := e.Next()
		r := e.Value.(*record)
		if now.Sub(r.lastFailure) > l.cfg.Retention && !now.Before(r.blockedUntil) {
			l.recency.Remove(e)
			delete(l.records, r.clientID)
			removed++
		}
		e = next
	}
	return removed
}

// Len returns the number of tracked clients.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// evictOverCapacityLocked drops least-recently-failed records until there is
// room for one more. Capacity eviction is independent of TTL expiry so the
// ledger stays bounded even under a churn of fresh client identifiers.
func (l *Ledger) evictOverCapacityLocked() {
	for len(l.records) >= l.cfg.MaxClients {
		front := l.recency.Front()
		if front == nil {
			return
		}
		r := front.Value.(*record)
		l.recency.Remove(front)
		delete(l.records, r.clientID)
	}
}
