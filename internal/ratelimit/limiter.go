package ratelimit

import (
	"sync"
	"time"
)

// Policy bounds request throughput within a fixed window.
type Policy struct {
	Window      time.Duration
	MaxRequests int
}

// Default policy tiers. The auth tier only covers credential-submission
// endpoints; everything else under the API falls into the general tier.
var (
	APIPolicy  = Policy{Window: time.Minute, MaxRequests: 100}
	AuthPolicy = Policy{Window: 15 * time.Minute, MaxRequests: 10}
)

// Result reports the outcome of an admission check.
type Result struct {
	Allowed   bool
	Remaining int
	// RetryAfter is the full window length, not the remaining time. Clients
	// treat it as a hint only.
	RetryAfter time.Duration
}

type entry struct {
	count     int
	resetTime time.Time
}

// Limiter is a fixed-window counter keyed by client identifier. It resets a
// key's count at fixed boundaries rather than sliding, and never increments
// the count of a denied request. Expired entries are collected either when
// the tracked-key total crosses the high-water mark or by a periodic sweeper,
// so both deployment shapes share one implementation.
type Limiter struct {
	mu        sync.Mutex
	entries   map[string]*entry
	policy    Policy
	now       func() time.Time
	highWater int
	stopC     chan struct{}
	stopOnce  sync.Once
}

const defaultHighWater = 10000

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(l *Limiter) {
		if fn != nil {
			l.now = fn
		}
	}
}

// WithHighWater overrides the tracked-key count that triggers an
// opportunistic sweep. Zero disables threshold sweeps.
func WithHighWater(n int) Option {
	return func(l *Limiter) {
		l.highWater = n
	}
}

// New constructs a limiter for the policy.
func New(policy Policy, opts ...Option) *Limiter {
	l := &Limiter{
		entries:   make(map[string]*entry),
		policy:    policy,
		now:       time.Now,
		highWater: defaultHighWater,
		stopC:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow admits or rejects one request for the identifier.
func (l *Limiter) Allow(id string) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[id]
	if !ok || now.After(e.resetTime) {
		l.entries[id] = &entry{count: 1, resetTime: now.Add(l.policy.Window)}
		if l.highWater > 0 && len(l.entries) > l.highWater {
			l.sweepLocked(now)
		}
		return Result{Allowed: true, Remaining: l.policy.MaxRequests - 1}
	}
	if e.count >= l.policy.MaxRequests {
		return Result{Allowed: false, Remaining: 0, RetryAfter: l.policy.Window}
	}
	e.count++
	return Result{Allowed: true, Remaining: l.policy.MaxRequests - e.count}
}

// StartSweeper runs a periodic goroutine dropping expired entries until Stop
// is called. Deployments that prefer traffic-triggered cleanup skip this and
// rely on the high-water sweep instead.
func (l *Limiter) StartSweeper(interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.Sweep()
			case <-l.stopC:
				return
			}
		}
	}()
}

// Stop terminates the periodic sweeper, if one was started.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopC) })
}

// Sweep drops every entry whose window has already ended.
func (l *Limiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sweepLocked(l.now())
}

func (l *Limiter) sweepLocked(now time.Time) {
	for id, e := range l.entries {
		if now.After(e.resetTime) {
			delete(l.entries, id)
		}
	}
}

// Tracked returns the number of identifiers currently held.
func (l *Limiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
