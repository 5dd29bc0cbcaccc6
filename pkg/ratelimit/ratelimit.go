// Package ratelimit implements sliding-window limiters keyed by requester.
package ratelimit

import (
	"sync"
	"time"
)

type Window struct {
	MaxCalls int           `yaml:"max_calls"`
	Period   time.Duration `yaml:"period"`
}

type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Limiter allows a call only when every window has room for it. Check and
// record happen under the same lock, so concurrent callers cannot both take
// the last slot.
type Limiter struct {
	mu        sync.Mutex
	windows   []Window
	maxPeriod time.Duration
	calls     []time.Time
	now       func() time.Time
}

func New(windows []Window, opts ...Option) *Limiter {
	o := buildOptions(opts)
	var maxPeriod time.Duration
	for _, w := range windows {
		if w.Period > maxPeriod {
			maxPeriod = w.Period
		}
	}
	return &Limiter{
		windows:   windows,
		maxPeriod: maxPeriod,
		now:       o.now,
	}
}

// Check records the call when it is allowed. When it is not, the returned
// duration is the time until the next call would be accepted.
func (l *Limiter) Check() (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)

	var wait time.Duration
	for _, w := range l.windows {
		if w.MaxCalls <= 0 {
			continue
		}
		inWindow := l.callsSince(now.Add(-w.Period))
		if len(inWindow) < w.MaxCalls {
			continue
		}
		// the call that has to expire before a slot frees up
		blocking := inWindow[len(inWindow)-w.MaxCalls]
		if until := blocking.Add(w.Period).Sub(now); until > wait {
			wait = until
		}
	}
	if wait > 0 {
		return false, wait
	}

	l.calls = append(l.calls, now)
	return true, 0
}

func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = nil
}

func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-l.maxPeriod)
	i := 0
	for i < len(l.calls) && !l.calls[i].After(cutoff) {
		i++
	}
	l.calls = l.calls[i:]
}

func (l *Limiter) callsSince(cutoff time.Time) []time.Time {
	for i, c := range l.calls {
		if c.After(cutoff) {
			return l.calls[i:]
		}
	}
	return nil
}

// idle reports whether every recorded call has left the longest window.
func (l *Limiter) idle() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.now())
	return len(l.calls) == 0
}

// sweepEvery is the number of Keyed checks between sweeps of idle limiters.
const sweepEvery = 64

// Keyed keeps one Limiter per requester with the same windows. Limiters
// with no call inside their longest window are dropped periodically, so a
// stream of one-off requesters does not grow the map forever.
type Keyed struct {
	mu       sync.Mutex
	windows  []Window
	opts     []Option
	limiters map[string]*Limiter
	checks   int
}

func NewKeyed(windows []Window, opts ...Option) *Keyed {
	return &Keyed{
		windows:  windows,
		opts:     opts,
		limiters: make(map[string]*Limiter),
	}
}

func (k *Keyed) Check(key string) (bool, time.Duration) {
	k.mu.Lock()
	defer k.mu.Unlock()
	l, ok := k.limiters[key]
	if !ok {
		l = New(k.windows, k.opts...)
		k.limiters[key] = l
	}
	allowed, wait := l.Check()

	k.checks++
	if k.checks%sweepEvery == 0 {
		k.sweepLocked()
	}
	return allowed, wait
}

func (k *Keyed) Reset(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.limiters, key)
}

// Sweep drops the limiters of requesters with no recent calls.
func (k *Keyed) Sweep() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.sweepLocked()
}

func (k *Keyed) sweepLocked() {
	for key, l := range k.limiters {
		if l.idle() {
			delete(k.limiters, key)
		}
	}
}

// Len is the number of requesters currently tracked.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.limiters)
}
