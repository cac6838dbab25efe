package store

import (
	"sync"
	"time"
)

// Breaker is a lightweight in-memory circuit breaker for report writes. It
// opens after threshold failures within window and stays open for
// openDuration. A nil *Breaker is always closed.
type Breaker struct {
	mu           sync.Mutex
	failures     []time.Time
	threshold    int
	window       time.Duration
	openUntil    time.Time
	openDuration time.Duration
	now          func() time.Time
}

// NewBreaker creates a configured breaker.
func NewBreaker(threshold int, window, openDuration time.Duration) *Breaker {
	return &Breaker{
		threshold:    max(threshold, 1),
		window:       window,
		openDuration: openDuration,
		failures:     make([]time.Time, 0, threshold),
		now:          time.Now,
	}
}

// RecordFailure records a failed write and opens the breaker once the
// threshold is reached.
func (b *Breaker) RecordFailure() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	cutoff := now.Add(-b.window)
	i := 0
	for ; i < len(b.failures); i++ {
		if b.failures[i].After(cutoff) {
			break
		}
	}
	b.failures = append(b.failures[:0], b.failures[i:]...)
	b.failures = append(b.failures, now)

	if len(b.failures) >= b.threshold {
		b.openUntil = now.Add(b.openDuration)
	}
}

// RecordSuccess clears the failure history.
func (b *Breaker) RecordSuccess() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = b.failures[:0]
	b.openUntil = time.Time{}
}

// IsOpen reports whether writes are currently refused.
func (b *Breaker) IsOpen() bool {
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.now().Before(b.openUntil)
}

func (b *Breaker) record(err error) {
	if err != nil {
		b.RecordFailure()
		return
	}
	b.RecordSuccess()
}
