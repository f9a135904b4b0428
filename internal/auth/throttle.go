// Copyright (c) 2026 1move Community. All rights reserved.

package auth

import (
	"context"
	"sync"
	"time"
)

/*
MemoryThrottle tracks failed login attempts per identifier inside a sliding
window. Once the number of failures within the window reaches the configured
maximum, further attempts are rejected until old failures age out or a
successful login clears the record.

Suitable for single-instance deployments and tests; multi-instance
deployments should use RedisThrottle so all replicas share one counter.
*/
type MemoryThrottle struct {
	mu       sync.Mutex
	failures map[string][]time.Time

	window      time.Duration
	maxAttempts int

	// now is injectable for deterministic window tests.
	now func() time.Time
}

/*
NewMemoryThrottle creates an in-memory login throttle.

Parameters:
  - window: how far back failures count against the identifier.
  - maxAttempts: failures within the window before attempts are rejected.
*/
func NewMemoryThrottle(window time.Duration, maxAttempts int) *MemoryThrottle {
	return &MemoryThrottle{
		failures:    make(map[string][]time.Time),
		window:      window,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

// WithClock sets the throttle's time source. Intended for tests only.
func (throttle *MemoryThrottle) WithClock(now func() time.Time) *MemoryThrottle {
	throttle.now = now
	return throttle
}

// Allowed reports whether the identifier may attempt a login right now.
func (throttle *MemoryThrottle) Allowed(_ context.Context, identifier string) bool {
	throttle.mu.Lock()
	defer throttle.mu.Unlock()

	return len(throttle.pruneLocked(identifier)) < throttle.maxAttempts
}

// RecordFailure adds a failed attempt timestamp for the identifier.
func (throttle *MemoryThrottle) RecordFailure(_ context.Context, identifier string) {
	throttle.mu.Lock()
	defer throttle.mu.Unlock()

	recent := throttle.pruneLocked(identifier)
	throttle.failures[identifier] = append(recent, throttle.now())
}

// RecordSuccess clears the failure record for the identifier.
func (throttle *MemoryThrottle) RecordSuccess(_ context.Context, identifier string) {
	throttle.mu.Lock()
	defer throttle.mu.Unlock()

	delete(throttle.failures, identifier)
}

// pruneLocked drops failures older than the window and stores the survivors.
// Callers must hold the mutex.
func (throttle *MemoryThrottle) pruneLocked(identifier string) []time.Time {
	cutoff := throttle.now().Add(-throttle.window)

	recent := throttle.failures[identifier][:0]
	for _, failedAt := range throttle.failures[identifier] {
		if failedAt.After(cutoff) {
			recent = append(recent, failedAt)
		}
	}

	if len(recent) == 0 {
		delete(throttle.failures, identifier)
		return nil
	}

	throttle.failures[identifier] = recent
	return recent
}
