package resilience

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"trendpulse/pkg/logger"
)

// ConcurrencyLimiter bounds in-flight calls with an atomic permit counter.
type ConcurrencyLimiter struct {
	max            int64
	current        atomic.Int64
	acquireTimeout time.Duration
	log            *logger.Logger

	acquires atomic.Int64
	timeouts atomic.Int64
}

type LimiterStats struct {
	MaxConcurrent int   `json:"max_concurrent"`
	Active        int   `json:"active"`
	Acquires      int64 `json:"acquires"`
	Timeouts      int64 `json:"timeouts"`
}

func NewConcurrencyLimiter(maxConcurrent int, acquireTimeout time.Duration) *ConcurrencyLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if acquireTimeout <= 0 {
		acquireTimeout = 5 * time.Second
	}
	return &ConcurrencyLimiter{
		max:            int64(maxConcurrent),
		acquireTimeout: acquireTimeout,
		log:            logger.GetLogger().WithField("component", "concurrency_limiter"),
	}
}

// Acquire waits for a permit until the acquire timeout or ctx ends.
// Every successful Acquire must be paired with Release.
func (l *ConcurrencyLimiter) Acquire(ctx context.Context) error {
	l.acquires.Add(1)
	if l.tryAcquire() {
		return nil
	}

	deadline := time.Now().Add(l.acquireTimeout)
	for attempt := 1; time.Now().Before(deadline); attempt++ {
		delay := time.Duration(attempt) * 7 * time.Millisecond
		if delay > 50*time.Millisecond {
			delay = 50 * time.Millisecond
		}
		select {
		case <-ctx.Done():
			l.timeouts.Add(1)
			return ctx.Err()
		case <-time.After(delay):
		}
		if l.tryAcquire() {
			return nil
		}
	}

	l.timeouts.Add(1)
	active := l.current.Load()
	l.log.WithFields(map[string]interface{}{
		"active":          active,
		"max_concurrent":  l.max,
		"acquire_timeout": l.acquireTimeout.String(),
	}).Warn("Failed to acquire concurrency permit within timeout")
	return fmt.Errorf("failed to acquire concurrency permit within %v (active: %d, max: %d)", l.acquireTimeout, active, l.max)
}

func (l *ConcurrencyLimiter) tryAcquire() bool {
	for {
		cur := l.current.Load()
		if cur >= l.max {
			return false
		}
		if l.current.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

func (l *ConcurrencyLimiter) Release() {
	for {
		cur := l.current.Load()
		if cur <= 0 {
			l.log.Warn("Attempted to release permit when none were held")
			return
		}
		if l.current.CompareAndSwap(cur, cur-1) {
			return
		}
	}
}

func (l *ConcurrencyLimiter) Stats() LimiterStats {
	return LimiterStats{
		MaxConcurrent: int(l.max),
		Active:        int(l.current.Load()),
		Acquires:      l.acquires.Load(),
		Timeouts:      l.timeouts.Load(),
	}
}
