// Package ratelimit spaces out calls to remote OCR engines and backs off
// an engine that keeps failing.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrBackoff is returned by Wait while an engine is backing off
var ErrBackoff = errors.New("engine backing off after repeated errors")

// Limits configures one engine
type Limits struct {
	MinInterval    time.Duration // between two calls; zero disables spacing
	ErrorThreshold int           // consecutive errors before backing off
	BackoffStep    time.Duration // backoff grows by this per error past the threshold
	MaxBackoff     time.Duration
}

// DefaultLimits returns the limits used for engines without their own
func DefaultLimits() Limits {
	return Limits{
		ErrorThreshold: 3,
		BackoffStep:    30 * time.Second,
		MaxBackoff:     5 * time.Minute,
	}
}

// EngineLimiter tracks call spacing and error backoff per engine
type EngineLimiter struct {
	mu       sync.Mutex
	defaults Limits
	limiters map[string]*engineLimiter
	now      func() time.Time
}

type engineLimiter struct {
	limits       Limits
	nextSlot     time.Time
	backoffUntil time.Time
	requestCount int64
	errorCount   int64
}

// NewEngineLimiter creates a limiter; engines without an entry in limits
// use defaults
func NewEngineLimiter(defaults Limits, limits map[string]Limits) *EngineLimiter {
	r := &EngineLimiter{
		defaults: defaults,
		limiters: make(map[string]*engineLimiter, len(limits)),
		now:      time.Now,
	}
	for name, l := range limits {
		r.limiters[name] = &engineLimiter{limits: l}
	}
	return r
}

func (r *EngineLimiter) get(engine string) *engineLimiter {
	limiter, exists := r.limiters[engine]
	if !exists {
		limiter = &engineLimiter{limits: r.defaults}
		r.limiters[engine] = limiter
	}
	return limiter
}

// Wait blocks until the engine may be called. An engine in backoff is
// refused at once so the caller can fall back to another engine.
func (r *EngineLimiter) Wait(ctx context.Context, engine string) error {
	r.mu.Lock()
	limiter := r.get(engine)
	now := r.now()

	if now.Before(limiter.backoffUntil) {
		until := limiter.backoffUntil
		r.mu.Unlock()
		return fmt.Errorf("%w: %s until %s", ErrBackoff, engine, until.Format(time.RFC3339))
	}

	// Reserve the next slot so concurrent callers queue up behind each other
	slot := now
	if limiter.nextSlot.After(now) {
		slot = limiter.nextSlot
	}
	limiter.nextSlot = slot.Add(limiter.limits.MinInterval)
	limiter.requestCount++
	r.mu.Unlock()

	wait := slot.Sub(now)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RecordError counts a failed call and starts backing off past the threshold
func (r *EngineLimiter) RecordError(engine string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	limiter := r.get(engine)
	limiter.errorCount++

	l := limiter.limits
	if l.ErrorThreshold <= 0 || limiter.errorCount <= int64(l.ErrorThreshold) {
		return
	}
	backoff := time.Duration(limiter.errorCount-int64(l.ErrorThreshold)) * l.BackoffStep
	if l.MaxBackoff > 0 && backoff > l.MaxBackoff {
		backoff = l.MaxBackoff
	}
	limiter.backoffUntil = r.now().Add(backoff)
}

// RecordSuccess resets the error count of an engine
func (r *EngineLimiter) RecordSuccess(engine string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	limiter := r.get(engine)
	limiter.errorCount = 0
	limiter.backoffUntil = time.Time{}
}

// EngineStats contains statistics for one engine
type EngineStats struct {
	RequestCount int64     `json:"request_count"`
	ErrorCount   int64     `json:"error_count"`
	InBackoff    bool      `json:"in_backoff"`
	BackoffUntil time.Time `json:"backoff_until,omitempty"`
}

// GetStats returns statistics for every engine seen so far
func (r *EngineLimiter) GetStats() map[string]EngineStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	stats := make(map[string]EngineStats, len(r.limiters))
	for name, limiter := range r.limiters {
		stats[name] = EngineStats{
			RequestCount: limiter.requestCount,
			ErrorCount:   limiter.errorCount,
			InBackoff:    now.Before(limiter.backoffUntil),
			BackoffUntil: limiter.backoffUntil,
		}
	}
	return stats
}
