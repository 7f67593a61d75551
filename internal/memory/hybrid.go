package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Caia-Tech/caia-extract/internal/metrics"
	"github.com/rs/zerolog/log"
)

// HybridPersister writes to a primary persister and falls back to a
// secondary one when the primary fails. Successful primary writes are
// mirrored to the secondary so a later fallback load is current.
type HybridPersister struct {
	primary   Persister
	secondary Persister
	timeout   time.Duration
	collector metrics.Collector
}

// NewHybridPersister creates a hybrid persister. A zero timeout leaves the
// caller's deadline in charge; collector may be nil.
func NewHybridPersister(primary, secondary Persister, timeout time.Duration, collector metrics.Collector) *HybridPersister {
	return &HybridPersister{
		primary:   primary,
		secondary: secondary,
		timeout:   timeout,
		collector: collector,
	}
}

func (h *HybridPersister) Name() string {
	return fmt.Sprintf("hybrid(%s,%s)", h.primary.Name(), h.secondary.Name())
}

func (h *HybridPersister) Load(ctx context.Context) (*Snapshot, error) {
	start := time.Now()

	snap, err := h.withTimeout(ctx, func(ctx context.Context) (*Snapshot, error) {
		return h.primary.Load(ctx)
	})
	if err == nil {
		h.record("load", start, nil, "primary_success")
		return snap, nil
	}

	if !errors.Is(err, ErrNotFound) {
		log.Warn().
			Err(err).
			Str("primary", h.primary.Name()).
			Msg("Primary memory backend failed, trying fallback")
	}

	snap, fallbackErr := h.withTimeout(ctx, func(ctx context.Context) (*Snapshot, error) {
		return h.secondary.Load(ctx)
	})
	switch {
	case fallbackErr == nil:
		h.record("load", start, nil, "fallback_success")
		return snap, nil
	case errors.Is(err, ErrNotFound) && errors.Is(fallbackErr, ErrNotFound):
		h.record("load", start, nil, "not_found")
		return nil, ErrNotFound
	default:
		h.record("load", start, fallbackErr, "both_failed")
		return nil, fmt.Errorf("both memory backends failed - %s: %v, %s: %w",
			h.primary.Name(), err, h.secondary.Name(), fallbackErr)
	}
}

func (h *HybridPersister) Save(ctx context.Context, snap *Snapshot) error {
	start := time.Now()

	err := h.save(ctx, h.primary, snap)
	if err == nil {
		h.record("save", start, nil, "primary_success")
		if mirrorErr := h.save(ctx, h.secondary, snap); mirrorErr != nil {
			log.Warn().
				Err(mirrorErr).
				Str("secondary", h.secondary.Name()).
				Msg("Failed to mirror memory to secondary backend")
		}
		return nil
	}

	log.Warn().
		Err(err).
		Str("primary", h.primary.Name()).
		Msg("Primary memory backend failed, trying fallback")

	if fallbackErr := h.save(ctx, h.secondary, snap); fallbackErr != nil {
		h.record("save", start, fallbackErr, "both_failed")
		return fmt.Errorf("both memory backends failed - %s: %v, %s: %w",
			h.primary.Name(), err, h.secondary.Name(), fallbackErr)
	}
	h.record("save", start, nil, "fallback_success")
	return nil
}

func (h *HybridPersister) save(ctx context.Context, p Persister, snap *Snapshot) error {
	_, err := h.withTimeout(ctx, func(ctx context.Context) (*Snapshot, error) {
		return nil, p.Save(ctx, snap)
	})
	return err
}

func (h *HybridPersister) withTimeout(ctx context.Context, fn func(context.Context) (*Snapshot, error)) (*Snapshot, error) {
	if h.timeout <= 0 {
		return fn(ctx)
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	return fn(timeoutCtx)
}

func (h *HybridPersister) record(operation string, start time.Time, err error, result string) {
	if h.collector == nil {
		return
	}
	h.collector.Record(metrics.Sample{
		Operation: operation,
		Backend:   "hybrid_" + result,
		Duration:  time.Since(start),
		Success:   err == nil,
		Error:     err,
	})
}
