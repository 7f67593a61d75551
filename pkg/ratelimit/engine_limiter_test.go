package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(limits map[string]Limits) (*EngineLimiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewEngineLimiter(DefaultLimits(), limits)
	l.now = clock.Now
	return l, clock
}

func TestEngineLimiter_SpacesCalls(t *testing.T) {
	limiter := NewEngineLimiter(DefaultLimits(), map[string]Limits{
		"openai-vision": {MinInterval: 200 * time.Millisecond},
	})
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, limiter.Wait(ctx, "openai-vision"))
	assert.Less(t, time.Since(start), 100*time.Millisecond, "first call is immediate")

	start = time.Now()
	require.NoError(t, limiter.Wait(ctx, "openai-vision"))
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestEngineLimiter_NoSpacingByDefault(t *testing.T) {
	limiter := NewEngineLimiter(DefaultLimits(), nil)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, limiter.Wait(ctx, "paddleocr"))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, int64(5), limiter.GetStats()["paddleocr"].RequestCount)
}

func TestEngineLimiter_BackoffAfterRepeatedErrors(t *testing.T) {
	limiter, clock := newTestLimiter(nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		limiter.RecordError("easyocr")
	}
	require.NoError(t, limiter.Wait(ctx, "easyocr"), "threshold not passed yet")

	limiter.RecordError("easyocr")
	err := limiter.Wait(ctx, "easyocr")
	assert.ErrorIs(t, err, ErrBackoff)

	stats := limiter.GetStats()["easyocr"]
	assert.Equal(t, int64(4), stats.ErrorCount)
	assert.True(t, stats.InBackoff)

	clock.Advance(31 * time.Second)
	assert.NoError(t, limiter.Wait(ctx, "easyocr"))
}

func TestEngineLimiter_BackoffIsCapped(t *testing.T) {
	limiter, clock := newTestLimiter(nil)

	for i := 0; i < 50; i++ {
		limiter.RecordError("paddleocr")
	}
	stats := limiter.GetStats()["paddleocr"]
	assert.Equal(t, clock.Now().Add(5*time.Minute), stats.BackoffUntil)
}

func TestEngineLimiter_SuccessResets(t *testing.T) {
	limiter, _ := newTestLimiter(nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		limiter.RecordError("tesseract")
	}
	require.ErrorIs(t, limiter.Wait(ctx, "tesseract"), ErrBackoff)

	limiter.RecordSuccess("tesseract")
	assert.NoError(t, limiter.Wait(ctx, "tesseract"))
	assert.Zero(t, limiter.GetStats()["tesseract"].ErrorCount)
}

func TestEngineLimiter_ContextCancellation(t *testing.T) {
	limiter := NewEngineLimiter(DefaultLimits(), map[string]Limits{
		"openai-vision": {MinInterval: time.Minute},
	})
	require.NoError(t, limiter.Wait(context.Background(), "openai-vision"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- limiter.Wait(ctx, "openai-vision")
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after cancellation")
	}
}
