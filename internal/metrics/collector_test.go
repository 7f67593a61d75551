package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleCollector_Summary(t *testing.T) {
	c := NewSimpleCollector(0)
	c.Record(Sample{Operation: "recognize", Backend: "tesseract", Duration: 10 * time.Millisecond, Success: true})
	c.Record(Sample{Operation: "recognize", Backend: "tesseract", Duration: 30 * time.Millisecond, Success: false, Error: errors.New("boom")})
	c.Record(Sample{Operation: "save", Backend: "file", Duration: time.Millisecond, Success: true})

	summary := c.Summary()
	assert.Equal(t, 3, summary.TotalOperations)

	stats := summary.ByBackend["tesseract"]["recognize"]
	require.NotNil(t, stats)
	assert.Equal(t, 2, stats.Count)
	assert.Equal(t, 1, stats.FailureCount)
	assert.Equal(t, 10*time.Millisecond, stats.MinDuration)
	assert.Equal(t, 30*time.Millisecond, stats.MaxDuration)
	assert.Equal(t, 20*time.Millisecond, stats.AvgDuration)
	assert.InDelta(t, 50.0, stats.SuccessRate(), 1e-9)
	assert.InDelta(t, 20.0, stats.AvgDurationMs(), 1e-9)
}

func TestSimpleCollector_Limit(t *testing.T) {
	c := NewSimpleCollector(2)
	for _, op := range []string{"a", "b", "c"} {
		c.Record(Sample{Operation: op, Backend: "x"})
	}
	samples := c.Samples()
	require.Len(t, samples, 2)
	assert.Equal(t, "b", samples[0].Operation)
	assert.Equal(t, "c", samples[1].Operation)

	c.Clear()
	assert.Empty(t, c.Samples())
}

func TestSimpleCollector_Concurrent(t *testing.T) {
	c := NewSimpleCollector(0)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Record(Since("save", "file", time.Now(), nil))
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, c.Summary().TotalOperations)
}
