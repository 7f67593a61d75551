// Package metrics collects timing and outcome samples for OCR engine
// attempts and memory persistence.
package metrics

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Sample is one measured operation
type Sample struct {
	Operation string        `json:"operation"` // recognize, layout, save, load...
	Backend   string        `json:"backend"`   // engine or persister name
	Duration  time.Duration `json:"duration_ns"`
	Success   bool          `json:"success"`
	Error     error         `json:"-"`
}

// Collector receives operation samples
type Collector interface {
	Record(sample Sample)
}

// SimpleCollector keeps samples in memory
type SimpleCollector struct {
	samples []Sample
	limit   int
	mutex   sync.RWMutex
}

// NewSimpleCollector creates a collector that keeps at most limit samples,
// dropping the oldest. A limit of zero keeps everything.
func NewSimpleCollector(limit int) *SimpleCollector {
	return &SimpleCollector{
		samples: make([]Sample, 0),
		limit:   limit,
	}
}

// Record stores a sample
func (s *SimpleCollector) Record(sample Sample) {
	s.mutex.Lock()
	s.samples = append(s.samples, sample)
	if s.limit > 0 && len(s.samples) > s.limit {
		s.samples = append(s.samples[:0:0], s.samples[len(s.samples)-s.limit:]...)
	}
	s.mutex.Unlock()

	event := log.Debug().
		Str("operation", sample.Operation).
		Str("backend", sample.Backend).
		Dur("duration", sample.Duration).
		Bool("success", sample.Success)
	if sample.Error != nil {
		event = event.Err(sample.Error)
	}
	event.Msg("Operation metric recorded")
}

// Samples returns a copy of the collected samples
func (s *SimpleCollector) Samples() []Sample {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	result := make([]Sample, len(s.samples))
	copy(result, s.samples)
	return result
}

// Summary groups the samples by backend and operation
func (s *SimpleCollector) Summary() Summary {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	byBackend := make(map[string]map[string]*OperationStats)
	for _, sample := range s.samples {
		if byBackend[sample.Backend] == nil {
			byBackend[sample.Backend] = make(map[string]*OperationStats)
		}
		stats := byBackend[sample.Backend][sample.Operation]
		if stats == nil {
			stats = &OperationStats{}
			byBackend[sample.Backend][sample.Operation] = stats
		}
		stats.add(sample)
	}

	return Summary{ByBackend: byBackend, TotalOperations: len(s.samples)}
}

// Clear drops all samples
func (s *SimpleCollector) Clear() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.samples = make([]Sample, 0)
}

// Summary is the aggregated view served by the metrics endpoint
type Summary struct {
	ByBackend       map[string]map[string]*OperationStats `json:"by_backend"`
	TotalOperations int                                   `json:"total_operations"`
}

// OperationStats holds statistics for a specific operation type
type OperationStats struct {
	Count         int           `json:"count"`
	SuccessCount  int           `json:"success_count"`
	FailureCount  int           `json:"failure_count"`
	TotalDuration time.Duration `json:"total_duration_ns"`
	MinDuration   time.Duration `json:"min_duration_ns"`
	MaxDuration   time.Duration `json:"max_duration_ns"`
	AvgDuration   time.Duration `json:"avg_duration_ns"`
}

func (o *OperationStats) add(sample Sample) {
	o.Count++
	o.TotalDuration += sample.Duration
	if sample.Success {
		o.SuccessCount++
	} else {
		o.FailureCount++
	}
	if o.Count == 1 || sample.Duration < o.MinDuration {
		o.MinDuration = sample.Duration
	}
	if sample.Duration > o.MaxDuration {
		o.MaxDuration = sample.Duration
	}
	o.AvgDuration = o.TotalDuration / time.Duration(o.Count)
}

// SuccessRate returns the success rate as a percentage
func (o *OperationStats) SuccessRate() float64 {
	if o.Count == 0 {
		return 0.0
	}
	return float64(o.SuccessCount) / float64(o.Count) * 100.0
}

// AvgDurationMs returns the average duration in milliseconds
func (o *OperationStats) AvgDurationMs() float64 {
	return float64(o.AvgDuration) / float64(time.Millisecond)
}

// Since builds a sample for an operation that started at start
func Since(operation, backend string, start time.Time, err error) Sample {
	return Sample{
		Operation: operation,
		Backend:   backend,
		Duration:  time.Since(start),
		Success:   err == nil,
		Error:     err,
	}
}
