package api

import (
	"github.com/Caia-Tech/caia-extract/internal/metrics"
	"github.com/Caia-Tech/caia-extract/internal/pipeline"
	"github.com/gofiber/fiber/v2"
)

// MetricsHandler exposes engine and memory timings and event bus counters
type MetricsHandler struct {
	collector *metrics.SimpleCollector
	bus       *pipeline.EventBus
}

// NewMetricsHandler creates a new metrics handler; bus may be nil
func NewMetricsHandler(collector *metrics.SimpleCollector, bus *pipeline.EventBus) *MetricsHandler {
	return &MetricsHandler{
		collector: collector,
		bus:       bus,
	}
}

// GetMetrics returns the aggregated operation metrics
func (h *MetricsHandler) GetMetrics(c *fiber.Ctx) error {
	response := fiber.Map{
		"metrics_summary":  h.collector.Summary(),
		"total_operations": len(h.collector.Samples()),
	}
	if h.bus != nil {
		response["events"] = h.bus.GetStats()
	}
	return c.JSON(response)
}

// ClearMetrics clears all collected metrics
func (h *MetricsHandler) ClearMetrics(c *fiber.Ctx) error {
	h.collector.Clear()
	return c.JSON(fiber.Map{
		"message": "Metrics cleared successfully",
	})
}
