package api

import "github.com/gofiber/fiber/v2"

// SetupRoutes registers every endpoint on app
func SetupRoutes(app *fiber.App, h *Handlers, m *MetricsHandler) {
	app.Get("/health", h.Health)

	v1 := app.Group("/api/v1")

	v1.Get("/capabilities", h.Capabilities)

	// Extraction
	v1.Post("/extract", h.Extract)
	v1.Post("/compare", h.Compare)

	// Correction memory
	v1.Get("/memory", h.GetMemory)
	v1.Post("/memory/reset", h.ResetMemory)

	// Batches
	v1.Post("/batches", h.StartBatch)
	v1.Get("/batches/:id", h.GetBatch)

	if m != nil {
		v1.Get("/metrics", m.GetMetrics)
		v1.Delete("/metrics", m.ClearMetrics)
	}
}
