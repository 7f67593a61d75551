package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strconv"
	"time"

	"github.com/Caia-Tech/caia-extract/internal/memory"
	"github.com/Caia-Tech/caia-extract/internal/orchestrator"
	"github.com/Caia-Tech/caia-extract/internal/pipeline"
	"github.com/Caia-Tech/caia-extract/pkg/logging"
	"github.com/Caia-Tech/caia-extract/pkg/ocr"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"go.temporal.io/sdk/client"
)

// Version is reported by the health endpoint
const Version = "0.1.0"

// DefaultMaxFileSize limits a single uploaded document
const DefaultMaxFileSize = 50 * 1024 * 1024 // 50MB

// Config holds handler settings
type Config struct {
	TaskQueue       string
	MaxFileSize     int64
	DefaultStrategy orchestrator.Strategy
}

// Handlers contains the HTTP handlers for the API
type Handlers struct {
	orchestrator *orchestrator.Orchestrator
	memory       *memory.Store
	events       pipeline.Publisher
	temporal     client.Client // nil disables batches
	config       Config
}

// NewHandlers creates a new handlers instance. temporal and events may
// be nil.
func NewHandlers(orch *orchestrator.Orchestrator, store *memory.Store, temporal client.Client, events pipeline.Publisher, config Config) *Handlers {
	if config.MaxFileSize <= 0 {
		config.MaxFileSize = DefaultMaxFileSize
	}
	if config.DefaultStrategy == "" {
		config.DefaultStrategy = orchestrator.StrategyAuto
	}
	if config.TaskQueue == "" {
		config.TaskQueue = "caia-extract"
	}
	return &Handlers{
		orchestrator: orch,
		memory:       store,
		events:       events,
		temporal:     temporal,
		config:       config,
	}
}

// Health returns the service health status
func (h *Handlers) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"service":   "caia-extract",
		"version":   Version,
		"engines":   h.orchestrator.Capabilities().Available(),
		"memory":    h.memory.Backend(),
		"batches":   h.temporal != nil,
		"timestamp": time.Now().UTC(),
	})
}

// Capabilities lists every configured OCR engine and whether it probed available
func (h *Handlers) Capabilities(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"engines":    h.orchestrator.Capabilities(),
		"strategies": orchestrator.Strategies(),
		"extractors": h.orchestrator.Dispatcher().Registry().Names(),
	})
}

// Extract recognizes and extracts one uploaded document. strategy=COMPARE
// answers with a comparison instead.
func (h *Handlers) Extract(c *fiber.Ctx) error {
	in, strategy, err := h.parseDocument(c)
	if err != nil {
		return badRequest(c, err)
	}
	if strategy == orchestrator.StrategyCompare {
		return h.compare(c, in)
	}

	report, err := h.orchestrator.Extract(c.UserContext(), in, strategy)
	if err != nil {
		return extractionFailed(c, in.Filename, err)
	}
	return c.JSON(report)
}

// Compare runs every available engine over one uploaded document
func (h *Handlers) Compare(c *fiber.Ctx) error {
	in, _, err := h.parseDocument(c)
	if err != nil {
		return badRequest(c, err)
	}
	return h.compare(c, in)
}

func (h *Handlers) compare(c *fiber.Ctx, in ocr.Input) error {
	cmp, err := h.orchestrator.Compare(c.UserContext(), in)
	if err != nil {
		return extractionFailed(c, in.Filename, err)
	}
	return c.JSON(cmp)
}

// GetMemory returns the correction memory
func (h *Handlers) GetMemory(c *fiber.Ctx) error {
	snap := h.memory.Snapshot()
	counts := make(map[string]int, len(snap.Names))
	for _, category := range snap.Categories() {
		counts[category] = len(snap.Names[category])
	}
	return c.JSON(fiber.Map{
		"backend": h.memory.Backend(),
		"counts":  counts,
		"memory":  snap,
	})
}

// ResetMemory empties the correction memory
func (h *Handlers) ResetMemory(c *fiber.Ctx) error {
	if err := h.memory.Reset(c.UserContext()); err != nil {
		log.Error().Err(err).Str("backend", h.memory.Backend()).Msg("Failed to reset memory")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Failed to reset memory",
			"details": err.Error(),
		})
	}

	if h.events != nil {
		event := pipeline.NewEvent(pipeline.EventMemoryReset, nil).With("backend", h.memory.Backend())
		if err := h.events.Publish(event); err != nil {
			log.Warn().Err(err).Msg("Failed to publish memory reset event")
		}
	}

	return c.JSON(fiber.Map{
		"message": "Memory reset",
		"backend": h.memory.Backend(),
	})
}

// parseDocument reads the multipart file and the strategy, max_pages and
// dpi form values
func (h *Handlers) parseDocument(c *fiber.Ctx) (ocr.Input, orchestrator.Strategy, error) {
	file, err := c.FormFile("file")
	if err != nil {
		return ocr.Input{}, "", fmt.Errorf("no file uploaded: %w", err)
	}
	content, err := h.readFile(file)
	if err != nil {
		return ocr.Input{}, "", err
	}

	strategy, err := h.parseStrategy(c.FormValue("strategy"))
	if err != nil {
		return ocr.Input{}, "", err
	}

	in := ocr.Input{Data: content, Filename: file.Filename}
	if in.MaxPages, err = formInt(c, "max_pages"); err != nil {
		return ocr.Input{}, "", err
	}
	if in.DPI, err = formInt(c, "dpi"); err != nil {
		return ocr.Input{}, "", err
	}
	return in, strategy, nil
}

func (h *Handlers) parseStrategy(value string) (orchestrator.Strategy, error) {
	if value == "" {
		return h.config.DefaultStrategy, nil
	}
	return orchestrator.ParseStrategy(value)
}

func (h *Handlers) readFile(file *multipart.FileHeader) ([]byte, error) {
	if file.Size > h.config.MaxFileSize {
		return nil, fmt.Errorf("file too large: %d bytes, maximum is %d bytes", file.Size, h.config.MaxFileSize)
	}
	if file.Size == 0 {
		return nil, fmt.Errorf("file %q is empty", file.Filename)
	}

	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	content, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded file: %w", err)
	}
	return content, nil
}

func formInt(c *fiber.Ctx, key string) (int, error) {
	value := c.FormValue(key)
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", key, value)
	}
	return n, nil
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":   "Invalid request",
		"details": err.Error(),
	})
}

func extractionFailed(c *fiber.Ctx, filename string, err error) error {
	status := errorStatus(err)
	logger := logging.GetLogger("api")
	logger.Warn().
		Err(err).
		Str("filename", filename).
		Int("status", status).
		Msg("Extraction request failed")

	body := fiber.Map{
		"error":   "Extraction failed",
		"details": err.Error(),
	}
	var agg *orchestrator.AggregateError
	if errors.As(err, &agg) {
		body["strategy"] = agg.Strategy
		body["attempts"] = agg.Attempts
	}
	return c.Status(status).JSON(body)
}

// errorStatus maps orchestrator errors to HTTP statuses
func errorStatus(err error) int {
	var agg *orchestrator.AggregateError
	switch {
	case errors.Is(err, orchestrator.ErrUnknownStrategy), errors.Is(err, orchestrator.ErrCompareStrategy):
		return fiber.StatusBadRequest
	case errors.As(err, &agg):
		if allUnavailable(agg) {
			return fiber.StatusServiceUnavailable
		}
		return fiber.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fiber.StatusGatewayTimeout
	default:
		// undecodable images, malformed PDFs
		return fiber.StatusUnprocessableEntity
	}
}

func allUnavailable(agg *orchestrator.AggregateError) bool {
	for _, a := range agg.Attempts {
		if !errors.Is(a.Err, ocr.ErrEngineUnavailable) {
			return false
		}
	}
	return true
}
