// Package bootstrap assembles the extraction runtime from configuration.
// The server and the CLI share it.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/Caia-Tech/caia-extract/internal/extraction"
	"github.com/Caia-Tech/caia-extract/internal/memory"
	"github.com/Caia-Tech/caia-extract/internal/metrics"
	"github.com/Caia-Tech/caia-extract/internal/orchestrator"
	"github.com/Caia-Tech/caia-extract/internal/pipeline"
	"github.com/Caia-Tech/caia-extract/internal/processing"
	"github.com/Caia-Tech/caia-extract/pkg/llm"
	"github.com/Caia-Tech/caia-extract/pkg/logging"
	"github.com/Caia-Tech/caia-extract/pkg/ocr"
	cfgpkg "github.com/Caia-Tech/caia-extract/pkg/pipeline"
	"github.com/Caia-Tech/caia-extract/pkg/ratelimit"
)

// metricsLimit is how many samples the collector keeps
const metricsLimit = 10000

// Runtime is everything an extraction needs
type Runtime struct {
	Config       *cfgpkg.PipelineConfig
	Orchestrator *orchestrator.Orchestrator
	Memory       *memory.Store
	Metrics      *metrics.SimpleCollector

	persister memory.Persister
}

// Build connects the memory backend, loads the memory, configures the
// engines and probes them. events may be nil.
func Build(ctx context.Context, cfg *cfgpkg.PipelineConfig, events pipeline.Publisher) (*Runtime, error) {
	logger := logging.GetLogger("bootstrap")
	collector := metrics.NewSimpleCollector(metricsLimit)

	persister, err := memory.NewPersister(ctx, cfg.Memory, collector)
	if err != nil {
		return nil, fmt.Errorf("failed to open memory backend %s: %w", cfg.Memory.Backend, err)
	}
	store := memory.New(persister)
	if err := store.Load(ctx); err != nil {
		closePersister(ctx, persister)
		return nil, fmt.Errorf("failed to load memory: %w", err)
	}

	var completer llm.Completer
	if cfg.Engines.OpenAIAPIKey != "" {
		client, err := llm.NewOpenAIClient(cfg.Engines.OpenAIAPIKey, cfg.Engines.LLMModel)
		if err != nil {
			closePersister(ctx, persister)
			return nil, fmt.Errorf("failed to create language model client: %w", err)
		}
		completer = client
	}

	dispatcher := extraction.NewDispatcher(store, dispatcherOptions(cfg, completer)...)

	opts := []orchestrator.Option{
		orchestrator.WithRasterizer(&ocr.PDFToPPM{TempDir: cfg.DataPaths.TempDir}),
		orchestrator.WithMetrics(collector),
		orchestrator.WithEngineTimeout(cfg.Engines.RequestTimeout),
		orchestrator.WithMaxImageSide(cfg.Processing.MaxImageSide),
	}
	if events != nil {
		opts = append(opts, orchestrator.WithEvents(events))
	}
	if cfg.Processing.CleanOCRText {
		opts = append(opts, orchestrator.WithTextCleaner(processing.NewTextCleaner()))
	}
	if completer != nil && cfg.Engines.EnableLLMCleanup {
		opts = append(opts, orchestrator.WithCleaner(extraction.NewLLMCleaner(completer, cfg.Engines.LLMModel)))
	}

	orch := orchestrator.New(ctx, dispatcher, Engines(cfg, completer), opts...)

	logger.Info().
		Str("memory_backend", store.Backend()).
		Strs("engines", orch.Capabilities().Available()).
		Bool("llm", completer != nil).
		Msg("Extraction runtime ready")

	return &Runtime{
		Config:       cfg,
		Orchestrator: orch,
		Memory:       store,
		Metrics:      collector,
		persister:    persister,
	}, nil
}

// Engines builds every engine the configuration enables. Tesseract is
// always configured; it probes unavailable in builds without the ocr tag.
// Remote engines go through a shared limiter.
func Engines(cfg *cfgpkg.PipelineConfig, completer llm.Completer) []ocr.Engine {
	limiter := EngineLimiter(cfg.Engines)

	engines := []ocr.Engine{ocr.NewTesseractEngine(cfg.Engines.TesseractLanguage)}
	if cfg.Engines.PaddleOCRURL != "" {
		sidecar := ocr.NewSidecarEngine(ocr.NamePaddleOCR, cfg.Engines.PaddleOCRURL, "es", cfg.Engines.RequestTimeout)
		engines = append(engines, ocr.Throttle(sidecar, limiter))
	}
	if cfg.Engines.EasyOCRURL != "" {
		sidecar := ocr.NewSidecarEngine(ocr.NameEasyOCR, cfg.Engines.EasyOCRURL, "es", cfg.Engines.RequestTimeout)
		engines = append(engines, ocr.Throttle(sidecar, limiter))
	}
	if completer != nil {
		engines = append(engines, ocr.Throttle(ocr.NewVisionEngine(completer, cfg.Engines.VisionModel), limiter))
	}
	return engines
}

// EngineLimiter builds the limiter for remote engines. The vision engine
// gets its own call spacing since it is billed per request.
func EngineLimiter(cfg *cfgpkg.EnginesConfig) *ratelimit.EngineLimiter {
	remote := ratelimit.Limits{
		MinInterval:    cfg.RemoteMinInterval,
		ErrorThreshold: cfg.RemoteErrorLimit,
		BackoffStep:    cfg.RemoteBackoffStep,
		MaxBackoff:     cfg.RemoteMaxBackoff,
	}
	vision := remote
	vision.MinInterval = cfg.VisionMinInterval

	return ratelimit.NewEngineLimiter(remote, map[string]ratelimit.Limits{
		ocr.NameOpenAIVision: vision,
	})
}

func dispatcherOptions(cfg *cfgpkg.PipelineConfig, completer llm.Completer) []extraction.Option {
	opts := []extraction.Option{
		extraction.WithThresholds(extraction.Thresholds{
			Supplier:   cfg.Processing.NameThreshold,
			Medication: cfg.Processing.MedicationThreshold,
		}),
	}
	switch {
	case !cfg.Processing.EnableEntities:
		opts = append(opts, extraction.WithRecognizer(nil))
	case completer != nil && cfg.Engines.EnableLLMEntities:
		opts = append(opts, extraction.WithRecognizer(extraction.NewLLMRecognizer(completer, cfg.Engines.LLMModel)))
	}
	return opts
}

// Close releases the memory backend connection
func (r *Runtime) Close(ctx context.Context) {
	closePersister(ctx, r.persister)
}

func closePersister(ctx context.Context, p memory.Persister) {
	var err error
	switch c := p.(type) {
	case interface{ Close(context.Context) error }:
		err = c.Close(ctx)
	case interface{ Close() error }:
		err = c.Close()
	}
	if err != nil {
		logger := logging.GetMemoryLogger("close", p.Name())
		logger.Warn().Err(err).Msg("Failed to close memory backend")
	}
}
