// Package orchestrator picks OCR engines for a document, falls back
// across them and hands the recognized text to the dispatcher.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Caia-Tech/caia-extract/internal/extraction"
	"github.com/Caia-Tech/caia-extract/internal/metrics"
	"github.com/Caia-Tech/caia-extract/internal/pipeline"
	"github.com/Caia-Tech/caia-extract/internal/processing"
	"github.com/Caia-Tech/caia-extract/internal/tables"
	"github.com/Caia-Tech/caia-extract/pkg/document"
	"github.com/Caia-Tech/caia-extract/pkg/logging"
	"github.com/Caia-Tech/caia-extract/pkg/ocr"
	"github.com/rs/zerolog/log"
)

// ErrCompareStrategy is returned by Recognize and Extract for COMPARE,
// which yields one result per engine; use Compare
var ErrCompareStrategy = errors.New("COMPARE produces one result per engine")

// Orchestrator owns the engine set and the capability descriptor probed
// at construction. It is safe for concurrent use when the dispatcher and
// engines are.
type Orchestrator struct {
	engines       map[string]ocr.Engine
	caps          ocr.Capabilities
	rasterizer    ocr.Rasterizer
	dispatcher    *extraction.Dispatcher
	cleaner       extraction.Cleaner
	textCleaner   *processing.TextCleaner
	metrics       metrics.Collector
	events        pipeline.Publisher
	engineTimeout time.Duration
	maxSide       int
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithRasterizer enables PDF input
func WithRasterizer(r ocr.Rasterizer) Option {
	return func(o *Orchestrator) { o.rasterizer = r }
}

// WithCleaner adds the language-model cleanup pass to Extract
func WithCleaner(c extraction.Cleaner) Option {
	return func(o *Orchestrator) { o.cleaner = c }
}

// WithTextCleaner runs rule-based cleaning over recognized text before
// it is dispatched
func WithTextCleaner(c *processing.TextCleaner) Option {
	return func(o *Orchestrator) { o.textCleaner = c }
}

// WithMetrics records one sample per engine call
func WithMetrics(c metrics.Collector) Option {
	return func(o *Orchestrator) { o.metrics = c }
}

// WithEvents publishes extraction and fallback events
func WithEvents(p pipeline.Publisher) Option {
	return func(o *Orchestrator) { o.events = p }
}

// WithEngineTimeout bounds each engine call; expiry counts as a failure
// and moves on to the next candidate
func WithEngineTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.engineTimeout = d }
}

// WithMaxImageSide downscales inputs that do not set their own limit
func WithMaxImageSide(n int) Option {
	return func(o *Orchestrator) { o.maxSide = n }
}

// WithCapabilities skips probing and uses caps as is
func WithCapabilities(caps ocr.Capabilities) Option {
	return func(o *Orchestrator) { o.caps = caps }
}

// New builds an orchestrator over engines and probes them once
func New(ctx context.Context, dispatcher *extraction.Dispatcher, engines []ocr.Engine, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		engines:    make(map[string]ocr.Engine, len(engines)),
		dispatcher: dispatcher,
	}
	for _, e := range engines {
		if e != nil {
			o.engines[e.Name()] = e
		}
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.caps == nil {
		o.caps = ocr.ProbeCapabilities(ctx, engines...)
	}

	log.Info().
		Strs("available", o.caps.Available()).
		Int("configured", len(o.engines)).
		Msg("Orchestrator ready")
	return o
}

// Capabilities returns the descriptor computed at startup
func (o *Orchestrator) Capabilities() ocr.Capabilities {
	out := make(ocr.Capabilities, len(o.caps))
	for k, v := range o.caps {
		out[k] = v
	}
	return out
}

// Dispatcher returns the dispatcher results are routed through
func (o *Orchestrator) Dispatcher() *extraction.Dispatcher {
	return o.dispatcher
}

// Recognition is the OCR outcome of one document
type Recognition struct {
	Text         string              `json:"text"`
	Tokens       []document.OCRToken `json:"tokens,omitempty"`
	Engine       string              `json:"engine"`
	LayoutEngine string              `json:"layout_engine,omitempty"`
	Strategy     Strategy            `json:"strategy"`
	Profile      string              `json:"profile,omitempty"` // AUTO only
	Pages        int                 `json:"pages"`
	Attempts     []Attempt           `json:"attempts"`
	Elapsed      time.Duration       `json:"elapsed_ns"`
}

// Report is the full outcome of Extract
type Report struct {
	Extraction  *document.Extraction `json:"extraction"`
	Recognition *Recognition         `json:"recognition"`
}

// plan is a resolved candidate chain
type plan struct {
	strategy   Strategy
	profile    string
	engines    []string
	layout     bool // layout-capable engines are asked for tokens
	supplement bool // tabular text without tokens asks later engines for layout
}

// Recognize runs the strategy's engines over the input until one
// succeeds. When all fail the error is an *AggregateError.
func (o *Orchestrator) Recognize(ctx context.Context, in ocr.Input, strategy Strategy) (*Recognition, error) {
	if strategy == StrategyCompare {
		return nil, ErrCompareStrategy
	}
	start := time.Now()

	pages, err := o.pages(ctx, in)
	if err != nil {
		return nil, err
	}

	var rec *Recognition
	if strategy == StrategyAuto {
		rec, err = o.auto(ctx, pages)
	} else {
		engines, ok := chains[strategy]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
		}
		rec, err = o.runPlan(ctx, plan{
			strategy:   strategy,
			engines:    engines,
			supplement: strategy == StrategyBalanced,
		}, pages, nil)
	}
	if err != nil {
		return nil, err
	}
	rec.Pages = len(pages)
	rec.Elapsed = time.Since(start)
	return rec, nil
}

// Extract recognizes the input, dispatches the text and, when a cleaner
// is configured, attaches its cleanup. Cleanup failures are logged only.
func (o *Orchestrator) Extract(ctx context.Context, in ocr.Input, strategy Strategy) (*Report, error) {
	logger := logging.GetLogger("orchestrator")

	rec, err := o.Recognize(ctx, in, strategy)
	if err != nil {
		o.publish(pipeline.NewEvent(pipeline.EventExtractionFailed, nil).
			WithError(err).
			With("filename", in.Filename).
			With("strategy", string(strategy)))
		return nil, err
	}

	rec.Text, err = o.cleanText(ctx, in.Filename, rec.Text)
	if err != nil {
		return nil, err
	}

	ext, err := o.dispatcher.Dispatch(ctx, rec.Text, rec.Tokens)
	if err != nil {
		o.publish(pipeline.NewEvent(pipeline.EventExtractionFailed, nil).
			WithError(err).
			With("filename", in.Filename).
			With("engine", rec.Engine))
		return nil, err
	}
	ext.Filename = in.Filename
	ext.Engine = rec.Engine

	if o.cleaner != nil {
		cleanup, err := o.cleaner.Clean(ctx, rec.Text)
		if err != nil {
			logger.Warn().Err(err).Str("filename", in.Filename).Msg("Text cleanup failed")
		} else {
			ext.Cleanup = cleanup
		}
	}

	logger.Info().
		Str("filename", in.Filename).
		Str("engine", rec.Engine).
		Str("strategy", string(rec.Strategy)).
		Str("document_type", ext.DocumentType).
		Dur("elapsed", rec.Elapsed).
		Msg("Extraction completed")

	o.publish(pipeline.NewEvent(pipeline.EventDocumentExtracted, ext).
		With("strategy", string(rec.Strategy)).
		With("attempts", len(rec.Attempts)))
	return &Report{Extraction: ext, Recognition: rec}, nil
}

// cleanText runs the rule-based cleaner, when configured, over recognized
// text before it is dispatched
func (o *Orchestrator) cleanText(ctx context.Context, filename, text string) (string, error) {
	if o.textCleaner == nil {
		return text, nil
	}
	cleaned, result, err := o.textCleaner.Clean(ctx, text, processing.SourceOCR)
	if err != nil {
		return text, err
	}
	if len(result.Warnings) > 0 {
		log.Warn().Strs("warnings", result.Warnings).Str("filename", filename).Msg("Text cleaning rules failed")
	}
	return cleaned, nil
}

func (o *Orchestrator) pages(ctx context.Context, in ocr.Input) ([]ocr.Image, error) {
	if in.MaxSide == 0 {
		in.MaxSide = o.maxSide
	}
	return ocr.Pages(ctx, in, o.rasterizer)
}

// probeResult is recognition output that a later chain can reuse
type probeResult struct {
	engine  string
	text    string
	attempt Attempt
}

func (o *Orchestrator) runPlan(ctx context.Context, p plan, pages []ocr.Image, reuse *probeResult) (*Recognition, error) {
	var attempts []Attempt

	for i, name := range p.engines {
		var (
			text    string
			tokens  []document.OCRToken
			attempt Attempt
		)
		if i == 0 && reuse != nil && reuse.engine == name && !p.layout {
			text, attempt = reuse.text, reuse.attempt
		} else {
			text, tokens, attempt = o.run(ctx, name, pages, p.layout)
		}
		attempts = append(attempts, attempt)

		if attempt.Err != nil {
			logger := logging.GetEngineLogger(name, string(p.strategy))
			logger.Warn().
				Err(attempt.Err).
				Msg("OCR engine failed, trying next candidate")
			if i+1 < len(p.engines) {
				o.publish(pipeline.NewEvent(pipeline.EventEngineFallback, nil).
					WithError(attempt.Err).
					With("from", name).
					With("to", p.engines[i+1]))
			}
			continue
		}

		rec := &Recognition{
			Text:     text,
			Tokens:   tokens,
			Engine:   name,
			Strategy: p.strategy,
			Profile:  p.profile,
			Attempts: attempts,
		}
		if len(tokens) > 0 {
			rec.LayoutEngine = name
		}
		if p.supplement && len(tokens) == 0 && tables.LooksTabular(text) {
			o.supplementLayout(ctx, p.engines[i+1:], pages, rec)
		}
		return rec, nil
	}

	return nil, &AggregateError{Strategy: p.strategy, Attempts: attempts}
}

// supplementLayout asks a later layout-capable engine for tokens of a
// tabular-looking document. Failure leaves the recognition text-only.
func (o *Orchestrator) supplementLayout(ctx context.Context, candidates []string, pages []ocr.Image, rec *Recognition) {
	for _, name := range candidates {
		if _, ok := o.engines[name].(ocr.LayoutEngine); !ok || !o.caps.Has(name) {
			continue
		}
		tokens, attempt := o.layout(ctx, name, pages)
		rec.Attempts = append(rec.Attempts, attempt)
		if attempt.Err != nil {
			log.Warn().Str("engine", name).Err(attempt.Err).Msg("Layout supplement failed")
			continue
		}
		if len(tokens) > 0 {
			rec.Tokens = tokens
			rec.LayoutEngine = name
			return
		}
	}
}

// run recognizes every page with one engine. With layout set and a
// layout-capable engine the text is rebuilt from the tokens.
func (o *Orchestrator) run(ctx context.Context, name string, pages []ocr.Image, layout bool) (string, []document.OCRToken, Attempt) {
	eng, err := o.usable(name)
	if err != nil {
		return "", nil, Attempt{Engine: name, Err: err}
	}

	if _, ok := eng.(ocr.LayoutEngine); layout && ok {
		tokens, attempt := o.layout(ctx, name, pages)
		if attempt.Err != nil {
			return "", nil, attempt
		}
		return strings.Join(tables.Lines(tokens), "\n"), tokens, attempt
	}

	start := time.Now()
	ctx, cancel := o.engineContext(ctx)
	defer cancel()

	texts := make([]string, 0, len(pages))
	for _, page := range pages {
		text, err := eng.Recognize(ctx, page)
		if errors.Is(err, ocr.ErrNoText) {
			continue
		}
		if err != nil {
			return "", nil, o.finish(name, "recognize", start, err)
		}
		if text = strings.TrimSpace(text); text != "" {
			texts = append(texts, text)
		}
	}
	if len(texts) == 0 {
		return "", nil, o.finish(name, "recognize", start, &ocr.EngineError{Engine: name, Op: "recognize", Err: ocr.ErrNoText})
	}
	return strings.Join(texts, "\n\n"), nil, o.finish(name, "recognize", start, nil)
}

// layout collects positioned tokens from every page. Later pages are
// shifted down by the height of the pages above them so rows never merge
// across a page break.
func (o *Orchestrator) layout(ctx context.Context, name string, pages []ocr.Image) ([]document.OCRToken, Attempt) {
	eng, err := o.usable(name)
	if err != nil {
		return nil, Attempt{Engine: name, Err: err}
	}
	le, ok := eng.(ocr.LayoutEngine)
	if !ok {
		return nil, Attempt{Engine: name, Err: &ocr.EngineError{Engine: name, Op: "layout", Err: fmt.Errorf("%w: no layout support", ocr.ErrEngineUnavailable)}}
	}

	start := time.Now()
	ctx, cancel := o.engineContext(ctx)
	defer cancel()

	var all []document.OCRToken
	var offset float64
	for _, page := range pages {
		tokens, err := le.RecognizeLayout(ctx, page)
		if err != nil && !errors.Is(err, ocr.ErrNoText) {
			return nil, o.finish(name, "layout", start, err)
		}
		bottom := float64(page.Height)
		for _, t := range tokens {
			t.CenterY += offset
			all = append(all, t)
			bottom = max(bottom, t.CenterY-offset+t.Height)
		}
		offset += bottom
	}
	if len(all) == 0 {
		return nil, o.finish(name, "layout", start, &ocr.EngineError{Engine: name, Op: "layout", Err: ocr.ErrNoText})
	}
	return all, o.finish(name, "layout", start, nil)
}

// usable returns the engine when it is configured and probed available
func (o *Orchestrator) usable(name string) (ocr.Engine, error) {
	eng, ok := o.engines[name]
	if !ok {
		return nil, &ocr.EngineError{Engine: name, Op: "select", Err: fmt.Errorf("%w: not configured", ocr.ErrEngineUnavailable)}
	}
	if !o.caps.Has(name) {
		reason := o.caps[name].Reason
		if reason == "" {
			reason = "not probed"
		}
		return nil, &ocr.EngineError{Engine: name, Op: "select", Err: fmt.Errorf("%w: %s", ocr.ErrEngineUnavailable, reason)}
	}
	return eng, nil
}

func (o *Orchestrator) engineContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.engineTimeout > 0 {
		return context.WithTimeout(ctx, o.engineTimeout)
	}
	return context.WithCancel(ctx)
}

func (o *Orchestrator) finish(name, operation string, start time.Time, err error) Attempt {
	sample := metrics.Since(operation, name, start, err)
	if o.metrics != nil {
		o.metrics.Record(sample)
	}
	return Attempt{Engine: name, Elapsed: sample.Duration, Err: err}
}

func (o *Orchestrator) publish(event *pipeline.Event) {
	if o.events == nil {
		return
	}
	if err := o.events.Publish(event); err != nil {
		log.Debug().Err(err).Str("event_type", string(event.Type)).Msg("Event not published")
	}
}
