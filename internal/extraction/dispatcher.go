package extraction

import (
	"context"
	"fmt"
	"time"

	"github.com/Caia-Tech/caia-extract/internal/memory"
	"github.com/Caia-Tech/caia-extract/pkg/document"
	"github.com/Caia-Tech/caia-extract/pkg/logging"
	"github.com/google/uuid"
)

// Dispatcher routes OCR text to the extractor that understands it
type Dispatcher struct {
	registry   Registry
	memory     *memory.Store
	generic    *GenericExtractor
	thresholds Thresholds
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithRegistry replaces the built-in document shapes
func WithRegistry(r Registry) Option {
	return func(d *Dispatcher) { d.registry = r }
}

// WithRecognizer sets the entity recognizer used by the generic extractor
func WithRecognizer(r EntityRecognizer) Option {
	return func(d *Dispatcher) { d.generic = NewGenericExtractor(r) }
}

// WithThresholds sets the name correction thresholds
func WithThresholds(th Thresholds) Option {
	return func(d *Dispatcher) { d.thresholds = th }
}

// NewDispatcher creates a dispatcher on store. A nil store disables
// correction; the heuristic recognizer is used unless another is given.
func NewDispatcher(store *memory.Store, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry:   DefaultRegistry(),
		memory:     store,
		generic:    NewGenericExtractor(HeuristicRecognizer{}),
		thresholds: DefaultThresholds(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Registry returns the document shapes in priority order
func (d *Dispatcher) Registry() Registry {
	return d.registry
}

// Memory returns the correction memory, possibly nil
func (d *Dispatcher) Memory() *memory.Store {
	return d.memory
}

// Classify returns the type tag Dispatch would start with
func (d *Dispatcher) Classify(text string) string {
	if def, ok := d.registry.Match(text); ok {
		return def.Name
	}
	return TypeGeneric
}

// Dispatch extracts a result from text. tokens may be nil; extractors that
// can use word positions prefer them. When the selected extractor finds
// none of its data the generic extractor takes over.
func (d *Dispatcher) Dispatch(ctx context.Context, text string, tokens []document.OCRToken) (*document.Extraction, error) {
	logger := logging.GetLogger("dispatcher")
	start := time.Now()

	out := &document.Extraction{
		ID:        uuid.New().String(),
		Text:      text,
		CreatedAt: start.UTC(),
	}

	if def, ok := d.registry.Match(text); ok {
		in := NewInput(text, tokens, d.memory, d.thresholds)
		res, err := def.Extract(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", def.Name, err)
		}
		if res != nil && res.Len() > 0 {
			if err := def.Conforms(res); err != nil {
				return nil, fmt.Errorf("extract %s: %w", def.Name, err)
			}
			out.DocumentType = def.Name
			out.Result = res
			out.Corrections = in.Corrections()
			out.Elapsed = time.Since(start)
			logger.Info().
				Str("document_type", def.Name).
				Str("kind", string(res.Kind())).
				Int("size", res.Len()).
				Int("corrections", len(out.Corrections)).
				Msg("Document extracted")
			return out, nil
		}
		logger.Debug().Str("document_type", def.Name).Msg("Specialized extractor found nothing, using generic extraction")
	}

	in := NewInput(text, tokens, d.memory, d.thresholds)
	fields, auxiliary, err := d.generic.Extract(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", TypeGeneric, err)
	}
	out.DocumentType = TypeGeneric
	out.Result = fields
	out.Auxiliary = auxiliary
	out.Corrections = in.Corrections()
	out.Elapsed = time.Since(start)

	logger.Info().
		Str("document_type", TypeGeneric).
		Int("fields", fields.Len()).
		Int("tables", len(auxiliary)).
		Int("corrections", len(out.Corrections)).
		Msg("Document extracted")
	return out, nil
}
