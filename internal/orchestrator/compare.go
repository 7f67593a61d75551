package orchestrator

import (
	"context"
	"sort"
	"time"

	"github.com/Caia-Tech/caia-extract/pkg/document"
	"github.com/Caia-Tech/caia-extract/pkg/ocr"
	"github.com/rs/zerolog/log"
)

// EngineResult is one engine's outcome in a comparison
type EngineResult struct {
	Engine     string               `json:"engine"`
	Extraction *document.Extraction `json:"extraction,omitempty"`
	Elapsed    time.Duration        `json:"elapsed_ns"`
	Error      string               `json:"error,omitempty"`
}

// Comparison maps engine name to its result. It is meant for people
// judging engines, not for automated consumers.
type Comparison struct {
	Results map[string]EngineResult `json:"results"`
	Pages   int                     `json:"pages"`
	Elapsed time.Duration           `json:"elapsed_ns"`
}

// Engines returns the compared engine names in order
func (c *Comparison) Engines() []string {
	names := make([]string, 0, len(c.Results))
	for name := range c.Results {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Compare runs every available engine over the input, one after the
// other, and dispatches each text. It fails only when no engine produced
// text.
func (o *Orchestrator) Compare(ctx context.Context, in ocr.Input) (*Comparison, error) {
	start := time.Now()
	pages, err := o.pages(ctx, in)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(o.engines))
	for name := range o.engines {
		names = append(names, name)
	}
	sort.Strings(names)

	out := &Comparison{Results: make(map[string]EngineResult), Pages: len(pages)}
	var attempts []Attempt
	for _, name := range names {
		_, layout := o.engines[name].(ocr.LayoutEngine)
		text, tokens, attempt := o.run(ctx, name, pages, layout)
		attempts = append(attempts, attempt)
		if attempt.Err != nil {
			if o.caps.Has(name) {
				out.Results[name] = EngineResult{Engine: name, Elapsed: attempt.Elapsed, Error: attempt.Err.Error()}
			}
			continue
		}

		dispatchStart := time.Now()
		var ext *document.Extraction
		text, err = o.cleanText(ctx, in.Filename, text)
		if err == nil {
			ext, err = o.dispatcher.Dispatch(ctx, text, tokens)
		}
		elapsed := attempt.Elapsed + time.Since(dispatchStart)
		if err != nil {
			out.Results[name] = EngineResult{Engine: name, Elapsed: elapsed, Error: err.Error()}
			continue
		}
		ext.Engine = name
		ext.Filename = in.Filename
		out.Results[name] = EngineResult{Engine: name, Extraction: ext, Elapsed: elapsed}
	}

	succeeded := 0
	for _, r := range out.Results {
		if r.Extraction != nil {
			succeeded++
		}
	}
	if succeeded == 0 {
		return nil, &AggregateError{Strategy: StrategyCompare, Attempts: attempts}
	}

	out.Elapsed = time.Since(start)
	log.Info().
		Str("filename", in.Filename).
		Int("engines", len(out.Results)).
		Int("succeeded", succeeded).
		Dur("elapsed", out.Elapsed).
		Msg("Engine comparison completed")
	return out, nil
}
