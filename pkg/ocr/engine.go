// Package ocr wraps the OCR engines the orchestrator chooses between:
// a local Tesseract, HTTP sidecars for PaddleOCR and EasyOCR, and a cloud
// vision model. Engines are external collaborators; this package only
// adapts their output to plain text and positioned tokens.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Caia-Tech/caia-extract/pkg/document"
	"github.com/rs/zerolog/log"
)

// Engine names
const (
	NameTesseract    = "tesseract"
	NamePaddleOCR    = "paddleocr"
	NameEasyOCR      = "easyocr"
	NameOpenAIVision = "openai-vision"
)

var (
	// ErrEngineUnavailable means the engine cannot run in this process
	ErrEngineUnavailable = errors.New("ocr engine unavailable")

	// ErrNoText means the engine ran but recognized nothing
	ErrNoText = errors.New("ocr engine recognized no text")
)

// EngineError reports which engine failed and during what
type EngineError struct {
	Engine string
	Op     string
	Err    error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Engine, e.Op, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// Image is one encoded page image
type Image struct {
	Data   []byte
	Format string // png, jpeg, tiff, bmp, webp
	Page   int    // zero-based page of the source document
	Width  int
	Height int
}

// Engine recognizes the text of one image
type Engine interface {
	Name() string
	Available(ctx context.Context) error
	Recognize(ctx context.Context, img Image) (string, error)
}

// LayoutEngine can also report where each word sits on the page
type LayoutEngine interface {
	Engine
	RecognizeLayout(ctx context.Context, img Image) ([]document.OCRToken, error)
}

// Capability describes one engine after probing
type Capability struct {
	Name      string        `json:"name"`
	Available bool          `json:"available"`
	Layout    bool          `json:"layout"`
	Reason    string        `json:"reason,omitempty"`
	ProbeTime time.Duration `json:"probe_time_ns"`
}

// Capabilities is computed once at startup and read concurrently after
type Capabilities map[string]Capability

// Has reports whether the named engine probed available
func (c Capabilities) Has(name string) bool {
	return c[name].Available
}

// Available lists the usable engines in name order
func (c Capabilities) Available() []string {
	var names []string
	for name, capability := range c {
		if capability.Available {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// ProbeCapabilities asks every engine whether it can run. Probes run
// sequentially; ctx bounds the total.
func ProbeCapabilities(ctx context.Context, engines ...Engine) Capabilities {
	caps := make(Capabilities, len(engines))
	for _, e := range engines {
		if e == nil {
			continue
		}
		start := time.Now()
		err := e.Available(ctx)
		_, layout := e.(LayoutEngine)
		c := Capability{
			Name:      e.Name(),
			Available: err == nil,
			Layout:    layout,
			ProbeTime: time.Since(start),
		}
		if err != nil {
			c.Reason = err.Error()
			log.Warn().Str("engine", e.Name()).Err(err).Msg("OCR engine unavailable")
		} else {
			log.Info().Str("engine", e.Name()).Bool("layout", layout).Msg("OCR engine available")
		}
		caps[e.Name()] = c
	}
	return caps
}
