//go:build !ocr

package ocr

import (
	"context"
	"errors"

	"github.com/Caia-Tech/caia-extract/pkg/document"
)

var errTesseractNotBuilt = errors.New("built without the ocr tag; install Tesseract (brew install tesseract, apt install tesseract-ocr libtesseract-dev) and rebuild with -tags ocr")

// TesseractEngine stands in for the Tesseract engine in builds without
// cgo Tesseract bindings. It always probes unavailable.
type TesseractEngine struct {
	language string
}

// NewTesseractEngine creates the placeholder engine
func NewTesseractEngine(language string) *TesseractEngine {
	return &TesseractEngine{language: language}
}

func (t *TesseractEngine) Name() string { return NameTesseract }

func (t *TesseractEngine) Available(context.Context) error {
	return &EngineError{Engine: NameTesseract, Op: "probe", Err: errors.Join(ErrEngineUnavailable, errTesseractNotBuilt)}
}

func (t *TesseractEngine) Recognize(ctx context.Context, _ Image) (string, error) {
	return "", t.Available(ctx)
}

func (t *TesseractEngine) RecognizeLayout(ctx context.Context, _ Image) ([]document.OCRToken, error) {
	return nil, t.Available(ctx)
}
