//go:build ocr

package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/Caia-Tech/caia-extract/pkg/document"
	"github.com/otiai10/gosseract/v2"
)

// TesseractEngine runs the linked Tesseract library
type TesseractEngine struct {
	languages []string
	psm       gosseract.PageSegMode
}

// NewTesseractEngine creates an engine for a Tesseract language spec such
// as "spa" or "spa+eng"
func NewTesseractEngine(language string) *TesseractEngine {
	if language == "" {
		language = "spa"
	}
	return &TesseractEngine{
		languages: strings.Split(language, "+"),
		psm:       gosseract.PSM_AUTO,
	}
}

func (t *TesseractEngine) Name() string { return NameTesseract }

// Available reports whether the library answers with a version
func (t *TesseractEngine) Available(ctx context.Context) error {
	if gosseract.Version() == "" {
		return &EngineError{Engine: NameTesseract, Op: "probe", Err: ErrEngineUnavailable}
	}
	return nil
}

func (t *TesseractEngine) client(img Image) (*gosseract.Client, error) {
	client := gosseract.NewClient()
	if err := client.SetLanguage(t.languages...); err != nil {
		client.Close()
		return nil, fmt.Errorf("set language %v: %w", t.languages, err)
	}
	if err := client.SetPageSegMode(t.psm); err != nil {
		client.Close()
		return nil, fmt.Errorf("set page segmentation mode: %w", err)
	}
	if err := client.SetImageFromBytes(img.Data); err != nil {
		client.Close()
		return nil, fmt.Errorf("set image: %w", err)
	}
	return client, nil
}

// Recognize returns the page text with normalized line endings
func (t *TesseractEngine) Recognize(ctx context.Context, img Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &EngineError{Engine: NameTesseract, Op: "recognize", Err: err}
	}
	client, err := t.client(img)
	if err != nil {
		return "", &EngineError{Engine: NameTesseract, Op: "recognize", Err: err}
	}
	defer client.Close()

	text, err := client.Text()
	if err != nil {
		return "", &EngineError{Engine: NameTesseract, Op: "recognize", Err: err}
	}
	text = strings.NewReplacer("\r\n", "\n", "\r", "\n").Replace(strings.TrimSpace(text))
	if text == "" {
		return "", &EngineError{Engine: NameTesseract, Op: "recognize", Err: ErrNoText}
	}
	return text, nil
}

// RecognizeLayout returns one token per recognized word
func (t *TesseractEngine) RecognizeLayout(ctx context.Context, img Image) ([]document.OCRToken, error) {
	if err := ctx.Err(); err != nil {
		return nil, &EngineError{Engine: NameTesseract, Op: "layout", Err: err}
	}
	client, err := t.client(img)
	if err != nil {
		return nil, &EngineError{Engine: NameTesseract, Op: "layout", Err: err}
	}
	defer client.Close()

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, &EngineError{Engine: NameTesseract, Op: "layout", Err: err}
	}
	tokens := make([]document.OCRToken, 0, len(boxes))
	for _, b := range boxes {
		word := strings.TrimSpace(b.Word)
		if word == "" {
			continue
		}
		tokens = append(tokens, document.OCRToken{
			Text:       word,
			CenterX:    float64(b.Box.Min.X+b.Box.Max.X) / 2,
			CenterY:    float64(b.Box.Min.Y+b.Box.Max.Y) / 2,
			Height:     float64(b.Box.Dy()),
			Confidence: b.Confidence / 100,
		})
	}
	return tokens, nil
}
