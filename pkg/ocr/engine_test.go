package ocr

import (
	"context"
	"errors"
	"testing"

	"github.com/Caia-Tech/caia-extract/pkg/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEngine struct {
	name string
	err  error
}

func (s stubEngine) Name() string { return s.name }
func (s stubEngine) Available(context.Context) error { return s.err }
func (s stubEngine) Recognize(context.Context, Image) (string, error) { return "texto", nil }

type stubLayoutEngine struct{ stubEngine }

func (s stubLayoutEngine) RecognizeLayout(context.Context, Image) ([]document.OCRToken, error) {
	return nil, nil
}

func TestProbeCapabilities(t *testing.T) {
	caps := ProbeCapabilities(context.Background(),
		stubEngine{name: NameOpenAIVision},
		stubLayoutEngine{stubEngine{name: NamePaddleOCR}},
		stubEngine{name: NameEasyOCR, err: ErrEngineUnavailable},
		nil,
	)

	require.Len(t, caps, 3)
	assert.True(t, caps.Has(NameOpenAIVision))
	assert.False(t, caps[NameOpenAIVision].Layout)
	assert.True(t, caps[NamePaddleOCR].Layout)
	assert.False(t, caps.Has(NameEasyOCR))
	assert.Equal(t, ErrEngineUnavailable.Error(), caps[NameEasyOCR].Reason)
	assert.False(t, caps.Has("missing"))
	assert.Equal(t, []string{NameOpenAIVision, NamePaddleOCR}, caps.Available())
}

func TestEngineError_Unwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := error(&EngineError{Engine: NamePaddleOCR, Op: "recognize", Err: cause})

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "paddleocr recognize: connection refused", err.Error())

	var engineErr *EngineError
	require.ErrorAs(t, err, &engineErr)
	assert.Equal(t, NamePaddleOCR, engineErr.Engine)
}

func TestTesseractEngine_Name(t *testing.T) {
	assert.Equal(t, NameTesseract, NewTesseractEngine("spa").Name())
}
