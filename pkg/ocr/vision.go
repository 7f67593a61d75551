package ocr

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/Caia-Tech/caia-extract/pkg/llm"
)

const visionPrompt = `Eres un motor OCR. Transcribe todo el texto visible de la imagen, respetando el orden de lectura y los saltos de línea.
Mantén las tablas fila por fila con las columnas separadas por dos espacios.
No corrijas, no resumas y no agregues comentarios; si no hay texto responde vacío.`

// VisionEngine reads page images with a multimodal chat model
type VisionEngine struct {
	completer llm.Completer
	model     string
}

// NewVisionEngine creates a cloud OCR engine. A nil completer probes
// unavailable.
func NewVisionEngine(completer llm.Completer, model string) *VisionEngine {
	return &VisionEngine{completer: completer, model: model}
}

func (v *VisionEngine) Name() string { return NameOpenAIVision }

func (v *VisionEngine) Available(context.Context) error {
	if v.completer == nil {
		return &EngineError{Engine: NameOpenAIVision, Op: "probe", Err: fmt.Errorf("%w: no API key configured", ErrEngineUnavailable)}
	}
	return nil
}

// Recognize sends the image inline as a data URL
func (v *VisionEngine) Recognize(ctx context.Context, img Image) (string, error) {
	if err := v.Available(ctx); err != nil {
		return "", err
	}
	format := img.Format
	if format == "" {
		format = "png"
	}
	url := "data:image/" + format + ";base64," + base64.StdEncoding.EncodeToString(img.Data)

	content, err := v.completer.Complete(ctx, llm.Request{
		System:      visionPrompt,
		User:        "Transcribe el texto de esta imagen.",
		ImageURL:    url,
		MaxTokens:   4096,
		Temperature: 0,
		Model:       v.model,
	})
	if err != nil {
		return "", &EngineError{Engine: NameOpenAIVision, Op: "recognize", Err: err}
	}
	text := stripFences(content)
	if text == "" {
		return "", &EngineError{Engine: NameOpenAIVision, Op: "recognize", Err: ErrNoText}
	}
	return text, nil
}

// stripFences removes a surrounding markdown code block some models add
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = ""
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}
