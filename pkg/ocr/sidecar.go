package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/Caia-Tech/caia-extract/pkg/document"
)

// SidecarEngine talks to an OCR model served over HTTP next to this
// process. PaddleOCR and EasyOCR both run this way.
//
//	GET  {base}/health -> 200 when the model is loaded
//	POST {base}/ocr    multipart "file" (+ "lang") ->
//	     {"results":[{"box":[[x,y],[x,y],[x,y],[x,y]],"text":"...","confidence":0.97}]}
type SidecarEngine struct {
	name     string
	baseURL  string
	language string
	client   *http.Client
}

// NewSidecarEngine creates an engine for the sidecar at baseURL
func NewSidecarEngine(name, baseURL, language string, timeout time.Duration) *SidecarEngine {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &SidecarEngine{
		name:     name,
		baseURL:  strings.TrimRight(baseURL, "/"),
		language: language,
		client:   &http.Client{Timeout: timeout},
	}
}

func (s *SidecarEngine) Name() string { return s.name }

// Available checks the health endpoint
func (s *SidecarEngine) Available(ctx context.Context) error {
	if s.baseURL == "" {
		return &EngineError{Engine: s.name, Op: "probe", Err: fmt.Errorf("%w: no sidecar URL configured", ErrEngineUnavailable)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/health", nil)
	if err != nil {
		return &EngineError{Engine: s.name, Op: "probe", Err: err}
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return &EngineError{Engine: s.name, Op: "probe", Err: fmt.Errorf("%w: %v", ErrEngineUnavailable, err)}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return &EngineError{Engine: s.name, Op: "probe", Err: fmt.Errorf("%w: health returned %d", ErrEngineUnavailable, resp.StatusCode)}
	}
	return nil
}

type sidecarResult struct {
	Box        [][]float64 `json:"box"`
	Text       string      `json:"text"`
	Confidence float64     `json:"confidence"`
}

type sidecarResponse struct {
	Results []sidecarResult `json:"results"`
	Error   string          `json:"error,omitempty"`
}

func (s *SidecarEngine) call(ctx context.Context, img Image) ([]sidecarResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	format := img.Format
	if format == "" {
		format = "png"
	}
	part, err := mw.CreateFormFile("file", fmt.Sprintf("page-%d.%s", img.Page+1, format))
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, err
	}
	if s.language != "" {
		if err := mw.WriteField("lang", s.language); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/ocr", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var decoded sidecarResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := decoded.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("sidecar returned %d: %s", resp.StatusCode, msg)
	}
	return decoded.Results, nil
}

// Recognize joins the recognized lines in reading order
func (s *SidecarEngine) Recognize(ctx context.Context, img Image) (string, error) {
	results, err := s.call(ctx, img)
	if err != nil {
		return "", &EngineError{Engine: s.name, Op: "recognize", Err: err}
	}
	lines := make([]string, 0, len(results))
	for _, r := range results {
		if t := strings.TrimSpace(r.Text); t != "" {
			lines = append(lines, t)
		}
	}
	if len(lines) == 0 {
		return "", &EngineError{Engine: s.name, Op: "recognize", Err: ErrNoText}
	}
	return strings.Join(lines, "\n"), nil
}

// RecognizeLayout converts every quadrilateral into a centered token
func (s *SidecarEngine) RecognizeLayout(ctx context.Context, img Image) ([]document.OCRToken, error) {
	results, err := s.call(ctx, img)
	if err != nil {
		return nil, &EngineError{Engine: s.name, Op: "layout", Err: err}
	}
	tokens := make([]document.OCRToken, 0, len(results))
	for _, r := range results {
		text := strings.TrimSpace(r.Text)
		if text == "" || len(r.Box) == 0 {
			continue
		}
		tok, ok := boxToken(text, r.Box, r.Confidence)
		if ok {
			tokens = append(tokens, tok)
		}
	}
	return tokens, nil
}

// boxToken centers a token on the bounding rectangle of its corner points
func boxToken(text string, box [][]float64, confidence float64) (document.OCRToken, bool) {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range box {
		if len(p) < 2 {
			return document.OCRToken{}, false
		}
		minX, maxX = math.Min(minX, p[0]), math.Max(maxX, p[0])
		minY, maxY = math.Min(minY, p[1]), math.Max(maxY, p[1])
	}
	return document.OCRToken{
		Text:       text,
		CenterX:    (minX + maxX) / 2,
		CenterY:    (minY + maxY) / 2,
		Height:     maxY - minY,
		Confidence: confidence,
	}, true
}
