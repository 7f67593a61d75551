package bootstrap

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Caia-Tech/caia-extract/internal/memory"
	"github.com/Caia-Tech/caia-extract/pkg/llm"
	"github.com/Caia-Tech/caia-extract/pkg/ocr"
	"github.com/Caia-Tech/caia-extract/pkg/pipeline"
	"github.com/Caia-Tech/caia-extract/pkg/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopCompleter struct{}

func (nopCompleter) Complete(context.Context, llm.Request) (string, error) { return "", nil }

func testConfig(t *testing.T) *pipeline.PipelineConfig {
	t.Helper()
	cfg := pipeline.DefaultPipelineConfig()
	cfg.Memory.Backend = pipeline.BackendFile
	cfg.Memory.Path = filepath.Join(t.TempDir(), "memory.json")
	cfg.DataPaths.TempDir = t.TempDir()
	return cfg
}

func TestBuild(t *testing.T) {
	cfg := testConfig(t)
	cfg.Engines.PaddleOCRURL = "http://127.0.0.1:1"

	rt, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer rt.Close(context.Background())

	assert.Equal(t, "file", rt.Memory.Backend())
	assert.NotEmpty(t, rt.Memory.Names(memory.CategorySuppliers), "seeded on first load")
	assert.FileExists(t, cfg.Memory.Path)

	caps := rt.Orchestrator.Capabilities()
	assert.Contains(t, caps, ocr.NameTesseract)
	assert.Contains(t, caps, ocr.NamePaddleOCR)
	assert.False(t, caps.Has(ocr.NamePaddleOCR), "nothing listens on the sidecar port")
	assert.NotContains(t, caps, ocr.NameOpenAIVision)
}

func TestBuild_UnknownBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Memory.Backend = "floppy"

	_, err := Build(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestEngines(t *testing.T) {
	cfg := testConfig(t)
	cfg.Engines.PaddleOCRURL = "http://paddle:8866"
	cfg.Engines.EasyOCRURL = "http://easy:8867"

	names := func(engines []ocr.Engine) []string {
		out := make([]string, 0, len(engines))
		for _, e := range engines {
			out = append(out, e.Name())
		}
		return out
	}

	assert.Equal(t,
		[]string{ocr.NameTesseract, ocr.NamePaddleOCR, ocr.NameEasyOCR},
		names(Engines(cfg, nil)))
	assert.Equal(t,
		[]string{ocr.NameTesseract, ocr.NamePaddleOCR, ocr.NameEasyOCR, ocr.NameOpenAIVision},
		names(Engines(cfg, nopCompleter{})))

	_, layout := Engines(cfg, nil)[1].(ocr.LayoutEngine)
	assert.True(t, layout, "throttling keeps sidecar layout support")
}

func TestEngineLimiter(t *testing.T) {
	cfg := testConfig(t)
	cfg.Engines.RemoteErrorLimit = 1

	limiter := EngineLimiter(cfg.Engines)
	ctx := context.Background()

	limiter.RecordError(ocr.NameEasyOCR)
	require.NoError(t, limiter.Wait(ctx, ocr.NameEasyOCR))
	limiter.RecordError(ocr.NameEasyOCR)
	assert.ErrorIs(t, limiter.Wait(ctx, ocr.NameEasyOCR), ratelimit.ErrBackoff)
	assert.NoError(t, limiter.Wait(ctx, ocr.NamePaddleOCR), "engines back off independently")
}

func TestDispatcherOptions(t *testing.T) {
	cfg := testConfig(t)
	assert.Len(t, dispatcherOptions(cfg, nil), 1)

	cfg.Engines.EnableLLMEntities = true
	assert.Len(t, dispatcherOptions(cfg, nopCompleter{}), 2)

	cfg.Processing.EnableEntities = false
	assert.Len(t, dispatcherOptions(cfg, nopCompleter{}), 2)
}
