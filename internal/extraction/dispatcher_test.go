package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Caia-Tech/caia-extract/pkg/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_Classify(t *testing.T) {
	d := NewDispatcher(nil)

	assert.Equal(t, TypeHerinco, d.Classify("HERINCO\nENTREGA"))
	assert.Equal(t, TypeAging, d.Classify("Informe por proveedor"))
	assert.Equal(t, TypeGeneric, d.Classify("Oficio sin formato"))
}

func TestDispatcher_AgingReport(t *testing.T) {
	d := NewDispatcher(testStore(t))

	ext, err := d.Dispatch(context.Background(), agingText, nil)
	require.NoError(t, err)

	assert.Equal(t, TypeAging, ext.DocumentType)
	assert.NotEmpty(t, ext.ID)
	assert.Equal(t, agingText, ext.Text)
	require.Equal(t, document.KindTabular, ext.Result.Kind())
	assert.Equal(t, 2, ext.Result.Len())
	assert.Len(t, ext.Corrections, 2)
	assert.Empty(t, ext.Auxiliary)
}

func TestDispatcher_EmptySpecializedFallsThrough(t *testing.T) {
	d := NewDispatcher(nil)

	ext, err := d.Dispatch(context.Background(), "HERINCO ENTREGA\nFecha: 03/04/2024", nil)
	require.NoError(t, err)

	assert.Equal(t, TypeGeneric, ext.DocumentType)
	f, ok := ext.Result.(*document.Fields)
	require.True(t, ok)
	assert.True(t, f.Has("Fecha_1"))
}

func TestDispatcher_CustomRegistry(t *testing.T) {
	registry := Registry{{
		Name:     "custom",
		Detector: Detector{All: []string{"ORDEN"}},
		Kind:     document.KindFields,
		Schema:   []string{"ORDEN"},
		Extract: func(_ context.Context, in *Input) (document.Result, error) {
			f := document.NewFields()
			f.Set("ORDEN", "42")
			return f, nil
		},
	}}
	d := NewDispatcher(nil, WithRegistry(registry))

	ext, err := d.Dispatch(context.Background(), "ORDEN 42", nil)
	require.NoError(t, err)
	assert.Equal(t, "custom", ext.DocumentType)
	assert.Equal(t, "custom", d.Classify("orden"))
}

func TestDispatcher_SchemaViolationIsAnError(t *testing.T) {
	registry := Registry{{
		Name:     "broken",
		Detector: Detector{All: []string{"ORDEN"}},
		Kind:     document.KindTabular,
		Schema:   []string{"A"},
		Extract: func(context.Context, *Input) (document.Result, error) {
			f := document.NewFields()
			f.Set("B", "1")
			return f, nil
		},
	}}
	_, err := NewDispatcher(nil, WithRegistry(registry)).Dispatch(context.Background(), "ORDEN", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestDispatcher_ExtractorErrorIsWrapped(t *testing.T) {
	boom := errors.New("boom")
	registry := Registry{{
		Name:     "failing",
		Detector: Detector{All: []string{"ORDEN"}},
		Kind:     document.KindFields,
		Extract: func(context.Context, *Input) (document.Result, error) {
			return nil, boom
		},
	}}
	_, err := NewDispatcher(nil, WithRegistry(registry)).Dispatch(context.Background(), "ORDEN", nil)
	assert.ErrorIs(t, err, boom)
}

func TestDispatcher_RecognizerOption(t *testing.T) {
	fake := &fakeCompleter{reply: `{"entities":[{"type":"ORG","text":"Clinica Los Andes"}]}`}
	d := NewDispatcher(nil, WithRecognizer(NewLLMRecognizer(fake, "")))

	ext, err := d.Dispatch(context.Background(), "Atendido en la clinica", nil)
	require.NoError(t, err)

	f := ext.Result.(*document.Fields)
	v, _ := f.Get("IA_Organizacion_1")
	assert.Equal(t, "Clinica Los Andes", v)
}

func TestDispatcher_ExtractionJSON(t *testing.T) {
	ext, err := NewDispatcher(nil).Dispatch(context.Background(), "NOMBRE RUT\nACME SAS\nNOMBRE COMERCIAL\nACME\n", nil)
	require.NoError(t, err)

	data, err := json.Marshal(ext)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, TypeTradeNames, decoded["document_type"])
	assert.Equal(t, "tabular", decoded["kind"])
	result, ok := decoded["result"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{"NOMBRE RUT", "NOMBRE COMERCIAL"}, result["columns"])
}
