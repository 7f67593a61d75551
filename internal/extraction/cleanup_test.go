package extraction

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLLMCleaner_ParsesReply(t *testing.T) {
	fake := &fakeCompleter{reply: `{
		"texto_limpio": "FACTURA No. 123",
		"tipo_documento": "factura",
		"datos_extraidos": {"numero": "123", "valor": null, "cliente": {"nombre": "ACME"}, "items": 2},
		"confianza_global": 87,
		"observaciones_calidad": "buena"
	}`}
	c := NewLLMCleaner(fake, "gpt-4o")

	out, err := c.Clean(context.Background(), "FACTURA N0. l23")
	require.NoError(t, err)

	assert.Equal(t, "FACTURA No. 123", out.CleanText)
	assert.Equal(t, "factura", out.DocumentType)
	assert.Equal(t, 87, out.Confidence)
	assert.Equal(t, "buena", out.Notes)
	assert.Equal(t, "gpt-4o", out.Model)
	assert.Equal(t, map[string]string{"numero": "123", "cliente.nombre": "ACME", "items": "2"}, out.Fields)

	require.Len(t, fake.requests, 1)
	req := fake.requests[0]
	assert.True(t, req.JSON)
	assert.Equal(t, 4000, req.MaxTokens)
	assert.InDelta(t, 0.3, req.Temperature, 1e-9)
	assert.Contains(t, req.User, "FACTURA N0. l23")
}

func TestLLMCleaner_PlainReplyBecomesText(t *testing.T) {
	c := NewLLMCleaner(&fakeCompleter{reply: "texto corregido sin json"}, "gpt-4o")

	out, err := c.Clean(context.Background(), "texto")
	require.NoError(t, err)
	assert.Equal(t, "texto corregido sin json", out.CleanText)
	assert.Empty(t, out.Fields)
	assert.Zero(t, out.Confidence)
}

func TestLLMCleaner_CompleterError(t *testing.T) {
	c := NewLLMCleaner(&fakeCompleter{err: errors.New("quota")}, "gpt-4o")

	_, err := c.Clean(context.Background(), "texto")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota")
}
