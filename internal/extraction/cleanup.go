package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Caia-Tech/caia-extract/pkg/document"
	"github.com/Caia-Tech/caia-extract/pkg/llm"
	"github.com/rs/zerolog/log"
)

const cleanupPrompt = `Actúas como un sistema experto en procesamiento de documentos escaneados.
Recibirás texto crudo de OCR con errores de reconocimiento, palabras partidas, símbolos mezclados y tablas desordenadas.

1. Corrige los errores típicos de OCR (0/O, 1/I, rn/m), símbolos extraños y palabras partidas.
2. Reconstruye la estructura lógica: títulos, párrafos, tablas, listas y campos de formulario.
3. Clasifica el documento (factura, cédula, contrato, formulario, certificado, recibo, extracto, receta médica u otro).
4. Extrae los datos clave: nombre, documento, fecha, valor, dirección, teléfono, email, medicamento, diagnóstico.

Reglas: nunca inventes datos; lo ilegible va como null; lo ambiguo se marca "dudoso".

Responde SOLO con JSON válido:
{"texto_limpio":"...","tipo_documento":"...","datos_extraidos":{...},"confianza_global":0,"observaciones_calidad":"..."}`

// maxCleanupInput bounds the text sent to the model
const maxCleanupInput = 15000

// Cleaner post-processes raw OCR text
type Cleaner interface {
	Clean(ctx context.Context, text string) (*document.Cleanup, error)
}

// LLMCleaner asks a chat model for a cleaned, classified version of the text
type LLMCleaner struct {
	completer llm.Completer
	model     string
}

// NewLLMCleaner creates a cleaner on completer
func NewLLMCleaner(completer llm.Completer, model string) *LLMCleaner {
	return &LLMCleaner{completer: completer, model: model}
}

type cleanupReply struct {
	CleanText    string         `json:"texto_limpio"`
	DocumentType string         `json:"tipo_documento"`
	Fields       map[string]any `json:"datos_extraidos"`
	Confidence   json.Number    `json:"confianza_global"`
	Notes        string         `json:"observaciones_calidad"`
}

// Clean returns the model's reading of text. A reply that is not JSON is
// kept whole as the clean text.
func (c *LLMCleaner) Clean(ctx context.Context, text string) (*document.Cleanup, error) {
	content, err := c.completer.Complete(ctx, llm.Request{
		System:      cleanupPrompt,
		User:        "Procesa el siguiente texto OCR:\n\n" + truncateRunes(text, maxCleanupInput),
		JSON:        true,
		MaxTokens:   4000,
		Temperature: 0.3,
		Model:       c.model,
	})
	if err != nil {
		return nil, fmt.Errorf("llm cleanup: %w", err)
	}

	out := &document.Cleanup{Model: c.model}
	raw, ok := llm.JSONObject(content)
	if !ok {
		out.CleanText = content
		return out, nil
	}
	var reply cleanupReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		log.Warn().Err(err).Msg("Cleanup reply is not valid JSON, keeping it as text")
		out.CleanText = content
		return out, nil
	}

	out.CleanText = reply.CleanText
	out.DocumentType = reply.DocumentType
	out.Notes = reply.Notes
	if conf, err := reply.Confidence.Float64(); err == nil {
		out.Confidence = int(conf)
	}
	if len(reply.Fields) > 0 {
		out.Fields = make(map[string]string)
		flattenFields("", reply.Fields, out.Fields)
	}
	return out, nil
}

// flattenFields turns nested JSON into dotted string keys; nulls are skipped
func flattenFields(prefix string, in map[string]any, out map[string]string) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case nil:
		case string:
			if strings.TrimSpace(val) != "" {
				out[key] = val
			}
		case map[string]any:
			flattenFields(key, val, out)
		default:
			b, err := json.Marshal(val)
			if err == nil {
				out[key] = string(b)
			}
		}
	}
}
