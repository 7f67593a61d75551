package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Caia-Tech/caia-extract/pkg/llm"
)

// Entity types
const (
	EntityPerson       = "PER"
	EntityLocation     = "LOC"
	EntityOrganization = "ORG"
	EntityMisc         = "MISC"
)

// maxEntitiesPerType caps how many entities of one type reach a result
const maxEntitiesPerType = 10

var entityPrefixes = map[string]string{
	EntityPerson:       "Persona",
	EntityLocation:     "Lugar",
	EntityOrganization: "Organizacion",
	EntityMisc:         "Entidad",
}

// Entity is a named span of the document
type Entity struct {
	Type string `json:"type"`
	Text string `json:"text"`
	Key  string `json:"-"` // set by FilterEntities, e.g. Persona_1
}

// EntityRecognizer finds people, places and organizations in OCR text
type EntityRecognizer interface {
	Name() string
	Recognize(ctx context.Context, text string) ([]Entity, error)
}

var (
	onlyDigitsAndPunct = regexp.MustCompile(`^[0-9\s\-._]+$`)
	entityJunk         = []string{"email", "datos", "fecha", "hora", "ingreso", "dirección", "estrato", "tel", "cantidad", "municipio"}
)

// FilterEntities drops low-signal spans and numbers the rest per type.
// Rejected: shorter than three characters, more than a third special
// characters, digits only, containing a label word, single-word persons,
// single-word organizations that are not acronyms. At most ten per type.
func FilterEntities(entities []Entity) []Entity {
	counts := make(map[string]int)
	out := make([]Entity, 0, len(entities))
	for _, e := range entities {
		value := strings.TrimSpace(e.Text)
		prefix, known := entityPrefixes[e.Type]
		if !known || !usefulEntity(e.Type, value) {
			continue
		}
		if counts[e.Type] >= maxEntitiesPerType {
			continue
		}
		counts[e.Type]++
		out = append(out, Entity{
			Type: e.Type,
			Text: value,
			Key:  fmt.Sprintf("%s_%d", prefix, counts[e.Type]),
		})
	}
	return out
}

func usefulEntity(kind, value string) bool {
	n := utf8.RuneCountInString(value)
	if n < 3 {
		return false
	}
	special := 0
	for _, r := range value {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) {
			special++
		}
	}
	if float64(special) > float64(n)/3 {
		return false
	}
	if onlyDigitsAndPunct.MatchString(value) {
		return false
	}
	lower := strings.ToLower(value)
	for _, junk := range entityJunk {
		if strings.Contains(lower, junk) {
			return false
		}
	}
	words := len(strings.Fields(value))
	switch kind {
	case EntityPerson:
		return words >= 2
	case EntityOrganization:
		return words >= 2 || (n >= 3 && isUpperText(value))
	}
	return true
}

func isUpperText(s string) bool {
	cased := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			cased = true
		}
	}
	return cased
}

// HeuristicRecognizer finds entities from the way Colombian forms label
// them, with no model involved
type HeuristicRecognizer struct{}

var (
	personAfterLabel = regexp.MustCompile(`(?i)(?:paciente|nombres?|se[ñn]or(?:a)?|sr\.?|sra\.?|dr\.?|dra\.?|m[eé]dico|acompa[ñn]ante|asesor)\s*[:.]?\s*([A-ZÁÉÍÓÚÑ][A-Za-zÁÉÍÓÚÑáéíóúñ]+(?:[ \t]+[A-ZÁÉÍÓÚÑ][A-Za-zÁÉÍÓÚÑáéíóúñ]+){1,4})`)
	placeAfterLabel  = regexp.MustCompile(`(?i)(?:municipio|ciudad|departamento|sede)\s*[:.]?\s*([A-ZÁÉÍÓÚÑ][A-Za-zÁÉÍÓÚÑáéíóúñ]+(?:[ \t]+[A-ZÁÉÍÓÚÑ][A-Za-zÁÉÍÓÚÑáéíóúñ]+){0,3})`)
	organization     = regexp.MustCompile(`([A-ZÁÉÍÓÚÑ][A-ZÁÉÍÓÚÑ&.]*(?:[ \t]+[A-ZÁÉÍÓÚÑ][A-ZÁÉÍÓÚÑ&.]*){0,5}[ \t]+(?:S\.?A\.?S\.?|LTDA\.?|S\.A\.|E\.?P\.?S|I\.?P\.?S))(?:[^A-Za-z]|$)`)
	knownCities      = []string{"BOGOTA", "BOGOTÁ", "MEDELLIN", "MEDELLÍN", "CALI", "BARRANQUILLA", "CARTAGENA", "BUCARAMANGA", "POPAYAN", "POPAYÁN", "PEREIRA", "MANIZALES", "PASTO", "SANTANDER DE QUILICHAO", "CAMPAMENTO"}
	cityWords        = regexp.MustCompile(`[A-ZÁÉÍÓÚÑ]+(?:\s+DE\s+[A-ZÁÉÍÓÚÑ]+)?`)
)

func (HeuristicRecognizer) Name() string { return "heuristic" }

// Recognize never fails; it returns entities in document order per type
func (HeuristicRecognizer) Recognize(_ context.Context, text string) ([]Entity, error) {
	var out []Entity
	seen := make(map[string]bool)
	add := func(kind, v string) {
		v = collapse(v)
		if v == "" || seen[kind+"|"+v] {
			return
		}
		seen[kind+"|"+v] = true
		out = append(out, Entity{Type: kind, Text: v})
	}

	for _, m := range personAfterLabel.FindAllStringSubmatch(text, -1) {
		add(EntityPerson, m[1])
	}
	for _, m := range organization.FindAllStringSubmatch(text, -1) {
		add(EntityOrganization, m[1])
	}
	for _, m := range placeAfterLabel.FindAllStringSubmatch(text, -1) {
		add(EntityLocation, m[1])
	}
	upper := strings.ToUpper(text)
	for _, w := range cityWords.FindAllString(upper, -1) {
		if containsString(knownCities, w) {
			add(EntityLocation, w)
		}
	}
	return out, nil
}

const entityPrompt = `Eres un sistema de reconocimiento de entidades para documentos colombianos escaneados.
Devuelve SOLO un objeto JSON con la forma {"entities":[{"type":"PER|LOC|ORG|MISC","text":"..."}]}.
PER son personas, LOC lugares, ORG organizaciones y MISC otras entidades relevantes.
Copia el texto tal como aparece en el documento; no inventes entidades.`

// maxEntityInput bounds the text sent to the model
const maxEntityInput = 15000

// LLMRecognizer asks a chat model for entities
type LLMRecognizer struct {
	completer llm.Completer
	model     string
}

// NewLLMRecognizer creates a recognizer on completer. An empty model uses
// the completer's default.
func NewLLMRecognizer(completer llm.Completer, model string) *LLMRecognizer {
	return &LLMRecognizer{completer: completer, model: model}
}

func (r *LLMRecognizer) Name() string { return "llm" }

// Recognize sends the text and parses the JSON reply
func (r *LLMRecognizer) Recognize(ctx context.Context, text string) ([]Entity, error) {
	content, err := r.completer.Complete(ctx, llm.Request{
		System:      entityPrompt,
		User:        truncateRunes(text, maxEntityInput),
		JSON:        true,
		MaxTokens:   1500,
		Temperature: 0.1,
		Model:       r.model,
	})
	if err != nil {
		return nil, fmt.Errorf("entity recognition: %w", err)
	}
	raw, ok := llm.JSONObject(content)
	if !ok {
		return nil, fmt.Errorf("entity recognition: reply is not JSON")
	}
	var reply struct {
		Entities []Entity `json:"entities"`
	}
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return nil, fmt.Errorf("entity recognition: decode reply: %w", err)
	}
	for i := range reply.Entities {
		reply.Entities[i].Type = strings.ToUpper(strings.TrimSpace(reply.Entities[i].Type))
	}
	return reply.Entities, nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
