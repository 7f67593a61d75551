package extraction

import (
	"context"
	"regexp"
	"strings"

	"github.com/Caia-Tech/caia-extract/internal/memory"
	"github.com/Caia-Tech/caia-extract/pkg/document"
)

// Thresholds are the fuzzy scores a name must reach to be corrected
type Thresholds struct {
	Supplier   int
	Medication int
}

// DefaultThresholds matches the memory defaults
func DefaultThresholds() Thresholds {
	return Thresholds{Supplier: memory.DefaultThreshold, Medication: 70}
}

// Input is one document on its way through an extractor. Extractors read
// Text and Tokens and route names and numbers through the helpers so that
// every change the memory makes is recorded.
type Input struct {
	Text       string
	Tokens     []document.OCRToken
	Memory     *memory.Store
	Thresholds Thresholds

	corrections []document.Correction
}

// NewInput prepares a document for extraction
func NewInput(text string, tokens []document.OCRToken, store *memory.Store, th Thresholds) *Input {
	return &Input{Text: text, Tokens: tokens, Memory: store, Thresholds: th}
}

// Corrections returns the changes recorded so far
func (in *Input) Corrections() []document.Correction {
	return in.corrections
}

func (in *Input) record(field string, row int, original, corrected, reason string) {
	in.corrections = append(in.corrections, document.Correction{
		Field:     field,
		Row:       row,
		Original:  original,
		Corrected: corrected,
		Reason:    reason,
	})
}

// correctName runs value through the memory for category. row is -1 for
// field results.
func (in *Input) correctName(ctx context.Context, field string, row int, category string, threshold int, value string) (string, error) {
	if in.Memory == nil || strings.TrimSpace(value) == "" {
		return value, nil
	}
	corrected, err := in.Memory.CorrectName(ctx, category, value, threshold)
	if err != nil {
		return value, err
	}
	if corrected != strings.TrimSpace(value) {
		in.record(field, row, value, corrected, "known_name")
	}
	return corrected, nil
}

func (in *Input) supplier(ctx context.Context, field string, row int, value string) (string, error) {
	return in.correctName(ctx, field, row, memory.CategorySuppliers, in.Thresholds.Supplier, value)
}

func (in *Input) medication(ctx context.Context, field string, row int, value string) (string, error) {
	return in.correctName(ctx, field, row, memory.CategoryMedications, in.Thresholds.Medication, value)
}

func (in *Input) number(raw string) float64 {
	if in.Memory == nil {
		return memory.NormalizeNumber(raw, memory.DefaultSnapshot().DigitConfusions)
	}
	return in.Memory.NormalizeNumber(raw)
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// collapse joins lines and squeezes runs of whitespace
func collapse(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

// submatch returns group n of the first match of re in s, trimmed
func submatch(re *regexp.Regexp, s string, n int) (string, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil || n >= len(m) {
		return "", false
	}
	return strings.TrimSpace(m[n]), true
}
