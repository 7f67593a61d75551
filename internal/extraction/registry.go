// Package extraction classifies OCR text and turns it into structured
// results, routing known document shapes to specialized extractors and
// everything else to the generic extractor.
package extraction

import (
	"context"
	"fmt"
	"strings"

	"github.com/Caia-Tech/caia-extract/pkg/document"
)

// Document type tags
const (
	TypeHerinco    = "herinco_delivery"
	TypeVision     = "vision_prescription"
	TypeSales      = "sales_budget"
	TypeTradeNames = "ruc_trade_names"
	TypeAging      = "aging_report"
	TypeGeneric    = "generic"
)

// Detector is a case-insensitive keyword containment test. Every keyword
// in All must be present, and at least MinAny of Any (1 when MinAny is
// zero and Any is not empty).
type Detector struct {
	All    []string `json:"all,omitempty"`
	Any    []string `json:"any,omitempty"`
	MinAny int      `json:"min_any,omitempty"`
}

// Matches reports whether text satisfies the detector
func (d Detector) Matches(text string) bool {
	return d.matchesUpper(strings.ToUpper(text))
}

func (d Detector) matchesUpper(upper string) bool {
	if len(d.All) == 0 && len(d.Any) == 0 {
		return false
	}
	for _, kw := range d.All {
		if !strings.Contains(upper, strings.ToUpper(kw)) {
			return false
		}
	}
	if len(d.Any) == 0 {
		return true
	}
	need := d.MinAny
	if need <= 0 {
		need = 1
	}
	found := 0
	for _, kw := range d.Any {
		if strings.Contains(upper, strings.ToUpper(kw)) {
			found++
			if found >= need {
				return true
			}
		}
	}
	return false
}

// ExtractFunc produces a result for one document. A nil or empty result
// means the document did not carry the data the extractor expects.
type ExtractFunc func(ctx context.Context, in *Input) (document.Result, error)

// Definition binds a detector to an extractor and the schema it produces
type Definition struct {
	Name     string
	Detector Detector
	Kind     document.Kind
	Schema   []string
	Extract  ExtractFunc
}

// Conforms checks that res matches the declared kind and schema
func (d Definition) Conforms(res document.Result) error {
	if res.Kind() != d.Kind {
		return fmt.Errorf("%s produced a %s result, declared %s", d.Name, res.Kind(), d.Kind)
	}
	allowed := make(map[string]bool, len(d.Schema))
	for _, col := range d.Schema {
		allowed[col] = true
	}
	switch r := res.(type) {
	case *document.Fields:
		for _, k := range r.Keys() {
			if !allowed[k] {
				return fmt.Errorf("%s produced unknown field %q", d.Name, k)
			}
		}
	case *document.Tabular:
		if len(r.Columns) != len(d.Schema) {
			return fmt.Errorf("%s produced %d columns, schema has %d", d.Name, len(r.Columns), len(d.Schema))
		}
		for i, col := range r.Columns {
			if col != d.Schema[i] {
				return fmt.Errorf("%s column %d is %q, schema has %q", d.Name, i, col, d.Schema[i])
			}
		}
	}
	return nil
}

// Registry is an ordered list of definitions. Order is significant: the
// first matching detector wins.
type Registry []Definition

// Match returns the first definition whose detector accepts text
func (r Registry) Match(text string) (Definition, bool) {
	upper := strings.ToUpper(text)
	for _, def := range r {
		if def.Detector.matchesUpper(upper) {
			return def, true
		}
	}
	return Definition{}, false
}

// Names lists the registered document types in priority order
func (r Registry) Names() []string {
	names := make([]string, len(r))
	for i, def := range r {
		names[i] = def.Name
	}
	return names
}

// DefaultRegistry returns the built-in document shapes, most specific first
func DefaultRegistry() Registry {
	return Registry{
		{
			Name:     TypeHerinco,
			Detector: Detector{All: []string{"HERINCO", "ENTREGA"}},
			Kind:     document.KindFields,
			Schema:   herincoSchema,
			Extract:  extractHerinco,
		},
		{
			Name:     TypeVision,
			Detector: Detector{All: []string{"VISION INTEGRADOS"}},
			Kind:     document.KindFields,
			Schema:   visionSchema,
			Extract:  extractVision,
		},
		{
			Name:     TypeSales,
			Detector: Detector{All: []string{"NOMBRE ASESOR", "PPTO"}},
			Kind:     document.KindTabular,
			Schema:   salesSchema,
			Extract:  extractSales,
		},
		{
			Name:     TypeTradeNames,
			Detector: Detector{All: []string{"NOMBRE RUT", "NOMBRE COMERCIAL"}},
			Kind:     document.KindTabular,
			Schema:   tradeNamesSchema,
			Extract:  extractTradeNames,
		},
		{
			Name:     TypeAging,
			Detector: Detector{All: []string{"PROVEEDOR"}},
			Kind:     document.KindTabular,
			Schema:   agingSchema,
			Extract:  extractAging,
		},
	}
}
