package document

import (
	"fmt"
	"time"
)

// OCRToken is a single recognized text fragment positioned on the page.
// Coordinates are in the pixel space of the image the engine saw.
type OCRToken struct {
	Text       string  `json:"text"`
	CenterX    float64 `json:"center_x"`
	CenterY    float64 `json:"center_y"`
	Height     float64 `json:"height"`
	Confidence float64 `json:"confidence"` // 0..1
}

// Table is the output of spatial reconstruction.
// Every row holds exactly Columns cells.
type Table struct {
	Columns int        `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Validate checks the fixed-width invariant of the table
func (t *Table) Validate() error {
	if t.Columns < 0 {
		return fmt.Errorf("table column count cannot be negative")
	}
	for i, row := range t.Rows {
		if len(row) != t.Columns {
			return fmt.Errorf("row %d has %d cells, expected %d", i, len(row), t.Columns)
		}
	}
	return nil
}

// DetectedTable is a table found by delimiter heuristics in plain text.
// It travels next to a Fields result and is never merged into it.
type DetectedTable struct {
	Name    string     `json:"name"`
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// Correction records a value the correction memory changed while
// building a result.
type Correction struct {
	Field     string `json:"field"`
	Row       int    `json:"row"` // -1 for field results
	Original  string `json:"original"`
	Corrected string `json:"corrected"`
	Reason    string `json:"reason"`
}

// Cleanup is the optional language-model pass over the raw OCR text
type Cleanup struct {
	CleanText    string            `json:"clean_text,omitempty"`
	DocumentType string            `json:"document_type,omitempty"`
	Fields       map[string]string `json:"fields,omitempty"`
	Confidence   int               `json:"confidence"`
	Notes        string            `json:"notes,omitempty"`
	Model        string            `json:"model"`
}

// Extraction is everything produced for one document
type Extraction struct {
	ID           string          `json:"id"`
	Filename     string          `json:"filename,omitempty"`
	DocumentType string          `json:"document_type"`
	Engine       string          `json:"engine"`
	Result       Result          `json:"-"`
	Auxiliary    []DetectedTable `json:"auxiliary_tables,omitempty"`
	Corrections  []Correction    `json:"corrections,omitempty"`
	Text         string          `json:"text,omitempty"`
	Cleanup      *Cleanup        `json:"cleanup,omitempty"`
	Elapsed      time.Duration   `json:"elapsed_ns"`
	CreatedAt    time.Time       `json:"created_at"`
}

// IsEmpty reports whether the extraction carries no data at all
func (e *Extraction) IsEmpty() bool {
	return e == nil || e.Result == nil || e.Result.Len() == 0
}
