// Package tables rebuilds row/column tables from OCR output.
package tables

import (
	"math"
	"sort"
	"strings"

	"github.com/Caia-Tech/caia-extract/pkg/document"
	"github.com/rs/zerolog/log"
)

const (
	// ToleranceFactor scales the mean token height into the row clustering band
	ToleranceFactor = 0.6

	// DefaultTolerance is used when there is no usable token height
	DefaultTolerance = 15.0
)

// Stats describes one reconstruction pass
type Stats struct {
	Tokens     int     `json:"tokens"`
	Tolerance  float64 `json:"tolerance"`
	Candidates int     `json:"candidates"`
	Kept       int     `json:"kept"`
	Dropped    int     `json:"dropped"`
	Columns    int     `json:"columns"`
}

// Reconstruct groups positioned tokens into table rows.
//
// Rows are clustered greedily on center_y with a band of 0.6 times the
// mean token height, ordered left to right by center_x, and kept only when
// their cell count equals expectedColumns. When expectedColumns is zero or
// negative the modal row length is used instead. Rows with any other count
// are dropped, never padded.
func Reconstruct(tokens []document.OCRToken, expectedColumns int) document.Table {
	table, _ := ReconstructWithStats(tokens, expectedColumns)
	return table
}

// ReconstructWithStats is Reconstruct plus the numbers behind it
func ReconstructWithStats(tokens []document.OCRToken, expectedColumns int) (document.Table, Stats) {
	stats := Stats{Tokens: len(tokens), Tolerance: Tolerance(tokens)}

	candidates := clusterRows(tokens, stats.Tolerance)
	stats.Candidates = len(candidates)

	columns := expectedColumns
	if columns <= 0 {
		columns = modalLength(candidates)
	}
	stats.Columns = columns

	rows := make([][]string, 0, len(candidates))
	for _, row := range candidates {
		if len(row) != columns {
			stats.Dropped++
			continue
		}
		rows = append(rows, row)
	}
	stats.Kept = len(rows)

	log.Debug().
		Int("tokens", stats.Tokens).
		Float64("tolerance", stats.Tolerance).
		Int("candidates", stats.Candidates).
		Int("kept", stats.Kept).
		Int("columns", columns).
		Msg("Table reconstructed")

	return document.Table{Columns: columns, Rows: rows}, stats
}

// Tolerance returns the vertical clustering band for a token set
func Tolerance(tokens []document.OCRToken) float64 {
	if len(tokens) == 0 {
		return DefaultTolerance
	}
	var sum float64
	for _, t := range tokens {
		sum += t.Height
	}
	avg := sum / float64(len(tokens))
	if avg <= 0 || math.IsNaN(avg) {
		return DefaultTolerance
	}
	return ToleranceFactor * avg
}

// clusterRows assigns every token to exactly one row. The first
// unassigned token in y order seeds a row; every unassigned token within
// tolerance of the seed joins it.
func clusterRows(tokens []document.OCRToken, tolerance float64) [][]string {
	sorted := make([]document.OCRToken, len(tokens))
	copy(sorted, tokens)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CenterY < sorted[j].CenterY
	})

	used := make([]bool, len(sorted))
	var rows [][]string
	for i := range sorted {
		if used[i] {
			continue
		}
		seed := sorted[i].CenterY
		var members []document.OCRToken
		for j := i; j < len(sorted); j++ {
			if used[j] {
				continue
			}
			if math.Abs(sorted[j].CenterY-seed) <= tolerance {
				members = append(members, sorted[j])
				used[j] = true
			}
		}
		sort.SliceStable(members, func(a, b int) bool {
			return members[a].CenterX < members[b].CenterX
		})
		cells := make([]string, len(members))
		for k, m := range members {
			cells[k] = strings.TrimSpace(m.Text)
		}
		rows = append(rows, cells)
	}
	return rows
}

// modalLength returns the most frequent row length; the longer length wins a tie
func modalLength(rows [][]string) int {
	counts := make(map[int]int)
	for _, r := range rows {
		counts[len(r)]++
	}
	best, bestCount := 0, 0
	for length, n := range counts {
		if n > bestCount || (n == bestCount && length > best) {
			best, bestCount = length, n
		}
	}
	return best
}

// Lines renders tokens as reading-order text, one line per clustered row
// with cells separated by two spaces. No row is dropped.
func Lines(tokens []document.OCRToken) []string {
	rows := clusterRows(tokens, Tolerance(tokens))
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		if line := strings.TrimSpace(strings.Join(row, "  ")); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
