package extraction

import (
	"context"
	"strings"

	"github.com/Caia-Tech/caia-extract/internal/memory"
	"github.com/Caia-Tech/caia-extract/internal/tables"
	"github.com/Caia-Tech/caia-extract/pkg/document"
	"github.com/rs/zerolog/log"
)

// AgingColumns is the width of an aging report row
const AgingColumns = 8

var agingSchema = []string{
	"DOCUMENTO", "PROVEEDOR", "CORRIENTE", "DE 1 A 30", "DE 31 A 60", "DE 61 A 90", "DE 91 O MAS", "TOTAL",
}

const zeroAmount = "$0.00"

// extractAging reads an accounts-payable aging report. Positioned tokens
// are rebuilt into rows spatially; without tokens the column blocks of the
// plain text are split apart instead.
func extractAging(ctx context.Context, in *Input) (document.Result, error) {
	table := document.NewTabular(agingSchema...)

	rows := agingRowsFromTokens(in.Tokens)
	source := "tokens"
	if len(rows) == 0 {
		rows = agingRowsFromText(in.Text)
		source = "text"
	}

	for i, raw := range rows {
		row, err := finishAgingRow(ctx, in, i, raw)
		if err != nil {
			return nil, err
		}
		if err := table.Append(row...); err != nil {
			return nil, err
		}
	}

	log.Debug().
		Str("source", source).
		Int("rows", table.Len()).
		Msg("Aging report extracted")
	return table, nil
}

func agingRowsFromTokens(tokens []document.OCRToken) [][]string {
	if len(tokens) == 0 {
		return nil
	}
	reconstructed := tables.Reconstruct(tokens, AgingColumns)
	rows := make([][]string, 0, len(reconstructed.Rows))
	for _, row := range reconstructed.Rows {
		// an eight-token header line survives reconstruction; it is not data
		if strings.Contains(strings.ToUpper(row[0]), "DOCUMENTO") || strings.Contains(strings.ToUpper(row[1]), "PROVEEDOR") {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

// agingRowsFromText splits the column blocks OCR produces for an aging
// report read top to bottom: documents, then suppliers, then every amount
// column one after another.
func agingRowsFromText(text string) [][]string {
	lines := strings.Split(text, "\n")

	docIdx, provIdx := -1, -1
	for i, line := range lines {
		upper := strings.ToUpper(line)
		if docIdx == -1 && strings.Contains(upper, "DOCUMENTO") {
			docIdx = i
		}
		if strings.Contains(upper, "PROVEEDOR") {
			provIdx = i
			break
		}
	}
	if provIdx == -1 {
		return nil
	}

	var docs []string
	if docIdx != -1 {
		for i := docIdx + 1; i < provIdx; i++ {
			line := strings.TrimSpace(lines[i])
			if line != "" && strings.ToUpper(line) != "TOTAL" {
				docs = append(docs, line)
			}
		}
	}

	var suppliers []string
	valuesStart := -1
	for i := provIdx + 1; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if strings.HasPrefix(line, "$") || (strings.Contains(line, "De ") && len([]rune(line)) < 20) {
			valuesStart = i
			break
		}
		if len([]rune(line)) > 2 {
			suppliers = append(suppliers, line)
		}
	}
	if valuesStart == -1 || len(suppliers) == 0 {
		return nil
	}

	var values []string
	for i := valuesStart; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		switch {
		case strings.HasPrefix(line, "$"), strings.HasPrefix(line, "s"), strings.HasPrefix(line, "S"):
			values = append(values, line)
		case line == "000", strings.ToUpper(line) == zeroAmount:
			values = append(values, zeroAmount)
		}
	}

	perColumn := len(suppliers)
	if len(values) >= 6 {
		perColumn = len(values) / 6
	}

	n := len(suppliers)
	if len(docs) < n {
		n = len(docs)
	}
	rows := make([][]string, 0, n)
	for i := 0; i < n; i++ {
		row := []string{docs[i], suppliers[i]}
		for col := 0; col < 6; col++ {
			idx := col*perColumn + i
			if idx < len(values) {
				row = append(row, values[idx])
			} else {
				row = append(row, zeroAmount)
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// finishAgingRow corrects the supplier against the memory, normalizes the
// five age buckets and the total, and repairs a total that disagrees with
// its components
func finishAgingRow(ctx context.Context, in *Input, index int, raw []string) ([]string, error) {
	supplier, err := in.supplier(ctx, "PROVEEDOR", index, raw[1])
	if err != nil {
		return nil, err
	}

	components := make([]float64, 5)
	for i := range components {
		components[i] = in.number(raw[2+i])
	}
	row := &memory.TotalRow{Components: components, Total: in.number(raw[7])}
	if memory.ValidateRow(row) {
		in.record("TOTAL", index, raw[7], memory.FormatNumber(row.Total), "total_mismatch")
	}

	out := make([]string, 0, AgingColumns)
	out = append(out, strings.TrimSpace(raw[0]), supplier)
	for _, c := range components {
		out = append(out, memory.FormatNumber(c))
	}
	out = append(out, memory.FormatNumber(row.Total))
	return out, nil
}
