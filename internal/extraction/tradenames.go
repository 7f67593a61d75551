package extraction

import (
	"context"
	"strings"

	"github.com/Caia-Tech/caia-extract/pkg/document"
)

var tradeNamesSchema = []string{"NOMBRE RUT", "NOMBRE COMERCIAL"}

var (
	rutCleaner       = strings.NewReplacer("(P))", "", "*", "")
	tradeNameCleaner = strings.NewReplacer("(P))", "", "*", "", "$ A S", "S.A.S")
)

// extractTradeNames pairs the registered names with their trade names.
// OCR reads the two columns as consecutive blocks: the first block starts
// under the first NOMBRE RUT line, the second under the last NOMBRE
// COMERCIAL line. Rows pair up by position.
func extractTradeNames(_ context.Context, in *Input) (document.Result, error) {
	lines := strings.Split(in.Text, "\n")

	rutIdx, tradeIdx := -1, -1
	for i, line := range lines {
		upper := strings.ToUpper(line)
		if rutIdx == -1 && strings.Contains(upper, "NOMBRE RUT") {
			rutIdx = i
		}
		if strings.Contains(upper, "NOMBRE COMERCIAL") {
			tradeIdx = i
		}
	}

	table := document.NewTabular(tradeNamesSchema...)
	if rutIdx == -1 || tradeIdx == -1 {
		return table, nil
	}

	var ruts, trades []string
	for i := rutIdx + 1; i < tradeIdx; i++ {
		line := strings.TrimSpace(lines[i])
		if len([]rune(line)) <= 2 {
			continue
		}
		if line = strings.TrimSpace(rutCleaner.Replace(line)); line != "" {
			ruts = append(ruts, line)
		}
	}
	for i := tradeIdx + 1; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if len([]rune(line)) <= 2 {
			continue
		}
		line = strings.ReplaceAll(tradeNameCleaner.Replace(line), "$", "")
		if line = strings.TrimSpace(line); line != "" {
			trades = append(trades, line)
		}
	}

	n := len(ruts)
	if len(trades) > n {
		n = len(trades)
	}
	for i := 0; i < n; i++ {
		var rut, trade string
		if i < len(ruts) {
			rut = ruts[i]
		}
		if i < len(trades) {
			trade = trades[i]
		}
		if err := table.Append(rut, trade); err != nil {
			return nil, err
		}
	}
	return table, nil
}
