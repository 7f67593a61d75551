package extraction

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/Caia-Tech/caia-extract/pkg/document"
)

var salesSchema = []string{"NOMBRE ASESOR", "PPTO MES", "PPTO A LA FECHA", "VALOR VENTAS", "% CUMPLIMIENTO", "% MARGEN"}

var (
	salesHeader    = regexp.MustCompile(`(?is)NOMBRE\s+ASESOR\s+PPTO\s+MES.*?MARGEN`)
	salesName      = regexp.MustCompile(`^([A-ZÁÉÍÓÚÑ&.][A-ZÁÉÍÓÚÑa-záéíóúñ\s.&()\-]{3,65}?)(?:\s+[$\d]|$)`)
	salesMoney     = regexp.MustCompile(`\$\s*([\d,.óéO]+)`)
	salesPercent   = regexp.MustCompile(`(\d{1,3}(?:\.\d{1,2})?)%`)
	dottedThousand = regexp.MustCompile(`^\d{1,3}(?:\.\d{3})+$`)

	salesKeywords  = []string{"PPTO", "FECHA", "VALOR", "CUMPL", "MARGEN", "ALA"}
	moneyConfusion = strings.NewReplacer("ó", "0", "é", "0", "O", "0", ",", "")
)

// extractSales reads a sales budget sheet, one row per sales advisor
func extractSales(_ context.Context, in *Input) (document.Result, error) {
	text := strings.ReplaceAll(in.Text, `\n`, "\n")
	text = salesHeader.ReplaceAllString(text, "")

	table := document.NewTabular(salesSchema...)
	seen := make(map[string]bool)

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, " \t\r")
		if len([]rune(strings.TrimSpace(line))) < 10 {
			continue
		}
		m := salesName.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[1])
		name = strings.TrimRight(name, ")")
		name = strings.TrimRight(name, ".")
		if len([]rune(name)) < 4 || seen[name] || hasAnyKeyword(strings.ToUpper(name), salesKeywords) {
			continue
		}

		var money []string
		for _, mm := range salesMoney.FindAllStringSubmatch(line, -1) {
			money = append(money, moneyConfusion.Replace(mm[1]))
		}
		var percents []string
		for _, pm := range salesPercent.FindAllStringSubmatch(line, -1) {
			percents = append(percents, pm[1])
		}
		if len(money) == 0 && len(percents) == 0 {
			continue
		}

		var budget, budgetToDate, sales, attainment, margin string
		switch {
		case len(money) >= 3:
			budget, budgetToDate, sales = formatPesos(money[0]), formatPesos(money[1]), formatPesos(money[2])
		case len(money) == 2:
			budgetToDate, sales = formatPesos(money[0]), formatPesos(money[1])
		case len(money) == 1:
			sales = formatPesos(money[0])
		}
		switch {
		case len(percents) >= 2:
			attainment = percents[len(percents)-2] + "%"
			margin = percents[len(percents)-1] + "%"
		case len(percents) == 1:
			margin = percents[0] + "%"
		}

		if sales == "" && margin == "" {
			continue
		}
		seen[name] = true
		if err := table.Append(name, budget, budgetToDate, sales, attainment, margin); err != nil {
			return nil, err
		}
	}
	return table, nil
}

// formatPesos renders an integer amount as "$ 1.234.567"; anything that
// does not parse is kept as read
func formatPesos(raw string) string {
	digits := raw
	if dottedThousand.MatchString(digits) {
		digits = strings.ReplaceAll(digits, ".", "")
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return "$ " + raw
	}
	return "$ " + groupThousands(n)
}

func groupThousands(n int64) string {
	sign := ""
	if n < 0 {
		sign, n = "-", -n
	}
	s := strconv.FormatInt(n, 10)
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return sign + b.String()
}

func hasAnyKeyword(upper string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(upper, kw) {
			return true
		}
	}
	return false
}
