package tables

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/Caia-Tech/caia-extract/pkg/document"
)

var (
	pipeSeparator   = regexp.MustCompile(`^[\s|:\-–—=_]+$`)
	ruleSeparator   = regexp.MustCompile(`^[\s\-–—=_]+$`)
	twoOrMoreSpaces = regexp.MustCompile(`\s{2,}`)
	threeOrMore     = regexp.MustCompile(`\s{3,}`)
	alphanumeric    = regexp.MustCompile(`[a-zA-Z0-9]`)

	headerKeywords = []string{"CODIGO", "DESCRIPCION", "CANTIDAD", "PRECIO", "TOTAL", "VALOR", "FECHA", "NOMBRE", "ITEM"}
)

// DetectDelimited finds tables laid out with pipes or with wide runs of
// spaces under an upper-case header line.
func DetectDelimited(text string) []document.DetectedTable {
	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " \t\r")
	}

	var out []document.DetectedTable
	i := 0
	for i < len(lines) {
		line := strings.TrimSpace(lines[i])
		switch {
		case strings.Count(line, "|") >= 2:
			table, next := pipeTable(lines, i)
			if table != nil {
				table.Name = fmt.Sprintf("Tabla %d", len(out)+1)
				out = append(out, *table)
			}
			i = next
		case len(line) > 10 && isUpper(line) && hasHeaderKeyword(line):
			table, next := spacedTable(lines, i)
			if table != nil {
				table.Name = fmt.Sprintf("Tabla %d", len(out)+1)
				out = append(out, *table)
			}
			i = next
		default:
			i++
		}
	}
	return out
}

// LooksTabular reports whether more than five lines carry a digit
func LooksTabular(text string) bool {
	n := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.IndexFunc(line, unicode.IsDigit) >= 0 {
			n++
			if n > 5 {
				return true
			}
		}
	}
	return false
}

func pipeTable(lines []string, start int) (*document.DetectedTable, int) {
	headers := splitPipes(strings.TrimSpace(lines[start]))
	empty := true
	for _, h := range headers {
		if h != "" {
			empty = false
			break
		}
	}
	if empty || len(headers) < 2 {
		return nil, start + 1
	}
	for idx, h := range headers {
		if h == "" {
			headers[idx] = fmt.Sprintf("Columna_%d", idx+1)
		}
	}

	j := start + 1
	if j < len(lines) && pipeSeparator.MatchString(strings.TrimSpace(lines[j])) {
		j++
	}

	var rows [][]string
	for ; j < len(lines); j++ {
		row := strings.TrimSpace(lines[j])
		if row == "" || strings.Count(row, "|") < 2 {
			break
		}
		cells := fitWidth(splitPipes(row), len(headers))
		if anyNonEmpty(cells) {
			rows = append(rows, cells)
		}
	}
	if len(rows) == 0 {
		return nil, j
	}
	return &document.DetectedTable{Headers: headers, Rows: rows}, j
}

func spacedTable(lines []string, start int) (*document.DetectedTable, int) {
	headers := splitNonEmpty(twoOrMoreSpaces, strings.TrimSpace(lines[start]))
	if len(headers) < 2 {
		return nil, start + 1
	}

	j := start + 1
	for j < len(lines) && ruleSeparator.MatchString(strings.TrimSpace(lines[j])) {
		j++
	}

	var rows [][]string
	for ; j < len(lines); j++ {
		row := strings.TrimSpace(lines[j])
		if len(row) < 5 || !alphanumeric.MatchString(row) {
			break
		}
		cells := splitNonEmpty(threeOrMore, row)
		if len(cells) < 2 {
			cells = splitNonEmpty(twoOrMoreSpaces, row)
		}
		if len(cells) < 1 || len(cells) > len(headers)+1 {
			break
		}
		rows = append(rows, fitWidth(cells, len(headers)))
	}
	if len(rows) == 0 {
		return nil, j
	}
	return &document.DetectedTable{Headers: headers, Rows: rows}, j
}

func splitPipes(line string) []string {
	line = strings.TrimSpace(strings.Trim(line, "|"))
	parts := strings.Split(line, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func splitNonEmpty(re *regexp.Regexp, s string) []string {
	var out []string
	for _, p := range re.Split(s, -1) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func fitWidth(cells []string, width int) []string {
	if len(cells) > width {
		return cells[:width]
	}
	for len(cells) < width {
		cells = append(cells, "")
	}
	return cells
}

func anyNonEmpty(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return true
		}
	}
	return false
}

func hasHeaderKeyword(line string) bool {
	for _, kw := range headerKeywords {
		if strings.Contains(line, kw) {
			return true
		}
	}
	return false
}

// isUpper is true when the line has at least one letter and no lower-case letters
func isUpper(s string) bool {
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
