package extraction

import (
	"regexp"
	"strings"

	"github.com/Caia-Tech/caia-extract/pkg/fuzzy"
)

var (
	nonKeyChar    = regexp.MustCompile(`[^a-zA-Z0-9]`)
	underscoreRun = regexp.MustCompile(`_+`)

	// labels that start the next field when OCR runs two fields together
	valueCutWords = []string{
		"Fecha Ingreso", "Hora Ing", "Tel.", "Telefono", "Acompañante",
		"Estado Civil", "Estrato", "Municipio", "Ciudad", "Fecha Naci",
		"Tipo Usuario", "Sexo", "Edad", "Email", "Documento", "Cedula",
	}
)

// NormalizeKey turns a printed label into a field name: accents folded,
// anything but ASCII letters and digits collapsed to single underscores.
func NormalizeKey(label string) string {
	key := nonKeyChar.ReplaceAllString(fuzzy.Fold(label), "_")
	key = underscoreRun.ReplaceAllString(key, "_")
	return strings.Trim(key, "_")
}

// cleanValue cuts a value at the earliest label that belongs to another
// field and squeezes whitespace
func cleanValue(v string) string {
	if v == "" {
		return v
	}
	cut := len(v)
	for _, w := range valueCutWords {
		if i := strings.Index(v, w); i >= 0 && i < cut {
			cut = i
		}
	}
	return collapse(v[:cut])
}
