package extraction

import (
	"regexp"
	"strings"

	"github.com/Caia-Tech/caia-extract/internal/processing"
	"github.com/Caia-Tech/caia-extract/pkg/document"
)

var (
	colonPair      = regexp.MustCompile(`([A-ZÁÉÍÓÚÑ][a-záéíóúñA-ZÁÉÍÓÚÑ\s]{3,60}):\s*([^\n:]{3,250})`)
	dashPair       = regexp.MustCompile(`([A-ZÁÉÍÓÚÑ][A-ZÁÉÍÓÚÑ\s]{4,50})\s*[—–]\s*([A-Za-z0-9áéíóúñÁÉÍÓÚÑ][A-Za-z0-9áéíóúñÁÉÍÓÚÑ\s.,:/-]{2,150})`)
	nextLabel      = regexp.MustCompile(`\s{2,}[A-Z]{3,}:`)
	onlyDashes     = regexp.MustCompile(`^[\s\-—–]+$`)
	shortUpperWord = regexp.MustCompile(`^[A-Z\s]{1,15}$`)

	medicationFull = regexp.MustCompile(`(?is)((?:HIALURONATO|ACETAMINOFEN|IBUPROFENO|DICLOFENACO|KETOROLACO|TRAMADOL|OMEPRAZOL|LOSARTAN|METFORMINA|ATORVASTATINA|[A-Z]{4,})\s+(?:DE\s+)?(?:(?:SODIO|POTASIO|CALCIO|MAGNESIO)\s*)?(?:0\.\d+%|\d+\.?\d*\s*(?:(?:MG|MCG|G|ML)\b|%))[^\n|]*(?:\n[^\n|]{0,80}){0,2})`)
	medicationCut  = regexp.MustCompile(`\s*[—–]\s*|\s+\d{1,3}\s*\([A-Z]+\)`)
	pipeRun        = regexp.MustCompile(`\s*\|\s*`)
	medicationDose = regexp.MustCompile(`\b(?:HIALURONATO|ACETAMINOFEN|IBUPROFENO|DICLOFENACO|[A-Z]{3,})\s+(?:(?:DE|CON)\s+)?(?:(?:SODIO|POTASIO)\s+)?[0-9][0-9.,]*\s*(?:%|(?:MG|MCG|ML|G)\b)`)
	quantityLabel  = regexp.MustCompile(`(?i)CANTIDAD[:\s]*([0-9]+)\s*\(([A-Z]+)\)`)
	quantityWords  = regexp.MustCompile(`(?i)(?:^|[^.\w])(\d{1,3})\s*\(([A-Z]{3,})\)`)
	posology       = regexp.MustCompile(`(?is)(?:APLICAR|TOMAR|ADMINISTRAR|USAR)\s+.{10,200}?(?:OJOS|OJO|D[IÍ]AS?|CADA\s+\d+\s+HORAS?)`)
	posologyCut    = regexp.MustCompile(`(?i)\s*\|\s*|CamScanner|Powered|FecV|LOTE|ATEND\.DO`)
	atcLine        = regexp.MustCompile(`(?is)(?:CODATC|NUA)\s*[—–]?\s*(?:NUA\s+)?NOMBRE\s+GENERICO\s*\n?\s*([A-Za-z0-9]+)\s*[—–]?\s*(.+?)(?:\n|LOTE|CAN|$)`)
	atcCut         = regexp.MustCompile(`\n|CAN|ENTR|PEND`)
	lotExpiry      = regexp.MustCompile(`(?i)LOTE\s+(?:Lote\s+)?([A-Za-z0-9-]+)\s*(?:-\s*)?FecV?\s*[—–]?\s*([\d-]+)`)
	treatmentDays  = regexp.MustCompile(`(?i)DURANTE\s+(\d+\s+D[IÍ]AS?)`)

	pairValueExclusions = []string{
		"SEDE ENTREGA", "CENTRO DIST", "FECHA FORMULA", "CODIGO INTERNO",
		"NOMBRE GENERICO", "LOTE LOTE", "MOTIVO REMISION",
	}
)

// ExtractPairs finds printed "Label: value" and "LABEL — value" pairs plus
// the medication details prescriptions carry. Keys are normalized with
// NormalizeKey. A value contained in an already captured longer value is
// dropped.
func ExtractPairs(text string) *document.Fields {
	text = processing.RepairEmails(text)
	pairs := document.NewFields()

	for _, m := range colonPair.FindAllStringSubmatch(text, -1) {
		label := strings.TrimSpace(m[1])
		value := strings.TrimSpace(m[2])
		if n := len([]rune(label)); n < 4 || n > 50 {
			continue
		}
		if len([]rune(value)) < 2 {
			continue
		}
		value = strings.TrimSpace(nextLabel.Split(value, 2)[0])
		value = cleanValue(value)
		if onlyDashes.MatchString(value) || hasAnyKeyword(strings.ToUpper(value), pairValueExclusions) {
			continue
		}
		if len([]rune(value)) <= 2 || coveredBy(pairs, value, true) {
			continue
		}
		pairs.Set(NormalizeKey(label), value)
	}

	for _, m := range dashPair.FindAllStringSubmatch(text, -1) {
		label := strings.TrimSpace(m[1])
		value := strings.TrimSpace(m[2])
		if len([]rune(label)) < 4 || len([]rune(value)) < 3 {
			continue
		}
		value = cleanValue(value)
		if shortUpperWord.MatchString(value) && len(value) < 8 {
			continue
		}
		key := NormalizeKey(label)
		if pairs.Has(key) || coveredBy(pairs, value, false) {
			continue
		}
		pairs.Set(key, value)
	}

	medicationPairs(text, pairs)
	return pairs
}

// coveredBy reports whether value overlaps a captured value by containment.
// With needLonger the captured value must also be at least as long.
func coveredBy(pairs *document.Fields, value string, needLonger bool) bool {
	covered := false
	pairs.Range(func(_, existing string) bool {
		if strings.Contains(existing, value) || strings.Contains(value, existing) {
			if !needLonger || len(existing) >= len(value) {
				covered = true
				return false
			}
		}
		return true
	})
	return covered
}

func medicationPairs(text string, pairs *document.Fields) {
	if m := medicationFull.FindStringSubmatch(text); m != nil {
		desc := pipeRun.ReplaceAllString(collapse(m[1]), " ")
		desc = strings.TrimSpace(medicationCut.Split(desc, 2)[0])
		if len([]rune(desc)) > 10 {
			pairs.Set("MEDICAMENTO_COMPLETO", desc)
		}
	}

	if m := quantityLabel.FindStringSubmatch(text); m != nil {
		pairs.Set("CANTIDAD_MEDICAMENTO", m[1]+" ("+m[2]+")")
	} else if m := quantityWords.FindStringSubmatch(text); m != nil {
		pairs.Set("CANTIDAD_MEDICAMENTO", m[1]+" ("+m[2]+")")
	}

	if m := posology.FindString(text); m != "" {
		p := strings.TrimSpace(posologyCut.Split(collapse(m), 2)[0])
		if len([]rune(p)) > 10 {
			pairs.Set("POSOLOGIA", p)
		}
	}

	if !pairs.Has("MEDICAMENTO_COMPLETO") {
		if m := medicationDose.FindString(text); m != "" {
			pairs.Set("MEDICAMENTO", collapse(m))
		}
	}

	if m := atcLine.FindStringSubmatch(text); m != nil {
		desc := strings.TrimSpace(atcCut.Split(collapse(m[2]), 2)[0])
		pairs.Set("CODIGO_ATC", strings.TrimSpace(m[1]))
		if existing, _ := pairs.Get("MEDICAMENTO"); len(desc) > len(existing) {
			pairs.Set("MEDICAMENTO", desc)
		}
	}

	if m := lotExpiry.FindStringSubmatch(text); m != nil {
		pairs.Set("LOTE", strings.TrimSpace(m[1]))
		pairs.Set("FECHA_VENCIMIENTO", strings.TrimSpace(m[2]))
	}

	if m := treatmentDays.FindStringSubmatch(text); m != nil {
		pairs.Set("INSTRUCCIONES", collapse(m[1]))
	}
}
