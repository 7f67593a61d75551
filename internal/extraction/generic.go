package extraction

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Caia-Tech/caia-extract/internal/memory"
	"github.com/Caia-Tech/caia-extract/internal/tables"
	"github.com/Caia-Tech/caia-extract/pkg/document"
	"github.com/rs/zerolog/log"
)

// Per-category caps on generic matches
const (
	maxDates     = 5
	maxPerKind   = 3
	maxAddresses = 2
	maxTaxIDs    = 2
)

var (
	dateSlashed   = regexp.MustCompile(`\d{1,2}[/-]\d{1,2}[/-]\d{2,4}`)
	dateISO       = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	dateCompact   = regexp.MustCompile(`\b(20\d{6})\b`)
	dateSpelled   = regexp.MustCompile(`\d{1,2}\s+de\s+\p{L}+\s+de\s+\d{4}`)
	resolutionNo  = regexp.MustCompile(`(?is)RESOLUCI[OÓ]N\s*(?:No\.?|N[UÚ]MERO|NUM)?\s*[:.]?\s*([A-Z0-9-]{3,20})`)
	filingNo      = regexp.MustCompile(`(?is)(?:RADICAD[OA]|RADICACI[OÓ]N)\s*(?:No\.?|N[UÚ]MERO)?[:.]?\s*([A-Z0-9-]{5,25})`)
	documentNo    = regexp.MustCompile(`(?:NO\.|N[UÚ]MERO|NUM\.?|#)\s*[:.]?\s*([A-Z0-9-]{3,20})`)
	nationalID    = regexp.MustCompile(`(?:C\.?C\.?|CEDULA|CED\.?|DOCUMENTO)\s*(?:No\.?)?[:.\s-]*([0-9.-]{7,15})`)
	taxID         = regexp.MustCompile(`NIT\s*(?:No\.?)?[:.]?\s*([0-9.-]{9,15})`)
	upperName     = regexp.MustCompile(`[A-ZÁÉÍÓÚÑ]{3,}(?:\s+[A-ZÁÉÍÓÚÑ]{3,}){2,4}`)
	labeledAddr   = regexp.MustCompile(`(?:DIRECCI[OÓ]N|DIR\.?)\s*[:.]?\s*([A-Z0-9ÁÉÍÓÚÑ#\-\s.,]{10,120})`)
	addressCut    = regexp.MustCompile(`\s+(?:SEDE|CIUDAD|TELEFONO|NIVEL|FECHA|ENTREGA)`)
	streetAddr    = regexp.MustCompile(`\b(?:CL|CLL|CALLE|KR|KRA|CARRERA|DG|DIAGONAL|TV|TRANSVERSAL)\.?\s+[0-9A-Z#\-\s]{3,60}(?:APTO|APT|APARTAMENTO)?\s*[0-9A-Z]*`)
	phoneNo       = regexp.MustCompile(`(?:TEL[EÉ]FONO|TEL\.?|CELULAR|CEL\.?|M[OÓ]VIL)\s*[:.]?\s*([0-9\-()\s]{7,15})`)
	emailAddr     = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	moneyAmount   = regexp.MustCompile(`(?:\$|COP|USD|EUR)\s*([0-9.,]*[0-9])|([0-9][0-9.,]*)\s*(?:PESOS|D[OÓ]LARES)`)
	areaAmount    = regexp.MustCompile(`([0-9][0-9.,]*)\s*(?:M2|M²|METROS?\s+CUADRADOS?|MTS2)`)
	unitQuantity  = regexp.MustCompile(`([0-9][0-9.,]*)\s*(KG|KILOS?|LITROS?|TONELADAS?|UNIDADES?|UND)\b`)
	codeRef       = regexp.MustCompile(`(?:C[OÓ]DIGO|COD\.?|REF\.?|REFERENCIA)\s*[:.]?\s*([A-Z0-9-]{5,20})`)
	cityName      = regexp.MustCompile(`(?:MUNICIPIO|CIUDAD)\s*[:.]?\s*([A-ZÁÉÍÓÚÑ\s]{3,30})`)
	cityCut       = regexp.MustCompile(`\s+(?:TELEFONO|DIRECCION|FECHA|CODIGO)`)
	approved      = regexp.MustCompile(`(?i)\b(?:APROBA[DR]O|APRUEBA|ACEPTA[DR]O|AUTORIZA[DR]O|CONCEDE|OTORGA)\b`)
	denied        = regexp.MustCompile(`(?i)\b(?:NEGA[DR]O|NIEGA|RECHAZA[DR]O|INADMITE|IMPROCEDENTE)\b`)
	pending       = regexp.MustCompile(`(?i)\b(?:PENDIENTE|EN\s+PROCESO|EN\s+TR[AÁ]MITE)\b`)

	// words that mark an upper-case run as a form label rather than a name
	nameStopWords = map[string]bool{
		"ENTREGA": true, "INFORMACION": true, "PACIENTE": true, "DOCUMENTO": true, "FORMULA": true,
		"NIVEL": true, "FECHA": true, "DIRECCION": true, "SEDE": true, "CIUDAD": true, "REGIMEN": true,
		"CODIGO": true, "NOMBRES": true, "ASEGURADORA": true, "VALOR": true, "CUOTA": true,
		"TELEFONO": true, "CELULAR": true, "MEDICO": true, "DIAGNOSTICO": true, "CONVENIO": true,
		"FORMULACION": true, "GENERICO": true, "LOTE": true, "MOTIVO": true, "REMISION": true,
		"CICLO": true, "TIPO": true, "PENDIENTE": true, "IMPRESO": true, "ATENCION": true,
		"USUARIO": true, "DESCRIPCION": true, "CONTRATO": true, "DURANTE": true, "DIAS": true,
		"MEDICAMENTOS": true, "SOLUCION": true, "OFTALMICA": true, "FRASCO": true,
	}
)

// GenericExtractor handles documents no specialized extractor claims
type GenericExtractor struct {
	recognizer EntityRecognizer
}

// NewGenericExtractor creates a generic extractor. A nil recognizer skips
// entity recognition.
func NewGenericExtractor(recognizer EntityRecognizer) *GenericExtractor {
	return &GenericExtractor{recognizer: recognizer}
}

// Extract builds the field map and the auxiliary delimiter tables for in.
// Empty categories never appear in the result.
func (g *GenericExtractor) Extract(ctx context.Context, in *Input) (*document.Fields, []document.DetectedTable, error) {
	text := in.Text
	flat := collapse(text)
	f := document.NewFields()

	auxiliary := tables.DetectDelimited(text)

	autoValues := make([]string, 0)
	ExtractPairs(text).Range(func(k, v string) bool {
		f.Set("Auto_"+k, v)
		autoValues = append(autoValues, v)
		return true
	})

	if g.recognizer != nil {
		entities, err := g.recognizer.Recognize(ctx, text)
		if err != nil {
			log.Warn().Err(err).Str("recognizer", g.recognizer.Name()).Msg("Entity recognition failed, continuing without entities")
		} else {
			for _, e := range FilterEntities(entities) {
				f.Set("IA_"+e.Key, e.Text)
			}
		}
	}

	putList(f, "Fecha", dates(flat), maxDates)

	if v, ok := submatch(resolutionNo, flat, 1); ok {
		f.Set("Numero_Resolucion", v)
	}
	if v, ok := submatch(filingNo, flat, 1); ok {
		f.Set("Radicado", v)
	}
	var docs []string
	for _, m := range firstN(documentNo.FindAllStringSubmatch(flat, -1), maxPerKind) {
		if !containsValue(f, m[1]) {
			docs = append(docs, m[1])
		}
	}
	putList(f, "Numero_Documento", docs, maxPerKind)

	var ids []string
	for _, m := range firstN(nationalID.FindAllStringSubmatch(flat, -1), maxPerKind) {
		if id := strings.NewReplacer(".", "", "-", "").Replace(strings.TrimSpace(m[1])); id != "" {
			ids = append(ids, id)
		}
	}
	putList(f, "Cedula", ids, maxPerKind)
	putList(f, "NIT", groups(taxID, flat, maxTaxIDs), maxTaxIDs)

	putList(f, "Nombre_Completo", fullNames(text, autoValues), maxPerKind)
	putList(f, "Direccion", addresses(flat), maxAddresses)

	var phones []string
	for _, m := range phoneNo.FindAllStringSubmatch(flat, -1) {
		tel := whitespaceRun.ReplaceAllString(strings.TrimSpace(m[1]), "")
		if len(tel) >= 7 {
			phones = appendUnique(phones, tel)
		}
	}
	putList(f, "Telefono", phones, maxPerKind)

	var emails []string
	for _, e := range emailAddr.FindAllString(text, -1) {
		emails = appendUnique(emails, e)
	}
	putList(f, "Email", emails, maxPerKind)

	var amounts []string
	for _, m := range moneyAmount.FindAllStringSubmatch(flat, -1) {
		v := m[1]
		if v == "" {
			v = m[2]
		}
		if v != "" {
			amounts = appendUnique(amounts, v)
		}
	}
	putList(f, "Valor_Monetario", amounts, maxPerKind)

	var areas []string
	for _, m := range areaAmount.FindAllStringSubmatch(flat, -1) {
		areas = appendUnique(areas, m[1])
	}
	putList(f, "Area_M2", areas, maxPerKind)

	var quantities []string
	for _, m := range unitQuantity.FindAllStringSubmatch(flat, -1) {
		quantities = appendUnique(quantities, m[1]+" "+m[2])
	}
	putList(f, "Cantidad", quantities, maxPerKind)

	var codes []string
	for _, m := range codeRef.FindAllStringSubmatch(flat, -1) {
		codes = appendUnique(codes, m[1])
	}
	putList(f, "Codigo", codes, maxPerKind)

	var cities []string
	for _, m := range cityName.FindAllStringSubmatch(flat, -1) {
		city := strings.TrimSpace(cityCut.Split(strings.TrimSpace(m[1]), 2)[0])
		if utf8.RuneCountInString(city) >= 3 {
			cities = appendUnique(cities, city)
		}
	}
	putList(f, "Ciudad", cities, maxPerKind)

	switch {
	case approved.MatchString(flat):
		f.Set("Estado_Decision", "APROBADO")
	case denied.MatchString(flat):
		f.Set("Estado_Decision", "NEGADO")
	case pending.MatchString(flat):
		f.Set("Estado_Decision", "PENDIENTE")
	}

	f.DropEmpty()
	if err := g.autocorrect(ctx, in, f); err != nil {
		return nil, nil, err
	}
	return f, auxiliary, nil
}

// autocorrect passes supplier-like fields through the name memory and
// amount-like fields through number normalization
func (g *GenericExtractor) autocorrect(ctx context.Context, in *Input, f *document.Fields) error {
	for _, key := range f.Keys() {
		value, _ := f.Get(key)
		lower := strings.ToLower(key)
		switch {
		case strings.Contains(lower, "proveedor") || strings.Contains(lower, "empresa"):
			corrected, err := in.supplier(ctx, key, -1, value)
			if err != nil {
				return err
			}
			f.Set(key, corrected)
		case hasAnyKeyword(lower, []string{"total", "valor", "precio", "monto"}):
			n := memory.FormatNumber(in.number(value))
			if n != value {
				in.record(key, -1, value, n, "number_normalized")
			}
			f.Set(key, n)
		}
	}
	return nil
}

func dates(flat string) []string {
	var out []string
	for _, d := range dateSlashed.FindAllString(flat, -1) {
		out = appendUnique(out, d)
	}
	for _, d := range dateISO.FindAllString(flat, -1) {
		out = appendUnique(out, d)
	}
	for _, m := range dateCompact.FindAllStringSubmatch(flat, -1) {
		d := m[1]
		out = appendUnique(out, d[0:4]+"-"+d[4:6]+"-"+d[6:8])
	}
	for _, d := range dateSpelled.FindAllString(flat, -1) {
		out = appendUnique(out, d)
	}
	return out
}

// fullNames finds runs of three to five upper-case words that are not form
// labels and were not already captured as a pair value
func fullNames(text string, autoValues []string) []string {
	var out []string
	for _, loc := range upperName.FindAllStringIndex(text, -1) {
		if !wordBounded(text, loc[0], loc[1]) {
			continue
		}
		name := collapse(text[loc[0]:loc[1]])
		words := strings.Fields(name)
		if len(words) < 3 || utf8.RuneCountInString(name) <= 10 {
			continue
		}
		label := false
		for _, w := range words {
			if nameStopWords[w] {
				label = true
				break
			}
		}
		if label || containsString(out, name) {
			continue
		}
		captured := false
		for _, v := range autoValues {
			if strings.Contains(v, name) {
				captured = true
				break
			}
		}
		if !captured {
			out = append(out, name)
		}
	}
	return out
}

func addresses(flat string) []string {
	var out []string
	for _, m := range labeledAddr.FindAllStringSubmatch(flat, -1) {
		addr := collapse(m[1])
		addr = strings.TrimSpace(addressCut.Split(addr, 2)[0])
		if utf8.RuneCountInString(addr) > 10 {
			out = appendUnique(out, addr)
		}
	}
	for _, m := range streetAddr.FindAllString(flat, -1) {
		addr := collapse(m)
		dup := false
		for _, existing := range out {
			if strings.Contains(existing, addr) || strings.Contains(addr, existing) {
				dup = true
				break
			}
		}
		if !dup && utf8.RuneCountInString(addr) > 8 {
			out = append(out, addr)
		}
	}
	return out
}

// wordBounded reports whether text[start:end] is not glued to letters on
// either side. regexp's \b only knows ASCII word characters.
func wordBounded(text string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func putList(f *document.Fields, prefix string, values []string, limit int) {
	for i, v := range firstN(values, limit) {
		f.Set(fmt.Sprintf("%s_%d", prefix, i+1), v)
	}
}

func groups(re *regexp.Regexp, s string, limit int) []string {
	var out []string
	for _, m := range firstN(re.FindAllStringSubmatch(s, -1), limit) {
		out = append(out, strings.TrimSpace(m[1]))
	}
	return out
}

func firstN[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func appendUnique(list []string, v string) []string {
	if containsString(list, v) {
		return list
	}
	return append(list, v)
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func containsValue(f *document.Fields, v string) bool {
	return containsString(f.Values(), v)
}
