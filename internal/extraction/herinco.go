package extraction

import (
	"context"
	"regexp"
	"strings"

	"github.com/Caia-Tech/caia-extract/pkg/document"
)

var herincoSchema = []string{
	"DOCUMENTO", "NOMBRES", "FORMULA", "ASEGURADORA", "NIVEL", "FECHA", "VALOR CUOTA",
	"CODIGO INTERNO", "DIRECCION", "TELEFONO", "CELULAR", "SEDE ENTREGA", "CIUDAD",
	"FECHA FORMULA", "REGIMEN", "CODIGO IPS", "DESCRIPCION IPS", "CODIGO MEDICO",
	"NOMBRE MEDICO", "CODIGO CIE", "CONTRATO", "COD ATC", "NUA", "NOMBRE GENERICO",
	"CAN ENTR", "CAN PEND", "FORMULACION",
}

// field patterns used directly with group 1
var herincoFields = []struct {
	name string
	re   *regexp.Regexp
}{
	{"NOMBRES", regexp.MustCompile(`NOMBRES:\s*([A-ZÁÉÍÓÚÑ][A-ZÁÉÍÓÚÑa-záéíóúñ \t]+?)\s*(?:\n|FORMULA|$)`)},
	{"FORMULA", regexp.MustCompile(`FORMULA:\s*(\d{6,10})`)},
	{"ASEGURADORA", regexp.MustCompile(`ASEGURADORA:\s*([A-ZÁÉÍÓÚÑa-záéíóúñ \t]+?)\s*(?:\n|NIVEL|$)`)},
	{"NIVEL", regexp.MustCompile(`NIVEL:\s*(\d+)`)},
}

var (
	herincoDocument     = regexp.MustCompile(`DOCUMENTO:\s*([A-Z]{1,3}[-\s]?\d{6,12})`)
	herincoDate         = regexp.MustCompile(`FECHA:\s*\.?(\d{4})-(\d{2})-(\d{2})`)
	herincoFee          = regexp.MustCompile(`VALOR\s+CUOTA:\s*([O0]|\d+)`)
	herincoInternalCode = regexp.MustCompile(`CODIG[OÓ]\s+INTERNO:\s*(\d{6,10})`)
	herincoAddress      = regexp.MustCompile(`(?i)DIRECCION\s+([A-Z0-9][A-Z0-9\s#\-ÁÉÍÓÚÑ]+?)\s*TELEFONO`)
	herincoStreet       = regexp.MustCompile(`(?i)\b(CALLE|CARRERA|CRA|CLL|KR|AVENIDA|AV)\s+(\d+)\s+(\d)`)
	herincoPhone        = regexp.MustCompile(`TELEFONO\s+(\d{6,10})`)
	herincoMobile       = regexp.MustCompile(`CELULAR\s+(\d{10})`)
	herincoSite         = regexp.MustCompile(`SEDE\s+ENTREGA:\s*([A-ZÁÉÍÓÚÑa-záéíóúñ \t\-.]+?)\s*(?:\n|CIUDAD|$)`)
	herincoCity         = regexp.MustCompile(`CIUDAD:\s*([A-ZÁÉÍÓÚÑa-záéíóúñ \t]+?)\s*(?:-|\n|FECHA|$)`)
	herincoFormulaDate  = regexp.MustCompile(`FECHA\s+FORMULA:\s*[—–-]?\s*(\d{4})-(\d{2})-(\d{2})`)
	herincoRegime       = regexp.MustCompile(`REGIMEN:\s*([A-ZÁÉÍÓÚÑa-záéíóúñ]+)`)
	herincoIPSCode      = regexp.MustCompile(`CODIG[OÓ][\s_]+IPS:\s*0?(\d{11})`)
	herincoIPSName      = regexp.MustCompile(`DESCRIPCI[OÓ]N\s+IPS:\s*[—–]?\s*((?:EPS\s+)?(?:IPS\s+)?[A-ZÁÉÍÓÚÑa-záéíóúñ \t]+?)\s*(?:\n|INFORMACION|CODIGO|$)`)
	herincoDoctorCode   = regexp.MustCompile(`CODIGO\s+MEDICO\s+(\d{10})`)
	herincoDoctorName   = regexp.MustCompile(`NOMBRE\s+MEDICO\s+[—–]?\s*([A-ZÁÉÍÓÚÑa-záéíóúñ \t]+?)\s*(?:\n|CODIGO\s+CIE|$)`)
	herincoCIE          = regexp.MustCompile(`CODIGO\s+CIE\s*[–-]\s*([A-Z0-9]{3,6})`)
	herincoContract     = regexp.MustCompile(`CONTRATO\s+Ñ?([A-ZÁÉÍÓÚÑa-záéíóúñ \t\-]+?)\s*(?:\n|COD\s+ATC|$)`)
	herincoATC          = regexp.MustCompile(`(?s)COD\s+ATC\s+NUA\s+NOMBRE\s+GENERICO.*?\n\s*([A-Z0-9]{7})`)
	herincoNUA          = regexp.MustCompile(`(?s)COD\s+ATC\s+NUA\s+NOMBRE\s+GENERICO.*?\n\s*[A-Z0-9]{7}\s+\[?\s*(\d*)\s*\[?\s+`)
	herincoSection      = regexp.MustCompile(`(?s)COD\s+ATC\s+NUA\s+NOMBRE\s+GENERICO\s+CAN\s+ENTR\s+CAN\s+PEND\s+FORMULACION\s*\n\s*([A-Z0-9]{7})\s+\[?\s*(.+?)\n\s*LOTE`)
	herincoLine         = regexp.MustCompile(`(?is)(.+?)\s*\.\s*(\d+)\s+(\d+)\s+(DURANTE\s+\d+\s+D[IÍ]AS?)`)
	herincoBrand        = regexp.MustCompile(`\(?\s*(?:HIALTEARS|IALTEARS)\s*\)?`)
	herincoFrasco       = regexp.MustCompile(`F\s+RASCO`)
	trailingDot         = regexp.MustCompile(`\s*\.\s*$`)
)

// extractHerinco reads a medication delivery slip
func extractHerinco(ctx context.Context, in *Input) (document.Result, error) {
	text := in.Text
	f := document.NewFields()

	if v, ok := submatch(herincoDocument, text, 1); ok {
		f.Set("DOCUMENTO", strings.ReplaceAll(v, " ", "-"))
	}
	for _, hf := range herincoFields {
		if v, ok := submatch(hf.re, text, 1); ok && v != "" {
			f.Set(hf.name, v)
		}
	}
	if m := herincoDate.FindStringSubmatch(text); m != nil {
		f.Set("FECHA", m[3]+"/"+m[2]+"/"+m[1])
	}
	if v, ok := submatch(herincoFee, text, 1); ok {
		f.Set("VALOR CUOTA", strings.ReplaceAll(v, "O", "0"))
	}
	if v, ok := submatch(herincoInternalCode, text, 1); ok {
		f.Set("CODIGO INTERNO", v)
	}
	if v, ok := submatch(herincoAddress, text, 1); ok {
		f.Set("DIRECCION", herincoStreet.ReplaceAllString(v, "$1 $2 # $3"))
	}
	if v, ok := submatch(herincoPhone, text, 1); ok {
		f.Set("TELEFONO", v)
	}
	if v, ok := submatch(herincoMobile, text, 1); ok {
		f.Set("CELULAR", v)
	}
	if v, ok := submatch(herincoSite, text, 1); ok && v != "" {
		f.Set("SEDE ENTREGA", v)
	}
	if v, ok := submatch(herincoCity, text, 1); ok && v != "" {
		f.Set("CIUDAD", v)
	}
	if m := herincoFormulaDate.FindStringSubmatch(text); m != nil {
		f.Set("FECHA FORMULA", m[3]+"/"+m[2]+"/"+m[1])
	}
	if v, ok := submatch(herincoRegime, text, 1); ok {
		f.Set("REGIMEN", v)
	}
	if v, ok := submatch(herincoIPSCode, text, 1); ok {
		f.Set("CODIGO IPS", v)
	}
	if v, ok := submatch(herincoIPSName, text, 1); ok && v != "" {
		if strings.HasPrefix(v, "IPS ") {
			v = "EPS " + v[len("IPS "):]
		}
		f.Set("DESCRIPCION IPS", v)
	}
	if v, ok := submatch(herincoDoctorCode, text, 1); ok {
		f.Set("CODIGO MEDICO", v)
	}
	if v, ok := submatch(herincoDoctorName, text, 1); ok && v != "" {
		f.Set("NOMBRE MEDICO", v)
	}
	if v, ok := submatch(herincoCIE, text, 1); ok {
		f.Set("CODIGO CIE", v)
	}
	if v, ok := submatch(herincoContract, text, 1); ok && v != "" {
		f.Set("CONTRATO", v)
	}
	if v, ok := submatch(herincoATC, text, 1); ok {
		v = strings.ReplaceAll(v, "SOIKAO", "S01KA0")
		f.Set("COD ATC", strings.ReplaceAll(v, "O", "0"))
	}

	if err := herincoMedication(ctx, in, f); err != nil {
		return nil, err
	}

	// nothing herinco-specific was read; let the generic extractor try
	if f.Len() == 0 {
		return f, nil
	}

	nua := "0"
	if v, ok := submatch(herincoNUA, text, 1); ok && v != "" {
		nua = v
	}
	f.Set("NUA", nua)

	return reorder(f, herincoSchema), nil
}

func herincoMedication(ctx context.Context, in *Input, f *document.Fields) error {
	section := herincoSection.FindStringSubmatch(in.Text)
	if section == nil {
		return nil
	}
	m := herincoLine.FindStringSubmatch(strings.TrimSpace(section[2]))
	if m == nil {
		return nil
	}

	name := collapse(m[1])
	name = herincoBrand.ReplaceAllString(name, "(HIALTEARS)")
	name = herincoFrasco.ReplaceAllString(name, "FRASCO")
	name = strings.TrimSpace(trailingDot.ReplaceAllString(name, ""))

	name, err := in.medication(ctx, "NOMBRE GENERICO", -1, name)
	if err != nil {
		return err
	}
	f.Set("NOMBRE GENERICO", name)
	f.Set("CAN ENTR", m[2])
	f.Set("CAN PEND", m[3])
	f.Set("FORMULACION", strings.ToUpper(collapse(m[4])))
	return nil
}

// reorder returns the fields laid out in schema order
func reorder(f *document.Fields, schema []string) *document.Fields {
	out := document.NewFields()
	for _, key := range schema {
		if v, ok := f.Get(key); ok {
			out.Set(key, v)
		}
	}
	return out
}
