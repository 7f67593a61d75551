package extraction

import (
	"context"
	"regexp"
	"strings"

	"github.com/Caia-Tech/caia-extract/internal/memory"
	"github.com/Caia-Tech/caia-extract/pkg/document"
)

var visionSchema = []string{
	"Código del Prestador", "Nit", "Dirección", "Teléfono", "WEB", "Identificacion", "Paciente",
	"Fecha Ingreso", "Hora Ing", "Ingreso", "Fecha Atencion", "Fecha Naci", "Edad", "Sexo",
	"Nro.Historia", "Tipo Usuario", "Telefono", "Estrato", "Municipio", "Direccion", "Estado Civil",
	"Empresa", "CONTRATO", "Acompañante", "Tel. Acompañante", "Dx Principal", "Dx Relacionado 1",
	"Medico", "Código", "Descripción", "Cantidad", "Posologia", "Dias",
}

var (
	visionProvider      = regexp.MustCompile(`(?i)C[oó]digo\s+del\s+Prestador:\s*0?(\d{11})`)
	visionNit           = regexp.MustCompile(`(?i)Nit:\s*(\d{9,12})`)
	visionAddress       = regexp.MustCompile(`(?i)Direcci[oó]n:\s*([A-Z0-9][A-Z0-9 \t#]+?)\s*(?:\n|Tel[eé]fono|$)`)
	visionPhone         = regexp.MustCompile(`(?i)Tel[eé]fono:\s*(\d{7,10})`)
	visionWeb           = regexp.MustCompile(`(?i)(www\.[a-z0-9.]+\.com(?:\.co)?)`)
	visionID            = regexp.MustCompile(`(CC|TI|CE|PA)\s*-\s*(\d{6,12})`)
	visionPatient       = regexp.MustCompile(`(?i)Paciente:\s*([A-ZÁÉÍÓÚÑ][A-ZÁÉÍÓÚÑa-záéíóúñ \t]+?)\s*(?:\n|\d{4}|$)`)
	visionAdmitDate     = regexp.MustCompile(`(\d{4})/(\d{2})/(\d{2})\s+Hora\s+Ing:`)
	visionAdmitTime     = regexp.MustCompile(`(?i)Hora\s+Ing:\s*(\d{1,2}:\d{2})`)
	visionAdmission     = regexp.MustCompile(`(?i)Ingreso:\s*(\d{6,10})`)
	visionOutpatient    = regexp.MustCompile(`(?s)001\s*-\s*Consulta\s+Externa.*?(\d{7})`)
	visionTimestamp     = regexp.MustCompile(`(\d{4})/(\d{2})/(\d{2})\s+(\d{1,2}:\d{2})`)
	visionBirth         = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})\s+Edad:`)
	visionAge           = regexp.MustCompile(`(?i)Edad:\s*(\d+)\s+a[ñn]os`)
	visionSexAfterID    = regexp.MustCompile(`(\d{7})\s+([MF])\s+`)
	visionSex           = regexp.MustCompile(`(?i)Sexo:\s*([MF])`)
	visionHistory       = regexp.MustCompile(`(?i)CC(\d{8,10})\s+Tipo\s+Usuario:`)
	visionUserType      = regexp.MustCompile(`(?i)Tipo\s+Usuario:\s*([A-ZÁÉÍÓÚÑa-záéíóúñ]+)`)
	tenDigits           = regexp.MustCompile(`\d{10}`)
	visionStratum       = regexp.MustCompile(`(?i)Estrato:\s*([A-ZÁÉÍÓÚÑa-záéíóúñ0-9 \t]+?)\s*(?:\n|Municipio|$)`)
	visionTown          = regexp.MustCompile(`(?i)Municipio:\s*([A-ZÁÉÍÓÚÑ]+)`)
	visionHomeAddress   = regexp.MustCompile(`(?is)\d{10}\s+Estrato:.*?\n\s*(N/A|[A-Z0-9][^\n]{0,50}?)\s+Estado\s+Civil`)
	visionMarital       = regexp.MustCompile(`(?i)Estado\s+Civil:[ \t]*([A-ZÁÉÍÓÚÑa-záéíóúñ \t]*?)[ \t]*(?:\n|$)`)
	visionCompany       = regexp.MustCompile(`(?i)UT\s+VISION\s+INTEGRADOS[^\n]*`)
	visionContract      = regexp.MustCompile(`(?i)CONTRATO:?\s*([A-Z][A-Z0-9 \t\-]{3,60}?)\s*(?:\n|$)`)
	visionCompanion     = regexp.MustCompile(`(?i)\n\s*(SOLA|SOLO|[A-Z]+)\s+Tel\.\s+Acompa`)
	visionAlone         = regexp.MustCompile(`\bSOL[AO]\b`)
	visionCompanionTel  = regexp.MustCompile(`(?i)Tel\.\s+Acompa[ñn]ante:\s*(\d{10})`)
	visionDiagnosis     = regexp.MustCompile(`(?i)(H\d{3,4}\s*-\s*[A-ZÁÉÍÓÚÑa-záéíóúñ \t]+?)\s*(?:\n|H\d{3}|$)`)
	visionRelated       = regexp.MustCompile(`(?i)H\d{3,4}\s*-\s*[^\n]+\n\s*(H\d{3,4})`)
	visionDoctor        = regexp.MustCompile(`(?is)RECETA\s+MEDICA[^\n]*\n[^\n]*\n[^\n]*\n\s*([A-ZÁÉÍÓÚÑ][A-ZÁÉÍÓÚÑa-záéíóúñ \t]+?)\s*(?:\n|Datos|$)`)
	visionCode          = regexp.MustCompile(`(?:^|\D)(\d{9})(?:\D|$)`)
	visionDrugLine      = regexp.MustCompile(`(?i)((?:HIALURONATO|ACETAMINOFEN|IBUPROFENO|DICLOFENACO|KETOROLACO|TIMOLOL|LATANOPROST|CARBOXIMETILCELULOSA)[^\n]+)`)
	visionPresentation  = regexp.MustCompile(`(?i)((?:SOLUCION|SUSPENSION)\s+(?:OFTALMICA|ORAL|TOPICA)[^*\n]+)`)
	visionDropper       = regexp.MustCompile(`(?i)(GOTERO\s+EN\s+PEBD[^:\n]+)`)
	visionQuantity      = regexp.MustCompile(`\*\s*(\d+)\s*\(([A-Z]+)\)`)
	visionQuantityLoose = regexp.MustCompile(`(\d+)\s*\(([A-Z]+)\)`)
	visionDosage        = regexp.MustCompile(`(?i)(APLICAR\s+\d+\s+GOTAS?\s+CADA\s+\d+\s+HORAS\s+EN[^\n]*)`)
	visionBothEyes      = regexp.MustCompile(`(?i)(AMBOS\s+OJOS)`)
	trailingNumber      = regexp.MustCompile(`\s+\d+$`)
	visionDays          = regexp.MustCompile(`(?i)Dias\s*:\s*([A-Z0-9]+)`)
	visionDaysAfter     = regexp.MustCompile(`(?i)HORAS\s+EN\s+(\d+)`)
	squareBrackets      = regexp.MustCompile(`[\[\]]+`)
)

// extractVision reads an ophthalmology prescription
func extractVision(ctx context.Context, in *Input) (document.Result, error) {
	text := in.Text
	f := document.NewFields()
	set := func(key string, re *regexp.Regexp) {
		if v, ok := submatch(re, text, 1); ok && v != "" {
			f.Set(key, v)
		}
	}

	set("Código del Prestador", visionProvider)
	set("Nit", visionNit)
	set("Dirección", visionAddress)
	set("Teléfono", visionPhone)
	if v, ok := submatch(visionWeb, text, 1); ok {
		f.Set("WEB", strings.ToLower(v))
	}
	if m := visionID.FindStringSubmatch(text); m != nil {
		f.Set("Identificacion", m[1]+" - "+m[2])
	}
	set("Paciente", visionPatient)
	if m := visionAdmitDate.FindStringSubmatch(text); m != nil {
		f.Set("Fecha Ingreso", m[3]+"/"+m[2]+"/"+m[1])
	}
	set("Hora Ing", visionAdmitTime)
	if v, ok := submatch(visionAdmission, text, 1); ok {
		f.Set("Ingreso", v)
	} else {
		set("Ingreso", visionOutpatient)
	}
	if f.Has("Fecha Ingreso") {
		// the first timestamp is the admission, the second the consultation
		if all := visionTimestamp.FindAllStringSubmatch(text, 2); len(all) >= 2 {
			m := all[1]
			f.Set("Fecha Atencion", m[3]+"/"+m[2]+"/"+m[1]+" "+m[4])
		}
	}
	if m := visionBirth.FindStringSubmatch(text); m != nil {
		f.Set("Fecha Naci", m[3]+"/"+m[2]+"/"+m[1])
	}
	if v, ok := submatch(visionAge, text, 1); ok {
		f.Set("Edad", v+" años")
	}
	if v, ok := submatch(visionSexAfterID, text, 2); ok {
		f.Set("Sexo", strings.ToUpper(v))
	} else if v, ok := submatch(visionSex, text, 1); ok {
		f.Set("Sexo", strings.ToUpper(v))
	}
	if v, ok := submatch(visionHistory, text, 1); ok {
		f.Set("Nro.Historia", "CC"+v)
	}
	set("Tipo Usuario", visionUserType)
	phones := tenDigits.FindAllString(text, -1)
	if len(phones) >= 2 {
		f.Set("Telefono", phones[1])
	}
	set("Estrato", visionStratum)
	set("Municipio", visionTown)

	if v, ok := submatch(visionCompany, text, 0); ok {
		name, err := in.supplier(ctx, "Empresa", -1, collapse(v))
		if err != nil {
			return nil, err
		}
		f.Set("Empresa", name)
	}
	set("CONTRATO", visionContract)

	if v, ok := submatch(visionCompanion, text, 1); ok {
		f.Set("Acompañante", strings.ToUpper(v))
	} else if v := visionAlone.FindString(text); v != "" {
		f.Set("Acompañante", v)
	}
	if v, ok := submatch(visionCompanionTel, text, 1); ok {
		f.Set("Tel. Acompañante", v)
	} else if len(phones) >= 2 {
		f.Set("Tel. Acompañante", phones[1])
	}
	set("Dx Principal", visionDiagnosis)
	set("Dx Relacionado 1", visionRelated)
	set("Medico", visionDoctor)

	if v, ok := submatch(visionCode, text, 1); ok {
		f.Set("Código", memory.CleanCode(v))
	}
	if err := visionMedication(ctx, in, f); err != nil {
		return nil, err
	}

	if f.Len() == 0 {
		return f, nil
	}

	if v, ok := submatch(visionHomeAddress, text, 1); ok {
		f.Set("Direccion", v)
	} else {
		f.Set("Direccion", "N/A")
	}
	if v, ok := submatch(visionMarital, text, 1); ok {
		f.Set("Estado Civil", v)
	} else {
		f.Set("Estado Civil", "")
	}

	return reorder(f, visionSchema), nil
}

func visionMedication(ctx context.Context, in *Input, f *document.Fields) error {
	text := in.Text

	var parts []string
	if v, ok := submatch(visionDrugLine, text, 1); ok {
		parts = append(parts, v)
	}
	if v, ok := submatch(visionPresentation, text, 1); ok {
		parts = append(parts, strings.TrimSpace(squareBrackets.ReplaceAllString(v, "")))
	}
	if v, ok := submatch(visionDropper, text, 1); ok {
		v = strings.ReplaceAll(v, `"`, "")
		parts = append(parts, strings.TrimLeft(v, ". "))
	}
	if len(parts) > 0 {
		desc, err := in.medication(ctx, "Descripción", -1, collapse(strings.Join(parts, " ")))
		if err != nil {
			return err
		}
		f.Set("Descripción", desc)
	}

	if m := visionQuantity.FindStringSubmatch(text); m != nil {
		f.Set("Cantidad", m[1]+" ("+m[2]+")")
	} else if m := visionQuantityLoose.FindStringSubmatch(text); m != nil {
		f.Set("Cantidad", m[1]+" ("+m[2]+")")
	}

	var dosage []string
	if v, ok := submatch(visionDosage, text, 1); ok {
		dosage = append(dosage, v)
	}
	if v, ok := submatch(visionBothEyes, text, 1); ok && !strings.Contains(strings.ToUpper(strings.Join(dosage, " ")), "AMBOS OJOS") {
		dosage = append(dosage, v)
	}
	if len(dosage) > 0 {
		f.Set("Posologia", strings.TrimSpace(trailingNumber.ReplaceAllString(collapse(strings.Join(dosage, " ")), "")))
	}

	if v, ok := submatch(visionDays, text, 1); ok {
		f.Set("Dias", v)
	} else if v, ok := submatch(visionDaysAfter, text, 1); ok {
		f.Set("Dias", v)
	}
	return nil
}
