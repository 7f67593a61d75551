package extraction

import (
	"context"
	"errors"
	"testing"

	"github.com/Caia-Tech/caia-extract/pkg/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingRecognizer struct{}

func (failingRecognizer) Name() string { return "failing" }

func (failingRecognizer) Recognize(context.Context, string) ([]Entity, error) {
	return nil, errors.New("model offline")
}

func TestGenericExtractor_EndToEnd(t *testing.T) {
	text := "Paciente: Maria Lopez Gomez\n" +
		"Fecha: 12/05/2024\n" +
		"Email: maria@example.com\n"

	g := NewGenericExtractor(HeuristicRecognizer{})
	f, auxiliary, err := g.Extract(context.Background(), NewInput(text, nil, nil, DefaultThresholds()))
	require.NoError(t, err)
	assert.Empty(t, auxiliary)

	get := func(k string) string {
		v, ok := f.Get(k)
		require.True(t, ok, k)
		return v
	}
	assert.Equal(t, "Maria Lopez Gomez", get("Auto_Paciente"))
	assert.Equal(t, "12/05/2024", get("Fecha_1"))
	assert.Equal(t, "maria@example.com", get("Email_1"))
	assert.Equal(t, "Maria Lopez Gomez", get("IA_Persona_1"))

	for _, absent := range []string{"Radicado", "Numero_Resolucion", "Estado_Decision", "Cedula_1", "NIT_1", "Fecha_2"} {
		assert.False(t, f.Has(absent), absent)
	}
	f.Range(func(k, v string) bool {
		assert.NotEmpty(t, v, k)
		return true
	})
}

func TestGenericExtractor_DecisionAndIdentifiers(t *testing.T) {
	text := "RESOLUCION No. 2024-117\nCC 1.061.234.567\nNIT 900.123.456-7\nLa solicitud fue APROBADA y queda APROBADO el tramite"

	f, _, err := NewGenericExtractor(nil).Extract(context.Background(), NewInput(text, nil, nil, DefaultThresholds()))
	require.NoError(t, err)

	v, _ := f.Get("Numero_Resolucion")
	assert.Equal(t, "2024-117", v)
	v, _ = f.Get("Cedula_1")
	assert.Equal(t, "1061234567", v)
	v, _ = f.Get("NIT_1")
	assert.Equal(t, "900.123.456-7", v)
	v, _ = f.Get("Estado_Decision")
	assert.Equal(t, "APROBADO", v)
}

func TestGenericExtractor_RecognizerFailureIsNotFatal(t *testing.T) {
	g := NewGenericExtractor(failingRecognizer{})
	f, _, err := g.Extract(context.Background(), NewInput("Fecha: 01/02/2023", nil, nil, DefaultThresholds()))
	require.NoError(t, err)
	assert.True(t, f.Has("Fecha_1"))
	for _, k := range f.Keys() {
		assert.NotContains(t, k, "IA_")
	}
}

func TestGenericExtractor_AutocorrectsSuppliersAndAmounts(t *testing.T) {
	text := "Proveedor: ANDES CABLES 5AS\nValor Total: 1.250.000\n"
	in := NewInput(text, nil, testStore(t), DefaultThresholds())

	f, _, err := NewGenericExtractor(nil).Extract(context.Background(), in)
	require.NoError(t, err)

	v, _ := f.Get("Auto_Proveedor")
	assert.Equal(t, "ANDES CABLES SAS", v)
	v, _ = f.Get("Auto_Valor_Total")
	assert.Equal(t, "1250000", v)

	reasons := map[string]string{}
	for _, c := range in.Corrections() {
		reasons[c.Field] = c.Reason
	}
	assert.Equal(t, "known_name", reasons["Auto_Proveedor"])
	assert.Equal(t, "number_normalized", reasons["Auto_Valor_Total"])
}

func TestGenericExtractor_AuxiliaryTables(t *testing.T) {
	text := "Detalle\n| Producto | Cantidad |\n|---|---|\n| Cable | 3 |\n| Tubo | 7 |\n"

	_, auxiliary, err := NewGenericExtractor(nil).Extract(context.Background(), NewInput(text, nil, nil, DefaultThresholds()))
	require.NoError(t, err)
	require.Len(t, auxiliary, 1)
	assert.Equal(t, []string{"Producto", "Cantidad"}, auxiliary[0].Headers)
	assert.Equal(t, [][]string{{"Cable", "3"}, {"Tubo", "7"}}, auxiliary[0].Rows)
}

func TestExtractPairs_ColonAndDash(t *testing.T) {
	pairs := ExtractPairs("Nombre Paciente: Juan Perez\nCIUDAD DE ENTREGA — POPAYAN CAUCA")

	v, ok := pairs.Get("Nombre_Paciente")
	require.True(t, ok)
	assert.Equal(t, "Juan Perez", v)
	v, ok = pairs.Get("CIUDAD_DE_ENTREGA")
	require.True(t, ok)
	assert.Equal(t, "POPAYAN CAUCA", v)
}

func TestExtractPairs_ValueCutAtNextLabel(t *testing.T) {
	pairs := ExtractPairs("Direccion: CALLE 5 # 10-20 Telefono 3001234567\n")

	v, ok := pairs.Get("Direccion")
	require.True(t, ok)
	assert.Equal(t, "CALLE 5 # 10-20", v)
}

func TestExtractPairs_MedicationDetails(t *testing.T) {
	pairs := ExtractPairs("APLICAR 1 GOTA EN CADA OJO CADA 8 HORAS DURANTE 30 DIAS\nLOTE AB123 FecV 2026-01-31")

	v, _ := pairs.Get("INSTRUCCIONES")
	assert.Equal(t, "30 DIAS", v)
	v, _ = pairs.Get("POSOLOGIA")
	assert.Contains(t, v, "APLICAR 1 GOTA")
	v, _ = pairs.Get("LOTE")
	assert.Equal(t, "AB123", v)
	v, _ = pairs.Get("FECHA_VENCIMIENTO")
	assert.Equal(t, "2026-01-31", v)
	assert.False(t, pairs.Has("MEDICAMENTO"))
}

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "Direccion", NormalizeKey("Dirección"))
	assert.Equal(t, "Tel_Acompanante", NormalizeKey(" Tel. Acompañante "))
	assert.Equal(t, "NUMERO_DE_FORMULA", NormalizeKey("NÚMERO  DE -- FÓRMULA"))
}

func TestCleanValue_EarliestCut(t *testing.T) {
	assert.Equal(t, "Juan", cleanValue("Juan   Sexo M Edad 40"))
	assert.Equal(t, "sin cortes", cleanValue("sin\tcortes"))
	assert.Equal(t, "", cleanValue(""))
}

func TestFields_ResultKind(t *testing.T) {
	var res document.Result = ExtractPairs("Nombre Paciente: Juan Perez")
	assert.Equal(t, document.KindFields, res.Kind())
}
