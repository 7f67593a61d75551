package extraction

import (
	"context"
	"testing"

	"github.com/Caia-Tech/caia-extract/pkg/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const agingText = `DOCUMENTO
FAC-001
FAC-002
PROVEEDOR
ANDES CABLES 5AS
DURMAN COLOMBIA SAS
$100.00
$50.00
$200.00
$0.00
$0.00
$0.00
$0.00
$0.00
$0.00
$0.00
$400.00
$50.00`

func TestExtractAging_TextColumnsWithRepairs(t *testing.T) {
	in := NewInput(agingText, nil, testStore(t), DefaultThresholds())

	res, err := extractAging(context.Background(), in)
	require.NoError(t, err)

	table, ok := res.(*document.Tabular)
	require.True(t, ok)
	assert.Equal(t, agingSchema, table.Columns)
	assert.Equal(t, [][]string{
		{"FAC-001", "ANDES CABLES SAS", "100", "200", "0", "0", "0", "300"},
		{"FAC-002", "DURMAN COLOMBIA SAS", "50", "0", "0", "0", "0", "50"},
	}, table.Records())

	corrections := in.Corrections()
	require.Len(t, corrections, 2)
	assert.Equal(t, document.Correction{
		Field: "PROVEEDOR", Row: 0, Original: "ANDES CABLES 5AS", Corrected: "ANDES CABLES SAS", Reason: "known_name",
	}, corrections[0])
	assert.Equal(t, document.Correction{
		Field: "TOTAL", Row: 0, Original: "$400.00", Corrected: "300", Reason: "total_mismatch",
	}, corrections[1])
}

func TestExtractAging_TokensPreferred(t *testing.T) {
	var tokens []document.OCRToken
	addRow := func(y float64, cells ...string) {
		for i, c := range cells {
			tokens = append(tokens, document.OCRToken{Text: c, CenterX: float64(10 + i*100), CenterY: y, Height: 10, Confidence: 0.9})
		}
	}
	addRow(10, agingSchema...)
	addRow(40, "FAC-9", "COHAN MEDICAL", "$10", "$0", "$0", "$0", "$0", "$10")
	addRow(70, "stray", "token")

	in := NewInput("DOCUMENTO PROVEEDOR", tokens, testStore(t), DefaultThresholds())
	res, err := extractAging(context.Background(), in)
	require.NoError(t, err)

	table := res.(*document.Tabular)
	assert.Equal(t, [][]string{
		{"FAC-9", "COHAN MEDICAL", "10", "0", "0", "0", "0", "10"},
	}, table.Records())
	assert.Empty(t, in.Corrections())
}

func TestExtractAging_NoColumnsIsEmpty(t *testing.T) {
	in := NewInput("PROVEEDOR\nnada mas", nil, nil, DefaultThresholds())
	res, err := extractAging(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Len())
}

func TestExtractSales_AdvisorRows(t *testing.T) {
	text := "NOMBRE ASESOR PPTO MES PPTO A LA FECHA VALOR VENTAS % CUMPLIMIENTO % MARGEN\n" +
		"JUAN PEREZ GOMEZ $ 1.000.000 $ 500.000 $ 450.000 90.00% 25.50%\n" +
		"ANA RUIZ TORRES $ 2.000.000 $ 1.0OO.000 $ 1.200.000 120.00% 30.00%\n"

	res, err := extractSales(context.Background(), NewInput(text, nil, nil, DefaultThresholds()))
	require.NoError(t, err)

	table := res.(*document.Tabular)
	assert.Equal(t, [][]string{
		{"JUAN PEREZ GOMEZ", "$ 1.000.000", "$ 500.000", "$ 450.000", "90.00%", "25.50%"},
		{"ANA RUIZ TORRES", "$ 2.000.000", "$ 1.000.000", "$ 1.200.000", "120.00%", "30.00%"},
	}, table.Records())
}

func TestFormatPesos(t *testing.T) {
	assert.Equal(t, "$ 1.234.567", formatPesos("1234567"))
	assert.Equal(t, "$ 1.234.567", formatPesos("1.234.567"))
	assert.Equal(t, "$ 999", formatPesos("999"))
	assert.Equal(t, "$ 12.5", formatPesos("12.5"))
	assert.Equal(t, "-1.000", groupThousands(-1000))
}

func TestExtractTradeNames_PairsBlocks(t *testing.T) {
	text := "NOMBRE RUT\nACME COLOMBIA S.A.S*\nBETA LTDA\nNOMBRE COMERCIAL\nACME\nBETA $ A S\nGAMMA\n"

	res, err := extractTradeNames(context.Background(), NewInput(text, nil, nil, DefaultThresholds()))
	require.NoError(t, err)

	table := res.(*document.Tabular)
	assert.Equal(t, [][]string{
		{"ACME COLOMBIA S.A.S", "ACME"},
		{"BETA LTDA", "BETA S.A.S"},
		{"", "GAMMA"},
	}, table.Records())
}

func TestExtractHerinco_HeaderFields(t *testing.T) {
	text := "HERINCO ENTREGA DE MEDICAMENTOS\n" +
		"DOCUMENTO: CC 12345678\n" +
		"NOMBRES: MARIA LOPEZ\n" +
		"FORMULA: 1234567\n" +
		"FECHA: 2024-05-12\n" +
		"TELEFONO 8234567\n"

	res, err := extractHerinco(context.Background(), NewInput(text, nil, nil, DefaultThresholds()))
	require.NoError(t, err)

	f := res.(*document.Fields)
	assert.Equal(t, []string{"DOCUMENTO", "NOMBRES", "FORMULA", "FECHA", "TELEFONO", "NUA"}, f.Keys())
	v, _ := f.Get("DOCUMENTO")
	assert.Equal(t, "CC-12345678", v)
	v, _ = f.Get("FECHA")
	assert.Equal(t, "12/05/2024", v)
	v, _ = f.Get("NUA")
	assert.Equal(t, "0", v)
}

func TestExtractHerinco_NothingFoundIsEmpty(t *testing.T) {
	res, err := extractHerinco(context.Background(), NewInput("HERINCO ENTREGA", nil, nil, DefaultThresholds()))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Len())
}

func TestExtractVision_CompanyCorrected(t *testing.T) {
	text := "UT VISION INTEGRADOS SAS\n" +
		"Nit: 900123456\n" +
		"Paciente: MARIA LOPEZ\n" +
		"Edad: 45 años\n" +
		"Sexo: F\n"

	in := NewInput(text, nil, testStore(t), DefaultThresholds())
	res, err := extractVision(context.Background(), in)
	require.NoError(t, err)

	f := res.(*document.Fields)
	get := func(k string) string {
		v, ok := f.Get(k)
		require.True(t, ok, k)
		return v
	}
	assert.Equal(t, "900123456", get("Nit"))
	assert.Equal(t, "MARIA LOPEZ", get("Paciente"))
	assert.Equal(t, "45 años", get("Edad"))
	assert.Equal(t, "F", get("Sexo"))
	assert.Equal(t, "VISION INTEGRADOS SAS", get("Empresa"))
	assert.Equal(t, "N/A", get("Direccion"))
	assert.Equal(t, "", get("Estado Civil"))

	require.NotEmpty(t, in.Corrections())
	assert.Equal(t, "Empresa", in.Corrections()[0].Field)
	assert.Equal(t, -1, in.Corrections()[0].Row)
}
