package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRow(t *testing.T) {
	tests := []struct {
		name      string
		row       TotalRow
		corrected bool
		total     float64
	}{
		{name: "total off by a component", row: TotalRow{Components: []float64{100, 200, 0, 0, 0}, Total: 400}, corrected: true, total: 300},
		{name: "within one unit", row: TotalRow{Components: []float64{100, 200}, Total: 300.9}, corrected: false, total: 300.9},
		{name: "within one percent", row: TotalRow{Components: []float64{100000, 200000}, Total: 302000}, corrected: false, total: 302000},
		{name: "missing total", row: TotalRow{Components: []float64{10, 20}, Total: 0}, corrected: true, total: 30},
		{name: "negative total", row: TotalRow{Components: []float64{-100, -50}, Total: -150}, corrected: false, total: -150},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := tt.row
			assert.Equal(t, tt.corrected, ValidateRow(&row))
			assert.Equal(t, tt.corrected, row.Corrected)
			assert.InDelta(t, tt.total, row.Total, 1e-9)
		})
	}
}
