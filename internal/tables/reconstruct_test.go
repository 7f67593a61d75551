package tables

import (
	"fmt"
	"testing"

	"github.com/Caia-Tech/caia-extract/pkg/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rowTokens(y float64, n int, prefix string) []document.OCRToken {
	tokens := make([]document.OCRToken, 0, n)
	// emitted right to left so ordering by x is actually exercised
	for i := n - 1; i >= 0; i-- {
		tokens = append(tokens, document.OCRToken{
			Text:       fmt.Sprintf("%s%d", prefix, i),
			CenterX:    float64(50 + i*100),
			CenterY:    y + float64(i%3) - 1,
			Height:     20,
			Confidence: 0.9,
		})
	}
	return tokens
}

func TestReconstruct_TwoRowsOfEight(t *testing.T) {
	tokens := append(rowTokens(140, 8, "b"), rowTokens(100, 8, "a")...)

	table := Reconstruct(tokens, 8)

	require.Len(t, table.Rows, 2)
	assert.Equal(t, 8, table.Columns)
	assert.Equal(t, []string{"a0", "a1", "a2", "a3", "a4", "a5", "a6", "a7"}, table.Rows[0])
	assert.Equal(t, []string{"b0", "b1", "b2", "b3", "b4", "b5", "b6", "b7"}, table.Rows[1])
	assert.NoError(t, table.Validate())
}

func TestReconstruct_StrayTokenDropsRow(t *testing.T) {
	tokens := append(rowTokens(100, 8, "a"), rowTokens(140, 8, "b")...)
	tokens = append(tokens, document.OCRToken{Text: "stray", CenterX: 900, CenterY: 101, Height: 20})

	table, stats := ReconstructWithStats(tokens, 8)

	require.Len(t, table.Rows, 1)
	assert.Equal(t, "b0", table.Rows[0][0])
	assert.Equal(t, 2, stats.Candidates)
	assert.Equal(t, 1, stats.Dropped)
	assert.InDelta(t, 12.0, stats.Tolerance, 0.001)
}

func TestReconstruct_ModalColumnCount(t *testing.T) {
	var tokens []document.OCRToken
	tokens = append(tokens, rowTokens(100, 3, "a")...)
	tokens = append(tokens, rowTokens(140, 3, "b")...)
	tokens = append(tokens, rowTokens(180, 5, "c")...)

	table := Reconstruct(tokens, 0)

	assert.Equal(t, 3, table.Columns)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "a0", table.Rows[0][0])
	assert.Equal(t, "b2", table.Rows[1][2])
}

func TestReconstruct_TiesOrderedByX(t *testing.T) {
	tokens := []document.OCRToken{
		{Text: "right", CenterX: 300, CenterY: 50, Height: 10},
		{Text: "left", CenterX: 10, CenterY: 50, Height: 10},
		{Text: "mid", CenterX: 150, CenterY: 50, Height: 10},
	}
	table := Reconstruct(tokens, 3)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, []string{"left", "mid", "right"}, table.Rows[0])
}

func TestReconstruct_Empty(t *testing.T) {
	table, stats := ReconstructWithStats(nil, 8)
	assert.Empty(t, table.Rows)
	assert.Equal(t, 8, table.Columns)
	assert.Equal(t, DefaultTolerance, stats.Tolerance)
}

func TestTolerance(t *testing.T) {
	tests := []struct {
		name   string
		tokens []document.OCRToken
		want   float64
	}{
		{name: "no tokens", tokens: nil, want: 15},
		{name: "zero heights", tokens: []document.OCRToken{{Height: 0}}, want: 15},
		{name: "mean height", tokens: []document.OCRToken{{Height: 10}, {Height: 30}}, want: 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Tolerance(tt.tokens), 1e-9)
		})
	}
}

func TestLines_KeepsEveryRow(t *testing.T) {
	tokens := append(rowTokens(140, 2, "b"), rowTokens(100, 3, "a")...)

	assert.Equal(t, []string{"a0  a1  a2", "b0  b1"}, Lines(tokens))
	assert.Empty(t, Lines(nil))
}
