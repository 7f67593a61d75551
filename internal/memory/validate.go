package memory

import (
	"math"

	"github.com/rs/zerolog/log"
)

// TotalRow is a row whose total should equal the sum of its components
type TotalRow struct {
	Components []float64
	Total      float64
	Corrected  bool
}

// ValidateRow overwrites the stated total with the component sum when the
// two differ by more than max(1% of the total, 1). It reports whether the
// row was corrected.
func ValidateRow(row *TotalRow) bool {
	var sum float64
	for _, c := range row.Components {
		sum += c
	}

	tolerance := math.Max(math.Abs(row.Total)*0.01, 1)
	if math.Abs(row.Total-sum) <= tolerance {
		return false
	}

	log.Info().
		Float64("stated", row.Total).
		Float64("computed", sum).
		Msg("Row total corrected")
	row.Total = sum
	row.Corrected = true
	return true
}
