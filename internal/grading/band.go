package grading

import (
	"math"

	"github.com/SAP-F-2025/exam-engine/internal/models"
)

// RoundBand rounds to the nearest half band, halves going up, and clamps
// the result into [0, 9]. Every aggregation path rounds through here.
func RoundBand(x float64) float64 {
	if math.IsNaN(x) {
		return models.MinBand
	}
	return ClampBand(math.Floor(x*2+0.5) / 2)
}

func ClampBand(x float64) float64 {
	switch {
	case math.IsNaN(x), x < models.MinBand:
		return models.MinBand
	case x > models.MaxBand:
		return models.MaxBand
	default:
		return x
	}
}
