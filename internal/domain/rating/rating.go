// Package rating turns raw per-chart scores into single-chart ratings and
// aggregates them into rankings and an overall player rating.
package rating

import (
	"fmt"
	"math"

	"github.com/Sczr0/Phi-Backend/internal/domain/save"
)

// Thresholds of the single-chart rating curve.
const (
	// minRatedAccuracy is the accuracy below which a play earns no rating.
	minRatedAccuracy = 70.0
	// perfectBonus is added to the difficulty constant for a 100% play.
	perfectBonus = 1.0
	// overallSize is how many top ratings feed the overall player rating.
	overallSize = 30
)

// ChartScore is one played chart joined with its catalog entry.
type ChartScore struct {
	SongID    string
	SongName  string
	Tier      save.Tier
	Score     uint32
	Accuracy  float64
	FullCombo bool
	Constant  float64
	Rating    float64
}

// ChartRating computes the rating a single play earns. Accuracy below 70
// earns nothing, exactly 100 earns the constant plus a flat bonus, and
// anything between follows a quadratic ramp that reaches the bare constant
// at 100.
func ChartRating(accuracy, constant float64) (float64, error) {
	if math.IsNaN(accuracy) || accuracy < 0 || accuracy > 100 {
		return 0, fmt.Errorf("%w: accuracy %v outside [0, 100]", ErrInvalidScore, accuracy)
	}
	switch {
	case accuracy < minRatedAccuracy:
		return 0, nil
	case accuracy == 100:
		return constant + perfectBonus, nil
	default:
		factor := (accuracy - 55) / 45
		return factor * factor * constant, nil
	}
}
