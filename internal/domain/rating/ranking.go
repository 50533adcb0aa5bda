package rating

import "fmt"

// Ranked is a chart score annotated with its 1-based position.
type Ranked struct {
	ChartScore
	Rank int
}

// BestN returns the player's n best plays, ordered by rating, then accuracy,
// then song id, then tier. Fewer than n plays yields all of them.
func BestN(scores []ChartScore, n int) ([]Ranked, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: n=%d, want at least 1", ErrInvalidParameter, n)
	}
	sorted := make([]ChartScore, len(scores))
	copy(sorted, scores)
	sortScores(sorted)
	if n > len(sorted) {
		n = len(sorted)
	}
	ranked := make([]Ranked, n)
	for i := 0; i < n; i++ {
		ranked[i] = Ranked{ChartScore: sorted[i], Rank: i + 1}
	}
	return ranked, nil
}

// Overall is the player's overall rating: the arithmetic mean of the top 30
// chart ratings, or of all of them when fewer exist. No plays means zero.
func Overall(scores []ChartScore) float64 {
	if len(scores) == 0 {
		return 0
	}
	sorted := make([]ChartScore, len(scores))
	copy(sorted, scores)
	sortScores(sorted)
	if len(sorted) > overallSize {
		sorted = sorted[:overallSize]
	}
	var sum float64
	for _, s := range sorted {
		sum += s.Rating
	}
	return sum / float64(len(sorted))
}
