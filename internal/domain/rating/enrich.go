package rating

import (
	"sort"

	"github.com/Sczr0/Phi-Backend/internal/domain/catalog"
	"github.com/Sczr0/Phi-Backend/internal/domain/save"
)

// Enrich joins decoded game records with the catalog and rates each play.
// Charts without a known difficulty constant are skipped rather than guessed
// at; plays with an out-of-range accuracy fail the whole call.
func Enrich(records save.GameRecord, cat *catalog.Catalog) ([]ChartScore, error) {
	scores := make([]ChartScore, 0, len(records)*2)
	for songID, tiers := range records {
		for tier, raw := range tiers {
			entry, ok := cat.Lookup(songID, tier)
			if !ok {
				continue
			}
			r, err := ChartRating(raw.Accuracy, entry.Constant)
			if err != nil {
				return nil, err
			}
			scores = append(scores, ChartScore{
				SongID:    songID,
				SongName:  entry.SongName,
				Tier:      tier,
				Score:     raw.Score,
				Accuracy:  raw.Accuracy,
				FullCombo: raw.FullCombo,
				Constant:  entry.Constant,
				Rating:    r,
			})
		}
	}
	// Map iteration order is random; callers get a stable result.
	sortScores(scores)
	return scores, nil
}

// sortScores orders plays best-first with a full tie chain so equal ratings
// still produce a deterministic order.
func sortScores(scores []ChartScore) {
	sort.Slice(scores, func(i, j int) bool {
		a, b := scores[i], scores[j]
		if a.Rating != b.Rating {
			return a.Rating > b.Rating
		}
		if a.Accuracy != b.Accuracy {
			return a.Accuracy > b.Accuracy
		}
		if a.SongID != b.SongID {
			return a.SongID < b.SongID
		}
		return a.Tier < b.Tier
	})
}
