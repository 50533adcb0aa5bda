// Package predictor computes push accuracies: the minimal accuracy a player
// needs on a chart for its rating to climb above their current best-play
// cutoff. Results are cached per (player, song, tier) with a cooldown so
// repeated queries against an unchanged score do not recompute or rewrite.
package predictor

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/Sczr0/Phi-Backend/internal/domain/catalog"
	"github.com/Sczr0/Phi-Backend/internal/domain/rating"
	"github.com/Sczr0/Phi-Backend/internal/domain/save"
)

const (
	// accuracyStep is the resolution of reported target accuracies.
	accuracyStep = 0.01
	// defaultCooldown bounds how often one chart is recomputed per player.
	defaultCooldown = 24 * time.Hour
	// defaultRankingSize matches the overall-rating window.
	defaultRankingSize = 30
)

// Prediction is the outcome for one chart. TargetAccuracy is meaningful only
// when Unreachable is false.
type Prediction struct {
	TargetAccuracy float64
	Unreachable    bool
}

// Entry is one cached prediction row.
type Entry struct {
	PlayerID            string
	SongID              string
	Tier                save.Tier
	TargetAccuracy      float64
	Unreachable         bool
	LastCheckedAccuracy float64
	CheckedAt           time.Time
}

// Store persists prediction rows. Get reports whether a row exists; Put
// inserts or replaces atomically.
type Store interface {
	Get(ctx context.Context, playerID, songID string, tier save.Tier) (Entry, bool, error)
	Put(ctx context.Context, e Entry) error
}

// Option applies a configuration option to the Predictor.
type Option func(*Predictor)

// WithCooldown overrides how long a cached prediction stays fresh.
func WithCooldown(d time.Duration) Option {
	return func(p *Predictor) {
		if d > 0 {
			p.cooldown = d
		}
	}
}

// WithRankingSize overrides how many best plays define the cutoff.
func WithRankingSize(n int) Option {
	return func(p *Predictor) {
		if n > 0 {
			p.size = n
		}
	}
}

// WithClock overrides the time source, e.g. for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Predictor) {
		if now != nil {
			p.now = now
		}
	}
}

// Predictor computes and caches push accuracies. Safe for concurrent use as
// long as the Store is.
type Predictor struct {
	store    Store
	cooldown time.Duration
	size     int
	now      func() time.Time
}

// New creates a Predictor over the given store.
func New(store Store, opts ...Option) *Predictor {
	p := &Predictor{
		store:    store,
		cooldown: defaultCooldown,
		size:     defaultRankingSize,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Check returns the push accuracy for one chart, serving a cached row when
// the player's accuracy on the chart is unchanged and the row is still
// inside the cooldown. Otherwise it recomputes and upserts. The second
// return reports whether the answer came from the cache.
func (p *Predictor) Check(ctx context.Context, playerID string, scores []rating.ChartScore, chart catalog.Entry) (Prediction, bool, error) {
	current := currentAccuracy(scores, chart.SongID, chart.Tier)

	cached, ok, err := p.store.Get(ctx, playerID, chart.SongID, chart.Tier)
	if err != nil {
		return Prediction{}, false, fmt.Errorf("prediction cache get: %w", err)
	}
	if ok && cached.LastCheckedAccuracy == current && p.now().Sub(cached.CheckedAt) < p.cooldown {
		return Prediction{TargetAccuracy: cached.TargetAccuracy, Unreachable: cached.Unreachable}, true, nil
	}

	pred := Target(chart.Constant, Cutoff(scores, p.size))
	err = p.store.Put(ctx, Entry{
		PlayerID:            playerID,
		SongID:              chart.SongID,
		Tier:                chart.Tier,
		TargetAccuracy:      pred.TargetAccuracy,
		Unreachable:         pred.Unreachable,
		LastCheckedAccuracy: current,
		CheckedAt:           p.now(),
	})
	if err != nil {
		return Prediction{}, false, fmt.Errorf("prediction cache put: %w", err)
	}
	return pred, false, nil
}

// Cutoff is the rating a new play must beat: the n-th best chart rating, or
// zero when the player has fewer than n rated plays.
func Cutoff(scores []rating.ChartScore, n int) float64 {
	if n < 1 || len(scores) < n {
		return 0
	}
	best, err := rating.BestN(scores, n)
	if err != nil {
		return 0
	}
	return best[n-1].Rating
}

// Target computes the minimal accuracy, in 0.01 steps, whose rating strictly
// exceeds the cutoff. The chart is unreachable when even a perfect play
// cannot beat the cutoff.
func Target(constant, cutoff float64) Prediction {
	if constant+1.0 <= cutoff {
		return Prediction{Unreachable: true}
	}
	if cutoff <= 0 {
		return Prediction{TargetAccuracy: 70}
	}

	// Invert the quadratic ramp for the exact crossing point, then walk
	// upward in reporting steps until the rating actually clears the cutoff.
	exact := 55 + 45*math.Sqrt(cutoff/constant)
	hundredths := int(math.Ceil(exact/accuracyStep - 1e-9))
	if hundredths < 7000 {
		hundredths = 7000
	}
	for ; hundredths < 10000; hundredths++ {
		acc := float64(hundredths) * accuracyStep
		if r, err := rating.ChartRating(acc, constant); err == nil && r > cutoff {
			return Prediction{TargetAccuracy: acc}
		}
	}
	// Only a perfect play clears the cutoff.
	return Prediction{TargetAccuracy: 100}
}

func currentAccuracy(scores []rating.ChartScore, songID string, tier save.Tier) float64 {
	for _, s := range scores {
		if s.SongID == songID && s.Tier == tier {
			return s.Accuracy
		}
	}
	return 0
}
