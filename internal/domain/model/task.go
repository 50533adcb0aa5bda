// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/Sczr0/Phi-Backend/internal/domain/rating"
)

// RefreshTask carries one player's rated plays through the refresh
// pipeline: the worker rebuilds the leaderboard row and warms the
// prediction cache from it.
type RefreshTask struct {
	TaskID     string              // unique id, also used for tracing
	PlayerID   string              // owner of the save the scores came from
	Scores     []rating.ChartScore // already enriched and rated plays
	EnqueuedAt time.Time
}
