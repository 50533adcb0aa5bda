// Package repository holds the persistence adapters: the in-memory player
// leaderboard and the SQLite-backed push accuracy cache.
package repository

import (
	"context"
	"time"
)

// Entry represents a leaderboard row.
type Entry struct {
	Rank      int
	PlayerID  string
	Rating    float64
	Charts    int // rated plays behind the overall rating
	UpdatedAt time.Time
}

// RankStore provides read/write access to the player rating leaderboard.
type RankStore interface {
	// Set replaces the player's overall rating. Ratings can move in either
	// direction, e.g. after a catalog reload rerates old plays.
	Set(ctx context.Context, playerID string, overall float64, charts int) error

	// Rank returns the current rank and rating for a player.
	// Returns ErrNotFound if the player is unknown.
	Rank(ctx context.Context, playerID string) (Entry, error)

	// TopN returns the top-N entries ordered by rating desc.
	TopN(ctx context.Context, n int) ([]Entry, error)

	// Count returns the number of players tracked in the leaderboard.
	Count(ctx context.Context) int
}
