// Package types contains common wire types used across the HTTP surface.
package types

// LeaderboardEntry represents a leaderboard row as served to clients.
type LeaderboardEntry struct {
	Rank     int     `json:"rank"`
	PlayerID string  `json:"player_id"`
	Rating   float64 `json:"rating"`
	Charts   int     `json:"charts"`
}

// BestScore represents one ranked play in a best-N response.
type BestScore struct {
	Rank      int     `json:"rank"`
	SongID    string  `json:"song_id"`
	SongName  string  `json:"song_name"`
	Tier      string  `json:"tier"`
	Score     uint32  `json:"score"`
	Accuracy  float64 `json:"accuracy"`
	FullCombo bool    `json:"full_combo"`
	Constant  float64 `json:"constant"`
	Rating    float64 `json:"rating"`
}

// RKSResult carries a player's enriched records plus their overall rating,
// both exact and rounded to two decimals.
type RKSResult struct {
	Exact   float64     `json:"exact"`
	Rounded float64     `json:"rounded"`
	Records []BestScore `json:"records"`
}

// ChartDetail describes one chart of a song.
type ChartDetail struct {
	Tier     string  `json:"tier"`
	Constant float64 `json:"constant"`
}

// SongDetail is the metadata answer for one resolved song.
type SongDetail struct {
	SongID   string        `json:"song_id"`
	SongName string        `json:"song_name"`
	Composer string        `json:"composer,omitempty"`
	Aliases  []string      `json:"aliases,omitempty"`
	Charts   []ChartDetail `json:"charts,omitempty"`
}

// SongResolution is the outcome of resolving a free-form song query.
type SongResolution struct {
	Kind       string   `json:"kind"`
	SongID     string   `json:"song_id,omitempty"`
	Candidates []string `json:"candidates,omitempty"`
}

// PushAcc represents a push accuracy answer for one chart.
type PushAcc struct {
	SongID         string  `json:"song_id"`
	Tier           string  `json:"tier"`
	TargetAccuracy float64 `json:"target_accuracy,omitempty"`
	Unreachable    bool    `json:"unreachable"`
}
