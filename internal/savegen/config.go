// Package savegen generates synthetic save blobs and drives them through a
// running service instance. It doubles as a smoke test harness and a fixture
// generator for the save pipeline.
package savegen

import "time"

// Config holds configuration for a generation run.
type Config struct {
	BaseURL    string        // base URL of the service; empty skips submission
	NumPlayers int           // number of synthetic players
	NumSongs   int           // size of the synthetic song pool
	TopN       int           // number of leaderboard entries to fetch
	Workers    int           // number of concurrent submitters
	Timeout    time.Duration // HTTP request timeout
	OutputFile string        // output file for generated blobs
	Verbose    bool          // enable per-player logging
}

// Fixture is one generated player save, blob base64 encoded.
type Fixture struct {
	PlayerID string `json:"player_id"`
	Blob     string `json:"blob"`
	Charts   int    `json:"charts"`
}

// Entry mirrors one leaderboard row returned by the service.
type Entry struct {
	Rank     int     `json:"rank"`
	PlayerID string  `json:"player_id"`
	Rating   float64 `json:"rating"`
}

// Stats holds run statistics.
type Stats struct {
	FixturesGenerated  int
	FixturesSubmitted  int
	FixturesAccepted   int
	FixturesRejected   int
	LeaderboardEntries int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}
