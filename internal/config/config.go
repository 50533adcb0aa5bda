// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults, then layer file and env.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"runtime"
	"time"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// InfoPath points at the song metadata CSV.
	InfoPath string `koanf:"info_path"`

	// DifficultyPath points at the per-tier chart constant CSV.
	DifficultyPath string `koanf:"difficulty_path"`

	// AliasPath points at the YAML alias list. Optional.
	AliasPath string `koanf:"alias_path"`

	// DBPath locates the SQLite push-acc cache. Empty keeps it in memory.
	DBPath string `koanf:"db_path"`

	// AESKey and AESIV override the built-in save cipher, base64 encoded.
	AESKey string `koanf:"aes_key"`
	AESIV  string `koanf:"aes_iv"`

	// PushAccCooldown bounds how often a chart's push-acc is recomputed.
	PushAccCooldown time.Duration `koanf:"pushacc_cooldown"`

	// RankingSize is the number of best scores folded into the overall rating.
	RankingSize int `koanf:"ranking_size"`

	// QueueSize bounds the in-memory refresh queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of refresh workers.
	WorkerCount int `koanf:"worker_count"`

	// PendingSize caps the in-flight refresh dedup set.
	PendingSize int `koanf:"pending_size"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		Addr:                ":9080",
		InfoPath:            "data/info.csv",
		DifficultyPath:      "data/difficulty.csv",
		AliasPath:           "data/nicklist.yaml",
		DBPath:              "data/pushacc.db",
		PushAccCooldown:     24 * time.Hour,
		RankingSize:         30,
		QueueSize:           10_000,
		WorkerCount:         runtime.NumCPU() * 2,
		PendingSize:         50_000,
		MaxLeaderboardLimit: 100,
	}
}
