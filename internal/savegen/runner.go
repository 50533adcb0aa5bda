package savegen

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Sczr0/Phi-Backend/pkg/logger"
)

const (
	directoryPermission = 0750

	// settleDelay gives the refresh workers time to drain the queue
	// before the leaderboard is read back.
	settleDelay = 2 * time.Second
)

// Run generates fixtures, optionally submits them, and writes them to disk.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{StartTime: time.Now()}

	logger.Get().Info(ctx, "starting save fixture run",
		logger.String("baseURL", config.BaseURL),
		logger.Int("players", config.NumPlayers),
		logger.Int("songs", config.NumSongs),
		logger.Int("workers", config.Workers))

	fixtures, err := generateFixtures(ctx, config, stats)
	if err != nil {
		return fmt.Errorf("fixture generation failed: %w", err)
	}

	if config.BaseURL != "" {
		if err := checkServiceHealth(ctx, config); err != nil {
			return fmt.Errorf("service health check failed: %w", err)
		}

		if err := submitFixtures(ctx, config, fixtures, stats); err != nil {
			return fmt.Errorf("fixture submission failed: %w", err)
		}

		logger.Get().Info(ctx, "waiting for refresh workers to settle")
		time.Sleep(settleDelay)

		entries, err := getLeaderboard(ctx, config, stats)
		if err != nil {
			return fmt.Errorf("leaderboard retrieval failed: %w", err)
		}
		for _, entry := range entries {
			logger.Get().Info(ctx, "leaderboard entry",
				logger.Int("rank", entry.Rank),
				logger.String("playerID", entry.PlayerID),
				logger.Float64("rating", entry.Rating))
		}
	}

	if err := saveFixturesToFile(ctx, config, fixtures); err != nil {
		logger.Get().Warn(ctx, "failed to save fixtures to file", logger.Error(err))
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(stats)

	return nil
}

// saveFixturesToFile writes the generated fixtures as a JSON array.
func saveFixturesToFile(ctx context.Context, config *Config, fixtures []Fixture) error {
	if len(fixtures) == 0 {
		return fmt.Errorf("no fixtures to save")
	}

	filename := config.OutputFile
	if filename == "" {
		timestamp := time.Now().Format("20060102_150405")
		filename = "generated_saves_" + timestamp + ".json"
	}

	dir := filepath.Dir(filename)
	if dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(fixtures, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal fixtures: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	logger.Get().Info(ctx, "fixtures saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats prints the final run statistics.
func displayFinalStats(stats *Stats) {
	var fixturesPerSecond float64
	if stats.Duration > 0 {
		fixturesPerSecond = float64(stats.FixturesGenerated) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("fixturesGenerated", stats.FixturesGenerated),
		logger.Int("fixturesSubmitted", stats.FixturesSubmitted),
		logger.Int("fixturesAccepted", stats.FixturesAccepted),
		logger.Int("fixturesRejected", stats.FixturesRejected),
		logger.Int("leaderboardEntries", stats.LeaderboardEntries),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("fixturesPerSecond", fixturesPerSecond))
}
