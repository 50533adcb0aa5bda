package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/Sczr0/Phi-Backend/internal/savegen"
	"github.com/Sczr0/Phi-Backend/pkg/logger"
)

// Default configuration constants.
const (
	defaultNumPlayers = 100
	defaultNumSongs   = 50
	defaultTopN       = 20
	defaultWorkers    = 2 // multiplier for runtime.NumCPU()
	defaultTimeout    = 30 * time.Second
	defaultRunTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "", "Base URL of the service; empty only writes fixtures")
		numPlayers = flag.Int("players", defaultNumPlayers, "Number of synthetic players to generate")
		numSongs   = flag.Int("songs", defaultNumSongs, "Size of the synthetic song pool")
		topN       = flag.Int("top", defaultTopN, "Number of top entries to fetch from leaderboard")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent submitters")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		outputFile = flag.String("output", "", "Output file for generated saves (default: generated_saves_TIMESTAMP.json)")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	config := &savegen.Config{
		BaseURL:    *baseURL,
		NumPlayers: *numPlayers,
		NumSongs:   *numSongs,
		TopN:       *topN,
		Workers:    *workers,
		Timeout:    *timeout,
		OutputFile: *outputFile,
		Verbose:    *verbose,
	}

	if err := savegen.Run(ctx, config); err != nil {
		os.Stderr.WriteString("run failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
