package savegen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sczr0/Phi-Backend/pkg/logger"
)

// httpClient wraps http.Client with a per-request timeout.
type httpClient struct {
	client *http.Client
}

func newHTTPClient(timeout time.Duration) *httpClient {
	return &httpClient{client: &http.Client{Timeout: timeout}}
}

func (c *httpClient) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

func (c *httpClient) post(ctx context.Context, url string, body any) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// checkServiceHealth verifies the service is reachable before submitting.
func checkServiceHealth(ctx context.Context, config *Config) error {
	client := newHTTPClient(config.Timeout)
	resp, err := client.get(ctx, config.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}
	return nil
}

// submitFixtures posts every fixture to /save/refresh with a worker pool.
func submitFixtures(ctx context.Context, config *Config, fixtures []Fixture, stats *Stats) error {
	logger.Get().Info(ctx, "submitting fixtures",
		logger.Int("count", len(fixtures)),
		logger.Int("workers", config.Workers))

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/save/refresh"

	var (
		submitted int64
		accepted  int64
		rejected  int64
	)

	fixtureChan := make(chan Fixture, config.Workers*2)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for fixture := range fixtureChan {
				select {
				case <-ctx.Done():
					return
				default:
				}
				atomic.AddInt64(&submitted, 1)
				if submitSingleFixture(ctx, client, url, fixture) {
					atomic.AddInt64(&accepted, 1)
				} else {
					atomic.AddInt64(&rejected, 1)
				}
				if config.Verbose {
					logger.Get().Debug(ctx, "submitted fixture",
						logger.String("playerID", fixture.PlayerID),
						logger.Int("charts", fixture.Charts))
				}
			}
		}()
	}

	go func() {
		defer close(fixtureChan)
		for _, fixture := range fixtures {
			select {
			case <-ctx.Done():
				return
			case fixtureChan <- fixture:
			}
		}
	}()

	wg.Wait()

	stats.FixturesSubmitted = int(atomic.LoadInt64(&submitted))
	stats.FixturesAccepted = int(atomic.LoadInt64(&accepted))
	stats.FixturesRejected = int(atomic.LoadInt64(&rejected))

	logger.Get().Info(ctx, "fixture submission completed",
		logger.Int("accepted", stats.FixturesAccepted),
		logger.Int("rejected", stats.FixturesRejected))
	return nil
}

func submitSingleFixture(ctx context.Context, client *httpClient, url string, fixture Fixture) bool {
	resp, err := client.post(ctx, url, map[string]string{
		"player_id": fixture.PlayerID,
		"blob":      fixture.Blob,
	})
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusAccepted
}

// getLeaderboard fetches the top entries after the workers drain the queue.
func getLeaderboard(ctx context.Context, config *Config, stats *Stats) ([]Entry, error) {
	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/leaderboard?limit=" + strconv.Itoa(config.TopN)

	resp, err := client.get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch leaderboard: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("leaderboard request failed with status: %d", resp.StatusCode)
	}

	var entries []Entry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to decode leaderboard: %w", err)
	}

	stats.LeaderboardEntries = len(entries)
	return entries, nil
}
