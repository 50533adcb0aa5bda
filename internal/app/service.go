// Package service provides the core business service that wires the save
// pipeline, difficulty catalog, predictor, stores, and refresh workers
// behind the operations the HTTP API depends on.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	taskqueue "github.com/Sczr0/Phi-Backend/internal/adapters/mq/queue"
	workerpool "github.com/Sczr0/Phi-Backend/internal/adapters/mq/worker"
	"github.com/Sczr0/Phi-Backend/internal/adapters/repository"
	"github.com/Sczr0/Phi-Backend/internal/domain/catalog"
	"github.com/Sczr0/Phi-Backend/internal/domain/pending"
	"github.com/Sczr0/Phi-Backend/internal/domain/predictor"
	"github.com/Sczr0/Phi-Backend/internal/domain/rating"
	"github.com/Sczr0/Phi-Backend/internal/domain/save"
	"github.com/Sczr0/Phi-Backend/internal/domain/types"
	"github.com/Sczr0/Phi-Backend/pkg/logger"
	"github.com/Sczr0/Phi-Backend/pkg/metrics"
)

// pushAccStore is what the service needs from a prediction store.
type pushAccStore interface {
	predictor.Store
	DeletePlayer(ctx context.Context, playerID string) error
}

// Service implements the API dependencies for the save pipeline and the
// player leaderboard.
type Service struct {
	mu sync.RWMutex

	// Core components
	codec       *save.Codec
	catalog     *catalog.Catalog
	predictor   *predictor.Predictor
	pushStore   pushAccStore
	leaderboard *repository.TreapStore
	tracker     pending.Tracker
	queue       taskqueue.Queue
	workerPool  *workerpool.Pool

	// Configuration
	sources     catalog.Sources
	dbPath      string
	cipher      *save.Cipher
	workerCount int
	queueSize   int
	pendingSize int
	cooldown    time.Duration
	rankingSize int

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithCatalogSources sets the paths of the catalog data files.
func WithCatalogSources(src catalog.Sources) Option {
	return func(s *Service) {
		s.sources = src
	}
}

// WithDatabasePath sets the SQLite path for the prediction cache. With an
// empty path the cache lives in memory only.
func WithDatabasePath(path string) Option {
	return func(s *Service) {
		s.dbPath = path
	}
}

// WithCipher overrides the save decryption material.
func WithCipher(c *save.Cipher) Option {
	return func(s *Service) {
		if c != nil {
			s.cipher = c
		}
	}
}

// WithWorkerCount sets the number of refresh worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the refresh task queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithPendingSize bounds the pending-refresh tracker.
func WithPendingSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.pendingSize = size
		}
	}
}

// WithPushAccCooldown sets how long cached predictions stay fresh.
func WithPushAccCooldown(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.cooldown = d
		}
	}
}

// WithRankingSize sets how many best plays define the push-acc cutoff.
func WithRankingSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.rankingSize = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU() * 2,
		queueSize:   10000,
		pendingSize: 50000,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start loads the catalog and brings up the stores, the queue, and the
// refresh worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting save pipeline service")

	var codecOpts []save.Option
	if s.cipher != nil {
		codecOpts = append(codecOpts, save.WithCipher(s.cipher))
	}
	s.codec = save.NewCodec(codecOpts...)

	cat, err := catalog.Load(ctx, s.sources)
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}
	s.catalog = cat
	metrics.UpdateCatalogSongs(cat.Songs())
	metrics.UpdateCatalogCharts(cat.Len())

	if s.dbPath != "" {
		store, err := repository.OpenPushAccStore(s.dbPath)
		if err != nil {
			return fmt.Errorf("opening prediction store: %w", err)
		}
		s.pushStore = store
	} else {
		s.pushStore = repository.NewMemPushAccStore()
	}

	var predOpts []predictor.Option
	if s.cooldown > 0 {
		predOpts = append(predOpts, predictor.WithCooldown(s.cooldown))
	}
	if s.rankingSize > 0 {
		predOpts = append(predOpts, predictor.WithRankingSize(s.rankingSize))
	}
	s.predictor = predictor.New(s.pushStore, predOpts...)

	s.leaderboard = repository.NewTreapStore(ctx)
	s.tracker = pending.NewInMemoryTracker(pending.WithMaxSize(s.pendingSize))
	s.queue = taskqueue.NewInMemoryQueue(
		taskqueue.WithCapacity(s.queueSize),
		taskqueue.WithBufferSize(s.queueSize),
	)

	warmer := &cacheWarmer{catalog: s.catalog, predictor: s.predictor}
	s.workerPool = workerpool.NewPool(s.workerCount, s.queue, s.leaderboard,
		workerpool.WithWarmer(warmer),
		workerpool.WithTracker(s.tracker),
	)
	s.workerPool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "save pipeline service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("catalogSongs", cat.Songs()),
		logger.Int("catalogCharts", cat.Len()),
	)
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping save pipeline service")

	if s.workerPool != nil {
		_ = s.workerPool.Shutdown(ctx)
	}
	if s.leaderboard != nil {
		_ = s.leaderboard.Close()
	}
	if closer, ok := s.pushStore.(interface{ Close() error }); ok {
		_ = closer.Close()
	}

	s.started = false
	s.logger.Info(ctx, "save pipeline service stopped")
}

// ParseSave decrypts, unpacks, and decodes a raw save blob.
func (s *Service) ParseSave(ctx context.Context, blob []byte) (*save.Save, error) {
	if err := s.requireStarted(); err != nil {
		return nil, err
	}

	start := time.Now()
	sv, err := s.codec.Decode(blob)
	if err != nil {
		metrics.RecordSaveDecodeError(decodeErrorKind(err))
		return nil, err
	}
	metrics.RecordSaveDecoded()
	metrics.RecordSaveDecodeLatency(float64(time.Since(start).Microseconds()) / 1000.0)
	return sv, nil
}

// ParseSaveWithRatings decodes a save blob and enriches its record table
// with difficulty constants and chart ratings.
func (s *Service) ParseSaveWithRatings(ctx context.Context, blob []byte) (*save.Save, []rating.ChartScore, error) {
	sv, err := s.ParseSave(ctx, blob)
	if err != nil {
		return nil, nil, err
	}
	scores, err := rating.Enrich(sv.GameRecord, s.catalog)
	if err != nil {
		return nil, nil, err
	}
	return sv, scores, nil
}

// RKS computes a player's overall rating from a save blob, returning every
// enriched record plus the exact and two-decimal-rounded overall.
func (s *Service) RKS(ctx context.Context, blob []byte) (types.RKSResult, error) {
	_, scores, err := s.ParseSaveWithRatings(ctx, blob)
	if err != nil {
		return types.RKSResult{}, err
	}

	exact := rating.Overall(scores)
	result := types.RKSResult{
		Exact:   exact,
		Rounded: math.Round(exact*100) / 100,
	}
	if len(scores) > 0 {
		ranked, err := rating.BestN(scores, len(scores))
		if err != nil {
			return types.RKSResult{}, err
		}
		result.Records = toBestScores(ranked, s.catalog)
	}
	return result, nil
}

// BestN returns the n highest-rated plays from a save blob.
func (s *Service) BestN(ctx context.Context, blob []byte, n int) ([]types.BestScore, error) {
	_, scores, err := s.ParseSaveWithRatings(ctx, blob)
	if err != nil {
		return nil, err
	}
	ranked, err := rating.BestN(scores, n)
	if err != nil {
		return nil, err
	}
	return toBestScores(ranked, s.catalog), nil
}

// PushAcc answers, for every chart the player has played, the minimal
// accuracy that would push their overall rating. Answers come from the
// cooldown cache when the underlying score is unchanged.
func (s *Service) PushAcc(ctx context.Context, playerID string, blob []byte) ([]types.PushAcc, error) {
	_, scores, err := s.ParseSaveWithRatings(ctx, blob)
	if err != nil {
		return nil, err
	}

	out := make([]types.PushAcc, 0, len(scores))
	for _, sc := range scores {
		entry, ok := s.catalog.Lookup(sc.SongID, sc.Tier)
		if !ok {
			continue
		}
		pred, cached, err := s.predictor.Check(ctx, playerID, scores, entry)
		if err != nil {
			return nil, err
		}
		if cached {
			metrics.RecordPredictionCacheHit()
		} else {
			metrics.RecordPredictionCacheMiss()
		}
		out = append(out, types.PushAcc{
			SongID:         sc.SongID,
			Tier:           sc.Tier.String(),
			TargetAccuracy: pred.TargetAccuracy,
			Unreachable:    pred.Unreachable,
		})
	}
	return out, nil
}

// ResolveSong resolves a free-form query (song id, name, or alias) to song
// ids.
func (s *Service) ResolveSong(query string) (types.SongResolution, error) {
	if err := s.requireStarted(); err != nil {
		return types.SongResolution{}, err
	}
	r := s.catalog.Resolve(query)
	return types.SongResolution{
		Kind:       r.Kind.String(),
		SongID:     r.SongID,
		Candidates: r.Candidates,
	}, nil
}

// SongInfo resolves a query to exactly one song and returns its metadata and
// charts.
func (s *Service) SongInfo(query string) (types.SongDetail, error) {
	if err := s.requireStarted(); err != nil {
		return types.SongDetail{}, err
	}

	r := s.catalog.Resolve(query)
	switch r.Kind {
	case catalog.MatchUnique:
	case catalog.MatchAmbiguous:
		return types.SongDetail{}, fmt.Errorf("%w: %q", ErrAmbiguousSong, query)
	default:
		return types.SongDetail{}, fmt.Errorf("%w: %q", ErrSongNotFound, query)
	}

	detail := types.SongDetail{SongID: r.SongID, SongName: s.catalog.SongName(r.SongID)}
	if meta, ok := s.catalog.Song(r.SongID); ok {
		detail.SongName = meta.Name
		detail.Composer = meta.Composer
		detail.Aliases = meta.Aliases
	}
	for _, chart := range s.catalog.Charts(r.SongID) {
		detail.Charts = append(detail.Charts, types.ChartDetail{
			Tier:     chart.Tier.String(),
			Constant: chart.Constant,
		})
	}
	return detail, nil
}

// ReloadCatalog rebuilds the catalog from its sources. On failure the
// previous catalog stays active.
func (s *Service) ReloadCatalog(ctx context.Context) error {
	if err := s.requireStarted(); err != nil {
		return err
	}
	if err := s.catalog.Reload(ctx); err != nil {
		metrics.RecordCatalogReloadError()
		return err
	}
	metrics.RecordCatalogReload()
	metrics.UpdateCatalogSongs(s.catalog.Songs())
	metrics.UpdateCatalogCharts(s.catalog.Len())
	return nil
}

// EnqueueRefresh parses a save blob and queues an asynchronous leaderboard
// refresh for the player. At most one refresh per player is in flight.
func (s *Service) EnqueueRefresh(ctx context.Context, playerID string, blob []byte) (string, error) {
	_, scores, err := s.ParseSaveWithRatings(ctx, blob)
	if err != nil {
		return "", err
	}

	if s.tracker.MarkPending(ctx, playerID) {
		metrics.RecordRefreshDuplicate()
		return "", fmt.Errorf("%w: player %s", ErrRefreshPending, playerID)
	}

	task := taskqueue.Task{
		TaskID:     uuid.NewString(),
		PlayerID:   playerID,
		Scores:     scores,
		EnqueuedAt: time.Now(),
	}
	if !s.queue.Enqueue(ctx, task) {
		s.tracker.Clear(ctx, playerID)
		return "", ErrQueueFull
	}

	s.logger.Debug(ctx, "refresh queued",
		logger.String("taskID", task.TaskID),
		logger.String("playerID", playerID),
		logger.Int("charts", len(scores)),
	)
	return task.TaskID, nil
}

// PlayerRank returns the leaderboard row for one player.
func (s *Service) PlayerRank(ctx context.Context, playerID string) (types.LeaderboardEntry, error) {
	if err := s.requireStarted(); err != nil {
		return types.LeaderboardEntry{}, err
	}
	entry, err := s.leaderboard.Rank(ctx, playerID)
	if err != nil {
		return types.LeaderboardEntry{}, err
	}
	return toLeaderboardEntry(entry), nil
}

// TopPlayers returns the top n leaderboard rows.
func (s *Service) TopPlayers(ctx context.Context, n int) ([]types.LeaderboardEntry, error) {
	if err := s.requireStarted(); err != nil {
		return nil, err
	}
	entries, err := s.leaderboard.TopN(ctx, n)
	if err != nil {
		return nil, err
	}
	out := make([]types.LeaderboardEntry, len(entries))
	for i, e := range entries {
		out[i] = toLeaderboardEntry(e)
	}
	return out, nil
}

// Stats returns service statistics for monitoring.
func (s *Service) Stats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
	}
	if !s.started {
		return stats
	}

	ctx := context.Background()
	queueLen := s.queue.Len(ctx)
	players := s.leaderboard.Count(ctx)

	stats["queueLength"] = queueLen
	stats["players"] = players
	stats["pendingRefreshes"] = s.tracker.Size()
	stats["catalogSongs"] = s.catalog.Songs()
	stats["catalogCharts"] = s.catalog.Len()

	metrics.UpdateQueueSize(queueLen)
	metrics.UpdateLeaderboardPlayers(players)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	metrics.UpdateSystemMemoryUsage(mem.Alloc)

	return stats
}

func (s *Service) requireStarted() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// cacheWarmer precomputes push accuracy rows right after a refresh so later
// reads land on the cooldown cache.
type cacheWarmer struct {
	catalog   *catalog.Catalog
	predictor *predictor.Predictor
}

func (w *cacheWarmer) Warm(ctx context.Context, playerID string, scores []rating.ChartScore) error {
	var firstErr error
	for _, sc := range scores {
		entry, ok := w.catalog.Lookup(sc.SongID, sc.Tier)
		if !ok {
			continue
		}
		if _, _, err := w.predictor.Check(ctx, playerID, scores, entry); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func toBestScores(ranked []rating.Ranked, cat *catalog.Catalog) []types.BestScore {
	out := make([]types.BestScore, len(ranked))
	for i, r := range ranked {
		name := r.SongName
		if name == "" {
			name = cat.SongName(r.SongID)
		}
		out[i] = types.BestScore{
			Rank:      r.Rank,
			SongID:    r.SongID,
			SongName:  name,
			Tier:      r.Tier.String(),
			Score:     r.Score,
			Accuracy:  r.Accuracy,
			FullCombo: r.FullCombo,
			Constant:  r.Constant,
			Rating:    r.Rating,
		}
	}
	return out
}

func toLeaderboardEntry(e repository.Entry) types.LeaderboardEntry {
	return types.LeaderboardEntry{
		Rank:     e.Rank,
		PlayerID: e.PlayerID,
		Rating:   e.Rating,
		Charts:   e.Charts,
	}
}

func decodeErrorKind(err error) string {
	switch {
	case errors.Is(err, save.ErrDecryption):
		return "decryption"
	case errors.Is(err, save.ErrDecompression):
		return "decompression"
	case errors.Is(err, save.ErrTruncated):
		return "truncated"
	case errors.Is(err, save.ErrMalformedRecord):
		return "malformed_record"
	case errors.Is(err, save.ErrUnsupportedVersion):
		return "unsupported_version"
	default:
		return "other"
	}
}
