package repository

import (
	"context"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sczr0/Phi-Backend/pkg/metrics"
)

// Treap-based, in-memory RankStore implementation.
//
// Ordering: rating DESC, then playerID ASC (deterministic). The BST
// comparator treats "less" as "ranks earlier", so in-order traversal walks
// the leaderboard from best to worst.

// ratingScale controls fixed-point scaling from float64. Overall ratings
// live in a small range (roughly 0..20), so nine decimal places are plenty.
const ratingScale = 1_000_000_000

type ratingFP int64

func toFixedPoint(x float64) ratingFP {
	if math.IsNaN(x) {
		return 0
	}
	scaled := x * ratingScale
	if scaled > float64(math.MaxInt64) {
		return ratingFP(math.MaxInt64)
	}
	if scaled < float64(math.MinInt64) {
		return ratingFP(math.MinInt64)
	}
	return ratingFP(math.Round(scaled))
}

func toFloat(x ratingFP) float64 {
	return float64(x) / ratingScale
}

// record stores the fixed-point rating plus metadata for one player.
type record struct {
	rating    ratingFP
	charts    int
	updatedAt time.Time
}

// Snapshot is an immutable view of the leaderboard state, published
// periodically for lock-free reads.
type Snapshot struct {
	RankByPlayer   map[string]int
	RatingByPlayer map[string]float64

	// TopCache holds the board head sorted descending, already ranked.
	TopCache []Entry
}

// treap node
type node struct {
	id     string
	rating ratingFP
	prio   uint64
	left   *node
	right  *node
	size   int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aRating, aID) should appear before (bRating, bID)
// in the leaderboard (higher ratings first).
func less(aRating ratingFP, aID string, bRating ratingFP, bID string) bool {
	if aRating != bRating {
		return aRating > bRating
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

// ratingToPriority keeps higher ratings near the treap root. The offset
// shifts negative fixed-point values into unsigned range.
func ratingToPriority(r ratingFP) uint64 {
	const offset = uint64(1) << 63
	return uint64(r) + offset
}

func insert(n *node, id string, r ratingFP) *node {
	if n == nil {
		return &node{id: id, rating: r, prio: ratingToPriority(r), size: 1}
	}
	if less(r, id, n.rating, n.id) {
		n.left = insert(n.left, id, r)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, r)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, r ratingFP) *node {
	if n == nil {
		return nil
	}
	if r == n.rating && id == n.id {
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, r)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, r)
		}
	} else if less(r, id, n.rating, n.id) {
		n.left = deleteNode(n.left, id, r)
	} else {
		n.right = deleteNode(n.right, id, r)
	}
	fix(n)
	return n
}

// collectTopN appends up to limit entries in rank order (highest first).
func collectTopN(n *node, limit int, records map[string]record, out *[]Entry) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, records, out)
	if len(*out) < limit {
		if rec, exists := records[n.id]; exists {
			*out = append(*out, Entry{
				PlayerID:  n.id,
				Rating:    toFloat(rec.rating),
				Charts:    rec.charts,
				UpdatedAt: rec.updatedAt,
			})
		}
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, records, out)
	}
}

// TreapStore is the in-memory RankStore.
type TreapStore struct {
	mu               sync.RWMutex
	root             *node
	byID             map[string]record
	snapshotInterval time.Duration
	topCacheSize     int

	snapshot atomic.Pointer[Snapshot]

	wg       sync.WaitGroup
	stopChan chan struct{}
}

// NewTreapStore constructs a treap store with configuration options.
func NewTreapStore(ctx context.Context, opts ...Option) *TreapStore {
	s := &TreapStore{
		snapshotInterval: 1 * time.Second,
		topCacheSize:     500,
		byID:             make(map[string]record),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.stopChan = make(chan struct{})
	s.startPeriodicSnapshots(ctx)
	return s
}

// startPeriodicSnapshots publishes snapshots at the configured interval.
func (s *TreapStore) startPeriodicSnapshots(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.snapshotInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.publishSnapshot()
			}
		}
	}()
}

func (s *TreapStore) publishSnapshot() {
	start := time.Now()
	s.mu.RLock()
	s.publishSnapshotInternal()
	s.mu.RUnlock()

	metrics.RecordLeaderboardSnapshotDuration(float64(time.Since(start).Milliseconds()))
	metrics.IncrementLeaderboardSnapshotCount()
}

// Close gracefully shuts down the periodic snapshot goroutine.
func (s *TreapStore) Close() error {
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}
	s.wg.Wait()
	return nil
}

// Set implements RankStore.Set with O(log n) expected time. The rating is
// replaced outright; refreshes after a catalog change can lower it.
func (s *TreapStore) Set(ctx context.Context, playerID string, overall float64, charts int) error {
	start := time.Now()
	defer func() {
		metrics.RecordLeaderboardUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	nr := toFixedPoint(overall)

	s.mu.Lock()
	if old, ok := s.byID[playerID]; ok {
		s.root = deleteNode(s.root, playerID, old.rating)
	}
	s.byID[playerID] = record{rating: nr, charts: charts, updatedAt: time.Now()}
	s.root = insert(s.root, playerID, nr)
	total := len(s.byID)
	s.mu.Unlock()

	metrics.UpdateLeaderboardPlayers(total)
	return nil
}

// Rank returns the current rank and rating for a player.
func (s *TreapStore) Rank(ctx context.Context, playerID string) (Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordLeaderboardQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.byID[playerID]; !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return Entry{}, ErrNotFound
	}

	allEntries := make([]Entry, 0, len(s.byID))
	collectAll(s.root, s.byID, &allEntries)
	sortEntries(allEntries)
	assignRanksWithTies(allEntries)

	for _, entry := range allEntries {
		if entry.PlayerID == playerID {
			return entry, nil
		}
	}
	return Entry{}, ErrNotFound
}

// TopN returns the top N entries ordered by rating desc.
func (s *TreapStore) TopN(ctx context.Context, n int) ([]Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordLeaderboardQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, n)
	collectTopN(s.root, n, s.byID, &out)
	assignRanksWithTies(out)
	return out, nil
}

// Count returns the total number of players.
func (s *TreapStore) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// CurrentSnapshot returns the last published snapshot, or nil before the
// first publish.
func (s *TreapStore) CurrentSnapshot() *Snapshot {
	return s.snapshot.Load()
}

// publishSnapshotInternal rebuilds the snapshot (assumes lock is held).
func (s *TreapStore) publishSnapshotInternal() {
	topCache := make([]Entry, 0, s.topCacheSize)
	collectTopN(s.root, s.topCacheSize, s.byID, &topCache)

	rankByPlayer := make(map[string]int, len(s.byID))
	ratingByPlayer := make(map[string]float64, len(s.byID))

	allEntries := make([]Entry, 0, len(s.byID))
	collectAll(s.root, s.byID, &allEntries)
	assignRanksWithTies(allEntries)

	for _, entry := range allEntries {
		rankByPlayer[entry.PlayerID] = entry.Rank
		ratingByPlayer[entry.PlayerID] = entry.Rating
	}
	for i := range topCache {
		if rank, exists := rankByPlayer[topCache[i].PlayerID]; exists {
			topCache[i].Rank = rank
		}
	}

	s.snapshot.Store(&Snapshot{
		RankByPlayer:   rankByPlayer,
		RatingByPlayer: ratingByPlayer,
		TopCache:       topCache,
	})
}

// collectAll appends all entries in rank order (highest first).
func collectAll(n *node, byID map[string]record, out *[]Entry) {
	if n == nil {
		return
	}
	collectAll(n.left, byID, out)
	if rec, ok := byID[n.id]; ok {
		*out = append(*out, Entry{
			PlayerID:  n.id,
			Rating:    toFloat(rec.rating),
			Charts:    rec.charts,
			UpdatedAt: rec.updatedAt,
		})
	}
	collectAll(n.right, byID, out)
}

// sortEntries matches the treap traversal order: rating desc, player asc.
func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Rating != entries[j].Rating {
			return entries[i].Rating > entries[j].Rating
		}
		return entries[i].PlayerID < entries[j].PlayerID
	})
}

// assignRanksWithTies gives equal ratings equal ranks with consecutive
// numbering, so 10, 10, 9 ranks as 1, 1, 2.
func assignRanksWithTies(entries []Entry) {
	if len(entries) == 0 {
		return
	}
	currentRank := 1
	for i := 0; i < len(entries); i++ {
		entries[i].Rank = currentRank
		sameCount := 1
		for j := i + 1; j < len(entries) && entries[j].Rating == entries[i].Rating; j++ {
			entries[j].Rank = currentRank
			sameCount++
		}
		currentRank++
		i += sameCount - 1
	}
}
