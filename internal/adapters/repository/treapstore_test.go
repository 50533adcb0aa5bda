package repository

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"
)

func floatEqual(a, b float64) bool {
	const tolerance = 1e-8
	return math.Abs(a-b) < tolerance
}

func TestTreapStore_BasicOperations(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	if count := store.Count(ctx); count != 0 {
		t.Errorf("expected count 0, got %d", count)
	}

	if err := store.Set(ctx, "player1", 13.52, 30); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count := store.Count(ctx); count != 1 {
		t.Errorf("expected count 1, got %d", count)
	}

	entry, err := store.Rank(ctx, "player1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Rank != 1 {
		t.Errorf("expected rank 1, got %d", entry.Rank)
	}
	if !floatEqual(entry.Rating, 13.52) {
		t.Errorf("expected rating 13.52, got %f", entry.Rating)
	}
	if entry.Charts != 30 {
		t.Errorf("expected 30 charts, got %d", entry.Charts)
	}

	entries, err := store.TopN(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].PlayerID != "player1" {
		t.Errorf("expected player1, got %s", entries[0].PlayerID)
	}
}

func TestTreapStore_RatingReplacement(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	if err := store.Set(ctx, "player1", 12.0, 28); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A rating drop must stick; refreshes after a catalog change can
	// lower the overall rating.
	if err := store.Set(ctx, "player1", 11.4, 28); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entry, err := store.Rank(ctx, "player1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !floatEqual(entry.Rating, 11.4) {
		t.Errorf("expected rating 11.4 after drop, got %f", entry.Rating)
	}

	if err := store.Set(ctx, "player1", 13.1, 30); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entry, err = store.Rank(ctx, "player1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !floatEqual(entry.Rating, 13.1) {
		t.Errorf("expected rating 13.1 after raise, got %f", entry.Rating)
	}
	if count := store.Count(ctx); count != 1 {
		t.Errorf("expected count 1 after replacements, got %d", count)
	}
}

func TestTreapStore_Ordering(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	players := []struct {
		id     string
		rating float64
	}{
		{"player1", 12.5},
		{"player2", 15.9},
		{"player3", 9.7},
		{"player4", 16.4},
		{"player5", 11.2},
	}
	for _, p := range players {
		if err := store.Set(ctx, p.id, p.rating, 30); err != nil {
			t.Fatalf("unexpected error setting %s: %v", p.id, err)
		}
	}

	entries, err := store.TopN(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(entries))
	}
	for i := 0; i < len(entries)-1; i++ {
		if entries[i].Rating < entries[i+1].Rating {
			t.Errorf("entries not in descending order: %f < %f", entries[i].Rating, entries[i+1].Rating)
		}
	}
	for i, entry := range entries {
		if entry.Rank != i+1 {
			t.Errorf("entry %d: expected rank %d, got %d", i, i+1, entry.Rank)
		}
	}

	expectedOrder := []string{"player4", "player2", "player1", "player5", "player3"}
	for i, expectedID := range expectedOrder {
		if entries[i].PlayerID != expectedID {
			t.Errorf("position %d: expected %s, got %s", i, expectedID, entries[i].PlayerID)
		}
	}
}

func TestTreapStore_TieBreaking(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	if err := store.Set(ctx, "playerB", 14.0, 30); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Set(ctx, "playerA", 14.0, 30); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Set(ctx, "playerC", 13.0, 30); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, err := store.TopN(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].PlayerID != "playerA" || entries[1].PlayerID != "playerB" {
		t.Errorf("tie not broken by id: got %s, %s", entries[0].PlayerID, entries[1].PlayerID)
	}
	// Equal ratings share a rank; the next distinct rating takes the
	// next consecutive rank.
	if entries[0].Rank != 1 || entries[1].Rank != 1 {
		t.Errorf("expected shared rank 1, got %d and %d", entries[0].Rank, entries[1].Rank)
	}
	if entries[2].Rank != 2 {
		t.Errorf("expected rank 2 after tie, got %d", entries[2].Rank)
	}
}

func TestTreapStore_EdgeCases(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	if _, err := store.TopN(ctx, 0); err == nil {
		t.Error("expected error for invalid limit")
	}
	if _, err := store.TopN(ctx, -1); err == nil {
		t.Error("expected error for negative limit")
	}
	if _, err := store.Rank(ctx, "nonexistent"); err == nil {
		t.Error("expected error for unknown player")
	}

	if err := store.Set(ctx, "player1", 0, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entry, err := store.Rank(ctx, "player1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Rating != 0 {
		t.Errorf("expected zero rating, got %f", entry.Rating)
	}
}

func TestTreapStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	numGoroutines := 10
	numUpdates := 100

	var wg sync.WaitGroup
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < numUpdates; j++ {
				playerID := fmt.Sprintf("player%d_%d", id, j)
				if err := store.Set(ctx, playerID, float64(j)/10, j); err != nil {
					t.Errorf("goroutine %d: unexpected error: %v", id, err)
				}
			}
		}(i)
	}
	wg.Wait()

	if count := store.Count(ctx); count != numGoroutines*numUpdates {
		t.Errorf("expected count %d, got %d", numGoroutines*numUpdates, count)
	}

	entries, err := store.TopN(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < len(entries)-1; i++ {
		if entries[i].Rating < entries[i+1].Rating {
			t.Errorf("entries not in descending order: %f < %f", entries[i].Rating, entries[i+1].Rating)
		}
	}
}

func TestTreapStore_PeriodicSnapshots(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx, WithSnapshotInterval(10*time.Millisecond))
	defer store.Close()

	_ = store.Set(ctx, "player1", 10.0, 25)
	_ = store.Set(ctx, "player2", 14.0, 30)
	_ = store.Set(ctx, "player3", 12.0, 30)

	time.Sleep(50 * time.Millisecond)

	snapshot := store.CurrentSnapshot()
	if snapshot == nil {
		t.Fatal("expected snapshot to be published")
	}
	if len(snapshot.RankByPlayer) != 3 {
		t.Errorf("expected 3 ranks in snapshot, got %d", len(snapshot.RankByPlayer))
	}
	if snapshot.RankByPlayer["player2"] != 1 {
		t.Errorf("expected player2 at rank 1, got %d", snapshot.RankByPlayer["player2"])
	}
	if len(snapshot.TopCache) != 3 {
		t.Errorf("expected 3 entries in top cache, got %d", len(snapshot.TopCache))
	}
	if snapshot.TopCache[0].PlayerID != "player2" {
		t.Errorf("expected player2 at head of top cache, got %s", snapshot.TopCache[0].PlayerID)
	}
}

func TestTreapStore_CloseBehavior(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)

	if err := store.Set(ctx, "player1", 10.0, 20); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("Close returned error: %v", err)
	}

	// Operations still work after close; only the snapshot goroutine stops.
	if err := store.Set(ctx, "player2", 12.0, 22); err != nil {
		t.Fatalf("Set failed after close: %v", err)
	}
	entry, err := store.Rank(ctx, "player1")
	if err != nil {
		t.Fatalf("Rank failed after close: %v", err)
	}
	if !floatEqual(entry.Rating, 10.0) {
		t.Errorf("expected rating 10.0, got %f", entry.Rating)
	}

	// Double close must not panic.
	if err := store.Close(); err != nil {
		t.Errorf("second Close returned error: %v", err)
	}
}

func BenchmarkTreapStore_MixedLoad(b *testing.B) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer store.Close()

	numPlayers := 100_000
	for i := 0; i < numPlayers; i++ {
		_ = store.Set(ctx, fmt.Sprintf("player_%d", i), float64(i%1700)/100, 30)
	}

	b.ResetTimer()
	b.ReportAllocs()

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			switch i % 10 {
			case 0, 1, 2, 3:
				_ = store.Set(ctx, fmt.Sprintf("player_%d", i%numPlayers), float64(i%1700)/100, 30)
			case 4, 5, 6:
				_, _ = store.Rank(ctx, fmt.Sprintf("player_%d", i%numPlayers))
			case 7, 8:
				_, _ = store.TopN(ctx, 10+(i%90))
			default:
				store.Count(ctx)
			}
			i++
		}
	})
}
