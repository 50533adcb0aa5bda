package repository

import (
	"context"
	"sync"

	"github.com/Sczr0/Phi-Backend/internal/domain/predictor"
	"github.com/Sczr0/Phi-Backend/internal/domain/save"
)

type predictionKey struct {
	playerID string
	songID   string
	tier     save.Tier
}

// MemPushAccStore is an in-memory predictor.Store for tests and ephemeral
// deployments.
type MemPushAccStore struct {
	mu   sync.RWMutex
	rows map[predictionKey]predictor.Entry

	// Puts counts writes, which tests use to verify the cooldown policy.
	Puts int
}

// NewMemPushAccStore creates an empty in-memory store.
func NewMemPushAccStore() *MemPushAccStore {
	return &MemPushAccStore{rows: make(map[predictionKey]predictor.Entry)}
}

// Get implements predictor.Store.
func (s *MemPushAccStore) Get(ctx context.Context, playerID, songID string, tier save.Tier) (predictor.Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.rows[predictionKey{playerID: playerID, songID: songID, tier: tier}]
	return e, ok, nil
}

// Put implements predictor.Store.
func (s *MemPushAccStore) Put(ctx context.Context, e predictor.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[predictionKey{playerID: e.PlayerID, songID: e.SongID, tier: e.Tier}] = e
	s.Puts++
	return nil
}

// DeletePlayer removes every cached prediction for one player.
func (s *MemPushAccStore) DeletePlayer(ctx context.Context, playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.rows {
		if k.playerID == playerID {
			delete(s.rows, k)
		}
	}
	return nil
}
