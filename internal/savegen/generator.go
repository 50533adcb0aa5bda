package savegen

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"

	"github.com/google/uuid"

	"github.com/Sczr0/Phi-Backend/internal/domain/save"
	"github.com/Sczr0/Phi-Backend/pkg/logger"
)

// Accuracy distribution buckets. Most synthetic players land in the
// comfortable band, a few are perfect or barely passing.
const (
	caseAveragePlayer = 0
	casePerfectPlayer = 1
	caseStrongPlayer  = 2
	caseWeakPlayer    = 3

	accuracyCaseCount = 4

	averageAccMin   = 90.0
	averageAccRange = 8.0
	strongAccMin    = 98.0
	strongAccRange  = 1.99
	weakAccMin      = 70.0
	weakAccRange    = 20.0

	maxScore = 1_000_000

	randomFloatDivisor = 1_000_000
)

func randomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

func randomInt(max int64) int64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(max))
	return n.Int64()
}

// songPool builds the synthetic song identifiers shared by all players.
func songPool(n int) []string {
	pool := make([]string, n)
	for i := range pool {
		pool[i] = fmt.Sprintf("Song%03d.Artist%02d", i, i%7)
	}
	return pool
}

// generateFixtures builds one encoded save blob per player.
func generateFixtures(ctx context.Context, config *Config, stats *Stats) ([]Fixture, error) {
	logger.Get().Info(ctx, "generating save fixtures",
		logger.Int("players", config.NumPlayers),
		logger.Int("songs", config.NumSongs))

	codec := save.NewCodec()
	songs := songPool(config.NumSongs)
	fixtures := make([]Fixture, 0, config.NumPlayers)

	for i := 0; i < config.NumPlayers; i++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled during generation: %w", ctx.Err())
		default:
		}

		sv := generatePlayerSave(songs)
		blob, err := codec.Encode(sv)
		if err != nil {
			return nil, fmt.Errorf("failed to encode fixture %d: %w", i, err)
		}

		charts := 0
		for _, tiers := range sv.GameRecord {
			charts += len(tiers)
		}
		fixtures = append(fixtures, Fixture{
			PlayerID: uuid.NewString(),
			Blob:     base64.StdEncoding.EncodeToString(blob),
			Charts:   charts,
		})
	}

	stats.FixturesGenerated = len(fixtures)
	logger.Get().Info(ctx, "generated fixtures successfully", logger.Int("count", len(fixtures)))
	return fixtures, nil
}

// generatePlayerSave plays a random subset of the pool on random tiers.
func generatePlayerSave(songs []string) *save.Save {
	record := make(save.GameRecord)

	// Each player clears roughly half the pool.
	for _, songID := range songs {
		if randomInt(2) == 0 {
			continue
		}
		tiers := make(map[save.Tier]save.RawScore)
		for _, tier := range save.Tiers() {
			// Higher tiers are cleared less often.
			if randomInt(int64(tier)+2) != 0 {
				continue
			}
			tiers[tier] = generateRawScore()
		}
		if len(tiers) > 0 {
			record[songID] = tiers
		}
	}

	return &save.Save{GameRecord: record}
}

// generateRawScore draws an accuracy from the bucket distribution.
func generateRawScore() save.RawScore {
	var acc float64
	switch randomInt(accuracyCaseCount) {
	case caseAveragePlayer:
		acc = averageAccMin + randomFloat()*averageAccRange
	case casePerfectPlayer:
		acc = 100
	case caseStrongPlayer:
		acc = strongAccMin + randomFloat()*strongAccRange
	case caseWeakPlayer:
		acc = weakAccMin + randomFloat()*weakAccRange
	default:
		acc = averageAccMin + randomFloat()*averageAccRange
	}

	// Accuracies round-trip through float32 on the wire.
	acc = float64(float32(acc))

	return save.RawScore{
		Score:     uint32(float64(maxScore) * acc / 100),
		Accuracy:  acc,
		FullCombo: acc == 100,
	}
}
