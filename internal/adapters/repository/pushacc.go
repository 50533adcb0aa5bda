package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Sczr0/Phi-Backend/internal/domain/predictor"
	"github.com/Sczr0/Phi-Backend/internal/domain/save"
)

// pushAccRow is the persisted shape of one prediction, keyed by
// (player, song, tier).
type pushAccRow struct {
	PlayerID            string  `gorm:"primaryKey;column:player_id"`
	SongID              string  `gorm:"primaryKey;column:song_id"`
	Tier                uint8   `gorm:"primaryKey;column:tier"`
	TargetAccuracy      float64 `gorm:"column:target_accuracy"`
	Unreachable         bool    `gorm:"column:unreachable"`
	LastCheckedAccuracy float64 `gorm:"column:last_checked_accuracy"`
	CheckedAt           time.Time
}

func (pushAccRow) TableName() string { return "push_acc_predictions" }

// PushAccStore persists push accuracy predictions in SQLite. It implements
// predictor.Store; upserts are atomic at the row level, so concurrent
// refreshes of the same chart settle on the last writer.
type PushAccStore struct {
	db *gorm.DB
}

// OpenPushAccStore opens (or creates) the prediction database at path and
// migrates the schema.
func OpenPushAccStore(path string) (*PushAccStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening prediction db: %w", err)
	}
	if err := db.AutoMigrate(&pushAccRow{}); err != nil {
		return nil, fmt.Errorf("migrating prediction db: %w", err)
	}
	return &PushAccStore{db: db}, nil
}

// Get implements predictor.Store.
func (s *PushAccStore) Get(ctx context.Context, playerID, songID string, tier save.Tier) (predictor.Entry, bool, error) {
	var row pushAccRow
	err := s.db.WithContext(ctx).
		First(&row, "player_id = ? AND song_id = ? AND tier = ?", playerID, songID, uint8(tier)).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return predictor.Entry{}, false, nil
	}
	if err != nil {
		return predictor.Entry{}, false, err
	}
	return predictor.Entry{
		PlayerID:            row.PlayerID,
		SongID:              row.SongID,
		Tier:                save.Tier(row.Tier),
		TargetAccuracy:      row.TargetAccuracy,
		Unreachable:         row.Unreachable,
		LastCheckedAccuracy: row.LastCheckedAccuracy,
		CheckedAt:           row.CheckedAt,
	}, true, nil
}

// Put implements predictor.Store with an atomic insert-or-replace.
func (s *PushAccStore) Put(ctx context.Context, e predictor.Entry) error {
	row := pushAccRow{
		PlayerID:            e.PlayerID,
		SongID:              e.SongID,
		Tier:                uint8(e.Tier),
		TargetAccuracy:      e.TargetAccuracy,
		Unreachable:         e.Unreachable,
		LastCheckedAccuracy: e.LastCheckedAccuracy,
		CheckedAt:           e.CheckedAt,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "player_id"},
			{Name: "song_id"},
			{Name: "tier"},
		},
		UpdateAll: true,
	}).Create(&row).Error
}

// DeletePlayer removes every cached prediction for one player.
func (s *PushAccStore) DeletePlayer(ctx context.Context, playerID string) error {
	return s.db.WithContext(ctx).
		Where("player_id = ?", playerID).
		Delete(&pushAccRow{}).
		Error
}

// Close releases the underlying database handle.
func (s *PushAccStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
