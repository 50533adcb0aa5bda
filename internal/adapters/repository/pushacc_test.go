package repository_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/Sczr0/Phi-Backend/internal/adapters/repository"
	"github.com/Sczr0/Phi-Backend/internal/domain/predictor"
	"github.com/Sczr0/Phi-Backend/internal/domain/save"
)

func openTestStore(t *testing.T) *repository.PushAccStore {
	t.Helper()
	store, err := repository.OpenPushAccStore(filepath.Join(t.TempDir(), "pushacc.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPushAccStore(t *testing.T) {
	convey.Convey("Given a SQLite prediction store", t, func() {
		ctx := context.Background()
		store := openTestStore(t)

		entry := predictor.Entry{
			PlayerID:            "player-1",
			SongID:              "Song.Artist",
			Tier:                save.TierIN,
			TargetAccuracy:      99.25,
			LastCheckedAccuracy: 97.5,
			CheckedAt:           time.Now().UTC().Truncate(time.Second),
		}

		convey.Convey("When no row exists", func() {
			_, ok, err := store.Get(ctx, "player-1", "Song.Artist", save.TierIN)

			convey.Convey("Then the lookup should miss without error", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(ok, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When a prediction is stored", func() {
			convey.So(store.Put(ctx, entry), convey.ShouldBeNil)

			convey.Convey("Then it should round-trip through the database", func() {
				got, ok, err := store.Get(ctx, "player-1", "Song.Artist", save.TierIN)
				convey.So(err, convey.ShouldBeNil)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(got.TargetAccuracy, convey.ShouldEqual, 99.25)
				convey.So(got.LastCheckedAccuracy, convey.ShouldEqual, 97.5)
				convey.So(got.Tier, convey.ShouldEqual, save.TierIN)
				convey.So(got.Unreachable, convey.ShouldBeFalse)
			})

			convey.Convey("And a second put should replace, not duplicate", func() {
				updated := entry
				updated.TargetAccuracy = 99.75
				updated.Unreachable = true
				convey.So(store.Put(ctx, updated), convey.ShouldBeNil)

				got, ok, err := store.Get(ctx, "player-1", "Song.Artist", save.TierIN)
				convey.So(err, convey.ShouldBeNil)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(got.TargetAccuracy, convey.ShouldEqual, 99.75)
				convey.So(got.Unreachable, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the same song is stored on two tiers", func() {
			other := entry
			other.Tier = save.TierAT
			other.TargetAccuracy = 95.0
			convey.So(store.Put(ctx, entry), convey.ShouldBeNil)
			convey.So(store.Put(ctx, other), convey.ShouldBeNil)

			convey.Convey("Then the tiers should stay separate rows", func() {
				got, ok, err := store.Get(ctx, "player-1", "Song.Artist", save.TierAT)
				convey.So(err, convey.ShouldBeNil)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(got.TargetAccuracy, convey.ShouldEqual, 95.0)
			})
		})

		convey.Convey("When a player's predictions are deleted", func() {
			keep := entry
			keep.PlayerID = "player-2"
			convey.So(store.Put(ctx, entry), convey.ShouldBeNil)
			convey.So(store.Put(ctx, keep), convey.ShouldBeNil)

			convey.So(store.DeletePlayer(ctx, "player-1"), convey.ShouldBeNil)

			convey.Convey("Then only that player's rows should be gone", func() {
				_, ok, err := store.Get(ctx, "player-1", "Song.Artist", save.TierIN)
				convey.So(err, convey.ShouldBeNil)
				convey.So(ok, convey.ShouldBeFalse)

				_, ok, err = store.Get(ctx, "player-2", "Song.Artist", save.TierIN)
				convey.So(err, convey.ShouldBeNil)
				convey.So(ok, convey.ShouldBeTrue)
			})
		})
	})
}
