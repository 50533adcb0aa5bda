package savegen

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/Sczr0/Phi-Backend/internal/domain/save"
)

func TestGenerateFixtures(t *testing.T) {
	convey.Convey("Given a small fixture configuration", t, func() {
		config := &Config{NumPlayers: 5, NumSongs: 20}
		stats := &Stats{}

		fixtures, err := generateFixtures(context.Background(), config, stats)

		convey.Convey("Then it should produce one fixture per player", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(len(fixtures), convey.ShouldEqual, 5)
			convey.So(stats.FixturesGenerated, convey.ShouldEqual, 5)
		})

		convey.Convey("And every blob should decode back to a save", func() {
			convey.So(err, convey.ShouldBeNil)
			codec := save.NewCodec()
			for _, fixture := range fixtures {
				convey.So(fixture.PlayerID, convey.ShouldNotBeEmpty)

				blob, decErr := base64.StdEncoding.DecodeString(fixture.Blob)
				convey.So(decErr, convey.ShouldBeNil)

				sv, decodeErr := codec.Decode(blob)
				convey.So(decodeErr, convey.ShouldBeNil)

				charts := 0
				for _, tiers := range sv.GameRecord {
					for _, score := range tiers {
						convey.So(score.Accuracy, convey.ShouldBeBetweenOrEqual, 70, 100)
						convey.So(score.Score, convey.ShouldBeLessThanOrEqualTo, 1_000_000)
						charts++
					}
				}
				convey.So(charts, convey.ShouldEqual, fixture.Charts)
			}
		})
	})
}

func TestGeneratePlayerSave(t *testing.T) {
	convey.Convey("Given a song pool", t, func() {
		songs := songPool(30)

		convey.Convey("Then pool identifiers should be unique", func() {
			seen := make(map[string]struct{}, len(songs))
			for _, id := range songs {
				seen[id] = struct{}{}
			}
			convey.So(len(seen), convey.ShouldEqual, 30)
		})

		convey.Convey("Then generated saves should only reference pool songs", func() {
			pool := make(map[string]struct{}, len(songs))
			for _, id := range songs {
				pool[id] = struct{}{}
			}

			sv := generatePlayerSave(songs)
			for songID, tiers := range sv.GameRecord {
				_, ok := pool[songID]
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(len(tiers), convey.ShouldBeGreaterThan, 0)
			}
		})
	})
}
