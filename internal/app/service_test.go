package service_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	service "github.com/Sczr0/Phi-Backend/internal/app"
	"github.com/Sczr0/Phi-Backend/internal/domain/catalog"
	"github.com/Sczr0/Phi-Backend/internal/domain/save"
)

func writeCatalog(t *testing.T) catalog.Sources {
	t.Helper()
	dir := t.TempDir()
	src := catalog.Sources{
		InfoPath:       filepath.Join(dir, "info.csv"),
		DifficultyPath: filepath.Join(dir, "difficulty.csv"),
		AliasPath:      filepath.Join(dir, "nicklist.yaml"),
	}
	files := map[string]string{
		src.InfoPath: "id,song,composer,illustrator\n" +
			"Spasmodic.HyuN,Spasmodic,HyuN,x\n" +
			"Cereris.Sakuzyo,Cereris,Sakuzyo,x\n",
		src.DifficultyPath: "id,EZ,HD,IN,AT\n" +
			"Spasmodic.HyuN,4.0,8.5,13.0,\n" +
			"Cereris.Sakuzyo,5.0,9.5,14.0,15.4\n",
		src.AliasPath: "Spasmodic:\n  - spas\n",
	}
	for path, body := range files {
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	return src
}

func saveBlob(t *testing.T) []byte {
	t.Helper()
	sv := &save.Save{
		GameRecord: save.GameRecord{
			"Spasmodic.HyuN": {
				save.TierIN: {Score: 985432, Accuracy: 98.5, FullCombo: false},
			},
			"Cereris.Sakuzyo": {
				save.TierIN: {Score: 1000000, Accuracy: 100, FullCombo: true},
				save.TierAT: {Score: 920000, Accuracy: 95.5, FullCombo: false},
			},
		},
	}
	blob, err := save.NewCodec().Encode(sv)
	if err != nil {
		t.Fatal(err)
	}
	return blob
}

func startService(t *testing.T) *service.Service {
	t.Helper()
	svc := service.New(
		service.WithCatalogSources(writeCatalog(t)),
		service.WithWorkerCount(2),
		service.WithQueueSize(16),
	)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(svc.Stop)
	return svc
}

func TestServiceLifecycle(t *testing.T) {
	Convey("Given an unstarted service", t, func() {
		svc := service.New(service.WithCatalogSources(writeCatalog(t)))

		Convey("Operations fail before Start", func() {
			_, err := svc.ParseSave(context.Background(), nil)
			So(err, ShouldWrap, service.ErrNotStarted)
		})

		Convey("Start then Stop round-trips cleanly", func() {
			So(svc.Start(context.Background()), ShouldBeNil)
			So(svc.Start(context.Background()), ShouldBeNil)
			svc.Stop()
			svc.Stop()
		})
	})
}

func TestServiceSavePipeline(t *testing.T) {
	Convey("Given a started service and an encrypted save blob", t, func() {
		svc := startService(t)
		ctx := context.Background()
		blob := saveBlob(t)

		Convey("ParseSave decodes the record table", func() {
			sv, err := svc.ParseSave(ctx, blob)
			So(err, ShouldBeNil)
			So(sv.GameRecord, ShouldContainKey, "Spasmodic.HyuN")
			So(sv.GameRecord["Cereris.Sakuzyo"][save.TierIN].Accuracy, ShouldEqual, 100.0)
		})

		Convey("ParseSave rejects garbage", func() {
			_, err := svc.ParseSave(ctx, []byte("not a save"))
			So(err, ShouldWrap, save.ErrDecompression)
		})

		Convey("RKS ranks all plays and reports exact and rounded overall", func() {
			result, err := svc.RKS(ctx, blob)
			So(err, ShouldBeNil)
			So(len(result.Records), ShouldEqual, 3)

			// 100% on constant 14.0 earns 15.0 and ranks first.
			So(result.Records[0].SongID, ShouldEqual, "Cereris.Sakuzyo")
			So(result.Records[0].Tier, ShouldEqual, "IN")
			So(result.Records[0].Rating, ShouldEqual, 15.0)
			So(result.Records[0].SongName, ShouldEqual, "Cereris")

			So(result.Exact, ShouldBeGreaterThan, 0)
			So(result.Rounded, ShouldAlmostEqual, result.Exact, 0.005)
		})

		Convey("BestN truncates to the requested size", func() {
			best, err := svc.BestN(ctx, blob, 2)
			So(err, ShouldBeNil)
			So(len(best), ShouldEqual, 2)
			So(best[0].Rank, ShouldEqual, 1)
			So(best[1].Rank, ShouldEqual, 2)
		})

		Convey("PushAcc answers for every played chart", func() {
			answers, err := svc.PushAcc(ctx, "player-1", blob)
			So(err, ShouldBeNil)
			So(len(answers), ShouldEqual, 3)
			for _, a := range answers {
				if !a.Unreachable {
					So(a.TargetAccuracy, ShouldBeBetweenOrEqual, 70, 100)
				}
			}
		})
	})
}

func TestServiceSongQueries(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := startService(t)

		Convey("ResolveSong matches an alias case-insensitively", func() {
			r, err := svc.ResolveSong("SPAS")
			So(err, ShouldBeNil)
			So(r.Kind, ShouldEqual, "unique")
			So(r.SongID, ShouldEqual, "Spasmodic.HyuN")
		})

		Convey("SongInfo returns metadata and charts", func() {
			detail, err := svc.SongInfo("Cereris")
			So(err, ShouldBeNil)
			So(detail.SongID, ShouldEqual, "Cereris.Sakuzyo")
			So(detail.Composer, ShouldEqual, "Sakuzyo")
			So(len(detail.Charts), ShouldEqual, 4)
			So(detail.Charts[3].Tier, ShouldEqual, "AT")
			So(detail.Charts[3].Constant, ShouldEqual, 15.4)
		})

		Convey("SongInfo rejects unknown queries", func() {
			_, err := svc.SongInfo("no such song")
			So(err, ShouldWrap, service.ErrSongNotFound)
		})

		Convey("ReloadCatalog keeps serving after a rebuild", func() {
			So(svc.ReloadCatalog(context.Background()), ShouldBeNil)
			r, err := svc.ResolveSong("Spasmodic")
			So(err, ShouldBeNil)
			So(r.Kind, ShouldEqual, "unique")
		})
	})
}

func TestServiceRefreshPipeline(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := startService(t)
		ctx := context.Background()
		blob := saveBlob(t)

		Convey("EnqueueRefresh lands the player on the leaderboard", func() {
			taskID, err := svc.EnqueueRefresh(ctx, "player-1", blob)
			So(err, ShouldBeNil)
			So(taskID, ShouldNotBeEmpty)

			deadline := time.Now().Add(2 * time.Second)
			var entryErr error
			for time.Now().Before(deadline) {
				if _, entryErr = svc.PlayerRank(ctx, "player-1"); entryErr == nil {
					break
				}
				time.Sleep(5 * time.Millisecond)
			}
			So(entryErr, ShouldBeNil)

			entry, err := svc.PlayerRank(ctx, "player-1")
			So(err, ShouldBeNil)
			So(entry.Rank, ShouldEqual, 1)
			So(entry.Charts, ShouldEqual, 3)
			So(entry.Rating, ShouldBeGreaterThan, 0)

			top, err := svc.TopPlayers(ctx, 10)
			So(err, ShouldBeNil)
			So(len(top), ShouldEqual, 1)
			So(top[0].PlayerID, ShouldEqual, "player-1")
		})

		Convey("Stats reports pipeline gauges", func() {
			stats := svc.Stats()
			So(stats["started"], ShouldBeTrue)
			So(stats, ShouldContainKey, "queueLength")
			So(stats, ShouldContainKey, "players")
			So(stats, ShouldContainKey, "catalogCharts")
		})
	})
}
