package catalog_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/Sczr0/Phi-Backend/internal/domain/catalog"
	"github.com/Sczr0/Phi-Backend/internal/domain/save"
)

type fixture struct {
	info       string
	difficulty string
	alias      string
}

func writeFixture(t *testing.T, fx fixture) catalog.Sources {
	t.Helper()
	dir := t.TempDir()
	src := catalog.Sources{
		InfoPath:       filepath.Join(dir, "info.csv"),
		DifficultyPath: filepath.Join(dir, "difficulty.csv"),
		AliasPath:      filepath.Join(dir, "nicklist.yaml"),
	}
	for path, body := range map[string]string{
		src.InfoPath:       fx.info,
		src.DifficultyPath: fx.difficulty,
		src.AliasPath:      fx.alias,
	} {
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	return src
}

func defaultFixture() fixture {
	return fixture{
		info: "id,song,composer,illustrator\n" +
			"AnotherMe.KALPA,Another Me,KALPA,someone\n" +
			"AnotherMe.Rising,Another Me,Rising Sun Traxx,someone\n" +
			"Shadow.Tester,Shadow,Tester,someone\n",
		difficulty: "id,EZ,HD,IN,AT\n" +
			"AnotherMe.KALPA,4.5,9.0,13.6,\n" +
			"AnotherMe.Rising,3.5,8.0,12.1,\n" +
			"Shadow.Tester,2.0,6.5,11.0,14.2\n",
		alias: "Shadow:\n  - shd\n  - kage\n",
	}
}

func TestLoad(t *testing.T) {
	Convey("Given a complete set of catalog sources", t, func() {
		src := writeFixture(t, defaultFixture())

		Convey("When the catalog is loaded", func() {
			c, err := catalog.Load(context.Background(), src)
			So(err, ShouldBeNil)

			Convey("Then every chart with a constant is resolvable", func() {
				So(c.Len(), ShouldEqual, 10)
				So(c.Songs(), ShouldEqual, 3)

				e, ok := c.Lookup("Shadow.Tester", save.TierAT)
				So(ok, ShouldBeTrue)
				So(e.Constant, ShouldEqual, 14.2)
				So(e.SongName, ShouldEqual, "Shadow")
				So(e.Composer, ShouldEqual, "Tester")
			})

			Convey("Then tiers without a constant are absent", func() {
				_, ok := c.Lookup("AnotherMe.KALPA", save.TierAT)
				So(ok, ShouldBeFalse)
			})

			Convey("Then song names fall back to the id when unknown", func() {
				So(c.SongName("Shadow.Tester"), ShouldEqual, "Shadow")
				So(c.SongName("nope"), ShouldEqual, "nope")
			})
		})
	})
}

func TestLoadFailures(t *testing.T) {
	Convey("Given catalog sources with data problems", t, func() {
		Convey("A missing source file fails the load", func() {
			src := writeFixture(t, defaultFixture())
			src.InfoPath = filepath.Join(t.TempDir(), "absent.csv")

			_, err := catalog.Load(context.Background(), src)
			So(err, ShouldWrap, catalog.ErrLoad)
		})

		Convey("A duplicate song row in the difficulty source fails the load", func() {
			fx := defaultFixture()
			fx.difficulty += "Shadow.Tester,2.0,6.5,11.0,14.2\n"
			src := writeFixture(t, fx)

			_, err := catalog.Load(context.Background(), src)
			So(err, ShouldWrap, catalog.ErrLoad)
		})

		Convey("A non-numeric constant fails the load", func() {
			fx := defaultFixture()
			fx.difficulty += "Broken.Song,abc,,,\n"
			src := writeFixture(t, fx)

			_, err := catalog.Load(context.Background(), src)
			So(err, ShouldWrap, catalog.ErrLoad)
		})

		Convey("An alias entry for an unknown song fails the load", func() {
			fx := defaultFixture()
			fx.alias = "Nobody:\n  - ghost\n"
			src := writeFixture(t, fx)

			_, err := catalog.Load(context.Background(), src)
			So(err, ShouldWrap, catalog.ErrLoad)
		})
	})
}

func TestResolve(t *testing.T) {
	Convey("Given a loaded catalog", t, func() {
		c, err := catalog.Load(context.Background(), writeFixture(t, defaultFixture()))
		So(err, ShouldBeNil)

		Convey("A song id resolves uniquely", func() {
			res := c.Resolve("Shadow.Tester")
			So(res.Kind, ShouldEqual, catalog.MatchUnique)
			So(res.SongID, ShouldEqual, "Shadow.Tester")
		})

		Convey("An alias resolves uniquely and case-insensitively", func() {
			res := c.Resolve("KAGE")
			So(res.Kind, ShouldEqual, catalog.MatchUnique)
			So(res.SongID, ShouldEqual, "Shadow.Tester")
		})

		Convey("A display name shared by two songs is ambiguous with sorted candidates", func() {
			res := c.Resolve("another me")
			So(res.Kind, ShouldEqual, catalog.MatchAmbiguous)
			So(res.SongID, ShouldBeEmpty)
			So(res.Candidates, ShouldResemble, []string{"AnotherMe.KALPA", "AnotherMe.Rising"})
		})

		Convey("An unknown query is not found", func() {
			So(c.Resolve("missing").Kind, ShouldEqual, catalog.MatchNotFound)
			So(c.Resolve("   ").Kind, ShouldEqual, catalog.MatchNotFound)
		})
	})
}

func TestReload(t *testing.T) {
	Convey("Given a loaded catalog", t, func() {
		fx := defaultFixture()
		src := writeFixture(t, fx)
		c, err := catalog.Load(context.Background(), src)
		So(err, ShouldBeNil)

		Convey("When a source grows and Reload succeeds, the new snapshot is served", func() {
			extra := fx
			extra.difficulty += "New.Song,1.0,5.0,10.0,\n"
			if err := os.WriteFile(src.DifficultyPath, []byte(extra.difficulty), 0o600); err != nil {
				t.Fatal(err)
			}

			So(c.Reload(context.Background()), ShouldBeNil)
			_, ok := c.Lookup("New.Song", save.TierIN)
			So(ok, ShouldBeTrue)
		})

		Convey("When Reload fails, the previous snapshot stays active", func() {
			if err := os.WriteFile(src.DifficultyPath, []byte("id,EZ,HD,IN,AT\nbad,x,,,\n"), 0o600); err != nil {
				t.Fatal(err)
			}

			So(c.Reload(context.Background()), ShouldWrap, catalog.ErrLoad)
			So(c.Len(), ShouldEqual, 10)
			_, ok := c.Lookup("Shadow.Tester", save.TierAT)
			So(ok, ShouldBeTrue)
		})
	})
}
