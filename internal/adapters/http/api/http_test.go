package api_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/Sczr0/Phi-Backend/internal/adapters/http/api"
	"github.com/Sczr0/Phi-Backend/internal/adapters/repository"
	service "github.com/Sczr0/Phi-Backend/internal/app"
	"github.com/Sczr0/Phi-Backend/internal/domain/save"
	"github.com/Sczr0/Phi-Backend/internal/domain/types"
)

// stubService fakes the service façade with canned answers per method.
type stubService struct {
	parseErr   error
	refreshErr error
	rankErr    error
	songErr    error

	taskID string
}

func (s *stubService) ParseSave(ctx context.Context, blob []byte) (*save.Save, error) {
	if s.parseErr != nil {
		return nil, s.parseErr
	}
	return &save.Save{
		GameRecord: save.GameRecord{
			"Song.Artist": {
				save.TierIN: {Score: 990000, Accuracy: 99.0, FullCombo: false},
			},
		},
	}, nil
}

func (s *stubService) RKS(ctx context.Context, blob []byte) (types.RKSResult, error) {
	if s.parseErr != nil {
		return types.RKSResult{}, s.parseErr
	}
	return types.RKSResult{Exact: 13.3337, Rounded: 13.33}, nil
}

func (s *stubService) BestN(ctx context.Context, blob []byte, n int) ([]types.BestScore, error) {
	if s.parseErr != nil {
		return nil, s.parseErr
	}
	out := make([]types.BestScore, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, types.BestScore{Rank: i + 1, SongID: fmt.Sprintf("song-%d", i)})
	}
	return out, nil
}

func (s *stubService) PushAcc(ctx context.Context, playerID string, blob []byte) ([]types.PushAcc, error) {
	if s.parseErr != nil {
		return nil, s.parseErr
	}
	return []types.PushAcc{{SongID: "Song.Artist", Tier: "IN", TargetAccuracy: 99.5}}, nil
}

func (s *stubService) EnqueueRefresh(ctx context.Context, playerID string, blob []byte) (string, error) {
	if s.refreshErr != nil {
		return "", s.refreshErr
	}
	return s.taskID, nil
}

func (s *stubService) ResolveSong(query string) (types.SongResolution, error) {
	if s.songErr != nil {
		return types.SongResolution{}, s.songErr
	}
	return types.SongResolution{Kind: "unique", SongID: "Song.Artist"}, nil
}

func (s *stubService) SongInfo(query string) (types.SongDetail, error) {
	if s.songErr != nil {
		return types.SongDetail{}, s.songErr
	}
	return types.SongDetail{SongID: "Song.Artist", SongName: "Song"}, nil
}

func (s *stubService) ReloadCatalog(ctx context.Context) error { return nil }

func (s *stubService) PlayerRank(ctx context.Context, playerID string) (types.LeaderboardEntry, error) {
	if s.rankErr != nil {
		return types.LeaderboardEntry{}, s.rankErr
	}
	return types.LeaderboardEntry{Rank: 1, PlayerID: playerID, Rating: 14.5, Charts: 30}, nil
}

func (s *stubService) TopPlayers(ctx context.Context, n int) ([]types.LeaderboardEntry, error) {
	return []types.LeaderboardEntry{{Rank: 1, PlayerID: "p1", Rating: 14.5}}, nil
}

func (s *stubService) Stats() map[string]interface{} {
	return map[string]interface{}{"started": true}
}

func newTestServer(stub *stubService) *httptest.Server {
	mux := http.NewServeMux()
	api.NewServer(stub, stub, 100).Register(context.Background(), mux)
	return httptest.NewServer(mux)
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(buf))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func blob64() string {
	return base64.StdEncoding.EncodeToString([]byte("blob"))
}

func TestSaveEndpoints(t *testing.T) {
	Convey("Given the API over a healthy service", t, func() {
		stub := &stubService{taskID: "task-123"}
		srv := newTestServer(stub)
		defer srv.Close()

		Convey("POST /save/parse decodes and returns records", func() {
			resp := postJSON(t, srv.URL+"/save/parse", map[string]string{"blob": blob64()})
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(resp.Header.Get("X-Request-ID"), ShouldNotBeEmpty)

			var got struct {
				Records []map[string]any `json:"records"`
			}
			So(json.NewDecoder(resp.Body).Decode(&got), ShouldBeNil)
			So(len(got.Records), ShouldEqual, 1)
			So(got.Records[0]["song_id"], ShouldEqual, "Song.Artist")
			So(got.Records[0]["tier"], ShouldEqual, "IN")
		})

		Convey("POST /save/parse rejects a missing blob", func() {
			resp := postJSON(t, srv.URL+"/save/parse", map[string]string{})
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("POST /save/parse rejects invalid base64", func() {
			resp := postJSON(t, srv.URL+"/save/parse", map[string]string{"blob": "!!not base64!!"})
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("POST /save/rks returns the overall rating", func() {
			resp := postJSON(t, srv.URL+"/save/rks", map[string]string{"blob": blob64()})
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			var got types.RKSResult
			So(json.NewDecoder(resp.Body).Decode(&got), ShouldBeNil)
			So(got.Rounded, ShouldEqual, 13.33)
		})

		Convey("POST /save/bestn requires a positive n", func() {
			resp := postJSON(t, srv.URL+"/save/bestn", map[string]any{"blob": blob64()})
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("POST /save/bestn returns n rows", func() {
			resp := postJSON(t, srv.URL+"/save/bestn", map[string]any{"blob": blob64(), "n": 3})
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			var got []types.BestScore
			So(json.NewDecoder(resp.Body).Decode(&got), ShouldBeNil)
			So(len(got), ShouldEqual, 3)
		})

		Convey("POST /save/pushacc requires a player id", func() {
			resp := postJSON(t, srv.URL+"/save/pushacc", map[string]any{"blob": blob64()})
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("POST /save/refresh acknowledges with the task id", func() {
			resp := postJSON(t, srv.URL+"/save/refresh",
				map[string]any{"blob": blob64(), "player_id": "p1"})
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusAccepted)

			var got map[string]string
			So(json.NewDecoder(resp.Body).Decode(&got), ShouldBeNil)
			So(got["task_id"], ShouldEqual, "task-123")
		})
	})
}

func TestErrorMapping(t *testing.T) {
	Convey("Given the API over a failing service", t, func() {
		Convey("A corrupt save maps to 400", func() {
			stub := &stubService{parseErr: fmt.Errorf("member: %w", save.ErrDecryption)}
			srv := newTestServer(stub)
			defer srv.Close()

			resp := postJSON(t, srv.URL+"/save/parse", map[string]string{"blob": blob64()})
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("A pending refresh maps to 409", func() {
			stub := &stubService{refreshErr: service.ErrRefreshPending}
			srv := newTestServer(stub)
			defer srv.Close()

			resp := postJSON(t, srv.URL+"/save/refresh",
				map[string]any{"blob": blob64(), "player_id": "p1"})
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusConflict)
		})

		Convey("A full queue maps to 429", func() {
			stub := &stubService{refreshErr: service.ErrQueueFull}
			srv := newTestServer(stub)
			defer srv.Close()

			resp := postJSON(t, srv.URL+"/save/refresh",
				map[string]any{"blob": blob64(), "player_id": "p1"})
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusTooManyRequests)
		})

		Convey("An unknown player maps to 404", func() {
			stub := &stubService{rankErr: repository.ErrNotFound}
			srv := newTestServer(stub)
			defer srv.Close()

			resp, err := http.Get(srv.URL + "/rank/nobody")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})

		Convey("An unknown song maps to 404, an ambiguous one to 409", func() {
			stub := &stubService{songErr: service.ErrSongNotFound}
			srv := newTestServer(stub)
			defer srv.Close()

			resp, err := http.Get(srv.URL + "/song/info?q=nope")
			So(err, ShouldBeNil)
			resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)

			stub.songErr = service.ErrAmbiguousSong
			resp, err = http.Get(srv.URL + "/song/info?q=another")
			So(err, ShouldBeNil)
			resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusConflict)
		})
	})
}

func TestReadEndpoints(t *testing.T) {
	Convey("Given the API over a healthy service", t, func() {
		stub := &stubService{}
		srv := newTestServer(stub)
		defer srv.Close()

		Convey("GET /song/resolve requires a query", func() {
			resp, err := http.Get(srv.URL + "/song/resolve")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("GET /song/resolve answers the match", func() {
			resp, err := http.Get(srv.URL + "/song/resolve?q=song")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			var got types.SongResolution
			So(json.NewDecoder(resp.Body).Decode(&got), ShouldBeNil)
			So(got.Kind, ShouldEqual, "unique")
		})

		Convey("GET /leaderboard validates the limit", func() {
			for _, q := range []string{"", "limit=0", "limit=abc", "limit=1000"} {
				resp, err := http.Get(srv.URL + "/leaderboard?" + q)
				So(err, ShouldBeNil)
				resp.Body.Close()
				So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
			}
		})

		Convey("GET /leaderboard returns entries", func() {
			resp, err := http.Get(srv.URL + "/leaderboard?limit=10")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			var got []types.LeaderboardEntry
			So(json.NewDecoder(resp.Body).Decode(&got), ShouldBeNil)
			So(len(got), ShouldEqual, 1)
			So(got[0].PlayerID, ShouldEqual, "p1")
		})

		Convey("GET /rank/{player} returns the row", func() {
			resp, err := http.Get(srv.URL + "/rank/p1")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			var got types.LeaderboardEntry
			So(json.NewDecoder(resp.Body).Decode(&got), ShouldBeNil)
			So(got.PlayerID, ShouldEqual, "p1")
		})

		Convey("GET /healthz and /stats respond", func() {
			for _, path := range []string{"/healthz", "/stats"} {
				resp, err := http.Get(srv.URL + path)
				So(err, ShouldBeNil)
				resp.Body.Close()
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
			}
		})

		Convey("GET /metrics serves the Prometheus registry", func() {
			resp, err := http.Get(srv.URL + "/metrics")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
		})
	})
}
