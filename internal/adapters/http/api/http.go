// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Sczr0/Phi-Backend/internal/adapters/repository"
	service "github.com/Sczr0/Phi-Backend/internal/app"
	"github.com/Sczr0/Phi-Backend/internal/domain/rating"
	"github.com/Sczr0/Phi-Backend/internal/domain/save"
	"github.com/Sczr0/Phi-Backend/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	ParseSave(ctx context.Context, blob []byte) (*save.Save, error)
	RKS(ctx context.Context, blob []byte) (types.RKSResult, error)
	BestN(ctx context.Context, blob []byte, n int) ([]types.BestScore, error)
	PushAcc(ctx context.Context, playerID string, blob []byte) ([]types.PushAcc, error)
	EnqueueRefresh(ctx context.Context, playerID string, blob []byte) (string, error)
	ResolveSong(query string) (types.SongResolution, error)
	SongInfo(query string) (types.SongDetail, error)
	ReloadCatalog(ctx context.Context) error
	PlayerRank(ctx context.Context, playerID string) (types.LeaderboardEntry, error)
	TopPlayers(ctx context.Context, n int) ([]types.LeaderboardEntry, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	saveHandler        *SaveHandler
	songHandler        *SongHandler
	leaderboardHandler *LeaderboardHandler
	rankHandler        *RankHandler
}

// NewServer creates a new API server with all handlers. maxLimit caps the
// leaderboard page size.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxLimit int) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		saveHandler:        NewSaveHandler(deps),
		songHandler:        NewSongHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps, maxLimit),
		rankHandler:        NewRankHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", Middleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/metrics", s.healthHandler.HandleMetrics)
	mux.HandleFunc("/stats", Middleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("/save/parse", Middleware(s.saveHandler.HandleParse, "save_parse"))
	mux.HandleFunc("/save/rks", Middleware(s.saveHandler.HandleRKS, "save_rks"))
	mux.HandleFunc("/save/bestn", Middleware(s.saveHandler.HandleBestN, "save_bestn"))
	mux.HandleFunc("/save/pushacc", Middleware(s.saveHandler.HandlePushAcc, "save_pushacc"))
	mux.HandleFunc("/save/refresh", Middleware(s.saveHandler.HandleRefresh, "save_refresh"))

	mux.HandleFunc("/song/resolve", Middleware(s.songHandler.HandleResolve, "song_resolve"))
	mux.HandleFunc("/song/info", Middleware(s.songHandler.HandleInfo, "song_info"))
	mux.HandleFunc("/catalog/reload", Middleware(s.songHandler.HandleReload, "catalog_reload"))

	mux.HandleFunc("/leaderboard", Middleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/rank/", Middleware(s.rankHandler.HandleGetRank, "rank"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError maps service-layer error kinds to status codes. The
// mapping lives here and only here.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrSongNotFound),
		errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, service.ErrAmbiguousSong):
		writeError(w, http.StatusConflict, "ambiguous", err)
	case errors.Is(err, service.ErrRefreshPending):
		writeError(w, http.StatusConflict, "refresh_pending", err)
	case errors.Is(err, service.ErrQueueFull):
		writeError(w, http.StatusTooManyRequests, "backpressure", err)
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	case errors.Is(err, save.ErrDecryption),
		errors.Is(err, save.ErrDecompression),
		errors.Is(err, save.ErrTruncated),
		errors.Is(err, save.ErrMalformedRecord),
		errors.Is(err, save.ErrUnsupportedVersion),
		errors.Is(err, rating.ErrInvalidScore):
		writeError(w, http.StatusBadRequest, "bad_save", err)
	case errors.Is(err, rating.ErrInvalidParameter),
		errors.Is(err, repository.ErrInvalidLimit):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
