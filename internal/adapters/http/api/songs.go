package api

import (
	"net/http"
	"strings"
)

// SongHandler handles song resolution and catalog administration.
type SongHandler struct {
	deps Dependencies
}

// NewSongHandler creates a new song handler.
func NewSongHandler(deps Dependencies) *SongHandler {
	return &SongHandler{deps: deps}
}

// HandleResolve handles GET /song/resolve?q= requests.
func (h *SongHandler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	const op = "api.song_resolve"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "bad_request", newKind(op, ErrBadRequest))
		return
	}

	resolution, err := h.deps.ResolveSong(query)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resolution)
}

// HandleInfo handles GET /song/info?q= requests. The query must resolve to
// exactly one song.
func (h *SongHandler) HandleInfo(w http.ResponseWriter, r *http.Request) {
	const op = "api.song_info"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "bad_request", newKind(op, ErrBadRequest))
		return
	}

	detail, err := h.deps.SongInfo(query)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// HandleReload handles POST /catalog/reload requests.
func (h *SongHandler) HandleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	if err := h.deps.ReloadCatalog(r.Context()); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
