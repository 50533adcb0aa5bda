package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/Sczr0/Phi-Backend/internal/domain/save"
)

// SaveHandler handles the save pipeline endpoints. All of them take the
// encrypted save blob base64-encoded in a JSON body.
type SaveHandler struct {
	deps Dependencies
}

// NewSaveHandler creates a new save handler.
func NewSaveHandler(deps Dependencies) *SaveHandler {
	return &SaveHandler{deps: deps}
}

// saveRequest is the shared request shape of the save endpoints. N is only
// read by best-N, PlayerID only by push-acc and refresh.
type saveRequest struct {
	PlayerID string `json:"player_id"`
	Blob     string `json:"blob"`
	N        int    `json:"n"`
}

func (req *saveRequest) decode(r *http.Request) ([]byte, error) {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Blob) == "" {
		return nil, errors.New("missing blob")
	}
	blob, err := base64.StdEncoding.DecodeString(req.Blob)
	if err != nil {
		return nil, errors.New("blob is not valid base64")
	}
	return blob, nil
}

func (req *saveRequest) requirePlayer() error {
	if strings.TrimSpace(req.PlayerID) == "" {
		return errors.New("missing player_id")
	}
	return nil
}

// parsedRecord is one row of the decoded record table.
type parsedRecord struct {
	SongID    string  `json:"song_id"`
	Tier      string  `json:"tier"`
	Score     uint32  `json:"score"`
	Accuracy  float64 `json:"accuracy"`
	FullCombo bool    `json:"full_combo"`
}

type parseResponse struct {
	Records  []parsedRecord `json:"records"`
	Progress map[string]any `json:"progress,omitempty"`
	Settings map[string]any `json:"settings,omitempty"`
	User     map[string]any `json:"user,omitempty"`
}

type refreshResponse struct {
	Status string `json:"status"`
	TaskID string `json:"task_id"`
}

// HandleParse handles POST /save/parse requests.
func (h *SaveHandler) HandleParse(w http.ResponseWriter, r *http.Request) {
	const op = "api.save_parse"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req saveRequest
	blob, err := req.decode(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
		return
	}

	sv, err := h.deps.ParseSave(r.Context(), blob)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, parseResponse{
		Records:  flattenRecords(sv.GameRecord),
		Progress: sv.Progress,
		Settings: sv.Settings,
		User:     sv.User,
	})
}

// HandleRKS handles POST /save/rks requests.
func (h *SaveHandler) HandleRKS(w http.ResponseWriter, r *http.Request) {
	const op = "api.save_rks"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req saveRequest
	blob, err := req.decode(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
		return
	}

	result, err := h.deps.RKS(r.Context(), blob)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleBestN handles POST /save/bestn requests.
func (h *SaveHandler) HandleBestN(w http.ResponseWriter, r *http.Request) {
	const op = "api.save_bestn"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req saveRequest
	blob, err := req.decode(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
		return
	}
	if req.N < 1 {
		writeError(w, http.StatusBadRequest, "bad_request", newKind(op, ErrBadRequest))
		return
	}

	best, err := h.deps.BestN(r.Context(), blob, req.N)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, best)
}

// HandlePushAcc handles POST /save/pushacc requests.
func (h *SaveHandler) HandlePushAcc(w http.ResponseWriter, r *http.Request) {
	const op = "api.save_pushacc"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req saveRequest
	blob, err := req.decode(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.requirePlayer(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
		return
	}

	answers, err := h.deps.PushAcc(r.Context(), req.PlayerID, blob)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answers)
}

// HandleRefresh handles POST /save/refresh requests: queue an asynchronous
// leaderboard refresh for the player.
func (h *SaveHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	const op = "api.save_refresh"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req saveRequest
	blob, err := req.decode(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.requirePlayer(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
		return
	}

	taskID, err := h.deps.EnqueueRefresh(r.Context(), req.PlayerID, blob)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, refreshResponse{Status: "accepted", TaskID: taskID})
}

func flattenRecords(records save.GameRecord) []parsedRecord {
	var out []parsedRecord
	for songID, tiers := range records {
		for tier, attempt := range tiers {
			out = append(out, parsedRecord{
				SongID:    songID,
				Tier:      tier.String(),
				Score:     attempt.Score,
				Accuracy:  attempt.Accuracy,
				FullCombo: attempt.FullCombo,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SongID != out[j].SongID {
			return out[i].SongID < out[j].SongID
		}
		return out[i].Tier < out[j].Tier
	})
	return out
}
