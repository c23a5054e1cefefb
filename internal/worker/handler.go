package worker

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/mmogame/backend/internal/models"
	"github.com/mmogame/backend/internal/rasch"
)

// Handler exposes estimation jobs and snapshots to administrators.
type Handler struct {
	queue     *Queue
	snapshots *rasch.Store
}

func NewHandler(queue *Queue, snapshots *rasch.Store) *Handler {
	return &Handler{queue: queue, snapshots: snapshots}
}

// Enqueue queues an estimation of the game. The caller identifies itself
// with the optional user query parameter, recorded on the snapshot key.
func (h *Handler) Enqueue(w http.ResponseWriter, r *http.Request) {
	gameID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || gameID <= 0 {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid game ID"})
		return
	}
	var req models.EstimationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if req.NumGame < 0 {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "numgame must not be negative"})
		return
	}
	userID, _ := strconv.ParseInt(r.URL.Query().Get("user"), 10, 64)

	job, err := h.queue.Enqueue(gameID, req.NumGame, userID)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, models.ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (h *Handler) Job(w http.ResponseWriter, r *http.Request) {
	job, ok := h.queue.Job(mux.Vars(r)["jobId"])
	if !ok {
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "Job not found"})
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	keyID, err := strconv.ParseInt(mux.Vars(r)["keyId"], 10, 64)
	if err != nil || keyID <= 0 {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid snapshot ID"})
		return
	}
	snap, err := h.snapshots.Load(r.Context(), keyID)
	if errors.Is(err, models.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "Snapshot not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to load snapshot"})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
