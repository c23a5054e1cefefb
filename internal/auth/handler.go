package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mmogame/backend/internal/middleware"
	"github.com/mmogame/backend/internal/models"
)

// Players is the player registry the session endpoints work against.
type Players interface {
	GetOrCreatePlayer(ctx context.Context, kind models.PlayerKind, externalID string) (*models.Player, error)
	GetPlayer(ctx context.Context, id int64) (*models.Player, error)
}

type Handler struct {
	players  Players
	tokens   *Tokens
	validate *validator.Validate
}

func NewHandler(players Players, tokens *Tokens) *Handler {
	return &Handler{players: players, tokens: tokens, validate: validator.New()}
}

// Session resolves the caller's identity to a player, creating it on first
// contact, and returns a signed token for it.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	var req models.SessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}
	req.ExternalID = strings.TrimSpace(req.ExternalID)
	if err := h.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "kind and external_id are required"})
		return
	}

	player, err := h.players.GetOrCreatePlayer(r.Context(), req.Kind, req.ExternalID)
	if err != nil {
		log.Printf("[auth] session for %s player failed: %v", req.Kind, err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to create session"})
		return
	}

	token, err := h.tokens.Issue(player.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to generate token"})
		return
	}

	writeJSON(w, http.StatusOK, models.SessionResponse{Token: token, Player: player})
}

func (h *Handler) GetCurrentPlayer(w http.ResponseWriter, r *http.Request) {
	playerID, ok := middleware.PlayerID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	player, err := h.players.GetPlayer(r.Context(), playerID)
	if errors.Is(err, models.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "Player not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, player)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
