package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/mcdev12/storydeck/internal/models"
	"github.com/rs/zerolog/log"
)

// StateProvider interface defines how the handler retrieves room state
type StateProvider interface {
	RoomState(ctx context.Context, roomID uuid.UUID) (*RoomState, error)
}

// RoomState is the snapshot served to a client joining or reloading a room.
type RoomState struct {
	Room       *models.Room    `json:"room"`
	ActiveTask *models.Task    `json:"active_task,omitempty"`
	Tasks      []models.Task   `json:"tasks"`
	Players    []models.Player `json:"players"`
}

// StateHandler handles HTTP requests for room state
type StateHandler struct {
	stateProvider StateProvider
}

// NewStateHandler creates a new state handler
func NewStateHandler(provider StateProvider) *StateHandler {
	return &StateHandler{
		stateProvider: provider,
	}
}

// HandleGetRoomState handles GET /api/rooms/{id}/state
func (h *StateHandler) HandleGetRoomState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	roomIDStr := extractRoomIDFromPath(r.URL.Path)
	if roomIDStr == "" {
		http.Error(w, "Room ID is required", http.StatusBadRequest)
		return
	}

	roomID, err := uuid.Parse(roomIDStr)
	if err != nil {
		http.Error(w, "Invalid room ID format", http.StatusBadRequest)
		return
	}

	state, err := h.stateProvider.RoomState(r.Context(), roomID)
	if errors.Is(err, models.ErrNotFound) {
		http.Error(w, "Room not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID.String()).Msg("failed to get room state")
		http.Error(w, "Failed to get room state", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(state); err != nil {
		log.Error().Err(err).Msg("failed to encode room state")
	}
}

// RegisterStateRoutes registers the state routes with an HTTP mux
func (h *StateHandler) RegisterStateRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/rooms/", h.HandleGetRoomState)
}

// extractRoomIDFromPath pulls the id out of /api/rooms/{id}/state
func extractRoomIDFromPath(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 4 || parts[0] != "api" || parts[1] != "rooms" || parts[3] != "state" {
		return ""
	}
	return parts[2]
}
