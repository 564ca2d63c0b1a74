package models

import (
	"time"

	"github.com/google/uuid"
)

// Player is one voting member of a room. UserID links the player to an
// authenticated account; anonymous participation leaves it nil.
type Player struct {
	ID        uuid.UUID `json:"id"`
	RoomID    uuid.UUID `json:"room_id"`
	Name      string    `json:"name"`
	Avatar    string    `json:"avatar"`
	UserID    *string   `json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CreatePlayerRequest carries the fields needed to create a player
type CreatePlayerRequest struct {
	RoomID uuid.UUID `json:"room_id"`
	Name   string    `json:"name"`
	Avatar string    `json:"avatar"`
	UserID *string   `json:"user_id,omitempty"`
}
