package models

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Room is one shared estimation session, joined by a human-enterable code.
type Room struct {
	ID           uuid.UUID  `json:"id"`
	Code         string     `json:"code"`
	Name         string     `json:"name"`
	OwnerID      string     `json:"owner_id"`
	ActiveTaskID *uuid.UUID `json:"active_task_id,omitempty"`
	IsFinished   bool       `json:"is_finished"`
	CreatedAt    time.Time  `json:"created_at"`
}

// CreateRoomRequest carries the fields needed to create a room
type CreateRoomRequest struct {
	Name    string `json:"name"`
	OwnerID string `json:"owner_id"`
}

// Join codes skip characters that are easy to misread over a call (0/O, 1/I).
const joinCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const joinCodeLength = 6

// NewJoinCode generates a random uppercase room join code.
func NewJoinCode() (string, error) {
	b := make([]byte, joinCodeLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate join code: %w", err)
	}
	for i := range b {
		b[i] = joinCodeAlphabet[int(b[i])%len(joinCodeAlphabet)]
	}
	return string(b), nil
}
