package models

import (
	"time"

	"github.com/google/uuid"
)

// Task is one work item being estimated within a room.
//
// Votes mirrors the durable per-player vote records; it is authoritative only
// once IsRevealed is true. Keys are player UUIDs in string form.
type Task struct {
	ID          uuid.UUID         `json:"id"`
	RoomID      uuid.UUID         `json:"room_id"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	LinkJob     string            `json:"link_job,omitempty"`
	LinkFigma   string            `json:"link_figma,omitempty"`
	Votes       map[string]string `json:"votes"`
	IsRevealed  bool              `json:"is_revealed"`
	FinalScore  *string           `json:"final_score,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// CreateTaskRequest carries the fields needed to create a task
type CreateTaskRequest struct {
	RoomID      uuid.UUID `json:"room_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	LinkJob     string    `json:"link_job"`
	LinkFigma   string    `json:"link_figma"`
}
