package models

import "github.com/google/uuid"

// VoteRecord is the durable vote of one player on one task. There is at most
// one record per (task, player) pair; later writes replace the value.
type VoteRecord struct {
	TaskID   uuid.UUID `json:"task_id"`
	PlayerID uuid.UUID `json:"player_id"`
	Value    string    `json:"value"`
}
