package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Table identifies which collection a change event belongs to.
type Table string

const (
	TableRooms   Table = "rooms"
	TableTasks   Table = "tasks"
	TablePlayers Table = "players"
)

// EventType represents the kind of row change
type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// Event is one committed row change scoped to a single room. Old is absent on
// inserts, New on deletes. Delivery order across different rows is not
// guaranteed; consumers re-read durable state rather than replaying events.
type Event struct {
	Table     Table           `json:"table"`
	Type      EventType       `json:"eventType"`
	RoomID    uuid.UUID       `json:"room_id"`
	Old       json.RawMessage `json:"old,omitempty"`
	New       json.RawMessage `json:"new,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Subject returns the NATS subject a single table's events for a room are
// published on.
func Subject(roomID uuid.UUID, table Table) string {
	return fmt.Sprintf("room.%s.%s", roomID, table)
}

// RoomSubjects returns the wildcard subject covering every table of one room.
func RoomSubjects(roomID uuid.UUID) string {
	return fmt.Sprintf("room.%s.*", roomID)
}

// AllSubjects covers every room's events, used by the gateway fan-out.
const AllSubjects = "room.>"
