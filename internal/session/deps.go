package session

import (
	"context"

	"github.com/google/uuid"
	"github.com/mcdev12/storydeck/internal/models"
	"github.com/mcdev12/storydeck/internal/realtime"
)

// RoomStore defines what the session needs from the remote rooms collection.
type RoomStore interface {
	CreateRoom(ctx context.Context, req models.CreateRoomRequest) (*models.Room, error)
	GetRoomByCode(ctx context.Context, code string) (*models.Room, error)
	ListRoomsByOwner(ctx context.Context, ownerID string) ([]models.Room, error)
	UpdateRoomLock(ctx context.Context, id uuid.UUID, locked bool) error
	UpdateActiveTask(ctx context.Context, id, taskID uuid.UUID) error
	DeleteRoom(ctx context.Context, id uuid.UUID) error
}

// TaskStore defines what the session needs from the remote tasks collection.
// ListTasksByRoom must order by creation time ascending.
type TaskStore interface {
	CreateTask(ctx context.Context, req models.CreateTaskRequest) (*models.Task, error)
	ListTasksByRoom(ctx context.Context, roomID uuid.UUID) ([]models.Task, error)
	SetRevealed(ctx context.Context, id uuid.UUID, revealed bool) error
	ResetTask(ctx context.Context, id uuid.UUID) error
	SetFinalScore(ctx context.Context, id uuid.UUID, score string) error
}

// PlayerStore defines what the session needs from the remote players
// collection.
type PlayerStore interface {
	CreatePlayer(ctx context.Context, req models.CreatePlayerRequest) (*models.Player, error)
	GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error)
	GetPlayerByAccount(ctx context.Context, roomID uuid.UUID, userID string) (*models.Player, error)
	ListPlayersByRoom(ctx context.Context, roomID uuid.UUID) ([]models.Player, error)
}

// VoteStore defines what the session needs from the durable vote records.
// UpsertVote is last-write-wins on the (task, player) pair.
type VoteStore interface {
	UpsertVote(ctx context.Context, taskID, playerID uuid.UUID, value string) error
	ListVotesByTask(ctx context.Context, taskID uuid.UUID) ([]models.VoteRecord, error)
	DeleteVotesByTask(ctx context.Context, taskID uuid.UUID) error
}

// FeedSubscription is a live change-notification subscription.
type FeedSubscription interface {
	Close() error
}

// ChangeFeed yields one room's change events until the subscription is
// closed. Delivery order across rows is not guaranteed.
type ChangeFeed interface {
	Subscribe(ctx context.Context, roomID uuid.UUID, handler func(realtime.Event)) (FeedSubscription, error)
}

// IdentityCache is the device-local room→player mapping. A lookup miss or a
// failed save never blocks a join; the mapping is convenience, not truth.
type IdentityCache interface {
	PlayerID(ctx context.Context, roomID uuid.UUID) (uuid.UUID, bool, error)
	SavePlayerID(ctx context.Context, roomID, playerID uuid.UUID) error
}
