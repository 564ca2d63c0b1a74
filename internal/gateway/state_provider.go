package gateway

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/storydeck/internal/models"
)

// RoomReader defines what the state provider needs from the room store.
type RoomReader interface {
	GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error)
	ListTasksByRoom(ctx context.Context, roomID uuid.UUID) ([]models.Task, error)
	ListPlayersByRoom(ctx context.Context, roomID uuid.UUID) ([]models.Player, error)
}

// StoreStateProvider serves room state straight from the durable store.
type StoreStateProvider struct {
	store RoomReader
}

// NewStoreStateProvider creates a state provider over a room store.
func NewStoreStateProvider(store RoomReader) *StoreStateProvider {
	return &StoreStateProvider{store: store}
}

// RoomState assembles the room snapshot, deriving the active task the same
// way clients do: the room's pointer if it resolves, else the
// earliest-created task, else none.
func (p *StoreStateProvider) RoomState(ctx context.Context, roomID uuid.UUID) (*RoomState, error) {
	room, err := p.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	tasks, err := p.store.ListTasksByRoom(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("list room tasks: %w", err)
	}
	players, err := p.store.ListPlayersByRoom(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("list room players: %w", err)
	}

	state := &RoomState{
		Room:    room,
		Tasks:   tasks,
		Players: players,
	}
	if room.ActiveTaskID != nil {
		for i := range tasks {
			if tasks[i].ID == *room.ActiveTaskID {
				state.ActiveTask = &tasks[i]
				break
			}
		}
	}
	if state.ActiveTask == nil && len(tasks) > 0 {
		state.ActiveTask = &tasks[0]
	}
	return state, nil
}
