package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mcdev12/storydeck/internal/models"
	"github.com/mcdev12/storydeck/internal/realtime"
)

const roomColumns = `id, code, name, owner_id, active_task_id, is_finished, created_at`

func scanRoom(row pgx.Row) (*models.Room, error) {
	var room models.Room
	err := row.Scan(
		&room.ID,
		&room.Code,
		&room.Name,
		&room.OwnerID,
		&room.ActiveTaskID,
		&room.IsFinished,
		&room.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// CreateRoom inserts a room with a freshly generated join code.
func (r *Repository) CreateRoom(ctx context.Context, req models.CreateRoomRequest) (*models.Room, error) {
	code, err := models.NewJoinCode()
	if err != nil {
		return nil, err
	}

	room, err := scanRoom(r.pool.QueryRow(ctx, `
		INSERT INTO rooms (id, code, name, owner_id)
		VALUES ($1, $2, $3, $4)
		RETURNING `+roomColumns,
		uuid.New(), code, req.Name, req.OwnerID,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	r.publish(ctx, realtime.TableRooms, realtime.EventInsert, room.ID, nil, room)
	return room, nil
}

// GetRoom retrieves a room by ID.
func (r *Repository) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	room, err := scanRoom(r.pool.QueryRow(ctx,
		`SELECT `+roomColumns+` FROM rooms WHERE id = $1`, id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("room %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return room, nil
}

// GetRoomByCode retrieves a room by its join code (exact match, callers
// uppercase first).
func (r *Repository) GetRoomByCode(ctx context.Context, code string) (*models.Room, error) {
	room, err := scanRoom(r.pool.QueryRow(ctx,
		`SELECT `+roomColumns+` FROM rooms WHERE code = $1`, code,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("room code %s: %w", code, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room by code: %w", err)
	}
	return room, nil
}

// ListRoomsByOwner retrieves an owner's rooms, newest first.
func (r *Repository) ListRoomsByOwner(ctx context.Context, ownerID string) ([]models.Room, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+roomColumns+` FROM rooms WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms by owner: %w", err)
	}
	defer rows.Close()

	var rooms []models.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		rooms = append(rooms, *room)
	}
	return rooms, rows.Err()
}

// UpdateRoomLock flips the room's finished flag.
func (r *Repository) UpdateRoomLock(ctx context.Context, id uuid.UUID, locked bool) error {
	return r.updateRoom(ctx, id, `UPDATE rooms SET is_finished = $2 WHERE id = $1 RETURNING `+roomColumns, locked)
}

// UpdateActiveTask switches the room's task under estimation.
func (r *Repository) UpdateActiveTask(ctx context.Context, id, taskID uuid.UUID) error {
	return r.updateRoom(ctx, id, `UPDATE rooms SET active_task_id = $2 WHERE id = $1 RETURNING `+roomColumns, taskID)
}

// updateRoom runs a single-column room update and publishes the old/new pair.
func (r *Repository) updateRoom(ctx context.Context, id uuid.UUID, query string, arg any) error {
	oldRoom, err := r.GetRoom(ctx, id)
	if err != nil {
		return err
	}

	newRoom, err := scanRoom(r.pool.QueryRow(ctx, query, id, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("room %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to update room: %w", err)
	}

	r.publish(ctx, realtime.TableRooms, realtime.EventUpdate, id, oldRoom, newRoom)
	return nil
}

// DeleteRoom removes a room and, via cascades, its tasks, players and votes.
func (r *Repository) DeleteRoom(ctx context.Context, id uuid.UUID) error {
	oldRoom, err := r.GetRoom(ctx, id)
	if err != nil {
		return err
	}

	if _, err := r.pool.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}

	r.publish(ctx, realtime.TableRooms, realtime.EventDelete, id, oldRoom, nil)
	return nil
}
