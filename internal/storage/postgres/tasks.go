package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mcdev12/storydeck/internal/models"
	"github.com/mcdev12/storydeck/internal/realtime"
	"github.com/sqlc-dev/pqtype"
)

const taskColumns = `id, room_id, title, description, link_job, link_figma, votes, is_revealed, final_score, created_at`

func scanTask(row pgx.Row) (*models.Task, error) {
	var (
		task  models.Task
		votes pqtype.NullRawMessage
	)
	err := row.Scan(
		&task.ID,
		&task.RoomID,
		&task.Title,
		&task.Description,
		&task.LinkJob,
		&task.LinkFigma,
		&votes,
		&task.IsRevealed,
		&task.FinalScore,
		&task.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	task.Votes = make(map[string]string)
	if votes.Valid && len(votes.RawMessage) > 0 {
		if err := json.Unmarshal(votes.RawMessage, &task.Votes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal task votes: %w", err)
		}
	}
	return &task, nil
}

// CreateTask inserts a task with an empty votes map, not revealed.
func (r *Repository) CreateTask(ctx context.Context, req models.CreateTaskRequest) (*models.Task, error) {
	task, err := scanTask(r.pool.QueryRow(ctx, `
		INSERT INTO tasks (id, room_id, title, description, link_job, link_figma)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+taskColumns,
		uuid.New(), req.RoomID, req.Title, req.Description, req.LinkJob, req.LinkFigma,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	r.publish(ctx, realtime.TableTasks, realtime.EventInsert, task.RoomID, nil, task)
	return task, nil
}

// GetTask retrieves a task by ID.
func (r *Repository) GetTask(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	task, err := scanTask(r.pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// ListTasksByRoom retrieves a room's tasks in creation order.
func (r *Repository) ListTasksByRoom(ctx context.Context, roomID uuid.UUID) ([]models.Task, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE room_id = $1 ORDER BY created_at ASC`, roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks by room: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// SetRevealed flips a task's revealed flag.
func (r *Repository) SetRevealed(ctx context.Context, id uuid.UUID, revealed bool) error {
	return r.updateTask(ctx, id,
		`UPDATE tasks SET is_revealed = $2 WHERE id = $1 RETURNING `+taskColumns, revealed)
}

// ResetTask returns a task to the not-revealed state with no votes and no
// final score. Vote records are deleted separately by DeleteVotesByTask.
func (r *Repository) ResetTask(ctx context.Context, id uuid.UUID) error {
	oldTask, err := r.GetTask(ctx, id)
	if err != nil {
		return err
	}

	newTask, err := scanTask(r.pool.QueryRow(ctx, `
		UPDATE tasks SET is_revealed = FALSE, votes = '{}'::jsonb, final_score = NULL
		WHERE id = $1
		RETURNING `+taskColumns, id,
	))
	if err != nil {
		return fmt.Errorf("failed to reset task: %w", err)
	}

	r.publish(ctx, realtime.TableTasks, realtime.EventUpdate, newTask.RoomID, oldTask, newTask)
	return nil
}

// SetFinalScore records the agreed score on a task.
func (r *Repository) SetFinalScore(ctx context.Context, id uuid.UUID, score string) error {
	return r.updateTask(ctx, id,
		`UPDATE tasks SET final_score = $2 WHERE id = $1 RETURNING `+taskColumns, score)
}

func (r *Repository) updateTask(ctx context.Context, id uuid.UUID, query string, arg any) error {
	oldTask, err := r.GetTask(ctx, id)
	if err != nil {
		return err
	}

	newTask, err := scanTask(r.pool.QueryRow(ctx, query, id, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("task %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}

	r.publish(ctx, realtime.TableTasks, realtime.EventUpdate, newTask.RoomID, oldTask, newTask)
	return nil
}
