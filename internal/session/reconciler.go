package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/storydeck/internal/models"
	"github.com/mcdev12/storydeck/internal/realtime"
	"github.com/rs/zerolog/log"
)

// SubscribeToRoom performs one full refresh of the loaded room and then
// starts consuming its change feed. Each notification triggers another full
// refresh; refreshes re-read current durable state, so rapid, unordered
// notifications still converge on the latest state.
func (s *Session) SubscribeToRoom(ctx context.Context) error {
	s.mu.RLock()
	room := s.room
	s.mu.RUnlock()
	if room == nil {
		return ErrNoRoom
	}

	if err := s.refresh(ctx); err != nil {
		return err
	}

	sub, err := s.feed.Subscribe(ctx, room.ID, func(ev realtime.Event) {
		s.handleEvent(ctx, ev)
	})
	if err != nil {
		return fmt.Errorf("subscribe to room feed: %w", err)
	}

	s.mu.Lock()
	s.feedSub = sub
	s.mu.Unlock()
	return nil
}

// refresh replaces the participant and task slices with current durable
// state and re-derives the active task: the room's pointer if it resolves,
// else the earliest-created task, else none. A revealed active task gets its
// votes re-fetched from durable records; an unrevealed one whose votes no
// longer carry the local player's entry drops the overlay.
func (s *Session) refresh(ctx context.Context) error {
	s.mu.RLock()
	room := s.room
	s.mu.RUnlock()
	if room == nil {
		return nil
	}

	players, err := s.players.ListPlayersByRoom(ctx, room.ID)
	if err != nil {
		return fmt.Errorf("refresh players: %w", err)
	}
	tasks, err := s.tasks.ListTasksByRoom(ctx, room.ID)
	if err != nil {
		return fmt.Errorf("refresh tasks: %w", err)
	}

	var refetch uuid.UUID

	s.mu.Lock()
	s.playerList = players
	s.taskList = tasks

	var active *models.Task
	if s.room != nil && s.room.ActiveTaskID != nil {
		for i := range s.taskList {
			if s.taskList[i].ID == *s.room.ActiveTaskID {
				active = &s.taskList[i]
				break
			}
		}
	}
	if active == nil && len(s.taskList) > 0 {
		active = &s.taskList[0]
	}
	s.activeTask = active

	switch {
	case active != nil && active.IsRevealed:
		refetch = active.ID
	case active != nil && s.playerID != uuid.Nil && active.Votes != nil:
		if _, ok := active.Votes[s.playerID.String()]; !ok {
			s.localVote = ""
		}
	}
	s.syncedAt = s.clock.Now()
	s.mu.Unlock()
	s.notify()

	if refetch != uuid.Nil {
		return s.fetchRealVotes(ctx, refetch)
	}
	return nil
}

// fetchRealVotes overwrites the active task's in-memory votes map with the
// full set of durable vote records, provided the task is still active by the
// time the records arrive.
func (s *Session) fetchRealVotes(ctx context.Context, taskID uuid.UUID) error {
	records, err := s.votes.ListVotesByTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("fetch votes for task %s: %w", taskID, err)
	}

	s.mu.Lock()
	if s.activeTask != nil && s.activeTask.ID == taskID {
		votes := make(map[string]string, len(records))
		for _, r := range records {
			votes[r.PlayerID.String()] = r.Value
		}
		s.activeTask.Votes = votes
	}
	s.mu.Unlock()
	s.notify()
	return nil
}

// handleEvent dispatches one change notification. Every class ends in a full
// refresh; the per-class handling only maintains the local overlay and the
// revealed-votes guarantee.
func (s *Session) handleEvent(ctx context.Context, ev realtime.Event) {
	switch ev.Table {
	case realtime.TableRooms:
		s.handleRoomEvent(ctx, ev)
	case realtime.TableTasks:
		s.handleTaskEvent(ctx, ev)
	case realtime.TablePlayers:
		// Roster changes do not touch vote or task state.
		s.refreshLogged(ctx)
	default:
		log.Warn().Str("table", string(ev.Table)).Msg("change event for unknown table")
	}
}

func (s *Session) handleRoomEvent(ctx context.Context, ev realtime.Event) {
	if ev.Type == realtime.EventUpdate && len(ev.New) > 0 {
		var pushed models.Room
		if err := json.Unmarshal(ev.New, &pushed); err != nil {
			log.Error().Err(err).Msg("failed to decode room event")
		} else {
			s.mu.Lock()
			// The event's own old row is the reliable "before" pointer; the
			// local record may predate a task switch this client never saw.
			var prev *uuid.UUID
			if s.room != nil {
				prev = s.room.ActiveTaskID
			}
			if len(ev.Old) > 0 {
				var old models.Room
				if err := json.Unmarshal(ev.Old, &old); err == nil {
					prev = old.ActiveTaskID
				}
			}
			s.room = &pushed
			if !uuidPtrEqual(prev, pushed.ActiveTaskID) {
				s.localVote = ""
			}
			s.mu.Unlock()
			s.notify()
		}
	}
	s.refreshLogged(ctx)
}

func (s *Session) handleTaskEvent(ctx context.Context, ev realtime.Event) {
	if ev.Type == realtime.EventUpdate && len(ev.New) > 0 {
		var updated models.Task
		if err := json.Unmarshal(ev.New, &updated); err != nil {
			log.Error().Err(err).Msg("failed to decode task event")
		} else {
			s.mu.RLock()
			isActive := s.activeTask != nil && s.activeTask.ID == updated.ID
			s.mu.RUnlock()

			if isActive {
				// An empty votes map on the active task means someone reset
				// the round; the overlay is stale.
				if len(updated.Votes) == 0 {
					s.mu.Lock()
					s.localVote = ""
					s.mu.Unlock()
					s.notify()
				}

				wasRevealed := false
				if len(ev.Old) > 0 {
					var prev models.Task
					if err := json.Unmarshal(ev.Old, &prev); err == nil {
						wasRevealed = prev.IsRevealed
					}
				}
				if updated.IsRevealed && !wasRevealed {
					if err := s.fetchRealVotes(ctx, updated.ID); err != nil {
						log.Error().
							Err(err).
							Str("task_id", updated.ID.String()).
							Msg("failed to fetch revealed votes")
					}
				}
			}
		}
	}
	s.refreshLogged(ctx)
}

func (s *Session) refreshLogged(ctx context.Context) {
	if err := s.refresh(ctx); err != nil {
		log.Error().Err(err).Msg("room refresh failed")
	}
}

func uuidPtrEqual(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
