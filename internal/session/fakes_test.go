package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/storydeck/internal/models"
	"github.com/mcdev12/storydeck/internal/realtime"
)

// fakeStore is an in-memory stand-in for the remote data store. It mirrors
// the durable store's behavior: vote upserts patch the task's votes column,
// reads hand out copies, created_at ordering is insertion order.
type fakeStore struct {
	mu      sync.Mutex
	rooms   map[uuid.UUID]*models.Room
	tasks   []*models.Task
	players []*models.Player
	votes   map[uuid.UUID]map[uuid.UUID]string // task -> player -> value
	seq     int

	createRoomErr   error
	createPlayerErr error
	upsertVoteErr   error
	setRevealedErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rooms: make(map[uuid.UUID]*models.Room),
		votes: make(map[uuid.UUID]map[uuid.UUID]string),
	}
}

func (f *fakeStore) next() time.Time {
	f.seq++
	return time.Unix(int64(f.seq), 0)
}

func (f *fakeStore) addRoom(ownerID string, finished bool) *models.Room {
	f.mu.Lock()
	defer f.mu.Unlock()
	room := &models.Room{
		ID:         uuid.New(),
		Code:       fmt.Sprintf("ROOM%02d", f.seq),
		Name:       "sprint 12",
		OwnerID:    ownerID,
		IsFinished: finished,
		CreatedAt:  f.next(),
	}
	f.rooms[room.ID] = room
	return copyRoom(room)
}

func copyRoom(r *models.Room) *models.Room {
	room := *r
	if r.ActiveTaskID != nil {
		id := *r.ActiveTaskID
		room.ActiveTaskID = &id
	}
	return &room
}

func (f *fakeStore) CreateRoom(ctx context.Context, req models.CreateRoomRequest) (*models.Room, error) {
	if f.createRoomErr != nil {
		return nil, f.createRoomErr
	}
	room := f.addRoom(req.OwnerID, false)
	f.mu.Lock()
	f.rooms[room.ID].Name = req.Name
	f.mu.Unlock()
	room.Name = req.Name
	return room, nil
}

func (f *fakeStore) GetRoomByCode(ctx context.Context, code string) (*models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, room := range f.rooms {
		if room.Code == code {
			return copyRoom(room), nil
		}
	}
	return nil, fmt.Errorf("room code %s: %w", code, models.ErrNotFound)
}

func (f *fakeStore) ListRoomsByOwner(ctx context.Context, ownerID string) ([]models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Room
	for _, room := range f.rooms {
		if room.OwnerID == ownerID {
			out = append(out, *copyRoom(room))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (f *fakeStore) UpdateRoomLock(ctx context.Context, id uuid.UUID, locked bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[id]
	if !ok {
		return models.ErrNotFound
	}
	room.IsFinished = locked
	return nil
}

func (f *fakeStore) UpdateActiveTask(ctx context.Context, id, taskID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[id]
	if !ok {
		return models.ErrNotFound
	}
	tid := taskID
	room.ActiveTaskID = &tid
	return nil
}

func (f *fakeStore) DeleteRoom(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rooms, id)
	return nil
}

func (f *fakeStore) CreateTask(ctx context.Context, req models.CreateTaskRequest) (*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task := &models.Task{
		ID:          uuid.New(),
		RoomID:      req.RoomID,
		Title:       req.Title,
		Description: req.Description,
		LinkJob:     req.LinkJob,
		LinkFigma:   req.LinkFigma,
		Votes:       make(map[string]string),
		CreatedAt:   f.next(),
	}
	f.tasks = append(f.tasks, task)
	return copyFakeTask(task), nil
}

func copyFakeTask(t *models.Task) *models.Task {
	task := *t
	task.Votes = make(map[string]string, len(t.Votes))
	for k, v := range t.Votes {
		task.Votes[k] = v
	}
	if t.FinalScore != nil {
		score := *t.FinalScore
		task.FinalScore = &score
	}
	return &task
}

func (f *fakeStore) findTask(id uuid.UUID) *models.Task {
	for _, task := range f.tasks {
		if task.ID == id {
			return task
		}
	}
	return nil
}

func (f *fakeStore) ListTasksByRoom(ctx context.Context, roomID uuid.UUID) ([]models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Task
	for _, task := range f.tasks {
		if task.RoomID == roomID {
			out = append(out, *copyFakeTask(task))
		}
	}
	return out, nil
}

func (f *fakeStore) SetRevealed(ctx context.Context, id uuid.UUID, revealed bool) error {
	if f.setRevealedErr != nil {
		return f.setRevealedErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	task := f.findTask(id)
	if task == nil {
		return models.ErrNotFound
	}
	task.IsRevealed = revealed
	return nil
}

func (f *fakeStore) ResetTask(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	task := f.findTask(id)
	if task == nil {
		return models.ErrNotFound
	}
	task.IsRevealed = false
	task.Votes = make(map[string]string)
	task.FinalScore = nil
	return nil
}

func (f *fakeStore) SetFinalScore(ctx context.Context, id uuid.UUID, score string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	task := f.findTask(id)
	if task == nil {
		return models.ErrNotFound
	}
	task.FinalScore = &score
	return nil
}

func (f *fakeStore) CreatePlayer(ctx context.Context, req models.CreatePlayerRequest) (*models.Player, error) {
	if f.createPlayerErr != nil {
		return nil, f.createPlayerErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	player := &models.Player{
		ID:        uuid.New(),
		RoomID:    req.RoomID,
		Name:      req.Name,
		Avatar:    req.Avatar,
		UserID:    req.UserID,
		CreatedAt: f.next(),
	}
	f.players = append(f.players, player)
	p := *player
	return &p, nil
}

func (f *fakeStore) GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, player := range f.players {
		if player.ID == id {
			p := *player
			return &p, nil
		}
	}
	return nil, fmt.Errorf("player %s: %w", id, models.ErrNotFound)
}

func (f *fakeStore) GetPlayerByAccount(ctx context.Context, roomID uuid.UUID, userID string) (*models.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, player := range f.players {
		if player.RoomID == roomID && player.UserID != nil && *player.UserID == userID {
			p := *player
			return &p, nil
		}
	}
	return nil, fmt.Errorf("player for account %s: %w", userID, models.ErrNotFound)
}

func (f *fakeStore) ListPlayersByRoom(ctx context.Context, roomID uuid.UUID) ([]models.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Player
	for _, player := range f.players {
		if player.RoomID == roomID {
			out = append(out, *player)
		}
	}
	return out, nil
}

func (f *fakeStore) UpsertVote(ctx context.Context, taskID, playerID uuid.UUID, value string) error {
	if f.upsertVoteErr != nil {
		return f.upsertVoteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.votes[taskID] == nil {
		f.votes[taskID] = make(map[uuid.UUID]string)
	}
	f.votes[taskID][playerID] = value
	if task := f.findTask(taskID); task != nil {
		task.Votes[playerID.String()] = value
	}
	return nil
}

func (f *fakeStore) ListVotesByTask(ctx context.Context, taskID uuid.UUID) ([]models.VoteRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.VoteRecord
	for playerID, value := range f.votes[taskID] {
		out = append(out, models.VoteRecord{TaskID: taskID, PlayerID: playerID, Value: value})
	}
	return out, nil
}

func (f *fakeStore) DeleteVotesByTask(ctx context.Context, taskID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.votes, taskID)
	return nil
}

// fakeFeed hands the registered handler back to the test so it can inject
// change events synchronously.
type fakeFeed struct {
	mu      sync.Mutex
	handler func(realtime.Event)
	roomID  uuid.UUID
	closed  bool
	subErr  error
}

type fakeFeedSub struct {
	feed *fakeFeed
}

func (s *fakeFeedSub) Close() error {
	s.feed.mu.Lock()
	defer s.feed.mu.Unlock()
	s.feed.closed = true
	return nil
}

func (f *fakeFeed) Subscribe(ctx context.Context, roomID uuid.UUID, handler func(realtime.Event)) (FeedSubscription, error) {
	if f.subErr != nil {
		return nil, f.subErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = handler
	f.roomID = roomID
	return &fakeFeedSub{feed: f}, nil
}

func (f *fakeFeed) emit(ev realtime.Event) {
	f.mu.Lock()
	handler := f.handler
	f.mu.Unlock()
	if handler != nil {
		handler(ev)
	}
}

// fakeCache is an in-memory room→player mapping.
type fakeCache struct {
	mu      sync.Mutex
	entries map[uuid.UUID]uuid.UUID
	saveErr error
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[uuid.UUID]uuid.UUID)}
}

func (c *fakeCache) PlayerID(ctx context.Context, roomID uuid.UUID) (uuid.UUID, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.entries[roomID]
	return id, ok, nil
}

func (c *fakeCache) SavePlayerID(ctx context.Context, roomID, playerID uuid.UUID) error {
	if c.saveErr != nil {
		return c.saveErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[roomID] = playerID
	return nil
}

func mustJSON(t interface{ Fatalf(string, ...any) }, v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}
