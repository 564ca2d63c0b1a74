// Package session implements the client-side reconciliation engine for one
// estimation room: optimistic local mutations, a change-feed reconciler that
// merges remote state without clobbering in-flight local intent, identity
// restore across restarts, and derived admin authority.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/storydeck/internal/account"
	"github.com/mcdev12/storydeck/internal/models"
)

// Snapshot is a point-in-time copy of the session state handed to watchers.
// Slices and records are copies; watchers may keep them.
type Snapshot struct {
	Room       *models.Room
	Tasks      []models.Task
	ActiveTask *models.Task
	Players    []models.Player
	PlayerID   uuid.UUID // uuid.Nil until joined
	LocalVote  string    // the local user's unconfirmed vote, "" when none
	IsAdmin    bool
	SyncedAt   time.Time
}

// Config wires a Session to its collaborators. Clock defaults to the real
// clock when nil.
type Config struct {
	Rooms    RoomStore
	Tasks    TaskStore
	Players  PlayerStore
	Votes    VoteStore
	Feed     ChangeFeed
	Cache    IdentityCache
	Identity *account.Identity
	Clock    clockwork.Clock
}

// Session holds the canonical in-memory view of one room. All state access
// goes through the mutex; refreshes replace whole records and slices rather
// than merging field-by-field, so a stale refresh can never mix old and new
// fields within one record.
type Session struct {
	rooms   RoomStore
	tasks   TaskStore
	players PlayerStore
	votes   VoteStore
	feed    ChangeFeed
	cache   IdentityCache
	clock   clockwork.Clock

	mu         sync.RWMutex
	identity   *account.Identity
	room       *models.Room
	taskList   []models.Task
	activeTask *models.Task
	playerList []models.Player
	playerID   uuid.UUID
	localVote  string
	syncedAt   time.Time
	feedSub    FeedSubscription

	watchMu   sync.Mutex
	watchers  map[int]func(Snapshot)
	nextWatch int
}

// New creates a session for the given collaborators and identity.
func New(cfg Config) *Session {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Session{
		rooms:    cfg.Rooms,
		tasks:    cfg.Tasks,
		players:  cfg.Players,
		votes:    cfg.Votes,
		feed:     cfg.Feed,
		cache:    cfg.Cache,
		identity: cfg.Identity,
		clock:    clock,
		watchers: make(map[int]func(Snapshot)),
	}
}

// Watch registers a callback invoked with a fresh snapshot after every state
// change. The returned function unregisters it.
func (s *Session) Watch(fn func(Snapshot)) func() {
	s.watchMu.Lock()
	id := s.nextWatch
	s.nextWatch++
	s.watchers[id] = fn
	s.watchMu.Unlock()

	return func() {
		s.watchMu.Lock()
		delete(s.watchers, id)
		s.watchMu.Unlock()
	}
}

// Snapshot returns a copy of the current session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// IsAdmin reports whether the current identity owns the loaded room. It is
// recomputed on every call, never stored.
func (s *Session) IsAdmin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return isAdmin(s.identity, s.room)
}

// SetIdentity swaps the authenticated identity, e.g. after a login.
func (s *Session) SetIdentity(id *account.Identity) {
	s.mu.Lock()
	s.identity = id
	s.mu.Unlock()
	s.notify()
}

// Clear resets every session field to its zero state. It does not tear down
// an active subscription; use Close for that.
func (s *Session) Clear() {
	s.mu.Lock()
	s.room = nil
	s.taskList = nil
	s.activeTask = nil
	s.playerList = nil
	s.playerID = uuid.Nil
	s.localVote = ""
	s.syncedAt = time.Time{}
	s.mu.Unlock()
	s.notify()
}

// Close tears down the change-feed subscription, if any. Requests already
// issued are not aborted; they simply stop being observed.
func (s *Session) Close() error {
	s.mu.Lock()
	sub := s.feedSub
	s.feedSub = nil
	s.mu.Unlock()

	if sub != nil {
		return sub.Close()
	}
	return nil
}

func isAdmin(id *account.Identity, room *models.Room) bool {
	uid := id.UserID()
	return uid != "" && room != nil && uid == room.OwnerID
}

// snapshotLocked builds a Snapshot; callers must hold at least a read lock.
func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		PlayerID:  s.playerID,
		LocalVote: s.localVote,
		IsAdmin:   isAdmin(s.identity, s.room),
		SyncedAt:  s.syncedAt,
	}
	if s.room != nil {
		room := *s.room
		snap.Room = &room
	}
	if s.activeTask != nil {
		snap.ActiveTask = copyTask(s.activeTask)
	}
	if len(s.taskList) > 0 {
		snap.Tasks = make([]models.Task, len(s.taskList))
		for i := range s.taskList {
			snap.Tasks[i] = *copyTask(&s.taskList[i])
		}
	}
	if len(s.playerList) > 0 {
		snap.Players = append([]models.Player(nil), s.playerList...)
	}
	return snap
}

func copyTask(t *models.Task) *models.Task {
	task := *t
	if t.Votes != nil {
		task.Votes = make(map[string]string, len(t.Votes))
		for k, v := range t.Votes {
			task.Votes[k] = v
		}
	}
	return &task
}

// notify fans the current snapshot out to watchers, outside any state lock.
func (s *Session) notify() {
	snap := s.Snapshot()

	s.watchMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	s.watchMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}
