package inmemory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/watchroom/server/internal/domain"
	"github.com/watchroom/server/internal/repository/room"
)

type entry struct {
	mu      sync.Mutex
	room    *domain.Room
	deleted bool
}

// repo is the room registry. Every access to a room runs under that room's
// mutex; a room left without members is removed before the mutex is released.
type repo struct {
	rooms map[string]*entry
	mu    sync.RWMutex
	clock clock.Clock
}

func NewRepo(clock clock.Clock) *repo {
	return &repo{
		rooms: make(map[string]*entry),
		clock: clock,
	}
}

// Upsert runs fn on the room, creating an empty one first if needed.
func (r *repo) Upsert(ctx context.Context, roomId string, fn func(*domain.Room) error) error {
	for {
		e := r.getOrCreateEntry(ctx, roomId)

		e.mu.Lock()
		if e.deleted {
			e.mu.Unlock()
			continue
		}

		err := fn(e.room)
		r.dropIfEmpty(ctx, roomId, e)
		e.mu.Unlock()

		return err
	}
}

// Update runs fn on an existing room.
func (r *repo) Update(ctx context.Context, roomId string, fn func(*domain.Room) error) error {
	r.mu.RLock()
	e, ok := r.rooms[roomId]
	r.mu.RUnlock()
	if !ok {
		return room.ErrRoomNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return room.ErrRoomNotFound
	}

	err := fn(e.room)
	r.dropIfEmpty(ctx, roomId, e)

	return err
}

func (r *repo) GetSnapshot(ctx context.Context, roomId string) (domain.Snapshot, error) {
	var snapshot domain.Snapshot
	err := r.Update(ctx, roomId, func(rm *domain.Room) error {
		snapshot = rm.Snapshot(r.clock.Now())
		return nil
	})

	return snapshot, err
}

func (r *repo) Exists(roomId string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.rooms[roomId]
	return ok
}

func (r *repo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms)
}

func (r *repo) getOrCreateEntry(ctx context.Context, roomId string) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.rooms[roomId]
	if !ok {
		e = &entry{room: domain.NewRoom(roomId, r.clock.Now())}
		r.rooms[roomId] = e
		slog.DebugContext(ctx, "room created", "room_id", roomId)
	}

	return e
}

// dropIfEmpty must be called with e.mu held.
func (r *repo) dropIfEmpty(ctx context.Context, roomId string, e *entry) {
	if !e.room.IsEmpty() {
		return
	}

	e.deleted = true

	r.mu.Lock()
	if r.rooms[roomId] == e {
		delete(r.rooms, roomId)
	}
	r.mu.Unlock()

	slog.DebugContext(ctx, "room deleted", "room_id", roomId)
}
