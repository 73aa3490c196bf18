package room

import (
	"sync"

	"github.com/rs/zerolog"
)

// Registry is the per-instance set of live rooms, keyed by chatroom
// id. Rooms are created lazily on first touch and never evicted:
// there is no GC pass for rooms within an instance's lifetime.
type Registry struct {
	mu      sync.RWMutex
	rooms   map[int32]*Chatroom
	store   Store
	metrics Metrics
	logger  zerolog.Logger
}

func NewRegistry(store Store, metrics Metrics, logger zerolog.Logger) *Registry {
	return &Registry{
		rooms:   make(map[int32]*Chatroom),
		store:   store,
		metrics: metrics,
		logger:  logger,
	}
}

// GetOrCreate returns the room for chatroomID, creating it if this is
// the first touch. The common case only takes the read lock; the
// write lock is taken, and the map re-checked, only on a miss.
func (r *Registry) GetOrCreate(chatroomID int32) *Chatroom {
	r.mu.RLock()
	existing, ok := r.rooms[chatroomID]
	r.mu.RUnlock()
	if ok {
		return existing
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.rooms[chatroomID]; ok {
		return existing
	}

	created := New(chatroomID, r.store, r.metrics, r.logger)
	r.rooms[chatroomID] = created
	return created
}

// Lookup returns the room for chatroomID without creating it.
func (r *Registry) Lookup(chatroomID int32) (*Chatroom, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[chatroomID]
	return room, ok
}

// Counts returns the (chatroomID -> user count) snapshot for every
// room the registry has created.
func (r *Registry) Counts() map[int32]int32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[int32]int32, len(r.rooms))
	for id, rm := range r.rooms {
		out[id] = rm.UserCount()
	}
	return out
}
