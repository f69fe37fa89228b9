package session

import (
	"docsync-server/core"
	"sync"
	"time"
)

// RoomInfo describes one live document for the rooms API.
type RoomInfo struct {
	ID         core.DocumentID `json:"id"`
	Users      int             `json:"users"`
	Writers    int             `json:"writers"`
	LastActive int64           `json:"lastActive"`
}

type room struct {
	members    map[string]core.AccessDecision
	lastActive time.Time
}

// Registry tracks which connections are members of which document room.
// It is bookkeeping only; the Cache refcount decides eviction. Both agree
// whenever no admission or departure is in progress.
type Registry struct {
	mu    sync.Mutex
	rooms map[core.DocumentID]*room
	now   func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[core.DocumentID]*room),
		now:   time.Now,
	}
}

func (r *Registry) Register(id core.DocumentID, connID string, access core.AccessDecision) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[id]
	if !ok {
		rm = &room{members: make(map[string]core.AccessDecision)}
		r.rooms[id] = rm
	}
	rm.members[connID] = access
	rm.lastActive = r.now()
}

// Unregister removes connID from the room of id. It reports whether the
// connection was a member, so repeated calls are harmless.
func (r *Registry) Unregister(id core.DocumentID, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[id]
	if !ok {
		return false
	}
	if _, ok := rm.members[connID]; !ok {
		return false
	}
	delete(rm.members, connID)
	if len(rm.members) == 0 {
		delete(r.rooms, id)
	} else {
		rm.lastActive = r.now()
	}
	return true
}

// Touch records activity in the room of id.
func (r *Registry) Touch(id core.DocumentID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rm, ok := r.rooms[id]; ok {
		rm.lastActive = r.now()
	}
}

func (r *Registry) Count(id core.DocumentID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rm, ok := r.rooms[id]; ok {
		return len(rm.members)
	}
	return 0
}

// Rooms returns a snapshot of all non-empty rooms in no particular order.
func (r *Registry) Rooms() []RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]RoomInfo, 0, len(r.rooms))
	for id, rm := range r.rooms {
		info := RoomInfo{
			ID:         id,
			Users:      len(rm.members),
			LastActive: rm.lastActive.UnixMilli(),
		}
		for _, access := range rm.members {
			if access.CanWrite() {
				info.Writers++
			}
		}
		out = append(out, info)
	}
	return out
}
