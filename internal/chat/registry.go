package chat

import (
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"
)

// Member is a connection from the registry's point of view. Deliver must
// not block: a slow member drops the event rather than stalling fan-out
// to the rest of the room.
type Member interface {
	ID() string
	Username() string
	Deliver(ev Event) bool
	Kick(reason string)
}

var roomNameRe = regexp.MustCompile(`^[a-z0-9_-]{1,24}$`)

// Registry holds every room and its membership. It is the only state
// shared across connection goroutines; the mutex is held for map
// operations only, never across I/O.
type Registry struct {
	mu          sync.RWMutex
	defaultRoom string
	whitelist   map[string]struct{} // nil allows any valid name
	rooms       map[string]*room
	roomOf      map[string]string // connection id → current room
}

type room struct {
	name      string
	createdAt time.Time
	members   map[string]Member // connection id → member
}

// NewRegistry creates a registry whose default room always exists and is
// never pruned. A non-empty whitelist restricts which rooms may be
// created; the default room is always allowed.
func NewRegistry(defaultRoom string, whitelist []string) *Registry {
	if defaultRoom == "" {
		defaultRoom = "geral"
	}
	r := &Registry{
		defaultRoom: defaultRoom,
		rooms:       make(map[string]*room),
		roomOf:      make(map[string]string),
	}
	if len(whitelist) > 0 {
		r.whitelist = make(map[string]struct{}, len(whitelist)+1)
		for _, name := range whitelist {
			r.whitelist[name] = struct{}{}
		}
		r.whitelist[defaultRoom] = struct{}{}
	}
	r.rooms[defaultRoom] = &room{name: defaultRoom, createdAt: time.Now(), members: make(map[string]Member)}
	return r
}

// DefaultRoom returns the name of the always-present room.
func (r *Registry) DefaultRoom() string { return r.defaultRoom }

// ValidRoomName reports whether name is acceptable: 1-24 lowercase
// letters, digits, underscore or hyphen, and on the whitelist when one
// is configured.
func (r *Registry) ValidRoomName(name string) bool {
	if !roomNameRe.MatchString(name) {
		return false
	}
	if r.whitelist == nil {
		return true
	}
	_, ok := r.whitelist[name]
	return ok
}

// Join moves m into roomName, creating the room on first join. If m is
// already in another room the switch is atomic: no concurrent broadcast
// can observe the member in both rooms or in neither. Joining the
// current room is a no-op. It returns the previous room name, "" when
// the member was not in any room.
func (r *Registry) Join(m Member, roomName string) (string, error) {
	if !r.ValidRoomName(roomName) {
		return "", fmt.Errorf("invalid room name %q", roomName)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.roomOf[m.ID()]
	if prev == roomName {
		return prev, nil
	}

	if prev != "" {
		r.removeLocked(m.ID(), prev)
	}

	dst, ok := r.rooms[roomName]
	if !ok {
		dst = &room{name: roomName, createdAt: time.Now(), members: make(map[string]Member)}
		r.rooms[roomName] = dst
	}
	dst.members[m.ID()] = m
	r.roomOf[m.ID()] = roomName
	return prev, nil
}

// Leave removes m from whatever room it is in. Idempotent. Returns the
// room left, "" if the member was not registered.
func (r *Registry) Leave(m Member) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.roomOf[m.ID()]
	if prev == "" {
		return ""
	}
	r.removeLocked(m.ID(), prev)
	delete(r.roomOf, m.ID())
	return prev
}

// removeLocked drops a member and lazily prunes the room once empty.
// The default room is kept. Caller holds r.mu; a concurrent Join cannot
// interleave, so join always wins over prune.
func (r *Registry) removeLocked(connID, roomName string) {
	rm, ok := r.rooms[roomName]
	if !ok {
		return
	}
	delete(rm.members, connID)
	if len(rm.members) == 0 && roomName != r.defaultRoom {
		delete(r.rooms, roomName)
	}
}

// RoomOf returns the member's current room, "" if none.
func (r *Registry) RoomOf(connID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.roomOf[connID]
}

// Broadcast delivers ev to the membership snapshot of roomName and
// returns how many members accepted it. Delivery is per-member
// best-effort and happens outside the lock.
func (r *Registry) Broadcast(roomName string, ev Event) int {
	r.mu.RLock()
	rm, ok := r.rooms[roomName]
	var snapshot []Member
	if ok {
		snapshot = make([]Member, 0, len(rm.members))
		for _, m := range rm.members {
			snapshot = append(snapshot, m)
		}
	}
	r.mu.RUnlock()

	delivered := 0
	for _, m := range snapshot {
		if m.Deliver(ev) {
			delivered++
		}
	}
	return delivered
}

// Usernames returns the sorted names of everyone in a room.
func (r *Registry) Usernames(roomName string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[roomName]
	if !ok {
		return nil
	}
	users := make([]string, 0, len(rm.members))
	for _, m := range rm.members {
		users = append(users, m.Username())
	}
	sort.Strings(users)
	return users
}

// MemberIDs returns the connection ids currently in a room.
func (r *Registry) MemberIDs(roomName string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[roomName]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(rm.members))
	for id := range rm.members {
		ids = append(ids, id)
	}
	return ids
}

// Rooms lists every live room with its member count, sorted by name.
func (r *Registry) Rooms() []RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]RoomInfo, 0, len(r.rooms))
	for name, rm := range r.rooms {
		infos = append(infos, RoomInfo{Name: name, MemberCount: len(rm.members)})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// FindByUsername returns every connection of the given user, across all
// rooms. A user may be connected from several devices.
func (r *Registry) FindByUsername(username string) []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Member
	for _, rm := range r.rooms {
		for _, m := range rm.members {
			if m.Username() == username {
				out = append(out, m)
			}
		}
	}
	return out
}
