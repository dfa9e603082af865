package realtime

import (
	"sort"
	"sync"
)

// RoomName is the conversation room of a shipment request.
func RoomName(requestID string) string {
	return "request_" + requestID
}

// UserChannel is the private channel name of an identity. Delivery to it goes
// through the registry; the name is used in logs and wire metadata.
func UserChannel(userID string) string {
	return "user_" + userID
}

// Rooms tracks room membership in both directions.
type Rooms struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]struct{} // room -> users
	joined map[string]map[string]struct{} // user -> rooms
}

func NewRooms() *Rooms {
	return &Rooms{
		rooms:  make(map[string]map[string]struct{}),
		joined: make(map[string]map[string]struct{}),
	}
}

// Join adds userID to room and reports whether it was newly added.
func (r *Rooms) Join(room, userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[room]
	if !ok {
		members = make(map[string]struct{})
		r.rooms[room] = members
	}
	if _, in := members[userID]; in {
		return false
	}
	members[userID] = struct{}{}

	mine, ok := r.joined[userID]
	if !ok {
		mine = make(map[string]struct{})
		r.joined[userID] = mine
	}
	mine[room] = struct{}{}
	return true
}

// Leave removes userID from room. Leaving a room one is not in is a no-op.
func (r *Rooms) Leave(room, userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveLocked(room, userID)
}

// LeaveAll removes userID from every room and returns those rooms.
func (r *Rooms) LeaveAll(userID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var left []string
	for room := range r.joined[userID] {
		if r.leaveLocked(room, userID) {
			left = append(left, room)
		}
	}
	sort.Strings(left)
	return left
}

func (r *Rooms) leaveLocked(room, userID string) bool {
	members, ok := r.rooms[room]
	if !ok {
		return false
	}
	if _, in := members[userID]; !in {
		return false
	}
	delete(members, userID)
	if len(members) == 0 {
		delete(r.rooms, room)
	}
	if mine, ok := r.joined[userID]; ok {
		delete(mine, room)
		if len(mine) == 0 {
			delete(r.joined, userID)
		}
	}
	return true
}

// Members returns the users in room, sorted.
func (r *Rooms) Members(room string) []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.rooms[room]))
	for id := range r.rooms[room] {
		out = append(out, id)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

func (r *Rooms) IsMember(room, userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[room][userID]
	return ok
}

// RoomsOf returns the rooms userID is in, sorted.
func (r *Rooms) RoomsOf(userID string) []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.joined[userID]))
	for room := range r.joined[userID] {
		out = append(out, room)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Len is the number of rooms with at least one member.
func (r *Rooms) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
