package chat

import (
	"sync"
)

// RoomID names a group/team channel. A distinct type so a room can never
// be handed to user-targeted dispatch by accident.
type RoomID string

// Rooms tracks which connections are subscribed to which rooms. Membership
// is per connection, not per user: a second device sees room traffic only
// after its own join.
type Rooms struct {
	mu     sync.RWMutex
	byRoom map[RoomID]map[string]*Client  // room -> conn_id -> client
	byConn map[string]map[RoomID]struct{} // conn_id -> rooms
}

func NewRooms() *Rooms {
	return &Rooms{
		byRoom: make(map[RoomID]map[string]*Client),
		byConn: make(map[string]map[RoomID]struct{}),
	}
}

// Join subscribes the connection. Returns false when it was already a
// member (idempotent, no broadcast expected then).
func (r *Rooms) Join(c *Client, room RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.byRoom[room]
	if m == nil {
		m = make(map[string]*Client)
		r.byRoom[room] = m
	}
	if _, ok := m[c.ConnID]; ok {
		return false
	}
	m[c.ConnID] = c

	rs := r.byConn[c.ConnID]
	if rs == nil {
		rs = make(map[RoomID]struct{})
		r.byConn[c.ConnID] = rs
	}
	rs[room] = struct{}{}
	return true
}

// Leave unsubscribes the connection. Returns false when it was not a
// member.
func (r *Rooms) Leave(connID string, room RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveLocked(connID, room)
}

func (r *Rooms) leaveLocked(connID string, room RoomID) bool {
	m := r.byRoom[room]
	if m == nil {
		return false
	}
	if _, ok := m[connID]; !ok {
		return false
	}
	delete(m, connID)
	if len(m) == 0 {
		delete(r.byRoom, room)
	}
	if rs := r.byConn[connID]; rs != nil {
		delete(rs, room)
		if len(rs) == 0 {
			delete(r.byConn, connID)
		}
	}
	return true
}

// MembersOf returns the room's current connections; empty is fine.
func (r *Rooms) MembersOf(room RoomID) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m := r.byRoom[room]
	if len(m) == 0 {
		return nil
	}
	out := make([]*Client, 0, len(m))
	for _, c := range m {
		out = append(out, c)
	}
	return out
}

// RoomsOf lists the rooms a connection is in.
func (r *Rooms) RoomsOf(connID string) []RoomID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rs := r.byConn[connID]
	if len(rs) == 0 {
		return nil
	}
	out := make([]RoomID, 0, len(rs))
	for room := range rs {
		out = append(out, room)
	}
	return out
}

// DropConn removes the connection from every room it joined, returning the
// affected rooms. The disconnect path calls this without knowing the room
// ids up front.
func (r *Rooms) DropConn(connID string) []RoomID {
	r.mu.Lock()
	defer r.mu.Unlock()

	rs := r.byConn[connID]
	if len(rs) == 0 {
		return nil
	}
	out := make([]RoomID, 0, len(rs))
	for room := range rs {
		out = append(out, room)
	}
	for _, room := range out {
		r.leaveLocked(connID, room)
	}
	return out
}
