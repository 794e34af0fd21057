package chat

import (
	"sync"
	"time"

	"ChatLink/tools/errs"
)

// Registry owns the user <-> connection mapping. A user is online iff it
// has at least one registered connection; the offline->online and
// online->offline edges are decided inside the same critical section as
// the map mutation, so two racing connects can never both observe the
// offline state.
type Registry struct {
	mu         sync.RWMutex
	byUser     map[string]map[string]*Client // user -> conn_id -> client
	byConn     map[string]*Client            // conn_id -> client
	lastActive map[string]time.Time          // user -> last register/unregister

	clock func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		byUser:     make(map[string]map[string]*Client),
		byConn:     make(map[string]*Client),
		lastActive: make(map[string]time.Time),
		clock:      time.Now,
	}
}

// Register adds the connection to its user's set. It reports whether the
// user was offline before this call (the presence edge). Registering the
// same handle twice is the only failure mode.
func (r *Registry) Register(c *Client) (wasOffline bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byConn[c.ConnID]; exists {
		return false, errs.ErrDuplicateConn.WithDetail("conn " + c.ConnID)
	}

	m := r.byUser[c.UserID]
	wasOffline = len(m) == 0
	if m == nil {
		m = make(map[string]*Client)
		r.byUser[c.UserID] = m
	}
	m[c.ConnID] = c
	r.byConn[c.ConnID] = c
	r.lastActive[c.UserID] = r.clock()
	return wasOffline, nil
}

// Unregister removes a connection by handle. Unknown handles are ignored:
// disconnect notifications can race and the second one must be harmless.
// nowOffline reports whether this removal emptied the user's set.
func (r *Registry) Unregister(connID string) (c *Client, nowOffline bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byConn[connID]
	if !ok {
		return nil, false
	}
	delete(r.byConn, connID)

	if m := r.byUser[c.UserID]; m != nil {
		delete(m, connID)
		if len(m) == 0 {
			delete(r.byUser, c.UserID)
			nowOffline = true
		}
	}
	r.lastActive[c.UserID] = r.clock()
	return c, nowOffline
}

// ConnectionsFor returns the user's live connections; empty for unknown or
// offline users.
func (r *Registry) ConnectionsFor(userID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m := r.byUser[userID]
	if len(m) == 0 {
		return nil
	}
	out := make([]*Client, 0, len(m))
	for _, c := range m {
		out = append(out, c)
	}
	return out
}

func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

func (r *Registry) GetByConnID(connID string) *Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byConn[connID]
}

// LastActive returns the user's most recent register/unregister time.
func (r *Registry) LastActive(userID string) time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastActive[userID]
}

// OnlineUser is one entry of the snapshot pushed right after handshake.
type OnlineUser struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// OnlineUsers returns a deduplicated snapshot of everyone online.
func (r *Registry) OnlineUsers() []OnlineUser {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]OnlineUser, 0, len(r.byUser))
	for userID, m := range r.byUser {
		for _, c := range m {
			out = append(out, OnlineUser{UserID: userID, Username: c.Username})
			break
		}
	}
	return out
}

// AllExcept lists every connection but the given one; used for
// gateway-wide presence broadcasts.
func (r *Registry) AllExcept(connID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Client, 0, len(r.byConn))
	for id, c := range r.byConn {
		if id == connID {
			continue
		}
		out = append(out, c)
	}
	return out
}
