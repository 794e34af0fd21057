package chat

import (
	"sync"
	"time"
)

// typing targets carry a kind prefix so a user id and a room id can never
// collide in the signal map.
func typingTargetUser(userID string) string { return "user:" + userID }
func typingTargetRoom(room RoomID) string   { return "room:" + string(room) }

type typingKey struct {
	userID   string
	targetID string
}

// TypingTracker holds the ephemeral typing signals. Nothing here is ever
// persisted; a signal is superseded by a newer one from the same
// (user, target) pair and expires on its own after the TTL, so a client
// that crashes mid-typing is never reported as still typing.
type TypingTracker struct {
	mu      sync.Mutex
	ttl     time.Duration
	clock   func() time.Time // injectable for tests
	signals map[typingKey]time.Time
}

func NewTypingTracker(ttl time.Duration) *TypingTracker {
	if ttl <= 0 {
		ttl = 3 * time.Second
	}
	return &TypingTracker{
		ttl:     ttl,
		clock:   time.Now,
		signals: make(map[typingKey]time.Time),
	}
}

// Start inserts or refreshes the signal.
func (t *TypingTracker) Start(userID, targetID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.signals[typingKey{userID: userID, targetID: targetID}] = t.clock().Add(t.ttl)
}

// Stop removes the signal; a missing signal is not an error.
func (t *TypingTracker) Stop(userID, targetID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := typingKey{userID: userID, targetID: targetID}
	if _, ok := t.signals[k]; !ok {
		return false
	}
	delete(t.signals, k)
	return true
}

// ActiveFor reports who is currently typing toward the target. Expired
// entries are dropped on the way through, never returned.
func (t *TypingTracker) ActiveFor(targetID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock()
	var out []string
	for k, expiry := range t.signals {
		if k.targetID != targetID {
			continue
		}
		if now.After(expiry) {
			delete(t.signals, k)
			continue
		}
		out = append(out, k.userID)
	}
	return out
}

// IsTyping reports whether one specific signal is live.
func (t *TypingTracker) IsTyping(userID, targetID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := typingKey{userID: userID, targetID: targetID}
	expiry, ok := t.signals[k]
	if !ok {
		return false
	}
	if t.clock().After(expiry) {
		delete(t.signals, k)
		return false
	}
	return true
}

// DropUser clears every signal the user still holds; called when the user
// goes offline.
func (t *TypingTracker) DropUser(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k := range t.signals {
		if k.userID == userID {
			delete(t.signals, k)
		}
	}
}
