package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTypingTracker_StartStop(t *testing.T) {
	tr := NewTypingTracker(3 * time.Second)
	target := typingTargetUser("bob")

	tr.Start("alice", target)
	require.True(t, tr.IsTyping("alice", target))
	require.Equal(t, []string{"alice"}, tr.ActiveFor(target))

	require.True(t, tr.Stop("alice", target))
	require.False(t, tr.IsTyping("alice", target))
	require.Empty(t, tr.ActiveFor(target))

	// stopping an absent signal is not an error
	require.False(t, tr.Stop("alice", target))
}

func TestTypingTracker_ExpiresWithoutStop(t *testing.T) {
	tr := NewTypingTracker(3 * time.Second)
	now := time.Now()
	tr.clock = func() time.Time { return now }

	target := typingTargetRoom("general")
	tr.Start("alice", target)
	require.True(t, tr.IsTyping("alice", target))

	// client crashed; no stop ever arrives
	now = now.Add(3*time.Second + time.Millisecond)
	require.False(t, tr.IsTyping("alice", target))
	require.Empty(t, tr.ActiveFor(target))
}

func TestTypingTracker_RenewalExtendsExpiry(t *testing.T) {
	tr := NewTypingTracker(3 * time.Second)
	now := time.Now()
	tr.clock = func() time.Time { return now }

	target := typingTargetUser("bob")
	tr.Start("alice", target)

	now = now.Add(2 * time.Second)
	tr.Start("alice", target) // renewal supersedes the older signal

	now = now.Add(2 * time.Second)
	require.True(t, tr.IsTyping("alice", target), "renewed signal still live at t+4s")

	now = now.Add(2 * time.Second)
	require.False(t, tr.IsTyping("alice", target))
}

func TestTypingTracker_UserAndRoomTargetsNeverCollide(t *testing.T) {
	tr := NewTypingTracker(3 * time.Second)

	tr.Start("alice", typingTargetUser("general"))
	require.Empty(t, tr.ActiveFor(typingTargetRoom("general")))
}

func TestTypingTracker_DropUser(t *testing.T) {
	tr := NewTypingTracker(3 * time.Second)
	tr.Start("alice", typingTargetUser("bob"))
	tr.Start("alice", typingTargetRoom("general"))
	tr.Start("carol", typingTargetRoom("general"))

	tr.DropUser("alice")

	require.False(t, tr.IsTyping("alice", typingTargetUser("bob")))
	require.Equal(t, []string{"carol"}, tr.ActiveFor(typingTargetRoom("general")))
}
