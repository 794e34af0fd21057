package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ChatLink/service/storage"
	"ChatLink/tools/errs"
)

// ---- fakes ----

type fakeMessageStore struct {
	mu         sync.Mutex
	created    []*storage.Message
	failCreate bool
	markReadFn func(messageID, readerID string) (*storage.Message, error)
}

func (f *fakeMessageStore) Create(_ context.Context, m *storage.Message) (*storage.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return nil, errs.ErrPersistence.WithDetail("boom")
	}
	m.ID = fmt.Sprintf("m%d", len(f.created)+1)
	m.CreatedAt = time.Now()
	f.created = append(f.created, m)
	return m, nil
}

func (f *fakeMessageStore) MarkRead(_ context.Context, messageID, readerID string) (*storage.Message, error) {
	if f.markReadFn != nil {
		return f.markReadFn(messageID, readerID)
	}
	return nil, errs.ErrNotFound
}

func (f *fakeMessageStore) createdCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

type fakeIdentityStore struct{}

func (fakeIdentityStore) FindByID(_ context.Context, userID string) (*storage.User, error) {
	return &storage.User{ID: userID, Username: "user-" + userID}, nil
}

func newTestServer(store *fakeMessageStore) *Server {
	return NewServer(Options{
		FanoutWorkers: 2,
		FanoutQueue:   64,
		SendQueueSize: 16,
	}, store, fakeIdentityStore{}, nil)
}

func connect(t *testing.T, s *Server, connID, userID string) *Client {
	t.Helper()
	c := newTestClient(connID, userID)
	_, err := s.reg.Register(c)
	require.NoError(t, err)
	return c
}

func dispatch(t *testing.T, s *Server, c *Client, event string, payload any) error {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return s.disp.Dispatch(c, &Frame{Event: event, Data: data})
}

// recvFrame waits for the next frame on the client's send queue.
func recvFrame(t *testing.T, c *Client, wantEvent string) *Frame {
	t.Helper()
	select {
	case raw := <-c.Send:
		f, err := ParseFrame(raw)
		require.NoError(t, err)
		require.Equal(t, wantEvent, f.Event)
		return f
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s frame", wantEvent)
		return nil
	}
}

func requireNoFrame(t *testing.T, c *Client) {
	t.Helper()
	select {
	case raw := <-c.Send:
		f, _ := ParseFrame(raw)
		t.Fatalf("unexpected frame: %+v", f)
	case <-time.After(150 * time.Millisecond):
	}
}

// ---- private messages ----

func TestPrivateMessage_EmptyContentRejectedBeforePersistence(t *testing.T) {
	store := &fakeMessageStore{}
	s := newTestServer(store)
	defer s.Close()
	sender := connect(t, s, "c1", "alice")

	err := dispatch(t, s, sender, EvPrivateMessage, PrivateMessageIn{
		RecipientID: "bob",
		Content:     "   ",
	})
	require.ErrorIs(t, err, errs.ErrValidation)
	require.Zero(t, store.createdCount(), "nothing may be persisted")
	requireNoFrame(t, sender)
}

func TestPrivateMessage_OversizedContentRejected(t *testing.T) {
	store := &fakeMessageStore{}
	s := newTestServer(store)
	defer s.Close()
	sender := connect(t, s, "c1", "alice")

	long := make([]rune, 2001)
	for i := range long {
		long[i] = 'x'
	}
	err := dispatch(t, s, sender, EvPrivateMessage, PrivateMessageIn{
		RecipientID: "bob",
		Content:     string(long),
	})
	require.ErrorIs(t, err, errs.ErrValidation)
	require.Zero(t, store.createdCount())
}

func TestPrivateMessage_OfflineRecipientStillPersisted(t *testing.T) {
	store := &fakeMessageStore{}
	s := newTestServer(store)
	defer s.Close()
	sender := connect(t, s, "c1", "alice")

	err := dispatch(t, s, sender, EvPrivateMessage, PrivateMessageIn{
		RecipientID: "bob",
		Content:     "hi",
	})
	require.NoError(t, err)
	require.Equal(t, 1, store.createdCount())

	ack := recvFrame(t, sender, EvMessageSent)
	var out MessageSentOut
	require.NoError(t, json.Unmarshal(ack.Data, &out))
	require.False(t, out.Delivered)
	require.Equal(t, "m1", out.MessageID)
}

func TestPrivateMessage_DeliveredToEveryRecipientConnection(t *testing.T) {
	store := &fakeMessageStore{}
	s := newTestServer(store)
	defer s.Close()
	sender := connect(t, s, "c1", "alice")
	bob1 := connect(t, s, "c2", "bob")
	bob2 := connect(t, s, "c3", "bob")

	err := dispatch(t, s, sender, EvPrivateMessage, PrivateMessageIn{
		RecipientID: "bob",
		Content:     "hi",
	})
	require.NoError(t, err)

	ack := recvFrame(t, sender, EvMessageSent)
	var out MessageSentOut
	require.NoError(t, json.Unmarshal(ack.Data, &out))
	require.True(t, out.Delivered)

	for _, bc := range []*Client{bob1, bob2} {
		f := recvFrame(t, bc, EvMessageReceived)
		var msg MessageReceivedOut
		require.NoError(t, json.Unmarshal(f.Data, &msg))
		require.Equal(t, "hi", msg.Content)
		require.Equal(t, "alice", msg.Sender.ID)
		requireNoFrame(t, bc) // exactly one per connection
	}
}

func TestPrivateMessage_PersistenceFailureSkipsFanout(t *testing.T) {
	store := &fakeMessageStore{failCreate: true}
	s := newTestServer(store)
	defer s.Close()
	sender := connect(t, s, "c1", "alice")
	bob := connect(t, s, "c2", "bob")

	err := dispatch(t, s, sender, EvPrivateMessage, PrivateMessageIn{
		RecipientID: "bob",
		Content:     "hi",
	})
	require.ErrorIs(t, err, errs.ErrPersistence)
	requireNoFrame(t, bob)
	requireNoFrame(t, sender)
}

// ---- group messages ----

func TestGroupMessage_FanOutExcludesOriginatingConnection(t *testing.T) {
	store := &fakeMessageStore{}
	s := newTestServer(store)
	defer s.Close()
	sender := connect(t, s, "c1", "alice")
	member := connect(t, s, "c2", "bob")
	outsider := connect(t, s, "c3", "carol")

	require.True(t, s.rooms.Join(sender, "general"))
	require.True(t, s.rooms.Join(member, "general"))

	err := dispatch(t, s, sender, EvGroupMessage, GroupMessageIn{
		RoomID:  "general",
		Content: "hello room",
	})
	require.NoError(t, err)
	require.Equal(t, 1, store.createdCount())

	recvFrame(t, sender, EvMessageSent)
	requireNoFrame(t, sender) // echo comes via the ack only

	f := recvFrame(t, member, EvGroupMessageReceived)
	var msg MessageReceivedOut
	require.NoError(t, json.Unmarshal(f.Data, &msg))
	require.Equal(t, "general", msg.RoomID)

	requireNoFrame(t, outsider)
}

// ---- typing ----

func TestTyping_PrivateTargetsRecipientConnections(t *testing.T) {
	store := &fakeMessageStore{}
	s := newTestServer(store)
	defer s.Close()
	sender := connect(t, s, "c1", "alice")
	bob := connect(t, s, "c2", "bob")

	require.NoError(t, dispatch(t, s, sender, EvTyping, TypingIn{RecipientID: "bob"}))
	f := recvFrame(t, bob, EvTyping)
	var out TypingOut
	require.NoError(t, json.Unmarshal(f.Data, &out))
	require.Equal(t, "alice", out.UserID)
	require.True(t, s.typing.IsTyping("alice", typingTargetUser("bob")))

	require.NoError(t, dispatch(t, s, sender, EvStopTyping, TypingIn{RecipientID: "bob"}))
	recvFrame(t, bob, EvStopTyping)
	require.False(t, s.typing.IsTyping("alice", typingTargetUser("bob")))

	requireNoFrame(t, sender) // typing is never acknowledged
}

func TestTyping_WithoutTargetRejected(t *testing.T) {
	store := &fakeMessageStore{}
	s := newTestServer(store)
	defer s.Close()
	sender := connect(t, s, "c1", "alice")

	err := dispatch(t, s, sender, EvTyping, TypingIn{})
	require.ErrorIs(t, err, errs.ErrValidation)
}

// ---- read receipts ----

func TestMessageRead_NotifiesSenderOnce(t *testing.T) {
	readAt := time.Now()
	store := &fakeMessageStore{
		markReadFn: func(messageID, readerID string) (*storage.Message, error) {
			require.Equal(t, "m1", messageID)
			require.Equal(t, "alice", readerID)
			return &storage.Message{
				ID:          "m1",
				SenderID:    "bob",
				RecipientID: "alice",
				IsRead:      true,
				ReadAt:      &readAt,
			}, nil
		},
	}
	s := newTestServer(store)
	defer s.Close()
	reader := connect(t, s, "c1", "alice")
	bob := connect(t, s, "c2", "bob")

	require.NoError(t, dispatch(t, s, reader, EvMessageRead, MessageReadIn{MessageID: "m1"}))

	f := recvFrame(t, bob, EvMessageReadReceipt)
	var out ReadReceiptOut
	require.NoError(t, json.Unmarshal(f.Data, &out))
	require.Equal(t, "m1", out.MessageID)
	require.Equal(t, "alice", out.ReaderID)
	requireNoFrame(t, bob)
}

func TestMessageRead_SenderOfflineReceiptDropped(t *testing.T) {
	store := &fakeMessageStore{
		markReadFn: func(messageID, readerID string) (*storage.Message, error) {
			return &storage.Message{ID: messageID, SenderID: "bob", RecipientID: readerID}, nil
		},
	}
	s := newTestServer(store)
	defer s.Close()
	reader := connect(t, s, "c1", "alice")

	// bob is offline; the receipt is silently dropped, not an error
	require.NoError(t, dispatch(t, s, reader, EvMessageRead, MessageReadIn{MessageID: "m1"}))
	requireNoFrame(t, reader)
}

func TestMessageRead_NotRecipientIsNotFound(t *testing.T) {
	store := &fakeMessageStore{} // default MarkRead: not found
	s := newTestServer(store)
	defer s.Close()
	reader := connect(t, s, "c1", "mallory")

	err := dispatch(t, s, reader, EvMessageRead, MessageReadIn{MessageID: "m1"})
	require.ErrorIs(t, err, errs.ErrNotFound)
}

// ---- rooms over the wire ----

func TestJoinRoom_BroadcastsToExistingMembersOnly(t *testing.T) {
	store := &fakeMessageStore{}
	s := newTestServer(store)
	defer s.Close()
	first := connect(t, s, "c1", "alice")
	second := connect(t, s, "c2", "bob")

	require.NoError(t, dispatch(t, s, first, EvJoinRoom, RoomIn{RoomID: "general"}))
	requireNoFrame(t, first) // no members yet, nobody to tell

	require.NoError(t, dispatch(t, s, second, EvJoinRoom, RoomIn{RoomID: "general"}))
	f := recvFrame(t, first, EvUserJoinedRoom)
	var out RoomEventOut
	require.NoError(t, json.Unmarshal(f.Data, &out))
	require.Equal(t, "bob", out.UserID)
	requireNoFrame(t, second) // the joiner gets no echo

	// repeated join: idempotent, no second broadcast
	require.NoError(t, dispatch(t, s, second, EvJoinRoom, RoomIn{RoomID: "general"}))
	requireNoFrame(t, first)
}

func TestLeaveRoom_BroadcastsToRemainingMembers(t *testing.T) {
	store := &fakeMessageStore{}
	s := newTestServer(store)
	defer s.Close()
	alice := connect(t, s, "c1", "alice")
	bob := connect(t, s, "c2", "bob")
	require.True(t, s.rooms.Join(alice, "general"))
	require.True(t, s.rooms.Join(bob, "general"))

	require.NoError(t, dispatch(t, s, bob, EvLeaveRoom, RoomIn{RoomID: "general"}))
	f := recvFrame(t, alice, EvUserLeftRoom)
	var out RoomEventOut
	require.NoError(t, json.Unmarshal(f.Data, &out))
	require.Equal(t, "bob", out.UserID)

	// leaving again: idempotent, no broadcast
	require.NoError(t, dispatch(t, s, bob, EvLeaveRoom, RoomIn{RoomID: "general"}))
	requireNoFrame(t, alice)
}

// ---- dispatch ----

func TestDispatch_UnknownEventIsValidationError(t *testing.T) {
	store := &fakeMessageStore{}
	s := newTestServer(store)
	defer s.Close()
	c := connect(t, s, "c1", "alice")

	err := s.disp.Dispatch(c, &Frame{Event: "fly"})
	require.ErrorIs(t, err, errs.ErrValidation)
}

// ---- disconnect cascade ----

func TestTeardown_CleansRoomsAndTyping(t *testing.T) {
	store := &fakeMessageStore{}
	s := newTestServer(store)
	defer s.Close()
	alice := connect(t, s, "c1", "alice")
	require.True(t, s.rooms.Join(alice, "general"))
	s.typing.Start("alice", typingTargetRoom("general"))

	s.teardown(alice)

	require.Empty(t, s.rooms.MembersOf("general"), "disconnect removes membership without leaveRoom")
	require.False(t, s.reg.IsOnline("alice"))
	require.False(t, s.typing.IsTyping("alice", typingTargetRoom("general")))
}
