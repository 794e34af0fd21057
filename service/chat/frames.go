package chat

import (
	"encoding/json"
	"time"

	"ChatLink/logger"
	"ChatLink/service/storage"
	"ChatLink/tools/errs"
)

// Inbound event vocabulary (connection -> server).
const (
	EvPrivateMessage = "privateMessage"
	EvGroupMessage   = "groupMessage"
	EvTyping         = "typing"
	EvStopTyping     = "stopTyping"
	EvMessageRead    = "messageRead"
	EvJoinRoom       = "joinRoom"
	EvLeaveRoom      = "leaveRoom"
)

// Outbound event vocabulary (server -> connection).
const (
	EvMessageReceived      = "messageReceived"
	EvGroupMessageReceived = "groupMessageReceived"
	EvMessageSent          = "messageSent"
	EvMessageReadReceipt   = "messageReadReceipt"
	EvUserOnline           = "userOnline"
	EvUserOffline          = "userOffline"
	EvUserJoinedRoom       = "userJoinedRoom"
	EvUserLeftRoom         = "userLeftRoom"
	EvOnlineUsers          = "onlineUsers"
	EvError                = "error"
)

// Frame is the wire unit in both directions: {"event": ..., "data": ...}
// as a websocket text message.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ParseFrame decodes an inbound frame. Anything malformed is a validation
// failure reported back to the sender, never a dropped connection.
func ParseFrame(raw []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, errs.ErrValidation.WithDetail("bad frame: " + err.Error())
	}
	if f.Event == "" {
		return nil, errs.ErrValidation.WithDetail("frame has no event")
	}
	return &f, nil
}

// MarshalFrame encodes an outbound frame. The payloads are our own structs
// so encoding can only fail on a programming error; that case is logged
// and an empty slice returned, which Enqueue ignores.
func MarshalFrame(event string, data any) []byte {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			logger.Errorf("[frames] marshal %s payload: %v", event, err)
			return nil
		}
		raw = b
	}
	out, err := json.Marshal(Frame{Event: event, Data: raw})
	if err != nil {
		logger.Errorf("[frames] marshal %s frame: %v", event, err)
		return nil
	}
	return out
}

// ---- inbound payloads ----

type PrivateMessageIn struct {
	RecipientID string               `json:"recipientId"`
	Content     string               `json:"content"`
	Attachments []storage.Attachment `json:"attachments,omitempty"`
}

type GroupMessageIn struct {
	RoomID      RoomID               `json:"roomId"`
	Content     string               `json:"content"`
	Attachments []storage.Attachment `json:"attachments,omitempty"`
}

type TypingIn struct {
	RecipientID string `json:"recipientId,omitempty"`
	RoomID      RoomID `json:"roomId,omitempty"`
}

type MessageReadIn struct {
	MessageID string `json:"messageId"`
}

type RoomIn struct {
	RoomID RoomID `json:"roomId"`
}

// ---- outbound payloads ----

type SenderInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type MessageReceivedOut struct {
	storage.Message
	Sender SenderInfo `json:"sender"`
}

type MessageSentOut struct {
	MessageID string    `json:"messageId"`
	Timestamp time.Time `json:"timestamp"`
	Delivered bool      `json:"delivered"`
}

type TypingOut struct {
	UserID           string `json:"userId"`
	Username         string `json:"username"`
	RoomID           RoomID `json:"roomId,omitempty"`
	ConversationType string `json:"conversationType"`
}

type ReadReceiptOut struct {
	MessageID string    `json:"messageId"`
	ReaderID  string    `json:"readerId"`
	ReadAt    time.Time `json:"readAt"`
}

type UserOnlineOut struct {
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
}

type UserOfflineOut struct {
	UserID   string    `json:"userId"`
	Username string    `json:"username"`
	LastSeen time.Time `json:"lastSeen"`
}

type RoomEventOut struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	RoomID   RoomID `json:"roomId"`
}

type ErrorOut struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// BuildError converts any handler failure into the error frame delivered
// to the originating connection only.
func BuildError(err error) []byte {
	ce := errs.AsCodeError(err)
	return MarshalFrame(EvError, ErrorOut{Code: ce.Code, Message: ce.Msg})
}
