package chat

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"ChatLink/logger"
	"ChatLink/service/storage"
	"ChatLink/tools/errs"
)

func (s *Server) registerHandlers() {
	s.disp.Register(EvPrivateMessage, s.handlePrivateMessage)
	s.disp.Register(EvGroupMessage, s.handleGroupMessage)
	s.disp.Register(EvTyping, s.handleTyping)
	s.disp.Register(EvStopTyping, s.handleStopTyping)
	s.disp.Register(EvMessageRead, s.handleMessageRead)
	s.disp.Register(EvJoinRoom, s.handleJoinRoom)
	s.disp.Register(EvLeaveRoom, s.handleLeaveRoom)
}

// validateContent enforces the shared message rules: non-empty after
// trimming, within the length bound. Runs before any persistence call.
func (s *Server) validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return errs.ErrValidation.WithDetail("message content cannot be empty")
	}
	if utf8.RuneCountInString(content) > s.opts.MaxMessageLen {
		return errs.ErrValidation.WithDetail("message content exceeds length limit")
	}
	return nil
}

// handlePrivateMessage: validate -> persist -> fan out to the recipient's
// live connections -> ack the sender with the delivered flag. delivered
// only says the recipient had at least one connection at dispatch time.
func (s *Server) handlePrivateMessage(c *Client, data json.RawMessage) error {
	var in PrivateMessageIn
	if err := json.Unmarshal(data, &in); err != nil {
		return errs.ErrValidation.WithDetail(err.Error())
	}
	if in.RecipientID == "" {
		return errs.ErrValidation.WithDetail("recipientId is required")
	}
	if err := s.validateContent(in.Content); err != nil {
		return err
	}

	ctx, cancel := s.opCtx()
	defer cancel()
	stored, err := s.messages.Create(ctx, &storage.Message{
		SenderID:    c.UserID,
		RecipientID: in.RecipientID,
		Type:        storage.MsgPrivate,
		Content:     in.Content,
		Attachments: in.Attachments,
	})
	if err != nil {
		// durability before delivery: no fan-out for an unrecorded message
		return err
	}

	targets := s.reg.ConnectionsFor(in.RecipientID)
	delivered := len(targets) > 0
	if delivered {
		s.fanout.Broadcast(targets, MarshalFrame(EvMessageReceived, MessageReceivedOut{
			Message: *stored,
			Sender:  SenderInfo{ID: c.UserID, Username: c.Username},
		}))
	}

	c.Enqueue(MarshalFrame(EvMessageSent, MessageSentOut{
		MessageID: stored.ID,
		Timestamp: stored.CreatedAt,
		Delivered: delivered,
	}))

	logger.Debugf("[router] private message %s -> %s delivered=%v", c.UserID, in.RecipientID, delivered)
	return nil
}

// handleGroupMessage: validate -> persist -> fan out to the room, skipping
// the originating connection (the sender's echo is the messageSent ack).
func (s *Server) handleGroupMessage(c *Client, data json.RawMessage) error {
	var in GroupMessageIn
	if err := json.Unmarshal(data, &in); err != nil {
		return errs.ErrValidation.WithDetail(err.Error())
	}
	if in.RoomID == "" {
		return errs.ErrValidation.WithDetail("roomId is required")
	}
	if err := s.validateContent(in.Content); err != nil {
		return err
	}

	ctx, cancel := s.opCtx()
	defer cancel()
	stored, err := s.messages.Create(ctx, &storage.Message{
		SenderID:    c.UserID,
		RoomID:      string(in.RoomID),
		Type:        storage.MsgGroup,
		Content:     in.Content,
		Attachments: in.Attachments,
	})
	if err != nil {
		return err
	}

	s.fanout.BroadcastExcept(s.rooms.MembersOf(in.RoomID), c.ConnID,
		MarshalFrame(EvGroupMessageReceived, MessageReceivedOut{
			Message: *stored,
			Sender:  SenderInfo{ID: c.UserID, Username: c.Username},
		}))

	c.Enqueue(MarshalFrame(EvMessageSent, MessageSentOut{
		MessageID: stored.ID,
		Timestamp: stored.CreatedAt,
		Delivered: true,
	}))

	logger.Debugf("[router] group message %s -> %s", c.UserID, in.RoomID)
	return nil
}

func (s *Server) handleTyping(c *Client, data json.RawMessage) error {
	return s.handleTypingEvent(c, data, true)
}

func (s *Server) handleStopTyping(c *Client, data json.RawMessage) error {
	return s.handleTypingEvent(c, data, false)
}

// handleTypingEvent updates the ephemeral tracker and fans the transient
// notice out to the resolved targets. Never persisted, never acked.
func (s *Server) handleTypingEvent(c *Client, data json.RawMessage, start bool) error {
	var in TypingIn
	if err := json.Unmarshal(data, &in); err != nil {
		return errs.ErrValidation.WithDetail(err.Error())
	}

	event := EvStopTyping
	if start {
		event = EvTyping
	}

	switch {
	case in.RecipientID != "":
		target := typingTargetUser(in.RecipientID)
		if start {
			s.typing.Start(c.UserID, target)
		} else {
			s.typing.Stop(c.UserID, target)
		}
		s.fanout.Broadcast(s.reg.ConnectionsFor(in.RecipientID),
			MarshalFrame(event, TypingOut{
				UserID:           c.UserID,
				Username:         c.Username,
				ConversationType: storage.MsgPrivate,
			}))
	case in.RoomID != "":
		target := typingTargetRoom(in.RoomID)
		if start {
			s.typing.Start(c.UserID, target)
		} else {
			s.typing.Stop(c.UserID, target)
		}
		s.fanout.BroadcastExcept(s.rooms.MembersOf(in.RoomID), c.ConnID,
			MarshalFrame(event, TypingOut{
				UserID:           c.UserID,
				Username:         c.Username,
				RoomID:           in.RoomID,
				ConversationType: storage.MsgGroup,
			}))
	default:
		return errs.ErrValidation.WithDetail("typing needs recipientId or roomId")
	}
	return nil
}

// handleMessageRead marks the message read and notifies the original
// sender's live connections. An offline sender means the receipt is
// dropped; there is no queue for it.
func (s *Server) handleMessageRead(c *Client, data json.RawMessage) error {
	var in MessageReadIn
	if err := json.Unmarshal(data, &in); err != nil {
		return errs.ErrValidation.WithDetail(err.Error())
	}
	if in.MessageID == "" {
		return errs.ErrValidation.WithDetail("messageId is required")
	}

	ctx, cancel := s.opCtx()
	defer cancel()
	stored, err := s.messages.MarkRead(ctx, in.MessageID, c.UserID)
	if err != nil {
		return err
	}

	senderConns := s.reg.ConnectionsFor(stored.SenderID)
	if len(senderConns) == 0 {
		logger.Debugf("[router] read receipt dropped, sender offline msg=%s reader=%s", stored.ID, c.UserID)
		return nil
	}
	readAt := stored.CreatedAt
	if stored.ReadAt != nil {
		readAt = *stored.ReadAt
	}
	s.fanout.Broadcast(senderConns, MarshalFrame(EvMessageReadReceipt, ReadReceiptOut{
		MessageID: stored.ID,
		ReaderID:  c.UserID,
		ReadAt:    readAt,
	}))
	return nil
}

func (s *Server) handleJoinRoom(c *Client, data json.RawMessage) error {
	var in RoomIn
	if err := json.Unmarshal(data, &in); err != nil {
		return errs.ErrValidation.WithDetail(err.Error())
	}
	if in.RoomID == "" {
		return errs.ErrValidation.WithDetail("roomId is required")
	}

	if !s.rooms.Join(c, in.RoomID) {
		return nil // already a member
	}
	s.fanout.BroadcastExcept(s.rooms.MembersOf(in.RoomID), c.ConnID,
		MarshalFrame(EvUserJoinedRoom, RoomEventOut{
			UserID:   c.UserID,
			Username: c.Username,
			RoomID:   in.RoomID,
		}))
	logger.Infof("[router] user %s joined room %s", c.UserID, in.RoomID)
	return nil
}

func (s *Server) handleLeaveRoom(c *Client, data json.RawMessage) error {
	var in RoomIn
	if err := json.Unmarshal(data, &in); err != nil {
		return errs.ErrValidation.WithDetail(err.Error())
	}
	if in.RoomID == "" {
		return errs.ErrValidation.WithDetail("roomId is required")
	}

	if !s.rooms.Leave(c.ConnID, in.RoomID) {
		return nil // was not a member
	}
	s.fanout.Broadcast(s.rooms.MembersOf(in.RoomID),
		MarshalFrame(EvUserLeftRoom, RoomEventOut{
			UserID:   c.UserID,
			Username: c.Username,
			RoomID:   in.RoomID,
		}))
	logger.Infof("[router] user %s left room %s", c.UserID, in.RoomID)
	return nil
}
