package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	mongox "ChatLink/service/storage/mongo"
	"ChatLink/tools/errs"
	"ChatLink/tools/ids"
)

const msgCollection = "messages"

// message kinds
const (
	MsgPrivate = "private"
	MsgGroup   = "group"
)

// Attachment is a file reference carried inside a message. The bytes
// themselves live in object storage; we only keep the pointer.
type Attachment struct {
	URL      string `bson:"url" json:"url"`
	Name     string `bson:"name,omitempty" json:"name,omitempty"`
	MimeType string `bson:"mime_type,omitempty" json:"mimeType,omitempty"`
	Size     int64  `bson:"size,omitempty" json:"size,omitempty"`
}

// Message is the durable message document.
type Message struct {
	ID          string       `bson:"_id" json:"messageId"`
	SenderID    string       `bson:"sender_id" json:"senderId"`
	RecipientID string       `bson:"recipient_id,omitempty" json:"recipientId,omitempty"`
	RoomID      string       `bson:"room_id,omitempty" json:"roomId,omitempty"`
	Type        string       `bson:"type" json:"type"`
	Content     string       `bson:"content" json:"content"`
	Attachments []Attachment `bson:"attachments,omitempty" json:"attachments,omitempty"`
	IsRead      bool         `bson:"is_read" json:"isRead"`
	ReadAt      *time.Time   `bson:"read_at,omitempty" json:"readAt,omitempty"`
	CreatedAt   time.Time    `bson:"created_at" json:"createdAt"`
	EditedAt    *time.Time   `bson:"edited_at,omitempty" json:"editedAt,omitempty"`
	DeletedAt   *time.Time   `bson:"deleted_at,omitempty" json:"deletedAt,omitempty"`
}

// MessageStore persists and queries messages in Mongo.
type MessageStore struct {
	coll *mongo.Collection
}

func NewMessageStore() *MessageStore {
	return &MessageStore{coll: mongox.DB().Collection(msgCollection)}
}

// Create assigns an ID and timestamp and inserts the document. The caller
// has already validated the content; anything failing here is a storage
// fault, not a user fault.
func (s *MessageStore) Create(ctx context.Context, m *Message) (*Message, error) {
	if m.ID == "" {
		m.ID = ids.GenerateString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	if _, err := s.coll.InsertOne(ctx, m); err != nil {
		return nil, errs.ErrPersistence.WithDetail(errors.Wrap(err, "insert message").Error())
	}
	return m, nil
}

// MarkRead flips the read flag, but only when the reader is the message's
// recipient. A miss (wrong reader, unknown id, already deleted) is a
// NotFound to the caller, same as an access denial.
func (s *MessageStore) MarkRead(ctx context.Context, messageID, readerID string) (*Message, error) {
	now := time.Now()
	filter := bson.M{
		"_id":          messageID,
		"recipient_id": readerID,
		"deleted_at":   nil,
	}
	update := bson.M{"$set": bson.M{"is_read": true, "read_at": now}}

	var out Message
	err := s.coll.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.ErrNotFound.WithDetail("message " + messageID)
	}
	if err != nil {
		return nil, errs.ErrPersistence.WithDetail(errors.Wrap(err, "mark read").Error())
	}
	return &out, nil
}

// ConversationHistory returns one page of the private conversation between
// two users, oldest first within the page.
func (s *MessageStore) ConversationHistory(ctx context.Context, userID, partnerID string, page, limit int) ([]Message, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 30
	}
	filter := bson.M{
		"type":       MsgPrivate,
		"deleted_at": nil,
		"$or": bson.A{
			bson.M{"sender_id": userID, "recipient_id": partnerID},
			bson.M{"sender_id": partnerID, "recipient_id": userID},
		},
	}
	return s.findPage(ctx, filter, page, limit)
}

// RoomHistory returns one page of a room's messages, oldest first within
// the page.
func (s *MessageStore) RoomHistory(ctx context.Context, roomID string, page, limit int) ([]Message, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 50
	}
	filter := bson.M{"room_id": roomID, "deleted_at": nil}
	return s.findPage(ctx, filter, page, limit)
}

func (s *MessageStore) findPage(ctx context.Context, filter bson.M, page, limit int) ([]Message, error) {
	skip := int64((page - 1) * limit)
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(skip).
		SetLimit(int64(limit))

	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, errs.ErrPersistence.WithDetail(errors.Wrap(err, "find messages").Error())
	}
	defer func() { _ = cur.Close(ctx) }()

	var out []Message
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.ErrPersistence.WithDetail(errors.Wrap(err, "decode messages").Error())
	}
	// newest-first from the index, oldest-first for the client
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
