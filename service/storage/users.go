package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	mongox "ChatLink/service/storage/mongo"
	"ChatLink/tools/errs"
)

const userCollection = "users"

// User is the slice of the user document the gateway cares about. Account
// management owns the rest of the schema.
type User struct {
	ID         string     `bson:"_id" json:"userId"`
	Username   string     `bson:"username" json:"username"`
	Email      string     `bson:"email" json:"email"`
	Role       string     `bson:"role" json:"role"`
	IsOnline   bool       `bson:"is_online" json:"isOnline"`
	LastSeenAt *time.Time `bson:"last_seen_at,omitempty" json:"lastSeenAt,omitempty"`
}

type UserStore struct {
	coll *mongo.Collection
}

func NewUserStore() *UserStore {
	return &UserStore{coll: mongox.DB().Collection(userCollection)}
}

// FindByID loads a user by id; used at handshake time to confirm the token
// subject still exists.
func (s *UserStore) FindByID(ctx context.Context, userID string) (*User, error) {
	var u User
	err := s.coll.FindOne(ctx, bson.M{"_id": userID}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.ErrAuthentication.WithDetail("user not found: " + userID)
	}
	if err != nil {
		return nil, errs.ErrPersistence.WithDetail(errors.Wrap(err, "find user").Error())
	}
	return &u, nil
}

// SetOnlineStatus writes the durable online flag and last-seen stamp.
// Fire-and-forget from the presence tracker; the caller logs failures and
// moves on.
func (s *UserStore) SetOnlineStatus(ctx context.Context, userID string, online bool) error {
	update := bson.M{"$set": bson.M{
		"is_online":    online,
		"last_seen_at": time.Now(),
	}}
	if _, err := s.coll.UpdateByID(ctx, userID, update); err != nil {
		return errs.ErrPersistence.WithDetail(errors.Wrap(err, "set online status").Error())
	}
	return nil
}
