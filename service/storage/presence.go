package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"

	redisx "ChatLink/service/storage/redis"
)

// PresenceMirror keeps a fast-lookup copy of who is online in Redis,
// alongside the durable flag on the user document. The key TTL bounds how
// stale the mirror can get if the process dies without cleanup.
type PresenceMirror struct {
	ttl time.Duration
}

func NewPresenceMirror(ttl time.Duration) *PresenceMirror {
	return &PresenceMirror{ttl: ttl}
}

// presence key: im:presence:<user>
func presenceKey(user string) string { return "im:presence:" + user }

// Online marks the user online and renews the TTL.
func (p *PresenceMirror) Online(ctx context.Context, user string) error {
	return redisx.Client().Set(ctx, presenceKey(user), time.Now().UnixMilli(), p.ttl).Err()
}

// Offline clears the user's presence key.
func (p *PresenceMirror) Offline(ctx context.Context, user string) error {
	return redisx.Client().Del(ctx, presenceKey(user)).Err()
}

// Lookup reports whether the mirror currently considers the user online.
func (p *PresenceMirror) Lookup(ctx context.Context, user string) (bool, error) {
	_, err := redisx.Client().Get(ctx, presenceKey(user)).Result()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "presence lookup")
	}
	return true, nil
}
