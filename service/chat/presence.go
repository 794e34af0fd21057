package chat

import (
	"context"
	"time"

	"ChatLink/logger"
	"ChatLink/tools/safe"
)

// StatusStore is the durable side of presence: the online flag on the
// user document. Writes are fire-and-forget.
type StatusStore interface {
	SetOnlineStatus(ctx context.Context, userID string, online bool) error
}

// StatusMirror is the fast-lookup presence copy (Redis). Optional.
type StatusMirror interface {
	Online(ctx context.Context, userID string) error
	Offline(ctx context.Context, userID string) error
}

// Presence turns registry edges into side effects: one broadcast per
// actual offline<->online transition plus detached durable updates whose
// failures are logged and swallowed. The edge itself is decided by the
// Registry under its lock; by the time a call lands here the transition is
// already a fact.
type Presence struct {
	store     StatusStore
	mirror    StatusMirror
	opTimeout time.Duration

	// set by the server at wiring time
	broadcast func(exceptConnID string, payload []byte)
}

func NewPresence(store StatusStore, mirror StatusMirror, opTimeout time.Duration) *Presence {
	if opTimeout <= 0 {
		opTimeout = 5 * time.Second
	}
	return &Presence{store: store, mirror: mirror, opTimeout: opTimeout}
}

// ConnectionOpened runs the online side effects when the registry reported
// an offline->online edge. Additional connections of an already-online
// user produce nothing.
func (p *Presence) ConnectionOpened(c *Client, wasOffline bool) {
	if !wasOffline {
		return
	}
	if p.broadcast != nil {
		p.broadcast(c.ConnID, MarshalFrame(EvUserOnline, UserOnlineOut{
			UserID:    c.UserID,
			Username:  c.Username,
			Timestamp: time.Now(),
		}))
	}
	p.updateDurable(c.UserID, true)
}

// ConnectionClosed runs the offline side effects when the last connection
// went away.
func (p *Presence) ConnectionClosed(c *Client, nowOffline bool) {
	if !nowOffline {
		return
	}
	if p.broadcast != nil {
		p.broadcast(c.ConnID, MarshalFrame(EvUserOffline, UserOfflineOut{
			UserID:   c.UserID,
			Username: c.Username,
			LastSeen: time.Now(),
		}))
	}
	p.updateDurable(c.UserID, false)
}

// updateDurable writes the status flag and the mirror in the background.
// No lock is held here and nothing waits on the result.
func (p *Presence) updateDurable(userID string, online bool) {
	safe.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.opTimeout)
		defer cancel()

		if p.store != nil {
			if err := p.store.SetOnlineStatus(ctx, userID, online); err != nil {
				logger.Warnf("[presence] status update failed user=%s online=%v err=%v", userID, online, err)
			}
		}
		if p.mirror == nil {
			return
		}
		var err error
		if online {
			err = p.mirror.Online(ctx, userID)
		} else {
			err = p.mirror.Offline(ctx, userID)
		}
		if err != nil {
			logger.Warnf("[presence] mirror update failed user=%s online=%v err=%v", userID, online, err)
		}
	})
}
