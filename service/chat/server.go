package chat

import (
	"context"
	"time"

	"ChatLink/service/storage"
)

// MessageStore is the durable message collaborator. The router persists
// before any fan-out and never delivers what was not recorded.
type MessageStore interface {
	Create(ctx context.Context, m *storage.Message) (*storage.Message, error)
	MarkRead(ctx context.Context, messageID, readerID string) (*storage.Message, error)
}

// IdentityStore confirms at handshake time that the token's subject still
// exists.
type IdentityStore interface {
	FindByID(ctx context.Context, userID string) (*storage.User, error)
}

// Options tunes the gateway. Zero values fall back to workable defaults so
// tests can construct a Server with Options{}.
type Options struct {
	JWTSecret     []byte
	SendQueueSize int
	FanoutWorkers int
	FanoutQueue   int
	MaxMessageLen int
	TypingTTL     time.Duration
	WriteDeadline time.Duration
	OpTimeout     time.Duration
}

func (o *Options) norm() {
	if o.SendQueueSize <= 0 {
		o.SendQueueSize = 256
	}
	if o.FanoutWorkers <= 0 {
		o.FanoutWorkers = 8
	}
	if o.FanoutQueue <= 0 {
		o.FanoutQueue = 4096
	}
	if o.MaxMessageLen <= 0 {
		o.MaxMessageLen = 2000
	}
	if o.TypingTTL <= 0 {
		o.TypingTTL = 3 * time.Second
	}
	if o.WriteDeadline <= 0 {
		o.WriteDeadline = 5 * time.Second
	}
	if o.OpTimeout <= 0 {
		o.OpTimeout = 5 * time.Second
	}
}

// Server wires the realtime core together: registry, rooms, typing
// tracker, fan-out pool and the event dispatcher. It holds no per-event
// state of its own.
type Server struct {
	opts     Options
	reg      *Registry
	rooms    *Rooms
	typing   *TypingTracker
	fanout   *Fanout
	disp     *Dispatcher
	messages MessageStore
	users    IdentityStore
	presence *Presence
}

func NewServer(opts Options, messages MessageStore, users IdentityStore, presence *Presence) *Server {
	opts.norm()
	s := &Server{
		opts:     opts,
		reg:      NewRegistry(),
		rooms:    NewRooms(),
		typing:   NewTypingTracker(opts.TypingTTL),
		fanout:   NewFanout(opts.FanoutWorkers, opts.FanoutQueue),
		disp:     NewDispatcher(),
		messages: messages,
		users:    users,
		presence: presence,
	}
	if presence != nil {
		presence.broadcast = s.broadcastExcept
	}
	s.registerHandlers()
	return s
}

func (s *Server) Registry() *Registry { return s.reg }
func (s *Server) Rooms() *Rooms       { return s.rooms }
func (s *Server) Typing() *TypingTracker {
	return s.typing
}
func (s *Server) Disp() *Dispatcher { return s.disp }

// broadcastExcept sends a payload to every connection on the gateway but
// the originator.
func (s *Server) broadcastExcept(exceptConnID string, payload []byte) {
	s.fanout.Broadcast(s.reg.AllExcept(exceptConnID), payload)
}

// opCtx bounds one storage call. The read loop itself carries no context;
// a disconnect simply stops producing events.
func (s *Server) opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.opts.OpTimeout)
}

func (s *Server) Close() {
	s.fanout.Close()
}
