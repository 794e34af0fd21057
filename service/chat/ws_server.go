package chat

import (
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"ChatLink/logger"
	"ChatLink/tools/errs"
	"ChatLink/tools/security"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// HandleWS is the websocket endpoint. Auth runs before the upgrade: a bad
// token means the handshake is rejected and nothing is ever registered.
func (s *Server) HandleWS(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = security.BearerToken(c.GetHeader("Authorization"))
	}

	ident, err := security.Verify(security.DefaultOptions(s.opts.JWTSecret), token)
	if err != nil {
		logger.Infof("[ws] handshake rejected: %v", err)
		c.JSON(http.StatusUnauthorized, errs.AsCodeError(err))
		return
	}

	ctx, cancel := s.opCtx()
	user, err := s.users.FindByID(ctx, ident.UserID)
	cancel()
	if err != nil {
		logger.Infof("[ws] handshake rejected, user lookup: %v", err)
		c.JSON(http.StatusUnauthorized, errs.AsCodeError(err))
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Infof("[ws] upgrade error: %v", err)
		return
	}

	client := NewClient(uuid.NewString(), user.ID, user.Username, ws, s.opts.SendQueueSize)

	wasOffline, err := s.reg.Register(client)
	if err != nil {
		// can only be a duplicate handle; give up on this connection
		logger.Errorf("[ws] register failed conn=%s user=%s err=%v", client.ConnID, client.UserID, err)
		_ = ws.Close()
		return
	}

	go client.writePump(s.opts.WriteDeadline)

	logger.Infof("[ws] user connected user=%s conn=%s remote=%s", client.UserID, client.ConnID, ws.RemoteAddr())

	if s.presence != nil {
		s.presence.ConnectionOpened(client, wasOffline)
	}
	client.Enqueue(MarshalFrame(EvOnlineUsers, s.reg.OnlineUsers()))

	s.readLoop(client)
	s.teardown(client)
}

// readLoop processes the connection's inbound events in arrival order.
// Handler failures go back to this connection as error frames and never
// terminate it; only a read error ends the loop.
func (s *Server) readLoop(client *Client) {
	for {
		mt, data, rerr := client.WS.ReadMessage()
		if rerr != nil {
			if websocket.IsCloseError(rerr,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Infof("[ws] peer closed conn=%s err=%v", client.ConnID, rerr)
			} else if ne, ok := rerr.(net.Error); ok && ne.Timeout() {
				logger.Infof("[ws] read timeout conn=%s err=%v", client.ConnID, rerr)
			} else {
				logger.Infof("[ws] read err conn=%s err=%v", client.ConnID, rerr)
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		frame, perr := ParseFrame(data)
		if perr != nil {
			sample := data
			if len(sample) > 256 {
				sample = sample[:256]
			}
			logger.Debugf("[ws] bad frame conn=%s err=%v sample=%q", client.ConnID, perr, sample)
			client.Enqueue(BuildError(perr))
			continue
		}

		if err := s.disp.Dispatch(client, frame); err != nil {
			logger.Infof("[ws] event %s failed conn=%s user=%s err=%v", frame.Event, client.ConnID, client.UserID, err)
			client.Enqueue(BuildError(err))
		}
	}
}

// teardown cascades a disconnect: registry removal, room cleanup, typing
// cleanup, presence side effects, writer shutdown. Room memberships go
// away without an explicit leave event.
func (s *Server) teardown(client *Client) {
	_, nowOffline := s.reg.Unregister(client.ConnID)
	s.rooms.DropConn(client.ConnID)
	if nowOffline {
		s.typing.DropUser(client.UserID)
	}
	if s.presence != nil {
		s.presence.ConnectionClosed(client, nowOffline)
	}
	client.Close()

	logger.Infof("[ws] user disconnected user=%s conn=%s offline=%v", client.UserID, client.ConnID, nowOffline)
}
