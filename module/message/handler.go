package message

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	mid "ChatLink/middleware"
	midsec "ChatLink/middleware/security"
	"ChatLink/service/storage"
	"ChatLink/tools/errs"
)

// Handler serves the message history REST surface. Messages a client
// missed while offline are fetched here, not replayed over the socket.
type Handler struct {
	store        *storage.MessageStore
	defaultLimit int
}

func NewHandler(store *storage.MessageStore, defaultLimit int) *Handler {
	if defaultLimit <= 0 {
		defaultLimit = 30
	}
	return &Handler{store: store, defaultLimit: defaultLimit}
}

// Register mounts the history routes behind JWT auth.
func (h *Handler) Register(r gin.IRoutes, jwtSecret []byte) {
	opt := mid.RouteOpt{IsAuth: true, JWTSecret: jwtSecret}
	mid.GET(r, "/api/messages/:partnerId", h.History, opt)
	mid.GET(r, "/api/rooms/:roomId/messages", h.RoomHistory, opt)
}

// History returns one page of the caller's private conversation with
// :partnerId.
func (h *Handler) History(c *gin.Context) {
	userID := midsec.UserID(c)
	partnerID := c.Param("partnerId")
	page, limit := h.paging(c)

	msgs, err := h.store.ConversationHistory(c.Request.Context(), userID, partnerID, page, limit)
	if err != nil {
		ce := errs.AsCodeError(err)
		c.JSON(http.StatusInternalServerError, ce)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs, "page": page})
}

// RoomHistory returns one page of a room's messages.
func (h *Handler) RoomHistory(c *gin.Context) {
	roomID := c.Param("roomId")
	page, limit := h.paging(c)

	msgs, err := h.store.RoomHistory(c.Request.Context(), roomID, page, limit)
	if err != nil {
		ce := errs.AsCodeError(err)
		c.JSON(http.StatusInternalServerError, ce)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs, "page": page})
}

func (h *Handler) paging(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(h.defaultLimit)))
	if limit < 1 || limit > 100 {
		limit = h.defaultLimit
	}
	return page, limit
}
