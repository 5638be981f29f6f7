package handler

import (
	"botdeck/backend/internal/model"
	"botdeck/backend/internal/service"
	"botdeck/backend/internal/util"

	"github.com/gin-gonic/gin"
)

// ConnectionHandler handles exchange connection endpoints
type ConnectionHandler struct {
	conns *service.ConnectionRegistry
}

// NewConnectionHandler creates a new connection handler
func NewConnectionHandler(conns *service.ConnectionRegistry) *ConnectionHandler {
	return &ConnectionHandler{conns: conns}
}

// Connect validates credentials against the venue and stores the connection
// POST /api/v1/exchanges
func (h *ConnectionHandler) Connect(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req model.ConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.SendValidationError(c, err.Error())
		return
	}

	conn, err := h.conns.Connect(c.Request.Context(), userID, &req)
	if err != nil {
		util.SendError(c, err)
		return
	}

	util.SendCreated(c, conn, "Exchange connected successfully")
}

// List returns the caller's connections
// GET /api/v1/exchanges
func (h *ConnectionHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	util.SendSuccess(c, h.conns.ListByOwner(c.Request.Context(), userID))
}

// Disconnect marks a connection disconnected
// DELETE /api/v1/exchanges/:id
func (h *ConnectionHandler) Disconnect(c *gin.Context) {
	conn, ok := h.ownedConnection(c)
	if !ok {
		return
	}

	updated, err := h.conns.Disconnect(c.Request.Context(), conn.ID)
	if err != nil {
		util.SendError(c, err)
		return
	}

	util.SendSuccessWithMessage(c, updated, "Exchange disconnected")
}

// Reconnect probes a stored connection again
// POST /api/v1/exchanges/:id/reconnect
func (h *ConnectionHandler) Reconnect(c *gin.Context) {
	conn, ok := h.ownedConnection(c)
	if !ok {
		return
	}

	updated, err := h.conns.Reconnect(c.Request.Context(), conn.ID)
	if err != nil {
		util.SendError(c, err)
		return
	}

	util.SendSuccessWithMessage(c, updated, "Exchange reconnected")
}

func (h *ConnectionHandler) ownedConnection(c *gin.Context) (*model.ExchangeConnection, bool) {
	userID, ok := currentUser(c)
	if !ok {
		return nil, false
	}

	conn, err := h.conns.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		util.SendError(c, err)
		return nil, false
	}
	if conn.OwnerID != userID {
		util.SendError(c, util.ErrForbidden("Access denied"))
		return nil, false
	}
	return conn, true
}
