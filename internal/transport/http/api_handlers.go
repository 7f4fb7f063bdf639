package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/core"
)

// APIHandlers provides HTTP handlers for the status API.
type APIHandlers struct {
	session Session
	log     *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(session Session, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		session: session,
		log:     logger,
	}
}

// SendRequest represents the send message request body.
type SendRequest struct {
	Content string `json:"content" binding:"required"`
}

// ConnectRequest optionally replaces the join params before connecting.
type ConnectRequest struct {
	Username string `json:"username"`
	Channel  string `json:"channel"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// GetSession returns the current session state.
// GET /session
func (h *APIHandlers) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, toSessionResponse(h.session.Snapshot()))
}

// ListMessages returns the message log in arrival order.
// GET /messages
func (h *APIHandlers) ListMessages(c *gin.Context) {
	c.JSON(http.StatusOK, toMessageResponses(h.session.Snapshot()))
}

// PostMessage sends a chat message through the open connection.
// POST /messages
func (h *APIHandlers) PostMessage(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid send request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if err := h.session.TrySend(req.Content); err != nil {
		switch {
		case errors.Is(err, core.ErrEmptyBody):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "message is empty"})
		case errors.Is(err, core.ErrNotConnected):
			c.JSON(http.StatusConflict, ErrorResponse{Error: "not connected"})
		case errors.Is(err, core.ErrManagerStopped):
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "client is shutting down"})
		default:
			h.log.Error().Err(err).Msg("failed to send message")
			c.JSON(http.StatusBadGateway, ErrorResponse{Error: "send failed"})
		}
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "sent"})
}

// Connect starts a session, optionally with new join params.
// POST /connect
func (h *APIHandlers) Connect(c *gin.Context) {
	var req ConnectRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.log.Debug().Err(err).Msg("invalid connect request")
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
			return
		}
	}

	if req.Username != "" || req.Channel != "" {
		params := h.session.Snapshot().Params
		if req.Username != "" {
			params.Username = req.Username
		}
		if req.Channel != "" {
			params.Channel = req.Channel
		}
		if err := h.session.SetParams(params); err != nil {
			h.writeConnectError(c, err)
			return
		}
	}

	if err := h.session.Start(); err != nil {
		h.writeConnectError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, toSessionResponse(h.session.Snapshot()))
}

// Disconnect ends the session and clears the message log.
// POST /disconnect
func (h *APIHandlers) Disconnect(c *gin.Context) {
	h.session.Disconnect()
	c.JSON(http.StatusOK, toSessionResponse(h.session.Snapshot()))
}

func (h *APIHandlers) writeConnectError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, core.ErrIncompleteParams):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "username and channel are required"})
	case errors.Is(err, core.ErrManagerStopped):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "client is shutting down"})
	default:
		h.log.Error().Err(err).Msg("failed to connect")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "connect failed"})
	}
}
