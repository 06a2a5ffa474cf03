package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	turn "github.com/tobenna/aria/internal/domains/turn"
	"github.com/tobenna/aria/pkg/Logger"
)

const defaultTurnsLimit = 20

// SessionHandler exposes stored conversation history.
type SessionHandler struct {
	turnService turn.Service
	logger      *Logger.Logger
}

func NewSessionHandler(turnService turn.Service, logger *Logger.Logger) *SessionHandler {
	return &SessionHandler{
		turnService: turnService,
		logger:      logger,
	}
}

// GetTurns handles GET /api/v1/sessions/:id/turns?limit=N.
func (h *SessionHandler) GetTurns(c *gin.Context) {
	sessionID := c.Param("id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "session id is required"})
		return
	}

	limit := defaultTurnsLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	turns, err := h.turnService.GetSessionTurns(c.Request.Context(), sessionID, limit)
	if err != nil {
		h.logger.Errorf("fetching turns for session %s: %v", sessionID, err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, SessionTurnsResponse{
		SessionID: sessionID,
		Turns:     turns,
	})
}
