package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	turn "github.com/tobenna/aria/internal/domains/turn"
	"github.com/tobenna/aria/internal/types"
	"github.com/tobenna/aria/pkg/Logger"
)

// TurnHandler processes single-shot voice turns over HTTP. The whole
// utterance arrives as one multipart upload; streaming clients use the
// websocket endpoint instead.
type TurnHandler struct {
	turnService turn.Service
	logger      *Logger.Logger
}

func NewTurnHandler(turnService turn.Service, logger *Logger.Logger) *TurnHandler {
	return &TurnHandler{
		turnService: turnService,
		logger:      logger,
	}
}

// ProcessTurn handles POST /api/v1/turns: multipart form with the raw
// PCM under "audio", plus session_id and optional sample_rate/channels.
func (h *TurnHandler) ProcessTurn(c *gin.Context) {
	sessionID := c.PostForm("session_id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "session_id is required"})
		return
	}

	file, _, err := c.Request.FormFile("audio")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "audio file is required",
			Details: err.Error(),
		})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "failed to read audio",
			Details: err.Error(),
		})
		return
	}
	if len(data) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "audio payload is empty"})
		return
	}

	format := parseFormat(c)
	result := h.turnService.ProcessVoiceTurn(c.Request.Context(), turn.Request{
		SessionID:    sessionID,
		UserID:       RequestUserID(c),
		Buffer:       &types.AudioBuffer{Data: data, Format: format},
		InputFormat:  format,
		OutputFormat: format,
	})

	c.JSON(statusCodeFor(result.Status), result)
}

func parseFormat(c *gin.Context) types.AudioFormat {
	format := types.DefaultAudioFormat()
	if raw := c.PostForm("sample_rate"); raw != "" {
		if sr, err := strconv.Atoi(raw); err == nil && sr > 0 {
			format.SampleRate = int32(sr)
		}
	}
	if raw := c.PostForm("channels"); raw != "" {
		if ch, err := strconv.Atoi(raw); err == nil && ch > 0 {
			format.Channels = int16(ch)
		}
	}
	return format
}

func statusCodeFor(status types.TurnStatus) int {
	if status == types.TurnFailed {
		return http.StatusUnprocessableEntity
	}
	return http.StatusOK
}
