package websocket

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	turn "github.com/tobenna/aria/internal/domains/turn"
	"github.com/tobenna/aria/internal/types"
	"github.com/tobenna/aria/pkg/Logger"
	"github.com/tobenna/aria/pkg/io/audioring"
)

const (
	// ring sized for ~30s of 16kHz mono PCM arriving ahead of the pipeline
	frameQueueBytes = 1024 * 1024
	replyChunkSize  = 4096
)

// Handler streams voice turns over a websocket. The client sends a
// start control message, then binary audio frames with the final flag
// on the last one, and reads back the result plus the reply audio.
// One turn is in flight per connection at a time.
type Handler struct {
	turnService turn.Service
	logger      *Logger.Logger
}

func NewHandler(turnService turn.Service, logger *Logger.Logger) *Handler {
	return &Handler{
		turnService: turnService,
		logger:      logger,
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true }, // dev-only
}

// wsWriter serializes all outbound writes on one connection. The read
// loop and the result goroutine both answer the client; gorilla allows
// only one concurrent writer.
type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) writeJSON(v interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteJSON(v)
}

func (w *wsWriter) writeBinary(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteMessage(websocket.BinaryMessage, data)
}

// streamState is the per-turn plumbing between the socket reader and
// the pipeline: frames land in the ring, the pump drains them into the
// assembler's channel.
type streamState struct {
	turn     *turn.StreamTurn
	queue    audioring.FrameQueue
	notify   chan struct{}
	done     chan struct{}
	doneOnce sync.Once
}

func (st *streamState) finish() {
	st.doneOnce.Do(func() { close(st.done) })
}

func (st *streamState) finished() bool {
	select {
	case <-st.done:
		return true
	default:
		return false
	}
}

// HandleAudio serves GET /ws/audio?session_id=...
func (h *Handler) HandleAudio(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	w := &wsWriter{conn: conn}

	h.logger.Infof("audio ws connected for session %s", sessionID)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	var active *streamState
	defer func() {
		if active != nil {
			active.turn.Cancel()
		}
	}()

	for {
		messageType, msgBytes, err := conn.ReadMessage()
		if err != nil {
			h.logger.Debugf("ws read ended for session %s: %v", sessionID, err)
			return
		}

		// a finished turn frees the connection for the next start
		if active != nil && active.finished() {
			active = nil
		}

		switch messageType {
		case websocket.TextMessage:
			active = h.handleControl(ctx, w, sessionID, active, msgBytes)

		case websocket.BinaryMessage:
			if active == nil {
				h.sendError(w, "no turn in progress, send a start message first")
				continue
			}
			h.handleFrame(active, msgBytes)

		default:
			h.logger.Warnf("unknown ws message type %d for session %s", messageType, sessionID)
		}
	}
}

func (h *Handler) handleControl(ctx context.Context, w *wsWriter, sessionID string, active *streamState, msgBytes []byte) *streamState {
	var msg StartMessage
	if err := json.Unmarshal(msgBytes, &msg); err != nil {
		h.sendError(w, "malformed control message")
		return active
	}

	switch msg.Type {
	case MessageTypeStart:
		if active != nil {
			h.sendError(w, "turn already in progress")
			return active
		}
		return h.startTurn(ctx, w, sessionID, msg)

	case MessageTypeCancel:
		if active != nil {
			active.turn.Cancel()
			// the result goroutine delivers the failed outcome
		}
		return active

	default:
		h.sendError(w, "unknown control message type")
		return active
	}
}

func (h *Handler) startTurn(ctx context.Context, w *wsWriter, sessionID string, msg StartMessage) *streamState {
	format := types.DefaultAudioFormat()
	if msg.SampleRate > 0 {
		format.SampleRate = msg.SampleRate
	}
	if msg.Channels > 0 {
		format.Channels = msg.Channels
	}

	st := &streamState{
		turn:   h.turnService.OpenStream(ctx, sessionID, nil, format, format),
		queue:  audioring.New(frameQueueBytes),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	go h.pump(ctx, st)
	go h.deliverResult(w, sessionID, st)

	return st
}

// handleFrame parses one binary chunk and parks it in the ring. The
// ring absorbs bursts; an overrun evicts the oldest frame, which the
// assembler then reports as a gap rather than the socket blocking.
func (h *Handler) handleFrame(st *streamState, msgBytes []byte) {
	if len(msgBytes) < frameHeaderSize {
		return
	}

	frame := audioring.Frame{
		Seq:        binary.LittleEndian.Uint32(msgBytes),
		Final:      msgBytes[4]&flagFinal != 0,
		ReceivedAt: time.Now(),
		Data:       append([]byte(nil), msgBytes[frameHeaderSize:]...),
	}

	if err := st.queue.Enqueue(frame); err != nil {
		h.logger.Warnf("dropping audio frame seq=%d: %v", frame.Seq, err)
		return
	}

	select {
	case st.notify <- struct{}{}:
	default:
	}
}

// pump drains the ring into the assembler until the final frame has
// been forwarded or the turn finishes.
func (h *Handler) pump(ctx context.Context, st *streamState) {
	for {
		for {
			frame, ok := st.queue.Dequeue()
			if !ok {
				break
			}
			chunk := types.AudioChunk{Seq: frame.Seq, Data: frame.Data, Final: frame.Final}
			if err := st.turn.Push(ctx, chunk); err != nil {
				return
			}
			if frame.Final {
				st.turn.CloseSend()
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-st.done:
			return
		case <-st.notify:
		}
	}
}

// deliverResult waits for the pipeline and writes the outcome back:
// the result JSON, then reply audio in chunks, then the audio_end mark.
func (h *Handler) deliverResult(w *wsWriter, sessionID string, st *streamState) {
	defer st.finish()

	result := <-st.turn.Result()

	// audio goes over binary frames, not inside the JSON envelope
	audio := result.Audio
	result.Audio = nil

	audioBytes := 0
	if audio != nil {
		audioBytes = len(audio.Data)
	}

	if err := w.writeJSON(ResultMessage{
		Type:       MessageTypeResult,
		Result:     *result,
		AudioBytes: audioBytes,
	}); err != nil {
		h.logger.Errorf("writing result for session %s: %v", sessionID, err)
		return
	}

	if audio == nil {
		st.finish()
		return
	}
	for off := 0; off < len(audio.Data); off += replyChunkSize {
		end := off + replyChunkSize
		if end > len(audio.Data) {
			end = len(audio.Data)
		}
		if err := w.writeBinary(audio.Data[off:end]); err != nil {
			h.logger.Errorf("writing reply audio for session %s: %v", sessionID, err)
			return
		}
	}
	// free the connection before the client can react to audio_end
	st.finish()
	if err := w.writeJSON(ErrorMessage{Type: MessageTypeAudio}); err != nil {
		h.logger.Debugf("writing audio_end for session %s: %v", sessionID, err)
	}
}

func (h *Handler) sendError(w *wsWriter, message string) {
	if err := w.writeJSON(ErrorMessage{Type: MessageTypeError, Error: message}); err != nil {
		h.logger.Debugf("writing ws error: %v", err)
	}
}
