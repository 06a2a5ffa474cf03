package websocket

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	turn "github.com/tobenna/aria/internal/domains/turn"
	"github.com/tobenna/aria/internal/types"
	"github.com/tobenna/aria/pkg/Logger"
	"github.com/tobenna/aria/pkg/assistant"
	"github.com/tobenna/aria/pkg/io/stt"
)

type wsFakeVAD struct{}

func (f *wsFakeVAD) DetectSegments(ctx context.Context, buffer types.AudioBuffer) ([]types.Segment, error) {
	return []types.Segment{{Start: 0, End: int64(len(buffer.Data))}}, nil
}
func (f *wsFakeVAD) Close() error { return nil }

type wsFakeSTT struct{}

func (f *wsFakeSTT) Transcribe(ctx context.Context, audio []byte, format types.AudioFormat) (*stt.Result, error) {
	return &stt.Result{Text: "hello", Confidence: 0.9}, nil
}
func (f *wsFakeSTT) Close() error { return nil }

type wsFakeProvider struct{}

func (f *wsFakeProvider) Generate(ctx context.Context, msgs []assistant.Message) (string, error) {
	return "hi there", nil
}
func (f *wsFakeProvider) Name() string  { return "fake" }
func (f *wsFakeProvider) Model() string { return "fake-1" }
func (f *wsFakeProvider) Close() error  { return nil }

// wsFakeTTS returns a large reply so delivery spans many binary frames.
type wsFakeTTS struct {
	audio []byte
}

func (f *wsFakeTTS) Synthesize(ctx context.Context, text string, format types.AudioFormat) ([]byte, error) {
	return f.audio, nil
}
func (f *wsFakeTTS) Close() error { return nil }

type wsMemRepo struct {
	mu    sync.Mutex
	turns map[string][]types.Turn
}

func (m *wsMemRepo) FetchRecentTurns(ctx context.Context, sessionID string, limit int) ([]types.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.turns[sessionID]
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]types.Turn, len(all))
	copy(out, all)
	return out, nil
}

func (m *wsMemRepo) SaveTurn(ctx context.Context, t types.Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns[t.SessionID] = append(m.turns[t.SessionID], t)
	return nil
}

func (m *wsMemRepo) UpsertSession(ctx context.Context, sessionID string, userID *uuid.UUID) (*types.Session, error) {
	return &types.Session{ID: sessionID, UserID: userID, IsActive: true}, nil
}

func newTestServer(t *testing.T, replyAudio []byte) *httptest.Server {
	t.Helper()
	logger := Logger.BuildLogger(true)

	cfg := turn.DefaultConfig()
	cfg.ChunkGapTimeout = 200 * time.Millisecond

	repo := &wsMemRepo{turns: make(map[string][]types.Turn)}
	orch := turn.NewOrchestrator(
		cfg,
		turn.NewSegmenter(&wsFakeVAD{}, logger),
		turn.NewTranscriber(&wsFakeSTT{}, cfg.Retry, logger),
		turn.NewContextBuilder(repo, cfg.HistoryWindow, logger),
		turn.NewResponder(&wsFakeProvider{}, time.Second, logger),
		turn.NewSynthesizer(&wsFakeTTS{audio: replyAudio}, logger),
		turn.NewRecorder(repo, logger),
		logger,
	)
	svc := turn.NewService(orch, repo, logger)

	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/ws/audio", NewHandler(svc, logger).HandleAudio)
	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/audio?session_id=" + sessionID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func audioFrame(seq uint32, final bool, data []byte) []byte {
	frame := make([]byte, frameHeaderSize+len(data))
	binary.LittleEndian.PutUint32(frame, seq)
	if final {
		frame[4] = flagFinal
	}
	copy(frame[frameHeaderSize:], data)
	return frame
}

// A client that pipelines further start messages while reply audio is
// streaming must not corrupt the frames already in flight: the result
// envelope, every audio chunk, and the trailing audio_end all arrive
// intact while the extra starts get their error replies.
func TestConcurrentStartDuringDelivery(t *testing.T) {
	replyAudio := bytes.Repeat([]byte{0xAB}, 64*replyChunkSize)
	srv := newTestServer(t, replyAudio)
	conn := dial(t, srv, "sess-ws-1")

	start := StartMessage{Type: MessageTypeStart, SampleRate: 16000, Channels: 1}
	if err := conn.WriteJSON(start); err != nil {
		t.Fatalf("writing start: %v", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, audioFrame(0, true, []byte("hello"))); err != nil {
		t.Fatalf("writing audio frame: %v", err)
	}

	// spam starts until delivery completes, racing the result writer
	spamDone := make(chan struct{})
	var spamWG sync.WaitGroup
	spamWG.Add(1)
	go func() {
		defer spamWG.Done()
		for {
			select {
			case <-spamDone:
				return
			default:
			}
			if err := conn.WriteJSON(start); err != nil {
				return
			}
		}
	}()

	conn.SetReadDeadline(time.Now().Add(10 * time.Second))

	var result *ResultMessage
	binaryBytes := 0
	sawAudioEnd := false
	for !sawAudioEnd {
		messageType, msgBytes, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("reading (result=%v, binary=%d): %v", result != nil, binaryBytes, err)
		}
		switch messageType {
		case websocket.BinaryMessage:
			binaryBytes += len(msgBytes)
		case websocket.TextMessage:
			var envelope struct {
				Type MessageType `json:"type"`
			}
			if err := json.Unmarshal(msgBytes, &envelope); err != nil {
				t.Fatalf("malformed text frame %q: %v", msgBytes, err)
			}
			switch envelope.Type {
			case MessageTypeResult:
				var rm ResultMessage
				if err := json.Unmarshal(msgBytes, &rm); err != nil {
					t.Fatalf("malformed result: %v", err)
				}
				if result == nil {
					result = &rm
				}
			case MessageTypeError:
				// expected replies to the pipelined starts
			case MessageTypeAudio:
				sawAudioEnd = true
			default:
				t.Fatalf("unexpected message type %q", envelope.Type)
			}
		}
	}
	close(spamDone)
	spamWG.Wait()

	if result == nil {
		t.Fatal("audio_end arrived before the result envelope")
	}
	if result.Result.Status != types.TurnCompleted {
		t.Errorf("expected completed turn, got %s", result.Result.Status)
	}
	if result.AudioBytes != len(replyAudio) {
		t.Errorf("result announced %d audio bytes, want %d", result.AudioBytes, len(replyAudio))
	}
	if binaryBytes != len(replyAudio) {
		t.Errorf("received %d audio bytes, want %d", binaryBytes, len(replyAudio))
	}
}

// A connection serves turns back to back: once the first turn's
// audio_end is on the wire, a new start is accepted.
func TestSecondTurnAfterDelivery(t *testing.T) {
	srv := newTestServer(t, []byte("pcm-reply"))
	conn := dial(t, srv, "sess-ws-2")
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))

	for i := 0; i < 2; i++ {
		if err := conn.WriteJSON(StartMessage{Type: MessageTypeStart}); err != nil {
			t.Fatalf("turn %d start: %v", i, err)
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, audioFrame(0, true, []byte("hello"))); err != nil {
			t.Fatalf("turn %d audio: %v", i, err)
		}

		var gotResult bool
		for {
			messageType, msgBytes, err := conn.ReadMessage()
			if err != nil {
				t.Fatalf("turn %d read: %v", i, err)
			}
			if messageType == websocket.BinaryMessage {
				continue
			}
			var envelope struct {
				Type  MessageType `json:"type"`
				Error string      `json:"error"`
			}
			if err := json.Unmarshal(msgBytes, &envelope); err != nil {
				t.Fatalf("turn %d malformed frame: %v", i, err)
			}
			if envelope.Type == MessageTypeError {
				t.Fatalf("turn %d rejected: %s", i, envelope.Error)
			}
			if envelope.Type == MessageTypeResult {
				gotResult = true
			}
			if envelope.Type == MessageTypeAudio {
				break
			}
		}
		if !gotResult {
			t.Fatalf("turn %d finished without a result", i)
		}
	}
}
