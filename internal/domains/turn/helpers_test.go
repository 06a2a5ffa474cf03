package turn

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/tobenna/aria/internal/types"
	"github.com/tobenna/aria/pkg/Logger"
	"github.com/tobenna/aria/pkg/assistant"
	"github.com/tobenna/aria/pkg/io/stt"
)

func testLogger() *Logger.Logger {
	return Logger.BuildLogger(true)
}

// fakeVAD returns canned segments or a canned error.
type fakeVAD struct {
	segments []types.Segment
	err      error
	calls    int
}

func (f *fakeVAD) DetectSegments(ctx context.Context, buffer types.AudioBuffer) ([]types.Segment, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.segments, nil
}

func (f *fakeVAD) Close() error { return nil }

// fakeSTT maps segment payloads to texts. failUntil makes the first n
// calls fail, to exercise retry.
type fakeSTT struct {
	mu        sync.Mutex
	results   map[string]*stt.Result
	err       error
	failUntil int
	calls     int
}

func (f *fakeSTT) Transcribe(ctx context.Context, audio []byte, format types.AudioFormat) (*stt.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failUntil {
		return nil, errors.New("stt temporarily unavailable")
	}
	if f.err != nil {
		return nil, f.err
	}
	if r, ok := f.results[string(audio)]; ok {
		return r, nil
	}
	return &stt.Result{Text: "hello", Confidence: 0.9}, nil
}

func (f *fakeSTT) Close() error { return nil }

// fakeProvider fails for the first failUntil calls, then answers.
type fakeProvider struct {
	mu        sync.Mutex
	reply     string
	failUntil int
	calls     int
	lastMsgs  []assistant.Message
}

func (f *fakeProvider) Generate(ctx context.Context, msgs []assistant.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastMsgs = msgs
	if f.calls <= f.failUntil {
		return "", errors.New("model unavailable")
	}
	return f.reply, nil
}

func (f *fakeProvider) Name() string  { return "fake" }
func (f *fakeProvider) Model() string { return "fake-1" }
func (f *fakeProvider) Close() error  { return nil }

// fakeTTS returns canned audio or an error.
type fakeTTS struct {
	audio []byte
	err   error
	calls int
}

func (f *fakeTTS) Synthesize(ctx context.Context, text string, format types.AudioFormat) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.audio, nil
}

func (f *fakeTTS) Close() error { return nil }

// memRepo is an in-memory TurnRepository with switchable failures.
type memRepo struct {
	mu       sync.Mutex
	turns    map[string][]types.Turn
	sessions map[string]*types.Session

	fetchErr   error
	saveErr    error
	sessionErr error
}

func newMemRepo() *memRepo {
	return &memRepo{
		turns:    make(map[string][]types.Turn),
		sessions: make(map[string]*types.Session),
	}
}

func (m *memRepo) FetchRecentTurns(ctx context.Context, sessionID string, limit int) ([]types.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	all := m.turns[sessionID]
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]types.Turn, len(all))
	copy(out, all)
	return out, nil
}

func (m *memRepo) SaveTurn(ctx context.Context, t types.Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.turns[t.SessionID] = append(m.turns[t.SessionID], t)
	return nil
}

func (m *memRepo) UpsertSession(ctx context.Context, sessionID string, userID *uuid.UUID) (*types.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessionErr != nil {
		return nil, m.sessionErr
	}
	s, ok := m.sessions[sessionID]
	if !ok {
		s = &types.Session{ID: sessionID, UserID: userID, IsActive: true}
		m.sessions[sessionID] = s
	}
	return s, nil
}
