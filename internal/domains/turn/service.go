package turn

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/tobenna/aria/internal/types"
	"github.com/tobenna/aria/pkg/Logger"
)

// Service is the boundary handlers talk to. Everything underneath
// returns structured results; errors here are transport-level only.
type Service interface {
	ProcessVoiceTurn(ctx context.Context, req Request) *types.TurnResult
	OpenStream(ctx context.Context, sessionID string, userID *uuid.UUID, inFormat, outFormat types.AudioFormat) *StreamTurn
	GetSessionTurns(ctx context.Context, sessionID string, limit int) ([]types.Turn, error)
}

type service struct {
	orch   *Orchestrator
	repo   TurnRepository
	logger *Logger.Logger
}

func NewService(orch *Orchestrator, repo TurnRepository, logger *Logger.Logger) Service {
	return &service{orch: orch, repo: repo, logger: logger}
}

func (s *service) ProcessVoiceTurn(ctx context.Context, req Request) *types.TurnResult {
	return s.orch.ProcessTurn(ctx, req)
}

func (s *service) GetSessionTurns(ctx context.Context, sessionID string, limit int) ([]types.Turn, error) {
	return s.repo.FetchRecentTurns(ctx, sessionID, limit)
}

// StreamTurn is a handle onto one in-flight chunked turn. The caller
// pushes chunks as they arrive, closes the send side after the final
// chunk, and reads the result exactly once. Cancel abandons the turn;
// stages already started run to completion, nothing further starts.
type StreamTurn struct {
	chunks    chan types.AudioChunk
	cancel    context.CancelFunc
	result    chan *types.TurnResult
	closeOnce sync.Once
}

func (s *service) OpenStream(ctx context.Context, sessionID string, userID *uuid.UUID, inFormat, outFormat types.AudioFormat) *StreamTurn {
	sctx, cancel := context.WithCancel(ctx)
	st := &StreamTurn{
		chunks: make(chan types.AudioChunk, 64),
		cancel: cancel,
		result: make(chan *types.TurnResult, 1),
	}
	go func() {
		defer cancel()
		st.result <- s.orch.ProcessTurn(sctx, Request{
			SessionID:    sessionID,
			UserID:       userID,
			Chunks:       st.chunks,
			InputFormat:  inFormat,
			OutputFormat: outFormat,
		})
	}()
	return st
}

// Push hands one chunk to the assembler. It blocks if the assembler is
// behind and fails fast once the turn is cancelled or finished.
func (st *StreamTurn) Push(ctx context.Context, chunk types.AudioChunk) error {
	select {
	case st.chunks <- chunk:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CloseSend signals that no more chunks are coming. Safe to call more
// than once.
func (st *StreamTurn) CloseSend() {
	st.closeOnce.Do(func() { close(st.chunks) })
}

// Cancel abandons the turn. The result channel still yields a failed
// TurnResult.
func (st *StreamTurn) Cancel() {
	st.cancel()
	st.CloseSend()
}

// Result yields the turn outcome once the pipeline finishes.
func (st *StreamTurn) Result() <-chan *types.TurnResult {
	return st.result
}
