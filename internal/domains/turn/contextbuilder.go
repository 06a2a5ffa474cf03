package turn

import (
	"context"

	"github.com/tobenna/aria/internal/types"
	"github.com/tobenna/aria/pkg/Logger"
)

// ContextBuilder folds recent session history with the new transcript
// into a bounded prompt context. A history fetch failure degrades to a
// fresh conversation; a database hiccup must not block a response.
type ContextBuilder struct {
	repo   TurnRepository
	window int
	logger *Logger.Logger
}

func NewContextBuilder(repo TurnRepository, window int, logger *Logger.Logger) *ContextBuilder {
	if window <= 0 {
		window = 5
	}
	return &ContextBuilder{
		repo:   repo,
		window: window,
		logger: logger,
	}
}

// Build assembles the conversation context: up to window prior
// exchanges oldest first, then the new transcript. Building twice for
// the same stored state yields an identical context.
func (cb *ContextBuilder) Build(ctx context.Context, sessionID string, transcript types.Transcript) (types.ConversationContext, stageResult) {
	convCtx := types.ConversationContext{
		SessionID: sessionID,
		History:   []types.Exchange{},
		Current:   transcript,
	}

	prior, err := cb.repo.FetchRecentTurns(ctx, sessionID, cb.window)
	if err != nil {
		cb.logger.Warnf("history fetch failed for session %s, continuing with empty history: %v", sessionID, err)
		return convCtx, stageDegraded(types.StageContext, types.DiagStageDegraded, "history unavailable, treated as fresh conversation")
	}

	for _, t := range prior {
		if t.Transcript == nil || t.Reply == nil {
			continue
		}
		convCtx.History = append(convCtx.History, types.Exchange{
			UserText:  t.Transcript.Text,
			ReplyText: t.Reply.Text,
		})
	}

	return convCtx, stageSucceeded()
}
