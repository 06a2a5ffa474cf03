package turn

import (
	"context"
	"strings"

	"github.com/tobenna/aria/internal/types"
	"github.com/tobenna/aria/pkg/Logger"
)

// Recorder persists the finished exchange. Best effort: a write
// failure surfaces as a warning on the turn, never as a turn failure.
// Conversation continuity matters more than durability of any single
// record.
type Recorder struct {
	repo   TurnRepository
	logger *Logger.Logger
}

func NewRecorder(repo TurnRepository, logger *Logger.Logger) *Recorder {
	return &Recorder{
		repo:   repo,
		logger: logger,
	}
}

// Record upserts the session and appends the turn. Both writes are
// attempted: a failed session touch must not lose a turn record that
// would have written fine.
func (r *Recorder) Record(ctx context.Context, t *types.Turn) stageResult {
	var failures []string

	if _, err := r.repo.UpsertSession(ctx, t.SessionID, t.UserID); err != nil {
		r.logger.Errorf("session upsert failed for %s: %v", t.SessionID, err)
		failures = append(failures, "session write failed")
	}

	if err := r.repo.SaveTurn(ctx, *t); err != nil {
		r.logger.Errorf("turn save failed for %s: %v", t.ID, err)
		failures = append(failures, "turn write failed")
	}

	if len(failures) > 0 {
		return stageDegraded(types.StageRecord, types.DiagPersistenceWarning, strings.Join(failures, "; "))
	}

	return stageSucceeded()
}
