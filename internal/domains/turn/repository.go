package turn

import (
	"context"

	"github.com/google/uuid"
	"github.com/tobenna/aria/internal/types"
)

// TurnRepository is the narrow persistence contract the pipeline
// depends on. Turns are append-only; session writes are serialized per
// session with last-write-wins on last_activity.
type TurnRepository interface {
	// FetchRecentTurns returns up to limit most recent turns for the
	// session, ordered oldest first.
	FetchRecentTurns(ctx context.Context, sessionID string, limit int) ([]types.Turn, error)

	// SaveTurn appends one completed (or terminally failed) turn.
	SaveTurn(ctx context.Context, t types.Turn) error

	// UpsertSession creates the session on first sight, otherwise bumps
	// last_activity. The returned session reflects the stored state.
	UpsertSession(ctx context.Context, sessionID string, userID *uuid.UUID) (*types.Session, error)
}
