package turn

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tobenna/aria/internal/types"
)

func TestTurnEntityRoundTrip(t *testing.T) {
	userID := uuid.New()
	src := types.Turn{
		ID:        uuid.New(),
		SessionID: "s1",
		UserID:    &userID,
		Transcript: &types.Transcript{
			Text:       "turn on the lights",
			Confidence: 0.92,
		},
		Reply: &types.Reply{
			Text:     "done",
			Provider: "openai",
			Model:    "gpt-3.5-turbo",
		},
		InputDurationMs: 1200,
		ReplyAudioBytes: 4096,
		Stages: []types.StageRecording{
			{Stage: types.StageSegment, Outcome: types.StageOK},
		},
		Diagnostics: []types.Diagnostic{
			{Code: types.DiagStageDegraded, Stage: types.StageSynthesize, Detail: "tts slow"},
		},
		Status:    types.TurnCompleted,
		StartedAt: time.Now().Add(-2 * time.Second),
		LatencyMs: 1800,
	}

	var entity TurnEntity
	if err := entity.FromDomain(src); err != nil {
		t.Fatalf("FromDomain failed: %v", err)
	}

	got := entity.ToDomain()
	if got.Transcript == nil || got.Transcript.Text != src.Transcript.Text {
		t.Errorf("transcript lost: %+v", got.Transcript)
	}
	if got.Reply == nil || got.Reply.Provider != "openai" {
		t.Errorf("reply lost: %+v", got.Reply)
	}
	if len(got.Stages) != 1 || got.Stages[0].Stage != types.StageSegment {
		t.Errorf("stage trail lost: %+v", got.Stages)
	}
	if len(got.Diagnostics) != 1 || got.Diagnostics[0].Code != types.DiagStageDegraded {
		t.Errorf("diagnostics lost: %+v", got.Diagnostics)
	}
	if got.Status != types.TurnCompleted {
		t.Errorf("status lost: %s", got.Status)
	}
}

func TestTurnEntityFailedTurnHasNoExchange(t *testing.T) {
	src := types.Turn{
		ID:          uuid.New(),
		SessionID:   "s1",
		Status:      types.TurnFailed,
		FailureCode: types.ErrCodeIncompleteStream,
	}

	var entity TurnEntity
	if err := entity.FromDomain(src); err != nil {
		t.Fatalf("FromDomain failed: %v", err)
	}

	got := entity.ToDomain()
	if got.Transcript != nil || got.Reply != nil {
		t.Errorf("failed turn should round-trip without transcript or reply: %+v", got)
	}
	if got.FailureCode != types.ErrCodeIncompleteStream {
		t.Errorf("failure code lost: %s", got.FailureCode)
	}
}
