package turn

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/tobenna/aria/internal/types"
)

func storedTurn(sessionID, userText, replyText string) types.Turn {
	return types.Turn{
		SessionID:  sessionID,
		Transcript: &types.Transcript{Text: userText},
		Reply:      &types.Reply{Text: replyText},
		Status:     types.TurnCompleted,
	}
}

func TestBuildBoundsHistoryWindow(t *testing.T) {
	repo := newMemRepo()
	for i := 0; i < 8; i++ {
		repo.turns["s1"] = append(repo.turns["s1"], storedTurn("s1", fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i)))
	}
	cb := NewContextBuilder(repo, 5, testLogger())

	convCtx, res := cb.Build(context.Background(), "s1", types.Transcript{Text: "now"})
	if res.outcome() != types.StageOK {
		t.Fatalf("expected ok, got %s", res.outcome())
	}
	if len(convCtx.History) != 5 {
		t.Fatalf("expected window of 5 exchanges, got %d", len(convCtx.History))
	}
	// oldest of the kept window first
	if convCtx.History[0].UserText != "q3" || convCtx.History[4].UserText != "q7" {
		t.Errorf("unexpected window contents: %+v", convCtx.History)
	}
	if convCtx.Current.Text != "now" {
		t.Errorf("current transcript lost: %+v", convCtx.Current)
	}
}

func TestBuildSkipsTurnsWithoutExchange(t *testing.T) {
	repo := newMemRepo()
	repo.turns["s1"] = []types.Turn{
		storedTurn("s1", "q0", "a0"),
		{SessionID: "s1", Status: types.TurnFailed}, // no transcript, no reply
		storedTurn("s1", "q1", "a1"),
	}
	cb := NewContextBuilder(repo, 5, testLogger())

	convCtx, _ := cb.Build(context.Background(), "s1", types.Transcript{Text: "now"})
	want := []types.Exchange{
		{UserText: "q0", ReplyText: "a0"},
		{UserText: "q1", ReplyText: "a1"},
	}
	if !reflect.DeepEqual(convCtx.History, want) {
		t.Errorf("expected %v, got %v", want, convCtx.History)
	}
}

func TestBuildDegradesOnFetchFailure(t *testing.T) {
	repo := newMemRepo()
	repo.fetchErr = errors.New("connection reset")
	cb := NewContextBuilder(repo, 5, testLogger())

	convCtx, res := cb.Build(context.Background(), "s1", types.Transcript{Text: "now"})
	if res.fatal() {
		t.Fatal("history failure must degrade, not abort")
	}
	if res.outcome() != types.StageDegraded {
		t.Errorf("expected degraded, got %s", res.outcome())
	}
	if len(convCtx.History) != 0 {
		t.Errorf("expected empty history, got %v", convCtx.History)
	}
	if convCtx.Current.Text != "now" {
		t.Errorf("current transcript lost on degrade: %+v", convCtx.Current)
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	repo := newMemRepo()
	repo.turns["s1"] = []types.Turn{storedTurn("s1", "q0", "a0")}
	cb := NewContextBuilder(repo, 5, testLogger())

	first, _ := cb.Build(context.Background(), "s1", types.Transcript{Text: "now"})
	second, _ := cb.Build(context.Background(), "s1", types.Transcript{Text: "now"})
	if !reflect.DeepEqual(first, second) {
		t.Errorf("same stored state must build the same context:\n%+v\n%+v", first, second)
	}
}
