package turn

import (
	"context"
	"testing"
	"time"

	"github.com/tobenna/aria/internal/types"
	"github.com/tobenna/aria/pkg/assistant"
)

func TestRespondFirstAttemptSucceeds(t *testing.T) {
	provider := &fakeProvider{reply: "sure thing"}
	r := NewResponder(provider, time.Second, testLogger())

	reply, res := r.Respond(context.Background(), types.ConversationContext{
		SessionID: "s1",
		Current:   types.Transcript{Text: "hello"},
	})
	if res.outcome() != types.StageOK {
		t.Fatalf("expected ok, got %s", res.outcome())
	}
	if reply.Text != "sure thing" || reply.Fallback {
		t.Errorf("unexpected reply: %+v", reply)
	}
	if provider.calls != 1 {
		t.Errorf("expected a single call, got %d", provider.calls)
	}
}

func TestRespondRetriesOnceThenSucceeds(t *testing.T) {
	provider := &fakeProvider{reply: "second time lucky", failUntil: 1}
	r := NewResponder(provider, time.Second, testLogger())

	reply, res := r.Respond(context.Background(), types.ConversationContext{
		SessionID: "s1",
		Current:   types.Transcript{Text: "hello"},
	})
	if res.outcome() != types.StageOK {
		t.Fatalf("retry success should not degrade, got %s", res.outcome())
	}
	if reply.Text != "second time lucky" {
		t.Errorf("got %q", reply.Text)
	}
	if provider.calls != 2 {
		t.Errorf("expected 2 calls, got %d", provider.calls)
	}
}

func TestRespondFallsBackAfterTwoFailures(t *testing.T) {
	provider := &fakeProvider{reply: "never seen", failUntil: 2}
	r := NewResponder(provider, time.Second, testLogger())

	reply, res := r.Respond(context.Background(), types.ConversationContext{
		SessionID: "s1",
		Current:   types.Transcript{Text: "hello"},
	})
	if res.fatal() {
		t.Fatal("responder must never abort the turn")
	}
	if res.outcome() != types.StageDegraded {
		t.Errorf("expected degraded, got %s", res.outcome())
	}
	if res.diag == nil || res.diag.Code != types.DiagResponderFallbackUsed {
		t.Errorf("expected fallback diagnostic, got %+v", res.diag)
	}
	if reply.Text != FallbackReply {
		t.Errorf("expected canned fallback, got %q", reply.Text)
	}
	if !reply.Fallback {
		t.Error("fallback reply must be marked as such")
	}
	if provider.calls != 2 {
		t.Errorf("expected exactly 2 attempts, got %d", provider.calls)
	}
}

func TestRespondPromptLayout(t *testing.T) {
	provider := &fakeProvider{reply: "ok"}
	r := NewResponder(provider, time.Second, testLogger())

	r.Respond(context.Background(), types.ConversationContext{
		SessionID: "s1",
		History: []types.Exchange{
			{UserText: "one", ReplyText: "uno"},
			{UserText: "two", ReplyText: "dos"},
		},
		Current: types.Transcript{Text: "three"},
	})

	msgs := provider.lastMsgs
	if len(msgs) != 6 {
		t.Fatalf("expected system + 2 exchanges + current = 6 messages, got %d", len(msgs))
	}
	if msgs[0].Role != assistant.SYSTEM {
		t.Errorf("first message should be the system prompt, got %s", msgs[0].Role)
	}
	if msgs[1].Content != "one" || msgs[2].Content != "uno" {
		t.Errorf("history out of order: %+v", msgs[1:3])
	}
	if msgs[5].Role != assistant.USER || msgs[5].Content != "three" {
		t.Errorf("current transcript should be last: %+v", msgs[5])
	}
}
