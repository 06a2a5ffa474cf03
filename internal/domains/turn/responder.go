package turn

import (
	"context"
	"time"

	"github.com/tobenna/aria/internal/types"
	"github.com/tobenna/aria/pkg/Logger"
	"github.com/tobenna/aria/pkg/assistant"
)

// FallbackReply is returned verbatim when the language model fails
// twice. Silence is a worse outcome than a generic reply.
const FallbackReply = "I'm sorry, I couldn't process your request."

// SystemPrompt frames every generation for spoken delivery.
const SystemPrompt = `You are a helpful voice assistant. Provide concise, clear responses suitable for speech. Be conversational and natural, keep responses under 2-3 sentences when possible, and remember context from the conversation.`

// Responder calls the language-model collaborator with the assembled
// context. One retry with the same input, then the canned fallback;
// this stage never aborts the turn.
type Responder struct {
	provider assistant.Provider
	timeout  time.Duration
	logger   *Logger.Logger
}

func NewResponder(provider assistant.Provider, timeout time.Duration, logger *Logger.Logger) *Responder {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Responder{
		provider: provider,
		timeout:  timeout,
		logger:   logger,
	}
}

// Respond generates the reply. Always returns a Reply; the stage
// result says whether the fallback was substituted.
func (r *Responder) Respond(ctx context.Context, convCtx types.ConversationContext) (*types.Reply, stageResult) {
	msgs := r.buildMessages(convCtx)

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, r.timeout)
		text, err := r.provider.Generate(callCtx, msgs)
		cancel()
		if err == nil && text != "" {
			return &types.Reply{
				Text:     text,
				Provider: r.provider.Name(),
				Model:    r.provider.Model(),
			}, stageSucceeded()
		}
		lastErr = err
		r.logger.Warnf("llm attempt %d failed for session %s: %v", attempt+1, convCtx.SessionID, err)

		if ctx.Err() != nil {
			break
		}
	}

	r.logger.Errorf("llm failed twice for session %s, substituting fallback reply: %v", convCtx.SessionID, lastErr)
	return &types.Reply{
		Text:     FallbackReply,
		Provider: r.provider.Name(),
		Model:    r.provider.Model(),
		Fallback: true,
	}, stageDegraded(types.StageRespond, types.DiagResponderFallbackUsed, "language model failed twice, canned reply substituted")
}

func (r *Responder) buildMessages(convCtx types.ConversationContext) []assistant.Message {
	msgs := make([]assistant.Message, 0, 2*len(convCtx.History)+2)
	msgs = append(msgs, assistant.Message{Role: assistant.SYSTEM, Content: SystemPrompt})
	for _, ex := range convCtx.History {
		msgs = append(msgs, assistant.Message{Role: assistant.USER, Content: ex.UserText})
		msgs = append(msgs, assistant.Message{Role: assistant.ASSISTANT, Content: ex.ReplyText})
	}
	msgs = append(msgs, assistant.Message{Role: assistant.USER, Content: convCtx.Current.Text})
	return msgs
}
