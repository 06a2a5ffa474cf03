package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

type geminiProvider struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Provider backed by the Gemini API.
func NewGemini(ctx context.Context, apiKey, model string) (Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is not configured")
	}
	if model == "" {
		model = "gemini-1.5-flash-latest"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini API client: %w", err)
	}

	return &geminiProvider{
		client: client,
		model:  model,
	}, nil
}

// Generate implements Provider. Gemini has no system role in chat
// history, so system messages fold into the model's system instruction.
func (g *geminiProvider) Generate(ctx context.Context, msgs []Message) (string, error) {
	if len(msgs) == 0 {
		return "", fmt.Errorf("no messages to send")
	}

	model := g.client.GenerativeModel(g.model)

	var sysParts []string
	var chatMsgs []Message
	for _, msg := range msgs {
		if msg.Role == SYSTEM {
			sysParts = append(sysParts, msg.Content)
			continue
		}
		chatMsgs = append(chatMsgs, msg)
	}
	if len(sysParts) > 0 {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(strings.Join(sysParts, "\n"))},
		}
	}

	if len(chatMsgs) == 0 {
		return "", fmt.Errorf("no user messages to send")
	}

	cs := model.StartChat()
	for _, msg := range chatMsgs[:len(chatMsgs)-1] {
		role := "user"
		if msg.Role == ASSISTANT {
			role = "model"
		}
		cs.History = append(cs.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(msg.Content)},
		})
	}

	resp, err := cs.SendMessage(ctx, genai.Text(chatMsgs[len(chatMsgs)-1].Content))
	if err != nil {
		return "", fmt.Errorf("gemini generate failed: %w", err)
	}

	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
	}

	if sb.Len() == 0 {
		return "", fmt.Errorf("gemini returned no text candidates")
	}

	return sb.String(), nil
}

func (g *geminiProvider) Name() string { return "gemini" }

func (g *geminiProvider) Model() string { return g.model }

func (g *geminiProvider) Close() error { return g.client.Close() }
