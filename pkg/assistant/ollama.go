package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/ollama/ollama/api"
	"github.com/presbrey/ollamafarm"
)

type ollamaProvider struct {
	farm  *ollamafarm.Farm
	model string
}

// NewOllama creates a Provider that load-balances across a farm of
// ollama instances. URLs that fail to register are skipped; the farm
// tracks which instances are offline.
func NewOllama(urls []string, model string) (Provider, error) {
	if model == "" {
		model = "llama3.1:8b-instruct"
	}

	farm := ollamafarm.New()
	registered := 0
	for _, u := range urls {
		if err := farm.RegisterURL(u, nil); err != nil {
			continue
		}
		registered++
	}
	if registered == 0 {
		return nil, fmt.Errorf("no ollama servers registered")
	}

	return &ollamaProvider{
		farm:  farm,
		model: model,
	}, nil
}

// Generate implements Provider.
func (o *ollamaProvider) Generate(ctx context.Context, msgs []Message) (string, error) {
	ollama := o.farm.First(&ollamafarm.Where{Offline: false})
	if ollama == nil {
		return "", fmt.Errorf("no online ollama server for model %v", o.model)
	}

	apiMsgs := make([]api.Message, 0, len(msgs))
	for _, msg := range msgs {
		apiMsgs = append(apiMsgs, api.Message{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	stream := false
	var sb strings.Builder
	err := ollama.Client().Chat(ctx, &api.ChatRequest{
		Model:    o.model,
		Messages: apiMsgs,
		Stream:   &stream,
	}, func(resp api.ChatResponse) error {
		sb.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat failed: %w", err)
	}

	return sb.String(), nil
}

func (o *ollamaProvider) Name() string { return "ollama" }

func (o *ollamaProvider) Model() string { return o.model }

func (o *ollamaProvider) Close() error { return nil }
