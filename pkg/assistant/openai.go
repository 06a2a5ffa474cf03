package assistant

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type openAIProvider struct {
	client openai.Client
	model  string
}

// NewOpenAI creates a Provider backed by the OpenAI chat completions API.
func NewOpenAI(apiKey, model string) Provider {
	if model == "" {
		model = openai.ChatModelGPT3_5Turbo
	}
	return &openAIProvider{
		client: openai.NewClient(
			option.WithAPIKey(apiKey),
		),
		model: model,
	}
}

// Generate implements Provider.
func (o *openAIProvider) Generate(ctx context.Context, msgs []Message) (string, error) {
	convertedMsgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, msg := range msgs {
		convertedMsgs = append(convertedMsgs, convertToOpenaiMsg(msg))
	}
	chatCompletion, err := o.client.Chat.Completions.New(
		ctx,
		openai.ChatCompletionNewParams{
			Messages: convertedMsgs,
			Model:    o.model,
		},
	)
	if err != nil {
		return "", err
	}
	if len(chatCompletion.Choices) == 0 {
		return "", errors.New("completion returned no choices")
	}
	return chatCompletion.Choices[0].Message.Content, nil
}

func convertToOpenaiMsg(msg Message) openai.ChatCompletionMessageParamUnion {
	switch msg.Role {
	case ASSISTANT:
		return openai.AssistantMessage(msg.Content)
	case USER:
		return openai.UserMessage(msg.Content)
	case SYSTEM:
		return openai.SystemMessage(msg.Content)
	}
	return openai.UserMessage(msg.Content)
}

func (o *openAIProvider) Name() string { return "openai" }

func (o *openAIProvider) Model() string { return o.model }

func (o *openAIProvider) Close() error { return nil }
