package assistant

import (
	"context"
)

// Role of a chat message.
type Role string

const (
	SYSTEM    Role = "system"
	USER      Role = "user"
	ASSISTANT Role = "assistant"
)

// Message is one entry of the prompt sent to a provider.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Provider generates a reply from an ordered prompt. Implementations
// wrap one model backend; timeout and fallback policy live with the
// caller.
type Provider interface {
	Generate(ctx context.Context, msgs []Message) (string, error)

	// Name identifies the backend, e.g. "openai"
	Name() string

	// Model is the configured model identifier
	Model() string

	Close() error
}
