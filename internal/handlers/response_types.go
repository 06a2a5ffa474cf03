package handlers

import (
	"github.com/tobenna/aria/internal/domains/user"
	"github.com/tobenna/aria/internal/types"
)

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type RegisterResponse struct {
	Message string            `json:"message"`
	User    user.UserResponse `json:"user"`
}

type LoginResponse struct {
	Message string            `json:"message"`
	User    user.UserResponse `json:"user"`
	Tokens  user.AuthTokens   `json:"tokens"`
}

// SessionTurnsResponse lists a session's stored turns oldest first.
type SessionTurnsResponse struct {
	SessionID string       `json:"sessionId"`
	Turns     []types.Turn `json:"turns"`
}
