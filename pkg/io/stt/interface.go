package stt

import (
	"context"

	"github.com/tobenna/aria/internal/types"
)

// Result is one segment's transcription.
type Result struct {
	Text       string
	Confidence float64
	Words      []types.WordTiming
}

// Transcriber converts one speech segment to text. Retry and
// degradation policy belongs to the caller, not the client.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, format types.AudioFormat) (*Result, error)

	// Close releases any resources
	Close() error
}
