package vad

import (
	"context"

	"github.com/tobenna/aria/internal/types"
)

// Detector extracts speech-bearing segments from an audio buffer.
// Implementations call out to an external VAD model; callers own the
// degradation policy when the call fails.
type Detector interface {
	// DetectSegments returns speech segments ordered by start offset.
	DetectSegments(ctx context.Context, buffer types.AudioBuffer) ([]types.Segment, error)

	// Close releases any resources
	Close() error
}

// Config contains tuning for the VAD model.
type Config struct {
	SampleRate   int32   `json:"sampleRate"`   // Expected sample rate (e.g., 16000)
	Threshold    float32 `json:"threshold"`    // Voice detection threshold (0.0-1.0)
	MinSpeechMs  int     `json:"minSpeechMs"`  // Minimum speech duration in milliseconds
	MinSilenceMs int     `json:"minSilenceMs"` // Minimum silence duration in milliseconds
}

// DefaultConfig returns VAD tuning optimized for 16kHz speech.
func DefaultConfig() Config {
	return Config{
		SampleRate:   16000,
		Threshold:    0.3,
		MinSpeechMs:  100,
		MinSilenceMs: 200,
	}
}
