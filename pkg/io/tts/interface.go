package tts

import (
	"context"

	"github.com/tobenna/aria/internal/types"
)

// Synthesizer renders reply text to audio. Failures are terminal for a
// given text/voice within a request; callers do not retry.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, format types.AudioFormat) ([]byte, error)

	// Close releases any resources
	Close() error
}
