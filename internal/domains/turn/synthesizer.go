package turn

import (
	"context"

	"github.com/tobenna/aria/internal/types"
	"github.com/tobenna/aria/pkg/Logger"
	"github.com/tobenna/aria/pkg/io/tts"
)

// Synthesizer renders the reply to audio. No retry: TTS failures are
// typically deterministic for a given text and voice inside one
// request, so a retry only adds latency. Failure marks the turn
// text-only instead of aborting it.
type Synthesizer struct {
	client tts.Synthesizer
	logger *Logger.Logger
}

func NewSynthesizer(client tts.Synthesizer, logger *Logger.Logger) *Synthesizer {
	return &Synthesizer{
		client: client,
		logger: logger,
	}
}

// Synthesize returns the rendered audio, or nil with a degraded result
// when synthesis fails.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, format types.AudioFormat) (*types.SynthesizedAudio, stageResult) {
	audio, err := s.client.Synthesize(ctx, text, format)
	if err != nil {
		s.logger.Warnf("tts failed, delivering text-only turn: %v", err)
		return nil, stageDegraded(types.StageSynthesize, types.DiagStageDegraded, "speech synthesis unavailable, text-only reply")
	}

	return &types.SynthesizedAudio{
		Data:   audio,
		Format: format,
	}, stageSucceeded()
}
