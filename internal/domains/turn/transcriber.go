package turn

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/tobenna/aria/internal/types"
	"github.com/tobenna/aria/pkg/Logger"
	"github.com/tobenna/aria/pkg/io/stt"
)

// RetryConfig bounds per-segment STT retries.
type RetryConfig struct {
	MaxRetries  int           // retries after the first attempt
	BackoffBase time.Duration // doubles per attempt
	BackoffCap  time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:  2,
		BackoffBase: 200 * time.Millisecond,
		BackoffCap:  2 * time.Second,
	}
}

// Transcriber runs each speech segment through the STT collaborator
// and folds the results into one Transcript. A single segment failing
// after its retries contributes an empty string so the rest of the
// utterance survives; all segments empty is fatal.
type Transcriber struct {
	client stt.Transcriber
	retry  RetryConfig
	logger *Logger.Logger
}

func NewTranscriber(client stt.Transcriber, retry RetryConfig, logger *Logger.Logger) *Transcriber {
	return &Transcriber{
		client: client,
		retry:  retry,
		logger: logger,
	}
}

// Transcribe produces one Transcript from the ordered segments.
// Segment texts join with a single space; confidence is the
// duration-weighted average, with segments that failed after retries
// weighing in at zero. Silent segments carry no weight.
func (t *Transcriber) Transcribe(ctx context.Context, buffer types.AudioBuffer, segments []types.Segment) (*types.Transcript, stageResult) {
	texts := make([]string, 0, len(segments))
	var words []types.WordTiming
	var weightedConf float64
	var totalWeight float64
	degradedSegments := 0

	for i, seg := range segments {
		result, err := t.transcribeSegment(ctx, buffer, seg)
		if err != nil {
			if ctx.Err() != nil {
				return nil, stageFatal(fmt.Errorf("%w: %v", ErrTranscriptionFailed, ctx.Err()))
			}
			t.logger.Warnf("segment %d transcription exhausted retries, contributing empty text: %v", i, err)
			degradedSegments++
			// the failed span still weighs into the confidence at zero
			totalWeight += float64(seg.End - seg.Start)
			continue
		}

		text := strings.TrimSpace(result.Text)
		if text == "" {
			continue
		}

		weight := float64(seg.End - seg.Start)
		texts = append(texts, text)
		weightedConf += result.Confidence * weight
		totalWeight += weight
		words = append(words, result.Words...)
	}

	if len(texts) == 0 {
		return nil, stageFatal(ErrTranscriptionFailed)
	}

	confidence := 0.0
	if totalWeight > 0 {
		confidence = weightedConf / totalWeight
	}

	transcript := &types.Transcript{
		Text:       strings.Join(texts, " "),
		Confidence: confidence,
		Words:      words,
	}

	if degradedSegments > 0 {
		detail := fmt.Sprintf("%d of %d segments dropped after retries", degradedSegments, len(segments))
		return transcript, stageDegraded(types.StageTranscribe, types.DiagStageDegraded, detail)
	}

	return transcript, stageSucceeded()
}

// transcribeSegment retries with capped exponential backoff plus jitter.
func (t *Transcriber) transcribeSegment(ctx context.Context, buffer types.AudioBuffer, seg types.Segment) (*stt.Result, error) {
	audio := buffer.Slice(seg)
	if len(audio) == 0 {
		return &stt.Result{}, nil
	}

	var lastErr error
	for attempt := 0; attempt <= t.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepWithContext(ctx, t.backoff(attempt)); err != nil {
				return nil, err
			}
		}

		result, err := t.client.Transcribe(ctx, audio, buffer.Format)
		if err == nil {
			return result, nil
		}
		lastErr = err
		t.logger.Debugf("stt attempt %d failed: %v", attempt+1, err)
	}

	return nil, lastErr
}

func (t *Transcriber) backoff(attempt int) time.Duration {
	backoff := t.retry.BackoffBase << (attempt - 1)
	if backoff > t.retry.BackoffCap {
		backoff = t.retry.BackoffCap
	}
	// up to 25% jitter so retries against a struggling service spread out
	jitter := time.Duration(rand.Int63n(int64(backoff)/4 + 1))
	return backoff + jitter
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
