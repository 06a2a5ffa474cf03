package turn

import (
	"context"
	"fmt"
	"time"

	"github.com/tobenna/aria/internal/types"
	"github.com/tobenna/aria/pkg/Logger"
)

// Assembler reassembles a stream of sequence-numbered chunks into one
// utterance buffer. One assembler is bound to exactly one in-flight
// turn; it is never shared.
type Assembler struct {
	gapTimeout time.Duration
	logger     *Logger.Logger
}

func NewAssembler(gapTimeout time.Duration, logger *Logger.Logger) *Assembler {
	if gapTimeout <= 0 {
		gapTimeout = 5 * time.Second
	}
	return &Assembler{
		gapTimeout: gapTimeout,
		logger:     logger,
	}
}

// Assemble consumes chunks until the final-marked sequence number and
// every sequence before it has arrived, then concatenates the payloads
// in sequence order. Arrival order is irrelevant; duplicates are
// dropped. A gap that persists past the configured timeout, or the
// channel closing early, fails the turn.
func (a *Assembler) Assemble(ctx context.Context, chunks <-chan types.AudioChunk, format types.AudioFormat) (types.AudioBuffer, error) {
	received := make(map[uint32][]byte)
	finalSeq := int64(-1)

	timer := time.NewTimer(a.gapTimeout)
	defer timer.Stop()

	for finalSeq < 0 || !a.complete(received, finalSeq) {
		select {
		case <-ctx.Done():
			return types.AudioBuffer{}, fmt.Errorf("%w: %v", ErrIncompleteStream, ctx.Err())

		case chunk, ok := <-chunks:
			if !ok {
				if finalSeq >= 0 && a.complete(received, finalSeq) {
					break
				}
				return types.AudioBuffer{}, fmt.Errorf("%w: stream closed before final chunk", ErrIncompleteStream)
			}
			if _, dup := received[chunk.Seq]; dup {
				a.logger.Debugf("dropping duplicate chunk seq=%d", chunk.Seq)
				continue
			}
			received[chunk.Seq] = chunk.Data
			if chunk.Final {
				finalSeq = int64(chunk.Seq)
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(a.gapTimeout)

		case <-timer.C:
			missing := a.firstMissing(received, finalSeq)
			return types.AudioBuffer{}, fmt.Errorf("%w: no chunk for %s within %s", ErrIncompleteStream, missing, a.gapTimeout)
		}
	}

	total := 0
	for seq := uint32(0); int64(seq) <= finalSeq; seq++ {
		total += len(received[seq])
	}

	data := make([]byte, 0, total)
	for seq := uint32(0); int64(seq) <= finalSeq; seq++ {
		data = append(data, received[seq]...)
	}

	return types.AudioBuffer{Data: data, Format: format}, nil
}

func (a *Assembler) complete(received map[uint32][]byte, finalSeq int64) bool {
	for seq := uint32(0); int64(seq) <= finalSeq; seq++ {
		if _, ok := received[seq]; !ok {
			return false
		}
	}
	return true
}

func (a *Assembler) firstMissing(received map[uint32][]byte, finalSeq int64) string {
	if finalSeq < 0 {
		return "final marker"
	}
	for seq := uint32(0); int64(seq) <= finalSeq; seq++ {
		if _, ok := received[seq]; !ok {
			return fmt.Sprintf("seq=%d", seq)
		}
	}
	return "final marker"
}
