package types

// AudioFormat describes the encoding of an audio payload.
type AudioFormat struct {
	Codec      string `json:"codec" example:"pcm_s16le"`
	SampleRate int32  `json:"sampleRate" example:"16000"`
	Channels   int16  `json:"channels" example:"1"`
}

// DefaultAudioFormat is the pipeline's working format: 16kHz mono PCM.
func DefaultAudioFormat() AudioFormat {
	return AudioFormat{
		Codec:      "pcm_s16le",
		SampleRate: 16000,
		Channels:   1,
	}
}

// AudioBuffer holds one complete utterance. Immutable once captured;
// every stage reads it, none mutates it.
type AudioBuffer struct {
	Data   []byte      `json:"-"`
	Format AudioFormat `json:"format"`
}

// DurationMs estimates playback length from the declared format.
func (b AudioBuffer) DurationMs() int64 {
	bytesPerSec := int64(b.Format.SampleRate) * int64(b.Format.Channels) * 2
	if bytesPerSec == 0 {
		return 0
	}
	return int64(len(b.Data)) * 1000 / bytesPerSec
}

// AudioChunk is one frame of a streamed utterance. Sequence numbers
// are assigned by the client and start at 0.
type AudioChunk struct {
	Seq   uint32 `json:"seq"`
	Data  []byte `json:"data"`
	Final bool   `json:"final"`
}

// Segment is a speech-bearing byte range of an AudioBuffer. It never
// outlives the buffer it indexes into.
type Segment struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Slice returns the segment's bytes, clamped to the buffer bounds.
func (b AudioBuffer) Slice(s Segment) []byte {
	start, end := s.Start, s.End
	if start < 0 {
		start = 0
	}
	if end > int64(len(b.Data)) {
		end = int64(len(b.Data))
	}
	if start >= end {
		return nil
	}
	return b.Data[start:end]
}
