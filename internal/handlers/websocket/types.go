package websocket

import "github.com/tobenna/aria/internal/types"

// Control message types exchanged as JSON text frames. Audio chunks
// travel as binary frames: seq(4 LE) + flags(1) + PCM payload.
type MessageType string

const (
	MessageTypeStart  MessageType = "start"
	MessageTypeCancel MessageType = "cancel"
	MessageTypeResult MessageType = "result"
	MessageTypeError  MessageType = "error"
	MessageTypeAudio  MessageType = "audio_end"
)

// flag bits on the binary frame header
const flagFinal = 0x01

// binary frame header: seq(4) + flags(1)
const frameHeaderSize = 5

// StartMessage opens one turn on the connection.
type StartMessage struct {
	Type       MessageType `json:"type"`
	SampleRate int32       `json:"sampleRate,omitempty"`
	Channels   int16       `json:"channels,omitempty"`
}

// ResultMessage carries the turn outcome; reply audio follows as
// binary frames, terminated by an audio_end control message.
type ResultMessage struct {
	Type       MessageType      `json:"type"`
	Result     types.TurnResult `json:"result"`
	AudioBytes int              `json:"audioBytes"`
}

// ErrorMessage reports a protocol-level problem.
type ErrorMessage struct {
	Type  MessageType `json:"type"`
	Error string      `json:"error"`
}
