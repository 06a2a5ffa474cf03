package types

import (
	"time"

	"github.com/google/uuid"
)

// WordTiming carries optional per-word offsets from the STT engine.
type WordTiming struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Transcript is the ordered text of one utterance. Confidence is in [0,1].
type Transcript struct {
	Text       string       `json:"text"`
	Confidence float64      `json:"confidence"`
	Words      []WordTiming `json:"words,omitempty"`
}

// Exchange is one prior (user, assistant) pair used for context.
type Exchange struct {
	UserText  string `json:"userText"`
	ReplyText string `json:"replyText"`
}

// ConversationContext is rebuilt fresh per turn from stored history;
// it is never persisted as a unit.
type ConversationContext struct {
	SessionID string     `json:"sessionId"`
	History   []Exchange `json:"history"`
	Current   Transcript `json:"current"`
}

// Reply is the generated answer plus the model that produced it.
type Reply struct {
	Text     string `json:"text"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Fallback bool   `json:"fallback,omitempty"`
}

// SynthesizedAudio is the rendered reply, absent when synthesis was
// skipped or failed.
type SynthesizedAudio struct {
	Data   []byte      `json:"data"`
	Format AudioFormat `json:"format"`
}

// TurnStatus is the caller-visible outcome of a turn.
type TurnStatus string

const (
	TurnCompleted          TurnStatus = "completed"
	TurnPartiallyCompleted TurnStatus = "partially_completed"
	TurnFailed             TurnStatus = "failed"
)

// Stage names, in pipeline order.
type Stage string

const (
	StageAssemble   Stage = "assemble"
	StageSegment    Stage = "segment"
	StageTranscribe Stage = "transcribe"
	StageContext    Stage = "context"
	StageRespond    Stage = "respond"
	StageSynthesize Stage = "synthesize"
	StageRecord     Stage = "record"
)

// StageOutcome is the per-stage status stored on a Turn.
type StageOutcome string

const (
	StageOK       StageOutcome = "ok"
	StageDegraded StageOutcome = "degraded"
	StageFailed   StageOutcome = "failed"
	StageSkipped  StageOutcome = "skipped"
)

// StageRecording captures entry/exit timestamps for latency accounting.
type StageRecording struct {
	Stage     Stage        `json:"stage"`
	Outcome   StageOutcome `json:"outcome"`
	EnteredAt time.Time    `json:"enteredAt"`
	ExitedAt  time.Time    `json:"exitedAt"`
	Detail    string       `json:"detail,omitempty"`
}

// Diagnostic codes surfaced to callers on non-fatal conditions.
const (
	DiagStageDegraded          = "STAGE_DEGRADED"
	DiagResponderFallbackUsed  = "RESPONDER_FALLBACK_USED"
	DiagPersistenceWarning     = "PERSISTENCE_WARNING"
	ErrCodeIncompleteStream    = "INCOMPLETE_STREAM"
	ErrCodeTranscriptionFailed = "TRANSCRIPTION_FAILED"
	ErrCodeCancelled           = "CANCELLED"
)

// Diagnostic explains a non-fatal degradation on an otherwise
// successful turn.
type Diagnostic struct {
	Code   string `json:"code"`
	Stage  Stage  `json:"stage"`
	Detail string `json:"detail,omitempty"`
}

// Turn is the durable record of one exchange. The id is assigned once
// when the request begins; the rest fills in as stages succeed.
type Turn struct {
	ID        uuid.UUID  `json:"id"`
	SessionID string     `json:"sessionId"`
	UserID    *uuid.UUID `json:"userId,omitempty"`

	Transcript *Transcript `json:"transcript,omitempty"`
	Reply      *Reply      `json:"reply,omitempty"`

	InputDurationMs int64 `json:"inputDurationMs"`
	ReplyAudioBytes int   `json:"replyAudioBytes"`

	Stages      []StageRecording `json:"stages"`
	Diagnostics []Diagnostic     `json:"diagnostics,omitempty"`

	Status      TurnStatus `json:"status"`
	FailureCode string     `json:"failureCode,omitempty"`

	StartedAt   time.Time `json:"startedAt"`
	CompletedAt time.Time `json:"completedAt"`
	LatencyMs   int64     `json:"latencyMs"`
}

// Session is a logical conversation thread across turns, identified by
// a caller-supplied id. Never deleted by the core.
type Session struct {
	ID           string     `json:"id"`
	UserID       *uuid.UUID `json:"userId,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastActivity time.Time  `json:"lastActivity"`
	IsActive     bool       `json:"isActive"`
}

// TurnResult is the transport-agnostic response assembled by the
// orchestrator. Callers always get one of these, never a bare error.
type TurnResult struct {
	TurnID      uuid.UUID         `json:"turnId"`
	SessionID   string            `json:"sessionId"`
	Status      TurnStatus        `json:"status"`
	Transcript  *Transcript       `json:"transcript,omitempty"`
	ReplyText   string            `json:"replyText,omitempty"`
	Audio       *SynthesizedAudio `json:"audio,omitempty"`
	Diagnostics []Diagnostic      `json:"diagnostics,omitempty"`
	ErrorCode   string            `json:"errorCode,omitempty"`
	ErrorMsg    string            `json:"errorMessage,omitempty"`
	LatencyMs   int64             `json:"latencyMs"`
}
