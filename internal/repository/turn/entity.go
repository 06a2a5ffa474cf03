package turn

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tobenna/aria/internal/types"
)

// TurnEntity is the durable row for one exchange. Transcript, reply
// and the stage trail are flattened; stages and diagnostics are stored
// as JSON text since they are only ever read back whole.
type TurnEntity struct {
	ID        uuid.UUID  `gorm:"primaryKey;type:char(36);not null"`
	SessionID string     `gorm:"column:session_id;type:varchar(128);index;not null"`
	UserID    *uuid.UUID `gorm:"column:user_id;type:char(36);index"`

	TranscriptText       string  `gorm:"type:text"`
	TranscriptConfidence float64 `gorm:"column:transcript_confidence"`

	ReplyText     string `gorm:"type:text"`
	ReplyProvider string `gorm:"type:varchar(32)"`
	ReplyModel    string `gorm:"type:varchar(64)"`
	ReplyFallback bool   `gorm:"column:reply_fallback"`

	InputDurationMs int64 `gorm:"column:input_duration_ms"`
	ReplyAudioBytes int   `gorm:"column:reply_audio_bytes"`

	Stages      string `gorm:"type:text"`
	Diagnostics string `gorm:"type:text"`

	Status      string `gorm:"type:varchar(24);not null"`
	FailureCode string `gorm:"type:varchar(32)"`

	StartedAt   time.Time `gorm:"column:started_at"`
	CompletedAt time.Time `gorm:"column:completed_at"`
	LatencyMs   int64     `gorm:"column:latency_ms"`

	CreatedAt time.Time `gorm:"autoCreateTime(3)"`
}

func (te *TurnEntity) FromDomain(t types.Turn) error {
	te.ID = t.ID
	te.SessionID = t.SessionID
	te.UserID = t.UserID
	if t.Transcript != nil {
		te.TranscriptText = t.Transcript.Text
		te.TranscriptConfidence = t.Transcript.Confidence
	}
	if t.Reply != nil {
		te.ReplyText = t.Reply.Text
		te.ReplyProvider = t.Reply.Provider
		te.ReplyModel = t.Reply.Model
		te.ReplyFallback = t.Reply.Fallback
	}
	te.InputDurationMs = t.InputDurationMs
	te.ReplyAudioBytes = t.ReplyAudioBytes

	stages, err := json.Marshal(t.Stages)
	if err != nil {
		return fmt.Errorf("marshal stages: %w", err)
	}
	te.Stages = string(stages)

	diags, err := json.Marshal(t.Diagnostics)
	if err != nil {
		return fmt.Errorf("marshal diagnostics: %w", err)
	}
	te.Diagnostics = string(diags)

	te.Status = string(t.Status)
	te.FailureCode = t.FailureCode
	te.StartedAt = t.StartedAt
	te.CompletedAt = t.CompletedAt
	te.LatencyMs = t.LatencyMs
	return nil
}

func (te *TurnEntity) ToDomain() types.Turn {
	t := types.Turn{
		ID:              te.ID,
		SessionID:       te.SessionID,
		UserID:          te.UserID,
		InputDurationMs: te.InputDurationMs,
		ReplyAudioBytes: te.ReplyAudioBytes,
		Status:          types.TurnStatus(te.Status),
		FailureCode:     te.FailureCode,
		StartedAt:       te.StartedAt,
		CompletedAt:     te.CompletedAt,
		LatencyMs:       te.LatencyMs,
	}
	if te.TranscriptText != "" {
		t.Transcript = &types.Transcript{
			Text:       te.TranscriptText,
			Confidence: te.TranscriptConfidence,
		}
	}
	if te.ReplyText != "" {
		t.Reply = &types.Reply{
			Text:     te.ReplyText,
			Provider: te.ReplyProvider,
			Model:    te.ReplyModel,
			Fallback: te.ReplyFallback,
		}
	}
	// best effort: a corrupt trail must not block history
	_ = json.Unmarshal([]byte(te.Stages), &t.Stages)
	_ = json.Unmarshal([]byte(te.Diagnostics), &t.Diagnostics)
	return t
}

// SessionEntity keys conversations by the caller-supplied id. Rows are
// never deleted; is_active is a soft flag.
type SessionEntity struct {
	ID           string     `gorm:"primaryKey;type:varchar(128);not null"`
	UserID       *uuid.UUID `gorm:"column:user_id;type:char(36);index"`
	CreatedAt    time.Time  `gorm:"autoCreateTime(3)"`
	LastActivity time.Time  `gorm:"column:last_activity"`
	IsActive     bool       `gorm:"column:is_active;default:true"`
}

func (se *SessionEntity) ToDomain() *types.Session {
	return &types.Session{
		ID:           se.ID,
		UserID:       se.UserID,
		CreatedAt:    se.CreatedAt,
		LastActivity: se.LastActivity,
		IsActive:     se.IsActive,
	}
}

func sessionTurnsKey(sessionID string) string {
	return fmt.Sprintf("session:%s:turns", sessionID)
}
