package turn

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"github.com/tobenna/aria/internal/types"
	"github.com/tobenna/aria/pkg/Logger"
)

// Turn states, in pipeline order. Failed is reachable from any state
// whose stage policy is abort.
const (
	stateReceived     = "received"
	stateSegmented    = "segmented"
	stateTranscribed  = "transcribed"
	stateContextBuilt = "context_built"
	stateResponded    = "responded"
	stateSynthesized  = "synthesized"
	stateRecorded     = "recorded"
	stateCompleted    = "completed"
	stateFailed       = "failed"
)

const (
	evSegment      = "segment"
	evTranscribe   = "transcribe"
	evBuildContext = "build_context"
	evRespond      = "respond"
	evSynthesize   = "synthesize"
	evRecord       = "record"
	evComplete     = "complete"
	evFail         = "fail"
)

// newTurnMachine builds the per-turn state machine. A stage only fires
// once its predecessor state is reached, so stages cannot reorder or
// skip.
func newTurnMachine() *fsm.FSM {
	return fsm.NewFSM(
		stateReceived,
		fsm.Events{
			{Name: evSegment, Src: []string{stateReceived}, Dst: stateSegmented},
			{Name: evTranscribe, Src: []string{stateSegmented}, Dst: stateTranscribed},
			{Name: evBuildContext, Src: []string{stateTranscribed}, Dst: stateContextBuilt},
			{Name: evRespond, Src: []string{stateContextBuilt}, Dst: stateResponded},
			{Name: evSynthesize, Src: []string{stateResponded}, Dst: stateSynthesized},
			{Name: evRecord, Src: []string{stateSynthesized}, Dst: stateRecorded},
			{Name: evComplete, Src: []string{stateRecorded}, Dst: stateCompleted},
			{Name: evFail, Src: []string{
				stateReceived, stateSegmented, stateTranscribed,
				stateContextBuilt, stateResponded, stateSynthesized,
			}, Dst: stateFailed},
		},
		fsm.Callbacks{},
	)
}

// CollaboratorCaps bounds concurrent calls per external collaborator
// across all in-flight turns. Zero means uncapped.
type CollaboratorCaps struct {
	VAD   int `mapstructure:"vad"`
	STT   int `mapstructure:"stt"`
	LLM   int `mapstructure:"llm"`
	TTS   int `mapstructure:"tts"`
	Store int `mapstructure:"store"`
}

// StageTimeouts bound each collaborator call independently. A stage
// timeout follows that stage's failure policy.
type StageTimeouts struct {
	Segment    time.Duration `mapstructure:"segment"`
	Transcribe time.Duration `mapstructure:"transcribe"`
	Respond    time.Duration `mapstructure:"respond"`
	Synthesize time.Duration `mapstructure:"synthesize"`
	Record     time.Duration `mapstructure:"record"`
}

// Config tunes the pipeline.
type Config struct {
	HistoryWindow   int           `mapstructure:"history_window"`
	ChunkGapTimeout time.Duration `mapstructure:"chunk_gap_timeout"`
	Retry           RetryConfig   `mapstructure:"-"`
	Timeouts        StageTimeouts `mapstructure:"timeouts"`
	Caps            CollaboratorCaps
}

func DefaultConfig() Config {
	return Config{
		HistoryWindow:   5,
		ChunkGapTimeout: 5 * time.Second,
		Retry:           DefaultRetryConfig(),
		Timeouts: StageTimeouts{
			Segment:    5 * time.Second,
			Transcribe: 30 * time.Second,
			Respond:    15 * time.Second,
			Synthesize: 30 * time.Second,
			Record:     5 * time.Second,
		},
		Caps: CollaboratorCaps{VAD: 8, STT: 8, LLM: 4, TTS: 8, Store: 16},
	}
}

// Request is one utterance to process: either a complete buffer or a
// stream of chunks, never both.
type Request struct {
	SessionID    string
	UserID       *uuid.UUID
	Buffer       *types.AudioBuffer
	Chunks       <-chan types.AudioChunk
	InputFormat  types.AudioFormat
	OutputFormat types.AudioFormat
}

// Orchestrator drives a turn through the pipeline, owns per-stage
// timeout and degradation policy, and assembles the TurnResult. Stage
// calls run sequentially within a turn; across turns, calls to the
// same collaborator share a concurrency cap.
type Orchestrator struct {
	cfg Config

	segmenter      *Segmenter
	transcriber    *Transcriber
	contextBuilder *ContextBuilder
	responder      *Responder
	synthesizer    *Synthesizer
	recorder       *Recorder

	vadSem   chan struct{}
	sttSem   chan struct{}
	llmSem   chan struct{}
	ttsSem   chan struct{}
	storeSem chan struct{}

	logger *Logger.Logger
}

func NewOrchestrator(
	cfg Config,
	segmenter *Segmenter,
	transcriber *Transcriber,
	contextBuilder *ContextBuilder,
	responder *Responder,
	synthesizer *Synthesizer,
	recorder *Recorder,
	logger *Logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:            cfg,
		segmenter:      segmenter,
		transcriber:    transcriber,
		contextBuilder: contextBuilder,
		responder:      responder,
		synthesizer:    synthesizer,
		recorder:       recorder,
		vadSem:         newSem(cfg.Caps.VAD),
		sttSem:         newSem(cfg.Caps.STT),
		llmSem:         newSem(cfg.Caps.LLM),
		ttsSem:         newSem(cfg.Caps.TTS),
		storeSem:       newSem(cfg.Caps.Store),
		logger:         logger,
	}
}

func newSem(cap int) chan struct{} {
	if cap <= 0 {
		return nil
	}
	return make(chan struct{}, cap)
}

// ProcessTurn runs one utterance through the full pipeline and always
// returns a structured result; no error crosses this boundary.
func (o *Orchestrator) ProcessTurn(ctx context.Context, req Request) *types.TurnResult {
	t := &types.Turn{
		ID:        uuid.New(),
		SessionID: req.SessionID,
		UserID:    req.UserID,
		StartedAt: time.Now(),
	}
	machine := newTurnMachine()

	// Assemble. Single-shot input passes through untouched.
	var buffer types.AudioBuffer
	switch {
	case req.Chunks != nil:
		entered := time.Now()
		assembler := NewAssembler(o.cfg.ChunkGapTimeout, o.logger)
		buf, err := assembler.Assemble(ctx, req.Chunks, req.InputFormat)
		if err != nil {
			o.recordStage(t, types.StageAssemble, entered, stageFatal(err))
			return o.failTurn(ctx, machine, t, types.ErrCodeIncompleteStream, err)
		}
		o.recordStage(t, types.StageAssemble, entered, stageSucceeded())
		buffer = buf
	case req.Buffer != nil:
		buffer = *req.Buffer
	default:
		err := ErrIncompleteStream
		return o.failTurn(ctx, machine, t, types.ErrCodeIncompleteStream, err)
	}
	t.InputDurationMs = buffer.DurationMs()

	// Segment. Degrades, never aborts.
	segments, res, ok := runStage(o, ctx, machine, t, types.StageSegment, evSegment, o.vadSem, o.cfg.Timeouts.Segment,
		func(sctx context.Context) ([]types.Segment, stageResult) {
			return o.segmenter.Extract(sctx, buffer)
		})
	if !ok {
		return o.failTurn(ctx, machine, t, types.ErrCodeCancelled, res.err)
	}

	// Transcribe. Total failure aborts: no text, no turn.
	transcript, res, ok := runStage(o, ctx, machine, t, types.StageTranscribe, evTranscribe, o.sttSem, o.cfg.Timeouts.Transcribe,
		func(sctx context.Context) (*types.Transcript, stageResult) {
			return o.transcriber.Transcribe(sctx, buffer, segments)
		})
	if !ok {
		if res.fatal() && res.err != nil && ctx.Err() == nil {
			return o.failTurn(ctx, machine, t, types.ErrCodeTranscriptionFailed, res.err)
		}
		return o.failTurn(ctx, machine, t, types.ErrCodeCancelled, res.err)
	}
	t.Transcript = transcript

	// Build context. Degrades to a fresh conversation.
	convCtx, res, ok := runStage(o, ctx, machine, t, types.StageContext, evBuildContext, o.storeSem, o.cfg.Timeouts.Record,
		func(sctx context.Context) (types.ConversationContext, stageResult) {
			return o.contextBuilder.Build(sctx, req.SessionID, *transcript)
		})
	if !ok {
		return o.failTurn(ctx, machine, t, types.ErrCodeCancelled, res.err)
	}

	// Respond. Absorbed into a canned reply on double failure.
	reply, res, ok := runStage(o, ctx, machine, t, types.StageRespond, evRespond, o.llmSem, 0,
		func(sctx context.Context) (*types.Reply, stageResult) {
			return o.responder.Respond(sctx, convCtx)
		})
	if !ok {
		return o.failTurn(ctx, machine, t, types.ErrCodeCancelled, res.err)
	}
	t.Reply = reply

	// Synthesize. Failure yields a text-only turn.
	audio, res, ok := runStage(o, ctx, machine, t, types.StageSynthesize, evSynthesize, o.ttsSem, o.cfg.Timeouts.Synthesize,
		func(sctx context.Context) (*types.SynthesizedAudio, stageResult) {
			return o.synthesizer.Synthesize(sctx, reply.Text, req.OutputFormat)
		})
	if !ok {
		return o.failTurn(ctx, machine, t, types.ErrCodeCancelled, res.err)
	}
	if audio != nil {
		t.ReplyAudioBytes = len(audio.Data)
	}

	if audio != nil {
		t.Status = types.TurnCompleted
	} else {
		t.Status = types.TurnPartiallyCompleted
	}

	t.CompletedAt = time.Now()
	t.LatencyMs = t.CompletedAt.Sub(t.StartedAt).Milliseconds()

	// Record. Best effort; runs outside the caller's cancellation so a
	// finished reply still gets persisted.
	o.recordTurn(machine, t)

	if err := machine.Event(context.Background(), evComplete); err != nil {
		o.logger.Debugf("fsm complete transition: %v", err)
	}

	return &types.TurnResult{
		TurnID:      t.ID,
		SessionID:   t.SessionID,
		Status:      t.Status,
		Transcript:  t.Transcript,
		ReplyText:   reply.Text,
		Audio:       audio,
		Diagnostics: t.Diagnostics,
		LatencyMs:   t.LatencyMs,
	}
}

// runStage wraps one stage call: cancellation check, semaphore,
// timeout, FSM transition and stage timing on the turn. ok is false
// when the pipeline must stop (fatal stage result or cancellation).
func runStage[T any](
	o *Orchestrator,
	ctx context.Context,
	machine *fsm.FSM,
	t *types.Turn,
	stage types.Stage,
	event string,
	sem chan struct{},
	timeout time.Duration,
	fn func(context.Context) (T, stageResult),
) (T, stageResult, bool) {
	var zero T

	// A turn is cancellable up to the point its stage call begins.
	if err := ctx.Err(); err != nil {
		return zero, stageFatal(err), false
	}

	if err := acquire(ctx, sem); err != nil {
		return zero, stageFatal(err), false
	}
	defer release(sem)

	sctx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	entered := time.Now()
	artifact, res := fn(sctx)
	o.recordStage(t, stage, entered, res)

	if res.fatal() {
		return zero, res, false
	}

	if err := machine.Event(context.Background(), event); err != nil {
		o.logger.Debugf("fsm %s transition: %v", event, err)
	}

	return artifact, res, true
}

func acquire(ctx context.Context, sem chan struct{}) error {
	if sem == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case sem <- struct{}{}:
		return nil
	}
}

func release(sem chan struct{}) {
	if sem != nil {
		<-sem
	}
}

func (o *Orchestrator) recordStage(t *types.Turn, stage types.Stage, entered time.Time, res stageResult) {
	t.Stages = append(t.Stages, types.StageRecording{
		Stage:     stage,
		Outcome:   res.outcome(),
		EnteredAt: entered,
		ExitedAt:  time.Now(),
		Detail:    res.detail(),
	})
	if res.diag != nil {
		t.Diagnostics = append(t.Diagnostics, *res.diag)
	}
}

// recordTurn runs the recorder stage with its own context so that
// persistence survives caller cancellation of an already-answered turn.
func (o *Orchestrator) recordTurn(machine *fsm.FSM, t *types.Turn) {
	rctx, cancel := context.WithTimeout(context.Background(), o.cfg.Timeouts.Record)
	defer cancel()

	if err := acquire(rctx, o.storeSem); err != nil {
		o.recordStage(t, types.StageRecord, time.Now(), stageDegraded(types.StageRecord, types.DiagPersistenceWarning, "store busy"))
		return
	}
	defer release(o.storeSem)

	entered := time.Now()
	res := o.recorder.Record(rctx, t)
	o.recordStage(t, types.StageRecord, entered, res)

	if machine.Can(evRecord) {
		if err := machine.Event(context.Background(), evRecord); err != nil {
			o.logger.Debugf("fsm record transition: %v", err)
		}
	}
}

// failTurn finalizes a fatally failed turn: no reply, no audio, an
// explanatory code only. The partial turn is still persisted.
func (o *Orchestrator) failTurn(ctx context.Context, machine *fsm.FSM, t *types.Turn, code string, err error) *types.TurnResult {
	t.Status = types.TurnFailed
	t.FailureCode = code

	if machine.Can(evFail) {
		if ferr := machine.Event(context.Background(), evFail); ferr != nil {
			o.logger.Debugf("fsm fail transition: %v", ferr)
		}
	}

	t.CompletedAt = time.Now()
	t.LatencyMs = t.CompletedAt.Sub(t.StartedAt).Milliseconds()
	o.recordTurn(machine, t)

	msg := ""
	if err != nil {
		msg = err.Error()
	}
	o.logger.Warnf("turn %s failed at %s: %s", t.ID, code, msg)

	return &types.TurnResult{
		TurnID:      t.ID,
		SessionID:   t.SessionID,
		Status:      types.TurnFailed,
		Diagnostics: t.Diagnostics,
		ErrorCode:   code,
		ErrorMsg:    msg,
		LatencyMs:   t.LatencyMs,
	}
}
