package turn

import (
	"errors"

	"github.com/tobenna/aria/internal/types"
)

// Fatal pipeline errors. Everything else degrades.
var (
	ErrIncompleteStream    = errors.New("incomplete audio stream")
	ErrTranscriptionFailed = errors.New("transcription failed for all segments")
)

type stageResultKind int

const (
	stageOK stageResultKind = iota
	stageDegradedKind
	stageFatalKind
)

// stageResult is the typed outcome every stage hands back to the
// orchestrator: succeeded, degraded with a diagnostic, or fatal.
// The orchestrator inspects the variant to decide whether to continue;
// no stage swallows its own failure.
type stageResult struct {
	kind stageResultKind
	diag *types.Diagnostic
	err  error
}

func stageSucceeded() stageResult {
	return stageResult{kind: stageOK}
}

func stageDegraded(stage types.Stage, code, detail string) stageResult {
	return stageResult{
		kind: stageDegradedKind,
		diag: &types.Diagnostic{
			Code:   code,
			Stage:  stage,
			Detail: detail,
		},
	}
}

func stageFatal(err error) stageResult {
	return stageResult{kind: stageFatalKind, err: err}
}

func (r stageResult) fatal() bool {
	return r.kind == stageFatalKind
}

func (r stageResult) outcome() types.StageOutcome {
	switch r.kind {
	case stageDegradedKind:
		return types.StageDegraded
	case stageFatalKind:
		return types.StageFailed
	default:
		return types.StageOK
	}
}

func (r stageResult) detail() string {
	if r.err != nil {
		return r.err.Error()
	}
	if r.diag != nil {
		return r.diag.Detail
	}
	return ""
}
