package turn

import (
	"sort"

	"context"

	"github.com/tobenna/aria/internal/types"
	"github.com/tobenna/aria/pkg/Logger"
	"github.com/tobenna/aria/pkg/io/vad"
)

// Segmenter strips silence from an utterance by asking the VAD
// collaborator for speech segments. A VAD outage never blocks the
// pipeline: the whole buffer becomes one segment instead.
type Segmenter struct {
	detector vad.Detector
	logger   *Logger.Logger
}

func NewSegmenter(detector vad.Detector, logger *Logger.Logger) *Segmenter {
	return &Segmenter{
		detector: detector,
		logger:   logger,
	}
}

// Extract returns speech segments ordered by start offset. On VAD
// failure or an empty result it degrades to a single segment spanning
// the whole buffer.
func (s *Segmenter) Extract(ctx context.Context, buffer types.AudioBuffer) ([]types.Segment, stageResult) {
	whole := []types.Segment{{Start: 0, End: int64(len(buffer.Data))}}

	segments, err := s.detector.DetectSegments(ctx, buffer)
	if err != nil {
		s.logger.Warnf("VAD failed, treating whole buffer as one segment: %v", err)
		return whole, stageDegraded(types.StageSegment, types.DiagStageDegraded, "vad unavailable, no segmentation applied")
	}
	if len(segments) == 0 {
		s.logger.Debugf("VAD returned no segments, treating whole buffer as speech")
		return whole, stageDegraded(types.StageSegment, types.DiagStageDegraded, "vad found no speech, no segmentation applied")
	}

	return coalesce(segments, int64(len(buffer.Data))), stageSucceeded()
}

// coalesce sorts segments by start offset, clamps them to the buffer
// and merges overlapping ranges. The collaborator shouldn't send
// overlaps, but they are resolved here rather than rejected.
func coalesce(segments []types.Segment, bufLen int64) []types.Segment {
	clamped := make([]types.Segment, 0, len(segments))
	for _, seg := range segments {
		if seg.Start < 0 {
			seg.Start = 0
		}
		if seg.End > bufLen {
			seg.End = bufLen
		}
		if seg.Start >= seg.End {
			continue
		}
		clamped = append(clamped, seg)
	}

	if len(clamped) == 0 {
		return []types.Segment{{Start: 0, End: bufLen}}
	}

	sort.Slice(clamped, func(i, j int) bool {
		return clamped[i].Start < clamped[j].Start
	})

	merged := []types.Segment{clamped[0]}
	for _, seg := range clamped[1:] {
		last := &merged[len(merged)-1]
		if seg.Start <= last.End {
			if seg.End > last.End {
				last.End = seg.End
			}
			continue
		}
		merged = append(merged, seg)
	}

	return merged
}
