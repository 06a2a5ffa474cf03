package vad

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/tobenna/aria/internal/types"
	"github.com/tobenna/aria/pkg/Logger"
)

func testBuffer(format types.AudioFormat) types.AudioBuffer {
	return types.AudioBuffer{
		Data:   make([]byte, 3200),
		Format: format,
	}
}

// Two in-flight detections must reach the sidecar at the same time;
// the detector may not serialize callers.
func TestDetectSegmentsRunConcurrently(t *testing.T) {
	arrived := make(chan struct{}, 2)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		arrived <- struct{}{}
		<-release
		fmt.Fprint(w, `{"has_voice":true,"confidence":0.9,"segments":[]}`)
	}))
	defer srv.Close()

	d := NewSileroDetector(DefaultConfig(), Logger.BuildLogger(true), srv.URL)
	buf := testBuffer(types.DefaultAudioFormat())

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.DetectSegments(context.Background(), buf)
		}()
	}

	for i := 0; i < 2; i++ {
		select {
		case <-arrived:
		case <-time.After(2 * time.Second):
			t.Fatal("second detection never reached the service; calls are serialized")
		}
	}
	close(release)
	wg.Wait()
}

// Segment offsets come back in seconds; the byte conversion must
// account for the channel count, not assume mono.
func TestDetectSegmentsStereoOffsets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"has_voice":true,"confidence":0.9,"segments":[{"start":1.0,"end":2.0}]}`)
	}))
	defer srv.Close()

	d := NewSileroDetector(DefaultConfig(), Logger.BuildLogger(true), srv.URL)
	buf := testBuffer(types.AudioFormat{SampleRate: 16000, Channels: 2})

	segments, err := d.DetectSegments(context.Background(), buf)
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segments))
	}
	// 16000 Hz * 2 bytes * 2 channels = 64000 bytes per second
	if segments[0].Start != 64000 || segments[0].End != 128000 {
		t.Errorf("expected segment {64000,128000}, got {%d,%d}", segments[0].Start, segments[0].End)
	}
}

func TestDetectSegmentsAfterClose(t *testing.T) {
	d := NewSileroDetector(DefaultConfig(), Logger.BuildLogger(true), "http://localhost:1")
	if err := d.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if _, err := d.DetectSegments(context.Background(), testBuffer(types.DefaultAudioFormat())); err == nil {
		t.Error("expected an error after Close")
	}
}
