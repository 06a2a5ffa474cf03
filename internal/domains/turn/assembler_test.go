package turn

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tobenna/aria/internal/types"
)

func feedChunks(chunks []types.AudioChunk) <-chan types.AudioChunk {
	ch := make(chan types.AudioChunk, len(chunks))
	for _, c := range chunks {
		ch <- c
	}
	close(ch)
	return ch
}

func TestAssembleOutOfOrder(t *testing.T) {
	a := NewAssembler(time.Second, testLogger())

	chunks := []types.AudioChunk{
		{Seq: 2, Data: []byte("cc"), Final: true},
		{Seq: 0, Data: []byte("aa")},
		{Seq: 1, Data: []byte("bb")},
	}

	buf, err := a.Assemble(context.Background(), feedChunks(chunks), types.DefaultAudioFormat())
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if !bytes.Equal(buf.Data, []byte("aabbcc")) {
		t.Errorf("expected aabbcc, got %q", buf.Data)
	}
}

func TestAssembleDropsDuplicates(t *testing.T) {
	a := NewAssembler(time.Second, testLogger())

	chunks := []types.AudioChunk{
		{Seq: 0, Data: []byte("aa")},
		{Seq: 0, Data: []byte("XX")},
		{Seq: 1, Data: []byte("bb"), Final: true},
	}

	buf, err := a.Assemble(context.Background(), feedChunks(chunks), types.DefaultAudioFormat())
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if !bytes.Equal(buf.Data, []byte("aabb")) {
		t.Errorf("duplicate payload should be dropped, got %q", buf.Data)
	}
}

func TestAssembleGapTimesOut(t *testing.T) {
	a := NewAssembler(50*time.Millisecond, testLogger())

	// seq 1 never arrives
	ch := make(chan types.AudioChunk, 2)
	ch <- types.AudioChunk{Seq: 0, Data: []byte("aa")}
	ch <- types.AudioChunk{Seq: 2, Data: []byte("cc"), Final: true}

	_, err := a.Assemble(context.Background(), ch, types.DefaultAudioFormat())
	if !errors.Is(err, ErrIncompleteStream) {
		t.Fatalf("expected ErrIncompleteStream, got %v", err)
	}
}

func TestAssembleStreamClosedEarly(t *testing.T) {
	a := NewAssembler(time.Second, testLogger())

	chunks := []types.AudioChunk{
		{Seq: 0, Data: []byte("aa")},
		{Seq: 1, Data: []byte("bb")},
	}

	_, err := a.Assemble(context.Background(), feedChunks(chunks), types.DefaultAudioFormat())
	if !errors.Is(err, ErrIncompleteStream) {
		t.Fatalf("expected ErrIncompleteStream on early close, got %v", err)
	}
}

func TestAssembleCancelled(t *testing.T) {
	a := NewAssembler(time.Second, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan types.AudioChunk)
	go func() {
		ch <- types.AudioChunk{Seq: 0, Data: []byte("aa")}
		cancel()
	}()

	_, err := a.Assemble(ctx, ch, types.DefaultAudioFormat())
	if !errors.Is(err, ErrIncompleteStream) {
		t.Fatalf("expected ErrIncompleteStream on cancel, got %v", err)
	}
}
