package audioring

import (
	"errors"
	"sync"

	"github.com/smallnest/ringbuffer"
)

// rb_impl guards the ring with a mutex: overflow eviction makes the
// producer read from the ring, so producer and consumer touch the same
// framing even in single-producer/single-consumer use.
type rb_impl struct {
	mu   sync.Mutex
	size int
	rb   *ringbuffer.RingBuffer
}

// Capacity implements FrameQueue.
func (r *rb_impl) Capacity() int {
	return r.size
}

// Dequeue implements FrameQueue.
func (r *rb_impl) Dequeue() (Frame, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dequeueLocked()
}

func (r *rb_impl) dequeueLocked() (Frame, bool) {
	if r.rb.IsEmpty() {
		return Frame{}, false
	}

	// Each frame is stored with a 4-byte little-endian size prefix
	sizeBytes := make([]byte, 4)
	n, err := r.rb.Read(sizeBytes)
	if err != nil || n != 4 {
		return Frame{}, false
	}

	size := int(sizeBytes[0]) | int(sizeBytes[1])<<8 | int(sizeBytes[2])<<16 | int(sizeBytes[3])<<24

	data := make([]byte, size)
	n, err = r.rb.Read(data)
	if err != nil || n != size {
		return Frame{}, false
	}

	var frame Frame
	if err := frame.UnmarshalBinary(data); err != nil {
		return Frame{}, false
	}

	return frame, true
}

// Enqueue implements FrameQueue. When the buffer is full the oldest
// frames are evicted; the assembler flags the resulting gap.
func (r *rb_impl) Enqueue(f Frame) error {
	data, err := f.MarshalBinary()
	if err != nil {
		return err
	}

	requiredSpace := len(data) + 4

	r.mu.Lock()
	defer r.mu.Unlock()

	if requiredSpace > r.rb.Capacity() {
		return errors.New("audio frame too large for buffer")
	}

	for r.rb.Free() < requiredSpace {
		if !r.removeOldestFrame() {
			r.rb.Reset()
			break
		}
	}

	sizeBytes := []byte{
		byte(len(data)),
		byte(len(data) >> 8),
		byte(len(data) >> 16),
		byte(len(data) >> 24),
	}

	if _, err := r.rb.Write(sizeBytes); err != nil {
		return err
	}

	_, err = r.rb.Write(data)
	return err
}

// removeOldestFrame drops one complete frame from the front.
func (r *rb_impl) removeOldestFrame() bool {
	if r.rb.IsEmpty() {
		return false
	}

	sizeBytes := make([]byte, 4)
	n, err := r.rb.Read(sizeBytes)
	if err != nil || n != 4 {
		return false
	}

	size := int(sizeBytes[0]) | int(sizeBytes[1])<<8 | int(sizeBytes[2])<<16 | int(sizeBytes[3])<<24

	if size > 0 {
		skipData := make([]byte, size)
		n, err := r.rb.Read(skipData)
		if err != nil || n != size {
			return false
		}
	}

	return true
}

// Drain implements FrameQueue.
func (r *rb_impl) Drain(ch chan<- Frame) error {
	defer close(ch)

	r.mu.Lock()
	defer r.mu.Unlock()

	for !r.rb.IsEmpty() {
		frame, ok := r.dequeueLocked()
		if !ok {
			break
		}

		select {
		case ch <- frame:
		default:
			return errors.New("channel blocked during drain")
		}
	}

	return nil
}

// Len implements FrameQueue.
func (r *rb_impl) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rb.Length()
}

func New(size int) FrameQueue {
	return &rb_impl{
		size: size,
		rb:   ringbuffer.New(size),
	}
}
