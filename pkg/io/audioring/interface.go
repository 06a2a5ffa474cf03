package audioring

import (
	"encoding/binary"
	"time"
)

// Frame is one audio chunk as it arrives off the wire, before the
// assembler has put it in sequence order.
type Frame struct {
	Seq        uint32
	Final      bool
	ReceivedAt time.Time
	Data       []byte
}

func (f *Frame) MarshalBinary() ([]byte, error) {
	// Format: seq(4) + final(1) + receivedAt(8) + dataLen(4) + data
	buf := make([]byte, 4+1+8+4+len(f.Data))

	offset := 0
	binary.LittleEndian.PutUint32(buf[offset:], f.Seq)
	offset += 4

	if f.Final {
		buf[offset] = 1
	}
	offset++

	binary.LittleEndian.PutUint64(buf[offset:], uint64(f.ReceivedAt.UnixNano()))
	offset += 8

	binary.LittleEndian.PutUint32(buf[offset:], uint32(len(f.Data)))
	offset += 4

	copy(buf[offset:], f.Data)

	return buf, nil
}

func (f *Frame) UnmarshalBinary(data []byte) error {
	if len(data) < 17 { // minimum size: 4+1+8+4
		return nil
	}

	offset := 0
	f.Seq = binary.LittleEndian.Uint32(data[offset:])
	offset += 4

	f.Final = data[offset] == 1
	offset++

	f.ReceivedAt = time.Unix(0, int64(binary.LittleEndian.Uint64(data[offset:])))
	offset += 8

	dataLen := binary.LittleEndian.Uint32(data[offset:])
	offset += 4

	if len(data[offset:]) >= int(dataLen) {
		f.Data = make([]byte, dataLen)
		copy(f.Data, data[offset:offset+int(dataLen)])
	}

	return nil
}

// FrameQueue buffers wire frames between the transport reader and the
// chunk assembler. One queue per stream, single producer, single consumer.
type FrameQueue interface {
	Enqueue(f Frame) error
	Dequeue() (Frame, bool)
	Len() int
	Capacity() int
	Drain(ch chan<- Frame) error
}
