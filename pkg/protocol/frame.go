package protocol

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// LengthPrefixSize is the size of the little-endian frame length.
	LengthPrefixSize = 4
	// DefaultMaxFrameSize bounds a single frame payload.
	DefaultMaxFrameSize = 1 << 20
)

// ErrFrameTooLarge means the length prefix cannot belong to a valid frame.
// The stream should be considered corrupted.
var ErrFrameTooLarge = errors.New("frame exceeds maximum size")

// WriteFrame writes the length prefix and payload with a single Write call.
func WriteFrame(w io.Writer, payload []byte) error {
	frame := make([]byte, LengthPrefixSize, LengthPrefixSize+len(payload))
	binary.LittleEndian.PutUint32(frame, uint32(len(payload)))
	frame = append(frame, payload...)
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// FrameReader splits a byte stream into frame payloads.
type FrameReader struct {
	r       *bufio.Reader
	maxSize int
}

// NewFrameReader wraps r. A non-positive maxSize selects DefaultMaxFrameSize.
func NewFrameReader(r io.Reader, maxSize int) *FrameReader {
	if maxSize <= 0 {
		maxSize = DefaultMaxFrameSize
	}
	return &FrameReader{r: bufio.NewReader(r), maxSize: maxSize}
}

// ReadFrame blocks until a whole frame has arrived and returns its payload.
// It returns io.EOF only when the stream ends cleanly between frames.
func (fr *FrameReader) ReadFrame() ([]byte, error) {
	prefix, err := fr.r.Peek(LengthPrefixSize)
	if err != nil {
		if errors.Is(err, io.EOF) && len(prefix) > 0 {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	n := binary.LittleEndian.Uint32(prefix)
	if _, err := fr.r.Discard(LengthPrefixSize); err != nil {
		return nil, err
	}
	if int32(n) < 0 || int64(n) > int64(fr.maxSize) {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrFrameTooLarge, int32(n), fr.maxSize)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(fr.r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("read frame payload: %w", err)
	}
	return payload, nil
}
