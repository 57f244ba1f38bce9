package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrTruncated is returned when a payload ends before the field being read.
	ErrTruncated = errors.New("truncated payload")
	// ErrInvalidLength is returned for negative or overflowing length fields.
	ErrInvalidLength = errors.New("invalid length")
)

// Writer appends typed fields to a single contiguous payload.
// Integers are little-endian. Strings carry a uvarint byte-length prefix.
type Writer struct {
	buf []byte
}

// NewWriter returns a Writer with room for sizeHint bytes.
func NewWriter(sizeHint int) *Writer {
	if sizeHint < 0 {
		sizeHint = 0
	}
	return &Writer{buf: make([]byte, 0, sizeHint)}
}

func (w *Writer) WriteUint8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *Writer) WriteInt32(v int32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, uint32(v))
}

func (w *Writer) WriteInt64(v int64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, uint64(v))
}

func (w *Writer) WriteString(s string) {
	w.buf = binary.AppendUvarint(w.buf, uint64(len(s)))
	w.buf = append(w.buf, s...)
}

// WriteBytes appends p verbatim. The length, if needed, is a separate field.
func (w *Writer) WriteBytes(p []byte) {
	w.buf = append(w.buf, p...)
}

// Bytes returns the encoded payload. The slice aliases the writer's buffer.
func (w *Writer) Bytes() []byte {
	return w.buf
}

func (w *Writer) Len() int {
	return len(w.buf)
}

// Reader decodes fields from a payload in the order they were written.
type Reader struct {
	data []byte
	off  int
}

func NewReader(payload []byte) *Reader {
	return &Reader{data: payload}
}

// Remaining reports how many bytes have not been consumed yet.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

func (r *Reader) take(n int, field string) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("%s: %w", field, ErrInvalidLength)
	}
	if r.Remaining() < n {
		return nil, fmt.Errorf("%s: need %d bytes, have %d: %w", field, n, r.Remaining(), ErrTruncated)
	}
	p := r.data[r.off : r.off+n]
	r.off += n
	return p, nil
}

func (r *Reader) ReadUint8() (uint8, error) {
	p, err := r.take(1, "uint8")
	if err != nil {
		return 0, err
	}
	return p[0], nil
}

func (r *Reader) ReadInt32() (int32, error) {
	p, err := r.take(4, "int32")
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(p)), nil
}

func (r *Reader) ReadInt64() (int64, error) {
	p, err := r.take(8, "int64")
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(p)), nil
}

func (r *Reader) ReadString() (string, error) {
	n, size := binary.Uvarint(r.data[r.off:])
	switch {
	case size == 0:
		return "", fmt.Errorf("string length: %w", ErrTruncated)
	case size < 0:
		return "", fmt.Errorf("string length: %w", ErrInvalidLength)
	}
	if n > uint64(r.Remaining()-size) {
		return "", fmt.Errorf("string: need %d bytes, have %d: %w", n, r.Remaining()-size, ErrTruncated)
	}
	r.off += size
	p, err := r.take(int(n), "string")
	if err != nil {
		return "", err
	}
	return string(p), nil
}

// ReadBytes returns a copy of the next n bytes.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	p, err := r.take(n, "bytes")
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, p)
	return out, nil
}
