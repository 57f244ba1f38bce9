package protocol

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterReader_RoundTrip(t *testing.T) {
	w := NewWriter(0)
	w.WriteUint8(0xAB)
	w.WriteInt32(-42)
	w.WriteInt64(math.MaxInt64)
	w.WriteString("héllo")
	w.WriteString("")
	w.WriteBytes([]byte{1, 2, 3})
	w.WriteBytes(nil)

	r := NewReader(w.Bytes())

	b, err := r.ReadUint8()
	require.NoError(t, err)
	assert.Equal(t, uint8(0xAB), b)

	i32, err := r.ReadInt32()
	require.NoError(t, err)
	assert.Equal(t, int32(-42), i32)

	i64, err := r.ReadInt64()
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), i64)

	s, err := r.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "héllo", s)

	empty, err := r.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "", empty)

	raw, err := r.ReadBytes(3)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, raw)

	none, err := r.ReadBytes(0)
	require.NoError(t, err)
	assert.Empty(t, none)

	assert.Equal(t, 0, r.Remaining())
}

func TestWriter_LittleEndian(t *testing.T) {
	w := NewWriter(4)
	w.WriteInt32(0x01020304)
	assert.Equal(t, []byte{0x04, 0x03, 0x02, 0x01}, w.Bytes())
}

func TestReader_Truncated(t *testing.T) {
	long := NewWriter(0)
	long.WriteString("abcdef")
	strPayload := long.Bytes()[:4]

	tests := []struct {
		name string
		data []byte
		read func(r *Reader) error
	}{
		{"uint8 on empty", nil, func(r *Reader) error { _, err := r.ReadUint8(); return err }},
		{"int32 short", []byte{1, 2, 3}, func(r *Reader) error { _, err := r.ReadInt32(); return err }},
		{"int64 short", []byte{1, 2, 3, 4, 5, 6, 7}, func(r *Reader) error { _, err := r.ReadInt64(); return err }},
		{"string without prefix", nil, func(r *Reader) error { _, err := r.ReadString(); return err }},
		{"string body short", strPayload, func(r *Reader) error { _, err := r.ReadString(); return err }},
		{"bytes short", []byte{9}, func(r *Reader) error { _, err := r.ReadBytes(2); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.read(NewReader(tt.data))
			assert.ErrorIs(t, err, ErrTruncated)
		})
	}
}

func TestReader_NegativeLength(t *testing.T) {
	r := NewReader([]byte{1, 2})
	_, err := r.ReadBytes(-1)
	assert.ErrorIs(t, err, ErrInvalidLength)
	assert.Equal(t, 2, r.Remaining(), "failed read must not consume input")
}

func TestReader_FailedReadDoesNotAdvance(t *testing.T) {
	r := NewReader([]byte{1, 2, 3})
	_, err := r.ReadInt32()
	require.Error(t, err)

	b, err := r.ReadUint8()
	require.NoError(t, err)
	assert.Equal(t, uint8(1), b)
}
