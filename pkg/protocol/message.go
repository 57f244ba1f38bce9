package protocol

import (
	"errors"
	"fmt"
)

// Tag identifies the message carried by a frame payload.
type Tag uint8

const (
	TagAnnounce Tag = iota
	TagStart
	TagStop
	TagPause
	TagChunk
)

// ChunkHeaderSize is the encoded size of a CHUNK message without its data.
const ChunkHeaderSize = 1 + 4 + 8 + 4

var (
	// ErrUnknownTag is returned by Decode for a tag outside the known set.
	ErrUnknownTag = errors.New("unknown message tag")
	// ErrTrailingBytes is returned by Decode when a message is followed by extra data.
	ErrTrailingBytes = errors.New("trailing bytes after message")
)

func (t Tag) String() string {
	switch t {
	case TagAnnounce:
		return "ANNOUNCE"
	case TagStart:
		return "START"
	case TagStop:
		return "STOP"
	case TagPause:
		return "PAUSE"
	case TagChunk:
		return "CHUNK"
	default:
		return fmt.Sprintf("Tag(%d)", uint8(t))
	}
}

// Message is implemented by every frame body.
type Message interface {
	Tag() Tag
	TransferID() int32
	encode(w *Writer)
}

// Announce tells the peer a file is about to be offered.
type Announce struct {
	ID       int32
	Length   int64
	FileName string
}

// Start asks the uploading peer to begin streaming chunks.
type Start struct {
	ID int32
}

// Stop tears down a transfer on the receiving side.
type Stop struct {
	ID int32
}

// Pause toggles the pause state of a transfer.
type Pause struct {
	ID int32
}

// Chunk carries Data located at Offset in the file.
type Chunk struct {
	ID     int32
	Offset int64
	Data   []byte
}

func (Announce) Tag() Tag { return TagAnnounce }
func (Start) Tag() Tag    { return TagStart }
func (Stop) Tag() Tag     { return TagStop }
func (Pause) Tag() Tag    { return TagPause }
func (Chunk) Tag() Tag    { return TagChunk }

func (m Announce) TransferID() int32 { return m.ID }
func (m Start) TransferID() int32    { return m.ID }
func (m Stop) TransferID() int32     { return m.ID }
func (m Pause) TransferID() int32    { return m.ID }
func (m Chunk) TransferID() int32    { return m.ID }

func (m Announce) encode(w *Writer) {
	w.WriteInt32(m.ID)
	w.WriteInt64(m.Length)
	w.WriteString(m.FileName)
}

func (m Start) encode(w *Writer) { w.WriteInt32(m.ID) }
func (m Stop) encode(w *Writer)  { w.WriteInt32(m.ID) }
func (m Pause) encode(w *Writer) { w.WriteInt32(m.ID) }

func (m Chunk) encode(w *Writer) {
	w.WriteInt32(m.ID)
	w.WriteInt64(m.Offset)
	w.WriteInt32(int32(len(m.Data)))
	w.WriteBytes(m.Data)
}

// Encode serializes m into a payload starting with its tag.
func Encode(m Message) []byte {
	hint := 1 + 4
	switch v := m.(type) {
	case Announce:
		hint += 8 + len(v.FileName) + 10
	case *Announce:
		hint += 8 + len(v.FileName) + 10
	case Chunk:
		hint = ChunkHeaderSize + len(v.Data)
	case *Chunk:
		hint = ChunkHeaderSize + len(v.Data)
	}
	w := NewWriter(hint)
	w.WriteUint8(uint8(m.Tag()))
	m.encode(w)
	return w.Bytes()
}

// Decode parses a payload produced by Encode. Messages are returned by value.
func Decode(payload []byte) (Message, error) {
	r := NewReader(payload)
	raw, err := r.ReadUint8()
	if err != nil {
		return nil, fmt.Errorf("decode tag: %w", err)
	}

	tag := Tag(raw)
	var msg Message
	switch tag {
	case TagAnnounce:
		msg, err = decodeAnnounce(r)
	case TagStart, TagStop, TagPause:
		var id int32
		if id, err = r.ReadInt32(); err != nil {
			break
		}
		switch tag {
		case TagStart:
			msg = Start{ID: id}
		case TagStop:
			msg = Stop{ID: id}
		default:
			msg = Pause{ID: id}
		}
	case TagChunk:
		msg, err = decodeChunk(r)
	default:
		return nil, fmt.Errorf("decode: %w: %d", ErrUnknownTag, raw)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", tag, err)
	}
	if n := r.Remaining(); n > 0 {
		return nil, fmt.Errorf("decode %s: %d bytes left over: %w", tag, n, ErrTrailingBytes)
	}
	return msg, nil
}

func decodeAnnounce(r *Reader) (Announce, error) {
	var m Announce
	var err error
	if m.ID, err = r.ReadInt32(); err != nil {
		return m, err
	}
	if m.Length, err = r.ReadInt64(); err != nil {
		return m, err
	}
	if m.Length < 0 {
		return m, fmt.Errorf("file length %d: %w", m.Length, ErrInvalidLength)
	}
	m.FileName, err = r.ReadString()
	return m, err
}

func decodeChunk(r *Reader) (Chunk, error) {
	var m Chunk
	var size int32
	var err error
	if m.ID, err = r.ReadInt32(); err != nil {
		return m, err
	}
	if m.Offset, err = r.ReadInt64(); err != nil {
		return m, err
	}
	if size, err = r.ReadInt32(); err != nil {
		return m, err
	}
	m.Data, err = r.ReadBytes(int(size))
	return m, err
}
