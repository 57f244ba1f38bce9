package transfer

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// Chunk is one slice of an upload read from disk.
type Chunk struct {
	Offset int64
	Data   []byte
	Size   int32
	IsLast bool
}

// Chunker reads an upload at explicit offsets into its own buffer.
// Each sender owns exactly one Chunker, so buffers are never shared.
type Chunker struct {
	file      io.ReaderAt
	chunkSize int32
	length    int64
	buffer    []byte
}

var ErrShortFile = errors.New("file is shorter than announced")

// NewChunker reads length bytes of file in cfg.ChunkSize pieces.
func NewChunker(file io.ReaderAt, length int64, cfg *TransferConfig) (*Chunker, error) {
	chunkSize := cfg.ChunkSize
	if !cfg.IsValidChunkSize(chunkSize) {
		return nil, fmt.Errorf("chunk size %d not in [%d, %d]: %w",
			chunkSize, cfg.MinChunkSize, cfg.MaxChunkSize, ErrInvalidConfiguration)
	}
	return &Chunker{
		file:      file,
		chunkSize: chunkSize,
		length:    length,
		buffer:    make([]byte, chunkSize),
	}, nil
}

// ReadAt returns the chunk starting at offset. Chunk.Data aliases the
// chunker's buffer and is only valid until the next call.
func (c *Chunker) ReadAt(offset int64) (*Chunk, error) {
	if offset >= c.length {
		return nil, io.EOF
	}

	want := int64(c.chunkSize)
	if rest := c.length - offset; rest < want {
		want = rest
	}

	n, err := c.file.ReadAt(c.buffer[:want], offset)
	if n == 0 {
		if err == nil || errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read at %d: %w", offset, ErrShortFile)
		}
		return nil, err
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	return &Chunk{
		Offset: offset,
		Data:   c.buffer[:n],
		Size:   int32(n),
		IsLast: offset+int64(n) >= c.length,
	}, nil
}

// openUpload opens path for reading and reports its size.
func openUpload(path string) (*os.File, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, 0, err
	}
	if info.IsDir() {
		file.Close()
		return nil, 0, ErrIsDir
	}
	return file, info.Size(), nil
}
