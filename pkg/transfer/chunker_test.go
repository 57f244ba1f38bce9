package transfer

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestFile writes content to a file in a per-test temp dir.
func setupTestFile(tb testing.TB, content []byte) string {
	tb.Helper()

	filePath := filepath.Join(tb.TempDir(), "test-file.bin")
	if err := os.WriteFile(filePath, content, 0o644); err != nil {
		tb.Fatalf("Failed to create test file: %v", err)
	}
	return filePath
}

func patterned(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

func chunkConfig(size int32) *TransferConfig {
	cfg := DefaultTransferConfig()
	cfg.ChunkSize = size
	return cfg
}

func TestChunker_ReadAt(t *testing.T) {
	content := patterned(16384)
	r := bytes.NewReader(content)

	chunker, err := NewChunker(r, int64(len(content)), DefaultTransferConfig())
	require.NoError(t, err)

	first, err := chunker.ReadAt(0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), first.Offset)
	assert.Equal(t, int32(8175), first.Size)
	assert.False(t, first.IsLast)
	assert.Equal(t, content[:8175], first.Data)

	second, err := chunker.ReadAt(8175)
	require.NoError(t, err)
	assert.Equal(t, int32(8175), second.Size)
	assert.False(t, second.IsLast)

	third, err := chunker.ReadAt(16350)
	require.NoError(t, err)
	assert.Equal(t, int32(34), third.Size)
	assert.True(t, third.IsLast)
	assert.Equal(t, content[16350:], third.Data)

	_, err = chunker.ReadAt(16384)
	assert.ErrorIs(t, err, io.EOF)
}

func TestChunker_InvalidSize(t *testing.T) {
	_, err := NewChunker(bytes.NewReader(nil), 0, chunkConfig(MinChunkSize-1))
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
	_, err = NewChunker(bytes.NewReader(nil), 0, chunkConfig(MaxChunkSize+1))
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	// Bounds come from the config, not the package defaults.
	narrow := chunkConfig(2048)
	narrow.MaxChunkSize = 1024
	_, err = NewChunker(bytes.NewReader(nil), 0, narrow)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestChunker_ShortFile(t *testing.T) {
	chunker, err := NewChunker(bytes.NewReader([]byte("abc")), 100, DefaultTransferConfig())
	require.NoError(t, err)

	chunk, err := chunker.ReadAt(0)
	require.NoError(t, err)
	assert.Equal(t, int32(3), chunk.Size)

	_, err = chunker.ReadAt(3)
	assert.ErrorIs(t, err, ErrShortFile)
}

func TestChunker_BufferIsPrivate(t *testing.T) {
	a, err := NewChunker(bytes.NewReader(bytes.Repeat([]byte{'a'}, 1024)), 1024, chunkConfig(MinChunkSize))
	require.NoError(t, err)
	b, err := NewChunker(bytes.NewReader(bytes.Repeat([]byte{'b'}, 1024)), 1024, chunkConfig(MinChunkSize))
	require.NoError(t, err)

	ca, err := a.ReadAt(0)
	require.NoError(t, err)
	_, err = b.ReadAt(0)
	require.NoError(t, err)

	assert.Equal(t, bytes.Repeat([]byte{'a'}, MinChunkSize), ca.Data)
}
