package transfer

import (
	"errors"
	"fmt"
	"time"

	"github.com/rescp17/filesTransfer/pkg/protocol"
)

// TransferConfig holds the tunables shared by queues and sessions.
type TransferConfig struct {
	// Chunk configuration
	ChunkSize    int32 `json:"chunk_size"`     // Bytes read per CHUNK frame
	MaxChunkSize int32 `json:"max_chunk_size"` // Upper bound accepted for ChunkSize
	MinChunkSize int32 `json:"min_chunk_size"` // Lower bound accepted for ChunkSize

	// PaceInterval is the pause between two chunks of the same upload.
	PaceInterval time.Duration `json:"pace_interval"`

	// Connection settings. Zero disables the corresponding deadline.
	DialTimeout  time.Duration `json:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	MaxFrameSize int           `json:"max_frame_size"`

	// EventBufferSize bounds the events a listener may fall behind by
	// before progress events are dropped.
	EventBufferSize int `json:"event_buffer_size"`
}

const (
	// DefaultChunkSize keeps a full CHUNK frame payload at 8 KiB.
	DefaultChunkSize = 8192 - protocol.ChunkHeaderSize
	MaxChunkSize     = 256 * 1024
	MinChunkSize     = 512

	DefaultPaceInterval = time.Millisecond
)

var ErrInvalidConfiguration = errors.New("invalid configuration")

// DefaultTransferConfig returns a configuration with sensible defaults
func DefaultTransferConfig() *TransferConfig {
	return &TransferConfig{
		ChunkSize:    DefaultChunkSize,
		MaxChunkSize: MaxChunkSize,
		MinChunkSize: MinChunkSize,

		PaceInterval: DefaultPaceInterval,

		DialTimeout:  10 * time.Second,
		ReadTimeout:  0,
		WriteTimeout: 30 * time.Second,
		MaxFrameSize: protocol.DefaultMaxFrameSize,

		EventBufferSize: 100,
	}
}

// Validate checks if the configuration values are valid
func (tc *TransferConfig) Validate() error {
	if err := tc.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	return nil
}

func (tc *TransferConfig) validate() error {
	if tc.ChunkSize <= 0 {
		return errors.New("chunk_size must be positive")
	}
	if tc.MinChunkSize <= 0 {
		return errors.New("min_chunk_size must be positive")
	}
	if tc.MaxChunkSize <= 0 {
		return errors.New("max_chunk_size must be positive")
	}
	if tc.MinChunkSize > tc.MaxChunkSize {
		return errors.New("min_chunk_size cannot be greater than max_chunk_size")
	}
	if !tc.IsValidChunkSize(tc.ChunkSize) {
		return fmt.Errorf("chunk_size must be between %d and %d", tc.MinChunkSize, tc.MaxChunkSize)
	}

	if tc.PaceInterval < 0 {
		return errors.New("pace_interval cannot be negative")
	}
	if tc.DialTimeout < 0 || tc.ReadTimeout < 0 || tc.WriteTimeout < 0 {
		return errors.New("timeouts cannot be negative")
	}
	if tc.MaxFrameSize < int(tc.ChunkSize)+protocol.ChunkHeaderSize {
		return fmt.Errorf("max_frame_size must hold a full chunk frame (%d bytes)", int(tc.ChunkSize)+protocol.ChunkHeaderSize)
	}

	if tc.EventBufferSize <= 0 {
		return errors.New("event_buffer_size must be positive")
	}
	return nil
}

// IsValidChunkSize checks if a chunk size is within acceptable bounds
func (tc *TransferConfig) IsValidChunkSize(chunkSize int32) bool {
	return chunkSize >= tc.MinChunkSize && chunkSize <= tc.MaxChunkSize
}
