package transfer

import (
	"errors"
	"fmt"
)

// Direction tells whether the local side reads or writes the file.
type Direction uint8

const (
	Upload Direction = iota
	Download
)

func (d Direction) String() string {
	switch d {
	case Upload:
		return "upload"
	case Download:
		return "download"
	default:
		return "unknown"
	}
}

// State represents the lifecycle position of a Queue.
type State int

const (
	// StatePending is an announced upload waiting for the peer's START.
	StatePending State = iota
	// StateRunning means chunks are flowing.
	StateRunning
	// StatePaused means the transfer is suspended and keeps its position.
	StatePaused
	// StateStopped means the transfer was torn down before finishing.
	StateStopped
	// StateComplete means every byte was transferred.
	StateComplete
)

// String returns a human-readable string representation of the state
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	case StateComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// IsTerminal returns true for stopped and complete.
func (s State) IsTerminal() bool {
	return s == StateStopped || s == StateComplete
}

// CanTransitionTo checks if a state transition is valid. A pending upload
// that was paused before START starts out paused. Chunks already in flight
// may complete a paused download.
func (s State) CanTransitionTo(next State) bool {
	if s.IsTerminal() {
		return false
	}

	switch s {
	case StatePending:
		return next == StateRunning || next == StatePaused || next == StateStopped
	case StateRunning:
		return next == StatePaused || next == StateComplete || next == StateStopped
	case StatePaused:
		return next == StateRunning || next == StateComplete || next == StateStopped
	default:
		return false
	}
}

var (
	// ErrTransferNotFound is returned when a requested transfer doesn't exist
	ErrTransferNotFound = errors.New("transfer not found")

	// ErrInvalidStateTransition is returned when an invalid state transition is attempted
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrTransferAlreadyExists is returned when an id is already registered
	ErrTransferAlreadyExists = errors.New("transfer already exists")

	// ErrTransferCancelled is returned by a sender that was stopped
	ErrTransferCancelled = errors.New("transfer cancelled")

	// ErrIsDir is returned when a directory is offered as an upload
	ErrIsDir = errors.New("path is a directory")

	// ErrOutOfRange is returned for chunks that fall outside the file
	ErrOutOfRange = errors.New("chunk outside file bounds")

	// ErrWrongDirection is returned when an operation does not apply to the queue's direction
	ErrWrongDirection = errors.New("operation not valid for transfer direction")
)

// QueueError reports a failure to create a Queue.
type QueueError struct {
	Op   string
	Path string
	Err  error
}

func (e *QueueError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *QueueError) Unwrap() error {
	return e.Err
}

// Percent returns transferred*100/length truncated toward zero.
// An empty file is complete by definition.
func Percent(transferred, length int64) int {
	if length <= 0 {
		return 100
	}
	if transferred >= length {
		return 100
	}
	if transferred <= 0 {
		return 0
	}
	return int(transferred * 100 / length)
}

// OverallProgress averages progress values, truncated. It is 0 for none.
func OverallProgress(progress []int) int {
	if len(progress) == 0 {
		return 0
	}
	sum := 0
	for _, p := range progress {
		sum += p
	}
	return sum / len(progress)
}
