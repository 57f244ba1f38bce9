package session

import "github.com/rescp17/filesTransfer/pkg/transfer"

// Event is a marker interface for notifications emitted by a Session.
// Only types from this package satisfy it.
type Event interface {
	isSessionEvent()
}

type event struct{}

func (event) isSessionEvent() {}

// QueuedEvent reports a newly registered queue, local upload or announced download.
type QueuedEvent struct {
	event
	Queue *transfer.Queue
}

// ProgressChangedEvent is raised at most once per percentage value.
type ProgressChangedEvent struct {
	event
	Queue    *transfer.Queue
	Progress int
}

// StoppedEvent reports a queue removed before completion.
type StoppedEvent struct {
	event
	Queue *transfer.Queue
	// Remote is true when the peer asked for the stop.
	Remote bool
}

// CompleteEvent reports a queue whose every byte was transferred.
type CompleteEvent struct {
	event
	Queue *transfer.Queue
}

// PausedEvent reports a pause toggle requested by the peer.
type PausedEvent struct {
	event
	Queue  *transfer.Queue
	Paused bool
}

// ErrorEvent reports a failure tied to one transfer. Queue may be nil when
// the transfer never got a queue, e.g. the announced file could not be created.
type ErrorEvent struct {
	event
	ID    int32
	Queue *transfer.Queue
	Err   error
}

// DisconnectedEvent is the last event of a Session. Err is nil after Close.
type DisconnectedEvent struct {
	event
	Err error
}
