package appevents

import "github.com/rescp17/filesTransfer/pkg/transfer"

// AppEvent is a marker interface for events sent from the UI to the app
// controller. Only types embedding Event satisfy it.
type AppEvent interface {
	isAppEvent()
}

// Event is embedded by every UI to app event.
type Event struct{}

func (Event) isAppEvent() {}

// --- App Events (from UI to App) ---

// StartTransferEvent asks the controller to start a pending transfer.
type StartTransferEvent struct {
	Event
	ID int32
}

// PauseTransferEvent toggles pause on a running or paused transfer.
type PauseTransferEvent struct {
	Event
	ID int32
}

// StopTransferEvent stops a transfer and tells the peer.
type StopTransferEvent struct {
	Event
	ID int32
}

var (
	_ AppEvent = StartTransferEvent{}
	_ AppEvent = PauseTransferEvent{}
	_ AppEvent = StopTransferEvent{}
)

// --- UI Messages (from App to UI) ---

// TransferRow describes a transfer for display.
type TransferRow struct {
	ID        int32
	Direction transfer.Direction
	FileName  string
	Length    int64
	MimeType  string
	State     transfer.State
}

// ErrorMsg carries a failure the user should see.
type ErrorMsg struct {
	Err error
}

// StatusMsg is a one-line status update.
type StatusMsg struct {
	Message string
}

// PeerConnectedMsg is sent when a session starts.
type PeerConnectedMsg struct {
	Remote string
}

// PeerDisconnectedMsg is sent when the session ends. Err is nil after a local close.
type PeerDisconnectedMsg struct {
	Err error
}

type TransferQueuedMsg struct {
	Transfer TransferRow
}

type TransferProgressMsg struct {
	ID       int32
	Progress int
}

// TransferPausedMsg reports a pause toggle, local or requested by the peer.
type TransferPausedMsg struct {
	ID     int32
	Paused bool
}

// TransferFinishedMsg reports a transfer leaving the session, complete or stopped.
type TransferFinishedMsg struct {
	ID     int32
	State  transfer.State
	Remote bool
}
