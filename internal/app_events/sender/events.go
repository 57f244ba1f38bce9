package sender

import (
	"time"

	appevents "github.com/rescp17/filesTransfer/internal/app_events"
	"github.com/rescp17/filesTransfer/pkg/discovery"
	"github.com/rescp17/filesTransfer/pkg/transfer"
)

// --- App Events (from UI to App) ---

// SendFilesMsg asks the controller to send Paths. An empty Host means the
// receiver is found over mDNS.
type SendFilesMsg struct {
	appevents.Event
	Host  string
	Port  int
	Paths []string
}

var _ appevents.AppEvent = SendFilesMsg{}

// --- UI Messages (from App to UI) ---

// ReceiverFoundMsg reports the receiver picked by discovery.
type ReceiverFoundMsg struct {
	Service discovery.ServiceInfo
}

// FileResult is the outcome of one upload.
type FileResult struct {
	ID       int32
	FileName string
	Length   int64
	State    transfer.State
	Err      error
}

// Summary describes a finished send.
type Summary struct {
	Receiver string
	Files    []FileResult
	Elapsed  time.Duration
}

// Complete reports whether every file reached the complete state.
func (s Summary) Complete() bool {
	for _, f := range s.Files {
		if f.State != transfer.StateComplete {
			return false
		}
	}
	return len(s.Files) > 0
}

// TransferCompleteMsg is sent once the send is over. Err is set when the
// send failed or the session ended before every upload finished.
type TransferCompleteMsg struct {
	Summary Summary
	Err     error
}
