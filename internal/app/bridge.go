package app

import (
	"context"
	"fmt"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	appevents "github.com/rescp17/filesTransfer/internal/app_events"
	"github.com/rescp17/filesTransfer/internal/history"
	"github.com/rescp17/filesTransfer/pkg/fileInfo"
	"github.com/rescp17/filesTransfer/pkg/session"
	"github.com/rescp17/filesTransfer/pkg/transfer"
	"github.com/sirupsen/logrus"
)

// Recorder stores finished transfers. *history.Store implements it.
type Recorder interface {
	Record(ctx context.Context, r *history.Record) error
}

// Bridge turns session events into UI messages and history records.
type Bridge struct {
	uiMessages chan tea.Msg
	recorder   Recorder
	records    sync.WaitGroup
}

// NewBridge creates a bridge with a UI channel of the given capacity. A nil
// recorder disables history.
func NewBridge(buffer int, recorder Recorder) *Bridge {
	return &Bridge{
		uiMessages: make(chan tea.Msg, buffer),
		recorder:   recorder,
	}
}

// UIMessages returns the channel for the UI to listen on for updates.
func (b *Bridge) UIMessages() <-chan tea.Msg {
	return b.uiMessages
}

// Notify delivers msg to the UI, giving up when ctx ends.
func (b *Bridge) Notify(ctx context.Context, msg tea.Msg) {
	select {
	case b.uiMessages <- msg:
	case <-ctx.Done():
	}
}

// SendAndLogError both logs an error and sends it to the UI.
func (b *Bridge) SendAndLogError(ctx context.Context, baseMessage string, err error) {
	logrus.WithFields(logrus.Fields{
		"function": "SendAndLogError",
		"error":    err.Error(),
	}).Error(baseMessage)
	b.Notify(ctx, appevents.ErrorMsg{Err: fmt.Errorf("%s: %w", baseMessage, err)})
}

// Pump forwards the events of active until the session ends, ctx is
// cancelled, or onEvent returns true. It returns the disconnect cause, nil
// after a local close or when onEvent asked to stop. History records still
// being written are flushed before it returns.
func (b *Bridge) Pump(ctx context.Context, active *ActiveSession, onEvent func(session.Event) bool) error {
	s := active.Session
	defer b.records.Wait()

	for {
		select {
		case <-ctx.Done():
			s.Close()
			go drain(s)
			return ctx.Err()
		case ev, ok := <-s.Events():
			if !ok {
				b.Notify(ctx, appevents.PeerDisconnectedMsg{Err: s.Err()})
				return s.Err()
			}
			b.forward(ctx, active, ev)
			if d, ok := ev.(session.DisconnectedEvent); ok {
				return d.Err
			}
			if onEvent != nil && onEvent(ev) {
				go drain(s)
				return nil
			}
		}
	}
}

// drain keeps reading so the session can deliver its last events.
func drain(s *session.Session) {
	for range s.Events() {
	}
}

func (b *Bridge) forward(ctx context.Context, active *ActiveSession, ev session.Event) {
	switch e := ev.(type) {
	case session.QueuedEvent:
		b.Notify(ctx, appevents.TransferQueuedMsg{Transfer: transferRow(e.Queue)})
	case session.ProgressChangedEvent:
		b.Notify(ctx, appevents.TransferProgressMsg{ID: e.Queue.ID, Progress: e.Progress})
	case session.PausedEvent:
		b.Notify(ctx, appevents.TransferPausedMsg{ID: e.Queue.ID, Paused: e.Paused})
	case session.CompleteEvent:
		b.record(ctx, active, e.Queue)
		b.Notify(ctx, appevents.TransferFinishedMsg{ID: e.Queue.ID, State: transfer.StateComplete})
	case session.StoppedEvent:
		b.record(ctx, active, e.Queue)
		b.Notify(ctx, appevents.TransferFinishedMsg{ID: e.Queue.ID, State: transfer.StateStopped, Remote: e.Remote})
	case session.ErrorEvent:
		b.Notify(ctx, appevents.ErrorMsg{Err: fmt.Errorf("transfer %d: %w", e.ID, e.Err)})
	case session.DisconnectedEvent:
		b.Notify(ctx, appevents.PeerDisconnectedMsg{Err: e.Err})
	}
}

func transferRow(q *transfer.Queue) appevents.TransferRow {
	row := appevents.TransferRow{
		ID:        q.ID,
		Direction: q.Direction,
		FileName:  q.FileName,
		Length:    q.Length,
		State:     q.State(),
	}
	if q.Direction == transfer.Upload {
		row.MimeType = fileInfo.DetectMimeType(q.Path)
	}
	return row
}

func (b *Bridge) record(ctx context.Context, active *ActiveSession, q *transfer.Queue) {
	if b.recorder == nil {
		return
	}
	snap := q.Snapshot()
	r := &history.Record{
		SessionID:   active.ID,
		TransferID:  snap.ID,
		FileName:    snap.FileName,
		Path:        snap.Path,
		Direction:   snap.Direction.String(),
		Length:      snap.Length,
		Transferred: snap.Transferred,
		State:       snap.State.String(),
		MimeType:    fileInfo.DetectMimeType(snap.Path),
		Peer:        active.Peer,
	}

	// Hashing a large download must not hold up the event stream.
	ctx = context.WithoutCancel(ctx)
	b.records.Add(1)
	go func() {
		defer b.records.Done()
		if snap.State == transfer.StateComplete {
			if sum, err := fileInfo.FileSHA256(snap.Path); err == nil {
				r.Checksum = sum
			}
		}
		if err := b.recorder.Record(ctx, r); err != nil {
			logrus.WithFields(logrus.Fields{
				"function":    "Bridge.record",
				"transfer_id": snap.ID,
				"error":       err.Error(),
			}).Warn("Failed to record transfer history")
		}
	}()
}
