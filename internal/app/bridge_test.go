package app

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	appevents "github.com/rescp17/filesTransfer/internal/app_events"
	"github.com/rescp17/filesTransfer/internal/history"
	"github.com/rescp17/filesTransfer/pkg/session"
	"github.com/rescp17/filesTransfer/pkg/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRecorder struct {
	mu      sync.Mutex
	records []history.Record
}

func (m *memoryRecorder) Record(ctx context.Context, r *history.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, *r)
	return nil
}

func (m *memoryRecorder) all() []history.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]history.Record(nil), m.records...)
}

func collect(ch <-chan tea.Msg, until func(tea.Msg) bool) []tea.Msg {
	var msgs []tea.Msg
	deadline := time.After(10 * time.Second)
	for {
		select {
		case msg := <-ch:
			msgs = append(msgs, msg)
			if until(msg) {
				return msgs
			}
		case <-deadline:
			return msgs
		}
	}
}

func TestBridge_PumpForwardsAndRecords(t *testing.T) {
	uploader, downloader := pipePair(t)
	rec := &memoryRecorder{}
	b := NewBridge(128, rec)

	m := NewStateManager()
	active, err := m.Attach(downloader, "uploader")
	require.NoError(t, err)

	pumpErr := make(chan error, 1)
	go func() {
		pumpErr <- b.Pump(t.Context(), active, func(ev session.Event) bool {
			if q, ok := ev.(session.QueuedEvent); ok {
				downloader.StartTransfer(q.Queue.ID)
			}
			return false
		})
	}()
	// The uploader's own events are not under test.
	go func() {
		for range uploader.Events() {
		}
	}()

	src := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(src, []byte("plain text notes for the bridge"), 0o644))
	_, err = uploader.QueueUpload(src)
	require.NoError(t, err)

	msgs := collect(b.UIMessages(), func(msg tea.Msg) bool {
		_, ok := msg.(appevents.TransferFinishedMsg)
		return ok
	})

	var queued *appevents.TransferQueuedMsg
	var finished *appevents.TransferFinishedMsg
	for _, msg := range msgs {
		switch m := msg.(type) {
		case appevents.TransferQueuedMsg:
			queued = &m
		case appevents.TransferFinishedMsg:
			finished = &m
		}
	}
	require.NotNil(t, queued)
	require.NotNil(t, finished)
	assert.Equal(t, "notes.txt", queued.Transfer.FileName)
	assert.Equal(t, transfer.StateComplete, finished.State)

	// The record is written off the event stream once the checksum is done.
	require.Eventually(t, func() bool { return len(rec.all()) == 1 }, 10*time.Second, 10*time.Millisecond)
	records := rec.all()
	assert.Equal(t, active.ID, records[0].SessionID)
	assert.Equal(t, "uploader", records[0].Peer)
	assert.Equal(t, "complete", records[0].State)
	assert.Contains(t, records[0].MimeType, "text/plain")
	assert.Len(t, records[0].Checksum, 64)

	uploader.Close()
	select {
	case err := <-pumpErr:
		assert.ErrorIs(t, err, session.ErrPeerClosed)
	case <-time.After(10 * time.Second):
		t.Fatal("Pump did not return after disconnect")
	}
}

func TestBridge_PumpStopsOnCancel(t *testing.T) {
	_, s := pipePair(t)
	b := NewBridge(8, nil)
	active := &ActiveSession{ID: "x", Session: s}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := b.Pump(ctx, active, nil)
	assert.ErrorIs(t, err, context.Canceled)

	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session not closed")
	}
}

type blockingRecorder struct {
	memoryRecorder
	release chan struct{}
}

func (b *blockingRecorder) Record(ctx context.Context, r *history.Record) error {
	<-b.release
	return b.memoryRecorder.Record(ctx, r)
}

func TestBridge_SlowRecorderDoesNotStallEvents(t *testing.T) {
	uploader, downloader := pipePair(t)
	rec := &blockingRecorder{release: make(chan struct{})}
	b := NewBridge(128, rec)
	active := &ActiveSession{ID: "slow", Session: downloader, Peer: "uploader"}

	pumpErr := make(chan error, 1)
	go func() {
		pumpErr <- b.Pump(t.Context(), active, func(ev session.Event) bool {
			if q, ok := ev.(session.QueuedEvent); ok {
				downloader.StartTransfer(q.Queue.ID)
			}
			return false
		})
	}()
	go func() {
		for range uploader.Events() {
		}
	}()

	dir := t.TempDir()
	for _, name := range []string{"one.txt", "two.txt"} {
		src := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(src, []byte(name), 0o644))
		_, err := uploader.QueueUpload(src)
		require.NoError(t, err)
	}

	finished := 0
	collect(b.UIMessages(), func(msg tea.Msg) bool {
		if _, ok := msg.(appevents.TransferFinishedMsg); ok {
			finished++
		}
		return finished == 2
	})
	assert.Equal(t, 2, finished, "both transfers finish while history is blocked")
	assert.Empty(t, rec.all())

	uploader.Close()
	select {
	case <-pumpErr:
		t.Fatal("Pump returned before history was written")
	case <-time.After(100 * time.Millisecond):
	}

	close(rec.release)
	select {
	case err := <-pumpErr:
		assert.ErrorIs(t, err, session.ErrPeerClosed)
	case <-time.After(10 * time.Second):
		t.Fatal("Pump did not return after disconnect")
	}
	assert.Len(t, rec.all(), 2)
}
