package ui

import (
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	appevents "github.com/rescp17/filesTransfer/internal/app_events"
	receiverEvents "github.com/rescp17/filesTransfer/internal/app_events/receiver"
	senderEvents "github.com/rescp17/filesTransfer/internal/app_events/sender"
	"github.com/rescp17/filesTransfer/internal/history"
	"github.com/rescp17/filesTransfer/pkg/discovery"
	"github.com/rescp17/filesTransfer/pkg/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeController struct {
	ui      chan tea.Msg
	events  chan appevents.AppEvent
	overall int
}

func newFakeController() *fakeController {
	return &fakeController{
		ui:     make(chan tea.Msg, 16),
		events: make(chan appevents.AppEvent, 16),
	}
}

func (f *fakeController) UIMessages() <-chan tea.Msg { return f.ui }

func (f *fakeController) AppEvents() chan<- appevents.AppEvent { return f.events }

func (f *fakeController) OverallProgress() int { return f.overall }

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	require.True(t, ok)
	return model, cmd
}

func keyPress(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func queued(id int32, name string, dir transfer.Direction, state transfer.State) appevents.TransferQueuedMsg {
	return appevents.TransferQueuedMsg{Transfer: appevents.TransferRow{
		ID: id, Direction: dir, FileName: name, Length: 16384, State: state,
	}}
}

func TestModel_TracksTransfers(t *testing.T) {
	m := NewModel(Receiver, newFakeController())

	m, cmd := update(t, m, receiverEvents.ListeningMsg{Port: 8975})
	assert.NotNil(t, cmd, "listener re-armed after an app message")
	assert.Contains(t, m.status, "8975")

	m, _ = update(t, m, queued(7, "a.bin", transfer.Download, transfer.StateRunning))
	m, _ = update(t, m, appevents.TransferProgressMsg{ID: 7, Progress: 49})
	require.Len(t, m.rows, 1)
	assert.Equal(t, 49, m.rows[0].progress)

	m, _ = update(t, m, appevents.TransferPausedMsg{ID: 7, Paused: true})
	assert.Equal(t, transfer.StatePaused, m.rows[0].state)
	m, _ = update(t, m, appevents.TransferPausedMsg{ID: 7, Paused: false})
	assert.Equal(t, transfer.StateRunning, m.rows[0].state)

	m, _ = update(t, m, appevents.TransferFinishedMsg{ID: 7, State: transfer.StateComplete})
	assert.Equal(t, transfer.StateComplete, m.rows[0].state)
	assert.Equal(t, 100, m.rows[0].progress)

	view := m.View()
	assert.Contains(t, view, "a.bin")
	assert.Contains(t, view, "complete")
}

func TestModel_UploadLeavesPendingOnProgress(t *testing.T) {
	m := NewModel(Sender, newFakeController())
	m, _ = update(t, m, queued(1, "up.bin", transfer.Upload, transfer.StatePending))
	m, _ = update(t, m, appevents.TransferProgressMsg{ID: 1, Progress: 3})
	assert.Equal(t, transfer.StateRunning, m.rows[0].state)
}

func TestModel_KeysSendCommands(t *testing.T) {
	ctrl := newFakeController()
	m := NewModel(Receiver, ctrl)
	m, _ = update(t, m, queued(1, "first", transfer.Download, transfer.StateRunning))
	m, _ = update(t, m, queued(2, "second", transfer.Download, transfer.StateRunning))

	m, _ = update(t, m, keyPress('j'))
	assert.Equal(t, 1, m.cursor)

	m, cmd := update(t, m, keyPress('p'))
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, appevents.PauseTransferEvent{ID: 2}, <-ctrl.events)

	m, cmd = update(t, m, keyPress('s'))
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, appevents.StopTransferEvent{ID: 2}, <-ctrl.events)

	m, _ = update(t, m, keyPress('k'))
	_, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, appevents.StartTransferEvent{ID: 1}, <-ctrl.events)
}

func TestModel_ClearFinished(t *testing.T) {
	m := NewModel(Receiver, newFakeController())
	m, _ = update(t, m, queued(1, "done", transfer.Download, transfer.StateRunning))
	m, _ = update(t, m, queued(2, "busy", transfer.Download, transfer.StateRunning))
	m, _ = update(t, m, queued(3, "halted", transfer.Download, transfer.StateRunning))
	m, _ = update(t, m, appevents.TransferFinishedMsg{ID: 1, State: transfer.StateComplete})
	m, _ = update(t, m, appevents.TransferFinishedMsg{ID: 3, State: transfer.StateStopped, Remote: true})
	m.cursor = 2

	m, _ = update(t, m, keyPress('c'))
	require.Len(t, m.rows, 1)
	assert.Equal(t, "busy", m.rows[0].info.FileName)
	assert.Equal(t, 0, m.cursor)

	// Finished rows ignore commands.
	_, cmd := update(t, m, keyPress('s'))
	assert.NotNil(t, cmd, "the remaining row is still running")
}

func TestModel_OverallTick(t *testing.T) {
	ctrl := newFakeController()
	ctrl.overall = 40
	m := NewModel(Receiver, ctrl)

	m, cmd := update(t, m, overallTickMsg(time.Now()))
	assert.Equal(t, 40, m.overall)
	assert.NotNil(t, cmd, "tick re-armed")
	assert.Contains(t, m.View(), " 40%")
}

func TestModel_SenderQuitsWithSummary(t *testing.T) {
	m := NewModel(Sender, newFakeController())
	summary := senderEvents.Summary{Receiver: "10.0.0.2:8975"}

	m, cmd := update(t, m, senderEvents.TransferCompleteMsg{Summary: summary})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	got, ok := m.Summary()
	require.True(t, ok)
	assert.NoError(t, m.SendErr())
	assert.Equal(t, "10.0.0.2:8975", got.Receiver)
}

func TestModel_StatusMessages(t *testing.T) {
	m := NewModel(Sender, newFakeController())
	m, _ = update(t, m, senderEvents.ReceiverFoundMsg{Service: discovery.ServiceInfo{
		Name: "desk", Addr: net.ParseIP("10.0.0.2"), Port: 8975,
	}})
	assert.Contains(t, m.status, "desk")

	m, _ = update(t, m, appevents.PeerConnectedMsg{Remote: "10.0.0.2:8975"})
	assert.Equal(t, "10.0.0.2:8975", m.peer)

	m, _ = update(t, m, appevents.ErrorMsg{Err: errors.New("boom")})
	assert.Contains(t, m.View(), "boom")

	m, _ = update(t, m, appevents.PeerDisconnectedMsg{Err: errors.New("reset")})
	assert.Empty(t, m.peer)
	assert.True(t, strings.HasPrefix(m.status, "Disconnected"))
}

func TestSummaryTable(t *testing.T) {
	out := SummaryTable(senderEvents.Summary{
		Receiver: "10.0.0.2:8975",
		Elapsed:  2 * time.Second,
		Files: []senderEvents.FileResult{
			{ID: 1, FileName: "a.bin", Length: 2048, State: transfer.StateComplete},
			{ID: -1, FileName: "gone.txt", State: transfer.StateStopped, Err: errors.New("no such file")},
		},
	})
	assert.Contains(t, out, "10.0.0.2:8975")
	assert.Contains(t, out, "a.bin")
	assert.Contains(t, out, "2 KB")
	assert.Contains(t, out, "no such file")
}

func TestHistoryTable(t *testing.T) {
	assert.Contains(t, HistoryTable(nil), "No transfers")

	out := HistoryTable([]history.Record{{
		FileName:   "report.pdf",
		Direction:  "download",
		Length:     1536,
		State:      "complete",
		Peer:       "10.0.0.3:50122",
		FinishedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}})
	assert.Contains(t, out, "report.pdf")
	assert.Contains(t, out, "1.5 KB")
	assert.Contains(t, out, "2026-03-01 12:00:00")
}
