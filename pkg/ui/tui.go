package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	appevents "github.com/rescp17/filesTransfer/internal/app_events"
	receiverEvents "github.com/rescp17/filesTransfer/internal/app_events/receiver"
	senderEvents "github.com/rescp17/filesTransfer/internal/app_events/sender"
	"github.com/rescp17/filesTransfer/internal/style"
	"github.com/rescp17/filesTransfer/internal/util"
	"github.com/rescp17/filesTransfer/pkg/transfer"
)

type Mode int

const (
	Receiver Mode = iota
	Sender
)

func (m Mode) String() string {
	if m == Sender {
		return "sender"
	}
	return "receiver"
}

// OverallInterval is how often the overall progress is polled.
const OverallInterval = time.Second

// AppController is the part of an app the UI talks to.
type AppController interface {
	UIMessages() <-chan tea.Msg
	AppEvents() chan<- appevents.AppEvent
	OverallProgress() int
}

type overallTickMsg time.Time

type row struct {
	info     appevents.TransferRow
	state    transfer.State
	progress int
}

// Model is the bubbletea model shared by both modes.
type Model struct {
	mode    Mode
	app     AppController
	keys    KeyMap
	help    help.Model
	spinner spinner.Model
	bar     progress.Model

	rows    []*row
	cursor  int
	overall int

	status    string
	peer      string
	lastError error
	summary   *senderEvents.Summary
	sendErr   error
	quitting  bool
}

func NewModel(mode Mode, app AppController) Model {
	return Model{
		mode:    mode,
		app:     app,
		keys:    DefaultKeyMap,
		help:    help.New(),
		spinner: style.NewSpinner(),
		bar:     style.NewProgress(30),
		status:  "Starting...",
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForAppMessages(), overallTick())
}

// listenForAppMessages is a command that listens for messages from the app controller.
func (m Model) listenForAppMessages() tea.Cmd {
	ch := m.app.UIMessages()
	return func() tea.Msg {
		return <-ch
	}
}

func overallTick() tea.Cmd {
	return tea.Tick(OverallInterval, func(t time.Time) tea.Msg {
		return overallTickMsg(t)
	})
}

// sendEvent delivers ev to the app without blocking the update loop.
func (m Model) sendEvent(ev appevents.AppEvent) tea.Cmd {
	ch := m.app.AppEvents()
	return func() tea.Msg {
		ch <- ev
		return nil
	}
}

// Summary returns the send summary once the sender finished.
func (m Model) Summary() (senderEvents.Summary, bool) {
	if m.summary == nil {
		return senderEvents.Summary{}, false
	}
	return *m.summary, true
}

// SendErr is the error the send finished with, if any.
func (m Model) SendErr() error {
	return m.sendErr
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil
	case overallTickMsg:
		m.overall = m.app.OverallProgress()
		return m, overallTick()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if m.applyAppMessage(msg) {
		if m.quitting {
			return m, tea.Quit
		}
		return m, m.listenForAppMessages()
	}
	return m, nil
}

// applyAppMessage folds an app message into the model. It reports whether
// msg came from the app.
func (m *Model) applyAppMessage(msg tea.Msg) bool {
	switch msg := msg.(type) {
	case appevents.StatusMsg:
		m.status = msg.Message
	case appevents.ErrorMsg:
		m.lastError = msg.Err
	case appevents.PeerConnectedMsg:
		m.peer = msg.Remote
		m.status = "Connected to " + msg.Remote
	case appevents.PeerDisconnectedMsg:
		m.peer = ""
		m.status = "Disconnected"
		if msg.Err != nil {
			m.status += ": " + msg.Err.Error()
		}
	case appevents.TransferQueuedMsg:
		m.rows = append(m.rows, &row{info: msg.Transfer, state: msg.Transfer.State})
	case appevents.TransferProgressMsg:
		if r := m.find(msg.ID); r != nil {
			r.progress = msg.Progress
			if r.state == transfer.StatePending {
				r.state = transfer.StateRunning
			}
		}
	case appevents.TransferPausedMsg:
		if r := m.find(msg.ID); r != nil && !r.state.IsTerminal() {
			r.state = transfer.StateRunning
			if msg.Paused {
				r.state = transfer.StatePaused
			}
		}
	case appevents.TransferFinishedMsg:
		if r := m.find(msg.ID); r != nil {
			r.state = msg.State
			if msg.State == transfer.StateComplete {
				r.progress = 100
			}
		}
	case receiverEvents.ListeningMsg:
		m.status = fmt.Sprintf("Waiting for a sender on port %d", msg.Port)
	case senderEvents.ReceiverFoundMsg:
		m.status = fmt.Sprintf("Found %s at %s:%d", msg.Service.Name, msg.Service.Addr, msg.Service.Port)
	case senderEvents.TransferCompleteMsg:
		summary := msg.Summary
		m.summary = &summary
		m.sendErr = msg.Err
		m.quitting = true
	default:
		return false
	}
	return true
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Clear):
		m.clearFinished()
	case key.Matches(msg, m.keys.Start):
		if r := m.selected(); r != nil && r.info.Direction == transfer.Download && r.progress == 0 && !r.state.IsTerminal() {
			return m, m.sendEvent(appevents.StartTransferEvent{ID: r.info.ID})
		}
	case key.Matches(msg, m.keys.Pause):
		if r := m.selected(); r != nil && !r.state.IsTerminal() {
			return m, m.sendEvent(appevents.PauseTransferEvent{ID: r.info.ID})
		}
	case key.Matches(msg, m.keys.Stop):
		if r := m.selected(); r != nil && !r.state.IsTerminal() {
			return m, m.sendEvent(appevents.StopTransferEvent{ID: r.info.ID})
		}
	}
	return m, nil
}

func (m *Model) find(id int32) *row {
	for _, r := range m.rows {
		if r.info.ID == id {
			return r
		}
	}
	return nil
}

func (m *Model) selected() *row {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return nil
	}
	return m.rows[m.cursor]
}

// clearFinished drops complete and stopped rows.
func (m *Model) clearFinished() {
	kept := m.rows[:0]
	for _, r := range m.rows {
		if !r.state.IsTerminal() {
			kept = append(kept, r)
		}
	}
	for i := len(kept); i < len(m.rows); i++ {
		m.rows[i] = nil
	}
	m.rows = kept
	if m.cursor >= len(m.rows) {
		m.cursor = max(len(m.rows)-1, 0)
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder

	b.WriteString(style.TitleStyle.Render("filesTransfer " + m.mode.String()))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "%s %s\n", m.spinner.View(), style.StatusStyle.Render(m.status))
	if m.lastError != nil {
		b.WriteString(style.ErrorStyle.Render("Error: "+m.lastError.Error()) + "\n")
	}
	b.WriteString("\n")

	if len(m.rows) == 0 {
		b.WriteString(style.MutedStyle.Render("No transfers yet") + "\n")
	}
	for i, r := range m.rows {
		cursor := style.NoCursorStyle.String()
		if i == m.cursor {
			cursor = style.CursorStyle.String()
		}
		b.WriteString(cursor + m.rowView(r) + "\n")
	}

	fmt.Fprintf(&b, "\n%s %s %s\n",
		util.PadRight("Overall", 30),
		m.bar.ViewAs(float64(m.overall)/100),
		util.FormatPercent(m.overall),
	)
	b.WriteString("\n" + style.HelpStyle.Render(m.help.View(m.keys)))
	return style.DocStyle.Render(b.String())
}

func (m Model) rowView(r *row) string {
	arrow := "↓"
	if r.info.Direction == transfer.Upload {
		arrow = "↑"
	}
	return fmt.Sprintf("%s %s %s %s %s %s",
		arrow,
		util.FitName(r.info.FileName, 26),
		util.PadRight(util.FormatSize(r.info.Length), 12),
		m.bar.ViewAs(float64(r.progress)/100),
		util.FormatPercent(r.progress),
		style.StateStyle(r.state).Render(r.state.String()),
	)
}
