package app

import (
	"errors"
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	appevents "github.com/rescp17/filesTransfer/internal/app_events"
	"github.com/rescp17/filesTransfer/pkg/concurrency"
	"github.com/rescp17/filesTransfer/pkg/session"
	"github.com/sirupsen/logrus"
)

// ErrNoSession is returned for commands issued while no peer is connected.
var ErrNoSession = errors.New("no active session")

// ActiveSession is the session currently owned by the process.
type ActiveSession struct {
	// ID tags history records written for this session.
	ID      string
	Session *session.Session
	Peer    string
	Started time.Time
}

// StateManager tracks the single active session in a concurrent-safe manner.
type StateManager struct {
	mu     sync.Mutex
	active *ActiveSession
}

// NewStateManager creates a new StateManager instance.
func NewStateManager() *StateManager {
	return &StateManager{}
}

// Attach makes s the active session. It fails with concurrency.ErrBusy when
// another session is still attached.
func (m *StateManager) Attach(s *session.Session, peer string) (*ActiveSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil {
		return nil, concurrency.ErrBusy
	}
	m.active = &ActiveSession{
		ID:      uuid.New().String(),
		Session: s,
		Peer:    peer,
		Started: time.Now(),
	}
	logrus.WithFields(logrus.Fields{
		"function":   "StateManager.Attach",
		"session_id": m.active.ID,
		"peer":       peer,
	}).Info("Session attached")
	return m.active, nil
}

// Detach clears the active session if it is s.
func (m *StateManager) Detach(s *session.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil && m.active.Session == s {
		m.active = nil
	}
}

// Current returns the active session, if any.
func (m *StateManager) Current() (*ActiveSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active, m.active != nil
}

// OverallProgress is the active session's average progress, or 0 when idle.
func (m *StateManager) OverallProgress() int {
	active, ok := m.Current()
	if !ok {
		return 0
	}
	return active.Session.OverallProgress()
}

// Dispatch applies a transfer command from the UI to the active session and
// returns the message describing the local outcome, if there is one.
func (m *StateManager) Dispatch(event appevents.AppEvent) (tea.Msg, error) {
	active, ok := m.Current()
	if !ok {
		return nil, ErrNoSession
	}
	s := active.Session

	switch e := event.(type) {
	case appevents.StartTransferEvent:
		return nil, s.StartTransfer(e.ID)
	case appevents.StopTransferEvent:
		// The session reports the stop through its own StoppedEvent.
		return nil, s.StopTransfer(e.ID)
	case appevents.PauseTransferEvent:
		if err := s.PauseTransfer(e.ID); err != nil {
			return nil, err
		}
		q, ok := s.Queue(e.ID)
		if !ok {
			return nil, nil
		}
		return appevents.TransferPausedMsg{ID: e.ID, Paused: q.Paused()}, nil
	default:
		return nil, fmt.Errorf("unhandled app event %T", event)
	}
}
