// Package session multiplexes file transfers over one peer connection.
//
// A Session is created around an established connection by Serve or
// Connect and owns that connection for its whole life. Every frame
// received is handled in arrival order by a single receive loop; frames
// sent by any goroutine are serialized by one send lock.
package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rescp17/filesTransfer/pkg/protocol"
	"github.com/rescp17/filesTransfer/pkg/transfer"
	"github.com/sirupsen/logrus"
)

var (
	// ErrClosed is returned by commands issued after the session closed.
	ErrClosed = errors.New("session closed")
	// ErrInvalidFileName is returned for announced names that cannot be stored.
	ErrInvalidFileName = errors.New("invalid file name")
)

// Options configures a Session.
type Options struct {
	Config *transfer.TransferConfig
	// OutputFolder receives downloaded files. It must already exist.
	OutputFolder string
	// NewID generates upload ids. Defaults to a random non-negative int32.
	NewID func() int32
}

// Session owns one connection and the transfers running over it.
type Session struct {
	cfg   *transfer.TransferConfig
	conn  net.Conn
	newID func() int32

	mu           sync.Mutex
	outputFolder string
	transfers    map[int32]*transfer.Queue
	closed       bool
	err          error

	sendMu sync.Mutex

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once

	// backlog holds events not yet taken by the listener, in emit order.
	evMu     sync.Mutex
	backlog  []Event
	evWake   chan struct{}
	evSealed bool

	log *logrus.Entry
}

// Serve adopts an accepted connection and starts receiving frames.
func Serve(conn net.Conn, opts Options) (*Session, error) {
	s, err := newSession(conn, opts)
	if err != nil {
		return nil, err
	}
	go s.receiveLoop()
	return s, nil
}

// Connect dials host:port in the background and calls callback with the
// running Session or the dial error. No Session exists until the dial
// succeeds, so nothing can be issued against a half-open connection.
func Connect(ctx context.Context, host string, port int, opts Options, callback func(*Session, error)) {
	cfg := opts.Config
	if cfg == nil {
		cfg = transfer.DefaultTransferConfig()
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	go func() {
		dialer := net.Dialer{Timeout: cfg.DialTimeout}
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Connect",
				"address":  addr,
				"error":    err.Error(),
			}).Warn("Dial failed")
			callback(nil, fmt.Errorf("connect %s: %w", addr, err))
			return
		}

		s, err := Serve(conn, opts)
		if err != nil {
			conn.Close()
			callback(nil, err)
			return
		}
		callback(s, nil)
	}()
}

func newSession(conn net.Conn, opts Options) (*Session, error) {
	if conn == nil {
		return nil, errors.New("session: nil connection")
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = transfer.DefaultTransferConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	newID := opts.NewID
	if newID == nil {
		newID = rand.Int32
	}

	s := &Session{
		cfg:          cfg,
		conn:         conn,
		newID:        newID,
		outputFolder: opts.OutputFolder,
		transfers:    make(map[int32]*transfer.Queue),
		events:       make(chan Event, cfg.EventBufferSize),
		done:         make(chan struct{}),
		evWake:       make(chan struct{}, 1),
		log: logrus.WithFields(logrus.Fields{
			"local":  addrString(conn.LocalAddr()),
			"remote": addrString(conn.RemoteAddr()),
		}),
	}
	go s.deliverEvents()
	s.log.Info("Session established")
	return s, nil
}

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}

// Events delivers session notifications in emit order. DisconnectedEvent is
// always the last event, after which the channel is closed. Only progress
// events are ever dropped, and only while the listener is behind.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Done is closed after the session has shut down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns the error that closed the session, nil after Close.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Session) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

func (s *Session) OutputFolder() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outputFolder
}

// SetOutputFolder changes where later announcements are stored.
func (s *Session) SetOutputFolder(dir string) {
	s.mu.Lock()
	s.outputFolder = dir
	s.mu.Unlock()
}

// Queue returns the registered queue for id.
func (s *Session) Queue(id int32) (*transfer.Queue, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.transfers[id]
	return q, ok
}

// Queues returns the registered queues ordered by id.
func (s *Session) Queues() []*transfer.Queue {
	s.mu.Lock()
	queues := make([]*transfer.Queue, 0, len(s.transfers))
	for _, q := range s.transfers {
		queues = append(queues, q)
	}
	s.mu.Unlock()

	sort.Slice(queues, func(i, j int) bool { return queues[i].ID < queues[j].ID })
	return queues
}

// QueueUpload registers an upload for path and announces it to the peer.
// Queue creation failures are returned as *transfer.QueueError.
func (s *Session) QueueUpload(path string) (int32, error) {
	id, err := s.reserveID()
	if err != nil {
		return 0, err
	}

	q, err := transfer.NewUploadQueue(path, id)
	if err != nil {
		return 0, err
	}
	if err := s.register(q); err != nil {
		q.Stop()
		return 0, err
	}

	announce := protocol.Announce{ID: id, Length: q.Length, FileName: q.FileName}
	if err := s.SendMessage(announce); err != nil {
		s.remove(id)
		q.Stop()
		return 0, err
	}

	s.log.WithFields(logrus.Fields{
		"function":    "QueueUpload",
		"transfer_id": id,
		"file_name":   q.FileName,
		"file_size":   q.Length,
	}).Info("Upload announced")
	s.emit(QueuedEvent{Queue: q})
	return id, nil
}

// StartTransfer asks the peer to begin streaming chunks for id.
func (s *Session) StartTransfer(id int32) error {
	q, ok := s.Queue(id)
	if !ok {
		return fmt.Errorf("start %d: %w", id, transfer.ErrTransferNotFound)
	}
	if err := s.SendMessage(protocol.Start{ID: id}); err != nil {
		return err
	}

	// No chunk will ever arrive for an empty file.
	if q.Direction == transfer.Download && q.Length == 0 {
		s.complete(q)
	}
	return nil
}

// StopTransfer tears down id locally and tells the peer to do the same.
func (s *Session) StopTransfer(id int32) error {
	q, ok := s.remove(id)
	if !ok {
		return fmt.Errorf("stop %d: %w", id, transfer.ErrTransferNotFound)
	}
	q.Stop()

	err := s.SendMessage(protocol.Stop{ID: id})
	s.log.WithFields(logrus.Fields{
		"function":    "StopTransfer",
		"transfer_id": id,
	}).Info("Transfer stopped")
	s.emit(StoppedEvent{Queue: q})
	return err
}

// PauseTransfer toggles pause for id. Uploads pause their own sender. A
// download is paused on both ends: the local queue toggles and a PAUSE
// frame makes the uploading peer toggle its sender.
func (s *Session) PauseTransfer(id int32) error {
	q, ok := s.Queue(id)
	if !ok {
		return fmt.Errorf("pause %d: %w", id, transfer.ErrTransferNotFound)
	}

	paused, err := q.TogglePause()
	if err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{
		"function":    "PauseTransfer",
		"transfer_id": id,
		"paused":      paused,
	}).Debug("Pause toggled")

	if q.Direction == transfer.Download {
		return s.SendMessage(protocol.Pause{ID: id})
	}
	return nil
}

// OverallProgress averages the progress of all registered queues.
func (s *Session) OverallProgress() int {
	queues := s.Queues()
	progress := make([]int, len(queues))
	for i, q := range queues {
		progress[i] = q.Progress()
	}
	return transfer.OverallProgress(progress)
}

// SendMessage encodes msg and sends it as one frame.
func (s *Session) SendMessage(msg protocol.Message) error {
	return s.Send(protocol.Encode(msg))
}

// Send writes one frame. A write failure closes the session.
func (s *Session) Send(payload []byte) error {
	if s.isClosed() {
		return ErrClosed
	}

	s.sendMu.Lock()
	if s.cfg.WriteTimeout > 0 {
		s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	}
	err := protocol.WriteFrame(s.conn, payload)
	s.sendMu.Unlock()

	if err != nil {
		if s.isClosed() {
			return ErrClosed
		}
		err = fmt.Errorf("send: %w", err)
		s.shutdown(err)
		return err
	}
	return nil
}

// Close shuts the session down. It is safe to call more than once.
func (s *Session) Close() error {
	s.shutdown(nil)
	return nil
}

func (s *Session) shutdown(cause error) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.err = cause
		queues := s.transfers
		s.transfers = make(map[int32]*transfer.Queue)
		s.mu.Unlock()

		if err := s.conn.Close(); err != nil {
			s.log.WithError(err).Debug("Closing connection")
		}
		for _, q := range queues {
			q.Stop()
		}

		entry := s.log.WithFields(logrus.Fields{
			"function":  "shutdown",
			"abandoned": len(queues),
		})
		if cause != nil {
			entry.WithError(cause).Warn("Session closed on error")
		} else {
			entry.Info("Session closed")
		}

		s.emit(DisconnectedEvent{Err: cause})
		close(s.done)
	})
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) reserveID() (int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	for {
		id := s.newID()
		if _, taken := s.transfers[id]; !taken {
			return id, nil
		}
	}
}

func (s *Session) register(q *transfer.Queue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, exists := s.transfers[q.ID]; exists {
		return fmt.Errorf("register %d: %w", q.ID, transfer.ErrTransferAlreadyExists)
	}
	s.transfers[q.ID] = q
	return nil
}

func (s *Session) remove(id int32) (*transfer.Queue, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.transfers[id]
	if ok {
		delete(s.transfers, id)
	}
	return q, ok
}

// removeQueue deregisters q only if it is still the queue registered for its id.
func (s *Session) removeQueue(q *transfer.Queue) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transfers[q.ID] != q {
		return false
	}
	delete(s.transfers, q.ID)
	return true
}

func (s *Session) emit(ev Event) {
	s.evMu.Lock()
	if s.evSealed {
		s.evMu.Unlock()
		return
	}
	if _, ok := ev.(ProgressChangedEvent); ok && len(s.backlog) >= s.cfg.EventBufferSize {
		s.evMu.Unlock()
		s.log.WithFields(logrus.Fields{
			"function": "emit",
			"backlog":  len(s.backlog),
		}).Debug("Progress event dropped, listener is behind")
		return
	}
	s.backlog = append(s.backlog, ev)
	if _, ok := ev.(DisconnectedEvent); ok {
		s.evSealed = true
	}
	s.evMu.Unlock()

	select {
	case s.evWake <- struct{}{}:
	default:
	}
}

// deliverEvents moves the backlog onto the events channel and closes it
// after DisconnectedEvent.
func (s *Session) deliverEvents() {
	defer close(s.events)
	for {
		s.evMu.Lock()
		if len(s.backlog) == 0 {
			sealed := s.evSealed
			s.evMu.Unlock()
			if sealed {
				return
			}
			<-s.evWake
			continue
		}
		ev := s.backlog[0]
		s.backlog[0] = nil
		s.backlog = s.backlog[1:]
		s.evMu.Unlock()

		s.events <- ev
	}
}
