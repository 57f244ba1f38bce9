package session

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/rescp17/filesTransfer/pkg/protocol"
	"github.com/rescp17/filesTransfer/pkg/transfer"
	"github.com/sirupsen/logrus"
)

func (s *Session) dispatch(msg protocol.Message) error {
	switch m := msg.(type) {
	case protocol.Announce:
		return s.handleAnnounce(m)
	case protocol.Start:
		return s.handleStart(m)
	case protocol.Stop:
		s.handleStop(m)
		return nil
	case protocol.Pause:
		return s.handlePause(m)
	case protocol.Chunk:
		return s.handleChunk(m)
	default:
		return fmt.Errorf("%w: %s", protocol.ErrUnknownTag, msg.Tag())
	}
}

func (s *Session) handleAnnounce(m protocol.Announce) error {
	if _, exists := s.Queue(m.ID); exists {
		return fmt.Errorf("announce %d: %w", m.ID, transfer.ErrTransferAlreadyExists)
	}

	name, err := cleanFileName(m.FileName)
	if err != nil {
		s.rejectAnnounce(m.ID, err)
		return err
	}

	q, err := transfer.NewDownloadQueue(m.ID, filepath.Join(s.OutputFolder(), name), m.Length)
	if err != nil {
		s.rejectAnnounce(m.ID, err)
		return err
	}
	if err := s.register(q); err != nil {
		q.Stop()
		return err
	}

	s.log.WithFields(logrus.Fields{
		"function":    "handleAnnounce",
		"transfer_id": m.ID,
		"file_name":   name,
		"file_size":   m.Length,
	}).Info("Download queued")
	s.emit(QueuedEvent{Queue: q})
	return nil
}

// rejectAnnounce tells the peer to drop a transfer we cannot receive.
func (s *Session) rejectAnnounce(id int32, cause error) {
	if err := s.SendMessage(protocol.Stop{ID: id}); err != nil {
		s.log.WithError(err).Debug("Could not reject announcement")
	}
	s.emit(ErrorEvent{ID: id, Err: cause})
}

func (s *Session) handleStart(m protocol.Start) error {
	q, ok := s.Queue(m.ID)
	if !ok {
		return fmt.Errorf("start %d: %w", m.ID, transfer.ErrTransferNotFound)
	}
	return q.Start(s, s.cfg, transfer.SenderHooks{
		OnProgress: s.onUploadProgress,
		OnExit:     s.onUploadExit,
	})
}

func (s *Session) handleStop(m protocol.Stop) {
	q, ok := s.remove(m.ID)
	if !ok {
		s.log.WithField("transfer_id", m.ID).Debug("STOP for unknown transfer ignored")
		return
	}
	q.Stop()
	s.log.WithFields(logrus.Fields{
		"function":    "handleStop",
		"transfer_id": m.ID,
	}).Info("Transfer stopped by peer")
	s.emit(StoppedEvent{Queue: q, Remote: true})
}

func (s *Session) handlePause(m protocol.Pause) error {
	q, ok := s.Queue(m.ID)
	if !ok {
		return fmt.Errorf("pause %d: %w", m.ID, transfer.ErrTransferNotFound)
	}
	paused, err := q.TogglePause()
	if err != nil {
		return err
	}
	s.emit(PausedEvent{Queue: q, Paused: paused})
	return nil
}

func (s *Session) handleChunk(m protocol.Chunk) error {
	q, ok := s.Queue(m.ID)
	if !ok {
		return fmt.Errorf("chunk %d: %w", m.ID, transfer.ErrTransferNotFound)
	}

	u, err := q.WriteChunk(m.Offset, m.Data)
	if err != nil {
		if transfer.IsCancelled(err) {
			return nil
		}
		// A bad frame from the peer is skipped; the transfer carries on.
		if errors.Is(err, transfer.ErrWrongDirection) || errors.Is(err, transfer.ErrOutOfRange) {
			return fmt.Errorf("chunk %d: %w", m.ID, err)
		}
		s.failQueue(q, err)
		return err
	}

	if u.Advanced {
		s.emit(ProgressChangedEvent{Queue: q, Progress: u.Progress})
	}
	if u.Complete && s.removeQueue(q) {
		s.log.WithFields(logrus.Fields{
			"function":    "handleChunk",
			"transfer_id": q.ID,
			"path":        q.Path,
		}).Info("Download complete")
		s.emit(CompleteEvent{Queue: q})
	}
	return nil
}

// failQueue drops a queue after a local failure and tells the peer.
func (s *Session) failQueue(q *transfer.Queue, cause error) {
	if !s.removeQueue(q) {
		return
	}
	q.Stop()
	if !s.isClosed() {
		if err := s.SendMessage(protocol.Stop{ID: q.ID}); err != nil {
			s.log.WithError(err).Debug("Could not notify peer of failed transfer")
		}
	}
	s.emit(ErrorEvent{ID: q.ID, Queue: q, Err: cause})
	s.emit(StoppedEvent{Queue: q})
}

func (s *Session) complete(q *transfer.Queue) {
	if q.MarkComplete() && s.removeQueue(q) {
		s.emit(CompleteEvent{Queue: q})
	}
}

func (s *Session) onUploadProgress(q *transfer.Queue, progress int) {
	s.emit(ProgressChangedEvent{Queue: q, Progress: progress})
}

func (s *Session) onUploadExit(q *transfer.Queue, err error) {
	switch {
	case err == nil:
		if s.removeQueue(q) {
			s.log.WithField("transfer_id", q.ID).Info("Upload complete")
			s.emit(CompleteEvent{Queue: q})
		}
	case transfer.IsCancelled(err):
		// Whoever stopped the queue already deregistered it.
		s.removeQueue(q)
	default:
		s.failQueue(q, err)
	}
}

// cleanFileName strips any directory part from an announced name.
func cleanFileName(name string) (string, error) {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	switch base {
	case "", ".", "..", "/":
		return "", fmt.Errorf("%w: %q", ErrInvalidFileName, name)
	}
	return base, nil
}
