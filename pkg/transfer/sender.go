package transfer

import (
	"fmt"
	"time"

	"github.com/rescp17/filesTransfer/pkg/protocol"
	"github.com/sirupsen/logrus"
)

// MessageSender writes one message to the peer. Implementations must be
// safe for concurrent use by several senders.
type MessageSender interface {
	SendMessage(msg protocol.Message) error
}

// SenderHooks lets the owner observe an upload.
type SenderHooks struct {
	// OnProgress runs when the percentage goes past the last reported value.
	OnProgress func(q *Queue, progress int)
	// OnExit runs once after the sender stops touching the file. err is nil
	// when every byte was sent and ErrTransferCancelled after Stop.
	OnExit func(q *Queue, err error)
}

// Start moves a pending upload to running, or to paused when it was paused
// before START, and launches its sender.
func (q *Queue) Start(out MessageSender, cfg *TransferConfig, hooks SenderHooks) error {
	if q.Direction != Upload {
		return fmt.Errorf("start: %w", ErrWrongDirection)
	}
	if cfg == nil {
		cfg = DefaultTransferConfig()
	}

	q.fileMu.Lock()
	file := q.file
	q.fileMu.Unlock()
	if file == nil {
		return fmt.Errorf("start: %w", ErrTransferCancelled)
	}
	chunker, err := NewChunker(file, q.Length, cfg)
	if err != nil {
		return err
	}

	q.mu.Lock()
	if q.state != StatePending {
		state := q.state
		q.mu.Unlock()
		return fmt.Errorf("start from %s: %w", state, ErrInvalidStateTransition)
	}
	next := StateRunning
	if q.gate.Paused() {
		next = StatePaused
	}
	err = q.setStateLocked(next)
	q.mu.Unlock()
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}

	go q.run(out, chunker, cfg.PaceInterval, hooks)
	return nil
}

func (q *Queue) run(out MessageSender, chunker *Chunker, pace time.Duration, hooks SenderHooks) {
	err := q.sendLoop(out, chunker, pace, hooks.OnProgress)

	next := StateComplete
	if err != nil {
		next = StateStopped
	}
	q.mu.Lock()
	// Already final when Stop got there first.
	_ = q.setStateLocked(next)
	q.mu.Unlock()

	q.cancel()
	if cerr := q.release(); cerr != nil && err == nil {
		err = fmt.Errorf("close %s: %w", q.Path, cerr)
	}
	q.markDone()

	logrus.WithFields(logrus.Fields{
		"function":    "run",
		"transfer_id": q.ID,
		"transferred": q.Transferred(),
		"error":       err,
	}).Debug("Sender exited")

	if hooks.OnExit != nil {
		hooks.OnExit(q, err)
	}
}

func (q *Queue) sendLoop(out MessageSender, chunker *Chunker, pace time.Duration, onProgress func(*Queue, int)) error {
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		q.mu.Lock()
		state, cursor := q.state, q.transferred
		q.mu.Unlock()

		if state == StateStopped {
			return ErrTransferCancelled
		}
		if cursor >= q.Length {
			return nil
		}

		if err := q.gate.Wait(q.ctx); err != nil {
			return ErrTransferCancelled
		}

		step, err := q.sendNext(out, chunker, cursor)
		if err != nil {
			return err
		}
		if step.sent == 0 {
			// Paused between the gate and the lock; wait again.
			continue
		}

		if step.advanced && onProgress != nil {
			onProgress(q, step.progress)
		}
		if step.last || pace <= 0 {
			continue
		}

		timer.Reset(pace)
		select {
		case <-timer.C:
		case <-q.ctx.Done():
			return ErrTransferCancelled
		}
	}
}

type sendStep struct {
	sent     int64
	last     bool
	progress int
	advanced bool
}

// sendNext reads, sends and accounts for the chunk at cursor while holding
// pauseMu, so a pause observes either none or all of it.
func (q *Queue) sendNext(out MessageSender, chunker *Chunker, cursor int64) (sendStep, error) {
	q.pauseMu.Lock()
	defer q.pauseMu.Unlock()

	if q.gate.Paused() {
		return sendStep{}, nil
	}
	if q.State() != StateRunning {
		return sendStep{}, ErrTransferCancelled
	}

	q.fileMu.Lock()
	if q.file == nil {
		q.fileMu.Unlock()
		return sendStep{}, ErrTransferCancelled
	}
	chunk, err := chunker.ReadAt(cursor)
	q.fileMu.Unlock()
	if err != nil {
		return sendStep{}, fmt.Errorf("read %s at %d: %w", q.Path, cursor, err)
	}

	if q.ctx.Err() != nil {
		return sendStep{}, ErrTransferCancelled
	}
	if err := out.SendMessage(protocol.Chunk{ID: q.ID, Offset: chunk.Offset, Data: chunk.Data}); err != nil {
		return sendStep{}, fmt.Errorf("send chunk %d@%d: %w", q.ID, chunk.Offset, err)
	}

	progress, advanced := q.advance(int64(chunk.Size))
	return sendStep{
		sent:     int64(chunk.Size),
		last:     chunk.IsLast,
		progress: progress,
		advanced: advanced,
	}, nil
}

func (q *Queue) advance(n int64) (int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.transferred += n
	q.progress = Percent(q.transferred, q.Length)
	if q.progress > q.lastProgress {
		q.lastProgress = q.progress
		return q.progress, true
	}
	return q.progress, false
}
