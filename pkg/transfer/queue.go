package transfer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

// Queue tracks one file moving in one direction over a session.
// ID, Direction, FileName, Path and Length never change after creation.
type Queue struct {
	ID        int32
	Direction Direction
	FileName  string
	Path      string
	Length    int64

	mu           sync.Mutex
	state        State
	transferred  int64
	progress     int
	lastProgress int

	// fileMu serializes file access and guards file.
	fileMu sync.Mutex
	file   *os.File

	// pauseMu is held by the sender across one read-and-send cycle so a
	// pause never overlaps a chunk in flight.
	pauseMu sync.Mutex
	gate    *Gate

	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	doneOnce sync.Once
}

// Update describes the effect of one chunk on a Queue.
type Update struct {
	Transferred int64
	Progress    int
	// Advanced is true when Progress went past the last reported value.
	Advanced bool
	Complete bool
}

// Snapshot is a point-in-time copy of a Queue's observable fields.
type Snapshot struct {
	ID          int32
	Direction   Direction
	FileName    string
	Path        string
	Length      int64
	Transferred int64
	Progress    int
	State       State
}

// NewUploadQueue opens path for reading. Nothing is registered anywhere;
// the caller decides what to do with the queue or the error.
func NewUploadQueue(path string, id int32) (*Queue, error) {
	file, length, err := openUpload(path)
	if err != nil {
		return nil, &QueueError{Op: "open", Path: path, Err: err}
	}

	q := newQueue(id, Upload, path, length, file)
	q.state = StatePending
	logrus.WithFields(logrus.Fields{
		"function":    "NewUploadQueue",
		"transfer_id": id,
		"file_name":   q.FileName,
		"file_size":   length,
	}).Debug("Created upload queue")
	return q, nil
}

// NewDownloadQueue creates path and pre-sizes it to length bytes.
func NewDownloadQueue(id int32, path string, length int64) (*Queue, error) {
	if length < 0 {
		return nil, &QueueError{Op: "create", Path: path, Err: fmt.Errorf("negative length %d: %w", length, ErrOutOfRange)}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, &QueueError{Op: "create", Path: path, Err: err}
	}
	if err := file.Truncate(length); err != nil {
		file.Close()
		return nil, &QueueError{Op: "truncate", Path: path, Err: err}
	}

	q := newQueue(id, Download, path, length, file)
	q.state = StateRunning
	logrus.WithFields(logrus.Fields{
		"function":    "NewDownloadQueue",
		"transfer_id": id,
		"path":        path,
		"file_size":   length,
	}).Debug("Created download queue")
	return q, nil
}

func newQueue(id int32, dir Direction, path string, length int64, file *os.File) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		ID:        id,
		Direction: dir,
		FileName:  filepath.Base(path),
		Path:      path,
		Length:    length,
		progress:  Percent(0, length),
		file:      file,
		gate:      NewGate(),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

func (q *Queue) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

func (q *Queue) Transferred() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.transferred
}

func (q *Queue) Progress() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.progress
}

// LastProgress is the last percentage a progress notification was raised for.
func (q *Queue) LastProgress() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lastProgress
}

func (q *Queue) Snapshot() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Snapshot{
		ID:          q.ID,
		Direction:   q.Direction,
		FileName:    q.FileName,
		Path:        q.Path,
		Length:      q.Length,
		Transferred: q.transferred,
		Progress:    q.progress,
		State:       q.state,
	}
}

// FileOpen reports whether the queue still holds its file handle.
func (q *Queue) FileOpen() bool {
	q.fileMu.Lock()
	defer q.fileMu.Unlock()
	return q.file != nil
}

// Done is closed once the queue can no longer touch its file: after the
// sender returns, or after Stop when no sender was running.
func (q *Queue) Done() <-chan struct{} {
	return q.done
}

// WriteChunk stores data at offset in a download and recomputes progress.
// When the last byte lands the file is closed and the queue is complete.
func (q *Queue) WriteChunk(offset int64, data []byte) (Update, error) {
	if q.Direction != Download {
		return Update{}, fmt.Errorf("write chunk: %w", ErrWrongDirection)
	}

	q.mu.Lock()
	state := q.state
	transferred := q.transferred
	q.mu.Unlock()

	if state.IsTerminal() {
		return Update{}, fmt.Errorf("write chunk to %s transfer: %w", state, ErrTransferCancelled)
	}
	size := int64(len(data))
	if offset < 0 || offset+size > q.Length || transferred+size > q.Length {
		return Update{}, fmt.Errorf("write %d bytes at %d of %d: %w", size, offset, q.Length, ErrOutOfRange)
	}

	q.fileMu.Lock()
	if q.file == nil {
		q.fileMu.Unlock()
		return Update{}, fmt.Errorf("write chunk: %w", ErrTransferCancelled)
	}
	_, err := q.file.WriteAt(data, offset)
	q.fileMu.Unlock()
	if err != nil {
		return Update{}, fmt.Errorf("write chunk at %d: %w", offset, err)
	}

	q.mu.Lock()
	q.transferred += size
	q.progress = Percent(q.transferred, q.Length)
	u := Update{Transferred: q.transferred, Progress: q.progress}
	if q.progress > q.lastProgress {
		q.lastProgress = q.progress
		u.Advanced = true
	}
	if q.transferred == q.Length && q.setStateLocked(StateComplete) == nil {
		u.Complete = true
	}
	q.mu.Unlock()

	if u.Complete {
		if err := q.release(); err != nil {
			return u, fmt.Errorf("close %s: %w", q.Path, err)
		}
	}
	return u, nil
}

// MarkComplete finishes a queue whose bytes are all accounted for, which
// only happens without any chunk for empty files.
func (q *Queue) MarkComplete() bool {
	q.mu.Lock()
	if q.transferred != q.Length || q.setStateLocked(StateComplete) != nil {
		q.mu.Unlock()
		return false
	}
	q.lastProgress = q.progress
	q.mu.Unlock()

	q.release()
	return true
}

// TogglePause flips between running and paused and returns true when the
// queue is now paused. Uploads also close or open their sender's gate. A
// pending upload only flips its gate and starts paused if it is still
// closed when START arrives.
func (q *Queue) TogglePause() (bool, error) {
	q.pauseMu.Lock()
	defer q.pauseMu.Unlock()

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.state == StatePending {
		return q.gate.Toggle(), nil
	}

	next := StatePaused
	if q.state == StatePaused {
		next = StateRunning
	}
	if err := q.setStateLocked(next); err != nil {
		return false, fmt.Errorf("toggle pause: %w", err)
	}
	if next == StatePaused {
		q.gate.Pause()
	} else {
		q.gate.Resume()
	}
	return next == StatePaused, nil
}

// Paused reports whether the queue is held, including a pending upload
// that will start paused.
func (q *Queue) Paused() bool {
	return q.gate.Paused()
}

// setStateLocked moves q to next if the lifecycle allows it. q.mu must be held.
func (q *Queue) setStateLocked(next State) error {
	if !q.state.CanTransitionTo(next) {
		return fmt.Errorf("%s to %s: %w", q.state, next, ErrInvalidStateTransition)
	}
	q.state = next
	return nil
}

// Stop marks the queue stopped, cancels its sender and releases the file.
// It returns false if the queue had already reached a final state.
func (q *Queue) Stop() bool {
	q.mu.Lock()
	started := q.state != StatePending
	if q.setStateLocked(StateStopped) != nil {
		q.mu.Unlock()
		return false
	}
	q.mu.Unlock()

	q.cancel()
	if err := q.release(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "Stop",
			"transfer_id": q.ID,
			"error":       err.Error(),
		}).Warn("Failed to close file")
	}
	if q.Direction == Download || !started {
		q.markDone()
	}
	return true
}

// release closes the file handle once.
func (q *Queue) release() error {
	q.fileMu.Lock()
	defer q.fileMu.Unlock()
	if q.file == nil {
		return nil
	}
	err := q.file.Close()
	q.file = nil
	if q.Direction == Download {
		q.markDone()
	}
	return err
}

func (q *Queue) markDone() {
	q.doneOnce.Do(func() { close(q.done) })
}

func (q *Queue) String() string {
	return fmt.Sprintf("%s#%d(%s)", q.Direction, q.ID, q.FileName)
}

// IsCancelled reports whether err came from stopping a queue.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrTransferCancelled) || errors.Is(err, context.Canceled)
}
