package sender

import (
	"sync"

	"github.com/rescp17/filesTransfer/internal/app_events/sender"
	"github.com/rescp17/filesTransfer/pkg/fileInfo"
	"github.com/rescp17/filesTransfer/pkg/session"
	"github.com/rescp17/filesTransfer/pkg/transfer"
)

// uploadTracker follows the uploads of one send. done is closed once the
// list is sealed and every upload reached a terminal state.
type uploadTracker struct {
	mu      sync.Mutex
	files   []*sender.FileResult
	byID    map[int32]*sender.FileResult
	early   map[int32]transfer.State
	open    int
	sealed  bool
	done    chan struct{}
	doneSet bool
}

func newUploadTracker() *uploadTracker {
	return &uploadTracker{
		byID:  make(map[int32]*sender.FileResult),
		early: make(map[int32]transfer.State),
		done:  make(chan struct{}),
	}
}

func (t *uploadTracker) add(id int32, node fileInfo.FileNode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r := &sender.FileResult{ID: id, FileName: node.Name, Length: node.Size, State: transfer.StatePending}
	t.files = append(t.files, r)
	t.byID[id] = r
	// The peer may finish a small file before QueueUpload returned.
	if state, ok := t.early[id]; ok {
		r.State = state
		delete(t.early, id)
		return
	}
	t.open++
}

func (t *uploadTracker) fail(node fileInfo.FileNode, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.files = append(t.files, &sender.FileResult{
		ID:       -1,
		FileName: node.Name,
		Length:   node.Size,
		State:    transfer.StateStopped,
		Err:      err,
	})
}

func (t *uploadTracker) seal() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sealed = true
	t.checkLocked()
}

// observe is the Pump callback. It never asks the pump to stop.
func (t *uploadTracker) observe(ev session.Event) bool {
	switch e := ev.(type) {
	case session.CompleteEvent:
		t.finish(e.Queue, transfer.StateComplete)
	case session.StoppedEvent:
		t.finish(e.Queue, transfer.StateStopped)
	}
	return false
}

func (t *uploadTracker) finish(q *transfer.Queue, state transfer.State) {
	if q.Direction != transfer.Upload {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.byID[q.ID]
	if !ok {
		t.early[q.ID] = state
		return
	}
	if r.State.IsTerminal() {
		return
	}
	r.State = state
	t.open--
	t.checkLocked()
}

// abort stops every open upload with err.
func (t *uploadTracker) abort(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range t.files {
		if !r.State.IsTerminal() {
			r.State = transfer.StateStopped
			r.Err = err
		}
	}
	t.open = 0
}

func (t *uploadTracker) checkLocked() {
	if t.sealed && t.open == 0 && !t.doneSet {
		t.doneSet = true
		close(t.done)
	}
}

func (t *uploadTracker) results() []sender.FileResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]sender.FileResult, len(t.files))
	for i, r := range t.files {
		out[i] = *r
	}
	return out
}
