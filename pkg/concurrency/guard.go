// Package concurrency holds small synchronization helpers shared by the app layer.
package concurrency

import (
	"errors"
	"sync"
)

// ErrBusy is returned when a guarded task is already running.
var ErrBusy = errors.New("a session is already active")

// ConcurrencyGuard lets at most one task run at a time. Callers that lose the
// race get ErrBusy instead of blocking.
type ConcurrencyGuard struct {
	mu     sync.Mutex
	isBusy bool
	owner  string
}

func NewConcurrencyGuard() *ConcurrencyGuard {
	return &ConcurrencyGuard{}
}

// Execute runs task if the guard is free and releases it when task returns.
func (g *ConcurrencyGuard) Execute(owner string, task func() error) error {
	if !g.acquire(owner) {
		return ErrBusy
	}
	defer g.release()
	return task()
}

// Busy reports whether a task is running and who started it.
func (g *ConcurrencyGuard) Busy() (bool, string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.isBusy, g.owner
}

func (g *ConcurrencyGuard) acquire(owner string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.isBusy {
		return false
	}
	g.isBusy = true
	g.owner = owner
	return true
}

func (g *ConcurrencyGuard) release() {
	g.mu.Lock()
	g.isBusy = false
	g.owner = ""
	g.mu.Unlock()
}
