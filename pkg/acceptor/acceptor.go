// Package acceptor hands exactly one inbound connection to its caller.
package acceptor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/sirupsen/logrus"
)

// ErrClosed is returned by Accept once the acceptor stopped listening.
var ErrClosed = errors.New("acceptor closed")

// Acceptor listens until one connection has been accepted, then stops.
type Acceptor struct {
	ln        net.Listener
	closeOnce sync.Once
}

// Listen starts listening on addr, e.g. ":8975".
func Listen(ctx context.Context, addr string) (*Acceptor, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	logrus.WithFields(logrus.Fields{
		"function": "Listen",
		"address":  ln.Addr().String(),
	}).Info("Waiting for a peer")
	return &Acceptor{ln: ln}, nil
}

func (a *Acceptor) Addr() net.Addr {
	return a.ln.Addr()
}

// Port returns the TCP port actually bound, useful after listening on port 0.
func (a *Acceptor) Port() int {
	if tcp, ok := a.ln.Addr().(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}

// Accept waits for one connection and closes the listener, whatever the
// outcome. Cancelling ctx aborts the wait.
func (a *Acceptor) Accept(ctx context.Context) (net.Conn, error) {
	stop := context.AfterFunc(ctx, func() { a.Close() })
	defer stop()
	defer a.Close()

	conn, err := a.ln.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, net.ErrClosed) {
			return nil, ErrClosed
		}
		return nil, fmt.Errorf("accept: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Accept",
		"remote":   conn.RemoteAddr().String(),
	}).Info("Peer connected")
	return conn, nil
}

// Close stops listening. It is safe to call more than once.
func (a *Acceptor) Close() error {
	var err error
	a.closeOnce.Do(func() { err = a.ln.Close() })
	return err
}
