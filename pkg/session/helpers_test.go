package session

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rescp17/filesTransfer/pkg/protocol"
	"github.com/rescp17/filesTransfer/pkg/transfer"
	"github.com/stretchr/testify/require"
)

const eventTimeout = 5 * time.Second

func testConfig() *transfer.TransferConfig {
	cfg := transfer.DefaultTransferConfig()
	cfg.PaceInterval = 0
	return cfg
}

// rawPeer speaks the wire protocol by hand on the far end of a connection.
type rawPeer struct {
	t      *testing.T
	conn   net.Conn
	frames chan protocol.Message
}

func newRawPeer(t *testing.T, conn net.Conn) *rawPeer {
	p := &rawPeer{t: t, conn: conn, frames: make(chan protocol.Message, 1024)}
	go func() {
		defer close(p.frames)
		fr := protocol.NewFrameReader(conn, 0)
		for {
			payload, err := fr.ReadFrame()
			if err != nil {
				return
			}
			msg, err := protocol.Decode(payload)
			if err != nil {
				continue
			}
			p.frames <- msg
		}
	}()
	return p
}

func (p *rawPeer) send(msg protocol.Message) {
	p.t.Helper()
	require.NoError(p.t, protocol.WriteFrame(p.conn, protocol.Encode(msg)))
}

func (p *rawPeer) sendRaw(payload []byte) {
	p.t.Helper()
	require.NoError(p.t, protocol.WriteFrame(p.conn, payload))
}

func (p *rawPeer) expect() protocol.Message {
	p.t.Helper()
	select {
	case msg, ok := <-p.frames:
		require.True(p.t, ok, "connection closed while waiting for a frame")
		return msg
	case <-time.After(eventTimeout):
		p.t.Fatal("timed out waiting for a frame")
		return nil
	}
}

// pipeSession serves one end of an in-memory pipe and returns a raw peer on the other.
func pipeSession(t *testing.T) (*Session, *rawPeer, string) {
	t.Helper()
	out := t.TempDir()
	local, remote := net.Pipe()

	s, err := Serve(local, Options{Config: testConfig(), OutputFolder: out})
	require.NoError(t, err)
	t.Cleanup(func() {
		s.Close()
		remote.Close()
	})
	return s, newRawPeer(t, remote), out
}

func nextEvent(t *testing.T, s *Session) Event {
	t.Helper()
	select {
	case ev, ok := <-s.Events():
		require.True(t, ok, "events closed while waiting for an event")
		return ev
	case <-time.After(eventTimeout):
		t.Fatal("timed out waiting for an event")
		return nil
	}
}

// waitFor skips events until one of type T arrives.
func waitFor[T Event](t *testing.T, s *Session) T {
	t.Helper()
	deadline := time.After(eventTimeout)
	for {
		select {
		case ev, open := <-s.Events():
			if !open {
				var zero T
				t.Fatalf("events closed while waiting for %T", zero)
				return zero
			}
			if e, ok := ev.(T); ok {
				return e
			}
		case <-deadline:
			var zero T
			t.Fatalf("timed out waiting for %T", zero)
			return zero
		}
	}
}

func writeSource(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func patterned(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i*7 + i/251)
	}
	return data
}
