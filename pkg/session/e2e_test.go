package session

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/rescp17/filesTransfer/pkg/protocol"
	"github.com/rescp17/filesTransfer/pkg/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReceiver_AnnouncedFileArrivesIntact(t *testing.T) {
	s, peer, out := pipeSession(t)
	source := patterned(16384)

	peer.send(protocol.Announce{ID: 7, Length: 16384, FileName: "a.bin"})

	queued, ok := nextEvent(t, s).(QueuedEvent)
	require.True(t, ok, "first event must be queued")
	q := queued.Queue
	assert.Equal(t, int32(7), q.ID)
	assert.Equal(t, transfer.Download, q.Direction)

	info, err := os.Stat(filepath.Join(out, "a.bin"))
	require.NoError(t, err)
	assert.Equal(t, int64(16384), info.Size(), "download is pre-sized")

	require.NoError(t, s.StartTransfer(7))
	assert.Equal(t, protocol.Start{ID: 7}, peer.expect())

	peer.send(protocol.Chunk{ID: 7, Offset: 0, Data: source[:8175]})
	peer.send(protocol.Chunk{ID: 7, Offset: 8175, Data: source[8175:]})

	p1 := nextEvent(t, s).(ProgressChangedEvent)
	assert.Equal(t, 49, p1.Progress)
	p2 := nextEvent(t, s).(ProgressChangedEvent)
	assert.Equal(t, 100, p2.Progress)
	done := nextEvent(t, s).(CompleteEvent)
	assert.Same(t, q, done.Queue)

	assert.Equal(t, int64(16384), q.Transferred())
	assert.Equal(t, transfer.StateComplete, q.State())
	assert.False(t, q.FileOpen())
	_, registered := s.Queue(7)
	assert.False(t, registered)
	assert.Equal(t, 0, s.OverallProgress())

	got, err := os.ReadFile(filepath.Join(out, "a.bin"))
	require.NoError(t, err)
	assert.Equal(t, source, got)
}

// connectedPair returns two sessions joined over loopback TCP.
func connectedPair(t *testing.T) (sender, receiver *Session, outDir string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	outDir = t.TempDir()
	accepted := make(chan *Session, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			close(accepted)
			return
		}
		s, err := Serve(conn, Options{Config: testConfig(), OutputFolder: outDir})
		if err != nil {
			conn.Close()
			close(accepted)
			return
		}
		accepted <- s
	}()

	addr := ln.Addr().(*net.TCPAddr)
	dialed := make(chan error, 1)
	Connect(t.Context(), "127.0.0.1", addr.Port, Options{Config: testConfig(), OutputFolder: t.TempDir()}, func(s *Session, err error) {
		sender = s
		dialed <- err
	})
	require.NoError(t, <-dialed)

	receiver = <-accepted
	require.NotNil(t, receiver)
	t.Cleanup(func() {
		sender.Close()
		receiver.Close()
	})
	return sender, receiver, outDir
}

func TestSessions_UploadToDownload(t *testing.T) {
	sender, receiver, out := connectedPair(t)

	sources := map[string][]byte{
		"one.bin":   patterned(3*transfer.DefaultChunkSize + 17),
		"two.txt":   []byte("hello over the wire"),
		"empty.dat": {},
	}
	ids := make(map[int32]string)
	for name, content := range sources {
		id, err := sender.QueueUpload(writeSource(t, name, content))
		require.NoError(t, err)
		ids[id] = name
		waitFor[QueuedEvent](t, sender)
	}

	// The receiving side starts every announced download.
	for completed := 0; completed < len(sources); {
		switch ev := nextEvent(t, receiver).(type) {
		case QueuedEvent:
			assert.Equal(t, ids[ev.Queue.ID], ev.Queue.FileName)
			require.NoError(t, receiver.StartTransfer(ev.Queue.ID))
		case CompleteEvent:
			completed++
		case DisconnectedEvent:
			t.Fatalf("receiver disconnected: %v", ev.Err)
		}
	}
	for range sources {
		waitFor[CompleteEvent](t, sender)
	}

	for name, content := range sources {
		got, err := os.ReadFile(filepath.Join(out, name))
		require.NoError(t, err)
		assert.Equal(t, content, got, name)
	}
	assert.Empty(t, sender.Queues())
	assert.Empty(t, receiver.Queues())
}

func TestSessions_StopPropagates(t *testing.T) {
	sender, receiver, _ := connectedPair(t)

	id, err := sender.QueueUpload(writeSource(t, "big.bin", patterned(64*1024)))
	require.NoError(t, err)
	up := waitFor[QueuedEvent](t, sender).Queue

	down := waitFor[QueuedEvent](t, receiver).Queue
	require.NoError(t, receiver.StopTransfer(id))
	assert.False(t, down.FileOpen())

	stopped := waitFor[StoppedEvent](t, sender)
	assert.True(t, stopped.Remote)
	assert.Same(t, up, stopped.Queue)
	<-up.Done()
	assert.False(t, up.FileOpen())
	assert.Empty(t, sender.Queues())
	assert.Empty(t, receiver.Queues())
}

func TestSessions_DisconnectReachesPeer(t *testing.T) {
	sender, receiver, _ := connectedPair(t)

	require.NoError(t, sender.Close())
	ev := waitFor[DisconnectedEvent](t, sender)
	assert.NoError(t, ev.Err)

	remote := waitFor[DisconnectedEvent](t, receiver)
	assert.ErrorIs(t, remote.Err, ErrPeerClosed)
	<-receiver.Done()
}
