package session

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rescp17/filesTransfer/pkg/protocol"
	"github.com/rescp17/filesTransfer/pkg/transfer"
	"github.com/sirupsen/logrus"
)

// ErrPeerClosed is the disconnect cause when the peer ends the stream.
var ErrPeerClosed = errors.New("peer closed the connection")

// receiveLoop reads and dispatches frames one at a time until the
// connection fails. Malformed frames are skipped; a broken stream ends
// the session.
func (s *Session) receiveLoop() {
	fr := protocol.NewFrameReader(s.conn, s.cfg.MaxFrameSize)

	for {
		if s.cfg.ReadTimeout > 0 {
			s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		}

		payload, err := fr.ReadFrame()
		if err != nil {
			if s.isClosed() {
				return
			}
			if errors.Is(err, io.EOF) {
				err = ErrPeerClosed
			}
			s.shutdown(fmt.Errorf("receive: %w", err))
			return
		}

		msg, err := protocol.Decode(payload)
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"function": "receiveLoop",
				"size":     len(payload),
				"error":    err.Error(),
			}).Warn("Skipping malformed frame")
			continue
		}

		if err := s.dispatch(msg); err != nil {
			entry := s.log.WithFields(logrus.Fields{
				"function":    "dispatch",
				"tag":         msg.Tag().String(),
				"transfer_id": msg.TransferID(),
				"error":       err.Error(),
			})
			if errors.Is(err, transfer.ErrTransferNotFound) {
				entry.Debug("Frame for unknown transfer")
			} else {
				entry.Warn("Frame rejected")
			}
		}
	}
}
