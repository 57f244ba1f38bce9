package ui

import (
	"context"
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	appevents "github.com/rescp17/filesTransfer/internal/app_events"
	receiverEvents "github.com/rescp17/filesTransfer/internal/app_events/receiver"
	senderEvents "github.com/rescp17/filesTransfer/internal/app_events/sender"
	"github.com/rescp17/filesTransfer/internal/util"
	"github.com/rescp17/filesTransfer/pkg/transfer"
	"github.com/schollz/progressbar/v3"
)

// PlainRunner prints app messages as text lines and progress bars, for
// terminals without a TUI.
type PlainRunner struct {
	out  io.Writer
	bars map[int32]*plainBar
}

type plainBar struct {
	row appevents.TransferRow
	bar *progressbar.ProgressBar
}

func NewPlainRunner(out io.Writer) *PlainRunner {
	return &PlainRunner{out: out, bars: make(map[int32]*plainBar)}
}

// Run consumes app messages until ctx ends or stop returns true for one of
// them. A nil stop runs until ctx ends.
func (p *PlainRunner) Run(ctx context.Context, app AppController, stop func(tea.Msg) bool) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-app.UIMessages():
			p.Handle(msg)
			if stop != nil && stop(msg) {
				return nil
			}
		}
	}
}

// Handle prints one app message.
func (p *PlainRunner) Handle(msg tea.Msg) {
	switch msg := msg.(type) {
	case appevents.StatusMsg:
		fmt.Fprintln(p.out, msg.Message)
	case appevents.ErrorMsg:
		fmt.Fprintf(p.out, "error: %v\n", msg.Err)
	case appevents.PeerConnectedMsg:
		fmt.Fprintf(p.out, "connected to %s\n", msg.Remote)
	case appevents.PeerDisconnectedMsg:
		if msg.Err != nil {
			fmt.Fprintf(p.out, "disconnected: %v\n", msg.Err)
		} else {
			fmt.Fprintln(p.out, "disconnected")
		}
	case receiverEvents.ListeningMsg:
		fmt.Fprintf(p.out, "waiting for a sender on port %d\n", msg.Port)
	case senderEvents.ReceiverFoundMsg:
		fmt.Fprintf(p.out, "found %s at %s:%d\n", msg.Service.Name, msg.Service.Addr, msg.Service.Port)
	case appevents.TransferQueuedMsg:
		p.queued(msg.Transfer)
	case appevents.TransferProgressMsg:
		if b, ok := p.bars[msg.ID]; ok && b.bar != nil {
			b.bar.Set64(b.row.Length * int64(msg.Progress) / 100)
		}
	case appevents.TransferPausedMsg:
		if b, ok := p.bars[msg.ID]; ok {
			state := "resumed"
			if msg.Paused {
				state = "paused"
			}
			fmt.Fprintf(p.out, "\n%s %s\n", b.row.FileName, state)
		}
	case appevents.TransferFinishedMsg:
		p.finished(msg)
	}
}

func (p *PlainRunner) queued(row appevents.TransferRow) {
	verb := "receiving"
	if row.Direction == transfer.Upload {
		verb = "sending"
	}
	b := &plainBar{row: row}
	if row.Length > 0 {
		b.bar = progressbar.NewOptions64(
			row.Length,
			progressbar.OptionSetDescription(fmt.Sprintf("%s %s", verb, util.FitName(row.FileName, 24))),
			progressbar.OptionSetWriter(p.out),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(30),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionShowCount(),
		)
	} else {
		fmt.Fprintf(p.out, "%s %s (empty)\n", verb, row.FileName)
	}
	p.bars[row.ID] = b
}

func (p *PlainRunner) finished(msg appevents.TransferFinishedMsg) {
	b, ok := p.bars[msg.ID]
	if !ok {
		return
	}
	delete(p.bars, msg.ID)
	if b.bar != nil && msg.State == transfer.StateComplete {
		b.bar.Finish()
	}
	by := ""
	if msg.Remote {
		by = " by peer"
	}
	fmt.Fprintf(p.out, "\n%s %s%s\n", b.row.FileName, msg.State, by)
}
