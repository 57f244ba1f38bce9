package sender

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rescp17/filesTransfer/internal/app"
	appevents "github.com/rescp17/filesTransfer/internal/app_events"
	"github.com/rescp17/filesTransfer/internal/app_events/sender"
	"github.com/rescp17/filesTransfer/pkg/concurrency"
	"github.com/rescp17/filesTransfer/pkg/discovery"
	"github.com/rescp17/filesTransfer/pkg/fileInfo"
	"github.com/rescp17/filesTransfer/pkg/session"
	"github.com/sirupsen/logrus"
)

// ErrNoFiles is returned when the given paths expand to no regular file.
var ErrNoFiles = errors.New("no files to send")

// App is the main application logic controller for the sender.
type App struct {
	cfg        *app.Config
	guard      *concurrency.ConcurrencyGuard
	discoverer discovery.Adapter
	state      *app.StateManager
	bridge     *app.Bridge
	appEvents  chan appevents.AppEvent // UI -> App
	transferWG sync.WaitGroup          // Track active transfer goroutines
}

// NewApp creates a new sender application instance. recorder may be nil.
func NewApp(cfg *app.Config, adapter discovery.Adapter, recorder app.Recorder) *App {
	return &App{
		cfg:        cfg,
		guard:      concurrency.NewConcurrencyGuard(),
		discoverer: adapter,
		state:      app.NewStateManager(),
		bridge:     app.NewBridge(64, recorder),
		appEvents:  make(chan appevents.AppEvent),
	}
}

// UIMessages returns the channel for the UI to listen on for updates.
func (a *App) UIMessages() <-chan tea.Msg {
	return a.bridge.UIMessages()
}

// AppEvents returns a write-only channel for the UI to send events to the app.
func (a *App) AppEvents() chan<- appevents.AppEvent {
	return a.appEvents
}

func (a *App) OverallProgress() int {
	return a.state.OverallProgress()
}

// Run handles UI events until ctx is cancelled, then waits for running sends.
func (a *App) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			a.transferWG.Wait()
			return nil
		case event := <-a.appEvents:
			switch e := event.(type) {
			case sender.SendFilesMsg:
				a.StartSendProcess(ctx, e)
			default:
				msg, err := a.state.Dispatch(event)
				if err != nil {
					a.bridge.SendAndLogError(ctx, "Command failed", err)
					continue
				}
				if msg != nil {
					a.bridge.Notify(ctx, msg)
				}
			}
		}
	}
}

// StartSendProcess runs Send in the background and reports the outcome to the UI.
func (a *App) StartSendProcess(ctx context.Context, req sender.SendFilesMsg) {
	a.transferWG.Add(1)
	go func() {
		defer a.transferWG.Done()
		var summary sender.Summary
		err := a.guard.Execute(req.Host, func() error {
			var err error
			summary, err = a.Send(ctx, req)
			return err
		})
		switch {
		case errors.Is(err, concurrency.ErrBusy):
			a.bridge.SendAndLogError(ctx, "A transfer is already in progress", err)
		case err != nil:
			logrus.WithFields(logrus.Fields{
				"function": "StartSendProcess",
				"error":    err.Error(),
			}).Error("Transfer failed")
			a.bridge.Notify(ctx, sender.TransferCompleteMsg{Summary: summary, Err: err})
		default:
			a.bridge.Notify(ctx, sender.TransferCompleteMsg{Summary: summary})
		}
	}()
}

// Send uploads every file below req.Paths to one receiver and returns when
// all of them completed or stopped, or the session ended.
func (a *App) Send(ctx context.Context, req sender.SendFilesMsg) (sender.Summary, error) {
	started := time.Now()
	nodes, err := fileInfo.CollectFiles(req.Paths)
	if err != nil {
		return sender.Summary{}, err
	}
	if len(nodes) == 0 {
		return sender.Summary{}, ErrNoFiles
	}

	host, port := req.Host, req.Port
	if host == "" {
		svc, err := a.resolveReceiver(ctx)
		if err != nil {
			return sender.Summary{}, err
		}
		host, port = svc.Addr.String(), svc.Port
	}
	if port == 0 {
		port = a.cfg.Port
	}
	summary := sender.Summary{Receiver: net.JoinHostPort(host, strconv.Itoa(port))}

	a.bridge.Notify(ctx, appevents.StatusMsg{Message: "Connecting to " + summary.Receiver})
	s, err := a.connect(ctx, host, port)
	if err != nil {
		return summary, err
	}
	defer s.Close()

	active, err := a.state.Attach(s, summary.Receiver)
	if err != nil {
		return summary, err
	}
	defer a.state.Detach(s)
	a.bridge.Notify(ctx, appevents.PeerConnectedMsg{Remote: active.Peer})

	tracker := newUploadTracker()
	pumpCtx, stopPump := context.WithCancel(ctx)
	defer stopPump()
	pumpErr := make(chan error, 1)
	go func() {
		pumpErr <- a.bridge.Pump(pumpCtx, active, tracker.observe)
	}()

	for _, node := range nodes {
		id, err := s.QueueUpload(node.Path)
		if err != nil {
			tracker.fail(node, err)
			a.bridge.SendAndLogError(ctx, "Failed to queue "+node.Path, err)
			continue
		}
		tracker.add(id, node)
	}
	tracker.seal()

	select {
	case <-tracker.done:
	case err = <-pumpErr:
		if err == nil {
			err = session.ErrClosed
		}
		tracker.abort(err)
	case <-ctx.Done():
		err = ctx.Err()
		tracker.abort(err)
	}

	summary.Files = tracker.results()
	summary.Elapsed = time.Since(started)
	logrus.WithFields(logrus.Fields{
		"function": "Send",
		"receiver": summary.Receiver,
		"files":    len(summary.Files),
		"complete": summary.Complete(),
		"elapsed":  summary.Elapsed.String(),
	}).Info("Send finished")
	return summary, err
}

func (a *App) resolveReceiver(ctx context.Context) (discovery.ServiceInfo, error) {
	if a.discoverer == nil {
		return discovery.ServiceInfo{}, fmt.Errorf("%w: discovery disabled and no host given", discovery.ErrNoService)
	}
	a.bridge.Notify(ctx, appevents.StatusMsg{Message: "Looking for receivers..."})

	findCtx, cancel := context.WithTimeout(ctx, a.cfg.Transfer.DialTimeout)
	defer cancel()
	browse := discovery.ServiceInfo{Type: discovery.DefaultServerType, Domain: discovery.DefaultDomain}
	svc, err := discovery.FindFirst(findCtx, a.discoverer, browse.FQDN())
	if err != nil {
		return discovery.ServiceInfo{}, err
	}
	if svc.Addr == nil {
		return discovery.ServiceInfo{}, fmt.Errorf("%w: %s has no address", discovery.ErrNoService, svc.Name)
	}
	a.bridge.Notify(ctx, sender.ReceiverFoundMsg{Service: svc})
	return svc, nil
}

func (a *App) connect(ctx context.Context, host string, port int) (*session.Session, error) {
	type dialResult struct {
		s   *session.Session
		err error
	}
	result := make(chan dialResult, 1)
	session.Connect(ctx, host, port, session.Options{Config: a.cfg.Transfer}, func(s *session.Session, err error) {
		result <- dialResult{s: s, err: err}
	})

	select {
	case r := <-result:
		return r.s, r.err
	case <-ctx.Done():
		go func() {
			if r := <-result; r.s != nil {
				r.s.Close()
			}
		}()
		return nil, ctx.Err()
	}
}
