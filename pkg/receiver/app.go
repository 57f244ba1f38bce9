package receiver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"

	dnssdlog "github.com/brutella/dnssd/log"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/rescp17/filesTransfer/internal/app"
	appevents "github.com/rescp17/filesTransfer/internal/app_events"
	receiverEvents "github.com/rescp17/filesTransfer/internal/app_events/receiver"
	"github.com/rescp17/filesTransfer/internal/util"
	"github.com/rescp17/filesTransfer/pkg/acceptor"
	"github.com/rescp17/filesTransfer/pkg/concurrency"
	"github.com/rescp17/filesTransfer/pkg/discovery"
	"github.com/rescp17/filesTransfer/pkg/session"
	"github.com/rescp17/filesTransfer/pkg/transfer"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// App is the main application logic controller for the receiver.
type App struct {
	cfg       *app.Config
	serviceID string
	guard     *concurrency.ConcurrencyGuard
	registrar discovery.Adapter
	state     *app.StateManager
	bridge    *app.Bridge
	appEvents chan appevents.AppEvent
}

// NewApp creates a new receiver application instance. recorder may be nil.
func NewApp(cfg *app.Config, registrar discovery.Adapter, recorder app.Recorder) *App {
	dnssdlog.Info.SetOutput(io.Discard)
	dnssdlog.Debug.SetOutput(io.Discard)

	return &App{
		cfg:       cfg,
		serviceID: uuid.New().String(),
		guard:     concurrency.NewConcurrencyGuard(),
		registrar: registrar,
		state:     app.NewStateManager(),
		bridge:    app.NewBridge(64, recorder),
		appEvents: make(chan appevents.AppEvent),
	}
}

func (a *App) UIMessages() <-chan tea.Msg {
	return a.bridge.UIMessages()
}

func (a *App) AppEvents() chan<- appevents.AppEvent {
	return a.appEvents
}

// OverallProgress reports the average progress of the current session.
func (a *App) OverallProgress() int {
	return a.state.OverallProgress()
}

// Run ensures the output directory, announces the receiver and serves one
// sender at a time until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if err := util.EnsureDirectory(a.cfg.OutputDir); err != nil {
		a.bridge.SendAndLogError(ctx, "Could not prepare output directory", err)
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	if a.cfg.Discovery && a.registrar != nil {
		g.Go(func() error {
			return a.announce(ctx)
		})
	}
	g.Go(func() error {
		return a.serveLoop(ctx)
	})
	g.Go(func() error {
		a.handleAppEvents(ctx)
		return nil
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *App) announce(ctx context.Context) error {
	name := a.cfg.ServiceName
	if name == "" {
		hostname, err := os.Hostname()
		if err != nil {
			a.bridge.SendAndLogError(ctx, "Could not get hostname", err)
			return err
		}
		name = fmt.Sprintf("%s-%s", hostname, a.serviceID[:8])
	}

	serviceInfo := discovery.ServiceInfo{
		Name:   name,
		Type:   discovery.DefaultServerType,
		Domain: discovery.DefaultDomain,
		Port:   a.cfg.Port,
		Text:   map[string]string{"id": a.serviceID},
	}
	if err := a.registrar.Announce(ctx, serviceInfo); err != nil {
		a.bridge.SendAndLogError(ctx, "Failed to start mDNS announcement", err)
		return err
	}
	return nil
}

// serveLoop listens, adopts exactly one connection, serves it until the
// peer goes away, then listens again.
func (a *App) serveLoop(ctx context.Context) error {
	addr := net.JoinHostPort("", strconv.Itoa(a.cfg.Port))
	for {
		l, err := acceptor.Listen(ctx, addr)
		if err != nil {
			a.bridge.SendAndLogError(ctx, "Failed to listen", err)
			return err
		}
		a.bridge.Notify(ctx, receiverEvents.ListeningMsg{Port: l.Port()})

		conn, err := l.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			a.bridge.SendAndLogError(ctx, "Failed to accept connection", err)
			return err
		}

		peer := conn.RemoteAddr().String()
		err = a.guard.Execute(peer, func() error {
			return a.serveConn(ctx, conn)
		})
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, concurrency.ErrBusy):
			conn.Close()
			logrus.WithFields(logrus.Fields{
				"function": "serveLoop",
				"peer":     peer,
			}).Warn("Rejected connection while another session is active")
		case err != nil:
			logrus.WithFields(logrus.Fields{
				"function": "serveLoop",
				"peer":     peer,
				"error":    err.Error(),
			}).Info("Session ended")
		}
	}
}

func (a *App) serveConn(ctx context.Context, conn net.Conn) error {
	s, err := session.Serve(conn, session.Options{
		Config:       a.cfg.Transfer,
		OutputFolder: a.cfg.OutputDir,
	})
	if err != nil {
		conn.Close()
		return err
	}
	defer s.Close()

	active, err := a.state.Attach(s, conn.RemoteAddr().String())
	if err != nil {
		return err
	}
	defer a.state.Detach(s)

	a.bridge.Notify(ctx, appevents.PeerConnectedMsg{Remote: active.Peer})
	return a.bridge.Pump(ctx, active, func(ev session.Event) bool {
		queued, ok := ev.(session.QueuedEvent)
		if !ok || !a.cfg.AutoStart || queued.Queue.Direction != transfer.Download {
			return false
		}
		if err := s.StartTransfer(queued.Queue.ID); err != nil {
			a.bridge.SendAndLogError(ctx, "Failed to start download", err)
		}
		return false
	})
}

func (a *App) handleAppEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-a.appEvents:
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
