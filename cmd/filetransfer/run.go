package main

import (
	"context"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rescp17/filesTransfer/pkg/ui"
)

// runApp runs the app controller next to a TUI or plain output. It returns
// the final TUI model (nil in plain mode) and the controller's error.
func runApp(ctx context.Context, controller ui.AppController, mode ui.Mode, run func(context.Context) error,
	plain bool, out io.Writer, stop func(tea.Msg) bool) (tea.Model, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runErr := make(chan error, 1)
	uiCtx, uiCancel := context.WithCancel(ctx)
	go func() {
		runErr <- run(ctx)
		uiCancel()
	}()

	var final tea.Model
	if plain {
		ui.NewPlainRunner(out).Run(uiCtx, controller, stop)
	} else {
		p := tea.NewProgram(ui.NewModel(mode, controller), tea.WithContext(uiCtx))
		m, err := p.Run()
		if err != nil && uiCtx.Err() == nil {
			cancel()
			<-runErr
			return nil, err
		}
		final = m
	}

	cancel()
	return final, <-runErr
}
