package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rescp17/filesTransfer/internal/app"
	senderEvents "github.com/rescp17/filesTransfer/internal/app_events/sender"
	"github.com/rescp17/filesTransfer/pkg/discovery"
	"github.com/rescp17/filesTransfer/pkg/sender"
	"github.com/rescp17/filesTransfer/pkg/ui"
	"github.com/spf13/cobra"
)

func newSendCmd(flags *rootFlags) *cobra.Command {
	var (
		to    string
		plain bool
		pick  bool
	)

	cmd := &cobra.Command{
		Use:   "send [flags] [file or folder]...",
		Short: "Send files and folders to a receiver",
		Long: "Send files to the receiver given by --to, or to the first receiver " +
			"found over mDNS. Folders are sent as the files they contain. With --pick " +
			"the files are chosen in an interactive browser.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if pick {
				picked, err := ui.RunPicker(".")
				if err != nil {
					return err
				}
				args = append(args, picked...)
			}
			if len(args) == 0 {
				return errors.New("nothing to send: pass files or folders, or use --pick")
			}
			cfg, err := flags.load(flags.options())
			if err != nil {
				return err
			}
			host, port, err := parseTarget(to, cfg.Port)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			store, err := app.OpenHistory(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			var adapter discovery.Adapter
			if cfg.Discovery {
				adapter = &discovery.MDNSAdapter{}
			}
			a := sender.NewApp(cfg, adapter, app.RecorderFor(store))
			req := senderEvents.SendFilesMsg{Host: host, Port: port, Paths: args}

			run := func(ctx context.Context) error {
				go func() {
					select {
					case a.AppEvents() <- req:
					case <-ctx.Done():
					}
				}()
				return a.Run(ctx)
			}

			var result senderEvents.TransferCompleteMsg
			var finished bool
			stopOn := func(msg tea.Msg) bool {
				if m, ok := msg.(senderEvents.TransferCompleteMsg); ok {
					result, finished = m, true
				}
				return finished
			}

			final, err := runApp(ctx, a, ui.Sender, run, plain, cmd.OutOrStdout(), stopOn)
			if err != nil {
				return err
			}
			if m, ok := final.(ui.Model); ok {
				result.Summary, finished = m.Summary()
				result.Err = m.SendErr()
			}
			if !finished {
				if err := ctx.Err(); err != nil {
					return err
				}
				return errors.New("send interrupted")
			}

			fmt.Fprintln(cmd.OutOrStdout(), ui.SummaryTable(result.Summary))
			if result.Err != nil {
				return result.Err
			}
			if !result.Summary.Complete() {
				return errors.New("not every file was delivered")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&to, "to", "t", "", "Receiver as host or host:port (default: discover over mDNS)")
	cmd.Flags().BoolVar(&plain, "plain", false, "Print plain progress instead of the interactive view")
	cmd.Flags().BoolVarP(&pick, "pick", "p", false, "Choose files in an interactive browser")
	return cmd
}

// parseTarget splits host[:port]. An empty target means discovery.
func parseTarget(target string, defaultPort int) (string, int, error) {
	if target == "" {
		return "", 0, nil
	}
	host, portText, err := net.SplitHostPort(target)
	if err != nil {
		// No port given.
		return target, defaultPort, nil
	}
	port, err := strconv.Atoi(portText)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("invalid port in %q", target)
	}
	return host, port, nil
}
