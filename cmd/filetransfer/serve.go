package main

import (
	"os"
	"os/signal"

	"github.com/rescp17/filesTransfer/internal/app"
	"github.com/rescp17/filesTransfer/pkg/discovery"
	"github.com/rescp17/filesTransfer/pkg/receiver"
	"github.com/rescp17/filesTransfer/pkg/ui"
	"github.com/spf13/cobra"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	var (
		output string
		name   string
		noMDNS bool
		manual bool
		plain  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Receive files, one sender at a time",
		Long: "Listen for a sender, accept its files into the output folder and " +
			"listen again once it disconnects.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := flags.options()
			opts.OutputDir = output
			opts.ServiceName = name
			if cmd.Flags().Changed("no-mdns") {
				enabled := !noMDNS
				opts.Discovery = &enabled
			}
			if cmd.Flags().Changed("manual") {
				auto := !manual
				opts.AutoStart = &auto
			}
			cfg, err := flags.load(opts)
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

			a := receiver.NewApp(cfg, &discovery.MDNSAdapter{}, app.RecorderFor(store))
			_, err = runApp(ctx, a, ui.Receiver, a.Run, plain, cmd.OutOrStdout(), nil)
			return err
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Folder for received files (default "+app.DefaultOutputDir+")")
	cmd.Flags().StringVar(&name, "name", "", "mDNS instance name (default hostname plus a short id)")
	cmd.Flags().BoolVar(&noMDNS, "no-mdns", false, "Do not announce the receiver on the local network")
	cmd.Flags().BoolVar(&manual, "manual", false, "Wait for enter before starting each download")
	cmd.Flags().BoolVar(&plain, "plain", false, "Print plain progress instead of the interactive view")
	return cmd
}
