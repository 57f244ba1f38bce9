package main

import (
	"fmt"

	"github.com/rescp17/filesTransfer/internal/history"
	"github.com/rescp17/filesTransfer/pkg/ui"
	"github.com/spf13/cobra"
)

func newHistoryCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show or clear finished transfers",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List finished transfers, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(flags)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.HistoryTable(records))
			return nil
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 20, "Number of records to show, 0 for all")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove completed transfers from the history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(flags)
			if err != nil {
				return err
			}
			defer store.Close()

			removed, err := store.ClearCompleted(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d completed transfer(s)\n", removed)
			return nil
		},
	}

	cmd.AddCommand(list, clearCmd)
	return cmd
}

func openStore(flags *rootFlags) (*history.Store, error) {
	cfg, err := flags.load(flags.options())
	if err != nil {
		return nil, err
	}
	if cfg.HistoryPath == "" {
		return nil, fmt.Errorf("history is disabled")
	}
	return history.Open(cfg.HistoryPath)
}
