package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/rescp17/filesTransfer/internal/app"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// rootFlags are shared by every subcommand.
type rootFlags struct {
	logFile  string
	logLevel string

	port         int
	chunkSize    int
	pace         time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration

	historyPath      string
	historyRetention time.Duration
	historyMax       int
	noHistory        bool
}

func main() {
	flags := &rootFlags{}
	var logCloser func()

	cmd := &cobra.Command{
		Use:   "filetransfer",
		Short: "Send and receive files over a single TCP connection",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			closer, err := setupLogging(flags.logFile, flags.logLevel)
			if err != nil {
				return err
			}
			logCloser = closer
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logCloser != nil {
				logCloser()
			}
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.logFile, "log-file", "filetransfer.log", "File that receives logs, empty for stderr")
	pf.StringVar(&flags.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	pf.IntVar(&flags.port, "port", 0, fmt.Sprintf("TCP port to listen on or dial (default %d)", app.DefaultPort))
	pf.IntVar(&flags.chunkSize, "chunk-size", 0, "Bytes per chunk frame")
	pf.DurationVar(&flags.pace, "pace", 0, "Pause between two chunks of one upload")
	pf.DurationVar(&flags.readTimeout, "read-timeout", 0, "Read deadline per frame, 0 disables it")
	pf.DurationVar(&flags.writeTimeout, "write-timeout", 0, "Write deadline per frame")
	pf.StringVar(&flags.historyPath, "history", "", fmt.Sprintf("History database (default %s)", app.DefaultHistoryPath))
	pf.DurationVar(&flags.historyRetention, "history-retention", 0, "Drop history older than this")
	pf.IntVar(&flags.historyMax, "history-max", 0, "Keep at most this many history records")
	pf.BoolVar(&flags.noHistory, "no-history", false, "Do not record finished transfers")

	cmd.AddCommand(newServeCmd(flags))
	cmd.AddCommand(newSendCmd(flags))
	cmd.AddCommand(newHistoryCmd(flags))

	if err := fang.Execute(context.Background(), cmd); err != nil {
		os.Exit(1)
	}
}

// options converts the shared flags into config overrides.
func (f *rootFlags) options() app.Options {
	return app.Options{
		Port:              f.port,
		ChunkSize:         f.chunkSize,
		PaceInterval:      f.pace,
		ReadTimeout:       f.readTimeout,
		WriteTimeout:      f.writeTimeout,
		HistoryPath:       f.historyPath,
		HistoryRetention:  f.historyRetention,
		MaxHistoryRecords: f.historyMax,
	}
}

func (f *rootFlags) load(opts app.Options) (*app.Config, error) {
	cfg, err := app.Load(opts)
	if err != nil {
		return nil, err
	}
	if f.noHistory {
		cfg.HistoryPath = ""
	}
	return cfg, nil
}

// setupLogging routes logrus to path so the TUI owns the terminal.
func setupLogging(path, level string) (func(), error) {
	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	logrus.SetLevel(lvl)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	if path == "" {
		logrus.SetOutput(os.Stderr)
		return func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	logrus.SetOutput(f)
	return func() {
		if err := f.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to close log file: %v\n", err)
		}
	}, nil
}
