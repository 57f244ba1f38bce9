package app

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rescp17/filesTransfer/pkg/transfer"
)

const (
	DefaultOutputDir         = "Transfers"
	DefaultPort              = 8975
	DefaultHistoryPath       = "filetransfer-history.db"
	DefaultHistoryRetention  = 30 * 24 * time.Hour
	DefaultMaxHistoryRecords = 500

	envPrefix = "FILETRANSFER_"
)

// Config holds the application configuration shared by both modes.
type Config struct {
	Transfer *transfer.TransferConfig

	// OutputDir receives downloads. It is created when missing.
	OutputDir string
	Port      int
	// ServiceName is the mDNS instance name. Empty means hostname plus a short id.
	ServiceName string
	Discovery   bool

	// HistoryPath is the sqlite file for finished transfers. Empty disables history.
	HistoryPath       string
	HistoryRetention  time.Duration
	MaxHistoryRecords int

	// AutoStart makes the receiver start announced downloads right away.
	AutoStart bool
}

// Options carries CLI flag values. Zero values and nil pointers mean the
// flag was not given.
type Options struct {
	OutputDir         string
	Port              int
	ServiceName       string
	Discovery         *bool
	HistoryPath       string
	HistoryRetention  time.Duration
	MaxHistoryRecords int
	AutoStart         *bool

	ChunkSize    int
	PaceInterval time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() *Config {
	return &Config{
		Transfer:          transfer.DefaultTransferConfig(),
		OutputDir:         DefaultOutputDir,
		Port:              DefaultPort,
		Discovery:         true,
		HistoryPath:       DefaultHistoryPath,
		HistoryRetention:  DefaultHistoryRetention,
		MaxHistoryRecords: DefaultMaxHistoryRecords,
		AutoStart:         true,
	}
}

// Load resolves every setting as CLI flag > environment > default.
func Load(opts Options) (*Config, error) {
	return load(opts, os.LookupEnv)
}

func load(opts Options, lookup func(string) (string, bool)) (*Config, error) {
	cfg := DefaultConfig()
	env := envReader{lookup: lookup}

	cfg.OutputDir = firstString(opts.OutputDir, env.str("OUTPUT_DIR"), cfg.OutputDir)
	cfg.ServiceName = firstString(opts.ServiceName, env.str("SERVICE_NAME"), cfg.ServiceName)
	cfg.HistoryPath = firstString(opts.HistoryPath, env.str("HISTORY"), cfg.HistoryPath)

	cfg.Port = firstInt(opts.Port, env.int("PORT"), cfg.Port)
	cfg.MaxHistoryRecords = firstInt(opts.MaxHistoryRecords, env.int("HISTORY_MAX"), cfg.MaxHistoryRecords)
	cfg.HistoryRetention = firstDuration(opts.HistoryRetention, env.duration("HISTORY_RETENTION"), cfg.HistoryRetention)

	cfg.Discovery = firstBool(opts.Discovery, env.bool("MDNS"), cfg.Discovery)
	cfg.AutoStart = firstBool(opts.AutoStart, env.bool("AUTO_START"), cfg.AutoStart)

	t := cfg.Transfer
	t.ChunkSize = int32(firstInt(opts.ChunkSize, env.int("CHUNK_SIZE"), int(t.ChunkSize)))
	t.PaceInterval = firstDuration(opts.PaceInterval, env.duration("PACE"), t.PaceInterval)
	t.ReadTimeout = firstDuration(opts.ReadTimeout, env.duration("READ_TIMEOUT"), t.ReadTimeout)
	t.WriteTimeout = firstDuration(opts.WriteTimeout, env.duration("WRITE_TIMEOUT"), t.WriteTimeout)

	if env.err != nil {
		return nil, env.err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the application settings and the transfer settings.
func (c *Config) Validate() error {
	if c.Transfer == nil {
		return fmt.Errorf("%w: missing transfer configuration", transfer.ErrInvalidConfiguration)
	}
	if err := c.Transfer.Validate(); err != nil {
		return err
	}
	if c.OutputDir == "" {
		return fmt.Errorf("%w: output directory must not be empty", transfer.ErrInvalidConfiguration)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", transfer.ErrInvalidConfiguration, c.Port)
	}
	if c.HistoryRetention < 0 || c.MaxHistoryRecords < 0 {
		return fmt.Errorf("%w: history limits must not be negative", transfer.ErrInvalidConfiguration)
	}
	return nil
}

// envReader reads FILETRANSFER_* variables and keeps the first parse error.
type envReader struct {
	lookup func(string) (string, bool)
	err    error
}

func (e *envReader) raw(name string) (string, bool) {
	v, ok := e.lookup(envPrefix + name)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (e *envReader) fail(name, value string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("%w: %s%s=%q: %v", transfer.ErrInvalidConfiguration, envPrefix, name, value, err)
	}
}

func (e *envReader) str(name string) string {
	v, _ := e.raw(name)
	return v
}

func (e *envReader) int(name string) int {
	v, ok := e.raw(name)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(name, v, err)
		return 0
	}
	return n
}

func (e *envReader) duration(name string) time.Duration {
	v, ok := e.raw(name)
	if !ok {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(name, v, err)
		return 0
	}
	return d
}

func (e *envReader) bool(name string) *bool {
	v, ok := e.raw(name)
	if !ok {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(name, v, err)
		return nil
	}
	return &b
}

func firstString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstInt(values ...int) int {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}

func firstDuration(values ...time.Duration) time.Duration {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}

func firstBool(flag, env *bool, def bool) bool {
	if flag != nil {
		return *flag
	}
	if env != nil {
		return *env
	}
	return def
}
