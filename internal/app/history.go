package app

import (
	"context"

	"github.com/rescp17/filesTransfer/internal/history"
)

// OpenHistory opens the configured history store and applies the retention
// rules. It returns nil without error when history is disabled.
func OpenHistory(ctx context.Context, cfg *Config) (*history.Store, error) {
	if cfg.HistoryPath == "" {
		return nil, nil
	}
	store, err := history.Open(cfg.HistoryPath)
	if err != nil {
		return nil, err
	}
	if _, err := store.Prune(ctx, cfg.HistoryRetention, cfg.MaxHistoryRecords); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

// RecorderFor adapts a possibly nil store to a Recorder.
func RecorderFor(store *history.Store) Recorder {
	if store == nil {
		return nil
	}
	return store
}
