// Package history persists finished transfers in a local sqlite database.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rescp17/filesTransfer/pkg/transfer"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("history store closed")

// Record is one finished transfer, complete or stopped.
type Record struct {
	ID          uint   `gorm:"primaryKey"`
	SessionID   string `gorm:"index"`
	TransferID  int32
	FileName    string
	Path        string
	Direction   string
	Length      int64
	Transferred int64
	State       string `gorm:"index"`
	MimeType    string
	Checksum    string
	Peer        string
	FinishedAt  time.Time `gorm:"index"`
}

// Store wraps the gorm handle for the history database.
type Store struct {
	db *gorm.DB
}

// Open creates or opens the database at path and migrates the schema.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		PrepareStmt: true,
		Logger:      logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("migrate history: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "history.Open",
		"path":     path,
	}).Debug("History store ready")
	return &Store{db: db}, nil
}

// Record inserts r, stamping FinishedAt when it is zero.
func (s *Store) Record(ctx context.Context, r *Record) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	if r.FinishedAt.IsZero() {
		r.FinishedAt = time.Now()
	}
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return fmt.Errorf("record transfer %d: %w", r.TransferID, err)
	}
	return nil
}

// List returns the newest records first. A limit <= 0 returns everything.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	var records []Record
	q := s.db.WithContext(ctx).Order("finished_at desc").Order("id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return records, nil
}

// Prune drops records older than retention and keeps at most maxRecords of
// the newest ones. Zero values disable the matching rule.
func (s *Store) Prune(ctx context.Context, retention time.Duration, maxRecords int) (int64, error) {
	if s == nil || s.db == nil {
		return 0, ErrClosed
	}
	db := s.db.WithContext(ctx)
	var removed int64

	if retention > 0 {
		res := db.Where("finished_at < ?", time.Now().Add(-retention)).Delete(&Record{})
		if res.Error != nil {
			return removed, fmt.Errorf("prune by age: %w", res.Error)
		}
		removed += res.RowsAffected
	}

	if maxRecords > 0 {
		var keep []uint
		err := db.Model(&Record{}).
			Order("finished_at desc").Order("id desc").
			Limit(maxRecords).
			Pluck("id", &keep).Error
		if err != nil {
			return removed, fmt.Errorf("prune by count: %w", err)
		}
		if len(keep) == maxRecords {
			res := db.Where("id NOT IN ?", keep).Delete(&Record{})
			if res.Error != nil {
				return removed, fmt.Errorf("prune by count: %w", res.Error)
			}
			removed += res.RowsAffected
		}
	}

	if removed > 0 {
		logrus.WithFields(logrus.Fields{
			"function": "Store.Prune",
			"removed":  removed,
		}).Info("Pruned transfer history")
	}
	return removed, nil
}

// ClearCompleted removes every record in the complete state.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, ErrClosed
	}
	res := s.db.WithContext(ctx).Where("state = ?", transfer.StateComplete.String()).Delete(&Record{})
	if res.Error != nil {
		return 0, fmt.Errorf("clear completed: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	s.db = nil
	return sqlDB.Close()
}
