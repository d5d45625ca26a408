package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tejzpr/checkup-bot/internal/submission"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned by Get for an unknown id.
var ErrNotFound = errors.New("db: submission not found")

// Store is the append-only submission log.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) the sqlite database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("db: create dir: %w", err)
		}
	}
	d, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("db: open %s: %w", path, err)
	}
	return New(d)
}

// New wraps an already opened *gorm.DB (useful for testing).
func New(d *gorm.DB) (*Store, error) {
	if err := d.AutoMigrate(&Request{}); err != nil {
		return nil, fmt.Errorf("db: migrate: %w", err)
	}
	return &Store{db: d}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Insert records a finalized submission. Rows are never updated.
func (s *Store) Insert(ctx context.Context, sub submission.Submission) error {
	row := fromSubmission(sub)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("db: insert %s: %w", sub.ID, err)
	}
	return nil
}

// ListSince returns submissions created at or after since, newest first.
func (s *Store) ListSince(ctx context.Context, since time.Time) ([]submission.Submission, error) {
	var rows []Request
	err := s.db.WithContext(ctx).
		Where("created_at >= ?", since.UTC().Format(submission.TimeLayout)).
		Order("created_at DESC").
		Order("rowid DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("db: list since %s: %w", since.Format(time.RFC3339), err)
	}
	out := make([]submission.Submission, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Submission())
	}
	return out, nil
}

// Get fetches one submission by id.
func (s *Store) Get(ctx context.Context, id string) (submission.Submission, error) {
	var row Request
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return submission.Submission{}, ErrNotFound
	}
	if err != nil {
		return submission.Submission{}, fmt.Errorf("db: get %s: %w", id, err)
	}
	return row.Submission(), nil
}
