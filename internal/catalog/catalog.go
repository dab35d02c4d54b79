package catalog

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"rumble-backup/pkg/models"
)

// Store indexes backed up videos and run history in SQLite. It is a
// convenience layer for the dashboard and exports; the state file and the
// files on disk stay the source of truth for reconciliation.
type Store struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewStore opens (or creates) the catalog database and migrates its schema.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create catalog directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog database: %w", err)
	}

	if err := db.AutoMigrate(&models.VideoRecord{}, &models.RunRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate catalog schema: %w", err)
	}

	return &Store{
		db:     db,
		logger: zerolog.New(os.Stdout).With().Timestamp().Str("component", "catalog").Logger(),
	}, nil
}

// SaveVideo inserts or updates the record for (channel, video id).
func (s *Store) SaveVideo(rec *models.VideoRecord) error {
	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "channel"}, {Name: "video_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "uploader", "duration", "view_count", "like_count",
			"upload_date", "media_path", "size", "downloaded_at",
		}),
	}).Create(rec).Error
	if err != nil {
		return fmt.Errorf("failed to save video record: %w", err)
	}
	return nil
}

// VideosByChannel lists records for one channel, newest first. A limit of 0
// means no limit.
func (s *Store) VideosByChannel(channel string, limit int) ([]*models.VideoRecord, error) {
	var records []*models.VideoRecord
	query := s.db.Where("channel = ?", channel).Order("downloaded_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list videos for %s: %w", channel, err)
	}
	return records, nil
}

// AllVideos lists every record, newest first.
func (s *Store) AllVideos() ([]*models.VideoRecord, error) {
	var records []*models.VideoRecord
	if err := s.db.Order("downloaded_at DESC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	return records, nil
}

// SaveRun appends one channel run to the history.
func (s *Store) SaveRun(rec *models.RunRecord) error {
	if err := s.db.Create(rec).Error; err != nil {
		return fmt.Errorf("failed to save run record: %w", err)
	}
	return nil
}

// RecentRuns lists run history, newest first.
func (s *Store) RecentRuns(limit int) ([]*models.RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []*models.RunRecord
	if err := s.db.Order("completed_at DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return records, nil
}

// Stats returns catalog-wide counters.
func (s *Store) Stats() (*models.CatalogStats, error) {
	stats := &models.CatalogStats{}

	if err := s.db.Model(&models.VideoRecord{}).Count(&stats.TotalVideos).Error; err != nil {
		return nil, fmt.Errorf("failed to count videos: %w", err)
	}
	var totalSize *int64
	if err := s.db.Model(&models.VideoRecord{}).Select("SUM(size)").Scan(&totalSize).Error; err != nil {
		return nil, fmt.Errorf("failed to sum sizes: %w", err)
	}
	if totalSize != nil {
		stats.TotalSize = *totalSize
	}
	if err := s.db.Model(&models.RunRecord{}).Count(&stats.TotalRuns).Error; err != nil {
		return nil, fmt.Errorf("failed to count runs: %w", err)
	}
	return stats, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
