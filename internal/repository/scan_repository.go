package repository

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/agrilens/internal/retry"
)

// ScanRecord is a persisted analysis outcome.
type ScanRecord struct {
	ID          uint      `gorm:"primaryKey"`
	SessionID   string    `gorm:"column:session_id;uniqueIndex:idx_session_run;size:64"`
	Run         uint64    `gorm:"column:run;uniqueIndex:idx_session_run"`
	UserID      string    `gorm:"column:user_id;index;size:64"`
	Kind        string    `gorm:"column:kind;index;size:16"`
	Label       string    `gorm:"column:label;size:64"`
	ImageSHA1   string    `gorm:"column:image_sha1;index;size:40"`
	ImageOrigin string    `gorm:"column:image_origin;size:16"`
	ImageName   string    `gorm:"column:image_name;size:255"`
	Payload     string    `gorm:"column:payload;type:text"`
	CreatedAt   time.Time `gorm:"column:created_at;index"`
}

// TableName overrides the default table name.
func (ScanRecord) TableName() string {
	return "scan_records"
}

// OutcomeCount is one row of the per-label aggregation.
type OutcomeCount struct {
	Label string
	Count int64
}

// ScanRepository provides persistence APIs for scan records.
type ScanRepository struct {
	db     *gorm.DB
	logger *zap.Logger
	policy retry.Policy
}

// NewScanRepository creates a new repository instance.
func NewScanRepository(db *gorm.DB, logger *zap.Logger) *ScanRepository {
	return &ScanRepository{
		db:     db,
		logger: logger.Named("scan_repository"),
		policy: retry.DefaultPolicy(),
	}
}

// AutoMigrate ensures the schema is available.
func (r *ScanRepository) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&ScanRecord{})
}

// SaveRecord persists a scan record.
func (r *ScanRepository) SaveRecord(ctx context.Context, record *ScanRecord) error {
	return r.executeWithRetry(ctx, "repository.save_record", record.SessionID, func() error {
		return r.db.WithContext(ctx).Create(record).Error
	})
}

// FindBySessionAndUser retrieves the latest record of a session owned by userID.
func (r *ScanRepository) FindBySessionAndUser(ctx context.Context, sessionID, userID string) (*ScanRecord, error) {
	var record ScanRecord
	err := r.executeWithRetry(ctx, "repository.find_record", sessionID, func() error {
		return r.db.WithContext(ctx).
			Where("session_id = ? AND user_id = ?", sessionID, userID).
			Order("run DESC").
			First(&record).Error
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ListRecent returns the newest records of userID, newest first.
func (r *ScanRepository) ListRecent(ctx context.Context, userID string, limit int) ([]*ScanRecord, error) {
	var records []*ScanRecord
	err := r.executeWithRetry(ctx, "repository.list_recent", "", func() error {
		return r.db.WithContext(ctx).
			Where("user_id = ?", userID).
			Order("created_at DESC").
			Limit(limit).
			Find(&records).Error
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// CountOutcomes aggregates how often each label was produced for kind.
func (r *ScanRepository) CountOutcomes(ctx context.Context, kind string) ([]OutcomeCount, error) {
	var rows []OutcomeCount
	err := r.executeWithRetry(ctx, "repository.count_outcomes", "", func() error {
		return r.db.WithContext(ctx).
			Model(&ScanRecord{}).
			Select("label, COUNT(*) AS count").
			Where("kind = ?", kind).
			Group("label").
			Order("label").
			Scan(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ScanRepository) executeWithRetry(ctx context.Context, operation, sessionID string, fn func() error) error {
	return retry.Do(ctx, r.logger, r.policy, operation, sessionID, fn)
}
