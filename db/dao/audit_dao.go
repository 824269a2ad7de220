package dao

import (
	"context"

	"gorm.io/gorm"

	"github.com/openballot/voting-core/db/model"
)

type AuditDao struct {
	DB *gorm.DB
}

func NewAuditDao(db *gorm.DB) *AuditDao {
	return &AuditDao{
		DB: db,
	}
}

// SaveAuditEntry writes outside any request transaction so rejected attempts
// leave a trace even though their transaction rolled back.
func (d *AuditDao) SaveAuditEntry(ctx context.Context, entry *model.AuditLogEntry) error {
	err := d.DB.WithContext(ctx).Create(entry).Error
	if err != nil {
		return translateStoreError(err)
	}
	return nil
}

func (d *AuditDao) GetEntriesByCorrelation(ctx context.Context, correlationId string) ([]*model.AuditLogEntry, error) {
	entries := make([]*model.AuditLogEntry, 0)
	err := d.DB.WithContext(ctx).
		Where("correlation_id = ?", correlationId).
		Order("id asc").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// DeleteEntriesBefore removes audit entries older than the given unix time.
// Only the audit log is subject to retention; tokens and ballots are kept.
func (d *AuditDao) DeleteEntriesBefore(ctx context.Context, unixTimestamp int64) (int64, error) {
	result := d.DB.WithContext(ctx).
		Where("created_time < ?", unixTimestamp).
		Delete(&model.AuditLogEntry{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
