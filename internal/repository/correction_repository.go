package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"taskboard/internal/model"
)

// CorrectionRepository persists derived-status writes waiting for a retry.
type CorrectionRepository struct {
	db *gorm.DB
}

func NewCorrectionRepository(db *gorm.DB) *CorrectionRepository {
	return &CorrectionRepository{db: db}
}

// Enqueue stores a correction. A newer correction for the same task replaces the old one.
func (r *CorrectionRepository) Enqueue(ctx context.Context, c *model.PendingCorrection) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "task_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"auth_uid", "payload", "attempts", "next_attempt_at", "last_error", "updated_at"}),
	}).Create(c).Error
	if err != nil {
		return fmt.Errorf("enqueue correction: %w", err)
	}
	return nil
}

// Due returns corrections whose next attempt is at or before now, oldest first.
func (r *CorrectionRepository) Due(ctx context.Context, now time.Time, limit int) ([]model.PendingCorrection, error) {
	var items []model.PendingCorrection
	q := r.db.WithContext(ctx).Where("next_attempt_at <= ?", now).Order("next_attempt_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list due corrections: %w", err)
	}
	return items, nil
}

// Reschedule records a failed attempt.
func (r *CorrectionRepository) Reschedule(ctx context.Context, id uint, attempts int, next time.Time, lastErr string) error {
	err := r.db.WithContext(ctx).Model(&model.PendingCorrection{}).Where("id = ?", id).Updates(map[string]interface{}{
		"attempts":        attempts,
		"next_attempt_at": next,
		"last_error":      lastErr,
	}).Error
	if err != nil {
		return fmt.Errorf("reschedule correction: %w", err)
	}
	return nil
}

func (r *CorrectionRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&model.PendingCorrection{}, id).Error; err != nil {
		return fmt.Errorf("delete correction: %w", err)
	}
	return nil
}

// DeleteByTask drops any pending correction for a task, e.g. after the user edited it.
func (r *CorrectionRepository) DeleteByTask(ctx context.Context, taskID model.TaskID) error {
	if err := r.db.WithContext(ctx).Where("task_id = ?", taskID).Delete(&model.PendingCorrection{}).Error; err != nil {
		return fmt.Errorf("delete correction: %w", err)
	}
	return nil
}

func (r *CorrectionRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.PendingCorrection{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count corrections: %w", err)
	}
	return n, nil
}
