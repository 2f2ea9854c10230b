package repositories

import (
	"context"
	"time"

	"taskledger/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

// ActivityLog is the append-only task_logs table. Entries can only be derived
// from a task row; there is no way to write an arbitrary entry.
type ActivityLog struct{}

func NewActivityLog() *ActivityLog {
	return &ActivityLog{}
}

// Record appends one entry snapshotting task for action.
func (l *ActivityLog) Record(ctx context.Context, db *gorm.DB, task *models.Task, action models.LogAction, at time.Time) (*models.LogEntry, error) {
	entry := &models.LogEntry{
		OwnerID:     task.OwnerID,
		TaskID:      task.ID,
		Title:       task.Title,
		Description: task.Description,
		Priority:    task.Priority,
		DueDate:     task.DueDate,
		Status:      task.Status,
		Action:      action,
		LoggedAt:    at,
	}
	if err := db.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

// ListByOwner returns the owner's entries oldest first.
func (l *ActivityLog) ListByOwner(ctx context.Context, db *gorm.DB, ownerID uuid.UUID) ([]models.LogEntry, error) {
	entries := []models.LogEntry{}
	err := db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("id ASC").
		Find(&entries).Error
	return entries, err
}

// ClearByOwner removes all of the owner's entries and reports how many went.
func (l *ActivityLog) ClearByOwner(ctx context.Context, db *gorm.DB, ownerID uuid.UUID) (int64, error) {
	result := db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Delete(&models.LogEntry{})
	return result.RowsAffected, result.Error
}
