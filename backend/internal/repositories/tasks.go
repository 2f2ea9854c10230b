package repositories

import (
	"context"
	"errors"

	"taskledger/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

// ErrTaskNotFound is returned when no task with the id exists for the owner.
var ErrTaskNotFound = errors.New("task not found")

// TaskStore reads and writes the tasks table. Every query is scoped by owner.
// Methods take the *gorm.DB to run on so callers can pass a transaction.
type TaskStore struct{}

func NewTaskStore() *TaskStore {
	return &TaskStore{}
}

func (s *TaskStore) Create(ctx context.Context, db *gorm.DB, task *models.Task) error {
	return db.WithContext(ctx).Create(task).Error
}

func (s *TaskStore) FindOwned(ctx context.Context, db *gorm.DB, ownerID, taskID uuid.UUID) (*models.Task, error) {
	var task models.Task
	err := db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", taskID, ownerID).
		First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return &task, nil
}

func (s *TaskStore) ListByOwner(ctx context.Context, db *gorm.DB, ownerID uuid.UUID) ([]models.Task, error) {
	tasks := []models.Task{}
	err := db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at ASC").
		Find(&tasks).Error
	return tasks, err
}

// Update writes every mutable column of task, including zero values.
func (s *TaskStore) Update(ctx context.Context, db *gorm.DB, task *models.Task) error {
	result := db.WithContext(ctx).
		Model(&models.Task{}).
		Where("id = ? AND owner_id = ?", task.ID, task.OwnerID).
		Select("title", "description", "priority", "due_date", "status", "updated_at").
		Updates(task)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func (s *TaskStore) Delete(ctx context.Context, db *gorm.DB, ownerID, taskID uuid.UUID) error {
	result := db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", taskID, ownerID).
		Delete(&models.Task{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}
