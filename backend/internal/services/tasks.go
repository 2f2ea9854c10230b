package services

import (
	"context"
	"errors"
	"time"

	"taskledger/backend/internal/models"
	"taskledger/backend/internal/repositories"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type TaskService interface {
	CreateTask(ctx context.Context, ownerID uuid.UUID, in TaskInput) (*models.Task, error)
	ListTasks(ctx context.Context, ownerID uuid.UUID) ([]models.Task, error)
	GetTask(ctx context.Context, ownerID, taskID uuid.UUID) (*models.Task, error)
	UpdateTask(ctx context.Context, ownerID, taskID uuid.UUID, in TaskInput) (*models.Task, error)
	DeleteTask(ctx context.Context, ownerID, taskID uuid.UUID) error
	ListLog(ctx context.Context, ownerID uuid.UUID) ([]models.LogEntry, error)
	ClearLog(ctx context.Context, ownerID uuid.UUID) error
}

// TaskServiceImpl applies task mutations and their activity log entries in a
// single transaction.
type TaskServiceImpl struct {
	db       *gorm.DB
	tasks    *repositories.TaskStore
	activity *repositories.ActivityLog
	now      func() time.Time
}

func NewTaskService(db *gorm.DB) *TaskServiceImpl {
	return &TaskServiceImpl{
		db:       db,
		tasks:    repositories.NewTaskStore(),
		activity: repositories.NewActivityLog(),
		now:      time.Now,
	}
}

// WithClock replaces the clock used for timestamps and for "today".
func (s *TaskServiceImpl) WithClock(now func() time.Time) *TaskServiceImpl {
	s.now = now
	return s
}

func (s *TaskServiceImpl) CreateTask(ctx context.Context, ownerID uuid.UUID, in TaskInput) (*models.Task, error) {
	now := s.now()
	v, err := validateTaskInput(in, false, todayIn(now))
	if err != nil {
		return nil, err
	}

	task := &models.Task{
		ID:          uuid.Must(uuid.NewV4()),
		OwnerID:     ownerID,
		Title:       v.title,
		Description: v.description,
		Priority:    v.priority,
		DueDate:     v.dueDate,
		Status:      v.status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.tasks.Create(ctx, tx, task); err != nil {
			return err
		}
		_, err := s.activity.Record(ctx, tx, task, models.ActionCreate, now)
		return err
	})
	if err != nil {
		return nil, storageError("create task", err)
	}
	return task, nil
}

func (s *TaskServiceImpl) ListTasks(ctx context.Context, ownerID uuid.UUID) ([]models.Task, error) {
	tasks, err := s.tasks.ListByOwner(ctx, s.db, ownerID)
	if err != nil {
		return nil, storageError("list tasks", err)
	}
	return tasks, nil
}

func (s *TaskServiceImpl) GetTask(ctx context.Context, ownerID, taskID uuid.UUID) (*models.Task, error) {
	task, err := s.tasks.FindOwned(ctx, s.db, ownerID, taskID)
	if err != nil {
		return nil, taskError("get task", err)
	}
	return task, nil
}

func (s *TaskServiceImpl) UpdateTask(ctx context.Context, ownerID, taskID uuid.UUID, in TaskInput) (*models.Task, error) {
	now := s.now()
	v, err := validateTaskInput(in, true, todayIn(now))
	if err != nil {
		return nil, err
	}

	var updated *models.Task
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := s.tasks.FindOwned(ctx, tx, ownerID, taskID)
		if err != nil {
			return err
		}

		task.Title = v.title
		task.Description = v.description
		task.Priority = v.priority
		task.DueDate = v.dueDate
		task.Status = v.status
		task.UpdatedAt = now

		if err := s.tasks.Update(ctx, tx, task); err != nil {
			return err
		}
		if _, err := s.activity.Record(ctx, tx, task, models.ActionUpdate, now); err != nil {
			return err
		}
		updated = task
		return nil
	})
	if err != nil {
		return nil, taskError("update task", err)
	}
	return updated, nil
}

// DeleteTask records the task as it was just before removal.
func (s *TaskServiceImpl) DeleteTask(ctx context.Context, ownerID, taskID uuid.UUID) error {
	now := s.now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := s.tasks.FindOwned(ctx, tx, ownerID, taskID)
		if err != nil {
			return err
		}
		if _, err := s.activity.Record(ctx, tx, task, models.ActionDelete, now); err != nil {
			return err
		}
		return s.tasks.Delete(ctx, tx, ownerID, taskID)
	})
	if err != nil {
		return taskError("delete task", err)
	}
	return nil
}

func (s *TaskServiceImpl) ListLog(ctx context.Context, ownerID uuid.UUID) ([]models.LogEntry, error) {
	entries, err := s.activity.ListByOwner(ctx, s.db, ownerID)
	if err != nil {
		return nil, storageError("list task log", err)
	}
	return entries, nil
}

func (s *TaskServiceImpl) ClearLog(ctx context.Context, ownerID uuid.UUID) error {
	if _, err := s.activity.ClearByOwner(ctx, s.db, ownerID); err != nil {
		return storageError("clear task log", err)
	}
	return nil
}

func taskError(op string, err error) error {
	if errors.Is(err, repositories.ErrTaskNotFound) {
		return ErrNotFound
	}
	return storageError(op, err)
}
