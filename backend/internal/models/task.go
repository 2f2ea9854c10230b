package models

import (
	"time"

	"github.com/gofrs/uuid"
)

const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

var TaskStatuses = []string{StatusPending, StatusInProgress, StatusCompleted}

func IsValidStatus(s string) bool {
	for _, status := range TaskStatuses {
		if s == status {
			return true
		}
	}
	return false
}

type Task struct {
	ID          uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	OwnerID     uuid.UUID `json:"owner_id" gorm:"type:uuid;not null;index"`
	Title       string    `json:"title" gorm:"not null"`
	Description string    `json:"description"`
	Priority    int       `json:"priority" gorm:"not null"`
	DueDate     Date      `json:"due_date" gorm:"type:date;not null"`
	Status      string    `json:"status" gorm:"size:20;not null;default:'pending'"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
