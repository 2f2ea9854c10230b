package models

import (
	"time"

	"github.com/gofrs/uuid"
)

type LogAction string

const (
	ActionCreate LogAction = "CREATE"
	ActionUpdate LogAction = "UPDATE"
	ActionDelete LogAction = "DELETE"
)

// LogEntry is an append-only snapshot of a task taken when it was mutated.
type LogEntry struct {
	ID          uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	OwnerID     uuid.UUID `json:"owner_id" gorm:"type:uuid;not null;index"`
	TaskID      uuid.UUID `json:"task_id" gorm:"type:uuid;not null"`
	Title       string    `json:"title" gorm:"not null"`
	Description string    `json:"description"`
	Priority    int       `json:"priority" gorm:"not null"`
	DueDate     Date      `json:"due_date" gorm:"type:date;not null"`
	Status      string    `json:"status" gorm:"size:20;not null"`
	Action      LogAction `json:"action" gorm:"size:10;not null"`
	LoggedAt    time.Time `json:"logged_at" gorm:"not null"`
}

func (LogEntry) TableName() string {
	return "task_logs"
}
