package services

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"taskledger/backend/internal/models"
)

const (
	reasonMissingField   = "missing required field"
	reasonPriority       = "priority must be a positive integer"
	reasonDueDateFormat  = "due date must be a date in YYYY-MM-DD format"
	reasonDueDateInPast  = "due date cannot be in the past"
	reasonUsernameLength = "username must be between 3 and 50 characters"
	reasonPasswordLength = "password must be at most 72 bytes"
	maxUsernameLength    = 50
	minUsernameLength    = 3
	maxPasswordLength    = 72
)

var reasonStatus = fmt.Sprintf("status must be one of %s", strings.Join(models.TaskStatuses, ", "))

// TaskInput is a create or update request as the client sent it. Priority is
// left untyped so numbers and numeric strings are coerced the same way.
type TaskInput struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Priority    interface{} `json:"priority"`
	DueDate     string      `json:"due_date"`
	Status      string      `json:"status"`
}

type validTask struct {
	title       string
	description string
	priority    int
	dueDate     models.Date
	status      string
}

// validateTaskInput applies the task rules in order; the first failure wins.
// today is the caller's current calendar date. New tasks always start pending.
func validateTaskInput(in TaskInput, requireStatus bool, today models.Date) (validTask, error) {
	title := strings.TrimSpace(in.Title)
	dueDate := strings.TrimSpace(in.DueDate)
	status := strings.TrimSpace(in.Status)

	if title == "" || isBlank(in.Priority) || dueDate == "" || (requireStatus && status == "") {
		return validTask{}, newValidationError(reasonMissingField)
	}

	priority, ok := coercePositiveInt(in.Priority)
	if !ok {
		return validTask{}, newValidationError(reasonPriority)
	}

	due, err := models.ParseDate(dueDate)
	if err != nil {
		return validTask{}, newValidationError(reasonDueDateFormat)
	}
	if due.Before(today) {
		return validTask{}, newValidationError(reasonDueDateInPast)
	}

	if requireStatus && !models.IsValidStatus(status) {
		return validTask{}, newValidationError(reasonStatus)
	}
	if !requireStatus {
		status = models.StatusPending
	}

	return validTask{
		title:       title,
		description: in.Description,
		priority:    priority,
		dueDate:     due,
		status:      status,
	}, nil
}

func isBlank(v interface{}) bool {
	switch p := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(p) == ""
	default:
		return false
	}
}

// coercePositiveInt accepts integral JSON numbers and numeric strings.
func coercePositiveInt(v interface{}) (int, bool) {
	var f float64
	switch p := v.(type) {
	case int:
		f = float64(p)
	case int64:
		f = float64(p)
	case float64:
		f = p
	case json.Number:
		parsed, err := p.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || f < 1 || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

func validateCredentials(username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", newValidationError(reasonMissingField)
	}
	if len(username) < minUsernameLength || len(username) > maxUsernameLength {
		return "", newValidationError(reasonUsernameLength)
	}
	if len(password) > maxPasswordLength {
		return "", newValidationError(reasonPasswordLength)
	}
	return username, nil
}

// todayIn returns the calendar date of now in now's location.
func todayIn(now time.Time) models.Date {
	return models.DateOf(now)
}
