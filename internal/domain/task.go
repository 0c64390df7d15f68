package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Validation limits for task fields.
const (
	TitleMaxLength       = 255
	DescriptionMaxLength = 4000
)

// Task-specific validation errors
var (
	// ErrTaskIDEmpty is returned when a task ID is empty or nil.
	ErrTaskIDEmpty = errors.New("task ID cannot be empty")

	// ErrTitleEmpty is returned when a task title is empty after trimming.
	ErrTitleEmpty = errors.New("task title cannot be empty")

	// ErrTitleTooLong is returned when a task title exceeds TitleMaxLength.
	ErrTitleTooLong = errors.New("task title exceeds maximum length")

	// ErrDescriptionTooLong is returned when a task description exceeds DescriptionMaxLength.
	ErrDescriptionTooLong = errors.New("task description exceeds maximum length")

	// ErrInvalidStatus is returned when a status string does not match any known status.
	ErrInvalidStatus = errors.New("invalid task status")
)

// TaskStatus is the lifecycle state of a task. Wire form is lowercase
// snake_case (e.g. "in_progress").
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// TaskStatuses lists every valid status in definition order.
var TaskStatuses = []TaskStatus{
	TaskStatusPending,
	TaskStatusInProgress,
	TaskStatusCompleted,
	TaskStatusCancelled,
}

// ParseTaskStatus normalizes raw input (trim, lowercase, hyphen to
// underscore) and matches it against the known statuses. An unrecognized
// value returns ErrInvalidStatus; it is never passed through as-is.
func ParseTaskStatus(raw string) (TaskStatus, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "-", "_")
	for _, status := range TaskStatuses {
		if normalized == string(status) {
			return status, nil
		}
	}
	return "", ErrInvalidStatus
}

// IsValid reports whether the status is one of the enumerated values.
func (s TaskStatus) IsValid() bool {
	for _, status := range TaskStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Task represents a unit of work with a title, optional description,
// lifecycle status, and optional due date. Timestamps are server-assigned
// and kept in UTC.
type Task struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Status      TaskStatus `json:"status"`
	DueDate     *time.Time `json:"due_date"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewTask creates a Task with a fresh ID and UTC timestamps.
// Title is trimmed before validation. Returns an error if validation fails.
func NewTask(title string, description *string, status TaskStatus, dueDate *time.Time) (*Task, error) {
	if status == "" {
		status = TaskStatusPending
	}

	now := time.Now().UTC()
	task := &Task{
		ID:          uuid.New(),
		Title:       strings.TrimSpace(title),
		Description: description,
		Status:      status,
		DueDate:     dueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
// Returns an error if any field fails validation.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return ErrTaskIDEmpty
	}

	if strings.TrimSpace(t.Title) == "" {
		return ErrTitleEmpty
	}

	if len(t.Title) > TitleMaxLength {
		return ErrTitleTooLong
	}

	if t.Description != nil && len(*t.Description) > DescriptionMaxLength {
		return ErrDescriptionTooLong
	}

	if !t.Status.IsValid() {
		return ErrInvalidStatus
	}

	return nil
}
