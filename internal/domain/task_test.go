package domain

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestParseTaskStatus(t *testing.T) {
	cases := []struct {
		input   string
		want    TaskStatus
		wantErr bool
	}{
		{"pending", TaskStatusPending, false},
		{"in_progress", TaskStatusInProgress, false},
		{"completed", TaskStatusCompleted, false},
		{"cancelled", TaskStatusCancelled, false},
		{"  Pending  ", TaskStatusPending, false},
		{"IN_PROGRESS", TaskStatusInProgress, false},
		{"in-progress", TaskStatusInProgress, false},
		{"", "", true},
		{"done", "", true},
		{"canceled", "", true},
	}

	for _, tc := range cases {
		got, err := ParseTaskStatus(tc.input)
		if tc.wantErr {
			if !errors.Is(err, ErrInvalidStatus) {
				t.Errorf("ParseTaskStatus(%q): expected ErrInvalidStatus, got %v", tc.input, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTaskStatus(%q): unexpected error %v", tc.input, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseTaskStatus(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestNewTask(t *testing.T) {
	description := "a description"
	due := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	task, err := NewTask("  Write report  ", &description, TaskStatusInProgress, &due)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if task.ID == uuid.Nil {
		t.Error("Expected non-nil UUID, got nil UUID")
	}

	if task.Title != "Write report" {
		t.Errorf("Expected trimmed title %q, got %q", "Write report", task.Title)
	}

	if task.Status != TaskStatusInProgress {
		t.Errorf("Expected status %q, got %q", TaskStatusInProgress, task.Status)
	}

	if task.DueDate == nil || !task.DueDate.Equal(due) {
		t.Errorf("Expected due date %v, got %v", due, task.DueDate)
	}

	if task.CreatedAt.IsZero() || task.UpdatedAt.IsZero() {
		t.Error("Expected non-zero timestamps")
	}

	// Empty status defaults to pending
	task, err = NewTask("title", nil, "", nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if task.Status != TaskStatusPending {
		t.Errorf("Expected default status %q, got %q", TaskStatusPending, task.Status)
	}

	// Empty title is rejected
	_, err = NewTask("   ", nil, "", nil)
	if !errors.Is(err, ErrTitleEmpty) {
		t.Errorf("Expected error %v, got %v", ErrTitleEmpty, err)
	}

	// Overlong title is rejected
	_, err = NewTask(strings.Repeat("a", TitleMaxLength+1), nil, "", nil)
	if !errors.Is(err, ErrTitleTooLong) {
		t.Errorf("Expected error %v, got %v", ErrTitleTooLong, err)
	}

	// Overlong description is rejected
	long := strings.Repeat("d", DescriptionMaxLength+1)
	_, err = NewTask("title", &long, "", nil)
	if !errors.Is(err, ErrDescriptionTooLong) {
		t.Errorf("Expected error %v, got %v", ErrDescriptionTooLong, err)
	}
}

func TestTaskValidate(t *testing.T) {
	validTask := Task{
		ID:     uuid.New(),
		Title:  "title",
		Status: TaskStatusPending,
	}

	if err := validTask.Validate(); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	invalidTask := validTask
	invalidTask.ID = uuid.Nil
	if err := invalidTask.Validate(); !errors.Is(err, ErrTaskIDEmpty) {
		t.Errorf("Expected error %v, got %v", ErrTaskIDEmpty, err)
	}

	invalidTask = validTask
	invalidTask.Status = "done"
	if err := invalidTask.Validate(); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("Expected error %v, got %v", ErrInvalidStatus, err)
	}
}

func TestTaskCounters(t *testing.T) {
	var counters TaskCounters
	counters.Add(TaskStatusPending, 3)
	counters.Add(TaskStatusInProgress, 2)
	counters.Add(TaskStatusCompleted, 1)
	counters.Add(TaskStatusCancelled, 4)

	if counters.Total != 10 {
		t.Errorf("Expected total 10, got %d", counters.Total)
	}

	if err := counters.CheckInvariant(); err != nil {
		t.Errorf("Expected consistent counters, got %v", err)
	}

	counters.Add(TaskStatus("archived"), 5)
	if counters.Total != 10 {
		t.Errorf("Unknown status must not count toward total, got %d", counters.Total)
	}
	if err := counters.CheckInvariant(); err != nil {
		t.Errorf("Expected consistent counters after unknown status, got %v", err)
	}

	counters.Total++
	if err := counters.CheckInvariant(); err == nil {
		t.Error("Expected invariant violation after skewing total")
	}
}
