package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/taskforge/taskforge/internal/domain"
)

// ListFilter restricts which tasks a page query matches. Zero value matches
// everything. The same filter instance must drive both the count and the
// fetch of a page so the reported total is consistent with the items.
type ListFilter struct {
	// Status, when set, is an equality match against the task status.
	Status *domain.TaskStatus

	// DateFrom and DateTo bound the due date (inclusive on both ends).
	// Either side may be nil for a half-open range.
	DateFrom *time.Time
	DateTo   *time.Time
}

// TaskUpdate describes a partial update. Nil pointer fields are left
// unchanged. ClearDescription and ClearDueDate set the corresponding
// columns to NULL and take precedence over the value fields.
type TaskUpdate struct {
	Title            *string
	Description      *string
	ClearDescription bool
	Status           *domain.TaskStatus
	DueDate          *time.Time
	ClearDueDate     bool
}

// IsEmpty reports whether the update would change nothing.
func (u TaskUpdate) IsEmpty() bool {
	return u.Title == nil &&
		u.Description == nil && !u.ClearDescription &&
		u.Status == nil &&
		u.DueDate == nil && !u.ClearDueDate
}

// TaskStore defines the interface for task data persistence.
type TaskStore interface {
	// FindPage retrieves one page of tasks matching the filter, ordered by
	// creation time descending, along with the total matching count. Count
	// and fetch are computed against the same snapshot: implementations must
	// run them inside a single transaction.
	FindPage(ctx context.Context, filter ListFilter, skip, take int) ([]domain.Task, int64, error)

	// GetByID retrieves a task by its unique ID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// Create saves a new task to the store.
	// The task must be valid according to domain validation rules.
	Create(ctx context.Context, task *domain.Task) error

	// Update applies a partial update to an existing task and returns the
	// updated record. Only fields present in the update change; updated_at
	// is always advanced. Returns ErrTaskNotFound if the task does not exist.
	Update(ctx context.Context, id uuid.UUID, update TaskUpdate) (*domain.Task, error)

	// Delete removes a task from the store by its ID.
	// Returns ErrTaskNotFound if the task does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// GetCounters computes the per-status counts and total over the full
	// task set in a single aggregate query.
	GetCounters(ctx context.Context) (domain.TaskCounters, error)

	// WithTx returns a TaskStore bound to the given transaction. Every call
	// on the returned store runs on that transaction; the caller owns commit
	// and rollback, typically via RunInTransaction.
	WithTx(tx *sql.Tx) TaskStore
}
