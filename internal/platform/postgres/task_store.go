package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/taskforge/taskforge/internal/domain"
	"github.com/taskforge/taskforge/internal/platform/logger"
	"github.com/taskforge/taskforge/internal/store"
)

// taskColumns is the canonical select list for task rows.
const taskColumns = "id, title, description, status, due_date, created_at, updated_at"

// PostgresTaskStore implements the store.TaskStore interface
// using a PostgreSQL database as the storage backend.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a new PostgreSQL implementation of the TaskStore interface.
// It accepts a database connection or transaction that should be initialized
// and managed by the caller. If logger is nil, a default logger will be used.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

// Ensure PostgresTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*PostgresTaskStore)(nil)

// WithTx implements store.TaskStore.WithTx
// The returned store runs every query on the given transaction.
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &PostgresTaskStore{
		db:     tx,
		logger: s.logger,
	}
}

// buildListPredicate translates a ListFilter into a WHERE clause and its
// arguments. Placeholders start at $1; the returned next index lets callers
// append further arguments (LIMIT/OFFSET). An empty filter yields an empty
// clause.
func buildListPredicate(filter store.ListFilter) (string, []any, int) {
	var conds []string
	var args []any
	next := 1

	if filter.Status != nil {
		conds = append(conds, fmt.Sprintf("status = $%d", next))
		args = append(args, string(*filter.Status))
		next++
	}
	if filter.DateFrom != nil {
		conds = append(conds, fmt.Sprintf("due_date >= $%d", next))
		args = append(args, filter.DateFrom.UTC())
		next++
	}
	if filter.DateTo != nil {
		conds = append(conds, fmt.Sprintf("due_date <= $%d", next))
		args = append(args, filter.DateTo.UTC())
		next++
	}

	if len(conds) == 0 {
		return "", nil, next
	}
	return " WHERE " + strings.Join(conds, " AND "), args, next
}

// FindPage implements store.TaskStore.FindPage
// The count and the fetch run inside a single read-only transaction so the
// total always reflects the same snapshot as the returned items.
func (s *PostgresTaskStore) FindPage(
	ctx context.Context,
	filter store.ListFilter,
	skip, take int,
) ([]domain.Task, int64, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	where, args, next := buildListPredicate(filter)

	countQuery := "SELECT COUNT(*) FROM tasks" + where
	pageQuery := fmt.Sprintf(
		"SELECT %s FROM tasks%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d",
		taskColumns, where, next, next+1,
	)
	pageArgs := append(append([]any{}, args...), take, skip)

	var tasks []domain.Task
	var total int64

	fetch := func(ctx context.Context, q store.DBTX) error {
		if err := q.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
			return fmt.Errorf("failed to count tasks: %w", err)
		}

		rows, err := q.QueryContext(ctx, pageQuery, pageArgs...)
		if err != nil {
			return fmt.Errorf("failed to query task page: %w", err)
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			task, err := scanTask(rows)
			if err != nil {
				return fmt.Errorf("failed to scan task row: %w", err)
			}
			tasks = append(tasks, *task)
		}
		return rows.Err()
	}

	// When backed by the connection pool, open a read-only transaction of
	// our own. A store already bound to a transaction via WithTx reuses
	// that transaction's snapshot instead.
	var err error
	if sqlDB, ok := s.db.(*sql.DB); ok {
		txOpts := &sql.TxOptions{ReadOnly: true}
		err = store.RunInTransaction(ctx, sqlDB, txOpts, func(ctx context.Context, tx *sql.Tx) error {
			return fetch(ctx, tx)
		})
	} else {
		err = fetch(ctx, s.db)
	}

	if err != nil {
		log.Error("failed to fetch task page",
			slog.String("error", err.Error()),
			slog.Int("skip", skip),
			slog.Int("take", take))
		return nil, 0, store.NewStoreError("task", "list", "failed to fetch task page", err)
	}

	log.Debug("task page fetched",
		slog.Int("items", len(tasks)),
		slog.Int64("total", total))
	return tasks, total, nil
}

// GetByID implements store.TaskStore.GetByID
// Returns store.ErrTaskNotFound if the task does not exist.
func (s *PostgresTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := fmt.Sprintf("SELECT %s FROM tasks WHERE id = $1", taskColumns)

	task, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("task not found", slog.String("task_id", id.String()))
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to get task by ID",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return nil, store.NewStoreError("task", "get", "failed to get task by ID", err)
	}

	return task, nil
}

// Create implements store.TaskStore.Create
// It saves a new task to the database, handling domain validation.
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during create",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO tasks (id, title, description, status, due_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		task.ID,
		task.Title,
		task.Description,
		string(task.Status),
		task.DueDate,
		task.CreatedAt,
		task.UpdatedAt,
	)

	if err != nil {
		log.Error("failed to create task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return store.NewStoreError("task", "create", "failed to insert task", err)
	}

	log.Info("task created successfully",
		slog.String("task_id", task.ID.String()),
		slog.String("status", string(task.Status)))
	return nil
}

// Update implements store.TaskStore.Update
// It applies a partial update and returns the updated row via RETURNING,
// so the read-back cannot observe a different version than the write.
// Returns store.ErrTaskNotFound if the task does not exist.
func (s *PostgresTaskStore) Update(
	ctx context.Context,
	id uuid.UUID,
	update store.TaskUpdate,
) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	sets := []string{}
	args := []any{}
	next := 1

	if update.Title != nil {
		sets = append(sets, fmt.Sprintf("title = $%d", next))
		args = append(args, strings.TrimSpace(*update.Title))
		next++
	}
	switch {
	case update.ClearDescription:
		sets = append(sets, "description = NULL")
	case update.Description != nil:
		sets = append(sets, fmt.Sprintf("description = $%d", next))
		args = append(args, *update.Description)
		next++
	}
	if update.Status != nil {
		sets = append(sets, fmt.Sprintf("status = $%d", next))
		args = append(args, string(*update.Status))
		next++
	}
	switch {
	case update.ClearDueDate:
		sets = append(sets, "due_date = NULL")
	case update.DueDate != nil:
		sets = append(sets, fmt.Sprintf("due_date = $%d", next))
		args = append(args, update.DueDate.UTC())
		next++
	}

	// updated_at always advances, even for an empty update
	sets = append(sets, fmt.Sprintf("updated_at = $%d", next))
	args = append(args, time.Now().UTC())
	next++

	query := fmt.Sprintf(
		"UPDATE tasks SET %s WHERE id = $%d RETURNING %s",
		strings.Join(sets, ", "), next, taskColumns,
	)
	args = append(args, id)

	task, err := scanTask(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("task not found for update", slog.String("task_id", id.String()))
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to update task",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return nil, store.NewStoreError("task", "update", "failed to update task", err)
	}

	log.Info("task updated successfully",
		slog.String("task_id", id.String()),
		slog.String("status", string(task.Status)))
	return task, nil
}

// Delete implements store.TaskStore.Delete
// Returns store.ErrTaskNotFound if the task does not exist.
func (s *PostgresTaskStore) Delete(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = $1", id)
	if err != nil {
		log.Error("failed to delete task",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return store.NewStoreError("task", "delete", "failed to delete task", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		log.Error("failed to get rows affected",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return store.NewStoreError("task", "delete", "failed to get rows affected", err)
	}

	if rowsAffected == 0 {
		log.Debug("task not found for delete", slog.String("task_id", id.String()))
		return store.ErrTaskNotFound
	}

	log.Info("task deleted successfully", slog.String("task_id", id.String()))
	return nil
}

// GetCounters implements store.TaskStore.GetCounters
// The counts come from a single GROUP BY aggregate so the per-status
// counts and the derived total describe one snapshot.
func (s *PostgresTaskStore) GetCounters(ctx context.Context) (domain.TaskCounters, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var counters domain.TaskCounters

	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM tasks GROUP BY status")
	if err != nil {
		log.Error("failed to query task counters", slog.String("error", err.Error()))
		return domain.TaskCounters{}, store.NewStoreError("task", "count", "failed to query counters", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return domain.TaskCounters{}, store.NewStoreError("task", "count", "failed to scan counter row", err)
		}
		counters.Add(domain.TaskStatus(status), count)
	}
	if err := rows.Err(); err != nil {
		return domain.TaskCounters{}, store.NewStoreError("task", "count", "failed to read counter rows", err)
	}

	return counters, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanTask.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask reads one task row in taskColumns order.
func scanTask(row rowScanner) (*domain.Task, error) {
	var task domain.Task
	var description sql.NullString
	var dueDate sql.NullTime
	var status string

	err := row.Scan(
		&task.ID,
		&task.Title,
		&description,
		&status,
		&dueDate,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	task.Status = domain.TaskStatus(status)
	if description.Valid {
		task.Description = &description.String
	}
	if dueDate.Valid {
		utc := dueDate.Time.UTC()
		task.DueDate = &utc
	}
	task.CreatedAt = task.CreatedAt.UTC()
	task.UpdatedAt = task.UpdatedAt.UTC()

	return &task, nil
}
