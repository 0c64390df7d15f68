package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/taskforge/taskforge/internal/domain"
	"github.com/taskforge/taskforge/internal/platform/logger"
	"github.com/taskforge/taskforge/internal/store"
)

// Cache layout for list responses and counters. Every successful write
// invalidates the whole listCachePrefix key space before returning, so a
// later read can never reuse a pre-write page.
const (
	listCachePrefix  = "tasks:list"
	countersCacheKey = "tasks:counters"
	cacheTTL         = 60 * time.Second
)

// Pagination bounds. Out-of-range values are rejected at the API layer;
// the service only fills in defaults for zero values.
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// ListQuery carries the paging and filter parameters of one list request.
// It is transient: built per request, never persisted.
type ListQuery struct {
	Page     int
	Limit    int
	Status   *domain.TaskStatus
	DateFrom *time.Time
	DateTo   *time.Time
}

// normalized returns a copy with defaults applied.
func (q ListQuery) normalized() ListQuery {
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	if q.Limit < 1 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	return q
}

// filter projects the query onto the store filter.
func (q ListQuery) filter() store.ListFilter {
	return store.ListFilter{
		Status:   q.Status,
		DateFrom: q.DateFrom,
		DateTo:   q.DateTo,
	}
}

// TaskData is the wire representation of a task. All date/time fields are
// RFC 3339 strings; optional-but-absent fields serialize as explicit null.
type TaskData struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Status      string  `json:"status"`
	DueDate     *string `json:"dueDate"`
	CreatedAt   string  `json:"createdAt"`
	UpdatedAt   string  `json:"updatedAt"`
}

// ListMeta is the pagination block of a list response.
type ListMeta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
}

// ListResult is the full list response payload: one page of tasks, the
// pagination metadata, and the counters snapshot. This is also exactly what
// gets cached.
type ListResult struct {
	Data     []TaskData          `json:"data"`
	Meta     ListMeta            `json:"meta"`
	Counters domain.TaskCounters `json:"counters"`
}

// CreateTaskInput is the validated input for creating a task.
type CreateTaskInput struct {
	Title       string
	Description *string
	Status      domain.TaskStatus
	DueDate     *time.Time
}

// TaskService provides task query and command operations.
type TaskService interface {
	// List returns one page of tasks matching the query, serving repeated
	// queries from the cache until a write invalidates it.
	List(ctx context.Context, query ListQuery) (*ListResult, error)

	// Counters returns the per-status counts, read through the cache.
	Counters(ctx context.Context) (domain.TaskCounters, error)

	// GetByID returns a single task. Returns ErrTaskNotFound if absent.
	GetByID(ctx context.Context, id uuid.UUID) (*TaskData, error)

	// Create persists a new task and invalidates the list cache.
	Create(ctx context.Context, input CreateTaskInput) (*TaskData, error)

	// Update applies a partial update and invalidates the list cache.
	// Returns ErrTaskNotFound if the task does not exist.
	Update(ctx context.Context, id uuid.UUID, update store.TaskUpdate) (*TaskData, error)

	// Delete removes a task and invalidates the list cache.
	// Returns ErrTaskNotFound if the task does not exist.
	Delete(ctx context.Context, id uuid.UUID) error
}

// taskService implements TaskService over a TaskStore and a Cache.
// It is stateless per request; the cache is the only shared state and is
// owned by the cache backend.
type taskService struct {
	tasks  store.TaskStore
	cache  store.Cache
	logger *slog.Logger
}

// NewTaskService creates a new TaskService.
// It returns an error if any of the required dependencies are nil.
func NewTaskService(tasks store.TaskStore, cache store.Cache, log *slog.Logger) (TaskService, error) {
	if tasks == nil {
		return nil, &TaskServiceError{
			Operation: "create_service",
			Message:   "task store cannot be nil",
		}
	}
	if cache == nil {
		return nil, &TaskServiceError{
			Operation: "create_service",
			Message:   "cache cannot be nil",
		}
	}
	if log == nil {
		log = slog.Default()
	}

	return &taskService{
		tasks:  tasks,
		cache:  cache,
		logger: log.With(slog.String("component", "task_service")),
	}, nil
}

// List implements TaskService.List
func (s *taskService) List(ctx context.Context, query ListQuery) (*ListResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query = query.normalized()
	skip := (query.Page - 1) * query.Limit
	cacheKey := buildListCacheKey(query)

	if cached, ok := s.cacheGet(ctx, cacheKey); ok {
		var result ListResult
		if err := json.Unmarshal(cached, &result); err == nil {
			log.Debug("list served from cache", slog.String("cache_key", cacheKey))
			return &result, nil
		}
		// A corrupt entry falls through to the store and gets overwritten.
		log.Warn("discarding undecodable cache entry", slog.String("cache_key", cacheKey))
	}

	// Page and counters are independent reads over the same filter snapshot;
	// run them concurrently and join before shaping the response.
	filter := query.filter()

	var (
		items    []domain.Task
		total    int64
		counters domain.TaskCounters
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, total, err = s.tasks.FindPage(gctx, filter, skip, query.Limit)
		return err
	})
	g.Go(func() error {
		var err error
		counters, err = s.tasks.GetCounters(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, newTaskServiceError("list_tasks", "failed to fetch task page", err)
	}

	result := &ListResult{
		Data: mapTasks(items),
		Meta: ListMeta{
			Page:       query.Page,
			Limit:      query.Limit,
			Total:      total,
			TotalPages: totalPages(total, query.Limit),
		},
		Counters: counters,
	}

	s.cacheSet(ctx, cacheKey, result)

	return result, nil
}

// Counters implements TaskService.Counters
func (s *taskService) Counters(ctx context.Context) (domain.TaskCounters, error) {
	if cached, ok := s.cacheGet(ctx, countersCacheKey); ok {
		var counters domain.TaskCounters
		if err := json.Unmarshal(cached, &counters); err == nil {
			return counters, nil
		}
	}

	counters, err := s.tasks.GetCounters(ctx)
	if err != nil {
		return domain.TaskCounters{}, newTaskServiceError("get_counters", "failed to compute counters", err)
	}

	s.cacheSet(ctx, countersCacheKey, counters)

	return counters, nil
}

// GetByID implements TaskService.GetByID
func (s *taskService) GetByID(ctx context.Context, id uuid.UUID) (*TaskData, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, newTaskServiceError("get_task", "failed to get task", err)
	}
	data := mapTask(*task)
	return &data, nil
}

// Create implements TaskService.Create
func (s *taskService) Create(ctx context.Context, input CreateTaskInput) (*TaskData, error) {
	task, err := domain.NewTask(input.Title, input.Description, input.Status, input.DueDate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, newTaskServiceError("create_task", "failed to persist task", err)
	}

	s.invalidateListCache(ctx)

	data := mapTask(*task)
	return &data, nil
}

// Update implements TaskService.Update
func (s *taskService) Update(ctx context.Context, id uuid.UUID, update store.TaskUpdate) (*TaskData, error) {
	if update.Title != nil {
		title := strings.TrimSpace(*update.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, domain.ErrTitleEmpty)
		}
		if len(title) > domain.TitleMaxLength {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, domain.ErrTitleTooLong)
		}
		update.Title = &title
	}
	if update.Description != nil && len(*update.Description) > domain.DescriptionMaxLength {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, domain.ErrDescriptionTooLong)
	}
	if update.Status != nil && !update.Status.IsValid() {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, domain.ErrInvalidStatus)
	}

	task, err := s.tasks.Update(ctx, id, update)
	if err != nil {
		return nil, newTaskServiceError("update_task", "failed to update task", err)
	}

	// An empty update only advances updated_at. No task changed status, so
	// the counters snapshot stays valid and only list pages are dropped.
	if update.IsEmpty() {
		s.invalidateListPages(ctx)
	} else {
		s.invalidateListCache(ctx)
	}

	data := mapTask(*task)
	return &data, nil
}

// Delete implements TaskService.Delete
func (s *taskService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.tasks.Delete(ctx, id); err != nil {
		return newTaskServiceError("delete_task", "failed to delete task", err)
	}

	s.invalidateListCache(ctx)

	return nil
}

// cacheGet reads a key, treating any cache failure as a miss. Cache
// unavailability must never fail a read request; the store remains the
// source of truth. Misses are silent, transport errors are logged at WARN.
func (s *taskService) cacheGet(ctx context.Context, key string) ([]byte, bool) {
	value, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrCacheMiss) {
			logger.FromContextOrDefault(ctx, s.logger).Warn("cache read failed, falling back to store",
				slog.String("cache_key", key),
				slog.String("error", err.Error()))
		}
		return nil, false
	}
	return value, true
}

// cacheSet stores a payload with the standard TTL; failures are logged and
// swallowed for the same reason as cacheGet.
func (s *taskService) cacheSet(ctx context.Context, key string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("failed to marshal cache payload",
			slog.String("cache_key", key),
			slog.String("error", err.Error()))
		return
	}
	if err := s.cache.Set(ctx, key, data, cacheTTL); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Warn("cache write failed",
			slog.String("cache_key", key),
			slog.String("error", err.Error()))
	}
}

// invalidateListPages drops every cached list page. A failure leaves stale
// entries whose exposure is bounded by the TTL, so it is logged but not fatal.
func (s *taskService) invalidateListPages(ctx context.Context) {
	if err := s.cache.DeleteByPrefix(ctx, listCachePrefix+":"); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Warn("list cache invalidation failed",
			slog.String("prefix", listCachePrefix),
			slog.String("error", err.Error()))
	}
}

// invalidateListCache drops every cached list page and the counters snapshot.
// This runs after every successful write that can change status counts.
func (s *taskService) invalidateListCache(ctx context.Context) {
	s.invalidateListPages(ctx)

	if err := s.cache.Delete(ctx, countersCacheKey); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Warn("counters cache invalidation failed",
			slog.String("error", err.Error()))
	}
}

// buildListCacheKey encodes the paging and filter parameters into a
// deterministic key. Parts appear in definition order (page, limit, status,
// dateFrom, dateTo); absent filters contribute nothing, so equal queries
// always map to equal keys.
func buildListCacheKey(query ListQuery) string {
	parts := []string{
		listCachePrefix,
		fmt.Sprintf("page=%d", query.Page),
		fmt.Sprintf("limit=%d", query.Limit),
	}

	if query.Status != nil {
		parts = append(parts, "status="+string(*query.Status))
	}
	if query.DateFrom != nil {
		parts = append(parts, "dateFrom="+query.DateFrom.UTC().Format(time.RFC3339))
	}
	if query.DateTo != nil {
		parts = append(parts, "dateTo="+query.DateTo.UTC().Format(time.RFC3339))
	}

	return strings.Join(parts, ":")
}

// totalPages computes the page count; an empty result set has zero pages,
// not one.
func totalPages(total int64, limit int) int64 {
	if total == 0 {
		return 0
	}
	return (total + int64(limit) - 1) / int64(limit)
}

// mapTask converts a domain task to its wire representation.
func mapTask(task domain.Task) TaskData {
	data := TaskData{
		ID:          task.ID.String(),
		Title:       task.Title,
		Description: task.Description,
		Status:      string(task.Status),
		CreatedAt:   task.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   task.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if task.DueDate != nil {
		due := task.DueDate.UTC().Format(time.RFC3339)
		data.DueDate = &due
	}
	return data
}

func mapTasks(tasks []domain.Task) []TaskData {
	data := make([]TaskData, 0, len(tasks))
	for _, task := range tasks {
		data = append(data, mapTask(task))
	}
	return data
}
