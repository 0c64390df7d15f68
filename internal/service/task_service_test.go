package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskforge/taskforge/internal/domain"
	"github.com/taskforge/taskforge/internal/store"
)

// fakeTaskStore is an in-memory store.TaskStore used to exercise the service
// without a database. Tasks keep insertion order; FindPage sorts newest
// first the way the real store does.
type fakeTaskStore struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]domain.Task

	findPageCalls int
	failAll       error
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{tasks: make(map[uuid.UUID]domain.Task)}
}

var _ store.TaskStore = (*fakeTaskStore)(nil)

func (f *fakeTaskStore) matches(task domain.Task, filter store.ListFilter) bool {
	if filter.Status != nil && task.Status != *filter.Status {
		return false
	}
	if filter.DateFrom != nil && (task.DueDate == nil || task.DueDate.Before(*filter.DateFrom)) {
		return false
	}
	if filter.DateTo != nil && (task.DueDate == nil || task.DueDate.After(*filter.DateTo)) {
		return false
	}
	return true
}

func (f *fakeTaskStore) FindPage(
	_ context.Context,
	filter store.ListFilter,
	skip, take int,
) ([]domain.Task, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findPageCalls++
	if f.failAll != nil {
		return nil, 0, f.failAll
	}

	var matched []domain.Task
	for _, task := range f.tasks {
		if f.matches(task, filter) {
			matched = append(matched, task)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID.String() > matched[j].ID.String()
	})

	total := int64(len(matched))
	if skip >= len(matched) {
		return nil, total, nil
	}
	end := skip + take
	if end > len(matched) {
		end = len(matched)
	}
	return matched[skip:end], total, nil
}

func (f *fakeTaskStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return nil, f.failAll
	}
	task, ok := f.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	return &task, nil
}

func (f *fakeTaskStore) Create(_ context.Context, task *domain.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return f.failAll
	}
	if err := task.Validate(); err != nil {
		return errors.Join(store.ErrInvalidEntity, err)
	}
	f.tasks[task.ID] = *task
	return nil
}

func (f *fakeTaskStore) Update(
	_ context.Context,
	id uuid.UUID,
	update store.TaskUpdate,
) (*domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return nil, f.failAll
	}
	task, ok := f.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}

	if update.Title != nil {
		task.Title = strings.TrimSpace(*update.Title)
	}
	if update.ClearDescription {
		task.Description = nil
	} else if update.Description != nil {
		task.Description = update.Description
	}
	if update.Status != nil {
		task.Status = *update.Status
	}
	if update.ClearDueDate {
		task.DueDate = nil
	} else if update.DueDate != nil {
		task.DueDate = update.DueDate
	}
	task.UpdatedAt = time.Now().UTC()

	f.tasks[id] = task
	return &task, nil
}

func (f *fakeTaskStore) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return f.failAll
	}
	if _, ok := f.tasks[id]; !ok {
		return store.ErrTaskNotFound
	}
	delete(f.tasks, id)
	return nil
}

func (f *fakeTaskStore) WithTx(_ *sql.Tx) store.TaskStore {
	return f
}

func (f *fakeTaskStore) GetCounters(_ context.Context) (domain.TaskCounters, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return domain.TaskCounters{}, f.failAll
	}
	var counters domain.TaskCounters
	for _, task := range f.tasks {
		counters.Add(task.Status, 1)
	}
	return counters, nil
}

// fakeCache is an in-memory store.Cache. TTLs are recorded but never expire;
// expiry is the backend's concern, not the service's.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string][]byte

	getCalls int
	setCalls int
	failAll  error
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]byte)}
}

var _ store.Cache = (*fakeCache)(nil)

func (c *fakeCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.getCalls++
	if c.failAll != nil {
		return nil, c.failAll
	}
	value, ok := c.entries[key]
	if !ok {
		return nil, store.ErrCacheMiss
	}
	return value, nil
}

func (c *fakeCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setCalls++
	if c.failAll != nil {
		return c.failAll
	}
	c.entries[key] = value
	return nil
}

func (c *fakeCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAll != nil {
		return c.failAll
	}
	delete(c.entries, key)
	return nil
}

func (c *fakeCache) DeleteByPrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAll != nil {
		return c.failAll
	}
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	return nil
}

func (c *fakeCache) Exists(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAll != nil {
		return false, c.failAll
	}
	_, ok := c.entries[key]
	return ok, nil
}

func newTestService(t *testing.T) (TaskService, *fakeTaskStore, *fakeCache) {
	t.Helper()
	tasks := newFakeTaskStore()
	cache := newFakeCache()
	svc, err := NewTaskService(tasks, cache, nil)
	require.NoError(t, err)
	return svc, tasks, cache
}

func seedTasks(t *testing.T, svc TaskService, n int) []*TaskData {
	t.Helper()
	created := make([]*TaskData, 0, n)
	for i := 0; i < n; i++ {
		task, err := svc.Create(context.Background(), CreateTaskInput{
			Title: "task " + string(rune('a'+i)),
		})
		require.NoError(t, err)
		created = append(created, task)
	}
	return created
}

func TestNewTaskServiceRequiresDependencies(t *testing.T) {
	_, err := NewTaskService(nil, newFakeCache(), nil)
	assert.Error(t, err)

	_, err = NewTaskService(newFakeTaskStore(), nil, nil)
	assert.Error(t, err)

	svc, err := NewTaskService(newFakeTaskStore(), newFakeCache(), nil)
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestListPagination(t *testing.T) {
	svc, _, _ := newTestService(t)
	seedTasks(t, svc, 25)

	result, err := svc.List(context.Background(), ListQuery{Page: 2, Limit: 10})
	require.NoError(t, err)

	assert.Len(t, result.Data, 10)
	assert.Equal(t, 2, result.Meta.Page)
	assert.Equal(t, 10, result.Meta.Limit)
	assert.Equal(t, int64(25), result.Meta.Total)
	assert.Equal(t, int64(3), result.Meta.TotalPages)

	// Last partial page
	result, err = svc.List(context.Background(), ListQuery{Page: 3, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, result.Data, 5)

	// Page past the end is empty but keeps the metadata
	result, err = svc.List(context.Background(), ListQuery{Page: 9, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, result.Data)
	assert.Equal(t, int64(25), result.Meta.Total)
}

func TestListDefaultsAppliedToZeroQuery(t *testing.T) {
	svc, _, _ := newTestService(t)
	seedTasks(t, svc, 3)

	result, err := svc.List(context.Background(), ListQuery{})
	require.NoError(t, err)

	assert.Equal(t, DefaultPage, result.Meta.Page)
	assert.Equal(t, DefaultLimit, result.Meta.Limit)
	assert.Len(t, result.Data, 3)
}

func TestListEmptyHasZeroPages(t *testing.T) {
	svc, _, _ := newTestService(t)

	result, err := svc.List(context.Background(), ListQuery{Page: 1, Limit: 10})
	require.NoError(t, err)

	assert.Empty(t, result.Data)
	assert.Equal(t, int64(0), result.Meta.Total)
	assert.Equal(t, int64(0), result.Meta.TotalPages)
}

func TestListCountersMatchData(t *testing.T) {
	svc, _, _ := newTestService(t)
	created := seedTasks(t, svc, 4)

	id := uuid.MustParse(created[0].ID)
	completed := domain.TaskStatusCompleted
	_, err := svc.Update(context.Background(), id, store.TaskUpdate{Status: &completed})
	require.NoError(t, err)

	result, err := svc.List(context.Background(), ListQuery{Page: 1, Limit: 10})
	require.NoError(t, err)

	assert.Equal(t, int64(3), result.Counters.Pending)
	assert.Equal(t, int64(1), result.Counters.Completed)
	assert.Equal(t, int64(4), result.Counters.Total)
	require.NoError(t, result.Counters.CheckInvariant())
}

func TestListServedFromCacheOnRepeat(t *testing.T) {
	svc, tasks, _ := newTestService(t)
	seedTasks(t, svc, 5)

	query := ListQuery{Page: 1, Limit: 10}

	first, err := svc.List(context.Background(), query)
	require.NoError(t, err)
	callsAfterFirst := tasks.findPageCalls

	second, err := svc.List(context.Background(), query)
	require.NoError(t, err)

	assert.Equal(t, callsAfterFirst, tasks.findPageCalls,
		"repeated identical query should not reach the store")
	assert.Equal(t, first, second, "cached response should be identical")
}

func TestListCacheKeyVariesByQuery(t *testing.T) {
	svc, tasks, _ := newTestService(t)
	seedTasks(t, svc, 5)

	_, err := svc.List(context.Background(), ListQuery{Page: 1, Limit: 10})
	require.NoError(t, err)
	calls := tasks.findPageCalls

	pending := domain.TaskStatusPending
	_, err = svc.List(context.Background(), ListQuery{Page: 1, Limit: 10, Status: &pending})
	require.NoError(t, err)

	assert.Greater(t, tasks.findPageCalls, calls,
		"a different filter must not reuse the unfiltered cache entry")
}

func TestWriteInvalidatesListCache(t *testing.T) {
	svc, _, _ := newTestService(t)
	seedTasks(t, svc, 2)

	query := ListQuery{Page: 1, Limit: 10}

	before, err := svc.List(context.Background(), query)
	require.NoError(t, err)
	assert.Equal(t, int64(2), before.Meta.Total)

	_, err = svc.Create(context.Background(), CreateTaskInput{Title: "new task"})
	require.NoError(t, err)

	after, err := svc.List(context.Background(), query)
	require.NoError(t, err)
	assert.Equal(t, int64(3), after.Meta.Total,
		"list after create must reflect the write, not the cached page")
	assert.Equal(t, int64(3), after.Counters.Total)
}

func TestEmptyUpdateKeepsCountersCache(t *testing.T) {
	svc, _, cache := newTestService(t)
	created := seedTasks(t, svc, 1)
	id := uuid.MustParse(created[0].ID)

	query := ListQuery{Page: 1, Limit: 10}
	_, err := svc.List(context.Background(), query)
	require.NoError(t, err)
	_, err = svc.Counters(context.Background())
	require.NoError(t, err)

	listKey := buildListCacheKey(query)
	require.Contains(t, cache.entries, listKey)
	require.Contains(t, cache.entries, countersCacheKey)

	_, err = svc.Update(context.Background(), id, store.TaskUpdate{})
	require.NoError(t, err)

	assert.NotContains(t, cache.entries, listKey,
		"list pages embed updatedAt and must drop on any update")
	assert.Contains(t, cache.entries, countersCacheKey,
		"an empty update cannot move a task between statuses")

	title := "renamed"
	_, err = svc.Update(context.Background(), id, store.TaskUpdate{Title: &title})
	require.NoError(t, err)

	assert.NotContains(t, cache.entries, countersCacheKey,
		"a field update must drop the counters snapshot")
}

func TestDeleteInvalidatesCounters(t *testing.T) {
	svc, _, _ := newTestService(t)
	created := seedTasks(t, svc, 3)

	counters, err := svc.Counters(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), counters.Total)

	require.NoError(t, svc.Delete(context.Background(), uuid.MustParse(created[0].ID)))

	counters, err = svc.Counters(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), counters.Total)
}

func TestCacheFailureDegradesToStore(t *testing.T) {
	tasks := newFakeTaskStore()
	cache := newFakeCache()
	cache.failAll = errors.New("redis: connection refused")

	svc, err := NewTaskService(tasks, cache, nil)
	require.NoError(t, err)

	created, err := svc.Create(context.Background(), CreateTaskInput{Title: "survives outage"})
	require.NoError(t, err, "create must succeed with a dead cache")

	result, err := svc.List(context.Background(), ListQuery{Page: 1, Limit: 10})
	require.NoError(t, err, "list must fall back to the store with a dead cache")
	require.Len(t, result.Data, 1)
	assert.Equal(t, created.ID, result.Data[0].ID)

	counters, err := svc.Counters(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), counters.Total)
}

func TestGetByIDNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Create(context.Background(), CreateTaskInput{Title: "   "})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Create(context.Background(), CreateTaskInput{
		Title:  "ok",
		Status: domain.TaskStatus("bogus"),
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestUpdateValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	created := seedTasks(t, svc, 1)
	id := uuid.MustParse(created[0].ID)

	empty := "   "
	_, err := svc.Update(context.Background(), id, store.TaskUpdate{Title: &empty})
	assert.ErrorIs(t, err, ErrInvalidInput)

	long := strings.Repeat("a", domain.TitleMaxLength+1)
	_, err = svc.Update(context.Background(), id, store.TaskUpdate{Title: &long})
	assert.ErrorIs(t, err, ErrInvalidInput)

	bogus := domain.TaskStatus("bogus")
	_, err = svc.Update(context.Background(), id, store.TaskUpdate{Status: &bogus})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Update(context.Background(), uuid.New(), store.TaskUpdate{Title: ptr("x")})
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestUpdateClearsOptionalFields(t *testing.T) {
	svc, _, _ := newTestService(t)

	description := "to be removed"
	due := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	created, err := svc.Create(context.Background(), CreateTaskInput{
		Title:       "task",
		Description: &description,
		DueDate:     &due,
	})
	require.NoError(t, err)
	require.NotNil(t, created.Description)
	require.NotNil(t, created.DueDate)

	id := uuid.MustParse(created.ID)
	updated, err := svc.Update(context.Background(), id, store.TaskUpdate{
		ClearDescription: true,
		ClearDueDate:     true,
	})
	require.NoError(t, err)

	assert.Nil(t, updated.Description)
	assert.Nil(t, updated.DueDate)
}

// TestCreateListDeleteScenario walks the full read-after-write cycle through
// the cache: a created task is visible to a matching filtered list, and its
// deletion is visible to the same query again.
func TestCreateListDeleteScenario(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateTaskInput{Title: "scenario task"})
	require.NoError(t, err)
	assert.Equal(t, string(domain.TaskStatusPending), created.Status)

	pending := domain.TaskStatusPending
	query := ListQuery{Page: 1, Limit: 10, Status: &pending}

	result, err := svc.List(ctx, query)
	require.NoError(t, err)
	require.GreaterOrEqual(t, result.Meta.Total, int64(1))
	found := false
	for _, task := range result.Data {
		if task.ID == created.ID {
			found = true
		}
	}
	assert.True(t, found, "created task must appear in a matching filtered list")

	require.NoError(t, svc.Delete(ctx, uuid.MustParse(created.ID)))

	result, err = svc.List(ctx, query)
	require.NoError(t, err)
	for _, task := range result.Data {
		assert.NotEqual(t, created.ID, task.ID, "deleted task must not reappear")
	}
	assert.Equal(t, int64(0), result.Meta.Total)
}

func TestBuildListCacheKey(t *testing.T) {
	base := ListQuery{Page: 2, Limit: 20}
	assert.Equal(t, "tasks:list:page=2:limit=20", buildListCacheKey(base))

	pending := domain.TaskStatusPending
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	full := ListQuery{Page: 1, Limit: 10, Status: &pending, DateFrom: &from, DateTo: &to}
	assert.Equal(t,
		"tasks:list:page=1:limit=10:status=pending:dateFrom=2026-01-01T00:00:00Z:dateTo=2026-01-31T00:00:00Z",
		buildListCacheKey(full))

	// Equal queries yield equal keys
	assert.Equal(t, buildListCacheKey(full), buildListCacheKey(full))
}

func TestTotalPages(t *testing.T) {
	assert.Equal(t, int64(0), totalPages(0, 10))
	assert.Equal(t, int64(1), totalPages(1, 10))
	assert.Equal(t, int64(1), totalPages(10, 10))
	assert.Equal(t, int64(2), totalPages(11, 10))
	assert.Equal(t, int64(3), totalPages(25, 10))
}

func ptr(s string) *string {
	return &s
}
