package client

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taskforge/taskforge/internal/domain"
	"github.com/taskforge/taskforge/internal/service"
)

// Filter is the client-side view filter. Status narrows by task status and
// DueOnOrBefore keeps only tasks whose due date falls on or before the given
// UTC calendar day.
type Filter struct {
	Status        *domain.TaskStatus
	DueOnOrBefore *time.Time
}

// State is a point-in-time copy of the browser's view state.
type State struct {
	Tasks      []service.TaskData
	Filter     Filter
	Page       int
	Limit      int
	Total      int64
	TotalPages int64
	Counters   domain.TaskCounters
	Loading    bool
	Err        error
}

// Browser holds the client-side task list state and keeps it in sync with
// the server. All methods are safe for concurrent use.
type Browser struct {
	client *Client

	mu         sync.Mutex
	tasks      []service.TaskData
	filter     Filter
	page       int
	limit      int
	total      int64
	totalPages int64
	counters   domain.TaskCounters
	loading    bool
	err        error
}

// NewBrowser constructs a Browser with the default page size.
func NewBrowser(client *Client) *Browser {
	return &Browser{
		client: client,
		page:   service.DefaultPage,
		limit:  service.DefaultLimit,
	}
}

// Snapshot returns a copy of the current state.
func (b *Browser) Snapshot() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	tasks := make([]service.TaskData, len(b.tasks))
	copy(tasks, b.tasks)

	return State{
		Tasks:      tasks,
		Filter:     b.filter,
		Page:       b.page,
		Limit:      b.limit,
		Total:      b.total,
		TotalPages: b.totalPages,
		Counters:   b.counters,
		Loading:    b.loading,
		Err:        b.err,
	}
}

// FilteredTasks applies the active filter to the loaded page and returns
// the matching tasks without touching the network. Status is an equality
// match. The date comparison is by UTC calendar day: a task matches when
// its due day is on or before the filter day. Tasks without a due date
// never match an active due date filter.
func (b *Browser) FilteredTasks() []service.TaskData {
	b.mu.Lock()
	defer b.mu.Unlock()

	filtered := make([]service.TaskData, 0, len(b.tasks))
	for _, task := range b.tasks {
		if b.filter.Status != nil && task.Status != string(*b.filter.Status) {
			continue
		}
		if b.filter.DueOnOrBefore != nil {
			if task.DueDate == nil {
				continue
			}
			due, err := time.Parse(time.RFC3339, *task.DueDate)
			if err != nil {
				continue
			}
			if utcDay(due).After(utcDay(*b.filter.DueOnOrBefore)) {
				continue
			}
		}
		filtered = append(filtered, task)
	}
	return filtered
}

// Load fetches the current page from the server and replaces the local
// state. On failure the previous tasks are kept and Err records the cause.
func (b *Browser) Load(ctx context.Context) error {
	b.mu.Lock()
	b.loading = true
	b.err = nil
	opts := ListOptions{
		Page:   b.page,
		Limit:  b.limit,
		Status: b.filter.Status,
	}
	b.mu.Unlock()

	result, err := b.client.List(ctx, opts)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.loading = false
	if err != nil {
		b.err = err
		return err
	}

	b.tasks = result.Data
	b.total = result.Meta.Total
	b.totalPages = result.Meta.TotalPages
	b.counters = result.Counters
	b.page = result.Meta.Page
	return nil
}

// SetFilter replaces the active filter, resets to the first page and
// reloads from the server.
func (b *Browser) SetFilter(ctx context.Context, filter Filter) error {
	b.mu.Lock()
	b.filter = filter
	b.page = service.DefaultPage
	b.mu.Unlock()

	return b.Load(ctx)
}

// SetPage moves to the given page and reloads. Pages below 1 are clamped
// to the first page.
func (b *Browser) SetPage(ctx context.Context, page int) error {
	if page < 1 {
		page = 1
	}
	b.mu.Lock()
	b.page = page
	b.mu.Unlock()

	return b.Load(ctx)
}

// CreateTask creates a task on the server and reloads the current page so
// the list and counters reflect the change.
func (b *Browser) CreateTask(ctx context.Context, req CreateTaskRequest) (*service.TaskData, error) {
	b.beginAction()
	task, err := b.client.Create(ctx, req)
	if err != nil {
		b.failAction(err)
		return nil, err
	}
	return task, b.Load(ctx)
}

// UpdateTask applies a partial update on the server and reloads.
func (b *Browser) UpdateTask(ctx context.Context, id uuid.UUID, body any) (*service.TaskData, error) {
	b.beginAction()
	task, err := b.client.Update(ctx, id, body)
	if err != nil {
		b.failAction(err)
		return nil, err
	}
	return task, b.Load(ctx)
}

// DeleteTask deletes a task on the server and reloads.
func (b *Browser) DeleteTask(ctx context.Context, id uuid.UUID) error {
	b.beginAction()
	if err := b.client.Delete(ctx, id); err != nil {
		b.failAction(err)
		return err
	}
	return b.Load(ctx)
}

// beginAction marks the start of a network action: loading on, stale error
// cleared.
func (b *Browser) beginAction() {
	b.mu.Lock()
	b.loading = true
	b.err = nil
	b.mu.Unlock()
}

func (b *Browser) failAction(err error) {
	b.mu.Lock()
	b.loading = false
	b.err = err
	b.mu.Unlock()
}

// utcDay truncates a time to its UTC calendar day.
func utcDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
