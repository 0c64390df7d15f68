// Package client provides a typed HTTP client for the task API and a
// Browser that maintains client-side list state on top of it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/taskforge/taskforge/internal/domain"
	"github.com/taskforge/taskforge/internal/service"
)

// DefaultTimeout bounds each request when the caller supplies no http.Client.
const DefaultTimeout = 30 * time.Second

// ErrNotFound is returned when the server reports that a task does not exist.
var ErrNotFound = errors.New("task not found")

// ErrBadRequest is returned when the server rejects the request as invalid.
// The wrapped message carries the server's explanation.
var ErrBadRequest = errors.New("bad request")

// APIError is a structured error response from the server.
type APIError struct {
	StatusCode int
	Message    string
	TraceID    string
}

func (e *APIError) Error() string {
	if e.TraceID != "" {
		return fmt.Sprintf("api error (status %d, trace %s): %s", e.StatusCode, e.TraceID, e.Message)
	}
	return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
}

// Client talks to the task API over HTTP.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// NewClient constructs a Client for the given base URL. A nil httpClient
// falls back to one with DefaultTimeout.
func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{baseURL: base, httpClient: httpClient}, nil
}

// ListOptions control paging and server-side filtering for List.
type ListOptions struct {
	Page     int
	Limit    int
	Status   *domain.TaskStatus
	DateFrom *time.Time
	DateTo   *time.Time
}

// List calls GET /tasks and returns the page with metadata and counters.
func (c *Client) List(ctx context.Context, opts ListOptions) (*service.ListResult, error) {
	q := url.Values{}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Status != nil {
		q.Set("status", string(*opts.Status))
	}
	if opts.DateFrom != nil {
		q.Set("dateFrom", opts.DateFrom.UTC().Format(time.RFC3339))
	}
	if opts.DateTo != nil {
		q.Set("dateTo", opts.DateTo.UTC().Format(time.RFC3339))
	}

	var result service.ListResult
	if err := c.do(ctx, http.MethodGet, "/tasks", q, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Counters calls GET /tasks/counters.
func (c *Client) Counters(ctx context.Context) (domain.TaskCounters, error) {
	var counters domain.TaskCounters
	if err := c.do(ctx, http.MethodGet, "/tasks/counters", nil, nil, &counters); err != nil {
		return domain.TaskCounters{}, err
	}
	return counters, nil
}

// Get calls GET /tasks/{id}.
func (c *Client) Get(ctx context.Context, id uuid.UUID) (*service.TaskData, error) {
	var task service.TaskData
	if err := c.do(ctx, http.MethodGet, "/tasks/"+id.String(), nil, nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// CreateTaskRequest is the body for Create.
type CreateTaskRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Status      string  `json:"status,omitempty"`
	DueDate     *string `json:"dueDate,omitempty"`
}

// Create calls POST /tasks.
func (c *Client) Create(ctx context.Context, req CreateTaskRequest) (*service.TaskData, error) {
	var task service.TaskData
	if err := c.do(ctx, http.MethodPost, "/tasks", nil, req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// Update calls PATCH /tasks/{id} with the given partial body, typically a
// map[string]any so that a field can be set to explicit JSON null (which
// clears it server-side) as opposed to being omitted.
func (c *Client) Update(ctx context.Context, id uuid.UUID, body any) (*service.TaskData, error) {
	var task service.TaskData
	if err := c.do(ctx, http.MethodPatch, "/tasks/"+id.String(), nil, body, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// Delete calls DELETE /tasks/{id}.
func (c *Client) Delete(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/tasks/"+id.String(), nil, nil, nil)
}

// do performs one request and decodes the response into out when non-nil.
// The path is joined onto the base URL, so a base of /api keeps its prefix.
// Error responses decode into APIError; a 404 additionally wraps ErrNotFound.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}

	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), payload)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Message:    http.StatusText(resp.StatusCode),
	}
	var wire struct {
		Error   string `json:"error"`
		TraceID string `json:"trace_id"`
	}
	if err := json.Unmarshal(data, &wire); err == nil && wire.Error != "" {
		apiErr.Message = wire.Error
		apiErr.TraceID = wire.TraceID
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, apiErr.Message)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrBadRequest, apiErr.Message)
	}
	return apiErr
}
