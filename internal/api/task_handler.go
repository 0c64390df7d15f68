package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/taskforge/taskforge/internal/api/shared"
	"github.com/taskforge/taskforge/internal/domain"
	"github.com/taskforge/taskforge/internal/platform/logger"
	"github.com/taskforge/taskforge/internal/service"
	"github.com/taskforge/taskforge/internal/store"
)

// TaskHandler handles task-related HTTP requests
type TaskHandler struct {
	taskService service.TaskService
	logger      *slog.Logger
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(taskService service.TaskService, logger *slog.Logger) *TaskHandler {
	if taskService == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("taskService cannot be nil for TaskHandler")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &TaskHandler{
		taskService: taskService,
		logger:      logger.With(slog.String("component", "task_handler")),
	}
}

// ListTasks handles GET /tasks requests
// It returns one page of tasks with pagination metadata and status counters.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	query, err := parseListQuery(r)
	if err != nil {
		log.Warn("invalid list query", slog.String("error", err.Error()))
		shared.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.taskService.List(r.Context(), query)
	if err != nil {
		statusCode := MapErrorToStatusCode(err)
		safeMessage := GetSafeErrorMessage(err)
		if statusCode == http.StatusInternalServerError {
			safeMessage = "Failed to list tasks"
		}
		shared.RespondWithErrorAndLog(w, r, statusCode, safeMessage, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, result)
}

// GetCounters handles GET /tasks/counters requests
func (h *TaskHandler) GetCounters(w http.ResponseWriter, r *http.Request) {
	counters, err := h.taskService.Counters(r.Context())
	if err != nil {
		statusCode := MapErrorToStatusCode(err)
		safeMessage := GetSafeErrorMessage(err)
		if statusCode == http.StatusInternalServerError {
			safeMessage = "Failed to get task counters"
		}
		shared.RespondWithErrorAndLog(w, r, statusCode, safeMessage, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, counters)
}

// GetTask handles GET /tasks/{id} requests
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	id, ok := h.taskIDFromRequest(w, r)
	if !ok {
		return
	}

	task, err := h.taskService.GetByID(r.Context(), id)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Debug("task retrieved", slog.String("task_id", id.String()))
	shared.RespondWithJSON(w, r, http.StatusOK, task)
}

// CreateTask handles POST /tasks requests
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req CreateTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		log.Warn("invalid request format", slog.String("error", err.Error()))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if err := shared.ValidateRequest(req); err != nil {
		log.Warn("validation error", slog.String("error", err.Error()))
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Validation error", err)
		return
	}

	input := service.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
	}

	if req.Status != "" {
		status, err := domain.ParseTaskStatus(req.Status)
		if err != nil {
			log.Warn("invalid status", slog.String("status", req.Status))
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task status")
			return
		}
		input.Status = status
	}

	if req.DueDate != nil {
		due, err := parseDate(*req.DueDate)
		if err != nil {
			log.Warn("invalid due date", slog.String("due_date", *req.DueDate))
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid due date, expected ISO-8601")
			return
		}
		input.DueDate = &due
	}

	task, err := h.taskService.Create(r.Context(), input)
	if err != nil {
		statusCode := MapErrorToStatusCode(err)
		safeMessage := GetSafeErrorMessage(err)
		if statusCode == http.StatusInternalServerError {
			safeMessage = "Failed to create task"
		}
		shared.RespondWithErrorAndLog(w, r, statusCode, safeMessage, err)
		return
	}

	log.Debug("task created", slog.String("task_id", task.ID))
	shared.RespondWithJSON(w, r, http.StatusCreated, task)
}

// UpdateTask handles PATCH /tasks/{id} requests
// Only fields present in the body change; description and dueDate accept an
// explicit null to clear.
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	id, ok := h.taskIDFromRequest(w, r)
	if !ok {
		return
	}

	var req UpdateTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		log.Warn("invalid request format", slog.String("error", err.Error()))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	// An empty body is still a valid update; only updated_at advances.
	if req.IsEmpty() {
		log.Debug("empty update body", slog.String("task_id", id.String()))
	}

	update := store.TaskUpdate{
		Title: req.Title,
	}

	if req.Description.Set {
		if req.Description.Value == nil {
			update.ClearDescription = true
		} else {
			update.Description = req.Description.Value
		}
	}

	if req.Status != nil {
		status, err := domain.ParseTaskStatus(*req.Status)
		if err != nil {
			log.Warn("invalid status", slog.String("status", *req.Status))
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task status")
			return
		}
		update.Status = &status
	}

	if req.DueDate.Set {
		if req.DueDate.Value == nil {
			update.ClearDueDate = true
		} else {
			due, err := parseDate(*req.DueDate.Value)
			if err != nil {
				log.Warn("invalid due date", slog.String("due_date", *req.DueDate.Value))
				shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid due date, expected ISO-8601")
				return
			}
			update.DueDate = &due
		}
	}

	task, err := h.taskService.Update(r.Context(), id, update)
	if err != nil {
		statusCode := MapErrorToStatusCode(err)
		safeMessage := GetSafeErrorMessage(err)
		if statusCode == http.StatusInternalServerError {
			safeMessage = "Failed to update task"
		}
		shared.RespondWithErrorAndLog(w, r, statusCode, safeMessage, err)
		return
	}

	log.Debug("task updated", slog.String("task_id", id.String()))
	shared.RespondWithJSON(w, r, http.StatusOK, task)
}

// DeleteTask handles DELETE /tasks/{id} requests
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	id, ok := h.taskIDFromRequest(w, r)
	if !ok {
		return
	}

	if err := h.taskService.Delete(r.Context(), id); err != nil {
		statusCode := MapErrorToStatusCode(err)
		safeMessage := GetSafeErrorMessage(err)
		if statusCode == http.StatusInternalServerError {
			safeMessage = "Failed to delete task"
		}
		shared.RespondWithErrorAndLog(w, r, statusCode, safeMessage, err)
		return
	}

	log.Debug("task deleted", slog.String("task_id", id.String()))
	w.WriteHeader(http.StatusNoContent)
}

// taskIDFromRequest extracts and parses the {id} path parameter, writing a
// 400 response on malformed input.
func (h *TaskHandler) taskIDFromRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	pathID := chi.URLParam(r, "id")
	if pathID == "" {
		log.Warn("task ID not found in URL path")
		shared.RespondWithError(w, r, http.StatusBadRequest, "Task ID is required")
		return uuid.Nil, false
	}

	id, err := uuid.Parse(pathID)
	if err != nil {
		log.Warn("invalid task ID format", slog.String("task_id", pathID))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID format")
		return uuid.Nil, false
	}

	return id, true
}

// parseListQuery extracts paging and filter parameters from the URL query.
// Malformed or out-of-range values are client errors; absent values fall
// back to the service defaults.
func parseListQuery(r *http.Request) (service.ListQuery, error) {
	query := service.ListQuery{
		Page:  service.DefaultPage,
		Limit: service.DefaultLimit,
	}
	values := r.URL.Query()

	if raw := values.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return query, errInvalidParam("page", "must be an integer >= 1")
		}
		query.Page = page
	}

	if raw := values.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > service.MaxLimit {
			return query, errInvalidParam("limit", "must be an integer between 1 and 100")
		}
		query.Limit = limit
	}

	if raw := values.Get("status"); raw != "" {
		status, err := domain.ParseTaskStatus(raw)
		if err != nil {
			return query, errInvalidParam("status", "unknown task status")
		}
		query.Status = &status
	}

	if raw := values.Get("dateFrom"); raw != "" {
		from, err := parseDate(raw)
		if err != nil {
			return query, errInvalidParam("dateFrom", "expected ISO-8601 date")
		}
		query.DateFrom = &from
	}

	if raw := values.Get("dateTo"); raw != "" {
		to, err := parseDate(raw)
		if err != nil {
			return query, errInvalidParam("dateTo", "expected ISO-8601 date")
		}
		query.DateTo = &to
	}

	return query, nil
}

// paramError is a client error for a single malformed query parameter.
type paramError struct {
	param  string
	reason string
}

func (e *paramError) Error() string {
	return "invalid query parameter " + e.param + ": " + e.reason
}

func errInvalidParam(param, reason string) error {
	return &paramError{param: param, reason: reason}
}
