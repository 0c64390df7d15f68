package api

import (
	"encoding/json"
	"fmt"
	"time"
)

// Common request structures for the task endpoints.

// CreateTaskRequest defines the payload for the task creation endpoint.
// Status and due date arrive as strings and are parsed/normalized by the
// handler; length limits mirror the domain rules so obviously bad input is
// rejected before it reaches the service.
type CreateTaskRequest struct {
	Title       string  `json:"title"       validate:"required,max=255"`
	Description *string `json:"description" validate:"omitempty,max=4000"`
	Status      string  `json:"status"`
	DueDate     *string `json:"dueDate"`
}

// OptionalString distinguishes an absent JSON key from an explicit null.
// Absent: Set is false. Null: Set is true, Value is nil. Present: both set.
// PATCH bodies need this because a missing field means "leave unchanged"
// while null means "clear".
type OptionalString struct {
	Set   bool
	Value *string
}

// UnmarshalJSON implements json.Unmarshaler. It is only invoked when the
// key is present in the payload, which is what flips Set.
func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}

// UpdateTaskRequest defines the payload for the partial-update endpoint.
// Every field is optional; description and dueDate are clearable with an
// explicit null.
type UpdateTaskRequest struct {
	Title       *string        `json:"title"`
	Description OptionalString `json:"description"`
	Status      *string        `json:"status"`
	DueDate     OptionalString `json:"dueDate"`
}

// IsEmpty reports whether the request carries no changes at all.
func (r UpdateTaskRequest) IsEmpty() bool {
	return r.Title == nil && !r.Description.Set && r.Status == nil && !r.DueDate.Set
}

// dateLayouts are the accepted due-date formats: full RFC 3339 timestamps
// and bare calendar dates.
var dateLayouts = []string{time.RFC3339, "2006-01-02"}

// parseDate parses an ISO-8601 date or timestamp into a UTC instant.
func parseDate(raw string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q, expected ISO-8601", raw)
}
