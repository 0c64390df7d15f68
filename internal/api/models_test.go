package api

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestOptionalStringUnmarshal verifies the three-way distinction between an
// absent field, an explicit null, and a value.
func TestOptionalStringUnmarshal(t *testing.T) {
	type payload struct {
		Description OptionalString `json:"description"`
	}

	var absent payload
	require.NoError(t, json.Unmarshal([]byte(`{}`), &absent))
	assert.False(t, absent.Description.Set, "absent field must not be marked set")

	var null payload
	require.NoError(t, json.Unmarshal([]byte(`{"description": null}`), &null))
	assert.True(t, null.Description.Set, "explicit null must be marked set")
	assert.Nil(t, null.Description.Value)

	var value payload
	require.NoError(t, json.Unmarshal([]byte(`{"description": "hello"}`), &value))
	assert.True(t, value.Description.Set)
	require.NotNil(t, value.Description.Value)
	assert.Equal(t, "hello", *value.Description.Value)
}

func TestUpdateTaskRequestIsEmpty(t *testing.T) {
	assert.True(t, UpdateTaskRequest{}.IsEmpty())

	title := "t"
	assert.False(t, UpdateTaskRequest{Title: &title}.IsEmpty())

	var req UpdateTaskRequest
	require.NoError(t, json.Unmarshal([]byte(`{"dueDate": null}`), &req))
	assert.False(t, req.IsEmpty(), "a null clear still counts as a change")
}

func TestParseDate(t *testing.T) {
	parsed, err := parseDate("2026-03-15T10:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC), parsed)

	parsed, err = parseDate("2026-03-15")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), parsed)

	// Offsets normalize to UTC
	parsed, err = parseDate("2026-03-15T02:00:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), parsed)

	_, err = parseDate("15/03/2026")
	assert.Error(t, err)

	_, err = parseDate("")
	assert.Error(t, err)
}
