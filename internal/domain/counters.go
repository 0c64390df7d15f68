package domain

import "fmt"

// TaskCounters is the aggregate per-status task count plus the total.
// It is recomputed from the full task set on demand, never maintained
// incrementally.
type TaskCounters struct {
	Pending    int64 `json:"pending"`
	InProgress int64 `json:"in_progress"`
	Completed  int64 `json:"completed"`
	Cancelled  int64 `json:"cancelled"`
	Total      int64 `json:"total"`
}

// Add increments the counter for the given status and the total. A status
// outside the known set is ignored entirely; it must not skew the total
// away from the per-status sum.
func (c *TaskCounters) Add(status TaskStatus, n int64) {
	switch status {
	case TaskStatusPending:
		c.Pending += n
	case TaskStatusInProgress:
		c.InProgress += n
	case TaskStatusCompleted:
		c.Completed += n
	case TaskStatusCancelled:
		c.Cancelled += n
	default:
		return
	}
	c.Total += n
}

// CheckInvariant verifies that the total equals the sum of the per-status
// counts. Any snapshot handed out by the store must satisfy this.
func (c TaskCounters) CheckInvariant() error {
	sum := c.Pending + c.InProgress + c.Completed + c.Cancelled
	if sum != c.Total {
		return fmt.Errorf("counters total %d does not match per-status sum %d", c.Total, sum)
	}
	return nil
}
