// Package filter narrows task collections by completion status and priority.
package filter

import (
	"strings"

	"github.com/noah-isme/taskroster/internal/models"
	appErrors "github.com/noah-isme/taskroster/pkg/errors"
)

// Status selects tasks by completion.
type Status string

// Status values.
const (
	StatusAll       Status = "all"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// Priority selects tasks by priority; PriorityAll matches every task.
type Priority string

// PriorityAll matches every priority.
const PriorityAll Priority = "all"

// Criteria is a status and priority pair.
type Criteria struct {
	Status   Status
	Priority Priority
}

// Default matches everything.
var Default = Criteria{Status: StatusAll, Priority: PriorityAll}

// ParseStatus accepts all, active or completed, case-insensitively. Empty means all.
func ParseStatus(raw string) (Status, error) {
	switch s := Status(strings.ToLower(strings.TrimSpace(raw))); s {
	case "":
		return StatusAll, nil
	case StatusAll, StatusActive, StatusCompleted:
		return s, nil
	default:
		return "", appErrors.Validation("invalid status filter", []string{"status must be one of all, active, completed"})
	}
}

// ParsePriority accepts all or a task priority, case-insensitively. Empty means all.
func ParsePriority(raw string) (Priority, error) {
	p := strings.ToLower(strings.TrimSpace(raw))
	if p == "" || Priority(p) == PriorityAll {
		return PriorityAll, nil
	}
	if models.ValidPriority(p) {
		return Priority(p), nil
	}
	return "", appErrors.Validation("invalid priority filter", []string{"priority must be one of all, low, medium, high"})
}

// Parse reads both criteria.
func Parse(status, priority string) (Criteria, error) {
	s, err := ParseStatus(status)
	if err != nil {
		return Criteria{}, err
	}
	p, err := ParsePriority(priority)
	if err != nil {
		return Criteria{}, err
	}
	return Criteria{Status: s, Priority: p}, nil
}

// Match reports whether t satisfies both criteria.
func (c Criteria) Match(t models.Task) bool {
	switch c.Status {
	case StatusActive:
		if t.Completed {
			return false
		}
	case StatusCompleted:
		if !t.Completed {
			return false
		}
	}
	if c.Priority != "" && c.Priority != PriorityAll && string(c.Priority) != t.Priority {
		return false
	}
	return true
}

// Apply returns a new slice holding the tasks that match both criteria, in input
// order. tasks is not modified.
func Apply(tasks []models.Task, status Status, priority Priority) []models.Task {
	c := Criteria{Status: status, Priority: priority}
	out := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if c.Match(t) {
			out = append(out, t)
		}
	}
	return out
}

// Counts summarises a collection.
type Counts struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
}

// Count tallies tasks by completion.
func Count(tasks []models.Task) Counts {
	c := Counts{Total: len(tasks)}
	for _, t := range tasks {
		if t.Completed {
			c.Completed++
		} else {
			c.Active++
		}
	}
	return c
}
