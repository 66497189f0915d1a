// Package service defines the backend-agnostic interface for task operations.
package service

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Status is a task's workflow state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusArchived   Status = "archived"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{StatusPending, StatusInProgress, StatusCompleted, StatusArchived}

// Priority is a task's priority.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Priorities lists every valid priority from lowest to highest.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// ParseStatus validates s (case-insensitive). "in_progress" and "inprogress"
// are accepted for in-progress.
func ParseStatus(s string) (Status, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "in_progress", "inprogress":
		v = string(StatusInProgress)
	}
	for _, st := range Statuses {
		if string(st) == v {
			return st, nil
		}
	}
	return "", Invalidf("invalid status: %s", s)
}

// ParsePriority validates s (case-insensitive).
func ParsePriority(s string) (Priority, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	for _, p := range Priorities {
		if string(p) == v {
			return p, nil
		}
	}
	return "", Invalidf("invalid priority: %s", s)
}

// Timestamp is a time.Time that also accepts the zone-less and date-only
// forms the backend emits ("2006-01-02T15:04:05", "2006-01-02"). Zone-less
// values are read as UTC.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	time.DateOnly,
}

// NewTimestamp wraps t.
func NewTimestamp(t time.Time) *Timestamp {
	return &Timestamp{Time: t}
}

// ParseTimestamp parses s using the accepted layouts.
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Timestamp{Time: t}, nil
		}
	}
	return Timestamp{}, Invalidf("invalid date: %s", s)
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("invalid date: %s", b)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Task represents a single task item as returned by the backend.
type Task struct {
	ID             string     `json:"id,omitempty"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	DueDate        *Timestamp `json:"dueDate,omitempty"`
	Priority       Priority   `json:"priority"`
	Status         Status     `json:"status"`
	EstimatedHours *float64   `json:"estimatedHours,omitempty"`
	CreatedAt      *Timestamp `json:"createdAt,omitempty"`
	UpdatedAt      *Timestamp `json:"updatedAt,omitempty"`
	UserID         string     `json:"userId,omitempty"`
}

// TaskInput is the writable subset of a Task sent on create and update.
type TaskInput struct {
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	DueDate        *Timestamp `json:"dueDate,omitempty"`
	Priority       Priority   `json:"priority,omitempty"`
	Status         Status     `json:"status,omitempty"`
	EstimatedHours *float64   `json:"estimatedHours,omitempty"`
}

// Input returns the writable fields of t, for read-modify-write updates.
func (t Task) Input() TaskInput {
	return TaskInput{
		Title:          t.Title,
		Description:    t.Description,
		DueDate:        t.DueDate,
		Priority:       t.Priority,
		Status:         t.Status,
		EstimatedHours: t.EstimatedHours,
	}
}

// Validate checks the fields the client can check before sending.
func (in TaskInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return Invalidf("title required")
	}
	if in.Priority != "" {
		if _, err := ParsePriority(string(in.Priority)); err != nil {
			return err
		}
	}
	if in.Status != "" {
		if _, err := ParseStatus(string(in.Status)); err != nil {
			return err
		}
	}
	if in.EstimatedHours != nil && *in.EstimatedHours < 0 {
		return Invalidf("invalid estimate: %v", *in.EstimatedHours)
	}
	return nil
}

// TaskPage is one page of a task listing.
type TaskPage struct {
	Data       []Task `json:"data"`
	Total      int    `json:"total"`
	Page       int    `json:"page"`
	Limit      int    `json:"limit"`
	TotalPages int    `json:"totalPages"`
}

// ListOptions selects a page of tasks. Zero Page and Limit mean the defaults.
type ListOptions struct {
	Page     int
	Limit    int
	Status   Status
	Priority Priority
	// Sort is "field" or "field:asc|desc", e.g. "dueDate:asc".
	Sort string
}
