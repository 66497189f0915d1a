// Package service defines the backend-agnostic interface for task operations.
package service

import (
	"context"
	"errors"
	"fmt"
)

// Default pagination.
const (
	DefaultPage  = 1
	DefaultLimit = 10
)

// ErrTaskIDRequired is returned, without any request being sent, when an
// operation needs a task id and none was given.
var ErrTaskIDRequired = errors.New("task ID is required")

// InvalidInputError reports input rejected locally, before any request.
type InvalidInputError struct {
	Msg string
}

func (e *InvalidInputError) Error() string { return e.Msg }

// Invalidf returns an InvalidInputError with a formatted message.
func Invalidf(format string, args ...any) error {
	return &InvalidInputError{Msg: fmt.Sprintf(format, args...)}
}

// Service defines the interface for task backend operations.
// Commands never talk HTTP directly.
type Service interface {
	// ListTasks returns one page of tasks matching opts.
	ListTasks(ctx context.Context, opts ListOptions) (TaskPage, error)

	// GetTask returns a single task by id.
	GetTask(ctx context.Context, id string) (Task, error)

	// CreateTask creates a task and returns it as stored.
	CreateTask(ctx context.Context, in TaskInput) (Task, error)

	// UpdateTask replaces the writable fields of a task.
	UpdateTask(ctx context.Context, id string, in TaskInput) (Task, error)

	// CompleteTask marks a task completed.
	CompleteTask(ctx context.Context, id string) (Task, error)

	// DeleteTask deletes a task.
	DeleteTask(ctx context.Context, id string) error

	// SearchTasks returns tasks matching query, optionally filtered by status.
	SearchTasks(ctx context.Context, query string, status Status) ([]Task, error)
}
