// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"taskr/internal/envelope"
	"taskr/internal/service"
)

// FakeService is an in-memory implementation of service.Service for testing.
// Missing tasks produce a 404 *envelope.APIError, like the real backend.
type FakeService struct {
	mu     sync.RWMutex
	tasks  []service.Task
	nextID int

	// Error injection for testing
	ListErr     error
	GetErr      error
	CreateErr   error
	UpdateErr   error
	CompleteErr error
	DeleteErr   error
	SearchErr   error

	// LastList is the options of the most recent ListTasks call.
	LastList service.ListOptions
}

// NewFakeService creates an empty FakeService.
func NewFakeService() *FakeService {
	return &FakeService{nextID: 1}
}

// AddTask stores t, assigning an id and defaults when missing, and returns it.
func (f *FakeService) AddTask(t service.Task) service.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addLocked(t)
}

// Tasks returns a snapshot of every stored task.
func (f *FakeService) Tasks() []service.Task {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]service.Task(nil), f.tasks...)
}

func (f *FakeService) addLocked(t service.Task) service.Task {
	if t.ID == "" {
		t.ID = fmt.Sprintf("task-%d", f.nextID)
		f.nextID++
	}
	if t.Status == "" {
		t.Status = service.StatusPending
	}
	if t.Priority == "" {
		t.Priority = service.PriorityMedium
	}
	if t.CreatedAt == nil {
		t.CreatedAt = service.NewTimestamp(time.Now().UTC())
	}
	f.tasks = append(f.tasks, t)
	return t
}

func notFound() error {
	return &envelope.APIError{StatusCode: 404, Message: "Task not found"}
}

func (f *FakeService) indexLocked(id string) int {
	for i, t := range f.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// ListTasks implements service.Service.
func (f *FakeService) ListTasks(ctx context.Context, opts service.ListOptions) (service.TaskPage, error) {
	f.mu.Lock()
	f.LastList = opts
	f.mu.Unlock()
	if f.ListErr != nil {
		return service.TaskPage{}, f.ListErr
	}
	if opts.Page == 0 {
		opts.Page = service.DefaultPage
	}
	if opts.Limit == 0 {
		opts.Limit = service.DefaultLimit
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	var matched []service.Task
	for _, t := range f.tasks {
		if opts.Status != "" && t.Status != opts.Status {
			continue
		}
		if opts.Priority != "" && t.Priority != opts.Priority {
			continue
		}
		matched = append(matched, t)
	}

	start := (opts.Page - 1) * opts.Limit
	if start > len(matched) {
		start = len(matched)
	}
	end := start + opts.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return service.TaskPage{
		Data:       append([]service.Task{}, matched[start:end]...),
		Total:      len(matched),
		Page:       opts.Page,
		Limit:      opts.Limit,
		TotalPages: (len(matched) + opts.Limit - 1) / opts.Limit,
	}, nil
}

// GetTask implements service.Service.
func (f *FakeService) GetTask(ctx context.Context, id string) (service.Task, error) {
	if f.GetErr != nil {
		return service.Task{}, f.GetErr
	}
	if strings.TrimSpace(id) == "" {
		return service.Task{}, service.ErrTaskIDRequired
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	i := f.indexLocked(id)
	if i < 0 {
		return service.Task{}, notFound()
	}
	return f.tasks[i], nil
}

// CreateTask implements service.Service.
func (f *FakeService) CreateTask(ctx context.Context, in service.TaskInput) (service.Task, error) {
	if f.CreateErr != nil {
		return service.Task{}, f.CreateErr
	}
	if err := in.Validate(); err != nil {
		return service.Task{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addLocked(service.Task{
		Title:          in.Title,
		Description:    in.Description,
		DueDate:        in.DueDate,
		Priority:       in.Priority,
		Status:         in.Status,
		EstimatedHours: in.EstimatedHours,
	}), nil
}

// UpdateTask implements service.Service.
func (f *FakeService) UpdateTask(ctx context.Context, id string, in service.TaskInput) (service.Task, error) {
	if f.UpdateErr != nil {
		return service.Task{}, f.UpdateErr
	}
	if strings.TrimSpace(id) == "" {
		return service.Task{}, service.ErrTaskIDRequired
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.indexLocked(id)
	if i < 0 {
		return service.Task{}, notFound()
	}
	t := &f.tasks[i]
	t.Title = in.Title
	t.Description = in.Description
	t.DueDate = in.DueDate
	t.EstimatedHours = in.EstimatedHours
	if in.Priority != "" {
		t.Priority = in.Priority
	}
	if in.Status != "" {
		t.Status = in.Status
	}
	return *t, nil
}

// CompleteTask implements service.Service.
func (f *FakeService) CompleteTask(ctx context.Context, id string) (service.Task, error) {
	if f.CompleteErr != nil {
		return service.Task{}, f.CompleteErr
	}
	if strings.TrimSpace(id) == "" {
		return service.Task{}, service.ErrTaskIDRequired
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.indexLocked(id)
	if i < 0 {
		return service.Task{}, notFound()
	}
	f.tasks[i].Status = service.StatusCompleted
	return f.tasks[i], nil
}

// DeleteTask implements service.Service.
func (f *FakeService) DeleteTask(ctx context.Context, id string) error {
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	if strings.TrimSpace(id) == "" {
		return service.ErrTaskIDRequired
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.indexLocked(id)
	if i < 0 {
		return notFound()
	}
	f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
	return nil
}

// SearchTasks implements service.Service.
func (f *FakeService) SearchTasks(ctx context.Context, query string, status service.Status) ([]service.Task, error) {
	if f.SearchErr != nil {
		return nil, f.SearchErr
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	q := strings.ToLower(query)
	var out []service.Task
	for _, t := range f.tasks {
		if status != "" && t.Status != status {
			continue
		}
		if strings.Contains(strings.ToLower(t.Title), q) || strings.Contains(strings.ToLower(t.Description), q) {
			out = append(out, t)
		}
	}
	return out, nil
}
