package commands

import (
	"context"
	"fmt"
	"strings"

	"taskr/internal/output"
	"taskr/internal/service"
)

// maxPrefixPages bounds how many listing pages an id prefix is matched
// against.
const maxPrefixPages = 10

// taskResolver turns TaskRefs into tasks. Row numbers refer to the
// unfiltered listing at the given page size. Pages are cached so several
// refs in one command see the same numbering.
type taskResolver struct {
	svc   service.Service
	limit int
	pages map[int]service.TaskPage
}

func newTaskResolver(svc service.Service, limit int) *taskResolver {
	if limit < 1 {
		limit = service.DefaultLimit
	}
	return &taskResolver{svc: svc, limit: limit, pages: make(map[int]service.TaskPage)}
}

func (r *taskResolver) page(ctx context.Context, n int) (service.TaskPage, error) {
	if p, ok := r.pages[n]; ok {
		return p, nil
	}
	p, err := r.svc.ListTasks(ctx, service.ListOptions{Page: n, Limit: r.limit})
	if err != nil {
		return service.TaskPage{}, err
	}
	r.pages[n] = p
	return p, nil
}

// resolve finds the task ref points at.
func (r *taskResolver) resolve(ctx context.Context, ref TaskRef) (service.Task, error) {
	if ref.ID != "" {
		return r.byID(ctx, ref.ID)
	}
	return r.byNumber(ctx, ref.Num)
}

// resolveAll resolves every ref before the caller changes anything.
func (r *taskResolver) resolveAll(ctx context.Context, refs []TaskRef) ([]service.Task, error) {
	tasks := make([]service.Task, 0, len(refs))
	seen := make(map[string]bool)
	for _, ref := range refs {
		t, err := r.resolve(ctx, ref)
		if err != nil {
			return nil, err
		}
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func (r *taskResolver) byNumber(ctx context.Context, num int) (service.Task, error) {
	if num < 1 {
		return service.Task{}, usageError("task number out of range: %d", num)
	}

	pageNum := (num-1)/r.limit + 1
	index := (num - 1) % r.limit

	p, err := r.page(ctx, pageNum)
	if err != nil {
		return service.Task{}, err
	}
	if index >= len(p.Data) {
		return service.Task{}, usageError("task number out of range: %d", num)
	}
	return p.Data[index], nil
}

// byID fetches full ids directly. Short ids are first matched as prefixes
// against the listing, since that is what `taskr list` shows.
func (r *taskResolver) byID(ctx context.Context, id string) (service.Task, error) {
	if len(id) > output.ShortIDLength {
		return r.svc.GetTask(ctx, id)
	}

	var matches []service.Task
	for n := 1; n <= maxPrefixPages; n++ {
		p, err := r.page(ctx, n)
		if err != nil {
			return service.Task{}, err
		}
		for _, t := range p.Data {
			if t.ID == id {
				return t, nil
			}
			if strings.HasPrefix(t.ID, id) {
				matches = append(matches, t)
			}
		}
		if n >= p.TotalPages || len(p.Data) < r.limit {
			break
		}
	}

	switch len(matches) {
	case 0:
		return r.svc.GetTask(ctx, id)
	case 1:
		return matches[0], nil
	default:
		return service.Task{}, usageError("ambiguous task id: %s (%d matches)", id, len(matches))
	}
}

// describe formats a task for confirmation messages.
func describe(t service.Task) string {
	return fmt.Sprintf("%s %q", output.ShortID(t.ID), t.Title)
}
