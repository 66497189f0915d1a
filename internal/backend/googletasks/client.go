// Package googletasks mirrors tasks into a Google Tasks list.
package googletasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	tasks "google.golang.org/api/tasks/v1"

	"taskr/internal/config"
	"taskr/internal/envelope"
	"taskr/internal/service"
)

const (
	// PageSize is the number of items requested per page.
	PageSize = 100

	// APITimeout is the timeout for API calls.
	APITimeout = 5 * time.Second

	// OAuth scope for Google Tasks
	tasksScope = "https://www.googleapis.com/auth/tasks"

	// markerPrefix tags mirrored tasks with their backend id, on the last
	// line of the notes.
	markerPrefix = "taskr-id: "
)

// Google Tasks statuses.
const (
	statusNeedsAction = "needsAction"
	statusCompleted   = "completed"
)

// ErrNoToken is returned by New when google-login has not been run.
var ErrNoToken = errors.New("not connected to Google Tasks (run: taskr google-login)")

// Client pushes tasks into Google Tasks lists.
type Client struct {
	svc *tasks.Service

	mu sync.Mutex
	// index maps list id -> backend task id -> Google task id.
	index map[string]map[string]string
}

// New creates a client from oauth_client.json and the token stored by
// Authorize. The token is refreshed as needed.
func New(ctx context.Context, cfg *config.Config) (*Client, error) {
	oauthConfig, err := loadOAuthConfig(cfg)
	if err != nil {
		return nil, err
	}

	token, err := loadToken(cfg.GoogleTokenPath())
	if err != nil {
		return nil, err
	}

	httpClient := oauth2.NewClient(ctx, oauthConfig.TokenSource(ctx, token))
	return NewWithHTTPClient(ctx, httpClient)
}

// NewWithHTTPClient creates a client with a custom HTTP client. Extra
// options (such as option.WithEndpoint) are passed to the API service.
func NewWithHTTPClient(ctx context.Context, httpClient *http.Client, opts ...option.ClientOption) (*Client, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	svc, err := tasks.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create tasks service: %w", err)
	}
	return &Client{svc: svc, index: make(map[string]map[string]string)}, nil
}

// EnsureList returns the id of the list titled title (case-insensitive,
// trimmed), creating it when missing.
func (c *Client) EnsureList(ctx context.Context, title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", service.Invalidf("list title required")
	}

	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	var matches []string
	err := c.svc.Tasklists.List().MaxResults(PageSize).Pages(ctx, func(resp *tasks.TaskLists) error {
		for _, list := range resp.Items {
			if strings.EqualFold(strings.TrimSpace(list.Title), title) {
				matches = append(matches, list.Id)
			}
		}
		return nil
	})
	if err != nil {
		return "", wrapError(err)
	}

	switch len(matches) {
	case 0:
		list, err := c.svc.Tasklists.Insert(&tasks.TaskList{Title: title}).Context(ctx).Do()
		if err != nil {
			return "", wrapError(err)
		}
		return list.Id, nil
	case 1:
		return matches[0], nil
	default:
		return "", service.Invalidf("ambiguous list name: %s", title)
	}
}

// Push creates or updates the mirror of task in the list. Mirrors are
// matched by the id marker in their notes, so pushing twice updates.
func (c *Client) Push(ctx context.Context, listID string, task service.Task) error {
	if task.ID == "" {
		return service.ErrTaskIDRequired
	}

	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	index, err := c.listIndex(ctx, listID)
	if err != nil {
		return err
	}

	gt := toGoogle(task)
	if existing, ok := index[task.ID]; ok {
		if _, err := c.svc.Tasks.Patch(listID, existing, gt).Context(ctx).Do(); err != nil {
			return wrapError(err)
		}
		return nil
	}

	created, err := c.svc.Tasks.Insert(listID, gt).Context(ctx).Do()
	if err != nil {
		return wrapError(err)
	}

	c.mu.Lock()
	index[task.ID] = created.Id
	c.mu.Unlock()
	return nil
}

// listIndex loads the mirrored tasks of a list once per client.
func (c *Client) listIndex(ctx context.Context, listID string) (map[string]string, error) {
	c.mu.Lock()
	index, ok := c.index[listID]
	c.mu.Unlock()
	if ok {
		return index, nil
	}

	index = make(map[string]string)
	err := c.svc.Tasks.List(listID).
		MaxResults(PageSize).
		ShowCompleted(true).
		ShowHidden(true).
		ShowDeleted(false).
		Pages(ctx, func(resp *tasks.Tasks) error {
			for _, t := range resp.Items {
				if id := markerID(t.Notes); id != "" {
					index[id] = t.Id
				}
			}
			return nil
		})
	if err != nil {
		return nil, wrapError(err)
	}

	c.mu.Lock()
	c.index[listID] = index
	c.mu.Unlock()
	return index, nil
}

// toGoogle converts a backend task into its Google Tasks form.
func toGoogle(task service.Task) *tasks.Task {
	gt := &tasks.Task{
		Title:  task.Title,
		Notes:  notesFor(task),
		Status: statusNeedsAction,
	}
	if task.Status == service.StatusCompleted || task.Status == service.StatusArchived {
		gt.Status = statusCompleted
	}
	if task.DueDate != nil && !task.DueDate.IsZero() {
		// Google keeps only the date part of due.
		gt.Due = task.DueDate.UTC().Truncate(24 * time.Hour).Format(time.RFC3339)
	}
	return gt
}

func notesFor(task service.Task) string {
	marker := markerPrefix + task.ID
	if task.Description == "" {
		return marker
	}
	return task.Description + "\n\n" + marker
}

// markerID extracts the backend id from mirrored notes.
func markerID(notes string) string {
	lines := strings.Split(strings.TrimRight(notes, "\n"), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	if id, ok := strings.CutPrefix(last, markerPrefix); ok {
		return strings.TrimSpace(id)
	}
	return ""
}

func loadOAuthConfig(cfg *config.Config) (*oauth2.Config, error) {
	clientJSON, err := os.ReadFile(cfg.OAuthClientPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoOAuthClient
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", config.OAuthClientFile, err)
	}
	oauthConfig, err := google.ConfigFromJSON(clientJSON, tasksScope)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", config.OAuthClientFile, err)
	}
	return oauthConfig, nil
}

func loadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read google token: %w", err)
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("invalid google token: %w", err)
	}
	return &token, nil
}

// wrapError maps API errors to the errors the CLI reports.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timed out")
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return &envelope.APIError{
				StatusCode: gerr.Code,
				Message:    "google token expired or revoked (run: taskr google-login)",
			}
		case http.StatusNotFound:
			return &envelope.APIError{StatusCode: gerr.Code, Message: "google tasks list not found"}
		}
		return fmt.Errorf("google tasks: %w", err)
	}

	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		return &envelope.APIError{
			StatusCode: http.StatusUnauthorized,
			Message:    "google token expired or revoked (run: taskr google-login)",
		}
	}
	return err
}
