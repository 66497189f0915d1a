// Package restapi implements the service.Service interface against the
// task REST API.
package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"taskr/internal/envelope"
	"taskr/internal/logging"
	"taskr/internal/service"
)

// APITimeout is the default timeout for API calls.
const APITimeout = 10 * time.Second

const tasksPath = "/tasks"

// Client implements service.Service over HTTP. Authentication is the
// transport's job; see package interceptor.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
}

// New creates a client for the API at baseURL. A zero timeout means
// APITimeout.
func New(baseURL string, httpClient *http.Client, timeout time.Duration) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = APITimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		timeout: timeout,
	}
}

// ListTasks returns one page of tasks.
func (c *Client) ListTasks(ctx context.Context, opts service.ListOptions) (service.TaskPage, error) {
	if opts.Page < 0 {
		return service.TaskPage{}, service.Invalidf("invalid page: %d", opts.Page)
	}
	if opts.Limit < 0 {
		return service.TaskPage{}, service.Invalidf("invalid limit: %d", opts.Limit)
	}
	if opts.Page == 0 {
		opts.Page = service.DefaultPage
	}
	if opts.Limit == 0 {
		opts.Limit = service.DefaultLimit
	}

	q := url.Values{}
	q.Set("page", strconv.Itoa(opts.Page))
	q.Set("limit", strconv.Itoa(opts.Limit))
	if opts.Status != "" {
		q.Set("status", string(opts.Status))
	}
	if opts.Priority != "" {
		q.Set("priority", string(opts.Priority))
	}
	if opts.Sort != "" {
		q.Set("sort", opts.Sort)
	}

	raw, err := c.do(ctx, http.MethodGet, tasksPath, q, nil)
	if err != nil {
		return service.TaskPage{}, err
	}
	return decodePage(raw, opts)
}

// GetTask returns a single task.
func (c *Client) GetTask(ctx context.Context, id string) (service.Task, error) {
	p, err := taskPath(id)
	if err != nil {
		return service.Task{}, err
	}
	raw, err := c.do(ctx, http.MethodGet, p, nil, nil)
	if err != nil {
		return service.Task{}, err
	}
	return decodeTask(raw)
}

// CreateTask creates a task.
func (c *Client) CreateTask(ctx context.Context, in service.TaskInput) (service.Task, error) {
	if err := in.Validate(); err != nil {
		return service.Task{}, err
	}
	raw, err := c.do(ctx, http.MethodPost, tasksPath, nil, in)
	if err != nil {
		return service.Task{}, err
	}
	return decodeTask(raw)
}

// UpdateTask replaces the writable fields of a task.
func (c *Client) UpdateTask(ctx context.Context, id string, in service.TaskInput) (service.Task, error) {
	p, err := taskPath(id)
	if err != nil {
		return service.Task{}, err
	}
	if err := in.Validate(); err != nil {
		return service.Task{}, err
	}
	raw, err := c.do(ctx, http.MethodPut, p, nil, in)
	if err != nil {
		return service.Task{}, err
	}
	return decodeTask(raw)
}

// CompleteTask marks a task completed.
func (c *Client) CompleteTask(ctx context.Context, id string) (service.Task, error) {
	p, err := taskPath(id)
	if err != nil {
		return service.Task{}, err
	}
	body := struct {
		Status service.Status `json:"status"`
	}{service.StatusCompleted}

	raw, err := c.do(ctx, http.MethodPatch, p+"/complete", nil, body)
	if err != nil {
		return service.Task{}, err
	}
	return decodeTask(raw)
}

// DeleteTask deletes a task.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	p, err := taskPath(id)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodDelete, p, nil, nil)
	return err
}

// SearchTasks returns tasks whose title or description match query.
func (c *Client) SearchTasks(ctx context.Context, query string, status service.Status) ([]service.Task, error) {
	q := url.Values{}
	q.Set("q", query)
	if status != "" {
		q.Set("status", string(status))
	}

	raw, err := c.do(ctx, http.MethodGet, tasksPath+"/search", q, nil)
	if err != nil {
		return nil, err
	}
	return decodeTasks(raw)
}

func taskPath(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", service.ErrTaskIDRequired
	}
	return tasksPath + "/" + url.PathEscape(id), nil
}

// do sends one request and returns the raw body of a 2xx response. Any other
// status becomes an *envelope.APIError.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		rdr = bytes.NewReader(data)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log := logging.FromContext(ctx)
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		log.Debug("api request failed", "method", method, "path", path, "error", err)
		return nil, wrapError(err)
	}
	defer resp.Body.Close()
	log.Debug("api request", "method", method, "path", path, "status", resp.StatusCode, "took", time.Since(start).Round(time.Millisecond))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, envelope.FromResponse(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapError(err)
	}
	return bytes.TrimSpace(data), nil
}

// decodePage accepts the enveloped page, a bare page, or an envelope with no
// data (an empty page echoing the request).
func decodePage(raw json.RawMessage, opts service.ListOptions) (service.TaskPage, error) {
	empty := service.TaskPage{Data: []service.Task{}, Page: opts.Page, Limit: opts.Limit}
	if len(raw) == 0 {
		return empty, nil
	}

	var body struct {
		Data       json.RawMessage `json:"data"`
		Total      int             `json:"total"`
		Page       int             `json:"page"`
		Limit      int             `json:"limit"`
		TotalPages int             `json:"totalPages"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return service.TaskPage{}, fmt.Errorf("invalid response: %w", err)
	}

	var page service.TaskPage
	switch firstByte(body.Data) {
	case '{':
		if err := json.Unmarshal(body.Data, &page); err != nil {
			return service.TaskPage{}, fmt.Errorf("invalid response: %w", err)
		}
	case '[':
		page = service.TaskPage{Total: body.Total, Page: body.Page, Limit: body.Limit, TotalPages: body.TotalPages}
		if err := json.Unmarshal(body.Data, &page.Data); err != nil {
			return service.TaskPage{}, fmt.Errorf("invalid response: %w", err)
		}
	default:
		return empty, nil
	}

	if page.Data == nil {
		page.Data = []service.Task{}
	}
	if page.Page == 0 {
		page.Page = opts.Page
	}
	if page.Limit == 0 {
		page.Limit = opts.Limit
	}
	return page, nil
}

// decodeTask accepts an enveloped or bare task.
func decodeTask(raw json.RawMessage) (service.Task, error) {
	var body struct {
		Data *service.Task `json:"data"`
		service.Task
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return service.Task{}, fmt.Errorf("invalid response: %w", err)
	}
	if body.Data != nil {
		return *body.Data, nil
	}
	if body.ID == "" && body.Title == "" {
		return service.Task{}, errors.New("invalid response: missing task")
	}
	return body.Task, nil
}

// decodeTasks accepts an enveloped or bare task array.
func decodeTasks(raw json.RawMessage) ([]service.Task, error) {
	out := []service.Task{}
	if firstByte(raw) == '[' {
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("invalid response: %w", err)
		}
		return out, nil
	}

	env, err := envelope.Decode[[]service.Task](bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	if env.Data != nil {
		out = *env.Data
	}
	return out, nil
}

func firstByte(b []byte) byte {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return 0
	}
	return b[0]
}

// wrapError turns transport failures into user-facing messages. Session
// errors pass through so callers can tell them apart.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timed out")
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("request failed: %w", urlErr.Err)
	}
	return err
}
