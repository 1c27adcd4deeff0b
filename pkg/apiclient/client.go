// Package apiclient is a thin HTTP client over zoneweaverd's admin API,
// used by cmd/zoneweaverd's CLI subcommands.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cuemby/zoneweaver-core/pkg/types"
)

// Client wraps zoneweaverd's admin API for CLI usage.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client talking to the admin API at addr (e.g.
// "http://127.0.0.1:8080").
func NewClient(addr string) *Client {
	return &Client{
		baseURL: addr,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// ListTasksOptions narrows a ListTasks call. Zero-value fields are omitted
// from the query string.
type ListTasksOptions struct {
	Status    string
	ZoneName  string
	Operation string
	Limit     int
}

// ListTasks returns tasks matching opts.
func (c *Client) ListTasks(ctx context.Context, opts ListTasksOptions) ([]*types.Task, error) {
	q := url.Values{}
	if opts.Status != "" {
		q.Set("status", opts.Status)
	}
	if opts.ZoneName != "" {
		q.Set("zone_name", opts.ZoneName)
	}
	if opts.Operation != "" {
		q.Set("operation", opts.Operation)
	}
	if opts.Limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}

	var resp struct {
		Tasks []*types.Task `json:"tasks"`
	}
	if err := c.get(ctx, "/tasks/?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	return resp.Tasks, nil
}

// GetTask returns one task by ID.
func (c *Client) GetTask(ctx context.Context, id string) (*types.Task, error) {
	var task types.Task
	if err := c.get(ctx, "/tasks/"+url.PathEscape(id), &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// CancelTask cancels a pending task.
func (c *Client) CancelTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/tasks/"+url.PathEscape(id), nil, nil)
}

// CreateTask submits a new task.
func (c *Client) CreateTask(ctx context.Context, operation, zoneName string, priority int, metadata json.RawMessage) (*types.Task, error) {
	body := map[string]any{
		"operation": operation,
		"zone_name": zoneName,
		"priority":  priority,
		"metadata":  metadata,
	}
	var task types.Task
	if err := c.do(ctx, http.MethodPost, "/tasks/", body, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s (status %d)", method, path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
