// Package taskapi is the client of the task REST backend.
//
// The backend exposes GET/POST /api/tasks and PUT/DELETE /api/tasks/{id}. Only
// success or failure is distinguished; error bodies have no schema and are
// kept as text on StatusError.
package taskapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"taskboard/internal/model"
)

// ErrNotFound is matched by StatusError values carrying a 404.
var ErrNotFound = errors.New("task not found")

// StatusError is a non-2xx reply from the backend.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Code)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.Code == http.StatusNotFound
}

// TokenSource supplies the bearer token of the signed-in user.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client talks to the task backend. The zero token source sends unauthenticated requests.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
}

// New creates a client for baseURL. A nil httpClient uses http.DefaultClient.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// WithTokenSource returns a copy of c that authenticates as ts.
func (c *Client) WithTokenSource(ts TokenSource) *Client {
	cp := *c
	cp.tokens = ts
	return &cp
}

// List returns every task the backend knows about, for all users.
func (c *Client) List(ctx context.Context) ([]model.Task, error) {
	var tasks []model.Task
	if err := c.do(ctx, http.MethodGet, "/api/tasks", nil, &tasks); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// Create posts a new task. When the backend echoes the stored task it is
// returned; otherwise the submitted task comes back unchanged.
func (c *Client) Create(ctx context.Context, task model.Task) (model.Task, error) {
	var created model.Task
	if err := c.do(ctx, http.MethodPost, "/api/tasks", task, &created); err != nil {
		return model.Task{}, fmt.Errorf("create task: %w", err)
	}
	if created.ID == "" {
		return task, nil
	}
	return created, nil
}

// Update replaces the task stored under task.ID.
func (c *Client) Update(ctx context.Context, task model.Task) error {
	if task.ID == "" {
		return fmt.Errorf("update task: empty id")
	}
	if err := c.do(ctx, http.MethodPut, taskPath(task.ID), task, nil); err != nil {
		return fmt.Errorf("update task %s: %w", task.ID, err)
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, id model.TaskID) error {
	if id == "" {
		return fmt.Errorf("delete task: empty id")
	}
	if err := c.do(ctx, http.MethodDelete, taskPath(id), nil, nil); err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return nil
}

func taskPath(id model.TaskID) string {
	return "/api/tasks/" + url.PathEscape(string(id))
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("session token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{
			Method: method,
			Path:   path,
			Code:   resp.StatusCode,
			Body:   strings.TrimSpace(string(respBody)),
		}
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
