/*-------------------------------------------------------------------------
 *
 * client.go
 *    HTTP client for the task board API
 *
 * Backs the hosted "board" tool server. The board owns tasks, projects
 * and comments; this client only reads tasks and writes comments and
 * status changes on behalf of the agent.
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/board/client.go
 *
 *-------------------------------------------------------------------------
 */

package board

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
	"time"
)

/* ErrNotFound is returned when the board has no such task */
var ErrNotFound = errors.New("board resource not found")

/* Task is a board task */
type Task struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	Assignee    string    `json:"assignee,omitempty"`
	Labels      []string  `json:"labels,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

/* Comment is a comment on a task */
type Comment struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

/* CreateTaskRequest is the request to create a task */
type CreateTaskRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Labels      []string `json:"labels,omitempty"`
}

/* Client is the subset of the board API the agent may use */
type Client interface {
	GetTask(ctx context.Context, taskID string) (*Task, error)
	ListTasks(ctx context.Context, projectID, status string) ([]Task, error)
	CreateTask(ctx context.Context, projectID string, req CreateTaskRequest) (*Task, error)
	UpdateTaskStatus(ctx context.Context, taskID, status string) (*Task, error)
	AddComment(ctx context.Context, taskID, body string) (*Comment, error)
}

/* HTTPClient talks to the board over its REST API */
type HTTPClient struct {
	baseURL    string
	apiKey     string
	author     string
	httpClient *http.Client
}

/* NewHTTPClient creates a board API client */
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		author:     "neuronboard-agent",
		httpClient: &http.Client{Timeout: timeout},
	}
}

/* GetTask gets a single task */
func (c *HTTPClient) GetTask(ctx context.Context, taskID string) (*Task, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/v1/tasks/"+url.PathEscape(taskID), nil)
	if err != nil {
		return nil, err
	}
	var task Task
	if err := c.doRequest(req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

/* ListTasks lists tasks of a project, optionally filtered by status */
func (c *HTTPClient) ListTasks(ctx context.Context, projectID, status string) ([]Task, error) {
	path := "/api/v1/projects/" + url.PathEscape(projectID) + "/tasks"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var tasks []Task
	if err := c.doRequest(req, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

/* CreateTask creates a task in a project */
func (c *HTTPClient) CreateTask(ctx context.Context, projectID string, body CreateTaskRequest) (*Task, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/api/v1/projects/"+url.PathEscape(projectID)+"/tasks", body)
	if err != nil {
		return nil, err
	}
	var task Task
	if err := c.doRequest(req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

/* UpdateTaskStatus moves a task to another column */
func (c *HTTPClient) UpdateTaskStatus(ctx context.Context, taskID, status string) (*Task, error) {
	req, err := c.newRequest(ctx, http.MethodPatch, "/api/v1/tasks/"+url.PathEscape(taskID),
		map[string]string{"status": status})
	if err != nil {
		return nil, err
	}
	var task Task
	if err := c.doRequest(req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

/* AddComment posts a comment authored by the agent */
func (c *HTTPClient) AddComment(ctx context.Context, taskID, body string) (*Comment, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/api/v1/tasks/"+url.PathEscape(taskID)+"/comments",
		map[string]string{"body": body, "author": c.author})
	if err != nil {
		return nil, err
	}
	var comment Comment
	if err := c.doRequest(req, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

func (c *HTTPClient) newRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("board request encode failed: path='%s', error=%w", path, err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("board request build failed: path='%s', error=%w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

func (c *HTTPClient) doRequest(req *http.Request, result interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("board request failed: method='%s', path='%s', error=%w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return fmt.Errorf("board response read failed: path='%s', error=%w", req.URL.Path, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("board request failed: path='%s', error=%w", req.URL.Path, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("board API error: path='%s', status=%d, body='%s'", req.URL.Path, resp.StatusCode,
			strings.TrimSpace(string(body)))
	}

	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("board response decode failed: path='%s', error=%w", req.URL.Path, err)
		}
	}
	return nil
}
