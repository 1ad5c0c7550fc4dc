package tasklinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a minimal Taskline HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v0",
		Timeout:  10 * time.Second,
	}
}

// Response is the result of one line of input.
type Response struct {
	Text     string `json:"text"`
	IsError  bool   `json:"is_error"`
	IsActive bool   `json:"is_active"`
}

// Task is one entry of the task list; ID is its 1-based position.
type Task struct {
	ID          int    `json:"id"`
	Kind        string `json:"kind"`
	Done        bool   `json:"done"`
	Description string `json:"description"`
	Time        string `json:"time,omitempty"`
	Text        string `json:"text"`
}

// Event represents a journal entry.
type Event struct {
	ID        int64          `json:"id"`
	TS        string         `json:"ts"`
	Type      string         `json:"type"`
	SessionID string         `json:"session_id"`
	Kind      string         `json:"kind"`
	Input     string         `json:"input"`
	IsError   bool           `json:"is_error"`
	TaskCount int            `json:"task_count"`
	Payload   map[string]any `json:"payload"`
}

// EventQuery narrows Events. Zero values are ignored.
type EventQuery struct {
	Limit      int
	Type       string
	Kind       string
	SessionID  string
	ErrorsOnly bool
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Health reports whether the server is up.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "health", nil, nil)
}

// Input sends one line of input to the server's session.
func (c *Client) Input(ctx context.Context, text string) (Response, error) {
	var resp Response
	err := c.do(ctx, http.MethodPost, "input", map[string]any{"text": text}, &resp)
	return resp, err
}

// Tasks returns the current task list.
func (c *Client) Tasks(ctx context.Context) ([]Task, error) {
	var resp struct {
		Items []Task `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, "tasks", nil, &resp)
	return resp.Items, err
}

// Task returns the task at the 1-based position id.
func (c *Client) Task(ctx context.Context, id int) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodGet, "tasks/"+strconv.Itoa(id), nil, &resp)
	return resp, err
}

// Events returns recent journal events, newest first.
func (c *Client) Events(ctx context.Context, q EventQuery) ([]Event, error) {
	params := url.Values{}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Type != "" {
		params.Set("type", q.Type)
	}
	if q.Kind != "" {
		params.Set("kind", q.Kind)
	}
	if q.SessionID != "" {
		params.Set("session_id", q.SessionID)
	}
	if q.ErrorsOnly {
		params.Set("errors_only", "true")
	}
	endpoint := "events"
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	var resp struct {
		Items []Event `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if p := strings.Trim(c.BasePath, "/"); p != "" {
		base += "/" + p
	}
	return base
}
