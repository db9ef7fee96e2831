package sprintdecksdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Sprintdeck HTTP API client. Authenticate with either a
// bearer token (JWT carrying the org claim) or an API key; the server
// resolves the org from the credential, so the client never sends it.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Ticket represents the API ticket model.
type Ticket struct {
	ID          string `json:"id"`
	OrgID       string `json:"org_id"`
	Title       string `json:"title"`
	Assignee    string `json:"assignee"`
	Status      string `json:"status"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// Task represents the API task model.
type Task struct {
	ID        string `json:"id"`
	OrgID     string `json:"org_id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

// TicketStats mirrors the statistics response.
type TicketStats struct {
	OrgID     string         `json:"org_id"`
	Total     int            `json:"total"`
	Status    map[string]int `json:"status"`
	Assignees map[string]int `json:"assignees"`
}

// TaskStats mirrors the task statistics response.
type TaskStats struct {
	OrgID     string `json:"org_id"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
	Remaining int    `json:"remaining"`
}

// TicketSearch holds optional search filters; they are ANDed server-side.
type TicketSearch struct {
	Status   string
	Assignee string
	Title    string
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// ListTickets returns the org's tickets, newest first.
func (c *Client) ListTickets(ctx context.Context) ([]Ticket, error) {
	var resp []Ticket
	err := c.do(ctx, http.MethodGet, "v1/tickets", nil, &resp)
	return resp, err
}

// GetTicket fetches one ticket by id.
func (c *Client) GetTicket(ctx context.Context, id string) (Ticket, error) {
	var resp Ticket
	err := c.do(ctx, http.MethodGet, "v1/tickets/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// CreateTicket creates a ticket and returns the full refreshed collection.
func (c *Client) CreateTicket(ctx context.Context, title, assignee, description string) ([]Ticket, error) {
	body := map[string]any{
		"title":    title,
		"assignee": assignee,
	}
	if description != "" {
		body["description"] = description
	}
	var resp []Ticket
	err := c.do(ctx, http.MethodPost, "v1/tickets", body, &resp)
	return resp, err
}

// UpdateTicketStatus moves a ticket and returns the full collection.
func (c *Client) UpdateTicketStatus(ctx context.Context, id, status string) ([]Ticket, error) {
	body := map[string]any{"status": status}
	var resp []Ticket
	err := c.do(ctx, http.MethodPost, "v1/tickets/"+url.PathEscape(id)+"/status", body, &resp)
	return resp, err
}

// DeleteTicket deletes a ticket and returns the remaining collection.
func (c *Client) DeleteTicket(ctx context.Context, id string) ([]Ticket, error) {
	var resp []Ticket
	err := c.do(ctx, http.MethodDelete, "v1/tickets/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// SearchTickets returns tickets matching the filters.
func (c *Client) SearchTickets(ctx context.Context, q TicketSearch) ([]Ticket, error) {
	params := url.Values{}
	if q.Status != "" {
		params.Set("status", q.Status)
	}
	if q.Assignee != "" {
		params.Set("assignee", q.Assignee)
	}
	if q.Title != "" {
		params.Set("title", q.Title)
	}
	endpoint := "v1/tickets/search"
	if enc := params.Encode(); enc != "" {
		endpoint += "?" + enc
	}
	var resp []Ticket
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// TicketStatistics returns ticket counts by status and assignee.
func (c *Client) TicketStatistics(ctx context.Context) (TicketStats, error) {
	var resp TicketStats
	err := c.do(ctx, http.MethodGet, "v1/tickets/statistics", nil, &resp)
	return resp, err
}

// ListTasks returns the org's tasks, incomplete first.
func (c *Client) ListTasks(ctx context.Context) ([]Task, error) {
	var resp []Task
	err := c.do(ctx, http.MethodGet, "v1/tasks", nil, &resp)
	return resp, err
}

// CreateTask creates a task and returns the full collection.
func (c *Client) CreateTask(ctx context.Context, text string) ([]Task, error) {
	body := map[string]any{"text": text}
	var resp []Task
	err := c.do(ctx, http.MethodPost, "v1/tasks", body, &resp)
	return resp, err
}

// CompleteTask marks a task completed and returns the full collection.
func (c *Client) CompleteTask(ctx context.Context, id string) ([]Task, error) {
	var resp []Task
	err := c.do(ctx, http.MethodPost, "v1/tasks/"+url.PathEscape(id)+"/complete", map[string]any{}, &resp)
	return resp, err
}

// DeleteTask deletes a task and returns the remaining collection.
func (c *Client) DeleteTask(ctx context.Context, id string) ([]Task, error) {
	var resp []Task
	err := c.do(ctx, http.MethodDelete, "v1/tasks/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// TaskStatistics returns task completion counts.
func (c *Client) TaskStatistics(ctx context.Context) (TaskStats, error) {
	var resp TaskStats
	err := c.do(ctx, http.MethodGet, "v1/tasks/statistics", nil, &resp)
	return resp, err
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
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
