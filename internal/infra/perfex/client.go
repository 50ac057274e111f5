// Package perfex implements domain.RemoteClient against a Perfex CRM
// instance using its cookie-session authentication.
package perfex

import (
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

	"github.com/nkondo/timebridge/internal/domain"
)

// Ensure Client implements domain.RemoteClient.
var _ domain.RemoteClient = (*Client)(nil)

// sessionCookieName is the cookie Perfex issues on login.
const sessionCookieName = "sp_session"

// Client talks to one Perfex instance. Safe for concurrent use; the
// session token is carried per call, not stored on the client.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a client for the Perfex instance at baseURL.
// Per-call deadlines come from the caller's context.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Login posts the credential form and returns the session cookie value
// with its expiry.
func (c *Client) Login(ctx context.Context, creds domain.Credentials) (*domain.LoginResult, error) {
	form := url.Values{}
	form.Set("email", creds.Email)
	form.Set("password", creds.Password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/authentication", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportErr(err)
	}
	defer drain(resp.Body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, domain.ErrAuthenticationFailed
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("%w: login returned %d", domain.ErrRemoteUnavailable, resp.StatusCode)
	}

	for _, cookie := range resp.Cookies() {
		if cookie.Name == sessionCookieName && cookie.Value != "" {
			return &domain.LoginResult{Token: cookie.Value, ExpiresAt: cookie.Expires}, nil
		}
	}
	return nil, fmt.Errorf("%w: no session cookie in login response", domain.ErrAuthenticationFailed)
}

// ListTasks fetches the tasks visible to the session.
func (c *Client) ListTasks(ctx context.Context, token string) ([]domain.RemoteTask, error) {
	body, err := c.get(ctx, token, "/api/tasks")
	if err != nil {
		return nil, err
	}

	var payload []taskPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode task list: %w", err)
	}

	tasks := make([]domain.RemoteTask, 0, len(payload))
	for _, p := range payload {
		tasks = append(tasks, p.toDomain())
	}
	return tasks, nil
}

// StartTimer starts a remote timer on the task and returns its ID.
func (c *Client) StartTimer(ctx context.Context, token, remoteTaskID string) (string, error) {
	body, err := c.post(ctx, token, "/api/tasks/"+url.PathEscape(remoteTaskID)+"/timer/start", nil)
	if err != nil {
		return "", err
	}

	var result struct {
		TimerID string `json:"timer_id"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("decode timer response: %w", err)
	}
	if result.TimerID == "" {
		return "", fmt.Errorf("%w: no timer id in response", domain.ErrRemoteUnavailable)
	}
	return result.TimerID, nil
}

// StopTimer stops a remote timer, attaching notes.
func (c *Client) StopTimer(ctx context.Context, token, remoteTimerID, notes string) error {
	form := url.Values{}
	form.Set("note", notes)
	_, err := c.post(ctx, token, "/api/timers/"+url.PathEscape(remoteTimerID)+"/stop", form)
	return err
}

func (c *Client) get(ctx context.Context, token, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	return c.do(req, token)
}

func (c *Client) post(ctx context.Context, token, path string, form url.Values) ([]byte, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	return c.do(req, token)
}

func (c *Client) do(req *http.Request, token string) ([]byte, error) {
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: token})
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportErr(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		// The session was rejected; the coordinator re-logs-in silently.
		return nil, domain.ErrSessionExpired
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("%w: %s returned %d", domain.ErrRemoteUnavailable, req.URL.Path, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, transportErr(err)
	}
	return body, nil
}

func transportErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", domain.ErrRemoteUnavailable, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrRemoteUnavailable, err)
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 1<<20))
	_ = body.Close()
}

// taskPayload is the wire shape of one Perfex task. Unrecognized fields
// are dropped during decode.
type taskPayload struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	Status         string            `json:"status"`
	Priority       string            `json:"priority"`
	StartDate      string            `json:"startdate"`
	DueDate        string            `json:"duedate"`
	EstimatedHours json.Number       `json:"estimated_hours"`
	Assignees      []assigneePayload `json:"assignees"`
	Tags           []tagPayload      `json:"tags"`
	Project        *projectPayload   `json:"project"`
}

type assigneePayload struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type tagPayload struct {
	Name string `json:"name"`
}

type projectPayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Perfex encodes status and priority as numeric codes.
var statusByCode = map[string]domain.Status{
	"1": domain.StatusNotStarted,
	"2": domain.StatusAwaitingFeedback,
	"3": domain.StatusTesting,
	"4": domain.StatusInProgress,
	"5": domain.StatusComplete,
}

var priorityByCode = map[string]domain.Priority{
	"1": domain.PriorityLow,
	"2": domain.PriorityMedium,
	"3": domain.PriorityHigh,
	"4": domain.PriorityUrgent,
}

const dateFormat = "2006-01-02"

func (p taskPayload) toDomain() domain.RemoteTask {
	task := domain.RemoteTask{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Status:      decodeStatus(p.Status),
		Priority:    decodePriority(p.Priority),
	}

	if t, err := time.Parse(dateFormat, p.StartDate); err == nil {
		task.StartDate = &t
	}
	if t, err := time.Parse(dateFormat, p.DueDate); err == nil {
		task.DueDate = &t
	}
	if h, err := strconv.ParseFloat(p.EstimatedHours.String(), 64); err == nil && h > 0 {
		task.EstimatedHours = &h
	}
	for _, a := range p.Assignees {
		task.Assignees = append(task.Assignees, domain.RemoteAssignee{ID: a.ID, Name: a.Name, Email: a.Email})
	}
	for _, t := range p.Tags {
		task.Tags = append(task.Tags, t.Name)
	}
	if p.Project != nil {
		task.Project = &domain.RemoteProject{ID: p.Project.ID, Name: p.Project.Name}
	}
	return task
}

func decodeStatus(code string) string {
	if s, ok := statusByCode[code]; ok {
		return string(s)
	}
	// Some installs already return the display name.
	return code
}

func decodePriority(code string) string {
	if p, ok := priorityByCode[code]; ok {
		return string(p)
	}
	return code
}
