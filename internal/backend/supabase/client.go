// Package supabase implements service.RemoteStore over a Supabase (PostgREST)
// table, plus the GoTrue password login used to obtain an owner scope.
package supabase

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

	"golang.org/x/oauth2"

	"todosync/internal/config"
	"todosync/internal/service"
)

const (
	// APITimeout is the timeout for API calls.
	APITimeout = 5 * time.Second

	// DefaultTable is the PostgREST table holding the tasks.
	DefaultTable = "todos"

	restPath = "/rest/v1/"
)

// ErrForeignRow is returned when the server hands back a row that belongs to
// someone other than the requested owner.
var ErrForeignRow = errors.New("row belongs to another owner")

// APIError is a non-2xx PostgREST or GoTrue response.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("supabase: %s (%d %s)", e.Message, e.Status, e.Code)
	}
	return fmt.Sprintf("supabase: %s (%d)", e.Message, e.Status)
}

// Client talks to one table. Without a token source requests are made with
// the anon key as bearer.
type Client struct {
	baseURL string
	anonKey string
	table   string
	http    *http.Client
	tokens  oauth2.TokenSource
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTable sets the table name.
func WithTable(table string) Option {
	return func(c *Client) {
		if table != "" {
			c.table = table
		}
	}
}

// WithTokenSource authenticates requests as the session's user.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// New creates a client for the project at baseURL.
func New(baseURL, anonKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		table:   DefaultTable,
		http:    http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// row is the wire shape of a task.
type row struct {
	ID        flexID    `json:"id"`
	Text      string    `json:"text"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"created_at"`
	UserID    *string   `json:"user_id,omitempty"`
}

// flexID accepts both bigint and text/uuid primary keys.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", data, err)
	}
	*f = flexID(n.String())
	return nil
}

func (r row) task() service.Task {
	t := service.Task{
		ID:        string(r.ID),
		Text:      r.Text,
		Completed: r.Completed,
		CreatedAt: r.CreatedAt,
	}
	if r.UserID != nil {
		t.UserID = *r.UserID
	}
	return t
}

// checkOwner fails closed on rows outside the owner scope. Anonymous
// sessions only accept rows without an owner.
func checkOwner(r row, owner string) error {
	got := ""
	if r.UserID != nil {
		got = *r.UserID
	}
	if got != owner {
		return fmt.Errorf("%w: task %s", ErrForeignRow, r.ID)
	}
	return nil
}

// ListTasks returns the owner's tasks, newest first.
func (c *Client) ListTasks(ctx context.Context, owner string) ([]service.Task, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("order", "created_at.desc")
	scope(q, owner)

	var rows []row
	if err := c.do(ctx, http.MethodGet, c.tablePath(), q, nil, "", &rows); err != nil {
		return nil, err
	}

	out := make([]service.Task, 0, len(rows))
	for _, r := range rows {
		if err := checkOwner(r, owner); err != nil {
			return nil, err
		}
		out = append(out, r.task())
	}
	return out, nil
}

// InsertTask inserts text, completed and owner, and returns the stored row.
func (c *Client) InsertTask(ctx context.Context, owner string, task service.Task) (service.Task, error) {
	body := map[string]any{
		"text":      task.Text,
		"completed": task.Completed,
	}
	if owner != "" {
		body["user_id"] = owner
	}

	var rows []row
	if err := c.do(ctx, http.MethodPost, c.tablePath(), nil, []any{body}, "return=representation", &rows); err != nil {
		return service.Task{}, err
	}
	if len(rows) != 1 {
		return service.Task{}, fmt.Errorf("supabase: insert returned %d rows", len(rows))
	}
	if err := checkOwner(rows[0], owner); err != nil {
		return service.Task{}, err
	}

	saved := rows[0].task()
	if saved.CreatedAt.IsZero() {
		saved.CreatedAt = task.CreatedAt
	}
	return saved, nil
}

// UpdateTask patches the row matching id and owner. No match affects nothing.
func (c *Client) UpdateTask(ctx context.Context, owner, id string, patch service.Patch) error {
	if patch.Empty() {
		return nil
	}
	body := map[string]any{}
	if patch.Text != nil {
		body["text"] = *patch.Text
	}
	if patch.Completed != nil {
		body["completed"] = *patch.Completed
	}

	q := url.Values{}
	q.Set("id", "eq."+id)
	scope(q, owner)
	return c.do(ctx, http.MethodPatch, c.tablePath(), q, body, "return=minimal", nil)
}

// DeleteTask deletes the row matching id and owner.
func (c *Client) DeleteTask(ctx context.Context, owner, id string) error {
	q := url.Values{}
	q.Set("id", "eq."+id)
	scope(q, owner)
	return c.do(ctx, http.MethodDelete, c.tablePath(), q, nil, "return=minimal", nil)
}

// DeleteCompleted deletes every completed row of the owner.
func (c *Client) DeleteCompleted(ctx context.Context, owner string) error {
	q := url.Values{}
	q.Set("completed", "is.true")
	scope(q, owner)
	return c.do(ctx, http.MethodDelete, c.tablePath(), q, nil, "return=minimal", nil)
}

// scope adds the owner filter. Anonymous sessions only match rows without
// an owner.
func scope(q url.Values, owner string) {
	if owner == "" {
		q.Set("user_id", "is.null")
		return
	}
	q.Set("user_id", "eq."+owner)
}

func (c *Client) tablePath() string {
	return restPath + url.PathEscape(c.table)
}

func (c *Client) bearer() (string, error) {
	if c.tokens == nil {
		return c.anonKey, nil
	}
	tok, err := c.tokens.Token()
	if err != nil {
		return "", fmt.Errorf("session expired (run: %s login): %w", config.AppName, err)
	}
	return tok.AccessToken, nil
}

// do sends one request and decodes a JSON response into out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, q url.Values, body any, prefer string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	bearer, err := c.bearer()
	if err != nil {
		return err
	}

	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return wrapError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return wrapError(decodeError(resp))
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var payload struct {
		Code             any    `json:"code"`
		Message          string `json:"message"`
		Msg              string `json:"msg"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	_ = json.Unmarshal(data, &payload)

	apiErr := &APIError{Status: resp.StatusCode}
	switch code := payload.Code.(type) {
	case string:
		apiErr.Code = code
	case float64:
		apiErr.Code = strconv.Itoa(int(code))
	}
	for _, msg := range []string{payload.Message, payload.Msg, payload.ErrorDescription, payload.Error} {
		if msg != "" {
			apiErr.Message = msg
			break
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

// wrapError wraps API errors with user-friendly messages.
func wrapError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timed out: %w", err)
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden) {
		return fmt.Errorf("not authorized (run: %s login): %w", config.AppName, err)
	}
	return err
}

var _ service.RemoteStore = (*Client)(nil)
