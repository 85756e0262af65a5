// Package googletasks implements service.RemoteStore on one Google Tasks list.
// The owner scope is the OAuth account itself, so owner arguments are only
// stamped onto returned tasks.
package googletasks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	tasks "google.golang.org/api/tasks/v1"

	"todosync/internal/config"
	"todosync/internal/service"
)

const (
	// DefaultListID is the special ID for the default list.
	DefaultListID = "@default"

	// PageSize is the number of tasks per page.
	PageSize = 100

	// APITimeout is the timeout for API calls.
	APITimeout = 5 * time.Second

	// OAuth scope for Google Tasks
	tasksScope = "https://www.googleapis.com/auth/tasks"

	statusCompleted   = "completed"
	statusNeedsAction = "needsAction"
)

// Client implements service.RemoteStore using Google Tasks API.
type Client struct {
	svc    *tasks.Service
	listID string
}

// New creates a new Google Tasks client.
// Requires oauth_client.json and token.json to exist.
func New(ctx context.Context, cfg *config.Config) (*Client, error) {
	oauthConfig, err := OAuthConfig(cfg)
	if err != nil {
		return nil, err
	}

	token, err := cfg.LoadToken()
	if err != nil {
		return nil, err
	}

	// Create token source that auto-refreshes
	httpClient := oauth2.NewClient(ctx, oauthConfig.TokenSource(ctx, token))

	return NewWithHTTPClient(ctx, httpClient, cfg.GoogleTasks.ListID)
}

// NewWithHTTPClient creates a client with a custom HTTP client. Extra options
// (e.g. option.WithEndpoint) are passed to the Tasks service.
func NewWithHTTPClient(ctx context.Context, httpClient *http.Client, listID string, opts ...option.ClientOption) (*Client, error) {
	if listID == "" {
		listID = DefaultListID
	}
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	svc, err := tasks.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create tasks service: %w", err)
	}
	return &Client{svc: svc, listID: listID}, nil
}

// OAuthConfig reads oauth_client.json from the config directory.
func OAuthConfig(cfg *config.Config) (*oauth2.Config, error) {
	clientJSON, err := os.ReadFile(cfg.OAuthClientPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", config.OAuthClientFile, err)
	}
	oauthConfig, err := google.ConfigFromJSON(clientJSON, tasksScope)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", config.OAuthClientFile, err)
	}
	return oauthConfig, nil
}

// ListTasks returns every visible task of the list, newest first.
func (c *Client) ListTasks(ctx context.Context, owner string) ([]service.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	result := []service.Task{}
	err := c.svc.Tasks.List(c.listID).
		MaxResults(PageSize).
		ShowCompleted(true).
		ShowDeleted(false).
		ShowHidden(false).
		Pages(ctx, func(resp *tasks.Tasks) error {
			for _, t := range resp.Items {
				result = append(result, toTask(t, owner))
			}
			return nil
		})
	if err != nil {
		return nil, wrapError(err)
	}

	service.SortNewestFirst(result)
	return result, nil
}

// InsertTask creates the task and returns the server copy with its id.
func (c *Client) InsertTask(ctx context.Context, owner string, task service.Task) (service.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	created, err := c.svc.Tasks.Insert(c.listID, &tasks.Task{
		Title:  task.Text,
		Status: status(task.Completed),
	}).Context(ctx).Do()
	if err != nil {
		return service.Task{}, wrapError(err)
	}

	saved := toTask(created, owner)
	if saved.CreatedAt.IsZero() {
		saved.CreatedAt = task.CreatedAt
	}
	return saved, nil
}

// UpdateTask patches title and/or status. An unknown id affects nothing.
func (c *Client) UpdateTask(ctx context.Context, owner, id string, patch service.Patch) error {
	if patch.Empty() {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	body := &tasks.Task{}
	if patch.Text != nil {
		body.Title = *patch.Text
	}
	if patch.Completed != nil {
		body.Status = status(*patch.Completed)
		if !*patch.Completed {
			// reopening requires clearing the completion date
			body.NullFields = []string{"Completed"}
		}
	}

	_, err := c.svc.Tasks.Patch(c.listID, id, body).Context(ctx).Do()
	if isNotFound(err) {
		return nil
	}
	if err != nil {
		return wrapError(err)
	}
	return nil
}

// DeleteTask deletes a task. An unknown id affects nothing.
func (c *Client) DeleteTask(ctx context.Context, owner, id string) error {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	err := c.svc.Tasks.Delete(c.listID, id).Context(ctx).Do()
	if isNotFound(err) {
		return nil
	}
	if err != nil {
		return wrapError(err)
	}
	return nil
}

// DeleteCompleted clears all completed tasks from the list. Cleared tasks
// become hidden and are no longer listed.
func (c *Client) DeleteCompleted(ctx context.Context, owner string) error {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	if err := c.svc.Tasks.Clear(c.listID).Context(ctx).Do(); err != nil {
		return wrapError(err)
	}
	return nil
}

func toTask(t *tasks.Task, owner string) service.Task {
	task := service.Task{
		ID:        t.Id,
		Text:      t.Title,
		Completed: t.Status == statusCompleted,
		UserID:    owner,
	}
	// Google Tasks has no creation time; the last update is the closest.
	if ts, err := time.Parse(time.RFC3339, t.Updated); err == nil {
		task.CreatedAt = ts
	}
	return task
}

func status(completed bool) string {
	if completed {
		return statusCompleted
	}
	return statusNeedsAction
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}

// wrapError wraps API errors with user-friendly messages.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "context deadline exceeded") {
		return fmt.Errorf("request timed out: %w", err)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("token expired or revoked (run: %s login): %w", config.AppName, err)
		case http.StatusNotFound:
			return fmt.Errorf("task list %w", service.ErrNotFound)
		}
	}

	return err
}

var _ service.RemoteStore = (*Client)(nil)
