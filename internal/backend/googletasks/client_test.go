package googletasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"google.golang.org/api/option"

	"todosync/internal/service"
)

type fakeAPI struct {
	mu       sync.Mutex
	requests []string
	bodies   []map[string]any
	status   int
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	if r.Body != nil {
		data, _ := io.ReadAll(r.Body)
		if len(data) > 0 {
			var body map[string]any
			_ = json.Unmarshal(data, &body)
			f.bodies = append(f.bodies, body)
		}
	}
	status := f.status
	f.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		fmt.Fprintf(w, `{"error":{"code":%d,"message":"fail"}}`, status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/tasks"):
		_, _ = io.WriteString(w, `{"items":[
			{"id":"old","title":"older","status":"needsAction","updated":"2026-01-01T10:00:00.000Z"},
			{"id":"new","title":"newer","status":"completed","updated":"2026-01-02T10:00:00.000Z"}
		]}`)
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/tasks"):
		_, _ = io.WriteString(w, `{"id":"g-1","title":"buy milk","status":"needsAction","updated":"2026-01-03T10:00:00.000Z"}`)
	case r.Method == http.MethodPatch:
		_, _ = io.WriteString(w, `{"id":"x","title":"x","status":"completed"}`)
	case r.Method == http.MethodDelete, strings.HasSuffix(r.URL.Path, "/clear"):
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeAPI) lastRequest() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return ""
	}
	return f.requests[len(f.requests)-1]
}

func newTestClient(t *testing.T, api *fakeAPI) *Client {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	c, err := NewWithHTTPClient(context.Background(), srv.Client(), "", option.WithEndpoint(srv.URL+"/"))
	if err != nil {
		t.Fatalf("NewWithHTTPClient: %v", err)
	}
	return c
}

func TestListTasks(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api)

	got, err := c.ListTasks(context.Background(), "me")
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d tasks, want 2", len(got))
	}
	if got[0].ID != "new" || !got[0].Completed {
		t.Errorf("first task = %+v, want newest completed task", got[0])
	}
	if got[1].Text != "older" || got[1].Completed {
		t.Errorf("second task = %+v", got[1])
	}
	if got[0].UserID != "me" {
		t.Errorf("owner not stamped: %q", got[0].UserID)
	}
	if req := api.lastRequest(); req != "GET /tasks/v1/lists/@default/tasks" {
		t.Errorf("request = %q", req)
	}
}

func TestInsertTask(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api)

	saved, err := c.InsertTask(context.Background(), "", service.Task{ID: "tmp", Text: "buy milk"})
	if err != nil {
		t.Fatalf("InsertTask: %v", err)
	}
	if saved.ID != "g-1" {
		t.Errorf("id = %q, want server id", saved.ID)
	}
	if api.bodies[0]["title"] != "buy milk" || api.bodies[0]["status"] != "needsAction" {
		t.Errorf("body = %v", api.bodies[0])
	}
}

func TestUpdateTask_Reopen(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api)

	if err := c.UpdateTask(context.Background(), "", "x", service.Patch{Completed: service.BoolPtr(false)}); err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	body := api.bodies[0]
	if body["status"] != "needsAction" {
		t.Errorf("status = %v", body["status"])
	}
	if v, ok := body["completed"]; !ok || v != nil {
		t.Errorf("completed should be sent as null, body = %v", body)
	}
}

func TestUpdateTask_EmptyPatchSkipsCall(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api)

	if err := c.UpdateTask(context.Background(), "", "x", service.Patch{}); err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if req := api.lastRequest(); req != "" {
		t.Errorf("unexpected request %q", req)
	}
}

func TestNotFoundIsNoop(t *testing.T) {
	api := &fakeAPI{status: http.StatusNotFound}
	c := newTestClient(t, api)
	ctx := context.Background()

	if err := c.DeleteTask(ctx, "", "gone"); err != nil {
		t.Errorf("DeleteTask on unknown id: %v", err)
	}
	if err := c.UpdateTask(ctx, "", "gone", service.Patch{Text: service.StringPtr("x")}); err != nil {
		t.Errorf("UpdateTask on unknown id: %v", err)
	}
	if _, err := c.ListTasks(ctx, ""); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("ListTasks on missing list = %v, want ErrNotFound", err)
	}
}

func TestDeleteCompleted(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api)

	if err := c.DeleteCompleted(context.Background(), ""); err != nil {
		t.Fatalf("DeleteCompleted: %v", err)
	}
	if req := api.lastRequest(); req != "POST /tasks/v1/lists/@default/clear" {
		t.Errorf("request = %q", req)
	}
}

func TestAuthErrorMessage(t *testing.T) {
	api := &fakeAPI{status: http.StatusUnauthorized}
	c := newTestClient(t, api)

	_, err := c.ListTasks(context.Background(), "")
	if err == nil || !strings.Contains(err.Error(), "todosync login") {
		t.Errorf("err = %v, want login hint", err)
	}
}
