package commands_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"todosync/internal/app"
	"todosync/internal/commands"
	"todosync/internal/config"
	"todosync/internal/exitcode"
	"todosync/internal/localstore"
	"todosync/internal/reconciler"
	"todosync/internal/service"
	"todosync/internal/testutil"
)

var (
	errDown = errors.New("connection refused")
	base    = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	today   = func() time.Time { return base.Add(3 * time.Hour) }
)

// newSession builds a started session over store (nil for no remote) and
// local.
func newSession(t *testing.T, store *testutil.FakeStore, local *localstore.Memory) *app.Session {
	t.Helper()
	obs := reconciler.NewBroadcast()
	opts := []reconciler.Option{reconciler.WithObserver(obs)}
	if store != nil {
		opts = append(opts, reconciler.WithRemote(store, true))
	}
	sess := &app.Session{
		Tasks:     reconciler.New(local, opts...),
		Observers: obs,
	}
	sess.Initial = sess.Tasks.Start(context.Background())
	t.Cleanup(func() { sess.Close(context.Background()) })
	return sess
}

// seeded returns a fake store holding, newest first: srv-b "Buy eggs"
// (completed) and srv-a "Buy milk".
func seeded() *testutil.FakeStore {
	store := testutil.NewFakeStore()
	store.Seed("",
		service.Task{ID: "srv-a", Text: "Buy milk", CreatedAt: base},
		service.Task{ID: "srv-b", Text: "Buy eggs", Completed: true, CreatedAt: base.Add(time.Hour)},
	)
	return store
}

// runCommand is a helper to run a command against sess.
func runCommand(t *testing.T, cmd commands.Command, sess *app.Session, args []string, quiet bool) (stdout, stderr string, code int) {
	t.Helper()

	var outBuf, errBuf bytes.Buffer

	cfg := &config.Config{
		Dir:     t.TempDir(),
		Quiet:   quiet,
		Backend: config.BackendLocal,
	}

	ctx := context.Background()
	code = cmd.Run(ctx, cfg, sess, args, &outBuf, &errBuf)
	return outBuf.String(), errBuf.String(), code
}

// Tests for version command
func TestVersionCommand(t *testing.T) {
	cmd := &commands.VersionCmd{}

	stdout, stderr, code := runCommand(t, cmd, nil, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if stdout != "todosync 0.1.0\n" {
		t.Errorf("expected version output, got %q", stdout)
	}
}

// Tests for help command
func TestHelpCommand(t *testing.T) {
	cmd := &commands.HelpCmd{}

	stdout, stderr, code := runCommand(t, cmd, nil, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	for _, want := range []string{"Usage:", "todosync add <text...>", "alias: toggle", "Common flags:"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("help output should contain %q", want)
		}
	}
}

// Tests for list command
func TestListCommand_WithTasks(t *testing.T) {
	sess := newSession(t, seeded(), localstore.NewMemory())

	cmd := &commands.ListCmd{}
	cmd.SetClock(today)
	stdout, stderr, code := runCommand(t, cmd, sess, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}

	expected := "   1  [x] Buy eggs  (Today 13:00)  srv-b\n" +
		"   2  [ ] Buy milk  (Today 12:00)  srv-a\n"
	if stdout != expected {
		t.Errorf("expected %q, got %q", expected, stdout)
	}
}

func TestListCommand_Filter(t *testing.T) {
	sess := newSession(t, seeded(), localstore.NewMemory())

	cmd := &commands.ListCmd{}
	cmd.SetClock(today)
	cmd.SetFilter("active")
	stdout, _, code := runCommand(t, cmd, sess, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	expected := "------------\nActive (1)\n------------\n" +
		"   1  [ ] Buy milk  (Today 12:00)  srv-a\n"
	if stdout != expected {
		t.Errorf("expected %q, got %q", expected, stdout)
	}
}

func TestListCommand_BadFilter(t *testing.T) {
	sess := newSession(t, seeded(), localstore.NewMemory())

	cmd := &commands.ListCmd{}
	cmd.SetFilter("someday")
	_, stderr, code := runCommand(t, cmd, sess, nil, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if !strings.HasPrefix(stderr, "error: ") {
		t.Errorf("expected error, got %q", stderr)
	}
}

func TestListCommand_Empty(t *testing.T) {
	sess := newSession(t, testutil.NewFakeStore(), localstore.NewMemory())

	stdout, stderr, code := runCommand(t, &commands.ListCmd{}, sess, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if stdout != "no tasks found\n" {
		t.Errorf("expected %q, got %q", "no tasks found\n", stdout)
	}
}

func TestListCommand_EmptyQuiet(t *testing.T) {
	sess := newSession(t, testutil.NewFakeStore(), localstore.NewMemory())

	stdout, _, code := runCommand(t, &commands.ListCmd{}, sess, nil, true)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	// Quiet mode should suppress "no tasks found"
	if stdout != "" {
		t.Errorf("expected empty stdout in quiet mode, got %q", stdout)
	}
}

func TestListCommand_FallsBackToLocalSnapshot(t *testing.T) {
	store := seeded()
	store.ListErr = errDown
	local := localstore.NewMemory(service.Task{ID: "local-1", Text: "Offline task", CreatedAt: base})
	sess := newSession(t, store, local)

	cmd := &commands.ListCmd{}
	cmd.SetClock(today)
	stdout, _, code := runCommand(t, cmd, sess, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if !strings.Contains(stdout, "Offline task") {
		t.Errorf("expected local snapshot, got %q", stdout)
	}
}

// Tests for add command
func TestAddCommand_Success(t *testing.T) {
	store := testutil.NewFakeStore()
	sess := newSession(t, store, localstore.NewMemory())

	stdout, stderr, code := runCommand(t, &commands.AddCmd{}, sess, []string{"Buy", "bread"}, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if stdout != "ok\n" {
		t.Errorf("expected %q, got %q", "ok\n", stdout)
	}

	rows := store.Rows("")
	if len(rows) != 1 || rows[0].Text != "Buy bread" {
		t.Fatalf("expected remote row, got %+v", rows)
	}
	tasks := sess.Tasks.Tasks()
	if len(tasks) != 1 || tasks[0].ID != rows[0].ID {
		t.Errorf("expected reconciled id %s, got %+v", rows[0].ID, tasks)
	}
}

func TestAddCommand_Quiet(t *testing.T) {
	sess := newSession(t, testutil.NewFakeStore(), localstore.NewMemory())

	stdout, _, code := runCommand(t, &commands.AddCmd{}, sess, []string{"Task"}, true)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout != "" {
		t.Errorf("expected empty stdout in quiet mode, got %q", stdout)
	}
}

func TestAddCommand_NoText(t *testing.T) {
	store := testutil.NewFakeStore()
	sess := newSession(t, store, localstore.NewMemory())

	_, stderr, code := runCommand(t, &commands.AddCmd{}, sess, []string{"  "}, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: text required\n" {
		t.Errorf("expected %q, got %q", "error: text required\n", stderr)
	}
	if len(store.Rows("")) != 0 {
		t.Error("expected no remote write")
	}
}

func TestAddCommand_TooLong(t *testing.T) {
	sess := newSession(t, testutil.NewFakeStore(), localstore.NewMemory())

	_, stderr, code := runCommand(t, &commands.AddCmd{}, sess, []string{strings.Repeat("x", 201)}, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if !strings.Contains(stderr, "too long") {
		t.Errorf("expected too long error, got %q", stderr)
	}
}

func TestAddCommand_RemoteFailureFallsBack(t *testing.T) {
	store := testutil.NewFakeStore()
	store.InsertErr = errDown
	local := localstore.NewMemory()
	sess := newSession(t, store, local)

	stdout, _, code := runCommand(t, &commands.AddCmd{}, sess, []string{"Offline"}, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout != "ok\n" {
		t.Errorf("expected %q, got %q", "ok\n", stdout)
	}
	snap := local.Snapshot()
	if len(snap) != 1 || snap[0].Text != "Offline" {
		t.Errorf("expected local snapshot to hold the task, got %+v", snap)
	}
}

func TestAddCommand_NoRemote(t *testing.T) {
	local := localstore.NewMemory()
	sess := newSession(t, nil, local)

	_, _, code := runCommand(t, &commands.AddCmd{}, sess, []string{"Local only"}, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if len(local.Snapshot()) != 1 {
		t.Errorf("expected local snapshot to hold the task, got %+v", local.Snapshot())
	}
}

// Tests for done command
func TestDoneCommand_Success(t *testing.T) {
	store := seeded()
	sess := newSession(t, store, localstore.NewMemory())

	stdout, stderr, code := runCommand(t, &commands.DoneCmd{}, sess, []string{"2"}, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if stdout != "ok\n" {
		t.Errorf("expected %q, got %q", "ok\n", stdout)
	}
	for _, row := range store.Rows("") {
		if row.ID == "srv-a" && !row.Completed {
			t.Error("expected srv-a to be completed remotely")
		}
	}
}

func TestDoneCommand_TogglesBack(t *testing.T) {
	store := seeded()
	sess := newSession(t, store, localstore.NewMemory())

	_, _, code := runCommand(t, &commands.DoneCmd{}, sess, []string{"srv-b"}, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	task, _ := sess.Tasks.Find("srv-b")
	if task.Completed {
		t.Error("expected srv-b to be active again")
	}
}

func TestDoneCommand_NoRef(t *testing.T) {
	sess := newSession(t, seeded(), localstore.NewMemory())

	_, stderr, code := runCommand(t, &commands.DoneCmd{}, sess, nil, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: task reference required\n" {
		t.Errorf("expected %q, got %q", "error: task reference required\n", stderr)
	}
}

func TestDoneCommand_OutOfRange(t *testing.T) {
	sess := newSession(t, seeded(), localstore.NewMemory())

	_, stderr, code := runCommand(t, &commands.DoneCmd{}, sess, []string{"99"}, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: task number out of range: 99\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestDoneCommand_AmbiguousPrefix(t *testing.T) {
	sess := newSession(t, seeded(), localstore.NewMemory())

	_, stderr, code := runCommand(t, &commands.DoneCmd{}, sess, []string{"srv"}, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if !strings.Contains(stderr, "ambiguous") {
		t.Errorf("expected ambiguous error, got %q", stderr)
	}
}

func TestDoneCommand_RemoteFailureIsNotACommandFailure(t *testing.T) {
	store := seeded()
	store.UpdateErr = errDown
	local := localstore.NewMemory()
	sess := newSession(t, store, local)

	_, _, code := runCommand(t, &commands.DoneCmd{}, sess, []string{"2"}, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if local.Saves() == 0 {
		t.Error("expected fallback save")
	}
}

// Tests for edit command
func TestEditCommand_Success(t *testing.T) {
	store := seeded()
	sess := newSession(t, store, localstore.NewMemory())

	stdout, _, code := runCommand(t, &commands.EditCmd{}, sess, []string{"srv-a", "Buy", "oat", "milk"}, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout != "ok\n" {
		t.Errorf("expected %q, got %q", "ok\n", stdout)
	}
	task, _ := sess.Tasks.Find("srv-a")
	if task.Text != "Buy oat milk" {
		t.Errorf("expected renamed task, got %q", task.Text)
	}
}

func TestEditCommand_EmptyText(t *testing.T) {
	sess := newSession(t, seeded(), localstore.NewMemory())

	_, stderr, code := runCommand(t, &commands.EditCmd{}, sess, []string{"1"}, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: text required\n" {
		t.Errorf("expected %q, got %q", "error: text required\n", stderr)
	}
}

// Tests for rm command
func TestRmCommand_Success(t *testing.T) {
	store := seeded()
	sess := newSession(t, store, localstore.NewMemory())

	stdout, _, code := runCommand(t, &commands.RmCmd{}, sess, []string{"1"}, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout != "ok\n" {
		t.Errorf("expected %q, got %q", "ok\n", stdout)
	}
	rows := store.Rows("")
	if len(rows) != 1 || rows[0].ID != "srv-a" {
		t.Errorf("expected only srv-a to remain, got %+v", rows)
	}
}

func TestRmCommand_TooManyArgs(t *testing.T) {
	sess := newSession(t, seeded(), localstore.NewMemory())

	_, stderr, code := runCommand(t, &commands.RmCmd{}, sess, []string{"1", "2"}, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: too many arguments\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

// Tests for clear command
func TestClearCommand_Success(t *testing.T) {
	store := seeded()
	sess := newSession(t, store, localstore.NewMemory())

	_, _, code := runCommand(t, &commands.ClearCmd{}, sess, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if got := sess.Tasks.Stats().Completed; got != 0 {
		t.Errorf("expected no completed tasks, got %d", got)
	}
	if len(store.Rows("")) != 1 {
		t.Errorf("expected one remote row, got %+v", store.Rows(""))
	}
}

func TestClearCommand_NothingToClear(t *testing.T) {
	store := testutil.NewFakeStore()
	store.Seed("", service.Task{ID: "srv-a", Text: "open", CreatedAt: base})
	sess := newSession(t, store, localstore.NewMemory())

	stdout, _, code := runCommand(t, &commands.ClearCmd{}, sess, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout != "no completed tasks\n" {
		t.Errorf("unexpected stdout %q", stdout)
	}
	for _, call := range store.Calls() {
		if call == "DeleteCompleted" {
			t.Error("expected no remote call")
		}
	}
}

// Tests for reload and stats commands
func TestReloadCommand(t *testing.T) {
	store := seeded()
	sess := newSession(t, store, localstore.NewMemory())
	store.Seed("", service.Task{ID: "srv-c", Text: "from elsewhere", CreatedAt: base.Add(2 * time.Hour)})

	stdout, _, code := runCommand(t, &commands.ReloadCmd{}, sess, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout != "loaded 3 from server\n" {
		t.Errorf("unexpected stdout %q", stdout)
	}
}

func TestReloadCommand_Unreachable(t *testing.T) {
	store := seeded()
	sess := newSession(t, store, localstore.NewMemory())
	store.ListErr = errDown

	stdout, _, code := runCommand(t, &commands.ReloadCmd{}, sess, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout != "loaded 0 from local snapshot\n" {
		t.Errorf("unexpected stdout %q", stdout)
	}
}

func TestStatsCommand(t *testing.T) {
	sess := newSession(t, seeded(), localstore.NewMemory())

	stdout, _, code := runCommand(t, &commands.StatsCmd{}, sess, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	expected := "2 total, 1 active, 1 completed\n1 completed (run: clear)\n"
	if stdout != expected {
		t.Errorf("expected %q, got %q", expected, stdout)
	}
}

func TestStatusCommand_Local(t *testing.T) {
	stdout, _, code := runCommand(t, &commands.StatusCmd{}, nil, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	for _, want := range []string{"backend:  local", "not configured", "owner:    anonymous"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected %q in %q", want, stdout)
		}
	}
}

func TestRegistry_FindsAliases(t *testing.T) {
	for alias, name := range map[string]string{
		"toggle": "done",
		"rename": "edit",
		"create": "add",
		"retry":  "reload",
	} {
		cmd, ok := commands.DefaultRegistry.Find(alias)
		if !ok {
			t.Errorf("alias %q not registered", alias)
			continue
		}
		if cmd.Name() != name {
			t.Errorf("alias %q resolves to %q, want %q", alias, cmd.Name(), name)
		}
	}
}
