// Package tui is the interactive terminal view of the task list.
package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"todosync/internal/reconciler"
	"todosync/internal/service"
)

// Activity receives the interaction signals the refresh loop is gated on.
// *poller.Poller satisfies it.
type Activity interface {
	Touch()
	SetVisible(visible bool)
}

// Run shows the task list until the user quits or ctx ends. The poller is
// started and stopped by the caller.
func Run(ctx context.Context, rec *reconciler.Reconciler, observers *reconciler.Broadcast, activity Activity) error {
	b := newBridge()
	remove := observers.Add(b)
	defer remove()

	model := New(ctx, rec, activity, b)
	program := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
		tea.WithReportFocus(),
	)
	_, err := program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

type changedMsg struct{}

type noticeMsg reconciler.Notice

type noticeExpiredMsg struct{ seq int }

type loadedMsg reconciler.LoadResult

// bridge turns reconciler callbacks into tea messages. Callbacks can fire
// from inside Update, so sends never block; a full queue drops the message
// because the next render reads the reconciler directly.
type bridge struct {
	ch chan tea.Msg
}

func newBridge() *bridge {
	return &bridge{ch: make(chan tea.Msg, 64)}
}

func (b *bridge) TasksChanged([]service.Task) {
	select {
	case b.ch <- changedMsg{}:
	default:
	}
}

func (b *bridge) Notice(n reconciler.Notice) {
	select {
	case b.ch <- noticeMsg(n):
	default:
	}
}

func (b *bridge) wait() tea.Cmd {
	return func() tea.Msg {
		return <-b.ch
	}
}
