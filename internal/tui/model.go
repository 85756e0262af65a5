package tui

import (
	"context"
	"html"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"todosync/internal/reconciler"
	"todosync/internal/service"
	"todosync/internal/view"
)

// NoticeDuration is how long a notice stays on screen.
const NoticeDuration = 3 * time.Second

type mode int

const (
	modeList mode = iota
	modeAdd
	modeEdit
	modeConfirmDelete
	modeConfirmClear
)

// Model is the bubbletea model for the task list.
type Model struct {
	ctx      context.Context
	rec      *reconciler.Reconciler
	activity Activity
	events   *bridge
	now      func() time.Time

	mode      mode
	cursor    int
	input     textinput.Model
	editID    string
	confirmID string

	notice    *reconciler.Notice
	noticeSeq int
	loading   bool

	width  int
	height int
}

// New returns a model over rec. events may be nil when nothing feeds the
// model from outside (tests).
func New(ctx context.Context, rec *reconciler.Reconciler, activity Activity, events *bridge) *Model {
	input := textinput.New()
	input.Placeholder = "What needs to be done?"
	input.CharLimit = service.MaxTextLength + 50 // let the reconciler reject overlong text
	input.Prompt = "> "

	return &Model{
		ctx:      ctx,
		rec:      rec,
		activity: activity,
		events:   events,
		now:      time.Now,
		input:    input,
	}
}

func (m *Model) Init() tea.Cmd {
	if m.events == nil {
		return nil
	}
	return m.events.wait()
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.FocusMsg:
		m.activity.SetVisible(true)
		return m, nil

	case tea.BlurMsg:
		m.activity.SetVisible(false)
		return m, nil

	case changedMsg:
		m.clampCursor()
		return m, m.listen()

	case noticeMsg:
		return m, tea.Batch(m.showNotice(reconciler.Notice(msg)), m.listen())

	case noticeExpiredMsg:
		if msg.seq == m.noticeSeq {
			m.notice = nil
		}
		return m, nil

	case loadedMsg:
		m.loading = false
		m.clampCursor()
		return m, nil

	case tea.KeyMsg:
		m.activity.Touch()
		switch m.mode {
		case modeAdd, modeEdit:
			return m.updateInput(msg)
		case modeConfirmDelete, modeConfirmClear:
			return m.updateConfirm(msg)
		default:
			return m.updateList(msg)
		}
	}
	return m, nil
}

func (m *Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.rec.Visible())-1 {
			m.cursor++
		}

	case "a":
		m.mode = modeAdd
		m.input.SetValue("")
		return m, m.input.Focus()

	case "e", "enter":
		task, ok := m.selected()
		if !ok {
			return m, nil
		}
		m.mode = modeEdit
		m.editID = task.ID
		m.input.SetValue(html.UnescapeString(task.Text))
		m.input.CursorEnd()
		return m, m.input.Focus()

	case " ", "space", "x":
		if task, ok := m.selected(); ok {
			m.rec.Toggle(m.ctx, task.ID)
			m.clampCursor()
		}

	case "d":
		if task, ok := m.selected(); ok {
			m.mode = modeConfirmDelete
			m.confirmID = task.ID
		}

	case "c":
		if m.rec.Stats().CanClearCompleted() {
			m.mode = modeConfirmClear
		}

	case "1":
		m.setFilter(view.FilterAll)
	case "2":
		m.setFilter(view.FilterActive)
	case "3":
		m.setFilter(view.FilterCompleted)

	case "r":
		if m.loading {
			return m, nil
		}
		m.loading = true
		return m, m.reload()
	}
	return m, nil
}

func (m *Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit

	case "esc":
		m.closeInput()
		return m, nil

	case "enter":
		value := m.input.Value()
		if m.mode == modeAdd {
			// On a validation error the input stays open with the text.
			if _, err := m.rec.Add(m.ctx, value); err != nil {
				return m, nil
			}
			m.cursor = 0
		} else {
			// Empty text cancels the edit.
			if _, err := m.rec.Rename(m.ctx, m.editID, value); err != nil {
				return m, nil
			}
		}
		m.closeInput()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	if strings.EqualFold(msg.String(), "y") {
		if m.mode == modeConfirmDelete {
			m.rec.Remove(m.ctx, m.confirmID)
		} else {
			m.rec.ClearCompleted(m.ctx)
		}
	}
	m.mode = modeList
	m.confirmID = ""
	m.clampCursor()
	return m, nil
}

func (m *Model) closeInput() {
	m.mode = modeList
	m.editID = ""
	m.input.Blur()
	m.input.SetValue("")
	m.clampCursor()
}

func (m *Model) setFilter(f view.Filter) {
	m.rec.SetFilter(f)
	m.cursor = 0
}

func (m *Model) selected() (service.Task, bool) {
	visible := m.rec.Visible()
	if m.cursor < 0 || m.cursor >= len(visible) {
		return service.Task{}, false
	}
	return visible[m.cursor], true
}

func (m *Model) clampCursor() {
	n := len(m.rec.Visible())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// showNotice displays n and schedules its removal. Load confirmations are
// skipped; the poller would flash one every few seconds.
func (m *Model) showNotice(n reconciler.Notice) tea.Cmd {
	if n.Level == reconciler.LevelInfo && strings.HasPrefix(n.Message, "Loaded ") {
		return nil
	}
	m.notice = &n
	m.noticeSeq++
	seq := m.noticeSeq
	return tea.Tick(NoticeDuration, func(time.Time) tea.Msg {
		return noticeExpiredMsg{seq: seq}
	})
}

func (m *Model) reload() tea.Cmd {
	ctx, rec := m.ctx, m.rec
	return func() tea.Msg {
		return loadedMsg(rec.Load(ctx))
	}
}

func (m *Model) listen() tea.Cmd {
	if m.events == nil {
		return nil
	}
	return m.events.wait()
}
