package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"todosync/internal/output"
	"todosync/internal/reconciler"
	"todosync/internal/view"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	cursorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	doneStyle      = lipgloss.NewStyle().Strikethrough(true).Faint(true)
	ageStyle       = lipgloss.NewStyle().Faint(true)
	tabStyle       = lipgloss.NewStyle().Padding(0, 1)
	activeTabStyle = tabStyle.Reverse(true)
	helpStyle      = lipgloss.NewStyle().Faint(true)
	disabledStyle  = lipgloss.NewStyle().Faint(true).Strikethrough(true)
	promptStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)

	noticeStyles = map[reconciler.Level]lipgloss.Style{
		reconciler.LevelInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("14")),
		reconciler.LevelSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		reconciler.LevelWarning: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		reconciler.LevelError:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
	}
)

func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("todosync"))
	if m.loading {
		b.WriteString(helpStyle.Render("  loading..."))
	}
	b.WriteString("\n\n")
	b.WriteString(m.viewTabs())
	b.WriteString("\n\n")

	switch m.mode {
	case modeAdd:
		b.WriteString("New task\n" + m.input.View() + "\n\n")
	case modeEdit:
		b.WriteString("Edit task\n" + m.input.View() + "\n\n")
	}

	b.WriteString(m.viewTasks())
	b.WriteString("\n")

	stats := m.rec.Stats()
	b.WriteString(stats.Summary())
	b.WriteString("\n")

	switch m.mode {
	case modeConfirmDelete:
		b.WriteString(promptStyle.Render("Delete this task? (y/n)"))
	case modeConfirmClear:
		b.WriteString(promptStyle.Render(fmt.Sprintf("Delete %d completed task(s)? (y/n)", stats.Completed)))
	default:
		if m.notice != nil {
			b.WriteString(noticeStyles[m.notice.Level].Render(m.notice.Message))
		}
	}
	b.WriteString("\n")
	b.WriteString(m.viewHelp(stats))
	return b.String()
}

func (m *Model) viewTabs() string {
	stats := m.rec.Stats()
	current := m.rec.Filter()
	tabs := make([]string, 0, len(view.Filters))
	for i, f := range view.Filters {
		label := fmt.Sprintf("%d %s (%d)", i+1, output.FilterTitle(f), stats.Count(f))
		if f == current {
			tabs = append(tabs, activeTabStyle.Render(label))
		} else {
			tabs = append(tabs, tabStyle.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m *Model) viewTasks() string {
	tasks := m.rec.Visible()
	if len(tasks) == 0 {
		return helpStyle.Render("  nothing here") + "\n"
	}

	now := m.now()
	var b strings.Builder
	for i, task := range tasks {
		marker := "  "
		if i == m.cursor && m.mode != modeAdd {
			marker = cursorStyle.Render("> ")
		}
		box := "[ ]"
		text := output.DisplayText(task.Text)
		if task.Completed {
			box = "[x]"
			text = doneStyle.Render(text)
		}
		fmt.Fprintf(&b, "%s%s %s  %s\n", marker, box, text, ageStyle.Render(view.FormatAge(task.CreatedAt, now)))
	}
	return b.String()
}

func (m *Model) viewHelp(stats view.Stats) string {
	switch m.mode {
	case modeAdd, modeEdit:
		return helpStyle.Render("enter save • esc cancel")
	case modeConfirmDelete, modeConfirmClear:
		return helpStyle.Render("y confirm • any other key cancels")
	}

	clearHint := helpStyle.Render("c clear completed")
	if !stats.CanClearCompleted() {
		clearHint = disabledStyle.Render("c clear completed")
	}
	return helpStyle.Render("a add • e edit • space toggle • d delete • ") + clearHint +
		helpStyle.Render(" • 1/2/3 filter • r reload • q quit")
}
