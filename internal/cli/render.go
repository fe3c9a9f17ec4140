package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/habitsync/internal/models"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	dangerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
)

func Success(format string, args ...any) string {
	return successStyle.Render("✓ " + fmt.Sprintf(format, args...))
}

func Warning(format string, args ...any) string {
	return warningStyle.Render("⚠ " + fmt.Sprintf(format, args...))
}

func Danger(format string, args ...any) string {
	return dangerStyle.Render("✗ " + fmt.Sprintf(format, args...))
}

func Muted(format string, args ...any) string {
	return mutedStyle.Render(fmt.Sprintf(format, args...))
}

func Header(s string) string {
	return headerStyle.Render(s)
}

// FormatHabit renders one habit as a single line.
func FormatHabit(h models.Habit) string {
	var b strings.Builder
	if h.Icon != "" {
		b.WriteString(h.Icon + " ")
	}
	b.WriteString(h.Title)
	b.WriteString(Muted("  %s", h.Frequency))
	if h.Target > 0 {
		b.WriteString(Muted(", target %d", h.Target))
	}
	if h.ReminderTime != "" {
		b.WriteString(Muted(", reminder %s", h.ReminderTime))
	}
	b.WriteString(Muted("  [%s]", h.HabitID))
	return b.String()
}

func FormatStatus(s models.TaskStatus) string {
	switch s {
	case models.StatusDone:
		return successStyle.Render(string(s))
	case models.StatusSkipped:
		return warningStyle.Render(string(s))
	default:
		return string(s)
	}
}

// FormatMillis renders a logical timestamp in local time.
func FormatMillis(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Format("2006-01-02 15:04:05")
}
