package toast

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/trustflow-labs/trustflow/internal/tui/theme"
)

const defaultDuration = 4 * time.Second

// Level selects the toast accent.
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
)

// ShowMsg displays a transient notification.
type ShowMsg struct {
	Message  string
	Level    Level
	Duration time.Duration
}

// dismissMsg removes a specific toast.
type dismissMsg struct {
	id string
}

// Toast is one live notification.
type Toast struct {
	id      string
	message string
	level   Level
}

// Manager owns the stack of live toasts.
type Manager struct {
	theme  theme.Theme
	toasts []Toast
}

// NewManager creates an empty toast stack.
func NewManager(th theme.Theme) *Manager {
	return &Manager{theme: th}
}

func (m *Manager) Init() tea.Cmd {
	return nil
}

func (m *Manager) Update(msg tea.Msg) (*Manager, tea.Cmd) {
	switch msg := msg.(type) {
	case ShowMsg:
		duration := msg.Duration
		if duration <= 0 {
			duration = defaultDuration
		}
		toast := Toast{
			id:      fmt.Sprintf("toast-%d", time.Now().UnixNano()),
			message: msg.Message,
			level:   msg.Level,
		}
		m.toasts = append(m.toasts, toast)
		return m, tea.Tick(duration, func(time.Time) tea.Msg {
			return dismissMsg{id: toast.id}
		})

	case dismissMsg:
		kept := m.toasts[:0]
		for _, t := range m.toasts {
			if t.id != msg.id {
				kept = append(kept, t)
			}
		}
		m.toasts = kept
	}
	return m, nil
}

// View renders the toast stack, newest last.
func (m *Manager) View() string {
	if len(m.toasts) == 0 {
		return ""
	}
	var rendered []string
	for _, t := range m.toasts {
		style := m.theme.MutedText
		switch t.level {
		case LevelSuccess:
			style = m.theme.SuccessText
		case LevelWarning:
			style = lipgloss.NewStyle().Foreground(m.theme.Warning)
		case LevelError:
			style = m.theme.ErrorText
		}
		rendered = append(rendered, style.Render(t.message))
	}
	return strings.Join(rendered, "\n")
}
