package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/trustflow-labs/trustflow/internal/tui/theme"
)

// SubmitMsg carries the composed input when the user sends.
type SubmitMsg struct {
	Content     string
	Attachments []string
}

// EditorModel is the message input at the bottom of the chat page.
type EditorModel struct {
	theme       theme.Theme
	textarea    textarea.Model
	width       int
	focused     bool
	attachments []string
}

type editorKeyMap struct {
	Send    key.Binding
	NewLine key.Binding
}

var editorKeys = editorKeyMap{
	Send: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "send"),
	),
	NewLine: key.NewBinding(
		key.WithKeys("shift+enter"),
		key.WithHelp("shift+enter", "new line"),
	),
}

// NewEditorModel creates the input component.
func NewEditorModel(th theme.Theme) *EditorModel {
	ta := textarea.New()
	ta.Placeholder = "Message TrustFlow..."
	ta.CharLimit = 10000
	ta.SetWidth(80)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false
	ta.Focus()

	return &EditorModel{theme: th, textarea: ta, focused: true}
}

func (m *EditorModel) Init() tea.Cmd {
	return textarea.Blink
}

func (m *EditorModel) Update(msg tea.Msg) (*EditorModel, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && m.focused {
		switch {
		case key.Matches(keyMsg, editorKeys.Send):
			return m, m.submit()
		}
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

// submit empties the editor into a SubmitMsg. Empty input with no
// attachments produces nothing.
func (m *EditorModel) submit() tea.Cmd {
	content := strings.TrimSpace(m.textarea.Value())
	if content == "" && len(m.attachments) == 0 {
		return nil
	}

	attachments := make([]string, len(m.attachments))
	copy(attachments, m.attachments)
	m.textarea.Reset()
	m.attachments = nil

	return func() tea.Msg {
		return SubmitMsg{Content: content, Attachments: attachments}
	}
}

// AddAttachment records a file to send with the next message.
func (m *EditorModel) AddAttachment(name string) {
	m.attachments = append(m.attachments, name)
}

// Attachments lists the pending attachment names.
func (m *EditorModel) Attachments() []string {
	out := make([]string, len(m.attachments))
	copy(out, m.attachments)
	return out
}

// SetWidth resizes the editor.
func (m *EditorModel) SetWidth(width int) {
	m.width = width
	m.textarea.SetWidth(width - 2)
}

// Focus gives the editor key focus.
func (m *EditorModel) Focus() tea.Cmd {
	m.focused = true
	return m.textarea.Focus()
}

// Blur releases key focus.
func (m *EditorModel) Blur() {
	m.focused = false
	m.textarea.Blur()
}

// View renders the editor with any pending attachment manifest above it.
func (m *EditorModel) View() string {
	var b strings.Builder
	if len(m.attachments) > 0 {
		b.WriteString(m.theme.MutedText.Render("附件: " + strings.Join(m.attachments, ", ")))
		b.WriteString("\n")
	}
	b.WriteString(m.textarea.View())
	return b.String()
}
