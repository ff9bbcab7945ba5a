package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/trustflow-labs/trustflow/internal/chat"
	"github.com/trustflow-labs/trustflow/internal/tui/theme"
)

// MessagesModel renders the active session's ledger in a scrollable
// viewport. Assistant text goes through glamour; image responses render the
// originating prompt plus the artifact location and watermark status.
type MessagesModel struct {
	theme    theme.Theme
	viewport viewport.Model
	renderer *glamour.TermRenderer
	messages []chat.Message
	width    int
	height   int
	loading  bool
	tail     bool
}

// NewMessagesModel creates the transcript component.
func NewMessagesModel(th theme.Theme) *MessagesModel {
	vp := viewport.New(80, 20)
	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(78),
	)
	return &MessagesModel{
		theme:    th,
		viewport: vp,
		renderer: renderer,
		tail:     true,
	}
}

func (m *MessagesModel) Init() tea.Cmd {
	return nil
}

func (m *MessagesModel) Update(msg tea.Msg) (*MessagesModel, tea.Cmd) {
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	if !m.viewport.AtBottom() {
		m.tail = false
	} else {
		m.tail = true
	}
	return m, cmd
}

// SetSize resizes the viewport and re-renders at the new width.
func (m *MessagesModel) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
	if width > 4 {
		m.renderer, _ = glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width-2),
		)
	}
	m.render()
}

// SetMessages replaces the transcript content.
func (m *MessagesModel) SetMessages(messages []chat.Message) {
	m.messages = messages
	m.render()
}

// SetLoading toggles the pending-history indicator.
func (m *MessagesModel) SetLoading(loading bool) {
	m.loading = loading
	m.render()
}

func (m *MessagesModel) render() {
	var b strings.Builder
	for i, msg := range m.messages {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(m.renderMessage(msg))
	}
	if m.loading {
		b.WriteString("\n")
		b.WriteString(m.theme.MutedText.Render("正在思考并存证中..."))
	}
	m.viewport.SetContent(b.String())
	if m.tail {
		m.viewport.GotoBottom()
	}
}

func (m *MessagesModel) renderMessage(msg chat.Message) string {
	var b strings.Builder

	switch msg.Role {
	case chat.RoleUser:
		b.WriteString(m.theme.UserLabel.Render("You"))
	default:
		b.WriteString(m.theme.BotLabel.Render("TrustFlow"))
	}
	b.WriteString("\n")

	if msg.ContentType == chat.ContentImage && msg.ArtifactURL != "" {
		b.WriteString(msg.Content)
		b.WriteString("\n")
		b.WriteString(m.theme.MutedText.Render("图片: " + msg.ArtifactURL))
		if msg.WatermarkStatus != "" {
			b.WriteString("\n")
			b.WriteString(m.theme.MutedText.Render("水印: " + msg.WatermarkStatus))
		}
	} else if msg.Role == chat.RoleAssistant && m.renderer != nil {
		rendered, err := m.renderer.Render(msg.Content)
		if err != nil {
			b.WriteString(msg.Content)
		} else {
			b.WriteString(strings.TrimRight(rendered, "\n"))
		}
	} else {
		b.WriteString(msg.Content)
	}

	if msg.TxHash != "" {
		b.WriteString("\n")
		b.WriteString(m.theme.HashBadge.Render("✓ Hash Verified"))
		b.WriteString(m.theme.MutedText.Render(" " + abbreviate(msg.TxHash)))
	}

	for _, citation := range msg.Citations {
		b.WriteString("\n")
		b.WriteString(m.theme.Citation.Render(
			fmt.Sprintf("引用 %s p.%d (%.2f): %s",
				citation.FileName, citation.Page, citation.Score, citation.TextSnippet)))
	}

	b.WriteString("\n")
	return b.String()
}

// ScrollUp moves the viewport up a few lines.
func (m *MessagesModel) ScrollUp() {
	m.viewport.LineUp(3)
	m.tail = false
}

// ScrollDown moves the viewport down a few lines.
func (m *MessagesModel) ScrollDown() {
	m.viewport.LineDown(3)
	if m.viewport.AtBottom() {
		m.tail = true
	}
}

// View renders the component.
func (m *MessagesModel) View() string {
	if len(m.messages) == 0 && !m.loading {
		empty := m.theme.MutedText.Render("可信溯源的 AI 助手，每次对话都上链存证")
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, empty)
	}
	return m.viewport.View()
}

func abbreviate(hash string) string {
	if len(hash) <= 18 {
		return hash
	}
	return hash[:18] + "..."
}
