package chat

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/trustflow-labs/trustflow/internal/chat"
	"github.com/trustflow-labs/trustflow/internal/tui/theme"
)

// SessionSelectedMsg is sent when a session is chosen in the sidebar.
type SessionSelectedMsg struct {
	SessionID int64
}

// SessionsModel is the sidebar session list. Display order is whatever the
// backend returned; the list's built-in filter does fuzzy matching over
// titles.
type SessionsModel struct {
	theme    theme.Theme
	list     list.Model
	width    int
	height   int
	focused  bool
	activeID int64
}

// sessionItem implements list.Item.
type sessionItem struct {
	session chat.Session
}

func (i sessionItem) FilterValue() string { return i.session.Title }

// sessionDelegate implements list.ItemDelegate.
type sessionDelegate struct {
	theme    theme.Theme
	activeID int64
}

func (d sessionDelegate) Height() int                               { return 2 }
func (d sessionDelegate) Spacing() int                              { return 0 }
func (d sessionDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d sessionDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	i, ok := item.(sessionItem)
	if !ok {
		return
	}

	title := i.session.Title
	if title == "" {
		title = "新会话"
	}
	if i.session.ID == d.activeID {
		title = d.theme.SuccessText.Render("● " + title)
	} else if index == m.Index() {
		title = d.theme.Header.Render(title)
	}

	when := ""
	if !i.session.LastActive.IsZero() {
		when = i.session.LastActive.Format("Jan 2, 15:04")
	}
	desc := d.theme.MutedText.Render(when)

	fmt.Fprintf(w, "%s\n%s", title, desc)
}

// NewSessionsModel creates the sidebar.
func NewSessionsModel(th theme.Theme) *SessionsModel {
	delegate := sessionDelegate{theme: th}
	l := list.New([]list.Item{}, delegate, 0, 0)
	l.Title = "Sessions"
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(true)
	l.DisableQuitKeybindings()

	return &SessionsModel{theme: th, list: l}
}

func (m *SessionsModel) Init() tea.Cmd {
	return nil
}

func (m *SessionsModel) Update(msg tea.Msg) (*SessionsModel, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && m.focused {
		if key.Matches(keyMsg, key.NewBinding(key.WithKeys("enter"))) && !m.list.SettingFilter() {
			if item, ok := m.list.SelectedItem().(sessionItem); ok {
				return m, func() tea.Msg {
					return SessionSelectedMsg{SessionID: item.session.ID}
				}
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// SetSessions replaces the sidebar contents.
func (m *SessionsModel) SetSessions(sessions []chat.Session) {
	items := make([]list.Item, len(sessions))
	for i, session := range sessions {
		items[i] = sessionItem{session: session}
	}
	m.list.SetItems(items)
}

// SetActive highlights the active session.
func (m *SessionsModel) SetActive(sessionID int64) {
	m.activeID = sessionID
	m.list.SetDelegate(sessionDelegate{theme: m.theme, activeID: sessionID})
}

// SetSize resizes the sidebar.
func (m *SessionsModel) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height)
}

// Focus marks the sidebar as the key target.
func (m *SessionsModel) Focus() {
	m.focused = true
}

// Blur releases key focus.
func (m *SessionsModel) Blur() {
	m.focused = false
}

// View renders the sidebar.
func (m *SessionsModel) View() string {
	return m.list.View()
}
