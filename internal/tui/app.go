package tui

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/trustflow-labs/trustflow/internal/chat"
	"github.com/trustflow-labs/trustflow/internal/events"
	chatcomp "github.com/trustflow-labs/trustflow/internal/tui/components/chat"
	"github.com/trustflow-labs/trustflow/internal/tui/components/toast"
	"github.com/trustflow-labs/trustflow/internal/tui/theme"
)

type focusArea int

const (
	focusEditor focusArea = iota
	focusSessions
	focusMessages
)

// brokerEventMsg wraps a reconciler event for the bubbletea loop.
type brokerEventMsg struct {
	event events.Event[chat.EventPayload]
}

// opDoneMsg reports completion of an async reconciler call.
type opDoneMsg struct {
	err error
}

type appKeyMap struct {
	Quit          key.Binding
	NewSession    key.Binding
	ToggleSidebar key.Binding
	ToggleMode    key.Binding
	Refresh       key.Binding
	FocusNext     key.Binding
}

var appKeys = appKeyMap{
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("ctrl+c", "quit"),
	),
	NewSession: key.NewBinding(
		key.WithKeys("ctrl+n"),
		key.WithHelp("ctrl+n", "new chat"),
	),
	ToggleSidebar: key.NewBinding(
		key.WithKeys("ctrl+b"),
		key.WithHelp("ctrl+b", "sidebar"),
	),
	ToggleMode: key.NewBinding(
		key.WithKeys("ctrl+t"),
		key.WithHelp("ctrl+t", "text/image mode"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("ctrl+r"),
		key.WithHelp("ctrl+r", "refresh"),
	),
	FocusNext: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "focus"),
	),
}

// Model is the root TUI model. It reads reconciler snapshots and dispatches
// intents; all conversation state mutation stays inside the reconciler.
type Model struct {
	reconciler *chat.Reconciler
	theme      theme.Theme
	logger     *log.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	eventsCh <-chan events.Event[chat.EventPayload]

	messagesView *chatcomp.MessagesModel
	sessionsView *chatcomp.SessionsModel
	editor       *chatcomp.EditorModel
	toasts       *toast.Manager
	spin         spinner.Model

	width       int
	height      int
	showSidebar bool
	focus       focusArea
	sending     bool
	fatal       error
}

// New builds the TUI over an initialized reconciler.
func New(reconciler *chat.Reconciler, themeName string, logger *log.Logger) *Model {
	th := theme.New(themeName)
	ctx, cancel := context.WithCancel(context.Background())

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return &Model{
		reconciler:   reconciler,
		theme:        th,
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
		eventsCh:     reconciler.Broker().Subscribe(ctx),
		messagesView: chatcomp.NewMessagesModel(th),
		sessionsView: chatcomp.NewSessionsModel(th),
		editor:       chatcomp.NewEditorModel(th),
		toasts:       toast.NewManager(th),
		spin:         sp,
		showSidebar:  true,
		focus:        focusEditor,
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.editor.Init(),
		m.spin.Tick,
		m.waitForEvent(),
		m.do(m.reconciler.LoadSessions),
	)
}

// waitForEvent blocks on the broker subscription and feeds the next event
// into the update loop.
func (m *Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		event, ok := <-m.eventsCh
		if !ok {
			return nil
		}
		return brokerEventMsg{event: event}
	}
}

// do runs a reconciler call off the UI goroutine.
func (m *Model) do(f func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{err: f(m.ctx)}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, appKeys.Quit):
			m.cancel()
			return m, tea.Quit

		case key.Matches(msg, appKeys.NewSession):
			m.reconciler.NewSession()
			m.syncSnapshots()
			return m, nil

		case key.Matches(msg, appKeys.ToggleSidebar):
			m.showSidebar = !m.showSidebar
			m.layout()
			return m, nil

		case key.Matches(msg, appKeys.ToggleMode):
			mode := m.reconciler.ToggleMode()
			return m, m.notify(fmt.Sprintf("切换到 %s 模式 (%s)", mode, m.reconciler.Model()), toast.LevelInfo)

		case key.Matches(msg, appKeys.Refresh):
			return m, m.do(m.reconciler.Refresh)

		case key.Matches(msg, appKeys.FocusNext):
			m.cycleFocus()
			return m, nil
		}

	case chatcomp.SubmitMsg:
		if m.sending {
			return m, m.notify("上一条消息仍在生成中", toast.LevelWarning)
		}
		m.sending = true
		content, attachments := msg.Content, msg.Attachments
		cmds = append(cmds, m.do(func(ctx context.Context) error {
			return m.reconciler.SendMessage(ctx, content, attachments)
		}))

	case chatcomp.SessionSelectedMsg:
		sessionID := msg.SessionID
		cmds = append(cmds, m.do(func(ctx context.Context) error {
			return m.reconciler.SwitchSession(ctx, sessionID)
		}))

	case brokerEventMsg:
		cmds = append(cmds, m.handleEvent(msg.event), m.waitForEvent())

	case opDoneMsg:
		if msg.err != nil {
			m.sending = false
			// Validation errors never reach the broker; everything else was
			// already published as an event.
			if errors.Is(msg.err, chat.ErrEmptyMessage) || errors.Is(msg.err, chat.ErrSendInFlight) {
				cmds = append(cmds, m.notify(msg.err.Error(), toast.LevelWarning))
			}
		}
		m.syncSnapshots()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.toasts, cmd = m.toasts.Update(msg)
	cmds = append(cmds, cmd)

	switch m.focus {
	case focusEditor:
		m.editor, cmd = m.editor.Update(msg)
	case focusSessions:
		m.sessionsView, cmd = m.sessionsView.Update(msg)
	case focusMessages:
		m.messagesView, cmd = m.messagesView.Update(msg)
	}
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// handleEvent reacts to one reconciler event and refreshes the views.
func (m *Model) handleEvent(event events.Event[chat.EventPayload]) tea.Cmd {
	var cmd tea.Cmd
	switch event.Type {
	case events.ChatSendMerged:
		m.sending = false
	case events.ChatSendFailed:
		m.sending = false
		cmd = m.notify("生成失败: "+event.Payload.Message, toast.LevelError)
	case events.NotificationError:
		cmd = m.notify(event.Payload.Message, toast.LevelError)
	case events.AuthExpired:
		m.fatal = errors.New("登录已过期，请重新运行 trustflow auth login")
		m.cancel()
		return tea.Quit
	}
	m.syncSnapshots()
	return cmd
}

// syncSnapshots pulls fresh reconciler state into the view components.
func (m *Model) syncSnapshots() {
	m.sessionsView.SetSessions(m.reconciler.Sessions())
	m.sessionsView.SetActive(m.reconciler.ActiveSession())
	m.messagesView.SetMessages(m.reconciler.Messages())
	m.messagesView.SetLoading(m.reconciler.Loading() || m.sending)
}

func (m *Model) notify(message string, level toast.Level) tea.Cmd {
	return func() tea.Msg {
		return toast.ShowMsg{Message: message, Level: level}
	}
}

func (m *Model) cycleFocus() {
	m.editor.Blur()
	m.sessionsView.Blur()

	switch m.focus {
	case focusEditor:
		if m.showSidebar {
			m.focus = focusSessions
			m.sessionsView.Focus()
		} else {
			m.focus = focusMessages
		}
	case focusSessions:
		m.focus = focusMessages
	default:
		m.focus = focusEditor
	}
	if m.focus == focusEditor {
		m.editor.Focus()
	}
}

func (m *Model) layout() {
	sidebarWidth := 0
	if m.showSidebar {
		sidebarWidth = m.width / 4
		if sidebarWidth < 24 {
			sidebarWidth = 24
		}
	}
	mainWidth := m.width - sidebarWidth
	editorHeight := 5
	headerHeight := 1
	statusHeight := 1
	messagesHeight := m.height - editorHeight - headerHeight - statusHeight

	m.sessionsView.SetSize(sidebarWidth, m.height-headerHeight-statusHeight)
	m.messagesView.SetSize(mainWidth-2, messagesHeight)
	m.editor.SetWidth(mainWidth - 2)
}

// FatalError reports the error that forced the TUI to exit, if any.
func (m *Model) FatalError() error {
	return m.fatal
}

func (m *Model) View() string {
	if m.width == 0 {
		return "loading..."
	}

	params := m.reconciler.Parameters()
	mode := m.reconciler.Mode()
	headerInfo := fmt.Sprintf("T=%.1f", params.Temperature)
	if mode == chat.ModeImage {
		headerInfo = fmt.Sprintf("%s steps=%d", params.ImageSize, params.NumInferenceSteps)
	}
	header := m.theme.Header.Render("TrustFlow") +
		m.theme.MutedText.Render(fmt.Sprintf(" %s · %s · %s", m.reconciler.Model(), mode, headerInfo))

	main := lipgloss.JoinVertical(lipgloss.Left,
		m.messagesView.View(),
		m.theme.Border.Render(m.editor.View()),
	)

	body := main
	if m.showSidebar {
		body = lipgloss.JoinHorizontal(lipgloss.Top, m.sessionsView.View(), main)
	}

	status := m.statusLine()

	view := lipgloss.JoinVertical(lipgloss.Left, header, body, status)
	if toasts := m.toasts.View(); toasts != "" {
		view = lipgloss.JoinVertical(lipgloss.Left, view, toasts)
	}
	return view
}

func (m *Model) statusLine() string {
	state := m.reconciler.SendState().String()
	if m.sending {
		state = m.spin.View() + " " + state
	}
	help := "enter send · ctrl+n new · ctrl+t mode · ctrl+r refresh · ctrl+b sidebar · ctrl+c quit"
	return m.theme.StatusBar.Render(fmt.Sprintf("%s │ %s", state, help))
}

// Run starts the TUI and blocks until it exits.
func Run(reconciler *chat.Reconciler, themeName string, logger *log.Logger) error {
	model := New(reconciler, themeName, logger)
	program := tea.NewProgram(model, tea.WithAltScreen())
	final, err := program.Run()
	if err != nil {
		return fmt.Errorf("run tui: %w", err)
	}
	if m, ok := final.(*Model); ok && m.FatalError() != nil {
		return m.FatalError()
	}
	return nil
}
