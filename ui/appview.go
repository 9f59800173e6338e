package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"coachtui/api"
	appmodel "coachtui/model"
	"coachtui/oauthcb"
	"coachtui/storage"
)

type AppView struct {
	// Reference to core data model
	dataModel *appmodel.Model

	// Local OAuth callback listener (nil if it failed to start)
	callback *oauthcb.Listener

	// UI Components
	viewport viewport.Model
	textarea textarea.Model

	// Window state
	width  int
	height int
	ready  bool

	// Streaming UI state
	loadingSpinner spinner.Model
	showHelp       bool

	// Conversation picker
	showConversations        bool
	selectedConversationIdx  int
	conversationFilterMode   bool
	conversationFilterInput  textinput.Model
	filteredConversationList []api.ConversationSummary

	// Rename mode inside the picker
	conversationRenameMode  bool
	conversationRenameInput textinput.Model

	// Delete confirmation
	confirmDeleteConversation *api.ConversationSummary

	// Set while a post-authorization conversation restore is loading; the
	// deferred action replays once the load completes.
	replayAfterLoad bool

	// Claimed action waiting for a conversation to be created; replayed
	// once the creation lands.
	pendingReplayAction *storage.PendingAction

	// Transient error line
	errorMessage string
}

func NewAppView(dataModel *appmodel.Model, callback *oauthcb.Listener) AppView {
	ta := textarea.New()
	ta.Placeholder = "Ask your coach anything, or /connect strava to link a provider..."
	ta.Focus()
	ta.CharLimit = 0
	ta.ShowLineNumbers = false
	ta.SetHeight(3)
	ta.SetWidth(80)

	// Alt+Enter for newline, Enter alone sends (handled separately)
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter"))

	ta.SetPromptFunc(2, func(lineIdx int) string {
		if lineIdx == 0 {
			return "> "
		}
		return "| "
	})

	vp := viewport.New(0, 0)

	filterInput := textinput.New()
	filterInput.Prompt = "Filter: "
	filterInput.CharLimit = 64

	renameInput := textinput.New()
	renameInput.Prompt = "Rename: "
	renameInput.CharLimit = 100

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return AppView{
		dataModel:               dataModel,
		callback:                callback,
		textarea:                ta,
		viewport:                vp,
		loadingSpinner:          sp,
		conversationFilterInput: filterInput,
		conversationRenameInput: renameInput,
	}
}

func (a AppView) Init() tea.Cmd {
	cmds := []tea.Cmd{
		textarea.Blink,
		a.dataModel.FetchConversations(),
		a.dataModel.FetchConnections(),
		appmodel.SchedulePoll(),
	}

	if a.callback != nil {
		cmds = append(cmds, a.listenCallback())
	}

	// A completion may already be waiting from before this launch.
	if cmd := a.dataModel.CheckOAuthCompletion(); cmd != nil {
		cmds = append(cmds, cmd)
	}

	// Reopen the conversation that was active last time.
	if a.dataModel.ConversationCache != nil {
		if id, err := a.dataModel.ConversationCache.LoadCurrentConversationID(); err == nil && id != "" {
			cmds = append(cmds, a.dataModel.LoadConversation(id))
		}
	}

	return tea.Batch(cmds...)
}

// listenCallback waits for the next wakeup from the callback listener.
func (a AppView) listenCallback() tea.Cmd {
	notify := a.callback.Notify()
	return func() tea.Msg {
		<-notify
		return oauthCallbackMsg{}
	}
}

func (a AppView) View() string {
	if !a.ready {
		return "Loading CoachTUI..."
	}

	if a.showHelp {
		return a.renderHelp()
	}

	if a.showConversations {
		return a.renderConversationPicker()
	}

	var b strings.Builder

	title := "CoachTUI"
	if a.dataModel.CurrentConversation != nil {
		title = fmt.Sprintf("CoachTUI - %s", a.dataModel.CurrentConversation.Title)
	}
	b.WriteString(TitleStyle.Render(title))
	b.WriteString("\n")
	b.WriteString(strings.Repeat("─", max(a.width, 1)))
	b.WriteString("\n")

	b.WriteString(a.viewport.View())
	b.WriteString("\n")
	b.WriteString(a.textarea.View())
	b.WriteString("\n")
	b.WriteString(a.renderStatusBar())

	return b.String()
}

func (a AppView) renderStatusBar() string {
	if a.errorMessage != "" {
		return ErrorStyle.Render(a.errorMessage)
	}
	if a.dataModel.Notification != "" {
		return NotificationStyle.Render(a.dataModel.Notification)
	}
	if a.dataModel.RetryAfterSeconds > 0 {
		return StatusStyle.Render(fmt.Sprintf("Rate limited - retry in %ds", a.dataModel.RetryAfterSeconds))
	}
	if a.dataModel.ConnectingProvider != "" {
		return StatusStyle.Render(fmt.Sprintf("Connecting %s - finish in your browser...", a.dataModel.ConnectingProvider))
	}
	if a.dataModel.Streaming {
		return StatusStyle.Render("Streaming response... (Esc to cancel)")
	}

	parts := []string{"Enter Send", "Alt+S Conversations", "Alt+N New", "Alt+H Help", "Alt+Q Quit"}
	for _, status := range a.dataModel.Connections {
		if status.Connected {
			parts = append(parts, fmt.Sprintf("%s ✓", status.Provider))
		}
	}
	return StatusStyle.Render(strings.Join(parts, "  "))
}

func (a AppView) renderHelp() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("CoachTUI Help"))
	b.WriteString("\n\n")
	b.WriteString("Chat\n")
	b.WriteString("  Enter        Send message\n")
	b.WriteString("  Alt+Enter    Insert newline\n")
	b.WriteString("  Esc          Cancel streaming response\n")
	b.WriteString("  Alt+Y        Copy last coach message\n\n")
	b.WriteString("Conversations\n")
	b.WriteString("  Alt+S        Open conversation picker\n")
	b.WriteString("  Alt+N        New conversation\n\n")
	b.WriteString("Providers\n")
	b.WriteString("  /connect strava   Link your Strava account\n")
	b.WriteString("  /connect fitbit   Link your Fitbit account\n\n")
	b.WriteString("Scrolling\n")
	b.WriteString("  Alt+J/Alt+K  Half page down/up\n")
	b.WriteString("  Alt+G        Jump to bottom\n\n")
	b.WriteString(FormatFooter("Esc", "Close"))
	return b.String()
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
