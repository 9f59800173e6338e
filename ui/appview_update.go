package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"coachtui/config"
	appmodel "coachtui/model"
	"coachtui/storage"
)

func (a AppView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	// Animate the spinner while waiting for the first streamed content
	if a.dataModel.Streaming && a.dataModel.StreamAccum == "" {
		a.loadingSpinner, cmd = a.loadingSpinner.Update(msg)
		cmds = append(cmds, cmd)
		a.updateStreamingViewport()
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height

		// Title (1), separator (1), textarea (3), status bar (1)
		a.viewport.Width = a.width
		a.viewport.Height = a.height - 6
		a.textarea.SetWidth(a.width)

		a.ready = true
		a.updateViewportContent(true)
		return a, nil

	// Two of the completion triggers arrive as terminal lifecycle events:
	// the terminal regaining focus and the process resuming from suspend.
	// Both mean the user may just have returned from the browser.
	case tea.FocusMsg:
		if cmd := a.dataModel.CheckOAuthCompletion(); cmd != nil {
			return a, cmd
		}
		return a, nil

	case tea.ResumeMsg:
		if cmd := a.dataModel.CheckOAuthCompletion(); cmd != nil {
			return a, cmd
		}
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg, cmds)
	}

	if view, cmd, handled := a.handleStreamingMessage(msg); handled {
		return view, cmd
	}
	if view, cmd, handled := a.handleOAuthMessage(msg); handled {
		return view, cmd
	}
	if view, cmd, handled := a.handleConversationMessage(msg); handled {
		return view, cmd
	}

	switch msg := msg.(type) {
	case markdownRenderedMsg:
		if msg.MessageIndex >= 0 && msg.MessageIndex < len(a.dataModel.Messages) {
			a.dataModel.Messages[msg.MessageIndex].Rendered = msg.Rendered
			a.updateViewportContent(true)
		}
		return a, nil

	case rateLimitTickMsg:
		return a, a.dataModel.TickRateLimit()
	}

	// Forward everything else to the focused components
	if !a.showConversations && !a.showHelp {
		a.textarea, cmd = a.textarea.Update(msg)
		cmds = append(cmds, cmd)
	}
	a.viewport, cmd = a.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return a, tea.Batch(cmds...)
}

func (a AppView) handleKey(msg tea.KeyMsg, cmds []tea.Cmd) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	if msg.String() == "alt+q" {
		a.dataModel.Quitting = true
		return a, tea.Quit
	}

	if a.showHelp {
		if msg.String() == "esc" || msg.String() == "alt+h" {
			a.showHelp = false
		}
		return a, nil
	}

	if a.showConversations {
		return a.handleConversationPickerKey(msg)
	}

	switch msg.String() {
	case "alt+h":
		a.showHelp = true
		return a, nil

	case "alt+s":
		a.showConversations = true
		a.selectedConversationIdx = 0
		a.conversationFilterMode = false
		a.conversationFilterInput.SetValue("")
		a.filteredConversationList = nil
		return a, a.dataModel.FetchConversations()

	case "alt+n":
		return a, a.dataModel.CreateConversation("New Conversation")

	case "alt+y":
		for i := len(a.dataModel.Messages) - 1; i >= 0; i-- {
			if a.dataModel.Messages[i].Role == "assistant" {
				clipboard.WriteAll(a.dataModel.Messages[i].Content)
				return a, nil
			}
		}
		return a, nil

	case "alt+j", "alt+down":
		a.viewport.HalfPageDown()
		return a, nil

	case "alt+k", "alt+up":
		a.viewport.HalfPageUp()
		return a, nil

	case "alt+g":
		a.viewport.GotoBottom()
		return a, nil

	case "esc":
		if a.dataModel.Streaming {
			return a.cancelStreaming()
		}
		a.errorMessage = ""
		return a, nil
	}

	// Enter sends; Alt+Enter falls through to the textarea for a newline.
	if msg.Type == tea.KeyEnter && !msg.Alt {
		return a.sendCurrentInput()
	}

	a.textarea, cmd = a.textarea.Update(msg)
	cmds = append(cmds, cmd)
	return a, tea.Batch(cmds...)
}

// sendCurrentInput is the single send path. Typed messages, slash commands
// and replayed deferred actions all pass through here; there is no other
// route into StartStream.
func (a AppView) sendCurrentInput() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(a.textarea.Value())
	if input == "" {
		return a, nil
	}

	if provider, ok := parseConnectCommand(input); ok {
		a.textarea.Reset()
		if a.callback == nil {
			a.errorMessage = "Provider connections unavailable: callback listener not running"
			return a, nil
		}
		if err := a.dataModel.RecordConversationRestore(); err != nil {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[UI] failed to record connect context: %v", err)
			}
		}
		return a, a.dataModel.ConnectProvider(provider, a.callback.RedirectURI())
	}

	if a.dataModel.CurrentConversation == nil {
		// Create one first; the pending input stays in the textarea and the
		// user presses Enter again once the conversation exists.
		return a, a.dataModel.CreateConversation("New Conversation")
	}

	cmd := a.dataModel.StartStream(input)
	if cmd == nil {
		return a, nil
	}

	a.textarea.Reset()
	a.errorMessage = ""
	a.updateStreamingViewport()

	if config.DebugLog != nil {
		config.DebugLog.Printf("[UI] sending message (%d chars)", len(input))
	}

	return a, tea.Batch(cmd, a.loadingSpinner.Tick)
}

// parseConnectCommand recognizes "/connect <provider>".
func parseConnectCommand(input string) (string, bool) {
	if !strings.HasPrefix(input, "/connect") {
		return "", false
	}
	provider := strings.TrimSpace(strings.TrimPrefix(input, "/connect"))
	if provider == "" {
		return "", false
	}
	return strings.ToLower(provider), true
}

func (a AppView) cancelStreaming() (tea.Model, tea.Cmd) {
	partial := a.dataModel.StreamAccum
	a.dataModel.FinishStream()

	if partial != "" {
		a.dataModel.Messages = append(a.dataModel.Messages, Message{
			Role:      "assistant",
			Content:   partial + "\n\nResponse cancelled",
			Rendered:  partial + "\n\nResponse cancelled",
			Timestamp: time.Now(),
		})
	}
	a.updateViewportContent(true)
	return a, nil
}

// replayPending pushes a claimed deferred action back through the normal
// send path, exactly as if the user had typed it again. The claim is
// destructive, so an action that cannot run right now goes back into the
// store instead of being dropped.
func (a AppView) replayPending(action storage.PendingAction) (tea.Model, tea.Cmd) {
	if action.Prompt == "" {
		return a, nil
	}

	if a.dataModel.Streaming || a.dataModel.RetryAfterSeconds > 0 {
		// A newer send won the race between claim and delivery.
		if err := a.dataModel.EnqueuePending(action); err != nil && config.DebugLog != nil {
			config.DebugLog.Printf("[UI] failed to requeue deferred action: %v", err)
		}
		return a, nil
	}

	if a.dataModel.CurrentConversation == nil {
		// The conversation went away between claim and delivery. Recreate
		// one with the action's persona and replay once it exists.
		stashed := action
		a.pendingReplayAction = &stashed
		return a, a.dataModel.CreateConversationWithPrompt("New Conversation", action.SystemPrompt)
	}

	if config.DebugLog != nil {
		config.DebugLog.Printf("[UI] replaying deferred action (%d chars)", len(action.Prompt))
	}
	a.textarea.SetValue(action.Prompt)
	return a.sendCurrentInput()
}

// handleOAuthMessage handles the completion synchronizer's message traffic.
func (a AppView) handleOAuthMessage(msg tea.Msg) (AppView, tea.Cmd, bool) {
	switch msg := msg.(type) {
	case oauthCallbackMsg:
		// The listener recorded a completion; re-arm the wait either way.
		cmds := []tea.Cmd{a.listenCallback()}
		if cmd := a.dataModel.CheckOAuthCompletion(); cmd != nil {
			cmds = append(cmds, cmd)
		}
		return a, tea.Batch(cmds...), true

	case storagePollTickMsg:
		cmds := []tea.Cmd{appmodel.SchedulePoll()}
		if a.dataModel.StorageChanged() {
			if cmd := a.dataModel.CheckOAuthCompletion(); cmd != nil {
				cmds = append(cmds, cmd)
			}
		}
		return a, tea.Batch(cmds...), true

	case oauthCooldownMsg:
		a.dataModel.ClearOAuthGuard()
		return a, nil, true

	case notificationClearMsg:
		a.dataModel.Notification = ""
		return a, nil, true

	case connectionStatusesMsg:
		if msg.Err != nil {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[UI] connection status fetch failed: %v", msg.Err)
			}
			return a, nil, true
		}
		a.dataModel.Connections = msg.Statuses
		return a, nil, true

	case authorizationURLMsg:
		if msg.Err != nil {
			a.dataModel.ConnectingProvider = ""
			a.errorMessage = fmt.Sprintf("Failed to start %s connection: %v", msg.Provider, msg.Err)
			return a, nil, true
		}
		return a, a.dataModel.OpenAuthBrowser(msg.URL, msg.Provider), true

	case browserOpenedMsg:
		if msg.Err != nil {
			a.dataModel.ConnectingProvider = ""
			a.errorMessage = fmt.Sprintf("Could not open browser: %v", msg.Err)
		}
		return a, nil, true

	case navigateRedirectMsg:
		// Revalidated inside OpenAuthBrowser before anything launches.
		return a, a.dataModel.OpenAuthBrowser(msg.URL, a.dataModel.ConnectingProvider), true

	case pendingReplayMsg:
		view, cmd := a.replayPending(msg.Action)
		return view.(AppView), cmd, true

	case conversationRestoreMsg:
		if a.dataModel.Streaming {
			// Don't yank the user out of an in-flight response. The deferred
			// action stays queued for the next completed connection.
			return a, nil, true
		}
		a.replayAfterLoad = true
		return a, a.dataModel.LoadConversation(msg.ConversationID), true
	}

	return a, nil, false
}
