package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"
	"github.com/sahilm/fuzzy"

	"coachtui/api"
	"coachtui/config"
)

// handleConversationMessage handles conversation CRUD message traffic
func (a AppView) handleConversationMessage(msg tea.Msg) (AppView, tea.Cmd, bool) {
	switch msg := msg.(type) {
	case conversationsListMsg:
		if msg.Err != nil {
			a.errorMessage = fmt.Sprintf("Failed to list conversations: %v", msg.Err)
			return a, nil, true
		}
		a.dataModel.Conversations = msg.Conversations
		if a.selectedConversationIdx >= len(msg.Conversations) {
			a.selectedConversationIdx = 0
		}
		a.applyConversationFilter()
		return a, nil, true

	case conversationCreatedMsg:
		if msg.Err != nil {
			if a.pendingReplayAction != nil {
				action := *a.pendingReplayAction
				a.pendingReplayAction = nil
				if err := a.dataModel.EnqueuePending(action); err != nil && config.DebugLog != nil {
					config.DebugLog.Printf("[UI] failed to requeue deferred action: %v", err)
				}
			}
			a.errorMessage = fmt.Sprintf("Failed to create conversation: %v", msg.Err)
			return a, nil, true
		}
		a.showConversations = false
		a.dataModel.SetCurrentConversation(msg.Conversation)
		a.updateViewportContent(true)

		cmds := []tea.Cmd{a.dataModel.FetchConversations()}
		if a.pendingReplayAction != nil {
			action := *a.pendingReplayAction
			a.pendingReplayAction = nil
			view, cmd := a.replayPending(action)
			a = view.(AppView)
			if cmd != nil {
				cmds = append(cmds, cmd)
			}
		}
		return a, tea.Batch(cmds...), true

	case conversationLoadedMsg:
		if msg.Err != nil {
			a.replayAfterLoad = false
			a.errorMessage = fmt.Sprintf("Failed to open conversation: %v", msg.Err)
			return a, nil, true
		}
		a.showConversations = false
		a.dataModel.SetCurrentConversation(msg.Conversation)
		a.dataModel.SetMessagesFromAPI(msg.Messages)
		a.updateViewportContent(true)

		if config.DebugLog != nil {
			config.DebugLog.Printf("[UI] opened conversation %s with %d messages", msg.Conversation.ID, len(msg.Messages))
		}

		// Render stored markdown lazily, newest messages first.
		var cmds []tea.Cmd
		for i := len(a.dataModel.Messages) - 1; i >= 0; i-- {
			if a.dataModel.Messages[i].Role == "assistant" {
				cmds = append(cmds, a.renderMarkdownAsync(i, a.dataModel.Messages[i].Content))
			}
		}

		// A post-authorization restore finished loading; run the deferred
		// action now that its conversation is the one on screen.
		if a.replayAfterLoad {
			a.replayAfterLoad = false
			if cmd := a.dataModel.TryReplay(); cmd != nil {
				cmds = append(cmds, cmd)
			}
		}
		return a, tea.Batch(cmds...), true

	case conversationRenamedMsg:
		if msg.Err != nil {
			a.errorMessage = fmt.Sprintf("Rename failed: %v", msg.Err)
		}
		return a, nil, true

	case conversationDeletedMsg:
		if msg.Err != nil {
			a.errorMessage = fmt.Sprintf("Delete failed: %v", msg.Err)
			return a, nil, true
		}
		if a.dataModel.CurrentConversation != nil && a.dataModel.CurrentConversation.ID == msg.ID {
			a.dataModel.CurrentConversation = nil
			a.dataModel.Messages = nil
			if a.dataModel.ConversationCache != nil {
				_ = a.dataModel.ConversationCache.ClearCurrentConversationID()
			}
			a.updateViewportContent(true)
		}
		return a, a.dataModel.FetchConversations(), true

	case messagesRefreshedMsg:
		if msg.Err != nil {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[UI] transcript refresh failed: %v", msg.Err)
			}
			return a, nil, true
		}
		// Only apply if the user is still looking at this conversation.
		if a.dataModel.CurrentConversation == nil || a.dataModel.CurrentConversation.ID != msg.ConversationID {
			return a, nil, true
		}
		if a.dataModel.Streaming {
			return a, nil, true
		}
		a.dataModel.SetMessagesFromAPI(msg.Messages)
		a.updateViewportContent(true)

		var cmds []tea.Cmd
		for i := range a.dataModel.Messages {
			if a.dataModel.Messages[i].Role == "assistant" {
				cmds = append(cmds, a.renderMarkdownAsync(i, a.dataModel.Messages[i].Content))
			}
		}
		return a, tea.Batch(cmds...), true
	}

	return a, nil, false
}

func (a AppView) handleConversationPickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	if a.confirmDeleteConversation != nil {
		switch msg.String() {
		case "y":
			id := a.confirmDeleteConversation.ID
			a.confirmDeleteConversation = nil
			return a, a.dataModel.DeleteConversation(id)
		default:
			a.confirmDeleteConversation = nil
			return a, nil
		}
	}

	if a.conversationRenameMode {
		switch msg.String() {
		case "enter":
			title := strings.TrimSpace(a.conversationRenameInput.Value())
			a.conversationRenameMode = false
			if title == "" {
				return a, nil
			}
			if conv := a.selectedConversation(); conv != nil {
				return a, a.dataModel.RenameConversation(conv.ID, title)
			}
			return a, nil
		case "esc":
			a.conversationRenameMode = false
			return a, nil
		default:
			a.conversationRenameInput, cmd = a.conversationRenameInput.Update(msg)
			return a, cmd
		}
	}

	if a.conversationFilterMode {
		switch msg.String() {
		case "enter", "esc":
			a.conversationFilterMode = false
			if msg.String() == "esc" {
				a.conversationFilterInput.SetValue("")
				a.applyConversationFilter()
			}
			return a, nil
		default:
			a.conversationFilterInput, cmd = a.conversationFilterInput.Update(msg)
			a.applyConversationFilter()
			a.selectedConversationIdx = 0
			return a, cmd
		}
	}

	list := a.visibleConversations()

	switch msg.String() {
	case "esc", "alt+s":
		a.showConversations = false
		return a, nil

	case "j", "down":
		if a.selectedConversationIdx < len(list)-1 {
			a.selectedConversationIdx++
		}
		return a, nil

	case "k", "up":
		if a.selectedConversationIdx > 0 {
			a.selectedConversationIdx--
		}
		return a, nil

	case "enter":
		if conv := a.selectedConversation(); conv != nil {
			return a, a.dataModel.LoadConversation(conv.ID)
		}
		return a, nil

	case "n":
		return a, a.dataModel.CreateConversation("New Conversation")

	case "r":
		if conv := a.selectedConversation(); conv != nil {
			a.conversationRenameMode = true
			a.conversationRenameInput.SetValue(conv.Title)
			a.conversationRenameInput.Focus()
		}
		return a, nil

	case "d":
		if conv := a.selectedConversation(); conv != nil {
			a.confirmDeleteConversation = conv
		}
		return a, nil

	case "/":
		a.conversationFilterMode = true
		a.conversationFilterInput.Focus()
		return a, nil
	}

	return a, nil
}

// conversationTitles adapts summaries to the fuzzy matcher's source interface.
type conversationTitles []api.ConversationSummary

func (c conversationTitles) String(i int) string { return c[i].Title }
func (c conversationTitles) Len() int            { return len(c) }

func (a *AppView) applyConversationFilter() {
	query := a.conversationFilterInput.Value()
	if query == "" {
		a.filteredConversationList = nil
		return
	}

	matches := fuzzy.FindFrom(query, conversationTitles(a.dataModel.Conversations))
	filtered := make([]api.ConversationSummary, 0, len(matches))
	for _, match := range matches {
		filtered = append(filtered, a.dataModel.Conversations[match.Index])
	}
	a.filteredConversationList = filtered
}

func (a AppView) visibleConversations() []api.ConversationSummary {
	if a.conversationFilterInput.Value() != "" {
		return a.filteredConversationList
	}
	return a.dataModel.Conversations
}

func (a AppView) selectedConversation() *api.ConversationSummary {
	list := a.visibleConversations()
	if a.selectedConversationIdx < 0 || a.selectedConversationIdx >= len(list) {
		return nil
	}
	return &list[a.selectedConversationIdx]
}

func (a AppView) renderConversationPicker() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("Conversations"))
	b.WriteString("\n\n")

	if a.conversationFilterMode || a.conversationFilterInput.Value() != "" {
		b.WriteString(a.conversationFilterInput.View())
		b.WriteString("\n\n")
	}

	list := a.visibleConversations()
	if len(list) == 0 {
		b.WriteString(DimStyle.Render("No conversations yet. Press n to start one."))
		b.WriteString("\n")
	}

	titleWidth := a.width - 30
	if titleWidth < 20 {
		titleWidth = 20
	}

	for i, conv := range list {
		title := runewidth.Truncate(conv.Title, titleWidth, "…")
		line := fmt.Sprintf("%s  %s", title, DimStyle.Render(fmt.Sprintf("(%d messages)", conv.MessageCount)))

		if i == a.selectedConversationIdx {
			line = SelectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")

	if a.confirmDeleteConversation != nil {
		b.WriteString(ErrorStyle.Render(fmt.Sprintf("Delete %q? (y/N)", a.confirmDeleteConversation.Title)))
		b.WriteString("\n")
	} else if a.conversationRenameMode {
		b.WriteString(a.conversationRenameInput.View())
		b.WriteString("\n")
	} else {
		b.WriteString(FormatFooter("j/k", "Navigate", "Enter", "Open", "n", "New", "r", "Rename", "d", "Delete", "/", "Filter", "Esc", "Close"))
	}

	return b.String()
}
