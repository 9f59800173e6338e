package model

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"coachtui/api"
	"coachtui/config"
)

// FetchConversations retrieves the conversation list from the server
func (m *Model) FetchConversations() tea.Cmd {
	client := m.API
	return func() tea.Msg {
		conversations, err := client.ListConversations(context.Background(), 100, 0)
		return ConversationsListMsg{Conversations: conversations, Err: err}
	}
}

// CreateConversation creates a new conversation with the configured defaults
func (m *Model) CreateConversation(title string) tea.Cmd {
	return m.CreateConversationWithPrompt(title, m.Config.DefaultSystemPrompt)
}

// CreateConversationWithPrompt creates a conversation with an explicit system
// prompt. Replayed deferred actions use it to restore the persona of the
// conversation they were recorded in.
func (m *Model) CreateConversationWithPrompt(title, systemPrompt string) tea.Cmd {
	client := m.API
	model := m.Config.DefaultModel
	return func() tea.Msg {
		conv, err := client.CreateConversation(context.Background(), title, model, systemPrompt)
		return ConversationCreatedMsg{Conversation: conv, Err: err}
	}
}

// LoadConversation fetches a conversation and its messages
func (m *Model) LoadConversation(id string) tea.Cmd {
	client := m.API
	return func() tea.Msg {
		conv, err := client.GetConversation(context.Background(), id)
		if err != nil {
			return ConversationLoadedMsg{Err: err}
		}
		messages, err := client.GetMessages(context.Background(), id)
		return ConversationLoadedMsg{Conversation: conv, Messages: messages, Err: err}
	}
}

// RenameConversation renames a conversation and refreshes the list
func (m *Model) RenameConversation(id, title string) tea.Cmd {
	client := m.API
	return func() tea.Msg {
		if err := client.RenameConversation(context.Background(), id, title); err != nil {
			return ConversationRenamedMsg{Err: err}
		}
		conversations, err := client.ListConversations(context.Background(), 100, 0)
		return ConversationsListMsg{Conversations: conversations, Err: err}
	}
}

// DeleteConversation deletes a conversation
func (m *Model) DeleteConversation(id string) tea.Cmd {
	client := m.API
	return func() tea.Msg {
		err := client.DeleteConversation(context.Background(), id)
		return ConversationDeletedMsg{ID: id, Err: err}
	}
}

// RefreshMessages re-fetches the transcript for a conversation. Used after a
// stream completes so local state converges on the server's records.
func (m *Model) RefreshMessages(conversationID string) tea.Cmd {
	client := m.API
	return func() tea.Msg {
		messages, err := client.GetMessages(context.Background(), conversationID)
		return MessagesRefreshedMsg{ConversationID: conversationID, Messages: messages, Err: err}
	}
}

// SetCurrentConversation switches the open conversation and persists the
// selection so the next launch (or a post-authorization restore) returns to it.
func (m *Model) SetCurrentConversation(conv *api.Conversation) {
	m.CurrentConversation = conv
	m.Messages = nil

	if m.ConversationCache != nil && conv != nil {
		if err := m.ConversationCache.SaveCurrentConversationID(conv.ID); err != nil {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[Model] failed to cache conversation id: %v", err)
			}
		}
	}
}
