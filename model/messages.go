package model

import (
	"coachtui/api"
	"coachtui/storage"
	"coachtui/stream"
)

// Streaming messages. Every stream message names the conversation it belongs
// to so the update loop can discard results that arrive after the user has
// switched conversations.

type StreamOpenedMsg struct {
	ConversationID string
}

type StreamEventMsg struct {
	ConversationID string
	Event          stream.Event
}

type StreamClosedMsg struct {
	ConversationID string
}

type StreamErrorMsg struct {
	ConversationID string
	Err            error
}

// Conversation messages

type ConversationsListMsg struct {
	Conversations []api.ConversationSummary
	Err           error
}

type ConversationCreatedMsg struct {
	Conversation *api.Conversation
	Err          error
}

type ConversationLoadedMsg struct {
	Conversation *api.Conversation
	Messages     []api.Message
	Err          error
}

type ConversationRenamedMsg struct {
	Err error
}

type ConversationDeletedMsg struct {
	ID  string
	Err error
}

type MessagesRefreshedMsg struct {
	ConversationID string
	Messages       []api.Message
	Err            error
}

// Provider connection messages

type ConnectionStatusesMsg struct {
	Statuses []api.ConnectionStatus
	Err      error
}

type AuthorizationURLMsg struct {
	Provider string
	URL      string
	Err      error
}

type BrowserOpenedMsg struct {
	Provider string
	Err      error
}

// OAuthCallbackMsg signals that the local callback listener received a
// completion. The payload lives in the signal store, not here.
type OAuthCallbackMsg struct{}

// StoragePollTickMsg drives the periodic signal-store change check.
type StoragePollTickMsg struct{}

// OAuthCooldownMsg clears the completion-processing guard.
type OAuthCooldownMsg struct{}

// NotificationClearMsg dismisses the status-line notification.
type NotificationClearMsg struct{}

// PendingReplayMsg carries a claimed deferred action back into the send path.
type PendingReplayMsg struct {
	Action storage.PendingAction
}

// ConversationRestoreMsg asks the update loop to reopen the conversation that
// was active before an authorization round-trip.
type ConversationRestoreMsg struct {
	ConversationID string
}

// NavigateRedirectMsg fires after the pre-navigation delay; URL is validated
// again at this point before the browser is opened.
type NavigateRedirectMsg struct {
	URL string
}

// RateLimitTickMsg counts down the seconds until sending is allowed again.
type RateLimitTickMsg struct{}

type MarkdownRenderedMsg struct {
	MessageIndex int
	Rendered     string
}
