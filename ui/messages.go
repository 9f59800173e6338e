package ui

import (
	"coachtui/model"
)

// Message type alias for the shared transcript record
type Message = model.Message

// Message type aliases - these are defined in the model package
type streamOpenedMsg = model.StreamOpenedMsg
type streamEventMsg = model.StreamEventMsg
type streamClosedMsg = model.StreamClosedMsg
type streamErrorMsg = model.StreamErrorMsg
type conversationsListMsg = model.ConversationsListMsg
type conversationCreatedMsg = model.ConversationCreatedMsg
type conversationLoadedMsg = model.ConversationLoadedMsg
type conversationRenamedMsg = model.ConversationRenamedMsg
type conversationDeletedMsg = model.ConversationDeletedMsg
type messagesRefreshedMsg = model.MessagesRefreshedMsg
type connectionStatusesMsg = model.ConnectionStatusesMsg
type authorizationURLMsg = model.AuthorizationURLMsg
type browserOpenedMsg = model.BrowserOpenedMsg
type oauthCallbackMsg = model.OAuthCallbackMsg
type storagePollTickMsg = model.StoragePollTickMsg
type oauthCooldownMsg = model.OAuthCooldownMsg
type notificationClearMsg = model.NotificationClearMsg
type pendingReplayMsg = model.PendingReplayMsg
type conversationRestoreMsg = model.ConversationRestoreMsg
type navigateRedirectMsg = model.NavigateRedirectMsg
type rateLimitTickMsg = model.RateLimitTickMsg
type markdownRenderedMsg = model.MarkdownRenderedMsg
