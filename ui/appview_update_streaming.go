package ui

import (
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"coachtui/api"
	"coachtui/config"
	appmodel "coachtui/model"
	"coachtui/storage"
	"coachtui/stream"
)

// handleStreamingMessage handles all streaming-related messages
func (a AppView) handleStreamingMessage(msg tea.Msg) (AppView, tea.Cmd, bool) {
	switch msg := msg.(type) {
	case streamOpenedMsg:
		if msg.ConversationID != a.dataModel.StreamingConversationID {
			return a, nil, true
		}
		return a, a.dataModel.ListenStream(), true

	case streamEventMsg:
		// Late-result guard: events from a stream the user has walked away
		// from are dropped, not applied to whatever is on screen now.
		if msg.ConversationID != a.dataModel.StreamingConversationID {
			return a, nil, true
		}
		if a.dataModel.CurrentConversation == nil || a.dataModel.CurrentConversation.ID != msg.ConversationID {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[UI] dropping stream event for switched-away conversation %s", msg.ConversationID)
			}
			return a, a.dataModel.ListenStream(), true
		}
		return a.applyStreamEvent(msg)

	case streamClosedMsg:
		if msg.ConversationID != a.dataModel.StreamingConversationID {
			return a, nil, true
		}
		// Transport ended without a done event; finalize with what arrived.
		if a.dataModel.Streaming {
			return a.finalizeResponse(msg.ConversationID, a.dataModel.StreamAccum)
		}
		return a, nil, true

	case streamErrorMsg:
		// Same guard as the other stream messages: an error from an
		// abandoned send must not tear down a newer stream.
		if msg.ConversationID != a.dataModel.StreamingConversationID {
			return a, nil, true
		}
		if config.DebugLog != nil {
			config.DebugLog.Printf("[UI] stream error: %v", msg.Err)
		}
		a.dataModel.FinishStream()

		var apiErr *api.APIError
		if errors.As(msg.Err, &apiErr) && apiErr.RetryAfterSeconds > 0 {
			a.errorMessage = fmt.Sprintf("Rate limited: %s", apiErr.Message)
			a.updateViewportContent(true)
			return a, a.dataModel.StartRateLimitCountdown(apiErr.RetryAfterSeconds), true
		}

		a.errorMessage = fmt.Sprintf("Send failed: %v", msg.Err)
		a.updateViewportContent(true)
		return a, nil, true
	}

	return a, nil, false
}

func (a AppView) applyStreamEvent(msg streamEventMsg) (AppView, tea.Cmd, bool) {
	event := msg.Event

	switch event.Kind {
	case stream.KindDelta:
		a.dataModel.StreamAccum += event.Text
		a.updateStreamingViewport()
		return a, a.dataModel.ListenStream(), true

	case stream.KindMetadata:
		a.dataModel.LastMetadata = event.Metadata
		return a, a.dataModel.ListenStream(), true

	case stream.KindUserMessage:
		a.dataModel.ConfirmUserMessage(event.Message)
		return a, a.dataModel.ListenStream(), true

	case stream.KindDone:
		text := a.dataModel.StreamAccum
		if event.Message != nil && event.Message.Content != "" {
			text = event.Message.Content
		}
		return a.finalizeResponse(msg.ConversationID, text)

	case stream.KindError:
		a.dataModel.FinishStream()
		a.errorMessage = fmt.Sprintf("Coach error: %s", event.ErrMessage)
		a.updateViewportContent(true)
		return a, nil, true
	}

	return a, a.dataModel.ListenStream(), true
}

// finalizeResponse closes out a completed stream: commit the assistant
// message, reconcile with the server, and check whether the coach is asking
// the user to authorize a provider.
func (a AppView) finalizeResponse(conversationID, text string) (AppView, tea.Cmd, bool) {
	lastPrompt := lastUserPrompt(a.dataModel.Messages)
	a.dataModel.FinishStream()

	var cmds []tea.Cmd

	if text != "" {
		a.dataModel.Messages = append(a.dataModel.Messages, Message{
			ID:        a.dataModel.LastMetadata.MessageID,
			Role:      "assistant",
			Content:   text,
			Rendered:  text,
			Timestamp: time.Now(),
		})
		cmds = append(cmds, a.renderMarkdownAsync(len(a.dataModel.Messages)-1, text))
	}
	a.updateViewportContent(true)

	// Converge on the server's stored records.
	cmds = append(cmds, a.dataModel.RefreshMessages(conversationID))

	// Authorization hand-off, only while a provider connection is in
	// flight: defer the user's prompt and schedule the redirect. An
	// ordinary reply may well mention a provider URL (an activity link,
	// say) and must not trigger navigation.
	if a.dataModel.ConnectingProvider != "" {
		if url, found := appmodel.FindAuthorizationURL(text, a.dataModel.Config.ProviderDomains); found {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[UI] authorization link detected, scheduling redirect")
			}
			if lastPrompt != "" {
				if err := a.dataModel.EnqueuePending(storage.PendingAction{Prompt: lastPrompt}); err != nil {
					if config.DebugLog != nil {
						config.DebugLog.Printf("[UI] failed to defer action: %v", err)
					}
				}
			}
			cmds = append(cmds, appmodel.NavigateAfterDelay(url))
		}
	}

	return a, tea.Batch(cmds...), true
}

func lastUserPrompt(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Content
		}
	}
	return ""
}
