package model

import (
	tea "github.com/charmbracelet/bubbletea"

	"coachtui/config"
	"coachtui/storage"
)

// EnqueuePending durably stores a chat action that cannot run until the
// provider connection completes. Written before navigating away so the
// intent survives even if this process never sees the completion.
func (m *Model) EnqueuePending(action storage.PendingAction) error {
	if m.Signals == nil {
		return nil
	}
	// Record the conversation's persona alongside the prompt so a replay
	// can recreate the conversation if it is gone by then.
	if action.SystemPrompt == "" && m.CurrentConversation != nil {
		action.SystemPrompt = m.CurrentConversation.SystemPrompt
	}
	if err := m.Signals.PutPendingAction(action); err != nil {
		return err
	}
	if m.CurrentConversation != nil {
		if err := m.Signals.PutConversationRestore(m.CurrentConversation.ID); err != nil {
			return err
		}
	}
	return nil
}

// RecordConversationRestore remembers the open conversation so it can be
// reopened when the authorization round-trip finishes. Used by explicit
// connect commands that have no deferred prompt to store.
func (m *Model) RecordConversationRestore() error {
	if m.Signals == nil || m.CurrentConversation == nil {
		return nil
	}
	return m.Signals.PutConversationRestore(m.CurrentConversation.ID)
}

// TryReplay claims the stored deferred action, if any, and hands it back to
// the update loop. The claim removes the record before the action is looked
// at, so a replay can only ever happen once no matter how many triggers race.
// While a response is streaming, or with no conversation open, the action
// stays queued untouched for a later trigger.
func (m *Model) TryReplay() tea.Cmd {
	if m.Signals == nil {
		return nil
	}
	if m.Streaming || m.CurrentConversation == nil {
		return nil
	}

	action, ok, err := m.Signals.TakePendingAction()
	if err != nil {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[Model] pending action claim failed: %v", err)
		}
		return nil
	}
	if !ok {
		return nil
	}

	claimed := *action
	return func() tea.Msg {
		return PendingReplayMsg{Action: claimed}
	}
}
