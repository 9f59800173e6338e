package model

import (
	"context"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"coachtui/config"
	"coachtui/stream"
)

// StartStream is the single send path: every chat message, whether typed,
// replayed from a deferred action, or issued by a command handler, goes
// through here. It appends the user's message locally, marks the model
// streaming and returns the command that opens the response stream.
// Returns nil when a stream is already in flight or no conversation is open.
func (m *Model) StartStream(content string) tea.Cmd {
	if m.Streaming || m.CurrentConversation == nil || content == "" {
		return nil
	}
	if m.RetryAfterSeconds > 0 {
		return nil
	}

	convID := m.CurrentConversation.ID
	m.Streaming = true
	m.StreamingConversationID = convID
	m.StreamAccum = ""
	m.LastMetadata = stream.Metadata{}

	// Optimistic local echo. The server's user_message event replaces the
	// temporary id with the stored one.
	m.Messages = append(m.Messages, Message{
		ID:        uuid.New().String(),
		Role:      "user",
		Content:   content,
		Timestamp: time.Now(),
		Pending:   true,
	})

	events := make(chan stream.Event, 32)
	m.streamEvents = events
	client := m.API

	ctx, cancel := context.WithCancel(context.Background())
	m.streamCancel = cancel

	return func() tea.Msg {
		body, err := client.SendMessageStream(ctx, convID, content)
		if err != nil {
			close(events)
			return StreamErrorMsg{ConversationID: convID, Err: err}
		}

		go decodeStream(body, events)
		return StreamOpenedMsg{ConversationID: convID}
	}
}

// ListenStream returns the command that delivers the next stream event. The
// update loop re-issues it after every StreamEventMsg until the channel
// closes.
func (m *Model) ListenStream() tea.Cmd {
	events := m.streamEvents
	convID := m.StreamingConversationID
	if events == nil {
		return nil
	}

	return func() tea.Msg {
		event, ok := <-events
		if !ok {
			return StreamClosedMsg{ConversationID: convID}
		}
		return StreamEventMsg{ConversationID: convID, Event: event}
	}
}

// FinishStream clears in-flight streaming state and cancels the underlying
// request if it is still open. Safe to call more than once.
func (m *Model) FinishStream() {
	m.Streaming = false
	m.StreamingConversationID = ""
	m.StreamAccum = ""
	m.streamEvents = nil
	if m.streamCancel != nil {
		m.streamCancel()
		m.streamCancel = nil
	}
}

// ConfirmUserMessage swaps the optimistic local echo for the server's stored
// record once the user_message event arrives.
func (m *Model) ConfirmUserMessage(msg *stream.Message) {
	for i := len(m.Messages) - 1; i >= 0; i-- {
		if m.Messages[i].Pending && m.Messages[i].Role == "user" {
			m.Messages[i].ID = msg.ID
			m.Messages[i].Content = msg.Content
			m.Messages[i].Pending = false
			return
		}
	}
}

// decodeStream pumps the response body through the frame decoder and into
// the event channel. Runs on its own goroutine; closing the channel is the
// end-of-stream signal the listen command converts to StreamClosedMsg.
func decodeStream(body io.ReadCloser, events chan<- stream.Event) {
	defer body.Close()
	defer close(events)

	decoder := stream.NewDecoder()
	buf := make([]byte, 4096)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			for _, event := range decoder.Feed(buf[:n]) {
				events <- event
			}
		}
		if err != nil {
			for _, event := range decoder.Close() {
				events <- event
			}
			if err != io.EOF {
				if config.DebugLog != nil {
					config.DebugLog.Printf("[Stream] transport error: %v", err)
				}
				events <- stream.Event{Kind: stream.KindError, ErrMessage: err.Error()}
			}
			return
		}
	}
}
