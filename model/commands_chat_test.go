package model

import (
	"testing"
	"time"

	"coachtui/api"
	"coachtui/config"
	"coachtui/storage"
	"coachtui/stream"
)

func newChatTestModel(t *testing.T) *Model {
	t.Helper()

	cfg := &config.Config{ProviderDomains: config.DefaultProviderDomains()}
	m := NewModel(cfg, nil, nil, nil, "test")
	m.CurrentConversation = &api.Conversation{ID: "conv-1", Title: "Test"}
	return m
}

func TestStartStreamSetsState(t *testing.T) {
	m := newChatTestModel(t)

	cmd := m.StartStream("plan my week")
	if cmd == nil {
		t.Fatal("StartStream returned nil for a valid send")
	}

	if !m.Streaming {
		t.Error("Streaming not set")
	}
	if m.StreamingConversationID != "conv-1" {
		t.Errorf("StreamingConversationID = %q, want conv-1", m.StreamingConversationID)
	}
	if len(m.Messages) != 1 {
		t.Fatalf("len(Messages) = %d, want 1", len(m.Messages))
	}
	msg := m.Messages[0]
	if msg.Role != "user" || msg.Content != "plan my week" || !msg.Pending {
		t.Errorf("local echo = %+v", msg)
	}
	if msg.ID == "" {
		t.Error("local echo has no temporary id")
	}
}

func TestStartStreamRejectsWhileStreaming(t *testing.T) {
	m := newChatTestModel(t)

	if cmd := m.StartStream("first"); cmd == nil {
		t.Fatal("first send rejected")
	}
	if cmd := m.StartStream("second"); cmd != nil {
		t.Error("second send accepted while streaming")
	}
	if len(m.Messages) != 1 {
		t.Errorf("len(Messages) = %d, want 1", len(m.Messages))
	}
}

func TestStartStreamRejections(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(m *Model)
		content string
	}{
		{
			name:    "no conversation",
			prepare: func(m *Model) { m.CurrentConversation = nil },
			content: "hello",
		},
		{
			name:    "empty content",
			prepare: func(m *Model) {},
			content: "",
		},
		{
			name:    "rate limited",
			prepare: func(m *Model) { m.RetryAfterSeconds = 30 },
			content: "hello",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newChatTestModel(t)
			tt.prepare(m)
			if cmd := m.StartStream(tt.content); cmd != nil {
				t.Error("send accepted")
			}
			if m.Streaming {
				t.Error("Streaming set after rejected send")
			}
		})
	}
}

func TestFinishStreamClearsState(t *testing.T) {
	m := newChatTestModel(t)
	m.StartStream("hello")
	m.StreamAccum = "partial response"

	m.FinishStream()

	if m.Streaming || m.StreamingConversationID != "" || m.StreamAccum != "" {
		t.Errorf("state not cleared: %+v", m)
	}
	if m.ListenStream() != nil {
		t.Error("ListenStream still armed after FinishStream")
	}

	// A new send is accepted again.
	if cmd := m.StartStream("next"); cmd == nil {
		t.Error("send rejected after FinishStream")
	}
}

func TestConfirmUserMessage(t *testing.T) {
	m := newChatTestModel(t)
	m.StartStream("hello")
	tempID := m.Messages[0].ID

	m.ConfirmUserMessage(&stream.Message{ID: "server-1", Role: "user", Content: "hello"})

	msg := m.Messages[0]
	if msg.Pending {
		t.Error("message still pending after confirmation")
	}
	if msg.ID != "server-1" || msg.ID == tempID {
		t.Errorf("message id = %q, want server-1", msg.ID)
	}
}

func TestListenStreamDeliversEvents(t *testing.T) {
	m := newChatTestModel(t)
	m.Streaming = true
	m.StreamingConversationID = "conv-1"

	events := make(chan stream.Event, 2)
	m.streamEvents = events
	events <- stream.Event{Kind: stream.KindDelta, Text: "Hi"}
	close(events)

	msg := m.ListenStream()()
	eventMsg, ok := msg.(StreamEventMsg)
	if !ok {
		t.Fatalf("first msg = %T, want StreamEventMsg", msg)
	}
	if eventMsg.ConversationID != "conv-1" || eventMsg.Event.Text != "Hi" {
		t.Errorf("event msg = %+v", eventMsg)
	}

	msg = m.ListenStream()()
	closedMsg, ok := msg.(StreamClosedMsg)
	if !ok {
		t.Fatalf("second msg = %T, want StreamClosedMsg", msg)
	}
	if closedMsg.ConversationID != "conv-1" {
		t.Errorf("closed msg = %+v", closedMsg)
	}
}

func TestSetMessagesFromAPI(t *testing.T) {
	m := newChatTestModel(t)
	m.Messages = []Message{{Role: "user", Content: "stale local state"}}

	m.SetMessagesFromAPI([]api.Message{
		{ID: "m1", Role: "user", Content: "hi", CreatedAt: "2025-06-01T12:00:00Z"},
		{ID: "m2", Role: "assistant", Content: "hello", CreatedAt: "2025-06-01T12:00:05Z"},
	})

	if len(m.Messages) != 2 {
		t.Fatalf("len(Messages) = %d, want 2", len(m.Messages))
	}
	if m.Messages[0].ID != "m1" || m.Messages[1].Role != "assistant" {
		t.Errorf("Messages = %+v", m.Messages)
	}
	want := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if !m.Messages[0].Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", m.Messages[0].Timestamp, want)
	}
}

func newChatTestModelWithSignals(t *testing.T) *Model {
	t.Helper()

	signals, err := storage.NewSignalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewSignalStore: %v", err)
	}
	t.Cleanup(func() { signals.Close() })

	m := newChatTestModel(t)
	m.Signals = signals
	return m
}

func TestEnqueueAndReplayPending(t *testing.T) {
	m := newChatTestModelWithSignals(t)

	if err := m.EnqueuePending(storage.PendingAction{Prompt: "plan my week"}); err != nil {
		t.Fatalf("EnqueuePending: %v", err)
	}

	// Conversation restore recorded alongside the action.
	if id, ok, _ := m.Signals.Get(storage.KeyOAuthConversation); !ok || id != "conv-1" {
		t.Errorf("conversation restore = (%q, %v), want (conv-1, true)", id, ok)
	}

	cmd := m.TryReplay()
	if cmd == nil {
		t.Fatal("TryReplay found nothing")
	}
	replay, ok := cmd().(PendingReplayMsg)
	if !ok {
		t.Fatalf("replay msg type = %T", cmd())
	}
	if replay.Action.Prompt != "plan my week" {
		t.Errorf("replayed prompt = %q", replay.Action.Prompt)
	}

	// The claim consumed the action: no second replay.
	if m.TryReplay() != nil {
		t.Error("action replayed twice")
	}
}

// TestEnqueuePendingCarriesPersona verifies the conversation's system prompt
// is recorded with the action so a replay can recreate the conversation.
func TestEnqueuePendingCarriesPersona(t *testing.T) {
	m := newChatTestModelWithSignals(t)
	m.CurrentConversation.SystemPrompt = "You are an encouraging triathlon coach."

	if err := m.EnqueuePending(storage.PendingAction{Prompt: "plan my week"}); err != nil {
		t.Fatalf("EnqueuePending: %v", err)
	}

	action, ok, err := m.Signals.TakePendingAction()
	if err != nil || !ok {
		t.Fatalf("TakePendingAction = (%v, %v)", ok, err)
	}
	if action.SystemPrompt != "You are an encouraging triathlon coach." {
		t.Errorf("SystemPrompt = %q", action.SystemPrompt)
	}
}

// TestTryReplayWaits verifies the action stays queued, unclaimed, while a
// response is streaming or no conversation is open.
func TestTryReplayWaits(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(m *Model)
	}{
		{
			name:    "while streaming",
			prepare: func(m *Model) { m.Streaming = true },
		},
		{
			name:    "no conversation",
			prepare: func(m *Model) { m.CurrentConversation = nil },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newChatTestModelWithSignals(t)
			if err := m.Signals.PutPendingAction(storage.PendingAction{Prompt: "plan my week"}); err != nil {
				t.Fatalf("PutPendingAction: %v", err)
			}
			tt.prepare(m)

			if m.TryReplay() != nil {
				t.Error("replay ran despite the guard")
			}

			// Action still queued for the next trigger.
			if _, ok, _ := m.Signals.Get(storage.KeyPendingAction); !ok {
				t.Error("pending action was consumed")
			}
		})
	}
}
