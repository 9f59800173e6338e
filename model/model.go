package model

import (
	"context"
	"time"

	"coachtui/api"
	"coachtui/config"
	"coachtui/storage"
	"coachtui/stream"
)

// Model holds the core application data and business logic state
type Model struct {
	// Core dependencies
	Config            *config.Config
	API               *api.Client
	Signals           *storage.SignalStore
	ConversationCache *storage.ConversationCache

	// Application data
	Conversations       []api.ConversationSummary
	Messages            []Message
	CurrentConversation *api.Conversation
	Connections         []api.ConnectionStatus

	// Streaming state. StreamingConversationID pins in-flight events to the
	// conversation they belong to; events for any other conversation are
	// dropped by the update loop.
	Streaming               bool
	StreamingConversationID string
	StreamAccum             string
	LastMetadata            stream.Metadata

	// Provider connection state
	ConnectingProvider string
	Notification       string

	// Rate limiting: seconds until the server will accept another message
	RetryAfterSeconds int

	// Runtime state (not UI)
	Quitting bool

	// Application metadata
	Version string

	streamEvents    chan stream.Event
	streamCancel    context.CancelFunc
	oauthProcessing bool
	lastDataVersion int64
}

// NewModel creates a new Model with the given configuration
func NewModel(cfg *config.Config, client *api.Client, signals *storage.SignalStore, cache *storage.ConversationCache, version string) *Model {
	m := &Model{
		Config:            cfg,
		API:               client,
		Signals:           signals,
		ConversationCache: cache,
		Version:           version,
	}

	if signals != nil {
		// Seed the change cursor so the first poll doesn't fire on history.
		if v, err := signals.DataVersion(); err == nil {
			m.lastDataVersion = v
		} else if config.DebugLog != nil {
			config.DebugLog.Printf("[Model] initial data version read failed: %v", err)
		}
	}

	return m
}

// IsProviderConnected reports whether the named provider is linked.
func (m *Model) IsProviderConnected(provider string) bool {
	for _, status := range m.Connections {
		if status.Provider == provider {
			return status.Connected
		}
	}
	return false
}

// SetMessagesFromAPI replaces the local transcript with server records.
func (m *Model) SetMessagesFromAPI(records []api.Message) {
	messages := make([]Message, 0, len(records))
	for _, rec := range records {
		ts, _ := time.Parse(time.RFC3339, rec.CreatedAt)
		messages = append(messages, Message{
			ID:        rec.ID,
			Role:      rec.Role,
			Content:   rec.Content,
			Timestamp: ts,
		})
	}
	m.Messages = messages
}
