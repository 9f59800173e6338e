package storage

import (
	"os"
	"path/filepath"
	"strings"
)

// ConversationCache remembers which conversation was open so a restart (or a
// return from an authorization round-trip) lands the user back where they
// were. The server owns the conversations themselves.
type ConversationCache struct {
	dataDir string
}

func NewConversationCache(dataDir string) *ConversationCache {
	return &ConversationCache{dataDir: dataDir}
}

// SaveCurrentConversationID saves the ID of the open conversation
func (c *ConversationCache) SaveCurrentConversationID(id string) error {
	path := filepath.Join(c.dataDir, "current_conversation.id")
	return os.WriteFile(path, []byte(id), 0600)
}

// LoadCurrentConversationID loads the ID of the last open conversation
func (c *ConversationCache) LoadCurrentConversationID() (string, error) {
	path := filepath.Join(c.dataDir, "current_conversation.id")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// ClearCurrentConversationID removes the cached ID
func (c *ConversationCache) ClearCurrentConversationID() error {
	path := filepath.Join(c.dataDir, "current_conversation.id")
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
