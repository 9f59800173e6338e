package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Durable keys shared between the coordinator and the callback listener.
// These survive process restarts; anything that must outlive a navigation
// round-trip goes here, never in memory only.
const (
	KeyOAuthResult       = "oauth_result"
	KeyOAuthConversation = "oauth_conversation"
	KeyPendingAction     = "pending_coach_action"
)

// OAuthResult is the provider-connection completion record written by the
// callback side and claimed by the coordinator. Timestamp is epoch millis.
type OAuthResult struct {
	Type      string `json:"type"`
	Provider  string `json:"provider"`
	Success   bool   `json:"success"`
	Timestamp int64  `json:"timestamp"`
}

// PendingAction is a user intent that could not execute immediately.
type PendingAction struct {
	Prompt       string `json:"prompt"`
	SystemPrompt string `json:"systemPrompt,omitempty"`
}

// SignalStore is the shared mutable state between execution contexts: the
// TUI process and the callback listener both read and write it. There is no
// locking protocol on top; instead every consumer claims records with Take,
// which removes the row in the same transaction that reads it, so two racing
// readers can never both observe the same signal.
type SignalStore struct {
	db      *sql.DB
	dataDir string
}

func NewSignalStore(dataDir string) (*SignalStore, error) {
	dbPath := filepath.Join(dataDir, "signals.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open signal store: %w", err)
	}

	// PRAGMA data_version is per-connection; pin the pool to one so
	// DataVersion reflects what this store has and has not seen.
	db.SetMaxOpenConns(1)

	// WAL lets the listener write while the TUI reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS signals (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create signals table: %w", err)
	}

	return &SignalStore{db: db, dataDir: dataDir}, nil
}

func (s *SignalStore) Close() error {
	return s.db.Close()
}

// Dir returns the data directory this store lives in.
func (s *SignalStore) Dir() string {
	return s.dataDir
}

// Put writes or replaces a signal.
func (s *SignalStore) Put(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO signals (key, value, updated_at) VALUES (?, ?, ?) "+
			"ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at",
		key, value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to write signal %s: %w", key, err)
	}
	return nil
}

// Get reads a signal without consuming it.
func (s *SignalStore) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM signals WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read signal %s: %w", key, err)
	}
	return value, true, nil
}

// Take reads and removes a signal atomically. The removal happens in the
// same transaction as the read: whichever caller commits first owns the
// value, every other caller sees an empty store.
func (s *SignalStore) Take(key string) (string, bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return "", false, fmt.Errorf("failed to begin claim: %w", err)
	}
	defer tx.Rollback()

	var value string
	err = tx.QueryRow("SELECT value FROM signals WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read signal %s: %w", key, err)
	}

	if _, err := tx.Exec("DELETE FROM signals WHERE key = ?", key); err != nil {
		return "", false, fmt.Errorf("failed to remove signal %s: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return "", false, fmt.Errorf("failed to commit claim: %w", err)
	}

	return value, true, nil
}

// Delete removes a signal if present.
func (s *SignalStore) Delete(key string) error {
	if _, err := s.db.Exec("DELETE FROM signals WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete signal %s: %w", key, err)
	}
	return nil
}

// DataVersion reports sqlite's data_version pragma, which changes whenever
// another connection has modified the database. The coordinator polls it as
// its storage-change trigger.
func (s *SignalStore) DataVersion() (int64, error) {
	var v int64
	if err := s.db.QueryRow("PRAGMA data_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to read data version: %w", err)
	}
	return v, nil
}

// PutOAuthResult writes the completion record.
func (s *SignalStore) PutOAuthResult(result OAuthResult) error {
	if result.Type == "" {
		result.Type = "oauth_completed"
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal oauth result: %w", err)
	}
	return s.Put(KeyOAuthResult, string(data))
}

// TakeOAuthResult claims the completion record, if any. A record that fails
// to parse is discarded (it was claimed either way).
func (s *SignalStore) TakeOAuthResult() (*OAuthResult, bool, error) {
	value, ok, err := s.Take(KeyOAuthResult)
	if err != nil || !ok {
		return nil, false, err
	}

	var result OAuthResult
	if err := json.Unmarshal([]byte(value), &result); err != nil {
		return nil, false, nil
	}
	return &result, true, nil
}

// PutPendingAction durably stores a blocked user intent.
func (s *SignalStore) PutPendingAction(action PendingAction) error {
	data, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("failed to marshal pending action: %w", err)
	}
	return s.Put(KeyPendingAction, string(data))
}

// TakePendingAction claims the stored intent, if any.
func (s *SignalStore) TakePendingAction() (*PendingAction, bool, error) {
	value, ok, err := s.Take(KeyPendingAction)
	if err != nil || !ok {
		return nil, false, err
	}

	var action PendingAction
	if err := json.Unmarshal([]byte(value), &action); err != nil {
		return nil, false, nil
	}
	return &action, true, nil
}

// PutConversationRestore records the conversation to land back in after the
// authorization round-trip.
func (s *SignalStore) PutConversationRestore(conversationID string) error {
	return s.Put(KeyOAuthConversation, conversationID)
}

// TakeConversationRestore claims the recorded conversation id, if any.
func (s *SignalStore) TakeConversationRestore() (string, bool, error) {
	return s.Take(KeyOAuthConversation)
}

// PurgeOAuthRecords drops the completion record and its companions. Used
// when a stale completion is found: nothing may act on it, and nothing may
// act on the context that was recorded alongside it.
func (s *SignalStore) PurgeOAuthRecords() error {
	for _, key := range []string{KeyOAuthResult, KeyOAuthConversation, KeyPendingAction} {
		if err := s.Delete(key); err != nil {
			return err
		}
	}
	return nil
}
