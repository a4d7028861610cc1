package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MessageRole represents the sender of a chat message
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ChatSession represents a named conversation scoped to a user and a set of files
type ChatSession struct {
	ID        uuid.UUID   `json:"id"`
	UserID    uuid.UUID   `json:"user_id"`
	Title     string      `json:"title"`
	FileIDs   []uuid.UUID `json:"file_ids"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`

	// MessageCount is populated on listing, not stored
	MessageCount int `json:"message_count,omitempty"`
}

// MessageSources represents the chunks an assistant message was grounded on
type MessageSources []DocumentChunk

// Value implements driver.Valuer for JSONB
func (s MessageSources) Value() (driver.Value, error) {
	if s == nil {
		return json.Marshal(MessageSources{})
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner for JSONB
func (s *MessageSources) Scan(value interface{}) error {
	if value == nil {
		*s = make(MessageSources, 0)
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		*s = make(MessageSources, 0)
		return nil
	}

	if len(bytes) == 0 {
		*s = make(MessageSources, 0)
		return nil
	}

	return json.Unmarshal(bytes, s)
}

// ChatMessage represents one turn in a session. Immutable once created.
// Sources and ConfidenceScore are set for assistant turns only.
type ChatMessage struct {
	ID              uuid.UUID      `json:"id"`
	SessionID       uuid.UUID      `json:"session_id"`
	Role            MessageRole    `json:"role"`
	Content         string         `json:"content"`
	Timestamp       time.Time      `json:"timestamp"`
	Sources         MessageSources `json:"sources,omitempty"`
	ConfidenceScore *float64       `json:"confidence_score,omitempty"`
}
