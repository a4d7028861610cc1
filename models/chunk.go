package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ChunkMetadata holds per-chunk metadata stored as JSONB
type ChunkMetadata struct {
	WordCount  int `json:"word_count"`
	PageNumber int `json:"page_number,omitempty"`
}

// Value implements driver.Valuer for JSONB
func (m ChunkMetadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}

// Scan implements sql.Scanner for JSONB
func (m *ChunkMetadata) Scan(value interface{}) error {
	if value == nil {
		*m = ChunkMetadata{}
		return nil
	}

	// Handle different types that pgx might return for JSONB
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		*m = ChunkMetadata{}
		return nil
	}

	if len(bytes) == 0 {
		*m = ChunkMetadata{}
		return nil
	}

	return json.Unmarshal(bytes, m)
}

// DocumentChunk represents a bounded slice of a document's extracted text.
// Embedding is optional and unused by the keyword retriever; it is populated
// by cmd/build-embeddings for a future semantic retriever.
type DocumentChunk struct {
	ID         uuid.UUID     `json:"id"`
	FileID     uuid.UUID     `json:"file_id"`
	Content    string        `json:"content"`
	ChunkIndex int           `json:"chunk_index"`
	Embedding  []float64     `json:"embedding,omitempty"`
	Metadata   ChunkMetadata `json:"metadata"`
	CreatedAt  time.Time     `json:"created_at"`

	// DocumentName is the parent file's original name, populated on retrieval
	DocumentName string `json:"document_name,omitempty"`
}
