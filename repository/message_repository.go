package repository

import (
	"context"

	"pharmassist-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MessageRepository handles database operations for chat messages
type MessageRepository struct {
	db *pgxpool.Pool
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create persists a chat message. Messages are immutable once created.
func (r *MessageRepository) Create(ctx context.Context, message *models.ChatMessage) error {
	query := `
		INSERT INTO chat_messages (session_id, role, content, sources, confidence_score)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, timestamp`

	err := r.db.QueryRow(
		ctx, query,
		message.SessionID,
		message.Role,
		message.Content,
		message.Sources,
		message.ConfidenceScore,
	).Scan(&message.ID, &message.Timestamp)

	return err
}

// ListBySessionID retrieves a session's messages ordered by timestamp ascending
func (r *MessageRepository) ListBySessionID(ctx context.Context, sessionID uuid.UUID) ([]*models.ChatMessage, error) {
	query := `
		SELECT id, session_id, role, content, timestamp, sources, confidence_score
		FROM chat_messages
		WHERE session_id = $1
		ORDER BY timestamp ASC`

	rows, err := r.db.Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*models.ChatMessage
	for rows.Next() {
		message := &models.ChatMessage{}
		err := rows.Scan(
			&message.ID,
			&message.SessionID,
			&message.Role,
			&message.Content,
			&message.Timestamp,
			&message.Sources,
			&message.ConfidenceScore,
		)
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}

	return messages, rows.Err()
}
