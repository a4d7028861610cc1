package repository

import (
	"context"

	"pharmassist-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SessionRepository handles database operations for chat sessions
type SessionRepository struct {
	db *pgxpool.Pool
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create creates a new chat session
func (r *SessionRepository) Create(ctx context.Context, session *models.ChatSession) error {
	query := `
		INSERT INTO chat_sessions (user_id, title, file_ids)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`

	fileIDs := session.FileIDs
	if fileIDs == nil {
		fileIDs = []uuid.UUID{}
	}

	err := r.db.QueryRow(
		ctx, query,
		session.UserID,
		session.Title,
		fileIDs,
	).Scan(&session.ID, &session.CreatedAt, &session.UpdatedAt)

	return err
}

// GetByID retrieves a chat session by ID
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ChatSession, error) {
	session := &models.ChatSession{}
	query := `
		SELECT id, user_id, title, file_ids, created_at, updated_at
		FROM chat_sessions
		WHERE id = $1`

	err := r.db.QueryRow(ctx, query, id).Scan(
		&session.ID,
		&session.UserID,
		&session.Title,
		&session.FileIDs,
		&session.CreatedAt,
		&session.UpdatedAt,
	)

	if err != nil {
		return nil, err
	}

	return session, nil
}

// ListByUserID retrieves a user's chat sessions with message counts, most
// recently updated first
func (r *SessionRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*models.ChatSession, error) {
	query := `
		SELECT s.id, s.user_id, s.title, s.file_ids, s.created_at, s.updated_at,
			COUNT(m.id) AS message_count
		FROM chat_sessions s
		LEFT JOIN chat_messages m ON m.session_id = s.id
		WHERE s.user_id = $1
		GROUP BY s.id
		ORDER BY s.updated_at DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*models.ChatSession
	for rows.Next() {
		session := &models.ChatSession{}
		err := rows.Scan(
			&session.ID,
			&session.UserID,
			&session.Title,
			&session.FileIDs,
			&session.CreatedAt,
			&session.UpdatedAt,
			&session.MessageCount,
		)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	return sessions, rows.Err()
}

// Touch bumps a session's updated_at timestamp
func (r *SessionRepository) Touch(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE chat_sessions SET updated_at = NOW() WHERE id = $1`
	_, err := r.db.Exec(ctx, query, id)
	return err
}

// Delete deletes a session owned by the given user.
// Messages are removed by the ON DELETE CASCADE on chat_messages.
func (r *SessionRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	query := `DELETE FROM chat_sessions WHERE id = $1 AND user_id = $2`
	_, err := r.db.Exec(ctx, query, id, userID)
	return err
}
