package repository

import (
	"context"
	"fmt"
	"strings"

	"pharmassist-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ChunkRepository handles database operations for document chunks
type ChunkRepository struct {
	db *pgxpool.Pool
}

// NewChunkRepository creates a new chunk repository
func NewChunkRepository(db *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// formatVector formats an embedding vector as a string for pgx
func formatVector(embedding []float64) string {
	if len(embedding) == 0 {
		return "[]"
	}
	var parts []string
	for _, v := range embedding {
		parts = append(parts, fmt.Sprintf("%.6f", v))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// InsertBatchTx inserts a document's chunks within an existing transaction
func (r *ChunkRepository) InsertBatchTx(ctx context.Context, tx pgx.Tx, chunks []models.DocumentChunk) error {
	query := `
		INSERT INTO document_chunks (id, file_id, content, chunk_index, metadata)
		VALUES ($1, $2, $3, $4, $5)`

	for i := range chunks {
		_, err := tx.Exec(ctx, query,
			chunks[i].ID,
			chunks[i].FileID,
			chunks[i].Content,
			chunks[i].ChunkIndex,
			chunks[i].Metadata,
		)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", chunks[i].ChunkIndex, err)
		}
	}

	return nil
}

// Search performs a full-text search over chunk content scoped to the owner's
// files, optionally restricted to a set of file IDs. Ranking is delegated to
// Postgres ts_rank; an empty result is returned as an empty slice, not an
// error.
func (r *ChunkRepository) Search(
	ctx context.Context,
	query string,
	fileIDs []uuid.UUID,
	userID uuid.UUID,
	limit int,
) ([]models.DocumentChunk, error) {
	if limit <= 0 {
		limit = 5
	}

	var fileFilter string
	args := []interface{}{userID, query}
	if len(fileIDs) > 0 {
		fileFilter = "AND c.file_id = ANY($3)"
		args = append(args, fileIDs)
	}
	args = append(args, limit)

	sql := fmt.Sprintf(`
		SELECT
			c.id,
			c.file_id,
			c.content,
			c.chunk_index,
			c.metadata,
			c.created_at,
			f.original_name
		FROM document_chunks c
		JOIN uploaded_files f ON f.id = c.file_id
		WHERE
			f.user_id = $1
			AND to_tsvector('english', c.content) @@ websearch_to_tsquery('english', $2)
			%s
		ORDER BY
			ts_rank(to_tsvector('english', c.content), websearch_to_tsquery('english', $2)) DESC
		LIMIT $%d`, fileFilter, len(args))

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer rows.Close()

	var chunks []models.DocumentChunk
	for rows.Next() {
		var chunk models.DocumentChunk
		err := rows.Scan(
			&chunk.ID,
			&chunk.FileID,
			&chunk.Content,
			&chunk.ChunkIndex,
			&chunk.Metadata,
			&chunk.CreatedAt,
			&chunk.DocumentName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunks = append(chunks, chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chunks: %w", err)
	}

	return chunks, nil
}

// ListMissingEmbeddings returns chunk IDs and contents that have no embedding
// yet, for the backfill tool
func (r *ChunkRepository) ListMissingEmbeddings(ctx context.Context, limit int) ([]models.DocumentChunk, error) {
	query := `
		SELECT id, file_id, content, chunk_index
		FROM document_chunks
		WHERE embedding IS NULL
		ORDER BY created_at ASC
		LIMIT $1`

	// Non-positive limit means no cap (LIMIT NULL)
	var maxRows interface{}
	if limit > 0 {
		maxRows = limit
	}
	rows, err := r.db.Query(ctx, query, maxRows)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []models.DocumentChunk
	for rows.Next() {
		var chunk models.DocumentChunk
		if err := rows.Scan(&chunk.ID, &chunk.FileID, &chunk.Content, &chunk.ChunkIndex); err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}

	return chunks, rows.Err()
}

// UpdateEmbedding stores a chunk's embedding vector
func (r *ChunkRepository) UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float64) error {
	query := `UPDATE document_chunks SET embedding = $2::vector WHERE id = $1`
	_, err := r.db.Exec(ctx, query, id, formatVector(embedding))
	return err
}
