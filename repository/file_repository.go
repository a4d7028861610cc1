package repository

import (
	"context"

	"pharmassist-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// FileRepository handles database operations for uploaded files
type FileRepository struct {
	db *pgxpool.Pool
}

// NewFileRepository creates a new file repository
func NewFileRepository(db *pgxpool.Pool) *FileRepository {
	return &FileRepository{db: db}
}

// Create creates a new uploaded file record
func (r *FileRepository) Create(ctx context.Context, file *models.UploadedFile) error {
	query := `
		INSERT INTO uploaded_files (
			id, user_id, filename, original_name, file_size, file_type, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING upload_date`

	err := r.db.QueryRow(
		ctx, query,
		file.ID,
		file.UserID,
		file.Filename,
		file.OriginalName,
		file.FileSize,
		file.FileType,
		file.Status,
	).Scan(&file.UploadDate)

	return err
}

// GetByID retrieves an uploaded file by ID
func (r *FileRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.UploadedFile, error) {
	file := &models.UploadedFile{}
	query := `
		SELECT id, user_id, filename, original_name, file_size, file_type, status, chunks_count, upload_date
		FROM uploaded_files
		WHERE id = $1`

	err := r.db.QueryRow(ctx, query, id).Scan(
		&file.ID,
		&file.UserID,
		&file.Filename,
		&file.OriginalName,
		&file.FileSize,
		&file.FileType,
		&file.Status,
		&file.ChunksCount,
		&file.UploadDate,
	)

	if err != nil {
		return nil, err
	}

	return file, nil
}

// ListByUserID retrieves all uploaded files for a user, newest first
func (r *FileRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*models.UploadedFile, error) {
	query := `
		SELECT id, user_id, filename, original_name, file_size, file_type, status, chunks_count, upload_date
		FROM uploaded_files
		WHERE user_id = $1
		ORDER BY upload_date DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []*models.UploadedFile
	for rows.Next() {
		file := &models.UploadedFile{}
		err := rows.Scan(
			&file.ID,
			&file.UserID,
			&file.Filename,
			&file.OriginalName,
			&file.FileSize,
			&file.FileType,
			&file.Status,
			&file.ChunksCount,
			&file.UploadDate,
		)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}

	return files, rows.Err()
}

// UpdateStatus updates the processing status and chunk count of a file
func (r *FileRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.FileStatus, chunksCount int) error {
	query := `UPDATE uploaded_files SET status = $2, chunks_count = $3 WHERE id = $1`
	_, err := r.db.Exec(ctx, query, id, status, chunksCount)
	return err
}

// UpdateStatusTx updates status and chunk count within an existing transaction
func (r *FileRepository) UpdateStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status models.FileStatus, chunksCount int) error {
	query := `UPDATE uploaded_files SET status = $2, chunks_count = $3 WHERE id = $1`
	_, err := tx.Exec(ctx, query, id, status, chunksCount)
	return err
}

// Delete deletes a file record owned by the given user.
// Chunks are removed by the ON DELETE CASCADE on document_chunks.
func (r *FileRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	query := `DELETE FROM uploaded_files WHERE id = $1 AND user_id = $2`
	_, err := r.db.Exec(ctx, query, id, userID)
	return err
}
