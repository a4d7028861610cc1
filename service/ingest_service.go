package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"

	"pharmassist-backend/models"
	"pharmassist-backend/pdftext"
	"pharmassist-backend/repository"
	"pharmassist-backend/storage"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNoExtractableText = errors.New("document has no extractable text")
	ErrInvalidPDF        = errors.New("file is not a readable PDF")
)

// IngestService runs the upload pipeline for one document: extract text,
// store the raw file, chunk, and persist.
type IngestService struct {
	fileRepo  *repository.FileRepository
	chunkRepo *repository.ChunkRepository
	db        *pgxpool.Pool
	storage   storage.Storage
	chunker   *Chunker
}

// IngestServiceOption is a functional option for IngestService
type IngestServiceOption func(*IngestService)

// IngestWithFileRepository sets the file repository
func IngestWithFileRepository(repo *repository.FileRepository) IngestServiceOption {
	return func(s *IngestService) {
		s.fileRepo = repo
	}
}

// IngestWithChunkRepository sets the chunk repository
func IngestWithChunkRepository(repo *repository.ChunkRepository) IngestServiceOption {
	return func(s *IngestService) {
		s.chunkRepo = repo
	}
}

// IngestWithDatabase sets the database pool
func IngestWithDatabase(db *pgxpool.Pool) IngestServiceOption {
	return func(s *IngestService) {
		s.db = db
	}
}

// IngestWithStorage sets the raw file storage
func IngestWithStorage(st storage.Storage) IngestServiceOption {
	return func(s *IngestService) {
		s.storage = st
	}
}

// IngestWithChunker sets the chunker
func IngestWithChunker(c *Chunker) IngestServiceOption {
	return func(s *IngestService) {
		s.chunker = c
	}
}

// NewIngestService creates a new ingest service
func NewIngestService(opts ...IngestServiceOption) *IngestService {
	s := &IngestService{}
	for _, opt := range opts {
		opt(s)
	}
	if s.chunker == nil {
		s.chunker = NewChunker(DefaultChunkSize, DefaultChunkOverlap)
	}
	return s
}

// IngestPDF processes one uploaded PDF: extract text, create the file record,
// store the raw bytes, then write all chunks and the completed status in a
// single transaction. Any failure after the record exists triggers
// compensating cleanup so no document is left stuck in processing.
func (s *IngestService) IngestPDF(ctx context.Context, userID uuid.UUID, originalName string, data []byte) (*models.UploadedFile, error) {
	if s.fileRepo == nil || s.chunkRepo == nil || s.db == nil {
		return nil, errors.New("ingest service not fully configured")
	}

	text, err := pdftext.Extract(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}
	if text == "" {
		return nil, ErrNoExtractableText
	}

	fileID := uuid.New()
	file := &models.UploadedFile{
		ID:           fileID,
		UserID:       userID,
		Filename:     fileID.String() + ".pdf",
		OriginalName: originalName,
		FileSize:     int64(len(data)),
		FileType:     "application/pdf",
		Status:       models.FileStatusProcessing,
	}

	if err := s.fileRepo.Create(ctx, file); err != nil {
		return nil, fmt.Errorf("failed to create file record: %w", err)
	}

	storagePath := storage.ObjectPath(userID, fileID)
	if s.storage != nil {
		if err := s.storage.Upload(ctx, storagePath, bytes.NewReader(data)); err != nil {
			s.cleanup(ctx, userID, fileID, "")
			return nil, fmt.Errorf("failed to store file: %w", err)
		}
	}

	chunks := s.chunker.Chunk(text, fileID)
	if len(chunks) == 0 {
		s.cleanup(ctx, userID, fileID, storagePath)
		return nil, ErrNoExtractableText
	}

	if err := s.persistChunks(ctx, fileID, chunks); err != nil {
		s.cleanup(ctx, userID, fileID, storagePath)
		return nil, fmt.Errorf("failed to persist chunks: %w", err)
	}

	file.Status = models.FileStatusCompleted
	file.ChunksCount = len(chunks)
	return file, nil
}

// persistChunks writes a document's chunks and flips its status to completed
// atomically
func (s *IngestService) persistChunks(ctx context.Context, fileID uuid.UUID, chunks []models.DocumentChunk) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := s.chunkRepo.InsertBatchTx(ctx, tx, chunks); err != nil {
		return err
	}

	if err := s.fileRepo.UpdateStatusTx(ctx, tx, fileID, models.FileStatusCompleted, len(chunks)); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// cleanup undoes the partial state of a failed ingest. Errors here are only
// logged; the original failure is what gets reported.
func (s *IngestService) cleanup(ctx context.Context, userID, fileID uuid.UUID, storagePath string) {
	if storagePath != "" && s.storage != nil {
		if err := s.storage.Delete(ctx, storagePath); err != nil {
			log.Printf("Warning: failed to remove stored file %s during cleanup: %v", storagePath, err)
		}
	}
	if err := s.fileRepo.Delete(ctx, fileID, userID); err != nil {
		log.Printf("Warning: failed to remove file record %s during cleanup: %v", fileID, err)
		// At least get the record out of processing
		if err := s.fileRepo.UpdateStatus(ctx, fileID, models.FileStatusFailed, 0); err != nil {
			log.Printf("Warning: failed to mark file %s as failed: %v", fileID, err)
		}
	}
}

// DeleteFile removes a user's document: the stored object, then the record
// (chunks cascade)
func (s *IngestService) DeleteFile(ctx context.Context, userID, fileID uuid.UUID) error {
	if s.fileRepo == nil {
		return errors.New("file repository not set")
	}

	file, err := s.fileRepo.GetByID(ctx, fileID)
	if err != nil {
		return fmt.Errorf("file not found: %w", err)
	}
	if file.UserID != userID {
		return errors.New("file does not belong to user")
	}

	if s.storage != nil {
		if err := s.storage.Delete(ctx, storage.ObjectPath(userID, fileID)); err != nil {
			log.Printf("Warning: failed to delete stored file for %s: %v", fileID, err)
		}
	}

	return s.fileRepo.Delete(ctx, fileID, userID)
}
