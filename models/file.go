package models

import (
	"time"

	"github.com/google/uuid"
)

// FileStatus represents the processing status of an uploaded file
type FileStatus string

const (
	FileStatusProcessing FileStatus = "processing"
	FileStatusCompleted  FileStatus = "completed"
	FileStatusFailed     FileStatus = "failed"
)

// UploadedFile represents an uploaded document
type UploadedFile struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"user_id"`
	Filename     string     `json:"filename"`
	OriginalName string     `json:"original_name"`
	FileSize     int64      `json:"file_size"`
	FileType     string     `json:"file_type"`
	Status       FileStatus `json:"status"`
	ChunksCount  int        `json:"chunks_count"`
	UploadDate   time.Time  `json:"upload_date"`
}
