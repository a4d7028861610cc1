package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"pharmassist-backend/models"
	"pharmassist-backend/repository"
	"pharmassist-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DocumentIngester runs the upload pipeline for one PDF
type DocumentIngester interface {
	IngestPDF(ctx context.Context, userID uuid.UUID, originalName string, data []byte) (*models.UploadedFile, error)
	DeleteFile(ctx context.Context, userID, fileID uuid.UUID) error
}

// UploadHandler handles HTTP requests for document upload and management
type UploadHandler struct {
	ingest       DocumentIngester
	fileRepo     *repository.FileRepository
	maxFileSize  int64
	maxBatchSize int
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(ingest DocumentIngester, fileRepo *repository.FileRepository) *UploadHandler {
	return &UploadHandler{
		ingest:       ingest,
		fileRepo:     fileRepo,
		maxFileSize:  10 * 1024 * 1024, // 10MB
		maxBatchSize: 5,
	}
}

// UploadFiles handles POST /api/upload
//
// The whole batch is validated (count, type, size) before any document is
// chunked; a violation rejects the batch without creating partial state.
func (h *UploadHandler) UploadFiles(c *gin.Context) {
	userID, ok := h.requireUserID(c, c.PostForm("user_id"))
	if !ok {
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_FORM",
				"message": "Invalid multipart form",
			},
		})
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "NO_FILES",
				"message": "No files provided",
			},
		})
		return
	}

	if len(files) > h.maxBatchSize {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "TOO_MANY_FILES",
				"message": fmt.Sprintf("Maximum %d files allowed", h.maxBatchSize),
			},
		})
		return
	}

	for _, fileHeader := range files {
		if !isPDF(fileHeader) {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INVALID_FILE_TYPE",
					"message": "Only PDF files are allowed",
				},
			})
			return
		}
		if fileHeader.Size > h.maxFileSize {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "FILE_TOO_LARGE",
					"message": fmt.Sprintf("File size must be less than %d bytes", h.maxFileSize),
				},
			})
			return
		}
	}

	uploaded := make([]*models.UploadedFile, 0, len(files))
	for _, fileHeader := range files {
		data, err := readFile(fileHeader)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "FILE_READ_ERROR",
					"message": err.Error(),
				},
			})
			return
		}

		record, err := h.ingest.IngestPDF(c.Request.Context(), userID, fileHeader.Filename, data)
		if err != nil {
			status := http.StatusInternalServerError
			code := "INGEST_FAILED"
			if errors.Is(err, service.ErrNoExtractableText) || errors.Is(err, service.ErrInvalidPDF) {
				status = http.StatusBadRequest
				code = "EMPTY_PDF"
			}
			c.JSON(status, gin.H{
				"success": false,
				"error": gin.H{
					"code":    code,
					"message": fmt.Sprintf("Failed to process %s: %v", fileHeader.Filename, err),
				},
			})
			return
		}

		uploaded = append(uploaded, record)
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data": gin.H{
			"files":   uploaded,
			"message": fmt.Sprintf("Successfully uploaded %d file(s)", len(uploaded)),
		},
	})
}

// ListFiles handles GET /api/uploaded-files
func (h *UploadHandler) ListFiles(c *gin.Context) {
	userID, ok := h.requireUserID(c, c.Query("user_id"))
	if !ok {
		return
	}

	files, err := h.fileRepo.ListByUserID(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "LIST_FAILED",
				"message": "Failed to fetch uploaded files",
			},
		})
		return
	}

	if files == nil {
		files = []*models.UploadedFile{}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"files": files,
		},
	})
}

// DeleteFile handles DELETE /api/uploaded-files?fileId=
func (h *UploadHandler) DeleteFile(c *gin.Context) {
	userID, ok := h.requireUserID(c, c.Query("user_id"))
	if !ok {
		return
	}

	fileIDStr := c.Query("fileId")
	if fileIDStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "MISSING_FILE_ID",
				"message": "File ID is required",
			},
		})
		return
	}

	fileID, err := uuid.Parse(fileIDStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_FILE_ID",
				"message": "Invalid file ID format",
			},
		})
		return
	}

	if err := h.ingest.DeleteFile(c.Request.Context(), userID, fileID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DELETE_FAILED",
				"message": fmt.Sprintf("Failed to delete file: %v", err),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
	})
}

// requireUserID parses the caller-supplied user id, writing a 400 response
// when it is missing or malformed
func (h *UploadHandler) requireUserID(c *gin.Context, raw string) (uuid.UUID, bool) {
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "MISSING_USER_ID",
				"message": "user_id is required",
			},
		})
		return uuid.Nil, false
	}

	userID, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_USER_ID",
				"message": "Invalid user_id format",
			},
		})
		return uuid.Nil, false
	}

	return userID, true
}

// isPDF checks the declared content type, falling back to the file extension
func isPDF(fileHeader *multipart.FileHeader) bool {
	mimeType := fileHeader.Header.Get("Content-Type")
	if mimeType != "" {
		return mimeType == "application/pdf"
	}
	return strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".pdf")
}

func readFile(fileHeader *multipart.FileHeader) ([]byte, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded file: %w", err)
	}

	return data, nil
}
