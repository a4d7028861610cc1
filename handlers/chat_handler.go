package handlers

import (
	"context"
	"net/http"
	"strings"

	"pharmassist-backend/models"
	"pharmassist-backend/repository"
	"pharmassist-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Answerer handles one question against a user's documents
type Answerer interface {
	Answer(ctx context.Context, req service.AnswerRequest) (*service.AnswerResult, error)
}

// ChatHandler handles HTTP requests for chat and sessions
type ChatHandler struct {
	rag         Answerer
	sessionRepo *repository.SessionRepository
	messageRepo *repository.MessageRepository
}

// NewChatHandler creates a new chat handler
func NewChatHandler(rag Answerer, sessionRepo *repository.SessionRepository, messageRepo *repository.MessageRepository) *ChatHandler {
	return &ChatHandler{
		rag:         rag,
		sessionRepo: sessionRepo,
		messageRepo: messageRepo,
	}
}

// ChatRequest represents the request body for POST /api/chat
type ChatRequest struct {
	UserID    string   `json:"user_id" binding:"required"`
	SessionID string   `json:"session_id" binding:"required"`
	Message   string   `json:"message" binding:"required"`
	FileIDs   []string `json:"file_ids"`
}

// Chat handles POST /api/chat
func (h *ChatHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": "message, session_id and user_id are required",
			},
		})
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_USER_ID",
				"message": "Invalid user_id format",
			},
		})
		return
	}

	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_SESSION_ID",
				"message": "Invalid session_id format",
			},
		})
		return
	}

	fileIDs := make([]uuid.UUID, 0, len(req.FileIDs))
	for _, raw := range req.FileIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INVALID_FILE_ID",
					"message": "Invalid file id in file_ids",
				},
			})
			return
		}
		fileIDs = append(fileIDs, id)
	}

	result, err := h.rag.Answer(c.Request.Context(), service.AnswerRequest{
		UserID:    userID,
		SessionID: sessionID,
		Message:   req.Message,
		FileIDs:   fileIDs,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "CHAT_FAILED",
				"message": "Internal server error",
			},
		})
		return
	}

	data := gin.H{
		"answer":            result.Response.Answer,
		"sources":           result.Response.Sources,
		"confidence_score":  result.Response.ConfidenceScore,
		"validation_result": result.Response.ValidationResult,
		"validated":         result.Response.Validated,
	}
	if result.MessageID != nil {
		data["message_id"] = result.MessageID
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

// CreateSessionRequest represents the request body for POST /api/chat-sessions
type CreateSessionRequest struct {
	UserID  string   `json:"user_id" binding:"required"`
	Title   string   `json:"title"`
	FileIDs []string `json:"file_ids"`
}

// CreateSession handles POST /api/chat-sessions
func (h *ChatHandler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": "user_id is required",
			},
		})
		return
	}

	if strings.TrimSpace(req.Title) == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "MISSING_TITLE",
				"message": "Title is required",
			},
		})
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_USER_ID",
				"message": "Invalid user_id format",
			},
		})
		return
	}

	fileIDs := make([]uuid.UUID, 0, len(req.FileIDs))
	for _, raw := range req.FileIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INVALID_FILE_ID",
					"message": "Invalid file id in file_ids",
				},
			})
			return
		}
		fileIDs = append(fileIDs, id)
	}

	session := &models.ChatSession{
		UserID:  userID,
		Title:   req.Title,
		FileIDs: fileIDs,
	}

	if err := h.sessionRepo.Create(c.Request.Context(), session); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "CREATE_FAILED",
				"message": "Failed to create chat session",
			},
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data": gin.H{
			"session": session,
		},
	})
}

// ListSessions handles GET /api/chat-sessions
func (h *ChatHandler) ListSessions(c *gin.Context) {
	userIDStr := c.Query("user_id")
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_USER_ID",
				"message": "Valid user_id is required",
			},
		})
		return
	}

	sessions, err := h.sessionRepo.ListByUserID(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "LIST_FAILED",
				"message": "Failed to fetch chat sessions",
			},
		})
		return
	}

	if sessions == nil {
		sessions = []*models.ChatSession{}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"sessions": sessions,
		},
	})
}

// DeleteSession handles DELETE /api/chat-sessions/:id
func (h *ChatHandler) DeleteSession(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_SESSION_ID",
				"message": "Invalid session ID format",
			},
		})
		return
	}

	userID, err := uuid.Parse(c.Query("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_USER_ID",
				"message": "Valid user_id is required",
			},
		})
		return
	}

	if err := h.sessionRepo.Delete(c.Request.Context(), sessionID, userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DELETE_FAILED",
				"message": "Failed to delete chat session",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
	})
}

// ListMessages handles GET /api/chat-sessions/:id/messages
func (h *ChatHandler) ListMessages(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_SESSION_ID",
				"message": "Invalid session ID format",
			},
		})
		return
	}

	if _, err := h.sessionRepo.GetByID(c.Request.Context(), sessionID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "SESSION_NOT_FOUND",
				"message": "Chat session not found",
			},
		})
		return
	}

	messages, err := h.messageRepo.ListBySessionID(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "LIST_FAILED",
				"message": "Failed to fetch messages",
			},
		})
		return
	}

	if messages == nil {
		messages = []*models.ChatMessage{}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"messages": messages,
		},
	})
}
