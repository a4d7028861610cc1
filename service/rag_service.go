package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"os"
	"strings"
	"time"

	"pharmassist-backend/models"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
)

// ChunkSearcher retrieves the chunks most relevant to a query
type ChunkSearcher interface {
	Search(ctx context.Context, query string, fileIDs []uuid.UUID, userID uuid.UUID, limit int) ([]models.DocumentChunk, error)
}

// MessageStore persists chat messages
type MessageStore interface {
	Create(ctx context.Context, message *models.ChatMessage) error
}

// SessionStore bumps session activity timestamps
type SessionStore interface {
	Touch(ctx context.Context, id uuid.UUID) error
}

// completionFunc invokes the completion service. Overridable in tests.
type completionFunc func(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error)

// RAGService answers questions against a user's uploaded documents:
// retrieve relevant chunks, generate a grounded answer, validate it, persist
// the exchange.
type RAGService struct {
	chunks       ChunkSearcher
	messages     MessageStore
	sessions     SessionStore
	geminiClient *genai.Client

	// complete serves generation, validate serves validation; both default
	// to Gemini-backed implementations and are overridable in tests
	complete completionFunc
	validate completionFunc
}

// RAGServiceOption is a functional option for RAGService
type RAGServiceOption func(*RAGService)

// RAGWithChunkSearcher sets the chunk searcher
func RAGWithChunkSearcher(s ChunkSearcher) RAGServiceOption {
	return func(r *RAGService) {
		r.chunks = s
	}
}

// RAGWithMessageStore sets the message store
func RAGWithMessageStore(m MessageStore) RAGServiceOption {
	return func(r *RAGService) {
		r.messages = m
	}
}

// RAGWithSessionStore sets the session store
func RAGWithSessionStore(s SessionStore) RAGServiceOption {
	return func(r *RAGService) {
		r.sessions = s
	}
}

// RAGWithGeminiClient sets the Gemini client
func RAGWithGeminiClient(client *genai.Client) RAGServiceOption {
	return func(r *RAGService) {
		r.geminiClient = client
	}
}

// NewRAGService creates a new RAG service
func NewRAGService(opts ...RAGServiceOption) *RAGService {
	s := &RAGService{}
	s.complete = s.callGenerationAPI
	s.validate = s.callValidationAPI
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var (
	ErrMissingMessage = errors.New("message is required")
	ErrMissingSession = errors.New("session id is required")
)

const (
	generationAPI   = "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.5-flash:generateContent"
	validationModel = "gemini-2.5-flash"
	maxRetries      = 3
	initialBackoff  = time.Second

	defaultRetrievalLimit = 5

	generationTemperature = 0.1
	generationMaxTokens   = 1000
	validationMaxTokens   = 500

	// noMatchAnswer is returned when retrieval finds nothing. Not an error.
	noMatchAnswer = "I couldn't find any relevant information in your uploaded documents to answer this question. Please make sure you have uploaded relevant PDF files and try again."

	// generationFallbackAnswer is returned when the completion service fails
	generationFallbackAnswer = "I'm sorry, I encountered an error while processing your request. Please try again."

	// validationFallbackReasoning marks the fail-open validator default
	validationFallbackReasoning = "unable to validate due to technical error"
)

// AnswerRequest represents one incoming question
type AnswerRequest struct {
	UserID    uuid.UUID
	SessionID uuid.UUID
	Message   string
	FileIDs   []uuid.UUID
}

// AnswerResult is the outcome of one question
type AnswerResult struct {
	Response  *models.RAGResponse
	MessageID *uuid.UUID
}

// Answer handles one question end to end. Retrieval with no matches
// short-circuits to a canned response; generation and validation failures
// collapse into their component fallbacks; persistence failures are logged
// and never block the response.
func (s *RAGService) Answer(ctx context.Context, req AnswerRequest) (*AnswerResult, error) {
	if s.chunks == nil {
		return nil, errors.New("chunk searcher not set")
	}
	if strings.TrimSpace(req.Message) == "" {
		return nil, ErrMissingMessage
	}
	if req.SessionID == uuid.Nil {
		return nil, ErrMissingSession
	}

	chunks, err := s.chunks.Search(ctx, req.Message, req.FileIDs, req.UserID, defaultRetrievalLimit)
	if err != nil {
		log.Printf("Warning: chunk search failed: %v. Treating as no matches.", err)
		chunks = nil
	}

	if len(chunks) == 0 {
		return &AnswerResult{
			Response: &models.RAGResponse{
				Answer:          noMatchAnswer,
				Sources:         []models.DocumentChunk{},
				ConfidenceScore: 0,
			},
		}, nil
	}

	response := s.generateAnswer(ctx, req.Message, chunks)

	validation, validated := s.validateAnswer(ctx, req.Message, response.Answer, chunks)
	response.ValidationResult = validation
	response.Validated = validated

	messageID := s.persistExchange(ctx, req, response)

	return &AnswerResult{
		Response:  response,
		MessageID: messageID,
	}, nil
}

// generateAnswer produces a grounded answer from the retrieved chunks.
// On completion-service failure it returns the fixed apologetic answer with
// empty sources and confidence 0 instead of an error.
func (s *RAGService) generateAnswer(ctx context.Context, query string, chunks []models.DocumentChunk) *models.RAGResponse {
	prompt := buildGenerationPrompt(query, chunks)

	var answer string
	var err error
	backoff := initialBackoff
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff)
			backoff *= 2
		}

		answer, err = s.complete(ctx, prompt, generationTemperature, generationMaxTokens)
		if err == nil && answer != "" {
			break
		}
	}

	if err != nil || answer == "" {
		log.Printf("Warning: answer generation failed after %d attempts: %v", maxRetries, err)
		return &models.RAGResponse{
			Answer:          generationFallbackAnswer,
			Sources:         []models.DocumentChunk{},
			ConfidenceScore: 0,
		}
	}

	return &models.RAGResponse{
		Answer:          answer,
		Sources:         chunks,
		ConfidenceScore: confidenceScore(answer, len(chunks)),
	}
}

// confidenceScore is a heuristic proxy for how much material backed an
// answer: 50% weight on normalized answer length, 30% on normalized source
// count, 20% flat base, clamped to [0.1, 0.9]. It is not a calibrated
// probability.
func confidenceScore(answer string, sourceCount int) float64 {
	lengthFactor := math.Min(1, float64(len(answer))/500)
	sourceFactor := math.Min(1, float64(sourceCount)/5)
	score := lengthFactor*0.5 + sourceFactor*0.3 + 0.2
	return math.Min(0.9, math.Max(0.1, score))
}

func buildGenerationPrompt(query string, chunks []models.DocumentChunk) string {
	var contextBlock strings.Builder
	for i, chunk := range chunks {
		if i > 0 {
			contextBlock.WriteString("\n\n")
		}
		contextBlock.WriteString(chunk.Content)
	}

	systemInstruction := "You are a pharmaceutical AI assistant that provides accurate, evidence-based information from official sources."

	prompt := fmt.Sprintf(`You are a pharmaceutical AI assistant. Answer the user's question based ONLY on the provided context from official pharmaceutical documents.

Context from documents:
%s

User Question: %s

Instructions:
1. Answer based ONLY on the provided context
2. If the context doesn't contain enough information, say so clearly
3. Cite specific sources when possible
4. Be accurate and professional
5. If discussing drug interactions or medical advice, emphasize consulting healthcare professionals

Answer:`, contextBlock.String(), query)

	return systemInstruction + "\n\n" + prompt
}

// validateAnswer asks a second, independent completion to judge the answer
// against its sources. The returned bool is false when the result is the
// fail-open default rather than a real verdict.
func (s *RAGService) validateAnswer(ctx context.Context, question, answer string, sources []models.DocumentChunk) (*models.ValidationResult, bool) {
	prompt := buildValidationPrompt(question, answer, sources)

	raw, err := s.validate(ctx, prompt, generationTemperature, validationMaxTokens)
	if err != nil {
		log.Printf("Warning: validation call failed, using fail-open default: %v", err)
		return validationFallback(), false
	}

	result, err := parseValidationResponse(raw)
	if err != nil {
		log.Printf("Warning: could not parse validation response, using fail-open default: %v", err)
		return validationFallback(), false
	}

	return result, true
}

func validationFallback() *models.ValidationResult {
	return &models.ValidationResult{
		IsAccurate:           true,
		Reasoning:            validationFallbackReasoning,
		SuggestedCorrections: []string{},
	}
}

func buildValidationPrompt(question, answer string, sources []models.DocumentChunk) string {
	names := make([]string, 0, len(sources))
	seen := make(map[string]bool)
	for _, chunk := range sources {
		if chunk.DocumentName != "" && !seen[chunk.DocumentName] {
			names = append(names, chunk.DocumentName)
			seen[chunk.DocumentName] = true
		}
	}

	systemInstruction := "You are an expert pharmaceutical validator. Provide accurate, constructive feedback."

	prompt := fmt.Sprintf(`You are an expert pharmaceutical validator. Review the following Q&A for accuracy and completeness.

Question: %s
Answer: %s

Sources used: %s

Please evaluate:
1. Is the answer accurate based on the sources?
2. Is the answer complete and helpful?
3. Are there any potential issues or missing information?
4. Would you suggest any corrections?

Respond in JSON format:
{
  "is_accurate": boolean,
  "reasoning": "string",
  "suggested_corrections": ["string"] (optional)
}`, question, answer, strings.Join(names, ", "))

	return systemInstruction + "\n\n" + prompt
}

// parseValidationResponse parses the model's structured output, tolerating a
// markdown code fence around the JSON
func parseValidationResponse(raw string) (*models.ValidationResult, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var result models.ValidationResult
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, fmt.Errorf("failed to parse validation response: %w", err)
	}
	if result.SuggestedCorrections == nil {
		result.SuggestedCorrections = []string{}
	}

	return &result, nil
}

// persistExchange saves the user message and then the assistant message,
// bumping the session timestamp. At-most-once: failures are logged, never
// retried, and never block the response.
func (s *RAGService) persistExchange(ctx context.Context, req AnswerRequest, response *models.RAGResponse) *uuid.UUID {
	if s.messages == nil {
		return nil
	}

	userMessage := &models.ChatMessage{
		SessionID: req.SessionID,
		Role:      models.RoleUser,
		Content:   req.Message,
	}
	if err := s.messages.Create(ctx, userMessage); err != nil {
		log.Printf("Warning: failed to save user message: %v", err)
	}

	confidence := response.ConfidenceScore
	assistantMessage := &models.ChatMessage{
		SessionID:       req.SessionID,
		Role:            models.RoleAssistant,
		Content:         response.Answer,
		Sources:         models.MessageSources(response.Sources),
		ConfidenceScore: &confidence,
	}
	if err := s.messages.Create(ctx, assistantMessage); err != nil {
		log.Printf("Warning: failed to save assistant message: %v", err)
		return nil
	}

	if s.sessions != nil {
		if err := s.sessions.Touch(ctx, req.SessionID); err != nil {
			log.Printf("Warning: failed to bump session timestamp: %v", err)
		}
	}

	return &assistantMessage.ID
}

// callValidationAPI runs the validation prompt through the Gemini SDK client
// with JSON output requested
func (s *RAGService) callValidationAPI(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	if s.geminiClient == nil {
		return "", errors.New("gemini client not set")
	}

	model := s.geminiClient.GenerativeModel(validationModel)
	model.SetTemperature(float32(temperature))
	model.SetMaxOutputTokens(int32(maxTokens))
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("validation request failed: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("validation returned no candidates")
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}

	if responseText.Len() == 0 {
		return "", errors.New("validation returned empty content")
	}

	return responseText.String(), nil
}

// callGenerationAPI calls the Gemini generation API directly via HTTP
func (s *RAGService) callGenerationAPI(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return "", fmt.Errorf("GEMINI_API_KEY not set")
	}

	reqBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"parts": []map[string]interface{}{
					{"text": prompt},
				},
			},
		},
		"generationConfig": map[string]interface{}{
			"temperature":     temperature,
			"maxOutputTokens": maxTokens,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", generationAPI, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", apiKey)

	client := &http.Client{Timeout: 120 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		log.Printf("Gemini API error: Status %d, Body: %s", resp.StatusCode, string(bodyBytes))
		return "", fmt.Errorf("API error: %d", resp.StatusCode)
	}

	var apiResp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
			FinishReason string `json:"finishReason,omitempty"`
		} `json:"candidates"`
		PromptFeedback struct {
			BlockReason string `json:"blockReason,omitempty"`
		} `json:"promptFeedback,omitempty"`
		Error struct {
			Code    int    `json:"code,omitempty"`
			Message string `json:"message,omitempty"`
		} `json:"error,omitempty"`
	}

	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if apiResp.Error.Message != "" {
		return "", fmt.Errorf("API error: %s (code: %d)", apiResp.Error.Message, apiResp.Error.Code)
	}

	if apiResp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("API blocked prompt: %s", apiResp.PromptFeedback.BlockReason)
	}

	if len(apiResp.Candidates) == 0 {
		return "", fmt.Errorf("API returned no candidates")
	}

	var responseText strings.Builder
	for i, candidate := range apiResp.Candidates {
		if candidate.FinishReason != "" && candidate.FinishReason != "STOP" {
			log.Printf("Warning: Candidate %d finished with reason: %s", i, candidate.FinishReason)
		}
		for _, part := range candidate.Content.Parts {
			responseText.WriteString(part.Text)
		}
	}

	result := responseText.String()
	if result == "" {
		return "", fmt.Errorf("API returned empty content")
	}

	return result, nil
}
