package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"pharmassist-backend/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSearcher struct {
	chunks []models.DocumentChunk
	err    error

	lastQuery   string
	lastFileIDs []uuid.UUID
	lastLimit   int
}

func (f *fakeSearcher) Search(ctx context.Context, query string, fileIDs []uuid.UUID, userID uuid.UUID, limit int) ([]models.DocumentChunk, error) {
	f.lastQuery = query
	f.lastFileIDs = fileIDs
	f.lastLimit = limit
	return f.chunks, f.err
}

type fakeMessageStore struct {
	created []*models.ChatMessage
	err     error
}

func (f *fakeMessageStore) Create(ctx context.Context, message *models.ChatMessage) error {
	if f.err != nil {
		return f.err
	}
	message.ID = uuid.New()
	f.created = append(f.created, message)
	return nil
}

type fakeSessionStore struct {
	touched []uuid.UUID
}

func (f *fakeSessionStore) Touch(ctx context.Context, id uuid.UUID) error {
	f.touched = append(f.touched, id)
	return nil
}

func testChunks(n int) []models.DocumentChunk {
	chunks := make([]models.DocumentChunk, n)
	for i := range chunks {
		chunks[i] = models.DocumentChunk{
			ID:           uuid.New(),
			FileID:       uuid.New(),
			Content:      "Amoxicillin is a penicillin-class antibiotic.",
			ChunkIndex:   i,
			DocumentName: "prescribing_information.pdf",
		}
	}
	return chunks
}

func stubCompletion(answer string, err error) completionFunc {
	return func(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
		return answer, err
	}
}

func newTestService(searcher *fakeSearcher, messages *fakeMessageStore, sessions *fakeSessionStore) *RAGService {
	return NewRAGService(
		RAGWithChunkSearcher(searcher),
		RAGWithMessageStore(messages),
		RAGWithSessionStore(sessions),
	)
}

func TestAnswerNoMatch(t *testing.T) {
	searcher := &fakeSearcher{}
	messages := &fakeMessageStore{}
	s := newTestService(searcher, messages, &fakeSessionStore{})

	result, err := s.Answer(context.Background(), AnswerRequest{
		UserID:    uuid.New(),
		SessionID: uuid.New(),
		Message:   "What is the dosage?",
	})
	require.NoError(t, err)

	assert.Equal(t, noMatchAnswer, result.Response.Answer)
	assert.Empty(t, result.Response.Sources)
	assert.Zero(t, result.Response.ConfidenceScore)
	assert.Nil(t, result.MessageID)

	// Nothing gets persisted for a no-match turn
	assert.Empty(t, messages.created)
}

func TestAnswerSearchErrorTreatedAsNoMatch(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("connection refused")}
	s := newTestService(searcher, &fakeMessageStore{}, &fakeSessionStore{})

	result, err := s.Answer(context.Background(), AnswerRequest{
		UserID:    uuid.New(),
		SessionID: uuid.New(),
		Message:   "What is the dosage?",
	})
	require.NoError(t, err)
	assert.Equal(t, noMatchAnswer, result.Response.Answer)
}

func TestAnswerInputValidation(t *testing.T) {
	s := newTestService(&fakeSearcher{}, &fakeMessageStore{}, &fakeSessionStore{})

	_, err := s.Answer(context.Background(), AnswerRequest{
		SessionID: uuid.New(),
		Message:   "   ",
	})
	assert.ErrorIs(t, err, ErrMissingMessage)

	_, err = s.Answer(context.Background(), AnswerRequest{
		Message: "What is the dosage?",
	})
	assert.ErrorIs(t, err, ErrMissingSession)
}

func TestAnswerSuccess(t *testing.T) {
	chunks := testChunks(3)
	searcher := &fakeSearcher{chunks: chunks}
	messages := &fakeMessageStore{}
	sessions := &fakeSessionStore{}
	s := newTestService(searcher, messages, sessions)

	answer := strings.Repeat("a", 400)
	s.complete = stubCompletion(answer, nil)
	s.validate = stubCompletion(`{"is_accurate": true, "reasoning": "Matches the sources."}`, nil)

	sessionID := uuid.New()
	fileIDs := []uuid.UUID{uuid.New()}
	result, err := s.Answer(context.Background(), AnswerRequest{
		UserID:    uuid.New(),
		SessionID: sessionID,
		Message:   "What class of antibiotic is amoxicillin?",
		FileIDs:   fileIDs,
	})
	require.NoError(t, err)

	assert.Equal(t, answer, result.Response.Answer)
	assert.Equal(t, chunks, result.Response.Sources)

	// 400 chars and 3 sources: 0.8*0.5 + 0.6*0.3 + 0.2
	assert.InDelta(t, 0.78, result.Response.ConfidenceScore, 1e-9)

	require.NotNil(t, result.Response.ValidationResult)
	assert.True(t, result.Response.ValidationResult.IsAccurate)
	assert.Equal(t, "Matches the sources.", result.Response.ValidationResult.Reasoning)
	assert.True(t, result.Response.Validated)

	// User message then assistant message, session bumped
	require.Len(t, messages.created, 2)
	assert.Equal(t, models.RoleUser, messages.created[0].Role)
	assert.Equal(t, models.RoleAssistant, messages.created[1].Role)
	assert.Equal(t, answer, messages.created[1].Content)
	require.NotNil(t, result.MessageID)
	assert.Equal(t, messages.created[1].ID, *result.MessageID)
	assert.Equal(t, []uuid.UUID{sessionID}, sessions.touched)

	// Retrieval scoped to the requested files with the default limit
	assert.Equal(t, fileIDs, searcher.lastFileIDs)
	assert.Equal(t, defaultRetrievalLimit, searcher.lastLimit)
}

func TestAnswerGenerationFailure(t *testing.T) {
	searcher := &fakeSearcher{chunks: testChunks(2)}
	s := newTestService(searcher, &fakeMessageStore{}, &fakeSessionStore{})

	attempts := 0
	s.complete = func(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
		attempts++
		return "", errors.New("model overloaded")
	}
	s.validate = stubCompletion(`{"is_accurate": true, "reasoning": "ok"}`, nil)

	result, err := s.Answer(context.Background(), AnswerRequest{
		UserID:    uuid.New(),
		SessionID: uuid.New(),
		Message:   "What is the dosage?",
	})
	require.NoError(t, err)

	assert.Equal(t, maxRetries, attempts)
	assert.Equal(t, generationFallbackAnswer, result.Response.Answer)
	assert.Empty(t, result.Response.Sources)
	assert.Zero(t, result.Response.ConfidenceScore)
}

func TestAnswerGenerationRetries(t *testing.T) {
	searcher := &fakeSearcher{chunks: testChunks(2)}
	s := newTestService(searcher, &fakeMessageStore{}, &fakeSessionStore{})

	attempts := 0
	s.complete = func(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
		attempts++
		if attempts < 3 {
			return "", errors.New("model overloaded")
		}
		return "Twice daily with food.", nil
	}
	s.validate = stubCompletion(`{"is_accurate": true, "reasoning": "ok"}`, nil)

	result, err := s.Answer(context.Background(), AnswerRequest{
		UserID:    uuid.New(),
		SessionID: uuid.New(),
		Message:   "What is the dosage?",
	})
	require.NoError(t, err)

	assert.Equal(t, 3, attempts)
	assert.Equal(t, "Twice daily with food.", result.Response.Answer)
}

func TestAnswerValidationFailOpen(t *testing.T) {
	searcher := &fakeSearcher{chunks: testChunks(2)}
	s := newTestService(searcher, &fakeMessageStore{}, &fakeSessionStore{})

	s.complete = stubCompletion("Twice daily with food.", nil)
	s.validate = stubCompletion("", errors.New("deadline exceeded"))

	result, err := s.Answer(context.Background(), AnswerRequest{
		UserID:    uuid.New(),
		SessionID: uuid.New(),
		Message:   "What is the dosage?",
	})
	require.NoError(t, err)

	validation := result.Response.ValidationResult
	require.NotNil(t, validation)
	assert.True(t, validation.IsAccurate)
	assert.Equal(t, "unable to validate due to technical error", validation.Reasoning)
	assert.Equal(t, []string{}, validation.SuggestedCorrections)
	assert.False(t, result.Response.Validated)
}

func TestAnswerValidationUnparseable(t *testing.T) {
	searcher := &fakeSearcher{chunks: testChunks(2)}
	s := newTestService(searcher, &fakeMessageStore{}, &fakeSessionStore{})

	s.complete = stubCompletion("Twice daily with food.", nil)
	s.validate = stubCompletion("I think the answer looks fine.", nil)

	result, err := s.Answer(context.Background(), AnswerRequest{
		UserID:    uuid.New(),
		SessionID: uuid.New(),
		Message:   "What is the dosage?",
	})
	require.NoError(t, err)

	assert.Equal(t, "unable to validate due to technical error", result.Response.ValidationResult.Reasoning)
	assert.False(t, result.Response.Validated)
}

func TestAnswerPersistenceFailureDoesNotBlock(t *testing.T) {
	searcher := &fakeSearcher{chunks: testChunks(2)}
	messages := &fakeMessageStore{err: errors.New("connection refused")}
	s := newTestService(searcher, messages, &fakeSessionStore{})

	s.complete = stubCompletion("Twice daily with food.", nil)
	s.validate = stubCompletion(`{"is_accurate": true, "reasoning": "ok"}`, nil)

	result, err := s.Answer(context.Background(), AnswerRequest{
		UserID:    uuid.New(),
		SessionID: uuid.New(),
		Message:   "What is the dosage?",
	})
	require.NoError(t, err)

	assert.Equal(t, "Twice daily with food.", result.Response.Answer)
	assert.Nil(t, result.MessageID)
}

func TestParseValidationResponse(t *testing.T) {
	result, err := parseValidationResponse("```json\n{\"is_accurate\": false, \"reasoning\": \"Dosage is wrong.\", \"suggested_corrections\": [\"500mg, not 50mg\"]}\n```")
	require.NoError(t, err)
	assert.False(t, result.IsAccurate)
	assert.Equal(t, "Dosage is wrong.", result.Reasoning)
	assert.Equal(t, []string{"500mg, not 50mg"}, result.SuggestedCorrections)

	// Bare JSON, corrections omitted
	result, err = parseValidationResponse(`{"is_accurate": true, "reasoning": "Looks good."}`)
	require.NoError(t, err)
	assert.True(t, result.IsAccurate)
	assert.Equal(t, []string{}, result.SuggestedCorrections)

	_, err = parseValidationResponse("not json at all")
	assert.Error(t, err)
}

func TestConfidenceScore(t *testing.T) {
	// Length and source factors saturate; the clamp caps the score at 0.9
	assert.InDelta(t, 0.9, confidenceScore(strings.Repeat("a", 2000), 10), 1e-9)

	// Base alone
	assert.InDelta(t, 0.2, confidenceScore("", 0), 1e-9)

	assert.InDelta(t, 0.78, confidenceScore(strings.Repeat("a", 400), 3), 1e-9)
}

func TestBuildGenerationPromptIncludesContext(t *testing.T) {
	chunks := testChunks(2)
	prompt := buildGenerationPrompt("What class of antibiotic is amoxicillin?", chunks)

	assert.Contains(t, prompt, chunks[0].Content)
	assert.Contains(t, prompt, "What class of antibiotic is amoxicillin?")
	assert.Contains(t, prompt, "Answer based ONLY on the provided context")
}

func TestBuildValidationPromptDeduplicatesSources(t *testing.T) {
	chunks := testChunks(3)
	prompt := buildValidationPrompt("q", "a", chunks)

	assert.Equal(t, 1, strings.Count(prompt, "prescribing_information.pdf"))
	assert.Contains(t, prompt, "Respond in JSON format")
}
