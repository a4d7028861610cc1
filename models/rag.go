package models

// ValidationResult holds a second-pass accuracy judgment of a generated answer
type ValidationResult struct {
	IsAccurate           bool     `json:"is_accurate"`
	Reasoning            string   `json:"reasoning"`
	SuggestedCorrections []string `json:"suggested_corrections,omitempty"`
}

// RAGResponse is the result of answering a question against retrieved chunks.
//
// ConfidenceScore is a heuristic proxy for how much material backed the
// answer, clamped to [0.1, 0.9] for generated answers and 0 when nothing was
// retrieved. It is not a calibrated probability.
type RAGResponse struct {
	Answer           string            `json:"answer"`
	Sources          []DocumentChunk   `json:"sources"`
	ConfidenceScore  float64           `json:"confidence_score"`
	ValidationResult *ValidationResult `json:"validation_result,omitempty"`

	// Validated is false when ValidationResult is the fail-open default
	// produced by a validator failure rather than a real verdict.
	Validated bool `json:"validated"`
}
