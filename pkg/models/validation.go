package models

// ValidationResult is the advisory outcome of cross-checking a narrated
// response against the tool results it should reflect. Confidence is bounded
// to [0,100]. Consumed for debugging and telemetry only; it never blocks or
// alters the response.
type ValidationResult struct {
	Confidence int      `json:"confidence"`
	Notes      []string `json:"notes,omitempty"`
}

// ClampConfidence bounds a raw confidence score to [0,100].
func ClampConfidence(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
