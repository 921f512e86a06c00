package respond

import (
	"regexp"
	"strings"

	"github.com/fieldhand/fieldhand/pkg/models"
)

// Validator heuristically cross-checks narrated content against the tool
// results it should reflect. Advisory only: the score never blocks or alters
// the response, it is consumed for debugging and telemetry.
type Validator struct{}

// NewValidator creates a validator.
func NewValidator() *Validator {
	return &Validator{}
}

var (
	numberRe = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
	wordRe   = regexp.MustCompile(`[A-Za-z][A-Za-z_-]{3,}`)
)

// jsonNoise are tokens that appear in structured payloads without carrying
// narratable content.
var jsonNoise = map[string]struct{}{
	"true": {}, "false": {}, "null": {},
	"type": {}, "name": {}, "data": {}, "value": {},
}

// Validate scores how well the narration reflects the gathered tool
// results. Confidence is bounded to [0,100]: full marks with nothing to
// cross-check, lowered when successful results exist but none of their
// entities or quantities appear in the narration.
func (v *Validator) Validate(userQuery, content string, results []models.ToolResult) models.ValidationResult {
	out := models.ValidationResult{Confidence: 100}

	succeeded := 0
	reflected := 0
	narration := strings.ToLower(content)

	for _, r := range results {
		if r.IsError {
			continue
		}
		succeeded++
		if payloadReflected(narration, r.Content) {
			reflected++
		}
	}

	if succeeded == 0 {
		if len(results) > 0 {
			out.Confidence = models.ClampConfidence(60)
			out.Notes = append(out.Notes, "all tool calls failed; narration cannot be grounded")
		}
		return out
	}

	switch {
	case reflected == succeeded:
		out.Confidence = 95
	case reflected > 0:
		out.Confidence = 70
		out.Notes = append(out.Notes, "narration reflects only part of the tool results")
	default:
		out.Confidence = 30
		out.Notes = append(out.Notes, "tool results present but not reflected in narration")
	}

	out.Confidence = models.ClampConfidence(out.Confidence)
	return out
}

// payloadReflected reports whether any entity or quantity from a result
// payload shows up in the narration.
func payloadReflected(narration, payload string) bool {
	for _, num := range numberRe.FindAllString(payload, -1) {
		if strings.Contains(narration, num) {
			return true
		}
	}
	for _, word := range wordRe.FindAllString(payload, -1) {
		lower := strings.ToLower(word)
		if _, noise := jsonNoise[lower]; noise {
			continue
		}
		if strings.Contains(narration, lower) {
			return true
		}
	}
	return false
}
