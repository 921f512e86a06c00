// Package respond post-processes final narration: the sanitizer strips
// leaked internal text, the validator cross-checks narration against tool
// results for telemetry.
package respond

import (
	"regexp"
	"strings"
)

// Placeholder replaces each leaked literal tool invocation in narration.
const Placeholder = "[data lookup]"

// toolSyntaxRe matches leaked literal tool-invocation syntax of the shape
// verbIdentifier(...): a lower-case verb followed by a camelCase or
// snake_case tail and a parenthesized argument list, e.g. "getFields()" or
// "get_field_boundary(field_id)". Plain words followed by parentheses, like
// "work(s)", are left alone.
var toolSyntaxRe = regexp.MustCompile(`\b[a-z]+(?:_[a-zA-Z0-9]+|[A-Z][a-zA-Z0-9]*)+\s*\([^()]*\)`)

// metaLineRe matches lines of leaked meta-commentary about internal
// validation or confidence scoring.
var metaLineRe = regexp.MustCompile(`(?i)\b(confidence (score|level|rating)|validation (check|score|result|passed|failed)|internal validation)\b`)

// newlineRunRe matches runs of 3+ newlines (with optional blank-line
// whitespace) for collapsing to a single blank line.
var newlineRunRe = regexp.MustCompile(`\n[ \t]*\n([ \t]*\n)+`)

// Sanitizer cleans final narration before it reaches the user. Sanitize is
// idempotent: applying it twice yields the same text.
type Sanitizer struct{}

// NewSanitizer creates a sanitizer.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{}
}

// Sanitize removes meta-commentary lines, replaces leaked tool-invocation
// syntax with a neutral placeholder, collapses 3+ consecutive newlines to
// exactly 2, and trims surrounding whitespace.
func (s *Sanitizer) Sanitize(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if metaLineRe.MatchString(line) {
			continue
		}
		kept = append(kept, line)
	}
	out := strings.Join(kept, "\n")

	out = toolSyntaxRe.ReplaceAllString(out, Placeholder)
	out = newlineRunRe.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}
