package respond

import (
	"strings"
	"testing"
)

func TestSanitize_ReplacesLeakedToolSyntax(t *testing.T) {
	s := NewSanitizer()

	got := s.Sanitize("I called getFields() and found 3 fields.")
	if strings.Contains(got, "getFields(") {
		t.Errorf("tool syntax leaked: %q", got)
	}
	if !strings.Contains(got, Placeholder) {
		t.Errorf("placeholder missing: %q", got)
	}
	if !strings.Contains(got, "and found 3 fields.") {
		t.Errorf("surrounding text altered: %q", got)
	}

	got = s.Sanitize(`Using get_field_boundary(field_id="f-12") here.`)
	if strings.Contains(got, "get_field_boundary(") {
		t.Errorf("snake_case tool syntax leaked: %q", got)
	}
}

func TestSanitize_LeavesPlainProseAlone(t *testing.T) {
	s := NewSanitizer()

	in := "The planter work(s) best after rain (about 12mm)."
	if got := s.Sanitize(in); got != in {
		t.Errorf("prose altered: %q", got)
	}
}

func TestSanitize_StripsMetaCommentary(t *testing.T) {
	s := NewSanitizer()

	in := "You have 3 fields.\nConfidence score: 92 out of 100.\nThey total 180 acres."
	got := s.Sanitize(in)
	if strings.Contains(strings.ToLower(got), "confidence") {
		t.Errorf("meta-commentary leaked: %q", got)
	}
	if !strings.Contains(got, "You have 3 fields.") || !strings.Contains(got, "180 acres") {
		t.Errorf("real content lost: %q", got)
	}
}

func TestSanitize_CollapsesNewlinesAndTrims(t *testing.T) {
	s := NewSanitizer()

	got := s.Sanitize("  first\n\n\n\nsecond\n\n")
	want := "first\n\nsecond"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	s := NewSanitizer()

	inputs := []string{
		"I called getFields() and found 3 fields.",
		"You have 3 fields.\nValidation check passed.\n\n\n\nDone.",
		"plain text with no issues",
		"",
		"   \n\n\n   ",
	}
	for _, in := range inputs {
		once := s.Sanitize(in)
		twice := s.Sanitize(once)
		if once != twice {
			t.Errorf("not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}
