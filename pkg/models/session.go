package models

import "time"

// CapabilitySet is the set of capability tags enabled for a session. Each
// tool declares the tag it requires; the driver retains a tool call only if
// its tag is present here. Filtering is set membership, not string-list
// scanning.
type CapabilitySet map[string]struct{}

// NewCapabilitySet builds a set from the given tags, ignoring empties.
func NewCapabilitySet(tags ...string) CapabilitySet {
	s := make(CapabilitySet, len(tags))
	for _, t := range tags {
		if t != "" {
			s[t] = struct{}{}
		}
	}
	return s
}

// Has reports whether the tag is enabled. An empty tag is always allowed:
// a tool that declares no capability is unrestricted.
func (s CapabilitySet) Has(tag string) bool {
	if tag == "" {
		return true
	}
	_, ok := s[tag]
	return ok
}

// Enable adds a tag to the set.
func (s CapabilitySet) Enable(tag string) {
	if tag != "" {
		s[tag] = struct{}{}
	}
}

// Disable removes a tag from the set.
func (s CapabilitySet) Disable(tag string) {
	delete(s, tag)
}

// Tags returns the enabled tags in unspecified order.
func (s CapabilitySet) Tags() []string {
	tags := make([]string, 0, len(s))
	for t := range s {
		tags = append(tags, t)
	}
	return tags
}

// Session is one ongoing conversation. A session carries the explicit set of
// capability tags enabled for it and has at most one live progress channel
// at a time.
type Session struct {
	ID           string        `json:"id"`
	Key          string        `json:"key"`
	Title        string        `json:"title,omitempty"`
	Capabilities CapabilitySet `json:"capabilities,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}
