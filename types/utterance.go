package types

import "time"

// Utterance is a single turn of conversation. Immutable once appended;
// the ordered sequence forms the conversation history.
type Utterance struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Model     string    `json:"model,omitempty"`
	Provider  string    `json:"provider,omitempty"`
	// IsError marks a visible error utterance recorded when the upstream
	// completion call failed for the role that was about to speak.
	IsError bool `json:"is_error,omitempty"`
}

// NewUtterance creates an utterance stamped with the current time.
func NewUtterance(role Role, text string) Utterance {
	return Utterance{
		Role:      role,
		Text:      text,
		Timestamp: time.Now(),
	}
}

// History is an append-only ordered sequence of utterances.
type History []Utterance

// Last returns the most recent utterance, or false when empty.
func (h History) Last() (Utterance, bool) {
	if len(h) == 0 {
		return Utterance{}, false
	}
	return h[len(h)-1], true
}

// Tail returns the last n utterances (or all of them when fewer exist).
func (h History) Tail(n int) History {
	if n <= 0 {
		return nil
	}
	if len(h) <= n {
		return h
	}
	return h[len(h)-n:]
}

// CountByRole returns the number of utterances spoken by role.
func (h History) CountByRole(role Role) int {
	var n int
	for i := range h {
		if h[i].Role == role {
			n++
		}
	}
	return n
}

// LastIndexOf returns the index of role's most recent utterance, -1 if none.
func (h History) LastIndexOf(role Role) int {
	for i := len(h) - 1; i >= 0; i-- {
		if h[i].Role == role {
			return i
		}
	}
	return -1
}
