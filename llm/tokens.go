package llm

import (
	"github.com/pkoukk/tiktoken-go"
)

// messageOverhead is the per-message token framing cost OpenAI-style chat
// endpoints charge on top of the content.
const messageOverhead = 4

// TokenEstimator counts tokens for sizing max_tokens: exact via tiktoken
// when the model is known, a chars/4 heuristic otherwise.
type TokenEstimator struct {
	enc *tiktoken.Tiktoken
}

// NewTokenEstimator builds an estimator for model. Unknown models degrade to
// the heuristic rather than failing.
func NewTokenEstimator(model string) *TokenEstimator {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return &TokenEstimator{}
	}
	return &TokenEstimator{enc: enc}
}

// Exact reports whether counts come from a real tokenizer.
func (e *TokenEstimator) Exact() bool { return e.enc != nil }

// EstimateText returns the token count of one text.
func (e *TokenEstimator) EstimateText(text string) int {
	if e.enc != nil {
		return len(e.enc.Encode(text, nil, nil))
	}
	if len(text) == 0 {
		return 0
	}
	n := len(text) / 4
	if n == 0 {
		n = 1
	}
	return n
}

// EstimateMessages returns the token count of a full message list including
// per-message framing overhead.
func (e *TokenEstimator) EstimateMessages(messages []Message) int {
	total := 0
	for _, m := range messages {
		total += e.EstimateText(m.Content) + messageOverhead
	}
	return total
}
