package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenEstimator_HeuristicFallback(t *testing.T) {
	t.Parallel()

	e := NewTokenEstimator("totally-unknown-model")
	assert.False(t, e.Exact())

	assert.Equal(t, 0, e.EstimateText(""))
	assert.Equal(t, 1, e.EstimateText("hi"), "short text still costs at least one token")
	assert.Equal(t, 10, e.EstimateText("0123456789012345678901234567890123456789"))
}

func TestTokenEstimator_MessagesIncludeOverhead(t *testing.T) {
	t.Parallel()

	e := NewTokenEstimator("totally-unknown-model")
	msgs := []Message{
		{Role: RoleSystem, Content: "01234567"}, // 2 tokens
		{Role: RoleUser, Content: "0123"},       // 1 token
	}
	assert.Equal(t, 2+1+2*messageOverhead, e.EstimateMessages(msgs))
}
