package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecentHistory(t *testing.T) {
	t.Parallel()

	history := []HistoryMessage{
		{Sender: "lead", Message: "one"},
		{Sender: "agent", Message: "two"},
		{Sender: "lead", Message: "three"},
	}
	c := ConversationContext{History: history}

	assert.Len(t, c.RecentHistory(2), 2)
	assert.Equal(t, "two", c.RecentHistory(2)[0].Message)
	assert.Len(t, c.RecentHistory(10), 3)
	assert.Len(t, c.RecentHistory(0), 3)
	assert.Empty(t, ConversationContext{}.RecentHistory(5))
}

func TestTurnCount(t *testing.T) {
	t.Parallel()

	// The current message always counts as one lead turn.
	assert.Equal(t, 1, ConversationContext{}.TurnCount())

	c := ConversationContext{History: []HistoryMessage{
		{Sender: "lead", Message: "hi"},
		{Sender: "agent", Message: "hello!"},
		{Sender: "lead", Message: "looking for a condo"},
	}}
	assert.Equal(t, 3, c.TurnCount())
}
