package chat

import (
	"testing"
	"time"

	modelChat "huddle_backend/internal/models/chat"

	"github.com/stretchr/testify/assert"
)

func TestGroupReactions(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	reactions := []modelChat.Reaction{
		{ID: "r4", UserID: "carol", Emoji: "🔥", CreatedAt: t0.Add(3 * time.Second)},
		{ID: "r2", UserID: "bob", Emoji: "👍", CreatedAt: t0.Add(time.Second)},
		{ID: "r1", UserID: "alice", Emoji: "👍", CreatedAt: t0},
		{ID: "r3", UserID: "alice", Emoji: "🔥", CreatedAt: t0.Add(time.Second)},
		{ID: "r5", UserID: "bob", Emoji: "👍", CreatedAt: t0.Add(5 * time.Second)},
	}

	groups := GroupReactions(reactions)

	if assert.Len(t, groups, 2) {
		assert.Equal(t, "👍", groups[0].Emoji)
		assert.Equal(t, 2, groups[0].Count)
		assert.Equal(t, []string{"alice", "bob"}, groups[0].Users)

		assert.Equal(t, "🔥", groups[1].Emoji)
		assert.Equal(t, []string{"alice", "carol"}, groups[1].Users)
	}
}

func TestGroupReactions_Empty(t *testing.T) {
	groups := GroupReactions(nil)
	assert.NotNil(t, groups)
	assert.Empty(t, groups)
}
