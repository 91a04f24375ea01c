package chat

import (
	"sort"

	modelChat "huddle_backend/internal/models/chat"
	"huddle_backend/internal/services/dto"
)

// GroupReactions groups reactions by emoji. Groups are ordered by their first
// reaction and users inside a group by reaction time; ties break on reaction id.
// Every code path that renders reactions goes through here.
func GroupReactions(reactions []modelChat.Reaction) []*dto.ReactionGroup {
	sorted := make([]modelChat.Reaction, len(reactions))
	copy(sorted, reactions)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})

	groups := make([]*dto.ReactionGroup, 0)
	byEmoji := make(map[string]*dto.ReactionGroup)
	seen := make(map[string]map[string]struct{})

	for _, r := range sorted {
		group, ok := byEmoji[r.Emoji]
		if !ok {
			group = &dto.ReactionGroup{Emoji: r.Emoji, Users: []string{}}
			byEmoji[r.Emoji] = group
			seen[r.Emoji] = make(map[string]struct{})
			groups = append(groups, group)
		}
		if _, dup := seen[r.Emoji][r.UserID]; dup {
			continue
		}
		seen[r.Emoji][r.UserID] = struct{}{}
		group.Users = append(group.Users, r.UserID)
		group.Count++
	}

	return groups
}
