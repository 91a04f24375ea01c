package validator

import (
	"testing"

	"huddle_backend/internal/services/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestValidate_EphemeralDuration(t *testing.T) {
	v := New()

	tests := []struct {
		name    string
		req     dto.SendMessageRequest
		wantErr bool
	}{
		{"ephemeral play once", dto.SendMessageRequest{Type: "TEXT", Content: "hi", IsEphemeral: true, EphemeralViewDuration: intPtr(-1)}, false},
		{"ephemeral in range", dto.SendMessageRequest{Type: "TEXT", Content: "hi", IsEphemeral: true, EphemeralViewDuration: intPtr(300)}, false},
		{"ephemeral without duration", dto.SendMessageRequest{Type: "TEXT", Content: "hi", IsEphemeral: true}, false},
		{"ephemeral out of range", dto.SendMessageRequest{Type: "TEXT", Content: "hi", IsEphemeral: true, EphemeralViewDuration: intPtr(301)}, true},
		{"ephemeral zero", dto.SendMessageRequest{Type: "TEXT", Content: "hi", IsEphemeral: true, EphemeralViewDuration: intPtr(0)}, true},
		{"plain message ignores duration", dto.SendMessageRequest{Type: "TEXT", Content: "hi", EphemeralViewDuration: intPtr(999)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(&tt.req)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Contains(t, vErr.Errors, "ephemeral_view_duration")
		})
	}
}

func TestValidate_MessageTypeAndEmoji(t *testing.T) {
	v := New()

	err := v.Validate(&dto.SendMessageRequest{Type: "STICKER", Content: "hi"})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Errors, "type")

	assert.NoError(t, v.Validate(&dto.AddReactionRequest{Emoji: "🔥"}))
	assert.Error(t, v.Validate(&dto.AddReactionRequest{Emoji: "thumbs up"}))
}
