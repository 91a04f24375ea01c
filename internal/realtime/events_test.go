package realtime

import (
	"errors"
	"testing"
	"time"

	"huddle_backend/internal/services/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopics(t *testing.T) {
	assert.Equal(t, Topic("chat:c1"), ChatTopic("c1"))
	assert.Equal(t, Topic("user:u1"), UserTopic("u1"))
	assert.True(t, ChatTopic("c1").Valid())
	assert.False(t, ChatTopic("").Valid())
	assert.False(t, Topic("room:c1").Valid())

	id, ok := UserTopic("u1").UserID()
	assert.True(t, ok)
	assert.Equal(t, "u1", id)
	_, ok = ChatTopic("c1").UserID()
	assert.False(t, ok)
	_, ok = Topic("user:").UserID()
	assert.False(t, ok)
}

func TestEncodeDecode_KeepsTypedPayload(t *testing.T) {
	readAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	frame, err := Encode(ChatTopic("c1"), MessagesRead{
		ChatID:     "c1",
		UserID:     "u2",
		MessageIDs: []string{"m1", "m2"},
		ReadAt:     readAt,
	})
	require.NoError(t, err)

	topic, ev, err := Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, ChatTopic("c1"), topic)

	read, ok := ev.(MessagesRead)
	require.True(t, ok, "decoded %T", ev)
	assert.Equal(t, []string{"m1", "m2"}, read.MessageIDs)
	assert.True(t, readAt.Equal(read.ReadAt))
}

func TestEncode_NewMessageCarriesMessage(t *testing.T) {
	frame, err := Encode(UserTopic("u1"), NewMessage{Message: &dto.MessageResponse{ID: "m1", ChatID: "c1"}})
	require.NoError(t, err)
	assert.Contains(t, string(frame), `"event":"newMessage"`)

	_, ev, err := Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, "m1", ev.(NewMessage).Message.ID)
}

func TestDecode_RejectsUnknownEvents(t *testing.T) {
	_, _, err := Decode([]byte(`{"topic":"chat:c1","event":"deleteEverything","payload":{}}`))
	assert.True(t, errors.Is(err, ErrUnknownEvent))

	_, _, err = Decode([]byte(`not json`))
	assert.Error(t, err)

	_, _, err = Decode([]byte(`{"topic":"chat:c1","event":"typing","payload":"oops"}`))
	assert.Error(t, err)
}

func TestUserOfflineName(t *testing.T) {
	assert.Equal(t, EventName("user:offline"), UserOffline{}.Name())
}
