package chat

import (
	"sync"
	"testing"

	"huddle_backend/internal/realtime"
	"huddle_backend/internal/services/dto"
	"huddle_backend/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sendEphemeral(t *testing.T, f *fixture, sender, chatID string) *dto.MessageResponse {
	t.Helper()
	m, err := f.svc.Messages.SendMessage(f.ctx, f.db, sender, chatID, &dto.SendMessageRequest{
		Type:                  "IMAGE",
		MediaURL:              ptr(mediaBase + sender + "/snap.jpg"),
		IsEphemeral:           true,
		EphemeralViewDuration: ptr(10),
	})
	require.NoError(t, err)
	return m
}

func TestMarkEphemeralAsViewed_OnceOnly(t *testing.T) {
	f := newFixture(t)
	c, err := f.svc.Membership.CreateDirectChat(f.ctx, f.db, "u1", "u2")
	require.NoError(t, err)
	m := sendEphemeral(t, f, "u1", c.ID)
	f.pub.reset()

	viewed, err := f.svc.Ephemeral.MarkEphemeralAsViewed(f.ctx, f.db, "u2", m.ID)
	require.NoError(t, err)
	assert.Equal(t, "u2", viewed.ViewedBy)

	_, err = f.svc.Ephemeral.MarkEphemeralAsViewed(f.ctx, f.db, "u1", m.ID)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyViewed)
	_, err = f.svc.Ephemeral.MarkEphemeralAsViewed(f.ctx, f.db, "u2", m.ID)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyViewed)

	stored, err := f.svc.Messages.GetMessage(f.ctx, f.db, "u1", m.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.EphemeralViewedBy)
	assert.Equal(t, "u2", *stored.EphemeralViewedBy)
	require.NotNil(t, stored.EphemeralViewedAt)
	assert.True(t, stored.EphemeralViewedAt.Equal(viewed.ViewedAt))

	require.Len(t, f.pub.on(realtime.ChatTopic(c.ID)), 1)
	senderEvents := f.pub.on(realtime.UserTopic("u1"))
	require.Len(t, senderEvents, 1)
	assert.Equal(t, "u2", senderEvents[0].(realtime.EphemeralViewed).ViewedBy)
}

func TestMarkEphemeralAsViewed_ConcurrentViewers(t *testing.T) {
	f := newFixture(t)
	c := f.group(t, "sender", "v1", "v2", "v3", "v4")
	m := sendEphemeral(t, f, "sender", c.ID)

	viewers := []string{"v1", "v2", "v3", "v4"}
	errs := make([]error, len(viewers))
	var wg sync.WaitGroup
	for i, viewer := range viewers {
		wg.Add(1)
		go func(i int, viewer string) {
			defer wg.Done()
			_, errs[i] = f.svc.Ephemeral.MarkEphemeralAsViewed(f.ctx, f.db, viewer, m.ID)
		}(i, viewer)
	}
	wg.Wait()

	var won int
	for _, err := range errs {
		if err == nil {
			won++
			continue
		}
		assert.ErrorIs(t, err, apperrors.ErrAlreadyViewed)
	}
	assert.Equal(t, 1, won)
}

func TestMarkEphemeralAsViewed_CheckOrder(t *testing.T) {
	f := newFixture(t)
	c := f.group(t, "admin", "u1")
	plain := f.text(t, "admin", c.ID, "not secret")
	secret := sendEphemeral(t, f, "admin", c.ID)

	_, err := f.svc.Ephemeral.MarkEphemeralAsViewed(f.ctx, f.db, "u1", "missing")
	assert.ErrorIs(t, err, apperrors.ErrMessageNotFound)

	_, err = f.svc.Ephemeral.MarkEphemeralAsViewed(f.ctx, f.db, "stranger", plain.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotAParticipant)

	_, err = f.svc.Ephemeral.MarkEphemeralAsViewed(f.ctx, f.db, "u1", plain.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotEphemeral)

	_, err = f.svc.Ephemeral.MarkEphemeralAsViewed(f.ctx, f.db, "stranger", secret.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotAParticipant)
}
