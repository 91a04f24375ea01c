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

func TestCreateDirectChat_SamePairSameChat(t *testing.T) {
	f := newFixture(t)

	first, err := f.svc.Membership.CreateDirectChat(f.ctx, f.db, "alice", "bob")
	require.NoError(t, err)
	second, err := f.svc.Membership.CreateDirectChat(f.ctx, f.db, "bob", "alice")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "DIRECT", string(second.Kind))
	require.Len(t, second.Participants, 2)

	// Only the creating call announces the chat.
	assert.Len(t, f.pub.on(realtime.UserTopic("alice")), 1)
	assert.Len(t, f.pub.on(realtime.UserTopic("bob")), 1)
}

func TestCreateDirectChat_ConcurrentCallersShareChat(t *testing.T) {
	f := newFixture(t)

	var wg sync.WaitGroup
	ids := make([]string, 2)
	errs := make([]error, 2)
	for i, pair := range [][2]string{{"alice", "bob"}, {"bob", "alice"}} {
		wg.Add(1)
		go func(i int, caller, other string) {
			defer wg.Done()
			c, err := f.svc.Membership.CreateDirectChat(f.ctx, f.db, caller, other)
			errs[i] = err
			if err == nil {
				ids[i] = c.ID
			}
		}(i, pair[0], pair[1])
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, ids[0], ids[1])

	chats, err := f.svc.Membership.ListChats(f.ctx, f.db, "alice")
	require.NoError(t, err)
	assert.Len(t, chats, 1)
}

func TestCreateDirectChat_RejectsSelf(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Membership.CreateDirectChat(f.ctx, f.db, "alice", "alice")
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, 400, appErr.HTTPCode)

	_, err = f.svc.Membership.CreateDirectChat(f.ctx, f.db, "alice", "")
	assert.Error(t, err)
}

func TestCreateGroupChat_IncludesAdminOnce(t *testing.T) {
	f := newFixture(t)

	c := f.group(t, "admin", "u1", "admin", "u2", "u1")

	require.Len(t, c.Participants, 3)
	assert.Equal(t, "admin", c.Participants[0].UserID)
	assert.Equal(t, "u1", c.Participants[1].UserID)
	assert.Equal(t, "u2", c.Participants[2].UserID)
	assert.Equal(t, "admin", c.CreatedBy)
	for _, p := range c.Participants {
		assert.True(t, p.ReadReceiptsEnabled)
		assert.Len(t, f.pub.on(realtime.UserTopic(p.UserID)), 1)
	}
}

func TestCreateGroupChat_NameIsOptional(t *testing.T) {
	f := newFixture(t)

	unnamed, err := f.svc.Membership.CreateGroupChat(f.ctx, f.db, "admin", &dto.CreateGroupChatRequest{
		Name:           "   ",
		ParticipantIDs: []string{"u1"},
	})
	require.NoError(t, err)
	assert.Nil(t, unnamed.Name)
	assert.Len(t, unnamed.Participants, 2)

	named := f.group(t, "admin", "u1")
	require.NotNil(t, named.Name)
	assert.Equal(t, "crew", *named.Name)
}

func TestAddParticipants(t *testing.T) {
	f := newFixture(t)
	c := f.group(t, "admin", "u1")

	updated, err := f.svc.Membership.AddParticipants(f.ctx, f.db, "u1", c.ID, []string{"u1", "u2", "u3"})
	require.NoError(t, err)
	assert.Len(t, updated.Participants, 4)
	assert.Len(t, f.pub.on(realtime.UserTopic("u2")), 1)

	_, err = f.svc.Membership.AddParticipants(f.ctx, f.db, "admin", c.ID, []string{"u2"})
	assert.ErrorIs(t, err, apperrors.ErrAlreadyParticipant)

	_, err = f.svc.Membership.AddParticipants(f.ctx, f.db, "stranger", c.ID, []string{"u9"})
	assert.ErrorIs(t, err, apperrors.ErrNotAParticipant)

	_, err = f.svc.Membership.AddParticipants(f.ctx, f.db, "admin", "missing", []string{"u9"})
	assert.ErrorIs(t, err, apperrors.ErrChatNotFound)
}

func TestAddParticipants_DirectChatIsClosed(t *testing.T) {
	f := newFixture(t)
	c, err := f.svc.Membership.CreateDirectChat(f.ctx, f.db, "alice", "bob")
	require.NoError(t, err)

	_, err = f.svc.Membership.AddParticipants(f.ctx, f.db, "alice", c.ID, []string{"carol"})
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, 400, appErr.HTTPCode)
}

func TestRemoveParticipant_KeepsHistory(t *testing.T) {
	f := newFixture(t)
	c := f.group(t, "admin", "u1", "u2")
	msg := f.text(t, "u1", c.ID, "hello")

	require.NoError(t, f.svc.Membership.LeaveChat(f.ctx, f.db, "u1", c.ID))

	_, err := f.svc.Membership.GetChat(f.ctx, f.db, "u1", c.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotAParticipant)

	kept, err := f.svc.Messages.GetMessage(f.ctx, f.db, "admin", msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "u1", kept.SenderID)

	err = f.svc.Membership.RemoveParticipant(f.ctx, f.db, "admin", c.ID, "u1")
	assert.ErrorIs(t, err, apperrors.ErrParticipantNotFound)
}

func TestRemoveParticipant_PublishesRemoval(t *testing.T) {
	f := newFixture(t)
	c := f.group(t, "admin", "u1", "u2")
	f.pub.reset()

	require.NoError(t, f.svc.Membership.RemoveParticipant(f.ctx, f.db, "admin", c.ID, "u1"))

	want := realtime.ParticipantRemoved{ChatID: c.ID, UserID: "u1", RemovedBy: "admin"}
	assert.Equal(t, []realtime.Event{want}, f.pub.on(realtime.ChatTopic(c.ID)))
	assert.Equal(t, []realtime.Event{want}, f.pub.on(realtime.UserTopic("u1")))

	f.pub.reset()
	require.NoError(t, f.svc.Membership.LeaveChat(f.ctx, f.db, "u2", c.ID))
	left := f.pub.on(realtime.UserTopic("u2"))
	require.Len(t, left, 1)
	assert.Equal(t, "u2", left[0].(realtime.ParticipantRemoved).RemovedBy)

	f.pub.reset()
	err := f.svc.Membership.RemoveParticipant(f.ctx, f.db, "admin", c.ID, "u1")
	assert.ErrorIs(t, err, apperrors.ErrParticipantNotFound)
	assert.Zero(t, f.pub.count())
}

func TestListChats_MostRecentFirst(t *testing.T) {
	f := newFixture(t)
	older := f.group(t, "admin", "u1")
	newer := f.group(t, "admin", "u2")

	chats, err := f.svc.Membership.ListChats(f.ctx, f.db, "admin")
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, newer.ID, chats[0].ID)

	f.text(t, "u1", older.ID, "bump")

	chats, err = f.svc.Membership.ListChats(f.ctx, f.db, "admin")
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, older.ID, chats[0].ID)
	assert.Equal(t, int64(1), chats[0].UnreadCount)
	assert.Equal(t, int64(0), chats[1].UnreadCount)
}
