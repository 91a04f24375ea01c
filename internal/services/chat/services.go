package chat

import (
	"context"
	"errors"
	"time"

	"huddle_backend/internal/blobstore"
	"huddle_backend/internal/logger"
	modelChat "huddle_backend/internal/models/chat"
	"huddle_backend/internal/realtime"
	"huddle_backend/internal/repositories"
	"huddle_backend/pkg/apperrors"

	"gorm.io/gorm"
)

// Services groups the chat core components. They share one repository, one
// publisher and one clock, and hold no other state.
type Services struct {
	Membership   *MembershipService
	Messages     *MessageService
	ReadReceipts *ReadReceiptService
	Reactions    *ReactionService
	Ephemeral    *EphemeralService
	Presence     *PresenceService
}

type Option func(*base)

// WithClock replaces time.Now; the value is converted to UTC.
func WithClock(now func() time.Time) Option {
	return func(b *base) {
		b.now = func() time.Time { return now().UTC() }
	}
}

func NewServices(
	repo repositories.ChatRepository,
	publisher realtime.Publisher,
	media blobstore.Verifier,
	opts ...Option,
) *Services {
	b := &base{
		repo:      repo,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(b)
	}

	return &Services{
		Membership:   &MembershipService{base: b},
		Messages:     &MessageService{base: b, media: media},
		ReadReceipts: &ReadReceiptService{base: b},
		Reactions:    &ReactionService{base: b},
		Ephemeral:    &EphemeralService{base: b},
		Presence:     &PresenceService{base: b},
	}
}

type base struct {
	repo      repositories.ChatRepository
	publisher realtime.Publisher
	now       func() time.Time
}

// publish is fire-and-forget: a failed fan-out never fails the mutation that triggered it.
func (b *base) publish(ctx context.Context, topic realtime.Topic, ev realtime.Event) {
	if err := b.publisher.Publish(ctx, topic, ev); err != nil {
		logger.CtxWithError(ctx, "realtime publish failed", err,
			"topic", topic.String(),
			"event", string(ev.Name()),
		)
	}
}

// requireChat returns ErrChatNotFound for an unknown chat id.
func (b *base) requireChat(db *gorm.DB, chatID string) error {
	if chatID == "" {
		return apperrors.ErrChatNotFound
	}
	if _, err := b.repo.FindChatByID(db, chatID); err != nil {
		return handleChatError(err)
	}
	return nil
}

// requireParticipant distinguishes an unknown chat (404) from a chat the caller is not in (403).
func (b *base) requireParticipant(db *gorm.DB, chatID, userID string) (*modelChat.Participant, error) {
	p, err := b.repo.FindParticipant(db, chatID, userID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, repositories.ErrParticipantNotFound) {
		return nil, handleChatError(err)
	}
	if err := b.requireChat(db, chatID); err != nil {
		return nil, err
	}
	return nil, apperrors.ErrNotAParticipant
}

// handleChatError maps repository errors onto the chat error taxonomy.
// Anything unrecognised is a storage failure.
func handleChatError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.AsAppError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, repositories.ErrChatNotFound):
		return apperrors.ErrChatNotFound
	case errors.Is(err, repositories.ErrMessageNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return apperrors.ErrMessageNotFound
	case errors.Is(err, repositories.ErrParticipantNotFound):
		return apperrors.ErrParticipantNotFound
	}
	return apperrors.StorageError(err)
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
