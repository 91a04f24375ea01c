package chat

import (
	"context"

	"huddle_backend/internal/logger"
	"huddle_backend/internal/realtime"
	"huddle_backend/internal/services/dto"
	"huddle_backend/pkg/apperrors"

	"gorm.io/gorm"
)

// EphemeralService performs the one-way UNVIEWED -> VIEWED transition.
type EphemeralService struct {
	*base
}

// MarkEphemeralAsViewed reveals an ephemeral message exactly once. The store update is a
// compare-and-set on ephemeral_viewed_at IS NULL, so of two concurrent callers one gets ErrAlreadyViewed.
// Membership is checked before the message state so non-participants learn nothing about it.
func (s *EphemeralService) MarkEphemeralAsViewed(ctx context.Context, db *gorm.DB, callerID, messageID string) (*dto.EphemeralViewResponse, error) {
	db = db.WithContext(ctx)
	msg, err := s.repo.FindMessageByID(db, messageID)
	if err != nil {
		return nil, handleChatError(err)
	}
	if _, err := s.requireParticipant(db, msg.ChatID, callerID); err != nil {
		return nil, err
	}
	if !msg.IsEphemeral {
		return nil, apperrors.ErrNotEphemeral
	}
	if msg.Viewed() {
		return nil, apperrors.ErrAlreadyViewed
	}

	viewedAt := s.now()
	won, err := s.repo.MarkEphemeralViewed(db, messageID, callerID, viewedAt)
	if err != nil {
		return nil, handleChatError(err)
	}
	if !won {
		return nil, apperrors.ErrAlreadyViewed
	}
	logger.CtxInfo(ctx, "ephemeral message viewed", "message_id", messageID)

	ev := realtime.EphemeralViewed{MessageID: messageID, ViewedBy: callerID, ViewedAt: viewedAt}
	s.publish(ctx, realtime.ChatTopic(msg.ChatID), ev)
	s.publish(ctx, realtime.UserTopic(msg.SenderID), ev)

	return &dto.EphemeralViewResponse{MessageID: messageID, ViewedBy: callerID, ViewedAt: viewedAt}, nil
}
