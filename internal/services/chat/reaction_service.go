package chat

import (
	"context"
	"strings"

	modelChat "huddle_backend/internal/models/chat"
	"huddle_backend/internal/realtime"
	"huddle_backend/internal/services/dto"
	"huddle_backend/pkg/apperrors"

	"gorm.io/gorm"
)

type ReactionService struct {
	*base
}

// AddReaction upserts (message, caller, emoji). Reacting again refreshes created_at.
func (s *ReactionService) AddReaction(ctx context.Context, db *gorm.DB, callerID, messageID, emoji string) (*dto.ReactionResponse, error) {
	db = db.WithContext(ctx)
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return nil, apperrors.ValidationError(map[string]string{"emoji": "This field is required"})
	}

	msg, err := s.messageForParticipant(db, callerID, messageID)
	if err != nil {
		return nil, err
	}

	stored, err := s.repo.UpsertReaction(db, &modelChat.Reaction{
		MessageID: messageID,
		UserID:    callerID,
		Emoji:     emoji,
		CreatedAt: s.now(),
	})
	if err != nil {
		return nil, handleChatError(err)
	}

	resp := dto.NewReactionResponse(stored)
	s.publish(ctx, realtime.ChatTopic(msg.ChatID), realtime.ReactionAdded{
		MessageID: messageID,
		UserID:    callerID,
		Emoji:     emoji,
		Reaction:  resp,
	})
	return resp, nil
}

// RemoveReaction deletes the reaction if present and succeeds either way.
func (s *ReactionService) RemoveReaction(ctx context.Context, db *gorm.DB, callerID, messageID, emoji string) error {
	db = db.WithContext(ctx)
	msg, err := s.messageForParticipant(db, callerID, messageID)
	if err != nil {
		return err
	}

	emoji = strings.TrimSpace(emoji)
	removed, err := s.repo.RemoveReaction(db, messageID, callerID, emoji)
	if err != nil {
		return handleChatError(err)
	}
	if removed {
		s.publish(ctx, realtime.ChatTopic(msg.ChatID), realtime.ReactionRemoved{
			MessageID: messageID,
			UserID:    callerID,
			Emoji:     emoji,
		})
	}
	return nil
}

// GetReactions returns the grouped reactions of a message.
func (s *ReactionService) GetReactions(ctx context.Context, db *gorm.DB, callerID, messageID string) ([]*dto.ReactionGroup, error) {
	db = db.WithContext(ctx)
	if _, err := s.messageForParticipant(db, callerID, messageID); err != nil {
		return nil, err
	}
	reactions, err := s.repo.FindReactionsByMessage(db, messageID)
	if err != nil {
		return nil, handleChatError(err)
	}
	return GroupReactions(reactions), nil
}

func (s *ReactionService) messageForParticipant(db *gorm.DB, callerID, messageID string) (*modelChat.Message, error) {
	msg, err := s.repo.FindMessageByID(db, messageID)
	if err != nil {
		return nil, handleChatError(err)
	}
	if _, err := s.requireParticipant(db, msg.ChatID, callerID); err != nil {
		return nil, err
	}
	return msg, nil
}
