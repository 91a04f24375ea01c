package chat

import (
	"context"
	"errors"
	"strings"

	"huddle_backend/internal/blobstore"
	"huddle_backend/internal/logger"
	modelChat "huddle_backend/internal/models/chat"
	"huddle_backend/internal/realtime"
	"huddle_backend/internal/repositories"
	"huddle_backend/internal/services/dto"
	"huddle_backend/pkg/apperrors"

	"gorm.io/gorm"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// MessageService validates, persists and announces messages.
type MessageService struct {
	*base
	media blobstore.Verifier
}

// SendMessage runs validated -> persisted -> delivered. Validation failures are returned
// before anything is written; fan-out failures are logged only.
func (s *MessageService) SendMessage(ctx context.Context, db *gorm.DB, senderID, chatID string, req *dto.SendMessageRequest) (*dto.MessageResponse, error) {
	db = db.WithContext(ctx)

	if _, err := s.requireParticipant(db, chatID, senderID); err != nil {
		return nil, err
	}

	msg, err := s.validate(db, senderID, chatID, req)
	if err != nil {
		return nil, err
	}

	if err := s.persist(db, msg); err != nil {
		return nil, handleChatError(err)
	}
	logger.CtxDebug(ctx, "message persisted", "chat_id", chatID, "message_id", msg.ID)

	resp := dto.NewMessageResponse(msg, nil)
	s.publish(ctx, realtime.ChatTopic(chatID), realtime.NewMessage{Message: resp})
	s.publish(ctx, realtime.UserTopic(senderID), realtime.NewMessage{Message: resp})
	s.fanOutUnread(ctx, db, chatID, senderID)

	return resp, nil
}

func (s *MessageService) validate(db *gorm.DB, senderID, chatID string, req *dto.SendMessageRequest) (*modelChat.Message, error) {
	msgType := modelChat.MessageType(req.Type)
	if !msgType.Valid() {
		return nil, apperrors.ErrInvalidMessageType
	}

	var mediaURL *string
	if req.MediaURL != nil && strings.TrimSpace(*req.MediaURL) != "" {
		u := strings.TrimSpace(*req.MediaURL)
		mediaURL = &u
	}

	switch {
	case msgType == modelChat.MessageTypeText && strings.TrimSpace(req.Content) == "":
		return nil, apperrors.ErrEmptyContent
	case msgType == modelChat.MessageTypeText && mediaURL != nil:
		return nil, apperrors.ErrInvalidMediaURL.WithDetails("text messages cannot carry media")
	case msgType.IsMedia() && mediaURL == nil:
		return nil, apperrors.ErrEmptyContent
	}

	// 1. media URL must come from the blob store
	if mediaURL != nil && !s.media.IsOwnedMediaURL(*mediaURL) {
		return nil, apperrors.ErrInvalidMediaURL
	}

	// 2. reply target must live in the same chat
	var replyToID *string
	if req.ReplyToID != nil && *req.ReplyToID != "" {
		target, err := s.repo.FindMessageByID(db, *req.ReplyToID)
		if err != nil {
			if errors.Is(err, repositories.ErrMessageNotFound) {
				return nil, apperrors.ErrInvalidReply
			}
			return nil, handleChatError(err)
		}
		if target.ChatID != chatID {
			return nil, apperrors.ErrInvalidReply
		}
		replyToID = &target.ID
	}

	// 3. ephemeral policy: nil loops forever, -1 plays once, otherwise 1..300 seconds
	var duration *int
	if req.IsEphemeral && req.EphemeralViewDuration != nil {
		if !modelChat.ValidEphemeralDuration(*req.EphemeralViewDuration) {
			return nil, apperrors.ErrInvalidEphemeralDuration
		}
		d := *req.EphemeralViewDuration
		duration = &d
	}

	return &modelChat.Message{
		ChatID:                chatID,
		SenderID:              senderID,
		Type:                  msgType,
		Content:               req.Content,
		MediaURL:              mediaURL,
		ReplyToID:             replyToID,
		IsEphemeral:           req.IsEphemeral,
		EphemeralViewDuration: duration,
		CreatedAt:             s.now(),
	}, nil
}

func (s *MessageService) persist(db *gorm.DB, msg *modelChat.Message) error {
	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}
	defer tx.Rollback()

	if err := s.repo.CreateMessage(tx, msg); err != nil {
		return err
	}
	if err := s.repo.TouchChat(tx, msg.ChatID, msg.CreatedAt); err != nil {
		return err
	}
	return tx.Commit().Error
}

// fanOutUnread pushes the fresh unread count of every other participant to their personal topic.
func (s *MessageService) fanOutUnread(ctx context.Context, db *gorm.DB, chatID, senderID string) {
	participants, err := s.repo.FindParticipantsByChat(db, chatID)
	if err != nil {
		logger.CtxWithError(ctx, "unread fan-out skipped", err, "chat_id", chatID)
		return
	}
	for _, p := range participants {
		if p.UserID == senderID {
			continue
		}
		count, err := s.repo.CountUnread(db, chatID, p.UserID, p.LastReadAt)
		if err != nil {
			logger.CtxWithError(ctx, "unread count failed", err, "chat_id", chatID, "user_id", p.UserID)
			continue
		}
		s.publish(ctx, realtime.UserTopic(p.UserID), realtime.UnreadCountUpdate{
			UserID:      p.UserID,
			ChatID:      chatID,
			UnreadCount: count,
		})
	}
}

// GetMessages pages history newest first. before is the id of the oldest message already seen.
func (s *MessageService) GetMessages(ctx context.Context, db *gorm.DB, callerID, chatID string, query dto.MessageListQuery) (*dto.MessageListResponse, error) {
	db = db.WithContext(ctx)
	if _, err := s.requireParticipant(db, chatID, callerID); err != nil {
		return nil, err
	}

	limit := query.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	messages, err := s.repo.FindMessagesByChat(db, chatID, repositories.MessageCriteria{
		BeforeID: query.Before,
		Limit:    limit + 1,
	})
	if err != nil {
		return nil, handleChatError(err)
	}

	resp := &dto.MessageListResponse{Messages: make([]*dto.MessageResponse, 0, limit)}
	if len(messages) > limit {
		messages = messages[:limit]
		resp.HasMore = true
	}
	for i := range messages {
		resp.Messages = append(resp.Messages, dto.NewMessageResponse(&messages[i], GroupReactions(messages[i].Reactions)))
	}
	if resp.HasMore {
		cursor := messages[len(messages)-1].ID
		resp.NextCursor = &cursor
	}
	return resp, nil
}

func (s *MessageService) GetMessage(ctx context.Context, db *gorm.DB, callerID, messageID string) (*dto.MessageResponse, error) {
	db = db.WithContext(ctx)
	msg, err := s.repo.FindMessageByID(db, messageID)
	if err != nil {
		return nil, handleChatError(err)
	}
	if _, err := s.requireParticipant(db, msg.ChatID, callerID); err != nil {
		return nil, err
	}
	return dto.NewMessageResponse(msg, GroupReactions(msg.Reactions)), nil
}
