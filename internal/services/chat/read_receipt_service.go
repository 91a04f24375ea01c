package chat

import (
	"context"

	modelChat "huddle_backend/internal/models/chat"
	"huddle_backend/internal/realtime"
	"huddle_backend/internal/services/dto"
	"huddle_backend/pkg/apperrors"

	"gorm.io/gorm"
)

// ReadReceiptService owns the last-read watermark and per-message receipts.
// Unread counts are always derived from the watermark, never stored.
type ReadReceiptService struct {
	*base
}

// MarkChatRead moves the caller's watermark to now. Receipts are not created.
func (s *ReadReceiptService) MarkChatRead(ctx context.Context, db *gorm.DB, callerID, chatID string) (*dto.UnreadCountResponse, error) {
	db = db.WithContext(ctx)
	p, err := s.requireParticipant(db, chatID, callerID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if now.After(p.LastReadAt) {
		if err := s.repo.UpdateLastReadAt(db, chatID, callerID, now); err != nil {
			return nil, handleChatError(err)
		}
	}

	s.publish(ctx, realtime.UserTopic(callerID), realtime.UnreadCountUpdate{UserID: callerID, ChatID: chatID, UnreadCount: 0})
	return &dto.UnreadCountResponse{ChatID: chatID, UnreadCount: 0}, nil
}

// MarkMessagesAsRead upserts one receipt per message. With receipts switched off it is a no-op.
func (s *ReadReceiptService) MarkMessagesAsRead(ctx context.Context, db *gorm.DB, callerID, chatID string, messageIDs []string) (*dto.MarkMessagesReadResponse, error) {
	db = db.WithContext(ctx)
	p, err := s.requireParticipant(db, chatID, callerID)
	if err != nil {
		return nil, err
	}
	if !p.ReadReceiptsEnabled {
		return &dto.MarkMessagesReadResponse{ReadReceiptsDisabled: true}, nil
	}

	ids := dedupe(messageIDs)
	if len(ids) == 0 {
		return nil, apperrors.ValidationError(map[string]string{"message_ids": "This field is required"})
	}
	found, err := s.repo.FilterMessageIDsInChat(db, chatID, ids)
	if err != nil {
		return nil, handleChatError(err)
	}
	if len(found) != len(ids) {
		return nil, apperrors.ErrMessageNotFound
	}

	readAt := s.now()
	receipts := make([]modelChat.ReadReceipt, 0, len(ids))
	for _, id := range ids {
		receipts = append(receipts, modelChat.ReadReceipt{MessageID: id, UserID: callerID, ReadAt: readAt})
	}
	if err := s.repo.UpsertReadReceipts(db, receipts); err != nil {
		return nil, handleChatError(err)
	}

	s.publish(ctx, realtime.ChatTopic(chatID), realtime.MessagesRead{
		ChatID:     chatID,
		UserID:     callerID,
		MessageIDs: ids,
		ReadAt:     readAt,
	})
	return &dto.MarkMessagesReadResponse{MessageIDs: ids, ReadAt: &readAt}, nil
}

// ToggleReadReceipts flips the participant flag. Existing receipts are left alone.
func (s *ReadReceiptService) ToggleReadReceipts(ctx context.Context, db *gorm.DB, callerID, chatID string, enabled bool) error {
	db = db.WithContext(ctx)
	if _, err := s.requireParticipant(db, chatID, callerID); err != nil {
		return err
	}
	return handleChatError(s.repo.SetReadReceiptsEnabled(db, chatID, callerID, enabled))
}

func (s *ReadReceiptService) GetUnreadCount(ctx context.Context, db *gorm.DB, callerID, chatID string) (*dto.UnreadCountResponse, error) {
	db = db.WithContext(ctx)
	p, err := s.requireParticipant(db, chatID, callerID)
	if err != nil {
		return nil, err
	}
	count, err := s.repo.CountUnread(db, chatID, callerID, p.LastReadAt)
	if err != nil {
		return nil, handleChatError(err)
	}
	return &dto.UnreadCountResponse{ChatID: chatID, UnreadCount: count}, nil
}

// GetTotalUnread sums unread messages over every chat the caller is in.
func (s *ReadReceiptService) GetTotalUnread(ctx context.Context, db *gorm.DB, callerID string) (*dto.UnreadCountResponse, error) {
	count, err := s.repo.CountUnreadTotal(db.WithContext(ctx), callerID)
	if err != nil {
		return nil, handleChatError(err)
	}
	return &dto.UnreadCountResponse{UnreadCount: count}, nil
}

func (s *ReadReceiptService) GetReadReceipts(ctx context.Context, db *gorm.DB, callerID, messageID string) ([]*dto.ReadReceiptResponse, error) {
	db = db.WithContext(ctx)
	msg, err := s.repo.FindMessageByID(db, messageID)
	if err != nil {
		return nil, handleChatError(err)
	}
	if _, err := s.requireParticipant(db, msg.ChatID, callerID); err != nil {
		return nil, err
	}

	receipts, err := s.repo.FindReadReceiptsByMessage(db, messageID)
	if err != nil {
		return nil, handleChatError(err)
	}
	responses := make([]*dto.ReadReceiptResponse, 0, len(receipts))
	for _, r := range receipts {
		responses = append(responses, &dto.ReadReceiptResponse{UserID: r.UserID, ReadAt: r.ReadAt})
	}
	return responses, nil
}
