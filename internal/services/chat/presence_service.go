package chat

import (
	"context"

	"huddle_backend/internal/logger"
	"huddle_backend/internal/realtime"

	"gorm.io/gorm"
)

// PresenceService handles typing and online signals. Nothing here is persisted.
type PresenceService struct {
	*base
}

func (s *PresenceService) SetTyping(ctx context.Context, db *gorm.DB, callerID, chatID string, isTyping bool) error {
	if _, err := s.requireParticipant(db.WithContext(ctx), chatID, callerID); err != nil {
		return err
	}
	s.publish(ctx, realtime.ChatTopic(chatID), realtime.Typing{ChatID: chatID, UserID: callerID, IsTyping: isTyping})
	return nil
}

// CanJoin checks that callerID may subscribe to the chat's live topic.
func (s *PresenceService) CanJoin(ctx context.Context, db *gorm.DB, callerID, chatID string) error {
	_, err := s.requireParticipant(db.WithContext(ctx), chatID, callerID)
	return err
}

// UserOffline tells the user's other devices and every chat of the user that the last session closed.
func (s *PresenceService) UserOffline(ctx context.Context, db *gorm.DB, userID string) {
	ev := realtime.UserOffline{UserID: userID}
	s.publish(ctx, realtime.UserTopic(userID), ev)

	chats, err := s.repo.FindUserChats(db.WithContext(ctx), userID)
	if err != nil {
		logger.CtxWithError(ctx, "offline fan-out skipped", err)
		return
	}
	for _, c := range chats {
		s.publish(ctx, realtime.ChatTopic(c.ID), ev)
	}
}

// LiveGateway adapts the presence service to websocket sessions, which carry no request-scoped db.
type LiveGateway struct {
	db       *gorm.DB
	presence *PresenceService
}

func NewLiveGateway(db *gorm.DB, presence *PresenceService) *LiveGateway {
	return &LiveGateway{db: db, presence: presence}
}

func (g *LiveGateway) JoinChat(ctx context.Context, userID, chatID string) error {
	return g.presence.CanJoin(ctx, g.db, userID, chatID)
}

func (g *LiveGateway) Typing(ctx context.Context, userID, chatID string, isTyping bool) error {
	return g.presence.SetTyping(ctx, g.db, userID, chatID, isTyping)
}

func (g *LiveGateway) Disconnected(ctx context.Context, userID string) {
	g.presence.UserOffline(ctx, g.db, userID)
}
