package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"huddle_backend/internal/logger"
	modelChat "huddle_backend/internal/models/chat"
	"huddle_backend/internal/realtime"
	"huddle_backend/internal/repositories"
	"huddle_backend/internal/services/dto"
	"huddle_backend/pkg/apperrors"

	"gorm.io/gorm"
)

var (
	errSelfDirectChat = apperrors.NewBadRequestError("Cannot start a direct chat with yourself")
	errDirectMembers  = apperrors.NewBadRequestError("Direct chats always have exactly two participants")
)

// MembershipService creates chats and manages who is in them.
type MembershipService struct {
	*base
}

// CreateDirectChat returns the DIRECT chat of the pair, creating it on first use.
func (s *MembershipService) CreateDirectChat(ctx context.Context, db *gorm.DB, callerID, otherID string) (*dto.ChatResponse, error) {
	db = db.WithContext(ctx)
	if otherID == "" || otherID == callerID {
		return nil, errSelfDirectChat
	}

	existing, err := s.repo.FindDirectChat(db, callerID, otherID)
	if err == nil {
		return s.chatResponse(db, existing, callerID)
	}
	if !errors.Is(err, repositories.ErrChatNotFound) {
		return nil, handleChatError(err)
	}

	now := s.now()
	key := modelChat.DirectKeyFor(callerID, otherID)
	c := &modelChat.Chat{
		Kind:      modelChat.ChatKindDirect,
		CreatedBy: callerID,
		DirectKey: &key,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.createWithParticipants(db, c, []string{callerID, otherID}, now)
	if errors.Is(err, repositories.ErrDuplicate) {
		// Lost the race: the winner's chat is the answer if it is visible yet.
		if winner, findErr := s.repo.FindDirectChat(db, callerID, otherID); findErr == nil {
			return s.chatResponse(db, winner, callerID)
		}
		return nil, apperrors.ErrDirectChatConflict
	}
	if err != nil {
		return nil, handleChatError(err)
	}

	created, err := s.repo.FindChatByID(db, c.ID)
	if err != nil {
		return nil, handleChatError(err)
	}
	resp := dto.NewChatResponse(created, 0)
	for _, userID := range []string{callerID, otherID} {
		s.publish(ctx, realtime.UserTopic(userID), realtime.NewChat{Chat: resp})
	}
	logger.CtxInfo(ctx, "direct chat created", "chat_id", c.ID)
	return resp, nil
}

// CreateGroupChat creates a GROUP chat with {admin} ∪ participantIDs.
func (s *MembershipService) CreateGroupChat(ctx context.Context, db *gorm.DB, adminID string, req *dto.CreateGroupChatRequest) (*dto.ChatResponse, error) {
	db = db.WithContext(ctx)
	var name *string
	if trimmed := strings.TrimSpace(req.Name); trimmed != "" {
		name = &trimmed
	}

	members := dedupe(append([]string{adminID}, req.ParticipantIDs...))
	now := s.now()
	c := &modelChat.Chat{
		Kind:        modelChat.ChatKindGroup,
		Name:        name,
		Description: req.Description,
		CreatedBy:   adminID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.createWithParticipants(db, c, members, now); err != nil {
		return nil, handleChatError(err)
	}

	created, err := s.repo.FindChatByID(db, c.ID)
	if err != nil {
		return nil, handleChatError(err)
	}
	resp := dto.NewChatResponse(created, 0)
	for _, userID := range members {
		s.publish(ctx, realtime.UserTopic(userID), realtime.NewChat{Chat: resp})
	}
	logger.CtxInfo(ctx, "group chat created", "chat_id", c.ID, "participants", len(members))
	return resp, nil
}

// AddParticipants adds users to a group chat the caller is in. Users already in the chat are skipped;
// if nobody new remains the call fails with ErrAlreadyParticipant.
func (s *MembershipService) AddParticipants(ctx context.Context, db *gorm.DB, callerID, chatID string, userIDs []string) (*dto.ChatResponse, error) {
	db = db.WithContext(ctx)
	c, err := s.repo.FindChatByID(db, chatID)
	if err != nil {
		return nil, handleChatError(err)
	}
	if !hasParticipant(c, callerID) {
		return nil, apperrors.ErrNotAParticipant
	}
	if c.IsDirect() {
		return nil, errDirectMembers
	}

	var added []string
	for _, userID := range dedupe(userIDs) {
		if !hasParticipant(c, userID) {
			added = append(added, userID)
		}
	}
	if len(added) == 0 {
		return nil, apperrors.ErrAlreadyParticipant
	}

	now := s.now()
	participants := make([]*modelChat.Participant, 0, len(added))
	for i, userID := range added {
		participants = append(participants, modelChat.NewParticipant(chatID, userID, joinOrder(now, i)))
	}
	if err := s.repo.AddParticipants(db, participants); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, apperrors.ErrAlreadyParticipant
		}
		return nil, handleChatError(err)
	}

	updated, err := s.repo.FindChatByID(db, chatID)
	if err != nil {
		return nil, handleChatError(err)
	}
	resp := dto.NewChatResponse(updated, 0)
	for _, userID := range added {
		s.publish(ctx, realtime.UserTopic(userID), realtime.NewChat{Chat: resp})
	}
	return s.chatResponse(db, updated, callerID)
}

// RemoveParticipant deletes the membership row of targetID. Sent messages and receipts stay.
func (s *MembershipService) RemoveParticipant(ctx context.Context, db *gorm.DB, callerID, chatID, targetID string) error {
	db = db.WithContext(ctx)
	c, err := s.repo.FindChatByID(db, chatID)
	if err != nil {
		return handleChatError(err)
	}
	if !hasParticipant(c, callerID) {
		return apperrors.ErrNotAParticipant
	}
	if c.IsDirect() {
		return errDirectMembers
	}
	if err := s.repo.RemoveParticipant(db, chatID, targetID); err != nil {
		return handleChatError(err)
	}
	logger.CtxInfo(ctx, "participant removed", "chat_id", chatID, "target_id", targetID)

	ev := realtime.ParticipantRemoved{ChatID: chatID, UserID: targetID, RemovedBy: callerID}
	s.publish(ctx, realtime.ChatTopic(chatID), ev)
	s.publish(ctx, realtime.UserTopic(targetID), ev)
	return nil
}

// LeaveChat removes the caller from a group chat.
func (s *MembershipService) LeaveChat(ctx context.Context, db *gorm.DB, callerID, chatID string) error {
	return s.RemoveParticipant(ctx, db, callerID, chatID, callerID)
}

func (s *MembershipService) GetChat(ctx context.Context, db *gorm.DB, callerID, chatID string) (*dto.ChatResponse, error) {
	db = db.WithContext(ctx)
	c, err := s.repo.FindChatByID(db, chatID)
	if err != nil {
		return nil, handleChatError(err)
	}
	if !hasParticipant(c, callerID) {
		return nil, apperrors.ErrNotAParticipant
	}
	return s.chatResponse(db, c, callerID)
}

// ListChats returns the caller's chats, most recently active first, each with its unread count.
func (s *MembershipService) ListChats(ctx context.Context, db *gorm.DB, callerID string) ([]*dto.ChatResponse, error) {
	db = db.WithContext(ctx)
	chats, err := s.repo.FindUserChats(db, callerID)
	if err != nil {
		return nil, handleChatError(err)
	}

	responses := make([]*dto.ChatResponse, 0, len(chats))
	for i := range chats {
		resp, err := s.chatResponse(db, &chats[i], callerID)
		if err != nil {
			return nil, err
		}
		responses = append(responses, resp)
	}
	return responses, nil
}

func (s *MembershipService) createWithParticipants(db *gorm.DB, c *modelChat.Chat, members []string, now time.Time) error {
	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}
	defer tx.Rollback()

	if err := s.repo.CreateChat(tx, c); err != nil {
		return err
	}

	participants := make([]*modelChat.Participant, 0, len(members))
	for i, userID := range members {
		participants = append(participants, modelChat.NewParticipant(c.ID, userID, joinOrder(now, i)))
	}
	if err := s.repo.AddParticipants(tx, participants); err != nil {
		return err
	}

	return tx.Commit().Error
}

func (s *MembershipService) chatResponse(db *gorm.DB, c *modelChat.Chat, callerID string) (*dto.ChatResponse, error) {
	var unread int64
	for _, p := range c.Participants {
		if p.UserID != callerID {
			continue
		}
		count, err := s.repo.CountUnread(db, c.ID, callerID, p.LastReadAt)
		if err != nil {
			return nil, handleChatError(err)
		}
		unread = count
	}
	return dto.NewChatResponse(c, unread), nil
}

func hasParticipant(c *modelChat.Chat, userID string) bool {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// joinOrder spaces out rows created in one call so joined_at keeps the requested order.
func joinOrder(now time.Time, i int) time.Time {
	return now.Add(time.Duration(i) * time.Microsecond)
}
