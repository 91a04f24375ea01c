package dto

import (
	"time"

	"huddle_backend/internal/models/chat"
)

// Request structures

type CreateDirectChatRequest struct {
	UserID string `json:"user_id" validate:"required,max=64"`
}

type CreateGroupChatRequest struct {
	Name           string   `json:"name,omitempty" validate:"max=100"`
	Description    *string  `json:"description,omitempty" validate:"omitempty,max=500"`
	ParticipantIDs []string `json:"participant_ids" validate:"max=256,dive,required,max=64"`
}

type AddParticipantsRequest struct {
	UserIDs []string `json:"user_ids" validate:"required,min=1,max=256,dive,required,max=64"`
}

type SendMessageRequest struct {
	Type                  string  `json:"type" validate:"required,message-type"`
	Content               string  `json:"content" validate:"max=5000"`
	MediaURL              *string `json:"media_url,omitempty" validate:"omitempty,max=2048"`
	ReplyToID             *string `json:"reply_to_id,omitempty" validate:"omitempty,max=36"`
	IsEphemeral           bool    `json:"is_ephemeral"`
	EphemeralViewDuration *int    `json:"ephemeral_view_duration,omitempty" validate:"omitempty,ephemeral-duration"`
}

type MarkMessagesReadRequest struct {
	MessageIDs []string `json:"message_ids" validate:"required,min=1,max=500,dive,required,max=36"`
}

type ReadReceiptSettingsRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

type AddReactionRequest struct {
	Emoji string `json:"emoji" validate:"required,emoji"`
}

type TypingRequest struct {
	IsTyping bool `json:"is_typing"`
}

// MessageListQuery is bound from the query string of the history endpoint.
type MessageListQuery struct {
	Before string `form:"before" json:"before" validate:"omitempty,max=36"`
	Limit  int    `form:"limit" json:"limit" validate:"omitempty,min=1,max=100"`
}

// Response structures

type ChatResponse struct {
	ID           string                 `json:"id"`
	Kind         chat.ChatKind          `json:"kind"`
	Name         *string                `json:"name,omitempty"`
	Description  *string                `json:"description,omitempty"`
	CreatedBy    string                 `json:"created_by"`
	Participants []*ParticipantResponse `json:"participants"`
	UnreadCount  int64                  `json:"unread_count"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

type ParticipantResponse struct {
	UserID              string    `json:"user_id"`
	JoinedAt            time.Time `json:"joined_at"`
	LastReadAt          time.Time `json:"last_read_at"`
	ReadReceiptsEnabled bool      `json:"read_receipts_enabled"`
}

type MessageResponse struct {
	ID                    string           `json:"id"`
	ChatID                string           `json:"chat_id"`
	SenderID              string           `json:"sender_id"`
	Type                  chat.MessageType `json:"type"`
	Content               string           `json:"content"`
	MediaURL              *string          `json:"media_url,omitempty"`
	ReplyToID             *string          `json:"reply_to_id,omitempty"`
	IsEphemeral           bool             `json:"is_ephemeral"`
	EphemeralViewDuration *int             `json:"ephemeral_view_duration,omitempty"`
	EphemeralViewedAt     *time.Time       `json:"ephemeral_viewed_at,omitempty"`
	EphemeralViewedBy     *string          `json:"ephemeral_viewed_by,omitempty"`
	Reactions             []*ReactionGroup `json:"reactions"`
	CreatedAt             time.Time        `json:"created_at"`
}

// ReactionGroup is one emoji with the users that reacted with it, in reaction order.
type ReactionGroup struct {
	Emoji string   `json:"emoji"`
	Count int      `json:"count"`
	Users []string `json:"users"`
}

type ReactionResponse struct {
	ID        string    `json:"id"`
	MessageID string    `json:"message_id"`
	UserID    string    `json:"user_id"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

type MessageListResponse struct {
	Messages   []*MessageResponse `json:"messages"`
	NextCursor *string            `json:"next_cursor,omitempty"`
	HasMore    bool               `json:"has_more"`
}

type MarkMessagesReadResponse struct {
	ReadReceiptsDisabled bool       `json:"read_receipts_disabled"`
	MessageIDs           []string   `json:"message_ids,omitempty"`
	ReadAt               *time.Time `json:"read_at,omitempty"`
}

type ReadReceiptResponse struct {
	UserID string    `json:"user_id"`
	ReadAt time.Time `json:"read_at"`
}

type UnreadCountResponse struct {
	ChatID      string `json:"chat_id,omitempty"`
	UnreadCount int64  `json:"unread_count"`
}

type EphemeralViewResponse struct {
	MessageID string    `json:"message_id"`
	ViewedBy  string    `json:"viewed_by"`
	ViewedAt  time.Time `json:"viewed_at"`
}

// Mappers

func NewParticipantResponse(p *chat.Participant) *ParticipantResponse {
	return &ParticipantResponse{
		UserID:              p.UserID,
		JoinedAt:            p.JoinedAt,
		LastReadAt:          p.LastReadAt,
		ReadReceiptsEnabled: p.ReadReceiptsEnabled,
	}
}

func NewChatResponse(c *chat.Chat, unread int64) *ChatResponse {
	resp := &ChatResponse{
		ID:           c.ID,
		Kind:         c.Kind,
		Name:         c.Name,
		Description:  c.Description,
		CreatedBy:    c.CreatedBy,
		Participants: make([]*ParticipantResponse, 0, len(c.Participants)),
		UnreadCount:  unread,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
	for i := range c.Participants {
		resp.Participants = append(resp.Participants, NewParticipantResponse(&c.Participants[i]))
	}
	return resp
}

// NewMessageResponse maps m; reactions must come from the shared grouping function.
func NewMessageResponse(m *chat.Message, reactions []*ReactionGroup) *MessageResponse {
	if reactions == nil {
		reactions = []*ReactionGroup{}
	}
	return &MessageResponse{
		ID:                    m.ID,
		ChatID:                m.ChatID,
		SenderID:              m.SenderID,
		Type:                  m.Type,
		Content:               m.Content,
		MediaURL:              m.MediaURL,
		ReplyToID:             m.ReplyToID,
		IsEphemeral:           m.IsEphemeral,
		EphemeralViewDuration: m.EphemeralViewDuration,
		EphemeralViewedAt:     m.EphemeralViewedAt,
		EphemeralViewedBy:     m.EphemeralViewedBy,
		Reactions:             reactions,
		CreatedAt:             m.CreatedAt,
	}
}

func NewReactionResponse(r *chat.Reaction) *ReactionResponse {
	return &ReactionResponse{
		ID:        r.ID,
		MessageID: r.MessageID,
		UserID:    r.UserID,
		Emoji:     r.Emoji,
		CreatedAt: r.CreatedAt,
	}
}
