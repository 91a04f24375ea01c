package handlers

import (
	"net/http"

	chatService "huddle_backend/internal/services/chat"
	"huddle_backend/internal/services/dto"

	"github.com/gin-gonic/gin"
)

type ChatHandler struct {
	*BaseHandler
	chat *chatService.Services
}

func NewChatHandler(base *BaseHandler, services *chatService.Services) *ChatHandler {
	return &ChatHandler{
		BaseHandler: base,
		chat:        services,
	}
}

// RegisterRoutes expects r to be behind AuthMiddleware.
func (h *ChatHandler) RegisterRoutes(r *gin.RouterGroup) {
	chats := r.Group("/chats")
	{
		chats.POST("/direct", h.CreateDirectChat)
		chats.POST("/group", h.CreateGroupChat)
		chats.GET("", h.ListChats)
		chats.GET("/:chatID", h.GetChat)

		chats.POST("/:chatID/participants", h.AddParticipants)
		chats.DELETE("/:chatID/participants/:userID", h.RemoveParticipant)
		chats.POST("/:chatID/leave", h.LeaveChat)

		chats.POST("/:chatID/messages", h.SendMessage)
		chats.GET("/:chatID/messages", h.GetMessages)

		chats.POST("/:chatID/read", h.MarkChatRead)
		chats.POST("/:chatID/read-receipts", h.MarkMessagesAsRead)
		chats.PUT("/:chatID/read-receipts/settings", h.ToggleReadReceipts)
		chats.GET("/:chatID/unread-count", h.GetUnreadCount)

		chats.POST("/:chatID/typing", h.SetTyping)
	}

	messages := r.Group("/messages")
	{
		messages.GET("/:messageID", h.GetMessage)
		messages.GET("/:messageID/read-receipts", h.GetReadReceipts)

		messages.POST("/:messageID/reactions", h.AddReaction)
		messages.DELETE("/:messageID/reactions/:emoji", h.RemoveReaction)
		messages.GET("/:messageID/reactions", h.GetReactions)

		messages.POST("/:messageID/ephemeral/view", h.MarkEphemeralAsViewed)
	}

	r.GET("/unread-count", h.GetTotalUnread)
}

// --- Membership ---

func (h *ChatHandler) CreateDirectChat(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	var req dto.CreateDirectChatRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	chat, err := h.chat.Membership.CreateDirectChat(c.Request.Context(), h.GetDB(c), userID, req.UserID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, chat)
}

func (h *ChatHandler) CreateGroupChat(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	var req dto.CreateGroupChatRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	chat, err := h.chat.Membership.CreateGroupChat(c.Request.Context(), h.GetDB(c), userID, &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, chat)
}

func (h *ChatHandler) ListChats(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	chats, err := h.chat.Membership.ListChats(c.Request.Context(), h.GetDB(c), userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

func (h *ChatHandler) GetChat(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	chat, err := h.chat.Membership.GetChat(c.Request.Context(), h.GetDB(c), userID, c.Param("chatID"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, chat)
}

func (h *ChatHandler) AddParticipants(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	var req dto.AddParticipantsRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	chat, err := h.chat.Membership.AddParticipants(c.Request.Context(), h.GetDB(c), userID, c.Param("chatID"), req.UserIDs)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, chat)
}

func (h *ChatHandler) RemoveParticipant(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	err := h.chat.Membership.RemoveParticipant(c.Request.Context(), h.GetDB(c), userID, c.Param("chatID"), c.Param("userID"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ChatHandler) LeaveChat(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	if err := h.chat.Membership.LeaveChat(c.Request.Context(), h.GetDB(c), userID, c.Param("chatID")); err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Messages ---

func (h *ChatHandler) SendMessage(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	var req dto.SendMessageRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	msg, err := h.chat.Messages.SendMessage(c.Request.Context(), h.GetDB(c), userID, c.Param("chatID"), &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *ChatHandler) GetMessages(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	var query dto.MessageListQuery
	if !h.BindAndValidate_Query(c, &query) {
		return
	}

	page, err := h.chat.Messages.GetMessages(c.Request.Context(), h.GetDB(c), userID, c.Param("chatID"), query)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *ChatHandler) GetMessage(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	msg, err := h.chat.Messages.GetMessage(c.Request.Context(), h.GetDB(c), userID, c.Param("messageID"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// --- Read state ---

func (h *ChatHandler) MarkChatRead(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	resp, err := h.chat.ReadReceipts.MarkChatRead(c.Request.Context(), h.GetDB(c), userID, c.Param("chatID"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ChatHandler) MarkMessagesAsRead(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	var req dto.MarkMessagesReadRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	resp, err := h.chat.ReadReceipts.MarkMessagesAsRead(c.Request.Context(), h.GetDB(c), userID, c.Param("chatID"), req.MessageIDs)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ChatHandler) ToggleReadReceipts(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	var req dto.ReadReceiptSettingsRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	if err := h.chat.ReadReceipts.ToggleReadReceipts(c.Request.Context(), h.GetDB(c), userID, c.Param("chatID"), *req.Enabled); err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"read_receipts_enabled": *req.Enabled})
}

func (h *ChatHandler) GetUnreadCount(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	resp, err := h.chat.ReadReceipts.GetUnreadCount(c.Request.Context(), h.GetDB(c), userID, c.Param("chatID"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ChatHandler) GetTotalUnread(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	resp, err := h.chat.ReadReceipts.GetTotalUnread(c.Request.Context(), h.GetDB(c), userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ChatHandler) GetReadReceipts(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	receipts, err := h.chat.ReadReceipts.GetReadReceipts(c.Request.Context(), h.GetDB(c), userID, c.Param("messageID"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"receipts": receipts})
}

// --- Reactions ---

func (h *ChatHandler) AddReaction(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	var req dto.AddReactionRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	reaction, err := h.chat.Reactions.AddReaction(c.Request.Context(), h.GetDB(c), userID, c.Param("messageID"), req.Emoji)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, reaction)
}

func (h *ChatHandler) RemoveReaction(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	if err := h.chat.Reactions.RemoveReaction(c.Request.Context(), h.GetDB(c), userID, c.Param("messageID"), c.Param("emoji")); err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ChatHandler) GetReactions(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	groups, err := h.chat.Reactions.GetReactions(c.Request.Context(), h.GetDB(c), userID, c.Param("messageID"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reactions": groups})
}

// --- Ephemeral and presence ---

func (h *ChatHandler) MarkEphemeralAsViewed(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	resp, err := h.chat.Ephemeral.MarkEphemeralAsViewed(c.Request.Context(), h.GetDB(c), userID, c.Param("messageID"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ChatHandler) SetTyping(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	var req dto.TypingRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	if err := h.chat.Presence.SetTyping(c.Request.Context(), h.GetDB(c), userID, c.Param("chatID"), req.IsTyping); err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
