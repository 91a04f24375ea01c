package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"huddle_backend/database"
	"huddle_backend/internal/auth"
	"huddle_backend/internal/blobstore"
	"huddle_backend/internal/handlers"
	"huddle_backend/internal/middleware"
	"huddle_backend/internal/realtime"
	"huddle_backend/internal/repositories"
	"huddle_backend/internal/routes"
	chatService "huddle_backend/internal/services/chat"
	"huddle_backend/internal/services/dto"
	"huddle_backend/internal/validator"
	"huddle_backend/ws"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const mediaBase = "https://cdn.huddle.test/media/"

type discardDeliverer struct{}

func (discardDeliverer) Deliver(realtime.Topic, []byte) {}

type testAPI struct {
	router *gin.Engine
	tokens *auth.TokenParser
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "api.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	services := chatService.NewServices(
		repositories.NewChatRepository(),
		realtime.NewLocalBroker(discardDeliverer{}),
		blobstore.NewPrefixVerifier([]string{mediaBase}),
	)
	manager := ws.NewManager(realtime.NewMemorySessionRegistry())
	uploader, err := blobstore.NewS3Uploader(context.Background(), blobstore.S3Config{
		Bucket:        "chat-media",
		Endpoint:      "https://r2.huddle.test",
		AccessKey:     "AKIDTEST",
		SecretKey:     "secret",
		PublicBaseURL: mediaBase,
	})
	require.NoError(t, err)
	base := handlers.NewBaseHandler(validator.New())
	appHandlers := &handlers.AppHandlers{
		ChatHandler:   handlers.NewChatHandler(base, services),
		HealthHandler: handlers.NewHealthHandler(db, nil),
		WSHandler:     ws.NewWebSocketHandler(manager, chatService.NewLiveGateway(db, services.Presence), ws.DefaultOptions(), []string{"*"}),
		MediaHandler:  handlers.NewMediaHandler(base, uploader),
	}

	tokens := auth.NewTokenParser("handler-test-secret")
	router := gin.New()
	router.Use(middleware.RequestIDMiddleware(), middleware.DBMiddleware(db))
	routes.RegisterRoutes(router, appHandlers, tokens)

	return &testAPI{router: router, tokens: tokens}
}

func (a *testAPI) do(t *testing.T, method, path, userID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		token, err := a.tokens.IssueToken(userID, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type errorBody struct {
	Error struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

func TestChatAPI_RequiresToken(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/api/v1/chats", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chats", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec = httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_TOKEN", decode[errorBody](t, rec).Error.Code)
}

func TestChatAPI_ConversationFlow(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/v1/chats/group", "alice", dto.CreateGroupChatRequest{
		Name:           "launch",
		ParticipantIDs: []string{"bob"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	chat := decode[dto.ChatResponse](t, rec)
	require.Len(t, chat.Participants, 2)

	rec = api.do(t, http.MethodPost, "/api/v1/chats/"+chat.ID+"/messages", "alice", dto.SendMessageRequest{
		Type:    "TEXT",
		Content: "ship it",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	msg := decode[dto.MessageResponse](t, rec)

	rec = api.do(t, http.MethodGet, "/api/v1/chats/"+chat.ID+"/unread-count", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), decode[dto.UnreadCountResponse](t, rec).UnreadCount)

	rec = api.do(t, http.MethodPost, "/api/v1/messages/"+msg.ID+"/reactions", "bob", dto.AddReactionRequest{Emoji: "🚀"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodGet, "/api/v1/chats/"+chat.ID+"/messages?limit=10", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[dto.MessageListResponse](t, rec)
	require.Len(t, page.Messages, 1)
	require.Len(t, page.Messages[0].Reactions, 1)
	assert.Equal(t, []string{"bob"}, page.Messages[0].Reactions[0].Users)
	assert.False(t, page.HasMore)

	rec = api.do(t, http.MethodPost, "/api/v1/chats/"+chat.ID+"/read-receipts", "bob", dto.MarkMessagesReadRequest{
		MessageIDs: []string{msg.ID},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodGet, "/api/v1/messages/"+msg.ID+"/read-receipts", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"user_id":"bob"`)

	rec = api.do(t, http.MethodPost, "/api/v1/chats/"+chat.ID+"/read", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = api.do(t, http.MethodGet, "/api/v1/unread-count", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(0), decode[dto.UnreadCountResponse](t, rec).UnreadCount)

	rec = api.do(t, http.MethodDelete, "/api/v1/messages/"+msg.ID+"/reactions/"+url.PathEscape("🚀"), "bob", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/v1/chats/"+chat.ID+"/typing", "bob", dto.TypingRequest{IsTyping: true})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/v1/chats/"+chat.ID+"/leave", "bob", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = api.do(t, http.MethodGet, "/api/v1/chats/"+chat.ID, "bob", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestChatAPI_DirectChatIsIdempotent(t *testing.T) {
	api := newTestAPI(t)

	first := api.do(t, http.MethodPost, "/api/v1/chats/direct", "alice", dto.CreateDirectChatRequest{UserID: "bob"})
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	second := api.do(t, http.MethodPost, "/api/v1/chats/direct", "bob", dto.CreateDirectChatRequest{UserID: "alice"})
	require.Equal(t, http.StatusOK, second.Code)

	assert.Equal(t, decode[dto.ChatResponse](t, first).ID, decode[dto.ChatResponse](t, second).ID)

	rec := api.do(t, http.MethodGet, "/api/v1/chats", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decode[struct {
		Chats []dto.ChatResponse `json:"chats"`
	}](t, rec)
	assert.Len(t, listed.Chats, 1)
}

func TestChatAPI_EphemeralReveal(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, http.MethodPost, "/api/v1/chats/direct", "u1", dto.CreateDirectChatRequest{UserID: "u2"})
	require.Equal(t, http.StatusOK, rec.Code)
	chat := decode[dto.ChatResponse](t, rec)

	duration := -1
	mediaURL := mediaBase + "u1/voice.ogg"
	rec = api.do(t, http.MethodPost, "/api/v1/chats/"+chat.ID+"/messages", "u1", dto.SendMessageRequest{
		Type:                  "VOICE",
		MediaURL:              &mediaURL,
		IsEphemeral:           true,
		EphemeralViewDuration: &duration,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	msg := decode[dto.MessageResponse](t, rec)

	rec = api.do(t, http.MethodPost, "/api/v1/messages/"+msg.ID+"/ephemeral/view", "u2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u2", decode[dto.EphemeralViewResponse](t, rec).ViewedBy)

	rec = api.do(t, http.MethodPost, "/api/v1/messages/"+msg.ID+"/ephemeral/view", "u1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", decode[errorBody](t, rec).Error.Code)
}

func TestChatAPI_GroupWithoutName(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/v1/chats/group", "alice", map[string]interface{}{"participant_ids": []string{"bob"}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	chat := decode[dto.ChatResponse](t, rec)
	assert.Nil(t, chat.Name)
	assert.Len(t, chat.Participants, 2)
}

func TestChatAPI_DurationIgnoredOnPlainMessage(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, http.MethodPost, "/api/v1/chats/direct", "u1", dto.CreateDirectChatRequest{UserID: "u2"})
	require.Equal(t, http.StatusOK, rec.Code)
	chat := decode[dto.ChatResponse](t, rec)

	rec = api.do(t, http.MethodPost, "/api/v1/chats/"+chat.ID+"/messages", "u1", map[string]interface{}{
		"type": "TEXT", "content": "not a secret", "ephemeral_view_duration": 500,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	msg := decode[dto.MessageResponse](t, rec)
	assert.False(t, msg.IsEphemeral)
	assert.Nil(t, msg.EphemeralViewDuration)
}

func TestChatAPI_ErrorMapping(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, http.MethodPost, "/api/v1/chats/group", "alice", dto.CreateGroupChatRequest{Name: "team"})
	require.Equal(t, http.StatusCreated, rec.Code)
	chat := decode[dto.ChatResponse](t, rec)

	tests := []struct {
		name     string
		method   string
		path     string
		user     string
		body     interface{}
		wantCode int
		wantErr  string
	}{
		{
			name:   "unknown message type",
			method: http.MethodPost, path: "/api/v1/chats/" + chat.ID + "/messages", user: "alice",
			body:     map[string]interface{}{"type": "GIF", "content": "x"},
			wantCode: http.StatusBadRequest, wantErr: "VALIDATION_FAILED",
		},
		{
			name:   "duration out of range",
			method: http.MethodPost, path: "/api/v1/chats/" + chat.ID + "/messages", user: "alice",
			body:     map[string]interface{}{"type": "IMAGE", "media_url": mediaBase + "a.png", "is_ephemeral": true, "ephemeral_view_duration": 500},
			wantCode: http.StatusBadRequest, wantErr: "VALIDATION_FAILED",
		},
		{
			name:   "foreign media",
			method: http.MethodPost, path: "/api/v1/chats/" + chat.ID + "/messages", user: "alice",
			body:     map[string]interface{}{"type": "IMAGE", "media_url": "https://elsewhere.test/a.png"},
			wantCode: http.StatusBadRequest, wantErr: "VALIDATION_FAILED",
		},
		{
			name:   "emoji with whitespace",
			method: http.MethodPost, path: "/api/v1/messages/whatever/reactions", user: "alice",
			body:     map[string]interface{}{"emoji": "a b"},
			wantCode: http.StatusBadRequest, wantErr: "VALIDATION_FAILED",
		},
		{
			name:   "not a participant",
			method: http.MethodGet, path: "/api/v1/chats/" + chat.ID, user: "mallory",
			wantCode: http.StatusForbidden, wantErr: "FORBIDDEN",
		},
		{
			name:   "unknown chat",
			method: http.MethodGet, path: "/api/v1/chats/nope/messages", user: "alice",
			wantCode: http.StatusNotFound, wantErr: "NOT_FOUND",
		},
		{
			name:   "unknown message",
			method: http.MethodPost, path: "/api/v1/messages/nope/ephemeral/view", user: "alice",
			wantCode: http.StatusNotFound, wantErr: "NOT_FOUND",
		},
		{
			name:   "settings need a flag",
			method: http.MethodPut, path: "/api/v1/chats/" + chat.ID + "/read-receipts/settings", user: "alice",
			body:     map[string]interface{}{},
			wantCode: http.StatusBadRequest, wantErr: "VALIDATION_FAILED",
		},
		{
			name:   "page size too large",
			method: http.MethodGet, path: "/api/v1/chats/" + chat.ID + "/messages?limit=1000", user: "alice",
			wantCode: http.StatusBadRequest, wantErr: "VALIDATION_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, tt.method, tt.path, tt.user, tt.body)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantErr, decode[errorBody](t, rec).Error.Code)
		})
	}
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]interface{}](t, rec)
	assert.Equal(t, "ok", body["status"])
}
