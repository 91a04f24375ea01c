package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"huddle_backend/internal/logger"
	"huddle_backend/internal/realtime"
	"huddle_backend/pkg/apperrors"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var ErrManagerStopped = errors.New("websocket manager stopped")

// Inbound actions. Anything else is answered with an error frame and ignored.
const (
	ActionJoinChat  = "join_chat"
	ActionLeaveChat = "leave_chat"
	ActionTyping    = "typing"
)

// Gateway is what a session may ask of the chat core.
type Gateway interface {
	JoinChat(ctx context.Context, userID, chatID string) error
	Typing(ctx context.Context, userID, chatID string, isTyping bool) error
	Disconnected(ctx context.Context, userID string)
}

type Options struct {
	SendBuffer     int
	WriteWait      time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
}

func DefaultOptions() Options {
	return Options{
		SendBuffer:     256,
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		MaxMessageSize: 4096,
	}
}

func (o Options) pingPeriod() time.Duration {
	return o.PongWait * 9 / 10
}

type inboundFrame struct {
	Action   string `json:"action"`
	ChatID   string `json:"chat_id"`
	IsTyping bool   `json:"is_typing"`
}

type controlFrame struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

type controlPayload struct {
	Action  string `json:"action,omitempty"`
	ChatID  string `json:"chat_id,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Client is one websocket session of a user. Outbound frames go through a
// buffered channel drained by a single writer goroutine.
type Client struct {
	ID     string
	UserID string

	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	once    sync.Once
	ctx     context.Context
	manager *Manager
	gateway Gateway
	opts    Options
}

func NewClient(conn *websocket.Conn, userID string, manager *Manager, gateway Gateway, opts Options) *Client {
	id := uuid.NewString()
	ctx := logger.WithSessionID(logger.WithUserID(context.Background(), userID), id)
	return &Client{
		ID:      id,
		UserID:  userID,
		conn:    conn,
		send:    make(chan []byte, opts.SendBuffer),
		done:    make(chan struct{}),
		ctx:     ctx,
		manager: manager,
		gateway: gateway,
		opts:    opts,
	}
}

// enqueue reports false when the session is closed or its buffer is full.
func (c *Client) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Close is idempotent. The send channel is never closed, so late enqueues cannot panic.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(c.opts.WriteWait))
			_ = c.conn.Close()
		}
	})
}

func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Start runs both pumps. It returns immediately.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.Close()
		if remaining := c.manager.Unregister(c.ctx, c); remaining == 0 {
			c.gateway.Disconnected(c.ctx, c.UserID)
		}
	}()

	c.conn.SetReadLimit(c.opts.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.manager.Touch(c.ctx, c)
		return c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.CtxWarn(c.ctx, "websocket read error", "error", err.Error())
			}
			return
		}
		c.handleFrame(raw)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.opts.pingPeriod())
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				logger.CtxWarn(c.ctx, "websocket write error", "error", err.Error())
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleFrame(raw []byte) {
	var in inboundFrame
	if err := json.Unmarshal(raw, &in); err != nil {
		c.reply("error", controlPayload{Code: "BAD_FRAME", Message: "frame is not valid JSON"})
		return
	}

	switch in.Action {
	case ActionJoinChat:
		if err := c.gateway.JoinChat(c.ctx, c.UserID, in.ChatID); err != nil {
			c.replyError(in, err)
			return
		}
		c.manager.Subscribe(c, realtime.ChatTopic(in.ChatID))
		c.reply("joined", controlPayload{Action: in.Action, ChatID: in.ChatID})

	case ActionLeaveChat:
		c.manager.Unsubscribe(c, realtime.ChatTopic(in.ChatID))
		c.reply("left", controlPayload{Action: in.Action, ChatID: in.ChatID})

	case ActionTyping:
		if err := c.gateway.Typing(c.ctx, c.UserID, in.ChatID, in.IsTyping); err != nil {
			c.replyError(in, err)
		}

	default:
		c.reply("error", controlPayload{Action: in.Action, Code: "UNKNOWN_ACTION", Message: "unknown action"})
	}
}

func (c *Client) replyError(in inboundFrame, err error) {
	payload := controlPayload{Action: in.Action, ChatID: in.ChatID, Code: string(apperrors.CodeInternalError), Message: "internal error"}
	if appErr, ok := apperrors.AsAppError(err); ok && appErr.HTTPCode < 500 {
		payload.Code = string(appErr.Code)
		payload.Message = appErr.Message
	} else {
		logger.CtxWithError(c.ctx, "websocket action failed", err, "action", in.Action)
	}
	c.reply("error", payload)
}

func (c *Client) reply(event string, payload controlPayload) {
	frame, err := json.Marshal(controlFrame{Event: event, Payload: payload})
	if err != nil {
		return
	}
	c.enqueue(frame)
}
