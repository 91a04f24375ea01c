package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"huddle_backend/internal/services/dto"
)

// Topic is a fan-out channel: "chat:{id}" for a room, "user:{id}" for a person.
type Topic string

const (
	chatTopicPrefix = "chat:"
	userTopicPrefix = "user:"
)

func ChatTopic(chatID string) Topic {
	return Topic(chatTopicPrefix + chatID)
}

func UserTopic(userID string) Topic {
	return Topic(userTopicPrefix + userID)
}

func (t Topic) String() string {
	return string(t)
}

// UserID returns the id of a user topic.
func (t Topic) UserID() (string, bool) {
	s := string(t)
	if !strings.HasPrefix(s, userTopicPrefix) || len(s) == len(userTopicPrefix) {
		return "", false
	}
	return s[len(userTopicPrefix):], true
}

// Valid reports whether t is a chat or user topic with a non-empty id.
func (t Topic) Valid() bool {
	s := string(t)
	switch {
	case strings.HasPrefix(s, chatTopicPrefix):
		return len(s) > len(chatTopicPrefix)
	case strings.HasPrefix(s, userTopicPrefix):
		return len(s) > len(userTopicPrefix)
	}
	return false
}

type EventName string

const (
	EventNewMessage         EventName = "newMessage"
	EventTyping             EventName = "typing"
	EventReactionAdded      EventName = "reactionAdded"
	EventReactionRemoved    EventName = "reactionRemoved"
	EventMessagesRead       EventName = "messagesRead"
	EventEphemeralViewed    EventName = "ephemeralViewed"
	EventUnreadCountUpdate  EventName = "unreadCountUpdate"
	EventUserOffline        EventName = "user:offline"
	EventNewChat            EventName = "newChat"
	EventParticipantRemoved EventName = "participantRemoved"
)

var ErrUnknownEvent = errors.New("unknown event")

// Event is the closed set of live events. Only types in this package implement it.
type Event interface {
	Name() EventName
	event()
}

type NewMessage struct {
	Message *dto.MessageResponse `json:"message"`
}

type Typing struct {
	ChatID   string `json:"chat_id"`
	UserID   string `json:"user_id"`
	IsTyping bool   `json:"is_typing"`
}

type ReactionAdded struct {
	MessageID string                `json:"message_id"`
	UserID    string                `json:"user_id"`
	Emoji     string                `json:"emoji"`
	Reaction  *dto.ReactionResponse `json:"reaction"`
}

type ReactionRemoved struct {
	MessageID string `json:"message_id"`
	UserID    string `json:"user_id"`
	Emoji     string `json:"emoji"`
}

type MessagesRead struct {
	ChatID     string    `json:"chat_id"`
	UserID     string    `json:"user_id"`
	MessageIDs []string  `json:"message_ids"`
	ReadAt     time.Time `json:"read_at"`
}

type EphemeralViewed struct {
	MessageID string    `json:"message_id"`
	ViewedBy  string    `json:"viewed_by"`
	ViewedAt  time.Time `json:"viewed_at"`
}

type UnreadCountUpdate struct {
	UserID      string `json:"user_id"`
	ChatID      string `json:"chat_id"`
	UnreadCount int64  `json:"unread_count"`
}

type UserOffline struct {
	UserID string `json:"user_id"`
}

type NewChat struct {
	Chat *dto.ChatResponse `json:"chat"`
}

// ParticipantRemoved on a user topic also revokes that user's subscriptions to the chat topic.
type ParticipantRemoved struct {
	ChatID    string `json:"chat_id"`
	UserID    string `json:"user_id"`
	RemovedBy string `json:"removed_by"`
}

func (NewMessage) Name() EventName         { return EventNewMessage }
func (Typing) Name() EventName             { return EventTyping }
func (ReactionAdded) Name() EventName      { return EventReactionAdded }
func (ReactionRemoved) Name() EventName    { return EventReactionRemoved }
func (MessagesRead) Name() EventName       { return EventMessagesRead }
func (EphemeralViewed) Name() EventName    { return EventEphemeralViewed }
func (UnreadCountUpdate) Name() EventName  { return EventUnreadCountUpdate }
func (UserOffline) Name() EventName        { return EventUserOffline }
func (NewChat) Name() EventName            { return EventNewChat }
func (ParticipantRemoved) Name() EventName { return EventParticipantRemoved }

func (NewMessage) event()         {}
func (Typing) event()             {}
func (ReactionAdded) event()      {}
func (ReactionRemoved) event()    {}
func (MessagesRead) event()       {}
func (EphemeralViewed) event()    {}
func (UnreadCountUpdate) event()  {}
func (UserOffline) event()        {}
func (NewChat) event()            {}
func (ParticipantRemoved) event() {}

var decoders = map[EventName]func(json.RawMessage) (Event, error){
	EventNewMessage:         decodeAs[NewMessage],
	EventTyping:             decodeAs[Typing],
	EventReactionAdded:      decodeAs[ReactionAdded],
	EventReactionRemoved:    decodeAs[ReactionRemoved],
	EventMessagesRead:       decodeAs[MessagesRead],
	EventEphemeralViewed:    decodeAs[EphemeralViewed],
	EventUnreadCountUpdate:  decodeAs[UnreadCountUpdate],
	EventUserOffline:        decodeAs[UserOffline],
	EventNewChat:            decodeAs[NewChat],
	EventParticipantRemoved: decodeAs[ParticipantRemoved],
}

func decodeAs[T Event](raw json.RawMessage) (Event, error) {
	var ev T
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// Envelope is the frame written to sessions and carried between instances.
type Envelope struct {
	Topic   Topic           `json:"topic"`
	Event   EventName       `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

func Encode(topic Topic, ev Event) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ev.Name(), err)
	}
	return json.Marshal(Envelope{Topic: topic, Event: ev.Name(), Payload: payload})
}

// Decode parses a frame back into its typed event. Unknown names fail with ErrUnknownEvent.
func Decode(frame []byte) (Topic, Event, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return "", nil, fmt.Errorf("decode envelope: %w", err)
	}
	decode, ok := decoders[env.Event]
	if !ok {
		return "", nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
	ev, err := decode(env.Payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode %s: %w", env.Event, err)
	}
	return env.Topic, ev, nil
}
