package chat

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MessageType string

const (
	MessageTypeText  MessageType = "TEXT"
	MessageTypeImage MessageType = "IMAGE"
	MessageTypeVideo MessageType = "VIDEO"
	MessageTypeFile  MessageType = "FILE"
	MessageTypeVoice MessageType = "VOICE"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeVideo, MessageTypeFile, MessageTypeVoice:
		return true
	}
	return false
}

func (t MessageType) IsMedia() bool {
	return t != MessageTypeText
}

const (
	// EphemeralPlayOnce is the view duration of a "play once" message.
	EphemeralPlayOnce  = -1
	EphemeralMinSecond = 1
	EphemeralMaxSecond = 300
)

type Message struct {
	ID        string      `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ChatID    string      `gorm:"type:varchar(36);not null;index:idx_message_chat_created,priority:1" json:"chat_id"`
	SenderID  string      `gorm:"type:varchar(64);not null;index" json:"sender_id"`
	Type      MessageType `gorm:"type:varchar(10);not null" json:"type"`
	Content   string      `gorm:"type:text" json:"content"`
	MediaURL  *string     `json:"media_url,omitempty"`
	ReplyToID *string     `gorm:"type:varchar(36);index" json:"reply_to_id,omitempty"`

	IsEphemeral           bool       `gorm:"not null" json:"is_ephemeral"`
	EphemeralViewDuration *int       `json:"ephemeral_view_duration,omitempty"`
	EphemeralViewedAt     *time.Time `json:"ephemeral_viewed_at,omitempty"`
	EphemeralViewedBy     *string    `gorm:"type:varchar(64)" json:"ephemeral_viewed_by,omitempty"`

	CreatedAt time.Time `gorm:"not null;index:idx_message_chat_created,priority:2" json:"created_at"`

	Reactions []Reaction `gorm:"foreignKey:MessageID" json:"-"`
}

func (Message) TableName() string {
	return "chat_messages"
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

func (m *Message) Viewed() bool {
	return m.EphemeralViewedAt != nil
}

// ValidEphemeralDuration reports whether d is play-once or within the allowed seconds range.
// An unlimited (looping) reveal is expressed by a nil duration and never reaches here.
func ValidEphemeralDuration(d int) bool {
	return d == EphemeralPlayOnce || (d >= EphemeralMinSecond && d <= EphemeralMaxSecond)
}
