package chat

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ChatKind string

const (
	ChatKindDirect ChatKind = "DIRECT"
	ChatKindGroup  ChatKind = "GROUP"
)

type Chat struct {
	ID          string   `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Kind        ChatKind `gorm:"type:varchar(10);not null;index" json:"kind"`
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	CreatedBy   string   `gorm:"type:varchar(64);not null" json:"created_by"`
	// DirectKey is the sorted user pair of a DIRECT chat, NULL for groups.
	DirectKey *string   `gorm:"type:varchar(160);uniqueIndex" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `gorm:"index" json:"updated_at"`

	Participants []Participant `gorm:"foreignKey:ChatID" json:"participants,omitempty"`
}

func (Chat) TableName() string {
	return "chats"
}

func (c *Chat) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

func (c *Chat) IsDirect() bool {
	return c.Kind == ChatKindDirect
}

// DirectKeyFor is order independent: DirectKeyFor(a, b) == DirectKeyFor(b, a).
func DirectKeyFor(userA, userB string) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return userA + ":" + userB
}
