package chat

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Reaction struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	MessageID string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_reaction_message_user_emoji" json:"message_id"`
	UserID    string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_reaction_message_user_emoji" json:"user_id"`
	Emoji     string    `gorm:"type:varchar(32);not null;uniqueIndex:idx_reaction_message_user_emoji" json:"emoji"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (Reaction) TableName() string {
	return "chat_message_reactions"
}

func (r *Reaction) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
