package chat

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Epoch is the watermark of a participant who has never read the chat.
var Epoch = time.Unix(0, 0).UTC()

type Participant struct {
	ID                  string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ChatID              string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_participant_chat_user" json:"chat_id"`
	UserID              string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_participant_chat_user;index" json:"user_id"`
	JoinedAt            time.Time `gorm:"not null" json:"joined_at"`
	LastReadAt          time.Time `gorm:"not null" json:"last_read_at"`
	ReadReceiptsEnabled bool      `gorm:"not null" json:"read_receipts_enabled"`
}

func (Participant) TableName() string {
	return "chat_participants"
}

func (p *Participant) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.LastReadAt.IsZero() {
		p.LastReadAt = Epoch
	}
	return nil
}

// NewParticipant returns a membership row with read receipts switched on.
// ReadReceiptsEnabled has no column default and must be set here.
func NewParticipant(chatID, userID string, joinedAt time.Time) *Participant {
	return &Participant{
		ChatID:              chatID,
		UserID:              userID,
		JoinedAt:            joinedAt,
		LastReadAt:          Epoch,
		ReadReceiptsEnabled: true,
	}
}
