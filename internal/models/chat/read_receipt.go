package chat

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReadReceipt struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	MessageID string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_receipt_message_user" json:"message_id"`
	UserID    string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_receipt_message_user" json:"user_id"`
	ReadAt    time.Time `gorm:"not null" json:"read_at"`
}

func (ReadReceipt) TableName() string {
	return "chat_message_read_receipts"
}

func (r *ReadReceipt) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
