package repositories

import (
	"errors"
	"strings"
	"time"

	"huddle_backend/internal/models/chat"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrChatNotFound        = errors.New("chat not found")
	ErrMessageNotFound     = errors.New("message not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrDuplicate           = errors.New("duplicate record")
)

const (
	defaultMessageLimit = 50
	maxMessageLimit     = 200
	pgUniqueViolation   = "23505"
)

// ChatRepository is the only mutable shared resource of the chat core.
// Every method takes the *gorm.DB to run on, so callers can pass either the
// pool or an open transaction.
type ChatRepository interface {
	// Chat operations
	CreateChat(db *gorm.DB, c *chat.Chat) error
	FindChatByID(db *gorm.DB, id string) (*chat.Chat, error)
	FindDirectChat(db *gorm.DB, userA, userB string) (*chat.Chat, error)
	FindUserChats(db *gorm.DB, userID string) ([]chat.Chat, error)
	TouchChat(db *gorm.DB, chatID string, at time.Time) error

	// Participant operations
	AddParticipants(db *gorm.DB, participants []*chat.Participant) error
	FindParticipant(db *gorm.DB, chatID, userID string) (*chat.Participant, error)
	FindParticipantsByChat(db *gorm.DB, chatID string) ([]chat.Participant, error)
	IsUserInChat(db *gorm.DB, chatID, userID string) (bool, error)
	RemoveParticipant(db *gorm.DB, chatID, userID string) error
	UpdateLastReadAt(db *gorm.DB, chatID, userID string, at time.Time) error
	SetReadReceiptsEnabled(db *gorm.DB, chatID, userID string, enabled bool) error

	// Message operations
	CreateMessage(db *gorm.DB, m *chat.Message) error
	FindMessageByID(db *gorm.DB, id string) (*chat.Message, error)
	FindMessagesByChat(db *gorm.DB, chatID string, criteria MessageCriteria) ([]chat.Message, error)
	FilterMessageIDsInChat(db *gorm.DB, chatID string, ids []string) ([]string, error)
	CountUnread(db *gorm.DB, chatID, userID string, since time.Time) (int64, error)
	CountUnreadTotal(db *gorm.DB, userID string) (int64, error)
	MarkEphemeralViewed(db *gorm.DB, messageID, userID string, at time.Time) (bool, error)

	// Reaction operations
	UpsertReaction(db *gorm.DB, r *chat.Reaction) (*chat.Reaction, error)
	RemoveReaction(db *gorm.DB, messageID, userID, emoji string) (bool, error)
	FindReactionsByMessage(db *gorm.DB, messageID string) ([]chat.Reaction, error)

	// Read receipt operations
	UpsertReadReceipts(db *gorm.DB, receipts []chat.ReadReceipt) error
	FindReadReceiptsByMessage(db *gorm.DB, messageID string) ([]chat.ReadReceipt, error)
}

type ChatRepositoryImpl struct{}

// MessageCriteria pages history backwards from BeforeID (exclusive).
type MessageCriteria struct {
	BeforeID string
	Limit    int
}

func NewChatRepository() ChatRepository {
	return &ChatRepositoryImpl{}
}

// Chat operations

func (r *ChatRepositoryImpl) CreateChat(db *gorm.DB, c *chat.Chat) error {
	return translateError(db.Omit(clause.Associations).Create(c).Error)
}

func (r *ChatRepositoryImpl) FindChatByID(db *gorm.DB, id string) (*chat.Chat, error) {
	var c chat.Chat
	err := db.Preload("Participants", orderByJoin).First(&c, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *ChatRepositoryImpl) FindDirectChat(db *gorm.DB, userA, userB string) (*chat.Chat, error) {
	var c chat.Chat
	err := db.Preload("Participants", orderByJoin).
		Where("kind = ? AND direct_key = ?", chat.ChatKindDirect, chat.DirectKeyFor(userA, userB)).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *ChatRepositoryImpl) FindUserChats(db *gorm.DB, userID string) ([]chat.Chat, error) {
	var chats []chat.Chat
	err := db.Preload("Participants", orderByJoin).
		Joins("JOIN chat_participants cp ON cp.chat_id = chats.id").
		Where("cp.user_id = ?", userID).
		Order("chats.updated_at DESC").
		Order("chats.id DESC").
		Find(&chats).Error
	return chats, err
}

func (r *ChatRepositoryImpl) TouchChat(db *gorm.DB, chatID string, at time.Time) error {
	result := db.Model(&chat.Chat{}).Where("id = ?", chatID).UpdateColumn("updated_at", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrChatNotFound
	}
	return nil
}

// Participant operations

func (r *ChatRepositoryImpl) AddParticipants(db *gorm.DB, participants []*chat.Participant) error {
	if len(participants) == 0 {
		return nil
	}
	return translateError(db.CreateInBatches(participants, 50).Error)
}

func (r *ChatRepositoryImpl) FindParticipant(db *gorm.DB, chatID, userID string) (*chat.Participant, error) {
	var p chat.Participant
	err := db.Where("chat_id = ? AND user_id = ?", chatID, userID).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrParticipantNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *ChatRepositoryImpl) FindParticipantsByChat(db *gorm.DB, chatID string) ([]chat.Participant, error) {
	var participants []chat.Participant
	err := orderByJoin(db.Where("chat_id = ?", chatID)).Find(&participants).Error
	return participants, err
}

func (r *ChatRepositoryImpl) IsUserInChat(db *gorm.DB, chatID, userID string) (bool, error) {
	var count int64
	err := db.Model(&chat.Participant{}).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *ChatRepositoryImpl) RemoveParticipant(db *gorm.DB, chatID, userID string) error {
	result := db.Where("chat_id = ? AND user_id = ?", chatID, userID).Delete(&chat.Participant{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrParticipantNotFound
	}
	return nil
}

func (r *ChatRepositoryImpl) UpdateLastReadAt(db *gorm.DB, chatID, userID string, at time.Time) error {
	result := db.Model(&chat.Participant{}).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		UpdateColumn("last_read_at", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrParticipantNotFound
	}
	return nil
}

func (r *ChatRepositoryImpl) SetReadReceiptsEnabled(db *gorm.DB, chatID, userID string, enabled bool) error {
	result := db.Model(&chat.Participant{}).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		UpdateColumn("read_receipts_enabled", enabled)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrParticipantNotFound
	}
	return nil
}

// Message operations

func (r *ChatRepositoryImpl) CreateMessage(db *gorm.DB, m *chat.Message) error {
	return translateError(db.Omit(clause.Associations).Create(m).Error)
}

func (r *ChatRepositoryImpl) FindMessageByID(db *gorm.DB, id string) (*chat.Message, error) {
	var m chat.Message
	err := db.Preload("Reactions", orderByCreated).First(&m, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *ChatRepositoryImpl) FindMessagesByChat(db *gorm.DB, chatID string, criteria MessageCriteria) ([]chat.Message, error) {
	query := db.Preload("Reactions", orderByCreated).Where("chat_id = ?", chatID)

	if criteria.BeforeID != "" {
		var cursor chat.Message
		err := db.Select("id", "created_at").
			Where("id = ? AND chat_id = ?", criteria.BeforeID, chatID).
			First(&cursor).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrMessageNotFound
			}
			return nil, err
		}
		query = query.Where("((created_at < ?) OR (created_at = ? AND id < ?))",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	limit := criteria.Limit
	if limit <= 0 {
		limit = defaultMessageLimit
	}
	if limit > maxMessageLimit {
		limit = maxMessageLimit
	}

	var messages []chat.Message
	err := query.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&messages).Error
	return messages, err
}

func (r *ChatRepositoryImpl) FilterMessageIDsInChat(db *gorm.DB, chatID string, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var found []string
	err := db.Model(&chat.Message{}).
		Where("chat_id = ? AND id IN ?", chatID, ids).
		Pluck("id", &found).Error
	return found, err
}

func (r *ChatRepositoryImpl) CountUnread(db *gorm.DB, chatID, userID string, since time.Time) (int64, error) {
	var count int64
	err := db.Model(&chat.Message{}).
		Where("chat_id = ? AND sender_id <> ? AND created_at > ?", chatID, userID, since).
		Count(&count).Error
	return count, err
}

func (r *ChatRepositoryImpl) CountUnreadTotal(db *gorm.DB, userID string) (int64, error) {
	var count int64
	err := db.Model(&chat.Message{}).
		Joins("JOIN chat_participants cp ON cp.chat_id = chat_messages.chat_id").
		Where("cp.user_id = ? AND chat_messages.sender_id <> ? AND chat_messages.created_at > cp.last_read_at", userID, userID).
		Count(&count).Error
	return count, err
}

// MarkEphemeralViewed is a compare-and-set on ephemeral_viewed_at IS NULL.
// It reports false when another caller already revealed the message.
func (r *ChatRepositoryImpl) MarkEphemeralViewed(db *gorm.DB, messageID, userID string, at time.Time) (bool, error) {
	result := db.Model(&chat.Message{}).
		Where("id = ? AND is_ephemeral = ? AND ephemeral_viewed_at IS NULL", messageID, true).
		UpdateColumns(map[string]interface{}{
			"ephemeral_viewed_at": at,
			"ephemeral_viewed_by": userID,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Reaction operations

func (r *ChatRepositoryImpl) UpsertReaction(db *gorm.DB, reaction *chat.Reaction) (*chat.Reaction, error) {
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "message_id"}, {Name: "user_id"}, {Name: "emoji"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"created_at": reaction.CreatedAt}),
	}).Create(reaction).Error
	if err != nil {
		return nil, translateError(err)
	}

	var stored chat.Reaction
	err = db.Where("message_id = ? AND user_id = ? AND emoji = ?",
		reaction.MessageID, reaction.UserID, reaction.Emoji).First(&stored).Error
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *ChatRepositoryImpl) RemoveReaction(db *gorm.DB, messageID, userID, emoji string) (bool, error) {
	result := db.Where("message_id = ? AND user_id = ? AND emoji = ?", messageID, userID, emoji).
		Delete(&chat.Reaction{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *ChatRepositoryImpl) FindReactionsByMessage(db *gorm.DB, messageID string) ([]chat.Reaction, error) {
	var reactions []chat.Reaction
	err := orderByCreated(db.Where("message_id = ?", messageID)).Find(&reactions).Error
	return reactions, err
}

// Read receipt operations

func (r *ChatRepositoryImpl) UpsertReadReceipts(db *gorm.DB, receipts []chat.ReadReceipt) error {
	if len(receipts) == 0 {
		return nil
	}
	return translateError(db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "message_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"read_at"}),
	}).CreateInBatches(receipts, 50).Error)
}

func (r *ChatRepositoryImpl) FindReadReceiptsByMessage(db *gorm.DB, messageID string) ([]chat.ReadReceipt, error) {
	var receipts []chat.ReadReceipt
	err := db.Where("message_id = ?", messageID).Order("read_at ASC").Find(&receipts).Error
	return receipts, err
}

func orderByJoin(db *gorm.DB) *gorm.DB {
	return db.Order("joined_at ASC").Order("id ASC")
}

func orderByCreated(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC").Order("id ASC")
}

// translateError folds unique violations from every supported driver into ErrDuplicate.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrDuplicate
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return ErrDuplicate
	}
	return err
}
