package repositories

import (
	"errors"

	"worklink_backend/internal/models"

	"gorm.io/gorm"
)

var (
	ErrMessageNotFound = errors.New("message not found")
)

type MessageRepository interface {
	// ListByConversation возвращает полную историю по created_at asc.
	ListByConversation(conversationID string) ([]models.Message, error)
	Create(message *models.Message) error

	// MarkConversationRead массово проставляет read=true всем сообщениям
	// диалога, автор которых не reader. Идемпотентна: повторный вызов
	// на полностью прочитанном диалоге - no-op.
	MarkConversationRead(conversationID, readerID string) error
}

type MessageRepositoryImpl struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &MessageRepositoryImpl{db: db}
}

func (r *MessageRepositoryImpl) ListByConversation(conversationID string) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *MessageRepositoryImpl) Create(message *models.Message) error {
	return r.db.Create(message).Error
}

func (r *MessageRepositoryImpl) MarkConversationRead(conversationID, readerID string) error {
	return r.db.Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND read = ?", conversationID, readerID, false).
		Update("read", true).Error
}
