package repositories

import (
	"errors"
	"time"

	"worklink_backend/internal/models"

	"gorm.io/gorm"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
)

// ConversationRepository - контракт хранилища для диалогов.
// Слой синхронизации зависит только от этого интерфейса,
// в тестах он подменяется in-memory фейком.
type ConversationRepository interface {
	// ListForUser возвращает диалоги, где пользователь - любая из сторон,
	// отсортированные по updated_at desc, с подгруженными участниками.
	ListForUser(userID string) ([]models.Conversation, error)
	FindByID(id string) (*models.Conversation, error)

	// FindByParticipants ищет диалог по точной тройке
	// (работодатель, исполнитель, отклик-или-nil).
	// "Без отклика" - отдельный ключ поиска, а не wildcard.
	FindByParticipants(employerID, workerID string, applicationID *string) (*models.Conversation, error)
	Create(conversation *models.Conversation) error

	// SetLastMessage обновляет денормализованную сводку диалога
	// (last_message, last_message_sender_id, updated_at).
	SetLastMessage(conversationID, body, senderID string) error
	ResetUnread(conversationID string) error
	IncrementUnread(conversationID string) error
}

type ConversationRepositoryImpl struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &ConversationRepositoryImpl{db: db}
}

func (r *ConversationRepositoryImpl) ListForUser(userID string) ([]models.Conversation, error) {
	var conversations []models.Conversation
	err := r.db.
		Preload("Employer").
		Preload("Worker").
		Where("employer_id = ? OR worker_id = ?", userID, userID).
		Order("updated_at DESC").
		Find(&conversations).Error
	if err != nil {
		return nil, err
	}
	return conversations, nil
}

func (r *ConversationRepositoryImpl) FindByID(id string) (*models.Conversation, error) {
	var conversation models.Conversation
	err := r.db.
		Preload("Employer").
		Preload("Worker").
		First(&conversation, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return &conversation, nil
}

func (r *ConversationRepositoryImpl) FindByParticipants(employerID, workerID string, applicationID *string) (*models.Conversation, error) {
	query := r.db.Where("employer_id = ? AND worker_id = ?", employerID, workerID)
	if applicationID != nil {
		query = query.Where("application_id = ?", *applicationID)
	} else {
		query = query.Where("application_id IS NULL")
	}

	var conversation models.Conversation
	err := query.Order("created_at ASC").First(&conversation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return &conversation, nil
}

func (r *ConversationRepositoryImpl) Create(conversation *models.Conversation) error {
	return r.db.Create(conversation).Error
}

func (r *ConversationRepositoryImpl) SetLastMessage(conversationID, body, senderID string) error {
	result := r.db.Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		Updates(map[string]interface{}{
			"last_message":           body,
			"last_message_sender_id": senderID,
			"updated_at":             time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConversationNotFound
	}
	return nil
}

func (r *ConversationRepositoryImpl) ResetUnread(conversationID string) error {
	return r.db.Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		Update("unread_count", 0).Error
}

func (r *ConversationRepositoryImpl) IncrementUnread(conversationID string) error {
	return r.db.Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		Update("unread_count", gorm.Expr("unread_count + 1")).Error
}
