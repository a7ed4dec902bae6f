package services

import (
	"errors"
	"strings"
	"time"

	"worklink_backend/internal/models"
	"worklink_backend/internal/repositories"
	"worklink_backend/pkg/apperrors"

	"github.com/google/uuid"
)

// ChatService - бесстейтовая REST-сторона чата. Websocket-сессии
// держат свое синхронизированное состояние, сюда приходят обычные
// HTTP-запросы; семантика операций одна и та же.
type ChatService interface {
	ListConversations(userID string) ([]models.Conversation, error)
	GetConversation(conversationID, userID string) (*models.Conversation, error)
	StartConversation(input StartConversationInput) (*models.Conversation, error)
	ListMessages(conversationID, userID string) ([]models.Message, error)
	SendMessage(input SendMessageInput) (*models.Message, error)
	MarkConversationRead(conversationID, userID string) error
	UnreadTotal(userID string) (int, error)
}

type StartConversationInput struct {
	ActorID       string
	EmployerID    string  `json:"employer_id" validate:"required"`
	WorkerID      string  `json:"worker_id" validate:"required"`
	ApplicationID *string `json:"application_id"`
	JobTitle      string  `json:"job_title"`
}

type SendMessageInput struct {
	ActorID        string
	ConversationID string `json:"conversation_id"`
	Body           string `json:"body" validate:"required"`
}

type ChatServiceImpl struct {
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
}

func NewChatService(conversations repositories.ConversationRepository, messages repositories.MessageRepository) ChatService {
	return &ChatServiceImpl{
		conversations: conversations,
		messages:      messages,
	}
}

func (s *ChatServiceImpl) ListConversations(userID string) ([]models.Conversation, error) {
	conversations, err := s.conversations.ListForUser(userID)
	if err != nil {
		return nil, apperrors.NewFetchError(err, "chat")
	}
	return conversations, nil
}

func (s *ChatServiceImpl) GetConversation(conversationID, userID string) (*models.Conversation, error) {
	conversation, err := s.findAuthorized(conversationID, userID)
	if err != nil {
		return nil, err
	}
	return conversation, nil
}

// StartConversation - find-or-create по точной тройке участников.
// Существующий диалог возвращается как есть, повторные вызовы
// с теми же аргументами стабильны.
func (s *ChatServiceImpl) StartConversation(input StartConversationInput) (*models.Conversation, error) {
	if input.ActorID != input.EmployerID && input.ActorID != input.WorkerID {
		return nil, apperrors.ErrNotParticipant
	}

	existing, err := s.conversations.FindByParticipants(input.EmployerID, input.WorkerID, input.ApplicationID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repositories.ErrConversationNotFound) {
		return nil, apperrors.NewFetchError(err, "chat")
	}

	conversation := &models.Conversation{
		EmployerID:    input.EmployerID,
		WorkerID:      input.WorkerID,
		ApplicationID: input.ApplicationID,
		JobTitle:      input.JobTitle,
	}
	if err := s.conversations.Create(conversation); err != nil {
		return nil, apperrors.NewWriteError(err, "chat", "Failed to create conversation")
	}
	return conversation, nil
}

func (s *ChatServiceImpl) ListMessages(conversationID, userID string) ([]models.Message, error) {
	if _, err := s.findAuthorized(conversationID, userID); err != nil {
		return nil, err
	}

	messages, err := s.messages.ListByConversation(conversationID)
	if err != nil {
		return nil, apperrors.NewFetchError(err, "chat")
	}
	return messages, nil
}

// SendMessage пишет сообщение и обновляет сводку диалога.
// Записи не атомарны: упавшая вторая возвращается как WriteError,
// сообщение при этом уже сохранено.
func (s *ChatServiceImpl) SendMessage(input SendMessageInput) (*models.Message, error) {
	trimmed := strings.TrimSpace(input.Body)
	if trimmed == "" {
		return nil, apperrors.ErrEmptyMessageBody
	}

	if _, err := s.findAuthorized(input.ConversationID, input.ActorID); err != nil {
		return nil, err
	}

	message := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: input.ConversationID,
		SenderID:       input.ActorID,
		Body:           trimmed,
		CreatedAt:      time.Now(),
	}
	if err := s.messages.Create(message); err != nil {
		return nil, apperrors.NewSendError(err, "Failed to send message")
	}

	if err := s.conversations.SetLastMessage(input.ConversationID, trimmed, input.ActorID); err != nil {
		return message, apperrors.NewWriteError(err, "chat", "Message sent but conversation summary update failed")
	}
	if err := s.conversations.IncrementUnread(input.ConversationID); err != nil {
		return message, apperrors.NewWriteError(err, "chat", "Message sent but unread counter update failed")
	}

	return message, nil
}

// MarkConversationRead: сначала массовый флип сообщений, затем сброс
// счетчика. Порядок строгий - счетчик не зануляется, пока сообщения
// числятся непрочитанными.
func (s *ChatServiceImpl) MarkConversationRead(conversationID, userID string) error {
	if _, err := s.findAuthorized(conversationID, userID); err != nil {
		return err
	}

	if err := s.messages.MarkConversationRead(conversationID, userID); err != nil {
		return apperrors.NewWriteError(err, "chat", "Failed to mark messages read")
	}
	if err := s.conversations.ResetUnread(conversationID); err != nil {
		return apperrors.NewWriteError(err, "chat", "Failed to reset unread counter")
	}
	return nil
}

// UnreadTotal - агрегат непрочитанного. Диалог, где последним писал
// сам пользователь, не учитывается.
func (s *ChatServiceImpl) UnreadTotal(userID string) (int, error) {
	conversations, err := s.conversations.ListForUser(userID)
	if err != nil {
		return 0, apperrors.NewFetchError(err, "chat")
	}

	total := 0
	for _, c := range conversations {
		if c.LastMessageSenderID == userID {
			continue
		}
		if c.UnreadCount > 0 {
			total += c.UnreadCount
		}
	}
	return total, nil
}

func (s *ChatServiceImpl) findAuthorized(conversationID, userID string) (*models.Conversation, error) {
	conversation, err := s.conversations.FindByID(conversationID)
	if err != nil {
		if errors.Is(err, repositories.ErrConversationNotFound) {
			return nil, apperrors.ErrNotFound(err)
		}
		return nil, apperrors.NewFetchError(err, "chat")
	}
	if !conversation.HasParticipant(userID) {
		return nil, apperrors.ErrNotParticipant
	}
	return conversation, nil
}
