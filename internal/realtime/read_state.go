package realtime

import (
	"worklink_backend/internal/repositories"
	"worklink_backend/pkg/apperrors"
)

// ReadStateCoordinator выполняет переход "диалог прочитан" в строгом
// порядке: сперва массовый флип чужих сообщений, затем сброс счетчика
// в строке диалога. Упавший первый шаг отменяет второй - счетчик
// не может занулиться, пока сообщения числятся непрочитанными.
type ReadStateCoordinator struct {
	actorID       string
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository

	conversationStore *ConversationStore
	messageStore      *MessageStore
}

func NewReadStateCoordinator(
	actorID string,
	conversations repositories.ConversationRepository,
	messages repositories.MessageRepository,
	conversationStore *ConversationStore,
	messageStore *MessageStore,
) *ReadStateCoordinator {
	return &ReadStateCoordinator{
		actorID:           actorID,
		conversations:     conversations,
		messages:          messages,
		conversationStore: conversationStore,
		messageStore:      messageStore,
	}
}

// MarkConversationRead помечает все входящие сообщения диалога
// прочитанными и сбрасывает счетчик. Повторный вызов для уже
// прочитанного диалога - no-op без ошибки: оба шага затрагивают
// ноль строк.
func (c *ReadStateCoordinator) MarkConversationRead(conversationID string) error {
	if err := c.messages.MarkConversationRead(conversationID, c.actorID); err != nil {
		return apperrors.NewWriteError(err, "chat", "Failed to mark messages read")
	}

	if err := c.conversations.ResetUnread(conversationID); err != nil {
		return apperrors.NewWriteError(err, "chat", "Failed to reset unread counter")
	}

	// Локальные кэши догоняют хранилище, не дожидаясь эха из стрима
	c.messageStore.markReadLocal(conversationID, c.actorID)
	c.conversationStore.setUnreadZero(conversationID)
	return nil
}
