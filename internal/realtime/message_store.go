package realtime

import (
	"sort"
	"strings"
	"sync"
	"time"

	"worklink_backend/internal/models"
	"worklink_backend/internal/repositories"
	"worklink_backend/pkg/apperrors"

	"github.com/google/uuid"
)

// MessageStore держит историю ровно одного сфокусированного диалога.
// Переключение фокуса сбрасывает кэш; ответ на устаревший Load
// (фокус уже ушел) игнорируется по номеру загрузки.
type MessageStore struct {
	mu            sync.Mutex
	actorID       string
	messages      repositories.MessageRepository
	conversations repositories.ConversationRepository

	conversationID string // "" - ничего не сфокусировано
	loadSeq        uint64
	msgs           []models.Message // created_at asc, tie-break по id
	lastErr        error
}

func NewMessageStore(actorID string, messages repositories.MessageRepository, conversations repositories.ConversationRepository) *MessageStore {
	return &MessageStore{
		actorID:       actorID,
		messages:      messages,
		conversations: conversations,
	}
}

// Load фокусирует диалог и загружает его историю, заменяя прежний кэш.
// Если к моменту ответа хранилища фокус успел смениться, результат
// отбрасывается (stale-response guard).
func (s *MessageStore) Load(conversationID string) error {
	s.mu.Lock()
	s.conversationID = conversationID
	s.loadSeq++
	seq := s.loadSeq
	s.msgs = nil // кэш другого диалога не должен отображаться
	s.mu.Unlock()

	history, err := s.messages.ListByConversation(conversationID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conversationID != conversationID || s.loadSeq != seq {
		// Фокус ушел, пока ждали ответ - no-op
		return nil
	}

	if err != nil {
		s.lastErr = apperrors.NewFetchError(err, "chat")
		return s.lastErr
	}

	s.msgs = history
	s.sortLocked()
	s.lastErr = nil
	return nil
}

// Blur снимает фокус и сбрасывает кэш.
func (s *MessageStore) Blur() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversationID = ""
	s.loadSeq++
	s.msgs = nil
}

// FocusedConversation возвращает идентификатор открытого диалога ("" - нет).
func (s *MessageStore) FocusedConversation() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// Messages возвращает снапшот истории сфокусированного диалога.
func (s *MessageStore) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Message, len(s.msgs))
	copy(out, s.msgs)
	return out
}

// ApplyEvent мержит строку из change stream: чужой диалог игнорируется,
// дубль по идентификатору заменяется (last-write-wins), новая строка
// вставляется в порядок created_at asc с tie-break по id.
// Один и тот же insert может прийти дважды - как ответ на собственную
// запись и как эхо из стрима; состояние от этого не меняется.
func (s *MessageStore) ApplyEvent(message models.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conversationID == "" || message.ConversationID != s.conversationID {
		return false
	}

	for i := range s.msgs {
		if s.msgs[i].ID == message.ID {
			s.msgs[i] = message
			return false
		}
	}

	s.msgs = append(s.msgs, message)
	s.sortLocked()
	return true
}

// Send пишет новое сообщение и обновляет сводку родительского диалога.
// Пустое после trim тело и отсутствие фокуса отклоняются до любого I/O.
// Две записи не атомарны: упавшее обновление сводки возвращается
// как WriteError, само сообщение при этом уже записано.
func (s *MessageStore) Send(conversationID, body string) (*models.Message, error) {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return nil, apperrors.ErrEmptyMessageBody
	}

	s.mu.Lock()
	if s.conversationID == "" || s.conversationID != conversationID {
		s.mu.Unlock()
		return nil, apperrors.ErrNoFocusedConversation
	}
	s.mu.Unlock()

	message := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       s.actorID,
		Body:           trimmed,
		Read:           false,
		CreatedAt:      time.Now(),
	}

	if err := s.messages.Create(message); err != nil {
		s.setErr(apperrors.NewSendError(err, "Failed to send message"))
		return nil, s.Err()
	}

	// Локальная вставка с дедупликацией против эха из стрима
	s.ApplyEvent(*message)

	if err := s.conversations.SetLastMessage(conversationID, trimmed, s.actorID); err != nil {
		// Сообщение записано, но сводка диалога не обновилась -
		// это повредит список диалогов, поэтому наружу, а не в лог.
		s.setErr(apperrors.NewWriteError(err, "chat", "Message sent but conversation summary update failed"))
		return message, s.Err()
	}

	s.setErr(nil)
	return message, nil
}

// markReadLocal проставляет read локальным копиям чужих сообщений
// после того, как массовый флип зафиксирован в хранилище.
func (s *MessageStore) markReadLocal(conversationID, readerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conversationID != conversationID {
		return
	}
	for i := range s.msgs {
		if s.msgs[i].SenderID != readerID {
			s.msgs[i].Read = true
		}
	}
}

// Err возвращает последнюю ошибку стора (nil после успешной операции).
func (s *MessageStore) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *MessageStore) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
}

func (s *MessageStore) sortLocked() {
	sort.SliceStable(s.msgs, func(i, j int) bool {
		if s.msgs[i].CreatedAt.Equal(s.msgs[j].CreatedAt) {
			return s.msgs[i].ID < s.msgs[j].ID
		}
		return s.msgs[i].CreatedAt.Before(s.msgs[j].CreatedAt)
	})
}
