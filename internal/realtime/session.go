package realtime

import (
	"context"
	"errors"
	"sync"

	"worklink_backend/internal/logger"
	"worklink_backend/internal/models"
	"worklink_backend/internal/repositories"
	"worklink_backend/internal/stream"
	"worklink_backend/pkg/apperrors"
)

// Session - синхронизированное состояние одного подключенного актора:
// три стора плюс подписка на change stream. Все события применяет
// единственная горутина run, поэтому сторы видят их строго по одному.
type Session struct {
	actorID string

	Conversations *ConversationStore
	Messages      *MessageStore
	Notifications *NotificationStore
	readState     *ReadStateCoordinator

	conversationRepo repositories.ConversationRepository

	events <-chan stream.Event
	cancel func()

	// Стрим доставляет события минимум один раз; дельту непрочитанного
	// двигает только первое наблюдение каждого сообщения. Пишет и читает
	// только горутина Run.
	seenMessages map[string]struct{}

	// onChange дергается после каждого примененного события,
	// чтобы транспорт отдал свежий снапшот клиенту.
	onChange func()

	closeOnce sync.Once
	done      chan struct{}
}

// StartConversationInput - параметры инициации диалога.
// ApplicationID nil означает диалог вне отклика; это отдельный
// ключ поиска, а не совпадение с любым откликом.
type StartConversationInput struct {
	EmployerID    string
	WorkerID      string
	ApplicationID *string
	JobTitle      string
}

func NewSession(
	actorID string,
	conversations repositories.ConversationRepository,
	messages repositories.MessageRepository,
	notifications repositories.NotificationRepository,
	dispatcher *stream.Dispatcher,
) *Session {
	conversationStore := NewConversationStore(actorID, conversations)
	messageStore := NewMessageStore(actorID, messages, conversations)

	events, cancel := dispatcher.Subscribe(actorID)

	return &Session{
		actorID:          actorID,
		Conversations:    conversationStore,
		Messages:         messageStore,
		Notifications:    NewNotificationStore(actorID, notifications),
		readState:        NewReadStateCoordinator(actorID, conversations, messages, conversationStore, messageStore),
		conversationRepo: conversations,
		events:           events,
		cancel:           cancel,
		seenMessages:     make(map[string]struct{}),
		done:             make(chan struct{}),
	}
}

func (s *Session) ActorID() string { return s.actorID }

// SetOnChange регистрирует колбэк для пуша снапшотов. Вызывать до Run.
func (s *Session) SetOnChange(fn func()) { s.onChange = fn }

// Bootstrap загружает начальное состояние: список диалогов и уведомления.
// Ошибки не фатальны - сторы сохраняют их в своих слотах, а клиент
// получит состояние при следующей удачной загрузке.
func (s *Session) Bootstrap() {
	if err := s.Conversations.Load(); err != nil {
		logger.Error("session bootstrap: conversations load failed", "user_id", s.actorID, "error", err)
	}
	if err := s.Notifications.Load(); err != nil {
		logger.Error("session bootstrap: notifications load failed", "user_id", s.actorID, "error", err)
	}
}

// Run потребляет события до отмены контекста или закрытия подписки.
func (s *Session) Run(ctx context.Context) {
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-s.events:
			if !ok {
				return
			}
			s.apply(ev)
			if s.onChange != nil {
				s.onChange()
			}
		}
	}
}

// apply маршрутизирует одно событие стрима в стор по таблице.
func (s *Session) apply(ev stream.Event) {
	switch ev.Table {
	case stream.TableConversations:
		conversation, err := stream.DecodeConversation(ev)
		if err != nil {
			logger.StreamLog(ev.Table, ev.Op, err)
			return
		}
		if !conversation.HasParticipant(s.actorID) {
			return
		}
		s.Conversations.UpsertFromEvent(conversation)

	case stream.TableMessages:
		message, err := stream.DecodeMessage(ev)
		if err != nil {
			logger.StreamLog(ev.Table, ev.Op, err)
			return
		}
		s.Messages.ApplyEvent(message)

		// Входящее сообщение в несфокусированный диалог двигает счетчик
		// мгновенно; авторитетная строка диалога придет следом и заменит
		// дельту точным значением. Повторная доставка того же insert
		// не считается - иначе дубль из стрима завысил бы счетчик.
		if ev.Op != stream.OpInsert || message.SenderID == s.actorID {
			return
		}
		if _, seen := s.seenMessages[message.ID]; seen {
			return
		}
		s.seenMessages[message.ID] = struct{}{}
		if s.Messages.FocusedConversation() != message.ConversationID {
			s.Conversations.ApplyUnreadDelta(message.ConversationID, 1)
		}

	case stream.TableNotifications:
		notification, err := stream.DecodeNotification(ev)
		if err != nil {
			logger.StreamLog(ev.Table, ev.Op, err)
			return
		}
		s.Notifications.UpsertFromEvent(notification)
	}
}

// FocusConversation открывает диалог: загружает историю и помечает
// входящие прочитанными. Падение загрузки не блокирует пометку -
// клиент уже смотрит на диалог.
func (s *Session) FocusConversation(conversationID string) error {
	conversation, ok := s.Conversations.Get(conversationID)
	if !ok {
		found, err := s.conversationRepo.FindByID(conversationID)
		if err != nil {
			if errors.Is(err, repositories.ErrConversationNotFound) {
				return apperrors.ErrNotFound(err)
			}
			return apperrors.NewFetchError(err, "chat")
		}
		conversation = *found
	}
	if !conversation.HasParticipant(s.actorID) {
		return apperrors.ErrNotParticipant
	}

	loadErr := s.Messages.Load(conversationID)

	if err := s.readState.MarkConversationRead(conversationID); err != nil {
		return err
	}
	return loadErr
}

// BlurConversation снимает фокус с открытого диалога.
func (s *Session) BlurConversation() {
	s.Messages.Blur()
}

// SendMessage отправляет сообщение в сфокусированный диалог.
func (s *Session) SendMessage(conversationID, body string) (*models.Message, error) {
	conversation, ok := s.Conversations.Get(conversationID)
	if ok && !conversation.HasParticipant(s.actorID) {
		return nil, apperrors.ErrNotParticipant
	}

	message, err := s.Messages.Send(conversationID, body)
	if err != nil {
		return message, err
	}

	// Счетчик собеседника двигает хранилище, не сессия отправителя:
	// иначе обе стороны инкрементировали бы одну строку.
	if err := s.conversationRepo.IncrementUnread(conversationID); err != nil {
		logger.Error("failed to increment unread counter", "conversation_id", conversationID, "error", err)
	}

	return message, nil
}

// MarkConversationRead - явная пометка диалога прочитанным
// без смены фокуса.
func (s *Session) MarkConversationRead(conversationID string) error {
	conversation, ok := s.Conversations.Get(conversationID)
	if ok && !conversation.HasParticipant(s.actorID) {
		return apperrors.ErrNotParticipant
	}
	return s.readState.MarkConversationRead(conversationID)
}

// StartConversation находит или создает диалог по точной тройке
// (работодатель, исполнитель, отклик). Повторный вызов с теми же
// аргументами возвращает тот же диалог. Гонка двух одновременных
// созданий разрешается детерминированным выбором самой ранней строки
// при последующих поисках.
func (s *Session) StartConversation(input StartConversationInput) (*models.Conversation, error) {
	if s.actorID != input.EmployerID && s.actorID != input.WorkerID {
		return nil, apperrors.ErrNotParticipant
	}

	existing, err := s.conversationRepo.FindByParticipants(input.EmployerID, input.WorkerID, input.ApplicationID)
	if err == nil {
		s.Conversations.UpsertFromEvent(*existing)
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
	if err := s.conversationRepo.Create(conversation); err != nil {
		return nil, apperrors.NewWriteError(err, "chat", "Failed to create conversation")
	}

	s.Conversations.UpsertFromEvent(*conversation)
	return conversation, nil
}

// Close отписывается от стрима; run-горутина завершится
// после закрытия канала.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
	})
}

// Done закрывается, когда run-горутина вышла.
func (s *Session) Done() <-chan struct{} { return s.done }
