package realtime

import (
	"sort"
	"sync"

	"worklink_backend/internal/models"
	"worklink_backend/internal/repositories"
	"worklink_backend/pkg/apperrors"
)

// ConversationStore держит список диалогов текущего актора.
// Авторитетное состояние приходит из хранилища (Load) и из change stream
// (UpsertFromEvent); поверх него накладываются оптимистичные дельты
// непрочитанного, которые живут только до первого авторитетного
// наблюдения той же строки.
type ConversationStore struct {
	mu      sync.Mutex
	actorID string
	repo    repositories.ConversationRepository

	items   []models.Conversation // updated_at desc
	pending map[string]int        // conversationID -> оптимистичная дельта unread
	lastErr error
}

func NewConversationStore(actorID string, repo repositories.ConversationRepository) *ConversationStore {
	return &ConversationStore{
		actorID: actorID,
		repo:    repo,
		pending: make(map[string]int),
	}
}

// Load перечитывает список из хранилища. При ошибке кэш не очищается:
// остается последнее известное состояние плюс FetchError в слоте ошибки.
func (s *ConversationStore) Load() error {
	conversations, err := s.repo.ListForUser(s.actorID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.lastErr = apperrors.NewFetchError(err, "chat")
		return s.lastErr
	}

	s.items = conversations
	s.pending = make(map[string]int)
	s.sortLocked()
	s.lastErr = nil
	return nil
}

// List возвращает снапшот для отображения: авторитетные строки
// с примененными оптимистичными дельтами.
func (s *ConversationStore) List() []models.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Conversation, len(s.items))
	copy(out, s.items)
	for i := range out {
		if delta, ok := s.pending[out[i].ID]; ok {
			out[i].UnreadCount += delta
			if out[i].UnreadCount < 0 {
				out[i].UnreadCount = 0
			}
		}
	}
	return out
}

// Get возвращает диалог по идентификатору, если он в кэше.
func (s *ConversationStore) Get(conversationID string) (models.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.items {
		if c.ID == conversationID {
			if delta, ok := s.pending[c.ID]; ok {
				c.UnreadCount += delta
				if c.UnreadCount < 0 {
					c.UnreadCount = 0
				}
			}
			return c, true
		}
	}
	return models.Conversation{}, false
}

// UpsertFromEvent мержит авторитетную строку по идентификатору:
// замена если есть, вставка с пересортировкой если нет. Идемпотентна.
// Оптимистичная дельта этой строки сбрасывается: авторитетное
// значение всегда побеждает и никогда не суммируется с дельтой.
func (s *ConversationStore) UpsertFromEvent(conversation models.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pending, conversation.ID)

	for i := range s.items {
		if s.items[i].ID == conversation.ID {
			// Строка события не несет подгруженных участников - сохраняем их
			if conversation.Employer == nil {
				conversation.Employer = s.items[i].Employer
			}
			if conversation.Worker == nil {
				conversation.Worker = s.items[i].Worker
			}
			if conversation.JobTitle == "" {
				conversation.JobTitle = s.items[i].JobTitle
			}
			s.items[i] = conversation
			s.sortLocked()
			return
		}
	}

	s.items = append(s.items, conversation)
	s.sortLocked()
}

// ApplyUnreadDelta накладывает мгновенную дельту непрочитанного
// до прихода авторитетного события.
func (s *ConversationStore) ApplyUnreadDelta(conversationID string, delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending[conversationID] += delta
}

// UnreadTotal - агрегат непрочитанного по всем диалогам.
// Диалог, где последнее сообщение отправил сам актор, не считается
// непрочитанным, даже если счетчик в строке еще не догнал.
func (s *ConversationStore) UnreadTotal() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, c := range s.items {
		if c.LastMessageSenderID == s.actorID {
			continue
		}
		unread := c.UnreadCount + s.pending[c.ID]
		if unread > 0 {
			total += unread
		}
	}
	return total
}

// setUnreadZero обнуляет счетчик локальной строки и снимает ее
// оптимистичную дельту после подтвержденного сброса в хранилище.
func (s *ConversationStore) setUnreadZero(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pending, conversationID)
	for i := range s.items {
		if s.items[i].ID == conversationID {
			s.items[i].UnreadCount = 0
			return
		}
	}
}

// Err возвращает последнюю ошибку стора (nil после успешной операции).
func (s *ConversationStore) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *ConversationStore) sortLocked() {
	sort.SliceStable(s.items, func(i, j int) bool {
		if s.items[i].UpdatedAt.Equal(s.items[j].UpdatedAt) {
			return s.items[i].ID < s.items[j].ID
		}
		return s.items[i].UpdatedAt.After(s.items[j].UpdatedAt)
	})
}
