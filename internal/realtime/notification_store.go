package realtime

import (
	"sort"
	"sync"

	"worklink_backend/internal/models"
	"worklink_backend/internal/repositories"
	"worklink_backend/pkg/apperrors"
)

// NotificationStore - кэш уведомлений актора поверх хранилища.
// Источники те же, что у диалогов: Load и авторитетные строки
// из change stream, мерж по идентификатору идемпотентен.
type NotificationStore struct {
	mu      sync.Mutex
	actorID string
	repo    repositories.NotificationRepository

	items   []models.Notification // created_at desc
	lastErr error
}

func NewNotificationStore(actorID string, repo repositories.NotificationRepository) *NotificationStore {
	return &NotificationStore{
		actorID: actorID,
		repo:    repo,
	}
}

// Load перечитывает уведомления из хранилища. При ошибке кэш сохраняется.
func (s *NotificationStore) Load() error {
	notifications, err := s.repo.ListForUser(s.actorID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.lastErr = apperrors.NewFetchError(err, "notification")
		return s.lastErr
	}

	s.items = notifications
	s.sortLocked()
	s.lastErr = nil
	return nil
}

// List возвращает снапшот уведомлений, новые сверху.
func (s *NotificationStore) List() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Notification, len(s.items))
	copy(out, s.items)
	return out
}

// UpsertFromEvent мержит авторитетную строку: замена по идентификатору
// или вставка. Чужие уведомления (не этого актора) игнорируются.
func (s *NotificationStore) UpsertFromEvent(notification models.Notification) {
	if notification.UserID != s.actorID {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ID == notification.ID {
			s.items[i] = notification
			s.sortLocked()
			return
		}
	}

	s.items = append(s.items, notification)
	s.sortLocked()
}

// MarkRead помечает одно уведомление прочитанным: сначала локально
// (мгновенный отклик), затем в хранилище. Упавшая запись откатывает
// локальный флип и возвращает WriteError.
func (s *NotificationStore) MarkRead(notificationID string) error {
	s.mu.Lock()
	var flipped bool
	for i := range s.items {
		if s.items[i].ID == notificationID && !s.items[i].Read {
			s.items[i].Read = true
			flipped = true
			break
		}
	}
	s.mu.Unlock()

	if err := s.repo.MarkRead(notificationID, s.actorID); err != nil {
		s.mu.Lock()
		if flipped {
			for i := range s.items {
				if s.items[i].ID == notificationID {
					s.items[i].Read = false
					break
				}
			}
		}
		s.lastErr = apperrors.NewWriteError(err, "notification", "Failed to mark notification read")
		s.mu.Unlock()
		return s.Err()
	}

	s.setErr(nil)
	return nil
}

// MarkAllRead помечает все уведомления актора прочитанными: сначала
// локально, затем в хранилище - как MarkRead, только оптом. Упавшая
// запись откатывает ровно те уведомления, что были непрочитанными.
func (s *NotificationStore) MarkAllRead() error {
	s.mu.Lock()
	flipped := make(map[string]struct{})
	for i := range s.items {
		if !s.items[i].Read {
			s.items[i].Read = true
			flipped[s.items[i].ID] = struct{}{}
		}
	}
	s.mu.Unlock()

	if err := s.repo.MarkAllRead(s.actorID); err != nil {
		s.mu.Lock()
		for i := range s.items {
			if _, ok := flipped[s.items[i].ID]; ok {
				s.items[i].Read = false
			}
		}
		s.lastErr = apperrors.NewWriteError(err, "notification", "Failed to mark notifications read")
		s.mu.Unlock()
		return s.Err()
	}

	s.setErr(nil)
	return nil
}

// UnreadCount пересчитывает непрочитанные по кэшу, а не хранит счетчик:
// после любого мержа агрегат согласован с видимым списком.
func (s *NotificationStore) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, n := range s.items {
		if !n.Read {
			count++
		}
	}
	return count
}

// Err возвращает последнюю ошибку стора (nil после успешной операции).
func (s *NotificationStore) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *NotificationStore) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
}

func (s *NotificationStore) sortLocked() {
	sort.SliceStable(s.items, func(i, j int) bool {
		if s.items[i].CreatedAt.Equal(s.items[j].CreatedAt) {
			return s.items[i].ID < s.items[j].ID
		}
		return s.items[i].CreatedAt.After(s.items[j].CreatedAt)
	})
}
