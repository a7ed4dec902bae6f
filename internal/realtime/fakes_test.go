package realtime

import (
	"sort"
	"sync"
	"time"

	"worklink_backend/internal/models"
	"worklink_backend/internal/repositories"

	"github.com/google/uuid"
)

// In-memory фейки репозиториев. Поля *Err позволяют инжектить
// отказ хранилища в конкретную операцию.

type fakeConversationRepo struct {
	mu            sync.Mutex
	conversations map[string]*models.Conversation

	listErr      error
	findErr      error
	createErr    error
	setLastErr   error
	resetErr     error
	incrementErr error
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{conversations: make(map[string]*models.Conversation)}
}

func (f *fakeConversationRepo) put(c models.Conversation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := c
	f.conversations[c.ID] = &cp
}

func (f *fakeConversationRepo) ListForUser(userID string) ([]models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}

	var out []models.Conversation
	for _, c := range f.conversations {
		if c.HasParticipant(userID) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (f *fakeConversationRepo) FindByID(id string) (*models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	c, ok := f.conversations[id]
	if !ok {
		return nil, repositories.ErrConversationNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeConversationRepo) FindByParticipants(employerID, workerID string, applicationID *string) (*models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}

	var matches []*models.Conversation
	for _, c := range f.conversations {
		if c.EmployerID != employerID || c.WorkerID != workerID {
			continue
		}
		if (c.ApplicationID == nil) != (applicationID == nil) {
			continue
		}
		if applicationID != nil && *c.ApplicationID != *applicationID {
			continue
		}
		matches = append(matches, c)
	}
	if len(matches) == 0 {
		return nil, repositories.ErrConversationNotFound
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.Before(matches[j].CreatedAt) })
	cp := *matches[0]
	return &cp, nil
}

func (f *fakeConversationRepo) Create(conversation *models.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if conversation.ID == "" {
		conversation.ID = uuid.NewString()
	}
	now := time.Now()
	conversation.CreatedAt = now
	conversation.UpdatedAt = now
	cp := *conversation
	f.conversations[conversation.ID] = &cp
	return nil
}

func (f *fakeConversationRepo) SetLastMessage(conversationID, body, senderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setLastErr != nil {
		return f.setLastErr
	}
	c, ok := f.conversations[conversationID]
	if !ok {
		return repositories.ErrConversationNotFound
	}
	c.LastMessage = body
	c.LastMessageSenderID = senderID
	c.UpdatedAt = time.Now()
	return nil
}

func (f *fakeConversationRepo) ResetUnread(conversationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resetErr != nil {
		return f.resetErr
	}
	if c, ok := f.conversations[conversationID]; ok {
		c.UnreadCount = 0
	}
	return nil
}

func (f *fakeConversationRepo) IncrementUnread(conversationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.incrementErr != nil {
		return f.incrementErr
	}
	if c, ok := f.conversations[conversationID]; ok {
		c.UnreadCount++
	}
	return nil
}

type fakeMessageRepo struct {
	mu       sync.Mutex
	messages map[string][]models.Message // conversationID -> история

	listErr     error
	createErr   error
	markReadErr error
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{messages: make(map[string][]models.Message)}
}

func (f *fakeMessageRepo) put(m models.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[m.ConversationID] = append(f.messages[m.ConversationID], m)
}

func (f *fakeMessageRepo) ListByConversation(conversationID string) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}

	out := make([]models.Message, len(f.messages[conversationID]))
	copy(out, f.messages[conversationID])
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (f *fakeMessageRepo) Create(message *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.messages[message.ConversationID] = append(f.messages[message.ConversationID], *message)
	return nil
}

func (f *fakeMessageRepo) MarkConversationRead(conversationID, readerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markReadErr != nil {
		return f.markReadErr
	}
	history := f.messages[conversationID]
	for i := range history {
		if history[i].SenderID != readerID {
			history[i].Read = true
		}
	}
	return nil
}

func (f *fakeMessageRepo) unreadCount(conversationID, readerID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, m := range f.messages[conversationID] {
		if m.SenderID != readerID && !m.Read {
			count++
		}
	}
	return count
}

type fakeNotificationRepo struct {
	mu            sync.Mutex
	notifications map[string]*models.Notification

	listErr     error
	createErr   error
	markReadErr error
	markAllErr  error

	// markAllHook дергается в начале MarkAllRead - тесты подсматривают
	// состояние стора в момент обращения к хранилищу.
	markAllHook func()
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{notifications: make(map[string]*models.Notification)}
}

func (f *fakeNotificationRepo) put(n models.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := n
	f.notifications[n.ID] = &cp
}

func (f *fakeNotificationRepo) ListForUser(userID string) ([]models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}

	var out []models.Notification
	for _, n := range f.notifications {
		if n.UserID == userID {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeNotificationRepo) FindByID(id string) (*models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.notifications[id]
	if !ok {
		return nil, repositories.ErrNotificationNotFound
	}
	cp := *n
	return &cp, nil
}

func (f *fakeNotificationRepo) Create(notification *models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}
	notification.CreatedAt = time.Now()
	cp := *notification
	f.notifications[notification.ID] = &cp
	return nil
}

func (f *fakeNotificationRepo) MarkRead(notificationID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markReadErr != nil {
		return f.markReadErr
	}
	if n, ok := f.notifications[notificationID]; ok && n.UserID == userID {
		n.Read = true
	}
	return nil
}

func (f *fakeNotificationRepo) MarkAllRead(userID string) error {
	if f.markAllHook != nil {
		f.markAllHook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markAllErr != nil {
		return f.markAllErr
	}
	for _, n := range f.notifications {
		if n.UserID == userID {
			n.Read = true
		}
	}
	return nil
}

func (f *fakeNotificationRepo) UnreadCount(userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, n := range f.notifications {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}
