package services

import (
	"errors"
	"sort"
	"testing"
	"time"

	"worklink_backend/internal/models"
	"worklink_backend/internal/repositories"
	"worklink_backend/pkg/apperrors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Компактные in-memory фейки только под REST-сценарии.

type memConversationRepo struct {
	conversations map[string]*models.Conversation
	setLastErr    error
	resetErr      error
}

func newMemConversationRepo() *memConversationRepo {
	return &memConversationRepo{conversations: make(map[string]*models.Conversation)}
}

func (f *memConversationRepo) put(c models.Conversation) {
	cp := c
	f.conversations[c.ID] = &cp
}

func (f *memConversationRepo) ListForUser(userID string) ([]models.Conversation, error) {
	var out []models.Conversation
	for _, c := range f.conversations {
		if c.HasParticipant(userID) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (f *memConversationRepo) FindByID(id string) (*models.Conversation, error) {
	c, ok := f.conversations[id]
	if !ok {
		return nil, repositories.ErrConversationNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *memConversationRepo) FindByParticipants(employerID, workerID string, applicationID *string) (*models.Conversation, error) {
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
		cp := *c
		return &cp, nil
	}
	return nil, repositories.ErrConversationNotFound
}

func (f *memConversationRepo) Create(conversation *models.Conversation) error {
	if conversation.ID == "" {
		conversation.ID = uuid.NewString()
	}
	conversation.CreatedAt = time.Now()
	conversation.UpdatedAt = conversation.CreatedAt
	f.put(*conversation)
	return nil
}

func (f *memConversationRepo) SetLastMessage(conversationID, body, senderID string) error {
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

func (f *memConversationRepo) ResetUnread(conversationID string) error {
	if f.resetErr != nil {
		return f.resetErr
	}
	if c, ok := f.conversations[conversationID]; ok {
		c.UnreadCount = 0
	}
	return nil
}

func (f *memConversationRepo) IncrementUnread(conversationID string) error {
	if c, ok := f.conversations[conversationID]; ok {
		c.UnreadCount++
	}
	return nil
}

type memMessageRepo struct {
	messages    map[string][]models.Message
	markReadErr error
}

func newMemMessageRepo() *memMessageRepo {
	return &memMessageRepo{messages: make(map[string][]models.Message)}
}

func (f *memMessageRepo) ListByConversation(conversationID string) ([]models.Message, error) {
	out := make([]models.Message, len(f.messages[conversationID]))
	copy(out, f.messages[conversationID])
	return out, nil
}

func (f *memMessageRepo) Create(message *models.Message) error {
	f.messages[message.ConversationID] = append(f.messages[message.ConversationID], *message)
	return nil
}

func (f *memMessageRepo) MarkConversationRead(conversationID, readerID string) error {
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

func testConversation(id string) models.Conversation {
	now := time.Now()
	return models.Conversation{
		BaseModel:  models.BaseModel{ID: id, CreatedAt: now, UpdatedAt: now},
		EmployerID: "emp",
		WorkerID:   "wrk",
	}
}

func TestChatServiceStartConversationFindOrCreate(t *testing.T) {
	svc := NewChatService(newMemConversationRepo(), newMemMessageRepo())
	appID := "app-1"

	first, err := svc.StartConversation(StartConversationInput{
		ActorID: "emp", EmployerID: "emp", WorkerID: "wrk", ApplicationID: &appID,
	})
	require.NoError(t, err)

	second, err := svc.StartConversation(StartConversationInput{
		ActorID: "wrk", EmployerID: "emp", WorkerID: "wrk", ApplicationID: &appID,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	// Диалог без отклика - отдельный ключ
	third, err := svc.StartConversation(StartConversationInput{
		ActorID: "emp", EmployerID: "emp", WorkerID: "wrk",
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)
}

func TestChatServiceStartConversationRequiresParticipation(t *testing.T) {
	svc := NewChatService(newMemConversationRepo(), newMemMessageRepo())

	_, err := svc.StartConversation(StartConversationInput{
		ActorID: "stranger", EmployerID: "emp", WorkerID: "wrk",
	})
	assert.ErrorIs(t, err, apperrors.ErrNotParticipant)
}

func TestChatServiceSendMessageUpdatesSummary(t *testing.T) {
	conversations := newMemConversationRepo()
	conversations.put(testConversation("c1"))
	svc := NewChatService(conversations, newMemMessageRepo())

	message, err := svc.SendMessage(SendMessageInput{
		ActorID: "emp", ConversationID: "c1", Body: "  hello  ",
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", message.Body)

	c := conversations.conversations["c1"]
	assert.Equal(t, "hello", c.LastMessage)
	assert.Equal(t, "emp", c.LastMessageSenderID)
	assert.Equal(t, 1, c.UnreadCount)
}

func TestChatServiceSendMessageValidation(t *testing.T) {
	conversations := newMemConversationRepo()
	conversations.put(testConversation("c1"))
	svc := NewChatService(conversations, newMemMessageRepo())

	_, err := svc.SendMessage(SendMessageInput{ActorID: "emp", ConversationID: "c1", Body: "   "})
	assert.ErrorIs(t, err, apperrors.ErrEmptyMessageBody)

	_, err = svc.SendMessage(SendMessageInput{ActorID: "stranger", ConversationID: "c1", Body: "hi"})
	assert.ErrorIs(t, err, apperrors.ErrNotParticipant)
}

func TestChatServiceSendMessageSurfacesSummaryFailure(t *testing.T) {
	conversations := newMemConversationRepo()
	conversations.put(testConversation("c1"))
	conversations.setLastErr = errors.New("storage down")
	messages := newMemMessageRepo()
	svc := NewChatService(conversations, messages)

	message, err := svc.SendMessage(SendMessageInput{ActorID: "emp", ConversationID: "c1", Body: "hi"})
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.True(t, apperrors.As(err, &appErr))
	assert.Equal(t, apperrors.CodeWriteFailed, appErr.Code)

	// Сообщение уже записано
	require.NotNil(t, message)
	assert.Len(t, messages.messages["c1"], 1)
}

func TestChatServiceMarkReadFailFast(t *testing.T) {
	conversations := newMemConversationRepo()
	c := testConversation("c1")
	c.UnreadCount = 2
	conversations.put(c)
	messages := newMemMessageRepo()
	messages.messages["c1"] = []models.Message{
		{ID: "m1", ConversationID: "c1", SenderID: "wrk", Body: "a"},
	}
	messages.markReadErr = errors.New("storage down")

	svc := NewChatService(conversations, messages)
	err := svc.MarkConversationRead("c1", "emp")
	require.Error(t, err)

	// Счетчик не тронут, пока сообщения не прочитаны
	assert.Equal(t, 2, conversations.conversations["c1"].UnreadCount)
}

func TestChatServiceMarkReadIsIdempotent(t *testing.T) {
	conversations := newMemConversationRepo()
	conversations.put(testConversation("c1"))
	svc := NewChatService(conversations, newMemMessageRepo())

	require.NoError(t, svc.MarkConversationRead("c1", "emp"))
	require.NoError(t, svc.MarkConversationRead("c1", "emp"))
}

func TestChatServiceUnreadTotalSkipsOwnLastMessage(t *testing.T) {
	conversations := newMemConversationRepo()

	incoming := testConversation("c1")
	incoming.UnreadCount = 2
	incoming.LastMessageSenderID = "wrk"
	conversations.put(incoming)

	own := testConversation("c2")
	own.UnreadCount = 5
	own.LastMessageSenderID = "emp"
	conversations.put(own)

	svc := NewChatService(conversations, newMemMessageRepo())
	total, err := svc.UnreadTotal("emp")
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestChatServiceGetConversationAuthorization(t *testing.T) {
	conversations := newMemConversationRepo()
	conversations.put(testConversation("c1"))
	svc := NewChatService(conversations, newMemMessageRepo())

	_, err := svc.GetConversation("c1", "stranger")
	assert.ErrorIs(t, err, apperrors.ErrNotParticipant)

	_, err = svc.GetConversation("missing", "emp")
	var appErr *apperrors.AppError
	require.True(t, apperrors.As(err, &appErr))
	assert.Equal(t, apperrors.CodeNotFound, appErr.Code)
}
