package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"worklink_backend/internal/stream"
	"worklink_backend/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSessionEnv(t *testing.T) (*Session, *fakeConversationRepo, *fakeMessageRepo, *fakeNotificationRepo, *stream.Dispatcher) {
	t.Helper()
	conversations := newFakeConversationRepo()
	messages := newFakeMessageRepo()
	notifications := newFakeNotificationRepo()
	dispatcher := stream.NewDispatcher(16)

	session := NewSession("emp", conversations, messages, notifications, dispatcher)
	t.Cleanup(session.Close)
	return session, conversations, messages, notifications, dispatcher
}

func rowEvent(t *testing.T, table, op string, recipients []string, row any) stream.Event {
	t.Helper()
	raw, err := json.Marshal(row)
	require.NoError(t, err)
	return stream.Event{Table: table, Op: op, Recipients: recipients, Row: raw}
}

func TestSessionAppliesConversationEvents(t *testing.T) {
	session, _, _, _, _ := newSessionEnv(t)

	c := conv("c1", "emp", "wrk", time.Now())
	c.LastMessage = "hello"
	session.apply(rowEvent(t, stream.TableConversations, stream.OpUpdate, []string{"emp", "wrk"}, c))

	got, ok := session.Conversations.Get("c1")
	require.True(t, ok)
	assert.Equal(t, "hello", got.LastMessage)
}

func TestSessionIgnoresUnrelatedEvents(t *testing.T) {
	session, _, _, _, _ := newSessionEnv(t)

	// Диалог двух других пользователей
	other := conv("cx", "emp2", "wrk2", time.Now())
	session.apply(rowEvent(t, stream.TableConversations, stream.OpInsert, []string{"emp2", "wrk2"}, other))
	assert.Empty(t, session.Conversations.List())

	// Чужое уведомление
	session.apply(rowEvent(t, stream.TableNotifications, stream.OpInsert, []string{"wrk2"}, notif("nx", "wrk2", false, time.Now())))
	assert.Empty(t, session.Notifications.List())
	assert.Equal(t, 0, session.Notifications.UnreadCount())
}

func TestSessionMalformedEventIsSkipped(t *testing.T) {
	session, _, _, _, _ := newSessionEnv(t)

	// Строка без обязательной идентичности
	session.apply(stream.Event{
		Table: stream.TableMessages,
		Op:    stream.OpInsert,
		Row:   json.RawMessage(`{"body":"hi"}`),
	})
	assert.Empty(t, session.Conversations.List())
}

func TestSessionIncomingMessageBumpsUnreadForUnfocusedConversation(t *testing.T) {
	session, conversations, _, _, _ := newSessionEnv(t)

	c := conv("c1", "emp", "wrk", time.Now())
	c.LastMessageSenderID = "wrk"
	conversations.put(c)
	session.Conversations.UpsertFromEvent(c)

	incoming := msg("m1", "c1", "wrk", "hi", time.Now())
	session.apply(rowEvent(t, stream.TableMessages, stream.OpInsert, []string{"emp", "wrk"}, incoming))

	got, _ := session.Conversations.Get("c1")
	assert.Equal(t, 1, got.UnreadCount)
	assert.Equal(t, 1, session.Conversations.UnreadTotal())
}

func TestSessionDuplicateMessageEventBumpsUnreadOnce(t *testing.T) {
	session, conversations, _, _, _ := newSessionEnv(t)

	c := conv("c1", "emp", "wrk", time.Now())
	c.LastMessageSenderID = "wrk"
	conversations.put(c)
	session.Conversations.UpsertFromEvent(c)

	// Стрим at-least-once: одно и то же событие приходит дважды
	incoming := rowEvent(t, stream.TableMessages, stream.OpInsert, []string{"emp", "wrk"}, msg("m1", "c1", "wrk", "hi", time.Now()))
	session.apply(incoming)
	session.apply(incoming)

	got, _ := session.Conversations.Get("c1")
	assert.Equal(t, 1, got.UnreadCount)
	assert.Equal(t, 1, session.Conversations.UnreadTotal())
}

func TestSessionDuplicateAfterAuthoritativeRowDoesNotReopenDelta(t *testing.T) {
	session, conversations, _, _, _ := newSessionEnv(t)

	c := conv("c1", "emp", "wrk", time.Now())
	c.LastMessageSenderID = "wrk"
	conversations.put(c)
	session.Conversations.UpsertFromEvent(c)

	incoming := rowEvent(t, stream.TableMessages, stream.OpInsert, []string{"emp", "wrk"}, msg("m1", "c1", "wrk", "hi", time.Now()))
	session.apply(incoming)

	// Авторитетная строка диалога гасит дельту точным значением
	c.UnreadCount = 1
	session.apply(rowEvent(t, stream.TableConversations, stream.OpUpdate, []string{"emp", "wrk"}, c))

	// Запоздавший дубль не должен навесить фантомную дельту сверху
	session.apply(incoming)

	got, _ := session.Conversations.Get("c1")
	assert.Equal(t, 1, got.UnreadCount)
	assert.Equal(t, 1, session.Conversations.UnreadTotal())
}

func TestSessionOwnMessageEchoDoesNotBumpUnread(t *testing.T) {
	session, conversations, _, _, _ := newSessionEnv(t)

	c := conv("c1", "emp", "wrk", time.Now())
	conversations.put(c)
	session.Conversations.UpsertFromEvent(c)

	own := msg("m1", "c1", "emp", "hi", time.Now())
	session.apply(rowEvent(t, stream.TableMessages, stream.OpInsert, []string{"emp", "wrk"}, own))

	got, _ := session.Conversations.Get("c1")
	assert.Equal(t, 0, got.UnreadCount)
}

func TestSessionFocusedConversationMessageGoesToHistoryNotCounter(t *testing.T) {
	session, conversations, _, _, _ := newSessionEnv(t)

	c := conv("c1", "emp", "wrk", time.Now())
	conversations.put(c)
	session.Conversations.UpsertFromEvent(c)
	require.NoError(t, session.FocusConversation("c1"))

	incoming := msg("m1", "c1", "wrk", "hi", time.Now())
	session.apply(rowEvent(t, stream.TableMessages, stream.OpInsert, []string{"emp", "wrk"}, incoming))

	assert.Len(t, session.Messages.Messages(), 1)
	got, _ := session.Conversations.Get("c1")
	assert.Equal(t, 0, got.UnreadCount)
}

func TestSessionFocusMarksConversationRead(t *testing.T) {
	session, conversations, messages, _, _ := newSessionEnv(t)

	c := conv("c1", "emp", "wrk", time.Now())
	c.UnreadCount = 2
	conversations.put(c)
	messages.put(msg("m1", "c1", "wrk", "a", time.Now()))
	messages.put(msg("m2", "c1", "wrk", "b", time.Now().Add(time.Second)))

	require.NoError(t, session.Conversations.Load())
	require.NoError(t, session.FocusConversation("c1"))

	assert.Equal(t, 0, messages.unreadCount("c1", "emp"))
	assert.Equal(t, 0, conversations.conversations["c1"].UnreadCount)

	// Локальная история тоже прочитана
	for _, m := range session.Messages.Messages() {
		assert.True(t, m.Read)
	}
	got, _ := session.Conversations.Get("c1")
	assert.Equal(t, 0, got.UnreadCount)
}

func TestSessionFocusDeniedForNonParticipant(t *testing.T) {
	session, conversations, _, _, _ := newSessionEnv(t)
	conversations.put(conv("cx", "emp2", "wrk2", time.Now()))

	err := session.FocusConversation("cx")
	assert.ErrorIs(t, err, apperrors.ErrNotParticipant)
}

func TestSessionMarkReadFailFastOrdering(t *testing.T) {
	session, conversations, messages, _, _ := newSessionEnv(t)

	c := conv("c1", "emp", "wrk", time.Now())
	c.UnreadCount = 1
	conversations.put(c)
	messages.put(msg("m1", "c1", "wrk", "a", time.Now()))
	require.NoError(t, session.Conversations.Load())

	// Первый шаг падает - счетчик не должен занулиться
	messages.markReadErr = errors.New("storage down")
	err := session.MarkConversationRead("c1")
	require.Error(t, err)
	assert.Equal(t, 1, conversations.conversations["c1"].UnreadCount)
	assert.Equal(t, 1, messages.unreadCount("c1", "emp"))
}

func TestSessionDoubleMarkReadIsNoop(t *testing.T) {
	session, conversations, messages, _, _ := newSessionEnv(t)

	c := conv("c1", "emp", "wrk", time.Now())
	conversations.put(c)
	messages.put(msg("m1", "c1", "wrk", "a", time.Now()))
	require.NoError(t, session.Conversations.Load())

	require.NoError(t, session.MarkConversationRead("c1"))
	require.NoError(t, session.MarkConversationRead("c1"))
	assert.Equal(t, 0, conversations.conversations["c1"].UnreadCount)
}

func TestSessionStartConversationFindOrCreate(t *testing.T) {
	session, _, _, _, _ := newSessionEnv(t)

	appID := "app-1"
	first, err := session.StartConversation(StartConversationInput{
		EmployerID:    "emp",
		WorkerID:      "wrk",
		ApplicationID: &appID,
		JobTitle:      "Backend Engineer",
	})
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)

	// Повторный вызов с той же тройкой стабилен
	second, err := session.StartConversation(StartConversationInput{
		EmployerID:    "emp",
		WorkerID:      "wrk",
		ApplicationID: &appID,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	// NULL-отклик - отдельный ключ, не совпадает с app-1
	third, err := session.StartConversation(StartConversationInput{
		EmployerID: "emp",
		WorkerID:   "wrk",
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)

	assert.Len(t, session.Conversations.List(), 2)
}

func TestSessionStartConversationDeniedForOutsider(t *testing.T) {
	session, _, _, _, _ := newSessionEnv(t)

	_, err := session.StartConversation(StartConversationInput{
		EmployerID: "emp2",
		WorkerID:   "wrk2",
	})
	assert.ErrorIs(t, err, apperrors.ErrNotParticipant)
}

func TestSessionRunConsumesDispatcherEvents(t *testing.T) {
	session, _, _, _, dispatcher := newSessionEnv(t)

	changed := make(chan struct{}, 16)
	session.SetOnChange(func() { changed <- struct{}{} })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go session.Run(ctx)

	c := conv("c1", "emp", "wrk", time.Now())
	dispatcher.Publish(rowEvent(t, stream.TableConversations, stream.OpInsert, []string{"emp"}, c))

	select {
	case <-changed:
	case <-time.After(time.Second):
		t.Fatal("session did not apply dispatched event")
	}

	_, ok := session.Conversations.Get("c1")
	assert.True(t, ok)

	session.Close()
	select {
	case <-session.Done():
	case <-time.After(time.Second):
		t.Fatal("session run loop did not stop after Close")
	}
}
