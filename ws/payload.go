package ws

import (
	"worklink_backend/internal/models"
	"worklink_backend/internal/realtime"
	"worklink_backend/pkg/apperrors"
)

// Исходящие кадры. Клиент различает их по полю type.
const (
	TypeState        = "state"
	TypeMessageSent  = "message_sent"
	TypeConversation = "conversation_started"
	TypeError        = "error"
)

type OutgoingWSMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
	Error   any    `json:"error,omitempty"`
}

// StatePayload - полный снапшот синхронизированного состояния сессии.
// Пушится после каждого примененного события стрима и после каждой
// команды клиента: клиент всегда рендерит последний снапшот целиком.
type StatePayload struct {
	Conversations       []models.Conversation `json:"conversations"`
	UnreadTotal         int                   `json:"unread_total"`
	FocusedConversation string                `json:"focused_conversation,omitempty"`
	Messages            []models.Message      `json:"messages"`
	Notifications       []models.Notification `json:"notifications"`
	NotificationUnread  int                   `json:"notification_unread"`
}

func buildState(session *realtime.Session) OutgoingWSMessage {
	return OutgoingWSMessage{
		Type: TypeState,
		Payload: StatePayload{
			Conversations:       session.Conversations.List(),
			UnreadTotal:         session.Conversations.UnreadTotal(),
			FocusedConversation: session.Messages.FocusedConversation(),
			Messages:            session.Messages.Messages(),
			Notifications:       session.Notifications.List(),
			NotificationUnread:  session.Notifications.UnreadCount(),
		},
	}
}

func buildError(err error) OutgoingWSMessage {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		appErr = apperrors.InternalError(err)
	}
	return OutgoingWSMessage{Type: TypeError, Error: appErr}
}
