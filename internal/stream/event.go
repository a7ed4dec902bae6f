package stream

import (
	"encoding/json"
	"errors"
	"fmt"

	"worklink_backend/internal/models"
)

const (
	OpInsert = "INSERT"
	OpUpdate = "UPDATE"
)

const (
	TableConversations = "conversations"
	TableMessages      = "messages"
	TableNotifications = "notifications"
)

var (
	ErrUnknownTable   = errors.New("unknown table in event")
	ErrUnknownOp      = errors.New("unknown operation in event")
	ErrMalformedEvent = errors.New("malformed event payload")
)

// Event - недоверенный tagged union из NOTIFY-пейлоада.
// Row не мержится в кэши напрямую: сначала декодируется
// в типизированную модель и валидируется.
type Event struct {
	Table      string          `json:"table"`
	Op         string          `json:"op"`
	Recipients []string        `json:"recipients"`
	Row        json.RawMessage `json:"row"`
}

// ParseEvent разбирает сырой пейлоад уведомления и проверяет теги.
func ParseEvent(payload []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	switch ev.Table {
	case TableConversations, TableMessages, TableNotifications:
	default:
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownTable, ev.Table)
	}

	switch ev.Op {
	case OpInsert, OpUpdate:
	default:
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownOp, ev.Op)
	}

	if len(ev.Row) == 0 {
		return Event{}, fmt.Errorf("%w: missing row", ErrMalformedEvent)
	}

	return ev, nil
}

// DecodeConversation конвертирует событие в типизированный диалог.
func DecodeConversation(ev Event) (models.Conversation, error) {
	if ev.Table != TableConversations {
		return models.Conversation{}, fmt.Errorf("%w: expected conversations, got %q", ErrUnknownTable, ev.Table)
	}

	var conversation models.Conversation
	if err := json.Unmarshal(ev.Row, &conversation); err != nil {
		return models.Conversation{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if conversation.ID == "" || conversation.EmployerID == "" || conversation.WorkerID == "" {
		return models.Conversation{}, fmt.Errorf("%w: conversation row missing identity", ErrMalformedEvent)
	}
	return conversation, nil
}

// DecodeMessage конвертирует событие в типизированное сообщение.
func DecodeMessage(ev Event) (models.Message, error) {
	if ev.Table != TableMessages {
		return models.Message{}, fmt.Errorf("%w: expected messages, got %q", ErrUnknownTable, ev.Table)
	}

	var message models.Message
	if err := json.Unmarshal(ev.Row, &message); err != nil {
		return models.Message{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if message.ID == "" || message.ConversationID == "" || message.SenderID == "" {
		return models.Message{}, fmt.Errorf("%w: message row missing identity", ErrMalformedEvent)
	}
	return message, nil
}

// DecodeNotification конвертирует событие в типизированное уведомление.
func DecodeNotification(ev Event) (models.Notification, error) {
	if ev.Table != TableNotifications {
		return models.Notification{}, fmt.Errorf("%w: expected notifications, got %q", ErrUnknownTable, ev.Table)
	}

	var notification models.Notification
	if err := json.Unmarshal(ev.Row, &notification); err != nil {
		return models.Notification{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if notification.ID == "" || notification.UserID == "" {
		return models.Notification{}, fmt.Errorf("%w: notification row missing identity", ErrMalformedEvent)
	}
	return notification, nil
}
