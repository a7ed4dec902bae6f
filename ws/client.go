package ws

import (
	"encoding/json"
	"sync"

	"worklink_backend/internal/logger"
	"worklink_backend/internal/realtime"

	"github.com/gorilla/websocket"
)

type IncomingWSMessage struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

type Client struct {
	Conn    *websocket.Conn
	Send    chan any
	Session *realtime.Session

	registry *realtime.Registry

	// pushState может прийти из хендлера и из горутины сессии,
	// пока readPump уже закрывает канал - закрытие и отправка
	// сериализуются одним мьютексом.
	sendMu     sync.Mutex
	sendClosed bool
}

func (c *Client) readPump() {
	defer func() {
		c.registry.Release(c.Session)
		// Send закрывается только после выхода цикла сессии:
		// ее колбэк пишет в этот канал.
		<-c.Session.Done()
		c.closeSend()
		c.Conn.Close()
	}()

	for {
		_, msgBytes, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("websocket read error", "user_id", c.Session.ActorID(), "error", err)
			}
			break
		}

		var msg IncomingWSMessage
		if err := json.Unmarshal(msgBytes, &msg); err != nil {
			c.Send <- buildError(err)
			continue
		}

		c.handleMessage(msg)
	}
}

func (c *Client) writePump() {
	for msg := range c.Send {
		if err := c.Conn.WriteJSON(msg); err != nil {
			logger.Warn("websocket write error", "user_id", c.Session.ActorID(), "error", err)
			break
		}
	}
}

// pushState кладет свежий снапшот в исходящий канал.
// Переполненный канал - снапшот пропускается: следующий все равно
// принесет полное состояние. После closeSend превращается в no-op.
func (c *Client) pushState() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.sendClosed {
		return
	}
	select {
	case c.Send <- buildState(c.Session):
	default:
	}
}

// closeSend закрывает исходящий канал ровно один раз.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.sendClosed {
		return
	}
	c.sendClosed = true
	close(c.Send)
}

// Централизованный обработчик команд клиента
func (c *Client) handleMessage(msg IncomingWSMessage) {
	switch msg.Action {

	case "focus_conversation":
		var payload struct {
			ConversationID string `json:"conversation_id"`
		}
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			c.Send <- buildError(err)
			return
		}
		if err := c.Session.FocusConversation(payload.ConversationID); err != nil {
			c.Send <- buildError(err)
		}
		c.pushState()

	case "blur_conversation":
		c.Session.BlurConversation()
		c.pushState()

	case "send_message":
		var payload struct {
			ConversationID string `json:"conversation_id"`
			Body           string `json:"body"`
		}
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			c.Send <- buildError(err)
			return
		}
		message, err := c.Session.SendMessage(payload.ConversationID, payload.Body)
		if err != nil {
			c.Send <- buildError(err)
			return
		}
		c.Send <- OutgoingWSMessage{Type: TypeMessageSent, Payload: message}
		c.pushState()

	case "mark_read":
		var payload struct {
			ConversationID string `json:"conversation_id"`
		}
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			c.Send <- buildError(err)
			return
		}
		if err := c.Session.MarkConversationRead(payload.ConversationID); err != nil {
			c.Send <- buildError(err)
			return
		}
		c.pushState()

	case "start_conversation":
		var payload struct {
			EmployerID    string  `json:"employer_id"`
			WorkerID      string  `json:"worker_id"`
			ApplicationID *string `json:"application_id"`
			JobTitle      string  `json:"job_title"`
		}
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			c.Send <- buildError(err)
			return
		}
		conversation, err := c.Session.StartConversation(realtime.StartConversationInput{
			EmployerID:    payload.EmployerID,
			WorkerID:      payload.WorkerID,
			ApplicationID: payload.ApplicationID,
			JobTitle:      payload.JobTitle,
		})
		if err != nil {
			c.Send <- buildError(err)
			return
		}
		c.Send <- OutgoingWSMessage{Type: TypeConversation, Payload: conversation}
		c.pushState()

	case "mark_notification_read":
		var payload struct {
			NotificationID string `json:"notification_id"`
		}
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			c.Send <- buildError(err)
			return
		}
		if err := c.Session.Notifications.MarkRead(payload.NotificationID); err != nil {
			c.Send <- buildError(err)
			return
		}
		c.pushState()

	case "mark_all_notifications_read":
		if err := c.Session.Notifications.MarkAllRead(); err != nil {
			c.Send <- buildError(err)
			return
		}
		c.pushState()

	default:
		logger.Warn("unhandled websocket action", "action", msg.Action)
	}
}
