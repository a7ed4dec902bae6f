package models

import "time"

// Message - append-only: никогда не удаляется и не редактируется,
// мутируется только флаг Read координатором прочтения.
type Message struct {
	ID             string    `gorm:"primaryKey;type:uuid;default:uuid_generate_v4()" json:"id"`
	ConversationID string    `gorm:"index;not null" json:"conversation_id"`
	SenderID       string    `gorm:"index;not null" json:"sender_id"`
	Body           string    `gorm:"type:text;not null" json:"body"`
	Read           bool      `gorm:"default:false" json:"read"`
	CreatedAt      time.Time `json:"created_at"`
}

func (Message) TableName() string {
	return "messages"
}
