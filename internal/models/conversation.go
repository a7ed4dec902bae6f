package models

// Conversation - канал между одним работодателем и одним исполнителем,
// опционально привязанный к отклику на вакансию.
type Conversation struct {
	BaseModel
	EmployerID    string  `gorm:"index;not null" json:"employer_id"`
	WorkerID      string  `gorm:"index;not null" json:"worker_id"`
	ApplicationID *string `gorm:"index" json:"application_id,omitempty"`

	// Денормализованные поля для списка диалогов
	JobTitle            string `json:"job_title"`
	LastMessage         string `json:"last_message"`
	LastMessageSenderID string `json:"last_message_sender_id"`
	UnreadCount         int    `gorm:"default:0" json:"unread_count"`

	Employer *User `gorm:"foreignKey:EmployerID" json:"employer,omitempty"`
	Worker   *User `gorm:"foreignKey:WorkerID" json:"worker,omitempty"`
}

func (Conversation) TableName() string {
	return "conversations"
}

// Counterpart возвращает собеседника для указанного участника.
func (c *Conversation) Counterpart(userID string) *User {
	if c.EmployerID == userID {
		return c.Worker
	}
	return c.Employer
}

// HasParticipant проверяет, является ли пользователь стороной диалога.
func (c *Conversation) HasParticipant(userID string) bool {
	return c.EmployerID == userID || c.WorkerID == userID
}
