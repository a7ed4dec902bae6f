package models

import (
	"gorm.io/datatypes"
)

const (
	NotificationTypeMessage     = "message"
	NotificationTypeApplication = "application"
	NotificationTypeJobMatch    = "job_match"
	NotificationTypeSystem      = "system"
)

type Notification struct {
	BaseModel
	UserID string         `gorm:"not null;index" json:"user_id"`
	Type   string         `gorm:"not null" json:"type"` // "message", "application", "job_match", "system"
	Title  string         `gorm:"not null" json:"title"`
	Body   string         `json:"body"`
	Data   datatypes.JSON `gorm:"type:jsonb" json:"data,omitempty"` // {"job_id": "..."} для роутинга по клику
	Read   bool           `gorm:"default:false" json:"read"`
}

func (Notification) TableName() string {
	return "notifications"
}

func IsValidNotificationType(notificationType string) bool {
	switch notificationType {
	case NotificationTypeMessage, NotificationTypeApplication,
		NotificationTypeJobMatch, NotificationTypeSystem:
		return true
	}
	return false
}
