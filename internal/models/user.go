package models

type UserRole string

const (
	UserRoleEmployer UserRole = "employer"
	UserRoleWorker   UserRole = "worker"
)

// User хранит только то, что нужно подсистеме синхронизации:
// личность и роль. Профили, резюме и т.д. живут в других сервисах.
type User struct {
	BaseModel
	Email       string   `gorm:"uniqueIndex;not null" json:"email"`
	DisplayName string   `json:"display_name"`
	AvatarURL   *string  `json:"avatar_url,omitempty"`
	Role        UserRole `gorm:"not null" json:"role"`
}

func (User) TableName() string {
	return "users"
}
