package helpers

import (
	"fmt"
	"log"
	"testing"
	"time"

	"worklink_backend/internal/auth"
	"worklink_backend/internal/models"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

// CreateUser создает пользователя напрямую в БД.
func CreateUser(t *testing.T, db *gorm.DB, user *models.User) error {
	result := db.Create(user)
	if result.Error != nil {
		t.Logf("ОШИБКА: не удалось создать пользователя %s: %v", user.Email, result.Error)
		return result.Error
	}
	return nil
}

// CreateUserWithToken создает пользователя и выпускает для него
// access-токен. Логина нет - токены выпускает внешний auth-сервис,
// в тестах подписываем тем же секретом.
func CreateUserWithToken(t *testing.T, db *gorm.DB, name, email string, role models.UserRole) (string, *models.User) {
	user := &models.User{
		Email:       email,
		DisplayName: name,
		Role:        role,
	}
	err := CreateUser(t, db, user)
	assert.NoError(t, err, "Создание тестового пользователя не должно вызывать ошибку")

	token, err := auth.GenerateToken(user.ID, user.Role)
	assert.NoError(t, err, "Выпуск токена не должен вызывать ошибку")

	log.Printf("[Helper] Создан пользователь %s (Role: %s)", email, role)
	return token, user
}

// CreateEmployer создает работодателя с уникальным email.
func CreateEmployer(t *testing.T, db *gorm.DB) (string, *models.User) {
	email := fmt.Sprintf("employer_%d@test.com", time.Now().UnixNano())
	return CreateUserWithToken(t, db, "Test Employer", email, models.UserRoleEmployer)
}

// CreateWorker создает исполнителя с уникальным email.
func CreateWorker(t *testing.T, db *gorm.DB) (string, *models.User) {
	email := fmt.Sprintf("worker_%d@test.com", time.Now().UnixNano())
	return CreateUserWithToken(t, db, "Test Worker", email, models.UserRoleWorker)
}
