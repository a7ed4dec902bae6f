package validator

import (
	"log"

	"worklink_backend/internal/models"

	"github.com/go-playground/validator/v10"
)

// registerCustomRules регистрирует кастомные функции валидации.
func registerCustomRules(v *validator.Validate) {
	mustRegister := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			// Критическая ошибка времени запуска
			log.Fatalf("failed to register custom validation tag '%s': %v", tag, err)
		}
	}

	// 'is-user-role': роль участника диалога
	mustRegister("is-user-role", validateUserRole)

	// 'is-notification-type': тип уведомления
	mustRegister("is-notification-type", validateNotificationType)
}

func validateUserRole(fl validator.FieldLevel) bool {
	switch models.UserRole(fl.Field().String()) {
	case models.UserRoleEmployer, models.UserRoleWorker:
		return true
	}
	return false
}

func validateNotificationType(fl validator.FieldLevel) bool {
	return models.IsValidNotificationType(fl.Field().String())
}
