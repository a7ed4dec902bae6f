package services

import (
	"errors"

	"worklink_backend/internal/models"
	"worklink_backend/internal/repositories"
	"worklink_backend/pkg/apperrors"

	"gorm.io/datatypes"
)

type NotificationService interface {
	ListNotifications(userID string) ([]models.Notification, error)
	CreateNotification(input CreateNotificationInput) (*models.Notification, error)
	MarkAsRead(userID, notificationID string) error
	MarkAllAsRead(userID string) error
	UnreadCount(userID string) (int64, error)
}

type CreateNotificationInput struct {
	UserID string         `json:"user_id" validate:"required"`
	Type   string         `json:"type" validate:"required,is-notification-type"`
	Title  string         `json:"title" validate:"required"`
	Body   string         `json:"body"`
	Data   datatypes.JSON `json:"data"`
}

type NotificationServiceImpl struct {
	notifications repositories.NotificationRepository
}

func NewNotificationService(notifications repositories.NotificationRepository) NotificationService {
	return &NotificationServiceImpl{notifications: notifications}
}

func (s *NotificationServiceImpl) ListNotifications(userID string) ([]models.Notification, error) {
	notifications, err := s.notifications.ListForUser(userID)
	if err != nil {
		return nil, apperrors.NewFetchError(err, "notification")
	}
	return notifications, nil
}

func (s *NotificationServiceImpl) CreateNotification(input CreateNotificationInput) (*models.Notification, error) {
	notification := &models.Notification{
		UserID: input.UserID,
		Type:   input.Type,
		Title:  input.Title,
		Body:   input.Body,
		Data:   input.Data,
	}
	if err := s.notifications.Create(notification); err != nil {
		return nil, apperrors.NewWriteError(err, "notification", "Failed to create notification")
	}
	return notification, nil
}

func (s *NotificationServiceImpl) MarkAsRead(userID, notificationID string) error {
	notification, err := s.notifications.FindByID(notificationID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotificationNotFound) {
			return apperrors.ErrNotFound(err)
		}
		return apperrors.NewFetchError(err, "notification")
	}
	if notification.UserID != userID {
		return apperrors.NewForbiddenError("Notification belongs to another user")
	}

	if err := s.notifications.MarkRead(notificationID, userID); err != nil {
		return apperrors.NewWriteError(err, "notification", "Failed to mark notification read")
	}
	return nil
}

func (s *NotificationServiceImpl) MarkAllAsRead(userID string) error {
	if err := s.notifications.MarkAllRead(userID); err != nil {
		return apperrors.NewWriteError(err, "notification", "Failed to mark notifications read")
	}
	return nil
}

func (s *NotificationServiceImpl) UnreadCount(userID string) (int64, error) {
	count, err := s.notifications.UnreadCount(userID)
	if err != nil {
		return 0, apperrors.NewFetchError(err, "notification")
	}
	return count, nil
}
