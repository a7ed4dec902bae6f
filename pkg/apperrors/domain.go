package apperrors

import (
	"net/http"
)

/*
Фабрики для доменных ошибок слоя синхронизации.
Таксономия: FetchError (чтение у коллаборатора упало, кэш не очищается),
WriteError/SendError (запись упала, оптимистичное состояние откатывается),
ValidationError (отклонено до любого I/O).
*/

// ErrNotFound - фабрика для ошибки "не найдено" (404)
func ErrNotFound(err error) *AppError {
	return Wrap(err, CodeNotFound, "resource", "Resource not found", http.StatusNotFound)
}

// ErrConflict - общая фабрика для конфликтов (409)
func ErrConflict(err error, domain, message string) *AppError {
	return Wrap(err, CodeConflict, domain, message, http.StatusConflict)
}

// NewFetchError - чтение из хранилища не удалось; стор сохраняет
// последнее известное состояние и отдает эту ошибку наверх.
func NewFetchError(err error, domain string) *AppError {
	return Wrap(err, CodeFetchFailed, domain, "Failed to fetch from storage", http.StatusBadGateway)
}

// NewWriteError - запись в хранилище не удалась
func NewWriteError(err error, domain, message string) *AppError {
	return Wrap(err, CodeWriteFailed, domain, message, http.StatusBadGateway)
}

// NewSendError - отправка сообщения отклонена или не удалась
func NewSendError(err error, message string) *AppError {
	return Wrap(err, CodeSendFailed, "chat", message, http.StatusBadGateway)
}

// ErrEmptyMessageBody - тело сообщения пустое после trim, I/O не выполнялся.
var ErrEmptyMessageBody = New(
	CodeValidationFailed,
	"chat",
	"Message body is empty",
	http.StatusBadRequest,
)

// ErrNoFocusedConversation - операция требует открытого диалога.
var ErrNoFocusedConversation = New(
	CodeInvalidOperation,
	"chat",
	"No conversation is focused",
	http.StatusBadRequest,
)

// ErrNotParticipant - пользователь не является стороной диалога.
var ErrNotParticipant = New(
	CodeForbidden,
	"chat",
	"User is not a participant of the conversation",
	http.StatusForbidden,
)
