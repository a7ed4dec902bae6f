package integration_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"worklink_backend/internal/models"
	"worklink_backend/test/helpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationLifecycle(t *testing.T) {
	ts := GetTestServer(t)
	ts.ClearTables()

	wrkToken, worker := helpers.CreateWorker(t, ts.DB)
	first := CreateTestNotification(t, ts.DB, worker.ID, "First")
	CreateTestNotification(t, ts.DB, worker.ID, "Second")

	res, resBody := ts.SendRequest(t, http.MethodGet, "/api/v1/notifications", wrkToken, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, resBody)

	var list struct {
		Notifications []models.Notification `json:"notifications"`
		Total         int                   `json:"total"`
	}
	require.NoError(t, json.Unmarshal([]byte(resBody), &list))
	assert.Equal(t, 2, list.Total)

	res, resBody = ts.SendRequest(t, http.MethodGet, "/api/v1/notifications/unread-count", wrkToken, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, resBody)
	var unread struct {
		UnreadCount int64 `json:"unread_count"`
	}
	require.NoError(t, json.Unmarshal([]byte(resBody), &unread))
	assert.Equal(t, int64(2), unread.UnreadCount)

	// Одно прочитано
	readPath := fmt.Sprintf("/api/v1/notifications/%s/read", first.ID)
	res, resBody = ts.SendRequest(t, http.MethodPut, readPath, wrkToken, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, resBody)

	res, resBody = ts.SendRequest(t, http.MethodGet, "/api/v1/notifications/unread-count", wrkToken, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, resBody)
	require.NoError(t, json.Unmarshal([]byte(resBody), &unread))
	assert.Equal(t, int64(1), unread.UnreadCount)

	// Все прочитаны - агрегат ноль
	res, resBody = ts.SendRequest(t, http.MethodPut, "/api/v1/notifications/read-all", wrkToken, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, resBody)

	res, resBody = ts.SendRequest(t, http.MethodGet, "/api/v1/notifications/unread-count", wrkToken, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, resBody)
	require.NoError(t, json.Unmarshal([]byte(resBody), &unread))
	assert.Equal(t, int64(0), unread.UnreadCount)
}

func TestNotificationIsolationBetweenUsers(t *testing.T) {
	ts := GetTestServer(t)
	ts.ClearTables()

	empToken, _ := helpers.CreateEmployer(t, ts.DB)
	_, worker := helpers.CreateWorker(t, ts.DB)
	foreign := CreateTestNotification(t, ts.DB, worker.ID, "Not yours")

	// Чужой список пуст
	res, resBody := ts.SendRequest(t, http.MethodGet, "/api/v1/notifications", empToken, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, resBody)
	var list struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal([]byte(resBody), &list))
	assert.Equal(t, 0, list.Total)

	// Чужое уведомление нельзя пометить прочитанным
	readPath := fmt.Sprintf("/api/v1/notifications/%s/read", foreign.ID)
	res, _ = ts.SendRequest(t, http.MethodPut, readPath, empToken, nil)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
}

func TestCreateNotificationValidation(t *testing.T) {
	ts := GetTestServer(t)
	ts.ClearTables()

	wrkToken, worker := helpers.CreateWorker(t, ts.DB)

	res, resBody := ts.SendRequest(t, http.MethodPost, "/api/v1/notifications", wrkToken, map[string]interface{}{
		"user_id": worker.ID,
		"type":    models.NotificationTypeJobMatch,
		"title":   "New job for you",
	})
	require.Equal(t, http.StatusCreated, res.StatusCode, resBody)

	// Неизвестный тип отклоняется валидатором
	res, _ = ts.SendRequest(t, http.MethodPost, "/api/v1/notifications", wrkToken, map[string]interface{}{
		"user_id": worker.ID,
		"type":    "bogus",
		"title":   "Nope",
	})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}
