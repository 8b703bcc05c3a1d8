package test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"clinic_queue/internal/handlers"
	"clinic_queue/internal/models"
	"clinic_queue/internal/storage"
	"clinic_queue/internal/tasks"
	"clinic_queue/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func AuthMiddlewareTest() gin.HandlerFunc {
	return func(c *gin.Context) {
		userIDStr := c.Request.Header.Get("X-Test-UserID")
		if userIDStr == "" {
			// Значение по умолчанию
			c.Set("userID", uint(1))
		} else {
			id, err := strconv.Atoi(userIDStr)
			if err != nil {
				c.Set("userID", uint(1))
			} else {
				c.Set("userID", uint(id))
			}
		}
		c.Next()
	}
}

func setupTestServer(t *testing.T) *httptest.Server {
	// Интеграционный тест идёт на in-memory sqlite, чтобы не требовать
	// поднятой базы; продовый путь использует Postgres через storage.
	db, err := gorm.Open(sqlite.Open("file:clinic_flow?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "Ошибка открытия тестовой базы")

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Clinic{},
		&models.Patient{},
		&models.Queue{},
		&models.QueueEntry{},
		&models.QueueStat{},
	), "Ошибка при миграции")
	storage.DB = db

	go ws.HubInstance.Run()

	gin.SetMode(gin.TestMode)
	r := gin.Default()

	r.GET("/api/queues/:id/status", handlers.GetQueueStatusHandler)
	r.GET("/api/queues/:id/estimate", handlers.GetEstimateHandler)
	r.GET("/api/queues/:id/ws", ws.QueueWebSocketHandler)
	r.GET("/api/patients/:id/entries", handlers.GetPatientEntriesHandler)

	api := r.Group("/api", AuthMiddlewareTest())
	{
		api.POST("/clinics", handlers.CreateClinicHandler)
		api.POST("/clinics/:id/queues", handlers.CreateQueueHandler)
		api.GET("/clinics/:id/queues", handlers.ListQueuesHandler)
		api.PATCH("/queues/:id/status", handlers.UpdateQueueStatusHandler)
		api.POST("/patients", handlers.CreatePatientHandler)

		api.POST("/queues/:id/join", handlers.JoinQueueHandler)
		api.POST("/queues/:id/call", handlers.CallNextHandler)
		api.POST("/entries/:id/complete", handlers.CompleteHandler)
		api.POST("/entries/:id/move", handlers.MoveEntryHandler)
		api.POST("/entries/:id/remove", handlers.RemoveEntryHandler)
		api.POST("/entries/:id/cancel", handlers.CancelEntryHandler)
	}

	return httptest.NewServer(r)
}

func postJSON(t *testing.T, url string, body interface{}) map[string]interface{} {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	res, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err, "Ошибка запроса "+url)
	defer res.Body.Close()
	require.Contains(t, []int{http.StatusOK, http.StatusCreated}, res.StatusCode,
		"Неожиданный статус ответа "+url)

	var result map[string]interface{}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&result))
	return result
}

func TestClinicQueueFlow(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Close()

	// 1. Создаём клинику и очередь через админский API.
	clinicRes := postJSON(t, ts.URL+"/api/clinics", map[string]interface{}{
		"name": "Поликлиника №3",
	})
	clinicID := int(clinicRes["clinic_id"].(float64))
	log.Println("Тестовая клиника создана, ID:", clinicID)

	queueRes := postJSON(t, ts.URL+fmt.Sprintf("/api/clinics/%d/queues", clinicID), map[string]interface{}{
		"name":         "Терапевт, кабинет 12",
		"type":         "general",
		"max_capacity": 5,
	})
	queueID := int(queueRes["queue_id"].(float64))
	log.Println("Тестовая очередь создана, ID:", queueID)

	// 2. Регистрируем двух пациентов.
	p1 := postJSON(t, ts.URL+"/api/patients", map[string]interface{}{
		"name": "Иван", "surname": "Иванов",
	})
	p2 := postJSON(t, ts.URL+"/api/patients", map[string]interface{}{
		"name": "Петр", "surname": "Петров",
	})
	patient1 := int(p1["patient_id"].(float64))
	patient2 := int(p2["patient_id"].(float64))

	// 3. Записываем обоих в очередь.
	joinURL := ts.URL + fmt.Sprintf("/api/queues/%d/join", queueID)
	join1 := postJSON(t, joinURL, map[string]interface{}{"patient_id": patient1})
	assert.Equal(t, float64(1), join1["position"], "Первый пациент встаёт на позицию 1")
	join2 := postJSON(t, joinURL, map[string]interface{}{"patient_id": patient2, "priority": 3})
	assert.Equal(t, float64(2), join2["position"], "Второй пациент встаёт на позицию 2")

	// 4. Снимок очереди: двое ожидающих.
	statusURL := ts.URL + fmt.Sprintf("/api/queues/%d/status", queueID)
	statusRes, err := http.Get(statusURL)
	require.NoError(t, err, "Ошибка запроса статуса очереди")
	defer statusRes.Body.Close()
	require.Equal(t, http.StatusOK, statusRes.StatusCode)

	var status map[string]interface{}
	require.NoError(t, json.NewDecoder(statusRes.Body).Decode(&status))
	assert.Equal(t, float64(2), status["waiting_count"], "Количество ожидающих неверное")
	log.Println("Снимок очереди получен:", status)

	// 5. Подключаем табло по WebSocket.
	wsURL := "ws" + ts.URL[4:] + fmt.Sprintf("/api/queues/%d/ws", queueID)
	dialer := websocket.Dialer{}
	wsConn, _, err := dialer.Dial(wsURL, nil)
	require.NoError(t, err, "Ошибка подключения к WS")
	defer wsConn.Close()
	time.Sleep(200 * time.Millisecond) // ждём регистрации клиента в хабе

	// 6. Вызываем первого пациента и ждём событие на табло.
	callRes := postJSON(t, ts.URL+fmt.Sprintf("/api/queues/%d/call", queueID), map[string]interface{}{
		"service_point": "Кабинет 12",
	})
	assert.Equal(t, false, callRes["empty"])
	entryID := int(callRes["entry_id"].(float64))

	wsConn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, wsMessage, err := wsConn.ReadMessage()
	require.NoError(t, err, "Ошибка чтения WS сообщения")
	var wsMsg map[string]interface{}
	require.NoError(t, json.Unmarshal(wsMessage, &wsMsg))
	assert.Equal(t, "patient_called", wsMsg["event_type"], "Неверный тип WS сообщения после вызова")
	log.Println("Получено WS сообщение:", wsMsg)

	// 7. Завершаем приём, затем оцениваем остаток очереди.
	postJSON(t, ts.URL+fmt.Sprintf("/api/entries/%d/complete", entryID), map[string]interface{}{})

	wsConn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, wsMessage, err = wsConn.ReadMessage()
	require.NoError(t, err, "Ошибка чтения WS сообщения (patient_served)")
	require.NoError(t, json.Unmarshal(wsMessage, &wsMsg))
	assert.Equal(t, "patient_served", wsMsg["event_type"])

	// 8. Симулируем автоматическое закрытие очереди по времени.
	log.Println("Симуляция закрытия очереди: обновляем closes_at на прошлое время")
	storage.DB.Model(&models.Queue{}).Where("id = ?", queueID).
		Update("closes_at", time.Now().Add(-1*time.Minute))
	tasks.CloseExpiredQueues()

	wsConn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msgClosed, err := wsConn.ReadMessage()
	require.NoError(t, err, "Ошибка чтения WS сообщения (queue_closed)")
	var closedMsg map[string]interface{}
	require.NoError(t, json.Unmarshal(msgClosed, &closedMsg))
	assert.Equal(t, "queue_closed", closedMsg["event_type"], "Неверный тип WS сообщения после закрытия очереди")
	log.Println("Получено WS сообщение о закрытии очереди:", closedMsg)

	// 9. Оставшийся ожидающий отменён, у пациента нет активных записей.
	entriesRes, err := http.Get(ts.URL + fmt.Sprintf("/api/patients/%d/entries", patient2))
	require.NoError(t, err)
	defer entriesRes.Body.Close()
	var items []map[string]interface{}
	require.NoError(t, json.NewDecoder(entriesRes.Body).Decode(&items))
	assert.Empty(t, items, "После закрытия очереди активных записей не осталось")
}
