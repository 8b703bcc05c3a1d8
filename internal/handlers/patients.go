package handlers

import (
	"net/http"
	"time"

	"clinic_queue/internal/models"
	"clinic_queue/internal/queue"
	"clinic_queue/internal/response"
	"clinic_queue/internal/storage"

	"github.com/gin-gonic/gin"
)

type CreatePatientRequest struct {
	Name    string `json:"name" binding:"required"`
	Surname string `json:"surname" binding:"required"`
	Phone   string `json:"phone"`
}

// CreatePatientHandler регистрирует пациента на стойке
// @Summary		Регистрация пациента
// @Tags			patients
// @Accept			json
// @Produce		json
// @Param			request	body		CreatePatientRequest	true	"Данные пациента"
// @Security		BearerAuth
// @Success		201	{object}	map[string]interface{}	"ID созданного пациента"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (VALIDATION_ERROR)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/patients [post]
func CreatePatientHandler(c *gin.Context) {
	var req CreatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	patient := models.Patient{Name: req.Name, Surname: req.Surname, Phone: req.Phone}
	if err := storage.DB.Create(&patient).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при создании пациента",
			Details: err.Error(),
		})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"patient_id": patient.ID})
}

// PatientEntryItem — активная запись пациента с данными очереди
type PatientEntryItem struct {
	EntryID              uint   `json:"entry_id"`
	TicketCode           string `json:"ticket_code"`
	QueueID              uint   `json:"queue_id"`
	QueueName            string `json:"queue_name"`
	QueueType            string `json:"queue_type"`
	Status               string `json:"status"`
	Priority             int    `json:"priority"`
	Position             int    `json:"position"`
	ServicePoint         string `json:"service_point,omitempty"`
	JoinedAt             string `json:"joined_at"`
	EstimatedWaitSeconds int    `json:"estimated_wait_seconds"`
}

// GetPatientEntriesHandler возвращает активные записи пациента
// @Summary		Активные записи пациента
// @Description	Возвращает записи пациента во всех очередях (waiting/called) с позицией и оценкой ожидания
// @Tags			patients
// @Accept			json
// @Produce		json
// @Param			id	path		string	true	"ID пациента"
// @Success		200	{array}		PatientEntryItem	"Активные записи пациента"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (INVALID_PATIENT_ID)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/patients/{id}/entries [get]
func GetPatientEntriesHandler(c *gin.Context) {
	patientID, ok := parseIDParam(c, "INVALID_PATIENT_ID", "Неверный идентификатор пациента")
	if !ok {
		return
	}

	var entries []models.QueueEntry
	if err := storage.DB.
		Where("patient_id = ? AND status IN ?", patientID,
			[]string{models.EntryStatusWaiting, models.EntryStatusCalled}).
		Find(&entries).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка загрузки записей пациента",
			Details: err.Error(),
		})
		return
	}

	if len(entries) == 0 {
		c.JSON(http.StatusOK, []PatientEntryItem{})
		return
	}

	var queueIDs []uint
	for _, entry := range entries {
		queueIDs = append(queueIDs, entry.QueueID)
	}

	var queues []models.Queue
	if err := storage.DB.Where("id IN ?", queueIDs).Find(&queues).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка загрузки очередей",
			Details: err.Error(),
		})
		return
	}

	queueMap := make(map[uint]models.Queue)
	for _, q := range queues {
		queueMap[q.ID] = q
	}

	result := make([]PatientEntryItem, 0, len(entries))
	for _, entry := range entries {
		q, exists := queueMap[entry.QueueID]
		if !exists {
			continue
		}
		item := PatientEntryItem{
			EntryID:      entry.ID,
			TicketCode:   entry.TicketCode,
			QueueID:      q.ID,
			QueueName:    q.Name,
			QueueType:    q.Type,
			Status:       entry.Status,
			Priority:     entry.Priority,
			Position:     entry.Position,
			ServicePoint: entry.ServicePoint,
			JoinedAt:     entry.JoinedAt.Format(time.RFC3339),
		}
		if entry.Status == models.EntryStatusWaiting {
			item.EstimatedWaitSeconds = int(queue.Estimate(entry.QueueID, entry.Position, entry.Priority).Seconds())
		}
		result = append(result, item)
	}

	c.JSON(http.StatusOK, result)
}
