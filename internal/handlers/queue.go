package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"clinic_queue/internal/queue"
	"clinic_queue/internal/response"

	"github.com/gin-gonic/gin"
)

// queueError переводит ошибку движка очереди в ответ API.
// ErrQueueEmpty сюда не попадает: пустая очередь — не ошибка.
func queueError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, queue.ErrQueueNotFound):
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "QUEUE_NOT_FOUND",
			Message: "Очередь не найдена",
		})
	case errors.Is(err, queue.ErrQueueNotActive):
		c.JSON(http.StatusConflict, response.ErrorResponse{
			Code:    "QUEUE_INACTIVE",
			Message: "Очередь не принимает пациентов",
		})
	case errors.Is(err, queue.ErrCapacityExceeded):
		c.JSON(http.StatusConflict, response.ErrorResponse{
			Code:    "QUEUE_FULL",
			Message: "Очередь заполнена",
		})
	case errors.Is(err, queue.ErrDuplicateAdmission):
		c.JSON(http.StatusConflict, response.ErrorResponse{
			Code:    "ALREADY_IN_QUEUE",
			Message: "Пациент уже состоит в этой очереди",
		})
	case errors.Is(err, queue.ErrPriorityOutOfRange):
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "INVALID_PRIORITY",
			Message: "Приоритет вне диапазона очереди",
		})
	case errors.Is(err, queue.ErrEntryNotFound):
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "ENTRY_NOT_FOUND",
			Message: "Запись в очереди не найдена",
		})
	case errors.Is(err, queue.ErrInvalidTransition):
		c.JSON(http.StatusConflict, response.ErrorResponse{
			Code:    "INVALID_TRANSITION",
			Message: "Операция не выполнена",
		})
	case errors.Is(err, queue.ErrConcurrentConflict):
		c.JSON(http.StatusConflict, response.ErrorResponse{
			Code:    "CONFLICT",
			Message: "Очередь обновляется, повторите запрос",
		})
	default:
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка сервера",
			Details: err.Error(),
		})
	}
}

func parseIDParam(c *gin.Context, code, message string) (uint, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    code,
			Message: message,
		})
		return 0, false
	}
	return uint(id), true
}

type JoinRequest struct {
	PatientID uint                   `json:"patient_id" binding:"required"`
	Priority  int                    `json:"priority" binding:"omitempty,min=1,max=5"`
	Metadata  map[string]interface{} `json:"metadata"`
}

// JoinQueueHandler записывает пациента в очередь
// @Summary		Запись пациента в очередь
// @Description	Добавляет пациента в очередь, возвращает талон, позицию и оценку ожидания
// @Tags			queue
// @Accept			json
// @Produce		json
// @Param			id		path		string		true	"ID очереди"
// @Param			request	body		JoinRequest	true	"Пациент и приоритет (приоритет можно не указывать)"
// @Security		BearerAuth
// @Success		200	{object}	response.JoinResponse	"Пациент записан в очередь"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (INVALID_QUEUE_ID, VALIDATION_ERROR, INVALID_PRIORITY)"
// @Failure		404	{object}	response.ErrorResponse	"Очередь не найдена (QUEUE_NOT_FOUND)"
// @Failure		409	{object}	response.ErrorResponse	"Очередь заполнена или пациент уже записан (QUEUE_FULL, ALREADY_IN_QUEUE, QUEUE_INACTIVE)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/queues/{id}/join [post]
func JoinQueueHandler(c *gin.Context) {
	queueID, ok := parseIDParam(c, "INVALID_QUEUE_ID", "Неверный идентификатор очереди")
	if !ok {
		return
	}

	var req JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	entry, estimate, err := queue.Join(queueID, req.PatientID, req.Priority, req.Metadata)
	if err != nil {
		queueError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.JoinResponse{
		Message:              "Пациент записан в очередь",
		TicketCode:           entry.TicketCode,
		Position:             entry.Position,
		EstimatedWaitSeconds: int(estimate.Seconds()),
	})
}

// GetQueueStatusHandler возвращает снимок очереди
// @Summary		Снимок очереди
// @Description	Возвращает упорядоченных ожидающих с оценкой ожидания, вызванных и счётчики. Снимок кэшируется на несколько секунд.
// @Tags			queue
// @Accept			json
// @Produce		json
// @Param			id	path		string	true	"ID очереди"
// @Success		200	{object}	queue.StatusResponse	"Снимок очереди"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (INVALID_QUEUE_ID)"
// @Failure		404	{object}	response.ErrorResponse	"Очередь не найдена (QUEUE_NOT_FOUND)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/queues/{id}/status [get]
func GetQueueStatusHandler(c *gin.Context) {
	queueID, ok := parseIDParam(c, "INVALID_QUEUE_ID", "Неверный идентификатор очереди")
	if !ok {
		return
	}

	snapshot, err := queue.Snapshot(queueID)
	if err != nil {
		queueError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// GetEstimateHandler возвращает оценку ожидания для кандидата
// @Summary		Оценка ожидания
// @Description	Оценивает ожидание для заданной позиции и приоритета по статистике завершённых приёмов
// @Tags			queue
// @Accept			json
// @Produce		json
// @Param			id			path	string	true	"ID очереди"
// @Param			position	query	int		true	"Позиция кандидата"
// @Param			priority	query	int		true	"Приоритет кандидата"
// @Success		200	{object}	map[string]interface{}	"Оценка ожидания в секундах"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (INVALID_QUEUE_ID, VALIDATION_ERROR)"
// @Router			/api/queues/{id}/estimate [get]
func GetEstimateHandler(c *gin.Context) {
	queueID, ok := parseIDParam(c, "INVALID_QUEUE_ID", "Неверный идентификатор очереди")
	if !ok {
		return
	}

	position, err1 := strconv.Atoi(c.Query("position"))
	priority, err2 := strconv.Atoi(c.Query("priority"))
	if err1 != nil || err2 != nil || position < 1 {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Необходимо указать position и priority",
		})
		return
	}

	estimate := queue.Estimate(queueID, position, priority)
	c.JSON(http.StatusOK, gin.H{
		"queue_id":               queueID,
		"position":               position,
		"priority":               priority,
		"estimated_wait_seconds": int(estimate.Seconds()),
	})
}
