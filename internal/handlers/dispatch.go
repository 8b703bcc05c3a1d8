package handlers

import (
	"errors"
	"net/http"

	"clinic_queue/internal/queue"
	"clinic_queue/internal/response"

	"github.com/gin-gonic/gin"
)

type CallNextRequest struct {
	ServicePoint string `json:"service_point" binding:"required"`
}

// CallNextHandler вызывает следующего пациента
// @Summary		Вызов следующего пациента
// @Description	Переводит первого ожидающего в состояние called и закрепляет за ним точку обслуживания. Пустая очередь — нормальный результат, не ошибка.
// @Tags			dispatch
// @Accept			json
// @Produce		json
// @Param			id		path		string			true	"ID очереди"
// @Param			request	body		CallNextRequest	true	"Точка обслуживания (врач/кабинет)"
// @Security		BearerAuth
// @Success		200	{object}	map[string]interface{}	"Вызванный пациент либо empty: true"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (INVALID_QUEUE_ID, VALIDATION_ERROR)"
// @Failure		404	{object}	response.ErrorResponse	"Очередь не найдена (QUEUE_NOT_FOUND)"
// @Failure		409	{object}	response.ErrorResponse	"Очередь закрыта или конфликт обновления (QUEUE_INACTIVE, CONFLICT)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/queues/{id}/call [post]
func CallNextHandler(c *gin.Context) {
	queueID, ok := parseIDParam(c, "INVALID_QUEUE_ID", "Неверный идентификатор очереди")
	if !ok {
		return
	}

	var req CallNextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	entry, err := queue.CallNext(queueID, req.ServicePoint)
	if errors.Is(err, queue.ErrQueueEmpty) {
		c.JSON(http.StatusOK, gin.H{
			"empty":   true,
			"message": "В очереди нет ожидающих",
		})
		return
	}
	if err != nil {
		queueError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"empty":         false,
		"entry_id":      entry.ID,
		"ticket_code":   entry.TicketCode,
		"patient_id":    entry.PatientID,
		"service_point": entry.ServicePoint,
		"called_at":     entry.CalledAt,
	})
}

// CompleteHandler завершает приём вызванного пациента
// @Summary		Завершение приёма
// @Description	Переводит вызванную запись в served и пополняет статистику ожидания очереди
// @Tags			dispatch
// @Accept			json
// @Produce		json
// @Param			id	path		string	true	"ID записи"
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse	"Приём завершён"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (INVALID_ENTRY_ID)"
// @Failure		404	{object}	response.ErrorResponse	"Запись не найдена (ENTRY_NOT_FOUND)"
// @Failure		409	{object}	response.ErrorResponse	"Запись не в состоянии called (INVALID_TRANSITION)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/entries/{id}/complete [post]
func CompleteHandler(c *gin.Context) {
	entryID, ok := parseIDParam(c, "INVALID_ENTRY_ID", "Неверный идентификатор записи")
	if !ok {
		return
	}

	if _, err := queue.Complete(entryID); err != nil {
		queueError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessResponse{Message: "Приём завершён"})
}

type MoveRequest struct {
	Direction string `json:"direction" binding:"required,oneof=up down"`
}

// MoveEntryHandler сдвигает запись на одну позицию
// @Summary		Ручное перемещение записи
// @Description	Сдвигает запись вверх или вниз на одну позицию внутри её яруса приоритета. Выход за границы яруса — no-op.
// @Tags			dispatch
// @Accept			json
// @Produce		json
// @Param			id		path		string		true	"ID записи"
// @Param			request	body		MoveRequest	true	"Направление: up или down"
// @Security		BearerAuth
// @Success		200	{object}	map[string]interface{}	"Новая позиция записи"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (INVALID_ENTRY_ID, VALIDATION_ERROR)"
// @Failure		404	{object}	response.ErrorResponse	"Запись не найдена или не ожидает (ENTRY_NOT_FOUND)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/entries/{id}/move [post]
func MoveEntryHandler(c *gin.Context) {
	entryID, ok := parseIDParam(c, "INVALID_ENTRY_ID", "Неверный идентификатор записи")
	if !ok {
		return
	}

	var req MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	entry, err := queue.MoveManual(entryID, req.Direction)
	if err != nil {
		queueError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"entry_id": entry.ID,
		"position": entry.Position,
	})
}

// RemoveEntryHandler снимает запись с очереди решением персонала
// @Summary		Снятие записи персоналом
// @Description	Переводит запись из waiting/called в removed и освобождает позицию
// @Tags			dispatch
// @Accept			json
// @Produce		json
// @Param			id	path		string	true	"ID записи"
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse	"Запись снята с очереди"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (INVALID_ENTRY_ID)"
// @Failure		404	{object}	response.ErrorResponse	"Запись не найдена (ENTRY_NOT_FOUND)"
// @Failure		409	{object}	response.ErrorResponse	"Запись уже в конечном состоянии (INVALID_TRANSITION)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/entries/{id}/remove [post]
func RemoveEntryHandler(c *gin.Context) {
	entryID, ok := parseIDParam(c, "INVALID_ENTRY_ID", "Неверный идентификатор записи")
	if !ok {
		return
	}

	if _, err := queue.Remove(entryID); err != nil {
		queueError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessResponse{Message: "Запись снята с очереди"})
}

// CancelEntryHandler отменяет запись по просьбе пациента
// @Summary		Отмена записи пациентом
// @Description	Переводит запись из waiting/called в cancelled и освобождает позицию
// @Tags			dispatch
// @Accept			json
// @Produce		json
// @Param			id	path		string	true	"ID записи"
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse	"Запись отменена"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (INVALID_ENTRY_ID)"
// @Failure		404	{object}	response.ErrorResponse	"Запись не найдена (ENTRY_NOT_FOUND)"
// @Failure		409	{object}	response.ErrorResponse	"Запись уже в конечном состоянии (INVALID_TRANSITION)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/entries/{id}/cancel [post]
func CancelEntryHandler(c *gin.Context) {
	entryID, ok := parseIDParam(c, "INVALID_ENTRY_ID", "Неверный идентификатор записи")
	if !ok {
		return
	}

	if _, err := queue.Cancel(entryID); err != nil {
		queueError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessResponse{Message: "Запись отменена"})
}
