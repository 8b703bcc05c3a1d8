package handlers

import (
	"net/http"
	"time"

	"clinic_queue/internal/models"
	"clinic_queue/internal/queue"
	"clinic_queue/internal/response"
	"clinic_queue/internal/storage"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
)

type CreateClinicRequest struct {
	Name    string `json:"name" binding:"required"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

// CreateClinicHandler создаёт клинику
// @Summary		Создание клиники
// @Tags			admin
// @Accept			json
// @Produce		json
// @Param			request	body		CreateClinicRequest	true	"Данные клиники"
// @Security		BearerAuth
// @Success		201	{object}	map[string]interface{}	"ID созданной клиники"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (VALIDATION_ERROR)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/clinics [post]
func CreateClinicHandler(c *gin.Context) {
	var req CreateClinicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	clinic := models.Clinic{Name: req.Name, Address: req.Address, Phone: req.Phone}
	if err := storage.DB.Create(&clinic).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при создании клиники",
			Details: err.Error(),
		})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"clinic_id": clinic.ID})
}

type CreateQueueRequest struct {
	Name        string                 `json:"name" binding:"required"`
	Type        string                 `json:"type" binding:"omitempty,oneof=general urgent follow_up consultation procedure emergency"`
	MaxCapacity int                    `json:"max_capacity" binding:"required,min=1"`
	MinPriority int                    `json:"min_priority" binding:"omitempty,min=1,max=5"`
	MaxPriority int                    `json:"max_priority" binding:"omitempty,min=1,max=5"`
	AutoAssign  bool                   `json:"auto_assign"`
	Config      map[string]interface{} `json:"config"`
	ClosesAt    *time.Time             `json:"closes_at"`
}

// CreateQueueHandler создаёт очередь клиники
// @Summary		Создание очереди
// @Description	Создаёт очередь указанного типа с лимитом активных записей и диапазоном приоритетов
// @Tags			admin
// @Accept			json
// @Produce		json
// @Param			id		path		string				true	"ID клиники"
// @Param			request	body		CreateQueueRequest	true	"Параметры очереди"
// @Security		BearerAuth
// @Success		201	{object}	map[string]interface{}	"ID созданной очереди"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (INVALID_CLINIC_ID, VALIDATION_ERROR)"
// @Failure		404	{object}	response.ErrorResponse	"Клиника не найдена (CLINIC_NOT_FOUND)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/clinics/{id}/queues [post]
func CreateQueueHandler(c *gin.Context) {
	clinicID, ok := parseIDParam(c, "INVALID_CLINIC_ID", "Неверный идентификатор клиники")
	if !ok {
		return
	}

	var req CreateQueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	var clinic models.Clinic
	if err := storage.DB.First(&clinic, clinicID).Error; err != nil {
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "CLINIC_NOT_FOUND",
			Message: "Клиника не найдена",
		})
		return
	}

	q := models.Queue{
		ClinicID:    clinicID,
		Name:        req.Name,
		Type:        req.Type,
		Status:      models.QueueStatusActive,
		MaxCapacity: req.MaxCapacity,
		MinPriority: req.MinPriority,
		MaxPriority: req.MaxPriority,
		AutoAssign:  req.AutoAssign,
		Config:      datatypes.JSONMap(req.Config),
		ClosesAt:    req.ClosesAt,
	}
	if q.Type == "" {
		q.Type = models.QueueTypeGeneral
	}
	if q.MinPriority == 0 {
		q.MinPriority = 1
	}
	if q.MaxPriority == 0 {
		q.MaxPriority = 5
	}
	if q.MinPriority > q.MaxPriority {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "min_priority не может превышать max_priority",
		})
		return
	}

	if err := storage.DB.Create(&q).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при создании очереди",
			Details: err.Error(),
		})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"queue_id": q.ID})
}

// ListQueuesHandler возвращает очереди клиники
// @Summary		Очереди клиники
// @Tags			admin
// @Accept			json
// @Produce		json
// @Param			id	path		string	true	"ID клиники"
// @Security		BearerAuth
// @Success		200	{array}		models.Queue	"Очереди клиники"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (INVALID_CLINIC_ID)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/clinics/{id}/queues [get]
func ListQueuesHandler(c *gin.Context) {
	clinicID, ok := parseIDParam(c, "INVALID_CLINIC_ID", "Неверный идентификатор клиники")
	if !ok {
		return
	}

	var queues []models.Queue
	if err := storage.DB.Where("clinic_id = ?", clinicID).Find(&queues).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка загрузки очередей",
			Details: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, queues)
}

type UpdateQueueStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=active paused closed maintenance"`
}

// UpdateQueueStatusHandler меняет статус очереди
// @Summary		Смена статуса очереди
// @Description	active/paused/maintenance переключаются свободно; closed — мягкое закрытие, ожидающие записи отменяются, история сохраняется
// @Tags			admin
// @Accept			json
// @Produce		json
// @Param			id		path		string						true	"ID очереди"
// @Param			request	body		UpdateQueueStatusRequest	true	"Новый статус"
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse	"Статус обновлён"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (INVALID_QUEUE_ID, VALIDATION_ERROR)"
// @Failure		404	{object}	response.ErrorResponse	"Очередь не найдена (QUEUE_NOT_FOUND)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/queues/{id}/status [patch]
func UpdateQueueStatusHandler(c *gin.Context) {
	queueID, ok := parseIDParam(c, "INVALID_QUEUE_ID", "Неверный идентификатор очереди")
	if !ok {
		return
	}

	var req UpdateQueueStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	if err := queue.SetStatus(queueID, req.Status); err != nil {
		queueError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessResponse{Message: "Статус очереди обновлён"})
}
