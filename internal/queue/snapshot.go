package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"clinic_queue/internal/models"
	"clinic_queue/internal/storage"

	"gorm.io/gorm"
)

var ctx = context.Background()

// EntryView — запись очереди в том виде, в котором её показывают табло
// и рабочие места.
type EntryView struct {
	EntryID              uint   `json:"entry_id"`
	TicketCode           string `json:"ticket_code"`
	PatientName          string `json:"patient_name"`
	PatientSurname       string `json:"patient_surname"`
	Priority             int    `json:"priority"`
	Position             int    `json:"position"`
	Status               string `json:"status"`
	ServicePoint         string `json:"service_point,omitempty"`
	JoinedAt             string `json:"joined_at"`
	EstimatedWaitSeconds int    `json:"estimated_wait_seconds"`
}

// StatusResponse — снимок очереди для read API.
type StatusResponse struct {
	QueueID            uint        `json:"queue_id"`
	ClinicID           uint        `json:"clinic_id"`
	Name               string      `json:"name"`
	Type               string      `json:"type"`
	Status             string      `json:"status"`
	MaxCapacity        int         `json:"max_capacity"`
	WaitingCount       int         `json:"waiting_count"`
	CalledCount        int         `json:"called_count"`
	AverageWaitSeconds int         `json:"average_wait_seconds"`
	Waiting            []EntryView `json:"waiting"`
	Called             []EntryView `json:"called"`
}

// Снимки для табло допускают ограниченную устарелость, поэтому короткий
// TTL в Redis вместо эксклюзивной блокировки очереди на чтение.
const snapshotTTL = 3 * time.Second

func snapshotKey(queueID uint) string {
	return fmt.Sprintf("queue_status_%d", queueID)
}

func invalidateSnapshot(queueID uint) {
	if storage.RedisClient == nil {
		return
	}
	storage.RedisClient.Del(ctx, snapshotKey(queueID))
}

// Snapshot возвращает согласованный снимок очереди: упорядоченных ожидающих
// с оценкой ожидания, вызванных, счётчики и историческое среднее.
func Snapshot(queueID uint) (*StatusResponse, error) {
	// Проверка кэша
	if storage.RedisClient != nil {
		cached, err := storage.RedisClient.Get(ctx, snapshotKey(queueID)).Result()
		if err == nil && cached != "" {
			var resp StatusResponse
			if err := json.Unmarshal([]byte(cached), &resp); err == nil {
				return &resp, nil
			}
		}
	}

	var q models.Queue
	if err := storage.DB.First(&q, queueID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQueueNotFound
		}
		return nil, err
	}

	var entries []models.QueueEntry
	if err := storage.DB.
		Preload("Patient").
		Where("queue_id = ? AND status IN ?", queueID,
			[]string{models.EntryStatusWaiting, models.EntryStatusCalled}).
		Order("position ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}

	resp := StatusResponse{
		QueueID:            q.ID,
		ClinicID:           q.ClinicID,
		Name:               q.Name,
		Type:               q.Type,
		Status:             q.Status,
		MaxCapacity:        q.MaxCapacity,
		AverageWaitSeconds: int(AverageWait(queueID).Seconds()),
		Waiting:            []EntryView{},
		Called:             []EntryView{},
	}
	for _, e := range entries {
		view := EntryView{
			EntryID:        e.ID,
			TicketCode:     e.TicketCode,
			PatientName:    e.Patient.Name,
			PatientSurname: e.Patient.Surname,
			Priority:       e.Priority,
			Position:       e.Position,
			Status:         e.Status,
			ServicePoint:   e.ServicePoint,
			JoinedAt:       e.JoinedAt.Format(time.RFC3339),
		}
		if e.Status == models.EntryStatusWaiting {
			view.EstimatedWaitSeconds = int(Estimate(queueID, e.Position, e.Priority).Seconds())
			resp.Waiting = append(resp.Waiting, view)
		} else {
			resp.Called = append(resp.Called, view)
		}
	}
	resp.WaitingCount = len(resp.Waiting)
	resp.CalledCount = len(resp.Called)

	// Кэширование снимка на короткий срок
	if storage.RedisClient != nil {
		if payload, err := json.Marshal(resp); err == nil {
			storage.RedisClient.Set(ctx, snapshotKey(queueID), string(payload), snapshotTTL)
		}
	}
	return &resp, nil
}
