package queue

import (
	"errors"
	"time"

	"clinic_queue/internal/models"
	"clinic_queue/internal/storage"

	"gorm.io/gorm"
)

// SetStatus меняет статус очереди. Закрытие мягкое: очередь и её записи
// остаются в базе, но все ещё ожидающие отменяются с меткой времени,
// чтобы не зависнуть в несуществующей очереди.
func SetStatus(queueID uint, status string) error {
	unlock := lockQueue(queueID)
	defer unlock()

	var cancelled int64
	err := storage.DB.Transaction(func(tx *gorm.DB) error {
		var q models.Queue
		if err := tx.First(&q, queueID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrQueueNotFound
			}
			return err
		}

		if err := tx.Model(&models.Queue{}).
			Where("id = ?", queueID).
			Update("status", status).Error; err != nil {
			return err
		}

		if status == models.QueueStatusClosed {
			res := tx.Model(&models.QueueEntry{}).
				Where("queue_id = ? AND status = ?", queueID, models.EntryStatusWaiting).
				Updates(map[string]interface{}{
					"status":     models.EntryStatusCancelled,
					"removed_at": time.Now(),
				})
			if res.Error != nil {
				return res.Error
			}
			cancelled = res.RowsAffected
		}
		return nil
	})
	if err != nil {
		return err
	}

	invalidateSnapshot(queueID)
	event := "queue_status_changed"
	if status == models.QueueStatusClosed {
		event = "queue_closed"
	}
	notify(queueID, event, map[string]interface{}{
		"status":            status,
		"cancelled_waiting": cancelled,
	})
	return nil
}
