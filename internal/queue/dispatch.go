package queue

import (
	"errors"
	"time"

	"clinic_queue/internal/models"
	"clinic_queue/internal/storage"

	"gorm.io/gorm"
)

// CallNext вызывает первого ожидающего пациента очереди к указанной точке
// обслуживания (врач/кабинет). Победитель гонки за первую позицию
// определяется условным UPDATE по status = waiting: проигравшая сторона
// получает конфликт и повторяет попытку против нового первого в очереди,
// не более maxCallRetries раз.
//
// Пустая очередь — нормальный результат (ErrQueueEmpty), а не сбой.
// Пауза очереди останавливает только запись: вызов продолжает разбирать
// накопившихся ожидающих.
func CallNext(queueID uint, servicePoint string) (*models.QueueEntry, error) {
	unlock := lockQueue(queueID)
	defer unlock()

	var lastErr error
	for attempt := 0; attempt < maxCallRetries; attempt++ {
		var called models.QueueEntry
		err := storage.DB.Transaction(func(tx *gorm.DB) error {
			var q models.Queue
			if err := tx.First(&q, queueID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrQueueNotFound
				}
				return err
			}
			if q.Status == models.QueueStatusClosed || q.Status == models.QueueStatusMaintenance {
				return ErrQueueNotActive
			}

			var next models.QueueEntry
			if err := tx.
				Where("queue_id = ? AND status = ?", queueID, models.EntryStatusWaiting).
				Order("position ASC").
				First(&next).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrQueueEmpty
				}
				return err
			}

			now := time.Now()
			res := tx.Model(&models.QueueEntry{}).
				Where("id = ? AND status = ?", next.ID, models.EntryStatusWaiting).
				Updates(map[string]interface{}{
					"status":        models.EntryStatusCalled,
					"called_at":     now,
					"service_point": servicePoint,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				// Запись увели из-под нас — повторим против нового первого.
				return ErrConcurrentConflict
			}

			if err := recomputeTx(tx, queueID); err != nil {
				return err
			}
			return tx.Preload("Patient").First(&called, next.ID).Error
		})
		if errors.Is(err, ErrConcurrentConflict) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, err
		}

		invalidateSnapshot(queueID)
		notify(queueID, "patient_called", map[string]interface{}{
			"entry_id":      called.ID,
			"ticket_code":   called.TicketCode,
			"patient_id":    called.PatientID,
			"service_point": called.ServicePoint,
		})
		return &called, nil
	}
	return nil, lastErr
}

// Complete завершает приём вызванного пациента: запись переходит в served,
// а реализованные длительности ожидания и приёма попадают в статистику
// очереди внутри той же транзакции.
func Complete(entryID uint) (*models.QueueEntry, error) {
	var probe models.QueueEntry
	if err := storage.DB.First(&probe, entryID).Error; err != nil {
		return nil, ErrEntryNotFound
	}

	unlock := lockQueue(probe.QueueID)
	defer unlock()

	var entry models.QueueEntry
	err := storage.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&entry, entryID).Error; err != nil {
			return ErrEntryNotFound
		}
		if entry.Status != models.EntryStatusCalled || entry.CalledAt == nil {
			return ErrInvalidTransition
		}

		now := time.Now()
		if err := tx.Model(&models.QueueEntry{}).
			Where("id = ?", entry.ID).
			Updates(map[string]interface{}{
				"status":    models.EntryStatusServed,
				"served_at": now,
			}).Error; err != nil {
			return err
		}

		wait := now.Sub(entry.JoinedAt)
		service := now.Sub(*entry.CalledAt)
		if err := recordCompletionTx(tx, entry.QueueID, entry.Priority, wait, service); err != nil {
			return err
		}
		return tx.First(&entry, entry.ID).Error
	})
	if err != nil {
		return nil, err
	}

	invalidateSnapshot(entry.QueueID)
	notify(entry.QueueID, "patient_served", map[string]interface{}{
		"entry_id":      entry.ID,
		"ticket_code":   entry.TicketCode,
		"patient_id":    entry.PatientID,
		"service_point": entry.ServicePoint,
	})
	return &entry, nil
}

// Remove снимает запись с очереди решением персонала.
func Remove(entryID uint) (*models.QueueEntry, error) {
	return terminate(entryID, models.EntryStatusRemoved)
}

// Cancel снимает запись по инициативе пациента.
func Cancel(entryID uint) (*models.QueueEntry, error) {
	return terminate(entryID, models.EntryStatusCancelled)
}

// terminate переводит запись из waiting/called в removed/cancelled.
// Если запись ожидала, её позиция освобождается пересчётом в той же транзакции.
func terminate(entryID uint, status string) (*models.QueueEntry, error) {
	var probe models.QueueEntry
	if err := storage.DB.First(&probe, entryID).Error; err != nil {
		return nil, ErrEntryNotFound
	}

	unlock := lockQueue(probe.QueueID)
	defer unlock()

	var entry models.QueueEntry
	err := storage.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&entry, entryID).Error; err != nil {
			return ErrEntryNotFound
		}
		if !entry.Active() {
			return ErrInvalidTransition
		}
		wasWaiting := entry.Status == models.EntryStatusWaiting

		now := time.Now()
		if err := tx.Model(&models.QueueEntry{}).
			Where("id = ?", entry.ID).
			Updates(map[string]interface{}{
				"status":     status,
				"removed_at": now,
			}).Error; err != nil {
			return err
		}

		if wasWaiting {
			if err := recomputeTx(tx, entry.QueueID); err != nil {
				return err
			}
		}
		return tx.First(&entry, entry.ID).Error
	})
	if err != nil {
		return nil, err
	}

	invalidateSnapshot(entry.QueueID)
	notify(entry.QueueID, "patient_removed", map[string]interface{}{
		"entry_id":    entry.ID,
		"ticket_code": entry.TicketCode,
		"patient_id":  entry.PatientID,
		"status":      entry.Status,
	})
	return &entry, nil
}
