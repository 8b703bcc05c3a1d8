package queue

import (
	"errors"

	"clinic_queue/internal/models"
	"clinic_queue/internal/storage"

	"gorm.io/gorm"
)

// Направления ручного перемещения записи.
const (
	MoveUp   = "up"
	MoveDown = "down"
)

// waitingOrder — каноничный порядок ожидающих: приоритет по убыванию,
// затем ключ сортировки (время записи), затем id как детерминированный
// разрыв ничьей.
const waitingOrder = "priority DESC, order_key ASC, id ASC"

func waitingEntriesTx(tx *gorm.DB, queueID uint) ([]models.QueueEntry, error) {
	var entries []models.QueueEntry
	err := tx.
		Where("queue_id = ? AND status = ?", queueID, models.EntryStatusWaiting).
		Order(waitingOrder).
		Find(&entries).Error
	return entries, err
}

// recomputeTx пересортировывает ожидающих и раздаёт плотные позиции 1..N.
// Вызывается внутри транзакции каждой мутации состава очереди, поэтому
// позиции никогда не видны снаружи с дырами или дублями.
func recomputeTx(tx *gorm.DB, queueID uint) error {
	entries, err := waitingEntriesTx(tx, queueID)
	if err != nil {
		return err
	}
	for i := range entries {
		want := i + 1
		if entries[i].Position == want {
			continue
		}
		if err := tx.Model(&models.QueueEntry{}).
			Where("id = ?", entries[i].ID).
			Update("position", want).Error; err != nil {
			return err
		}
	}
	return nil
}

// Recompute выполняет пересчёт позиций как самостоятельную операцию
// (используется ночной проверкой целостности).
func Recompute(queueID uint) error {
	unlock := lockQueue(queueID)
	defer unlock()

	return storage.DB.Transaction(func(tx *gorm.DB) error {
		return recomputeTx(tx, queueID)
	})
}

// MoveManual сдвигает запись на одну позицию вверх или вниз по решению
// регистратора. Перемещение допускается только внутри блока записей
// одинакового приоритета: обогнать более приоритетного пациента или
// опуститься ниже своего блока нельзя — такой запрос считается no-op.
func MoveManual(entryID uint, direction string) (*models.QueueEntry, error) {
	var probe models.QueueEntry
	if err := storage.DB.First(&probe, entryID).Error; err != nil {
		return nil, ErrEntryNotFound
	}

	unlock := lockQueue(probe.QueueID)
	defer unlock()

	var entry models.QueueEntry
	err := storage.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("id = ? AND status = ?", entryID, models.EntryStatusWaiting).
			First(&entry).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEntryNotFound
			}
			return err
		}

		entries, err := waitingEntriesTx(tx, entry.QueueID)
		if err != nil {
			return err
		}

		idx := -1
		for i := range entries {
			if entries[i].ID == entry.ID {
				idx = i
				break
			}
		}
		if idx == -1 {
			return ErrEntryNotFound
		}

		var other int
		switch direction {
		case MoveUp:
			other = idx - 1
		case MoveDown:
			other = idx + 1
		default:
			return ErrInvalidTransition
		}
		if other < 0 || other >= len(entries) {
			return nil // край очереди — no-op
		}
		if entries[other].Priority != entry.Priority {
			return nil // сосед другого приоритета — no-op
		}

		// Меняем местами ключи сортировки: порядок переживает любой
		// последующий Recompute, а joined_at остаётся честным временем записи.
		a, b := entries[idx], entries[other]
		if err := tx.Model(&models.QueueEntry{}).Where("id = ?", a.ID).
			Update("order_key", b.OrderKey).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.QueueEntry{}).Where("id = ?", b.ID).
			Update("order_key", a.OrderKey).Error; err != nil {
			return err
		}

		if err := recomputeTx(tx, entry.QueueID); err != nil {
			return err
		}
		return tx.First(&entry, entry.ID).Error
	})
	if err != nil {
		return nil, err
	}

	invalidateSnapshot(entry.QueueID)
	notify(entry.QueueID, "patient_moved", map[string]interface{}{
		"entry_id":    entry.ID,
		"ticket_code": entry.TicketCode,
		"position":    entry.Position,
	})
	return &entry, nil
}
