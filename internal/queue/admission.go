package queue

import (
	"errors"
	"time"

	"clinic_queue/internal/models"
	"clinic_queue/internal/storage"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Join записывает пациента в очередь и возвращает созданную запись вместе
// с первоначальной оценкой ожидания. priority <= 0 означает "не указан":
// берётся середина диапазона очереди.
func Join(queueID, patientID uint, priority int, metadata map[string]interface{}) (*models.QueueEntry, time.Duration, error) {
	unlock := lockQueue(queueID)
	defer unlock()

	var entry models.QueueEntry
	err := storage.DB.Transaction(func(tx *gorm.DB) error {
		var q models.Queue
		if err := tx.First(&q, queueID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrQueueNotFound
			}
			return err
		}
		if q.Status != models.QueueStatusActive {
			return ErrQueueNotActive
		}

		if priority <= 0 {
			priority = q.DefaultPriority()
		}
		if !q.PriorityInRange(priority) {
			return ErrPriorityOutOfRange
		}

		// Пациент может занимать не более одной активной записи в очереди.
		var dup int64
		if err := tx.Model(&models.QueueEntry{}).
			Where("queue_id = ? AND patient_id = ? AND status IN ?",
				queueID, patientID,
				[]string{models.EntryStatusWaiting, models.EntryStatusCalled}).
			Count(&dup).Error; err != nil {
			return err
		}
		if dup > 0 {
			return ErrDuplicateAdmission
		}

		// Лимит считается по waiting + called.
		var active int64
		if err := tx.Model(&models.QueueEntry{}).
			Where("queue_id = ? AND status IN ?", queueID,
				[]string{models.EntryStatusWaiting, models.EntryStatusCalled}).
			Count(&active).Error; err != nil {
			return err
		}
		if int(active) >= q.MaxCapacity {
			return ErrCapacityExceeded
		}

		now := time.Now()
		entry = models.QueueEntry{
			TicketCode: uuid.NewString(),
			QueueID:    queueID,
			PatientID:  patientID,
			Status:     models.EntryStatusWaiting,
			Priority:   priority,
			JoinedAt:   now,
			OrderKey:   now,
			Metadata:   datatypes.JSONMap(metadata),
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		if err := recomputeTx(tx, queueID); err != nil {
			return err
		}
		return tx.First(&entry, entry.ID).Error
	})
	if err != nil {
		return nil, 0, err
	}

	estimate := Estimate(queueID, entry.Position, entry.Priority)

	invalidateSnapshot(queueID)
	notify(queueID, "patient_joined", map[string]interface{}{
		"entry_id":               entry.ID,
		"ticket_code":            entry.TicketCode,
		"patient_id":             entry.PatientID,
		"priority":               entry.Priority,
		"position":               entry.Position,
		"estimated_wait_seconds": int(estimate.Seconds()),
	})
	return &entry, estimate, nil
}
