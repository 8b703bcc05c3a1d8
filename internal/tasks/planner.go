package tasks

import (
	"log"
	"time"

	"clinic_queue/internal/models"
	"clinic_queue/internal/queue"
	"clinic_queue/internal/storage"

	"github.com/robfig/cron/v3"
)

// CloseExpiredQueues ищет очереди, у которых прошло время закрытия,
// и мягко закрывает их: статус closed, ожидающие записи отменяются,
// подписчики получают queue_closed.
func CloseExpiredQueues() {
	now := time.Now()

	var queues []models.Queue
	if err := storage.DB.
		Where("closes_at IS NOT NULL AND closes_at < ? AND status IN ?", now,
			[]string{models.QueueStatusActive, models.QueueStatusPaused}).
		Find(&queues).Error; err != nil {
		log.Println("Ошибка при поиске очередей для закрытия:", err)
		return
	}

	for _, q := range queues {
		if err := queue.SetStatus(q.ID, models.QueueStatusClosed); err != nil {
			log.Println("Ошибка закрытия очереди", q.Name, ":", err)
		} else {
			log.Printf("Очередь '%s' закрыта по расписанию.\n", q.Name)
		}
	}
}

// RecomputeActiveQueues — ночная проверка целостности позиций.
// Пересчёт идемпотентен, поэтому на здоровых очередях это no-op.
func RecomputeActiveQueues() {
	var queues []models.Queue
	if err := storage.DB.
		Where("status IN ?", []string{models.QueueStatusActive, models.QueueStatusPaused}).
		Find(&queues).Error; err != nil {
		log.Println("Ошибка при поиске очередей для пересчёта:", err)
		return
	}

	for _, q := range queues {
		if err := queue.Recompute(q.ID); err != nil {
			log.Println("Ошибка пересчёта позиций очереди", q.Name, ":", err)
		}
	}
	log.Printf("Проверка целостности позиций завершена, очередей: %d\n", len(queues))
}

// InitScheduler инициализирует планировщик cron-задач.
func InitScheduler() *cron.Cron {
	c := cron.New(cron.WithSeconds())

	// Закрытие просроченных очередей каждую минуту.
	_, err := c.AddFunc("0 * * * * *", CloseExpiredQueues)
	if err != nil {
		log.Println("Ошибка запуска cron-задачи CloseExpiredQueues:", err)
	}

	// Ночная проверка целостности позиций в 03:00.
	_, err = c.AddFunc("0 0 3 * * *", RecomputeActiveQueues)
	if err != nil {
		log.Println("Ошибка запуска cron-задачи RecomputeActiveQueues:", err)
	}

	c.Start()
	log.Println("Cron-планировщик запущен.")
	return c
}
