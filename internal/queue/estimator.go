package queue

import (
	"errors"
	"os"
	"strconv"
	"time"

	"clinic_queue/internal/models"
	"clinic_queue/internal/storage"

	"gorm.io/gorm"
)

// Коэффициент сглаживания EMA. Чем больше, тем быстрее оценка
// реагирует на свежие приёмы.
const defaultEMAAlpha = 0.2

func emaAlpha() float64 {
	if v := os.Getenv("WAIT_EMA_ALPHA"); v != "" {
		if a, err := strconv.ParseFloat(v, 64); err == nil && a > 0 && a <= 1 {
			return a
		}
	}
	return defaultEMAAlpha
}

// recordCompletionTx вносит реализованные длительности завершённого приёма
// в статистику (очередь, приоритет). Первое наблюдение становится начальным
// значением среднего, дальше — экспоненциальное сглаживание.
func recordCompletionTx(tx *gorm.DB, queueID uint, priority int, wait, service time.Duration) error {
	var stat models.QueueStat
	err := tx.Where("queue_id = ? AND priority = ?", queueID, priority).First(&stat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		stat = models.QueueStat{
			QueueID:           queueID,
			Priority:          priority,
			AvgWaitSeconds:    wait.Seconds(),
			AvgServiceSeconds: service.Seconds(),
			CompletedCount:    1,
		}
		return tx.Create(&stat).Error
	}
	if err != nil {
		return err
	}

	alpha := emaAlpha()
	stat.AvgWaitSeconds = alpha*wait.Seconds() + (1-alpha)*stat.AvgWaitSeconds
	stat.AvgServiceSeconds = alpha*service.Seconds() + (1-alpha)*stat.AvgServiceSeconds
	stat.CompletedCount++
	return tx.Save(&stat).Error
}

// Estimate оценивает ожидание для кандидата на указанной позиции:
// (позиция - 1) x среднее время приёма в его ярусе приоритета.
// Модель нарочно линейная — регистратору нужна объяснимая цифра.
// Без истории по ярусу берётся среднее по всей очереди, совсем без
// истории оценка равна нулю.
func Estimate(queueID uint, position, priority int) time.Duration {
	if position <= 1 {
		return 0
	}

	perEntry := avgServiceSeconds(queueID, priority)
	est := time.Duration(float64(position-1) * perEntry * float64(time.Second))
	if est < 0 {
		return 0
	}
	return est
}

func avgServiceSeconds(queueID uint, priority int) float64 {
	var stat models.QueueStat
	err := storage.DB.Where("queue_id = ? AND priority = ?", queueID, priority).First(&stat).Error
	if err == nil && stat.CompletedCount > 0 {
		return stat.AvgServiceSeconds
	}

	// Ярус без истории: средневзвешенное по всем ярусам очереди.
	var stats []models.QueueStat
	if err := storage.DB.Where("queue_id = ?", queueID).Find(&stats).Error; err != nil {
		return 0
	}
	var sum float64
	var n int64
	for _, s := range stats {
		sum += s.AvgServiceSeconds * float64(s.CompletedCount)
		n += s.CompletedCount
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// AverageWait — историческое среднее полного ожидания по очереди,
// взвешенное числом завершённых приёмов в каждом ярусе.
func AverageWait(queueID uint) time.Duration {
	var stats []models.QueueStat
	if err := storage.DB.Where("queue_id = ?", queueID).Find(&stats).Error; err != nil {
		return 0
	}
	var sum float64
	var n int64
	for _, s := range stats {
		sum += s.AvgWaitSeconds * float64(s.CompletedCount)
		n += s.CompletedCount
	}
	if n == 0 {
		return 0
	}
	return time.Duration(sum / float64(n) * float64(time.Second))
}
