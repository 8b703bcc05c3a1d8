package queue

import (
	"testing"
	"time"

	"clinic_queue/internal/models"
	"clinic_queue/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedStat(t *testing.T, queueID uint, priority int, wait, service float64, count int64) {
	t.Helper()
	require.NoError(t, storage.DB.Create(&models.QueueStat{
		QueueID:           queueID,
		Priority:          priority,
		AvgWaitSeconds:    wait,
		AvgServiceSeconds: service,
		CompletedCount:    count,
	}).Error)
}

func TestEstimateWithoutHistory(t *testing.T) {
	setupDB(t)
	q := createQueue(t, 10)

	assert.Zero(t, Estimate(q.ID, 1, 3))
	assert.Zero(t, Estimate(q.ID, 5, 3), "Без истории оценка нулевая, не отрицательная")
	assert.Zero(t, AverageWait(q.ID))
}

func TestEstimateLinearModel(t *testing.T) {
	setupDB(t)
	q := createQueue(t, 10)
	seedStat(t, q.ID, 3, 600, 120, 5)

	// (позиция - 1) x среднее время приёма яруса.
	assert.Equal(t, time.Duration(0), Estimate(q.ID, 1, 3))
	assert.Equal(t, 120*time.Second, Estimate(q.ID, 2, 3))
	assert.Equal(t, 480*time.Second, Estimate(q.ID, 5, 3))
}

func TestEstimateFallsBackToQueueAverage(t *testing.T) {
	setupDB(t)
	q := createQueue(t, 10)
	seedStat(t, q.ID, 3, 600, 100, 3)
	seedStat(t, q.ID, 4, 300, 200, 1)

	// Для яруса без истории берётся средневзвешенное по очереди:
	// (100*3 + 200*1) / 4 = 125 секунд на пациента.
	assert.Equal(t, 250*time.Second, Estimate(q.ID, 3, 5))
}

func TestAverageWaitWeighted(t *testing.T) {
	setupDB(t)
	q := createQueue(t, 10)
	seedStat(t, q.ID, 3, 600, 100, 3)
	seedStat(t, q.ID, 5, 200, 50, 1)

	// (600*3 + 200*1) / 4 = 500 секунд.
	assert.Equal(t, 500*time.Second, AverageWait(q.ID))
}

func TestRecordCompletionEMA(t *testing.T) {
	setupDB(t)
	q := createQueue(t, 10)

	// Первое наблюдение становится начальным средним.
	err := storage.DB.Transaction(func(tx *gorm.DB) error {
		return recordCompletionTx(tx, q.ID, 3, 100*time.Second, 50*time.Second)
	})
	require.NoError(t, err)

	var stat models.QueueStat
	require.NoError(t, storage.DB.
		Where("queue_id = ? AND priority = ?", q.ID, 3).
		First(&stat).Error)
	assert.InDelta(t, 100, stat.AvgWaitSeconds, 0.001)
	assert.InDelta(t, 50, stat.AvgServiceSeconds, 0.001)
	assert.Equal(t, int64(1), stat.CompletedCount)

	// Дальше экспоненциальное сглаживание с alpha = 0.2.
	err = storage.DB.Transaction(func(tx *gorm.DB) error {
		return recordCompletionTx(tx, q.ID, 3, 200*time.Second, 150*time.Second)
	})
	require.NoError(t, err)

	require.NoError(t, storage.DB.
		Where("queue_id = ? AND priority = ?", q.ID, 3).
		First(&stat).Error)
	assert.InDelta(t, 0.2*200+0.8*100, stat.AvgWaitSeconds, 0.001)
	assert.InDelta(t, 0.2*150+0.8*50, stat.AvgServiceSeconds, 0.001)
	assert.Equal(t, int64(2), stat.CompletedCount)
}

func TestCompleteFeedsEstimator(t *testing.T) {
	setupDB(t)
	q := createQueue(t, 10)
	p := createPatient(t, "Иван")

	_, _, err := Join(q.ID, p.ID, 3, nil)
	require.NoError(t, err)
	called, err := CallNext(q.ID, "Кабинет 1")
	require.NoError(t, err)
	_, err = Complete(called.ID)
	require.NoError(t, err)

	var stat models.QueueStat
	require.NoError(t, storage.DB.
		Where("queue_id = ? AND priority = ?", q.ID, 3).
		First(&stat).Error)
	assert.Equal(t, int64(1), stat.CompletedCount)
	assert.GreaterOrEqual(t, stat.AvgWaitSeconds, stat.AvgServiceSeconds,
		"Полное ожидание включает время до вызова")
}
