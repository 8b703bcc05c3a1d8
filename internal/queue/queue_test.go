package queue

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"clinic_queue/internal/models"
	"clinic_queue/internal/storage"
	"clinic_queue/internal/ws"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	hubOnce   sync.Once
	dbCounter int64
)

// setupDB поднимает изолированную in-memory базу для теста и запускает
// хаб уведомлений, чтобы broadcast-вызовы движка не блокировались.
func setupDB(t *testing.T) {
	t.Helper()
	hubOnce.Do(func() {
		go ws.HubInstance.Run()
	})

	dsn := fmt.Sprintf("file:queue_engine_%d?mode=memory&cache=shared", atomic.AddInt64(&dbCounter, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "Ошибка открытия тестовой базы")

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Clinic{},
		&models.Patient{},
		&models.Queue{},
		&models.QueueEntry{},
		&models.QueueStat{},
	), "Ошибка миграции тестовой базы")

	storage.DB = db
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})
}

func createQueue(t *testing.T, capacity int) models.Queue {
	t.Helper()
	q := models.Queue{
		ClinicID:    1,
		Name:        "Терапевт, кабинет 12",
		Type:        models.QueueTypeGeneral,
		Status:      models.QueueStatusActive,
		MaxCapacity: capacity,
		MinPriority: 1,
		MaxPriority: 5,
	}
	require.NoError(t, storage.DB.Create(&q).Error, "Ошибка создания тестовой очереди")
	return q
}

func createPatient(t *testing.T, name string) models.Patient {
	t.Helper()
	p := models.Patient{Name: name, Surname: name + "ов"}
	require.NoError(t, storage.DB.Create(&p).Error, "Ошибка создания тестового пациента")
	return p
}

// assertDense проверяет инвариант плотности: позиции ожидающих образуют
// ровно 1..N без дыр и дублей.
func assertDense(t *testing.T, queueID uint) {
	t.Helper()
	var entries []models.QueueEntry
	require.NoError(t, storage.DB.
		Where("queue_id = ? AND status = ?", queueID, models.EntryStatusWaiting).
		Order("position ASC").
		Find(&entries).Error)
	for i, e := range entries {
		assert.Equal(t, i+1, e.Position, "Дыра или дубль в позициях на индексе %d", i)
	}
}

func TestJoinAssignsPositionAndDefaults(t *testing.T) {
	setupDB(t)
	q := createQueue(t, 10)
	p := createPatient(t, "Иван")

	entry, estimate, err := Join(q.ID, p.ID, 0, map[string]interface{}{"note": "повторный визит"})
	require.NoError(t, err)

	assert.Equal(t, models.EntryStatusWaiting, entry.Status)
	assert.Equal(t, 1, entry.Position)
	assert.Equal(t, 3, entry.Priority, "Без явного приоритета берётся середина диапазона")
	assert.NotEmpty(t, entry.TicketCode)
	assert.False(t, entry.JoinedAt.IsZero())
	assert.Equal(t, entry.JoinedAt.Unix(), entry.OrderKey.Unix())
	assert.Nil(t, entry.CalledAt)
	assert.Zero(t, estimate, "Без истории оценка ожидания нулевая")
}

func TestJoinCapacityLimit(t *testing.T) {
	setupDB(t)
	q := createQueue(t, 2)
	a := createPatient(t, "Анна")
	b := createPatient(t, "Борис")
	c := createPatient(t, "Вера")

	ea, _, err := Join(q.ID, a.ID, 3, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, ea.Position)

	eb, _, err := Join(q.ID, b.ID, 3, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, eb.Position)

	_, _, err = Join(q.ID, c.ID, 3, nil)
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	// Вызванный пациент всё ещё занимает место в лимите.
	_, err = CallNext(q.ID, "Кабинет 1")
	require.NoError(t, err)
	_, _, err = Join(q.ID, c.ID, 3, nil)
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	// Завершение приёма освобождает место.
	_, err = Complete(ea.ID)
	require.NoError(t, err)
	_, _, err = Join(q.ID, c.ID, 3, nil)
	assert.NoError(t, err)
}

func TestJoinDuplicateAdmission(t *testing.T) {
	setupDB(t)
	q := createQueue(t, 10)
	p := createPatient(t, "Иван")

	entry, _, err := Join(q.ID, p.ID, 3, nil)
	require.NoError(t, err)

	_, _, err = Join(q.ID, p.ID, 3, nil)
	assert.ErrorIs(t, err, ErrDuplicateAdmission)

	// Вызванная запись всё ещё активна — повторная запись запрещена.
	_, err = CallNext(q.ID, "Кабинет 1")
	require.NoError(t, err)
	_, _, err = Join(q.ID, p.ID, 3, nil)
	assert.ErrorIs(t, err, ErrDuplicateAdmission)

	// После завершения приёма пациент может записаться снова.
	_, err = Complete(entry.ID)
	require.NoError(t, err)
	_, _, err = Join(q.ID, p.ID, 3, nil)
	assert.NoError(t, err)
}

func TestJoinQueueNotActive(t *testing.T) {
	setupDB(t)
	q := createQueue(t, 10)
	p := createPatient(t, "Иван")

	require.NoError(t, storage.DB.Model(&models.Queue{}).
		Where("id = ?", q.ID).
		Update("status", models.QueueStatusPaused).Error)

	_, _, err := Join(q.ID, p.ID, 3, nil)
	assert.ErrorIs(t, err, ErrQueueNotActive)

	_, _, err = Join(9999, p.ID, 3, nil)
	assert.ErrorIs(t, err, ErrQueueNotFound)
}

func TestJoinPriorityOutOfRange(t *testing.T) {
	setupDB(t)
	q := createQueue(t, 10)
	p := createPatient(t, "Иван")

	_, _, err := Join(q.ID, p.ID, 7, nil)
	assert.ErrorIs(t, err, ErrPriorityOutOfRange)
	assertDense(t, q.ID)
}
