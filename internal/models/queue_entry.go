package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Статусы записи в очереди. Переходы только вперёд:
// waiting -> called -> served, либо waiting/called -> removed/cancelled.
const (
	EntryStatusWaiting   = "waiting"
	EntryStatusCalled    = "called"
	EntryStatusServed    = "served"
	EntryStatusRemoved   = "removed"
	EntryStatusCancelled = "cancelled"
)

type QueueEntry struct {
	gorm.Model
	TicketCode   string            `gorm:"uniqueIndex;not null"`           // Публичный код талона (uuid), показывается на табло
	QueueID      uint              `gorm:"index;not null"`
	PatientID    uint              `gorm:"index;not null"`
	Patient      Patient           `gorm:"foreignKey:PatientID"`
	Status       string            `gorm:"index;not null;default:waiting"`
	Priority     int               `gorm:"not null"`
	Position     int               `gorm:"index;not null"`                 // Плотный ранг 1..N среди waiting-записей очереди
	ServicePoint string            // Куда вызван пациент (врач/кабинет), заполняется при вызове
	JoinedAt     time.Time         `gorm:"index;not null"`
	// Ключ сортировки: равен JoinedAt при записи, меняется только ручным
	// перемещением внутри одного приоритета.
	OrderKey     time.Time         `gorm:"index;not null"`
	CalledAt     *time.Time        // Время вызова (status called/served)
	ServedAt     *time.Time        // Время завершения приёма (status served)
	RemovedAt    *time.Time        // Время снятия с очереди (status removed/cancelled)
	Metadata     datatypes.JSONMap
}

// Active означает, что запись занимает место в очереди (учитывается лимитом).
func (e *QueueEntry) Active() bool {
	return e.Status == EntryStatusWaiting || e.Status == EntryStatusCalled
}

// QueueStat хранит скользящие средние по завершённым записям очереди,
// по одной строке на (очередь, приоритет).
type QueueStat struct {
	gorm.Model
	QueueID           uint    `gorm:"uniqueIndex:idx_queue_stat_tier;not null"`
	Priority          int     `gorm:"uniqueIndex:idx_queue_stat_tier;not null"`
	AvgWaitSeconds    float64 `gorm:"not null"`                                 // EMA полного ожидания (served_at - joined_at)
	AvgServiceSeconds float64 `gorm:"not null"`                                 // EMA длительности приёма (served_at - called_at)
	CompletedCount    int64   `gorm:"not null"`
}
