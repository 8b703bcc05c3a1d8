package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Статусы очереди.
const (
	QueueStatusActive      = "active"
	QueueStatusPaused      = "paused"
	QueueStatusClosed      = "closed"
	QueueStatusMaintenance = "maintenance"
)

// Типы очередей (вид приёма).
const (
	QueueTypeGeneral      = "general"
	QueueTypeUrgent       = "urgent"
	QueueTypeFollowUp     = "follow_up"
	QueueTypeConsultation = "consultation"
	QueueTypeProcedure    = "procedure"
	QueueTypeEmergency    = "emergency"
)

type Queue struct {
	gorm.Model
	ClinicID    uint              `gorm:"index;not null"`                // Ссылка на клинику
	Name        string            `gorm:"not null"`                      // Название очереди (например, "Терапевт, кабинет 12")
	Type        string            `gorm:"not null;default:general"`
	Status      string            `gorm:"index;not null;default:active"`
	MaxCapacity int               `gorm:"not null"`                      // Максимум активных записей (waiting + called)
	MinPriority int               `gorm:"not null;default:1"`
	MaxPriority int               `gorm:"not null;default:5"`
	AutoAssign  bool              `gorm:"default:false"`                 // Автоматическая выдача пациента свободному кабинету
	Config      datatypes.JSONMap // Произвольные настройки очереди
	ClosesAt    *time.Time        `gorm:"index"`                         // Время автозакрытия очереди (nil — бессрочная)
}

// DefaultPriority возвращает середину диапазона приоритетов очереди.
// Используется, когда регистратор не указал приоритет явно.
func (q *Queue) DefaultPriority() int {
	return (q.MinPriority + q.MaxPriority) / 2
}

// PriorityInRange проверяет, что приоритет попадает в диапазон очереди.
func (q *Queue) PriorityInRange(p int) bool {
	return p >= q.MinPriority && p <= q.MaxPriority
}
