package models

import (
	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Name         string `gorm:"not null"`
	Surname      string `gorm:"not null"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"not null;default:registrar"` // Роль сотрудника: registrar, doctor, admin
}

type Clinic struct {
	gorm.Model
	Name    string `gorm:"not null"` // Название клиники
	Address string
	Phone   string
}

type Patient struct {
	gorm.Model
	Name    string `gorm:"not null"`
	Surname string `gorm:"not null"`
	Phone   string `gorm:"index"`
}
