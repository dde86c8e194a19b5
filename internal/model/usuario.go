package model

import "time"

// Usuario is an operator allowed to log in. PasswordHash is a bcrypt hash;
// plaintext passwords are never stored.
type Usuario struct {
	ID           uint   `gorm:"primaryKey"`
	Nombre       string `gorm:"column:name;not null"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Activo       bool   `gorm:"column:active;not null;default:true"`
	CreatedAt    time.Time
}

func (Usuario) TableName() string { return "users" }
