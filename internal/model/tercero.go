package model

import "time"

// Cliente is the party an order is issued for.
type Cliente struct {
	ID              uint   `gorm:"primaryKey"`
	Nombre          string `gorm:"column:name;not null;index"`
	TipoDocumento   string `gorm:"column:document_type;type:varchar(20);not null"`
	NumeroDocumento string `gorm:"column:document_number;type:varchar(40);not null"`
	CreatedAt       time.Time
}

func (Cliente) TableName() string { return "clients" }

// Proveedor supplies the articles of an order line.
type Proveedor struct {
	ID              uint   `gorm:"primaryKey"`
	Nombre          string `gorm:"column:name;not null;index"`
	TipoDocumento   string `gorm:"column:document_type;type:varchar(20);not null"`
	NumeroDocumento string `gorm:"column:document_number;type:varchar(40);not null"`
	CreatedAt       time.Time
}

func (Proveedor) TableName() string { return "providers" }
