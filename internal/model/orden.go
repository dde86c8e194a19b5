package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados de una orden de compra.
const (
	EstadoPendienteFactura = "pending_invoice"
	EstadoFacturada        = "invoiced"
	EstadoSeguimiento      = "follow_up"
)

// EstadosValidos lists every status an order may hold.
var EstadosValidos = []string{EstadoPendienteFactura, EstadoFacturada, EstadoSeguimiento}

// EstadoValido reports whether s is one of EstadosValidos.
func EstadoValido(s string) bool {
	for _, e := range EstadosValidos {
		if e == s {
			return true
		}
	}
	return false
}

// Orden is the order header. ProveedorID, Detalle, PrecioUnitario and Cantidad
// are copied from the first line item; Subtotal/IVA/Total are the sums over
// all of its items.
type Orden struct {
	ID               uint            `gorm:"primaryKey"`
	Consecutivo      string          `gorm:"column:order_consecutive;type:varchar(20);uniqueIndex;not null"`
	NumeroOrden      string          `gorm:"column:order_number;type:varchar(40);uniqueIndex;not null"`
	TipoDocumento    string          `gorm:"column:document_type;type:varchar(20);not null"`
	ClienteID        uint            `gorm:"column:client_id;index;not null"`
	ProveedorID      uint            `gorm:"column:provider_id;index"`
	Detalle          string          `gorm:"column:details;type:text"`
	PrecioUnitario   decimal.Decimal `gorm:"column:unit_price;type:decimal(14,2);not null;default:0"`
	Cantidad         int             `gorm:"column:quantity;not null;default:0"`
	Subtotal         decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0"`
	IVA              decimal.Decimal `gorm:"column:iva;type:decimal(14,2);not null;default:0"`
	Total            decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0"`
	FacturaProveedor string          `gorm:"column:provider_invoice;type:varchar(60)"`
	FechaVencimiento *time.Time      `gorm:"column:due_date;type:date"`
	Estado           string          `gorm:"column:status;type:varchar(20);not null;default:'pending_invoice'"`
	CreatedAt        time.Time
	UpdatedAt        time.Time

	Cliente   *Cliente       `gorm:"foreignKey:ClienteID"`
	Proveedor *Proveedor     `gorm:"foreignKey:ProveedorID"`
	Items     []OrdenItem    `gorm:"foreignKey:OrdenID"`
	Archivos  []OrdenArchivo `gorm:"foreignKey:OrdenID"`
}

func (Orden) TableName() string { return "orders" }

// OrdenItem is one priced line of an order. Items are owned by their order and
// are replaced as a whole set on update.
type OrdenItem struct {
	ID               uint            `gorm:"primaryKey"`
	OrdenID          uint            `gorm:"column:order_id;index;not null"`
	ProveedorID      uint            `gorm:"column:provider_id;index"`
	Detalle          string          `gorm:"column:details;type:text"`
	Cantidad         int             `gorm:"column:quantity;not null"`
	PrecioUnitario   decimal.Decimal `gorm:"column:unit_price;type:decimal(14,2);not null"`
	Subtotal         decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	IVA              decimal.Decimal `gorm:"column:iva;type:decimal(14,2);not null;default:0"`
	Total            decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	FacturaProveedor string          `gorm:"column:provider_invoice;type:varchar(60)"`

	Proveedor *Proveedor `gorm:"foreignKey:ProveedorID"`
}

func (OrdenItem) TableName() string { return "order_items" }
