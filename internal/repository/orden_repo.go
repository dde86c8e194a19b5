package repository

import (
	"context"
	"time"

	"github.com/deimercs/gestorfacturas/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// consecutivoLockKey identifies the advisory lock that serializes order
// numbering on Postgres.
const consecutivoLockKey = 7_311_001

// OrdenListFilter narrows GET /orders. Zero values disable a filter.
// Hasta is exclusive.
type OrdenListFilter struct {
	Desde  time.Time
	Hasta  time.Time
	Estado string
}

type OrdenRepository interface {
	LockConsecutivo(ctx context.Context, tx *gorm.DB) error
	MaxConsecutivo(ctx context.Context, tx *gorm.DB) (int64, error)
	ExisteNumero(ctx context.Context, tx *gorm.DB, numero string) (bool, error)
	Create(ctx context.Context, tx *gorm.DB, o *model.Orden) error
	UpdateCabecera(ctx context.Context, tx *gorm.DB, o *model.Orden) error
	CreateItems(ctx context.Context, tx *gorm.DB, items []model.OrdenItem) error
	DeleteItems(ctx context.Context, tx *gorm.DB, ordenID uint) error
	CreateArchivo(ctx context.Context, tx *gorm.DB, a *model.OrdenArchivo) error
	UpdateEstado(ctx context.Context, id uint, estado string) error
	Exists(ctx context.Context, id uint) (bool, error)
	FindByID(ctx context.Context, id uint) (*model.Orden, error)
	List(ctx context.Context, filter OrdenListFilter) ([]model.Orden, error)
	FindArchivo(ctx context.Context, id uint) (*model.OrdenArchivo, error)
	ListArchivos(ctx context.Context, ordenID uint) ([]model.OrdenArchivo, error)
	DeleteArchivo(ctx context.Context, id uint) error
	NombresArchivos(ctx context.Context) ([]string, error)
	DB() *gorm.DB // exposes the DB for transaction creation in service layer
}

type ordenRepo struct{ db *gorm.DB }

func NewOrdenRepository(db *gorm.DB) OrdenRepository { return &ordenRepo{db: db} }

func (r *ordenRepo) DB() *gorm.DB { return r.db }

// conn returns tx when inside a transaction, the pool otherwise.
func (r *ordenRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *ordenRepo) LockConsecutivo(ctx context.Context, tx *gorm.DB) error {
	if tx.Dialector.Name() != "postgres" {
		// SQLite serializes writers on its single connection.
		return nil
	}
	return tx.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(?)", consecutivoLockKey).Error
}

func (r *ordenRepo) MaxConsecutivo(ctx context.Context, tx *gorm.DB) (int64, error) {
	// Numeric MAX: "10000" must sort above "9999".
	var max int64
	err := r.conn(tx).WithContext(ctx).
		Raw("SELECT COALESCE(MAX(CAST(order_consecutive AS INTEGER)), 0) FROM orders").
		Scan(&max).Error
	return max, err
}

func (r *ordenRepo) ExisteNumero(ctx context.Context, tx *gorm.DB, numero string) (bool, error) {
	var n int64
	err := r.conn(tx).WithContext(ctx).Model(&model.Orden{}).Where("order_number = ?", numero).Count(&n).Error
	return n > 0, err
}

func (r *ordenRepo) Create(ctx context.Context, tx *gorm.DB, o *model.Orden) error {
	return tx.WithContext(ctx).Omit(clause.Associations).Create(o).Error
}

func (r *ordenRepo) UpdateCabecera(ctx context.Context, tx *gorm.DB, o *model.Orden) error {
	return tx.WithContext(ctx).Model(o).
		Select("document_type", "client_id", "provider_id", "details", "unit_price", "quantity",
			"subtotal", "iva", "total", "provider_invoice", "due_date", "status", "updated_at").
		Omit(clause.Associations).
		Updates(o).Error
}

func (r *ordenRepo) CreateItems(ctx context.Context, tx *gorm.DB, items []model.OrdenItem) error {
	if len(items) == 0 {
		return nil
	}
	return tx.WithContext(ctx).Omit(clause.Associations).Create(&items).Error
}

func (r *ordenRepo) DeleteItems(ctx context.Context, tx *gorm.DB, ordenID uint) error {
	return tx.WithContext(ctx).Where("order_id = ?", ordenID).Delete(&model.OrdenItem{}).Error
}

func (r *ordenRepo) CreateArchivo(ctx context.Context, tx *gorm.DB, a *model.OrdenArchivo) error {
	return tx.WithContext(ctx).Create(a).Error
}

func (r *ordenRepo) UpdateEstado(ctx context.Context, id uint, estado string) error {
	return r.db.WithContext(ctx).Model(&model.Orden{}).Where("id = ?", id).Update("status", estado).Error
}

func (r *ordenRepo) Exists(ctx context.Context, id uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Orden{}).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}

func (r *ordenRepo) FindByID(ctx context.Context, id uint) (*model.Orden, error) {
	var o model.Orden
	err := r.db.WithContext(ctx).
		Preload("Cliente").
		Preload("Proveedor").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Items.Proveedor").
		Preload("Archivos", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&o, id).Error
	return &o, err
}

func (r *ordenRepo) List(ctx context.Context, filter OrdenListFilter) ([]model.Orden, error) {
	var ordenes []model.Orden

	q := r.db.WithContext(ctx).Model(&model.Orden{})
	if !filter.Desde.IsZero() {
		q = q.Where("created_at >= ?", filter.Desde)
	}
	if !filter.Hasta.IsZero() {
		q = q.Where("created_at < ?", filter.Hasta)
	}
	if filter.Estado != "" {
		q = q.Where("status = ?", filter.Estado)
	}

	err := q.Preload("Cliente").
		Preload("Proveedor").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Items.Proveedor").
		Order("created_at DESC").Order("id DESC").
		Find(&ordenes).Error
	return ordenes, err
}

func (r *ordenRepo) FindArchivo(ctx context.Context, id uint) (*model.OrdenArchivo, error) {
	var a model.OrdenArchivo
	err := r.db.WithContext(ctx).First(&a, id).Error
	return &a, err
}

func (r *ordenRepo) ListArchivos(ctx context.Context, ordenID uint) ([]model.OrdenArchivo, error) {
	var archivos []model.OrdenArchivo
	err := r.db.WithContext(ctx).Where("order_id = ?", ordenID).Order("id ASC").Find(&archivos).Error
	return archivos, err
}

func (r *ordenRepo) DeleteArchivo(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&model.OrdenArchivo{}, id).Error
}

func (r *ordenRepo) NombresArchivos(ctx context.Context) ([]string, error) {
	var nombres []string
	err := r.db.WithContext(ctx).Model(&model.OrdenArchivo{}).Pluck("file_name", &nombres).Error
	return nombres, err
}
