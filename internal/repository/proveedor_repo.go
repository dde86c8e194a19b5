package repository

import (
	"context"

	"github.com/deimercs/gestorfacturas/internal/model"

	"gorm.io/gorm"
)

type ProveedorRepository interface {
	Create(ctx context.Context, p *model.Proveedor) error
	FindByID(ctx context.Context, id uint) (*model.Proveedor, error)
	// Missing returns the ids of ids that have no provider row.
	Missing(ctx context.Context, ids []uint) ([]uint, error)
	List(ctx context.Context) ([]model.Proveedor, error)
	Search(ctx context.Context, query string, limit int) ([]model.Proveedor, error)
}

type proveedorRepo struct{ db *gorm.DB }

func NewProveedorRepository(db *gorm.DB) ProveedorRepository { return &proveedorRepo{db: db} }

func (r *proveedorRepo) Create(ctx context.Context, p *model.Proveedor) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *proveedorRepo) FindByID(ctx context.Context, id uint) (*model.Proveedor, error) {
	var p model.Proveedor
	err := r.db.WithContext(ctx).First(&p, id).Error
	return &p, err
}

func (r *proveedorRepo) Missing(ctx context.Context, ids []uint) ([]uint, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var found []uint
	if err := r.db.WithContext(ctx).Model(&model.Proveedor{}).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
		return nil, err
	}
	existe := make(map[uint]bool, len(found))
	for _, id := range found {
		existe[id] = true
	}
	var missing []uint
	for _, id := range ids {
		if !existe[id] {
			missing = append(missing, id)
			existe[id] = true // report each id once
		}
	}
	return missing, nil
}

func (r *proveedorRepo) List(ctx context.Context) ([]model.Proveedor, error) {
	var proveedores []model.Proveedor
	err := r.db.WithContext(ctx).Order("name ASC").Find(&proveedores).Error
	return proveedores, err
}

func (r *proveedorRepo) Search(ctx context.Context, query string, limit int) ([]model.Proveedor, error) {
	var proveedores []model.Proveedor
	err := whereTercero(r.db.WithContext(ctx), query).Order("name ASC").Limit(limit).Find(&proveedores).Error
	return proveedores, err
}
