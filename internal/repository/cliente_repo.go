package repository

import (
	"context"
	"strings"

	"github.com/deimercs/gestorfacturas/internal/model"

	"gorm.io/gorm"
)

type ClienteRepository interface {
	Create(ctx context.Context, c *model.Cliente) error
	FindByID(ctx context.Context, id uint) (*model.Cliente, error)
	List(ctx context.Context) ([]model.Cliente, error)
	Search(ctx context.Context, query string, limit int) ([]model.Cliente, error)
}

type clienteRepo struct{ db *gorm.DB }

func NewClienteRepository(db *gorm.DB) ClienteRepository { return &clienteRepo{db: db} }

func (r *clienteRepo) Create(ctx context.Context, c *model.Cliente) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *clienteRepo) FindByID(ctx context.Context, id uint) (*model.Cliente, error) {
	var c model.Cliente
	err := r.db.WithContext(ctx).First(&c, id).Error
	return &c, err
}

func (r *clienteRepo) List(ctx context.Context) ([]model.Cliente, error) {
	var clientes []model.Cliente
	err := r.db.WithContext(ctx).Order("name ASC").Find(&clientes).Error
	return clientes, err
}

func (r *clienteRepo) Search(ctx context.Context, query string, limit int) ([]model.Cliente, error) {
	var clientes []model.Cliente
	err := whereTercero(r.db.WithContext(ctx), query).Order("name ASC").Limit(limit).Find(&clientes).Error
	return clientes, err
}

// likeEscaper neutralizes LIKE wildcards typed by the user. '!' is the escape
// character on both Postgres and SQLite.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// whereTercero matches a case-insensitive substring on name, document number
// or document type.
func whereTercero(db *gorm.DB, query string) *gorm.DB {
	like := "%" + likeEscaper.Replace(strings.ToLower(query)) + "%"
	return db.Where("LOWER(name) LIKE ? ESCAPE '!' OR LOWER(document_number) LIKE ? ESCAPE '!' OR LOWER(document_type) LIKE ? ESCAPE '!'",
		like, like, like)
}
