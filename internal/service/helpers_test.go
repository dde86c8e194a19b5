package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/deimercs/gestorfacturas/internal/dto"
	"github.com/deimercs/gestorfacturas/internal/infra"
	"github.com/deimercs/gestorfacturas/internal/model"
	"github.com/deimercs/gestorfacturas/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// ── Fixture ───────────────────────────────────────────────────────────────────

type fixture struct {
	db          *gorm.DB
	ordenes     repository.OrdenRepository
	clientes    repository.ClienteRepository
	proveedores repository.ProveedorRepository
	uploads     *infra.UploadStore
	cliente     model.Cliente
	provA       model.Proveedor
	provB       model.Proveedor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := infra.NewDatabase(infra.DriverSQLite, fmt.Sprintf("file:%s?mode=memory&cache=shared", name), false)
	require.NoError(t, err)
	require.NoError(t, infra.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	uploads, err := infra.NewUploadStore(t.TempDir())
	require.NoError(t, err)

	f := &fixture{
		db:          db,
		ordenes:     repository.NewOrdenRepository(db),
		clientes:    repository.NewClienteRepository(db),
		proveedores: repository.NewProveedorRepository(db),
		uploads:     uploads,
		cliente:     model.Cliente{Nombre: "Constructora Andina", TipoDocumento: "NIT", NumeroDocumento: "900123456"},
		provA:       model.Proveedor{Nombre: "Ferreteria Central", TipoDocumento: "NIT", NumeroDocumento: "800111"},
		provB:       model.Proveedor{Nombre: "Aceros del Norte", TipoDocumento: "NIT", NumeroDocumento: "800222"},
	}
	require.NoError(t, db.Create(&f.cliente).Error)
	require.NoError(t, db.Create(&f.provA).Error)
	require.NoError(t, db.Create(&f.provB).Error)
	return f
}

func (f *fixture) ordenService(repo repository.OrdenRepository) OrdenService {
	if repo == nil {
		repo = f.ordenes
	}
	return NewOrdenService(repo, f.clientes, f.proveedores, f.uploads, f.uploads, nil, nil,
		OrdenServiceConfig{MaxUploadBytes: 5 << 20, Empresa: "Gestor de Ordenes"})
}

func (f *fixture) count(t *testing.T, m any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(m).Count(&n).Error)
	return n
}

func (f *fixture) uploadCount(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir(f.uploads.Dir())
	require.NoError(t, err)
	return len(entries)
}

func articulo(provID uint, desc, subtotal, iva, total string) dto.ArticuloRequest {
	return dto.ArticuloRequest{
		ProveedorID:    dto.FlexInt(provID),
		Descripcion:    desc,
		Cantidad:       1,
		PrecioUnitario: decimal.RequireFromString(subtotal),
		Subtotal:       decimal.RequireFromString(subtotal),
		IVA:            decimal.RequireFromString(iva),
		Total:          decimal.RequireFromString(total),
	}
}

func (f *fixture) ordenRequest(arts ...dto.ArticuloRequest) dto.OrdenRequest {
	return dto.OrdenRequest{
		TipoDocumento:    "OC",
		ClienteID:        dto.FlexInt(f.cliente.ID),
		FacturaProveedor: "FV-100",
		FechaVencimiento: "2024-12-31",
		Articulos:        arts,
	}
}

func pdfSubido(nombre, contenido string) dto.ArchivoSubido {
	return dto.ArchivoSubido{
		Nombre:   nombre,
		MimeType: "application/pdf",
		Tamano:   int64(len(contenido)),
		Abrir: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(contenido)), nil
		},
	}
}

// failingArchivoRepo fails every file metadata insert.
type failingArchivoRepo struct {
	repository.OrdenRepository
}

func (r failingArchivoRepo) CreateArchivo(context.Context, *gorm.DB, *model.OrdenArchivo) error {
	return errors.New("disk quota exceeded")
}
