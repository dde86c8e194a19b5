package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/deimercs/gestorfacturas/internal/infra"
	"github.com/deimercs/gestorfacturas/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
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
	return db
}

func TestMaxConsecutivo_Numerico(t *testing.T) {
	db := newTestDB(t)
	repo := NewOrdenRepository(db)
	ctx := context.Background()

	maximo, err := repo.MaxConsecutivo(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, maximo)

	cliente := model.Cliente{Nombre: "Constructora Andina", TipoDocumento: "NIT", NumeroDocumento: "900123456"}
	require.NoError(t, db.Create(&cliente).Error)
	for _, c := range []string{"9999", "10000", "0002"} {
		o := &model.Orden{Consecutivo: c, NumeroOrden: "OC-" + c, TipoDocumento: "OC", ClienteID: cliente.ID, Estado: model.EstadoPendienteFactura}
		require.NoError(t, db.Transaction(func(tx *gorm.DB) error { return repo.Create(ctx, tx, o) }))
	}

	// A text MAX would pick "9999".
	maximo, err = repo.MaxConsecutivo(ctx, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 10000, maximo)

	existe, err := repo.ExisteNumero(ctx, nil, "OC-10000")
	require.NoError(t, err)
	assert.True(t, existe)
	existe, err = repo.ExisteNumero(ctx, nil, "OC-10001")
	require.NoError(t, err)
	assert.False(t, existe)
}

func TestProveedorMissing(t *testing.T) {
	db := newTestDB(t)
	repo := NewProveedorRepository(db)
	ctx := context.Background()

	p := model.Proveedor{Nombre: "Ferreteria Central", TipoDocumento: "NIT", NumeroDocumento: "800111"}
	require.NoError(t, repo.Create(ctx, &p))

	missing, err := repo.Missing(ctx, []uint{p.ID, 77, p.ID, 77, 78})
	require.NoError(t, err)
	assert.Equal(t, []uint{77, 78}, missing)

	missing, err = repo.Missing(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestClienteSearch(t *testing.T) {
	db := newTestDB(t)
	repo := NewClienteRepository(db)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		require.NoError(t, repo.Create(ctx, &model.Cliente{
			Nombre: fmt.Sprintf("Obra %02d", i), TipoDocumento: "CC", NumeroDocumento: fmt.Sprintf("10%02d", i),
		}))
	}
	require.NoError(t, repo.Create(ctx, &model.Cliente{Nombre: "Constructora Andina", TipoDocumento: "NIT", NumeroDocumento: "900123456"}))

	found, err := repo.Search(ctx, "ANDINA", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Constructora Andina", found[0].Nombre)

	found, err = repo.Search(ctx, "9001", 10)
	require.NoError(t, err)
	assert.Len(t, found, 1)

	found, err = repo.Search(ctx, "obra", 10)
	require.NoError(t, err)
	assert.Len(t, found, 10)
}

func TestClienteSearch_WildcardsAreLiteral(t *testing.T) {
	db := newTestDB(t)
	repo := NewClienteRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &model.Cliente{Nombre: "Obra Norte", TipoDocumento: "CC", NumeroDocumento: "1001"}))
	require.NoError(t, repo.Create(ctx, &model.Cliente{Nombre: "Descuento 100%", TipoDocumento: "NIT", NumeroDocumento: "A_B!1"}))

	found, err := repo.Search(ctx, "%", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Descuento 100%", found[0].Nombre)

	found, err = repo.Search(ctx, "_", 10)
	require.NoError(t, err)
	assert.Len(t, found, 1)

	found, err = repo.Search(ctx, "b!1", 10)
	require.NoError(t, err)
	assert.Len(t, found, 1)

	found, err = repo.Search(ctx, "no existe", 10)
	require.NoError(t, err)
	assert.Empty(t, found)
}
