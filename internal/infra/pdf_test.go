package infra

import (
	"bytes"
	"testing"
	"time"

	"github.com/deimercs/gestorfacturas/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateOrdenPDF(t *testing.T) {
	vence := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	o := &model.Orden{
		NumeroOrden:      "OC-0001",
		Consecutivo:      "0001",
		FacturaProveedor: "FV-778",
		FechaVencimiento: &vence,
		Estado:           model.EstadoPendienteFactura,
		Subtotal:         decimal.RequireFromString("15"),
		IVA:              decimal.RequireFromString("2.85"),
		Total:            decimal.RequireFromString("17.85"),
		CreatedAt:        time.Now(),
		Cliente:          &model.Cliente{Nombre: "Construcciones Ñandú", TipoDocumento: "NIT", NumeroDocumento: "900123"},
		Items: []model.OrdenItem{
			{
				Detalle: "Cemento gris por bulto de 50 kg con entrega en obra", Cantidad: 2,
				PrecioUnitario: decimal.RequireFromString("5"), Subtotal: decimal.RequireFromString("10"),
				IVA: decimal.RequireFromString("1.9"), Total: decimal.RequireFromString("11.9"),
				Proveedor: &model.Proveedor{Nombre: "Ferretería Central"},
			},
			{
				Detalle: "Arena", Cantidad: 1,
				PrecioUnitario: decimal.RequireFromString("5"), Subtotal: decimal.RequireFromString("5"),
				IVA: decimal.RequireFromString("0.95"), Total: decimal.RequireFromString("5.95"),
			},
		},
	}

	out, err := GenerateOrdenPDF(o, "Gestor de Ordenes")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")), "output must be a PDF document")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "corto", truncate("corto", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
