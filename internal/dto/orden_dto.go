package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FlexInt accepts a JSON number or a quoted base-10 integer ("12").
// Anything else fails decoding, so the whole request is rejected.
type FlexInt int

func (n *FlexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if string(b) == "null" {
		return nil
	}
	s := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("valor numerico invalido %q", s)
	}
	*n = FlexInt(v)
	return nil
}

// ─── Filter / List ──────────────────────────────────────────────────────────

// OrdenFilter is bound from the query string of GET /orders.
type OrdenFilter struct {
	FechaDesde string `form:"startDate" validate:"omitempty,datetime=2006-01-02"`
	FechaHasta string `form:"endDate"   validate:"omitempty,datetime=2006-01-02"`
	Estado     string `form:"status"    validate:"omitempty,oneof=pending_invoice invoiced follow_up"`
}

// ─── Request DTOs ────────────────────────────────────────────────────────────

// ArticuloRequest is one line item of the multipart "orderData" field.
type ArticuloRequest struct {
	ProveedorID    FlexInt         `json:"providerId"  validate:"required,min=1"`
	Descripcion    string          `json:"description" validate:"required,max=2000"`
	Cantidad       FlexInt         `json:"quantity"    validate:"required,min=1"`
	PrecioUnitario decimal.Decimal `json:"unitPrice"   validate:"min=0"`
	Subtotal       decimal.Decimal `json:"subtotal"    validate:"min=0"`
	IVA            decimal.Decimal `json:"iva"         validate:"min=0"`
	Total          decimal.Decimal `json:"total"       validate:"min=0"`
}

// OrdenRequest is the JSON carried in the "orderData" multipart field of
// POST /orders and PUT /orders/:id.
type OrdenRequest struct {
	TipoDocumento    string            `json:"document_type"    validate:"required,max=20"`
	ClienteID        FlexInt           `json:"client_id"        validate:"required,min=1"`
	FacturaProveedor string            `json:"provider_invoice" validate:"max=60"`
	FechaVencimiento string            `json:"due_date"         validate:"omitempty,datetime=2006-01-02"`
	Estado           string            `json:"status"           validate:"omitempty,oneof=pending_invoice invoiced follow_up"`
	Articulos        []ArticuloRequest `json:"articles"         validate:"required,min=1,dive"`
}

// Vencimiento parses FechaVencimiento; nil when empty.
func (r OrdenRequest) Vencimiento() (*time.Time, error) {
	if r.FechaVencimiento == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", r.FechaVencimiento)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

type CambiarEstadoRequest struct {
	Estado string `json:"status"`
}

type EnviarOrdenRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ArchivoSubido is an upload accepted by the handler. The service opens it
// only after every precondition passed.
type ArchivoSubido struct {
	Nombre   string
	MimeType string
	Tamano   int64
	Abrir    func() (io.ReadCloser, error)
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type CrearOrdenResponse struct {
	OrdenID     uint   `json:"orderId"`
	Consecutivo string `json:"consecutive"`
	NumeroOrden string `json:"orderNumber"`
}

type ActualizarOrdenResponse struct {
	OrdenID uint `json:"orderId"`
}

type EstadoOrdenResponse struct {
	OrdenID uint   `json:"orderId"`
	Estado  string `json:"status"`
}

type ConsecutivoResponse struct {
	Consecutivo string `json:"consecutive"`
}

type OrdenItemResponse struct {
	ID               uint            `json:"id"`
	ProveedorID      uint            `json:"provider_id"`
	ProveedorNombre  string          `json:"provider_name"`
	Detalle          string          `json:"details"`
	Cantidad         int             `json:"quantity"`
	PrecioUnitario   decimal.Decimal `json:"unit_price"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	IVA              decimal.Decimal `json:"iva"`
	Total            decimal.Decimal `json:"total"`
	FacturaProveedor string          `json:"provider_invoice"`
}

type ArchivoResponse struct {
	ID          uint   `json:"id"`
	OrdenID     uint   `json:"order_id"`
	Nombre      string `json:"file_name"`
	Extension   string `json:"file_type"`
	MimeType    string `json:"mime_type"`
	TamanoBytes int64  `json:"size_bytes"`
	CreatedAt   string `json:"created_at"`
}

// OrdenResponse is the projection of GET /orders and GET /orders/:id.
// Archivos and the client document fields are only filled by the detail view.
type OrdenResponse struct {
	ID                     uint                `json:"id"`
	Consecutivo            string              `json:"order_consecutive"`
	NumeroOrden            string              `json:"order_number"`
	TipoDocumento          string              `json:"document_type"`
	ClienteID              uint                `json:"client_id"`
	ClienteNombre          string              `json:"client_name"`
	ClienteTipoDocumento   string              `json:"client_document_type,omitempty"`
	ClienteNumeroDocumento string              `json:"client_document_number,omitempty"`
	ProveedorID            uint                `json:"provider_id"`
	ProveedorNombre        string              `json:"provider_name"`
	Detalle                string              `json:"details"`
	PrecioUnitario         decimal.Decimal     `json:"unit_price"`
	Cantidad               int                 `json:"quantity"`
	Subtotal               decimal.Decimal     `json:"subtotal"`
	IVA                    decimal.Decimal     `json:"iva"`
	Total                  decimal.Decimal     `json:"total"`
	FacturaProveedor       string              `json:"provider_invoice"`
	FechaVencimiento       *string             `json:"due_date"`
	Estado                 string              `json:"status"`
	CreatedAt              string              `json:"created_at"`
	Items                  []OrdenItemResponse `json:"items"`
	Archivos               []ArchivoResponse   `json:"files,omitempty"`
}
