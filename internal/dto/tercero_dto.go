package dto

// Clients and providers share one shape.

type CrearTerceroRequest struct {
	Nombre          string `json:"name"            validate:"required,min=2,max=200"`
	TipoDocumento   string `json:"document_type"   validate:"required,max=20"`
	NumeroDocumento string `json:"document_number" validate:"required,max=40"`
}

type BuscarTerceroQuery struct {
	Query string `form:"query"`
}

type TerceroResponse struct {
	ID              uint   `json:"id"`
	Nombre          string `json:"name"`
	TipoDocumento   string `json:"document_type"`
	NumeroDocumento string `json:"document_number"`
}
