package handler

import (
	"net/http"

	"github.com/deimercs/gestorfacturas/internal/dto"
	"github.com/deimercs/gestorfacturas/internal/service"

	"github.com/gin-gonic/gin"
)

// DirectorioHandler serves /clients and /providers, which share one shape.
type DirectorioHandler struct{ svc service.DirectorioService }

func NewDirectorioHandler(svc service.DirectorioService) *DirectorioHandler {
	return &DirectorioHandler{svc: svc}
}

// ── Clientes ─────────────────────────────────────────────────────────────────

// ListarClientes godoc
// @Summary Lista clientes
// @Tags clientes
// @Produce json
// @Success 200 {array} dto.TerceroResponse
// @Router /clients [get]
func (h *DirectorioHandler) ListarClientes(c *gin.Context) {
	resp, err := h.svc.ListarClientes(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// CrearCliente godoc
// @Summary Crea un cliente
// @Tags clientes
// @Accept json
// @Produce json
// @Param body body dto.CrearTerceroRequest true "Cliente"
// @Success 201 {object} dto.TerceroResponse
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.ValidationError
// @Router /clients [post]
func (h *DirectorioHandler) CrearCliente(c *gin.Context) {
	var req dto.CrearTerceroRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.CrearCliente(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// BuscarClientes godoc
// @Summary Busca clientes por nombre o documento (min 2 caracteres)
// @Tags clientes
// @Produce json
// @Param query query string true "Texto a buscar"
// @Success 200 {array} dto.TerceroResponse
// @Router /clients/search [get]
func (h *DirectorioHandler) BuscarClientes(c *gin.Context) {
	var q dto.BuscarTerceroQuery
	if !bindQuery(c, &q) {
		return
	}
	resp, err := h.svc.BuscarClientes(c.Request.Context(), q.Query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ── Proveedores ──────────────────────────────────────────────────────────────

// ListarProveedores godoc
// @Summary Lista proveedores
// @Tags proveedores
// @Produce json
// @Success 200 {array} dto.TerceroResponse
// @Router /providers [get]
func (h *DirectorioHandler) ListarProveedores(c *gin.Context) {
	resp, err := h.svc.ListarProveedores(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// CrearProveedor godoc
// @Summary Crea un proveedor
// @Tags proveedores
// @Accept json
// @Produce json
// @Param body body dto.CrearTerceroRequest true "Proveedor"
// @Success 201 {object} dto.TerceroResponse
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.ValidationError
// @Router /providers [post]
func (h *DirectorioHandler) CrearProveedor(c *gin.Context) {
	var req dto.CrearTerceroRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.CrearProveedor(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// BuscarProveedores godoc
// @Summary Busca proveedores por nombre o documento (min 2 caracteres)
// @Tags proveedores
// @Produce json
// @Param query query string true "Texto a buscar"
// @Success 200 {array} dto.TerceroResponse
// @Router /providers/search [get]
func (h *DirectorioHandler) BuscarProveedores(c *gin.Context) {
	var q dto.BuscarTerceroQuery
	if !bindQuery(c, &q) {
		return
	}
	resp, err := h.svc.BuscarProveedores(c.Request.Context(), q.Query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
