package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/deimercs/gestorfacturas/internal/apierror"
	"github.com/deimercs/gestorfacturas/internal/dto"
	"github.com/deimercs/gestorfacturas/internal/middleware"
	"github.com/deimercs/gestorfacturas/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	campoOrden    = "orderData"
	campoArchivos = "files"

	// A request carries the JSON payload plus every file; the per-file limit
	// is enforced by the service, this only bounds the whole body.
	maxArchivosPorSolicitud = 10
	holguraFormulario       = 1 << 20
)

type OrdenesHandler struct {
	svc     service.OrdenService
	maxBody int64
}

// NewOrdenesHandler bounds multipart bodies to maxArchivosPorSolicitud files
// of maxUploadBytes each.
func NewOrdenesHandler(svc service.OrdenService, maxUploadBytes int64) *OrdenesHandler {
	return &OrdenesHandler{
		svc:     svc,
		maxBody: maxUploadBytes*maxArchivosPorSolicitud + holguraFormulario,
	}
}

// SiguienteConsecutivo godoc
// @Summary Vista previa del proximo consecutivo
// @Tags ordenes
// @Produce json
// @Success 200 {object} dto.ConsecutivoResponse
// @Router /next-consecutive [get]
func (h *OrdenesHandler) SiguienteConsecutivo(c *gin.Context) {
	consec, err := h.svc.SiguienteConsecutivo(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ConsecutivoResponse{Consecutivo: consec})
}

// Crear godoc
// @Summary Crea una orden con sus articulos y adjuntos PDF
// @Tags ordenes
// @Accept mpfd
// @Produce json
// @Param orderData formData string true "OrdenRequest en JSON"
// @Param files formData file false "Adjuntos PDF"
// @Success 201 {object} dto.CrearOrdenResponse
// @Failure 400 {object} apierror.APIError
// @Failure 404 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.ValidationError
// @Router /orders [post]
func (h *OrdenesHandler) Crear(c *gin.Context) {
	req, archivos, ok := h.leerFormulario(c)
	if !ok {
		return
	}
	resp, err := h.svc.Crear(c.Request.Context(), *req, archivos)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Actualizar godoc
// @Summary Reemplaza cabecera y articulos de una orden; los adjuntos nuevos se agregan
// @Tags ordenes
// @Accept mpfd
// @Produce json
// @Param id path int true "ID de la orden"
// @Param orderData formData string true "OrdenRequest en JSON"
// @Param files formData file false "Adjuntos PDF"
// @Success 200 {object} dto.ActualizarOrdenResponse
// @Failure 404 {object} apierror.APIError
// @Router /orders/{id} [put]
func (h *OrdenesHandler) Actualizar(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	req, archivos, ok := h.leerFormulario(c)
	if !ok {
		return
	}
	resp, err := h.svc.Actualizar(c.Request.Context(), id, *req, archivos)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// CambiarEstado godoc
// @Summary Cambia el estado de una orden
// @Tags ordenes
// @Accept json
// @Produce json
// @Param id path int true "ID de la orden"
// @Param body body dto.CambiarEstadoRequest true "Nuevo estado"
// @Success 200 {object} dto.EstadoOrdenResponse
// @Failure 400 {object} apierror.APIError
// @Failure 404 {object} apierror.APIError
// @Router /orders/{id}/status [put]
func (h *OrdenesHandler) CambiarEstado(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.CambiarEstadoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.CambiarEstado(c.Request.Context(), id, req.Estado)
	if err != nil {
		respondError(c, err)
		return
	}
	log.Info().Uint("orden_id", id).Str("status", resp.Estado).
		Uint("user_id", middleware.GetUserID(c)).
		Str("request_id", c.GetString(middleware.RequestIDKey)).
		Msg("orden: estado cambiado")
	c.JSON(http.StatusOK, resp)
}

// Listar godoc
// @Summary Lista ordenes con sus articulos
// @Tags ordenes
// @Produce json
// @Param startDate query string false "YYYY-MM-DD"
// @Param endDate query string false "YYYY-MM-DD (inclusive)"
// @Param status query string false "pending_invoice | invoiced | follow_up"
// @Success 200 {array} dto.OrdenResponse
// @Router /orders [get]
func (h *OrdenesHandler) Listar(c *gin.Context) {
	var filter dto.OrdenFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.Listar(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ObtenerPorID godoc
// @Summary Detalle de una orden
// @Tags ordenes
// @Produce json
// @Param id path int true "ID de la orden"
// @Success 200 {object} dto.OrdenResponse
// @Failure 404 {object} apierror.APIError
// @Router /orders/{id} [get]
func (h *OrdenesHandler) ObtenerPorID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.ObtenerPorID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListarArchivos godoc
// @Summary Adjuntos de una orden
// @Tags ordenes
// @Produce json
// @Param id path int true "ID de la orden"
// @Success 200 {array} dto.ArchivoResponse
// @Failure 404 {object} apierror.APIError
// @Router /orders/{id}/files [get]
func (h *OrdenesHandler) ListarArchivos(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.ListarArchivos(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// DescargarPDF godoc
// @Summary PDF de la orden
// @Tags ordenes
// @Produce application/pdf
// @Param id path int true "ID de la orden"
// @Success 200 {file} binary
// @Failure 404 {object} apierror.APIError
// @Router /orders/{id}/pdf [get]
func (h *OrdenesHandler) DescargarPDF(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	pdf, nombre, err := h.svc.GenerarPDF(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="%s"`, nombre))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// EnviarEmail godoc
// @Summary Encola el envio del PDF de la orden por email
// @Tags ordenes
// @Accept json
// @Produce json
// @Param id path int true "ID de la orden"
// @Param body body dto.EnviarOrdenRequest true "Destinatario"
// @Success 202 {object} map[string]bool
// @Failure 404 {object} apierror.APIError
// @Router /orders/{id}/email [post]
func (h *OrdenesHandler) EnviarEmail(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.EnviarOrdenRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if err := h.svc.EnviarPorEmail(c.Request.Context(), id, req.Email); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"queued": true})
}

// leerFormulario parses the multipart body: the order JSON in orderData and
// the attachments in files. Writes the error response when it returns false.
func (h *OrdenesHandler) leerFormulario(c *gin.Context) (*dto.OrdenRequest, []dto.ArchivoSubido, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBody)
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, apierror.New("La solicitud excede el tamano permitido"))
			return nil, nil, false
		}
		c.JSON(http.StatusBadRequest, apierror.New("Formulario multipart invalido"))
		return nil, nil, false
	}

	raw := form.Value[campoOrden]
	if len(raw) == 0 || raw[0] == "" {
		c.JSON(http.StatusBadRequest, apierror.New("Falta el campo "+campoOrden))
		return nil, nil, false
	}
	var req dto.OrdenRequest
	if err := json.Unmarshal([]byte(raw[0]), &req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("JSON invalido en "+campoOrden+": "+err.Error()))
		return nil, nil, false
	}
	if !validateStruct(c, &req) {
		return nil, nil, false
	}

	var headers []*multipart.FileHeader
	headers = append(headers, form.File[campoArchivos]...)
	headers = append(headers, form.File[campoArchivos+"[]"]...)
	archivos := make([]dto.ArchivoSubido, 0, len(headers))
	for _, fh := range headers {
		archivos = append(archivos, archivoSubido(fh))
	}
	return &req, archivos, true
}

func archivoSubido(fh *multipart.FileHeader) dto.ArchivoSubido {
	return dto.ArchivoSubido{
		Nombre:   fh.Filename,
		MimeType: fh.Header.Get("Content-Type"),
		Tamano:   fh.Size,
		Abrir: func() (io.ReadCloser, error) {
			f, err := fh.Open()
			if err != nil {
				return nil, err
			}
			return f, nil
		},
	}
}
