package handler

import (
	"fmt"
	"net/http"

	"github.com/deimercs/gestorfacturas/internal/service"

	"github.com/gin-gonic/gin"
)

type ArchivosHandler struct{ svc service.ArchivoService }

func NewArchivosHandler(svc service.ArchivoService) *ArchivosHandler {
	return &ArchivosHandler{svc: svc}
}

// Obtener godoc
// @Summary Descarga un adjunto
// @Description Sirve el archivo con su mime type registrado. Con download=1 se envia como adjunto.
// @Tags archivos
// @Produce application/pdf
// @Param id path int true "ID del archivo"
// @Param download query bool false "Forzar descarga"
// @Success 200 {file} binary
// @Failure 404 {object} apierror.APIError
// @Router /files/{id} [get]
func (h *ArchivosHandler) Obtener(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	a, err := h.svc.Abrir(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	// http.ServeContent keeps a Content-Type that is already set.
	c.Header("Content-Type", a.MimeType)
	if c.Query("download") == "1" || c.Query("download") == "true" {
		c.FileAttachment(a.Ruta, a.Nombre)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="%s"`, a.Nombre))
	c.File(a.Ruta)
}

// Eliminar godoc
// @Summary Elimina un adjunto (archivo y registro)
// @Tags archivos
// @Produce json
// @Param id path int true "ID del archivo"
// @Success 200 {object} map[string]bool
// @Failure 404 {object} apierror.APIError
// @Router /files/{id} [delete]
func (h *ArchivosHandler) Eliminar(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Eliminar(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
