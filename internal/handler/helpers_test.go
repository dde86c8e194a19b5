package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/deimercs/gestorfacturas/internal/dto"
	"github.com/deimercs/gestorfacturas/internal/middleware"
	"github.com/deimercs/gestorfacturas/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() { gin.SetMode(gin.TestMode) }

func serve(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRespondError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"validacion", fmt.Errorf("%w: estado %q invalido", service.ErrValidacion, "archived"), http.StatusBadRequest, `{"detail":"estado \"archived\" invalido"}`},
		{"conflicto envuelto", fmt.Errorf("crear orden: %w", fmt.Errorf("%w: OC-0001 ya existe", service.ErrConflicto)), http.StatusConflict, `{"detail":"OC-0001 ya existe"}`},
		{"no encontrado", fmt.Errorf("%w: orden 7", service.ErrNoEncontrado), http.StatusNotFound, `{"detail":"orden 7"}`},
		{"interno", errors.New("connection reset"), http.StatusInternalServerError, `{"detail":"Error interno del servidor"}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.Use(middleware.ErrorHandler())
			r.GET("/", func(c *gin.Context) { respondError(c, tc.err) })

			w := serve(r, http.MethodGet, "/", "")
			assert.Equal(t, tc.status, w.Code)
			assert.JSONEq(t, tc.body, w.Body.String())
		})
	}
}

func TestParseID(t *testing.T) {
	r := gin.New()
	r.GET("/orders/:id", func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id})
	})

	assert.JSONEq(t, `{"id":42}`, serve(r, http.MethodGet, "/orders/42", "").Body.String())
	for _, bad := range []string{"0", "-1", "abc", "1.5"} {
		assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodGet, "/orders/"+bad, "").Code, bad)
	}
}

func TestBindAndValidate(t *testing.T) {
	r := gin.New()
	r.POST("/", func(c *gin.Context) {
		var req dto.OrdenRequest
		if !bindAndValidate(c, &req) {
			return
		}
		c.Status(http.StatusNoContent)
	})

	w := serve(r, http.MethodPost, "/", `{"document_type":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(r, http.MethodPost, "/", `{"document_type":"OC","client_id":"3","articles":[{"providerId":1,"description":"Tubo","quantity":0}]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), `"Articulos[0].Cantidad":"required"`)

	w = serve(r, http.MethodPost, "/", `{"document_type":"OC","client_id":"3","articles":[{"providerId":"1","description":"Tubo","quantity":"2","unitPrice":1.5,"total":-1}]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), `"Articulos[0].Total":"min"`)

	w = serve(r, http.MethodPost, "/", `{"document_type":"OC","client_id":3,"articles":[{"providerId":1,"description":"Tubo","quantity":2,"unitPrice":1.5}]}`)
	assert.Equal(t, http.StatusNoContent, w.Code)
}
