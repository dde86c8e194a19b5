package handler

import (
	"errors"
	"net/http"

	"github.com/deimercs/gestorfacturas/internal/apierror"
	"github.com/deimercs/gestorfacturas/internal/dto"
	"github.com/deimercs/gestorfacturas/internal/middleware"
	"github.com/deimercs/gestorfacturas/internal/service"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct{ svc service.AuthService }

func NewAuthHandler(svc service.AuthService) *AuthHandler { return &AuthHandler{svc: svc} }

// Login godoc
// @Summary Login de usuario
// @Tags auth
// @Accept json
// @Produce json
// @Param body body dto.LoginRequest true "Credenciales"
// @Success 200 {object} dto.LoginResponse
// @Failure 401 {object} apierror.APIError
// @Router /login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	resp, err := h.svc.Login(c.Request.Context(), req)
	if errors.Is(err, service.ErrCredenciales) {
		c.JSON(http.StatusUnauthorized, apierror.New("Credenciales invalidas"))
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Logout godoc
// @Summary Cierra la sesion indicada en X-Session-ID
// @Tags auth
// @Param X-Session-ID header string false "Sesion"
// @Success 204
// @Router /logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.svc.Logout(c.Request.Context(), c.GetHeader(middleware.SessionHeader)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
