package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/deimercs/gestorfacturas/internal/apierror"
	"github.com/deimercs/gestorfacturas/internal/infra"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	SessionHeader = "X-Session-ID"
	UserIDKey     = "user_id"
)

// SessionToucher validates a session id and slides its expiry.
// *infra.SessionStore implements it.
type SessionToucher interface {
	Touch(ctx context.Context, id string) (uint, error)
}

// RequireSession rejects requests without a live X-Session-ID. Every accepted
// request extends the session TTL.
func RequireSession(store SessionToucher) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(SessionHeader)
		if id == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("Sesion requerida"))
			return
		}
		userID, err := store.Touch(c.Request.Context(), id)
		if err != nil {
			if !errors.Is(err, infra.ErrSessionNotFound) {
				log.Error().Err(err).Str("request_id", c.GetString(RequestIDKey)).Msg("session: lookup failed")
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("Sesion invalida o expirada"))
			return
		}
		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// GetUserID returns the user bound to the current session, 0 when none.
func GetUserID(c *gin.Context) uint {
	id, _ := c.Get(UserIDKey)
	v, _ := id.(uint)
	return v
}
