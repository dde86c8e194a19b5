package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/deimercs/gestorfacturas/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ErrorHandler answers 500 for errors a handler attached with c.Error without
// writing a response. The error itself is only logged.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		reqID := c.GetString(RequestIDKey)
		for _, e := range c.Errors {
			log.Error().
				Str("request_id", reqID).
				Str("route", c.FullPath()).
				Str("method", c.Request.Method).
				Err(e.Err).
				Msg("request failed")
		}
		if !c.Writer.Written() {
			c.AbortWithStatusJSON(http.StatusInternalServerError, apierror.Internal(reqID))
		}
	}
}

// Recovery turns panics into 500 responses. The stack goes to the log only.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				reqID := c.GetString(RequestIDKey)
				log.Error().
					Str("request_id", reqID).
					Interface("panic", r).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, apierror.Internal(reqID))
			}
		}()
		c.Next()
	}
}

// Logger logs each request with request_id, method, path and status.
// Server errors are logged at error level, client errors at warn.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		ev := log.Info()
		switch {
		case status >= 500:
			ev = log.Error()
		case status >= 400:
			ev = log.Warn()
		}
		ev.Str("request_id", c.GetString(RequestIDKey)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("client_ip", c.ClientIP()).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
