package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/deimercs/gestorfacturas/internal/infra"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

// ── Session store stub ────────────────────────────────────────────────────────

type stubSessions map[string]uint

func (s stubSessions) Touch(_ context.Context, id string) (uint, error) {
	if id == "redis-down" {
		return 0, errors.New("connection refused")
	}
	uid, ok := s[id]
	if !ok {
		return 0, infra.ErrSessionNotFound
	}
	return uid, nil
}

func sessionRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/orders", RequireSession(stubSessions{"abc": 7}), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": GetUserID(c)})
	})
	return r
}

func doGet(r http.Handler, path string, headers map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestRequireSession(t *testing.T) {
	r := sessionRouter()

	w := doGet(r, "/orders", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doGet(r, "/orders", map[string]string{SessionHeader: "expired"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doGet(r, "/orders", map[string]string{SessionHeader: "redis-down"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doGet(r, "/orders", map[string]string{SessionHeader: "abc"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":7}`, w.Body.String())
}

func TestRequestID(t *testing.T) {
	r := sessionRouter()

	w := doGet(r, "/orders", nil)
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)

	w = doGet(r, "/orders", map[string]string{RequestIDHeader: "req-123"})
	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS([]string{"http://localhost:8080"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := doGet(r, "/x", map[string]string{"Origin": "http://localhost:8080"})
	assert.Equal(t, "http://localhost:8080", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), SessionHeader)

	w = doGet(r, "/x", map[string]string{"Origin": "http://evil.test"})
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	pre := httptest.NewRecorder()
	r.ServeHTTP(pre, httptest.NewRequest(http.MethodOptions, "/x", nil))
	assert.Equal(t, http.StatusNoContent, pre.Code)
}

func TestIPLimiter(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	l := &ipLimiter{name: "test", limit: 2, window: time.Minute, entries: map[string]*windowEntry{}, now: func() time.Time { return now }}

	ok, _ := l.allow("1.1.1.1")
	assert.True(t, ok)
	ok, _ = l.allow("1.1.1.1")
	assert.True(t, ok)
	ok, _ = l.allow("1.1.1.1")
	assert.False(t, ok)
	ok, _ = l.allow("2.2.2.2")
	assert.True(t, ok, "limits are per IP")

	now = now.Add(61 * time.Second)
	assert.Equal(t, 2, l.purge())
	ok, _ = l.allow("1.1.1.1")
	assert.True(t, ok, "window resets")
}

func TestErrorHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), ErrorHandler())
	r.GET("/fail", func(c *gin.Context) { _ = c.Error(errors.New("pq: relation \"orders\" does not exist")) })
	r.GET("/written", func(c *gin.Context) {
		_ = c.Error(errors.New("logged only"))
		c.JSON(http.StatusNotFound, gin.H{"detail": "orden 9"})
	})

	w := doGet(r, "/fail", map[string]string{RequestIDHeader: "req-500"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"detail":"Error interno del servidor","request_id":"req-500"}`, w.Body.String())
	assert.NotContains(t, w.Body.String(), "relation")

	w = doGet(r, "/written", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"detail":"orden 9"}`, w.Body.String())
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), Recovery())
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := doGet(r, "/boom", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	reqID := w.Header().Get(RequestIDHeader)
	assert.JSONEq(t, `{"detail":"Error interno del servidor","request_id":"`+reqID+`"}`, w.Body.String())
}
