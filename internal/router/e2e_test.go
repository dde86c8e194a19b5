//go:build integration

package router

// End-to-end tests against real Postgres + Redis via testcontainers.
// Run with: go test -tags integration ./internal/router/... -v

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/deimercs/gestorfacturas/internal/config"
	"github.com/deimercs/gestorfacturas/internal/dto"
	"github.com/deimercs/gestorfacturas/internal/infra"
	"github.com/deimercs/gestorfacturas/internal/metrics"
	"github.com/deimercs/gestorfacturas/internal/middleware"
	"github.com/deimercs/gestorfacturas/internal/model"
	"github.com/deimercs/gestorfacturas/internal/repository"
	"github.com/deimercs/gestorfacturas/internal/service"
	"github.com/deimercs/gestorfacturas/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"golang.org/x/crypto/bcrypt"
)

type e2eEnv struct {
	*testEnv
	server  *httptest.Server
	rdb     *redis.Client
	session string
}

func setupE2E(t *testing.T) *e2eEnv {
	t.Helper()
	ctx := context.Background()
	gin.SetMode(gin.TestMode)

	pgC, err := tcPostgres.Run(ctx, "postgres:16-alpine",
		tcPostgres.WithDatabase("ordenes_test"),
		tcPostgres.WithUsername("ordenes"),
		tcPostgres.WithPassword("ordenes"),
		tcPostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, pgC)
	require.NoError(t, err)
	pgURL, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	rdC, err := tcRedis.Run(ctx, "redis:7-alpine")
	testcontainers.CleanupContainer(t, rdC)
	require.NoError(t, err)
	rdURL, err := rdC.ConnectionString(ctx)
	require.NoError(t, err)

	cfg := &config.Config{
		Env:               "test",
		CORSOrigins:       "*",
		DatabaseDriver:    infra.DriverPostgres,
		DatabaseURL:       pgURL,
		RedisURL:          rdURL,
		AuthRequired:      true,
		SessionTTLMinutes: 15,
		MaxUploadMB:       5,
		CompanyName:       "Gestor de Ordenes",
	}

	db, err := infra.NewDatabase(cfg.DatabaseDriver, cfg.DatabaseURL, false)
	require.NoError(t, err)
	require.NoError(t, infra.RunMigrations(db, cfg.DatabaseURL))

	rdb, err := infra.NewRedis(ctx, cfg.RedisURL, 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	uploads, err := infra.NewUploadStore(t.TempDir())
	require.NoError(t, err)

	hash, err := service.HashPassword("compras2024", bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, repository.NewUsuarioRepository(db).Create(ctx,
		&model.Usuario{Nombre: "Compras", Email: "compras@example.com", PasswordHash: hash, Activo: true}))

	env := &e2eEnv{
		testEnv: &testEnv{
			engine:    New(cfg, db, rdb, uploads, metrics.New(prometheus.NewRegistry())),
			db:        db,
			uploads:   uploads,
			cliente:   model.Cliente{Nombre: "Constructora Andina", TipoDocumento: "NIT", NumeroDocumento: "900123456"},
			proveedor: model.Proveedor{Nombre: "Ferreteria Central", TipoDocumento: "NIT", NumeroDocumento: "800111"},
		},
		rdb: rdb,
	}
	require.NoError(t, db.Create(&env.cliente).Error)
	require.NoError(t, db.Create(&env.proveedor).Error)

	env.server = httptest.NewServer(env.engine)
	t.Cleanup(env.server.Close)
	env.session = env.login(t)
	return env
}

func (e *e2eEnv) login(t *testing.T) string {
	t.Helper()
	body, _ := json.Marshal(dto.LoginRequest{Email: "Compras@Example.com", Password: "compras2024"})
	resp, err := e.server.Client().Post(e.server.URL+"/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out dto.LoginResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out.SessionID)
	return out.SessionID
}

// send runs req against the live server with the session header.
func (e *e2eEnv) send(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	req.RequestURI = ""
	u := *req.URL
	req.URL, _ = req.URL.Parse(e.server.URL + u.RequestURI())
	req.Header.Set(middleware.SessionHeader, e.session)
	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, b
}

func TestE2E_SesionRequerida(t *testing.T) {
	env := setupE2E(t)

	resp, err := env.server.Client().Get(env.server.URL + "/orders")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	res, _ := env.send(t, httptest.NewRequest(http.MethodGet, "/orders", nil))
	assert.Equal(t, http.StatusOK, res.StatusCode)

	ttl, err := env.rdb.TTL(context.Background(), "session:"+env.session).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl.Minutes(), 14.0)

	res, _ = env.send(t, httptest.NewRequest(http.MethodPost, "/logout", nil))
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
	res, _ = env.send(t, httptest.NewRequest(http.MethodGet, "/orders", nil))
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestE2E_ConsecutivosConcurrentes(t *testing.T) {
	env := setupE2E(t)
	const n = 10

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		got = map[string]bool{}
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, body := env.send(t, multipartRequest(t, http.MethodPost, "/orders", env.orderData(t), pdf("soporte.pdf")))
			if !assert.Equal(t, http.StatusCreated, res.StatusCode, string(body)) {
				return
			}
			var out dto.CrearOrdenResponse
			if assert.NoError(t, json.Unmarshal(body, &out)) {
				mu.Lock()
				got[out.Consecutivo] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, got, n)
	for i := 1; i <= n; i++ {
		assert.True(t, got[fmt.Sprintf("%04d", i)], "falta %04d", i)
	}
}

func TestE2E_EmailEncolado(t *testing.T) {
	env := setupE2E(t)

	res, body := env.send(t, multipartRequest(t, http.MethodPost, "/orders", env.orderData(t)))
	require.Equal(t, http.StatusCreated, res.StatusCode, string(body))
	var creada dto.CrearOrdenResponse
	require.NoError(t, json.Unmarshal(body, &creada))

	payload, _ := json.Marshal(dto.EnviarOrdenRequest{Email: "proveedor@example.com"})
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/orders/%d/email", creada.OrdenID), bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	res, _ = env.send(t, req)
	require.Equal(t, http.StatusAccepted, res.StatusCode)

	n, err := env.rdb.LLen(context.Background(), worker.QueueEmail).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestE2E_BusquedaCacheada(t *testing.T) {
	env := setupE2E(t)
	ctx := context.Background()

	res, body := env.send(t, httptest.NewRequest(http.MethodGet, "/providers/search?query=ferre", nil))
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(body), "Ferreteria Central")

	keys, err := env.rdb.Keys(ctx, "busqueda:proveedores:*").Result()
	require.NoError(t, err)
	assert.NotEmpty(t, keys)

	payload, _ := json.Marshal(dto.CrearTerceroRequest{Nombre: "Ferreteria del Sur", TipoDocumento: "NIT", NumeroDocumento: "800333"})
	req := httptest.NewRequest(http.MethodPost, "/providers", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	res, _ = env.send(t, req)
	require.Equal(t, http.StatusCreated, res.StatusCode)

	keys, err = env.rdb.Keys(ctx, "busqueda:proveedores:*").Result()
	require.NoError(t, err)
	assert.Empty(t, keys)

	res, body = env.send(t, httptest.NewRequest(http.MethodGet, "/providers/search?query=ferre", nil))
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(body), "Ferreteria del Sur")
}

func TestE2E_EmailFallidoVaALaDLQ(t *testing.T) {
	env := setupE2E(t)

	res, body := env.send(t, multipartRequest(t, http.MethodPost, "/orders", env.orderData(t)))
	require.Equal(t, http.StatusCreated, res.StatusCode, string(body))
	var creada dto.CrearOrdenResponse
	require.NoError(t, json.Unmarshal(body, &creada))

	// No SMTP host: every send fails.
	ctx, cancel := context.WithCancel(context.Background())
	handlers := worker.WorkerHandlers{
		Email:    worker.NewEmailWorker(repository.NewOrdenRepository(env.db), infra.NewMailer(&config.Config{}), "Gestor de Ordenes"),
		Limpieza: worker.NewLimpiezaWorker(env.uploads),
	}
	wg := worker.StartWorkerPool(ctx, env.rdb, 1, handlers, metrics.New(prometheus.NewRegistry()))
	t.Cleanup(func() { cancel(); wg.Wait() })

	payload, _ := json.Marshal(dto.EnviarOrdenRequest{Email: "proveedor@example.com"})
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/orders/%d/email", creada.OrdenID), bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	res, _ = env.send(t, req)
	require.Equal(t, http.StatusAccepted, res.StatusCode)

	assert.Eventually(t, func() bool {
		n, err := worker.DLQLength(context.Background(), env.rdb, worker.QueueEmail)
		return err == nil && n == 1
	}, 15*time.Second, 100*time.Millisecond)

	dead, err := worker.PeekDLQ(context.Background(), env.rdb, worker.QueueEmail, 10)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Contains(t, dead[0].Error, "SMTP_HOST")

	res, body = env.send(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(body), `"jobs:email":1`)

	// Stop the pool first so the replayed job stays on the queue.
	cancel()
	wg.Wait()
	n, err := worker.ReplayDLQ(context.Background(), env.rdb, worker.QueueEmail, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	queued, err := env.rdb.LLen(context.Background(), worker.QueueEmail).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, queued)
}
