package router

import (
	"time"

	"github.com/deimercs/gestorfacturas/internal/config"
	"github.com/deimercs/gestorfacturas/internal/handler"
	"github.com/deimercs/gestorfacturas/internal/infra"
	"github.com/deimercs/gestorfacturas/internal/metrics"
	"github.com/deimercs/gestorfacturas/internal/middleware"
	"github.com/deimercs/gestorfacturas/internal/repository"
	"github.com/deimercs/gestorfacturas/internal/service"
	"github.com/deimercs/gestorfacturas/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
//
// rdb may be nil (local development, tests): search results are then not
// cached, orphan uploads are removed inline, order emails are unavailable and
// sessions cannot be enforced.
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, uploads *infra.UploadStore, m *metrics.Metrics) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.MaxMultipartMemory = cfg.MaxUploadBytes()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.AllowedOrigins()))
	r.Use(middleware.Metrics(m))
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	// ── Repositories ─────────────────────────────────────────────────────────
	usuarioRepo := repository.NewUsuarioRepository(db)
	ordenRepo := repository.NewOrdenRepository(db)
	clienteRepo := repository.NewClienteRepository(db)
	proveedorRepo := repository.NewProveedorRepository(db)

	// ── Async jobs ───────────────────────────────────────────────────────────
	// Without Redis the upload store cleans orphans synchronously.
	var (
		limpiador service.Limpiador = uploads
		cola      service.ColaEmail
		sesiones  *infra.SessionStore
	)
	if rdb != nil {
		dispatcher := worker.NewDispatcher(rdb)
		limpiador = dispatcher
		cola = dispatcher
		sesiones = infra.NewSessionStore(rdb, cfg.SessionTTL())
	}

	// ── Services ─────────────────────────────────────────────────────────────
	ordenSvc := service.NewOrdenService(ordenRepo, clienteRepo, proveedorRepo, uploads, limpiador, cola, m,
		service.OrdenServiceConfig{MaxUploadBytes: cfg.MaxUploadBytes(), Empresa: cfg.CompanyName})
	archivoSvc := service.NewArchivoService(ordenRepo, uploads)
	directorioSvc := service.NewDirectorioService(clienteRepo, proveedorRepo, rdb)

	// ── Handlers ─────────────────────────────────────────────────────────────
	ordenesH := handler.NewOrdenesHandler(ordenSvc, cfg.MaxUploadBytes())
	archivosH := handler.NewArchivosHandler(archivoSvc)
	directorioH := handler.NewDirectorioHandler(directorioSvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if sesiones != nil {
		authH := handler.NewAuthHandler(service.NewAuthService(usuarioRepo, sesiones, 0))
		r.POST("/login", middleware.LoginRateLimiter(), authH.Login)
		r.POST("/logout", authH.Logout)
	}

	api := r.Group("")
	switch {
	case cfg.AuthRequired && sesiones != nil:
		api.Use(middleware.RequireSession(sesiones))
	case cfg.AuthRequired:
		log.Warn().Msg("AUTH_REQUIRED sin Redis: las rutas quedan sin sesion")
	}
	{
		api.GET("/next-consecutive", ordenesH.SiguienteConsecutivo)

		api.GET("/clients", directorioH.ListarClientes)
		api.POST("/clients", directorioH.CrearCliente)
		api.GET("/clients/search", directorioH.BuscarClientes)
		api.GET("/providers", directorioH.ListarProveedores)
		api.POST("/providers", directorioH.CrearProveedor)
		api.GET("/providers/search", directorioH.BuscarProveedores)

		orders := api.Group("/orders")
		{
			orders.POST("", ordenesH.Crear)
			orders.GET("", ordenesH.Listar)
			orders.GET("/:id", ordenesH.ObtenerPorID)
			orders.PUT("/:id", ordenesH.Actualizar)
			orders.PUT("/:id/status", ordenesH.CambiarEstado)
			orders.GET("/:id/files", ordenesH.ListarArchivos)
			orders.GET("/:id/pdf", ordenesH.DescargarPDF)
			orders.POST("/:id/email", ordenesH.EnviarEmail)
		}

		api.GET("/files/:id", archivosH.Obtener)
		api.DELETE("/files/:id", archivosH.Eliminar)
	}

	// Swagger UI, only outside production
	if !cfg.IsProduction() {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
