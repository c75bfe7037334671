package router

import (
	"time"

	"cajaledger/internal/config"
	"cajaledger/internal/handler"
	"cajaledger/internal/infra"
	"cajaledger/internal/middleware"
	"cajaledger/internal/repository"
	"cajaledger/internal/service"
	"cajaledger/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, smtpCB *infra.Breaker) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	// ── Infrastructure ───────────────────────────────────────────────────────
	locker := infra.NewLocker(rdb)
	dispatcher := worker.NewDispatcher(rdb)

	// ── Repositories ─────────────────────────────────────────────────────────
	cajaRepo := repository.NewCajaRepository(db)
	sesionRepo := repository.NewSesionRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	umbral := decimal.NewFromFloat(cfg.AlertaDesvioPct)
	cajaSvc := service.NewCajaService(sesionRepo, cajaRepo, locker, dispatcher, umbral)
	reporteSvc := service.NewReporteService(sesionRepo)

	// ── Handlers ─────────────────────────────────────────────────────────────
	cajaH := handler.NewCajaHandler(cajaSvc)
	reportesH := handler.NewReportesHandler(reporteSvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb, smtpCB))

	// Protected routes — tokens issued by the external auth service.
	jwtMW := middleware.JWTAuth(cfg.JWTSecret)
	v1 := r.Group("/v1", jwtMW)
	{
		// Roles: cajero, supervisor, administrador — declared per-endpoint
		v1.GET("/cajas", middleware.RequireRole("cajero", "supervisor", "administrador"), cajaH.ListarCajas)
		v1.POST("/cajas", middleware.RequireRole("administrador"), cajaH.CrearCaja)

		caja := v1.Group("/caja")
		{
			caja.POST("/abrir", middleware.RequireRole("cajero", "supervisor", "administrador"), cajaH.Abrir)
			caja.POST("/movimiento", middleware.RequireRole("cajero", "supervisor", "administrador"), cajaH.RegistrarMovimiento)
			caja.POST("/cerrar", middleware.RequireRole("cajero", "supervisor", "administrador"), cajaH.Cerrar)
			caja.GET("/activa", middleware.RequireRole("cajero", "supervisor", "administrador"), cajaH.GetActiva)
			caja.GET("/sesiones", middleware.RequireRole("supervisor", "administrador"), reportesH.ListarSesiones)
			caja.GET("/:id", middleware.RequireRole("cajero", "supervisor", "administrador"), cajaH.ObtenerSesion)
		}
	}

	// Swagger UI — only enabled outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
