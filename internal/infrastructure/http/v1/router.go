// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/thenano/openmrs-module-idgen/internal/domain/auth"
	"github.com/thenano/openmrs-module-idgen/internal/domain/idgen"
	"github.com/thenano/openmrs-module-idgen/internal/infrastructure/http/v1/handlers"
	"github.com/thenano/openmrs-module-idgen/internal/infrastructure/http/v1/middleware"
	"github.com/thenano/openmrs-module-idgen/internal/infrastructure/storage/postgres"
	"github.com/thenano/openmrs-module-idgen/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	Pool         *postgres.Pool
	Logger       *logger.Logger
	JWTValidator middleware.JWTValidator
	AuthService  *auth.Service
	IdgenService *idgen.Service
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no auth required)
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	baseHandler := handlers.NewBaseHandler()

	// API v1
	apiV1 := router.Group("/api/v1")
	{
		// Public auth endpoints
		authHandler := handlers.NewAuthHandler(baseHandler, cfg.AuthService)
		apiV1.POST("/auth/login", authHandler.Login)

		// Everything else requires a valid token
		protected := apiV1.Group("")
		protected.Use(middleware.Auth(cfg.JWTValidator))

		protected.GET("/auth/me", authHandler.Me)

		registerIdgenRoutes(protected, baseHandler, cfg.IdgenService)
	}

	return router
}

// registerIdgenRoutes wires the identifier generation surface.
func registerIdgenRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, service *idgen.Service) {
	sourceHandler := handlers.NewSourceHandler(base, service)
	poolHandler := handlers.NewPoolHandler(base, service)
	autoGenHandler := handlers.NewAutoGenerationHandler(base, service)
	logHandler := handlers.NewLogHandler(base, service)

	manage := middleware.RequirePrivilege(idgen.PrivManageSources)

	ig := rg.Group("/idgen")

	ig.GET("/source-types", sourceHandler.Types)

	sources := ig.Group("/sources")
	{
		sources.GET("", sourceHandler.List)
		sources.GET("/:id", sourceHandler.Get)
		sources.POST("", manage, sourceHandler.Create)
		sources.PUT("/:id", manage, sourceHandler.Update)
		sources.DELETE("/:id", manage, sourceHandler.Purge)
		sources.POST("/:id/retire", manage, sourceHandler.Retire)

		sources.GET("/:id/sequence-value", manage, sourceHandler.GetSequenceValue)
		sources.PUT("/:id/sequence-value", manage, sourceHandler.SetSequenceValue)

		sources.POST("/:id/identifiers",
			middleware.RequirePrivilege(idgen.PrivGenerateBatch),
			sourceHandler.Generate)
	}

	// Pool quantity is readable by any authenticated actor, mutations
	// are privileged.
	pools := ig.Group("/pools")
	{
		pools.GET("/:id/quantity", poolHandler.Quantity)
		pools.POST("/:id/identifiers",
			middleware.RequirePrivilege(idgen.PrivUploadBatch),
			middleware.GzipRequest(),
			poolHandler.Upload)
		pools.POST("/:id/reserve",
			middleware.RequirePrivilege(idgen.PrivGenerateBatch),
			poolHandler.Reserve)
	}

	autoGen := ig.Group("/autogeneration-options")
	{
		autoGen.GET("", autoGenHandler.List)
		autoGen.GET("/:type", autoGenHandler.GetByType)

		manageAutoGen := middleware.RequirePrivilege(idgen.PrivManageAutoGen)
		autoGen.POST("", manageAutoGen, autoGenHandler.Save)
		autoGen.PUT("/:id", manageAutoGen, autoGenHandler.Update)
		autoGen.DELETE("/:id", manageAutoGen, autoGenHandler.Purge)
	}

	ig.GET("/log-entries",
		middleware.RequirePrivilege(idgen.PrivViewLogEntries),
		logHandler.List)
}
