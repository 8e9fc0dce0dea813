package main

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/supervision-portal-api/api/swagger"
	"github.com/noah-isme/supervision-portal-api/internal/handler"
	"github.com/noah-isme/supervision-portal-api/internal/middleware"
	"github.com/noah-isme/supervision-portal-api/internal/models"
	"github.com/noah-isme/supervision-portal-api/internal/repository"
	"github.com/noah-isme/supervision-portal-api/internal/service"
	"github.com/noah-isme/supervision-portal-api/pkg/cache"
	"github.com/noah-isme/supervision-portal-api/pkg/config"
	"github.com/noah-isme/supervision-portal-api/pkg/database"
	"github.com/noah-isme/supervision-portal-api/pkg/export"
	"github.com/noah-isme/supervision-portal-api/pkg/logger"
	"github.com/noah-isme/supervision-portal-api/pkg/mailer"
	corsmiddleware "github.com/noah-isme/supervision-portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/supervision-portal-api/pkg/middleware/requestid"
	"github.com/noah-isme/supervision-portal-api/pkg/storage"
)

// @title Supervision Portal API
// @version 1.0.0
// @description Multi-tenant school-supervision portal: periodic report reconciliation, artifact lifecycle and consolidation dispatch
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, dashboard caching disabled", "error", err)
		redisClient = nil
	}

	artifactStore, err := storage.NewLocalStore(cfg.Storage.BaseDir, storage.Limits{
		AttendanceMaxBytes: cfg.Storage.AttendanceMaxBytes,
		DocumentMaxBytes:   cfg.Storage.DocumentMaxBytes,
		EvidenceMaxBytes:   cfg.Storage.EvidenceMaxBytes,
	})
	if err != nil {
		logr.Sugar().Fatalw("failed to init artifact store", "error", err)
	}
	// Consolidation exports are transient; sweep any leftovers from crashed
	// dispatches on boot.
	if removed, err := artifactStore.CleanupOlderThan(storage.CategoryExport, time.Hour); err != nil {
		logr.Sugar().Warnw("export cleanup failed", "error", err)
	} else if len(removed) > 0 {
		logr.Sugar().Infow("removed stale export artifacts", "count", len(removed))
	}

	validate := validator.New()
	signer := storage.NewSignedURLSigner(cfg.Documents.SignedURLSecret, cfg.Documents.SignedURLTTL)
	sender := mailer.NewSMTPSender(cfg.Mail)

	userRepo := repository.NewUserRepository(db)
	schoolRepo := repository.NewSchoolRepository(db)
	reportRepo := repository.NewReportRepository(db)
	eventRepo := repository.NewEventRepository(db)
	evidenceRepo := repository.NewEvidenceRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		TokenSecret: cfg.JWT.Secret,
		TokenExpiry: cfg.JWT.Expiration,
		Issuer:      cfg.JWT.Issuer,
	})
	metricsService := service.NewMetricsService()
	reportService := service.NewReportService(reportRepo, artifactStore, metricsService, logr)
	eventService := service.NewEventService(eventRepo, artifactStore, export.NewPDFExporter(), logr)
	evidenceService := service.NewEvidenceService(evidenceRepo, artifactStore, metricsService, logr)
	documentService := service.NewDocumentService(documentRepo, artifactStore, signer, metricsService, logr, service.DocumentServiceConfig{
		APIPrefix: cfg.APIPrefix,
	})
	consolidationService := service.NewConsolidationService(
		reportRepo, documentRepo, schoolRepo, artifactStore,
		export.NewWorkbookBuilder(), sender, metricsService, validate, logr)
	dashboardService := service.NewDashboardService(
		reportRepo, evidenceRepo, eventRepo, schoolRepo, cacheRepo, cfg.Dashboard.CacheTTL, logr)

	authHandler := handler.NewAuthHandler(authService)
	reportHandler := handler.NewReportHandler(reportService, consolidationService)
	eventHandler := handler.NewEventHandler(eventService)
	evidenceHandler := handler.NewEvidenceHandler(evidenceService)
	documentHandler := handler.NewDocumentHandler(documentService, consolidationService)
	fileHandler := handler.NewFileHandler(artifactStore)
	dashboardHandler := handler.NewDashboardHandler(dashboardService)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsService.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	secured := api.Group("")
	secured.Use(middleware.JWT(authService))
	{
		secured.GET("/auth/me", authHandler.Me)

		secured.GET("/reports/:family", reportHandler.List)
		secured.POST("/reports/:family", middleware.RequireRoles(models.RoleSchool), reportHandler.Upload)
		secured.DELETE("/reports/:family/:id", reportHandler.Delete)
		secured.POST("/reports/:family/send-email", middleware.RequireRoles(models.RoleAdmin), reportHandler.SendEmail)

		secured.GET("/events", eventHandler.List)
		secured.GET("/events/calendar.pdf", middleware.RequireRoles(models.RoleAdmin), eventHandler.CalendarPDF)
		secured.GET("/events/:id", eventHandler.Get)
		secured.POST("/events", middleware.RequireRoles(models.RoleAdmin), eventHandler.Create)
		secured.PUT("/events/:id", middleware.RequireRoles(models.RoleAdmin), eventHandler.Update)
		secured.DELETE("/events/:id", middleware.RequireRoles(models.RoleAdmin), eventHandler.Delete)

		secured.GET("/evidence", evidenceHandler.List)
		secured.POST("/evidence", evidenceHandler.Create)
		secured.DELETE("/evidence/:id", evidenceHandler.Delete)

		secured.GET("/documents", documentHandler.List)
		secured.POST("/documents", middleware.RequireRoles(models.RoleAdmin), documentHandler.Create)
		secured.DELETE("/documents/:id", middleware.RequireRoles(models.RoleAdmin), documentHandler.Delete)
		secured.POST("/documents/send-email", middleware.RequireRoles(models.RoleAdmin), documentHandler.SendEmail)

		secured.GET("/files/*name", fileHandler.Serve)

		if cfg.Dashboard.Enabled {
			secured.GET("/dashboard", middleware.RequireRoles(models.RoleAdmin), dashboardHandler.Overview)
		}
	}

	// Signed download links carry their own authorization.
	api.GET("/documents/:id/download", documentHandler.Download)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
