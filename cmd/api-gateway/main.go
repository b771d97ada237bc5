package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/reimbursement-portal-api/api/swagger"
	"github.com/noah-isme/reimbursement-portal-api/internal/handler"
	"github.com/noah-isme/reimbursement-portal-api/internal/middleware"
	"github.com/noah-isme/reimbursement-portal-api/internal/models"
	"github.com/noah-isme/reimbursement-portal-api/internal/repository"
	"github.com/noah-isme/reimbursement-portal-api/internal/service"
	"github.com/noah-isme/reimbursement-portal-api/pkg/cache"
	"github.com/noah-isme/reimbursement-portal-api/pkg/config"
	"github.com/noah-isme/reimbursement-portal-api/pkg/database"
	"github.com/noah-isme/reimbursement-portal-api/pkg/export"
	"github.com/noah-isme/reimbursement-portal-api/pkg/logger"
	"github.com/noah-isme/reimbursement-portal-api/pkg/mailer"
	corsmiddleware "github.com/noah-isme/reimbursement-portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/reimbursement-portal-api/pkg/middleware/requestid"
	"github.com/noah-isme/reimbursement-portal-api/pkg/storage"
)

// @title Reimbursement Portal API
// @version 1.0.0
// @description Student competition reimbursement requests: submission, review and notification.
// @BasePath /api/v1
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(context.Background(), cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(context.Background(), db); err != nil {
			logr.Fatal("failed to migrate schema", zap.Error(err))
		}
		logr.Info("schema migrated")
	}

	metrics := service.NewMetricsService()
	readiness := map[string]handler.Pinger{"postgres": db}

	var cacheRepo service.CacheRepository
	if cfg.Cache.Enabled {
		client, err := cache.NewRedis(context.Background(), cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, request cache disabled", zap.Error(err))
		} else {
			defer client.Close() //nolint:errcheck
			cacheRepo = repository.NewCacheRepository(client, logr)
			readiness["redis"] = client
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr)

	files, err := storage.NewLocalStorage(cfg.Uploads.Dir)
	if err != nil {
		logr.Fatal("failed to prepare upload directory", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Attachments.Secret, cfg.Attachments.TTL)
	attachments := service.NewAttachmentService(files, signer, logr, service.AttachmentServiceConfig{
		MaxFileSize:  cfg.Uploads.MaxFileSizeBytes,
		AllowedMIMEs: cfg.Uploads.AllowedMIMEs,
		APIPrefix:    cfg.APIPrefix,
	})

	smtp := mailer.NewSMTPMailer(cfg.SMTP)
	if !smtp.Configured() {
		logr.Warn("smtp not configured, notification emails will fail")
	}
	notifier := service.NewNotificationService(smtp, attachments, metrics, logr, service.NotificationConfig{
		PortalName:      cfg.Portal.Name,
		TeamName:        cfg.Portal.TeamName,
		ContactName:     cfg.Portal.ContactName,
		ContactPhone:    cfg.Portal.ContactPhone,
		ContactEmail:    cfg.Portal.ContactEmail,
		OfficeDesk:      cfg.Portal.OfficeDesk,
		UndertakingPath: cfg.Forms.UndertakingPath,
	})

	validate := validator.New()
	requestRepo := repository.NewRequestRepository(db)
	requests := service.NewRequestService(service.RequestServiceDeps{
		Store:       requestRepo,
		CaseNumbers: service.NewCaseNumberAllocator(repository.NewSequenceRepository(db), nil),
		Attachments: attachments,
		Renderer:    export.NewRequestFormRenderer(cfg.Forms.InstitutionName, cfg.Forms.InstitutionCode, nil),
		Notifier:    notifier,
		Cache:       cacheSvc,
		Metrics:     metrics,
		Validator:   validate,
		Logger:      logr,
	})
	exports := service.NewExportService(requests, logr, nil, nil, nil)

	authSvc := service.NewAuthService(repository.NewUserRepository(db), validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.WithResponseMeta())

	metricsHandler := handler.NewMetricsHandler(metrics, readiness)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r.Group(cfg.APIPrefix), routeHandlers{
		requests:    handler.NewRequestHandler(requests, attachments, exports, logr),
		attachments: handler.NewAttachmentHandler(attachments),
		auth:        handler.NewAuthHandler(authSvc),
		tokens:      authSvc,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	<-done

	logr.Info("shutdown signal received")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}

type routeHandlers struct {
	requests    *handler.RequestHandler
	attachments *handler.AttachmentHandler
	auth        *handler.AuthHandler
	tokens      middleware.TokenValidator
}

func registerRoutes(api *gin.RouterGroup, h routeHandlers) {
	requireJWT := middleware.JWT(h.tokens)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	auth := api.Group("/auth")
	auth.POST("/signup", h.auth.Signup)
	auth.POST("/login", h.auth.Login)
	auth.POST("/admin/login", h.auth.AdminLogin)
	auth.GET("/verify", requireJWT, h.auth.Verify)

	requests := api.Group("/student-requests")
	requests.POST("", h.requests.Create)
	requests.GET("/all", requireJWT, adminOnly, h.requests.ListAll)
	requests.GET("/export", requireJWT, adminOnly, h.requests.Export)
	requests.GET("/status/:status", requireJWT, adminOnly, h.requests.ListByStatus)
	requests.GET("/:caseNumber", h.requests.Get)
	requests.PATCH("/:caseNumber/status", requireJWT, adminOnly, h.requests.UpdateStatus)
	requests.GET("/:caseNumber/attachments/:key/url", requireJWT, adminOnly, h.requests.AttachmentURL)

	api.GET("/attachments/download", h.attachments.Download)
}
