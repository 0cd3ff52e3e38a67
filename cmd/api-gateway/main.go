package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/kendrekaran/clr-bke/api/swagger"
	"github.com/kendrekaran/clr-bke/internal/handler"
	"github.com/kendrekaran/clr-bke/internal/middleware"
	"github.com/kendrekaran/clr-bke/internal/models"
	"github.com/kendrekaran/clr-bke/internal/repository"
	"github.com/kendrekaran/clr-bke/internal/service"
	"github.com/kendrekaran/clr-bke/pkg/cache"
	"github.com/kendrekaran/clr-bke/pkg/config"
	"github.com/kendrekaran/clr-bke/pkg/database"
	"github.com/kendrekaran/clr-bke/pkg/logger"
	corsmiddleware "github.com/kendrekaran/clr-bke/pkg/middleware/cors"
	reqidmiddleware "github.com/kendrekaran/clr-bke/pkg/middleware/requestid"
)

// @title Coaching Institute API
// @version 1.0.0
// @description Batch management backend for coaching institutes
// @BasePath /api/v1
// @schemes http

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
	defer db.Close()

	var cacheRepo *repository.CacheRepository
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, summaries will not be cached", "error", err)
		} else {
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
			defer cacheRepo.Close() //nolint:errcheck
		}
	}

	validate := validator.New()

	accountRepo := repository.NewAccountRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	announcementRepo := repository.NewAnnouncementRepository(db)
	timetableRepo := repository.NewTimetableRepository(db)
	testRepo := repository.NewTestRepository(db)
	feeRepo := repository.NewFeeRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)

	authSvc := service.NewAuthService(accountRepo, validate, logr, service.AuthConfig{
		Secret:            cfg.JWT.Secret,
		TokenExpiry:       cfg.JWT.Expiration,
		PortalTokenExpiry: cfg.JWT.PortalExpiration,
		Issuer:            cfg.JWT.Issuer,
	})
	accessSvc := service.NewAccessService(batchRepo, accountRepo, logr)
	var summaryCache *service.CacheService
	if cacheRepo != nil {
		summaryCache = service.NewCacheService(cacheRepo, cfg.Cache.SummaryTTL, true, logr)
	} else {
		summaryCache = service.NewCacheService(nil, cfg.Cache.SummaryTTL, false, logr)
	}
	batchSvc := service.NewBatchService(batchRepo, accountRepo, accessSvc, validate, logr)
	announcementSvc := service.NewAnnouncementService(announcementRepo, accessSvc, validate, logr)
	timetableSvc := service.NewTimetableService(timetableRepo, accessSvc, validate, logr)
	testSvc := service.NewTestService(testRepo, accountRepo, accessSvc, validate, logr)
	feeSvc := service.NewFeeService(feeRepo, batchRepo, accessSvc, validate, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, batchRepo, summaryCache, accessSvc, validate, logr)
	exportSvc := service.NewExportService(attendanceRepo, testRepo, feeRepo, accountRepo, accessSvc, nil, nil, logr)
	metricsSvc := service.NewMetricsService()

	authHandler := handler.NewAuthHandler(authSvc)
	batchHandler := handler.NewBatchHandler(batchSvc)
	announcementHandler := handler.NewAnnouncementHandler(announcementSvc)
	timetableHandler := handler.NewTimetableHandler(timetableSvc)
	testHandler := handler.NewTestHandler(testSvc)
	feeHandler := handler.NewFeeHandler(feeSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/student/login", authHandler.StudentLogin)
		auth.POST("/parent/login", authHandler.ParentLogin)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	}

	api.GET("/metrics/snapshot", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleTeacher), metricsHandler.Snapshot)

	batches := api.Group("/batches", middleware.JWT(authSvc))
	{
		batches.POST("", middleware.RequireRoles(models.RoleTeacher), batchHandler.Create)
		batches.GET("", batchHandler.List)
		batches.POST("/join", middleware.RequireRoles(models.RoleStudent), batchHandler.Join)
		batches.GET("/:id", batchHandler.Get)
		batches.PUT("/:id", middleware.RequireRoles(models.RoleTeacher), batchHandler.Update)
		batches.DELETE("/:id", middleware.RequireRoles(models.RoleTeacher), batchHandler.Delete)
		batches.POST("/:id/students", middleware.RequireRoles(models.RoleTeacher), batchHandler.AddStudents)
		batches.DELETE("/:id/students/:studentId", middleware.RequireRoles(models.RoleTeacher), batchHandler.RemoveStudent)

		batches.GET("/:id/announcements", announcementHandler.List)
		batches.POST("/:id/announcements", middleware.RequireRoles(models.RoleTeacher), announcementHandler.Create)
		batches.PUT("/:id/announcements/:announcementId", middleware.RequireRoles(models.RoleTeacher), announcementHandler.Update)
		batches.DELETE("/:id/announcements/:announcementId", middleware.RequireRoles(models.RoleTeacher), announcementHandler.Delete)

		batches.GET("/:id/timetable", timetableHandler.GetWeek)
		batches.GET("/:id/timetable/:day", timetableHandler.GetDay)
		batches.PUT("/:id/timetable/:day", middleware.RequireRoles(models.RoleTeacher), timetableHandler.SetDay)
		batches.DELETE("/:id/timetable/:day", middleware.RequireRoles(models.RoleTeacher), timetableHandler.ClearDay)
		batches.POST("/:id/timetable/:day/slots", middleware.RequireRoles(models.RoleTeacher), timetableHandler.UpsertSlot)
		batches.DELETE("/:id/timetable/:day/slots/:hour", middleware.RequireRoles(models.RoleTeacher), timetableHandler.DeleteSlot)

		batches.GET("/:id/tests", testHandler.List)
		batches.POST("/:id/tests", middleware.RequireRoles(models.RoleTeacher), testHandler.Create)
		batches.GET("/:id/tests/:testId", testHandler.Get)
		batches.DELETE("/:id/tests/:testId", middleware.RequireRoles(models.RoleTeacher), testHandler.Delete)
		batches.PUT("/:id/tests/:testId/marks", middleware.RequireRoles(models.RoleTeacher), testHandler.RecordMarks)

		batches.GET("/:id/fees", middleware.RequireRoles(models.RoleTeacher), feeHandler.List)
		batches.POST("/:id/fees", middleware.RequireRoles(models.RoleTeacher), feeHandler.Record)
		batches.GET("/:id/fees/payment", feeHandler.Get)

		batches.GET("/:id/attendance", attendanceHandler.Query)
		batches.POST("/:id/attendance", middleware.RequireRoles(models.RoleTeacher), attendanceHandler.Mark)
		batches.PUT("/:id/attendance/:attendanceId", middleware.RequireRoles(models.RoleTeacher), attendanceHandler.Update)
		batches.GET("/:id/attendance/summary", attendanceHandler.Summary)

		if cfg.Exports.Enabled {
			exports := batches.Group("/:id/exports", middleware.RequireRoles(models.RoleTeacher))
			exports.GET("/attendance", exportHandler.AttendanceRegister)
			exports.GET("/tests/:testId", exportHandler.TestMarksheet)
			exports.GET("/fees/:studentId", exportHandler.FeeReceipt)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
