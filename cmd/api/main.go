package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/classtrack/classtrack-api/api/swagger"
	"github.com/classtrack/classtrack-api/internal/handler"
	"github.com/classtrack/classtrack-api/internal/middleware"
	"github.com/classtrack/classtrack-api/internal/repository"
	"github.com/classtrack/classtrack-api/internal/service"
	"github.com/classtrack/classtrack-api/pkg/cache"
	"github.com/classtrack/classtrack-api/pkg/config"
	"github.com/classtrack/classtrack-api/pkg/database"
	"github.com/classtrack/classtrack-api/pkg/jobs"
	"github.com/classtrack/classtrack-api/pkg/logger"
	corsmiddleware "github.com/classtrack/classtrack-api/pkg/middleware/cors"
	reqidmiddleware "github.com/classtrack/classtrack-api/pkg/middleware/requestid"
	"github.com/classtrack/classtrack-api/pkg/storage"
)

// @title ClassTrack API
// @version 1.0.0
// @description Classroom attendance tracking service
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
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
			redisClient = nil
		}
	}

	localStore, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init report storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)

	// repositories
	studentRepo := repository.NewStudentRepository(db)
	classroomRepo := repository.NewClassroomRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	statsRepo := repository.NewStatsRepository(db)
	reportJobRepo := repository.NewReportJobRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient)

	// services
	metricsSvc := service.NewMetricsService()
	metricsSvc.RegisterDBStats(db)
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Stats.CacheTTL, logr, cfg.Redis.Enabled && redisClient != nil)
	studentSvc := service.NewStudentService(studentRepo, nil, logr)
	classroomSvc := service.NewClassroomService(classroomRepo, nil, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, studentRepo, classroomRepo, nil, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, cacheSvc, metricsSvc, nil, logr)
	statsSvc := service.NewStatsService(statsRepo, cacheSvc, logr)
	reportSvc := service.NewReportService(reportJobRepo, classroomRepo, attendanceRepo, localStore, signer, metricsSvc, nil, logr)

	queue := jobs.NewQueue("reports", reportSvc.ProcessJob, jobs.Options{
		Workers:    cfg.Reports.WorkerConcurrency,
		MaxRetries: cfg.Reports.WorkerRetries,
		Logger:     logr,
	})
	reportSvc.AttachQueue(queue)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	queue.Start(ctx)
	defer queue.Stop()

	// Expired report files are unreachable once their signed URL lapses,
	// so sweep anything older than the URL TTL.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := localStore.CleanupOlderThan(cfg.Reports.SignedURLTTL)
				if err != nil {
					logr.Sugar().Warnw("report cleanup failed", "error", err)
				} else if len(removed) > 0 {
					logr.Sugar().Infow("removed expired report files", "count", len(removed))
				}
			}
		}
	}()

	// handlers
	studentHandler := handler.NewStudentHandler(studentSvc, attendanceSvc)
	classroomHandler := handler.NewClassroomHandler(classroomSvc, enrollmentSvc, attendanceSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc, statsSvc)
	statsHandler := handler.NewStatsHandler(statsSvc)
	reportHandler := handler.NewReportHandler(reportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, db, redisClient)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		students := api.Group("/students")
		{
			students.GET("", studentHandler.List)
			students.POST("", studentHandler.Create)
			students.GET("/:id", studentHandler.Get)
			students.PUT("/:id", studentHandler.Update)
			students.DELETE("/:id", studentHandler.Delete)
			students.GET("/:id/attendance", studentHandler.Attendance)
		}

		classrooms := api.Group("/classrooms")
		{
			classrooms.GET("", classroomHandler.List)
			classrooms.POST("", classroomHandler.Create)
			classrooms.GET("/:id", classroomHandler.Get)
			classrooms.PUT("/:id", classroomHandler.Update)
			classrooms.DELETE("/:id", classroomHandler.Delete)
			classrooms.GET("/:id/enrollments", classroomHandler.Enrollments)
			classrooms.GET("/:id/attendance", classroomHandler.Attendance)
		}

		enrollments := api.Group("/enrollments")
		{
			enrollments.GET("", enrollmentHandler.List)
			enrollments.POST("", enrollmentHandler.Create)
			enrollments.DELETE("", enrollmentHandler.Delete)
			enrollments.GET("/:id", enrollmentHandler.Get)
		}

		attendance := api.Group("/attendance")
		{
			attendance.GET("", attendanceHandler.List)
			attendance.POST("", attendanceHandler.Record)
			attendance.POST("/batch", attendanceHandler.RecordBatch)
			attendance.GET("/:id", attendanceHandler.Get)
			attendance.PUT("/:id", attendanceHandler.Update)
			attendance.DELETE("/:id", attendanceHandler.Delete)
			attendance.POST("/:id/mark-permission", attendanceHandler.MarkPermission)
			attendance.POST("/:id/consolidate", attendanceHandler.Consolidate)
		}

		stats := api.Group("/stats")
		{
			stats.GET("", statsHandler.List)
			stats.GET("/:studentId", statsHandler.Get)
		}

		reports := api.Group("/reports")
		{
			reports.POST("", reportHandler.Create)
			reports.GET("/:id", reportHandler.Status)
			reports.GET("/download/:token", reportHandler.Download)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
