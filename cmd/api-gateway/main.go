package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/campuskit/timetable-api/api/swagger"
	"github.com/campuskit/timetable-api/internal/handler"
	"github.com/campuskit/timetable-api/internal/middleware"
	"github.com/campuskit/timetable-api/internal/models"
	"github.com/campuskit/timetable-api/internal/repository"
	"github.com/campuskit/timetable-api/internal/service"
	"github.com/campuskit/timetable-api/pkg/cache"
	"github.com/campuskit/timetable-api/pkg/config"
	"github.com/campuskit/timetable-api/pkg/database"
	"github.com/campuskit/timetable-api/pkg/logger"
	corsmiddleware "github.com/campuskit/timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campuskit/timetable-api/pkg/middleware/requestid"
)

// @title CampusKit Timetable API
// @version 1.0.0
// @description Timetable scheduling, conflict detection and bulk operations for college batches
// @BasePath /
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if cfg.Calendar.CacheEnabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, calendar cache disabled", "error", err)
		} else {
			defer redisClient.Close()
			cacheRepo := repository.NewCacheRepository(redisClient)
			cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Calendar.CacheTTL, logr, true)
		}
	}

	validate := validator.New()

	entryRepo := repository.NewTimetableEntryRepository(db)
	calendarRepo := repository.NewCalendarRepository(db)
	templateRepo := repository.NewTemplateRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	facultyRepo := repository.NewFacultyRepository(db)
	timeSlotRepo := repository.NewTimeSlotRepository(db)
	bulkOpRepo := repository.NewBulkOperationRepository(db)
	undoRepo := repository.NewUndoRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	userRepo := repository.NewUserRepository(db)

	refSvc := service.NewReferenceService(batchRepo, subjectRepo, facultyRepo, timeSlotRepo)
	undoSvc := service.NewUndoService(undoRepo, entryRepo, calendarRepo, metricsSvc, cfg.Undo.TTLCap, logr)
	calendarSvc := service.NewCalendarService(calendarRepo, batchRepo, cacheSvc, undoSvc, validate, logr)
	conflictSvc := service.NewConflictService(entryRepo, calendarSvc, metricsSvc, logr)
	recurrenceSvc := service.NewRecurrenceService(timeSlotRepo, calendarSvc, cfg.Generator.IterationCap, logr)

	undoTTL := cfg.Undo.TTLCap
	entrySvc := service.NewEntryService(entryRepo, refSvc, conflictSvc, undoSvc, auditRepo, validate, undoTTL, logr)
	templateSvc := service.NewTemplateService(templateRepo, refSvc, recurrenceSvc, conflictSvc, auditRepo, validate, logr)
	timeSlotSvc := service.NewTimeSlotService(timeSlotRepo, validate, logr)
	bulkSvc := service.NewBulkOpService(
		entryRepo, bulkOpRepo, templateRepo, subjectRepo, refSvc,
		conflictSvc, recurrenceSvc, calendarSvc, undoSvc, auditRepo,
		metricsSvc, validate, cfg.BulkOps, undoTTL, logr,
	)
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            "timetable-api",
	})

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := bulkSvc.RecoverStranded(rootCtx); err != nil {
		logr.Sugar().Warnw("stranded bulk operation recovery failed", "error", err)
	}
	bulkSvc.Start(rootCtx)
	defer bulkSvc.Stop()
	undoSvc.StartSweeper(rootCtx, cfg.Undo.SweepInterval)

	authHandler := handler.NewAuthHandler(authSvc)
	timetableHandler := handler.NewTimetableHandler(entrySvc)
	calendarHandler := handler.NewCalendarHandler(calendarSvc, undoTTL)
	templateHandler := handler.NewTemplateHandler(templateSvc)
	timeSlotHandler := handler.NewTimeSlotHandler(timeSlotSvc)
	bulkHandler := handler.NewBulkOpHandler(bulkSvc)
	undoHandler := handler.NewUndoHandler(undoSvc)

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
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))
	authed.GET("/auth/me", authHandler.Me)

	staff := authed.Group("")
	staff.Use(middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin))

	authed.GET("/timetable/entries", timetableHandler.List)
	authed.GET("/timetable/entries/:id", timetableHandler.Get)
	staff.POST("/timetable/entries", timetableHandler.Create)
	staff.POST("/timetable/entries/validate", timetableHandler.Validate)
	staff.PATCH("/timetable/entries/:id", timetableHandler.Update)
	staff.DELETE("/timetable/entries/:id", timetableHandler.Delete)

	authed.GET("/calendar/holidays", calendarHandler.ListHolidays)
	staff.POST("/calendar/holidays", calendarHandler.CreateHoliday)
	staff.DELETE("/calendar/holidays/:id", calendarHandler.DeleteHoliday)
	authed.GET("/calendar/exam-periods", calendarHandler.ListExamPeriods)
	staff.POST("/calendar/exam-periods", calendarHandler.CreateExamPeriod)

	authed.GET("/timetable/templates", templateHandler.List)
	authed.GET("/timetable/templates/:id", templateHandler.Get)
	authed.GET("/timetable/templates/:id/preview", templateHandler.Preview)
	staff.POST("/timetable/templates", templateHandler.Create)
	staff.DELETE("/timetable/templates/:id", templateHandler.Delete)

	authed.GET("/time-slots", timeSlotHandler.List)
	authed.GET("/time-slots/:id", timeSlotHandler.Get)
	staff.POST("/time-slots", timeSlotHandler.Create)
	staff.DELETE("/time-slots/:id", timeSlotHandler.Delete)

	staff.POST("/timetable/bulk/clone", bulkHandler.Clone)
	staff.POST("/timetable/bulk/faculty-replace", bulkHandler.FacultyReplace)
	staff.POST("/timetable/bulk/reschedule", bulkHandler.Reschedule)
	staff.POST("/timetable/bulk/apply-template", bulkHandler.TemplateApply)
	staff.GET("/timetable/bulk/operations", bulkHandler.ListOperations)
	staff.GET("/timetable/bulk/operations/:id", bulkHandler.GetOperation)
	staff.POST("/timetable/bulk/operations/:id/cancel", bulkHandler.Cancel)

	staff.POST("/undo/:id", undoHandler.Undo)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	logr.Sugar().Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
