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
	"go.uber.org/zap"

	_ "github.com/editaliza/editaliza-api/api/swagger"
	"github.com/editaliza/editaliza-api/internal/handler"
	"github.com/editaliza/editaliza-api/internal/jobs"
	"github.com/editaliza/editaliza-api/internal/middleware"
	"github.com/editaliza/editaliza-api/internal/repository"
	"github.com/editaliza/editaliza-api/internal/service"
	"github.com/editaliza/editaliza-api/pkg/cache"
	"github.com/editaliza/editaliza-api/pkg/config"
	"github.com/editaliza/editaliza-api/pkg/database"
	"github.com/editaliza/editaliza-api/pkg/logger"
	corsmiddleware "github.com/editaliza/editaliza-api/pkg/middleware/cors"
	reqidmiddleware "github.com/editaliza/editaliza-api/pkg/middleware/requestid"
)

// @title Editaliza API
// @version 1.0.0
// @description Study schedule generation for competitive exam preparation
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(db.DB, logr); err != nil {
			logr.Sugar().Fatalw("failed to run migrations", "error", err)
		}
	}

	metricsSvc := service.NewMetricsService()

	cacheRepo := repository.NewCacheRepository(nil, logr, metricsSvc)
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			cacheRepo = repository.NewCacheRepository(redisClient, logr, metricsSvc)
		}
	}

	location, err := time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		logr.Sugar().Warnw("unknown schedule timezone, falling back to UTC",
			"timezone", cfg.Schedule.Timezone, "error", err)
		location = time.UTC
	}

	userRepo := repository.NewUserRepository(db)
	planRepo := repository.NewPlanRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	topicRepo := repository.NewTopicRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	exclusionRepo := repository.NewExclusionRepository(db)
	statsRepo := repository.NewStatisticsRepository(db)

	validate := validator.New()

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "editaliza-api",
	})
	planSvc := service.NewPlanService(planRepo, cacheRepo, validate, logr, location)
	subjectSvc := service.NewSubjectService(subjectRepo, planRepo, cacheRepo, validate, logr)
	topicSvc := service.NewTopicService(topicRepo, subjectRepo, planRepo, cacheRepo, validate, logr)
	sessionSvc := service.NewSessionService(sessionRepo, planRepo, topicRepo, cacheRepo, cfg.Cache.ScheduleTTL, validate, logr, location)
	generatorSvc := service.NewScheduleGeneratorService(planRepo, topicRepo, sessionRepo, exclusionRepo, db, cacheRepo, metricsSvc, logr, service.ScheduleGeneratorConfig{
		Location:        location,
		SessionDuration: cfg.Schedule.DefaultSessionMinutes,
		MockCadenceDays: cfg.Schedule.MockCadenceDays,
		Timeout:         cfg.Schedule.GenerationTimeout,
	})
	statsSvc := service.NewStatisticsService(statsRepo, planRepo, cacheRepo, cfg.Cache.StatisticsTTL, logr, location)
	exportSvc := service.NewExportService(sessionRepo, planRepo, logr, nil, nil, nil)

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

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r, cfg.APIPrefix, handler.Handlers{
		Auth:       handler.NewAuthHandler(authSvc),
		Plans:      handler.NewPlanHandler(planSvc),
		Subjects:   handler.NewSubjectHandler(subjectSvc),
		Topics:     handler.NewTopicHandler(topicSvc),
		Schedule:   handler.NewScheduleHandler(generatorSvc, sessionSvc),
		Sessions:   handler.NewSessionHandler(sessionSvc),
		Statistics: handler.NewStatisticsHandler(statsSvc),
		Exports:    handler.NewExportHandler(exportSvc),
		Metrics:    handler.NewMetricsHandler(metricsSvc),
	}, authSvc, handler.RouteOptions{ExportsEnabled: cfg.Exports.Enabled})

	var jobManager *jobs.Manager
	if cfg.Jobs.Enabled {
		jobManager = jobs.NewManager(sessionRepo, location, logr)
		if err := jobManager.Start(jobs.Config{OverdueSweepSpec: cfg.Jobs.OverdueSweepSpec}); err != nil {
			logr.Sugar().Fatalw("failed to start maintenance jobs", "error", err)
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	if jobManager != nil {
		jobManager.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("forced shutdown", zap.Error(err))
	}
	logr.Info("server stopped")
}
