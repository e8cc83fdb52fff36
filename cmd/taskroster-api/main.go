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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	_ "github.com/noah-isme/taskroster/api/swagger"
	"github.com/noah-isme/taskroster/internal/handler"
	internalmiddleware "github.com/noah-isme/taskroster/internal/middleware"
	"github.com/noah-isme/taskroster/internal/repository"
	"github.com/noah-isme/taskroster/internal/service"
	"github.com/noah-isme/taskroster/pkg/cache"
	"github.com/noah-isme/taskroster/pkg/config"
	"github.com/noah-isme/taskroster/pkg/database"
	"github.com/noah-isme/taskroster/pkg/logger"
	corsmiddleware "github.com/noah-isme/taskroster/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/taskroster/pkg/middleware/requestid"
	"github.com/noah-isme/taskroster/pkg/storage"
	"github.com/noah-isme/taskroster/pkg/validation"
)

const cacheKeyPrefix = "taskroster:cache:"

// @title Taskroster API
// @version 1.0.0
// @description Task list and student roster service
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck
	if err := database.Migrate(ctx, db); err != nil {
		logr.Fatal("failed to migrate database", zap.Error(err))
	}

	metricsSvc := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if cfg.Redis.Enabled {
		client, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, student cache disabled", zap.Error(err))
		} else {
			defer client.Close() //nolint:errcheck
			cacheRepo = repository.NewCacheRepository(client, cacheKeyPrefix, logr)
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Students.CacheTTL, logr, cacheRepo != nil)

	validate := validation.New()
	taskRepo := repository.NewTaskRepository(db)
	studentRepo := repository.NewStudentRepository(db)

	taskSvc := service.NewTaskService(taskRepo, validate, metricsSvc, service.TaskConfig{
		SoftDelete:     cfg.Tasks.SoftDelete,
		MaxDescription: cfg.Tasks.MaxDescription,
	}, logr)
	binSvc := service.NewBinService(taskRepo, metricsSvc, cfg.Tasks.BinRetention, logr)
	studentSvc := service.NewStudentService(studentRepo, validate, cacheSvc, service.StudentConfig{
		MinAge:   cfg.Students.MinAge,
		CacheTTL: cfg.Students.CacheTTL,
	}, logr)
	bridgeSvc := service.NewBridgeService(studentRepo, cacheSvc, metricsSvc, cfg.Students.MinAge, logr)

	exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare export storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportSvc := service.NewExportService(map[string]service.ExportSource{
		"students": bridgeSvc,
		"tasks":    taskSvc,
	}, exportStore, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.TTL,
	}, logr)

	maintenanceSvc := service.NewMaintenanceService(exportSvc, binSvc, metricsSvc, service.MaintenanceConfig{
		Interval:     cfg.Maintenance.Interval,
		Workers:      cfg.Maintenance.WorkerConcurrency,
		MaxRetries:   cfg.Maintenance.WorkerRetries,
		ExportTTL:    cfg.Exports.TTL,
		BinRetention: cfg.Tasks.BinRetention,
	}, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))
	r.Use(internalmiddleware.WithResponseMeta())

	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	handler.Handlers{
		Tasks:    handler.NewTaskHandler(taskSvc),
		Bin:      handler.NewBinHandler(binSvc),
		Students: handler.NewStudentHandler(studentSvc),
		Bridge:   handler.NewBridgeHandler(bridgeSvc),
		Exports:  handler.NewExportHandler(exportSvc),
		Metrics:  metricsHandler,
	}.Register(r.Group(cfg.APIPrefix))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return maintenanceSvc.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logr.Error("server stopped with error", zap.Error(err))
		return
	}
	logr.Info("server stopped")
}
