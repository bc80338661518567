package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appcategorization "github.com/curricula/backend/internal/application/categorization"
	appcoverage "github.com/curricula/backend/internal/application/coverage"
	"github.com/curricula/backend/internal/application/mapping"
	appstandards "github.com/curricula/backend/internal/application/standards"
	"github.com/curricula/backend/internal/domain/shared"
	"github.com/curricula/backend/internal/infrastructure/cache"
	"github.com/curricula/backend/internal/infrastructure/config"
	infracoverage "github.com/curricula/backend/internal/infrastructure/coverage"
	"github.com/curricula/backend/internal/infrastructure/event"
	"github.com/curricula/backend/internal/infrastructure/llm"
	"github.com/curricula/backend/internal/infrastructure/logger"
	"github.com/curricula/backend/internal/infrastructure/persistence"
	"github.com/curricula/backend/internal/infrastructure/scheduler"
	"github.com/curricula/backend/internal/infrastructure/telemetry"
	"github.com/curricula/backend/internal/interfaces/http/handler"
	"github.com/curricula/backend/internal/interfaces/http/middleware"
	"github.com/curricula/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logCfg := &logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}

	// Bootstrap logger for telemetry setup; replaced once the OTel log
	// bridge is available
	bootLog, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	providers, err := telemetry.Setup(context.Background(), cfg.Telemetry, bootLog, telemetry.WithServiceVersion(version))
	if err != nil {
		bootLog.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(ctx); err != nil {
			bootLog.Error("Error shutting down telemetry", zap.Error(err))
		}
	}()

	otelCore := telemetry.NewZapOTELCore(providers.Logs, cfg.Telemetry.ServiceName, zapcore.InfoLevel)
	log, err := logger.New(logCfg, otelCore)
	if err != nil {
		bootLog.Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting curricula backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	// Database with zap-backed GORM logger and tracing plugin
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabase(&cfg.Database, persistence.WithGormLogger(gormLog))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := telemetry.NewDBTracingPlugin(cfg.Telemetry, log).Register(db.DB); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	log.Info("Database connected successfully")

	// Redis is optional; without it coverage and idempotency stay in memory
	var redisClient redis.UniversalClient
	if cfg.Redis.Enabled {
		client, err := cache.NewRedisClient(context.Background(), cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer func() {
			if err := client.Close(); err != nil {
				log.Error("Error closing Redis client", zap.Error(err))
			}
		}()
		redisClient = client
		log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))
	}

	// Repositories
	frameworkRepo := persistence.NewGormFrameworkRepository(db.DB)
	objectiveRepo := persistence.NewGormObjectiveRepository(db.DB)
	itemRepo := persistence.NewGormContentItemRepository(db.DB)
	mappingRepo := persistence.NewGormContentMappingRepository(db.DB)
	jobRepo := persistence.NewGormCategorizationJobRepository(db.DB)

	// Metrics
	meter := providers.Meter.Meter("curricula-backend")
	categorizationMetrics, err := telemetry.NewCategorizationMetrics(meter)
	if err != nil {
		log.Fatal("Failed to create categorization metrics", zap.Error(err))
	}

	// Event bus; the metrics recorder consumes job events at most once
	eventBus := event.NewAsyncEventBus(log)
	idempotencyStore := cache.NewIdempotencyStore(redisClient, log)
	defer func() {
		if err := idempotencyStore.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}()
	metricsHandler := event.NewIdempotentHandler("categorization-metrics", categorizationMetrics, idempotencyStore,
		shared.IdempotencyConfig{Enabled: cfg.Event.IdempotencyEnabled, TTL: cfg.Event.IdempotencyTTL}, log)
	eventBus.Subscribe(metricsHandler)
	log.Info("Event handlers registered", zap.Strings("categorization_metrics_events", metricsHandler.EventTypes()))

	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Coverage read model
	coverageStore, err := infracoverage.NewStore(cfg.Coverage, redisClient)
	if err != nil {
		log.Fatal("Failed to create coverage store", zap.Error(err))
	}
	coverageService := appcoverage.NewService(coverageStore, frameworkRepo, objectiveRepo, mappingRepo, log,
		appcoverage.WithMetrics(categorizationMetrics))

	// Categorization engine
	categorizer, err := llm.NewCategorizer(cfg.LLM, log)
	if err != nil {
		log.Fatal("Failed to create categorizer", zap.Error(err))
	}
	registry := appcategorization.NewJobRegistry()
	aggregator := mapping.NewAggregator(mappingRepo, coverageService, cfg.Categorization.ConfidenceThreshold, log)
	engine := appcategorization.NewEngine(appcategorization.EngineDeps{
		Frameworks:  frameworkRepo,
		Objectives:  objectiveRepo,
		Items:       itemRepo,
		Jobs:        jobRepo,
		Categorizer: categorizer,
		Mapper:      aggregator,
		Coverage:    coverageService,
		Publisher:   eventBus,
		Registry:    registry,
		Metrics:     categorizationMetrics,
	}, appcategorization.EngineConfig{
		Concurrency:        cfg.Categorization.Concurrency,
		MaxConcurrentJobs:  cfg.Categorization.MaxConcurrentJobs,
		MaxAttempts:        cfg.Categorization.MaxAttempts,
		BaseBackoff:        cfg.Categorization.BaseBackoff,
		MaxBackoff:         cfg.Categorization.MaxBackoff,
		PersistenceRetries: cfg.Categorization.PersistenceRetries,
		JobTimeout:         cfg.Categorization.JobTimeout,
		CheckpointInterval: time.Second,
	}, log)

	// Jobs a previous process left active are never resumed
	if n, err := engine.RecoverInterrupted(context.Background()); err != nil {
		log.Error("Failed to recover interrupted jobs", zap.Error(err))
	} else if n > 0 {
		log.Warn("Abandoned interrupted categorization jobs", zap.Int("jobs", n))
	}

	if cfg.Coverage.WarmUp {
		warmCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		n, err := coverageService.WarmUp(warmCtx)
		cancel()
		if err != nil {
			log.Error("Coverage warm-up incomplete", zap.Int("frameworks", n), zap.Error(err))
		} else {
			log.Info("Coverage warmed up", zap.Int("frameworks", n))
		}
	}

	// Application services
	jobService := appcategorization.NewJobService(jobRepo, registry, engine, eventBus, cfg.Categorization.MaxItemsPerJob, log)
	standardsService := appstandards.NewService(frameworkRepo, objectiveRepo, eventBus, log,
		appstandards.WithDefaultLocale(cfg.App.Locale))
	curator := mapping.NewCurator(frameworkRepo, objectiveRepo, itemRepo, mappingRepo, coverageService, log)

	// Maintenance schedule
	if cfg.Maintenance.Enabled {
		maintenance, err := scheduler.NewMaintenance(cfg.Maintenance, log)
		if err != nil {
			log.Fatal("Failed to create maintenance scheduler", zap.Error(err))
		}
		if err := scheduler.RegisterMaintenanceTasks(maintenance, cfg.Maintenance, scheduler.Tasks{
			Cleaner:    jobService,
			Reconciler: coverageService,
			Sweeper:    engine,
		}, log); err != nil {
			log.Fatal("Failed to register maintenance tasks", zap.Error(err))
		}
		if err := maintenance.Start(context.Background()); err != nil {
			log.Fatal("Failed to start maintenance scheduler", zap.Error(err))
		}
		defer func() {
			if err := maintenance.Stop(context.Background()); err != nil {
				log.Error("Error stopping maintenance scheduler", zap.Error(err))
			}
		}()
		log.Info("Maintenance scheduler started", zap.Int("tasks", len(maintenance.Tasks())))
	}

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	ginEngine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := ginEngine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Tracing - Server span per request, errors marked on the span
	// 4. Logger - Log requests with trace correlation
	// 5. Metrics - Request count, latency and in-flight gauge
	// 6. Security, CORS, BodyLimit
	ginEngine.Use(middleware.RequestID())
	ginEngine.Use(logger.Recovery(log))
	ginEngine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	ginEngine.Use(middleware.SpanErrorMarker())
	ginEngine.Use(logger.GinMiddleware(log))
	ginEngine.Use(middleware.HTTPMetrics(meter, log))
	secureCfg := middleware.DefaultSecurityConfig()
	secureCfg.HSTSEnabled = cfg.HTTP.HSTS
	ginEngine.Use(middleware.SecureWithConfig(secureCfg))
	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.HTTP.CORSOrigins
	ginEngine.Use(middleware.CORSWithConfig(corsCfg))
	ginEngine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Health and system info (outside API versioning, no tenant)
	systemHandler := handler.NewSystemHandler(cfg.App.Name, version, db, registry)
	ginEngine.GET("/health", systemHandler.Health)
	ginEngine.GET("/system/info", systemHandler.GetSystemInfo)

	// Tenant-scoped API
	tenantCfg := middleware.DefaultTenantConfig()
	tenantCfg.Logger = log
	router.NewRouter(ginEngine, router.WithAPIVersion("v1")).
		Use(middleware.TenantMiddlewareWithConfig(tenantCfg), middleware.TracingAttributeInjector()).
		Register(router.Routes(router.Handlers{
			Categorization: handler.NewCategorizationHandler(jobService),
			Coverage:       handler.NewCoverageHandler(coverageService),
			Standards:      handler.NewStandardsHandler(standardsService),
			Content:        handler.NewContentHandler(curator),
		})...).
		Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        ginEngine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown: stop taking requests, then let running jobs record
	// their in-flight items
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	engineCtx, engineCancel := context.WithTimeout(context.Background(), cfg.Categorization.ShutdownTimeout)
	defer engineCancel()
	if err := engine.Shutdown(engineCtx); err != nil {
		log.Warn("Categorization engine did not drain in time", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
