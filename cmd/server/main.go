package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	eventapp "github.com/erp/manufacturing/internal/application/event"
	mfgapp "github.com/erp/manufacturing/internal/application/manufacturing"
	"github.com/erp/manufacturing/internal/domain/manufacturing"
	"github.com/erp/manufacturing/internal/domain/shared"
	"github.com/erp/manufacturing/internal/infrastructure/cache"
	"github.com/erp/manufacturing/internal/infrastructure/config"
	"github.com/erp/manufacturing/internal/infrastructure/event"
	"github.com/erp/manufacturing/internal/infrastructure/logger"
	"github.com/erp/manufacturing/internal/infrastructure/persistence"
	"github.com/erp/manufacturing/internal/infrastructure/telemetry"
	"github.com/erp/manufacturing/internal/interfaces/http/handler"
	"github.com/erp/manufacturing/internal/interfaces/http/middleware"
	"github.com/erp/manufacturing/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting manufacturing service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// GORM logs through the same zap logger as the rest of the service
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))

	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connection established")

	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:             cfg.Profiler.Enabled,
		ServerAddress:       cfg.Profiler.ServerAddress,
		ApplicationName:     cfg.Telemetry.ServiceName,
		ProfileCPU:          true,
		ProfileAllocObjects: true,
		ProfileAllocSpace:   true,
		ProfileInuseObjects: true,
		ProfileInuseSpace:   true,
		ProfileGoroutines:   true,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize profiler", zap.Error(err))
	}
	defer func() {
		if err := profiler.Stop(); err != nil {
			log.Error("Error stopping profiler", zap.Error(err))
		}
	}()

	meterProvider, err := telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		if err := meterProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()

	// Bridge zap logs to the OTEL collector when telemetry is enabled
	if cfg.Telemetry.Enabled {
		loggerProvider, err := telemetry.NewLoggerProvider(context.Background(), telemetry.LogsConfig{
			Enabled:           true,
			CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
			ServiceName:       cfg.Telemetry.ServiceName,
			Insecure:          cfg.Telemetry.Insecure,
		}, log)
		if err != nil {
			log.Fatal("Failed to initialize logger provider", zap.Error(err))
		}
		defer func() {
			if err := loggerProvider.Shutdown(context.Background()); err != nil {
				log.Error("Error shutting down logger provider", zap.Error(err))
			}
		}()
		otelCore := telemetry.NewZapOTELCore(telemetry.ZapBridgeConfig{
			ServiceName:    cfg.Telemetry.ServiceName,
			LoggerProvider: loggerProvider,
			Level:          zapcore.InfoLevel,
		})
		log = telemetry.NewBridgedLogger(log.Core(), otelCore)
	}

	// Instrument GORM with tracing and metrics when telemetry is enabled
	if cfg.Telemetry.Enabled {
		tracingCfg := telemetry.DefaultDBTracingConfig()
		tracingCfg.Enabled = true
		if err := telemetry.NewDBTracingPlugin(tracingCfg, log).RegisterOtelGorm(db.DB); err != nil {
			log.Warn("Failed to register database tracing", zap.Error(err))
		}
		dbMetrics, err := telemetry.RegisterDBMetrics(db.DB, meterProvider, telemetry.DefaultDBMetricsConfig(), log)
		if err != nil {
			log.Warn("Failed to register database metrics", zap.Error(err))
		} else if dbMetrics != nil {
			dbMetrics.StartPoolStatsCollection(context.Background())
			defer dbMetrics.Stop()
		}
	}

	formulaRepo := persistence.NewGormFormulaRepository(db.DB)
	processRepo := persistence.NewGormProcessRepository(db.DB)
	stockLedger := persistence.NewGormStockLedger(db.DB)
	referenceCatalog := persistence.NewGormReferenceCatalog(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB)
	outboxRepo := event.NewGormOutboxRepository(db.DB)

	eventSerializer := event.NewEventSerializer()
	event.RegisterAllEvents(eventSerializer)

	// Repositories that commit domain changes write the resulting events into
	// the outbox inside the same transaction
	outboxPublisher := event.NewOutboxPublisher(eventSerializer)
	processRepo.SetOutboxEventSaver(outboxPublisher)
	txScope.SetOutboxEventSaver(outboxPublisher)

	eventBus := event.NewInMemoryEventBus(log)
	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// The processor drains outbox_entries onto the bus, so events survive a
	// crash between commit and publish
	outboxProcessorConfig := event.DefaultOutboxProcessorConfig()
	outboxProcessor := event.NewOutboxProcessor(outboxRepo, eventBus, eventSerializer, outboxProcessorConfig, log)
	if err := outboxProcessor.Start(context.Background()); err != nil {
		log.Fatal("Failed to start outbox processor", zap.Error(err))
	}
	defer func() {
		if err := outboxProcessor.Stop(context.Background()); err != nil {
			log.Error("Error stopping outbox processor", zap.Error(err))
		}
	}()
	formulaService := mfgapp.NewFormulaService(formulaRepo, referenceCatalog, referenceCatalog)
	formulaService.SetEfficiencyBounds(manufacturing.EfficiencyBounds{
		Min: decimal.NewFromFloat(cfg.Manufacturing.MinEfficiency),
		Max: decimal.NewFromFloat(cfg.Manufacturing.MaxEfficiency),
	})
	formulaService.SetEventPublisher(eventBus)
	formulaService.SetLogger(log)

	processService := mfgapp.NewProcessService(processRepo, formulaRepo, stockLedger, txScope)
	processService.SetReferenceCatalogs(referenceCatalog, referenceCatalog)
	processService.SetEventPublisher(eventBus)
	processService.SetLogger(log)

	outboxService := eventapp.NewOutboxService(outboxRepo, log)

	// Manufacturing business metrics
	mfgMetrics, err := telemetry.NewManufacturingMetrics(telemetry.ManufacturingMetricsConfig{
		Meter:           meterProvider.Meter("manufacturing"),
		Logger:          log,
		ProcessProvider: persistence.NewManufacturingMetricsSource(db.DB),
	})
	if err != nil {
		log.Fatal("Failed to initialize manufacturing metrics", zap.Error(err))
	}
	mfgMetrics.StartPeriodicCollection(context.Background(), persistence.NewManufacturingMetricsSource(db.DB), 5*time.Minute)
	defer mfgMetrics.Stop()

	// Idempotency store for process transition endpoints.
	// Uses Redis when configured, otherwise an in-memory store.
	storeFactory := cache.NewIdempotencyStoreFactory(cfg.Redis, cache.WithLogger(log))
	idempotencyStore, err := storeFactory.CreateStore()
	if err != nil {
		log.Fatal("Failed to initialize idempotency store", zap.Error(err))
	}

	// Audit trail subscriber. The outbox processor redelivers events after
	// crashes, so the handler is wrapped with idempotency checking to keep
	// the trail free of duplicates.
	auditHandler := event.NewIdempotentHandler(
		eventapp.NewAuditLogHandler(log),
		idempotencyStore,
		log,
		event.WithIdempotencyConfig(shared.IdempotencyConfig{
			Enabled: true,
			TTL:     cfg.Manufacturing.IdempotencyTTL,
		}),
	)
	eventBus.Subscribe(auditHandler)

	formulaHandler := handler.NewFormulaHandler(formulaService)
	formulaHandler.SetMetrics(mfgMetrics)
	processHandler := handler.NewProcessHandler(processService)
	processHandler.SetMetrics(mfgMetrics)
	outboxHandler := handler.NewOutboxHandler(outboxService)
	systemHandler := handler.NewSystemHandler()

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := newEngine(cfg, log, meterProvider)

	// Health check sits outside API versioning and tenant resolution
	engine.GET("/health", healthHandler(db, log))

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	// Every API route runs under a resolved tenant
	tenantConfig := middleware.DefaultTenantConfig()
	tenantConfig.Logger = log
	r.Use(middleware.TenantMiddlewareWithConfig(tenantConfig))

	// Process state transitions accept an Idempotency-Key header so retried
	// requests do not move stock twice
	idempotency := middleware.IdempotencyWithConfig(middleware.IdempotencyMiddlewareConfig{
		Store:  idempotencyStore,
		TTL:    cfg.Manufacturing.IdempotencyTTL,
		Logger: log,
	})

	// Manufacturing domain routes
	mfgRoutes := router.NewDomainGroup("manufacturing", "/manufacturing")
	mfgRoutes.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "manufacturing service ready"})
	})

	// Formula routes
	mfgRoutes.POST("/formulas", formulaHandler.Create)
	mfgRoutes.GET("/formulas", formulaHandler.List)
	mfgRoutes.GET("/formulas/active/:product_id", formulaHandler.FindActive)
	mfgRoutes.GET("/formulas/:id", formulaHandler.GetByID)
	mfgRoutes.PUT("/formulas/:id", formulaHandler.Update)
	mfgRoutes.PUT("/formulas/:id/status", formulaHandler.ChangeStatus)
	mfgRoutes.DELETE("/formulas/:id", formulaHandler.Delete)

	// Process routes
	mfgRoutes.POST("/processes", processHandler.Create)
	mfgRoutes.GET("/processes", processHandler.List)
	mfgRoutes.GET("/processes/:id", processHandler.GetByID)
	mfgRoutes.PUT("/processes/:id", processHandler.Update)
	mfgRoutes.DELETE("/processes/:id", processHandler.Delete)
	mfgRoutes.GET("/processes/:id/availability", processHandler.CheckAvailability)
	mfgRoutes.GET("/processes/:id/costs", processHandler.GetCosts)
	mfgRoutes.POST("/processes/:id/start", idempotency, processHandler.Start)
	mfgRoutes.POST("/processes/:id/complete", idempotency, processHandler.Complete)
	mfgRoutes.POST("/processes/:id/cancel", idempotency, processHandler.Cancel)
	mfgRoutes.POST("/processes/:id/restart", idempotency, processHandler.Restart)
	mfgRoutes.POST("/processes/:id/progress", processHandler.UpdateProgress)

	// System routes (health, outbox administration)
	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)
	systemRoutes.GET("/ping", systemHandler.Ping)
	systemRoutes.GET("/outbox/stats", outboxHandler.GetStats)
	systemRoutes.GET("/outbox/dead", outboxHandler.GetDeadLetterEntries)
	systemRoutes.POST("/outbox/dead/retry-all", outboxHandler.RetryAllDeadEntries)
	systemRoutes.GET("/outbox/:id", outboxHandler.GetEntry)
	systemRoutes.POST("/outbox/:id/retry", outboxHandler.RetryDeadEntry)

	r.Register(mfgRoutes).
		Register(systemRoutes)

	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	waitForShutdown(srv, log)
}

// newEngine builds the gin engine with the shared middleware stack. Order
// matters: the request ID must exist before the logger runs, and recovery
// must wrap everything that can panic.
func newEngine(cfg *config.Config, log *zap.Logger, meterProvider *telemetry.MeterProvider) *gin.Engine {
	engine := gin.New()

	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	if cfg.Telemetry.Enabled {
		engine.Use(middleware.Tracing())
		engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
			MeterProvider: meterProvider,
			ServiceName:   cfg.Telemetry.ServiceName,
			Enabled:       true,
		}))
	}
	if cfg.Profiler.Enabled {
		engine.Use(middleware.Profiling())
	}
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	return engine
}

// waitForShutdown blocks until SIGINT or SIGTERM, then drains in-flight
// requests for up to 30 seconds.
func waitForShutdown(srv *http.Server, log *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}
	log.Info("Server exited gracefully")
}

// healthHandler reports liveness, pinging the database on every call.
func healthHandler(db *persistence.Database, _ *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
