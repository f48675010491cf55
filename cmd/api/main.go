package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/Ramsey-B/laurel/config"
	"github.com/Ramsey-B/laurel/internal/handlers"
	"github.com/Ramsey-B/laurel/pkg/database"
	"github.com/Ramsey-B/laurel/pkg/grouping"
	"github.com/Ramsey-B/laurel/pkg/health"
	"github.com/Ramsey-B/laurel/pkg/httpclient"
	"github.com/Ramsey-B/laurel/pkg/kafka"
	"github.com/Ramsey-B/laurel/pkg/middleware"
	"github.com/Ramsey-B/laurel/pkg/provider"
	"github.com/Ramsey-B/laurel/pkg/redis"
	"github.com/Ramsey-B/laurel/pkg/repositories"
	"github.com/Ramsey-B/laurel/pkg/scheduler"
	"github.com/Ramsey-B/laurel/pkg/startup"
	syncengine "github.com/Ramsey-B/laurel/pkg/sync"
	"github.com/Ramsey-B/laurel/pkg/tracing"
	"github.com/Ramsey-B/laurel/pkg/tracing/exporters"
	"github.com/Ramsey-B/laurel/pkg/transform"
	"github.com/Ramsey-B/laurel/pkg/webhook"
)

// app carries the long-lived resources the startup graph brings up
type app struct {
	cfg    config.Config
	logger ectologger.Logger

	db          database.DB
	redisClient *redis.Client
	producer    *kafka.Producer
	sched       *scheduler.Scheduler
	checker     *health.Checker
	echo        *echo.Echo
}

// dependency adapts a pair of closures to the startup graph
type dependency struct {
	name      string
	dependsOn []string
	start     func(ctx context.Context) error
	stop      func(ctx context.Context) error
}

func (d *dependency) GetName() string     { return d.name }
func (d *dependency) DependsOn() []string { return d.dependsOn }

func (d *dependency) Start(ctx context.Context) error {
	return d.start(ctx)
}
func (d *dependency) Stop(ctx context.Context) error {
	if d.stop == nil {
		return nil
	}
	return d.stop(ctx)
}

func main() {
	// .env is optional, real environments inject variables directly
	_ = godotenv.Load()

	var cfg config.Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	ctx := context.Background()

	shutdownTracing := setupTracing(ctx, cfg, logger)
	defer shutdownTracing()

	a := &app{cfg: cfg, logger: logger}

	boot := startup.NewStartup[any](logger, cfg.StartupMaxAttempts)
	boot.AddDependency(&dependency{
		name:  "database",
		start: a.startDatabase,
		stop: func(context.Context) error {
			if a.db != nil {
				return a.db.Close()
			}
			return nil
		},
	})
	boot.AddDependency(&dependency{
		name:  "redis",
		start: a.startRedis,
		stop: func(context.Context) error {
			if a.redisClient != nil {
				return a.redisClient.Close()
			}
			return nil
		},
	})
	boot.AddDependency(&dependency{
		name:  "kafka",
		start: a.startKafka,
		stop: func(context.Context) error {
			if a.producer != nil {
				return a.producer.Close()
			}
			return nil
		},
	})
	boot.AddDependency(&dependency{
		name:      "server",
		dependsOn: []string{"database", "redis", "kafka"},
		start:     a.startServer,
		stop: func(ctx context.Context) error {
			if a.sched != nil {
				a.sched.Stop()
			}
			if a.echo != nil {
				return a.echo.Shutdown(ctx)
			}
			return nil
		},
	})

	if err := boot.Start(ctx); err != nil {
		logger.WithError(err).Error("startup failed")
		os.Exit(1)
	}
	a.checker.SetReady(true)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	a.checker.SetReady(false)
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := boot.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Error("failed to shut down cleanly")
	}
}

func (a *app) startDatabase(ctx context.Context) error {
	cfg := a.cfg
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DatabaseHost, cfg.DatabasePort, cfg.DatabaseUserName, cfg.DatabasePassword,
		cfg.DatabaseName, cfg.DatabaseSSLMode)

	db, err := sqlx.ConnectContext(ctx, cfg.DatabaseDriver, dsn)
	if err != nil {
		return err
	}

	db.SetMaxOpenConns(cfg.DatabaseMaxOpenConns)
	db.SetMaxIdleConns(cfg.DatabaseMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DatabaseConnMaxLifetime)

	driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
	if err != nil {
		return err
	}

	migrations := database.NewMigrationService(a.logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(cfg.DatabaseMigrationVersion),
		Force:               cfg.DatabaseMigrationForce,
		AutoRollback:        cfg.DatabaseMigrationAutoRollback,
	})
	if err := migrations.Migrate(cfg.DatabaseName, driver); err != nil {
		return err
	}

	a.logger.Infof("Connected to database %s", cfg.DatabaseName)
	a.db = database.NewDatabaseInstance(db, a.logger)
	return nil
}

func (a *app) startRedis(context.Context) error {
	client, err := redis.NewClient(redis.Config{
		Host:     a.cfg.RedisHost,
		Port:     a.cfg.RedisPort,
		Password: a.cfg.RedisPassword,
		DB:       a.cfg.RedisDB,
	}, a.logger)
	if err != nil {
		return err
	}
	a.redisClient = client
	return nil
}

func (a *app) startKafka(context.Context) error {
	a.producer = kafka.NewProducer(kafka.ParseConfig(
		a.cfg.KafkaBrokers, a.cfg.KafkaSyncResultTopic, a.cfg.KafkaBookingEventTopic), a.logger)
	return nil
}

// startServer wires the domain services and launches the HTTP listener and
// the background scheduler
func (a *app) startServer(ctx context.Context) error {
	cfg := a.cfg
	logger := a.logger

	// Repositories
	tourRepo := repositories.NewTourRepository(a.db, logger)
	groupRepo := repositories.NewTourGroupRepository(a.db, logger)
	syncLogRepo := repositories.NewSyncLogRepository(a.db, logger)
	webhookRepo := repositories.NewWebhookEventRepository(a.db, logger)
	rateLimitRepo := repositories.NewRateLimitRepository(a.db, logger)

	// Domain services
	locker := redis.NewLocker(a.redisClient, "laurel:lock:")
	limiter := redis.NewRateLimiter(a.redisClient, "laurel:ratelimit:")

	providerClient := provider.NewClient(provider.Config{
		BaseURL:            cfg.ProviderBaseURL,
		AccessKey:          cfg.ProviderAccessKey,
		SecretKey:          cfg.ProviderSecretKey,
		RateLimit:          int64(cfg.ProviderRateLimit),
		RateWindow:         cfg.ProviderRateWindow,
		MaxAttempts:        cfg.ProviderMaxAttempts,
		RetryAfterFallback: cfg.ProviderRetryAfterFallback,
	}, httpclient.NewClient(httpclient.Config{Timeout: cfg.ProviderRequestTimeout}, logger), limiter, logger)

	groupingEngine := grouping.NewEngine(a.db, tourRepo, groupRepo, grouping.RedisLocker{Locker: locker}, grouping.Config{
		Capacity: cfg.GroupCapacity,
		LockTTL:  cfg.GroupingLockTTL,
		LockWait: cfg.GroupingLockWait,
	}, logger)

	orchestrator := syncengine.NewOrchestrator(
		providerClient,
		transform.NewTransformer(),
		syncengine.NewReconciler(tourRepo, logger),
		groupingEngine,
		syncLogRepo,
		a.producer,
		syncengine.Config{
			LookbackDays:       cfg.SyncLookbackDays,
			RoutineHorizonDays: cfg.SyncRoutineHorizonDays,
			FullHorizonDays:    cfg.SyncFullHorizonDays,
			MaxRunTime:         cfg.SyncMaxRunTime,
		},
		logger,
	)

	ingestor := webhook.NewIngestor(tourRepo, webhookRepo, a.producer, logger)

	a.sched = scheduler.NewScheduler(orchestrator, rateLimitRepo, locker, scheduler.Config{
		PollInterval:  cfg.SchedulerPollInterval,
		CounterMaxAge: cfg.InboundCounterMaxAge,
	}, logger)
	if cfg.SchedulerEnabled {
		a.sched.Start(ctx)
	}

	// HTTP server
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(echomw.Recover())
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	a.checker = health.NewChecker(a.db, a.redisClient, cfg.AppName)
	a.checker.RegisterRoutes(e)

	limitFor := func(operation string, limit int) echo.MiddlewareFunc {
		return middleware.RateLimit(rateLimitRepo, middleware.RateLimitConfig{
			Operation: operation,
			Limit:     limit,
			Window:    cfg.InboundRateWindow,
		}, logger)
	}
	triggerLimit := limitFor(middleware.OperationSync, cfg.InboundSyncLimit)
	webhookLimit := limitFor(middleware.OperationWebhook, cfg.InboundWebhookLimit)
	readLimit := limitFor(middleware.OperationRead, cfg.InboundReadLimit)

	api := e.Group("/api/v1")
	handlers.NewSyncHandler(orchestrator, syncLogRepo, cfg.SyncHistoryDefaultLimit, handlers.WindowConfig{
		LookbackDays:       cfg.SyncLookbackDays,
		RoutineHorizonDays: cfg.SyncRoutineHorizonDays,
		FullHorizonDays:    cfg.SyncFullHorizonDays,
	}).RegisterRoutes(api, triggerLimit, readLimit)
	handlers.NewTourHandler(tourRepo).RegisterRoutes(api, readLimit)
	handlers.NewWebhookHandler(ingestor).RegisterRoutes(api, webhookLimit)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		ReadTimeout:       time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	a.echo = e
	go func() {
		logger.Infof("Starting %s on port %d", cfg.AppName, cfg.Port)
		if err := e.StartServer(server); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("server stopped unexpectedly")
		}
	}()

	return nil
}

func newLogger(cfg config.Config) ectologger.Logger {
	var zapLogger *zap.Logger
	var err error
	if cfg.PrettyLogs {
		zapLogger, err = zap.NewDevelopment()
	} else {
		zapLogger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

func setupTracing(ctx context.Context, cfg config.Config, logger ectologger.Logger) func() {
	if !cfg.OTLPEnabled {
		return func() {}
	}

	exporter, err := exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
		Endpoint: cfg.OTLPEndpoint,
		Protocol: cfg.OTLPProtocol,
		Insecure: cfg.OTLPInsecure,
		Timeout:  10 * time.Second,
	})
	if err != nil {
		logger.WithError(err).Warn("failed to create OTLP exporter, tracing disabled")
		return func() {}
	}

	provider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(provider)
	tracing.SetTracer(otel.Tracer(cfg.AppName))

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("failed to shut down tracer provider")
		}
	}
}
