package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	importapp "github.com/eshop/backend/internal/application/import"
	"github.com/eshop/backend/internal/domain/catalog"
	"github.com/eshop/backend/internal/infrastructure/cache"
	"github.com/eshop/backend/internal/infrastructure/config"
	"github.com/eshop/backend/internal/infrastructure/event"
	"github.com/eshop/backend/internal/infrastructure/feed"
	"github.com/eshop/backend/internal/infrastructure/logger"
	"github.com/eshop/backend/internal/infrastructure/notification"
	"github.com/eshop/backend/internal/infrastructure/persistence"
	"github.com/eshop/backend/internal/infrastructure/scheduler"
	"github.com/eshop/backend/internal/infrastructure/scraper"
	"github.com/eshop/backend/internal/infrastructure/storage"
	"github.com/eshop/backend/internal/infrastructure/supplier"
	"github.com/eshop/backend/internal/infrastructure/telemetry"
	"github.com/eshop/backend/internal/interfaces/http/handler"
	"github.com/eshop/backend/internal/interfaces/http/router"
)

func main() {
	// A .env file is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logCfg := &logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	}
	log, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	// Telemetry
	providers, err := telemetry.Setup(context.Background(), cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	if cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled {
		// Rebuild the logger so records are exported alongside the local output.
		otelLog, err := logger.New(logCfg, providers.ZapCore(logger.ParseLevel(cfg.Log.Level)))
		if err != nil {
			log.Fatal("Failed to attach log exporter", zap.Error(err))
		}
		log = otelLog
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting product import service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.Int("suppliers", len(cfg.Suppliers)),
	)

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithRetryableErrors(persistence.IsLockContention))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	dbOpts := telemetry.DBOptions{Tracing: cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled}
	if providers.MetricsEnabled() {
		dbOpts.Meter = providers.Meter("github.com/eshop/backend/persistence")
	}
	if err := telemetry.InstrumentDB(db.DB, dbOpts, log); err != nil {
		log.Fatal("Failed to instrument database", zap.Error(err))
	}
	log.Info("Database connected successfully")

	productRepo := persistence.NewGormProductRepository(db.DB)
	categoryRepo := persistence.NewGormCategoryRepository(db.DB)
	brandRepo := persistence.NewGormBrandRepository(db.DB)
	historyRepo := persistence.NewGormImportHistoryRepository(db.DB)

	// Product events
	bus := event.NewInMemoryEventBus(log.Named("events"))
	var closers []func() error
	if cfg.Kafka.Enabled {
		publisher, err := notification.NewKafkaPublisher(cfg.Kafka, log)
		if err != nil {
			log.Fatal("Failed to create kafka publisher", zap.Error(err))
		}
		bus.Subscribe(publisher)
		closers = append(closers, publisher.Close)
	}
	var mailer *notification.BackInStockMailer
	if cfg.Mail.Enabled {
		mailer, err = notification.NewBackInStockMailer(cfg.Mail, log)
		if err != nil {
			log.Fatal("Failed to create back-in-stock mailer", zap.Error(err))
		}
		bus.Subscribe(mailer)
	}
	if err := bus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	// Importer
	var images importapp.ImageStore = storage.StubImageStore{}
	if cfg.Storage.Enabled {
		s3Store, err := storage.NewS3ImageStore(&cfg.Storage, storage.WithLogger(log))
		if err != nil {
			log.Fatal("Failed to create image store", zap.Error(err))
		}
		if err := s3Store.EnsureBucket(context.Background()); err != nil {
			log.Warn("Image bucket check failed", zap.String("bucket", s3Store.GetBucket()), zap.Error(err))
		}
		images = s3Store
	}

	productCache := importapp.NewProductCache(productRepo, categoryRepo, brandRepo, importapp.CacheConfig{
		PageSize:  cfg.Import.CachePageSize,
		PagePause: cfg.Import.CachePagePause,
	}, log.Named("cache"))
	importer := importapp.NewImporter(productCache, productRepo, importOptions(cfg.Import), log.Named("import"),
		importapp.WithImageStore(images),
		importapp.WithEventPublisher(bus),
	)

	// Supplier adapters
	browser := scraper.NewChromeBrowser(scraper.ChromeConfig{
		RemoteURL:   cfg.Scraper.RemoteURL,
		ExecPath:    cfg.Scraper.ExecPath,
		PageTimeout: cfg.Scraper.PageTimeout,
		NoSandbox:   os.Geteuid() == 0,
		Logger:      log.Named("chrome"),
	})
	defer browser.Close()
	registry := supplier.NewRegistry(supplier.Deps{
		Feeds: feed.NewClient(feed.WithLogger(log.Named("feed"))),
		Scraper: scraper.New(browser, scraper.Config{
			RequestsPerSecond: cfg.Scraper.RequestsPerSecond,
			MaxPages:          cfg.Scraper.MaxPages,
		}, log.Named("scraper")),
	})
	entries := supplierEntries(cfg.Suppliers)
	for _, e := range entries {
		if _, ok := registry.Adapter(e.Name); !ok {
			log.Warn("Configured supplier has no adapter", zap.String("supplier", e.Name))
		}
	}

	// Run service
	lockFactory := cache.NewRunLockFactory(cfg.Redis, cache.WithLogger(log))
	runLock, lockCloser, err := lockFactory.Create()
	if err != nil {
		log.Fatal("Failed to create run lock", zap.Error(err))
	}
	closers = append(closers, lockCloser.Close)

	historyService := importapp.NewImportHistoryService(historyRepo)
	runOpts := []importapp.RunServiceOption{
		importapp.WithHistory(historyService),
		importapp.WithRunLock(runLock, cfg.Import.RunLockTTL),
	}
	if providers.MetricsEnabled() {
		metrics, err := telemetry.NewImportMetrics(providers.Meter("github.com/eshop/backend/import"))
		if err != nil {
			log.Fatal("Failed to create import metrics", zap.Error(err))
		}
		runOpts = append(runOpts, importapp.WithRunObserver(importapp.RunObserverFunc(
			func(ctx context.Context, name string, result importapp.Result) {
				metrics.RecordRun(ctx, name, result.OK(), result.Summary.Counters, result.Summary.Duration)
			})))
	}
	if mailer != nil {
		runOpts = append(runOpts, importapp.WithRunObserver(mailer))
	}
	runService := importapp.NewRunService(importer, registry, entries, log.Named("runs"), runOpts...)

	if n, err := historyService.RecoverInterrupted(context.Background()); err != nil {
		log.Warn("Failed to recover interrupted imports", zap.Error(err))
	} else if n > 0 {
		log.Info("Marked interrupted imports as failed", zap.Int("count", n))
	}

	// Scheduler
	sweeper := importapp.NewArchiveSweeper(productRepo, cfg.Import.ArchiveAfter, cfg.Import.DiscontinueAfter, log.Named("sweep"))
	jobs := scheduler.NewScheduler(schedulerConfig(cfg.Scheduler),
		scheduler.NewImportExecutor(runService, sweeper, log), log.Named("scheduler"))
	if err := jobs.Start(context.Background()); err != nil {
		log.Fatal("Failed to start scheduler", zap.Error(err))
	}
	var trigger *scheduler.CronTrigger
	if cfg.Scheduler.Enabled {
		triggerCfg := scheduler.DefaultCronTriggerConfig()
		triggerCfg.SweepTime = cfg.Scheduler.SweepTime
		triggerCfg.RetryAttempts = cfg.Scheduler.RetryAttempts
		if cfg.Scheduler.CheckInterval > 0 {
			triggerCfg.CheckInterval = cfg.Scheduler.CheckInterval
		}
		trigger = scheduler.NewCronTrigger(triggerCfg, jobs, entries, log.Named("cron"))
		if err := trigger.Start(context.Background()); err != nil {
			log.Fatal("Failed to start import schedule", zap.Error(err))
		}
		log.Info("Import schedule started",
			zap.Int("max_concurrent_jobs", cfg.Scheduler.MaxConcurrentJobs),
			zap.String("sweep_time", triggerCfg.SweepTime),
		)
	}

	// HTTP
	engine := router.New(router.Config{
		ServiceName:      cfg.Telemetry.ServiceName,
		Tracing:          cfg.Telemetry.Enabled,
		CORSOrigins:      cfg.HTTP.CORSAllowOrigins,
		TriggerPerMinute: cfg.HTTP.TriggerPerMinute,
	}, router.Handlers{
		Import: handler.NewImportHandler(runService, jobs, historyService),
		Health: handler.NewHealthHandler(map[string]handler.Pinger{"database": db}),
	}, log)

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if trigger != nil {
		if err := trigger.Stop(ctx); err != nil {
			log.Error("Error stopping import schedule", zap.Error(err))
		}
	}
	if err := jobs.Stop(ctx); err != nil {
		log.Error("Error stopping scheduler", zap.Error(err))
	}
	if err := bus.Stop(ctx); err != nil {
		log.Error("Error stopping event bus", zap.Error(err))
	}
	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Error("Error releasing resource", zap.Error(err))
		}
	}
	if err := db.Close(); err != nil {
		log.Error("Error closing database", zap.Error(err))
	}
	if err := providers.Shutdown(ctx); err != nil {
		log.Error("Error shutting down telemetry", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

func importOptions(c config.ImportConfig) importapp.Options {
	opts := importapp.DefaultOptions()
	if c.CreateBatchSize > 0 {
		opts.CreateBatchSize = c.CreateBatchSize
	}
	if c.UpdateBatchSize > 0 {
		opts.UpdateBatchSize = c.UpdateBatchSize
	}
	if c.CreatePause > 0 {
		opts.CreatePause = c.CreatePause
	}
	if c.UpdatePause > 0 {
		opts.UpdatePause = c.UpdatePause
	}
	if c.RetryBackoff > 0 {
		opts.RetryBackoff = c.RetryBackoff
	}
	if c.MaxErrorDetails > 0 {
		opts.MaxErrorDetails = c.MaxErrorDetails
	}
	opts.ForceGC = c.ForceGC
	opts.Exclusions = catalog.NewExclusions(c.AskForPrice...)
	return opts
}

func schedulerConfig(c config.SchedulerConfig) scheduler.Config {
	sc := scheduler.DefaultConfig()
	if c.MaxConcurrentJobs > 0 {
		sc.MaxConcurrentJobs = c.MaxConcurrentJobs
	}
	if c.JobTimeout > 0 {
		sc.JobTimeout = c.JobTimeout
	}
	if c.RetryAttempts >= 0 {
		sc.RetryAttempts = c.RetryAttempts
	}
	if c.RetryDelay > 0 {
		sc.RetryDelay = c.RetryDelay
	}
	return sc
}

func supplierEntries(suppliers []config.SupplierConfig) importapp.Entries {
	entries := make(importapp.Entries, 0, len(suppliers))
	for _, s := range suppliers {
		entries = append(entries, importapp.Entry{
			Name:     s.Name,
			Active:   s.Active,
			FeedURL:  s.FeedURL,
			Username: s.Username,
			Password: s.Password,
			APIKey:   s.APIKey,
			Schedule: s.Schedule,
		})
	}
	return entries
}
