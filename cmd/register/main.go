package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/thevault/register/api/controllers"
	"github.com/thevault/register/api/routes"
	"github.com/thevault/register/internal/backoffice"
	"github.com/thevault/register/internal/checkout"
	"github.com/thevault/register/internal/journal"
	"github.com/thevault/register/internal/maintenance"
	"github.com/thevault/register/internal/receipt"
	"github.com/thevault/register/internal/register"
	"github.com/thevault/register/pkg/config"
	"github.com/thevault/register/pkg/db"
	"github.com/thevault/register/pkg/instance"
	"github.com/thevault/register/pkg/logger"
	"github.com/thevault/register/pkg/metrics"
	"github.com/thevault/register/pkg/migrate"
	pkgredis "github.com/thevault/register/pkg/redis"
)

const maintenanceLockName = "maintenance"

func main() {
	logg := logger.New(logger.Options{ServiceName: "register"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "register",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "register stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"instance": instance.GetID(),
	})

	taxRate, err := cfg.Register.Tax()
	if err != nil {
		return err
	}

	var (
		registerer prometheus.Registerer
		gatherer   prometheus.Gatherer
	)
	if cfg.Metrics.Enabled {
		registerer = prometheus.DefaultRegisterer
		gatherer = prometheus.DefaultGatherer
	}
	registerMetrics := metrics.NewRegisterMetrics(registerer)
	maintenanceMetrics := metrics.NewMaintenanceMetrics(registerer)

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, dbClient.Close())
	}()

	if err := migrate.MaybeRun(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	journalSvc, err := journal.NewService(dbClient, logg)
	if err != nil {
		return err
	}

	pingers := map[string]controllers.Pinger{"db": dbClient, "redis": nil}
	var (
		idempotency pkgredis.IdempotencyStore
		lock        maintenance.Lock = maintenance.NewLocalLock()
	)
	if cfg.Redis.Enabled() {
		redisClient, dialErr := pkgredis.New(ctx, cfg.Redis, logg)
		if dialErr != nil {
			return dialErr
		}
		defer func() {
			err = multierr.Append(err, redisClient.Close())
		}()
		redisLock, lockErr := maintenance.NewRedisLock(redisClient, redisClient.LockKey(maintenanceLockName), cfg.Maintenance.LockTTL)
		if lockErr != nil {
			return lockErr
		}
		idempotency = redisClient
		lock = redisLock
		pingers["redis"] = redisClient
	} else {
		logg.Warn(ctx, "redis not configured; idempotent replay disabled and maintenance lock is in-process")
	}

	client, err := backoffice.NewClient(cfg.Backoffice,
		backoffice.WithLogger(logg),
		backoffice.WithMetrics(registerMetrics),
	)
	if err != nil {
		return err
	}

	sessions, err := register.NewManager(register.Params{
		Backoffice:         client,
		TaxRate:            taxRate,
		CatalogPageSize:    cfg.Register.CatalogPageSize,
		CatalogDebounce:    cfg.Register.CatalogDebounce,
		CheckoutTimeout:    cfg.Register.CheckoutTimeout,
		SendIdempotencyKey: cfg.Register.SendIdempotencyKey,
		HistoryPerPage:     cfg.Register.SalesHistoryPerPage,
		Observers:          []checkout.Observer{journalSvc},
		Logger:             logg,
		Metrics:            registerMetrics,
	})
	if err != nil {
		return err
	}

	receipts := receipt.NewService(client, journalSvc, receipt.NewRenderer(receipt.RendererParams{
		StoreName: cfg.Register.StoreName,
		Currency:  cfg.Register.CurrencyPrefix,
		TaxRate:   taxRate,
		BaseURL:   cfg.Register.ReceiptBaseURL,
		Logger:    logg,
		Metrics:   registerMetrics,
	}), logg)

	reaper, err := maintenance.NewSessionReaperJob(maintenance.SessionReaperJobParams{
		Logger:   logg,
		Sessions: sessions,
		IdleTTL:  cfg.Register.SessionIdleTTL,
	})
	if err != nil {
		return err
	}
	retention, err := maintenance.NewJournalRetentionJob(maintenance.JournalRetentionJobParams{
		Logger:    logg,
		Journal:   journalSvc,
		Retention: cfg.Journal.Retention,
	})
	if err != nil {
		return err
	}
	upkeep, err := maintenance.NewService(maintenance.ServiceParams{
		Logger:   logg,
		Registry: maintenance.NewRegistry(reaper, retention),
		Lock:     lock,
		Metrics:  maintenanceMetrics,
		Interval: cfg.Maintenance.Interval,
	})
	if err != nil {
		return err
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	server := &http.Server{
		Addr: ":" + port,
		Handler: routes.NewRouter(cfg, logg, routes.Deps{
			Sessions:    sessions,
			Backoffice:  client,
			Receipts:    receipts,
			Journal:     journalSvc,
			Idempotency: idempotency,
			Gatherer:    gatherer,
			Pingers:     pingers,
		}),
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logg.Info(logg.WithField(groupCtx, "addr", server.Addr), "starting register api")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		if err := upkeep.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.App.ShutdownTimeout)
		defer cancel()
		logg.Info(ctx, "register shutting down gracefully")
		return server.Shutdown(shutdownCtx)
	})
	return group.Wait()
}
