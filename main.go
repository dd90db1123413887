package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bracket-pool-services/internal/config"
	"bracket-pool-services/internal/cron"
	"bracket-pool-services/internal/db"
	httpapi "bracket-pool-services/internal/http"
	"bracket-pool-services/internal/http/handlers"
	"bracket-pool-services/internal/jobs"
	"bracket-pool-services/internal/logger"
	"bracket-pool-services/internal/metrics"
	"bracket-pool-services/internal/queue"
	"bracket-pool-services/internal/storage"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log, err := logger.New(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	defer pool.Close()

	runStore := jobs.NewPgRunStore(pool)
	if err := runStore.EnsureSchema(ctx); err != nil {
		log.Fatal("cron run schema failed", zap.Error(err))
	}

	var publisher jobs.EventPublisher
	if cfg.RabbitMQURL != "" {
		qc, err := queue.New(cfg.RabbitMQURL)
		if err == nil {
			if err = queue.EnsureEventsTopology(qc); err != nil {
				_ = qc.Close()
			}
		}
		switch {
		case err != nil && cfg.Env == "production":
			log.Fatal("rabbitmq setup failed", zap.Error(err))
		case err != nil:
			log.Warn("rabbitmq setup failed; refresh-standings disabled", zap.Error(err))
		default:
			defer qc.Close()
			publisher = qc
			log.Info("rabbitmq enabled", zap.String("exchange", queue.EventsExchange))
		}
	} else {
		log.Info("rabbitmq disabled (RABBITMQ_URL is empty); refresh-standings disabled")
	}

	var (
		archive  jobs.Archiver
		archives handlers.ArchiveLister
	)
	if cfg.ObjectStoreEnabled() {
		store, err := storage.NewArchiveStore(ctx, storage.Config{
			Endpoint:        cfg.ObjectStoreEndpoint,
			Region:          cfg.ObjectStoreRegion,
			AccessKeyID:     cfg.ObjectStoreAccessKeyID,
			SecretAccessKey: cfg.ObjectStoreSecretAccessKey,
			Bucket:          cfg.ObjectStoreBucket,
			PublicBaseURL:   cfg.ObjectStorePublicBaseURL,
			StorageClass:    cfg.ObjectStoreStorageClass,
		})
		switch {
		case err != nil && cfg.Env == "production":
			log.Fatal("object store setup failed", zap.Error(err))
		case err != nil:
			log.Warn("object store setup failed; archive-cron-runs disabled", zap.Error(err))
		default:
			archive, archives = store, store
		}
	}

	registry := jobs.NewRegistry()
	registry.MustRegister(
		&jobs.RefreshStandingsJob{Publisher: publisher},
		&jobs.PruneRunsJob{Store: runStore, Retention: cfg.CronRunRetention},
		&jobs.ArchiveRunsJob{Store: runStore, Archive: archive, Window: cfg.CronArchiveWindow},
	)

	m := metrics.New()
	runner := jobs.NewRunner(registry, log, jobs.WithRecorder(runStore), jobs.WithMetrics(m))

	if os.Getenv(cron.SecretEnvKey) == "" {
		log.Warn("CRON_SECRET is not set; /api/cron only answers in development", zap.String("env", os.Getenv(cron.ModeEnvKey)))
	}

	apiServer := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.NewRouter(httpapi.Deps{
			Logger:     log,
			Config:     cfg,
			Authorizer: cron.NewAuthorizer(cron.NewEnvSettings(), log),
			Runner:     runner,
			Runs:       runStore,
			Archives:   archives,
			Metrics:    m,
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("bracket pool api listening", zap.String("addr", cfg.HTTPAddr))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctxShutdown); err != nil {
		log.Error("http server shutdown failed", zap.Error(err))
	}
}
