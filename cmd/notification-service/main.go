// cmd/notification-service/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.uber.org/zap"

	"teamhub-notifications/internal/api"
	"teamhub-notifications/internal/common/aws"
	"teamhub-notifications/internal/common/camunda"
	"teamhub-notifications/internal/common/config"
	"teamhub-notifications/internal/common/database"
	"teamhub-notifications/internal/common/logger"
	"teamhub-notifications/internal/common/observability"
	"teamhub-notifications/internal/delivery"
	"teamhub-notifications/internal/events"
	"teamhub-notifications/internal/notifications"
	"teamhub-notifications/internal/realtime"
	"teamhub-notifications/internal/search"
	"teamhub-notifications/pkg/registry"

	archivenotification "teamhub-notifications/internal/workers/notifications/archive-notification"
	createnotification "teamhub-notifications/internal/workers/notifications/create-notification"
	getnotifications "teamhub-notifications/internal/workers/notifications/get-notifications"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

type eventCloser interface {
	notifications.EventPublisher
	Close() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", "console")
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.NewService(cfg.Logging.Level, cfg.Logging.Format, cfg.App.Name, cfg.App.Environment, cfg.App.Version)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting notification service...")

	obs := observability.New(cfg.App.Name, log)
	ctx := context.Background()

	// --- PostgreSQL ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	store := notifications.NewPostgresStore(pg.DB, config.GetDuration(cfg.Aggregation.SourceTimeout))
	if err := store.EnsureSchema(ctx); err != nil {
		zapLog.Fatal("schema setup failed", zap.Error(err))
	}
	if cfg.Realtime.Enabled && cfg.Realtime.InstallTriggers {
		if err := realtime.InstallTriggers(ctx, pg.DB); err != nil {
			zapLog.Fatal("change trigger setup failed", zap.Error(err))
		}
	}

	// --- Redis ---
	redis := database.NewRedis(cfg.Database.Redis)
	err = retryWithBackoff(func() error {
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	cache := notifications.NewFeedCache(redis.Client, config.GetDuration(cfg.Aggregation.CacheTTL), log)

	// --- Elasticsearch ---
	var indexer *search.Indexer
	if cfg.Database.Elasticsearch.Enabled {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		indexer = search.NewIndexer(esClient.Client, cfg.Database.Elasticsearch.Index, log)
		if err := indexer.EnsureIndex(ctx); err != nil {
			zapLog.Warn("search index setup failed", zap.Error(err))
		}
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Kafka ---
	var publisher eventCloser = events.Noop{}
	if cfg.Kafka.Enabled {
		publisher = events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		zapLog.Info("Kafka publisher configured", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}
	defer publisher.Close()

	// --- Email / SMS ---
	var deliverer notifications.Deliverer
	if cfg.Delivery.Email.Enabled || cfg.Delivery.SMS.Enabled {
		awsCfg, err := aws.LoadConfig(ctx, cfg.Delivery.AWS.Region)
		if err != nil {
			zapLog.Fatal("aws config failed", zap.Error(err))
		}
		deliverer = delivery.NewDispatcher(
			delivery.Config{
				EmailEnabled:         cfg.Delivery.Email.Enabled,
				SMSEnabled:           cfg.Delivery.SMS.Enabled,
				SMSPriorityThreshold: notifications.ParsePriority(cfg.Delivery.SMS.PriorityThreshold),
			},
			store,
			aws.NewSESClient(awsCfg, cfg.Delivery.Email.FromEmail),
			aws.NewSNSClient(awsCfg),
			log,
		)
	}

	deps := notifications.Dependencies{
		Store:     store,
		Cache:     cache,
		Deliverer: deliverer,
		Publisher: publisher,
		Recorder:  obs,
		Logger:    log,
	}
	if indexer != nil {
		deps.Indexer = indexer
	}
	service := notifications.NewService(notifications.Config{
		DefaultLimit:     cfg.Aggregation.DefaultLimit,
		MaxLimit:         cfg.Aggregation.MaxLimit,
		MessageMaxLength: cfg.Aggregation.MessageMaxLength,
		LeaveUrgencyDays: cfg.Aggregation.LeaveUrgencyDays,
		SourceTimeout:    config.GetDuration(cfg.Aggregation.SourceTimeout),
		AnnouncementTTL:  time.Duration(cfg.Aggregation.AnnouncementTTL) * time.Hour,
	}, deps)

	// --- Realtime ---
	var hub *realtime.Hub
	if cfg.Realtime.Enabled {
		feed, err := realtime.NewPGFeed(pg.DSN(), realtime.PGListenerConfig{
			MinReconnectInterval: config.GetDuration(cfg.Realtime.MinReconnectInterval),
			MaxReconnectInterval: config.GetDuration(cfg.Realtime.MaxReconnectInterval),
			PingInterval:         config.GetDuration(cfg.Realtime.PingInterval),
			BufferSize:           cfg.Realtime.BufferSize,
		}, log)
		if err != nil {
			zapLog.Fatal("change feed failed", zap.Error(err))
		}
		hub = realtime.NewHub(feed, log)
		hub.SetHook(func(ev realtime.Event) {
			service.Invalidate(context.Background())
		})
		zapLog.Info("Realtime hub started")
	}

	// --- Zeebe workers ---
	var zeebe *camunda.Client
	var jobWorkers []worker.JobWorker
	if cfg.Camunda.Enabled {
		zeebe, err = camunda.NewClient(ctx, &camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
		}, log)
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		zapLog.Info("Zeebe client connected successfully")

		reg, err := registry.LoadOrBuiltIn(cfg.RegistryPath)
		if err != nil {
			zapLog.Fatal("activity registry load failed", zap.Error(err))
		}

		getCfg := config.GetWorkerConfig(cfg, getnotifications.TaskType)
		createCfg := config.GetWorkerConfig(cfg, createnotification.TaskType)
		archiveCfg := config.GetWorkerConfig(cfg, archivenotification.TaskType)

		starts := []struct {
			taskType string
			wcfg     config.WorkerConfig
			handler  camunda.JobHandler
		}{
			{
				getnotifications.TaskType, getCfg,
				getnotifications.NewHandler(&getnotifications.Config{
					Timeout: config.GetDuration(getCfg.Timeout),
				}, service, log),
			},
			{
				createnotification.TaskType, createCfg,
				createnotification.NewHandler(&createnotification.Config{
					Timeout:     config.GetDuration(createCfg.Timeout),
					InputSchema: reg.InputSchema(createnotification.TaskType),
				}, service, log),
			},
			{
				archivenotification.TaskType, archiveCfg,
				archivenotification.NewHandler(&archivenotification.Config{
					Timeout: config.GetDuration(archiveCfg.Timeout),
				}, service, log),
			},
		}
		for _, s := range starts {
			if jw := camunda.StartWorker(zeebe.GetClient(), s.taskType, s.wcfg, s.handler, obs, log); jw != nil {
				jobWorkers = append(jobWorkers, jw)
			}
		}
		zapLog.Info("Job workers registered", zap.Int("count", len(jobWorkers)))
	}

	// --- HTTP ---
	var searcher api.Searcher
	if indexer != nil {
		searcher = indexer
	}
	var subscriber api.Subscriber
	if hub != nil {
		subscriber = hub
	}
	apiServer := api.NewServer(api.Config{
		ServiceName:    cfg.App.Name,
		Version:        cfg.App.Version,
		JWTSecret:      cfg.HTTP.JWTSecret,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	}, service, searcher, subscriber, log)
	apiServer.AddReadinessCheck("postgres", pg.Ping)
	apiServer.AddReadinessCheck("redis", redis.Ping)
	if zeebe != nil {
		apiServer.AddReadinessCheck("zeebe", zeebe.HealthCheck)
	}

	httpServer := &http.Server{
		Addr:           cfg.HTTP.Address,
		Handler:        apiServer.Routes(),
		ReadTimeout:    config.GetDuration(cfg.HTTP.ReadTimeout),
		WriteTimeout:   config.GetDuration(cfg.HTTP.WriteTimeout),
		MaxHeaderBytes: 1 << 20,
	}
	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.HTTP.ShutdownTimeout))
	defer cancel()

	// streams end when their channels close
	if hub != nil {
		hub.Dispose()
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server forced to shutdown", zap.Error(err))
	}
	for _, jw := range jobWorkers {
		jw.Close()
		jw.AwaitClose()
	}
	if zeebe != nil {
		if err := zeebe.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down metrics", zap.Error(err))
	}

	zapLog.Info("Notification service stopped")
}
