package notificationservice

import (
	"context"
	"fmt"
	"net/http"

	"transport-connect/internal/general/bootstrap"
	"transport-connect/internal/general/config"
	"transport-connect/internal/general/contracts"
	"transport-connect/internal/general/httpx"
	"transport-connect/internal/general/jwt"
	"transport-connect/internal/general/logger"
	"transport-connect/internal/general/rabbitmq"
	"transport-connect/internal/software/notify/handler"
	"transport-connect/internal/software/notify/service"
)

// Options are the command-line knobs of the notification service.
type Options struct {
	ConfigPath    string
	Store         string
	MaxConcurrent int
	Prefetch      int
}

// Run wires the notification service and blocks until ctx is cancelled.
// Without a broker (memory store) it only serves the HTTP API.
func Run(ctx context.Context, opts Options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log := logger.New(contracts.ProducerNotification)
	ctx = log.WithRequestID(ctx, "startup-001")

	cfg, err := config.LoadFromFile(opts.ConfigPath)
	if err != nil {
		log.Error(ctx, "config_load_failed", "Failed to load configuration", err, nil)
		return err
	}
	log.SetLevel(logger.ParseLevel(cfg.Log.Level))

	stores, err := bootstrap.OpenStores(ctx, opts.Store, cfg, log)
	if err != nil {
		log.Error(ctx, "store_open_failed", "Failed to open store", err, map[string]any{"store": opts.Store})
		return err
	}
	defer stores.Close()

	svc := service.NewNotificationService(log, stores.UoW, stores.Users, stores.Notifications,
		service.LogProviders(log), service.Options{KeepPerUser: cfg.Notifications.KeepPerUser})

	checks := map[string]httpx.Check{"store": stores.Check}
	consumed := make(chan struct{})
	if stores.Kind == bootstrap.StoreMemory {
		close(consumed)
	} else {
		mq, err := rabbitmq.Dial(ctx, cfg, log)
		if err != nil {
			log.Error(ctx, "rabbitmq_connection_failed", "Failed to connect to RabbitMQ", err, nil)
			return err
		}
		defer mq.Close()
		checks["broker"] = bootstrap.BrokerCheck(mq)

		go func() {
			defer close(consumed)
			service.NewConsumer(log, svc).Run(ctx, mq, opts.Prefetch)
		}()
	}
	defer func() { <-consumed }()

	jwtManager := jwt.NewManager(cfg.JWT.SecretKey, cfg.JWT.TTL)
	mux := http.NewServeMux()
	handler.NewNotificationHTTPHandler(svc, log, jwtManager, checks).RegisterRoutes(mux)

	srv := bootstrap.NewServer(ctx, cfg.Services.NotificationServicePort,
		bootstrap.WithConcurrencyLimit(opts.MaxConcurrent, mux))
	log.Info(ctx, "service_started",
		fmt.Sprintf("Notification Service started on port %d", cfg.Services.NotificationServicePort),
		map[string]any{
			"port":           cfg.Services.NotificationServicePort,
			"store":          stores.Kind,
			"max_concurrent": opts.MaxConcurrent,
			"prefetch":       opts.Prefetch,
		},
	)
	err = bootstrap.Serve(ctx, log, srv)
	cancel()
	return err
}
