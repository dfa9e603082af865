package chatservice

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
	"transport-connect/internal/general/realtime"
	"transport-connect/internal/general/retention"
	"transport-connect/internal/general/websocket"
	"transport-connect/internal/ports"
	"transport-connect/internal/software/chat/handler"
	"transport-connect/internal/software/chat/service"
	notifyservice "transport-connect/internal/software/notify/service"
)

// Options are the command-line knobs of the chat service.
type Options struct {
	ConfigPath    string
	Store         string
	MaxConcurrent int
}

// Run wires the chat service and blocks until ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log := logger.New(contracts.ProducerChat)
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

	checks := map[string]httpx.Check{"store": stores.Check}

	// memory mode keeps notifications in-process; postgres mode hands them
	// to the notification service over the broker
	var (
		pub  ports.Publisher
		sink ports.NotificationSink
	)
	if stores.Kind == bootstrap.StoreMemory {
		sink = notifyservice.NewNotificationService(log, stores.UoW, stores.Users, stores.Notifications,
			notifyservice.LogProviders(log), notifyservice.Options{KeepPerUser: cfg.Notifications.KeepPerUser})
	} else {
		mq, err := rabbitmq.Dial(ctx, cfg, log)
		if err != nil {
			log.Error(ctx, "rabbitmq_connection_failed", "Failed to connect to RabbitMQ", err, nil)
			return err
		}
		defer mq.Close()
		publisher := rabbitmq.NewPublisher(mq)
		pub = publisher
		sink = notifyservice.NewBrokerSink(publisher, contracts.ProducerChat)
		checks["broker"] = bootstrap.BrokerCheck(mq)
	}

	dispatcher := notifyservice.NewDispatcher(log, sink, cfg.Notifications.QueueSize, cfg.Notifications.Workers)
	dispatcher.Start(ctx)
	defer dispatcher.Wait()

	jwtManager := jwt.NewManager(cfg.JWT.SecretKey, cfg.JWT.TTL)
	hub := realtime.NewHub(log, realtime.NewRegistry(nil), realtime.NewRooms())

	svc := service.NewChatService(log, stores.UoW, stores.Users, stores.Requests, stores.Messages,
		hub, dispatcher, pub, service.OptionsFromConfig(cfg))
	go svc.RunPresenceSweeper(ctx)

	if cfg.Retention.Enabled {
		sched, err := retention.NewScheduler(log, svc, cfg.Retention.Cron)
		if err != nil {
			log.Error(ctx, "retention_config_invalid", "Failed to build retention schedule", err, nil)
			return err
		}
		go sched.Run(ctx)
	}

	gateway := websocket.NewGateway(log, jwtManager, svc, websocket.OptionsFromConfig(cfg.Chat))

	api := http.NewServeMux()
	handler.NewChatHTTPHandler(svc, log, jwtManager, checks, cfg.Chat.EnableDevTokens).RegisterRoutes(api)

	// long-lived sockets must not hold a limiter slot
	root := http.NewServeMux()
	root.HandleFunc("GET /ws", gateway.ServeWS)
	root.Handle("/", bootstrap.WithConcurrencyLimit(opts.MaxConcurrent, api))

	srv := bootstrap.NewServer(ctx, cfg.Services.ChatServicePort, root)
	log.Info(ctx, "service_started",
		fmt.Sprintf("Chat Service started on port %d", cfg.Services.ChatServicePort),
		map[string]any{
			"port":           cfg.Services.ChatServicePort,
			"store":          stores.Kind,
			"max_concurrent": opts.MaxConcurrent,
			"policy":         cfg.Policy(),
		},
	)
	err = bootstrap.Serve(ctx, log, srv)
	cancel()
	return err
}
