package service

import (
	"time"

	"transport-connect/internal/domain/request"
	"transport-connect/internal/general/config"
	"transport-connect/internal/general/logger"
	"transport-connect/internal/general/realtime"
	"transport-connect/internal/ports"
)

// Options tunes the conversation core.
type Options struct {
	HistoryLimit      int
	MaxContentLength  int
	EditHistoryLimit  int
	IdleTimeout       time.Duration
	SweepInterval     time.Duration
	Policy            request.Policy
	MessageTTL        time.Duration
	StatusRetryBudget int
	Clock             func() time.Time
}

// OptionsFromConfig maps the chat section of the config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		HistoryLimit:      cfg.Chat.HistoryLimit,
		MaxContentLength:  cfg.Chat.MaxContentLength,
		EditHistoryLimit:  cfg.Chat.EditHistoryLimit,
		IdleTimeout:       cfg.Chat.IdleTimeout,
		SweepInterval:     cfg.Chat.SweepInterval,
		Policy:            cfg.Policy(),
		MessageTTL:        cfg.Chat.MessageTTL,
		StatusRetryBudget: cfg.Chat.StatusRetryBudget,
	}
}

func (o *Options) applyDefaults() {
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = 50
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = 5 * time.Minute
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = time.Minute
	}
	if o.Policy == "" {
		o.Policy = request.PolicyPermissive
	}
	if o.StatusRetryBudget <= 0 {
		o.StatusRetryBudget = 3
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
}

// chatService owns conversation membership, message dispatch and request
// status synchronization.
type chatService struct {
	logger   *logger.Logger
	uow      ports.UnitOfWork
	users    ports.UserRepository
	requests ports.RequestRepository
	messages ports.MessageRepository
	hub      *realtime.Hub
	notifier ports.Notifier
	pub      ports.Publisher // nil disables broker events
	opts     Options

	statusLocks *keyedMutex
}

// NewChatService wires the core. pub may be nil.
func NewChatService(
	logger *logger.Logger,
	uow ports.UnitOfWork,
	users ports.UserRepository,
	requests ports.RequestRepository,
	messages ports.MessageRepository,
	hub *realtime.Hub,
	notifier ports.Notifier,
	pub ports.Publisher,
	opts Options,
) ports.ChatService {
	opts.applyDefaults()
	return &chatService{
		logger:      logger,
		uow:         uow,
		users:       users,
		requests:    requests,
		messages:    messages,
		hub:         hub,
		notifier:    notifier,
		pub:         pub,
		opts:        opts,
		statusLocks: newKeyedMutex(),
	}
}

func (service *chatService) now() time.Time {
	return service.opts.Clock().UTC()
}
