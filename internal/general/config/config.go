package config

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"transport-connect/internal/domain/request"

	"github.com/adhocore/gronx"
)

type Config struct {
	Database struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"database"`
	} `yaml:"database"`
	RabbitMQ struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
	} `yaml:"rabbitmq"`
	Services struct {
		ChatServicePort         int `yaml:"chat_service"`
		NotificationServicePort int `yaml:"notification_service"`
	} `yaml:"services"`
	JWT struct {
		SecretKey string        `yaml:"secret_key"`
		TTL       time.Duration `yaml:"ttl"`
	} `yaml:"jwt"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	Chat          ChatConfig          `yaml:"chat"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Retention     RetentionConfig     `yaml:"retention"`
}

// ChatConfig tunes the realtime conversation core.
type ChatConfig struct {
	HistoryLimit      int           `yaml:"history_limit"`
	MaxContentLength  int           `yaml:"max_content_length"`
	EditHistoryLimit  int           `yaml:"edit_history_limit"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
	SweepInterval     time.Duration `yaml:"sweep_interval"`
	AuthTimeout       time.Duration `yaml:"auth_timeout"`
	SendBuffer        int           `yaml:"send_buffer"`
	TransitionPolicy  string        `yaml:"transition_policy"`
	EventsPerSecond   float64       `yaml:"events_per_second"`
	EventBurst        int           `yaml:"event_burst"`
	MessageTTL        time.Duration `yaml:"message_ttl"`
	AllowedOrigins    []string      `yaml:"allowed_origins"`
	EnableDevTokens   bool          `yaml:"enable_dev_tokens"`
	OperationTimeout  time.Duration `yaml:"operation_timeout"`
	MaxFrameBytes     int64         `yaml:"max_frame_bytes"`
	StatusRetryBudget int           `yaml:"status_retry_budget"`
}

// NotificationsConfig sizes the async notification pipeline.
type NotificationsConfig struct {
	QueueSize   int `yaml:"queue_size"`
	Workers     int `yaml:"workers"`
	KeepPerUser int `yaml:"keep_per_user"`
}

// RetentionConfig schedules the expired-message sweeper.
type RetentionConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"`
}

// LoadFromFile loads .env (if present), the YAML file at path, then
// environment overrides; applies defaults and validates.
func LoadFromFile(path string) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := parseYAML(file, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, fmt.Errorf("invalid environment override: %w", err)
	}
	applyDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// applyDefaults sets safe defaults for unset fields.
func applyDefaults(cfg *Config) {
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.RabbitMQ.Host == "" {
		cfg.RabbitMQ.Host = "localhost"
	}
	if cfg.RabbitMQ.Port == 0 {
		cfg.RabbitMQ.Port = 5672
	}

	if cfg.Services.ChatServicePort == 0 {
		cfg.Services.ChatServicePort = 3000
	}
	if cfg.Services.NotificationServicePort == 0 {
		cfg.Services.NotificationServicePort = 3001
	}

	if cfg.JWT.TTL == 0 {
		cfg.JWT.TTL = 2 * time.Hour
	}
	if cfg.JWT.SecretKey == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			key = []byte(fmt.Sprintf("%d", time.Now().UnixNano()))
		}
		cfg.JWT.SecretKey = base64.StdEncoding.EncodeToString(key)
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	c := &cfg.Chat
	if c.HistoryLimit == 0 {
		c.HistoryLimit = 50
	}
	if c.MaxContentLength == 0 {
		c.MaxContentLength = 2000
	}
	if c.EditHistoryLimit == 0 {
		c.EditHistoryLimit = 20
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 5 * time.Minute
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = time.Minute
	}
	if c.AuthTimeout == 0 {
		c.AuthTimeout = 5 * time.Second
	}
	if c.SendBuffer == 0 {
		c.SendBuffer = 64
	}
	if c.TransitionPolicy == "" {
		c.TransitionPolicy = string(request.PolicyPermissive)
	}
	if c.EventsPerSecond == 0 {
		c.EventsPerSecond = 20
	}
	if c.EventBurst == 0 {
		c.EventBurst = 40
	}
	if c.OperationTimeout == 0 {
		c.OperationTimeout = 5 * time.Second
	}
	if c.MaxFrameBytes == 0 {
		c.MaxFrameBytes = 64 << 10
	}
	if c.StatusRetryBudget == 0 {
		c.StatusRetryBudget = 3
	}

	n := &cfg.Notifications
	if n.QueueSize == 0 {
		n.QueueSize = 1024
	}
	if n.Workers == 0 {
		n.Workers = 4
	}
	if n.KeepPerUser == 0 {
		n.KeepPerUser = 100
	}

	if cfg.Retention.Cron == "" {
		cfg.Retention.Cron = "*/10 * * * *"
	}
}

// validate checks required fields and basic ranges.
func (c *Config) validate() error {
	var problems []string

	checkPort := func(name string, p int) {
		if p <= 0 || p > 65535 {
			problems = append(problems, name+" must be in 1..65535")
		}
	}

	checkPort("database.port", c.Database.Port)
	if c.Database.User == "" {
		problems = append(problems, "database.user is required")
	}
	if c.Database.Password == "" {
		problems = append(problems, "database.password is required")
	}
	if c.Database.Name == "" {
		problems = append(problems, "database.database is required")
	}

	checkPort("rabbitmq.port", c.RabbitMQ.Port)
	if c.RabbitMQ.User == "" {
		problems = append(problems, "rabbitmq.user is required")
	}
	if c.RabbitMQ.Password == "" {
		problems = append(problems, "rabbitmq.password is required")
	}

	checkPort("services.chat_service", c.Services.ChatServicePort)
	checkPort("services.notification_service", c.Services.NotificationServicePort)
	if c.Services.ChatServicePort == c.Services.NotificationServicePort {
		problems = append(problems, "services.chat_service and services.notification_service must differ")
	}

	if c.JWT.TTL < time.Minute {
		problems = append(problems, "jwt.ttl must be at least 1m")
	}

	ch := c.Chat
	if ch.HistoryLimit < 1 || ch.HistoryLimit > 500 {
		problems = append(problems, "chat.history_limit must be in 1..500")
	}
	if ch.MaxContentLength < 1 {
		problems = append(problems, "chat.max_content_length must be positive")
	}
	if ch.EditHistoryLimit < 1 {
		problems = append(problems, "chat.edit_history_limit must be positive")
	}
	if ch.SweepInterval < time.Second {
		problems = append(problems, "chat.sweep_interval must be at least 1s")
	}
	if ch.IdleTimeout < ch.SweepInterval {
		problems = append(problems, "chat.idle_timeout must not be shorter than chat.sweep_interval")
	}
	if ch.AuthTimeout < 0 || ch.SendBuffer < 1 || ch.EventBurst < 1 || ch.EventsPerSecond < 0 {
		problems = append(problems, "chat.auth_timeout, send_buffer, event_burst and events_per_second must be positive")
	}
	if ch.MessageTTL < 0 {
		problems = append(problems, "chat.message_ttl cannot be negative")
	}
	if ch.StatusRetryBudget < 1 {
		problems = append(problems, "chat.status_retry_budget must be positive")
	}
	if _, err := request.ParsePolicy(ch.TransitionPolicy); err != nil {
		problems = append(problems, "chat.transition_policy must be permissive or strict")
	}

	if c.Notifications.QueueSize < 1 || c.Notifications.Workers < 1 || c.Notifications.KeepPerUser < 1 {
		problems = append(problems, "notifications.queue_size, workers and keep_per_user must be positive")
	}

	if !gronx.IsValid(c.Retention.Cron) {
		problems = append(problems, fmt.Sprintf("retention.cron %q is not a valid cron expression", c.Retention.Cron))
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// Policy returns the parsed transition policy. Call after LoadFromFile.
func (c *Config) Policy() request.Policy {
	p, err := request.ParsePolicy(c.Chat.TransitionPolicy)
	if err != nil {
		return request.PolicyPermissive
	}
	return p
}
