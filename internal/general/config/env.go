package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type lookupFunc func(string) (string, bool)

// applyEnv overlays TC_* environment variables on top of the file values.
func applyEnv(cfg *Config, lookup lookupFunc) error {
	var problems []string

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				problems = append(problems, fmt.Sprintf("%s must be int", key))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				problems = append(problems, fmt.Sprintf("%s must be a duration", key))
				return
			}
			*dst = d
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := lookup(key); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				problems = append(problems, fmt.Sprintf("%s must be bool", key))
				return
			}
			*dst = b
		}
	}

	str("TC_DB_HOST", &cfg.Database.Host)
	num("TC_DB_PORT", &cfg.Database.Port)
	str("TC_DB_USER", &cfg.Database.User)
	str("TC_DB_PASSWORD", &cfg.Database.Password)
	str("TC_DB_NAME", &cfg.Database.Name)

	str("TC_RABBITMQ_HOST", &cfg.RabbitMQ.Host)
	num("TC_RABBITMQ_PORT", &cfg.RabbitMQ.Port)
	str("TC_RABBITMQ_USER", &cfg.RabbitMQ.User)
	str("TC_RABBITMQ_PASSWORD", &cfg.RabbitMQ.Password)

	num("TC_CHAT_PORT", &cfg.Services.ChatServicePort)
	num("TC_NOTIFICATION_PORT", &cfg.Services.NotificationServicePort)

	str("TC_JWT_SECRET", &cfg.JWT.SecretKey)
	dur("TC_JWT_TTL", &cfg.JWT.TTL)
	str("TC_LOG_LEVEL", &cfg.Log.Level)

	str("TC_TRANSITION_POLICY", &cfg.Chat.TransitionPolicy)
	dur("TC_IDLE_TIMEOUT", &cfg.Chat.IdleTimeout)
	flag("TC_DEV_TOKENS", &cfg.Chat.EnableDevTokens)

	flag("TC_RETENTION_ENABLED", &cfg.Retention.Enabled)
	str("TC_RETENTION_CRON", &cfg.Retention.Cron)

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}
