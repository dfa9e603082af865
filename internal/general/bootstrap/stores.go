// Package bootstrap holds the process wiring both services share: store
// selection, broker connection and the HTTP server lifecycle.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"transport-connect/internal/general/config"
	"transport-connect/internal/general/httpx"
	"transport-connect/internal/general/logger"
	"transport-connect/internal/general/memstore"
	"transport-connect/internal/general/postgres"
	"transport-connect/internal/general/rabbitmq"
	"transport-connect/internal/ports"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

var ErrBrokerDown = errors.New("broker connection is not ready")

// Stores is the selected store of record.
type Stores struct {
	Kind          string
	UoW           ports.UnitOfWork
	Users         ports.UserRepository
	Requests      ports.RequestRepository
	Messages      ports.MessageRepository
	Notifications ports.NotificationRepository
	Check         httpx.Check
	Close         func()
}

// OpenStores connects Postgres (and applies the schema) or builds a seeded
// in-memory store.
func OpenStores(ctx context.Context, kind string, cfg *config.Config, log *logger.Logger) (*Stores, error) {
	switch kind {
	case StoreMemory:
		mem := memstore.New()
		if err := memstore.Seed(ctx, mem); err != nil {
			return nil, fmt.Errorf("seed memory store: %w", err)
		}
		log.Info(ctx, "memory_store_ready", "Using seeded in-memory store", map[string]any{
			"driver_id":  memstore.DemoDriverID,
			"shipper_id": memstore.DemoShipperID,
			"admin_id":   memstore.DemoAdminID,
			"request_id": memstore.DemoRequestID,
		})
		return &Stores{
			Kind:          kind,
			UoW:           mem.UnitOfWork(),
			Users:         mem.Users(),
			Requests:      mem.Requests(),
			Messages:      mem.Messages(),
			Notifications: mem.Notifications(),
			Check:         func(context.Context) error { return nil },
			Close:         func() {},
		}, nil

	case StorePostgres, "":
		pool, err := postgres.NewPool(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return &Stores{
			Kind:          StorePostgres,
			UoW:           postgres.NewUnitOfWork(pool),
			Users:         postgres.NewUserRepo(),
			Requests:      postgres.NewRequestRepo(),
			Messages:      postgres.NewMessageRepo(),
			Notifications: postgres.NewNotificationRepo(),
			Check:         func(ctx context.Context) error { return pool.Ping(ctx) },
			Close:         pool.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unknown store %q: use postgres or memory", kind)
	}
}

// BrokerCheck reports the broker connection state for /health.
func BrokerCheck(client *rabbitmq.Client) httpx.Check {
	return func(context.Context) error {
		if !client.Ready() {
			return ErrBrokerDown
		}
		return nil
	}
}
