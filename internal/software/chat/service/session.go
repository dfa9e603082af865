package service

import (
	"context"
	"errors"
	"time"

	"transport-connect/internal/domain/user"
	"transport-connect/internal/general/apperr"
	"transport-connect/internal/general/contracts"
	"transport-connect/internal/general/realtime"
	"transport-connect/internal/ports"
)

// ResolveIdentity checks a verified credential against the user store. The
// stored role must match the claimed one and the account must be active.
func (service *chatService) ResolveIdentity(ctx context.Context, userID string, role user.Role) (user.Identity, error) {
	var u *user.User
	err := service.uow.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		u, err = service.users.GetByID(ctx, userID)
		return err
	})
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return user.Identity{}, apperr.Unauthenticated("unknown user", err)
		}
		return user.Identity{}, storeErr("user", err)
	}
	if u.Role != role {
		return user.Identity{}, apperr.Unauthenticated("role does not match account", nil)
	}
	if !u.Status.CanConnect() {
		return user.Identity{}, apperr.Forbidden("account is "+u.Status.String(), nil)
	}
	return u.Identity(), nil
}

// Connect registers an authenticated peer and announces the user online.
// A previous connection of the same user is closed and its rooms are
// dropped; the new connection joins what it needs.
func (service *chatService) Connect(ctx context.Context, who user.Identity, peer realtime.Peer) {
	if replaced := service.hub.Registry().Register(peer); replaced != nil {
		replaced.Close()
		rooms := service.hub.LeaveAll(who.ID)
		service.logger.Info(ctx, "connection_replaced", "Newer connection took over", map[string]any{
			"conn_id": replaced.ConnID(),
			"rooms":   len(rooms),
		})
	}
	service.hub.ToAll(contracts.EventUserOnline, contracts.Presence{
		UserID:   who.ID,
		LastSeen: service.now(),
	}, who.ID)
	service.logger.Info(ctx, "user_connected", "User connected", map[string]any{
		"conn_id": peer.ConnID(),
		"role":    who.Role.String(),
	})
}

// Disconnect tears down connID. Nothing happens when a newer connection
// already owns the user, so user_offline is sent once.
func (service *chatService) Disconnect(ctx context.Context, who user.Identity, connID string) {
	if _, ok := service.hub.Registry().Unregister(who.ID, connID); !ok {
		return
	}
	service.goOffline(who.ID, service.now())
	service.logger.Info(ctx, "user_disconnected", "User disconnected", map[string]any{"conn_id": connID})
}

// Heartbeat refreshes the last-seen time of who.
func (service *chatService) Heartbeat(who user.Identity) {
	service.hub.Registry().Touch(who.ID)
}

// RunPresenceSweeper evicts idle connections every SweepInterval until ctx ends.
func (service *chatService) RunPresenceSweeper(ctx context.Context) {
	ticker := time.NewTicker(service.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			service.sweepIdle(ctx)
		}
	}
}

func (service *chatService) sweepIdle(ctx context.Context) []realtime.Presence {
	evicted := service.hub.Registry().EvictIdle(service.opts.IdleTimeout)
	for _, p := range evicted {
		service.goOffline(p.UserID, p.LastSeen)
	}
	if len(evicted) > 0 {
		service.logger.Info(ctx, "idle_connections_evicted", "Evicted idle connections", map[string]any{
			"count": len(evicted),
		})
	}
	return evicted
}

func (service *chatService) goOffline(userID string, lastSeen time.Time) {
	service.hub.LeaveAll(userID)
	service.hub.ToAll(contracts.EventUserOffline, contracts.Presence{UserID: userID, LastSeen: lastSeen}, userID)
}
