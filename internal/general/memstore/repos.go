package memstore

import (
	"context"
	"strings"
	"time"

	"transport-connect/internal/domain/notification"
	"transport-connect/internal/domain/request"
	"transport-connect/internal/domain/user"
	"transport-connect/internal/ports"
)

type userRepo struct{ s *Store }

func (repo *userRepo) CreateUser(ctx context.Context, u *user.User) error {
	t, err := mustTx(ctx)
	if err != nil {
		return err
	}
	if _, exists := repo.s.users[u.ID]; exists {
		return ports.ErrStaleState
	}
	cp := *u
	repo.s.users[u.ID] = &cp
	t.onRollback(func() { delete(repo.s.users, u.ID) })
	return nil
}

func (repo *userRepo) GetByID(ctx context.Context, id string) (*user.User, error) {
	if _, err := mustTx(ctx); err != nil {
		return nil, err
	}
	u, ok := repo.s.users[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

type requestRepo struct{ s *Store }

func (repo *requestRepo) CreateRequest(ctx context.Context, r *request.Request) error {
	t, err := mustTx(ctx)
	if err != nil {
		return err
	}
	if _, exists := repo.s.requests[r.ID]; exists {
		return ports.ErrStaleState
	}
	repo.s.requests[r.ID] = r.Clone()
	t.onRollback(func() { delete(repo.s.requests, r.ID) })
	return nil
}

func (repo *requestRepo) GetByID(ctx context.Context, id string) (*request.Request, error) {
	if _, err := mustTx(ctx); err != nil {
		return nil, err
	}
	r, ok := repo.s.requests[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return r.Clone(), nil
}

// GetForUpdate needs no row lock: the store lock is held for the whole transaction.
func (repo *requestRepo) GetForUpdate(ctx context.Context, id string) (*request.Request, error) {
	return repo.GetByID(ctx, id)
}

func (repo *requestRepo) UpdateStatus(ctx context.Context, r *request.Request, from request.Status, entry request.TimelineEntry) error {
	t, err := mustTx(ctx)
	if err != nil {
		return err
	}
	prev, ok := repo.s.requests[r.ID]
	if !ok {
		return ports.ErrNotFound
	}
	if prev.Status != from {
		return ports.ErrStaleState
	}

	next := prev.Clone()
	next.Status = entry.Status
	next.Timeline = append(next.Timeline, entry)
	next.UpdatedAt = entry.At
	repo.s.requests[r.ID] = next
	t.onRollback(func() { repo.s.requests[r.ID] = prev })
	return nil
}

func (repo *requestRepo) TouchLastMessage(ctx context.Context, id string, at time.Time) error {
	t, err := mustTx(ctx)
	if err != nil {
		return err
	}
	prev, ok := repo.s.requests[id]
	if !ok {
		return ports.ErrNotFound
	}
	next := prev.Clone()
	at = at.UTC()
	next.LastMessageAt = &at
	repo.s.requests[id] = next
	t.onRollback(func() { repo.s.requests[id] = prev })
	return nil
}

type notificationRepo struct{ s *Store }

func (repo *notificationRepo) Save(ctx context.Context, n *notification.Notification, keepPerUser int) error {
	t, err := mustTx(ctx)
	if err != nil {
		return err
	}
	if keepPerUser <= 0 {
		keepPerUser = notification.DefaultKeepPerUser
	}
	prev := repo.s.notifications[n.UserID]
	cp := *n
	next := append(append([]*notification.Notification(nil), prev...), &cp)
	if over := len(next) - keepPerUser; over > 0 {
		next = next[over:]
	}
	repo.s.notifications[n.UserID] = next
	t.onRollback(func() { repo.s.notifications[n.UserID] = prev })
	return nil
}

// ListForUser returns newest first.
func (repo *notificationRepo) ListForUser(ctx context.Context, userID string, limit int) ([]*notification.Notification, error) {
	if _, err := mustTx(ctx); err != nil {
		return nil, err
	}
	all := repo.s.notifications[userID]
	out := make([]*notification.Notification, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		cp := *all[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (repo *notificationRepo) MarkRead(ctx context.Context, userID, id string, at time.Time) error {
	t, err := mustTx(ctx)
	if err != nil {
		return err
	}
	for _, n := range repo.s.notifications[userID] {
		if !strings.EqualFold(n.ID, id) {
			continue
		}
		if n.ReadAt != nil {
			return nil
		}
		n.MarkRead(at)
		target := n
		t.onRollback(func() { target.ReadAt = nil })
		return nil
	}
	return ports.ErrNotFound
}
