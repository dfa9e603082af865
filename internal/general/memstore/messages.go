package memstore

import (
	"context"
	"strings"
	"time"

	"transport-connect/internal/domain/message"
	"transport-connect/internal/ports"

	"github.com/google/uuid"
)

type messageRepo struct{ s *Store }

func (repo *messageRepo) Create(ctx context.Context, m *message.Message) error {
	t, err := mustTx(ctx)
	if err != nil {
		return err
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	repo.s.seq++
	m.Seq = repo.s.seq

	repo.s.messages[m.ID] = m.Clone()
	prevIDs := repo.s.byRequest[m.RequestID]
	repo.s.byRequest[m.RequestID] = append(append([]string(nil), prevIDs...), m.ID)

	id := m.ID
	t.onRollback(func() {
		delete(repo.s.messages, id)
		repo.s.byRequest[m.RequestID] = prevIDs
	})
	return nil
}

func (repo *messageRepo) GetByID(ctx context.Context, id string) (*message.Message, error) {
	if _, err := mustTx(ctx); err != nil {
		return nil, err
	}
	m, ok := repo.s.messages[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return m.Clone(), nil
}

func (repo *messageRepo) GetForUpdate(ctx context.Context, id string) (*message.Message, error) {
	return repo.GetByID(ctx, id)
}

func (repo *messageRepo) Update(ctx context.Context, m *message.Message) error {
	t, err := mustTx(ctx)
	if err != nil {
		return err
	}
	prev, ok := repo.s.messages[m.ID]
	if !ok {
		return ports.ErrNotFound
	}
	repo.s.messages[m.ID] = m.Clone()
	t.onRollback(func() { repo.s.messages[m.ID] = prev })
	return nil
}

func (repo *messageRepo) Recent(ctx context.Context, requestID string, limit int) ([]*message.Message, error) {
	if _, err := mustTx(ctx); err != nil {
		return nil, err
	}
	ids := repo.s.byRequest[requestID]
	out := make([]*message.Message, 0, min(limit, len(ids)))
	for i := len(ids) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, repo.s.messages[ids[i]].Clone())
	}
	return out, nil
}

func (repo *messageRepo) Page(ctx context.Context, requestID string, offset, limit int) ([]*message.Message, int, error) {
	if _, err := mustTx(ctx); err != nil {
		return nil, 0, err
	}
	visible := repo.newestFirst(requestID, func(m *message.Message) bool { return !m.IsDeleted })
	total := len(visible)
	if offset >= total {
		return []*message.Message{}, total, nil
	}
	end := min(offset+limit, total)
	return visible[offset:end], total, nil
}

func (repo *messageRepo) Unread(ctx context.Context, requestID, reader string) ([]*message.Message, error) {
	if _, err := mustTx(ctx); err != nil {
		return nil, err
	}
	var out []*message.Message
	for _, id := range repo.s.byRequest[requestID] {
		m := repo.s.messages[id]
		if unreadBy(m, reader) {
			out = append(out, m.Clone())
		}
	}
	return out, nil
}

func (repo *messageRepo) UnreadCount(ctx context.Context, requestID, reader string) (int, error) {
	if _, err := mustTx(ctx); err != nil {
		return 0, err
	}
	n := 0
	for _, id := range repo.s.byRequest[requestID] {
		if unreadBy(repo.s.messages[id], reader) {
			n++
		}
	}
	return n, nil
}

func (repo *messageRepo) Search(ctx context.Context, requestID, query string, limit int) ([]*message.Message, error) {
	if _, err := mustTx(ctx); err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	hits := repo.newestFirst(requestID, func(m *message.Message) bool {
		return !m.IsDeleted && m.Kind == message.KindText && strings.Contains(strings.ToLower(m.Content), q)
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (repo *messageRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	t, err := mustTx(ctx)
	if err != nil {
		return 0, err
	}
	var n int64
	for rid, ids := range repo.s.byRequest {
		kept := make([]string, 0, len(ids))
		for _, id := range ids {
			m := repo.s.messages[id]
			if m.ExpiresAt != nil && !m.ExpiresAt.After(now) {
				delete(repo.s.messages, id)
				t.onRollback(func() { repo.s.messages[id] = m })
				n++
				continue
			}
			kept = append(kept, id)
		}
		if len(kept) != len(ids) {
			prev := ids
			repo.s.byRequest[rid] = kept
			t.onRollback(func() { repo.s.byRequest[rid] = prev })
		}
	}
	return n, nil
}

func (repo *messageRepo) newestFirst(requestID string, keep func(*message.Message) bool) []*message.Message {
	ids := repo.s.byRequest[requestID]
	out := make([]*message.Message, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		if m := repo.s.messages[ids[i]]; keep(m) {
			out = append(out, m.Clone())
		}
	}
	return out
}

func unreadBy(m *message.Message, reader string) bool {
	return !m.IsDeleted && m.SenderID != reader && !m.IsReadBy(reader)
}
