package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"transport-connect/internal/domain/message"
	"transport-connect/internal/domain/notification"
	"transport-connect/internal/domain/request"
	"transport-connect/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(t *testing.T) *Store {
	t.Helper()
	s := New()
	require.NoError(t, Seed(context.Background(), s))
	return s
}

func TestRepositoriesRequireTransaction(t *testing.T) {
	s := seeded(t)
	_, err := s.Requests().GetByID(context.Background(), DemoRequestID)
	require.Error(t, err)
}

func TestRollbackUndoesWrites(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.UnitOfWork().WithinTx(ctx, func(txCtx context.Context) error {
		m, err := message.New(message.Draft{RequestID: DemoRequestID, SenderID: DemoDriverID, Content: "hi"}, 0, time.Now())
		require.NoError(t, err)
		require.NoError(t, s.Messages().Create(txCtx, m))
		require.NoError(t, s.Requests().TouchLastMessage(txCtx, DemoRequestID, time.Now()))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_ = s.UnitOfWork().WithinTx(ctx, func(txCtx context.Context) error {
		msgs, err := s.Messages().Recent(txCtx, DemoRequestID, 50)
		require.NoError(t, err)
		assert.Empty(t, msgs)

		r, err := s.Requests().GetByID(txCtx, DemoRequestID)
		require.NoError(t, err)
		assert.Nil(t, r.LastMessageAt)
		return nil
	})
}

func TestUpdateStatusIsConditional(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	now := time.Now()

	err := s.UnitOfWork().WithinTx(ctx, func(txCtx context.Context) error {
		r, err := s.Requests().GetForUpdate(txCtx, DemoRequestID)
		require.NoError(t, err)
		entry, err := r.Transition(request.StatusAccepted, DemoDriverID, "", nil, now)
		require.NoError(t, err)
		require.NoError(t, s.Requests().UpdateStatus(txCtx, r, request.StatusPending, entry))

		// a second writer still believing the request is pending loses
		return s.Requests().UpdateStatus(txCtx, r, request.StatusPending, entry)
	})
	require.ErrorIs(t, err, ports.ErrStaleState)

	_ = s.UnitOfWork().WithinTx(ctx, func(txCtx context.Context) error {
		r, err := s.Requests().GetByID(txCtx, DemoRequestID)
		require.NoError(t, err)
		assert.Equal(t, request.StatusPending, r.Status)
		assert.Len(t, r.Timeline, 1)
		return nil
	})
}

func TestMessageQueries(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	var ids []string
	err := s.UnitOfWork().WithinTx(ctx, func(txCtx context.Context) error {
		for i, content := range []string{"Hello there", "pickup at noon?", "HELLO again", "bye"} {
			sender := DemoDriverID
			if i%2 == 1 {
				sender = DemoShipperID
			}
			m, err := message.New(message.Draft{RequestID: DemoRequestID, SenderID: sender, Content: content}, 0, base)
			require.NoError(t, err)
			require.NoError(t, s.Messages().Create(txCtx, m))
			ids = append(ids, m.ID)
		}
		last, err := s.Messages().GetForUpdate(txCtx, ids[3])
		require.NoError(t, err)
		_, err = last.Delete(DemoShipperID, false, base)
		require.NoError(t, err)
		return s.Messages().Update(txCtx, last)
	})
	require.NoError(t, err)

	_ = s.UnitOfWork().WithinTx(ctx, func(txCtx context.Context) error {
		recent, err := s.Messages().Recent(txCtx, DemoRequestID, 2)
		require.NoError(t, err)
		require.Len(t, recent, 2)
		// same timestamp: insertion order decides
		assert.Equal(t, ids[3], recent[0].ID)
		assert.Equal(t, ids[2], recent[1].ID)

		page, total, err := s.Messages().Page(txCtx, DemoRequestID, 0, 10)
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		assert.Equal(t, ids[2], page[0].ID)

		hits, err := s.Messages().Search(txCtx, DemoRequestID, "hello", 20)
		require.NoError(t, err)
		require.Len(t, hits, 2)
		assert.Equal(t, ids[2], hits[0].ID)

		unread, err := s.Messages().UnreadCount(txCtx, DemoRequestID, DemoShipperID)
		require.NoError(t, err)
		assert.Equal(t, 2, unread)
		return nil
	})
}

func TestDeleteExpired(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	err := s.UnitOfWork().WithinTx(ctx, func(txCtx context.Context) error {
		short, _ := message.New(message.Draft{RequestID: DemoRequestID, SenderID: DemoDriverID, Content: "soon gone", TTL: time.Minute}, 0, now)
		keep, _ := message.New(message.Draft{RequestID: DemoRequestID, SenderID: DemoDriverID, Content: "stays"}, 0, now)
		require.NoError(t, s.Messages().Create(txCtx, short))
		require.NoError(t, s.Messages().Create(txCtx, keep))

		n, err := s.Messages().DeleteExpired(txCtx, now.Add(2*time.Minute))
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		left, err := s.Messages().Recent(txCtx, DemoRequestID, 10)
		require.NoError(t, err)
		require.Len(t, left, 1)
		assert.Equal(t, "stays", left[0].Content)
		return nil
	})
	require.NoError(t, err)
}

func TestNotificationsAreCapped(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	err := s.UnitOfWork().WithinTx(ctx, func(txCtx context.Context) error {
		for i := 0; i < 5; i++ {
			n := notification.FromIntent(string(rune('a'+i)), notification.Intent{UserID: DemoShipperID, Title: "t"}, nil, time.Now())
			require.NoError(t, s.Notifications().Save(txCtx, n, 3))
		}
		list, err := s.Notifications().ListForUser(txCtx, DemoShipperID, 0)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, "e", list[0].ID)
		assert.Equal(t, "c", list[2].ID)

		require.NoError(t, s.Notifications().MarkRead(txCtx, DemoShipperID, "d", time.Now()))
		assert.ErrorIs(t, s.Notifications().MarkRead(txCtx, DemoShipperID, "a", time.Now()), ports.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}
