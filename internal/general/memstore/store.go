package memstore

import (
	"context"
	"errors"
	"sync"

	"transport-connect/internal/domain/message"
	"transport-connect/internal/domain/notification"
	"transport-connect/internal/domain/request"
	"transport-connect/internal/domain/user"
	"transport-connect/internal/ports"
)

// Store is an in-process implementation of every repository port. A single
// mutex serializes transactions; writes record undo steps so a failed
// transaction leaves no trace.
type Store struct {
	mu sync.Mutex

	users         map[string]*user.User
	requests      map[string]*request.Request
	messages      map[string]*message.Message
	byRequest     map[string][]string // request id -> message ids in seq order
	notifications map[string][]*notification.Notification
	seq           int64
}

func New() *Store {
	return &Store{
		users:         make(map[string]*user.User),
		requests:      make(map[string]*request.Request),
		messages:      make(map[string]*message.Message),
		byRequest:     make(map[string][]string),
		notifications: make(map[string][]*notification.Notification),
	}
}

type txKey struct{}

type tx struct {
	undo []func()
}

func (t *tx) onRollback(fn func()) {
	t.undo = append(t.undo, fn)
}

var errNoTx = errors.New("no transaction in context: call this repository within UnitOfWork.WithinTx")

func mustTx(ctx context.Context) (*tx, error) {
	if t, ok := ctx.Value(txKey{}).(*tx); ok {
		return t, nil
	}
	return nil, errNoTx
}

type unitOfWork struct {
	store *Store
}

// UnitOfWork returns the transaction runner bound to s.
func (s *Store) UnitOfWork() ports.UnitOfWork {
	return &unitOfWork{store: s}
}

// WithinTx runs fn under the store lock. Nested calls join the outer transaction.
func (uow *unitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(*tx); ok {
		return fn(ctx)
	}

	uow.store.mu.Lock()
	defer uow.store.mu.Unlock()

	t := &tx{}
	defer func() {
		if p := recover(); p != nil {
			t.rollback()
			panic(p)
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, t)); err != nil {
		t.rollback()
		return err
	}
	return nil
}

func (t *tx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (s *Store) Users() ports.UserRepository                 { return &userRepo{s} }
func (s *Store) Requests() ports.RequestRepository           { return &requestRepo{s} }
func (s *Store) Messages() ports.MessageRepository           { return &messageRepo{s} }
func (s *Store) Notifications() ports.NotificationRepository { return &notificationRepo{s} }
