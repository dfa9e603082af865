package postgres

import (
	"context"
	"errors"
	"fmt"

	"transport-connect/internal/ports"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ctxKey struct{}

var txKey = ctxKey{}

var errNoTx = errors.New("no transaction in context: call this repository within UnitOfWork.WithinTx")

type unitOfWork struct {
	pool *pgxpool.Pool
}

// NewUnitOfWork binds a transaction runner to pool.
func NewUnitOfWork(pool *pgxpool.Pool) ports.UnitOfWork {
	return &unitOfWork{pool: pool}
}

// WithinTx runs fn in a read-committed transaction carried by the context.
// Nested calls join the outer transaction. Errors and panics roll back.
func (uow *unitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := TxFromContext(ctx); ok {
		return fn(ctx)
	}

	tx, err := uow.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey, tx)); err != nil {
		_ = tx.Rollback(context.WithoutCancel(ctx))
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// TxFromContext extracts the current pgx.Tx from ctx if present.
func TxFromContext(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey).(pgx.Tx)
	return tx, ok
}

// MustTxFromContext returns the active pgx.Tx or an error if none is found.
func MustTxFromContext(ctx context.Context) (pgx.Tx, error) {
	if tx, ok := TxFromContext(ctx); ok {
		return tx, nil
	}
	return nil, errNoTx
}

// notFound maps pgx.ErrNoRows to ports.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ports.ErrNotFound
	}
	return err
}
