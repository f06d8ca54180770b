package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xenking/kart-promotions/internal/domain/order"
)

var _ order.Transactor = (*UnitOfWork)(nil)

// UnitOfWork runs functions inside SERIALIZABLE transactions. Repositories
// called with the function's context use the transaction transparently.
type UnitOfWork struct {
	pool       *pgxpool.Pool
	maxRetries int
	backoff    time.Duration
}

// NewUnitOfWork returns a UnitOfWork that retries serialization failures up
// to maxRetries times.
func NewUnitOfWork(pool *pgxpool.Pool, maxRetries int) *UnitOfWork {
	return &UnitOfWork{pool: pool, maxRetries: maxRetries, backoff: 10 * time.Millisecond}
}

// Do runs fn in a transaction and commits when it returns nil. If ctx
// already carries a transaction, fn joins it.
func (u *UnitOfWork) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}
	return retrySerializable(ctx, u.maxRetries, u.backoff, func() error {
		return u.attempt(ctx, fn)
	})
}

func (u *UnitOfWork) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := u.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

// retrySerializable calls attempt until it succeeds, fails with an error
// that is not a serialization conflict, or maxRetries retries are spent.
func retrySerializable(ctx context.Context, maxRetries int, backoff time.Duration, attempt func() error) error {
	for i := 0; ; i++ {
		err := attempt()
		if err == nil || !isRetryable(err) || i >= maxRetries {
			return err
		}
		zctx.From(ctx).Debug("Retrying serialization conflict",
			zap.Int("attempt", i+1),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff * time.Duration(i+1)):
		}
	}
}

func isRetryable(err error) bool {
	return hasCode(err, codeSerializationFailure) || hasCode(err, codeDeadlockDetected)
}
