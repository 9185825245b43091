package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/geocoder89/attendhub/internal/domain/event"
	"github.com/geocoder89/attendhub/internal/domain/user"
	"github.com/geocoder89/attendhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// base is shared by the repositories: the pool plus optional metrics.
type base struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

// observe times fn. Lookups that legitimately find nothing, and other domain
// outcomes, are not counted as database errors.
func (b base) observe(op string, fn func() error) error {
	if b.prom == nil {
		return fn()
	}

	var outcome error
	err := b.prom.ObserveDB(op, func() error {
		err := fn()
		if isDomainOutcome(err) {
			outcome = err
			return nil
		}
		return err
	})
	if outcome != nil {
		return outcome
	}
	return err
}

func isDomainOutcome(err error) bool {
	if err == nil {
		return false
	}
	for _, target := range []error{
		pgx.ErrNoRows,
		event.ErrNotFound, event.ErrAlreadyAttending, event.ErrNotAttending,
		user.ErrNotFound, user.ErrUserNameTaken,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// inTx runs fn in a transaction, rolling back on error.
func (b base) inTx(ctx context.Context, fn func(pgx.Tx) error) (err error) {
	tx, err := b.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Ping satisfies readiness checks.
func Ping(ctx context.Context, pool *pgxpool.Pool) error {
	return pool.Ping(ctx)
}
