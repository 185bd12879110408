package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// MaxTxAttempts bounds how often WithTx runs a transaction that keeps losing
// serialization races.
const MaxTxAttempts = 3

// TxBeginner is satisfied by *pgxpool.Pool and *pgx.Conn.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// WithTx runs fn in a repeatable read transaction. The transaction commits
// only when fn returns nil. When fn or the commit fails with a serialization
// failure the whole transaction is re-run, up to MaxTxAttempts times, so fn
// must only touch state it assigns afresh on every call.
func WithTx(ctx context.Context, db TxBeginner, fn func(pgx.Tx) error) error {
	var err error
	for attempt := 1; attempt <= MaxTxAttempts; attempt++ {
		err = runTx(ctx, db, fn)
		if !IsSerializationFailure(err) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return err
		}
	}
	return err
}

func runTx(ctx context.Context, db TxBeginner, fn func(pgx.Tx) error) error {
	tx, err := db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}

	return nil
}
