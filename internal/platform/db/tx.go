package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// WithTx executes a function within a transaction using the RepeatableRead
// isolation level, so every fold over a party's history sees one snapshot.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	return run(ctx, pool, pgx.TxOptions{IsoLevel: pgx.RepeatableRead}, fn)
}

// WithWriteTx executes a function within a ReadCommitted transaction.
// Write paths that serialize on an advisory lock must use this level:
// RepeatableRead pins the snapshot at the transaction's first query, which
// may run before the lock is granted, hiding rows the previous lock holder
// committed. Under ReadCommitted every statement issued after LockOrder
// returns sees those rows.
func WithWriteTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	return run(ctx, pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, fn)
}

func run(ctx context.Context, pool *pgxpool.Pool, opts pgx.TxOptions, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, opts)
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

// Advisory lock namespace for per-order credit-note serialization, folded
// into the high bits of the bigint lock key. Must not collide with other
// lock classes should any be added.
const orderLockClass int64 = 4201

// LockOrder takes a transaction-scoped advisory lock on the order, blocking
// concurrent credit-note writers against the same order until commit or
// rollback. Writers on different orders never contend.
func LockOrder(ctx context.Context, tx pgx.Tx, orderID int64) error {
	key := orderLockClass<<48 ^ orderID
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, key); err != nil {
		return fmt.Errorf("platform/db: lock order %d: %w", orderID, err)
	}
	return nil
}
