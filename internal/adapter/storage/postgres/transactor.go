package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// writeTxOptions is used for every sync write. Journal entries are serialized
// by SELECT ... FOR UPDATE, so read committed is enough.
var writeTxOptions = pgx.TxOptions{
	IsoLevel:   pgx.ReadCommitted,
	AccessMode: pgx.ReadWrite,
}

// Transactor opens the transactions journal entry writes run in.
type Transactor struct {
	pool Pool
}

func NewTransactor(pool Pool) *Transactor {
	return &Transactor{pool: pool}
}

// Begin starts a read-committed, read-write transaction.
func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := t.pool.BeginTx(ctx, writeTxOptions)
	if err != nil {
		return nil, fmt.Errorf("begin sync transaction: %w", err)
	}
	return tx, nil
}
