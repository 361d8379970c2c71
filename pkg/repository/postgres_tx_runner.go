package repository

import (
	"context"
	"database/sql"

	"github.com/gengine/core/pkg/errors"
)

// PostgresTxRunner implements TxRunner over a PostgreSQL connection pool.
type PostgresTxRunner struct {
	db *sql.DB
}

// NewPostgresTxRunner creates a TxRunner backed by db.
func NewPostgresTxRunner(db *sql.DB) *PostgresTxRunner {
	return &PostgresTxRunner{db: db}
}

// RunInTx begins a transaction, runs fn with it, and commits when fn returns nil.
// Any error from fn rolls the transaction back and is returned unchanged, so no
// partially-applied state is ever visible to other connections.
func (r *PostgresTxRunner) RunInTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewStoreError("begin transaction", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.NewStoreError("commit transaction", err)
	}
	return nil
}

var _ TxRunner = (*PostgresTxRunner)(nil)
