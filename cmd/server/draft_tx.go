package main

import (
	"context"
	"database/sql"
	"fmt"

	"bizreg/internal/draft/store"
	dErrors "bizreg/pkg/domain-errors"
)

// draftPostgresTx runs draft service work in one database transaction. The
// service bounds the context; a cancelled context rolls back.
type draftPostgresTx struct {
	db *sql.DB
}

func newDraftPostgresTx(db *sql.DB) *draftPostgresTx {
	return &draftPostgresTx{db: db}
}

func (t *draftPostgresTx) RunInTx(ctx context.Context, fn func(st store.Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	tx, err := t.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin draft transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(store.NewPostgresTx(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit draft transaction: %w", err)
	}
	return nil
}
