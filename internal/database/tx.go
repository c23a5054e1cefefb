package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mmogame/backend/internal/models"
)

// Querier is the statement surface shared by *sql.DB and *sql.Tx, so a
// store can run either standalone or as part of a caller's transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// InTx runs fn inside a transaction and commits when fn returns nil. When q
// already is a transaction fn joins it and the outer caller commits.
func InTx(ctx context.Context, q Querier, fn func(tx *sql.Tx) error) error {
	switch db := q.(type) {
	case *sql.Tx:
		return fn(db)
	case *sql.DB:
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return models.NewStorageError("begin", err)
		}
		defer tx.Rollback()
		if err := fn(tx); err != nil {
			return err
		}
		return models.NewStorageError("commit", tx.Commit())
	default:
		return fmt.Errorf("unsupported querier %T", q)
	}
}
