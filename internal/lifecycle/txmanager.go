package lifecycle

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/RehanTaneja/Nutricious4u-sub002/internal/db"
	"github.com/RehanTaneja/Nutricious4u-sub002/internal/types"
)

// PgxTxManager implements TxManager using pgxpool transactions. The callback
// receives repositories bound to the open transaction; commit happens only
// when the callback returns nil.
type PgxTxManager struct {
	pool *pgxpool.Pool
}

// NewPgxTxManager creates a PgxTxManager over the given pool.
func NewPgxTxManager(pool *pgxpool.Pool) *PgxTxManager {
	return &PgxTxManager{pool: pool}
}

func (m *PgxTxManager) RunInTx(ctx context.Context, fn func(ctx context.Context, txRules RuleStore, txInstances InstanceStore) error) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, db.NewRuleRepository(tx), db.NewInstanceRepository(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to commit transaction", err)
	}
	return nil
}
