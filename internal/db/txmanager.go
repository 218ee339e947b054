package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/checkout"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/domain"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/inventory"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/ledger"
)

// TxBeginner matches *pgxpool.Pool.
type TxBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// TxManager opens read-committed transactions with a bounded lock wait. Row
// locks taken with SELECT ... FOR UPDATE give the isolation checkout needs.
type TxManager struct {
	pool        TxBeginner
	lockTimeout time.Duration
	inventory   *inventory.PostgresRepository
	ledger      *ledger.PostgresLedger
}

func NewTxManager(pool TxBeginner, lockTimeout time.Duration) *TxManager {
	return &TxManager{
		pool:        pool,
		lockTimeout: lockTimeout,
		inventory:   inventory.NewPostgresRepository(nil),
		ledger:      ledger.NewPostgresLedger(nil),
	}
}

// Begin implements checkout.UnitOfWorkFactory.
func (m *TxManager) Begin(ctx context.Context) (checkout.UnitOfWork, error) {
	tx, err := m.begin(ctx)
	if err != nil {
		return nil, err
	}
	return &unitOfWork{
		tx:        tx,
		inventory: m.inventory.WithExecutor(tx),
		ledger:    m.ledger.WithExecutor(tx),
	}, nil
}

// InTx runs fn in a transaction and commits when fn returns nil.
func (m *TxManager) InTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	tx, err := m.begin(ctx)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return &domain.PersistenceError{Op: "commit transaction", Err: err}
	}
	committed = true
	return nil
}

func (m *TxManager) begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := m.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, beginError("begin transaction", err)
	}

	if m.lockTimeout > 0 {
		// is_local=true scopes the setting to this transaction.
		if _, err := tx.Exec(ctx, `SELECT set_config('lock_timeout', $1, true)`, LockTimeoutSetting(m.lockTimeout)); err != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			return nil, beginError("set lock timeout", err)
		}
	}
	return tx, nil
}

// beginError leaves a caller that gave up reported as cancellation, not as a
// database failure.
func beginError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return &domain.PersistenceError{Op: op, Err: err}
}

// LockTimeoutSetting renders d the way Postgres expects for lock_timeout.
func LockTimeoutSetting(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return fmt.Sprintf("%dms", ms)
}

type unitOfWork struct {
	tx        pgx.Tx
	inventory *inventory.PostgresRepository
	ledger    *ledger.PostgresLedger
	committed bool
}

func (u *unitOfWork) Inventory() checkout.InventoryStore { return u.inventory }

func (u *unitOfWork) Ledger() checkout.SaleLedger { return u.ledger }

func (u *unitOfWork) Commit(ctx context.Context) error {
	if err := u.tx.Commit(ctx); err != nil {
		return &domain.PersistenceError{Op: "commit transaction", Err: err}
	}
	u.committed = true
	return nil
}

func (u *unitOfWork) Rollback(ctx context.Context) error {
	if u.committed {
		return nil
	}
	if err := u.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return &domain.PersistenceError{Op: "rollback transaction", Err: err}
	}
	return nil
}
