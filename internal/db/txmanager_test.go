package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/checkout"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/domain"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/money"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return mock
}

func expectBegin(mock pgxmock.PgxPoolIface) {
	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mock.ExpectExec(`set_config\('lock_timeout'`).
		WithArgs("5000ms").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
}

func quantityRows(q int) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"quantity"}).AddRow(q)
}

func twoLineCart(t *testing.T) *cart.Cart {
	t.Helper()
	c := cart.New()
	require.NoError(t, c.AddLine(1, money.MustParse("2.50"), 2, 100))
	require.NoError(t, c.AddLine(2, money.MustParse("10.00"), 1, 100))
	return c
}

func TestCheckoutThroughTxManagerCommits(t *testing.T) {
	mock := newMock(t)
	createdAt := time.Date(2025, 4, 2, 15, 4, 5, 0, time.UTC)

	expectBegin(mock)
	mock.ExpectQuery(`FOR UPDATE`).WithArgs(int64(1)).WillReturnRows(quantityRows(5))
	mock.ExpectQuery(`FOR UPDATE`).WithArgs(int64(2)).WillReturnRows(quantityRows(3))
	mock.ExpectQuery(`INSERT INTO sales`).
		WithArgs("15.00").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(77), createdAt))
	mock.ExpectExec(`INSERT INTO sale_lines`).
		WithArgs(int64(77), int64(1), 2, "2.50", "5.00").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`quantity = quantity - \$2`).
		WithArgs(int64(1), 2).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO sale_lines`).
		WithArgs(int64(77), int64(2), 1, "10.00", "10.00").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`quantity = quantity - \$2`).
		WithArgs(int64(2), 1).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	co := checkout.New(NewTxManager(mock, 5*time.Second))
	receipt, err := co.Execute(context.Background(), twoLineCart(t))
	require.NoError(t, err)
	require.Equal(t, int64(77), receipt.Sale.ID)
	require.Equal(t, createdAt, receipt.Sale.CreatedAt)
	require.Equal(t, "15.00", receipt.Sale.Total.String())
}

func TestCheckoutThroughTxManagerRollsBackShortStock(t *testing.T) {
	mock := newMock(t)

	expectBegin(mock)
	mock.ExpectQuery(`FOR UPDATE`).WithArgs(int64(1)).WillReturnRows(quantityRows(5))
	mock.ExpectQuery(`FOR UPDATE`).WithArgs(int64(2)).WillReturnRows(quantityRows(0))
	mock.ExpectRollback()

	co := checkout.New(NewTxManager(mock, 5*time.Second))
	_, err := co.Execute(context.Background(), twoLineCart(t))

	var stockErr *domain.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	require.Equal(t, int64(2), stockErr.ProductID)
	require.Equal(t, 0, stockErr.Available)
}

func TestCheckoutThroughTxManagerLockTimeout(t *testing.T) {
	mock := newMock(t)

	expectBegin(mock)
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(int64(1)).
		WillReturnError(&pgconn.PgError{Code: "55P03", Message: "canceling statement due to lock timeout"})
	mock.ExpectRollback()

	co := checkout.New(NewTxManager(mock, 5*time.Second))
	_, err := co.Execute(context.Background(), twoLineCart(t))
	require.ErrorIs(t, err, domain.ErrLockTimeout)
	require.True(t, domain.Retryable(err))
}

func TestCheckoutThroughTxManagerCommitFailure(t *testing.T) {
	mock := newMock(t)
	c := cart.New()
	require.NoError(t, c.AddLine(1, money.MustParse("1.00"), 1, 10))

	expectBegin(mock)
	mock.ExpectQuery(`FOR UPDATE`).WithArgs(int64(1)).WillReturnRows(quantityRows(5))
	mock.ExpectQuery(`INSERT INTO sales`).
		WithArgs("1.00").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(1), time.Now()))
	mock.ExpectExec(`INSERT INTO sale_lines`).
		WithArgs(int64(1), int64(1), 1, "1.00", "1.00").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`quantity = quantity - \$2`).
		WithArgs(int64(1), 1).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit().WillReturnError(errors.New("connection lost"))
	mock.ExpectRollback()

	co := checkout.New(NewTxManager(mock, 5*time.Second))
	_, err := co.Execute(context.Background(), c)
	require.ErrorIs(t, err, domain.ErrPersistence)
}

func TestBeginFailsWhenLockTimeoutCannotBeSet(t *testing.T) {
	mock := newMock(t)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mock.ExpectExec(`set_config`).WithArgs("250ms").WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	_, err := NewTxManager(mock, 250*time.Millisecond).Begin(context.Background())
	require.ErrorIs(t, err, domain.ErrPersistence)
}

func TestBeginPassesCancellationThrough(t *testing.T) {
	mock := newMock(t)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted}).WillReturnError(context.Canceled)

	_, err := NewTxManager(mock, 0).Begin(context.Background())
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, errors.Is(err, domain.ErrPersistence))
	require.Equal(t, "canceled", checkout.Outcome(err))
}

func TestCheckoutCanceledDuringBeginIsNotPersistence(t *testing.T) {
	mock := newMock(t)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mock.ExpectExec(`set_config`).WithArgs("5000ms").WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	_, err := checkout.New(NewTxManager(mock, 5*time.Second)).Execute(context.Background(), twoLineCart(t))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.False(t, errors.Is(err, domain.ErrPersistence))
}

func TestRollbackAfterCommitIsNoop(t *testing.T) {
	mock := newMock(t)

	expectBegin(mock)
	mock.ExpectCommit()

	uow, err := NewTxManager(mock, 5*time.Second).Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, uow.Commit(context.Background()))
	require.NoError(t, uow.Rollback(context.Background()))
}

func TestInTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commits", func(t *testing.T) {
		mock := newMock(t)
		expectBegin(mock)
		mock.ExpectExec(`UPDATE products`).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		err := NewTxManager(mock, 5*time.Second).InTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
			_, err := tx.Exec(ctx, `UPDATE products SET quantity = quantity + 1 WHERE id = 1`)
			return err
		})
		require.NoError(t, err)
	})

	t.Run("rolls back on error", func(t *testing.T) {
		mock := newMock(t)
		expectBegin(mock)
		mock.ExpectRollback()

		sentinel := errors.New("handler failed")
		err := NewTxManager(mock, 5*time.Second).InTx(ctx, func(context.Context, pgx.Tx) error {
			return sentinel
		})
		require.ErrorIs(t, err, sentinel)
	})
}

func TestLockTimeoutSetting(t *testing.T) {
	require.Equal(t, "5000ms", LockTimeoutSetting(5*time.Second))
	require.Equal(t, "1ms", LockTimeoutSetting(time.Microsecond))
}
