// Package ledger records finalized sales and reads them back for reports.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/domain"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/money"
)

type Executor interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type PostgresLedger struct {
	db Executor
}

func NewPostgresLedger(db Executor) *PostgresLedger {
	return &PostgresLedger{db: db}
}

func (l *PostgresLedger) WithExecutor(db Executor) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// InsertSaleHeader writes the sale row. The id and created_at come from the
// database, so the timestamp is the transaction's own clock.
func (l *PostgresLedger) InsertSaleHeader(ctx context.Context, total money.Money) (domain.Sale, error) {
	sale := domain.Sale{Total: total}
	err := l.db.QueryRow(ctx, `
		INSERT INTO sales (total)
		VALUES ($1::numeric)
		RETURNING id, created_at
	`, total.String()).Scan(&sale.ID, &sale.CreatedAt)
	if err != nil {
		return domain.Sale{}, translate("insert sale header", err)
	}
	return sale, nil
}

func (l *PostgresLedger) InsertSaleLine(ctx context.Context, saleID int64, line domain.SaleLine) error {
	_, err := l.db.Exec(ctx, `
		INSERT INTO sale_lines (sale_id, product_id, quantity, unit_price, subtotal)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric)
	`, saleID, line.ProductID, line.Quantity, line.UnitPrice.String(), line.Subtotal.String())
	if err != nil {
		return translate(fmt.Sprintf("insert sale line for product %d", line.ProductID), err)
	}
	return nil
}

const reportQuery = `
	SELECT s.id, s.created_at, s.total::text,
	       sl.id, sl.product_id, p.name, sl.quantity, sl.unit_price::text, sl.subtotal::text
	FROM sales s
	JOIN sale_lines sl ON sl.sale_id = s.id
	JOIN products p ON p.id = sl.product_id
`

func (l *PostgresLedger) GetSale(ctx context.Context, saleID int64) (domain.Sale, error) {
	rows, err := l.db.Query(ctx, reportQuery+` WHERE s.id = $1 ORDER BY sl.id`, saleID)
	if err != nil {
		return domain.Sale{}, translate("get sale", err)
	}
	sales, err := collect(rows)
	if err != nil {
		return domain.Sale{}, translate("get sale", err)
	}
	if len(sales) == 0 {
		return domain.Sale{}, fmt.Errorf("sale %d: %w", saleID, domain.ErrSaleNotFound)
	}
	return sales[0], nil
}

// ListSales returns sales newest first with their lines. From is inclusive and
// To exclusive; nil bounds are open.
func (l *PostgresLedger) ListSales(ctx context.Context, filter domain.ReportFilter) ([]domain.Sale, error) {
	rows, err := l.db.Query(ctx, reportQuery+`
		WHERE ($1::timestamptz IS NULL OR s.created_at >= $1)
		  AND ($2::timestamptz IS NULL OR s.created_at < $2)
		ORDER BY s.created_at DESC, s.id DESC, sl.id
	`, timeArg(filter.From), timeArg(filter.To))
	if err != nil {
		return nil, translate("list sales", err)
	}
	sales, err := collect(rows)
	if err != nil {
		return nil, translate("list sales", err)
	}
	return sales, nil
}

// collect folds joined sale/line rows into sales, preserving row order.
func collect(rows pgx.Rows) ([]domain.Sale, error) {
	defer rows.Close()

	sales := make([]domain.Sale, 0)
	index := make(map[int64]int)
	for rows.Next() {
		var (
			saleID                     int64
			createdAt                  time.Time
			total, unitPrice, subtotal string
			line                       domain.SaleLine
		)
		if err := rows.Scan(&saleID, &createdAt, &total, &line.ID, &line.ProductID, &line.ProductName,
			&line.Quantity, &unitPrice, &subtotal); err != nil {
			return nil, err
		}

		var err error
		if line.UnitPrice, err = money.Parse(unitPrice); err != nil {
			return nil, fmt.Errorf("sale line %d unit price: %w", line.ID, err)
		}
		if line.Subtotal, err = money.Parse(subtotal); err != nil {
			return nil, fmt.Errorf("sale line %d subtotal: %w", line.ID, err)
		}

		i, ok := index[saleID]
		if !ok {
			t, err := money.Parse(total)
			if err != nil {
				return nil, fmt.Errorf("sale %d total: %w", saleID, err)
			}
			sales = append(sales, domain.Sale{ID: saleID, CreatedAt: createdAt, Total: t})
			i = len(sales) - 1
			index[saleID] = i
		}
		sales[i].Lines = append(sales[i].Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sales, nil
}

func timeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func translate(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == "55P03" || pgErr.Code == "40P01") {
		return fmt.Errorf("%s: %w", op, domain.ErrLockTimeout)
	}
	return &domain.PersistenceError{Op: op, Err: err}
}
