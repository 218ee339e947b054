// Package inventory stores the product catalog and its stock levels in
// PostgreSQL.
package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/domain"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/money"
)

// Executor matches the query methods shared by *pgxpool.Pool and pgx.Tx, so
// the same repository can run against the pool or inside a transaction.
type Executor interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// SQLSTATE codes the repository translates into domain errors.
const (
	codeLockNotAvailable    = "55P03"
	codeDeadlockDetected    = "40P01"
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

const productColumns = `id, name, COALESCE(category, ''), purchase_price::text, sale_price::text, quantity, COALESCE(sku, '')`

type PostgresRepository struct {
	db Executor
}

func NewPostgresRepository(db Executor) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// WithExecutor returns a repository bound to db, typically an open pgx.Tx.
func (r *PostgresRepository) WithExecutor(db Executor) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, p domain.Product) (domain.Product, error) {
	if err := p.Validate(); err != nil {
		return domain.Product{}, err
	}

	err := r.db.QueryRow(ctx, `
		INSERT INTO products (name, category, purchase_price, sale_price, quantity, sku)
		VALUES ($1, NULLIF($2, ''), $3::numeric, $4::numeric, $5, $6)
		RETURNING id
	`, p.Name, p.Category, p.PurchasePrice.String(), p.SalePrice.String(), p.Quantity, skuArg(p.SKU)).Scan(&p.ID)
	if err != nil {
		return domain.Product{}, translate("create product", 0, err)
	}
	return p, nil
}

func (r *PostgresRepository) Get(ctx context.Context, productID int64) (domain.Product, error) {
	row := r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, productID)
	p, err := scanProduct(row)
	if err != nil {
		return domain.Product{}, translate("get product", productID, err)
	}
	return p, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.db.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, translate("list products", 0, err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, translate("scan product", 0, err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, translate("list products", 0, err)
	}
	return products, nil
}

func (r *PostgresRepository) Update(ctx context.Context, p domain.Product) (domain.Product, error) {
	if err := p.Validate(); err != nil {
		return domain.Product{}, err
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE products
		SET name = $2, category = NULLIF($3, ''), purchase_price = $4::numeric,
		    sale_price = $5::numeric, quantity = $6, sku = $7
		WHERE id = $1
	`, p.ID, p.Name, p.Category, p.PurchasePrice.String(), p.SalePrice.String(), p.Quantity, skuArg(p.SKU))
	if err != nil {
		return domain.Product{}, translate("update product", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Product{}, &domain.ProductNotFoundError{ProductID: p.ID}
	}
	return p, nil
}

// Delete removes a product. Products referenced by a recorded sale line cannot
// be deleted.
func (r *PostgresRepository) Delete(ctx context.Context, productID int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, productID)
	if err != nil {
		return translate("delete product", productID, err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.ProductNotFoundError{ProductID: productID}
	}
	return nil
}

// SetQuantity overwrites the stock level, as a manual stock count would.
func (r *PostgresRepository) SetQuantity(ctx context.Context, productID int64, quantity int) error {
	if quantity < 0 {
		return &domain.ValidationError{Field: "quantity", Reason: "must not be negative"}
	}
	tag, err := r.db.Exec(ctx, `UPDATE products SET quantity = $2 WHERE id = $1`, productID, quantity)
	if err != nil {
		return translate("set quantity", productID, err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.ProductNotFoundError{ProductID: productID}
	}
	return nil
}

// CurrentStock reads the quantity without locking. The value is advisory: it
// may be stale by the time a checkout locks the row.
func (r *PostgresRepository) CurrentStock(ctx context.Context, productID int64) (int, error) {
	var qty int
	err := r.db.QueryRow(ctx, `SELECT quantity FROM products WHERE id = $1`, productID).Scan(&qty)
	if err != nil {
		return 0, translate("read stock", productID, err)
	}
	return qty, nil
}

// LockForUpdate must run inside a transaction; the row stays locked until it
// ends.
func (r *PostgresRepository) LockForUpdate(ctx context.Context, productID int64) (int, error) {
	var qty int
	err := r.db.QueryRow(ctx, `
		SELECT quantity
		FROM products
		WHERE id = $1
		FOR UPDATE
	`, productID).Scan(&qty)
	if err != nil {
		return 0, translate(fmt.Sprintf("lock product %d", productID), productID, err)
	}
	return qty, nil
}

func (r *PostgresRepository) DecrementStock(ctx context.Context, productID int64, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: decrement of %d", domain.ErrInvalidQuantity, quantity)
	}
	tag, err := r.db.Exec(ctx, `UPDATE products SET quantity = quantity - $2 WHERE id = $1`, productID, quantity)
	if err != nil {
		return translate(fmt.Sprintf("decrement stock for product %d", productID), productID, err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.ProductNotFoundError{ProductID: productID}
	}
	return nil
}

// Restock adds received units and returns the new quantity on hand.
func (r *PostgresRepository) Restock(ctx context.Context, productID int64, quantity int) (int, error) {
	if quantity <= 0 {
		return 0, fmt.Errorf("%w: restock of %d", domain.ErrInvalidQuantity, quantity)
	}
	var qty int
	err := r.db.QueryRow(ctx, `
		UPDATE products
		SET quantity = quantity + $2
		WHERE id = $1
		RETURNING quantity
	`, productID, quantity).Scan(&qty)
	if err != nil {
		return 0, translate(fmt.Sprintf("restock product %d", productID), productID, err)
	}
	return qty, nil
}

func scanProduct(row pgx.Row) (domain.Product, error) {
	var (
		p              domain.Product
		purchase, sale string
		sku            string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Category, &purchase, &sale, &p.Quantity, &sku); err != nil {
		return domain.Product{}, err
	}

	var err error
	if p.PurchasePrice, err = money.Parse(purchase); err != nil {
		return domain.Product{}, fmt.Errorf("purchase price of product %d: %w", p.ID, err)
	}
	if p.SalePrice, err = money.Parse(sale); err != nil {
		return domain.Product{}, fmt.Errorf("sale price of product %d: %w", p.ID, err)
	}
	if sku != "" {
		p.SKU = &sku
	}
	return p, nil
}

func skuArg(sku *string) any {
	if sku == nil {
		return nil
	}
	return *sku
}

// translate maps driver errors onto the domain taxonomy.
func translate(op string, productID int64, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return &domain.ProductNotFoundError{ProductID: productID}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeLockNotAvailable, codeDeadlockDetected:
			return fmt.Errorf("%s: %w", op, domain.ErrLockTimeout)
		case codeUniqueViolation:
			return fmt.Errorf("%s: %w", op, domain.ErrDuplicateSKU)
		case codeForeignKeyViolation:
			return fmt.Errorf("%s: %w", op, domain.ErrProductInUse)
		}
	}
	return &domain.PersistenceError{Op: op, Err: err}
}
