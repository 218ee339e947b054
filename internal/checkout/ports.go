package checkout

import (
	"context"

	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/domain"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/money"
)

// InventoryStore is the stock side of a unit of work. Both calls must run in
// the transaction that will commit the sale.
type InventoryStore interface {
	// LockForUpdate takes an exclusive row lock on the product and returns
	// its quantity on hand.
	LockForUpdate(ctx context.Context, productID int64) (int, error)
	DecrementStock(ctx context.Context, productID int64, quantity int) error
}

type SaleLedger interface {
	// InsertSaleHeader records the sale and returns it with the id and
	// timestamp assigned by the store.
	InsertSaleHeader(ctx context.Context, total money.Money) (domain.Sale, error)
	InsertSaleLine(ctx context.Context, saleID int64, line domain.SaleLine) error
}

// UnitOfWork scopes one atomic database transaction. Commit is all or nothing
// across every Inventory and Ledger call made through it. Rollback after a
// successful Commit is a no-op.
type UnitOfWork interface {
	Inventory() InventoryStore
	Ledger() SaleLedger
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type UnitOfWorkFactory interface {
	Begin(ctx context.Context) (UnitOfWork, error)
}
