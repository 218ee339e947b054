// Package checkout finalizes a sale from a cart in a single unit of work:
// stock is locked and validated, lines are priced, the sale and its lines are
// written and stock is decremented, then everything commits or nothing does.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/domain"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/money"
)

// Recorder receives one observation per Execute call.
type Recorder interface {
	CheckoutFinished(outcome string, elapsed time.Duration)
}

type Receipt struct {
	Sale  domain.Sale `json:"sale"`
	State State       `json:"-"`
}

type Checkout struct {
	units    UnitOfWorkFactory
	logger   *zap.Logger
	recorder Recorder
}

type Option func(*Checkout)

func WithLogger(logger *zap.Logger) Option {
	return func(c *Checkout) { c.logger = logger }
}

func WithRecorder(r Recorder) Option {
	return func(c *Checkout) { c.recorder = r }
}

func New(units UnitOfWorkFactory, opts ...Option) *Checkout {
	c := &Checkout{units: units, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute finalizes the cart as one sale. The cart itself is only read, so
// after a failure the caller can edit it and try again.
//
// Empty carts, non-positive quantities and an already cancelled ctx are
// rejected before a unit of work is opened. Once the unit of work is open, ctx
// cancellation is ignored: the transaction holds row locks and always runs to
// commit or rollback.
func (c *Checkout) Execute(ctx context.Context, crt *cart.Cart) (Receipt, error) {
	started := time.Now()
	lines := crt.Lines()

	tx := &transaction{state: StateValidating}
	sale, err := c.execute(ctx, tx, lines)

	outcome := Outcome(err)
	elapsed := time.Since(started)
	if c.recorder != nil {
		c.recorder.CheckoutFinished(outcome, elapsed)
	}

	if err != nil {
		c.logger.Warn("checkout aborted",
			zap.String("outcome", outcome),
			zap.String("failed_in", tx.failedIn.String()),
			zap.Int("cart_lines", len(lines)),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return Receipt{State: tx.state}, err
	}

	c.logger.Info("checkout committed",
		zap.Int64("sale_id", sale.ID),
		zap.String("total", sale.Total.String()),
		zap.Int("cart_lines", len(lines)),
		zap.Duration("elapsed", elapsed))
	return Receipt{Sale: sale, State: tx.state}, nil
}

func (c *Checkout) execute(ctx context.Context, tx *transaction, lines []cart.Line) (domain.Sale, error) {
	if len(lines) == 0 {
		tx.abort()
		return domain.Sale{}, domain.ErrEmptyCart
	}
	for _, l := range lines {
		if l.Quantity <= 0 {
			tx.abort()
			return domain.Sale{}, fmt.Errorf("%w: product %d has quantity %d", domain.ErrInvalidQuantity, l.ProductID, l.Quantity)
		}
	}
	if err := ctx.Err(); err != nil {
		tx.abort()
		return domain.Sale{}, err
	}

	uow, err := c.units.Begin(ctx)
	if err != nil {
		tx.abort()
		return domain.Sale{}, classify("begin unit of work", err)
	}

	ctx = context.WithoutCancel(ctx)
	defer func() {
		if tx.state == StateCommitted {
			return
		}
		if rbErr := uow.Rollback(ctx); rbErr != nil {
			c.logger.Error("rollback failed", zap.Error(rbErr))
		}
	}()

	if err := lockAndValidate(ctx, uow.Inventory(), lines); err != nil {
		tx.abort()
		return domain.Sale{}, err
	}

	tx.moveTo(StatePricing)
	priced, total, err := price(lines)
	if err != nil {
		tx.abort()
		return domain.Sale{}, err
	}

	tx.moveTo(StatePersisting)
	sale, err := persist(ctx, uow, total, priced)
	if err != nil {
		tx.abort()
		return domain.Sale{}, err
	}

	if err := uow.Commit(ctx); err != nil {
		tx.abort()
		return domain.Sale{}, classify("commit sale", err)
	}
	tx.moveTo(StateCommitted)
	return sale, nil
}

// lockAndValidate locks every product row in ascending id order, so two
// checkouts sharing products always queue on the same first lock instead of
// deadlocking, and compares the locked quantity with the requested one.
func lockAndValidate(ctx context.Context, inv InventoryStore, lines []cart.Line) error {
	requested := make(map[int64]int, len(lines))
	for _, l := range lines {
		requested[l.ProductID] += l.Quantity
	}

	ids := make([]int64, 0, len(requested))
	for id := range requested {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		onHand, err := inv.LockForUpdate(ctx, id)
		if err != nil {
			return classify(fmt.Sprintf("lock product %d", id), err)
		}
		if requested[id] > onHand {
			return &domain.InsufficientStockError{ProductID: id, Requested: requested[id], Available: onHand}
		}
	}
	return nil
}

// price charges the unit price captured in the cart, not the current catalog
// price.
func price(lines []cart.Line) ([]domain.SaleLine, money.Money, error) {
	priced := make([]domain.SaleLine, 0, len(lines))
	subtotals := make([]money.Money, 0, len(lines))
	for _, l := range lines {
		subtotal, err := money.Multiply(l.UnitPrice, l.Quantity)
		if err != nil {
			return nil, money.Zero, fmt.Errorf("price product %d: %w", l.ProductID, err)
		}
		priced = append(priced, domain.SaleLine{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Subtotal:  subtotal,
		})
		subtotals = append(subtotals, subtotal)
	}

	total, err := money.Sum(subtotals...)
	if err != nil {
		return nil, money.Zero, fmt.Errorf("sum sale total: %w", err)
	}
	return priced, total, nil
}

func persist(ctx context.Context, uow UnitOfWork, total money.Money, lines []domain.SaleLine) (domain.Sale, error) {
	sale, err := uow.Ledger().InsertSaleHeader(ctx, total)
	if err != nil {
		return domain.Sale{}, classify("insert sale header", err)
	}

	for _, l := range lines {
		if err := uow.Ledger().InsertSaleLine(ctx, sale.ID, l); err != nil {
			return domain.Sale{}, classify(fmt.Sprintf("insert sale line for product %d", l.ProductID), err)
		}
		if err := uow.Inventory().DecrementStock(ctx, l.ProductID, l.Quantity); err != nil {
			return domain.Sale{}, classify(fmt.Sprintf("decrement stock for product %d", l.ProductID), err)
		}
	}

	sale.Total = total
	sale.Lines = lines
	return sale, nil
}

type transaction struct {
	state    State
	failedIn State
}

func (t *transaction) moveTo(next State) {
	if !CanTransition(t.state, next) {
		panic(fmt.Sprintf("checkout: illegal transition %s -> %s", t.state, next))
	}
	t.state = next
}

func (t *transaction) abort() {
	t.failedIn = t.state
	t.moveTo(StateAborted)
}

// classify keeps errors that already belong to the taxonomy and wraps anything
// else from the store as a PersistenceError.
func classify(op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrLockTimeout),
		errors.Is(err, domain.ErrPersistence),
		errors.Is(err, domain.ErrArithmetic):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, err)
	}
	return &domain.PersistenceError{Op: op, Err: err}
}

// Outcome labels an Execute result for logs and metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "committed"
	case errors.Is(err, domain.ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, domain.ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, domain.ErrProductNotFound):
		return "product_not_found"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrLockTimeout):
		return "lock_timeout"
	case errors.Is(err, domain.ErrArithmetic):
		return "arithmetic"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "persistence"
	}
}
