// Package pos runs the till: cart sessions, pricing from the catalog and sale
// finalization.
package pos

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/checkout"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/domain"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/money"
)

type Catalog interface {
	Get(ctx context.Context, productID int64) (domain.Product, error)
}

type Finalizer interface {
	Execute(ctx context.Context, c *cart.Cart) (checkout.Receipt, error)
}

type SalePublisher interface {
	PublishSaleCompleted(ctx context.Context, correlationID string, sale domain.Sale) error
}

type CartView struct {
	ID    string      `json:"cartId"`
	Lines []cart.Line `json:"lines"`
	Total money.Money `json:"total"`
}

type Service struct {
	carts     *cart.Registry
	catalog   Catalog
	checkout  Finalizer
	publisher SalePublisher
	logger    *zap.Logger
}

// NewService wires the till. publisher may be nil when events are disabled.
func NewService(carts *cart.Registry, catalog Catalog, finalizer Finalizer, publisher SalePublisher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		carts:     carts,
		catalog:   catalog,
		checkout:  finalizer,
		publisher: publisher,
		logger:    logger,
	}
}

func (s *Service) NewCart() CartView {
	id := s.carts.Create()
	return CartView{ID: id, Lines: []cart.Line{}, Total: money.Zero}
}

func (s *Service) ViewCart(cartID string) (CartView, error) {
	c, err := s.carts.Snapshot(cartID)
	if err != nil {
		return CartView{}, err
	}
	return view(cartID, c), nil
}

// AddToCart captures the product's current sale price in the cart. Later
// catalog price changes do not affect the line. The stock check here is
// advisory; checkout re-validates under row locks.
func (s *Service) AddToCart(ctx context.Context, cartID string, productID int64, quantity int) (CartView, error) {
	if quantity <= 0 {
		return CartView{}, fmt.Errorf("%w: got %d", domain.ErrInvalidQuantity, quantity)
	}
	// fail fast on unknown carts before reading the catalog
	if _, err := s.carts.Snapshot(cartID); err != nil {
		return CartView{}, err
	}

	p, err := s.catalog.Get(ctx, productID)
	if err != nil {
		return CartView{}, err
	}

	var out CartView
	err = s.carts.Update(cartID, func(c *cart.Cart) error {
		if err := c.AddLine(p.ID, p.SalePrice, quantity, p.Quantity); err != nil {
			return err
		}
		out = view(cartID, c)
		return nil
	})
	if err != nil {
		return CartView{}, err
	}
	return out, nil
}

func (s *Service) RemoveFromCart(cartID string, productID int64) (CartView, error) {
	var out CartView
	err := s.carts.Update(cartID, func(c *cart.Cart) error {
		if err := c.RemoveLine(productID); err != nil {
			return err
		}
		out = view(cartID, c)
		return nil
	})
	if err != nil {
		return CartView{}, err
	}
	return out, nil
}

func (s *Service) CancelCart(cartID string) error {
	return s.carts.Delete(cartID)
}

// Checkout finalizes a snapshot of the session cart. On success the session
// cart is emptied unless it was edited while the sale was running. On failure
// it is left as it was so the cashier can fix it and retry. Only one checkout
// of a session runs at a time; a concurrent one gets ErrCheckoutInProgress.
func (s *Service) Checkout(ctx context.Context, cartID, correlationID string) (checkout.Receipt, error) {
	snap, release, err := s.carts.BeginCheckout(cartID)
	if err != nil {
		return checkout.Receipt{}, err
	}
	defer release()

	receipt, err := s.checkout.Execute(ctx, snap)
	if err != nil {
		return receipt, err
	}

	if !s.carts.ClearIfUnchanged(cartID, snap.Version()) {
		s.logger.Warn("cart edited during checkout; keeping session lines",
			zap.String("cart_id", cartID),
			zap.Int64("sale_id", receipt.Sale.ID))
	}

	if s.publisher != nil {
		// the sale is committed; a lost event must not turn it into a failure
		if err := s.publisher.PublishSaleCompleted(context.WithoutCancel(ctx), correlationID, receipt.Sale); err != nil {
			s.logger.Error("publish SaleCompleted failed",
				zap.Int64("sale_id", receipt.Sale.ID),
				zap.String("correlation_id", correlationID),
				zap.Error(err))
		}
	}
	return receipt, nil
}

func view(id string, c *cart.Cart) CartView {
	return CartView{ID: id, Lines: c.Lines(), Total: c.Total()}
}
