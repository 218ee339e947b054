// Package cart keeps the lines of one checkout session in memory. It never
// reads or writes the database; stock figures handed to AddLine are advisory
// and the checkout transaction re-checks them under lock.
package cart

import (
	"errors"
	"fmt"

	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/domain"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/money"
)

var ErrLineNotFound = errors.New("product not in cart")

type Line struct {
	ProductID int64       `json:"productId"`
	Quantity  int         `json:"quantity"`
	UnitPrice money.Money `json:"unitPrice"`
	Subtotal  money.Money `json:"subtotal"`
}

// Cart is owned by a single session and is not safe for concurrent use; the
// Registry serializes access to shared carts.
type Cart struct {
	lines   []Line
	index   map[int64]int
	version uint64
}

func New() *Cart {
	return &Cart{index: make(map[int64]int)}
}

// AddLine adds quantity units of a product at unitPrice. Adding a product that
// is already in the cart grows its line and keeps the price captured by the
// first add. The merged quantity must not exceed availableStock.
func (c *Cart) AddLine(productID int64, unitPrice money.Money, quantity, availableStock int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: got %d", domain.ErrInvalidQuantity, quantity)
	}
	if productID <= 0 {
		return &domain.ValidationError{Field: "productId", Reason: "must be positive"}
	}
	if unitPrice.IsNegative() {
		return &domain.ValidationError{Field: "unitPrice", Reason: "must not be negative"}
	}

	pos, exists := c.index[productID]
	next := Line{ProductID: productID, Quantity: quantity, UnitPrice: unitPrice}
	if exists {
		next = c.lines[pos]
		next.Quantity += quantity
	}

	if next.Quantity > availableStock {
		return &domain.InsufficientStockError{ProductID: productID, Requested: next.Quantity, Available: availableStock}
	}

	subtotal, err := money.Multiply(next.UnitPrice, next.Quantity)
	if err != nil {
		return err
	}
	next.Subtotal = subtotal

	// Total must stay representable so Total never has to fail.
	if _, err := money.Sum(append(c.subtotalsExcept(productID), subtotal)...); err != nil {
		return err
	}

	if exists {
		c.lines[pos] = next
	} else {
		if c.index == nil {
			c.index = make(map[int64]int)
		}
		c.index[productID] = len(c.lines)
		c.lines = append(c.lines, next)
	}
	c.version++
	return nil
}

// RemoveLine drops the product's line, or returns ErrLineNotFound.
func (c *Cart) RemoveLine(productID int64) error {
	pos, ok := c.index[productID]
	if !ok {
		return fmt.Errorf("%w: product %d", ErrLineNotFound, productID)
	}

	c.lines = append(c.lines[:pos], c.lines[pos+1:]...)
	delete(c.index, productID)
	for i := pos; i < len(c.lines); i++ {
		c.index[c.lines[i].ProductID] = i
	}
	c.version++
	return nil
}

func (c *Cart) Clear() {
	c.lines = nil
	c.index = make(map[int64]int)
	c.version++
}

// Total is recomputed from the current subtotals on every call.
func (c *Cart) Total() money.Money {
	total, err := money.Sum(c.subtotalsExcept(0)...)
	if err != nil {
		// AddLine refuses lines that would make this fail.
		panic(err)
	}
	return total
}

// Lines returns a copy in insertion order.
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) Len() int { return len(c.lines) }

func (c *Cart) IsEmpty() bool { return len(c.lines) == 0 }

// Version changes on every mutation.
func (c *Cart) Version() uint64 { return c.version }

func (c *Cart) Clone() *Cart {
	out := &Cart{
		lines:   c.Lines(),
		index:   make(map[int64]int, len(c.index)),
		version: c.version,
	}
	for id, pos := range c.index {
		out.index[id] = pos
	}
	return out
}

func (c *Cart) subtotalsExcept(productID int64) []money.Money {
	out := make([]money.Money, 0, len(c.lines))
	for _, l := range c.lines {
		if productID != 0 && l.ProductID == productID {
			continue
		}
		out = append(out, l.Subtotal)
	}
	return out
}
