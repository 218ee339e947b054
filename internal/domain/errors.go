// Package domain holds the point-of-sale records and the error values every
// layer uses to report a failed sale or catalog edit.
package domain

import (
	"errors"
	"fmt"

	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/money"
)

var (
	ErrEmptyCart         = errors.New("cart is empty, nothing to checkout")
	ErrInvalidQuantity   = errors.New("quantity must be a positive integer")
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrLockTimeout       = errors.New("timed out waiting for stock lock")
	ErrPersistence       = errors.New("persistence failure")
	ErrArithmetic        = money.ErrArithmetic
	ErrDuplicateSKU      = errors.New("sku already in use")
	ErrProductInUse      = errors.New("product is referenced by recorded sales")
	ErrSaleNotFound      = errors.New("sale not found")
	ErrValidation        = errors.New("invalid input")
)

type InsufficientStockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %d not found", e.ProductID)
}

func (e *ProductNotFoundError) Is(target error) bool { return target == ErrProductNotFound }

// PersistenceError wraps a database failure (constraint violation, lost
// connection, failed commit) with the operation that hit it.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Retryable reports whether the same cart may succeed on a fresh attempt
// without being edited.
func Retryable(err error) bool {
	return errors.Is(err, ErrLockTimeout)
}
