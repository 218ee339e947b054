package domain

import (
	"time"

	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/money"
)

type Product struct {
	ID            int64       `json:"id"`
	Name          string      `json:"name"`
	Category      string      `json:"category,omitempty"`
	PurchasePrice money.Money `json:"purchasePrice"`
	SalePrice     money.Money `json:"salePrice"`
	Quantity      int         `json:"quantity"`
	SKU           *string     `json:"sku,omitempty"`
}

// Validate checks the fields a catalog edit must satisfy before it reaches the
// database.
func (p Product) Validate() error {
	switch {
	case p.Name == "":
		return &ValidationError{Field: "name", Reason: "required"}
	case p.PurchasePrice.IsNegative():
		return &ValidationError{Field: "purchasePrice", Reason: "must not be negative"}
	case p.SalePrice.IsNegative():
		return &ValidationError{Field: "salePrice", Reason: "must not be negative"}
	case !p.PurchasePrice.IsValidPrice():
		return &ValidationError{Field: "purchasePrice", Reason: "at most 4 decimal places and below 10000000000"}
	case !p.SalePrice.IsValidPrice():
		return &ValidationError{Field: "salePrice", Reason: "at most 4 decimal places and below 10000000000"}
	case p.Quantity < 0:
		return &ValidationError{Field: "quantity", Reason: "must not be negative"}
	case p.SKU != nil && *p.SKU == "":
		return &ValidationError{Field: "sku", Reason: "must be omitted or non-empty"}
	}
	return nil
}

type Sale struct {
	ID        int64       `json:"saleId"`
	CreatedAt time.Time   `json:"createdAt"`
	Total     money.Money `json:"total"`
	Lines     []SaleLine  `json:"lines,omitempty"`
}

type SaleLine struct {
	ID          int64       `json:"lineId,omitempty"`
	ProductID   int64       `json:"productId"`
	ProductName string      `json:"productName,omitempty"`
	Quantity    int         `json:"quantity"`
	UnitPrice   money.Money `json:"unitPrice"`
	Subtotal    money.Money `json:"subtotal"`
}

// ReportFilter bounds a sales report by sale timestamp. Nil bounds are open.
type ReportFilter struct {
	From *time.Time
	To   *time.Time
}
