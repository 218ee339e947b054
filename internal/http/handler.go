// Package httpapi exposes the till, catalog and sales reports as a JSON API.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/checkout"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/domain"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/pos"
)

type Catalog interface {
	Create(ctx context.Context, p domain.Product) (domain.Product, error)
	Get(ctx context.Context, productID int64) (domain.Product, error)
	List(ctx context.Context) ([]domain.Product, error)
	Update(ctx context.Context, p domain.Product) (domain.Product, error)
	Delete(ctx context.Context, productID int64) error
	SetQuantity(ctx context.Context, productID int64, quantity int) error
	CurrentStock(ctx context.Context, productID int64) (int, error)
}

type Reports interface {
	GetSale(ctx context.Context, saleID int64) (domain.Sale, error)
	ListSales(ctx context.Context, filter domain.ReportFilter) ([]domain.Sale, error)
}

type Till interface {
	NewCart() pos.CartView
	ViewCart(cartID string) (pos.CartView, error)
	AddToCart(ctx context.Context, cartID string, productID int64, quantity int) (pos.CartView, error)
	RemoveFromCart(cartID string, productID int64) (pos.CartView, error)
	CancelCart(cartID string) error
	Checkout(ctx context.Context, cartID, correlationID string) (checkout.Receipt, error)
}

type Handler struct {
	catalog Catalog
	reports Reports
	till    Till
	logger  *zap.Logger
}

func NewHandler(catalog Catalog, reports Reports, till Till, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{catalog: catalog, reports: reports, till: till, logger: logger}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("invalid JSON body: %v", err)
	}
	return nil
}

func int64Param(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("%s must be a positive integer, got %q", name, raw)
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
