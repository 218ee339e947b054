package httpapi

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/domain"
	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/middleware"
)

type errorResponse struct {
	Error         string `json:"error"`
	CorrelationID string `json:"correlationId,omitempty"`
	ProductID     int64  `json:"productId,omitempty"`
	Requested     *int   `json:"requested,omitempty"`
	Available     *int   `json:"available,omitempty"`
	Retryable     bool   `json:"retryable,omitempty"`
}

// writeError is the single place where domain errors become HTTP statuses.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := errorResponse{Error: err.Error(), CorrelationID: middleware.GetCorrelationID(r.Context())}
	status := http.StatusInternalServerError

	var (
		stockErr    *domain.InsufficientStockError
		notFoundErr *domain.ProductNotFoundError
	)
	switch {
	case errors.As(err, &stockErr):
		status = http.StatusConflict
		resp.ProductID = stockErr.ProductID
		resp.Requested = &stockErr.Requested
		resp.Available = &stockErr.Available
	case errors.As(err, &notFoundErr):
		status = http.StatusNotFound
		resp.ProductID = notFoundErr.ProductID
	case errors.Is(err, errBadRequest),
		errors.Is(err, domain.ErrEmptyCart),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrArithmetic):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrSaleNotFound),
		errors.Is(err, cart.ErrCartNotFound),
		errors.Is(err, cart.ErrLineNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateSKU),
		errors.Is(err, domain.ErrProductInUse),
		errors.Is(err, cart.ErrCheckoutInProgress):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrLockTimeout):
		status = http.StatusServiceUnavailable
		resp.Retryable = true
		w.Header().Set("Retry-After", "1")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("correlation_id", resp.CorrelationID),
			zap.Error(err))
		resp.Error = "internal error"
	}
	writeJSON(w, status, resp)
}
