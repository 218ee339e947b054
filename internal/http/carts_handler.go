package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/middleware"
)

type addLineRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

func (h *Handler) CreateCart(w http.ResponseWriter, r *http.Request) {
	v := h.till.NewCart()
	w.Header().Set("Location", "/api/carts/"+v.ID)
	writeJSON(w, http.StatusCreated, v)
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	v, err := h.till.ViewCart(chi.URLParam(r, "cartId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) CancelCart(w http.ResponseWriter, r *http.Request) {
	if err := h.till.CancelCart(chi.URLParam(r, "cartId")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AddLine(w http.ResponseWriter, r *http.Request) {
	var req addLineRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.ProductID <= 0 {
		h.writeError(w, r, badRequest("productId is required"))
		return
	}
	v, err := h.till.AddToCart(r.Context(), chi.URLParam(r, "cartId"), req.ProductID, req.Quantity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	productID, err := int64Param(r, "productId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	v, err := h.till.RemoveFromCart(chi.URLParam(r, "cartId"), productID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// Checkout finalizes the cart and answers with the recorded sale.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	cid := middleware.GetCorrelationID(r.Context())
	receipt, err := h.till.Checkout(r.Context(), chi.URLParam(r, "cartId"), cid)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/sales/"+formatID(receipt.Sale.ID))
	writeJSON(w, http.StatusCreated, receipt.Sale)
}
