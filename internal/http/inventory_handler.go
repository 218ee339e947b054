package httpapi

import (
	"net/http"
)

type stockResponse struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

type adjustStockRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// GetStock reports the unlocked stock level. It can be stale by the time a
// checkout locks the row.
func (h *Handler) GetStock(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "productId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	qty, err := h.catalog.CurrentStock(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stockResponse{ProductID: id, Quantity: qty})
}

// AdjustStock sets the on-hand quantity to the counted value.
func (h *Handler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	var req adjustStockRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.ProductID <= 0 {
		h.writeError(w, r, badRequest("productId is required"))
		return
	}
	if err := h.catalog.SetQuantity(r.Context(), req.ProductID, req.Quantity); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stockResponse(req))
}
