package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/andreasstove999/ecommerce-system/services/pos-service-go/internal/domain"
)

const dateLayout = "2006-01-02"

func (h *Handler) GetSale(w http.ResponseWriter, r *http.Request) {
	id, err := int64Param(r, "saleId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sale, err := h.reports.GetSale(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sale)
}

// ListSales reports sales in [from, to). A bare date in "to" covers that whole
// day.
func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	filter, err := parseReportFilter(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sales, err := h.reports.ListSales(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if sales == nil {
		sales = []domain.Sale{}
	}
	writeJSON(w, http.StatusOK, sales)
}

func parseReportFilter(r *http.Request) (domain.ReportFilter, error) {
	var filter domain.ReportFilter
	q := r.URL.Query()

	if raw := q.Get("from"); raw != "" {
		from, _, err := parseBound(raw)
		if err != nil {
			return filter, badRequest("from: %v", err)
		}
		filter.From = &from
	}
	if raw := q.Get("to"); raw != "" {
		to, dateOnly, err := parseBound(raw)
		if err != nil {
			return filter, badRequest("to: %v", err)
		}
		if dateOnly {
			to = to.AddDate(0, 0, 1)
		}
		filter.To = &to
	}
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return filter, badRequest("from must be before to")
	}
	return filter, nil
}

func parseBound(raw string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, false, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
