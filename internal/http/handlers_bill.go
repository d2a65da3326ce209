package http

import (
	"html/template"
	"net/http"
	"strings"

	"github.com/debuggin-limited/mflow/internal/core"
	applog "github.com/debuggin-limited/mflow/internal/log"
)

// handleCreateBill persists a new recurring bill from the dashboard form.
// A new bill changes every cached snapshot's period total, so the whole
// snapshot cache is dropped on success.
func (s *Server) handleCreateBill(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	logger := applog.FromContext(r.Context())
	if s.bills == nil {
		logger.ErrorContext(r.Context(), "Bill storage not configured")
		http.Error(w, "bill storage not configured", http.StatusInternalServerError)
		return
	}

	if err := r.ParseForm(); err != nil {
		logger.ErrorContext(r.Context(), "Parse form error", "error", err, "method", r.Method, "url", r.URL.Path)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`<div class="error">Invalid request format</div>`))
		return
	}

	name := sanitizeInput(r.Form.Get("name"))
	amountStr := strings.TrimSpace(r.Form.Get("amount"))
	every := core.Frequency(strings.TrimSpace(r.Form.Get("frequency")))

	cents, err := core.ParseDecimalToCents(amountStr)
	if err != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`<div class="error">Invalid amount</div>`))
		return
	}

	bill := core.Bill{
		Name:   name,
		Amount: core.Money{Cents: cents},
		Every:  every,
		Status: core.BillActive,
	}
	if err := bill.Validate(); err != nil {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`<div class="error">Invalid bill: ` + template.HTMLEscapeString(err.Error()) + `</div>`))
		return
	}

	id, err := s.bills.CreateBill(r.Context(), bill)
	if err != nil {
		logger.ErrorContext(r.Context(), "Bill create error", "error", err, "bill", bill.Name, "amount", bill.Amount.Cents)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`<div class="error">Failed to save bill</div>`))
		return
	}

	s.snapCache.Clear()

	w.Header().Set("HX-Trigger", `{"snapshot:refreshed": {}}`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<div class="success">Bill saved (#` + template.HTMLEscapeString(formatID(id)) + `): ` +
		template.HTMLEscapeString(bill.Name) +
		`, $` + template.HTMLEscapeString(amountStr) +
		` (` + template.HTMLEscapeString(string(bill.Every)) + `)</div>`))
}
