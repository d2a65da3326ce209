package http

import (
	"context"
	"html/template"
	"net/http"
	"strconv"
	"time"

	applog "github.com/debuggin-limited/mflow/internal/log"
	"github.com/debuggin-limited/mflow/internal/services"
)

// overviewView is the template-facing shape of a dashboard snapshot. All
// amounts are preformatted strings so the templates stay dumb.
type overviewView struct {
	Year         int
	Budgets      []budgetOptionView
	HasSelection bool
	SelectedID   int64
	SelectedName string
	Categories   []categoryView
	Bills        []billView
	BillsTotal   string
	DebtTotal    string
	PeriodLabel  string
	PeriodOK     bool
	ComputedAt   string
}

type budgetOptionView struct {
	ID       int64
	Name     string
	Selected bool
}

type categoryView struct {
	Name       string
	Allocated  string
	Spent      string
	Percentage string
	BarWidth   int
	OverBudget bool
}

type billView struct {
	Name      string
	Amount    string
	Frequency string
	Estimate  string
}

func (s *Server) snapshot(ctx context.Context, year int, budgetID int64) (services.Snapshot, error) {
	if budgetID > 0 {
		// Explicit selection invalidates whatever was cached for this year.
		s.provider.Select(budgetID)
		s.snapCache.Delete(snapshotKey(year, 0))
	}

	key := snapshotKey(year, budgetID)
	if snap, found := s.snapCache.Get(key); found {
		return snap, nil
	}

	cctx, cancel := context.WithTimeout(ctx, 7*time.Second)
	defer cancel()
	snap, err := s.provider.Compute(cctx, year)
	if err != nil {
		return services.Snapshot{}, err
	}

	s.snapCache.Set(key, snap)
	return snap, nil
}

func buildOverviewView(snap services.Snapshot) overviewView {
	v := overviewView{
		Year:        snap.Year,
		BillsTotal:  formatDollars(snap.PeriodBillsCents),
		DebtTotal:   formatDollars(snap.TotalDebtCents),
		PeriodLabel: snap.PeriodLabel,
		PeriodOK:    snap.PeriodOK,
		ComputedAt:  snap.ComputedAt.Format("15:04:05"),
	}

	for _, b := range snap.Budgets {
		selected := snap.Selected != nil && snap.Selected.ID == b.ID
		v.Budgets = append(v.Budgets, budgetOptionView{ID: b.ID, Name: b.Name, Selected: selected})
	}

	if snap.Selected != nil {
		v.HasSelection = true
		v.SelectedID = snap.Selected.ID
		v.SelectedName = snap.Selected.Name
	}

	for _, c := range snap.Categories {
		v.Categories = append(v.Categories, categoryView{
			Name:       c.Name,
			Allocated:  formatDollars(c.AllocatedCents),
			Spent:      formatDollars(c.SpentCents),
			Percentage: strconv.FormatFloat(c.Percentage, 'f', 1, 64) + "%",
			BarWidth:   c.BarWidth,
			OverBudget: c.OverBudget,
		})
	}

	for _, b := range snap.Bills {
		v.Bills = append(v.Bills, billView{
			Name:      b.Name,
			Amount:    formatDollars(b.AmountCents),
			Frequency: string(b.Every),
			Estimate:  formatDollars(b.PeriodEstimateCents),
		})
	}

	return v
}

// handleIndex renders the full dashboard page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	logger := applog.FromContext(r.Context())
	if s.templates == nil {
		logger.ErrorContext(r.Context(), "Templates not loaded", "url", r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	year, budgetID := parseYearBudget(r)
	snap, err := s.snapshot(r.Context(), year, budgetID)
	if err != nil {
		logger.ErrorContext(r.Context(), "Snapshot compute failed", "error", err, "year", year)
		http.Error(w, "dashboard unavailable", http.StatusInternalServerError)
		return
	}

	if err := s.templates.ExecuteTemplate(w, "index.html", buildOverviewView(snap)); err != nil {
		logger.ErrorContext(r.Context(), "Index template execution failed", "error", err, "template", "index.html")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleOverview renders the overview partial for htmx swaps. Budget
// selection happens here: ?budget=N switches the selected budget before
// recomputing.
func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	logger := applog.FromContext(r.Context())
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	year, budgetID := parseYearBudget(r)
	snap, err := s.snapshot(r.Context(), year, budgetID)
	if err != nil {
		logger.ErrorContext(r.Context(), "Overview compute failed", "error", err, "year", year, "budget_id", budgetID)
		_, _ = w.Write([]byte(`<section id="overview" class="overview"><div class="placeholder">Failed to load overview</div></section>`))
		return
	}

	if s.templates == nil {
		_, _ = w.Write([]byte(`<section id="overview" class="overview"><div class="placeholder">Bills this period: ` +
			template.HTMLEscapeString(formatDollars(snap.PeriodBillsCents)) + `</div></section>`))
		return
	}

	if err := s.templates.ExecuteTemplate(w, "overview.html", buildOverviewView(snap)); err != nil {
		logger.ErrorContext(r.Context(), "Overview template execution failed", "error", err, "template", "overview.html")
		_, _ = w.Write([]byte(`<section id="overview" class="overview"><div class="placeholder">Failed to render overview</div></section>`))
	}
}

// handleRefresh enqueues a snapshot refresh and drops the cached snapshot so
// the next read recomputes. Works without AMQP too: the cache invalidation
// alone forces a fresh compute.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	logger := applog.FromContext(r.Context())
	year, budgetID := parseYearBudget(r)

	s.snapCache.Delete(snapshotKey(year, budgetID))
	s.snapCache.Delete(snapshotKey(year, 0))

	if s.publisher != nil {
		if err := s.publisher.PublishRefresh(r.Context(), year, budgetID); err != nil {
			logger.ErrorContext(r.Context(), "Refresh publish failed", "error", err, "year", year, "budget_id", budgetID)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`<div class="error">Refresh could not be queued</div>`))
			return
		}
	}

	w.Header().Set("HX-Trigger", `{"snapshot:refreshed": {"year": `+strconv.Itoa(year)+`}}`)
	w.WriteHeader(http.StatusAccepted)
	_, _ = w.Write([]byte(`<div class="success">Refresh queued</div>`))
}
