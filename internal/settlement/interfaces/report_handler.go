package interfaces

import (
	"context"
	"net/http"
	"time"

	settlement "energytrade-cloud/internal/settlement/domain"
)

// SettlementLister is the read slice of the settlement store the report
// handler needs.
type SettlementLister interface {
	ListSettlements(ctx context.Context, filter settlement.Filter) ([]*settlement.Settlement, error)
}

// CycleReportHandler serves settlement-cycle report downloads for discom
// reconciliation.
type CycleReportHandler struct {
	store SettlementLister
	clock func() time.Time
}

// NewCycleReportHandler constructs a CycleReportHandler.
func NewCycleReportHandler(store SettlementLister) *CycleReportHandler {
	return &CycleReportHandler{
		store: store,
		clock: func() time.Time { return time.Now().UTC() },
	}
}

// ServeHTTP handles GET /api/v1/exports/cycle-report.{xlsx,pdf}.
func (h *CycleReportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.store == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	cycleID := r.URL.Query().Get("cycle_id")
	if cycleID == "" {
		http.Error(w, "cycle_id is required", http.StatusBadRequest)
		return
	}

	all, err := h.store.ListSettlements(r.Context(), settlement.Filter{})
	if err != nil {
		http.Error(w, "query settlements error", http.StatusInternalServerError)
		return
	}
	legs := make([]*settlement.Settlement, 0, len(all))
	for _, leg := range all {
		if leg.SettlementCycleID == cycleID {
			legs = append(legs, leg)
		}
	}
	report := BuildCycleReport(cycleID, legs, h.clock())

	var payload []byte
	switch format(r) {
	case "pdf":
		payload, err = BuildCycleReportPDF(report, legs)
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="cycle-report-`+cycleID+`.pdf"`)
	default:
		payload, err = BuildCycleReportXLSX(report, legs)
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="cycle-report-`+cycleID+`.xlsx"`)
	}
	if err != nil {
		http.Error(w, "render report error", http.StatusInternalServerError)
		return
	}
	_, _ = w.Write(payload)
}

func format(r *http.Request) string {
	if value := r.URL.Query().Get("format"); value != "" {
		return value
	}
	return "xlsx"
}
