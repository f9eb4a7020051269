package ads

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/espacoamar/amanda-backend/pkg/logging"
)

// Handler serves the ads report to the admin panel.
type Handler struct {
	reporter *Reporter
	logger   *logging.Logger
	now      func() time.Time
}

// NewHandler builds the report handler.
func NewHandler(reporter *Reporter, logger *logging.Logger) *Handler {
	if reporter == nil {
		panic("ads: reporter cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		reporter: reporter,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Report handles GET /admin/reports/ads?from=2026-08-01&to=2026-08-28.
// Defaults to the last 7 days.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	to := h.now().Truncate(24 * time.Hour).AddDate(0, 0, 1)
	from := to.AddDate(0, 0, -7)

	if v := r.URL.Query().Get("from"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			http.Error(w, "invalid from date", http.StatusBadRequest)
			return
		}
		from = parsed
	}
	if v := r.URL.Query().Get("to"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			http.Error(w, "invalid to date", http.StatusBadRequest)
			return
		}
		to = parsed
	}
	if !from.Before(to) {
		http.Error(w, "from must precede to", http.StatusBadRequest)
		return
	}

	report, err := h.reporter.BuildReport(r.Context(), from, to)
	if err != nil {
		h.logger.Error("ads report failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(report)
}
