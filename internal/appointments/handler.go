package appointments

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/espacoamar/amanda-backend/pkg/logging"
)

// Handler exposes appointment management to the admin panel.
type Handler struct {
	repo   *Repository
	logger *logging.Logger
	now    func() time.Time
}

// NewHandler builds the admin appointments handler.
func NewHandler(repo *Repository, logger *logging.Logger) *Handler {
	if repo == nil {
		panic("appointments: repository cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		repo:   repo,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Routes mounts the handler under /admin/appointments.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}/status", h.UpdateStatus)
	return r
}

// List returns appointments in a date window.
// GET /admin/appointments?from=2026-09-01&to=2026-09-08
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	from := now.Truncate(24 * time.Hour)
	to := from.AddDate(0, 0, 7)

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

	appts, err := h.repo.ListBetween(r.Context(), from, to)
	if err != nil {
		h.logger.Error("appointment list failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if appts == nil {
		appts = []Appointment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"appointments": appts,
		"from":         from.Format("2006-01-02"),
		"to":           to.Format("2006-01-02"),
	})
}

// Get returns one appointment.
// GET /admin/appointments/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	appt, err := h.repo.GetByID(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		http.Error(w, "appointment not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("appointment load failed", "error", err, "id", id)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// Create schedules an appointment manually, outside the WhatsApp funnel.
// POST /admin/appointments
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	appt, err := h.repo.Create(r.Context(), uuid.NewString(), &req, h.now())
	if err != nil {
		switch {
		case errors.Is(err, ErrMissingLead), errors.Is(err, ErrMissingPatient), errors.Is(err, ErrMissingStart):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			h.logger.Error("appointment create failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}
	h.logger.Info("appointment created", "appointment_id", appt.ID, "lead_id", appt.LeadID)
	writeJSON(w, http.StatusCreated, appt)
}

type statusUpdateRequest struct {
	Status Status `json:"status"`
}

// UpdateStatus moves an appointment through its lifecycle.
// PATCH /admin/appointments/{id}/status
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req statusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	switch req.Status {
	case StatusConfirmed, StatusCancelled, StatusCompleted, StatusNoShow:
	default:
		http.Error(w, "invalid status", http.StatusBadRequest)
		return
	}

	err := h.repo.UpdateStatus(r.Context(), id, req.Status, h.now())
	if errors.Is(err, ErrNotFound) {
		http.Error(w, "appointment not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("appointment status update failed", "error", err, "id", id)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.logger.Info("appointment status updated", "appointment_id", id, "status", req.Status)
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": string(req.Status)})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
