package payments

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/espacoamar/amanda-backend/pkg/logging"
)

// Handler exposes charge management to the admin panel.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler builds the admin payments handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if service == nil {
		panic("payments: service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Routes mounts the handler under /admin/payments.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/charges", h.CreateCharge)
	r.Get("/charges/{id}", h.GetCharge)
	r.Get("/leads/{leadID}/charges", h.ListLeadCharges)
	return r
}

// CreateCharge opens a PIX charge for a lead.
// POST /admin/payments/charges
func (h *Handler) CreateCharge(w http.ResponseWriter, r *http.Request) {
	var req CreateChargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	charge, err := h.service.CreateCharge(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, ErrMissingLead), errors.Is(err, ErrInvalidAmount):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			h.logger.Error("charge creation failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusCreated, charge)
}

// GetCharge returns one charge.
// GET /admin/payments/charges/{id}
func (h *Handler) GetCharge(w http.ResponseWriter, r *http.Request) {
	charge, err := h.service.GetCharge(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, ErrChargeNotFound) {
		http.Error(w, "charge not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("charge load failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, charge)
}

// ListLeadCharges returns a lead's charges.
// GET /admin/payments/leads/{leadID}/charges
func (h *Handler) ListLeadCharges(w http.ResponseWriter, r *http.Request) {
	charges, err := h.service.ListLeadCharges(r.Context(), chi.URLParam(r, "leadID"))
	if err != nil {
		h.logger.Error("charge list failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if charges == nil {
		charges = []Charge{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"charges": charges})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
