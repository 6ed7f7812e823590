// Package httpapi exposes the circulation core over an HTTP JSON API.
// It is a thin presentation layer: every business decision lives in the
// ledger, fines and registry services.
package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"github.com/mmynk/circulation/internal/clock"
	"github.com/mmynk/circulation/internal/fines"
	"github.com/mmynk/circulation/internal/ledger"
	"github.com/mmynk/circulation/internal/registry"
	"github.com/mmynk/circulation/internal/storage"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Handler serves the circulation API.
type Handler struct {
	ledger   *ledger.Ledger
	fines    *fines.Engine
	registry *registry.Registry
	clock    *clock.Simulated
}

// New creates a Handler over the circulation services. The simulated clock is
// the same instance injected into the services, so the clock endpoints steer
// every date-sensitive computation.
func New(l *ledger.Ledger, f *fines.Engine, g *registry.Registry, clk *clock.Simulated) *Handler {
	return &Handler{ledger: l, fines: f, registry: g, clock: clk}
}

// Routes registers all API endpoints on a new mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/checkout", h.checkout)
	mux.HandleFunc("POST /api/checkin", h.checkin)

	mux.HandleFunc("POST /api/fines/reconcile", h.reconcileFines)
	mux.HandleFunc("GET /api/fines", h.listFines)
	mux.HandleFunc("POST /api/fines/pay", h.payFines)
	mux.HandleFunc("GET /api/borrowers/{card_id}/fines/pending", h.pendingFines)

	mux.HandleFunc("POST /api/borrowers", h.registerBorrower)
	mux.HandleFunc("GET /api/books", h.searchBooks)

	mux.HandleFunc("GET /api/clock", h.getClock)
	mux.HandleFunc("POST /api/clock", h.setClock)
	mux.HandleFunc("DELETE /api/clock", h.resetClock)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps core errors onto the HTTP taxonomy: bad input 400,
// business-rule rejections 422, storage races 409 (retryable), everything
// else a logged 500 with a generic body.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case isValidation(err):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, storage.ErrConflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "book no longer available, please retry"})
	case isBusinessRule(err):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	default:
		slog.Error("Request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func isValidation(err error) bool {
	return errors.Is(err, ledger.ErrValidation) ||
		errors.Is(err, fines.ErrValidation) ||
		errors.Is(err, registry.ErrValidation)
}

func isBusinessRule(err error) bool {
	for _, target := range []error{
		ledger.ErrBorrowerNotFound,
		ledger.ErrUnpaidFineBlock,
		ledger.ErrTooManyActiveLoans,
		ledger.ErrBookUnavailable,
		ledger.ErrNoSelection,
		ledger.ErrTooManyAtOnce,
		ledger.ErrNothingCheckedIn,
		fines.ErrActiveLoansBlock,
		registry.ErrDuplicateSSN,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
