package httpapi

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mmynk/circulation/internal/models"
)

var (
	checkoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circulation_checkouts_total",
			Help: "Checkout attempts by outcome.",
		},
		[]string{"outcome"},
	)
	checkinsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "circulation_checkins_total",
			Help: "Loans successfully checked in.",
		},
	)
	finesPaidTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "circulation_fines_paid_total",
			Help: "Fines marked paid.",
		},
	)
	finesReconciled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circulation_fines_reconciled_total",
			Help: "Fine records written by reconciliation, by action.",
		},
		[]string{"action"},
	)
)

// loanJSON is the wire shape of a loan; dates are "YYYY-MM-DD" strings and a
// missing date_in means the loan is active.
type loanJSON struct {
	LoanID  int    `json:"loan_id"`
	ISBN    string `json:"isbn"`
	CardID  string `json:"card_id"`
	DateOut string `json:"date_out"`
	DueDate string `json:"due_date"`
	DateIn  string `json:"date_in,omitempty"`
}

func toLoanJSON(l *models.Loan) loanJSON {
	out := loanJSON{
		LoanID:  l.ID,
		ISBN:    l.ISBN,
		CardID:  l.CardID,
		DateOut: l.DateOut.String(),
		DueDate: l.DueDate.String(),
	}
	if l.DateIn != nil {
		out.DateIn = l.DateIn.String()
	}
	return out
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ISBN   string `json:"isbn"`
		CardID string `json:"card_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	result, err := h.ledger.Checkout(r.Context(), req.ISBN, req.CardID)
	if err != nil {
		checkoutsTotal.WithLabelValues("rejected").Inc()
		writeError(w, err)
		return
	}
	checkoutsTotal.WithLabelValues("ok").Inc()

	writeJSON(w, http.StatusOK, struct {
		Loan    loanJSON `json:"loan"`
		Message string   `json:"message"`
	}{Loan: toLoanJSON(result.Loan), Message: result.Message})
}

func (h *Handler) checkin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LoanIDs []int `json:"loan_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	updated, err := h.ledger.CheckIn(r.Context(), req.LoanIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	checkinsTotal.Add(float64(updated))

	writeJSON(w, http.StatusOK, struct {
		Updated int `json:"updated"`
	}{Updated: updated})
}

func (h *Handler) reconcileFines(w http.ResponseWriter, r *http.Request) {
	result, err := h.fines.ReconcileAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	finesReconciled.WithLabelValues("created").Add(float64(result.Created))
	finesReconciled.WithLabelValues("updated").Add(float64(result.Updated))

	writeJSON(w, http.StatusOK, struct {
		Created int `json:"created"`
		Updated int `json:"updated"`
	}{Created: result.Created, Updated: result.Updated})
}

type fineJSON struct {
	LoanID  int    `json:"loan_id"`
	ISBN    string `json:"isbn"`
	DueDate string `json:"due_date"`
	DateIn  string `json:"date_in,omitempty"`
	Amount  string `json:"amount"`
	Paid    bool   `json:"paid"`
}

type borrowerFinesJSON struct {
	CardID   string     `json:"card_id"`
	Borrower string     `json:"borrower"`
	Fines    []fineJSON `json:"fines"`
	Total    string     `json:"total"`
}

// listFines reconciles first, then returns fines grouped by borrower, the
// same reconcile-before-view behavior as the fines management page.
func (h *Handler) listFines(w http.ResponseWriter, r *http.Request) {
	if _, err := h.fines.ReconcileAll(r.Context()); err != nil {
		writeError(w, err)
		return
	}

	includePaid := r.URL.Query().Get("show_paid") == "1"
	grouped, err := h.fines.FinesByBorrower(r.Context(), includePaid)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]borrowerFinesJSON, 0, len(grouped))
	for _, g := range grouped {
		b := borrowerFinesJSON{
			CardID:   g.CardID,
			Borrower: g.BorrowerName,
			Total:    g.Total.String(),
		}
		for _, f := range g.Fines {
			fj := fineJSON{
				LoanID:  f.LoanID,
				ISBN:    f.ISBN,
				DueDate: f.DueDate.String(),
				Amount:  f.Amount.String(),
				Paid:    f.Paid,
			}
			if f.DateIn != nil {
				fj.DateIn = f.DateIn.String()
			}
			b.Fines = append(b.Fines, fj)
		}
		out = append(out, b)
	}

	writeJSON(w, http.StatusOK, struct {
		Borrowers []borrowerFinesJSON `json:"borrowers"`
	}{Borrowers: out})
}

func (h *Handler) payFines(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CardID string `json:"card_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	count, err := h.fines.PayBorrowerFines(r.Context(), req.CardID)
	if err != nil {
		writeError(w, err)
		return
	}
	finesPaidTotal.Add(float64(count))

	writeJSON(w, http.StatusOK, struct {
		Success bool   `json:"success"`
		Count   int    `json:"count"`
		Message string `json:"message"`
	}{
		Success: true,
		Count:   count,
		Message: formatPaidMessage(count),
	})
}

func formatPaidMessage(count int) string {
	if count == 0 {
		return "No unpaid fines to pay."
	}
	return fmt.Sprintf("Successfully paid %d fine(s).", count)
}

func (h *Handler) pendingFines(w http.ResponseWriter, r *http.Request) {
	cardID := r.PathValue("card_id")
	pending, err := h.fines.HasPendingUnpaidFines(r.Context(), cardID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Pending bool `json:"pending"`
	}{Pending: pending})
}

func (h *Handler) registerBorrower(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name    string `json:"name"`
		SSN     string `json:"ssn"`
		Address string `json:"address"`
		Phone   string `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	result, err := h.registry.RegisterBorrower(r.Context(), req.Name, req.SSN, req.Address, req.Phone)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, struct {
		CardID  string `json:"card_id"`
		Name    string `json:"name"`
		Message string `json:"message"`
	}{
		CardID:  result.Borrower.CardID,
		Name:    result.Borrower.Name,
		Message: result.Message,
	})
}

func (h *Handler) searchBooks(w http.ResponseWriter, r *http.Request) {
	results, err := h.registry.SearchBooks(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, err)
		return
	}

	type bookJSON struct {
		ISBN       string   `json:"isbn"`
		Title      string   `json:"title"`
		Authors    []string `json:"authors"`
		Available  bool     `json:"available"`
		BorrowedBy string   `json:"borrowed_by,omitempty"`
	}
	out := make([]bookJSON, 0, len(results))
	for _, b := range results {
		out = append(out, bookJSON{
			ISBN:       b.ISBN,
			Title:      b.Title,
			Authors:    b.Authors,
			Available:  b.Available,
			BorrowedBy: b.BorrowedBy,
		})
	}

	writeJSON(w, http.StatusOK, struct {
		Results []bookJSON `json:"results"`
	}{Results: out})
}

func (h *Handler) getClock(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Date      string `json:"date"`
		Simulated bool   `json:"simulated"`
	}{Date: h.clock.Today().String(), Simulated: h.clock.Simulating()})
}

func (h *Handler) setClock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date string `json:"date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	date, err := models.ParseDate(req.Date)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "date must be in YYYY-MM-DD format"})
		return
	}
	h.clock.Set(date)

	writeJSON(w, http.StatusOK, struct {
		Success bool   `json:"success"`
		Date    string `json:"date"`
		Message string `json:"message"`
	}{Success: true, Date: date.String(), Message: "Date simulated successfully"})
}

func (h *Handler) resetClock(w http.ResponseWriter, r *http.Request) {
	h.clock.Reset()
	writeJSON(w, http.StatusOK, struct {
		Success bool   `json:"success"`
		Date    string `json:"date"`
		Message string `json:"message"`
	}{Success: true, Date: h.clock.Today().String(), Message: "Date reset to today"})
}
