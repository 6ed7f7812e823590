package httpapi

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/circulation/internal/clock"
	"github.com/mmynk/circulation/internal/fines"
	"github.com/mmynk/circulation/internal/ledger"
	"github.com/mmynk/circulation/internal/models"
	"github.com/mmynk/circulation/internal/registry"
	"github.com/mmynk/circulation/internal/storage/sqlite"
)

// setupTestServer creates a test server over a temp SQLite database and a
// simulated clock pinned to 2024-01-01.
func setupTestServer(t *testing.T) (*httptest.Server, *clock.Simulated) {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	base, err := models.ParseDate("2024-01-01")
	require.NoError(t, err)
	clk := clock.NewSimulated(clock.Fixed(base))

	handler := New(
		ledger.New(store, clk),
		fines.New(store, clk),
		registry.New(store),
		clk,
	)
	server := httptest.NewServer(handler.Routes())
	t.Cleanup(func() {
		server.Close()
		store.Close()
	})
	return server, clk
}

func doJSON(t *testing.T, method, url, body string, out any) int {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func registerTestBorrower(t *testing.T, url string) string {
	t.Helper()
	var created struct {
		CardID string `json:"card_id"`
	}
	status := doJSON(t, http.MethodPost, url+"/api/borrowers",
		`{"name":"Ada Lovelace","ssn":"123-45-6789","address":"12 Analytical Way","phone":"5551234567"}`,
		&created)
	require.Equal(t, http.StatusCreated, status)
	return created.CardID
}

func TestRegisterBorrowerEndpoint(t *testing.T) {
	server, _ := setupTestServer(t)

	cardID := registerTestBorrower(t, server.URL)
	assert.Equal(t, "000001", cardID)

	t.Run("validation error is a 400", func(t *testing.T) {
		var errResp struct {
			Error string `json:"error"`
		}
		status := doJSON(t, http.MethodPost, server.URL+"/api/borrowers",
			`{"name":"","ssn":"123456789","address":"x"}`, &errResp)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Contains(t, errResp.Error, "name is required")
	})

	t.Run("duplicate ssn is a 422", func(t *testing.T) {
		status := doJSON(t, http.MethodPost, server.URL+"/api/borrowers",
			`{"name":"Imposter","ssn":"123456789","address":"x"}`, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, status)
	})
}

func TestCheckoutEndpoint(t *testing.T) {
	server, _ := setupTestServer(t)
	cardID := registerTestBorrower(t, server.URL)

	t.Run("success returns the loan and message", func(t *testing.T) {
		var resp struct {
			Loan    loanJSON `json:"loan"`
			Message string   `json:"message"`
		}
		status := doJSON(t, http.MethodPost, server.URL+"/api/checkout",
			`{"isbn":"978-0451524935","card_id":"`+cardID+`"}`, &resp)
		require.Equal(t, http.StatusOK, status)

		assert.Equal(t, 1, resp.Loan.LoanID)
		assert.Equal(t, "2024-01-01", resp.Loan.DateOut)
		assert.Equal(t, "2024-01-15", resp.Loan.DueDate)
		assert.Empty(t, resp.Loan.DateIn)
		assert.Contains(t, resp.Message, "2024-01-15")
	})

	t.Run("unavailable book is a 422", func(t *testing.T) {
		var errResp struct {
			Error string `json:"error"`
		}
		status := doJSON(t, http.MethodPost, server.URL+"/api/checkout",
			`{"isbn":"978-0451524935","card_id":"`+cardID+`"}`, &errResp)
		assert.Equal(t, http.StatusUnprocessableEntity, status)
		assert.Contains(t, errResp.Error, "not available")
	})

	t.Run("unknown borrower is a 422", func(t *testing.T) {
		status := doJSON(t, http.MethodPost, server.URL+"/api/checkout",
			`{"isbn":"222","card_id":"999999"}`, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, status)
	})

	t.Run("missing isbn is a 400", func(t *testing.T) {
		status := doJSON(t, http.MethodPost, server.URL+"/api/checkout",
			`{"isbn":"","card_id":"`+cardID+`"}`, nil)
		assert.Equal(t, http.StatusBadRequest, status)
	})
}

func TestCheckinEndpoint(t *testing.T) {
	server, _ := setupTestServer(t)
	cardID := registerTestBorrower(t, server.URL)

	status := doJSON(t, http.MethodPost, server.URL+"/api/checkout",
		`{"isbn":"111","card_id":"`+cardID+`"}`, nil)
	require.Equal(t, http.StatusOK, status)

	t.Run("returns the updated count, skipping misses", func(t *testing.T) {
		var resp struct {
			Updated int `json:"updated"`
		}
		status := doJSON(t, http.MethodPost, server.URL+"/api/checkin",
			`{"loan_ids":[1,999]}`, &resp)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, 1, resp.Updated)
	})

	t.Run("wholly ineffective batch is a 422", func(t *testing.T) {
		status := doJSON(t, http.MethodPost, server.URL+"/api/checkin",
			`{"loan_ids":[1]}`, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, status)
	})

	t.Run("oversized batch is a 422", func(t *testing.T) {
		status := doJSON(t, http.MethodPost, server.URL+"/api/checkin",
			`{"loan_ids":[1,2,3,4]}`, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, status)
	})

	t.Run("empty selection is a 422", func(t *testing.T) {
		status := doJSON(t, http.MethodPost, server.URL+"/api/checkin",
			`{"loan_ids":[]}`, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, status)
	})
}

func TestClockEndpoints(t *testing.T) {
	server, _ := setupTestServer(t)

	var current struct {
		Date      string `json:"date"`
		Simulated bool   `json:"simulated"`
	}
	status := doJSON(t, http.MethodGet, server.URL+"/api/clock", "", &current)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "2024-01-01", current.Date)
	assert.False(t, current.Simulated)

	t.Run("set override", func(t *testing.T) {
		status := doJSON(t, http.MethodPost, server.URL+"/api/clock", `{"date":"2024-06-15"}`, nil)
		require.Equal(t, http.StatusOK, status)

		status = doJSON(t, http.MethodGet, server.URL+"/api/clock", "", &current)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "2024-06-15", current.Date)
		assert.True(t, current.Simulated)
	})

	t.Run("malformed date is a 400", func(t *testing.T) {
		status := doJSON(t, http.MethodPost, server.URL+"/api/clock", `{"date":"06/15/2024"}`, nil)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("reset clears the override", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodDelete, server.URL+"/api/clock", nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		status = doJSON(t, http.MethodGet, server.URL+"/api/clock", "", &current)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "2024-01-01", current.Date)
		assert.False(t, current.Simulated)
	})
}

// TestFineWorkflowEndpoints drives the overdue scenario through the API:
// simulate a later date, reconcile, observe the fine, check in, pay.
func TestFineWorkflowEndpoints(t *testing.T) {
	server, _ := setupTestServer(t)
	cardID := registerTestBorrower(t, server.URL)

	status := doJSON(t, http.MethodPost, server.URL+"/api/checkout",
		`{"isbn":"111","card_id":"`+cardID+`"}`, nil)
	require.Equal(t, http.StatusOK, status)

	// Five days past due.
	status = doJSON(t, http.MethodPost, server.URL+"/api/clock", `{"date":"2024-01-20"}`, nil)
	require.Equal(t, http.StatusOK, status)

	var rec struct {
		Created int `json:"created"`
		Updated int `json:"updated"`
	}
	status = doJSON(t, http.MethodPost, server.URL+"/api/fines/reconcile", "", &rec)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, rec.Created)

	var pending struct {
		Pending bool `json:"pending"`
	}
	status = doJSON(t, http.MethodGet, server.URL+"/api/borrowers/"+cardID+"/fines/pending", "", &pending)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, pending.Pending)

	// Payment refused while the book is out.
	status = doJSON(t, http.MethodPost, server.URL+"/api/fines/pay",
		`{"card_id":"`+cardID+`"}`, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	// The fines view reconciles then lists, grouped by borrower.
	var view struct {
		Borrowers []borrowerFinesJSON `json:"borrowers"`
	}
	status = doJSON(t, http.MethodGet, server.URL+"/api/fines", "", &view)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, view.Borrowers, 1)
	assert.Equal(t, cardID, view.Borrowers[0].CardID)
	assert.Equal(t, "1.25", view.Borrowers[0].Total)

	// Check in, then payment succeeds.
	status = doJSON(t, http.MethodPost, server.URL+"/api/checkin", `{"loan_ids":[1]}`, nil)
	require.Equal(t, http.StatusOK, status)

	var paid struct {
		Success bool   `json:"success"`
		Count   int    `json:"count"`
		Message string `json:"message"`
	}
	status = doJSON(t, http.MethodPost, server.URL+"/api/fines/pay",
		`{"card_id":"`+cardID+`"}`, &paid)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, paid.Success)
	assert.Equal(t, 1, paid.Count)

	// Nothing pending anymore; paid fines only show with show_paid=1.
	status = doJSON(t, http.MethodGet, server.URL+"/api/borrowers/"+cardID+"/fines/pending", "", &pending)
	require.Equal(t, http.StatusOK, status)
	assert.False(t, pending.Pending)

	status = doJSON(t, http.MethodGet, server.URL+"/api/fines", "", &view)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, view.Borrowers)

	status = doJSON(t, http.MethodGet, server.URL+"/api/fines?show_paid=1", "", &view)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, view.Borrowers, 1)
	require.Len(t, view.Borrowers[0].Fines, 1)
	assert.True(t, view.Borrowers[0].Fines[0].Paid)
	assert.Equal(t, "1.25", view.Borrowers[0].Fines[0].Amount)
}

func TestSearchBooksEndpoint(t *testing.T) {
	server, _ := setupTestServer(t)

	var resp struct {
		Results []struct {
			ISBN      string `json:"isbn"`
			Title     string `json:"title"`
			Available bool   `json:"available"`
		} `json:"results"`
	}
	status := doJSON(t, http.MethodGet, server.URL+"/api/books?q=anything", "", &resp)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, resp.Results)
}
