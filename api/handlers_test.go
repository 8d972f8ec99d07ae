package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/canteen-engine/api"
	"github.com/warp/canteen-engine/canteen"
	"github.com/warp/canteen-engine/canteen/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type apiFixture struct {
	server *httptest.Server
	mem    *store.Memory
}

func newAPIFixture(t *testing.T, features canteen.Features) *apiFixture {
	t.Helper()
	mem := store.NewMemory()
	registry := prometheus.NewRegistry()
	handler := api.NewHandler(mem, features, api.NewMetrics(registry))
	srv := httptest.NewServer(api.NewRouter(handler, registry))
	t.Cleanup(srv.Close)
	return &apiFixture{server: srv, mem: mem}
}

func (f *apiFixture) seedAccount(t *testing.T, id, balance string) {
	t.Helper()
	require.NoError(t, f.mem.CreateAccount(context.Background(), canteen.Account{
		ID:       canteen.AccountID(id),
		Name:     "Account " + id,
		Balance:  dec(balance),
		IsActive: true,
	}))
}

func (f *apiFixture) seedProduct(t *testing.T, id, price string) {
	t.Helper()
	require.NoError(t, f.mem.PutProduct(context.Background(), canteen.Product{
		ID:       canteen.ProductID(id),
		Name:     "Product " + id,
		Price:    dec(price),
		IsActive: true,
	}))
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func TestAPI_CreateAndFetchAccount(t *testing.T) {
	f := newAPIFixture(t, canteen.DefaultFeatures())

	resp := f.do(t, http.MethodPost, "/api/accounts", map[string]any{
		"name":            "Maria Silva",
		"grade":           "5B",
		"initial_balance": "10.00",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		ID      string `json:"id"`
		Balance string `json:"balance"`
	}
	decodeBody(t, resp, &created)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "10.00", created.Balance)

	resp = f.do(t, http.MethodGet, "/api/accounts/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_CreateAccountValidation(t *testing.T) {
	f := newAPIFixture(t, canteen.DefaultFeatures())

	resp := f.do(t, http.MethodPost, "/api/accounts", map[string]any{"grade": "5B"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/accounts", map[string]any{
		"name": "X", "initial_balance": "not-a-number",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_GetAccountNotFound(t *testing.T) {
	f := newAPIFixture(t, canteen.DefaultFeatures())

	resp := f.do(t, http.MethodGet, "/api/accounts/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_ReceivePayment(t *testing.T) {
	f := newAPIFixture(t, canteen.DefaultFeatures())
	f.seedAccount(t, "acc-1", "-15.00")

	resp := f.do(t, http.MethodPost, "/api/accounts/acc-1/payments", map[string]any{
		"value": "15.00", "description": "guardian paid",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var entry struct {
		Type         string `json:"type"`
		BalanceAfter string `json:"balance_after"`
	}
	decodeBody(t, resp, &entry)
	assert.Equal(t, string(canteen.MovementPayment), entry.Type)
	assert.Equal(t, "0.00", entry.BalanceAfter)
}

func TestAPI_AdjustmentRejectsBadType(t *testing.T) {
	f := newAPIFixture(t, canteen.DefaultFeatures())
	f.seedAccount(t, "acc-1", "0")

	resp := f.do(t, http.MethodPost, "/api/accounts/acc-1/adjustments", map[string]any{
		"type": "purchase", "value": "5.00",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// CHECKOUT
// =============================================================================

func TestAPI_CheckoutAgainstAccount(t *testing.T) {
	f := newAPIFixture(t, canteen.DefaultFeatures())
	f.seedAccount(t, "acc-1", "20.00")
	f.seedProduct(t, "p1", "2.50")

	accID := "acc-1"
	resp := f.do(t, http.MethodPost, "/api/checkout", map[string]any{
		"items":          []map[string]any{{"product_id": "p1", "quantity": 3}},
		"payment_method": "account",
		"account_id":     accID,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out struct {
		Transaction struct {
			Total           string  `json:"total"`
			Status          string  `json:"status"`
			BalanceSnapshot *string `json:"balance_snapshot"`
		} `json:"transaction"`
	}
	decodeBody(t, resp, &out)
	assert.Equal(t, "7.50", out.Transaction.Total)
	assert.Equal(t, string(canteen.StatusValid), out.Transaction.Status)
	require.NotNil(t, out.Transaction.BalanceSnapshot)
	assert.Equal(t, "12.50", *out.Transaction.BalanceSnapshot)
}

func TestAPI_CheckoutInsufficientCredit(t *testing.T) {
	features := canteen.DefaultFeatures()
	features.AllowNegativeBalance = false
	f := newAPIFixture(t, features)
	f.seedAccount(t, "acc-1", "1.00")
	f.seedProduct(t, "p1", "2.50")

	resp := f.do(t, http.MethodPost, "/api/checkout", map[string]any{
		"items":          []map[string]any{{"product_id": "p1", "quantity": 1}},
		"payment_method": "account",
		"account_id":     "acc-1",
	})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var errResp struct {
		Code string `json:"code"`
	}
	decodeBody(t, resp, &errResp)
	assert.Equal(t, "insufficient_credit", errResp.Code)
}

func TestAPI_CheckoutOverdueBlockedReportsDays(t *testing.T) {
	features := canteen.DefaultFeatures()
	features.BlockOverdueStudents = true
	features.MaxOverdueDays = 5
	f := newAPIFixture(t, features)
	f.seedAccount(t, "acc-1", "0")
	f.seedProduct(t, "p1", "2.50")

	require.NoError(t, f.mem.ApplyMovement(context.Background(), "acc-1", canteen.HistoryEntry{
		ID:           canteen.NewID(),
		AccountID:    "acc-1",
		Type:         canteen.MovementPurchase,
		Value:        dec("15.00"),
		BalanceAfter: dec("-15.00"),
		CreatedAt:    time.Now().AddDate(0, 0, -10),
	}))

	resp := f.do(t, http.MethodPost, "/api/checkout", map[string]any{
		"items":          []map[string]any{{"product_id": "p1", "quantity": 1}},
		"payment_method": "account",
		"account_id":     "acc-1",
	})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var errResp struct {
		Code        string `json:"code"`
		DaysOverdue *int   `json:"days_overdue"`
	}
	decodeBody(t, resp, &errResp)
	assert.Equal(t, "account_blocked", errResp.Code)
	require.NotNil(t, errResp.DaysOverdue)
	assert.Equal(t, 10, *errResp.DaysOverdue)
}

func TestAPI_CheckoutCashChange(t *testing.T) {
	f := newAPIFixture(t, canteen.DefaultFeatures())
	f.seedProduct(t, "p1", "7.50")

	resp := f.do(t, http.MethodPost, "/api/checkout", map[string]any{
		"items":           []map[string]any{{"product_id": "p1", "quantity": 1}},
		"payment_method":  "money",
		"amount_tendered": "10.00",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out struct {
		ChangeDue string `json:"change_due"`
	}
	decodeBody(t, resp, &out)
	assert.Equal(t, "2.50", out.ChangeDue)
}

func TestAPI_CheckoutUnknownProduct(t *testing.T) {
	f := newAPIFixture(t, canteen.DefaultFeatures())

	resp := f.do(t, http.MethodPost, "/api/checkout", map[string]any{
		"items":           []map[string]any{{"product_id": "ghost", "quantity": 1}},
		"payment_method":  "money",
		"amount_tendered": "10.00",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// =============================================================================
// EXCHANGE AND CANCELLATION
// =============================================================================

func TestAPI_ExchangeDebitsAccount(t *testing.T) {
	f := newAPIFixture(t, canteen.DefaultFeatures())
	f.seedAccount(t, "acc-1", "20.00")
	f.seedProduct(t, "cheap", "6.00")
	f.seedProduct(t, "fancy", "10.00")

	resp := f.do(t, http.MethodPost, "/api/exchanges", map[string]any{
		"returned_items": []map[string]any{{"product_id": "cheap", "quantity": 1}},
		"new_items":      []map[string]any{{"product_id": "fancy", "quantity": 1}},
		"account_id":     "acc-1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out struct {
		PriceDiff string `json:"price_diff"`
	}
	decodeBody(t, resp, &out)
	assert.Equal(t, "4.00", out.PriceDiff)

	account, err := f.mem.GetAccount(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.True(t, account.Balance.Equal(dec("16.00")))
}

func TestAPI_CancelTransaction(t *testing.T) {
	f := newAPIFixture(t, canteen.DefaultFeatures())
	f.seedProduct(t, "p1", "3.00")

	resp := f.do(t, http.MethodPost, "/api/checkout", map[string]any{
		"items":           []map[string]any{{"product_id": "p1", "quantity": 1}},
		"payment_method":  "money",
		"amount_tendered": "3.00",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var out struct {
		Transaction struct {
			ID string `json:"id"`
		} `json:"transaction"`
	}
	decodeBody(t, resp, &out)

	resp = f.do(t, http.MethodDelete, "/api/transactions/"+out.Transaction.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cancelled struct {
		Status string `json:"status"`
	}
	decodeBody(t, resp, &cancelled)
	assert.Equal(t, string(canteen.StatusCancelled), cancelled.Status)

	resp = f.do(t, http.MethodDelete, "/api/transactions/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// =============================================================================
// BILLING AND REPORTS
// =============================================================================

func TestAPI_ListDebtors(t *testing.T) {
	f := newAPIFixture(t, canteen.DefaultFeatures())
	f.seedAccount(t, "debtor", "-8.00")
	f.seedAccount(t, "solvent", "5.00")

	resp := f.do(t, http.MethodGet, "/api/billing/debtors", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out []struct {
		Account struct {
			ID string `json:"id"`
		} `json:"account"`
	}
	decodeBody(t, resp, &out)
	require.Len(t, out, 1)
	assert.Equal(t, "debtor", out[0].Account.ID)

	resp = f.do(t, http.MethodGet, "/api/billing/debtors?from=bad-date", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_ReportSummaryDefaultsToToday(t *testing.T) {
	f := newAPIFixture(t, canteen.DefaultFeatures())
	f.seedProduct(t, "p1", "4.00")

	for i := 0; i < 2; i++ {
		resp := f.do(t, http.MethodPost, "/api/checkout", map[string]any{
			"items":           []map[string]any{{"product_id": "p1", "quantity": 1}},
			"payment_method":  "money",
			"amount_tendered": "4.00",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp := f.do(t, http.MethodGet, "/api/reports/summary", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var summary struct {
		Revenue string `json:"revenue"`
		Orders  int    `json:"orders"`
	}
	decodeBody(t, resp, &summary)
	assert.Equal(t, 2, summary.Orders)
	assert.Equal(t, "8.00", summary.Revenue)

	// Half-open range params are refused.
	resp = f.do(t, http.MethodGet, "/api/reports/summary?from=2026-01-01", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// CASH AND CATALOG
// =============================================================================

func TestAPI_CashDrawer(t *testing.T) {
	f := newAPIFixture(t, canteen.DefaultFeatures())

	resp := f.do(t, http.MethodPost, "/api/cash", map[string]any{
		"type": "in", "value": "100.00", "reason": "opening float",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/cash", map[string]any{
		"type": "out", "value": "30.00",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/cash", map[string]any{
		"type": "sideways", "value": "1.00",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/cash", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var book struct {
		Balance string `json:"balance"`
		Entries []any  `json:"entries"`
	}
	decodeBody(t, resp, &book)
	assert.Equal(t, "70.00", book.Balance)
	assert.Len(t, book.Entries, 2)
}

func TestAPI_PutProductGeneratesID(t *testing.T) {
	f := newAPIFixture(t, canteen.DefaultFeatures())

	resp := f.do(t, http.MethodPost, "/api/products", map[string]any{
		"name": "Juice", "price": "2.50", "is_active": true,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var product struct {
		ID string `json:"id"`
	}
	decodeBody(t, resp, &product)
	assert.NotEmpty(t, product.ID)

	resp = f.do(t, http.MethodGet, "/api/products", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var products []any
	decodeBody(t, resp, &products)
	assert.Len(t, products, 1)
}
