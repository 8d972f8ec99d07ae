/*
handlers.go - HTTP handler implementations

PURPOSE:
  Decodes requests, delegates to the canteen core, and encodes
  responses. No business rules live here: every gate (overdue, credit,
  stock, cash) is enforced by the domain services, and handlers only
  translate their errors to status codes.

ERROR MAPPING:
  canteen.IsNotFound     -> 404
  canteen.IsClientError  -> 422 (recoverable validation failure)
  anything else          -> 500

SEE ALSO:
  - server.go: Route wiring
  - dto.go: Request/response shapes
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/warp/canteen-engine/canteen"
)

// Storage is the full persistence surface the handler needs. Both the
// SQLite store and the in-memory store satisfy it.
type Storage interface {
	canteen.AccountStore
	canteen.JournalStore
	canteen.CashStore
	canteen.Catalog
}

// Handler carries the domain services behind the HTTP surface.
type Handler struct {
	storage   Storage
	ledger    *canteen.Ledger
	journal   *canteen.Journal
	settler   *canteen.Settler
	exchanger *canteen.Exchanger
	collector *canteen.Collector
	cashBook  *canteen.CashBook
	features  canteen.Features
	metrics   *Metrics
}

// NewHandler wires the domain services over one storage backend.
func NewHandler(storage Storage, features canteen.Features, metrics *Metrics) *Handler {
	ledger := canteen.NewLedger(storage)
	journal := canteen.NewJournal(storage)
	return &Handler{
		storage:   storage,
		ledger:    ledger,
		journal:   journal,
		settler:   canteen.NewSettler(ledger, journal, features),
		exchanger: canteen.NewExchanger(ledger, journal),
		collector: canteen.NewCollector(storage),
		cashBook:  canteen.NewCashBook(storage),
		features:  features,
		metrics:   metrics,
	}
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("all") == "true"
	accounts, err := h.storage.ListAccounts(r.Context(), includeInactive)
	if err != nil {
		h.writeError(w, err)
		return
	}
	dtos := make([]AccountDTO, len(accounts))
	for i, a := range accounts {
		dtos[i] = toAccountDTO(a, false)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid JSON body")
		return
	}
	if req.Name == "" {
		h.badRequest(w, "name is required")
		return
	}

	balance := decimal.Zero
	if req.InitialBalance != "" {
		var err error
		if balance, err = decimal.NewFromString(req.InitialBalance); err != nil {
			h.badRequest(w, "initial_balance is not a valid decimal")
			return
		}
	}

	account := canteen.Account{
		ID:            canteen.AccountID(canteen.NewID()),
		Name:          req.Name,
		Grade:         req.Grade,
		Code:          req.Code,
		Balance:       balance,
		IsStaff:       req.IsStaff,
		IsActive:      true,
		GuardianName:  req.GuardianName,
		GuardianEmail: req.GuardianEmail,
		GuardianPhone: req.GuardianPhone,
		Notes:         req.Notes,
		CreatedAt:     time.Now(),
	}
	if err := h.storage.CreateAccount(r.Context(), account); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountDTO(account, false))
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id := canteen.AccountID(chi.URLParam(r, "id"))
	account, err := h.ledger.Account(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(account, true))
}

func (h *Handler) ReceivePayment(w http.ResponseWriter, r *http.Request) {
	h.applyMovement(w, r, canteen.MovementPayment)
}

// ApplyAdjustment accepts adjustment and refund movements. Purchases
// and exchanges only enter the ledger through settlement.
func (h *Handler) ApplyAdjustment(w http.ResponseWriter, r *http.Request) {
	id := canteen.AccountID(chi.URLParam(r, "id"))

	var req MovementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid JSON body")
		return
	}
	var t canteen.MovementType
	switch canteen.MovementType(req.Type) {
	case canteen.MovementAdjustment, "":
		t = canteen.MovementAdjustment
	case canteen.MovementRefund:
		t = canteen.MovementRefund
	default:
		h.badRequest(w, "type must be adjustment or refund")
		return
	}
	h.applyMovementTyped(w, r, id, t, req)
}

func (h *Handler) applyMovement(w http.ResponseWriter, r *http.Request, t canteen.MovementType) {
	id := canteen.AccountID(chi.URLParam(r, "id"))
	var req MovementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid JSON body")
		return
	}
	h.applyMovementTyped(w, r, id, t, req)
}

func (h *Handler) applyMovementTyped(w http.ResponseWriter, r *http.Request, id canteen.AccountID, t canteen.MovementType, req MovementRequest) {
	value, err := decimal.NewFromString(req.Value)
	if err != nil {
		h.badRequest(w, "value is not a valid decimal")
		return
	}
	entry, err := h.ledger.ApplyMovement(r.Context(), id, t, value, req.Description, nil)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toHistoryEntryDTOs([]canteen.HistoryEntry{entry})[0])
}

func (h *Handler) DeactivateAccount(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *Handler) ActivateAccount(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	id := canteen.AccountID(chi.URLParam(r, "id"))
	if err := h.storage.SetActive(r.Context(), id, active); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// CHECKOUT
// =============================================================================

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid JSON body")
		return
	}

	cart := canteen.NewCart(h.features)
	for _, item := range req.Items {
		product, err := h.storage.GetProduct(r.Context(), canteen.ProductID(item.ProductID))
		if err != nil {
			h.writeError(w, err)
			return
		}
		if err := cart.Add(product, item.Quantity); err != nil {
			h.rejectSettlement(w, err)
			return
		}
		if item.Note != "" {
			cart.SetNote(product.ID, item.Note)
		}
	}

	tendered := decimal.Zero
	if req.AmountTendered != "" {
		var err error
		if tendered, err = decimal.NewFromString(req.AmountTendered); err != nil {
			h.badRequest(w, "amount_tendered is not a valid decimal")
			return
		}
	}

	var accountID *canteen.AccountID
	if req.AccountID != nil {
		id := canteen.AccountID(*req.AccountID)
		accountID = &id
	}

	method := canteen.PaymentMethod(req.PaymentMethod)
	res, err := h.settler.Settle(r.Context(), cart, method, accountID, tendered)
	if err != nil {
		h.rejectSettlement(w, err)
		return
	}
	h.metrics.Settlements.WithLabelValues(string(method)).Inc()

	resp := CheckoutResponse{
		Transaction:   toTransactionDTO(res.Transaction),
		PointsAccrued: res.PointsAccrued,
	}
	if method == canteen.PaymentMoney {
		resp.ChangeDue = res.ChangeDue.StringFixed(2)
	}
	writeJSON(w, http.StatusCreated, resp)
}

// =============================================================================
// EXCHANGE
// =============================================================================

func (h *Handler) Exchange(w http.ResponseWriter, r *http.Request) {
	var req ExchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid JSON body")
		return
	}

	returned, err := h.priceItems(r, req.ReturnedItems)
	if err != nil {
		h.writeError(w, err)
		return
	}
	newItems, err := h.priceItems(r, req.NewItems)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var accountID *canteen.AccountID
	if req.AccountID != nil {
		id := canteen.AccountID(*req.AccountID)
		accountID = &id
	}

	res, err := h.exchanger.Exchange(r.Context(), returned, newItems, accountID, req.PayDiffInCash, req.Confirmed)
	if err != nil {
		h.rejectSettlement(w, err)
		return
	}
	h.metrics.Exchanges.Inc()

	writeJSON(w, http.StatusCreated, ExchangeResponse{
		Transaction: toTransactionDTO(res.Transaction),
		PriceDiff:   res.PriceDiff.StringFixed(2),
	})
}

// priceItems resolves requested lines against the catalog, capturing
// current prices.
func (h *Handler) priceItems(r *http.Request, reqs []CheckoutItemRequest) ([]canteen.LineItem, error) {
	var items []canteen.LineItem
	for _, item := range reqs {
		product, err := h.storage.GetProduct(r.Context(), canteen.ProductID(item.ProductID))
		if err != nil {
			return nil, err
		}
		qty := item.Quantity
		if qty < 1 {
			qty = 1
		}
		items = append(items, canteen.LineItem{
			ProductID: product.ID,
			Name:      product.Name,
			UnitPrice: product.Price,
			Quantity:  qty,
			Note:      item.Note,
		})
	}
	return items, nil
}

// =============================================================================
// BILLING
// =============================================================================

func (h *Handler) ListDebtors(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := canteen.DebtorFilter{
		Type:   canteen.AccountTypeFilter(q.Get("type")),
		Search: q.Get("search"),
	}
	if filter.Type == "" {
		filter.Type = canteen.FilterAll
	}
	var err error
	if filter.From, err = parseDateParam(q.Get("from")); err != nil {
		h.badRequest(w, "from must be YYYY-MM-DD")
		return
	}
	if filter.To, err = parseDateParam(q.Get("to")); err != nil {
		h.badRequest(w, "to must be YYYY-MM-DD")
		return
	}

	debtors, err := h.collector.Debtors(r.Context(), filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	dtos := make([]DebtorDTO, len(debtors))
	for i, d := range debtors {
		dtos[i] = DebtorDTO{
			Account:       toAccountDTO(d.Account, false),
			RecentEntries: toHistoryEntryDTOs(d.RecentEntries),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// JOURNAL
// =============================================================================

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r)
	if err != nil {
		h.badRequest(w, err.Error())
		return
	}

	var txs []canteen.Transaction
	if from == nil {
		txs, err = h.journal.List(r.Context())
	} else {
		txs, err = h.journal.ListRange(r.Context(), *from, *to)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(txs))
}

func (h *Handler) CancelTransaction(w http.ResponseWriter, r *http.Request) {
	id := canteen.TransactionID(chi.URLParam(r, "id"))
	tx, err := h.journal.Cancel(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.metrics.Cancellations.Inc()
	writeJSON(w, http.StatusOK, toTransactionDTO(tx))
}

// =============================================================================
// REPORTS
// =============================================================================

func (h *Handler) ReportSummary(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r)
	if err != nil {
		h.badRequest(w, err.Error())
		return
	}
	f, t := rangeOrToday(from, to)

	summary, err := h.journal.Summary(r.Context(), f, t)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SummaryDTO{
		Revenue:       summary.Revenue.StringFixed(2),
		Orders:        summary.Orders,
		AverageTicket: summary.AverageTicket.StringFixed(2),
	})
}

func (h *Handler) ReportAccounts(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r)
	if err != nil {
		h.badRequest(w, err.Error())
		return
	}
	f, t := rangeOrToday(from, to)

	spends, err := h.journal.SpendByAccount(r.Context(), f, t)
	if err != nil {
		h.writeError(w, err)
		return
	}
	type accountSpendDTO struct {
		AccountID   string `json:"account_id"`
		AccountName string `json:"account_name"`
		Orders      int    `json:"orders"`
		Spend       string `json:"spend"`
	}
	dtos := make([]accountSpendDTO, len(spends))
	for i, s := range spends {
		dtos[i] = accountSpendDTO{
			AccountID:   string(s.AccountID),
			AccountName: s.AccountName,
			Orders:      s.Orders,
			Spend:       s.Spend.StringFixed(2),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) ReportProducts(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r)
	if err != nil {
		h.badRequest(w, err.Error())
		return
	}
	f, t := rangeOrToday(from, to)

	n := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err = strconv.Atoi(raw); err != nil || n < 1 {
			h.badRequest(w, "limit must be a positive integer")
			return
		}
	}

	top, err := h.journal.TopProducts(r.Context(), f, t, n)
	if err != nil {
		h.writeError(w, err)
		return
	}
	dtos := make([]ProductSalesDTO, len(top))
	for i, p := range top {
		dtos[i] = ProductSalesDTO{
			ProductID: string(p.ProductID),
			Name:      p.Name,
			Quantity:  p.Quantity,
			Revenue:   p.Revenue.StringFixed(2),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) ReportDaily(w http.ResponseWriter, r *http.Request) {
	buckets, err := h.journal.DailyRevenueTrailing(r.Context(), time.Now())
	if err != nil {
		h.writeError(w, err)
		return
	}
	dtos := make([]DailyRevenueDTO, len(buckets))
	for i, b := range buckets {
		dtos[i] = DailyRevenueDTO{
			Day:     b.Day.Format("2006-01-02"),
			Revenue: b.Revenue.StringFixed(2),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// CASH DRAWER
// =============================================================================

func (h *Handler) ListCash(w http.ResponseWriter, r *http.Request) {
	entries, err := h.cashBook.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	balance, err := h.cashBook.DrawerBalance(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	dtos := make([]CashEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toCashEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, CashBookDTO{Entries: dtos, Balance: balance.StringFixed(2)})
}

func (h *Handler) AddCashEntry(w http.ResponseWriter, r *http.Request) {
	var req CashEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid JSON body")
		return
	}
	t := canteen.CashEntryType(req.Type)
	if t != canteen.CashIn && t != canteen.CashOut {
		h.badRequest(w, "type must be in or out")
		return
	}
	value, err := decimal.NewFromString(req.Value)
	if err != nil {
		h.badRequest(w, "value is not a valid decimal")
		return
	}
	entry, err := h.cashBook.Add(r.Context(), t, value, req.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCashEntryDTO(entry))
}

// =============================================================================
// CATALOG
// =============================================================================

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.storage.ListProducts(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	dtos := make([]ProductDTO, len(products))
	for i, p := range products {
		dtos[i] = toProductDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) PutProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid JSON body")
		return
	}
	if req.Name == "" {
		h.badRequest(w, "name is required")
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		h.badRequest(w, "price is not a valid decimal")
		return
	}
	product := canteen.Product{
		ID:       canteen.ProductID(req.ID),
		Name:     req.Name,
		Price:    price,
		Category: req.Category,
		Stock:    req.Stock,
		IsActive: req.IsActive,
	}
	if product.ID == "" {
		product.ID = canteen.ProductID(canteen.NewID())
	}
	if err := h.storage.PutProduct(r.Context(), product); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductDTO(product))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func (h *Handler) badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: msg, Code: "bad_request"})
}

// rejectSettlement writes the error and counts policy-gate rejections.
func (h *Handler) rejectSettlement(w http.ResponseWriter, err error) {
	if canteen.IsClientError(err) {
		h.metrics.GateRejects.WithLabelValues(rejectReason(err)).Inc()
	}
	h.writeError(w, err)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case canteen.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "not_found"})
	case canteen.IsClientError(err):
		resp := ErrorResponse{Error: err.Error(), Code: rejectReason(err)}
		var blocked *canteen.AccountBlockedError
		if errors.As(err, &blocked) {
			days := blocked.DaysOverdue
			resp.DaysOverdue = &days
		}
		writeJSON(w, http.StatusUnprocessableEntity, resp)
	default:
		log.Printf("internal error: %v", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error", Code: "internal"})
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, canteen.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, canteen.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, canteen.ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, canteen.ErrNoAccountSelected):
		return "no_account_selected"
	case errors.Is(err, canteen.ErrAccountBlocked):
		return "account_blocked"
	case errors.Is(err, canteen.ErrInsufficientCredit):
		return "insufficient_credit"
	case errors.Is(err, canteen.ErrInsufficientCash):
		return "insufficient_cash"
	case errors.Is(err, canteen.ErrIncompleteExchange):
		return "incomplete_exchange"
	case errors.Is(err, canteen.ErrConfirmationRequired):
		return "confirmation_required"
	case errors.Is(err, canteen.ErrPaymentMethodDisabled):
		return "payment_method_disabled"
	case errors.Is(err, canteen.ErrCheckoutState):
		return "checkout_state"
	default:
		return "validation"
	}
}

func parseDateParam(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation("2006-01-02", raw, time.Local)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// parseRange reads from/to query params. Both or neither must be set.
func parseRange(r *http.Request) (*time.Time, *time.Time, error) {
	q := r.URL.Query()
	from, err := parseDateParam(q.Get("from"))
	if err != nil {
		return nil, nil, fmt.Errorf("from must be YYYY-MM-DD")
	}
	to, err := parseDateParam(q.Get("to"))
	if err != nil {
		return nil, nil, fmt.Errorf("to must be YYYY-MM-DD")
	}
	if (from == nil) != (to == nil) {
		return nil, nil, fmt.Errorf("from and to must be supplied together")
	}
	return from, to, nil
}

func rangeOrToday(from, to *time.Time) (time.Time, time.Time) {
	if from != nil && to != nil {
		return *from, *to
	}
	now := time.Now()
	return now, now
}
