/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupling the
  domain model from the external contract. Monetary fields travel as
  decimal strings so clients never see float artifacts.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data
  carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/canteen-engine/canteen"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// AccountDTO represents an account in API responses.
type AccountDTO struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Grade         string            `json:"grade,omitempty"`
	Code          string            `json:"code,omitempty"`
	Balance       string            `json:"balance"`
	Points        int               `json:"points"`
	IsStaff       bool              `json:"is_staff"`
	IsActive      bool              `json:"is_active"`
	GuardianName  string            `json:"guardian_name,omitempty"`
	GuardianEmail string            `json:"guardian_email,omitempty"`
	GuardianPhone string            `json:"guardian_phone,omitempty"`
	Notes         string            `json:"notes,omitempty"`
	History       []HistoryEntryDTO `json:"history,omitempty"`
	CreatedAt     string            `json:"created_at,omitempty"`
}

// CreateAccountRequest is the request to create an account.
type CreateAccountRequest struct {
	Name           string `json:"name"`
	Grade          string `json:"grade,omitempty"`
	Code           string `json:"code,omitempty"`
	InitialBalance string `json:"initial_balance,omitempty"`
	IsStaff        bool   `json:"is_staff"`
	GuardianName   string `json:"guardian_name,omitempty"`
	GuardianEmail  string `json:"guardian_email,omitempty"`
	GuardianPhone  string `json:"guardian_phone,omitempty"`
	Notes          string `json:"notes,omitempty"`
}

// HistoryEntryDTO represents one ledger movement.
type HistoryEntryDTO struct {
	ID           string        `json:"id"`
	Type         string        `json:"type"`
	Value        string        `json:"value"`
	Description  string        `json:"description,omitempty"`
	Items        []LineItemDTO `json:"items,omitempty"`
	BalanceAfter string        `json:"balance_after"`
	CreatedAt    string        `json:"created_at"`
}

// LineItemDTO is one priced cart/receipt line.
type LineItemDTO struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name,omitempty"`
	UnitPrice string `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	Note      string `json:"note,omitempty"`
}

// MovementRequest applies a payment, adjustment, or refund.
type MovementRequest struct {
	Type        string `json:"type"` // payment | adjustment | refund
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
}

// CheckoutRequest settles a cart.
type CheckoutRequest struct {
	Items          []CheckoutItemRequest `json:"items"`
	PaymentMethod  string                `json:"payment_method"`
	AccountID      *string               `json:"account_id,omitempty"`
	AmountTendered string                `json:"amount_tendered,omitempty"`
}

// CheckoutItemRequest is one requested cart line; the price is looked
// up in the catalog, never trusted from the client.
type CheckoutItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Note      string `json:"note,omitempty"`
}

// CheckoutResponse reports a settled checkout.
type CheckoutResponse struct {
	Transaction   TransactionDTO `json:"transaction"`
	ChangeDue     string         `json:"change_due,omitempty"`
	PointsAccrued int            `json:"points_accrued,omitempty"`
}

// ExchangeRequest settles an exchange.
type ExchangeRequest struct {
	ReturnedItems []CheckoutItemRequest `json:"returned_items"`
	NewItems      []CheckoutItemRequest `json:"new_items"`
	AccountID     *string               `json:"account_id,omitempty"`
	PayDiffInCash bool                  `json:"pay_diff_in_cash"`
	Confirmed     bool                  `json:"confirmed"`
}

// ExchangeResponse reports a settled exchange.
type ExchangeResponse struct {
	Transaction TransactionDTO `json:"transaction"`
	PriceDiff   string         `json:"price_diff"`
}

// TransactionDTO represents a journal transaction.
type TransactionDTO struct {
	ID              string        `json:"id"`
	AccountID       string        `json:"account_id,omitempty"`
	AccountName     string        `json:"account_name,omitempty"`
	Items           []LineItemDTO `json:"items"`
	ReturnedItems   []LineItemDTO `json:"returned_items,omitempty"`
	Total           string        `json:"total"`
	PaymentMethod   string        `json:"payment_method"`
	Status          string        `json:"status"`
	BalanceSnapshot *string       `json:"balance_snapshot,omitempty"`
	CreatedAt       string        `json:"created_at"`
}

// DebtorDTO is one collections row.
type DebtorDTO struct {
	Account       AccountDTO        `json:"account"`
	RecentEntries []HistoryEntryDTO `json:"recent_entries"`
}

// SummaryDTO is the range report.
type SummaryDTO struct {
	Revenue       string `json:"revenue"`
	Orders        int    `json:"orders"`
	AverageTicket string `json:"average_ticket"`
}

// ProductSalesDTO is one top-products row.
type ProductSalesDTO struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	Revenue   string `json:"revenue"`
}

// DailyRevenueDTO is one trailing-7-days bucket.
type DailyRevenueDTO struct {
	Day     string `json:"day"`
	Revenue string `json:"revenue"`
}

// CashEntryDTO represents a drawer movement.
type CashEntryDTO struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Value     string `json:"value"`
	Reason    string `json:"reason,omitempty"`
	CreatedAt string `json:"created_at"`
}

// CashEntryRequest records a drawer movement.
type CashEntryRequest struct {
	Type   string `json:"type"` // in | out
	Value  string `json:"value"`
	Reason string `json:"reason,omitempty"`
}

// CashBookDTO is the drawer listing plus balance.
type CashBookDTO struct {
	Entries []CashEntryDTO `json:"entries"`
	Balance string         `json:"balance"`
}

// ProductDTO represents a catalog product.
type ProductDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    string `json:"price"`
	Category string `json:"category,omitempty"`
	Stock    *int   `json:"stock,omitempty"`
	IsActive bool   `json:"is_active"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	// DaysOverdue is set when the overdue policy blocked the request.
	DaysOverdue *int `json:"days_overdue,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toAccountDTO(a canteen.Account, withHistory bool) AccountDTO {
	dto := AccountDTO{
		ID:            string(a.ID),
		Name:          a.Name,
		Grade:         a.Grade,
		Code:          a.Code,
		Balance:       a.Balance.StringFixed(2),
		Points:        a.Points,
		IsStaff:       a.IsStaff,
		IsActive:      a.IsActive,
		GuardianName:  a.GuardianName,
		GuardianEmail: a.GuardianEmail,
		GuardianPhone: a.GuardianPhone,
		Notes:         a.Notes,
		CreatedAt:     a.CreatedAt.Format(time.RFC3339),
	}
	if withHistory {
		dto.History = toHistoryEntryDTOs(a.History)
	}
	return dto
}

func toHistoryEntryDTOs(entries []canteen.HistoryEntry) []HistoryEntryDTO {
	dtos := make([]HistoryEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = HistoryEntryDTO{
			ID:           e.ID,
			Type:         string(e.Type),
			Value:        e.Value.StringFixed(2),
			Description:  e.Description,
			Items:        toLineItemDTOs(e.Items),
			BalanceAfter: e.BalanceAfter.StringFixed(2),
			CreatedAt:    e.CreatedAt.Format(time.RFC3339),
		}
	}
	return dtos
}

func toLineItemDTOs(items []canteen.LineItem) []LineItemDTO {
	if len(items) == 0 {
		return nil
	}
	dtos := make([]LineItemDTO, len(items))
	for i, li := range items {
		dtos[i] = LineItemDTO{
			ProductID: string(li.ProductID),
			Name:      li.Name,
			UnitPrice: li.UnitPrice.StringFixed(2),
			Quantity:  li.Quantity,
			Note:      li.Note,
		}
	}
	return dtos
}

func toTransactionDTO(tx canteen.Transaction) TransactionDTO {
	dto := TransactionDTO{
		ID:            string(tx.ID),
		AccountID:     string(tx.AccountID),
		AccountName:   tx.AccountName,
		Items:         toLineItemDTOs(tx.Items),
		ReturnedItems: toLineItemDTOs(tx.ReturnedItems),
		Total:         tx.Total.StringFixed(2),
		PaymentMethod: string(tx.PaymentMethod),
		Status:        string(tx.Status),
		CreatedAt:     tx.CreatedAt.Format(time.RFC3339),
	}
	if tx.BalanceSnapshot != nil {
		s := tx.BalanceSnapshot.StringFixed(2)
		dto.BalanceSnapshot = &s
	}
	return dto
}

func toTransactionDTOs(txs []canteen.Transaction) []TransactionDTO {
	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toTransactionDTO(tx)
	}
	return dtos
}

func toProductDTO(p canteen.Product) ProductDTO {
	return ProductDTO{
		ID:       string(p.ID),
		Name:     p.Name,
		Price:    p.Price.StringFixed(2),
		Category: p.Category,
		Stock:    p.Stock,
		IsActive: p.IsActive,
	}
}

func toCashEntryDTO(e canteen.CashEntry) CashEntryDTO {
	return CashEntryDTO{
		ID:        e.ID,
		Type:      string(e.Type),
		Value:     e.Value.StringFixed(2),
		Reason:    e.Reason,
		CreatedAt: e.CreatedAt.Format(time.RFC3339),
	}
}
