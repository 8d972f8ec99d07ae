/*
Package canteen provides the account-ledger and settlement core of a
school canteen point of sale.

PURPOSE:
  This package contains the domain types and algorithms for ringing up
  purchases against prepaid/credit accounts: the per-account ledger, the
  overdue policy gate, cart pricing, checkout and exchange settlement,
  the append-only transaction journal, and the collections projection.

KEY CONCEPTS IN THIS FILE (types.go):
  - Account: A student or staff ledger subject (balance + history)
  - HistoryEntry: An immutable record of one balance movement
  - LineItem: A priced cart/receipt line
  - Transaction: One checkout or exchange, owned by the journal
  - CashEntry: A manual cash-drawer movement (separate ledger)

DESIGN PRINCIPLES:
  1. Immutability: HistoryEntries and Transactions are never edited;
     corrections are new movements, cancellation is a status flip
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Snapshot invariant: every HistoryEntry carries BalanceAfter, and
     the account balance always equals the last snapshot
  4. Single commit point: settlement mutates the ledger exactly once,
     so an aborted checkout leaves no trace

SEE ALSO:
  - ledger.go: Movement application and the balance invariant
  - settlement.go: The checkout state machine
  - journal.go: Transaction ownership and reporting
*/
package canteen

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type AccountID string
type TransactionID string
type ProductID string

// NewID returns a collision-resistant identifier for ledger records.
func NewID() string { return uuid.NewString() }

// =============================================================================
// MOVEMENT TYPES - How a HistoryEntry affects the balance
// =============================================================================

type MovementType string

const (
	MovementPurchase   MovementType = "purchase"   // Account-settled checkout (debit)
	MovementPayment    MovementType = "payment"    // Money received onto the account (credit)
	MovementAdjustment MovementType = "adjustment" // Manual admin correction (credit)
	MovementRefund     MovementType = "refund"     // Explicit reversal of a charge (credit)
	MovementExchange   MovementType = "exchange"   // Net price difference of an exchange (signed)
)

// MovementSign returns the signed multiplier applied to an unsigned
// movement value. Exchange entries carry their own sign and are handled
// by the exchange settlement directly.
func MovementSign(t MovementType) decimal.Decimal {
	switch t {
	case MovementPurchase:
		return decimal.NewFromInt(-1)
	default:
		return decimal.NewFromInt(1)
	}
}

// =============================================================================
// HISTORY ENTRY - One immutable balance movement
// =============================================================================

type HistoryEntry struct {
	ID          string
	AccountID   AccountID
	Type        MovementType
	// Value is the unsigned magnitude of the movement except for
	// MovementExchange, where it is signed (debit > 0 means the account
	// owed more after the exchange).
	Value       decimal.Decimal
	Description string
	Items       []LineItem
	// BalanceAfter is the account balance immediately after this entry
	// was applied. The overdue evaluator depends on this snapshot chain.
	BalanceAfter decimal.Decimal
	CreatedAt    time.Time
}

// SignedValue returns the contribution of this entry to the balance.
func (e HistoryEntry) SignedValue() decimal.Decimal {
	if e.Type == MovementExchange {
		return e.Value.Neg()
	}
	return e.Value.Mul(MovementSign(e.Type))
}

// =============================================================================
// ACCOUNT - A student or staff ledger subject
// =============================================================================

type Account struct {
	ID    AccountID
	Name  string
	Grade string // grade for students, role label for staff
	Code  string // optional short code (badge, enrollment number)

	// Balance is signed: negative = amount owed, positive = prepaid credit.
	Balance decimal.Decimal
	// Points is the loyalty counter, only accrued when the loyalty
	// feature is enabled.
	Points int

	IsStaff  bool
	IsActive bool

	// Guardian contact, consumed by the messaging collaborator only.
	GuardianName  string
	GuardianEmail string
	GuardianPhone string

	// Notes is advisory (e.g., allergies). No ledger effect.
	Notes string

	// History is ordered, insertion order = chronological order.
	History []HistoryEntry

	CreatedAt time.Time
}

// =============================================================================
// LINE ITEM - A priced cart/receipt line
// =============================================================================

type LineItem struct {
	ProductID ProductID
	Name      string
	// UnitPrice is captured at add-time; later catalog edits do not
	// reprice open carts or settled transactions.
	UnitPrice decimal.Decimal
	Quantity  int
	Note      string
}

func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// ItemsTotal sums price x quantity across lines.
func ItemsTotal(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, li := range items {
		total = total.Add(li.Subtotal())
	}
	return total
}

// =============================================================================
// PAYMENT METHODS
// =============================================================================

type PaymentMethod string

const (
	PaymentMoney   PaymentMethod = "money"
	PaymentAccount PaymentMethod = "account"
	PaymentCredit  PaymentMethod = "credit"
	PaymentDebit   PaymentMethod = "debit"
	PaymentPix     PaymentMethod = "pix"
	PaymentMixed   PaymentMethod = "mixed"
)

// =============================================================================
// TRANSACTION - One checkout or exchange, owned by the journal
// =============================================================================

type TransactionStatus string

const (
	StatusValid     TransactionStatus = "valid"
	StatusCancelled TransactionStatus = "cancelled"
)

type Transaction struct {
	ID TransactionID

	// Weak reference: lookup only, never ownership. Deleting an account
	// does not require a journal rewrite.
	AccountID   AccountID
	AccountName string

	Items []LineItem
	Total decimal.Decimal

	PaymentMethod PaymentMethod
	Status        TransactionStatus

	// ReturnedItems is populated for exchange transactions only.
	ReturnedItems []LineItem

	// BalanceSnapshot is the account balance immediately after this
	// transaction, when account-linked.
	BalanceSnapshot *decimal.Decimal

	CreatedAt time.Time
}

// =============================================================================
// CASH ENTRY - Manual cash-drawer movement (independent ledger)
// =============================================================================

type CashEntryType string

const (
	CashIn  CashEntryType = "in"
	CashOut CashEntryType = "out"
)

type CashEntry struct {
	ID        string
	Type      CashEntryType
	Value     decimal.Decimal // unsigned magnitude
	Reason    string
	CreatedAt time.Time
}

// SignedValue returns the drawer contribution of this entry.
func (c CashEntry) SignedValue() decimal.Decimal {
	if c.Type == CashOut {
		return c.Value.Neg()
	}
	return c.Value
}

// =============================================================================
// PRODUCT - Read-only catalog data supplied by the catalog collaborator
// =============================================================================

type Product struct {
	ID       ProductID
	Name     string
	Price    decimal.Decimal
	Category string
	// Stock is the known stock count; nil means untracked.
	Stock    *int
	IsActive bool
}
