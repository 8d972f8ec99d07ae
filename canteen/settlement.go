/*
settlement.go - Checkout state machine and transaction settlement

PURPOSE:
  Turns a priced cart into a journal Transaction, mutating the account
  ledger only for account-settled payment. Every policy gate runs
  before the single ledger commit point, so a failed settle leaves
  balance, history, and journal exactly as they were.

STATES:
  BUILDING -> AWAITING_PAYMENT -> SETTLED (terminal)
                               -> ABORTED (terminal, no side effects)

CONTRACT (Settle):
  - Cart must be non-empty
  - The payment method must be enabled in the feature flags
  - ACCOUNT: account required, overdue gate, credit gate when negative
    balances are disallowed; on success one PURCHASE movement
  - MONEY: tendered must cover the total; change due is the difference
  - CREDIT/DEBIT/PIX: settled by external collaborators, no ledger effect
  - Exactly one VALID Transaction is appended per successful settle,
    and the cart is cleared to prevent double-charging

CONFIRMATIONS:
  Any human confirmation (cash drawer, card terminal, Pix wait) happens
  before Settle is invoked. The core itself never blocks.

SEE ALSO:
  - ledger.go: The single mutation point
  - journal.go: Transaction ownership
  - exchange.go: The exchange variant
*/
package canteen

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CHECKOUT STATE MACHINE
// =============================================================================

type CheckoutState string

const (
	CheckoutBuilding        CheckoutState = "building"
	CheckoutAwaitingPayment CheckoutState = "awaiting_payment"
	CheckoutSettled         CheckoutState = "settled"
	CheckoutAborted         CheckoutState = "aborted"
)

// Checkout tracks one register flow from cart building to settlement.
// Aborting before settle has no observable side effect.
type Checkout struct {
	Cart      *Cart
	AccountID *AccountID

	state CheckoutState
}

func NewCheckout(features Features) *Checkout {
	return &Checkout{Cart: NewCart(features), state: CheckoutBuilding}
}

func (c *Checkout) State() CheckoutState { return c.state }

// SelectAccount links an account for account-settled payment.
func (c *Checkout) SelectAccount(id AccountID) { c.AccountID = &id }

// ClearAccount unlinks the selected account.
func (c *Checkout) ClearAccount() { c.AccountID = nil }

// AwaitPayment freezes the cart and moves to payment input.
func (c *Checkout) AwaitPayment() error {
	if c.state != CheckoutBuilding {
		return fmt.Errorf("%w: await payment from %s", ErrCheckoutState, c.state)
	}
	if c.Cart.IsEmpty() {
		return ErrEmptyCart
	}
	c.state = CheckoutAwaitingPayment
	return nil
}

// Abort cancels the checkout. Terminal; the ledger is untouched.
func (c *Checkout) Abort() error {
	if c.state == CheckoutSettled {
		return fmt.Errorf("%w: abort after settle", ErrCheckoutState)
	}
	c.state = CheckoutAborted
	return nil
}

// Settle commits the checkout through the settler. On success the
// checkout is terminal, the cart is cleared, and the account selection
// is dropped.
func (c *Checkout) Settle(ctx context.Context, s *Settler, method PaymentMethod, tendered decimal.Decimal) (SettlementResult, error) {
	if c.state != CheckoutBuilding && c.state != CheckoutAwaitingPayment {
		return SettlementResult{}, fmt.Errorf("%w: settle from %s", ErrCheckoutState, c.state)
	}
	res, err := s.Settle(ctx, c.Cart, method, c.AccountID, tendered)
	if err != nil {
		return SettlementResult{}, err
	}
	c.state = CheckoutSettled
	c.AccountID = nil
	return res, nil
}

// =============================================================================
// SETTLER
// =============================================================================

// SettlementResult reports the outcome of a successful settle.
type SettlementResult struct {
	Transaction Transaction
	// ChangeDue is tendered minus total for cash payment, zero otherwise.
	ChangeDue decimal.Decimal
	// Entry is the PURCHASE movement for account payment, nil otherwise.
	Entry *HistoryEntry
	// PointsAccrued is the loyalty accrual, zero when the feature is off.
	PointsAccrued int
}

// Settler validates and commits settlements against the ledger and journal.
type Settler struct {
	ledger   *Ledger
	journal  *Journal
	features Features

	// now is injectable for tests.
	now func() time.Time
}

func NewSettler(ledger *Ledger, journal *Journal, features Features) *Settler {
	return &Settler{ledger: ledger, journal: journal, features: features, now: time.Now}
}

// Settle finalizes a cart. All gates run before any mutation; exactly
// one Transaction is appended on success, plus exactly one PURCHASE
// movement when account-settled.
func (s *Settler) Settle(ctx context.Context, cart *Cart, method PaymentMethod, accountID *AccountID, tendered decimal.Decimal) (SettlementResult, error) {
	if cart.IsEmpty() {
		return SettlementResult{}, ErrEmptyCart
	}
	if !s.features.PaymentEnabled(method) {
		return SettlementResult{}, fmt.Errorf("%w: %s", ErrPaymentMethodDisabled, method)
	}

	items := cart.Items()
	total := ItemsTotal(items)

	switch method {
	case PaymentAccount:
		return s.settleAccount(ctx, cart, items, total, accountID)
	case PaymentMoney:
		if tendered.LessThan(total) {
			return SettlementResult{}, &InsufficientCashError{Tendered: tendered, Total: total}
		}
		res, err := s.settleExternal(ctx, cart, items, total, method, accountID)
		if err != nil {
			return SettlementResult{}, err
		}
		res.ChangeDue = tendered.Sub(total)
		return res, nil
	default:
		// Card and Pix are settled by external collaborators; the core
		// only records the transaction.
		return s.settleExternal(ctx, cart, items, total, method, accountID)
	}
}

// settleAccount charges the cart to the account after the overdue and
// credit gates. Loyalty accrues 1 point per whole currency unit of the
// total (floor) when the feature is enabled.
func (s *Settler) settleAccount(ctx context.Context, cart *Cart, items []LineItem, total decimal.Decimal, accountID *AccountID) (SettlementResult, error) {
	if accountID == nil {
		return SettlementResult{}, ErrNoAccountSelected
	}
	account, err := s.ledger.Account(ctx, *accountID)
	if err != nil {
		return SettlementResult{}, err
	}

	if status := EvaluateOverdue(account, s.features, s.now()); status.IsOverdue {
		return SettlementResult{}, &AccountBlockedError{
			AccountID:   account.ID,
			DaysOverdue: status.DaysOverdue,
			MaxDays:     s.features.MaxOverdueDays,
		}
	}
	if !s.features.AllowNegativeBalance && account.Balance.Sub(total).IsNegative() {
		return SettlementResult{}, &InsufficientCreditError{
			AccountID: account.ID,
			Balance:   account.Balance,
			Total:     total,
		}
	}

	entry, err := s.ledger.ApplyMovement(ctx, account.ID, MovementPurchase, total, purchaseDescription(items), items)
	if err != nil {
		return SettlementResult{}, err
	}

	points := 0
	if s.features.EnableLoyaltySystem {
		points = int(total.IntPart())
		if err := s.ledger.AddPoints(ctx, account.ID, points); err != nil {
			return SettlementResult{}, err
		}
	}

	snapshot := entry.BalanceAfter
	tx := Transaction{
		ID:              TransactionID(NewID()),
		AccountID:       account.ID,
		AccountName:     account.Name,
		Items:           items,
		Total:           total,
		PaymentMethod:   PaymentAccount,
		Status:          StatusValid,
		BalanceSnapshot: &snapshot,
		CreatedAt:       s.now(),
	}
	if err := s.journal.Append(ctx, tx); err != nil {
		return SettlementResult{}, err
	}

	cart.Clear()
	return SettlementResult{Transaction: tx, Entry: &entry, PointsAccrued: points}, nil
}

// settleExternal records a transaction with no ledger effect. When an
// account is linked for reference, its current balance is snapshotted.
func (s *Settler) settleExternal(ctx context.Context, cart *Cart, items []LineItem, total decimal.Decimal, method PaymentMethod, accountID *AccountID) (SettlementResult, error) {
	tx := Transaction{
		ID:            TransactionID(NewID()),
		Items:         items,
		Total:         total,
		PaymentMethod: method,
		Status:        StatusValid,
		CreatedAt:     s.now(),
	}
	if accountID != nil {
		account, err := s.ledger.Account(ctx, *accountID)
		if err != nil {
			return SettlementResult{}, err
		}
		snapshot := account.Balance
		tx.AccountID = account.ID
		tx.AccountName = account.Name
		tx.BalanceSnapshot = &snapshot
	}
	if err := s.journal.Append(ctx, tx); err != nil {
		return SettlementResult{}, err
	}

	cart.Clear()
	return SettlementResult{Transaction: tx}, nil
}

func purchaseDescription(items []LineItem) string {
	count := 0
	for _, li := range items {
		count += li.Quantity
	}
	return fmt.Sprintf("Purchase of %d item(s)", count)
}
