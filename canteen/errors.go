/*
errors.go - Centralized error types for the canteen core

PURPOSE:
  All validation failures in one place for consistency and
  discoverability. Every error here is caller-recoverable: the ledger
  and journal are untouched when one is returned, and a retry is simply
  a fresh call with corrected inputs.

ERROR CATEGORIES:
  1. Amount/cart errors - Bad inputs to ledger or cart operations
  2. Settlement errors - Policy gates that block a checkout
  3. Lookup errors - Missing accounts, products, transactions

USAGE:
  if errors.Is(err, canteen.ErrInsufficientCredit) { ... }

  var blocked *canteen.AccountBlockedError
  if errors.As(err, &blocked) {
      fmt.Println(blocked.DaysOverdue)
  }

SEE ALSO:
  - settlement.go: Raises the settlement gates
  - ledger.go: Raises ErrInvalidAmount
*/
package canteen

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidAmount is returned when a movement value is zero or negative.
	ErrInvalidAmount = errors.New("movement value must be positive")

	// ErrInsufficientStock is returned when adding a cart line past the
	// product's known stock while stock enforcement is on.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrEmptyCart is returned when settling a cart with no lines.
	ErrEmptyCart = errors.New("cart is empty")

	// ErrNoAccountSelected is returned for account payment with no account.
	ErrNoAccountSelected = errors.New("no account selected")

	// ErrAccountBlocked is returned when the overdue policy blocks a charge.
	ErrAccountBlocked = errors.New("account blocked by overdue policy")

	// ErrInsufficientCredit is returned when a charge would take the balance
	// negative while negative balances are disallowed.
	ErrInsufficientCredit = errors.New("insufficient credit")

	// ErrInsufficientCash is returned when the tendered amount is below total.
	ErrInsufficientCash = errors.New("insufficient cash tendered")

	// ErrIncompleteExchange is returned when either side of an exchange is empty.
	ErrIncompleteExchange = errors.New("exchange requires returned and new items")

	// ErrConfirmationRequired is returned when an exchange leaves an unpaid
	// positive difference and the caller has not confirmed it.
	ErrConfirmationRequired = errors.New("exchange difference requires explicit confirmation")

	// ErrPaymentMethodDisabled is returned when the method is switched off
	// in the feature configuration.
	ErrPaymentMethodDisabled = errors.New("payment method disabled")

	// ErrAccountNotFound is returned when a referenced account doesn't exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrProductNotFound is returned when a referenced product doesn't exist.
	ErrProductNotFound = errors.New("product not found")

	// ErrTransactionNotFound is returned when a journal lookup misses.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrCheckoutState is returned when a checkout operation is invoked in
	// the wrong state (e.g., settling an aborted checkout).
	ErrCheckoutState = errors.New("invalid checkout state")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// AccountBlockedError reports how long the account has been overdue.
type AccountBlockedError struct {
	AccountID   AccountID
	DaysOverdue int
	MaxDays     int
}

func (e *AccountBlockedError) Error() string {
	return fmt.Sprintf("account %s blocked: %d days overdue (limit %d)",
		e.AccountID, e.DaysOverdue, e.MaxDays)
}

func (e *AccountBlockedError) Unwrap() error { return ErrAccountBlocked }

// InsufficientCreditError reports the shortfall of a rejected charge.
type InsufficientCreditError struct {
	AccountID AccountID
	Balance   decimal.Decimal
	Total     decimal.Decimal
}

func (e *InsufficientCreditError) Error() string {
	return fmt.Sprintf("insufficient credit: balance %s, charge %s",
		e.Balance.StringFixed(2), e.Total.StringFixed(2))
}

func (e *InsufficientCreditError) Unwrap() error { return ErrInsufficientCredit }

// InsufficientStockError reports which product hit its stock limit.
type InsufficientStockError struct {
	ProductID ProductID
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// InsufficientCashError reports the cash shortfall at the register.
type InsufficientCashError struct {
	Tendered decimal.Decimal
	Total    decimal.Decimal
}

func (e *InsufficientCashError) Error() string {
	return fmt.Sprintf("insufficient cash: tendered %s, total %s",
		e.Tendered.StringFixed(2), e.Total.StringFixed(2))
}

func (e *InsufficientCashError) Unwrap() error { return ErrInsufficientCash }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is a recoverable validation
// failure caused by the caller's input, as opposed to a store fault.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrEmptyCart) ||
		errors.Is(err, ErrNoAccountSelected) ||
		errors.Is(err, ErrAccountBlocked) ||
		errors.Is(err, ErrInsufficientCredit) ||
		errors.Is(err, ErrInsufficientCash) ||
		errors.Is(err, ErrIncompleteExchange) ||
		errors.Is(err, ErrConfirmationRequired) ||
		errors.Is(err, ErrPaymentMethodDisabled) ||
		errors.Is(err, ErrCheckoutState)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrTransactionNotFound)
}
