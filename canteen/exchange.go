/*
exchange.go - Exchange settlement

PURPOSE:
  Reconciles a return (items going back to stock) against a new
  selection, settling the net price difference against an account or in
  cash. The returned items themselves never touch the ledger - only the
  difference does, and only when an account is linked.

CONTRACT:
  - Both item sets must be non-empty
  - diff = total(new) - total(returned)
  - diff > 0, no account, not paying cash: requires the caller's
    explicit confirmation flag (the register UI confirms with the
    operator before calling in)
  - Account linked and diff != 0: one EXCHANGE movement signed by diff
  - diff == 0: no movement, but the exchange is still journaled
  - Exactly one Transaction records both item sets and the diff

SEE ALSO:
  - ledger.go: ApplyExchangeDiff
  - settlement.go: The plain checkout path
*/
package canteen

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ExchangeResult reports a completed exchange.
type ExchangeResult struct {
	Transaction Transaction
	// PriceDiff is total(new) - total(returned); positive means the
	// customer owed more.
	PriceDiff decimal.Decimal
	// Entry is the EXCHANGE movement, nil when no account was linked or
	// the diff was zero.
	Entry *HistoryEntry
}

// Exchanger settles exchanges against the ledger and journal.
type Exchanger struct {
	ledger  *Ledger
	journal *Journal

	now func() time.Time
}

func NewExchanger(ledger *Ledger, journal *Journal) *Exchanger {
	return &Exchanger{ledger: ledger, journal: journal, now: time.Now}
}

// Exchange reconciles returned items against new items. confirmed must
// be true when a positive difference will not be collected (no account,
// not paying cash) - the caller asks the operator first.
func (e *Exchanger) Exchange(ctx context.Context, returned, newItems []LineItem, accountID *AccountID, payDiffInCash, confirmed bool) (ExchangeResult, error) {
	if len(returned) == 0 || len(newItems) == 0 {
		return ExchangeResult{}, ErrIncompleteExchange
	}

	diff := ItemsTotal(newItems).Sub(ItemsTotal(returned))

	if diff.IsPositive() && accountID == nil && !payDiffInCash && !confirmed {
		return ExchangeResult{}, ErrConfirmationRequired
	}

	var (
		entry       *HistoryEntry
		snapshot    *decimal.Decimal
		accountName string
		accID       AccountID
	)
	if accountID != nil {
		account, err := e.ledger.Account(ctx, *accountID)
		if err != nil {
			return ExchangeResult{}, err
		}
		accID = account.ID
		accountName = account.Name
		bal := account.Balance

		if !diff.IsZero() {
			applied, err := e.ledger.ApplyExchangeDiff(ctx, account.ID, diff, exchangeDescription(diff), newItems)
			if err != nil {
				return ExchangeResult{}, err
			}
			entry = &applied
			bal = applied.BalanceAfter
		}
		snapshot = &bal
	}

	tx := Transaction{
		ID:              TransactionID(NewID()),
		AccountID:       accID,
		AccountName:     accountName,
		Items:           newItems,
		ReturnedItems:   returned,
		Total:           diff,
		PaymentMethod:   exchangeMethod(accountID, payDiffInCash),
		Status:          StatusValid,
		BalanceSnapshot: snapshot,
		CreatedAt:       e.now(),
	}
	if err := e.journal.Append(ctx, tx); err != nil {
		return ExchangeResult{}, err
	}

	return ExchangeResult{Transaction: tx, PriceDiff: diff, Entry: entry}, nil
}

// exchangeMethod classifies the exchange for the journal: account when
// the diff hits a ledger, money when the register collects cash, mixed
// otherwise (audit-only record).
func exchangeMethod(accountID *AccountID, payDiffInCash bool) PaymentMethod {
	switch {
	case accountID != nil:
		return PaymentAccount
	case payDiffInCash:
		return PaymentMoney
	default:
		return PaymentMixed
	}
}

func exchangeDescription(diff decimal.Decimal) string {
	if diff.IsPositive() {
		return fmt.Sprintf("Exchange: %s charged", diff.StringFixed(2))
	}
	return fmt.Sprintf("Exchange: %s credited", diff.Neg().StringFixed(2))
}
