/*
cashbook.go - Manual cash-drawer movements

PURPOSE:
  Supplements and withdrawals made directly at the drawer, independent
  of any account. This is its own small ledger: sale cash never flows
  through it, only manual movements.
*/
package canteen

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CashBook records manual drawer movements.
type CashBook struct {
	store CashStore
}

func NewCashBook(store CashStore) *CashBook {
	return &CashBook{store: store}
}

// Add records one IN or OUT movement. value is the unsigned magnitude.
func (b *CashBook) Add(ctx context.Context, t CashEntryType, value decimal.Decimal, reason string) (CashEntry, error) {
	if !value.IsPositive() {
		return CashEntry{}, ErrInvalidAmount
	}
	entry := CashEntry{
		ID:        NewID(),
		Type:      t,
		Value:     value,
		Reason:    strings.TrimSpace(reason),
		CreatedAt: time.Now(),
	}
	if err := b.store.AppendCashEntry(ctx, entry); err != nil {
		return CashEntry{}, err
	}
	return entry, nil
}

// List returns all movements, chronological.
func (b *CashBook) List(ctx context.Context) ([]CashEntry, error) {
	return b.store.ListCashEntries(ctx)
}

// DrawerBalance sums the signed movements.
func (b *CashBook) DrawerBalance(ctx context.Context) (decimal.Decimal, error) {
	entries, err := b.store.ListCashEntries(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.SignedValue())
	}
	return total, nil
}
