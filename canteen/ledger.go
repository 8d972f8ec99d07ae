/*
ledger.go - Account ledger: balance movements with snapshot invariant

PURPOSE:
  The Ledger owns every balance mutation. A movement appends exactly one
  HistoryEntry carrying BalanceAfter and sets the balance to that
  snapshot in a single atomic step - the balance is always the running
  sum of the history.

CRITICAL INVARIANTS:
  1. balance == initial + sum of SignedValue over history, always
  2. history[i].BalanceAfter == running balance after entry i
  3. APPEND-ONLY: entries are never edited or removed
  4. NO PARTIAL STATE: a failed movement leaves balance and history
     untouched

CONCURRENCY:
  Movements are serialized per account (keyed mutex) so the snapshot
  chain survives a multi-threaded host. Two concurrent settlements
  against the same account cannot interleave.

CORRECTIONS:
  Mistakes are corrected with new movements (REFUND, ADJUSTMENT), never
  by editing history. Cancelling a journal transaction does not touch
  the ledger; see journal.go.

SEE ALSO:
  - store.go: AccountStore atomicity contract
  - overdue.go: Reads the BalanceAfter chain
*/
package canteen

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Ledger applies balance movements to accounts.
type Ledger struct {
	store AccountStore

	mu    sync.Mutex
	locks map[AccountID]*sync.Mutex
}

func NewLedger(store AccountStore) *Ledger {
	return &Ledger{store: store, locks: make(map[AccountID]*sync.Mutex)}
}

// lockFor returns the per-account mutex, creating it on first use.
func (l *Ledger) lockFor(id AccountID) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	return m
}

// =============================================================================
// MOVEMENTS
// =============================================================================

// ApplyMovement appends one movement to the account. value is the
// unsigned magnitude; the sign is implied by the movement type
// (purchases debit, payments/refunds/adjustments credit). Returns the
// appended entry with its BalanceAfter snapshot.
func (l *Ledger) ApplyMovement(ctx context.Context, id AccountID, t MovementType, value decimal.Decimal, description string, items []LineItem) (HistoryEntry, error) {
	if !value.IsPositive() {
		return HistoryEntry{}, ErrInvalidAmount
	}
	return l.applySigned(ctx, id, t, value, description, items)
}

// ApplyExchangeDiff appends a single EXCHANGE movement whose effect on
// the balance is -diff: a positive diff (new items cost more) debits the
// account, a negative diff credits it. diff must be non-zero.
func (l *Ledger) ApplyExchangeDiff(ctx context.Context, id AccountID, diff decimal.Decimal, description string, items []LineItem) (HistoryEntry, error) {
	if diff.IsZero() {
		return HistoryEntry{}, ErrInvalidAmount
	}
	return l.applySigned(ctx, id, MovementExchange, diff, description, items)
}

// applySigned is the single commit point for ledger mutation. For
// MovementExchange, value is the signed diff (positive debits); for all
// other types it is the unsigned magnitude.
func (l *Ledger) applySigned(ctx context.Context, id AccountID, t MovementType, value decimal.Decimal, description string, items []LineItem) (HistoryEntry, error) {
	lock := l.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	account, err := l.store.GetAccount(ctx, id)
	if err != nil {
		return HistoryEntry{}, err
	}

	entry := HistoryEntry{
		ID:          NewID(),
		AccountID:   id,
		Type:        t,
		Value:       value,
		Description: strings.TrimSpace(description),
		Items:       items,
		CreatedAt:   time.Now(),
	}
	entry.BalanceAfter = account.Balance.Add(entry.SignedValue())

	if err := l.store.ApplyMovement(ctx, id, entry); err != nil {
		return HistoryEntry{}, err
	}
	return entry, nil
}

// AddPoints accrues loyalty points. Serialized like movements so the
// counter never loses increments.
func (l *Ledger) AddPoints(ctx context.Context, id AccountID, points int) error {
	if points <= 0 {
		return nil
	}
	lock := l.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	account, err := l.store.GetAccount(ctx, id)
	if err != nil {
		return err
	}
	return l.store.SetPoints(ctx, id, account.Points+points)
}

// =============================================================================
// READ-ONLY VIEWS
// =============================================================================

// Balance returns the current balance of an account.
func (l *Ledger) Balance(ctx context.Context, id AccountID) (decimal.Decimal, error) {
	account, err := l.store.GetAccount(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return account.Balance, nil
}

// History returns the chronological movement history of an account.
func (l *Ledger) History(ctx context.Context, id AccountID) ([]HistoryEntry, error) {
	account, err := l.store.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	return account.History, nil
}

// Account returns the full account record.
func (l *Ledger) Account(ctx context.Context, id AccountID) (Account, error) {
	return l.store.GetAccount(ctx, id)
}
