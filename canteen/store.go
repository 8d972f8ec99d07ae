/*
store.go - Persistence interfaces for accounts, journal, cash, catalog

PURPOSE:
  Defines the interface between the domain logic and storage. Different
  implementations can use SQLite or in-memory maps; the domain services
  only see these contracts.

KEY INTERFACES:
  AccountStore: Account records plus atomic movement application
  JournalStore: Append-only transaction journal (status flip excepted)
  CashStore:    Manual drawer movements
  Catalog:      Read-only product lookup (external collaborator data)

APPEND-ONLY CONTRACT:
  History entries are never updated or deleted. ApplyMovement persists
  the entry and the new balance in one atomic step so that no partial
  state is ever observable. The journal permits exactly one mutation:
  the one-way VALID -> CANCELLED status flip.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - canteen/store/memory.go: In-memory for testing/dev

SEE ALSO:
  - ledger.go: Higher-level movement logic using AccountStore
  - journal.go: Journal service using JournalStore
*/
package canteen

import (
	"context"
	"time"
)

// =============================================================================
// ACCOUNT STORE
// =============================================================================

// AccountStore persists accounts and their histories.
type AccountStore interface {
	// CreateAccount persists a new account record.
	CreateAccount(ctx context.Context, a Account) error

	// GetAccount returns the account with full history, or ErrAccountNotFound.
	GetAccount(ctx context.Context, id AccountID) (Account, error)

	// ListAccounts returns all accounts with histories. includeInactive
	// controls whether deactivated accounts appear.
	ListAccounts(ctx context.Context, includeInactive bool) ([]Account, error)

	// ApplyMovement persists entry and sets the account balance to
	// entry.BalanceAfter atomically. The entry is appended, never merged.
	ApplyMovement(ctx context.Context, id AccountID, entry HistoryEntry) error

	// SetPoints overwrites the loyalty counter.
	SetPoints(ctx context.Context, id AccountID, points int) error

	// SetActive flips the active flag. History is retained either way.
	SetActive(ctx context.Context, id AccountID, active bool) error
}

// =============================================================================
// JOURNAL STORE
// =============================================================================

// JournalStore persists the append-only transaction journal.
type JournalStore interface {
	// AppendTransaction persists a new transaction.
	AppendTransaction(ctx context.Context, tx Transaction) error

	// GetTransaction returns one transaction, or ErrTransactionNotFound.
	GetTransaction(ctx context.Context, id TransactionID) (Transaction, error)

	// ListTransactions returns transactions in chronological order.
	ListTransactions(ctx context.Context) ([]Transaction, error)

	// ListTransactionsInRange returns transactions with CreatedAt in
	// [from, to], chronological.
	ListTransactionsInRange(ctx context.Context, from, to time.Time) ([]Transaction, error)

	// MarkCancelled flips status to CANCELLED. One-way; cancelling an
	// already-cancelled transaction is a no-op.
	MarkCancelled(ctx context.Context, id TransactionID) error
}

// =============================================================================
// CASH STORE
// =============================================================================

// CashStore persists manual cash-drawer movements.
type CashStore interface {
	AppendCashEntry(ctx context.Context, e CashEntry) error
	ListCashEntries(ctx context.Context) ([]CashEntry, error)
}

// =============================================================================
// CATALOG - Read-only product lookup
// =============================================================================

// Catalog supplies product data. The core treats this as read-only:
// stock decrement at settlement is the inventory collaborator's concern.
type Catalog interface {
	GetProduct(ctx context.Context, id ProductID) (Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	PutProduct(ctx context.Context, p Product) error
}
