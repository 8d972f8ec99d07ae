// Package store provides in-memory store implementations.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/warp/canteen-engine/canteen"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements AccountStore, JournalStore, CashStore, and Catalog
// with maps behind one RWMutex.
type Memory struct {
	mu           sync.RWMutex
	accounts     map[canteen.AccountID]*canteen.Account
	order        []canteen.AccountID
	transactions []canteen.Transaction
	cash         []canteen.CashEntry
	products     map[canteen.ProductID]canteen.Product
	productOrder []canteen.ProductID
}

func NewMemory() *Memory {
	return &Memory{
		accounts: make(map[canteen.AccountID]*canteen.Account),
		products: make(map[canteen.ProductID]canteen.Product),
	}
}

// =============================================================================
// ACCOUNT STORE
// =============================================================================

func (m *Memory) CreateAccount(_ context.Context, a canteen.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := a
	copied.History = append([]canteen.HistoryEntry{}, a.History...)
	m.accounts[a.ID] = &copied
	m.order = append(m.order, a.ID)
	return nil
}

func (m *Memory) GetAccount(_ context.Context, id canteen.AccountID) (canteen.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[id]
	if !ok {
		return canteen.Account{}, canteen.ErrAccountNotFound
	}
	return snapshotAccount(a), nil
}

func (m *Memory) ListAccounts(_ context.Context, includeInactive bool) ([]canteen.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []canteen.Account
	for _, id := range m.order {
		a := m.accounts[id]
		if !includeInactive && !a.IsActive {
			continue
		}
		out = append(out, snapshotAccount(a))
	}
	return out, nil
}

// ApplyMovement appends the entry and adopts its BalanceAfter in one
// locked step. No partial state is observable.
func (m *Memory) ApplyMovement(_ context.Context, id canteen.AccountID, entry canteen.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return canteen.ErrAccountNotFound
	}
	a.History = append(a.History, entry)
	a.Balance = entry.BalanceAfter
	return nil
}

func (m *Memory) SetPoints(_ context.Context, id canteen.AccountID, points int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return canteen.ErrAccountNotFound
	}
	a.Points = points
	return nil
}

func (m *Memory) SetActive(_ context.Context, id canteen.AccountID, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return canteen.ErrAccountNotFound
	}
	a.IsActive = active
	return nil
}

func snapshotAccount(a *canteen.Account) canteen.Account {
	copied := *a
	copied.History = append([]canteen.HistoryEntry{}, a.History...)
	return copied
}

// =============================================================================
// JOURNAL STORE
// =============================================================================

func (m *Memory) AppendTransaction(_ context.Context, tx canteen.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions = append(m.transactions, tx)
	return nil
}

func (m *Memory) GetTransaction(_ context.Context, id canteen.TransactionID) (canteen.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, tx := range m.transactions {
		if tx.ID == id {
			return tx, nil
		}
	}
	return canteen.Transaction{}, canteen.ErrTransactionNotFound
}

func (m *Memory) ListTransactions(_ context.Context) ([]canteen.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]canteen.Transaction, len(m.transactions))
	copy(out, m.transactions)
	return out, nil
}

func (m *Memory) ListTransactionsInRange(_ context.Context, from, to time.Time) ([]canteen.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []canteen.Transaction
	for _, tx := range m.transactions {
		if !tx.CreatedAt.Before(from) && !tx.CreatedAt.After(to) {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (m *Memory) MarkCancelled(_ context.Context, id canteen.TransactionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.transactions {
		if m.transactions[i].ID == id {
			m.transactions[i].Status = canteen.StatusCancelled
			return nil
		}
	}
	return canteen.ErrTransactionNotFound
}

// =============================================================================
// CASH STORE
// =============================================================================

func (m *Memory) AppendCashEntry(_ context.Context, e canteen.CashEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cash = append(m.cash, e)
	return nil
}

func (m *Memory) ListCashEntries(_ context.Context) ([]canteen.CashEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]canteen.CashEntry, len(m.cash))
	copy(out, m.cash)
	return out, nil
}

// =============================================================================
// CATALOG
// =============================================================================

func (m *Memory) GetProduct(_ context.Context, id canteen.ProductID) (canteen.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return canteen.Product{}, canteen.ErrProductNotFound
	}
	return p, nil
}

func (m *Memory) ListProducts(_ context.Context) ([]canteen.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []canteen.Product
	for _, id := range m.productOrder {
		out = append(out, m.products[id])
	}
	return out, nil
}

func (m *Memory) PutProduct(_ context.Context, p canteen.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[p.ID]; !ok {
		m.productOrder = append(m.productOrder, p.ID)
	}
	m.products[p.ID] = p
	return nil
}
