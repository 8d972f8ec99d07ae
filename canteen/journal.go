/*
journal.go - Transaction journal and reporting aggregation

PURPOSE:
  The Journal owns the append-only list of all Transactions across all
  accounts. The only permitted mutation is the one-way VALID ->
  CANCELLED status flip. Cancellation does NOT reverse any ledger
  movement: amounts already charged stay charged, and refunds are an
  explicit REFUND movement through the ledger.

REPORTING:
  All aggregations run over inclusive local-day ranges and exclude
  cancelled transactions:
  - Range summary: revenue, order count, average ticket
  - Per-account: order count and spend within range
  - Top products: by summed quantity
  - Daily revenue: trailing 7 calendar days including today, zero-filled

SEE ALSO:
  - store.go: JournalStore contract
  - billing.go: The account-side collections projection
*/
package canteen

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Journal owns the transaction record.
type Journal struct {
	store JournalStore
}

func NewJournal(store JournalStore) *Journal {
	return &Journal{store: store}
}

// Append records a settled transaction.
func (j *Journal) Append(ctx context.Context, tx Transaction) error {
	return j.store.AppendTransaction(ctx, tx)
}

// Cancel flips a transaction to CANCELLED. One-way; the associated
// ledger movement, if any, is intentionally left in place.
func (j *Journal) Cancel(ctx context.Context, id TransactionID) (Transaction, error) {
	if err := j.store.MarkCancelled(ctx, id); err != nil {
		return Transaction{}, err
	}
	return j.store.GetTransaction(ctx, id)
}

// Get returns one transaction.
func (j *Journal) Get(ctx context.Context, id TransactionID) (Transaction, error) {
	return j.store.GetTransaction(ctx, id)
}

// List returns all transactions, chronological.
func (j *Journal) List(ctx context.Context) ([]Transaction, error) {
	return j.store.ListTransactions(ctx)
}

// ListRange returns transactions within the inclusive local-day range.
func (j *Journal) ListRange(ctx context.Context, from, to time.Time) ([]Transaction, error) {
	return j.store.ListTransactionsInRange(ctx, StartOfDay(from), EndOfDay(to))
}

// =============================================================================
// REPORTING
// =============================================================================

// RangeSummary aggregates valid transactions over a date range.
type RangeSummary struct {
	Revenue       decimal.Decimal
	Orders        int
	AverageTicket decimal.Decimal
}

// Summary computes revenue, order count, and average ticket for the
// inclusive local-day range. Cancelled transactions contribute zero.
func (j *Journal) Summary(ctx context.Context, from, to time.Time) (RangeSummary, error) {
	txs, err := j.ListRange(ctx, from, to)
	if err != nil {
		return RangeSummary{}, err
	}

	s := RangeSummary{Revenue: decimal.Zero, AverageTicket: decimal.Zero}
	for _, tx := range txs {
		if tx.Status != StatusValid {
			continue
		}
		s.Revenue = s.Revenue.Add(tx.Total)
		s.Orders++
	}
	if s.Orders > 0 {
		s.AverageTicket = s.Revenue.Div(decimal.NewFromInt(int64(s.Orders))).Round(2)
	}
	return s, nil
}

// AccountSpend aggregates one account's valid transactions in a range.
type AccountSpend struct {
	AccountID   AccountID
	AccountName string
	Orders      int
	Spend       decimal.Decimal
}

// SpendByAccount groups valid, account-linked transactions within the
// range, sorted by spend descending.
func (j *Journal) SpendByAccount(ctx context.Context, from, to time.Time) ([]AccountSpend, error) {
	txs, err := j.ListRange(ctx, from, to)
	if err != nil {
		return nil, err
	}

	byAccount := make(map[AccountID]*AccountSpend)
	for _, tx := range txs {
		if tx.Status != StatusValid || tx.AccountID == "" {
			continue
		}
		agg, ok := byAccount[tx.AccountID]
		if !ok {
			agg = &AccountSpend{AccountID: tx.AccountID, AccountName: tx.AccountName, Spend: decimal.Zero}
			byAccount[tx.AccountID] = agg
		}
		agg.Orders++
		agg.Spend = agg.Spend.Add(tx.Total)
	}

	out := make([]AccountSpend, 0, len(byAccount))
	for _, agg := range byAccount {
		out = append(out, *agg)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Spend.GreaterThan(out[k].Spend) })
	return out, nil
}

// ProductSales aggregates sales of one product.
type ProductSales struct {
	ProductID ProductID
	Name      string
	Quantity  int
	Revenue   decimal.Decimal
}

// TopProducts returns the n best-selling products by summed quantity
// across valid transactions in the range.
func (j *Journal) TopProducts(ctx context.Context, from, to time.Time, n int) ([]ProductSales, error) {
	txs, err := j.ListRange(ctx, from, to)
	if err != nil {
		return nil, err
	}

	byProduct := make(map[ProductID]*ProductSales)
	for _, tx := range txs {
		if tx.Status != StatusValid {
			continue
		}
		for _, li := range tx.Items {
			agg, ok := byProduct[li.ProductID]
			if !ok {
				agg = &ProductSales{ProductID: li.ProductID, Name: li.Name, Revenue: decimal.Zero}
				byProduct[li.ProductID] = agg
			}
			agg.Quantity += li.Quantity
			agg.Revenue = agg.Revenue.Add(li.Subtotal())
		}
	}

	out := make([]ProductSales, 0, len(byProduct))
	for _, agg := range byProduct {
		out = append(out, *agg)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Quantity > out[k].Quantity })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// DailyRevenue is one calendar day's valid revenue.
type DailyRevenue struct {
	Day     time.Time // start of local day
	Revenue decimal.Decimal
}

// DailyRevenueTrailing buckets valid revenue per local calendar day for
// the trailing 7 days ending at now (inclusive), zero-filled.
func (j *Journal) DailyRevenueTrailing(ctx context.Context, now time.Time) ([]DailyRevenue, error) {
	const days = 7
	first := StartOfDay(now).AddDate(0, 0, -(days - 1))
	txs, err := j.store.ListTransactionsInRange(ctx, first, EndOfDay(now))
	if err != nil {
		return nil, err
	}

	buckets := make([]DailyRevenue, days)
	for i := range buckets {
		buckets[i] = DailyRevenue{Day: first.AddDate(0, 0, i), Revenue: decimal.Zero}
	}
	for _, tx := range txs {
		if tx.Status != StatusValid {
			continue
		}
		i := int(StartOfDay(tx.CreatedAt).Sub(first).Hours() / 24)
		if i >= 0 && i < days {
			buckets[i].Revenue = buckets[i].Revenue.Add(tx.Total)
		}
	}
	return buckets, nil
}

// =============================================================================
// LOCAL-DAY HELPERS
// =============================================================================

// StartOfDay truncates to the local calendar day.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last instant of the local calendar day.
func EndOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}
