package canteen_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/canteen-engine/canteen"
	"github.com/warp/canteen-engine/canteen/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newJournalFixture(t *testing.T) (*canteen.Journal, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	return canteen.NewJournal(mem), mem
}

func seedTx(t *testing.T, journal *canteen.Journal, accountID string, total string, at time.Time, items ...canteen.LineItem) canteen.Transaction {
	t.Helper()
	tx := canteen.Transaction{
		ID:            canteen.TransactionID(canteen.NewID()),
		AccountID:     canteen.AccountID(accountID),
		Items:         items,
		Total:         dec(total),
		PaymentMethod: canteen.PaymentMoney,
		Status:        canteen.StatusValid,
		CreatedAt:     at,
	}
	if accountID != "" {
		tx.PaymentMethod = canteen.PaymentAccount
		tx.AccountName = "Account " + accountID
	}
	require.NoError(t, journal.Append(context.Background(), tx))
	return tx
}

// =============================================================================
// CANCELLATION
// =============================================================================

func TestJournal_CancelLeavesLedgerUntouched(t *testing.T) {
	// GIVEN: An account charged 15.00 through a settled transaction
	// WHEN: The transaction is cancelled
	// THEN: Status flips to CANCELLED but the balance stays at -15.00

	mem := store.NewMemory()
	ledger := canteen.NewLedger(mem)
	journal := canteen.NewJournal(mem)
	settler := canteen.NewSettler(ledger, journal, canteen.DefaultFeatures())
	seedAccount(t, mem, "acc-1", "0")
	ctx := context.Background()

	cart := cartWith(t, canteen.DefaultFeatures(), "15.00")
	res, err := settler.Settle(ctx, cart, canteen.PaymentAccount, accountRef("acc-1"), decimal.Zero)
	require.NoError(t, err)

	cancelled, err := journal.Cancel(ctx, res.Transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, canteen.StatusCancelled, cancelled.Status)

	balance, err := ledger.Balance(ctx, "acc-1")
	require.NoError(t, err)
	assert.True(t, balance.Equal(dec("-15.00")), "cancellation never reverses the ledger")

	history, err := ledger.History(ctx, "acc-1")
	require.NoError(t, err)
	assert.Len(t, history, 1, "the PURCHASE entry survives")
}

func TestJournal_CancelUnknown(t *testing.T) {
	journal, _ := newJournalFixture(t)
	_, err := journal.Cancel(context.Background(), "missing")
	assert.ErrorIs(t, err, canteen.ErrTransactionNotFound)
}

// =============================================================================
// REPORTING
// =============================================================================

func TestJournal_SummaryExcludesCancelled(t *testing.T) {
	journal, _ := newJournalFixture(t)
	ctx := context.Background()
	now := time.Now()

	seedTx(t, journal, "", "10.00", now)
	seedTx(t, journal, "", "6.00", now)
	dead := seedTx(t, journal, "", "99.00", now)
	_, err := journal.Cancel(ctx, dead.ID)
	require.NoError(t, err)

	s, err := journal.Summary(ctx, now, now)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Orders)
	assert.True(t, s.Revenue.Equal(dec("16.00")))
	assert.True(t, s.AverageTicket.Equal(dec("8.00")))
}

func TestJournal_SummaryEmptyRange(t *testing.T) {
	journal, _ := newJournalFixture(t)
	now := time.Now()
	seedTx(t, journal, "", "10.00", now.AddDate(0, 0, -30))

	s, err := journal.Summary(context.Background(), now, now)
	require.NoError(t, err)
	assert.Zero(t, s.Orders)
	assert.True(t, s.Revenue.IsZero())
	assert.True(t, s.AverageTicket.IsZero(), "no division by zero")
}

func TestJournal_SpendByAccountSortedDescending(t *testing.T) {
	journal, _ := newJournalFixture(t)
	now := time.Now()

	seedTx(t, journal, "acc-small", "3.00", now)
	seedTx(t, journal, "acc-big", "20.00", now)
	seedTx(t, journal, "acc-big", "5.00", now)
	seedTx(t, journal, "", "100.00", now) // anonymous cash sale, excluded

	spends, err := journal.SpendByAccount(context.Background(), now, now)
	require.NoError(t, err)
	require.Len(t, spends, 2)
	assert.Equal(t, canteen.AccountID("acc-big"), spends[0].AccountID)
	assert.True(t, spends[0].Spend.Equal(dec("25.00")))
	assert.Equal(t, 2, spends[0].Orders)
	assert.Equal(t, canteen.AccountID("acc-small"), spends[1].AccountID)
}

func TestJournal_TopProductsByQuantity(t *testing.T) {
	journal, _ := newJournalFixture(t)
	now := time.Now()

	seedTx(t, journal, "", "0", now, line("juice", "2.00", 5), line("cake", "4.00", 1))
	seedTx(t, journal, "", "0", now, line("juice", "2.00", 2))
	seedTx(t, journal, "", "0", now, line("sandwich", "6.00", 3))

	top, err := journal.TopProducts(context.Background(), now, now, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, canteen.ProductID("juice"), top[0].ProductID)
	assert.Equal(t, 7, top[0].Quantity)
	assert.True(t, top[0].Revenue.Equal(dec("14.00")))
	assert.Equal(t, canteen.ProductID("sandwich"), top[1].ProductID)
}

func TestJournal_DailyRevenueTrailingZeroFilled(t *testing.T) {
	// 7 buckets ending today; days without sales report zero.

	journal, _ := newJournalFixture(t)
	ctx := context.Background()
	now := time.Now()

	seedTx(t, journal, "", "10.00", now)
	seedTx(t, journal, "", "5.00", now.AddDate(0, 0, -2))
	seedTx(t, journal, "", "99.00", now.AddDate(0, 0, -10)) // outside window

	days, err := journal.DailyRevenueTrailing(ctx, now)
	require.NoError(t, err)
	require.Len(t, days, 7)

	assert.True(t, days[0].Day.Equal(canteen.StartOfDay(now).AddDate(0, 0, -6)))
	assert.True(t, days[6].Day.Equal(canteen.StartOfDay(now)))
	assert.True(t, days[6].Revenue.Equal(dec("10.00")))
	assert.True(t, days[4].Revenue.Equal(dec("5.00")))

	total := decimal.Zero
	for _, d := range days {
		total = total.Add(d.Revenue)
	}
	assert.True(t, total.Equal(dec("15.00")))
}

// =============================================================================
// LOCAL-DAY HELPERS
// =============================================================================

func TestDayBounds(t *testing.T) {
	at := time.Date(2026, 3, 14, 13, 45, 12, 0, time.Local)

	start := canteen.StartOfDay(at)
	assert.Equal(t, 0, start.Hour())
	assert.Equal(t, at.Day(), start.Day())

	end := canteen.EndOfDay(at)
	assert.Equal(t, 23, end.Hour())
	assert.True(t, end.After(at))
	assert.Equal(t, at.Day(), end.Day())
}
