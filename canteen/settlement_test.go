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

type settleFixture struct {
	mem     *store.Memory
	ledger  *canteen.Ledger
	journal *canteen.Journal
	settler *canteen.Settler
}

func newSettleFixture(t *testing.T, features canteen.Features) *settleFixture {
	t.Helper()
	mem := store.NewMemory()
	ledger := canteen.NewLedger(mem)
	journal := canteen.NewJournal(mem)
	return &settleFixture{
		mem:     mem,
		ledger:  ledger,
		journal: journal,
		settler: canteen.NewSettler(ledger, journal, features),
	}
}

func cartWith(t *testing.T, features canteen.Features, total string) *canteen.Cart {
	t.Helper()
	cart := canteen.NewCart(features)
	require.NoError(t, cart.Add(product("p1", total, nil), 1))
	return cart
}

func accountRef(id string) *canteen.AccountID {
	a := canteen.AccountID(id)
	return &a
}

func (f *settleFixture) journalLen(t *testing.T) int {
	t.Helper()
	txs, err := f.journal.List(context.Background())
	require.NoError(t, err)
	return len(txs)
}

// =============================================================================
// ACCOUNT SETTLEMENT
// =============================================================================

func TestSettle_Account_InsufficientCredit(t *testing.T) {
	// Scenario: balance 0.00, negative balances disallowed, cart 15.00.

	features := canteen.DefaultFeatures()
	features.AllowNegativeBalance = false
	f := newSettleFixture(t, features)
	seedAccount(t, f.mem, "acc-1", "0")
	ctx := context.Background()

	cart := cartWith(t, features, "15.00")
	_, err := f.settler.Settle(ctx, cart, canteen.PaymentAccount, accountRef("acc-1"), decimal.Zero)
	assert.ErrorIs(t, err, canteen.ErrInsufficientCredit)

	// No mutation on failure.
	balance, err := f.ledger.Balance(ctx, "acc-1")
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
	history, err := f.ledger.History(ctx, "acc-1")
	require.NoError(t, err)
	assert.Empty(t, history)
	assert.Zero(t, f.journalLen(t))
	assert.False(t, cart.IsEmpty(), "cart must survive a failed settle")
}

func TestSettle_Account_NegativeBalanceAllowed(t *testing.T) {
	// Scenario: same cart with negative balances allowed.

	features := canteen.DefaultFeatures()
	f := newSettleFixture(t, features)
	seedAccount(t, f.mem, "acc-1", "0")
	ctx := context.Background()

	cart := cartWith(t, features, "15.00")
	res, err := f.settler.Settle(ctx, cart, canteen.PaymentAccount, accountRef("acc-1"), decimal.Zero)
	require.NoError(t, err)

	// Exactly one history entry and one transaction.
	history, err := f.ledger.History(ctx, "acc-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, canteen.MovementPurchase, history[0].Type)
	assert.True(t, history[0].Value.Equal(dec("15.00")))
	assert.True(t, history[0].BalanceAfter.Equal(dec("-15.00")))
	assert.Equal(t, 1, f.journalLen(t))

	require.NotNil(t, res.Transaction.BalanceSnapshot)
	assert.True(t, res.Transaction.BalanceSnapshot.Equal(dec("-15.00")))
	assert.Equal(t, canteen.StatusValid, res.Transaction.Status)
	assert.True(t, cart.IsEmpty(), "cart must be cleared after settle")
}

func TestSettle_Account_OverdueBlocked(t *testing.T) {
	// Scenario: debt started 10 days ago, limit 5 days.

	features := canteen.DefaultFeatures()
	features.BlockOverdueStudents = true
	features.MaxOverdueDays = 5
	f := newSettleFixture(t, features)
	seedAccount(t, f.mem, "acc-1", "0")
	ctx := context.Background()

	// Seed a debt transition 10 days back.
	require.NoError(t, f.mem.ApplyMovement(ctx, "acc-1", canteen.HistoryEntry{
		ID:           canteen.NewID(),
		AccountID:    "acc-1",
		Type:         canteen.MovementPurchase,
		Value:        dec("15.00"),
		BalanceAfter: dec("-15.00"),
		CreatedAt:    time.Now().AddDate(0, 0, -10),
	}))

	cart := cartWith(t, features, "3.00")
	_, err := f.settler.Settle(ctx, cart, canteen.PaymentAccount, accountRef("acc-1"), decimal.Zero)
	assert.ErrorIs(t, err, canteen.ErrAccountBlocked)

	var blocked *canteen.AccountBlockedError
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, 10, blocked.DaysOverdue)

	balance, err := f.ledger.Balance(ctx, "acc-1")
	require.NoError(t, err)
	assert.True(t, balance.Equal(dec("-15.00")), "balance unchanged")
	assert.Zero(t, f.journalLen(t))
}

func TestSettle_Account_NoAccountSelected(t *testing.T) {
	features := canteen.DefaultFeatures()
	f := newSettleFixture(t, features)

	cart := cartWith(t, features, "5.00")
	_, err := f.settler.Settle(context.Background(), cart, canteen.PaymentAccount, nil, decimal.Zero)
	assert.ErrorIs(t, err, canteen.ErrNoAccountSelected)
	assert.Zero(t, f.journalLen(t))
}

func TestSettle_Account_LoyaltyPoints(t *testing.T) {
	// 1 point per whole currency unit, floor.

	features := canteen.DefaultFeatures()
	features.EnableLoyaltySystem = true
	f := newSettleFixture(t, features)
	seedAccount(t, f.mem, "acc-1", "50")
	ctx := context.Background()

	cart := cartWith(t, features, "12.75")
	res, err := f.settler.Settle(ctx, cart, canteen.PaymentAccount, accountRef("acc-1"), decimal.Zero)
	require.NoError(t, err)
	assert.Equal(t, 12, res.PointsAccrued)

	account, err := f.ledger.Account(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, 12, account.Points)
}

// =============================================================================
// EXTERNAL SETTLEMENT (money, card, pix)
// =============================================================================

func TestSettle_Money_ChangeDue(t *testing.T) {
	features := canteen.DefaultFeatures()
	f := newSettleFixture(t, features)

	cart := cartWith(t, features, "7.50")
	res, err := f.settler.Settle(context.Background(), cart, canteen.PaymentMoney, nil, dec("10.00"))
	require.NoError(t, err)
	assert.True(t, res.ChangeDue.Equal(dec("2.50")))
	assert.Equal(t, 1, f.journalLen(t))
}

func TestSettle_Money_InsufficientCash(t *testing.T) {
	features := canteen.DefaultFeatures()
	f := newSettleFixture(t, features)

	cart := cartWith(t, features, "7.50")
	_, err := f.settler.Settle(context.Background(), cart, canteen.PaymentMoney, nil, dec("5.00"))
	assert.ErrorIs(t, err, canteen.ErrInsufficientCash)
	assert.Zero(t, f.journalLen(t))
	assert.False(t, cart.IsEmpty())
}

func TestSettle_Pix_NoLedgerEffect(t *testing.T) {
	// Non-account methods never touch the ledger, even with an account
	// linked for reference.

	features := canteen.DefaultFeatures()
	f := newSettleFixture(t, features)
	seedAccount(t, f.mem, "acc-1", "20")
	ctx := context.Background()

	cart := cartWith(t, features, "5.00")
	res, err := f.settler.Settle(ctx, cart, canteen.PaymentPix, accountRef("acc-1"), decimal.Zero)
	require.NoError(t, err)

	history, err := f.ledger.History(ctx, "acc-1")
	require.NoError(t, err)
	assert.Empty(t, history)

	require.NotNil(t, res.Transaction.BalanceSnapshot)
	assert.True(t, res.Transaction.BalanceSnapshot.Equal(dec("20")), "snapshot is the pre-existing balance")
}

func TestSettle_EmptyCart(t *testing.T) {
	features := canteen.DefaultFeatures()
	f := newSettleFixture(t, features)

	_, err := f.settler.Settle(context.Background(), canteen.NewCart(features), canteen.PaymentMoney, nil, dec("10"))
	assert.ErrorIs(t, err, canteen.ErrEmptyCart)
}

func TestSettle_DisabledMethod(t *testing.T) {
	features := canteen.DefaultFeatures()
	features.Payments.Pix = false
	f := newSettleFixture(t, features)

	cart := cartWith(t, features, "5.00")
	_, err := f.settler.Settle(context.Background(), cart, canteen.PaymentPix, nil, decimal.Zero)
	assert.ErrorIs(t, err, canteen.ErrPaymentMethodDisabled)
	assert.Zero(t, f.journalLen(t))
}

// =============================================================================
// CHECKOUT STATE MACHINE
// =============================================================================

func TestCheckout_AbortLeavesNoTrace(t *testing.T) {
	features := canteen.DefaultFeatures()
	f := newSettleFixture(t, features)
	seedAccount(t, f.mem, "acc-1", "10")
	ctx := context.Background()

	checkout := canteen.NewCheckout(features)
	require.NoError(t, checkout.Cart.Add(product("p1", "5.00", nil), 1))
	checkout.SelectAccount("acc-1")
	require.NoError(t, checkout.AwaitPayment())
	require.NoError(t, checkout.Abort())
	assert.Equal(t, canteen.CheckoutAborted, checkout.State())

	// Settling after abort is refused.
	_, err := checkout.Settle(ctx, f.settler, canteen.PaymentAccount, decimal.Zero)
	assert.ErrorIs(t, err, canteen.ErrCheckoutState)

	balance, err := f.ledger.Balance(ctx, "acc-1")
	require.NoError(t, err)
	assert.True(t, balance.Equal(dec("10")))
	assert.Zero(t, f.journalLen(t))
}

func TestCheckout_SettleClearsAccountSelection(t *testing.T) {
	features := canteen.DefaultFeatures()
	f := newSettleFixture(t, features)
	seedAccount(t, f.mem, "acc-1", "10")

	checkout := canteen.NewCheckout(features)
	require.NoError(t, checkout.Cart.Add(product("p1", "5.00", nil), 1))
	checkout.SelectAccount("acc-1")

	_, err := checkout.Settle(context.Background(), f.settler, canteen.PaymentAccount, decimal.Zero)
	require.NoError(t, err)
	assert.Equal(t, canteen.CheckoutSettled, checkout.State())
	assert.Nil(t, checkout.AccountID)
	assert.True(t, checkout.Cart.IsEmpty())

	// Terminal: no second settle.
	_, err = checkout.Settle(context.Background(), f.settler, canteen.PaymentMoney, dec("10"))
	assert.ErrorIs(t, err, canteen.ErrCheckoutState)
}

func TestCheckout_AwaitPaymentRequiresItems(t *testing.T) {
	checkout := canteen.NewCheckout(canteen.DefaultFeatures())
	assert.ErrorIs(t, checkout.AwaitPayment(), canteen.ErrEmptyCart)
}
