package canteen_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/canteen-engine/canteen"
	"github.com/warp/canteen-engine/canteen/store"
)

func TestCashBook_DrawerBalance(t *testing.T) {
	book := canteen.NewCashBook(store.NewMemory())
	ctx := context.Background()

	_, err := book.Add(ctx, canteen.CashIn, dec("100.00"), "opening float")
	require.NoError(t, err)
	_, err = book.Add(ctx, canteen.CashOut, dec("30.00"), "supplier payout")
	require.NoError(t, err)

	balance, err := book.DrawerBalance(ctx)
	require.NoError(t, err)
	assert.True(t, balance.Equal(dec("70.00")))

	entries, err := book.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "opening float", entries[0].Reason)
}

func TestCashBook_RejectsNonPositiveValues(t *testing.T) {
	book := canteen.NewCashBook(store.NewMemory())
	ctx := context.Background()

	_, err := book.Add(ctx, canteen.CashIn, decimal.Zero, "zero")
	assert.ErrorIs(t, err, canteen.ErrInvalidAmount)
	_, err = book.Add(ctx, canteen.CashOut, dec("-5"), "negative")
	assert.ErrorIs(t, err, canteen.ErrInvalidAmount)

	entries, err := book.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
