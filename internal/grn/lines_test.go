package grn

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func line(poQty, price string) Item {
	return Item{POItemID: 1, POQuantity: d(poQty), UnitPrice: d(price)}
}

func TestSetReceivedDefaultsToAcceptAll(t *testing.T) {
	it, err := SetReceived(line("5", "100"), d("5"))
	require.NoError(t, err)

	assert.True(t, it.ReceivedQuantity.Equal(d("5")))
	assert.True(t, it.AcceptedQuantity.Equal(d("5")))
	assert.True(t, it.RejectedQuantity.IsZero())
	assert.True(t, it.PendingQuantity.IsZero())
	assert.True(t, it.TotalValue.Equal(d("500")))
}

func TestSetRejectedRebalancesAccepted(t *testing.T) {
	it, err := SetReceived(line("5", "100"), d("5"))
	require.NoError(t, err)

	it, err = SetRejected(it, d("1"))
	require.NoError(t, err)

	assert.True(t, it.AcceptedQuantity.Equal(d("4")))
	assert.True(t, it.RejectedQuantity.Equal(d("1")))
	assert.True(t, it.PendingQuantity.Equal(d("1")))
	assert.True(t, it.TotalValue.Equal(d("400")))
}

func TestSetAcceptedRebalancesRejected(t *testing.T) {
	it, err := SetReceived(line("10", "50"), d("8"))
	require.NoError(t, err)

	it, err = SetAccepted(it, d("6"))
	require.NoError(t, err)

	assert.True(t, it.AcceptedQuantity.Equal(d("6")))
	assert.True(t, it.RejectedQuantity.Equal(d("2")))
	assert.True(t, it.PendingQuantity.Equal(d("4")))
	assert.True(t, it.TotalValue.Equal(d("300")))
}

func TestSetAcceptedClampsToReceived(t *testing.T) {
	it, err := SetReceived(line("10", "50"), d("4"))
	require.NoError(t, err)

	it, err = SetAccepted(it, d("9"))
	require.NoError(t, err)

	assert.True(t, it.AcceptedQuantity.Equal(d("4")))
	assert.True(t, it.RejectedQuantity.IsZero())
}

func TestSetRejectedClampsToReceived(t *testing.T) {
	it, err := SetReceived(line("10", "50"), d("4"))
	require.NoError(t, err)

	it, err = SetRejected(it, d("9"))
	require.NoError(t, err)

	assert.True(t, it.RejectedQuantity.Equal(d("4")))
	assert.True(t, it.AcceptedQuantity.IsZero())
}

func TestSetReceivedRejectsOverOrdered(t *testing.T) {
	_, err := SetReceived(line("5", "100"), d("6"))
	require.ErrorIs(t, err, ErrValidation)
}

func TestSetReceivedRejectsNegative(t *testing.T) {
	_, err := SetReceived(line("5", "100"), d("-1"))
	require.ErrorIs(t, err, ErrValidation)
}

func TestPendingQuantityNotClamped(t *testing.T) {
	// A line persisted with over-acceptance surfaces a negative pending
	// balance rather than silently clamping to zero.
	it := line("5", "100")
	it.ReceivedQuantity = d("5")
	it.AcceptedQuantity = d("5")
	it = recompute(it)
	assert.True(t, it.PendingQuantity.IsZero())

	it.POQuantity = d("4")
	it = recompute(it)
	assert.True(t, it.PendingQuantity.Equal(d("-1")), "pending = %s", it.PendingQuantity)
}

func TestNormalizeEnforcesSplitBalance(t *testing.T) {
	it := line("5", "100")
	it.ReceivedQuantity = d("5")
	it.AcceptedQuantity = d("3")
	it.RejectedQuantity = d("1")
	_, err := Normalize(it)
	require.ErrorIs(t, err, ErrValidation)

	it.RejectedQuantity = d("2")
	out, err := Normalize(it)
	require.NoError(t, err)
	assert.Equal(t, QualityPending, out.QualityStatus)
	assert.True(t, out.PendingQuantity.Equal(d("2")))
	assert.True(t, out.TotalValue.Equal(d("300")))
}

func TestNormalizeRejectsOverReceipt(t *testing.T) {
	it := line("5", "100")
	it.ReceivedQuantity = d("6")
	it.AcceptedQuantity = d("6")
	_, err := Normalize(it)
	require.ErrorIs(t, err, ErrValidation)
}

func TestTotalReceivedValueSumsAcceptedValue(t *testing.T) {
	a, err := SetReceived(line("5", "100"), d("5"))
	require.NoError(t, err)
	b, err := SetReceived(line("2", "250.505"), d("2"))
	require.NoError(t, err)

	total := TotalReceivedValue([]Item{a, b})
	assert.True(t, total.Equal(d("1001.01")), "total = %s", total)
}
