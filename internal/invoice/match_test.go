package invoice

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procura-erp/procura/internal/grn"
	"github.com/procura-erp/procura/internal/purchaseorder"
)

func matchFixture() (purchaseorder.PurchaseOrder, grn.GRN, Invoice) {
	po := purchaseorder.PurchaseOrder{
		ID: 41,
		Items: []purchaseorder.Item{
			{ID: 101, ItemName: "CNC Lathe", Quantity: d("2"), UnitPrice: d("200000")},
			{ID: 102, ItemName: "Tooling kit", Quantity: d("10"), UnitPrice: d("1500")},
		},
	}
	receipt := grn.GRN{
		ID:   9,
		POID: 41,
		Items: []grn.Item{
			{POItemID: 101, AcceptedQuantity: d("2"), UnitPrice: d("200000")},
			{POItemID: 102, AcceptedQuantity: d("8"), UnitPrice: d("1500")},
		},
	}
	inv := Invoice{
		ID: 3,
		Items: []Item{
			{POItemID: ptr(int64(101)), ItemName: "CNC Lathe", InvoiceQuantity: d("2"), UnitPrice: d("200000")},
			{POItemID: ptr(int64(102)), ItemName: "Tooling kit", InvoiceQuantity: d("8"), UnitPrice: d("1500")},
		},
	}
	return po, receipt, inv
}

func TestThreeWayMatchClean(t *testing.T) {
	po, receipt, inv := matchFixture()
	result := ThreeWayMatch(po, receipt, inv, decimal.Zero)
	assert.True(t, result.Matched)
	assert.Empty(t, result.Discrepancies)
}

func TestThreeWayMatchQuantityOverbilling(t *testing.T) {
	po, receipt, inv := matchFixture()
	inv.Items[1].InvoiceQuantity = d("10") // only 8 accepted

	result := ThreeWayMatch(po, receipt, inv, decimal.Zero)
	assert.False(t, result.Matched)
	require.Len(t, result.Discrepancies, 1)
	assert.Contains(t, result.Discrepancies[0], "Tooling kit")
}

func TestThreeWayMatchPriceVariance(t *testing.T) {
	po, receipt, inv := matchFixture()
	inv.Items[0].UnitPrice = d("201000")

	result := ThreeWayMatch(po, receipt, inv, decimal.Zero)
	assert.False(t, result.Matched)
	require.Len(t, result.Discrepancies, 1)
	assert.Contains(t, result.Discrepancies[0], "unit price")
}

func TestThreeWayMatchToleranceAbsorbsSmallVariance(t *testing.T) {
	po, receipt, inv := matchFixture()
	inv.Items[0].UnitPrice = d("200000.40")

	result := ThreeWayMatch(po, receipt, inv, d("0.5"))
	assert.True(t, result.Matched)

	result = ThreeWayMatch(po, receipt, inv, d("0.1"))
	assert.False(t, result.Matched)
}

func TestThreeWayMatchMissingReferences(t *testing.T) {
	po, receipt, inv := matchFixture()
	inv.Items[0].POItemID = nil
	inv.Items[1].POItemID = ptr(int64(999))

	result := ThreeWayMatch(po, receipt, inv, decimal.Zero)
	assert.False(t, result.Matched)
	assert.Len(t, result.Discrepancies, 2)
}

func TestThreeWayMatchNothingReceived(t *testing.T) {
	po, receipt, inv := matchFixture()
	receipt.Items = receipt.Items[:1]

	result := ThreeWayMatch(po, receipt, inv, decimal.Zero)
	assert.False(t, result.Matched)
	require.Len(t, result.Discrepancies, 1)
	assert.Contains(t, result.Discrepancies[0], "nothing received")
}

func TestThreeWayMatchNegativeToleranceTreatedAsZero(t *testing.T) {
	po, receipt, inv := matchFixture()
	result := ThreeWayMatch(po, receipt, inv, d("-5"))
	assert.True(t, result.Matched)
}
