package invoice

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/procura-erp/procura/internal/grn"
	"github.com/procura-erp/procura/internal/purchaseorder"
)

// MatchResult is the outcome of a three-way reconciliation.
type MatchResult struct {
	Matched       bool     `json:"matched"`
	Discrepancies []string `json:"discrepancies,omitempty"`
}

// ThreeWayMatch reconciles invoice lines against the purchase order and the
// goods receipt. Per line: the billed quantity must not exceed the accepted
// quantity on the receipt, and the unit price must agree with the order.
// tolerance is an absolute slack applied to both comparisons.
func ThreeWayMatch(po purchaseorder.PurchaseOrder, receipt grn.GRN, inv Invoice, tolerance decimal.Decimal) MatchResult {
	if tolerance.IsNegative() {
		tolerance = decimal.Zero
	}
	poItems := make(map[int64]purchaseorder.Item, len(po.Items))
	for _, it := range po.Items {
		poItems[it.ID] = it
	}
	accepted := make(map[int64]decimal.Decimal, len(receipt.Items))
	for _, it := range receipt.Items {
		accepted[it.POItemID] = accepted[it.POItemID].Add(it.AcceptedQuantity)
	}

	var discrepancies []string
	for i, line := range inv.Items {
		if line.POItemID == nil {
			discrepancies = append(discrepancies, fmt.Sprintf("line %d (%s): no purchase order line reference", i+1, line.ItemName))
			continue
		}
		poItem, ok := poItems[*line.POItemID]
		if !ok {
			discrepancies = append(discrepancies, fmt.Sprintf("line %d (%s): purchase order line %d not found", i+1, line.ItemName, *line.POItemID))
			continue
		}
		receivedQty, ok := accepted[*line.POItemID]
		if !ok {
			discrepancies = append(discrepancies, fmt.Sprintf("line %d (%s): nothing received against purchase order line %d", i+1, line.ItemName, *line.POItemID))
			continue
		}
		if line.InvoiceQuantity.Sub(receivedQty).GreaterThan(tolerance) {
			discrepancies = append(discrepancies, fmt.Sprintf("line %d (%s): billed quantity %s exceeds accepted quantity %s", i+1, line.ItemName, line.InvoiceQuantity, receivedQty))
		}
		if line.UnitPrice.Sub(poItem.UnitPrice).Abs().GreaterThan(tolerance) {
			discrepancies = append(discrepancies, fmt.Sprintf("line %d (%s): unit price %s differs from ordered price %s", i+1, line.ItemName, line.UnitPrice, poItem.UnitPrice))
		}
	}
	return MatchResult{Matched: len(discrepancies) == 0, Discrepancies: discrepancies}
}
