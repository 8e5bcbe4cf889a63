package grn

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Line edits keep acceptedQuantity + rejectedQuantity == receivedQuantity
// after every single-field change. pendingQuantity = poQuantity −
// acceptedQuantity and is deliberately not clamped: a line over-accepted
// beyond the ordered quantity surfaces as a negative pending balance.

// SetReceived applies a receivedQuantity edit: accept-all default, rejection
// reset to zero.
func SetReceived(it Item, received decimal.Decimal) (Item, error) {
	if received.IsNegative() {
		return Item{}, fmt.Errorf("%w: received quantity must not be negative", ErrValidation)
	}
	if received.GreaterThan(it.POQuantity) {
		return Item{}, fmt.Errorf("%w: received quantity %s exceeds ordered quantity %s", ErrValidation, received, it.POQuantity)
	}
	it.ReceivedQuantity = received
	it.AcceptedQuantity = received
	it.RejectedQuantity = decimal.Zero
	return recompute(it), nil
}

// SetAccepted applies an acceptedQuantity edit; the rejection balance absorbs
// the remainder, clamped to the received quantity.
func SetAccepted(it Item, accepted decimal.Decimal) (Item, error) {
	if accepted.IsNegative() {
		return Item{}, fmt.Errorf("%w: accepted quantity must not be negative", ErrValidation)
	}
	if accepted.GreaterThan(it.ReceivedQuantity) {
		accepted = it.ReceivedQuantity
	}
	it.AcceptedQuantity = accepted
	it.RejectedQuantity = it.ReceivedQuantity.Sub(accepted)
	return recompute(it), nil
}

// SetRejected applies a rejectedQuantity edit symmetrically to SetAccepted.
func SetRejected(it Item, rejected decimal.Decimal) (Item, error) {
	if rejected.IsNegative() {
		return Item{}, fmt.Errorf("%w: rejected quantity must not be negative", ErrValidation)
	}
	if rejected.GreaterThan(it.ReceivedQuantity) {
		rejected = it.ReceivedQuantity
	}
	it.RejectedQuantity = rejected
	it.AcceptedQuantity = it.ReceivedQuantity.Sub(rejected)
	return recompute(it), nil
}

func recompute(it Item) Item {
	it.PendingQuantity = it.POQuantity.Sub(it.AcceptedQuantity)
	it.TotalValue = it.AcceptedQuantity.Mul(it.UnitPrice).Round(2)
	return it
}

// Normalize validates a whole line as persisted: the split must balance and
// the receipt must not exceed the order.
func Normalize(it Item) (Item, error) {
	if it.ReceivedQuantity.IsNegative() || it.AcceptedQuantity.IsNegative() || it.RejectedQuantity.IsNegative() {
		return Item{}, fmt.Errorf("%w: quantities must not be negative", ErrValidation)
	}
	if it.ReceivedQuantity.GreaterThan(it.POQuantity) {
		return Item{}, fmt.Errorf("%w: received quantity %s exceeds ordered quantity %s", ErrValidation, it.ReceivedQuantity, it.POQuantity)
	}
	if !it.AcceptedQuantity.Add(it.RejectedQuantity).Equal(it.ReceivedQuantity) {
		return Item{}, fmt.Errorf("%w: accepted %s + rejected %s must equal received %s", ErrValidation, it.AcceptedQuantity, it.RejectedQuantity, it.ReceivedQuantity)
	}
	if it.QualityStatus == "" {
		it.QualityStatus = QualityPending
	}
	return recompute(it), nil
}

// TotalReceivedValue sums accepted-value across lines.
func TotalReceivedValue(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.TotalValue)
	}
	return total.Round(2)
}
