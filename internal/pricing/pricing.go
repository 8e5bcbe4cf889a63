// Package pricing implements the line-total calculation contract shared by
// purchase orders, goods receipts and invoices. All three document editors go
// through the same functions so the formulas cannot drift between modules.
package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrValidation indicates out-of-range calculation input.
var ErrValidation = errors.New("pricing: invalid input")

var hundred = decimal.NewFromInt(100)

// TaxRate names a percentage rate applied on the taxable amount.
type TaxRate struct {
	Kind string          `json:"kind"`
	Rate decimal.Decimal `json:"rate"`
}

// TaxAmount is a computed tax split for a single rate.
type TaxAmount struct {
	Kind   string          `json:"kind"`
	Rate   decimal.Decimal `json:"rate"`
	Amount decimal.Decimal `json:"amount"`
}

// LineInput carries the editable fields of a document line.
type LineInput struct {
	Qty         decimal.Decimal
	UnitPrice   decimal.Decimal
	DiscountPct decimal.Decimal
	Taxes       []TaxRate
}

// LineAmounts holds every derived amount for a line. Amounts are rounded
// half-up to 2 decimal places as they are produced, before any summation.
type LineAmounts struct {
	Base     decimal.Decimal
	Discount decimal.Decimal
	Taxable  decimal.Decimal
	Taxes    []TaxAmount
	TotalTax decimal.Decimal
	Total    decimal.Decimal
}

// round2 applies the repository-wide money rounding rule: half-up, 2 places.
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ComputeLine derives all line amounts in the fixed order
// base -> discount -> taxable -> tax per rate -> total tax -> line total.
// The discount is applied before tax.
func ComputeLine(in LineInput) (LineAmounts, error) {
	if in.Qty.IsNegative() {
		return LineAmounts{}, fmt.Errorf("%w: quantity must not be negative", ErrValidation)
	}
	if in.UnitPrice.IsNegative() {
		return LineAmounts{}, fmt.Errorf("%w: unit price must not be negative", ErrValidation)
	}
	if in.DiscountPct.IsNegative() || in.DiscountPct.GreaterThan(hundred) {
		return LineAmounts{}, fmt.Errorf("%w: discount percentage must be between 0 and 100", ErrValidation)
	}

	out := LineAmounts{}
	out.Base = round2(in.Qty.Mul(in.UnitPrice))
	out.Discount = round2(out.Base.Mul(in.DiscountPct).Div(hundred))
	out.Taxable = out.Base.Sub(out.Discount)

	out.TotalTax = decimal.Zero
	for _, rate := range in.Taxes {
		if rate.Rate.IsNegative() {
			return LineAmounts{}, fmt.Errorf("%w: tax rate %s must not be negative", ErrValidation, rate.Kind)
		}
		amount := round2(out.Taxable.Mul(rate.Rate).Div(hundred))
		out.Taxes = append(out.Taxes, TaxAmount{Kind: rate.Kind, Rate: rate.Rate, Amount: amount})
		out.TotalTax = out.TotalTax.Add(amount)
	}
	out.Total = out.Taxable.Add(out.TotalTax)
	return out, nil
}

// DocumentInput aggregates line amounts with document-level adjustments.
type DocumentInput struct {
	Lines          []LineAmounts
	DiscountAmount decimal.Decimal
	FreightCharges decimal.Decimal
	OtherCharges   decimal.Decimal
}

// DocumentTotals are the header amounts derived from the lines.
//
// SubTotal is the sum of line base amounts, TaxAmount the sum of all tax
// splits, DiscountAmount the document discount plus every line discount.
// GrandTotal = SubTotal + TaxAmount - DiscountAmount + Freight + Other.
type DocumentTotals struct {
	SubTotal       decimal.Decimal
	TaxAmount      decimal.Decimal
	DiscountAmount decimal.Decimal
	FreightCharges decimal.Decimal
	OtherCharges   decimal.Decimal
	GrandTotal     decimal.Decimal
}

// ComputeDocument sums line amounts into header totals. The computation is a
// pure fold over already-rounded line amounts, so repeated recomputation from
// the same lines always yields identical totals.
func ComputeDocument(in DocumentInput) DocumentTotals {
	totals := DocumentTotals{
		SubTotal:       decimal.Zero,
		TaxAmount:      decimal.Zero,
		DiscountAmount: round2(in.DiscountAmount),
		FreightCharges: round2(in.FreightCharges),
		OtherCharges:   round2(in.OtherCharges),
	}
	for _, line := range in.Lines {
		totals.SubTotal = totals.SubTotal.Add(line.Base)
		totals.TaxAmount = totals.TaxAmount.Add(line.TotalTax)
		totals.DiscountAmount = totals.DiscountAmount.Add(line.Discount)
	}
	totals.GrandTotal = totals.SubTotal.
		Add(totals.TaxAmount).
		Sub(totals.DiscountAmount).
		Add(totals.FreightCharges).
		Add(totals.OtherCharges)
	return totals
}
