// Package rfp stores supplier quotations collected during the
// request-for-proposal stage. Approved quotations are the source documents
// for purchase orders derived via /purchaseorder/from-rfp.
package rfp

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the quotation lifecycle status.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusSubmitted Status = "SUBMITTED"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
)

// Quotation is a supplier quotation header.
type Quotation struct {
	ID           int64     `json:"id"`
	Number       string    `json:"number"`
	SupplierID   int64     `json:"supplierId"`
	SupplierName string    `json:"supplierName"`
	Status       Status    `json:"status"`
	PaymentTerms string    `json:"paymentTerms"`
	ValidUntil   time.Time `json:"validUntil"`
	CreatedAt    time.Time `json:"createdAt"`
}

// QuotationLine is a quoted item with its agreed price and tax rates.
type QuotationLine struct {
	ID          int64           `json:"id"`
	QuotationID int64           `json:"quotationId"`
	ItemName    string          `json:"itemName"`
	ItemCode    string          `json:"itemCode"`
	Qty         decimal.Decimal `json:"qty"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	UOM         string          `json:"uom"`
	Tax1Type    string          `json:"tax1Type,omitempty"`
	Tax1Rate    decimal.Decimal `json:"tax1Rate"`
	Tax2Type    string          `json:"tax2Type,omitempty"`
	Tax2Rate    decimal.Decimal `json:"tax2Rate"`
}

// ErrNotFound indicates record missing.
var ErrNotFound = errors.New("rfp: not found")
