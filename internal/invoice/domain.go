// Package invoice manages supplier invoices raised against purchase orders
// and goods receipts, including three-way matching and payment tracking.
package invoice

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/procura-erp/procura/internal/workflow"
)

// Status enumerates invoice states.
type Status string

const (
	StatusDraft            Status = "DRAFT"
	StatusSubmitted        Status = "SUBMITTED"
	StatusPendingApproval  Status = "PENDING_APPROVAL"
	StatusApproved         Status = "APPROVED"
	StatusThreeWayMatched  Status = "THREE_WAY_MATCHED"
	StatusThreeWayMismatch Status = "THREE_WAY_MISMATCH"
	StatusPartiallyPaid    Status = "PARTIALLY_PAID"
	StatusPaid             Status = "PAID"
	StatusRejected         Status = "REJECTED"
	StatusCancelled        Status = "CANCELLED"
	StatusOnHold           Status = "ON_HOLD"
	StatusOverdue          Status = "OVERDUE"
)

// InvoiceType classifies the document.
type InvoiceType string

const (
	TypeStandard   InvoiceType = "STANDARD"
	TypeCreditNote InvoiceType = "CREDIT_NOTE"
	TypeDebitNote  InvoiceType = "DEBIT_NOTE"
	TypeAdvance    InvoiceType = "ADVANCE"
	TypePartial    InvoiceType = "PARTIAL"
	TypeFinal      InvoiceType = "FINAL"
	TypeService    InvoiceType = "SERVICE"
	TypeProforma   InvoiceType = "PROFORMA"
)

// Workflow actions.
const (
	ActionSubmit      workflow.Action = "SUBMIT"
	ActionRoute       workflow.Action = "ROUTE_APPROVAL"
	ActionApprove     workflow.Action = "APPROVE"
	ActionReject      workflow.Action = "REJECT"
	ActionCancel      workflow.Action = "CANCEL"
	ActionMatch       workflow.Action = "MATCH"
	ActionMismatch    workflow.Action = "MISMATCH"
	ActionPayPartial  workflow.Action = "PAY_PARTIAL"
	ActionPayFull     workflow.Action = "PAY_FULL"
	ActionHold        workflow.Action = "HOLD"
	ActionResume      workflow.Action = "RESUME"
	ActionMarkOverdue workflow.Action = "MARK_OVERDUE"
)

var (
	cancelRule  = workflow.Rule{Next: workflow.State(StatusCancelled), RequireReason: true}
	holdRule    = workflow.Rule{Next: workflow.State(StatusOnHold), RequireReason: true}
	overdueRule = workflow.Rule{Next: workflow.State(StatusOverdue)}
)

var payRules = map[workflow.Action]workflow.Rule{
	ActionPayPartial: {Next: workflow.State(StatusPartiallyPaid)},
	ActionPayFull:    {Next: workflow.State(StatusPaid)},
}

func payable(extra map[workflow.Action]workflow.Rule) map[workflow.Action]workflow.Rule {
	rules := make(map[workflow.Action]workflow.Rule, len(extra)+2)
	for action, rule := range payRules {
		rules[action] = rule
	}
	for action, rule := range extra {
		rules[action] = rule
	}
	return rules
}

// Transitions is the central invoice state machine. Payment is recordable from
// any approved-or-later non-terminal state, including OVERDUE and mismatch.
var Transitions = workflow.Definition{
	Name:    "invoice",
	Initial: workflow.State(StatusDraft),
	Terminal: map[workflow.State]bool{
		workflow.State(StatusPaid):      true,
		workflow.State(StatusRejected):  true,
		workflow.State(StatusCancelled): true,
	},
	Transitions: map[workflow.State]map[workflow.Action]workflow.Rule{
		workflow.State(StatusDraft): {
			ActionSubmit: {Next: workflow.State(StatusSubmitted)},
			ActionCancel: cancelRule,
		},
		workflow.State(StatusSubmitted): {
			ActionRoute:       {Next: workflow.State(StatusPendingApproval)},
			ActionCancel:      cancelRule,
			ActionHold:        holdRule,
			ActionMarkOverdue: overdueRule,
		},
		workflow.State(StatusPendingApproval): {
			ActionApprove:     {Next: workflow.State(StatusApproved)},
			ActionReject:      {Next: workflow.State(StatusRejected), RequireReason: true},
			ActionCancel:      cancelRule,
			ActionHold:        holdRule,
			ActionMarkOverdue: overdueRule,
		},
		workflow.State(StatusApproved): payable(map[workflow.Action]workflow.Rule{
			ActionMatch:       {Next: workflow.State(StatusThreeWayMatched)},
			ActionMismatch:    {Next: workflow.State(StatusThreeWayMismatch)},
			ActionCancel:      cancelRule,
			ActionHold:        holdRule,
			ActionMarkOverdue: overdueRule,
		}),
		workflow.State(StatusThreeWayMatched): payable(map[workflow.Action]workflow.Rule{
			ActionCancel:      cancelRule,
			ActionHold:        holdRule,
			ActionMarkOverdue: overdueRule,
		}),
		workflow.State(StatusThreeWayMismatch): payable(map[workflow.Action]workflow.Rule{
			ActionMatch:  {Next: workflow.State(StatusThreeWayMatched)},
			ActionCancel: cancelRule,
			ActionHold:   holdRule,
		}),
		workflow.State(StatusPartiallyPaid): payable(map[workflow.Action]workflow.Rule{
			ActionMarkOverdue: overdueRule,
		}),
		workflow.State(StatusOverdue): payable(map[workflow.Action]workflow.Rule{
			ActionCancel: cancelRule,
			ActionHold:   holdRule,
		}),
		workflow.State(StatusOnHold): {
			ActionResume: {Next: workflow.State(StatusPendingApproval)},
			ActionCancel: cancelRule,
		},
	},
}

// Invoice is the supplier invoice header plus its lines and payments.
type Invoice struct {
	ID             int64           `json:"id"`
	Number         string          `json:"number"`
	SupplierRef    string          `json:"supplierInvoiceNo,omitempty"`
	Status         Status          `json:"status"`
	Type           InvoiceType     `json:"type"`
	POID           *int64          `json:"poId,omitempty"`
	PONumber       string          `json:"poNumber,omitempty"`
	GRNID          *int64          `json:"grnId,omitempty"`
	GRNNumber      string          `json:"grnNumber,omitempty"`
	SupplierID     int64           `json:"supplierId"`
	SupplierName   string          `json:"supplierName"`
	InvoiceDate    time.Time       `json:"invoiceDate"`
	DueDate        time.Time       `json:"dueDate"`
	PaymentTerms   string          `json:"paymentTerms"`
	Currency       string          `json:"currency"`
	ExchangeRate   decimal.Decimal `json:"exchangeRate"`
	StatusReason   string          `json:"statusReason,omitempty"`
	ApprovedBy     string          `json:"approvedBy,omitempty"`
	ApprovedAt     *time.Time      `json:"approvedAt,omitempty"`
	SubTotal       decimal.Decimal `json:"subTotal"`
	TaxAmount      decimal.Decimal `json:"taxAmount"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	FreightCharges decimal.Decimal `json:"freightCharges"`
	OtherCharges   decimal.Decimal `json:"otherCharges"`
	GrandTotal     decimal.Decimal `json:"grandTotal"`
	PaidAmount     decimal.Decimal `json:"paidAmount"`
	BalanceAmount  decimal.Decimal `json:"balanceAmount"`
	Items          []Item          `json:"items,omitempty"`
	Payments       []Payment       `json:"payments,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Item is one billed line. Amounts follow the shared calculation chain:
// base, then discount, then taxable, then each tax, then the line total.
type Item struct {
	ID                 int64           `json:"id"`
	InvoiceID          int64           `json:"invoiceId"`
	POItemID           *int64          `json:"poItemId,omitempty"`
	GRNItemID          *int64          `json:"grnItemId,omitempty"`
	ItemName           string          `json:"itemName"`
	ItemCode           string          `json:"itemCode"`
	UOM                string          `json:"uom"`
	InvoiceQuantity    decimal.Decimal `json:"invoiceQuantity"`
	UnitPrice          decimal.Decimal `json:"unitPrice"`
	DiscountPercentage decimal.Decimal `json:"discountPercentage"`
	BaseAmount         decimal.Decimal `json:"baseAmount"`
	DiscountAmount     decimal.Decimal `json:"discountAmount"`
	TaxableAmount      decimal.Decimal `json:"taxableAmount"`
	CGSTRate           decimal.Decimal `json:"cgstRate"`
	CGSTAmount         decimal.Decimal `json:"cgstAmount"`
	SGSTRate           decimal.Decimal `json:"sgstRate"`
	SGSTAmount         decimal.Decimal `json:"sgstAmount"`
	IGSTRate           decimal.Decimal `json:"igstRate"`
	IGSTAmount         decimal.Decimal `json:"igstAmount"`
	OtherTaxRate       decimal.Decimal `json:"otherTaxRate"`
	OtherTaxAmount     decimal.Decimal `json:"otherTaxAmount"`
	TotalTaxAmount     decimal.Decimal `json:"totalTaxAmount"`
	TotalAmount        decimal.Decimal `json:"totalAmount"`
}

// Payment is one recorded settlement against the invoice.
type Payment struct {
	ID        int64           `json:"id"`
	InvoiceID int64           `json:"invoiceId"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method,omitempty"`
	Reference string          `json:"reference,omitempty"`
	PaidAt    time.Time       `json:"paidAt"`
	Notes     string          `json:"notes,omitempty"`
}

// ListFilters narrows invoice list queries.
type ListFilters struct {
	Status  string
	POID    int64
	GRNID   int64
	Search  string
	DueFrom time.Time
	DueTo   time.Time
	SortBy  string
	SortDir string
}

var (
	ErrNotFound    = errors.New("invoice: not found")
	ErrValidation  = errors.New("invoice: validation failed")
	ErrNotEditable = errors.New("invoice: document is not editable")
	ErrOverpayment = errors.New("invoice: payment exceeds outstanding balance")
)
