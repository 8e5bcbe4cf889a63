// Package purchaseorder implements the purchase order document lifecycle.
package purchaseorder

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/procura-erp/procura/internal/workflow"
)

// Status is the purchase order lifecycle status.
type Status string

const (
	StatusDraft              Status = "DRAFT"
	StatusSubmitted          Status = "SUBMITTED"
	StatusApproved           Status = "APPROVED"
	StatusRejected           Status = "REJECTED"
	StatusPartiallyDelivered Status = "PARTIALLY_DELIVERED"
	StatusDelivered          Status = "DELIVERED"
	StatusPartiallyInvoiced  Status = "PARTIALLY_INVOICED"
	StatusInvoiced           Status = "INVOICED"
	StatusClosed             Status = "CLOSED"
	StatusCancelled          Status = "CANCELLED"
)

// OrderType classifies the purchase order.
type OrderType string

const (
	TypeDirect   OrderType = "DIRECT"
	TypeIndirect OrderType = "INDIRECT"
	TypeService  OrderType = "SERVICE"
	TypeCapex    OrderType = "CAPEX"
	TypeOpex     OrderType = "OPEX"
)

// Workflow actions.
const (
	ActionSubmit         workflow.Action = "SUBMIT"
	ActionApprove        workflow.Action = "APPROVE"
	ActionReject         workflow.Action = "REJECT"
	ActionCancel         workflow.Action = "CANCEL"
	ActionReceivePartial workflow.Action = "RECEIVE_PARTIAL"
	ActionReceiveFull    workflow.Action = "RECEIVE_FULL"
	ActionInvoicePartial workflow.Action = "INVOICE_PARTIAL"
	ActionInvoiceFull    workflow.Action = "INVOICE_FULL"
	ActionClose          workflow.Action = "CLOSE"
)

// Transitions is the purchase order status table. Cancellation is allowed
// from every non-terminal state before CLOSED and always demands a reason.
var Transitions = workflow.Definition{
	Name:    "purchase order",
	Initial: workflow.State(StatusDraft),
	Terminal: map[workflow.State]bool{
		workflow.State(StatusRejected):  true,
		workflow.State(StatusClosed):    true,
		workflow.State(StatusCancelled): true,
	},
	Transitions: map[workflow.State]map[workflow.Action]workflow.Rule{
		workflow.State(StatusDraft): {
			ActionSubmit: {Next: workflow.State(StatusSubmitted)},
			ActionCancel: {Next: workflow.State(StatusCancelled), RequireReason: true},
		},
		workflow.State(StatusSubmitted): {
			ActionSubmit:  {Next: workflow.State(StatusSubmitted)},
			ActionApprove: {Next: workflow.State(StatusApproved)},
			ActionReject:  {Next: workflow.State(StatusRejected), RequireReason: true},
			ActionCancel:  {Next: workflow.State(StatusCancelled), RequireReason: true},
		},
		workflow.State(StatusApproved): {
			ActionReceivePartial: {Next: workflow.State(StatusPartiallyDelivered)},
			ActionReceiveFull:    {Next: workflow.State(StatusDelivered)},
			ActionCancel:         {Next: workflow.State(StatusCancelled), RequireReason: true},
		},
		workflow.State(StatusPartiallyDelivered): {
			ActionReceivePartial: {Next: workflow.State(StatusPartiallyDelivered)},
			ActionReceiveFull:    {Next: workflow.State(StatusDelivered)},
			ActionCancel:         {Next: workflow.State(StatusCancelled), RequireReason: true},
		},
		workflow.State(StatusDelivered): {
			ActionInvoicePartial: {Next: workflow.State(StatusPartiallyInvoiced)},
			ActionInvoiceFull:    {Next: workflow.State(StatusInvoiced)},
			ActionCancel:         {Next: workflow.State(StatusCancelled), RequireReason: true},
		},
		workflow.State(StatusPartiallyInvoiced): {
			ActionInvoicePartial: {Next: workflow.State(StatusPartiallyInvoiced)},
			ActionInvoiceFull:    {Next: workflow.State(StatusInvoiced)},
			ActionCancel:         {Next: workflow.State(StatusCancelled), RequireReason: true},
		},
		workflow.State(StatusInvoiced): {
			ActionClose:  {Next: workflow.State(StatusClosed)},
			ActionCancel: {Next: workflow.State(StatusCancelled), RequireReason: true},
		},
	},
}

// PurchaseOrder is the document header with computed totals.
type PurchaseOrder struct {
	ID               int64           `json:"id"`
	Number           string          `json:"number"`
	Status           Status          `json:"status"`
	Type             OrderType       `json:"type"`
	SupplierID       int64           `json:"supplierId"`
	SupplierName     string          `json:"supplierName"`
	OrderDate        time.Time       `json:"orderDate"`
	DeliveryDate     time.Time       `json:"deliveryDate"`
	PaymentTerms     string          `json:"paymentTerms"`
	RaisedBy         string          `json:"raisedBy"`
	ApprovedBy       string          `json:"approvedBy,omitempty"`
	ApprovedAt       *time.Time      `json:"approvedAt,omitempty"`
	StatusReason     string          `json:"statusReason,omitempty"`
	QuotationID      *int64          `json:"quotationId,omitempty"`
	IsGRNCreated     bool            `json:"isGrnCreated"`
	IsInvoiceCreated bool            `json:"isInvoiceCreated"`
	SubTotal         decimal.Decimal `json:"subTotal"`
	TaxAmount        decimal.Decimal `json:"taxAmount"`
	DiscountAmount   decimal.Decimal `json:"discountAmount"`
	FreightCharges   decimal.Decimal `json:"freightCharges"`
	GrandTotal       decimal.Decimal `json:"grandTotal"`
	Items            []Item          `json:"items"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// Item is a purchase order line. TotalAmount is qty x price; GrandTotal adds
// both tax splits.
type Item struct {
	ID               int64           `json:"id"`
	POID             int64           `json:"poId"`
	ItemName         string          `json:"itemName"`
	ItemCode         string          `json:"itemCode"`
	Description      string          `json:"description,omitempty"`
	Quantity         decimal.Decimal `json:"quantity"`
	UnitPrice        decimal.Decimal `json:"unitPrice"`
	UOM              string          `json:"uom"`
	Tax1Type         string          `json:"tax1Type,omitempty"`
	Tax1Rate         decimal.Decimal `json:"tax1Rate"`
	Tax1Amount       decimal.Decimal `json:"tax1Amount"`
	Tax2Type         string          `json:"tax2Type,omitempty"`
	Tax2Rate         decimal.Decimal `json:"tax2Rate"`
	Tax2Amount       decimal.Decimal `json:"tax2Amount"`
	TotalAmount      decimal.Decimal `json:"totalAmount"`
	GrandTotal       decimal.Decimal `json:"grandTotal"`
	ReceivedQuantity decimal.Decimal `json:"receivedQuantity"`
	PendingQuantity  decimal.Decimal `json:"pendingQuantity"`
	InvoicedQuantity decimal.Decimal `json:"invoicedQuantity"`
}

// ListFilters narrows purchase order listings.
type ListFilters struct {
	Status     string
	SupplierID int64
	Search     string
	SortBy     string
	SortDir    string
}

var (
	// ErrNotFound indicates record missing.
	ErrNotFound = errors.New("purchaseorder: not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("purchaseorder: invalid input")
	// ErrNotEditable occurs when mutating a PO that left DRAFT.
	ErrNotEditable = errors.New("purchaseorder: only draft orders can be edited")
)
