// Package grn records goods receipts raised against approved purchase orders.
package grn

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/procura-erp/procura/internal/workflow"
)

// Status enumerates goods receipt note states. Receipt completeness and
// quality-check outcome share the same status field, so only one of them is
// current at a time.
type Status string

const (
	StatusDraft             Status = "DRAFT"
	StatusPendingApproval   Status = "PENDING_APPROVAL"
	StatusApproved          Status = "APPROVED"
	StatusRejected          Status = "REJECTED"
	StatusPartiallyReceived Status = "PARTIALLY_RECEIVED"
	StatusFullyReceived     Status = "FULLY_RECEIVED"
	StatusQualityPending    Status = "QUALITY_CHECK_PENDING"
	StatusQualityPassed     Status = "QUALITY_CHECK_PASSED"
	StatusQualityFailed     Status = "QUALITY_CHECK_FAILED"
	StatusClosed            Status = "CLOSED"
	StatusCancelled         Status = "CANCELLED"
)

// GRNType classifies the receipt.
type GRNType string

const (
	TypeStandard    GRNType = "STANDARD"
	TypePartial     GRNType = "PARTIAL"
	TypeReturn      GRNType = "RETURN"
	TypeReplacement GRNType = "REPLACEMENT"
	TypeService     GRNType = "SERVICE"
)

// QualityStatus is the per-line inspection outcome.
type QualityStatus string

const (
	QualityPending QualityStatus = "PENDING"
	QualityPassed  QualityStatus = "PASSED"
	QualityFailed  QualityStatus = "FAILED"
)

// Workflow actions.
const (
	ActionSubmit       workflow.Action = "SUBMIT"
	ActionApprove      workflow.Action = "APPROVE"
	ActionReject       workflow.Action = "REJECT"
	ActionCancel       workflow.Action = "CANCEL"
	ActionMarkPartial  workflow.Action = "MARK_PARTIAL"
	ActionMarkFull     workflow.Action = "MARK_FULL"
	ActionStartQC      workflow.Action = "START_QC"
	ActionPassQC       workflow.Action = "PASS_QC"
	ActionFailQC       workflow.Action = "FAIL_QC"
	ActionClose        workflow.Action = "CLOSE"
)

var cancelRule = workflow.Rule{Next: workflow.State(StatusCancelled), RequireReason: true}

// Transitions is the central goods receipt state machine. Approval is allowed
// straight from DRAFT ("save and approve"); there is no mandatory submit step.
var Transitions = workflow.Definition{
	Name:     "grn",
	Initial:  workflow.State(StatusDraft),
	Terminal: map[workflow.State]bool{
		workflow.State(StatusRejected):  true,
		workflow.State(StatusClosed):    true,
		workflow.State(StatusCancelled): true,
	},
	Transitions: map[workflow.State]map[workflow.Action]workflow.Rule{
		workflow.State(StatusDraft): {
			ActionSubmit:  {Next: workflow.State(StatusPendingApproval)},
			ActionApprove: {Next: workflow.State(StatusApproved)},
			ActionCancel:  cancelRule,
		},
		workflow.State(StatusPendingApproval): {
			ActionApprove: {Next: workflow.State(StatusApproved)},
			ActionReject:  {Next: workflow.State(StatusRejected), RequireReason: true},
			ActionCancel:  cancelRule,
		},
		workflow.State(StatusApproved): {
			ActionMarkPartial: {Next: workflow.State(StatusPartiallyReceived)},
			ActionMarkFull:    {Next: workflow.State(StatusFullyReceived)},
			ActionStartQC:     {Next: workflow.State(StatusQualityPending)},
			ActionClose:       {Next: workflow.State(StatusClosed)},
			ActionCancel:      cancelRule,
		},
		workflow.State(StatusPartiallyReceived): {
			ActionMarkFull: {Next: workflow.State(StatusFullyReceived)},
			ActionStartQC:  {Next: workflow.State(StatusQualityPending)},
			ActionClose:    {Next: workflow.State(StatusClosed)},
			ActionCancel:   cancelRule,
		},
		workflow.State(StatusFullyReceived): {
			ActionStartQC: {Next: workflow.State(StatusQualityPending)},
			ActionClose:   {Next: workflow.State(StatusClosed)},
			ActionCancel:  cancelRule,
		},
		workflow.State(StatusQualityPending): {
			ActionPassQC: {Next: workflow.State(StatusQualityPassed)},
			ActionFailQC: {Next: workflow.State(StatusQualityFailed), RequireReason: true},
			ActionCancel: cancelRule,
		},
		workflow.State(StatusQualityPassed): {
			ActionClose:  {Next: workflow.State(StatusClosed)},
			ActionCancel: cancelRule,
		},
		workflow.State(StatusQualityFailed): {
			ActionClose:  {Next: workflow.State(StatusClosed)},
			ActionCancel: cancelRule,
		},
	},
}

// GRN is a goods receipt note header plus its lines.
type GRN struct {
	ID                 int64           `json:"id"`
	Number             string          `json:"number"`
	Status             Status          `json:"status"`
	Type               GRNType         `json:"type"`
	POID               int64           `json:"poId"`
	PONumber           string          `json:"poNumber"`
	SupplierID         int64           `json:"supplierId"`
	SupplierName       string          `json:"supplierName"`
	ReceivedDate       time.Time       `json:"receivedDate"`
	DeliveryChallanNo  string          `json:"deliveryChallanNo"`
	VehicleNo          string          `json:"vehicleNo"`
	TransporterName    string          `json:"transporterName"`
	StatusReason       string          `json:"statusReason,omitempty"`
	ApprovedBy         string          `json:"approvedBy,omitempty"`
	ApprovedAt         *time.Time      `json:"approvedAt,omitempty"`
	QualityCheckStatus QualityStatus   `json:"qualityCheckStatus"`
	TotalReceivedValue decimal.Decimal `json:"totalReceivedValue"`
	Items              []Item          `json:"items,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// Item is one received line against a purchase order line.
type Item struct {
	ID               int64           `json:"id"`
	GRNID            int64           `json:"grnId"`
	POItemID         int64           `json:"poItemId"`
	ItemName         string          `json:"itemName"`
	ItemCode         string          `json:"itemCode"`
	UOM              string          `json:"uom"`
	POQuantity       decimal.Decimal `json:"poQuantity"`
	ReceivedQuantity decimal.Decimal `json:"receivedQuantity"`
	AcceptedQuantity decimal.Decimal `json:"acceptedQuantity"`
	RejectedQuantity decimal.Decimal `json:"rejectedQuantity"`
	PendingQuantity  decimal.Decimal `json:"pendingQuantity"`
	UnitPrice        decimal.Decimal `json:"unitPrice"`
	TotalValue       decimal.Decimal `json:"totalValue"`
	QualityStatus    QualityStatus   `json:"qualityStatus"`
	BatchNo          string          `json:"batchNo,omitempty"`
	SerialNo         string          `json:"serialNo,omitempty"`
	StorageLocation  string          `json:"storageLocation,omitempty"`
	Remarks          string          `json:"remarks,omitempty"`
}

// ListFilters narrows goods receipt list queries.
type ListFilters struct {
	Status  string
	POID    int64
	Search  string
	SortBy  string
	SortDir string
}

var (
	ErrNotFound    = errors.New("grn: not found")
	ErrValidation  = errors.New("grn: validation failed")
	ErrNotEditable = errors.New("grn: document is not editable")
)
