package purchaseorder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/procura-erp/procura/internal/pricing"
	"github.com/procura-erp/procura/internal/rfp"
	"github.com/procura-erp/procura/internal/shared"
	"github.com/procura-erp/procura/internal/workflow"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (PurchaseOrder, error)
	List(ctx context.Context, filters ListFilters, limit, offset int) ([]PurchaseOrder, int, error)
	NextSequence(ctx context.Context, fiscalYear string) (int64, error)
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	CreateHeader(ctx context.Context, po PurchaseOrder) (int64, error)
	UpdateHeader(ctx context.Context, po PurchaseOrder) error
	ReplaceItems(ctx context.Context, poID int64, items []Item) error
	UpdateStatus(ctx context.Context, id int64, status Status, reason string) error
	SetApproval(ctx context.Context, id int64, approvedBy string, approvedAt time.Time) error
	SetGRNCreated(ctx context.Context, id int64, created bool) error
	SetInvoiceCreated(ctx context.Context, id int64, created bool) error
	UpdateItemProgress(ctx context.Context, itemID int64, received, pending, invoiced decimal.Decimal) error
}

// QuotationPort exposes the RFP integration used to derive purchase orders.
type QuotationPort interface {
	GetQuotation(ctx context.Context, id int64) (rfp.Quotation, []rfp.QuotationLine, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates the purchase order lifecycle.
type Service struct {
	repo        RepositoryPort
	quotations  QuotationPort
	approvals   *shared.ApprovalRecorder
	audit       AuditPort
	idempotency *shared.IdempotencyStore
}

// NewService constructs the purchase order service.
func NewService(repo RepositoryPort, quotations QuotationPort, approvals *shared.ApprovalRecorder, audit AuditPort, idem *shared.IdempotencyStore) *Service {
	return &Service{repo: repo, quotations: quotations, approvals: approvals, audit: audit, idempotency: idem}
}

// ItemInput describes an editable purchase order line.
type ItemInput struct {
	ItemName    string          `json:"itemName" validate:"required"`
	ItemCode    string          `json:"itemCode"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	UOM         string          `json:"uom"`
	Tax1Type    string          `json:"tax1Type"`
	Tax1Rate    decimal.Decimal `json:"tax1Rate"`
	Tax2Type    string          `json:"tax2Type"`
	Tax2Rate    decimal.Decimal `json:"tax2Rate"`
}

// CreateInput describes the creation payload.
type CreateInput struct {
	Number         string          `json:"number"`
	Type           OrderType       `json:"type"`
	SupplierID     int64           `json:"supplierId" validate:"required"`
	SupplierName   string          `json:"supplierName"`
	OrderDate      time.Time       `json:"orderDate"`
	DeliveryDate   time.Time       `json:"deliveryDate"`
	PaymentTerms   string          `json:"paymentTerms"`
	RaisedBy       string          `json:"raisedBy"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	FreightCharges decimal.Decimal `json:"freightCharges"`
	Items          []ItemInput     `json:"items" validate:"min=1,dive"`
}

// UpdateInput mirrors CreateInput for draft edits.
type UpdateInput = CreateInput

// buildItems runs every line through the shared pricing contract and returns
// the recomputed lines plus header totals.
func buildItems(inputs []ItemInput, docDiscount, freight decimal.Decimal) ([]Item, pricing.DocumentTotals, error) {
	if len(inputs) == 0 {
		return nil, pricing.DocumentTotals{}, fmt.Errorf("%w: at least one line item required", ErrValidation)
	}
	items := make([]Item, 0, len(inputs))
	lines := make([]pricing.LineAmounts, 0, len(inputs))
	for i, in := range inputs {
		if strings.TrimSpace(in.ItemName) == "" {
			return nil, pricing.DocumentTotals{}, fmt.Errorf("%w: line %d item name required", ErrValidation, i+1)
		}
		if !in.Quantity.IsPositive() {
			return nil, pricing.DocumentTotals{}, fmt.Errorf("%w: line %d quantity must be greater than zero", ErrValidation, i+1)
		}
		amounts, err := pricing.ComputeLine(pricing.LineInput{
			Qty:       in.Quantity,
			UnitPrice: in.UnitPrice,
			Taxes: []pricing.TaxRate{
				{Kind: in.Tax1Type, Rate: in.Tax1Rate},
				{Kind: in.Tax2Type, Rate: in.Tax2Rate},
			},
		})
		if err != nil {
			return nil, pricing.DocumentTotals{}, fmt.Errorf("%w: line %d: %v", ErrValidation, i+1, err)
		}
		item := Item{
			ItemName:        in.ItemName,
			ItemCode:        in.ItemCode,
			Description:     in.Description,
			Quantity:        in.Quantity,
			UnitPrice:       in.UnitPrice,
			UOM:             in.UOM,
			Tax1Type:        in.Tax1Type,
			Tax1Rate:        in.Tax1Rate,
			Tax1Amount:      amounts.Taxes[0].Amount,
			Tax2Type:        in.Tax2Type,
			Tax2Rate:        in.Tax2Rate,
			Tax2Amount:      amounts.Taxes[1].Amount,
			TotalAmount:     amounts.Base,
			GrandTotal:      amounts.Total,
			PendingQuantity: in.Quantity,
		}
		items = append(items, item)
		lines = append(lines, amounts)
	}
	totals := pricing.ComputeDocument(pricing.DocumentInput{
		Lines:          lines,
		DiscountAmount: docDiscount,
		FreightCharges: freight,
	})
	return items, totals, nil
}

// Create persists a new draft purchase order with computed totals.
func (s *Service) Create(ctx context.Context, input CreateInput) (PurchaseOrder, error) {
	if input.SupplierID == 0 {
		return PurchaseOrder{}, fmt.Errorf("%w: supplier required", ErrValidation)
	}
	items, totals, err := buildItems(input.Items, input.DiscountAmount, input.FreightCharges)
	if err != nil {
		return PurchaseOrder{}, err
	}
	number := input.Number
	if number == "" {
		if number, err = s.GenerateNumber(ctx); err != nil {
			return PurchaseOrder{}, err
		}
	}
	orderType := input.Type
	if orderType == "" {
		orderType = TypeDirect
	}
	po := PurchaseOrder{
		Number:         number,
		Status:         StatusDraft,
		Type:           orderType,
		SupplierID:     input.SupplierID,
		SupplierName:   input.SupplierName,
		OrderDate:      defaultTime(input.OrderDate),
		DeliveryDate:   input.DeliveryDate,
		PaymentTerms:   input.PaymentTerms,
		RaisedBy:       input.RaisedBy,
		SubTotal:       totals.SubTotal,
		TaxAmount:      totals.TaxAmount,
		DiscountAmount: totals.DiscountAmount,
		FreightCharges: totals.FreightCharges,
		GrandTotal:     totals.GrandTotal,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreateHeader(ctx, po)
		if err != nil {
			return err
		}
		po.ID = id
		if err := tx.ReplaceItems(ctx, id, items); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.Items = items
	s.recordAudit(ctx, input.RaisedBy, "PO_CREATE", po.ID, map[string]any{"number": po.Number, "grandTotal": po.GrandTotal})
	return po, nil
}

// CreateFromRFP derives a draft purchase order from an approved quotation.
func (s *Service) CreateFromRFP(ctx context.Context, rfpID int64, actor string) (PurchaseOrder, error) {
	if s.quotations == nil {
		return PurchaseOrder{}, fmt.Errorf("%w: rfp integration not configured", ErrValidation)
	}
	quotation, lines, err := s.quotations.GetQuotation(ctx, rfpID)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if quotation.Status != rfp.StatusApproved {
		return PurchaseOrder{}, fmt.Errorf("%w: quotation %s is not approved", workflow.ErrTransition, quotation.Number)
	}
	inputs := make([]ItemInput, 0, len(lines))
	for _, line := range lines {
		inputs = append(inputs, ItemInput{
			ItemName:  line.ItemName,
			ItemCode:  line.ItemCode,
			Quantity:  line.Qty,
			UnitPrice: line.UnitPrice,
			UOM:       line.UOM,
			Tax1Type:  line.Tax1Type,
			Tax1Rate:  line.Tax1Rate,
			Tax2Type:  line.Tax2Type,
			Tax2Rate:  line.Tax2Rate,
		})
	}
	po, err := s.Create(ctx, CreateInput{
		SupplierID:   quotation.SupplierID,
		SupplierName: quotation.SupplierName,
		PaymentTerms: quotation.PaymentTerms,
		RaisedBy:     actor,
		Items:        inputs,
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		updated := po
		updated.QuotationID = &quotation.ID
		return tx.UpdateHeader(ctx, updated)
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.QuotationID = &quotation.ID
	s.recordAudit(ctx, actor, "PO_CREATE_FROM_RFP", po.ID, map[string]any{"number": po.Number, "rfpId": rfpID})
	return po, nil
}

// Update replaces header fields and lines. Permitted only while DRAFT; totals
// are recomputed on every edit.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (PurchaseOrder, error) {
	po, err := s.repo.Get(ctx, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if po.Status != StatusDraft {
		return PurchaseOrder{}, ErrNotEditable
	}
	items, totals, err := buildItems(input.Items, input.DiscountAmount, input.FreightCharges)
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.Type = defaultOrderType(input.Type, po.Type)
	if input.SupplierID != 0 {
		po.SupplierID = input.SupplierID
		po.SupplierName = input.SupplierName
	}
	if !input.OrderDate.IsZero() {
		po.OrderDate = input.OrderDate
	}
	po.DeliveryDate = input.DeliveryDate
	po.PaymentTerms = input.PaymentTerms
	if input.RaisedBy != "" {
		po.RaisedBy = input.RaisedBy
	}
	po.SubTotal = totals.SubTotal
	po.TaxAmount = totals.TaxAmount
	po.DiscountAmount = totals.DiscountAmount
	po.FreightCharges = totals.FreightCharges
	po.GrandTotal = totals.GrandTotal
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateHeader(ctx, po); err != nil {
			return err
		}
		return tx.ReplaceItems(ctx, id, items)
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.Items = items
	s.recordAudit(ctx, po.RaisedBy, "PO_UPDATE", id, map[string]any{"number": po.Number})
	return po, nil
}

// Get fetches one purchase order with items.
func (s *Service) Get(ctx context.Context, id int64) (PurchaseOrder, error) {
	return s.repo.Get(ctx, id)
}

// List returns a page of purchase orders plus the unfiltered total.
func (s *Service) List(ctx context.Context, filters ListFilters, limit, offset int) ([]PurchaseOrder, int, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.repo.List(ctx, filters, limit, offset)
}

// GenerateNumber allocates the next PO/<FY>/<seq> document number.
func (s *Service) GenerateNumber(ctx context.Context) (string, error) {
	fy := FiscalYear(time.Now())
	seq, err := s.repo.NextSequence(ctx, fy)
	if err != nil {
		return "", err
	}
	return FormatNumber("PO", fy, seq), nil
}

// Submit moves the order to SUBMITTED after the required header fields check.
func (s *Service) Submit(ctx context.Context, id int64, actor string) error {
	po, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	next, err := Transitions.Apply(workflow.State(po.Status), ActionSubmit, "")
	if err != nil {
		return err
	}
	if strings.TrimSpace(po.RaisedBy) == "" {
		return fmt.Errorf("%w: raisedBy required before submit", ErrValidation)
	}
	if po.OrderDate.IsZero() || po.DeliveryDate.IsZero() {
		return fmt.Errorf("%w: order and delivery dates required before submit", ErrValidation)
	}
	if strings.TrimSpace(po.PaymentTerms) == "" {
		return fmt.Errorf("%w: payment terms required before submit", ErrValidation)
	}
	ref := shared.DocumentRef("PO", id)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateStatus(ctx, id, Status(next), "")
	})
	if err != nil {
		return err
	}
	if s.approvals != nil {
		_ = s.approvals.EnsureSubmit(ctx, "PO", ref, actor, fmt.Sprintf("PO %s submitted", po.Number))
	}
	s.recordAudit(ctx, actor, "PO_SUBMIT", id, map[string]any{"number": po.Number})
	return nil
}

// Approve records the approver and date. The approval date must not precede
// the order date.
func (s *Service) Approve(ctx context.Context, id int64, approvedBy string, approvalDate time.Time, idemKey string) error {
	if strings.TrimSpace(approvedBy) == "" {
		return fmt.Errorf("%w: approvedBy required", ErrValidation)
	}
	po, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	next, err := Transitions.Apply(workflow.State(po.Status), ActionApprove, "")
	if err != nil {
		return err
	}
	approvalDate = defaultTime(approvalDate)
	if approvalDate.Before(truncateDay(po.OrderDate)) {
		return fmt.Errorf("%w: approval date before order date", ErrValidation)
	}
	inserted := false
	if s.idempotency != nil && idemKey != "" {
		if err := s.idempotency.CheckAndInsert(ctx, idemKey, "purchaseorder.approve"); err != nil {
			return err
		}
		inserted = true
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateStatus(ctx, id, Status(next), ""); err != nil {
			return err
		}
		return tx.SetApproval(ctx, id, approvedBy, approvalDate)
	})
	if err != nil {
		if inserted {
			_ = s.idempotency.Delete(ctx, idemKey)
		}
		return err
	}
	if s.approvals != nil {
		_ = s.approvals.Record(ctx, shared.ApprovalLog{Module: "PO", RefID: shared.DocumentRef("PO", id), Actor: approvedBy, Action: shared.ApprovalApprove, Note: fmt.Sprintf("PO %s approved", po.Number)})
	}
	s.recordAudit(ctx, approvedBy, "PO_APPROVE", id, map[string]any{"number": po.Number})
	return nil
}

// Reject is terminal and demands a reason.
func (s *Service) Reject(ctx context.Context, id int64, actor, reason string) error {
	return s.transitionWithReason(ctx, id, actor, ActionReject, reason, "PO_REJECT", shared.ApprovalReject)
}

// Cancel is terminal, allowed from any pre-closed non-terminal state, and
// demands a reason. No compensating GRN/invoice rollback happens here.
func (s *Service) Cancel(ctx context.Context, id int64, actor, reason string) error {
	return s.transitionWithReason(ctx, id, actor, ActionCancel, reason, "PO_CANCEL", shared.ApprovalCancel)
}

// Close finishes a fully invoiced order.
func (s *Service) Close(ctx context.Context, id int64, actor string) error {
	po, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	next, err := Transitions.Apply(workflow.State(po.Status), ActionClose, "")
	if err != nil {
		return err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateStatus(ctx, id, Status(next), "")
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actor, "PO_CLOSE", id, map[string]any{"number": po.Number})
	return nil
}

func (s *Service) transitionWithReason(ctx context.Context, id int64, actor string, action workflow.Action, reason, auditAction string, approvalAction shared.ApprovalAction) error {
	po, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	next, err := Transitions.Apply(workflow.State(po.Status), action, reason)
	if err != nil {
		return err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateStatus(ctx, id, Status(next), reason)
	})
	if err != nil {
		return err
	}
	if s.approvals != nil && actor != "" {
		_ = s.approvals.Record(ctx, shared.ApprovalLog{Module: "PO", RefID: shared.DocumentRef("PO", id), Actor: actor, Action: approvalAction, Note: reason})
	}
	s.recordAudit(ctx, actor, auditAction, id, map[string]any{"number": po.Number, "reason": reason})
	return nil
}

// ReceiptProgress is reported by the GRN module after a receipt is approved.
type ReceiptProgress struct {
	POItemID         int64
	AcceptedQuantity decimal.Decimal
}

// ApplyReceipt folds approved GRN quantities into the order: per-line received
// and pending quantities, the isGrnCreated flag, and the delivery status.
func (s *Service) ApplyReceipt(ctx context.Context, poID int64, progress []ReceiptProgress) error {
	po, err := s.repo.Get(ctx, poID)
	if err != nil {
		return err
	}
	byItem := make(map[int64]decimal.Decimal, len(progress))
	for _, p := range progress {
		byItem[p.POItemID] = byItem[p.POItemID].Add(p.AcceptedQuantity)
	}
	fullyReceived := true
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, item := range po.Items {
			accepted, ok := byItem[item.ID]
			if !ok && item.ReceivedQuantity.IsZero() {
				fullyReceived = false
				continue
			}
			received := item.ReceivedQuantity.Add(accepted)
			pending := item.Quantity.Sub(received)
			if pending.IsPositive() {
				fullyReceived = false
			}
			if err := tx.UpdateItemProgress(ctx, item.ID, received, pending, item.InvoicedQuantity); err != nil {
				return err
			}
		}
		if err := tx.SetGRNCreated(ctx, poID, true); err != nil {
			return err
		}
		action := ActionReceivePartial
		if fullyReceived {
			action = ActionReceiveFull
		}
		next, err := Transitions.Apply(workflow.State(po.Status), action, "")
		if err != nil {
			// Receipt against an already-delivered order leaves the status alone.
			return nil
		}
		return tx.UpdateStatus(ctx, poID, Status(next), "")
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "", "PO_RECEIPT_APPLIED", poID, map[string]any{"number": po.Number, "full": fullyReceived})
	return nil
}

// InvoiceProgress is reported by the invoice module on submit.
type InvoiceProgress struct {
	POItemID int64
	Quantity decimal.Decimal
}

// ApplyInvoice folds invoiced quantities into the order and advances the
// invoicing status once the order has been delivered.
func (s *Service) ApplyInvoice(ctx context.Context, poID int64, progress []InvoiceProgress) error {
	po, err := s.repo.Get(ctx, poID)
	if err != nil {
		return err
	}
	byItem := make(map[int64]decimal.Decimal, len(progress))
	for _, p := range progress {
		byItem[p.POItemID] = byItem[p.POItemID].Add(p.Quantity)
	}
	fullyInvoiced := true
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, item := range po.Items {
			invoiced := item.InvoicedQuantity.Add(byItem[item.ID])
			if invoiced.LessThan(item.Quantity) {
				fullyInvoiced = false
			}
			if err := tx.UpdateItemProgress(ctx, item.ID, item.ReceivedQuantity, item.PendingQuantity, invoiced); err != nil {
				return err
			}
		}
		if err := tx.SetInvoiceCreated(ctx, poID, true); err != nil {
			return err
		}
		action := ActionInvoicePartial
		if fullyInvoiced {
			action = ActionInvoiceFull
		}
		next, err := Transitions.Apply(workflow.State(po.Status), action, "")
		if err != nil {
			// Invoicing before delivery completes only sets the linkage flag.
			return nil
		}
		return tx.UpdateStatus(ctx, poID, Status(next), "")
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "", "PO_INVOICE_APPLIED", poID, map[string]any{"number": po.Number, "full": fullyInvoiced})
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actor, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Actor: actor, Action: action, Entity: "purchaseorder", EntityID: fmt.Sprintf("%d", entityID), Meta: meta})
}

func defaultTime(value time.Time) time.Time {
	if value.IsZero() {
		return time.Now()
	}
	return value
}

func defaultOrderType(value, fallback OrderType) OrderType {
	if value == "" {
		return fallback
	}
	return value
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
