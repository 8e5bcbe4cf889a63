package invoice

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/procura-erp/procura/internal/grn"
	"github.com/procura-erp/procura/internal/pricing"
	"github.com/procura-erp/procura/internal/purchaseorder"
	"github.com/procura-erp/procura/internal/shared"
	"github.com/procura-erp/procura/internal/workflow"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Invoice, error)
	List(ctx context.Context, filters ListFilters, limit, offset int) ([]Invoice, int, error)
	ListDueBefore(ctx context.Context, cutoff time.Time) ([]Invoice, error)
	NextSequence(ctx context.Context, fiscalYear string) (int64, error)
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	CreateHeader(ctx context.Context, inv Invoice) (int64, error)
	UpdateHeader(ctx context.Context, inv Invoice) error
	ReplaceItems(ctx context.Context, invoiceID int64, items []Item) error
	UpdateStatus(ctx context.Context, id int64, status Status, reason string) error
	SetApproval(ctx context.Context, id int64, approvedBy string, approvedAt time.Time) error
	AddPayment(ctx context.Context, p Payment) (int64, error)
	UpdatePaid(ctx context.Context, id int64, paid, balance decimal.Decimal) error
}

// OrderPort is the purchase order integration.
type OrderPort interface {
	Get(ctx context.Context, id int64) (purchaseorder.PurchaseOrder, error)
	ApplyInvoice(ctx context.Context, poID int64, progress []purchaseorder.InvoiceProgress) error
}

// ReceiptPort is the goods receipt integration.
type ReceiptPort interface {
	Get(ctx context.Context, id int64) (grn.GRN, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates the invoice lifecycle.
type Service struct {
	repo      RepositoryPort
	orders    OrderPort
	receipts  ReceiptPort
	approvals *shared.ApprovalRecorder
	audit     AuditPort
	tolerance decimal.Decimal
}

// NewService constructs the invoice service. tolerance is the absolute
// per-line quantity/amount slack allowed by the three-way match.
func NewService(repo RepositoryPort, orders OrderPort, receipts ReceiptPort, approvals *shared.ApprovalRecorder, audit AuditPort, tolerance decimal.Decimal) *Service {
	return &Service{repo: repo, orders: orders, receipts: receipts, approvals: approvals, audit: audit, tolerance: tolerance}
}

// LineInput describes an editable invoice line.
type LineInput struct {
	POItemID           *int64          `json:"poItemId"`
	GRNItemID          *int64          `json:"grnItemId"`
	ItemName           string          `json:"itemName" validate:"required"`
	ItemCode           string          `json:"itemCode"`
	UOM                string          `json:"uom"`
	InvoiceQuantity    decimal.Decimal `json:"invoiceQuantity"`
	UnitPrice          decimal.Decimal `json:"unitPrice"`
	DiscountPercentage decimal.Decimal `json:"discountPercentage"`
	CGSTRate           decimal.Decimal `json:"cgstRate"`
	SGSTRate           decimal.Decimal `json:"sgstRate"`
	IGSTRate           decimal.Decimal `json:"igstRate"`
	OtherTaxRate       decimal.Decimal `json:"otherTaxRate"`
}

// CreateInput describes the creation payload. Items may be prefilled from a
// purchase order and/or goods receipt; explicit items override both.
type CreateInput struct {
	Number         string          `json:"number"`
	SupplierRef    string          `json:"supplierInvoiceNo"`
	Type           InvoiceType     `json:"type"`
	POID           *int64          `json:"poId"`
	GRNID          *int64          `json:"grnId"`
	SupplierID     int64           `json:"supplierId"`
	SupplierName   string          `json:"supplierName"`
	InvoiceDate    time.Time       `json:"invoiceDate"`
	DueDate        time.Time       `json:"dueDate"`
	PaymentTerms   string          `json:"paymentTerms"`
	Currency       string          `json:"currency"`
	ExchangeRate   decimal.Decimal `json:"exchangeRate"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	FreightCharges decimal.Decimal `json:"freightCharges"`
	OtherCharges   decimal.Decimal `json:"otherCharges"`
	Items          []LineInput     `json:"items" validate:"dive"`
}

// UpdateInput mirrors CreateInput for draft edits.
type UpdateInput = CreateInput

// PaymentInput records one settlement.
type PaymentInput struct {
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
	Reference string          `json:"reference"`
	PaidAt    time.Time       `json:"paidAt"`
	Notes     string          `json:"notes"`
}

// DueDate derives the payment deadline from the terms text: 30 days when the
// terms mention "30", otherwise 45.
func DueDate(invoiceDate time.Time, paymentTerms string) time.Time {
	days := 45
	if strings.Contains(paymentTerms, "30") {
		days = 30
	}
	return invoiceDate.AddDate(0, 0, days)
}

// buildItems runs every line through the shared pricing contract. Tax order is
// fixed: CGST, SGST, IGST, other.
func buildItems(inputs []LineInput) ([]Item, pricing.DocumentTotals, []pricing.LineAmounts, error) {
	if len(inputs) == 0 {
		return nil, pricing.DocumentTotals{}, nil, fmt.Errorf("%w: at least one line item required", ErrValidation)
	}
	items := make([]Item, 0, len(inputs))
	lines := make([]pricing.LineAmounts, 0, len(inputs))
	for i, in := range inputs {
		if strings.TrimSpace(in.ItemName) == "" {
			return nil, pricing.DocumentTotals{}, nil, fmt.Errorf("%w: line %d item name required", ErrValidation, i+1)
		}
		amounts, err := pricing.ComputeLine(pricing.LineInput{
			Qty:         in.InvoiceQuantity,
			UnitPrice:   in.UnitPrice,
			DiscountPct: in.DiscountPercentage,
			Taxes: []pricing.TaxRate{
				{Kind: "CGST", Rate: in.CGSTRate},
				{Kind: "SGST", Rate: in.SGSTRate},
				{Kind: "IGST", Rate: in.IGSTRate},
				{Kind: "OTHER", Rate: in.OtherTaxRate},
			},
		})
		if err != nil {
			return nil, pricing.DocumentTotals{}, nil, fmt.Errorf("%w: line %d: %v", ErrValidation, i+1, err)
		}
		items = append(items, Item{
			POItemID:           in.POItemID,
			GRNItemID:          in.GRNItemID,
			ItemName:           in.ItemName,
			ItemCode:           in.ItemCode,
			UOM:                in.UOM,
			InvoiceQuantity:    in.InvoiceQuantity,
			UnitPrice:          in.UnitPrice,
			DiscountPercentage: in.DiscountPercentage,
			BaseAmount:         amounts.Base,
			DiscountAmount:     amounts.Discount,
			TaxableAmount:      amounts.Taxable,
			CGSTRate:           in.CGSTRate,
			CGSTAmount:         amounts.Taxes[0].Amount,
			SGSTRate:           in.SGSTRate,
			SGSTAmount:         amounts.Taxes[1].Amount,
			IGSTRate:           in.IGSTRate,
			IGSTAmount:         amounts.Taxes[2].Amount,
			OtherTaxRate:       in.OtherTaxRate,
			OtherTaxAmount:     amounts.Taxes[3].Amount,
			TotalTaxAmount:     amounts.TotalTax,
			TotalAmount:        amounts.Total,
		})
		lines = append(lines, amounts)
	}
	totals := pricing.ComputeDocument(pricing.DocumentInput{Lines: lines})
	return items, totals, lines, nil
}

// Create builds a draft invoice. When a purchase order and a goods receipt are
// both referenced, receipt lines win: accepted quantities replace the ordered
// quantities prefilled from the order.
func (s *Service) Create(ctx context.Context, input CreateInput, actor string) (Invoice, error) {
	inv := Invoice{
		Status:       StatusDraft,
		Type:         defaultType(input.Type),
		SupplierRef:  input.SupplierRef,
		SupplierID:   input.SupplierID,
		SupplierName: input.SupplierName,
		InvoiceDate:  defaultTime(input.InvoiceDate),
		PaymentTerms: input.PaymentTerms,
		Currency:     defaultCurrency(input.Currency),
		ExchangeRate: defaultRate(input.ExchangeRate),
	}

	lines := input.Items
	var po purchaseorder.PurchaseOrder
	if input.POID != nil {
		var err error
		po, err = s.orders.Get(ctx, *input.POID)
		if err != nil {
			return Invoice{}, err
		}
		inv.POID = &po.ID
		inv.PONumber = po.Number
		inv.SupplierID = po.SupplierID
		inv.SupplierName = po.SupplierName
		if inv.PaymentTerms == "" {
			inv.PaymentTerms = po.PaymentTerms
		}
		if len(lines) == 0 {
			lines = linesFromOrder(po)
		}
	}
	if input.GRNID != nil {
		receipt, err := s.receipts.Get(ctx, *input.GRNID)
		if err != nil {
			return Invoice{}, err
		}
		inv.GRNID = &receipt.ID
		inv.GRNNumber = receipt.Number
		if inv.SupplierID == 0 {
			inv.SupplierID = receipt.SupplierID
			inv.SupplierName = receipt.SupplierName
		}
		if po.ID == 0 && receipt.POID != 0 {
			po, err = s.orders.Get(ctx, receipt.POID)
			if err != nil {
				return Invoice{}, err
			}
		}
		// Receipt-derived lines overwrite order-derived ones, not merge. Tax
		// rates come from the order lines: the receipt does not carry them.
		if len(input.Items) == 0 {
			lines = linesFromReceipt(receipt, po)
		}
	}
	if inv.SupplierID == 0 {
		return Invoice{}, fmt.Errorf("%w: supplier required", ErrValidation)
	}

	items, totals, _, err := buildItems(lines)
	if err != nil {
		return Invoice{}, err
	}
	inv.DueDate = input.DueDate
	if inv.DueDate.IsZero() {
		inv.DueDate = DueDate(inv.InvoiceDate, inv.PaymentTerms)
	}
	inv.Number = input.Number
	if inv.Number == "" {
		if inv.Number, err = s.GenerateNumber(ctx); err != nil {
			return Invoice{}, err
		}
	}
	inv.SubTotal = totals.SubTotal
	inv.TaxAmount = totals.TaxAmount
	inv.DiscountAmount = totals.DiscountAmount.Add(input.DiscountAmount).Round(2)
	inv.FreightCharges = input.FreightCharges
	inv.OtherCharges = input.OtherCharges
	inv.GrandTotal = totals.SubTotal.Add(totals.TaxAmount).Sub(inv.DiscountAmount).
		Add(input.FreightCharges).Add(input.OtherCharges).Round(2)
	inv.PaidAmount = decimal.Zero
	inv.BalanceAmount = inv.GrandTotal

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreateHeader(ctx, inv)
		if err != nil {
			return err
		}
		inv.ID = id
		return tx.ReplaceItems(ctx, id, items)
	})
	if err != nil {
		return Invoice{}, err
	}
	inv.Items = items
	s.recordAudit(ctx, actor, "INVOICE_CREATE", inv.ID, map[string]any{"number": inv.Number, "grandTotal": inv.GrandTotal})
	return inv, nil
}

func linesFromOrder(po purchaseorder.PurchaseOrder) []LineInput {
	lines := make([]LineInput, 0, len(po.Items))
	for _, it := range po.Items {
		poItemID := it.ID
		lines = append(lines, LineInput{
			POItemID:        &poItemID,
			ItemName:        it.ItemName,
			ItemCode:        it.ItemCode,
			UOM:             it.UOM,
			InvoiceQuantity: it.Quantity,
			UnitPrice:       it.UnitPrice,
			CGSTRate:        it.Tax1Rate,
			SGSTRate:        it.Tax2Rate,
		})
	}
	return lines
}

func linesFromReceipt(receipt grn.GRN, po purchaseorder.PurchaseOrder) []LineInput {
	source := make(map[int64]purchaseorder.Item, len(po.Items))
	for _, it := range po.Items {
		source[it.ID] = it
	}
	lines := make([]LineInput, 0, len(receipt.Items))
	for _, it := range receipt.Items {
		grnItemID := it.ID
		poItemID := it.POItemID
		line := LineInput{
			POItemID:        &poItemID,
			GRNItemID:       &grnItemID,
			ItemName:        it.ItemName,
			ItemCode:        it.ItemCode,
			UOM:             it.UOM,
			InvoiceQuantity: it.AcceptedQuantity,
			UnitPrice:       it.UnitPrice,
		}
		if ordered, ok := source[it.POItemID]; ok {
			line.CGSTRate = ordered.Tax1Rate
			line.SGSTRate = ordered.Tax2Rate
		}
		lines = append(lines, line)
	}
	return lines
}

// Update replaces header fields and lines. Permitted only while DRAFT.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput, actor string) (Invoice, error) {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	if inv.Status != StatusDraft {
		return Invoice{}, ErrNotEditable
	}
	items, totals, _, err := buildItems(input.Items)
	if err != nil {
		return Invoice{}, err
	}
	if input.Type != "" {
		inv.Type = input.Type
	}
	inv.SupplierRef = input.SupplierRef
	inv.InvoiceDate = defaultTime(input.InvoiceDate)
	inv.PaymentTerms = input.PaymentTerms
	inv.DueDate = input.DueDate
	if inv.DueDate.IsZero() {
		inv.DueDate = DueDate(inv.InvoiceDate, inv.PaymentTerms)
	}
	inv.Currency = defaultCurrency(input.Currency)
	inv.ExchangeRate = defaultRate(input.ExchangeRate)
	inv.SubTotal = totals.SubTotal
	inv.TaxAmount = totals.TaxAmount
	inv.DiscountAmount = totals.DiscountAmount.Add(input.DiscountAmount).Round(2)
	inv.FreightCharges = input.FreightCharges
	inv.OtherCharges = input.OtherCharges
	inv.GrandTotal = totals.SubTotal.Add(totals.TaxAmount).Sub(inv.DiscountAmount).
		Add(input.FreightCharges).Add(input.OtherCharges).Round(2)
	inv.BalanceAmount = inv.GrandTotal.Sub(inv.PaidAmount)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateHeader(ctx, inv); err != nil {
			return err
		}
		return tx.ReplaceItems(ctx, id, items)
	})
	if err != nil {
		return Invoice{}, err
	}
	inv.Items = items
	s.recordAudit(ctx, actor, "INVOICE_UPDATE", id, map[string]any{"number": inv.Number})
	return inv, nil
}

// Get fetches one invoice with items and payments.
func (s *Service) Get(ctx context.Context, id int64) (Invoice, error) {
	return s.repo.Get(ctx, id)
}

// List returns a page of invoices plus the matching total.
func (s *Service) List(ctx context.Context, filters ListFilters, limit, offset int) ([]Invoice, int, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.repo.List(ctx, filters, limit, offset)
}

// GenerateNumber allocates the next INV/<FY>/<seq> document number.
func (s *Service) GenerateNumber(ctx context.Context) (string, error) {
	fy := purchaseorder.FiscalYear(time.Now())
	seq, err := s.repo.NextSequence(ctx, fy)
	if err != nil {
		return "", err
	}
	return purchaseorder.FormatNumber("INV", fy, seq), nil
}

// Submit moves the invoice to SUBMITTED and folds the invoiced quantities
// back into the linked purchase order.
func (s *Service) Submit(ctx context.Context, id int64, actor string) error {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	next, err := Transitions.Apply(workflow.State(inv.Status), ActionSubmit, "")
	if err != nil {
		return err
	}
	if len(inv.Items) == 0 {
		return fmt.Errorf("%w: cannot submit an invoice without lines", ErrValidation)
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateStatus(ctx, id, Status(next), "")
	})
	if err != nil {
		return err
	}
	if inv.POID != nil {
		progress := make([]purchaseorder.InvoiceProgress, 0, len(inv.Items))
		for _, it := range inv.Items {
			if it.POItemID == nil {
				continue
			}
			progress = append(progress, purchaseorder.InvoiceProgress{POItemID: *it.POItemID, Quantity: it.InvoiceQuantity})
		}
		if len(progress) > 0 {
			if err := s.orders.ApplyInvoice(ctx, *inv.POID, progress); err != nil {
				return fmt.Errorf("invoice submitted but order feedback failed: %w", err)
			}
		}
	}
	if s.approvals != nil {
		_ = s.approvals.EnsureSubmit(ctx, "INV", shared.DocumentRef("INV", id), actor, fmt.Sprintf("Invoice %s submitted", inv.Number))
	}
	s.recordAudit(ctx, actor, "INVOICE_SUBMIT", id, map[string]any{"number": inv.Number})
	return nil
}

// RouteApproval moves a submitted invoice into the approval queue.
func (s *Service) RouteApproval(ctx context.Context, id int64, actor string) error {
	return s.simpleTransition(ctx, id, actor, ActionRoute, "INVOICE_ROUTE")
}

// Approve records the approver and runs the three-way match when the invoice
// is linked to both an order and a receipt.
func (s *Service) Approve(ctx context.Context, id int64, approvedBy string) error {
	if strings.TrimSpace(approvedBy) == "" {
		return fmt.Errorf("%w: approvedBy required", ErrValidation)
	}
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	next, err := Transitions.Apply(workflow.State(inv.Status), ActionApprove, "")
	if err != nil {
		return err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateStatus(ctx, id, Status(next), ""); err != nil {
			return err
		}
		return tx.SetApproval(ctx, id, approvedBy, time.Now())
	})
	if err != nil {
		return err
	}
	if s.approvals != nil {
		_ = s.approvals.Record(ctx, shared.ApprovalLog{Module: "INV", RefID: shared.DocumentRef("INV", id), Actor: approvedBy, Action: shared.ApprovalApprove, Note: fmt.Sprintf("Invoice %s approved", inv.Number)})
	}
	s.recordAudit(ctx, approvedBy, "INVOICE_APPROVE", id, map[string]any{"number": inv.Number})
	if inv.POID != nil && inv.GRNID != nil {
		if _, err := s.Match(ctx, id, approvedBy); err != nil {
			return fmt.Errorf("invoice approved but match failed: %w", err)
		}
	}
	return nil
}

// Match reconciles the invoice against its purchase order and goods receipt
// and moves the document to THREE_WAY_MATCHED or THREE_WAY_MISMATCH.
func (s *Service) Match(ctx context.Context, id int64, actor string) (MatchResult, error) {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return MatchResult{}, err
	}
	if inv.POID == nil || inv.GRNID == nil {
		return MatchResult{}, fmt.Errorf("%w: three-way match needs both a purchase order and a goods receipt", ErrValidation)
	}
	po, err := s.orders.Get(ctx, *inv.POID)
	if err != nil {
		return MatchResult{}, err
	}
	receipt, err := s.receipts.Get(ctx, *inv.GRNID)
	if err != nil {
		return MatchResult{}, err
	}
	result := ThreeWayMatch(po, receipt, inv, s.tolerance)
	action := ActionMatch
	if !result.Matched {
		action = ActionMismatch
	}
	next, err := Transitions.Apply(workflow.State(inv.Status), action, "")
	if err != nil {
		return MatchResult{}, err
	}
	reason := strings.Join(result.Discrepancies, "; ")
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateStatus(ctx, id, Status(next), reason)
	})
	if err != nil {
		return MatchResult{}, err
	}
	s.recordAudit(ctx, actor, "INVOICE_MATCH", id, map[string]any{"number": inv.Number, "matched": result.Matched, "discrepancies": result.Discrepancies})
	return result, nil
}

// RecordPayment applies one settlement. Overpaying the outstanding balance is
// rejected; a zeroed balance marks the invoice PAID.
func (s *Service) RecordPayment(ctx context.Context, id int64, input PaymentInput, actor string) (Invoice, error) {
	if !input.Amount.IsPositive() {
		return Invoice{}, fmt.Errorf("%w: payment amount must be greater than zero", ErrValidation)
	}
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	if input.Amount.GreaterThan(inv.BalanceAmount) {
		return Invoice{}, fmt.Errorf("%w: amount %s exceeds balance %s", ErrOverpayment, input.Amount, inv.BalanceAmount)
	}
	paid := inv.PaidAmount.Add(input.Amount)
	balance := inv.GrandTotal.Sub(paid)
	action := ActionPayPartial
	if balance.IsZero() {
		action = ActionPayFull
	}
	next, err := Transitions.Apply(workflow.State(inv.Status), action, "")
	if err != nil {
		return Invoice{}, err
	}
	payment := Payment{
		InvoiceID: id,
		Amount:    input.Amount,
		Method:    input.Method,
		Reference: input.Reference,
		PaidAt:    defaultTime(input.PaidAt),
		Notes:     input.Notes,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.AddPayment(ctx, payment); err != nil {
			return err
		}
		if err := tx.UpdatePaid(ctx, id, paid, balance); err != nil {
			return err
		}
		return tx.UpdateStatus(ctx, id, Status(next), "")
	})
	if err != nil {
		return Invoice{}, err
	}
	s.recordAudit(ctx, actor, "INVOICE_PAYMENT", id, map[string]any{"number": inv.Number, "amount": input.Amount, "balance": balance})
	return s.repo.Get(ctx, id)
}

// Reject is terminal and demands a reason.
func (s *Service) Reject(ctx context.Context, id int64, actor, reason string) error {
	return s.transitionWithReason(ctx, id, actor, ActionReject, reason, "INVOICE_REJECT", shared.ApprovalReject)
}

// Cancel is terminal and demands a reason.
func (s *Service) Cancel(ctx context.Context, id int64, actor, reason string) error {
	return s.transitionWithReason(ctx, id, actor, ActionCancel, reason, "INVOICE_CANCEL", shared.ApprovalCancel)
}

// Hold parks the invoice; a reason is required.
func (s *Service) Hold(ctx context.Context, id int64, actor, reason string) error {
	return s.transitionWithReason(ctx, id, actor, ActionHold, reason, "INVOICE_HOLD", shared.ApprovalCancel)
}

// Resume returns a held invoice to the approval queue.
func (s *Service) Resume(ctx context.Context, id int64, actor string) error {
	return s.simpleTransition(ctx, id, actor, ActionResume, "INVOICE_RESUME")
}

// MarkOverdue flags every unpaid invoice whose due date has passed. Invoices
// whose current state forbids the transition are skipped. Returns the number
// of invoices flagged; the scheduled scan calls this.
func (s *Service) MarkOverdue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.repo.ListDueBefore(ctx, now)
	if err != nil {
		return 0, err
	}
	marked := 0
	for _, inv := range due {
		next, err := Transitions.Apply(workflow.State(inv.Status), ActionMarkOverdue, "")
		if err != nil {
			continue
		}
		err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			return tx.UpdateStatus(ctx, inv.ID, Status(next), "")
		})
		if err != nil {
			return marked, err
		}
		marked++
		s.recordAudit(ctx, "", "INVOICE_OVERDUE", inv.ID, map[string]any{"number": inv.Number, "dueDate": inv.DueDate})
	}
	return marked, nil
}

func (s *Service) simpleTransition(ctx context.Context, id int64, actor string, action workflow.Action, auditAction string) error {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	next, err := Transitions.Apply(workflow.State(inv.Status), action, "")
	if err != nil {
		return err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateStatus(ctx, id, Status(next), "")
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actor, auditAction, id, map[string]any{"number": inv.Number})
	return nil
}

func (s *Service) transitionWithReason(ctx context.Context, id int64, actor string, action workflow.Action, reason, auditAction string, approvalAction shared.ApprovalAction) error {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	next, err := Transitions.Apply(workflow.State(inv.Status), action, reason)
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
		_ = s.approvals.Record(ctx, shared.ApprovalLog{Module: "INV", RefID: shared.DocumentRef("INV", id), Actor: actor, Action: approvalAction, Note: reason})
	}
	s.recordAudit(ctx, actor, auditAction, id, map[string]any{"number": inv.Number, "reason": reason})
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actor, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Actor: actor, Action: action, Entity: "invoice", EntityID: fmt.Sprintf("%d", entityID), Meta: meta})
}

func defaultTime(value time.Time) time.Time {
	if value.IsZero() {
		return time.Now()
	}
	return value
}

func defaultType(value InvoiceType) InvoiceType {
	if value == "" {
		return TypeStandard
	}
	return value
}

func defaultCurrency(value string) string {
	if value == "" {
		return "INR"
	}
	return value
}

func defaultRate(value decimal.Decimal) decimal.Decimal {
	if value.IsZero() {
		return decimal.NewFromInt(1)
	}
	return value
}
