package grn

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/procura-erp/procura/internal/purchaseorder"
	"github.com/procura-erp/procura/internal/shared"
	"github.com/procura-erp/procura/internal/workflow"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (GRN, error)
	List(ctx context.Context, filters ListFilters, limit, offset int) ([]GRN, int, error)
	NextSequence(ctx context.Context, fiscalYear string) (int64, error)
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	CreateHeader(ctx context.Context, g GRN) (int64, error)
	UpdateHeader(ctx context.Context, g GRN) error
	ReplaceItems(ctx context.Context, grnID int64, items []Item) error
	UpdateStatus(ctx context.Context, id int64, status Status, reason string) error
	SetApproval(ctx context.Context, id int64, approvedBy string, approvedAt time.Time) error
	SetQualityStatus(ctx context.Context, id int64, status QualityStatus) error
}

// OrderPort is the purchase order integration: source document lookup plus
// the receipt feedback applied on approval.
type OrderPort interface {
	Get(ctx context.Context, id int64) (purchaseorder.PurchaseOrder, error)
	ApplyReceipt(ctx context.Context, poID int64, progress []purchaseorder.ReceiptProgress) error
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates the goods receipt lifecycle.
type Service struct {
	repo      RepositoryPort
	orders    OrderPort
	approvals *shared.ApprovalRecorder
	audit     AuditPort
}

// NewService constructs the goods receipt service.
func NewService(repo RepositoryPort, orders OrderPort, approvals *shared.ApprovalRecorder, audit AuditPort) *Service {
	return &Service{repo: repo, orders: orders, approvals: approvals, audit: audit}
}

// LineInput describes an editable receipt line.
type LineInput struct {
	POItemID         int64           `json:"poItemId" validate:"required"`
	ReceivedQuantity decimal.Decimal `json:"receivedQuantity"`
	AcceptedQuantity decimal.Decimal `json:"acceptedQuantity"`
	RejectedQuantity decimal.Decimal `json:"rejectedQuantity"`
	QualityStatus    QualityStatus   `json:"qualityStatus"`
	BatchNo          string          `json:"batchNo"`
	SerialNo         string          `json:"serialNo"`
	StorageLocation  string          `json:"storageLocation"`
	Remarks          string          `json:"remarks"`
}

// CreateInput describes the creation payload. Lines are optional: omitted
// lines default to a full receipt of the order's pending quantity.
type CreateInput struct {
	POID              int64       `json:"poId" validate:"required"`
	Type              GRNType     `json:"type"`
	ReceivedDate      time.Time   `json:"receivedDate"`
	DeliveryChallanNo string      `json:"deliveryChallanNo"`
	VehicleNo         string      `json:"vehicleNo"`
	TransporterName   string      `json:"transporterName"`
	ReceivedBy        string      `json:"receivedBy"`
	Approve           bool        `json:"approve"`
	Items             []LineInput `json:"items" validate:"dive"`
}

// UpdateInput edits a draft receipt.
type UpdateInput struct {
	Type              GRNType     `json:"type"`
	ReceivedDate      time.Time   `json:"receivedDate"`
	DeliveryChallanNo string      `json:"deliveryChallanNo"`
	VehicleNo         string      `json:"vehicleNo"`
	TransporterName   string      `json:"transporterName"`
	Items             []LineInput `json:"items" validate:"min=1,dive"`
}

// CreateFromPO builds a goods receipt against an approved purchase order.
// Lines are prefilled from the order's pending quantities (falling back to the
// ordered quantity) with an accept-all default; explicit line inputs override.
// With input.Approve set the receipt is approved in the same call, which also
// folds the accepted quantities back into the order.
func (s *Service) CreateFromPO(ctx context.Context, input CreateInput, actor string) (GRN, error) {
	po, err := s.orders.Get(ctx, input.POID)
	if err != nil {
		return GRN{}, err
	}
	if po.Status != purchaseorder.StatusApproved &&
		po.Status != purchaseorder.StatusPartiallyDelivered {
		return GRN{}, fmt.Errorf("%w: purchase order %s is not approved", workflow.ErrTransition, po.Number)
	}
	overrides := make(map[int64]LineInput, len(input.Items))
	for _, in := range input.Items {
		overrides[in.POItemID] = in
	}
	items := make([]Item, 0, len(po.Items))
	for _, poItem := range po.Items {
		line := Item{
			POItemID:      poItem.ID,
			ItemName:      poItem.ItemName,
			ItemCode:      poItem.ItemCode,
			UOM:           poItem.UOM,
			POQuantity:    poItem.Quantity,
			UnitPrice:     poItem.UnitPrice,
			QualityStatus: QualityPending,
		}
		if in, ok := overrides[poItem.ID]; ok {
			line.ReceivedQuantity = in.ReceivedQuantity
			line.AcceptedQuantity = in.AcceptedQuantity
			line.RejectedQuantity = in.RejectedQuantity
			line.BatchNo = in.BatchNo
			line.SerialNo = in.SerialNo
			line.StorageLocation = in.StorageLocation
			line.Remarks = in.Remarks
			if in.QualityStatus != "" {
				line.QualityStatus = in.QualityStatus
			}
			line, err = Normalize(line)
		} else {
			defaultQty := poItem.PendingQuantity
			if !defaultQty.IsPositive() {
				defaultQty = poItem.Quantity
			}
			line, err = SetReceived(line, defaultQty)
		}
		if err != nil {
			return GRN{}, err
		}
		items = append(items, line)
	}
	if len(items) == 0 {
		return GRN{}, fmt.Errorf("%w: purchase order has no lines to receive", ErrValidation)
	}

	number, err := s.GenerateNumber(ctx)
	if err != nil {
		return GRN{}, err
	}
	grnType := input.Type
	if grnType == "" {
		grnType = TypeStandard
	}
	g := GRN{
		Number:             number,
		Status:             StatusDraft,
		Type:               grnType,
		POID:               po.ID,
		PONumber:           po.Number,
		SupplierID:         po.SupplierID,
		SupplierName:       po.SupplierName,
		ReceivedDate:       defaultTime(input.ReceivedDate),
		DeliveryChallanNo:  input.DeliveryChallanNo,
		VehicleNo:          input.VehicleNo,
		TransporterName:    input.TransporterName,
		QualityCheckStatus: QualityPending,
		TotalReceivedValue: TotalReceivedValue(items),
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreateHeader(ctx, g)
		if err != nil {
			return err
		}
		g.ID = id
		return tx.ReplaceItems(ctx, id, items)
	})
	if err != nil {
		return GRN{}, err
	}
	g.Items = items
	s.recordAudit(ctx, actor, "GRN_CREATE", g.ID, map[string]any{"number": g.Number, "poNumber": g.PONumber})

	if input.Approve {
		if err := s.Approve(ctx, g.ID, actor, time.Now()); err != nil {
			return GRN{}, err
		}
		return s.repo.Get(ctx, g.ID)
	}
	return g, nil
}

// Update replaces header metadata and lines. Permitted only while DRAFT.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput, actor string) (GRN, error) {
	g, err := s.repo.Get(ctx, id)
	if err != nil {
		return GRN{}, err
	}
	if g.Status != StatusDraft {
		return GRN{}, ErrNotEditable
	}
	existing := make(map[int64]Item, len(g.Items))
	for _, it := range g.Items {
		existing[it.POItemID] = it
	}
	items := make([]Item, 0, len(input.Items))
	for i, in := range input.Items {
		base, ok := existing[in.POItemID]
		if !ok {
			return GRN{}, fmt.Errorf("%w: line %d references unknown purchase order item %d", ErrValidation, i+1, in.POItemID)
		}
		base.ReceivedQuantity = in.ReceivedQuantity
		base.AcceptedQuantity = in.AcceptedQuantity
		base.RejectedQuantity = in.RejectedQuantity
		base.BatchNo = in.BatchNo
		base.SerialNo = in.SerialNo
		base.StorageLocation = in.StorageLocation
		base.Remarks = in.Remarks
		if in.QualityStatus != "" {
			base.QualityStatus = in.QualityStatus
		}
		normalized, err := Normalize(base)
		if err != nil {
			return GRN{}, fmt.Errorf("line %d: %w", i+1, err)
		}
		items = append(items, normalized)
	}
	if input.Type != "" {
		g.Type = input.Type
	}
	g.ReceivedDate = defaultTime(input.ReceivedDate)
	g.DeliveryChallanNo = input.DeliveryChallanNo
	g.VehicleNo = input.VehicleNo
	g.TransporterName = input.TransporterName
	g.TotalReceivedValue = TotalReceivedValue(items)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateHeader(ctx, g); err != nil {
			return err
		}
		return tx.ReplaceItems(ctx, id, items)
	})
	if err != nil {
		return GRN{}, err
	}
	g.Items = items
	s.recordAudit(ctx, actor, "GRN_UPDATE", id, map[string]any{"number": g.Number})
	return g, nil
}

// Get fetches one goods receipt with lines.
func (s *Service) Get(ctx context.Context, id int64) (GRN, error) {
	return s.repo.Get(ctx, id)
}

// List returns a page of goods receipts plus the matching total.
func (s *Service) List(ctx context.Context, filters ListFilters, limit, offset int) ([]GRN, int, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.repo.List(ctx, filters, limit, offset)
}

// GenerateNumber allocates the next GRN/<FY>/<seq> document number.
func (s *Service) GenerateNumber(ctx context.Context) (string, error) {
	fy := purchaseorder.FiscalYear(time.Now())
	seq, err := s.repo.NextSequence(ctx, fy)
	if err != nil {
		return "", err
	}
	return purchaseorder.FormatNumber("GRN", fy, seq), nil
}

// Submit routes a draft receipt into approval.
func (s *Service) Submit(ctx context.Context, id int64, actor string) error {
	g, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	next, err := Transitions.Apply(workflow.State(g.Status), ActionSubmit, "")
	if err != nil {
		return err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateStatus(ctx, id, Status(next), "")
	})
	if err != nil {
		return err
	}
	if s.approvals != nil {
		_ = s.approvals.EnsureSubmit(ctx, "GRN", shared.DocumentRef("GRN", id), actor, fmt.Sprintf("GRN %s submitted", g.Number))
	}
	s.recordAudit(ctx, actor, "GRN_SUBMIT", id, map[string]any{"number": g.Number})
	return nil
}

// Approve finalizes the receipt and folds accepted quantities back into the
// purchase order. Allowed from DRAFT (save and approve) or PENDING_APPROVAL.
func (s *Service) Approve(ctx context.Context, id int64, approvedBy string, approvedAt time.Time) error {
	if strings.TrimSpace(approvedBy) == "" {
		return fmt.Errorf("%w: approvedBy required", ErrValidation)
	}
	g, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	next, err := Transitions.Apply(workflow.State(g.Status), ActionApprove, "")
	if err != nil {
		return err
	}
	progress := make([]purchaseorder.ReceiptProgress, 0, len(g.Items))
	for _, it := range g.Items {
		progress = append(progress, purchaseorder.ReceiptProgress{
			POItemID:         it.POItemID,
			AcceptedQuantity: it.AcceptedQuantity,
		})
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateStatus(ctx, id, Status(next), ""); err != nil {
			return err
		}
		return tx.SetApproval(ctx, id, approvedBy, defaultTime(approvedAt))
	})
	if err != nil {
		return err
	}
	if err := s.orders.ApplyReceipt(ctx, g.POID, progress); err != nil {
		return fmt.Errorf("grn approved but receipt feedback failed: %w", err)
	}
	if s.approvals != nil {
		_ = s.approvals.Record(ctx, shared.ApprovalLog{Module: "GRN", RefID: shared.DocumentRef("GRN", id), Actor: approvedBy, Action: shared.ApprovalApprove, Note: fmt.Sprintf("GRN %s approved", g.Number)})
	}
	s.recordAudit(ctx, approvedBy, "GRN_APPROVE", id, map[string]any{"number": g.Number, "poId": g.POID})
	return nil
}

// Reject is terminal and demands a reason.
func (s *Service) Reject(ctx context.Context, id int64, actor, reason string) error {
	return s.transitionWithReason(ctx, id, actor, ActionReject, reason, "GRN_REJECT", shared.ApprovalReject)
}

// Cancel is terminal and demands a reason.
func (s *Service) Cancel(ctx context.Context, id int64, actor, reason string) error {
	return s.transitionWithReason(ctx, id, actor, ActionCancel, reason, "GRN_CANCEL", shared.ApprovalCancel)
}

// Close finishes the receipt.
func (s *Service) Close(ctx context.Context, id int64, actor string) error {
	return s.simpleTransition(ctx, id, actor, ActionClose, "GRN_CLOSE")
}

// QualityCheck records the inspection outcome on the header. A failed check
// requires a reason.
func (s *Service) QualityCheck(ctx context.Context, id int64, actor string, passed bool, reason string) error {
	g, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	current := workflow.State(g.Status)
	if g.Status != StatusQualityPending {
		// Move the document into inspection first; fails if the state
		// machine does not allow it.
		next, err := Transitions.Apply(current, ActionStartQC, "")
		if err != nil {
			return err
		}
		current = next
	}
	action := ActionPassQC
	quality := QualityPassed
	if !passed {
		action = ActionFailQC
		quality = QualityFailed
	}
	next, err := Transitions.Apply(current, action, reason)
	if err != nil {
		return err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateStatus(ctx, id, Status(next), reason); err != nil {
			return err
		}
		return tx.SetQualityStatus(ctx, id, quality)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actor, "GRN_QUALITY_CHECK", id, map[string]any{"number": g.Number, "passed": passed, "reason": reason})
	return nil
}

func (s *Service) simpleTransition(ctx context.Context, id int64, actor string, action workflow.Action, auditAction string) error {
	g, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	next, err := Transitions.Apply(workflow.State(g.Status), action, "")
	if err != nil {
		return err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateStatus(ctx, id, Status(next), "")
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actor, auditAction, id, map[string]any{"number": g.Number})
	return nil
}

func (s *Service) transitionWithReason(ctx context.Context, id int64, actor string, action workflow.Action, reason, auditAction string, approvalAction shared.ApprovalAction) error {
	g, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	next, err := Transitions.Apply(workflow.State(g.Status), action, reason)
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
		_ = s.approvals.Record(ctx, shared.ApprovalLog{Module: "GRN", RefID: shared.DocumentRef("GRN", id), Actor: actor, Action: approvalAction, Note: reason})
	}
	s.recordAudit(ctx, actor, auditAction, id, map[string]any{"number": g.Number, "reason": reason})
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actor, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Actor: actor, Action: action, Entity: "grn", EntityID: fmt.Sprintf("%d", entityID), Meta: meta})
}

func defaultTime(value time.Time) time.Time {
	if value.IsZero() {
		return time.Now()
	}
	return value
}
