package purchaseorder

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procura-erp/procura/internal/rfp"
	"github.com/procura-erp/procura/internal/workflow"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

// mockRepo is an in-memory RepositoryPort/TxRepository pair.
type mockRepo struct {
	orders     map[int64]PurchaseOrder
	items      map[int64][]Item
	nextID     int64
	nextItemID int64
	seq        int64
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		orders: make(map[int64]PurchaseOrder),
		items:  make(map[int64][]Item),
	}
}

func (m *mockRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, (*mockTx)(m))
}

func (m *mockRepo) Get(ctx context.Context, id int64) (PurchaseOrder, error) {
	po, ok := m.orders[id]
	if !ok {
		return PurchaseOrder{}, ErrNotFound
	}
	po.Items = append([]Item(nil), m.items[id]...)
	return po, nil
}

func (m *mockRepo) List(ctx context.Context, filters ListFilters, limit, offset int) ([]PurchaseOrder, int, error) {
	var out []PurchaseOrder
	for id := range m.orders {
		po, _ := m.Get(ctx, id)
		if filters.Status != "" && string(po.Status) != filters.Status {
			continue
		}
		out = append(out, po)
	}
	return out, len(out), nil
}

func (m *mockRepo) NextSequence(ctx context.Context, fiscalYear string) (int64, error) {
	m.seq++
	return m.seq, nil
}

type mockTx mockRepo

func (t *mockTx) CreateHeader(ctx context.Context, po PurchaseOrder) (int64, error) {
	t.nextID++
	po.ID = t.nextID
	t.orders[po.ID] = po
	return po.ID, nil
}

func (t *mockTx) UpdateHeader(ctx context.Context, po PurchaseOrder) error {
	stored, ok := t.orders[po.ID]
	if !ok {
		return ErrNotFound
	}
	po.Status = stored.Status
	po.Items = nil
	t.orders[po.ID] = po
	return nil
}

func (t *mockTx) ReplaceItems(ctx context.Context, poID int64, items []Item) error {
	stored := make([]Item, 0, len(items))
	for _, it := range items {
		t.nextItemID++
		it.ID = t.nextItemID
		it.POID = poID
		stored = append(stored, it)
	}
	t.items[poID] = stored
	return nil
}

func (t *mockTx) UpdateStatus(ctx context.Context, id int64, status Status, reason string) error {
	po, ok := t.orders[id]
	if !ok {
		return ErrNotFound
	}
	po.Status = status
	po.StatusReason = reason
	t.orders[id] = po
	return nil
}

func (t *mockTx) SetApproval(ctx context.Context, id int64, approvedBy string, approvedAt time.Time) error {
	po := t.orders[id]
	po.ApprovedBy = approvedBy
	po.ApprovedAt = &approvedAt
	t.orders[id] = po
	return nil
}

func (t *mockTx) SetGRNCreated(ctx context.Context, id int64, created bool) error {
	po := t.orders[id]
	po.IsGRNCreated = created
	t.orders[id] = po
	return nil
}

func (t *mockTx) SetInvoiceCreated(ctx context.Context, id int64, created bool) error {
	po := t.orders[id]
	po.IsInvoiceCreated = created
	t.orders[id] = po
	return nil
}

func (t *mockTx) UpdateItemProgress(ctx context.Context, itemID int64, received, pending, invoiced decimal.Decimal) error {
	for poID, items := range t.items {
		for i, it := range items {
			if it.ID == itemID {
				items[i].ReceivedQuantity = received
				items[i].PendingQuantity = pending
				items[i].InvoicedQuantity = invoiced
				t.items[poID] = items
				return nil
			}
		}
	}
	return ErrNotFound
}

type mockQuotations struct {
	quotation rfp.Quotation
	lines     []rfp.QuotationLine
	err       error
}

func (m *mockQuotations) GetQuotation(ctx context.Context, id int64) (rfp.Quotation, []rfp.QuotationLine, error) {
	if m.err != nil {
		return rfp.Quotation{}, nil, m.err
	}
	return m.quotation, m.lines, nil
}

func newTestService(repo *mockRepo) *Service {
	return NewService(repo, nil, nil, nil, nil)
}

func draftInput() CreateInput {
	return CreateInput{
		SupplierID:   7,
		SupplierName: "Acme Industrial",
		OrderDate:    time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		DeliveryDate: time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC),
		PaymentTerms: "Net 30",
		RaisedBy:     "priya",
		Items: []ItemInput{{
			ItemName:  "CNC Lathe",
			Quantity:  d("2"),
			UnitPrice: d("200000"),
			Tax1Type:  "CGST",
			Tax1Rate:  d("9"),
			Tax2Type:  "SGST",
			Tax2Rate:  d("9"),
		}},
	}
}

func TestCreateComputesTotals(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)

	po, err := svc.Create(context.Background(), draftInput())
	require.NoError(t, err)

	assert.Equal(t, StatusDraft, po.Status)
	assert.Contains(t, po.Number, "PO/")
	assert.True(t, po.SubTotal.Equal(d("400000")), "subTotal = %s", po.SubTotal)
	assert.True(t, po.TaxAmount.Equal(d("72000")))
	assert.True(t, po.GrandTotal.Equal(d("472000")), "grandTotal = %s", po.GrandTotal)
	require.Len(t, po.Items, 1)
	assert.True(t, po.Items[0].PendingQuantity.Equal(d("2")))
}

func TestCreateRequiresLines(t *testing.T) {
	svc := newTestService(newMockRepo())
	in := draftInput()
	in.Items = nil
	_, err := svc.Create(context.Background(), in)
	require.ErrorIs(t, err, ErrValidation)
}

func TestCreateRejectsZeroQuantity(t *testing.T) {
	svc := newTestService(newMockRepo())
	in := draftInput()
	in.Items[0].Quantity = decimal.Zero
	_, err := svc.Create(context.Background(), in)
	require.ErrorIs(t, err, ErrValidation)
}

func TestUpdateOnlyWhileDraft(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	po, err := svc.Create(ctx, draftInput())
	require.NoError(t, err)

	in := draftInput()
	in.Items[0].Quantity = d("3")
	updated, err := svc.Update(ctx, po.ID, in)
	require.NoError(t, err)
	assert.True(t, updated.GrandTotal.Equal(d("708000")))

	require.NoError(t, svc.Submit(ctx, po.ID, "priya"))
	_, err = svc.Update(ctx, po.ID, in)
	require.ErrorIs(t, err, ErrNotEditable)
}

func TestUpdateKeepsOrderDateWhenOmitted(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	po, err := svc.Create(ctx, draftInput())
	require.NoError(t, err)

	in := draftInput()
	in.OrderDate = time.Time{}
	updated, err := svc.Update(ctx, po.ID, in)
	require.NoError(t, err)
	assert.True(t, updated.OrderDate.Equal(po.OrderDate), "orderDate = %s", updated.OrderDate)

	in.OrderDate = time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC)
	updated, err = svc.Update(ctx, po.ID, in)
	require.NoError(t, err)
	assert.True(t, updated.OrderDate.Equal(in.OrderDate))
}

func TestSubmitGuards(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	in := draftInput()
	in.PaymentTerms = ""
	po, err := svc.Create(ctx, in)
	require.NoError(t, err)

	err = svc.Submit(ctx, po.ID, "priya")
	require.ErrorIs(t, err, ErrValidation)
}

func TestApproveRequiresSubmitted(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	po, err := svc.Create(ctx, draftInput())
	require.NoError(t, err)

	err = svc.Approve(ctx, po.ID, "boss", time.Time{}, "")
	require.ErrorIs(t, err, workflow.ErrTransition)
}

func TestApproveDateBeforeOrderDateRejected(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	po, err := svc.Create(ctx, draftInput())
	require.NoError(t, err)
	require.NoError(t, svc.Submit(ctx, po.ID, "priya"))

	err = svc.Approve(ctx, po.ID, "boss", time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC), "")
	require.ErrorIs(t, err, ErrValidation)

	err = svc.Approve(ctx, po.ID, "boss", time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), "")
	require.NoError(t, err)

	got, err := svc.Get(ctx, po.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, got.Status)
	assert.Equal(t, "boss", got.ApprovedBy)
}

func TestRejectRequiresReason(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	po, err := svc.Create(ctx, draftInput())
	require.NoError(t, err)
	require.NoError(t, svc.Submit(ctx, po.ID, "priya"))

	err = svc.Reject(ctx, po.ID, "boss", "")
	require.ErrorIs(t, err, workflow.ErrReasonRequired)

	require.NoError(t, svc.Reject(ctx, po.ID, "boss", "budget freeze"))
	got, _ := svc.Get(ctx, po.ID)
	assert.Equal(t, StatusRejected, got.Status)
	assert.Equal(t, "budget freeze", got.StatusReason)
}

func TestCancelTerminal(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	po, err := svc.Create(ctx, draftInput())
	require.NoError(t, err)
	require.NoError(t, svc.Submit(ctx, po.ID, "priya"))
	require.NoError(t, svc.Approve(ctx, po.ID, "boss", time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), ""))

	err = svc.Cancel(ctx, po.ID, "priya", "")
	require.ErrorIs(t, err, workflow.ErrReasonRequired)

	require.NoError(t, svc.Cancel(ctx, po.ID, "priya", "supplier folded"))
	got, _ := svc.Get(ctx, po.ID)
	assert.Equal(t, StatusCancelled, got.Status)

	// No way out of CANCELLED.
	err = svc.Submit(ctx, po.ID, "priya")
	require.ErrorIs(t, err, workflow.ErrTransition)
}

func approvedOrder(t *testing.T, svc *Service) PurchaseOrder {
	t.Helper()
	ctx := context.Background()
	in := draftInput()
	in.Items[0].Quantity = d("5")
	po, err := svc.Create(ctx, in)
	require.NoError(t, err)
	require.NoError(t, svc.Submit(ctx, po.ID, "priya"))
	require.NoError(t, svc.Approve(ctx, po.ID, "boss", time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), ""))
	po, err = svc.Get(ctx, po.ID)
	require.NoError(t, err)
	return po
}

func TestApplyReceiptProgress(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	po := approvedOrder(t, svc)
	itemID := po.Items[0].ID

	require.NoError(t, svc.ApplyReceipt(ctx, po.ID, []ReceiptProgress{{POItemID: itemID, AcceptedQuantity: d("3")}}))
	got, _ := svc.Get(ctx, po.ID)
	assert.Equal(t, StatusPartiallyDelivered, got.Status)
	assert.True(t, got.IsGRNCreated)
	assert.True(t, got.Items[0].ReceivedQuantity.Equal(d("3")))
	assert.True(t, got.Items[0].PendingQuantity.Equal(d("2")))

	require.NoError(t, svc.ApplyReceipt(ctx, po.ID, []ReceiptProgress{{POItemID: itemID, AcceptedQuantity: d("2")}}))
	got, _ = svc.Get(ctx, po.ID)
	assert.Equal(t, StatusDelivered, got.Status)
	assert.True(t, got.Items[0].PendingQuantity.IsZero())
}

func TestApplyInvoiceProgressAndClose(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	po := approvedOrder(t, svc)
	itemID := po.Items[0].ID
	require.NoError(t, svc.ApplyReceipt(ctx, po.ID, []ReceiptProgress{{POItemID: itemID, AcceptedQuantity: d("5")}}))

	require.NoError(t, svc.ApplyInvoice(ctx, po.ID, []InvoiceProgress{{POItemID: itemID, Quantity: d("2")}}))
	got, _ := svc.Get(ctx, po.ID)
	assert.Equal(t, StatusPartiallyInvoiced, got.Status)
	assert.True(t, got.IsInvoiceCreated)

	require.NoError(t, svc.ApplyInvoice(ctx, po.ID, []InvoiceProgress{{POItemID: itemID, Quantity: d("3")}}))
	got, _ = svc.Get(ctx, po.ID)
	assert.Equal(t, StatusInvoiced, got.Status)

	require.NoError(t, svc.Close(ctx, po.ID, "priya"))
	got, _ = svc.Get(ctx, po.ID)
	assert.Equal(t, StatusClosed, got.Status)
}

func TestCreateFromRFP(t *testing.T) {
	repo := newMockRepo()
	quotations := &mockQuotations{
		quotation: rfp.Quotation{ID: 11, Number: "RFQ-11", SupplierID: 9, SupplierName: "Acme", Status: rfp.StatusApproved, PaymentTerms: "Net 45"},
		lines: []rfp.QuotationLine{{
			ItemName: "Hydraulic Press", Qty: d("1"), UnitPrice: d("450000"),
			Tax1Type: "CGST", Tax1Rate: d("9"), Tax2Type: "SGST", Tax2Rate: d("9"),
		}},
	}
	svc := NewService(repo, quotations, nil, nil, nil)
	ctx := context.Background()

	po, err := svc.CreateFromRFP(ctx, 11, "priya")
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, po.Status)
	require.NotNil(t, po.QuotationID)
	assert.Equal(t, int64(11), *po.QuotationID)
	assert.True(t, po.GrandTotal.Equal(d("531000")), "grandTotal = %s", po.GrandTotal)
}

func TestCreateFromRFPRequiresApprovedQuotation(t *testing.T) {
	repo := newMockRepo()
	quotations := &mockQuotations{
		quotation: rfp.Quotation{ID: 11, Number: "RFQ-11", SupplierID: 9, Status: rfp.StatusDraft},
	}
	svc := NewService(repo, quotations, nil, nil, nil)

	_, err := svc.CreateFromRFP(context.Background(), 11, "priya")
	require.ErrorIs(t, err, workflow.ErrTransition)
}
