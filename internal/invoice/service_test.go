package invoice

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procura-erp/procura/internal/grn"
	"github.com/procura-erp/procura/internal/purchaseorder"
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
	invoices   map[int64]Invoice
	items      map[int64][]Item
	payments   map[int64][]Payment
	nextID     int64
	nextItemID int64
	seq        int64
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		invoices: make(map[int64]Invoice),
		items:    make(map[int64][]Item),
		payments: make(map[int64][]Payment),
	}
}

func (m *mockRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, (*mockTx)(m))
}

func (m *mockRepo) Get(ctx context.Context, id int64) (Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return Invoice{}, ErrNotFound
	}
	inv.Items = append([]Item(nil), m.items[id]...)
	inv.Payments = append([]Payment(nil), m.payments[id]...)
	return inv, nil
}

func (m *mockRepo) List(ctx context.Context, filters ListFilters, limit, offset int) ([]Invoice, int, error) {
	var out []Invoice
	for id := range m.invoices {
		inv, _ := m.Get(ctx, id)
		out = append(out, inv)
	}
	return out, len(out), nil
}

func (m *mockRepo) ListDueBefore(ctx context.Context, cutoff time.Time) ([]Invoice, error) {
	var out []Invoice
	for id := range m.invoices {
		inv, _ := m.Get(ctx, id)
		if inv.DueDate.Before(cutoff) {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (m *mockRepo) NextSequence(ctx context.Context, fiscalYear string) (int64, error) {
	m.seq++
	return m.seq, nil
}

type mockTx mockRepo

func (t *mockTx) CreateHeader(ctx context.Context, inv Invoice) (int64, error) {
	t.nextID++
	inv.ID = t.nextID
	t.invoices[inv.ID] = inv
	return inv.ID, nil
}

func (t *mockTx) UpdateHeader(ctx context.Context, inv Invoice) error {
	stored, ok := t.invoices[inv.ID]
	if !ok {
		return ErrNotFound
	}
	inv.Status = stored.Status
	inv.Items = nil
	inv.Payments = nil
	t.invoices[inv.ID] = inv
	return nil
}

func (t *mockTx) ReplaceItems(ctx context.Context, invoiceID int64, items []Item) error {
	stored := make([]Item, 0, len(items))
	for _, it := range items {
		t.nextItemID++
		it.ID = t.nextItemID
		it.InvoiceID = invoiceID
		stored = append(stored, it)
	}
	t.items[invoiceID] = stored
	return nil
}

func (t *mockTx) UpdateStatus(ctx context.Context, id int64, status Status, reason string) error {
	inv, ok := t.invoices[id]
	if !ok {
		return ErrNotFound
	}
	inv.Status = status
	inv.StatusReason = reason
	t.invoices[id] = inv
	return nil
}

func (t *mockTx) SetApproval(ctx context.Context, id int64, approvedBy string, approvedAt time.Time) error {
	inv := t.invoices[id]
	inv.ApprovedBy = approvedBy
	inv.ApprovedAt = &approvedAt
	t.invoices[id] = inv
	return nil
}

func (t *mockTx) AddPayment(ctx context.Context, p Payment) (int64, error) {
	t.payments[p.InvoiceID] = append(t.payments[p.InvoiceID], p)
	return int64(len(t.payments[p.InvoiceID])), nil
}

func (t *mockTx) UpdatePaid(ctx context.Context, id int64, paid, balance decimal.Decimal) error {
	inv := t.invoices[id]
	inv.PaidAmount = paid
	inv.BalanceAmount = balance
	t.invoices[id] = inv
	return nil
}

type mockOrders struct {
	po      purchaseorder.PurchaseOrder
	applied [][]purchaseorder.InvoiceProgress
}

func (m *mockOrders) Get(ctx context.Context, id int64) (purchaseorder.PurchaseOrder, error) {
	if m.po.ID != id {
		return purchaseorder.PurchaseOrder{}, purchaseorder.ErrNotFound
	}
	return m.po, nil
}

func (m *mockOrders) ApplyInvoice(ctx context.Context, poID int64, progress []purchaseorder.InvoiceProgress) error {
	m.applied = append(m.applied, progress)
	return nil
}

type mockReceipts struct {
	receipt grn.GRN
}

func (m *mockReceipts) Get(ctx context.Context, id int64) (grn.GRN, error) {
	if m.receipt.ID != id {
		return grn.GRN{}, grn.ErrNotFound
	}
	return m.receipt, nil
}

func deliveredPO() purchaseorder.PurchaseOrder {
	return purchaseorder.PurchaseOrder{
		ID:           41,
		Number:       "PO/2025-26/0001",
		Status:       purchaseorder.StatusDelivered,
		SupplierID:   7,
		SupplierName: "Acme Industrial",
		PaymentTerms: "Net 30",
		Items: []purchaseorder.Item{{
			ID:        101,
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

func acceptedGRN() grn.GRN {
	return grn.GRN{
		ID:           9,
		Number:       "GRN/2025-26/0001",
		Status:       grn.StatusApproved,
		POID:         41,
		SupplierID:   7,
		SupplierName: "Acme Industrial",
		Items: []grn.Item{{
			ID:               55,
			POItemID:         101,
			ItemName:         "CNC Lathe",
			POQuantity:       d("2"),
			ReceivedQuantity: d("2"),
			AcceptedQuantity: d("2"),
			UnitPrice:        d("200000"),
		}},
	}
}

func newTestService(repo *mockRepo, orders *mockOrders, receipts *mockReceipts) *Service {
	return NewService(repo, orders, receipts, nil, nil, d("0.5"))
}

func TestDueDate(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, base.AddDate(0, 0, 30), DueDate(base, "Net 30"))
	assert.Equal(t, base.AddDate(0, 0, 30), DueDate(base, "2/10 net 30"))
	assert.Equal(t, base.AddDate(0, 0, 45), DueDate(base, "Net 45"))
	assert.Equal(t, base.AddDate(0, 0, 45), DueDate(base, ""))
	assert.Equal(t, base.AddDate(0, 0, 45), DueDate(base, "on delivery"))
}

func TestCreateFromOrderPrefillsLines(t *testing.T) {
	orders := &mockOrders{po: deliveredPO()}
	svc := newTestService(newMockRepo(), orders, &mockReceipts{})
	poID := int64(41)

	inv, err := svc.Create(context.Background(), CreateInput{POID: &poID, PaymentTerms: "Net 30"}, "meera")
	require.NoError(t, err)

	assert.Equal(t, StatusDraft, inv.Status)
	assert.Equal(t, "PO/2025-26/0001", inv.PONumber)
	assert.Equal(t, int64(7), inv.SupplierID)
	require.Len(t, inv.Items, 1)
	assert.True(t, inv.Items[0].InvoiceQuantity.Equal(d("2")))
	assert.True(t, inv.Items[0].CGSTRate.Equal(d("9")))
	assert.True(t, inv.Items[0].SGSTRate.Equal(d("9")))
	assert.True(t, inv.GrandTotal.Equal(d("472000")), "grandTotal = %s", inv.GrandTotal)
	assert.True(t, inv.BalanceAmount.Equal(inv.GrandTotal))
}

func TestReceiptLinesOverwriteOrderLines(t *testing.T) {
	orders := &mockOrders{po: deliveredPO()}
	receipt := acceptedGRN()
	receipt.Items[0].AcceptedQuantity = d("1")
	receipts := &mockReceipts{receipt: receipt}
	svc := newTestService(newMockRepo(), orders, receipts)
	poID, grnID := int64(41), int64(9)

	inv, err := svc.Create(context.Background(), CreateInput{POID: &poID, GRNID: &grnID}, "meera")
	require.NoError(t, err)

	require.Len(t, inv.Items, 1)
	// Accepted quantity from the receipt, not the ordered quantity.
	assert.True(t, inv.Items[0].InvoiceQuantity.Equal(d("1")), "qty = %s", inv.Items[0].InvoiceQuantity)
	require.NotNil(t, inv.Items[0].GRNItemID)
	assert.Equal(t, int64(55), *inv.Items[0].GRNItemID)
	assert.Equal(t, "GRN/2025-26/0001", inv.GRNNumber)
}

func TestReceiptLinesCarryOrderTaxes(t *testing.T) {
	orders := &mockOrders{po: deliveredPO()}
	receipts := &mockReceipts{receipt: acceptedGRN()}
	svc := newTestService(newMockRepo(), orders, receipts)
	poID, grnID := int64(41), int64(9)

	inv, err := svc.Create(context.Background(), CreateInput{POID: &poID, GRNID: &grnID}, "meera")
	require.NoError(t, err)

	require.Len(t, inv.Items, 1)
	assert.True(t, inv.Items[0].CGSTRate.Equal(d("9")))
	assert.True(t, inv.Items[0].SGSTRate.Equal(d("9")))
	assert.True(t, inv.TaxAmount.Equal(d("72000")), "taxAmount = %s", inv.TaxAmount)
	assert.True(t, inv.GrandTotal.Equal(d("472000")), "grandTotal = %s", inv.GrandTotal)
}

func TestReceiptOnlyInvoiceLoadsOrderTaxes(t *testing.T) {
	orders := &mockOrders{po: deliveredPO()}
	receipts := &mockReceipts{receipt: acceptedGRN()}
	svc := newTestService(newMockRepo(), orders, receipts)
	grnID := int64(9)

	inv, err := svc.Create(context.Background(), CreateInput{GRNID: &grnID}, "meera")
	require.NoError(t, err)

	assert.Nil(t, inv.POID)
	require.Len(t, inv.Items, 1)
	assert.True(t, inv.Items[0].CGSTRate.Equal(d("9")))
	assert.True(t, inv.GrandTotal.Equal(d("472000")), "grandTotal = %s", inv.GrandTotal)
}

func TestExplicitItemsWinOverPrefill(t *testing.T) {
	orders := &mockOrders{po: deliveredPO()}
	receipts := &mockReceipts{receipt: acceptedGRN()}
	svc := newTestService(newMockRepo(), orders, receipts)
	poID, grnID := int64(41), int64(9)

	inv, err := svc.Create(context.Background(), CreateInput{
		POID:  &poID,
		GRNID: &grnID,
		Items: []LineInput{{ItemName: "Installation fee", InvoiceQuantity: d("1"), UnitPrice: d("5000")}},
	}, "meera")
	require.NoError(t, err)

	require.Len(t, inv.Items, 1)
	assert.Equal(t, "Installation fee", inv.Items[0].ItemName)
	assert.True(t, inv.GrandTotal.Equal(d("5000")))
}

func TestCreateDueDateDefaultsFromTerms(t *testing.T) {
	orders := &mockOrders{po: deliveredPO()}
	svc := newTestService(newMockRepo(), orders, &mockReceipts{})
	poID := int64(41)
	invoiceDate := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	inv, err := svc.Create(context.Background(), CreateInput{POID: &poID, InvoiceDate: invoiceDate}, "meera")
	require.NoError(t, err)
	// Terms inherited from the order ("Net 30").
	assert.Equal(t, invoiceDate.AddDate(0, 0, 30), inv.DueDate)
}

func TestSubmitFeedsOrderProgress(t *testing.T) {
	orders := &mockOrders{po: deliveredPO()}
	svc := newTestService(newMockRepo(), orders, &mockReceipts{})
	ctx := context.Background()
	poID := int64(41)

	inv, err := svc.Create(ctx, CreateInput{POID: &poID}, "meera")
	require.NoError(t, err)

	require.NoError(t, svc.Submit(ctx, inv.ID, "meera"))
	got, _ := svc.Get(ctx, inv.ID)
	assert.Equal(t, StatusSubmitted, got.Status)

	require.Len(t, orders.applied, 1)
	require.Len(t, orders.applied[0], 1)
	assert.Equal(t, int64(101), orders.applied[0][0].POItemID)
	assert.True(t, orders.applied[0][0].Quantity.Equal(d("2")))
}

func approvalReady(t *testing.T, svc *Service, input CreateInput) Invoice {
	t.Helper()
	ctx := context.Background()
	inv, err := svc.Create(ctx, input, "meera")
	require.NoError(t, err)
	require.NoError(t, svc.Submit(ctx, inv.ID, "meera"))
	require.NoError(t, svc.RouteApproval(ctx, inv.ID, "meera"))
	inv, err = svc.Get(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPendingApproval, inv.Status)
	return inv
}

func TestApproveRunsThreeWayMatch(t *testing.T) {
	orders := &mockOrders{po: deliveredPO()}
	receipts := &mockReceipts{receipt: acceptedGRN()}
	svc := newTestService(newMockRepo(), orders, receipts)
	ctx := context.Background()
	poID, grnID := int64(41), int64(9)

	inv := approvalReady(t, svc, CreateInput{POID: &poID, GRNID: &grnID})

	require.NoError(t, svc.Approve(ctx, inv.ID, "boss"))
	got, _ := svc.Get(ctx, inv.ID)
	assert.Equal(t, StatusThreeWayMatched, got.Status)
	assert.Equal(t, "boss", got.ApprovedBy)
}

func TestApproveFlagsMismatch(t *testing.T) {
	orders := &mockOrders{po: deliveredPO()}
	receipt := acceptedGRN()
	receipt.Items[0].AcceptedQuantity = d("1")
	receipts := &mockReceipts{receipt: receipt}
	svc := newTestService(newMockRepo(), orders, receipts)
	ctx := context.Background()
	poID, grnID := int64(41), int64(9)

	// Bill the full ordered quantity although only one unit was accepted.
	inv := approvalReady(t, svc, CreateInput{
		POID:  &poID,
		GRNID: &grnID,
		Items: []LineInput{{POItemID: ptr(int64(101)), ItemName: "CNC Lathe", InvoiceQuantity: d("2"), UnitPrice: d("200000")}},
	})

	require.NoError(t, svc.Approve(ctx, inv.ID, "boss"))
	got, _ := svc.Get(ctx, inv.ID)
	assert.Equal(t, StatusThreeWayMismatch, got.Status)
	assert.Contains(t, got.StatusReason, "accepted quantity")
}

func TestApproveWithoutLinksSkipsMatch(t *testing.T) {
	orders := &mockOrders{po: deliveredPO()}
	svc := newTestService(newMockRepo(), orders, &mockReceipts{})
	ctx := context.Background()

	inv := approvalReady(t, svc, CreateInput{
		SupplierID: 7,
		Items:      []LineInput{{ItemName: "Consulting", InvoiceQuantity: d("1"), UnitPrice: d("1000")}},
	})

	require.NoError(t, svc.Approve(ctx, inv.ID, "boss"))
	got, _ := svc.Get(ctx, inv.ID)
	assert.Equal(t, StatusApproved, got.Status)
}

func TestRecordPaymentPartialThenFull(t *testing.T) {
	orders := &mockOrders{po: deliveredPO()}
	receipts := &mockReceipts{receipt: acceptedGRN()}
	svc := newTestService(newMockRepo(), orders, receipts)
	ctx := context.Background()
	poID, grnID := int64(41), int64(9)

	inv := approvalReady(t, svc, CreateInput{POID: &poID, GRNID: &grnID})
	require.NoError(t, svc.Approve(ctx, inv.ID, "boss"))

	got, err := svc.RecordPayment(ctx, inv.ID, PaymentInput{Amount: d("400000"), Method: "NEFT"}, "meera")
	require.NoError(t, err)
	assert.Equal(t, StatusPartiallyPaid, got.Status)
	assert.True(t, got.PaidAmount.Equal(d("400000")))
	assert.True(t, got.BalanceAmount.Equal(d("72000")))

	got, err = svc.RecordPayment(ctx, inv.ID, PaymentInput{Amount: d("72000"), Method: "NEFT"}, "meera")
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, got.Status)
	assert.True(t, got.BalanceAmount.IsZero())
	require.Len(t, got.Payments, 2)

	// PAID is terminal.
	_, err = svc.RecordPayment(ctx, inv.ID, PaymentInput{Amount: d("1")}, "meera")
	require.Error(t, err)
}

func TestRecordPaymentRejectsOverpayment(t *testing.T) {
	orders := &mockOrders{po: deliveredPO()}
	receipts := &mockReceipts{receipt: acceptedGRN()}
	svc := newTestService(newMockRepo(), orders, receipts)
	ctx := context.Background()
	poID, grnID := int64(41), int64(9)

	inv := approvalReady(t, svc, CreateInput{POID: &poID, GRNID: &grnID})
	require.NoError(t, svc.Approve(ctx, inv.ID, "boss"))

	_, err := svc.RecordPayment(ctx, inv.ID, PaymentInput{Amount: d("500000")}, "meera")
	require.ErrorIs(t, err, ErrOverpayment)

	_, err = svc.RecordPayment(ctx, inv.ID, PaymentInput{Amount: decimal.Zero}, "meera")
	require.ErrorIs(t, err, ErrValidation)
}

func TestHoldAndResume(t *testing.T) {
	orders := &mockOrders{po: deliveredPO()}
	svc := newTestService(newMockRepo(), orders, &mockReceipts{})
	ctx := context.Background()

	inv := approvalReady(t, svc, CreateInput{
		SupplierID: 7,
		Items:      []LineInput{{ItemName: "Consulting", InvoiceQuantity: d("1"), UnitPrice: d("1000")}},
	})

	err := svc.Hold(ctx, inv.ID, "meera", "")
	require.ErrorIs(t, err, workflow.ErrReasonRequired)

	require.NoError(t, svc.Hold(ctx, inv.ID, "meera", "supplier query open"))
	got, _ := svc.Get(ctx, inv.ID)
	assert.Equal(t, StatusOnHold, got.Status)

	require.NoError(t, svc.Resume(ctx, inv.ID, "meera"))
	got, _ = svc.Get(ctx, inv.ID)
	assert.Equal(t, StatusPendingApproval, got.Status)
}

func TestUpdateOnlyWhileDraft(t *testing.T) {
	orders := &mockOrders{po: deliveredPO()}
	svc := newTestService(newMockRepo(), orders, &mockReceipts{})
	ctx := context.Background()

	inv, err := svc.Create(ctx, CreateInput{
		SupplierID: 7,
		Items:      []LineInput{{ItemName: "Consulting", InvoiceQuantity: d("1"), UnitPrice: d("1000")}},
	}, "meera")
	require.NoError(t, err)

	updated, err := svc.Update(ctx, inv.ID, UpdateInput{
		SupplierID: 7,
		Items:      []LineInput{{ItemName: "Consulting", InvoiceQuantity: d("2"), UnitPrice: d("1000")}},
	}, "meera")
	require.NoError(t, err)
	assert.True(t, updated.GrandTotal.Equal(d("2000")))

	require.NoError(t, svc.Submit(ctx, inv.ID, "meera"))
	_, err = svc.Update(ctx, inv.ID, UpdateInput{
		SupplierID: 7,
		Items:      []LineInput{{ItemName: "Consulting", InvoiceQuantity: d("3"), UnitPrice: d("1000")}},
	}, "meera")
	require.ErrorIs(t, err, ErrNotEditable)
}

func TestMarkOverdueSkipsIneligible(t *testing.T) {
	orders := &mockOrders{po: deliveredPO()}
	repo := newMockRepo()
	svc := newTestService(repo, orders, &mockReceipts{})
	ctx := context.Background()
	now := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)

	overdue, err := svc.Create(ctx, CreateInput{
		SupplierID:  7,
		InvoiceDate: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		Items:       []LineInput{{ItemName: "Consulting", InvoiceQuantity: d("1"), UnitPrice: d("1000")}},
	}, "meera")
	require.NoError(t, err)
	require.NoError(t, svc.Submit(ctx, overdue.ID, "meera"))

	// Still a draft: the scan must leave it alone.
	_, err = svc.Create(ctx, CreateInput{
		SupplierID:  7,
		InvoiceDate: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		Items:       []LineInput{{ItemName: "Spares", InvoiceQuantity: d("1"), UnitPrice: d("500")}},
	}, "meera")
	require.NoError(t, err)

	marked, err := svc.MarkOverdue(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, marked)

	got, _ := svc.Get(ctx, overdue.ID)
	assert.Equal(t, StatusOverdue, got.Status)
}

func ptr[T any](v T) *T { return &v }
