package invoice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps the callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	if err := fn(ctx, &txRepo{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

const headerColumns = `id, number, supplier_invoice_no, status, type, po_id, po_number, grn_id, grn_number,
supplier_id, supplier_name, invoice_date, due_date, payment_terms, currency, exchange_rate,
status_reason, approved_by, approved_at, sub_total, tax_amount, discount_amount,
freight_charges, other_charges, grand_total, paid_amount, balance_amount, created_at, updated_at`

func scanHeader(row pgx.Row) (Invoice, error) {
	var inv Invoice
	var status, invType string
	var supplierRef, poNumber, grnNumber, approvedBy, statusReason *string
	err := row.Scan(&inv.ID, &inv.Number, &supplierRef, &status, &invType, &inv.POID, &poNumber,
		&inv.GRNID, &grnNumber, &inv.SupplierID, &inv.SupplierName, &inv.InvoiceDate, &inv.DueDate,
		&inv.PaymentTerms, &inv.Currency, &inv.ExchangeRate, &statusReason, &approvedBy, &inv.ApprovedAt,
		&inv.SubTotal, &inv.TaxAmount, &inv.DiscountAmount, &inv.FreightCharges, &inv.OtherCharges,
		&inv.GrandTotal, &inv.PaidAmount, &inv.BalanceAmount, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return Invoice{}, err
	}
	inv.Status = Status(status)
	inv.Type = InvoiceType(invType)
	if supplierRef != nil {
		inv.SupplierRef = *supplierRef
	}
	if poNumber != nil {
		inv.PONumber = *poNumber
	}
	if grnNumber != nil {
		inv.GRNNumber = *grnNumber
	}
	if approvedBy != nil {
		inv.ApprovedBy = *approvedBy
	}
	if statusReason != nil {
		inv.StatusReason = *statusReason
	}
	return inv, nil
}

// Get returns the invoice with its lines and payments.
func (r *Repository) Get(ctx context.Context, id int64) (Invoice, error) {
	query := fmt.Sprintf("SELECT %s FROM invoices WHERE id = $1", headerColumns)
	inv, err := scanHeader(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, ErrNotFound
		}
		return Invoice{}, err
	}
	if inv.Items, err = r.items(ctx, id); err != nil {
		return Invoice{}, err
	}
	if inv.Payments, err = r.payments(ctx, id); err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

func (r *Repository) items(ctx context.Context, invoiceID int64) ([]Item, error) {
	const query = `SELECT id, invoice_id, po_item_id, grn_item_id, item_name, item_code, uom,
invoice_quantity, unit_price, discount_percentage, base_amount, discount_amount, taxable_amount,
cgst_rate, cgst_amount, sgst_rate, sgst_amount, igst_rate, igst_amount,
other_tax_rate, other_tax_amount, total_tax_amount, total_amount
FROM invoice_items WHERE invoice_id = $1 ORDER BY id`
	rows, err := r.pool.Query(ctx, query, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.POItemID, &it.GRNItemID, &it.ItemName, &it.ItemCode, &it.UOM,
			&it.InvoiceQuantity, &it.UnitPrice, &it.DiscountPercentage, &it.BaseAmount, &it.DiscountAmount, &it.TaxableAmount,
			&it.CGSTRate, &it.CGSTAmount, &it.SGSTRate, &it.SGSTAmount, &it.IGSTRate, &it.IGSTAmount,
			&it.OtherTaxRate, &it.OtherTaxAmount, &it.TotalTaxAmount, &it.TotalAmount); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *Repository) payments(ctx context.Context, invoiceID int64) ([]Payment, error) {
	const query = `SELECT id, invoice_id, amount, method, reference, paid_at, notes
FROM invoice_payments WHERE invoice_id = $1 ORDER BY paid_at, id`
	rows, err := r.pool.Query(ctx, query, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var payments []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.Amount, &p.Method, &p.Reference, &p.PaidAt, &p.Notes); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// List returns a page of invoices and the total matching count.
func (r *Repository) List(ctx context.Context, filters ListFilters, limit, offset int) ([]Invoice, int, error) {
	where := []string{"1=1"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filters.Status != "" {
		where = append(where, "status = "+arg(filters.Status))
	}
	if filters.POID != 0 {
		where = append(where, "po_id = "+arg(filters.POID))
	}
	if filters.GRNID != 0 {
		where = append(where, "grn_id = "+arg(filters.GRNID))
	}
	if !filters.DueFrom.IsZero() {
		where = append(where, "due_date >= "+arg(filters.DueFrom))
	}
	if !filters.DueTo.IsZero() {
		where = append(where, "due_date <= "+arg(filters.DueTo))
	}
	if filters.Search != "" {
		where = append(where, "(number ILIKE "+arg("%"+filters.Search+"%")+" OR supplier_invoice_no ILIKE "+arg("%"+filters.Search+"%")+" OR supplier_name ILIKE "+arg("%"+filters.Search+"%")+")")
	}

	countQuery := "SELECT COUNT(*) FROM invoices WHERE " + strings.Join(where, " AND ")
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	sortBy := "created_at"
	switch filters.SortBy {
	case "number", "invoice_date", "due_date", "grand_total", "balance_amount", "status":
		sortBy = filters.SortBy
	}
	sortDir := "DESC"
	if strings.EqualFold(filters.SortDir, "asc") {
		sortDir = "ASC"
	}
	query := fmt.Sprintf("SELECT %s FROM invoices WHERE %s ORDER BY %s %s LIMIT %s OFFSET %s",
		headerColumns, strings.Join(where, " AND "), sortBy, sortDir, arg(limit), arg(offset))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var invoices []Invoice
	for rows.Next() {
		inv, err := scanHeader(rows)
		if err != nil {
			return nil, 0, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, total, rows.Err()
}

// ListDueBefore returns unpaid invoices whose due date precedes the cutoff.
// Only states the overdue transition can act on are fetched.
func (r *Repository) ListDueBefore(ctx context.Context, cutoff time.Time) ([]Invoice, error) {
	query := fmt.Sprintf(`SELECT %s FROM invoices
WHERE due_date < $1
  AND status IN ('SUBMITTED','PENDING_APPROVAL','APPROVED','THREE_WAY_MATCHED','PARTIALLY_PAID')
ORDER BY due_date`, headerColumns)
	rows, err := r.pool.Query(ctx, query, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var invoices []Invoice
	for rows.Next() {
		inv, err := scanHeader(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// NextSequence allocates the next per-fiscal-year document number.
func (r *Repository) NextSequence(ctx context.Context, fiscalYear string) (int64, error) {
	const query = `INSERT INTO document_sequences (doc_type, fiscal_year, last_value)
VALUES ('INV', $1, 1)
ON CONFLICT (doc_type, fiscal_year)
DO UPDATE SET last_value = document_sequences.last_value + 1
RETURNING last_value`
	var seq int64
	if err := r.pool.QueryRow(ctx, query, fiscalYear).Scan(&seq); err != nil {
		return 0, err
	}
	return seq, nil
}

func (t *txRepo) CreateHeader(ctx context.Context, inv Invoice) (int64, error) {
	const query = `INSERT INTO invoices
(number, supplier_invoice_no, status, type, po_id, po_number, grn_id, grn_number,
 supplier_id, supplier_name, invoice_date, due_date, payment_terms, currency, exchange_rate,
 sub_total, tax_amount, discount_amount, freight_charges, other_charges, grand_total,
 paid_amount, balance_amount, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,NULLIF($6,''),$7,NULLIF($8,''),$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,NOW(),NOW())
RETURNING id`
	var id int64
	err := t.tx.QueryRow(ctx, query, inv.Number, inv.SupplierRef, string(inv.Status), string(inv.Type),
		inv.POID, inv.PONumber, inv.GRNID, inv.GRNNumber, inv.SupplierID, inv.SupplierName,
		inv.InvoiceDate, inv.DueDate, inv.PaymentTerms, inv.Currency, inv.ExchangeRate,
		inv.SubTotal, inv.TaxAmount, inv.DiscountAmount, inv.FreightCharges, inv.OtherCharges,
		inv.GrandTotal, inv.PaidAmount, inv.BalanceAmount).Scan(&id)
	return id, err
}

func (t *txRepo) UpdateHeader(ctx context.Context, inv Invoice) error {
	const query = `UPDATE invoices SET
supplier_invoice_no=$1, type=$2, invoice_date=$3, due_date=$4, payment_terms=$5, currency=$6,
exchange_rate=$7, sub_total=$8, tax_amount=$9, discount_amount=$10, freight_charges=$11,
other_charges=$12, grand_total=$13, paid_amount=$14, balance_amount=$15, updated_at=NOW()
WHERE id=$16`
	_, err := t.tx.Exec(ctx, query, inv.SupplierRef, string(inv.Type), inv.InvoiceDate, inv.DueDate,
		inv.PaymentTerms, inv.Currency, inv.ExchangeRate, inv.SubTotal, inv.TaxAmount, inv.DiscountAmount,
		inv.FreightCharges, inv.OtherCharges, inv.GrandTotal, inv.PaidAmount, inv.BalanceAmount, inv.ID)
	return err
}

func (t *txRepo) ReplaceItems(ctx context.Context, invoiceID int64, items []Item) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM invoice_items WHERE invoice_id = $1`, invoiceID); err != nil {
		return err
	}
	const query = `INSERT INTO invoice_items
(invoice_id, po_item_id, grn_item_id, item_name, item_code, uom,
 invoice_quantity, unit_price, discount_percentage, base_amount, discount_amount, taxable_amount,
 cgst_rate, cgst_amount, sgst_rate, sgst_amount, igst_rate, igst_amount,
 other_tax_rate, other_tax_amount, total_tax_amount, total_amount)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)`
	for _, it := range items {
		if _, err := t.tx.Exec(ctx, query, invoiceID, it.POItemID, it.GRNItemID, it.ItemName, it.ItemCode, it.UOM,
			it.InvoiceQuantity, it.UnitPrice, it.DiscountPercentage, it.BaseAmount, it.DiscountAmount, it.TaxableAmount,
			it.CGSTRate, it.CGSTAmount, it.SGSTRate, it.SGSTAmount, it.IGSTRate, it.IGSTAmount,
			it.OtherTaxRate, it.OtherTaxAmount, it.TotalTaxAmount, it.TotalAmount); err != nil {
			return err
		}
	}
	return nil
}

func (t *txRepo) UpdateStatus(ctx context.Context, id int64, status Status, reason string) error {
	const query = `UPDATE invoices SET status=$1, status_reason=NULLIF($2,''), updated_at=NOW() WHERE id=$3`
	tag, err := t.tx.Exec(ctx, query, string(status), reason, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) SetApproval(ctx context.Context, id int64, approvedBy string, approvedAt time.Time) error {
	const query = `UPDATE invoices SET approved_by=$1, approved_at=$2, updated_at=NOW() WHERE id=$3`
	_, err := t.tx.Exec(ctx, query, approvedBy, approvedAt, id)
	return err
}

func (t *txRepo) AddPayment(ctx context.Context, p Payment) (int64, error) {
	const query = `INSERT INTO invoice_payments (invoice_id, amount, method, reference, paid_at, notes)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING id`
	var id int64
	err := t.tx.QueryRow(ctx, query, p.InvoiceID, p.Amount, p.Method, p.Reference, p.PaidAt, p.Notes).Scan(&id)
	return id, err
}

func (t *txRepo) UpdatePaid(ctx context.Context, id int64, paid, balance decimal.Decimal) error {
	const query = `UPDATE invoices SET paid_amount=$1, balance_amount=$2, updated_at=NOW() WHERE id=$3`
	_, err := t.tx.Exec(ctx, query, paid, balance, id)
	return err
}
